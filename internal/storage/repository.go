package storage

import (
	"context"
	"fmt"

	"github.com/sandeepkv93/multitimer/internal/model"
)

var ErrNotFound = fmt.Errorf("storage: %w", model.ErrNotFound)

type Repository interface {
	LoadWorkspace(ctx context.Context) (model.Workspace, error)
	SaveWorkspace(ctx context.Context, ws model.Workspace) error

	ListIntervals(ctx context.Context, filter IntervalListFilter) ([]model.Interval, error)
	GetInterval(ctx context.Context, id string) (model.Interval, error)
	UpsertInterval(ctx context.Context, iv model.Interval) error
	DeleteInterval(ctx context.Context, id string) error

	LoadRunningSession(ctx context.Context) (model.RunningSession, error)
	SaveRunningSession(ctx context.Context, s model.RunningSession) error
	ClearRunningSession(ctx context.Context) error

	GetPreference(ctx context.Context, key string) (string, error)
	SetPreference(ctx context.Context, key, value string) error
}
