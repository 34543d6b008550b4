// Package session keeps the single running-timer record.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/sandeepkv93/multitimer/internal/model"
	"github.com/sandeepkv93/multitimer/internal/persist"
)

// Port persists the running session. LoadRunningSession returns an error
// wrapping model.ErrNotFound when nothing is stored.
type Port interface {
	LoadRunningSession(ctx context.Context) (model.RunningSession, error)
	SaveRunningSession(ctx context.Context, s model.RunningSession) error
	ClearRunningSession(ctx context.Context) error
}

const persistKey = "running-session"

// Register holds at most one session. It does not decide whether a Set is
// allowed; the caller owns that policy.
type Register struct {
	mu      sync.RWMutex
	current *model.RunningSession
	port    Port
	writes  persist.Scheduler
	log     *slog.Logger
}

func NewRegister(port Port, writes persist.Scheduler, log *slog.Logger) *Register {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if writes == nil {
		writes = persist.Sync{Log: log}
	}
	return &Register{port: port, writes: writes, log: log}
}

func (r *Register) Get() (model.RunningSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return model.RunningSession{}, false
	}
	return *r.current, true
}

func (r *Register) Set(s model.RunningSession) {
	r.mu.Lock()
	cp := s
	r.current = &cp
	r.mu.Unlock()

	if r.port == nil {
		return
	}
	r.writes.Schedule(persistKey, func(ctx context.Context) error {
		return r.port.SaveRunningSession(ctx, s)
	})
}

func (r *Register) Clear() {
	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()

	if r.port == nil {
		return
	}
	r.writes.Schedule(persistKey, func(ctx context.Context) error {
		return r.port.ClearRunningSession(ctx)
	})
}

// Load reads the persisted session. A missing or unreadable session leaves the
// register empty; the second case is logged.
func (r *Register) Load(ctx context.Context) (model.RunningSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
	if r.port == nil {
		return model.RunningSession{}, false
	}

	s, err := r.port.LoadRunningSession(ctx)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			r.log.Warn("running session unreadable, treating as absent", "err", err)
		}
		return model.RunningSession{}, false
	}
	if err := s.Validate(); err != nil {
		r.log.Warn("running session invalid, treating as absent", "err", err)
		return model.RunningSession{}, false
	}
	r.current = &s
	return s, true
}
