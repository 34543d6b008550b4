package storage

import "github.com/sandeepkv93/multitimer/internal/model"

const prefCompact = "compact"

type IntervalListFilter struct {
	TimerID string
	// Range limits results to intervals starting inside it.
	Range *model.DateRange
	// StartedSince drops intervals that started before it. Zero disables it.
	StartedSince int64
	Limit        int
	Offset       int
}
