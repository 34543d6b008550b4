// Package intervals holds the in-memory interval log that elapsed time is
// derived from.
package intervals

import (
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/sandeepkv93/multitimer/internal/model"
)

type ChangeKind string

const (
	ChangeUpsert ChangeKind = "upsert"
	ChangeRemove ChangeKind = "remove"
)

// Change describes one mutation. Interval is the state after an upsert or the
// removed interval.
type Change struct {
	Kind     ChangeKind
	Interval model.Interval
}

type Store struct {
	mu       sync.RWMutex
	items    []model.Interval
	onChange func(Change)
}

func NewStore() *Store {
	return &Store{}
}

// OnChange registers the hook called after every mutation. It runs outside the
// store lock.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Load replaces the contents with seed without reporting changes.
func (s *Store) Load(seed []model.Interval) error {
	open := 0
	seen := make(map[string]struct{}, len(seed))
	items := make([]model.Interval, 0, len(seed))
	for _, iv := range seed {
		if err := iv.Validate(); err != nil {
			return fmt.Errorf("interval %s: %w", iv.ID, err)
		}
		if _, dup := seen[iv.ID]; dup {
			return model.Invariantf("duplicate interval id %s", iv.ID)
		}
		seen[iv.ID] = struct{}{}
		if iv.IsOpen() {
			open++
		}
		items = append(items, iv.Clone())
	}
	if open > 1 {
		return model.Invariantf("%d open intervals", open)
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

func (s *Store) Append(iv model.Interval) error {
	if err := iv.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.indexLocked(iv.ID) >= 0 {
		s.mu.Unlock()
		return model.Invariantf("interval %s already exists", iv.ID)
	}
	if iv.IsOpen() {
		if open, ok := s.openLocked(); ok {
			s.mu.Unlock()
			return model.Invariantf("interval %s is still open", open.ID)
		}
	}
	s.items = append(s.items, iv.Clone())
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeUpsert, Interval: iv.Clone()})
	return nil
}

func (s *Store) Close(id string, end int64) error {
	return s.mutate(id, func(iv *model.Interval) error {
		if !iv.IsOpen() {
			return model.Invariantf("interval %s is already closed", id)
		}
		if end <= iv.StartTime {
			return model.ErrInvalidRange
		}
		iv.EndTime = model.Int64(end)
		return nil
	})
}

// Reopen undoes Close.
func (s *Store) Reopen(id string) error {
	return s.mutate(id, func(iv *model.Interval) error {
		if open, ok := s.openLocked(); ok && open.ID != id {
			return model.Invariantf("interval %s is still open", open.ID)
		}
		iv.EndTime = nil
		return nil
	})
}

func (s *Store) UpdateBounds(id string, start, end int64) error {
	if end <= start {
		return model.ErrInvalidRange
	}
	return s.mutate(id, func(iv *model.Interval) error {
		if iv.IsOpen() {
			return model.Invariantf("interval %s is open and cannot be edited", id)
		}
		iv.StartTime = start
		iv.EndTime = model.Int64(end)
		return nil
	})
}

// SetBackendIDs backfills the backend identifiers. Nil arguments leave the
// current value untouched.
func (s *Store) SetBackendIDs(id string, backendTimerID, backendIntervalID *int64) error {
	return s.mutate(id, func(iv *model.Interval) error {
		if backendTimerID != nil {
			iv.BackendTimerID = model.Int64(*backendTimerID)
		}
		if backendIntervalID != nil {
			iv.BackendIntervalID = model.Int64(*backendIntervalID)
		}
		return nil
	})
}

func (s *Store) Remove(id string) (model.Interval, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return model.Interval{}, model.ErrNotFound
	}
	removed := s.items[idx]
	s.items = slices.Delete(s.items, idx, idx+1)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeRemove, Interval: removed.Clone()})
	return removed.Clone(), nil
}

func (s *Store) Get(id string) (model.Interval, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return model.Interval{}, false
	}
	return s.items[idx].Clone(), true
}

// Open returns the single open interval, if any.
func (s *Store) Open() (model.Interval, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	iv, ok := s.openLocked()
	if !ok {
		return model.Interval{}, false
	}
	return iv.Clone(), true
}

// Query yields the intervals of timerID in insertion order, optionally limited
// to those starting inside r. The sequence reads the store each time it is
// iterated.
func (s *Store) Query(timerID string, r *model.DateRange) iter.Seq[model.Interval] {
	return func(yield func(model.Interval) bool) {
		s.mu.RLock()
		matched := make([]model.Interval, 0)
		for _, iv := range s.items {
			if iv.TimerID != timerID {
				continue
			}
			if r != nil && !r.Contains(iv.StartTime) {
				continue
			}
			matched = append(matched, iv.Clone())
		}
		s.mu.RUnlock()

		for _, iv := range matched {
			if !yield(iv) {
				return
			}
		}
	}
}

func (s *Store) All() []model.Interval {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Interval, len(s.items))
	for i, iv := range s.items {
		out[i] = iv.Clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) mutate(id string, fn func(*model.Interval) error) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return model.ErrNotFound
	}
	next := s.items[idx].Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.items[idx] = next
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeUpsert, Interval: next.Clone()})
	return nil
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.items, func(iv model.Interval) bool { return iv.ID == id })
}

func (s *Store) openLocked() (model.Interval, bool) {
	for _, iv := range s.items {
		if iv.IsOpen() {
			return iv, true
		}
	}
	return model.Interval{}, false
}

func (s *Store) notify(c Change) {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn(c)
	}
}
