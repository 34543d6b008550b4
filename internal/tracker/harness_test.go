package tracker

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sandeepkv93/multitimer/internal/backend"
	"github.com/sandeepkv93/multitimer/internal/model"
	"github.com/sandeepkv93/multitimer/internal/storage"
)

const day = int64(24 * 60 * 60 * 1000)

type fakeClock struct {
	mu sync.Mutex
	ms int64
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.UnixMilli(c.ms)
}

func (c *fakeClock) Set(ms int64) {
	c.mu.Lock()
	c.ms = ms
	c.mu.Unlock()
}

type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	start          func(backend.StartTimerRequest) (backend.Timer, error)
	resume         func(id, at int64) (backend.Timer, error)
	stop           func(id, at int64) (backend.Timer, error)
	create         func(backend.CreateTimerRequest) (backend.Timer, error)
	update         func(id int64, in backend.UpdateTimerRequest) (backend.Timer, error)
	list           func(userID int64, date string) ([]backend.Timer, error)
	createInterval func(backend.CreateIntervalRequest) (backend.Interval, error)
	deleteInterval func(id int64) error
}

func newFakeBackend() *fakeBackend {
	nextTimer := int64(41)
	nextInterval := int64(900)
	return &fakeBackend{
		start: func(backend.StartTimerRequest) (backend.Timer, error) {
			nextTimer++
			return backend.Timer{ID: nextTimer, Status: backend.StatusRunning}, nil
		},
		resume: func(id, _ int64) (backend.Timer, error) {
			return backend.Timer{ID: id, Status: backend.StatusRunning}, nil
		},
		stop: func(id, _ int64) (backend.Timer, error) {
			return backend.Timer{ID: id, Status: backend.StatusStopped}, nil
		},
		create: func(in backend.CreateTimerRequest) (backend.Timer, error) {
			return backend.Timer{ID: 77, ProjectID: in.ProjectID, TaskID: in.TaskID, ActiveDate: in.ActiveDate}, nil
		},
		update: func(id int64, in backend.UpdateTimerRequest) (backend.Timer, error) {
			return backend.Timer{ID: id, Notes: *in.Notes}, nil
		},
		list: func(int64, string) ([]backend.Timer, error) {
			return nil, nil
		},
		createInterval: func(in backend.CreateIntervalRequest) (backend.Interval, error) {
			nextInterval++
			return backend.Interval{ID: nextInterval, TimerID: in.TimerID, StartTime: in.StartTime, Duration: in.Duration}, nil
		},
		deleteInterval: func(int64) error { return nil },
	}
}

func (f *fakeBackend) record(format string, args ...any) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeBackend) CreateTimer(_ context.Context, in backend.CreateTimerRequest) (backend.Timer, error) {
	f.record("create:%s/%s@%s", in.ProjectID, in.TaskID, in.ActiveDate)
	return f.create(in)
}

func (f *fakeBackend) StartTimer(_ context.Context, in backend.StartTimerRequest) (backend.Timer, error) {
	f.record("start:%s/%s@%d", in.ProjectID, in.TaskID, in.StartTime)
	return f.start(in)
}

func (f *fakeBackend) ResumeTimer(_ context.Context, id, at int64) (backend.Timer, error) {
	f.record("resume:%d@%d", id, at)
	return f.resume(id, at)
}

func (f *fakeBackend) StopTimer(_ context.Context, id, at int64) (backend.Timer, error) {
	f.record("stop:%d@%d", id, at)
	return f.stop(id, at)
}

func (f *fakeBackend) UpdateTimer(_ context.Context, id int64, in backend.UpdateTimerRequest) (backend.Timer, error) {
	f.record("update:%d", id)
	return f.update(id, in)
}

func (f *fakeBackend) ListTimers(_ context.Context, userID int64, date string) ([]backend.Timer, error) {
	f.record("list:%d@%s", userID, date)
	return f.list(userID, date)
}

func (f *fakeBackend) CreateInterval(_ context.Context, in backend.CreateIntervalRequest) (backend.Interval, error) {
	f.record("create-interval:%d %d-%d", in.TimerID, in.StartTime, in.EndTime)
	return f.createInterval(in)
}

func (f *fakeBackend) DeleteInterval(_ context.Context, id int64) error {
	f.record("delete-interval:%d", id)
	return f.deleteInterval(id)
}

type memRepo struct {
	mu        sync.Mutex
	ws        model.Workspace
	wsErr     error
	listErr   error
	intervals map[string]model.Interval
	session   *model.RunningSession
	wsSaves   int
}

func newMemRepo() *memRepo {
	return &memRepo{intervals: make(map[string]model.Interval)}
}

func (r *memRepo) LoadWorkspace(context.Context) (model.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wsErr != nil {
		return model.Workspace{}, r.wsErr
	}
	return r.ws.Clone(), nil
}

func (r *memRepo) SaveWorkspace(_ context.Context, ws model.Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ws = ws.Clone()
	r.wsSaves++
	return nil
}

func (r *memRepo) ListIntervals(_ context.Context, filter storage.IntervalListFilter) ([]model.Interval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]model.Interval, 0, len(r.intervals))
	for _, iv := range r.intervals {
		if filter.TimerID != "" && iv.TimerID != filter.TimerID {
			continue
		}
		if filter.StartedSince > 0 && iv.StartTime < filter.StartedSince {
			continue
		}
		if filter.Range != nil && !filter.Range.Contains(iv.StartTime) {
			continue
		}
		out = append(out, iv.Clone())
	}
	slices.SortFunc(out, func(a, b model.Interval) int {
		return cmp.Or(cmp.Compare(a.StartTime, b.StartTime), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r *memRepo) GetInterval(_ context.Context, id string) (model.Interval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv, ok := r.intervals[id]
	if !ok {
		return model.Interval{}, storage.ErrNotFound
	}
	return iv.Clone(), nil
}

func (r *memRepo) UpsertInterval(_ context.Context, iv model.Interval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intervals[iv.ID] = iv.Clone()
	return nil
}

func (r *memRepo) DeleteInterval(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.intervals[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.intervals, id)
	return nil
}

func (r *memRepo) LoadRunningSession(context.Context) (model.RunningSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return model.RunningSession{}, storage.ErrNotFound
	}
	return *r.session, nil
}

func (r *memRepo) SaveRunningSession(_ context.Context, s model.RunningSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = &s
	return nil
}

func (r *memRepo) ClearRunningSession(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = nil
	return nil
}

func (r *memRepo) storedSession() *model.RunningSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil
	}
	s := *r.session
	return &s
}

func (r *memRepo) storedInterval(id string) (model.Interval, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv, ok := r.intervals[id]
	return iv, ok
}

type harness struct {
	ctrl    *Controller
	clock   *fakeClock
	backend *fakeBackend
	repo    *memRepo
	ids     int
}

func seedWorkspace() model.Workspace {
	return model.Workspace{Groups: []model.Group{
		{
			ID: "g-1", ProjectID: "p-1", ProjectName: "Website",
			Timers: []model.Timer{
				{ID: "t-1", TaskID: "task-1", TaskName: "Design", Backing: model.Draft{}},
				{ID: "t-2", TaskID: "task-2", TaskName: "Build", Backing: model.Draft{}},
			},
		},
		{
			ID: "g-2", ProjectID: "p-2", ProjectName: "Billing",
			Timers: []model.Timer{{ID: "t-3", TaskID: "task-3", TaskName: "Invoices", Backing: model.Draft{}}},
		},
	}}
}

// newHarness builds a controller over in-memory fakes. Call rehydrate before
// using it.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:   &fakeClock{ms: 1000},
		backend: newFakeBackend(),
		repo:    newMemRepo(),
	}
	h.repo.ws = seedWorkspace()
	h.ctrl = New(Config{
		Repo:     h.repo,
		Backend:  h.backend,
		Now:      h.clock.Now,
		NewID:    h.nextID,
		Location: time.UTC,
		UserID:   7,
	})
	return h
}

func readyHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	h.ctrl.Rehydrate(t.Context())
	return h
}

func (h *harness) nextID() string {
	h.ids++
	return fmt.Sprintf("id-%d", h.ids)
}

func (h *harness) timer(t *testing.T, timerID string) model.Timer {
	t.Helper()
	snap := h.ctrl.Snapshot(h.clock.Now())
	gi, ti, ok := snap.Workspace.FindTimer(timerID)
	if !ok {
		t.Fatalf("timer %s not found", timerID)
	}
	return snap.Workspace.Groups[gi].Timers[ti]
}

func (h *harness) openCount() int {
	n := 0
	for _, iv := range h.ctrl.store.All() {
		if iv.IsOpen() {
			n++
		}
	}
	return n
}
