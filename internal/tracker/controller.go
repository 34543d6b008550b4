// Package tracker reconciles local timer state with the timer backend.
package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/multitimer/internal/backend"
	"github.com/sandeepkv93/multitimer/internal/elapsed"
	"github.com/sandeepkv93/multitimer/internal/intervals"
	"github.com/sandeepkv93/multitimer/internal/model"
	"github.com/sandeepkv93/multitimer/internal/persist"
	"github.com/sandeepkv93/multitimer/internal/session"
	"github.com/sandeepkv93/multitimer/internal/storage"
)

type Backend interface {
	CreateTimer(ctx context.Context, in backend.CreateTimerRequest) (backend.Timer, error)
	StartTimer(ctx context.Context, in backend.StartTimerRequest) (backend.Timer, error)
	ResumeTimer(ctx context.Context, timerID, at int64) (backend.Timer, error)
	StopTimer(ctx context.Context, timerID, at int64) (backend.Timer, error)
	UpdateTimer(ctx context.Context, timerID int64, in backend.UpdateTimerRequest) (backend.Timer, error)
	ListTimers(ctx context.Context, userID int64, activeDate string) ([]backend.Timer, error)
	CreateInterval(ctx context.Context, in backend.CreateIntervalRequest) (backend.Interval, error)
	DeleteInterval(ctx context.Context, intervalID int64) error
}

type Repository interface {
	session.Port
	LoadWorkspace(ctx context.Context) (model.Workspace, error)
	SaveWorkspace(ctx context.Context, ws model.Workspace) error
	ListIntervals(ctx context.Context, filter storage.IntervalListFilter) ([]model.Interval, error)
	GetInterval(ctx context.Context, id string) (model.Interval, error)
	UpsertInterval(ctx context.Context, iv model.Interval) error
	DeleteInterval(ctx context.Context, id string) error
}

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"
)

type Config struct {
	Repo    Repository
	Backend Backend
	// Writes defaults to running persistence jobs inline.
	Writes   persist.Scheduler
	Now      func() time.Time
	NewID    func() string
	Location *time.Location
	Logger   *slog.Logger
	UserID   int64
	// RetentionDays bounds how many past days of intervals are loaded. Zero
	// loads everything.
	RetentionDays int
}

type Controller struct {
	mu       sync.Mutex
	ws       model.Workspace
	store    *intervals.Store
	register *session.Register
	repo     Repository
	backend  Backend
	writes   persist.Scheduler
	now      func() time.Time
	newID    func() string
	loc      *time.Location
	log      *slog.Logger
	userID   int64
	retain   int

	ready   bool
	syncing bool
	phases  map[string]Phase

	subMu sync.Mutex
	subs  []chan Event
}

func New(cfg Config) *Controller {
	c := &Controller{
		repo:    cfg.Repo,
		backend: cfg.Backend,
		writes:  cfg.Writes,
		now:     cfg.Now,
		newID:   cfg.NewID,
		loc:     cfg.Location,
		log:     cfg.Logger,
		userID:  cfg.UserID,
		retain:  cfg.RetentionDays,
		phases:  make(map[string]Phase),
		store:   intervals.NewStore(),
	}
	if c.log == nil {
		c.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.writes == nil {
		c.writes = persist.Sync{Log: c.log}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	var port session.Port
	if c.repo != nil {
		port = c.repo
	}
	c.register = session.NewRegister(port, c.writes, c.log)
	c.store.OnChange(c.persistInterval)
	return c
}

func (c *Controller) Location() *time.Location {
	return c.loc
}

func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *Controller) Syncing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncing
}

// Running returns the current session.
func (c *Controller) Running() (model.RunningSession, bool) {
	return c.register.Get()
}

func (c *Controller) Phase(timerID string) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phaseLocked(timerID)
}

func (c *Controller) phaseLocked(timerID string) Phase {
	if p, ok := c.phases[timerID]; ok {
		return p
	}
	if s, ok := c.register.Get(); ok && s.TimerID == timerID {
		return PhaseRunning
	}
	return PhaseIdle
}

// Snapshot is a read-only copy of the workspace with elapsed values computed
// at Now.
type Snapshot struct {
	Workspace model.Workspace
	Session   *model.RunningSession
	Phases    map[string]Phase
	Syncing   bool
	Now       int64
}

func (s Snapshot) PhaseOf(timerID string) Phase {
	if p, ok := s.Phases[timerID]; ok {
		return p
	}
	return PhaseIdle
}

// Snapshot never mutates controller state, so the UI may call it on every tick.
func (c *Controller) Snapshot(now time.Time) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	at := model.Millis(now)
	out := Snapshot{
		Workspace: c.ws.Clone(),
		Phases:    make(map[string]Phase),
		Syncing:   c.syncing,
		Now:       at,
	}
	sess, running := c.register.Get()
	if running {
		out.Session = &sess
	}
	for gi := range out.Workspace.Groups {
		for ti := range out.Workspace.Groups[gi].Timers {
			t := &out.Workspace.Groups[gi].Timers[ti]
			t.Elapsed = c.computeLocked(*t, out.Session, at)
			out.Phases[t.ID] = c.phaseLocked(t.ID)
		}
	}
	return out
}

// Elapsed returns the elapsed seconds of one timer at now.
func (c *Controller) Elapsed(timerID string, now time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gi, ti, ok := c.ws.FindTimer(timerID)
	if !ok {
		return 0, model.ErrNotFound
	}
	var sp *model.RunningSession
	if s, ok := c.register.Get(); ok {
		sp = &s
	}
	return c.computeLocked(c.ws.Groups[gi].Timers[ti], sp, model.Millis(now)), nil
}

func (c *Controller) nowMillis() int64 {
	return model.Millis(c.now())
}

func (c *Controller) beginSync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return ErrNotReady
	}
	if c.syncing {
		return ErrSyncInProgress
	}
	c.syncing = true
	return nil
}

func (c *Controller) endSync() {
	c.mu.Lock()
	c.syncing = false
	c.mu.Unlock()
}

func (c *Controller) requireReadyLocked() error {
	if !c.ready {
		return ErrNotReady
	}
	return nil
}

// scopeLocked is the day whose intervals count toward a timer's elapsed time:
// the backend record's active date, or today for drafts.
func (c *Controller) scopeLocked(t model.Timer, now int64) model.DateRange {
	if conf, ok := t.Confirmed(); ok && conf.ActiveDate != "" {
		if r, err := model.DayRange(conf.ActiveDate, c.loc); err == nil {
			return r
		}
	}
	return model.DayRangeAt(now, c.loc)
}

func (c *Controller) computeLocked(t model.Timer, s *model.RunningSession, now int64) int64 {
	scope := c.scopeLocked(t, now)
	return elapsed.Compute(t.ID, c.store.Query(t.ID, &scope), s, t.Baseline, now)
}

// baselineLocked converts a backend total into the part not covered by local
// closed intervals in the timer's scope.
func (c *Controller) baselineLocked(t model.Timer, total, now int64) int64 {
	scope := c.scopeLocked(t, now)
	return total - elapsed.ClosedSeconds(t.ID, c.store.Query(t.ID, &scope))
}

func (c *Controller) recomputeLocked(now int64) {
	var sp *model.RunningSession
	if s, ok := c.register.Get(); ok {
		sp = &s
	}
	for gi := range c.ws.Groups {
		for ti := range c.ws.Groups[gi].Timers {
			t := &c.ws.Groups[gi].Timers[ti]
			t.Elapsed = c.computeLocked(*t, sp, now)
		}
	}
}

func (c *Controller) timerLocked(timerID string) *model.Timer {
	gi, ti, ok := c.ws.FindTimer(timerID)
	if !ok {
		return nil
	}
	return &c.ws.Groups[gi].Timers[ti]
}

func (c *Controller) lookupLocked(groupID, timerID string) (model.Group, model.Timer, error) {
	gi, ok := c.ws.FindGroup(groupID)
	if !ok {
		return model.Group{}, model.Timer{}, model.NewValidationError("group", "project group not found")
	}
	for _, t := range c.ws.Groups[gi].Timers {
		if t.ID == timerID {
			return c.ws.Groups[gi], t, nil
		}
	}
	return model.Group{}, model.Timer{}, model.NewValidationError("timer", "timer not found")
}

func (c *Controller) saveWorkspaceLocked() {
	if c.repo == nil {
		return
	}
	ws := c.ws.Clone()
	c.writes.Schedule("workspace", func(ctx context.Context) error {
		return c.repo.SaveWorkspace(ctx, ws)
	})
}

func (c *Controller) persistInterval(ch intervals.Change) {
	if c.repo == nil {
		return
	}
	iv := ch.Interval
	key := "interval:" + iv.ID
	switch ch.Kind {
	case intervals.ChangeUpsert:
		c.writes.Schedule(key, func(ctx context.Context) error {
			return c.repo.UpsertInterval(ctx, iv)
		})
	case intervals.ChangeRemove:
		c.writes.Schedule(key, func(ctx context.Context) error {
			if err := c.repo.DeleteInterval(ctx, iv.ID); err != nil && !errors.Is(err, model.ErrNotFound) {
				return err
			}
			return nil
		})
	}
}
