package tracker

import (
	"context"
	"fmt"

	"github.com/sandeepkv93/multitimer/internal/backend"
	"github.com/sandeepkv93/multitimer/internal/model"
	"github.com/sandeepkv93/multitimer/internal/saga"
)

type timerState struct {
	backing  model.Backing
	baseline int64
}

// Start starts timerID. A different running timer is stopped first at the
// same instant; if that stop fails nothing is started. Starting the running
// timer again does nothing.
func (c *Controller) Start(ctx context.Context, groupID, timerID string) error {
	if err := c.beginSync(); err != nil {
		return err
	}
	defer c.endSync()

	c.mu.Lock()
	_, _, err := c.startTargetLocked(groupID, timerID)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	at := c.nowMillis()
	if s, ok := c.register.Get(); ok {
		if s.TimerID == timerID {
			return nil
		}
		if err := c.stop(ctx, s, at); err != nil {
			return fmt.Errorf("stop running timer: %w", err)
		}
	}
	return c.start(ctx, groupID, timerID, at)
}

// Stop stops the running timer.
func (c *Controller) Stop(ctx context.Context) error {
	if err := c.beginSync(); err != nil {
		return err
	}
	defer c.endSync()

	s, ok := c.register.Get()
	if !ok {
		return ErrNotRunning
	}
	return c.stop(ctx, s, c.nowMillis())
}

// Toggle stops timerID if it is running and starts it otherwise.
func (c *Controller) Toggle(ctx context.Context, groupID, timerID string) error {
	if s, ok := c.register.Get(); ok && s.TimerID == timerID {
		return c.Stop(ctx)
	}
	return c.Start(ctx, groupID, timerID)
}

func (c *Controller) startTargetLocked(groupID, timerID string) (model.Group, model.Timer, error) {
	group, timer, err := c.lookupLocked(groupID, timerID)
	if err != nil {
		return model.Group{}, model.Timer{}, err
	}
	if group.ProjectID == "" {
		return model.Group{}, model.Timer{}, model.NewValidationError("project", "select a project before starting the timer")
	}
	if timer.TaskID == "" {
		return model.Group{}, model.Timer{}, model.NewValidationError("task", "select a task before starting the timer")
	}
	if conf, ok := timer.Confirmed(); ok && conf.Synced {
		return model.Group{}, model.Timer{}, model.NewValidationError("timer", "this timer has already been synced and cannot be restarted")
	}
	return group, timer, nil
}

func (c *Controller) start(ctx context.Context, groupID, timerID string, at int64) error {
	c.mu.Lock()
	group, timer, err := c.startTargetLocked(groupID, timerID)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	prev := timerState{backing: timer.Backing, baseline: timer.Baseline}
	iv := model.Interval{ID: c.newID(), TimerID: timerID, GroupID: groupID, StartTime: at}
	sess := model.RunningSession{TimerID: timerID, GroupID: groupID, EventID: iv.ID, StartTime: at}

	tx := saga.Begin()
	if err := tx.Apply(saga.Step{
		Name:   "open interval",
		Apply:  func() error { return c.store.Append(iv) },
		Revert: func() { _, _ = c.store.Remove(iv.ID) },
	}); err != nil {
		c.mu.Unlock()
		return err
	}
	_ = tx.Apply(saga.Step{
		Name:   "set session",
		Apply:  func() error { c.register.Set(sess); return nil },
		Revert: c.register.Clear,
	})
	c.phases[timerID] = PhaseStarting
	c.recomputeLocked(at)

	today := model.LocalDate(at, c.loc)
	conf, confirmed := timer.Confirmed()
	resume := confirmed && conf.ActiveDate == today
	req := backend.StartTimerRequest{
		UserID:    c.userID,
		ProjectID: group.ProjectID,
		TaskID:    timer.TaskID,
		Notes:     timer.Notes,
		StartTime: at,
	}
	c.mu.Unlock()

	var resp backend.Timer
	if resume {
		resp, err = c.backend.ResumeTimer(ctx, conf.BackendID, at)
	} else {
		resp, err = c.backend.StartTimer(ctx, req)
		if err == nil && resp.ID == 0 {
			err = &backend.NetworkError{Op: "start timer", Err: backend.ErrMissingID}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.phases, timerID)
	now := max(c.nowMillis(), at)

	if err != nil {
		tx.Rollback()
		c.restoreTimerLocked(timerID, prev)
		c.recomputeLocked(now)
		c.log.Warn("timer start rolled back", "timer", timerID, "resume", resume, "err", err)
		c.emit(Event{Type: EventRolledBack, TimerID: timerID, IntervalID: iv.ID, At: at, Err: err})
		return err
	}

	_ = tx.Commit(func() error {
		t := c.timerLocked(timerID)
		if t == nil {
			return nil
		}
		backendID := resp.ID
		if backendID == 0 && resume {
			backendID = conf.BackendID
		}
		date := resp.ActiveDate
		if date == "" {
			date = today
		}
		t.Backing = model.Confirmed{BackendID: backendID, ActiveDate: date, Synced: resp.Synced}
		switch {
		case resp.TotalDuration != nil:
			t.Baseline = c.baselineLocked(*t, *resp.TotalDuration, now)
		case !resume:
			t.Baseline = 0
		}
		_ = c.store.SetBackendIDs(iv.ID, &backendID, nil)
		return nil
	})
	c.recomputeLocked(now)
	c.saveWorkspaceLocked()
	c.log.Info("timer started", "timer", timerID, "backend_id", resp.ID, "resume", resume)
	c.emit(Event{Type: EventStarted, TimerID: timerID, IntervalID: iv.ID, At: at})
	return nil
}

func (c *Controller) stop(ctx context.Context, s model.RunningSession, at int64) error {
	c.mu.Lock()
	iv, ok := c.store.Get(s.EventID)
	if !ok || !iv.IsOpen() {
		c.register.Clear()
		c.recomputeLocked(at)
		c.mu.Unlock()
		c.log.Warn("running session had no open interval, cleared", "timer", s.TimerID, "event", s.EventID)
		return nil
	}

	end := max(at, iv.StartTime+1)
	tx := saga.Begin()
	if err := tx.Apply(saga.Step{
		Name:   "close interval",
		Apply:  func() error { return c.store.Close(iv.ID, end) },
		Revert: func() { _ = c.store.Reopen(iv.ID) },
	}); err != nil {
		c.mu.Unlock()
		return err
	}
	_ = tx.Apply(saga.Step{
		Name:   "clear session",
		Apply:  func() error { c.register.Clear(); return nil },
		Revert: func() { c.register.Set(s) },
	})

	var backendID int64
	var confirmed bool
	var prev timerState
	if t := c.timerLocked(s.TimerID); t != nil {
		backendID, confirmed = t.BackendID()
		prev = timerState{backing: t.Backing, baseline: t.Baseline}
	}
	if !confirmed {
		_ = tx.Commit(nil)
		c.recomputeLocked(end)
		c.saveWorkspaceLocked()
		c.mu.Unlock()
		c.log.Info("timer stopped locally", "timer", s.TimerID)
		c.emit(Event{Type: EventStopped, TimerID: s.TimerID, IntervalID: iv.ID, At: end})
		return nil
	}
	c.phases[s.TimerID] = PhaseStopping
	c.recomputeLocked(end)
	c.mu.Unlock()

	resp, err := c.backend.StopTimer(ctx, backendID, end)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.phases, s.TimerID)
	now := max(c.nowMillis(), end)

	if err != nil {
		tx.Rollback()
		c.restoreTimerLocked(s.TimerID, prev)
		c.recomputeLocked(now)
		c.log.Warn("timer stop rolled back", "timer", s.TimerID, "err", err)
		c.emit(Event{Type: EventRolledBack, TimerID: s.TimerID, IntervalID: iv.ID, At: end, Err: err})
		return err
	}

	_ = tx.Commit(func() error {
		t := c.timerLocked(s.TimerID)
		if t == nil {
			return nil
		}
		conf, _ := t.Confirmed()
		if resp.ActiveDate != "" {
			conf.ActiveDate = resp.ActiveDate
		}
		conf.Synced = resp.Synced
		t.Backing = conf
		if resp.TotalDuration != nil {
			t.Baseline = c.baselineLocked(*t, *resp.TotalDuration, now)
		}
		_ = c.store.SetBackendIDs(iv.ID, &backendID, nil)
		return nil
	})
	c.recomputeLocked(now)
	c.saveWorkspaceLocked()
	c.log.Info("timer stopped", "timer", s.TimerID, "backend_id", backendID)
	c.emit(Event{Type: EventStopped, TimerID: s.TimerID, IntervalID: iv.ID, At: end})
	return nil
}

func (c *Controller) restoreTimerLocked(timerID string, prev timerState) {
	t := c.timerLocked(timerID)
	if t == nil || prev.backing == nil {
		return
	}
	t.Backing = prev.backing
	t.Baseline = prev.baseline
}
