package tracker

import (
	"context"

	"github.com/sandeepkv93/multitimer/internal/backend"
	"github.com/sandeepkv93/multitimer/internal/model"
)

// AddManualEntry records a finished block of work on a timer that is not
// running. The interval exists locally only after the backend accepted it.
func (c *Controller) AddManualEntry(ctx context.Context, groupID, timerID string, start, end int64) (model.Interval, error) {
	if err := c.beginSync(); err != nil {
		return model.Interval{}, err
	}
	defer c.endSync()

	c.mu.Lock()
	group, timer, err := c.lookupLocked(groupID, timerID)
	if err == nil {
		err = c.validateEntryLocked(group, timer, start, end)
	}
	if err != nil {
		c.mu.Unlock()
		return model.Interval{}, err
	}
	entryDate := model.LocalDate(start, c.loc)
	conf, confirmed := timer.Confirmed()
	c.mu.Unlock()

	backendTimerID := conf.BackendID
	var record *backend.Timer
	if !confirmed || conf.ActiveDate != entryDate {
		rec, err := c.backendTimerFor(ctx, group.ProjectID, timer.TaskID, timer.Notes, entryDate)
		if err != nil {
			return model.Interval{}, err
		}
		record = &rec
		backendTimerID = rec.ID
	}

	created, err := c.backend.CreateInterval(ctx, backend.CreateIntervalRequest{
		TimerID:   backendTimerID,
		StartTime: start,
		EndTime:   end,
		Duration:  (end - start) / 1000,
	})
	if err == nil && created.ID == 0 {
		err = &backend.NetworkError{Op: "create interval", Err: backend.ErrMissingID}
	}
	if err != nil {
		return model.Interval{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowMillis()
	iv := model.Interval{
		ID:                c.newID(),
		TimerID:           timerID,
		GroupID:           groupID,
		StartTime:         start,
		EndTime:           model.Int64(end),
		BackendTimerID:    model.Int64(backendTimerID),
		BackendIntervalID: model.Int64(created.ID),
	}
	if t := c.timerLocked(timerID); t != nil && record != nil && adoptsRecord(*t, entryDate) {
		t.Backing = model.Confirmed{BackendID: record.ID, ActiveDate: entryDate, Synced: record.Synced}
		var total int64
		if record.TotalDuration != nil {
			total = *record.TotalDuration
		}
		t.Baseline = c.baselineLocked(*t, total, now)
	}
	if err := c.store.Append(iv); err != nil {
		return model.Interval{}, err
	}
	c.recomputeLocked(now)
	c.saveWorkspaceLocked()
	c.emit(Event{Type: EventIntervalAdded, TimerID: timerID, IntervalID: iv.ID, At: now})
	return iv, nil
}

// EditInterval changes the bounds of a closed interval. Intervals the backend
// knows by id are replaced there first; intervals of draft timers change
// locally only.
func (c *Controller) EditInterval(ctx context.Context, intervalID string, start, end int64) (model.Interval, error) {
	if err := c.beginSync(); err != nil {
		return model.Interval{}, err
	}
	defer c.endSync()

	c.mu.Lock()
	iv, err := c.closedIntervalLocked(intervalID, "edit")
	if err == nil {
		err = model.ValidateManualEntry(start, end, c.nowMillis())
	}
	c.mu.Unlock()
	if err != nil {
		return model.Interval{}, err
	}

	var replacement *int64
	if iv.BackendIntervalID != nil && iv.BackendTimerID != nil {
		created, err := c.backend.CreateInterval(ctx, backend.CreateIntervalRequest{
			TimerID:   *iv.BackendTimerID,
			StartTime: start,
			EndTime:   end,
			Duration:  (end - start) / 1000,
		})
		if err == nil && created.ID == 0 {
			err = &backend.NetworkError{Op: "create interval", Err: backend.ErrMissingID}
		}
		if err != nil {
			return model.Interval{}, err
		}
		if err := c.backend.DeleteInterval(ctx, *iv.BackendIntervalID); err != nil {
			if undoErr := c.backend.DeleteInterval(ctx, created.ID); undoErr != nil {
				c.log.Error("backend interval left behind after failed edit", "backend_interval_id", created.ID, "err", undoErr)
			}
			return model.Interval{}, err
		}
		replacement = model.Int64(created.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.UpdateBounds(intervalID, start, end); err != nil {
		return model.Interval{}, err
	}
	if replacement != nil {
		_ = c.store.SetBackendIDs(intervalID, nil, replacement)
	}
	now := c.nowMillis()
	c.recomputeLocked(now)
	updated, _ := c.store.Get(intervalID)
	c.emit(Event{Type: EventIntervalEdited, TimerID: updated.TimerID, IntervalID: intervalID, At: now})
	return updated, nil
}

// DeleteInterval removes a closed interval. When the backend refuses, the
// interval is kept. Only draft timers' intervals are removed without a backend
// call.
func (c *Controller) DeleteInterval(ctx context.Context, intervalID string) error {
	if err := c.beginSync(); err != nil {
		return err
	}
	defer c.endSync()

	c.mu.Lock()
	iv, err := c.closedIntervalLocked(intervalID, "delete")
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if iv.BackendIntervalID != nil {
		if err := c.backend.DeleteInterval(ctx, *iv.BackendIntervalID); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.store.Remove(intervalID); err != nil {
		return err
	}
	now := c.nowMillis()
	c.recomputeLocked(now)
	c.emit(Event{Type: EventIntervalRemoved, TimerID: iv.TimerID, IntervalID: intervalID, At: now})
	return nil
}

// History lists a timer's intervals that started on date.
func (c *Controller) History(timerID, date string) ([]model.Interval, error) {
	r, err := model.DayRange(date, c.loc)
	if err != nil {
		return nil, model.NewValidationError("date", "use YYYY-MM-DD")
	}
	out := make([]model.Interval, 0)
	for iv := range c.store.Query(timerID, &r) {
		out = append(out, iv)
	}
	return out, nil
}

func (c *Controller) validateEntryLocked(group model.Group, timer model.Timer, start, end int64) error {
	if s, ok := c.register.Get(); ok && s.TimerID == timer.ID {
		return model.NewValidationError("timer", "stop the timer before adding time entries")
	}
	if group.ProjectID == "" {
		return model.NewValidationError("project", "select a project before adding time")
	}
	if timer.TaskID == "" {
		return model.NewValidationError("task", "select a task before adding time")
	}
	return model.ValidateManualEntry(start, end, c.nowMillis())
}

func (c *Controller) closedIntervalLocked(intervalID, action string) (model.Interval, error) {
	iv, ok := c.store.Get(intervalID)
	if !ok {
		return model.Interval{}, model.ErrNotFound
	}
	if iv.IsOpen() {
		return model.Interval{}, model.NewValidationError("interval", "stop the timer before you "+action+" its running entry")
	}
	// Time the backend counts but cannot address by id stays as recorded.
	if iv.BackendIntervalID == nil {
		confirmed := iv.BackendTimerID != nil
		if t := c.timerLocked(iv.TimerID); t != nil && !t.IsDraft() {
			confirmed = true
		}
		if confirmed {
			return model.Interval{}, model.NewValidationError("interval", "this entry is already on the timer service and cannot be changed here")
		}
	}
	return iv, nil
}

// backendTimerFor finds the backend record for project, task and date, and
// creates one when none exists.
func (c *Controller) backendTimerFor(ctx context.Context, projectID, taskID, notes, date string) (backend.Timer, error) {
	if c.userID > 0 {
		existing, err := c.backend.ListTimers(ctx, c.userID, date)
		if err != nil {
			return backend.Timer{}, err
		}
		for _, t := range existing {
			if t.ID != 0 && t.ProjectID == projectID && t.TaskID == taskID && !t.Synced && (t.ActiveDate == "" || t.ActiveDate == date) {
				return t, nil
			}
		}
	}
	created, err := c.backend.CreateTimer(ctx, backend.CreateTimerRequest{
		ProjectID:  projectID,
		TaskID:     taskID,
		Notes:      notes,
		ActiveDate: date,
	})
	if err != nil {
		return backend.Timer{}, err
	}
	if created.ID == 0 {
		return backend.Timer{}, &backend.NetworkError{Op: "create timer", Err: backend.ErrMissingID}
	}
	if created.ActiveDate == "" {
		created.ActiveDate = date
	}
	return created, nil
}

// adoptsRecord reports whether a timer should switch to a backend record for
// date: drafts always do, confirmed timers only move forward in time.
func adoptsRecord(t model.Timer, date string) bool {
	conf, ok := t.Confirmed()
	return !ok || date > conf.ActiveDate
}
