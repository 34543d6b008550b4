package tracker

import (
	"context"
	"errors"
	"slices"

	"github.com/sandeepkv93/multitimer/internal/intervals"
	"github.com/sandeepkv93/multitimer/internal/model"
	"github.com/sandeepkv93/multitimer/internal/storage"
)

// RehydrateReport lists what Rehydrate found and repaired.
type RehydrateReport struct {
	Defaulted     bool
	Intervals     int
	Resumed       string
	ClosedOrphans []string
	DroppedOpen   []string
	Recreated     string
}

// Rehydrate rebuilds state from storage. Operations return ErrNotReady until
// it has run. Storage failures degrade to an empty state and are logged.
func (c *Controller) Rehydrate(ctx context.Context) RehydrateReport {
	var report RehydrateReport
	now := c.nowMillis()

	var ws model.Workspace
	var items []model.Interval
	if c.repo != nil {
		loaded, err := c.repo.LoadWorkspace(ctx)
		if err != nil {
			c.log.Warn("workspace unreadable, starting fresh", "err", err)
		} else {
			ws = loaded
		}
		items, err = c.repo.ListIntervals(ctx, storage.IntervalListFilter{StartedSince: c.retentionStart(now)})
		if err != nil {
			c.log.Warn("intervals unreadable, starting without history", "err", err)
			items = nil
		}
	}
	if len(ws.Groups) == 0 {
		ws.Groups = []model.Group{c.defaultGroup(1)}
		report.Defaulted = true
	}
	for gi := range ws.Groups {
		if len(ws.Groups[gi].Timers) == 0 {
			ws.Groups[gi].Timers = []model.Timer{model.NewTimer(c.newID())}
			report.Defaulted = true
		}
	}

	sess, hasSession := c.register.Load(ctx)
	if hasSession && c.repo != nil && !containsInterval(items, sess.EventID) {
		// The session's interval can predate the retention window.
		iv, err := c.repo.GetInterval(ctx, sess.EventID)
		switch {
		case err == nil:
			items = slices.Insert(items, 0, iv)
		case !errors.Is(err, model.ErrNotFound):
			c.log.Warn("running session interval unreadable", "event", sess.EventID, "err", err)
		}
	}
	timerExists := false
	if hasSession {
		_, _, timerExists = ws.FindTimer(sess.TimerID)
	}

	kept := make([]model.Interval, 0, len(items))
	repaired := make([]model.Interval, 0)
	sessionIntervalOpen := false
	for _, iv := range items {
		if !iv.IsOpen() {
			kept = append(kept, iv)
			continue
		}
		switch {
		case hasSession && iv.ID == sess.EventID && timerExists:
			sessionIntervalOpen = true
			kept = append(kept, iv)
		case hasSession && iv.ID == sess.EventID:
			iv.EndTime = model.Int64(max(now, sess.StartTime+1, iv.StartTime+1))
			kept = append(kept, iv)
			repaired = append(repaired, iv)
			report.ClosedOrphans = append(report.ClosedOrphans, iv.ID)
		default:
			report.DroppedOpen = append(report.DroppedOpen, iv.ID)
		}
	}

	if hasSession && timerExists && !sessionIntervalOpen {
		if containsInterval(kept, sess.EventID) {
			hasSession = false
			c.register.Clear()
			c.log.Warn("running session pointed at a closed interval, discarded", "timer", sess.TimerID, "event", sess.EventID)
		} else {
			iv := model.Interval{ID: sess.EventID, TimerID: sess.TimerID, GroupID: sess.GroupID, StartTime: sess.StartTime}
			kept = append(kept, iv)
			repaired = append(repaired, iv)
			report.Recreated = iv.ID
		}
	}
	if hasSession && !timerExists {
		hasSession = false
		c.register.Clear()
		c.log.Warn("running session belonged to a removed timer, closed", "timer", sess.TimerID, "event", sess.EventID)
	}
	if hasSession {
		report.Resumed = sess.TimerID
	}

	if err := c.store.Load(kept); err != nil {
		c.log.Error("interval log inconsistent, starting without history", "err", err)
		kept = nil
		_ = c.store.Load(nil)
	}
	report.Intervals = len(kept)

	for _, iv := range repaired {
		c.persistInterval(upsert(iv))
	}
	for _, id := range report.DroppedOpen {
		c.log.Warn("dropping open interval without a running session", "interval", id)
		c.persistInterval(removal(id))
	}

	c.mu.Lock()
	c.ws = ws
	c.ready = true
	c.phases = make(map[string]Phase)
	c.recomputeLocked(now)
	if report.Defaulted {
		c.saveWorkspaceLocked()
	}
	c.mu.Unlock()

	c.log.Info("state rehydrated",
		"groups", len(ws.Groups),
		"intervals", report.Intervals,
		"running", report.Resumed,
		"closed_orphans", len(report.ClosedOrphans),
		"dropped_open", len(report.DroppedOpen),
	)
	return report
}

// RefreshFromBackend adopts the backend's totals for today's idle confirmed
// timers. Transitions are refused with ErrSyncInProgress while it runs.
func (c *Controller) RefreshFromBackend(ctx context.Context) error {
	if err := c.beginSync(); err != nil {
		return err
	}
	defer c.endSync()
	if c.userID <= 0 {
		return nil
	}

	today := model.LocalDate(c.nowMillis(), c.loc)
	records, err := c.backend.ListTimers(ctx, c.userID, today)
	if err != nil {
		return err
	}
	byID := make(map[int64]int, len(records))
	for i, r := range records {
		byID[r.ID] = i
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowMillis()
	changed := false
	for gi := range c.ws.Groups {
		for ti := range c.ws.Groups[gi].Timers {
			t := &c.ws.Groups[gi].Timers[ti]
			conf, ok := t.Confirmed()
			if !ok || conf.ActiveDate != today || c.phaseLocked(t.ID) != PhaseIdle {
				continue
			}
			i, found := byID[conf.BackendID]
			if !found {
				continue
			}
			rec := records[i]
			conf.Synced = rec.Synced
			t.Backing = conf
			if rec.TotalDuration != nil {
				t.Baseline = c.baselineLocked(*t, *rec.TotalDuration, now)
			}
			changed = true
		}
	}
	if changed {
		c.recomputeLocked(now)
		c.saveWorkspaceLocked()
	}
	return nil
}

func (c *Controller) retentionStart(now int64) int64 {
	if c.retain <= 0 {
		return 0
	}
	day := model.FromMillis(model.DayRangeAt(now, c.loc).From).In(c.loc)
	return day.AddDate(0, 0, -c.retain).UnixMilli()
}

func containsInterval(items []model.Interval, id string) bool {
	for _, iv := range items {
		if iv.ID == id {
			return true
		}
	}
	return false
}

func upsert(iv model.Interval) intervals.Change {
	return intervals.Change{Kind: intervals.ChangeUpsert, Interval: iv}
}

func removal(id string) intervals.Change {
	return intervals.Change{Kind: intervals.ChangeRemove, Interval: model.Interval{ID: id}}
}
