package tracker

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/sandeepkv93/multitimer/internal/backend"
	"github.com/sandeepkv93/multitimer/internal/model"
)

func TestStartThenStopConfirmsAndDerivesElapsed(t *testing.T) {
	h := readyHarness(t)
	ctx := t.Context()

	h.clock.Set(1000)
	if err := h.ctrl.Start(ctx, "g-1", "t-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.ctrl.Phase("t-1") != PhaseRunning {
		t.Fatalf("expected running phase, got %s", h.ctrl.Phase("t-1"))
	}
	if id, ok := h.timer(t, "t-1").BackendID(); !ok || id != 42 {
		t.Fatalf("expected backend id 42, got %d (%v)", id, ok)
	}

	h.clock.Set(61000)
	if err := h.ctrl.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	all := h.ctrl.store.All()
	if len(all) != 1 || all[0].StartTime != 1000 || all[0].EndTime == nil || *all[0].EndTime != 61000 {
		t.Fatalf("unexpected intervals: %#v", all)
	}
	if all[0].BackendTimerID == nil || *all[0].BackendTimerID != 42 {
		t.Fatalf("expected interval bound to backend timer 42: %#v", all[0])
	}
	timer := h.timer(t, "t-1")
	if timer.Elapsed != 60 {
		t.Fatalf("expected elapsed 60, got %d", timer.Elapsed)
	}
	if conf, _ := timer.Confirmed(); conf.BackendID != 42 || conf.ActiveDate != "1970-01-01" {
		t.Fatalf("unexpected backing: %#v", conf)
	}
	if _, running := h.ctrl.Running(); running {
		t.Fatal("expected no running session")
	}
	if h.repo.storedSession() != nil {
		t.Fatal("expected persisted session to be cleared")
	}
	if stored, ok := h.repo.storedInterval(all[0].ID); !ok || stored.EndTime == nil {
		t.Fatalf("expected closed interval to be persisted, got %#v", stored)
	}
	want := []string{"start:p-1/task-1@1000", "stop:42@61000"}
	if got := h.backend.Calls(); !slices.Equal(got, want) {
		t.Fatalf("unexpected backend calls: %v", got)
	}
}

func TestStartBackendFailureRollsBack(t *testing.T) {
	h := readyHarness(t)
	events := h.ctrl.Subscribe(4)
	h.backend.start = func(backend.StartTimerRequest) (backend.Timer, error) {
		return backend.Timer{}, &backend.BackendError{Message: "internal error", StatusCode: 500}
	}

	beforeIntervals := h.ctrl.store.All()
	beforeTimer := h.timer(t, "t-1")

	h.clock.Set(1000)
	err := h.ctrl.Start(t.Context(), "g-1", "t-1")
	var berr *backend.BackendError
	if !errors.As(err, &berr) || berr.StatusCode != 500 {
		t.Fatalf("expected BackendError 500, got %v", err)
	}

	if _, running := h.ctrl.Running(); running {
		t.Fatal("expected no running session after rollback")
	}
	if got := h.ctrl.store.All(); !reflect.DeepEqual(got, beforeIntervals) {
		t.Fatalf("interval store changed: %#v", got)
	}
	after := h.timer(t, "t-1")
	if !reflect.DeepEqual(after, beforeTimer) || !after.IsDraft() {
		t.Fatalf("timer changed: before %#v after %#v", beforeTimer, after)
	}
	if h.repo.storedSession() != nil {
		t.Fatal("persisted session must be cleared after rollback")
	}
	if h.ctrl.Phase("t-1") != PhaseIdle {
		t.Fatalf("expected idle phase, got %s", h.ctrl.Phase("t-1"))
	}

	ev := <-events
	if ev.Type != EventRolledBack || ev.TimerID != "t-1" || ev.Err == nil {
		t.Fatalf("unexpected event: %#v", ev)
	}
}

func TestStartWithoutBackendIDRollsBack(t *testing.T) {
	h := readyHarness(t)
	h.backend.start = func(backend.StartTimerRequest) (backend.Timer, error) {
		return backend.Timer{Status: backend.StatusRunning}, nil
	}
	beforeTimer := h.timer(t, "t-1")

	err := h.ctrl.Start(t.Context(), "g-1", "t-1")
	var nerr *backend.NetworkError
	if !errors.As(err, &nerr) || !errors.Is(err, backend.ErrMissingID) {
		t.Fatalf("expected malformed-response network error, got %v", err)
	}
	if _, running := h.ctrl.Running(); running {
		t.Fatal("expected no running session")
	}
	if h.ctrl.store.Len() != 0 {
		t.Fatalf("expected no intervals, got %#v", h.ctrl.store.All())
	}
	if after := h.timer(t, "t-1"); !reflect.DeepEqual(after, beforeTimer) || !after.IsDraft() {
		t.Fatalf("timer must stay a draft, got %#v", after)
	}
}

func TestStopBackendFailureRestoresRunningState(t *testing.T) {
	h := readyHarness(t)
	ctx := t.Context()
	if err := h.ctrl.Start(ctx, "g-1", "t-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	session, _ := h.ctrl.Running()
	beforeIntervals := h.ctrl.store.All()

	h.backend.stop = func(int64, int64) (backend.Timer, error) {
		return backend.Timer{}, &backend.NetworkError{Op: "stop timer", Err: context.DeadlineExceeded}
	}
	h.clock.Set(30_000)
	err := h.ctrl.Stop(ctx)
	var nerr *backend.NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}

	got, running := h.ctrl.Running()
	if !running || got != session {
		t.Fatalf("expected session to be restored, got %#v (%v)", got, running)
	}
	if after := h.ctrl.store.All(); !reflect.DeepEqual(after, beforeIntervals) {
		t.Fatalf("interval store changed: %#v", after)
	}
	if stored := h.repo.storedSession(); stored == nil || *stored != session {
		t.Fatalf("expected persisted session to be restored, got %#v", stored)
	}
	if h.timer(t, "t-1").Elapsed != 29 {
		t.Fatalf("expected running elapsed 29, got %d", h.timer(t, "t-1").Elapsed)
	}
}

func TestStartStopsRunningTimerFirst(t *testing.T) {
	h := readyHarness(t)
	ctx := t.Context()
	events := h.ctrl.Subscribe(8)

	if err := h.ctrl.Start(ctx, "g-1", "t-1"); err != nil {
		t.Fatalf("start t-1: %v", err)
	}
	h.clock.Set(11_000)
	if err := h.ctrl.Start(ctx, "g-2", "t-3"); err != nil {
		t.Fatalf("start t-3: %v", err)
	}

	want := []string{"start:p-1/task-1@1000", "stop:42@11000", "start:p-2/task-3@11000"}
	if got := h.backend.Calls(); !slices.Equal(got, want) {
		t.Fatalf("unexpected call order: %v", got)
	}
	var types []EventType
	for range 3 {
		types = append(types, (<-events).Type)
	}
	if !slices.Equal(types, []EventType{EventStarted, EventStopped, EventStarted}) {
		t.Fatalf("unexpected events: %v", types)
	}

	s, _ := h.ctrl.Running()
	if s.TimerID != "t-3" || s.StartTime != 11_000 {
		t.Fatalf("unexpected session: %#v", s)
	}
	if h.openCount() != 1 {
		t.Fatalf("expected exactly one open interval, got %d", h.openCount())
	}
	if h.timer(t, "t-1").Elapsed != 10 {
		t.Fatalf("expected t-1 elapsed 10, got %d", h.timer(t, "t-1").Elapsed)
	}
}

func TestStartAbandonedWhenImplicitStopFails(t *testing.T) {
	h := readyHarness(t)
	ctx := t.Context()
	if err := h.ctrl.Start(ctx, "g-1", "t-1"); err != nil {
		t.Fatalf("start t-1: %v", err)
	}
	h.backend.stop = func(int64, int64) (backend.Timer, error) {
		return backend.Timer{}, &backend.BackendError{Message: "conflict", StatusCode: 409}
	}

	h.clock.Set(5000)
	err := h.ctrl.Start(ctx, "g-2", "t-3")
	var berr *backend.BackendError
	if !errors.As(err, &berr) {
		t.Fatalf("expected wrapped BackendError, got %v", err)
	}
	s, _ := h.ctrl.Running()
	if s.TimerID != "t-1" {
		t.Fatalf("expected t-1 to keep running, got %#v", s)
	}
	if !h.timer(t, "t-3").IsDraft() {
		t.Fatal("t-3 must not have been started")
	}
	for _, call := range h.backend.Calls() {
		if call == "start:p-2/task-3@5000" {
			t.Fatal("start must not be attempted after a failed stop")
		}
	}
}

func TestStartResumesSameDayAndCreatesOnNewDay(t *testing.T) {
	h := readyHarness(t)
	ctx := t.Context()

	if err := h.ctrl.Start(ctx, "g-1", "t-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Set(61_000)
	_ = h.ctrl.Stop(ctx)

	h.clock.Set(100_000)
	if err := h.ctrl.Start(ctx, "g-1", "t-1"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	h.clock.Set(130_000)
	_ = h.ctrl.Stop(ctx)
	if h.timer(t, "t-1").Elapsed != 90 {
		t.Fatalf("expected 90 seconds, got %d", h.timer(t, "t-1").Elapsed)
	}

	h.clock.Set(day + 1000)
	if h.timer(t, "t-1").Elapsed != 90 {
		t.Fatal("elapsed of a prior-day record must stay on its date")
	}
	if err := h.ctrl.Start(ctx, "g-1", "t-1"); err != nil {
		t.Fatalf("start next day: %v", err)
	}
	h.clock.Set(day + 11_000)
	_ = h.ctrl.Stop(ctx)

	calls := h.backend.Calls()
	if calls[2] != "resume:42@100000" {
		t.Fatalf("expected resume of record 42, got %v", calls)
	}
	if calls[4] != "start:p-1/task-1@86401000" {
		t.Fatalf("expected a new record on the next day, got %v", calls)
	}
	timer := h.timer(t, "t-1")
	conf, _ := timer.Confirmed()
	if conf.BackendID != 43 || conf.ActiveDate != "1970-01-02" {
		t.Fatalf("unexpected backing: %#v", conf)
	}
	if timer.Elapsed != 10 {
		t.Fatalf("expected only today's 10 seconds, got %d", timer.Elapsed)
	}
}

func TestBackendTotalsBecomeBaseline(t *testing.T) {
	h := readyHarness(t)
	ctx := t.Context()
	h.backend.start = func(backend.StartTimerRequest) (backend.Timer, error) {
		total := int64(300)
		return backend.Timer{ID: 42, ActiveDate: "1970-01-01", TotalDuration: &total}, nil
	}
	h.backend.stop = func(id, _ int64) (backend.Timer, error) {
		total := int64(361)
		return backend.Timer{ID: id, ActiveDate: "1970-01-01", TotalDuration: &total}, nil
	}

	if err := h.ctrl.Start(ctx, "g-1", "t-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Set(31_000)
	if got := h.timer(t, "t-1").Elapsed; got != 330 {
		t.Fatalf("expected 300 + 30 running, got %d", got)
	}
	h.clock.Set(61_000)
	if err := h.ctrl.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := h.timer(t, "t-1").Elapsed; got != 361 {
		t.Fatalf("expected the backend total, got %d", got)
	}
}

func TestStartValidation(t *testing.T) {
	h := newHarness(t)
	h.repo.ws.Groups[0].ProjectID = ""
	h.repo.ws.Groups[1].Timers[0].TaskID = ""
	h.repo.ws.Groups[1].Timers = append(h.repo.ws.Groups[1].Timers, model.Timer{
		ID: "t-synced", TaskID: "task-9", Backing: model.Confirmed{BackendID: 9, ActiveDate: "1970-01-01", Synced: true},
	})
	h.ctrl.Rehydrate(t.Context())

	cases := []struct {
		group, timer, field string
	}{
		{"g-1", "t-1", "project"},
		{"g-2", "t-3", "task"},
		{"g-2", "t-synced", "timer"},
		{"g-2", "missing", "timer"},
		{"missing", "t-1", "group"},
	}
	for _, tc := range cases {
		err := h.ctrl.Start(t.Context(), tc.group, tc.timer)
		var verr *model.ValidationError
		if !errors.As(err, &verr) || verr.Field != tc.field {
			t.Fatalf("start %s/%s: expected %s validation error, got %v", tc.group, tc.timer, tc.field, err)
		}
	}
	if len(h.backend.Calls()) != 0 || h.ctrl.store.Len() != 0 {
		t.Fatal("validation failures must not touch the backend or the store")
	}
}

func TestStartRunningTimerIsNoop(t *testing.T) {
	h := readyHarness(t)
	if err := h.ctrl.Start(t.Context(), "g-1", "t-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.ctrl.Start(t.Context(), "g-1", "t-1"); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if len(h.backend.Calls()) != 1 || h.ctrl.store.Len() != 1 {
		t.Fatalf("expected a single start, got calls %v", h.backend.Calls())
	}
}

func TestToggleAndStopWithoutSession(t *testing.T) {
	h := readyHarness(t)
	ctx := t.Context()
	if err := h.ctrl.Stop(ctx); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if err := h.ctrl.Toggle(ctx, "g-1", "t-2"); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	h.clock.Set(5000)
	if err := h.ctrl.Toggle(ctx, "g-1", "t-2"); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if _, running := h.ctrl.Running(); running {
		t.Fatal("expected toggle to stop the timer")
	}
}

func TestConcurrentTransitionIsDropped(t *testing.T) {
	h := readyHarness(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	h.backend.start = func(backend.StartTimerRequest) (backend.Timer, error) {
		close(entered)
		<-release
		return backend.Timer{ID: 42}, nil
	}

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Start(context.Background(), "g-1", "t-1") }()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("start never reached the backend")
	}

	if !h.ctrl.Syncing() || h.ctrl.Phase("t-1") != PhaseStarting {
		t.Fatalf("expected in-flight start, syncing=%v phase=%s", h.ctrl.Syncing(), h.ctrl.Phase("t-1"))
	}
	snap := h.ctrl.Snapshot(h.clock.Now())
	if !snap.Syncing || snap.PhaseOf("t-1") != PhaseStarting || snap.Session == nil {
		t.Fatalf("snapshot must reflect the optimistic start: %#v", snap)
	}
	if err := h.ctrl.Stop(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress for stop, got %v", err)
	}
	if err := h.ctrl.Start(context.Background(), "g-2", "t-3"); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress for start, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.ctrl.Syncing() {
		t.Fatal("expected sync flag to be cleared")
	}
	if got := h.backend.Calls(); len(got) != 1 {
		t.Fatalf("dropped requests must not reach the backend: %v", got)
	}
}

func TestNotReadyBeforeRehydrate(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	if err := h.ctrl.Start(ctx, "g-1", "t-1"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if _, err := h.ctrl.AddManualEntry(ctx, "g-1", "t-1", 0, 60_000); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if _, err := h.ctrl.AddGroup(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if h.ctrl.Ready() {
		t.Fatal("controller must not be ready")
	}
}

func TestSingleRunningTimerAcrossRandomSequence(t *testing.T) {
	h := readyHarness(t)
	ctx := t.Context()
	rng := rand.New(rand.NewSource(7))
	targets := [][2]string{{"g-1", "t-1"}, {"g-1", "t-2"}, {"g-2", "t-3"}}
	h.backend.start = func(backend.StartTimerRequest) (backend.Timer, error) {
		if rng.Intn(5) == 0 {
			return backend.Timer{}, &backend.BackendError{Message: "flaky", StatusCode: 503}
		}
		return backend.Timer{ID: 42}, nil
	}

	now := int64(1000)
	for i := 0; i < 200; i++ {
		now += int64(rng.Intn(5000) + 1)
		h.clock.Set(now)
		if rng.Intn(3) == 0 {
			_ = h.ctrl.Stop(ctx)
		} else {
			tgt := targets[rng.Intn(len(targets))]
			_ = h.ctrl.Start(ctx, tgt[0], tgt[1])
		}

		open := h.openCount()
		s, running := h.ctrl.Running()
		if open > 1 {
			t.Fatalf("step %d: %d open intervals", i, open)
		}
		if running != (open == 1) {
			t.Fatalf("step %d: session %v but %d open intervals", i, running, open)
		}
		if running {
			iv, ok := h.ctrl.store.Open()
			if !ok || iv.ID != s.EventID || iv.TimerID != s.TimerID {
				t.Fatalf("step %d: session %#v does not match open interval %#v", i, s, iv)
			}
		}
	}
}
