// Package persist runs local storage writes behind the caller so that state
// mutations never wait on disk.
package persist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

var ErrWriterStopped = errors.New("persist: writer stopped")

// Job performs one write.
type Job func(ctx context.Context) error

// Scheduler accepts fire-and-forget writes. A job scheduled under a key that is
// still pending replaces the pending job.
type Scheduler interface {
	Schedule(key string, job Job)
}

// Writer executes jobs on one goroutine in the order their keys were first
// scheduled. Failures are logged and counted; they never reach the caller.
type Writer struct {
	mu      sync.Mutex
	order   []string
	pending map[string]Job
	wakeup  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	seq     uint64
	failed  uint64
	timeout time.Duration
	log     *slog.Logger
}

func NewWriter(log *slog.Logger, timeout time.Duration) *Writer {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Writer{
		pending: make(map[string]Job),
		wakeup:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		timeout: timeout,
		log:     log,
	}
}

func (w *Writer) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.loop()
}

// Stop runs every pending job and then stops the loop.
func (w *Writer) Stop() {
	w.mu.Lock()
	if !w.started || w.stopped {
		w.stopped = true
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()
	<-w.doneCh
}

func (w *Writer) Schedule(key string, job Job) {
	if job == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		w.log.Warn("persist write dropped after stop", "key", key)
		return
	}
	if _, ok := w.pending[key]; !ok {
		w.order = append(w.order, key)
	}
	w.pending[key] = job
	w.signalWakeup()
}

// Flush waits until every job scheduled before the call has run. Without a
// running loop the jobs run on the caller's goroutine.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrWriterStopped
	}
	if !w.started {
		w.mu.Unlock()
		for {
			key, job, ok := w.next()
			if !ok {
				return nil
			}
			w.run(key, job)
		}
	}
	w.seq++
	key := "flush#" + strconv.FormatUint(w.seq, 10)
	done := make(chan struct{})
	w.order = append(w.order, key)
	w.pending[key] = func(context.Context) error {
		close(done)
		return nil
	}
	w.signalWakeup()
	w.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) Failed() uint64 {
	return atomic.LoadUint64(&w.failed)
}

func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}

func (w *Writer) loop() {
	defer close(w.doneCh)
	for {
		key, job, ok := w.next()
		if ok {
			w.run(key, job)
			continue
		}
		select {
		case <-w.wakeup:
		case <-w.stopCh:
			for {
				key, job, ok := w.next()
				if !ok {
					return
				}
				w.run(key, job)
			}
		}
	}
}

func (w *Writer) next() (string, Job, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.order) == 0 {
		return "", nil, false
	}
	key := w.order[0]
	w.order = w.order[1:]
	job := w.pending[key]
	delete(w.pending, key)
	return key, job, true
}

func (w *Writer) run(key string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := job(ctx); err != nil {
		atomic.AddUint64(&w.failed, 1)
		w.log.Error("persist write failed", "key", key, "err", err)
	}
}

func (w *Writer) signalWakeup() {
	select {
	case w.wakeup <- struct{}{}:
	default:
	}
}

// Sync runs every job immediately on the caller's goroutine.
type Sync struct {
	Log *slog.Logger
}

func (s Sync) Schedule(key string, job Job) {
	if job == nil {
		return
	}
	if err := job(context.Background()); err != nil && s.Log != nil {
		s.Log.Error("persist write failed", "key", key, "err", err)
	}
}
