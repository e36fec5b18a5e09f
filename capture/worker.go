package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mobile-next/mobilecv/utils"
)

var (
	errWorkerTimeout = errors.New("worker timed out")

	// ErrWorkerClosed is returned by Do after Close.
	ErrWorkerClosed = errors.New("capture worker closed")
)

type captureResult struct {
	capture *Capture
	err     error
}

// Worker runs capture jobs one at a time on a dedicated goroutine. A job that
// outlives the timeout causes the goroutine to be abandoned and replaced.
type Worker struct {
	name    string
	timeout time.Duration

	mu   sync.Mutex
	jobs chan func()
	quit chan struct{}

	replacements int
	closed       bool
}

func NewWorker(name string, timeout time.Duration) *Worker {
	w := &Worker{name: name, timeout: timeout}
	w.start()
	return w
}

func (w *Worker) start() {
	jobs := make(chan func())
	quit := make(chan struct{})
	w.jobs = jobs
	w.quit = quit

	go func() {
		for {
			select {
			case job := <-jobs:
				job()
			case <-quit:
				return
			}
		}
	}()
}

func (w *Worker) replace() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	close(w.quit)
	w.replacements++
	w.start()
	utils.Warn("capture worker %s timed out after %v, replaced (%d so far)", w.name, w.timeout, w.replacements)
}

// Replacements returns how many times the worker goroutine was replaced.
func (w *Worker) Replacements() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.replacements
}

// Do runs fn on the worker. On timeout the worker is replaced and fn is
// retried once; a second timeout returns ErrCaptureTimeout.
func (w *Worker) Do(ctx context.Context, fn func(ctx context.Context) (*Capture, error)) (*Capture, error) {
	for attempt := 0; attempt < 2; attempt++ {
		capture, err := w.submit(ctx, fn)
		if errors.Is(err, errWorkerTimeout) {
			w.replace()
			continue
		}
		return capture, err
	}
	return nil, ErrCaptureTimeout
}

func (w *Worker) submit(ctx context.Context, fn func(ctx context.Context) (*Capture, error)) (*Capture, error) {
	w.mu.Lock()
	jobs, quit, closed := w.jobs, w.quit, w.closed
	w.mu.Unlock()

	if closed {
		return nil, ErrWorkerClosed
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	results := make(chan captureResult, 1)
	job := func() {
		capture, err := fn(jobCtx)
		results <- captureResult{capture: capture, err: err}
	}

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	select {
	case jobs <- job:
	case <-quit:
		return nil, errWorkerTimeout
	case <-timer.C:
		return nil, errWorkerTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-results:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, errWorkerTimeout
		}
		return res.capture, res.err
	case <-timer.C:
		return nil, errWorkerTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the worker goroutine once its current job returns.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		w.closed = true
		close(w.quit)
	}
}
