package output

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// ErrWorkerClosed reports a job submitted after Close.
var ErrWorkerClosed = errors.New("injection worker closed")

// Worker runs jobs one at a time on a single OS thread. Input APIs that
// require thread affinity (Win32 clipboard ownership, SendInput focus)
// see a stable thread.
type Worker struct {
	jobs chan workerJob
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

type workerJob struct {
	ctx    context.Context
	fn     func(ctx context.Context)
	result chan error
}

func NewWorker() *Worker {
	w := &Worker{
		jobs: make(chan workerJob),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	for {
		select {
		case <-w.quit:
			return
		case job := <-w.jobs:
			if err := job.ctx.Err(); err != nil {
				job.result <- err
				continue
			}
			// a started job runs to completion
			job.fn(context.WithoutCancel(job.ctx))
			job.result <- nil
		}
	}
}

// Do runs fn on the worker and waits for it. Cancellation of ctx only
// prevents a job that has not started.
func (w *Worker) Do(ctx context.Context, fn func(ctx context.Context)) error {
	job := workerJob{ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case w.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.quit:
		return ErrWorkerClosed
	}
	return <-job.result
}

// Close stops the worker after the running job, if any.
func (w *Worker) Close() {
	w.once.Do(func() { close(w.quit) })
	<-w.done
}
