package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Logger provides minimal logging required by the worker.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Handler processes one job. A returned error or a panic counts as a failed attempt.
type Handler func(ctx context.Context, job SaleJob) error

// WorkerOptions configure a Worker. Zero or negative values fall back to the defaults below.
type WorkerOptions struct {
	Concurrency     int
	LockDuration    time.Duration
	StalledInterval time.Duration
	// MaxStalledCount is how many stalls a job survives before it is dead.
	MaxStalledCount int
	PollTimeout     time.Duration
	PromoteInterval time.Duration
}

const (
	defaultConcurrency     = 4
	defaultLockDuration    = 30 * time.Second
	defaultStalledInterval = 30 * time.Second
	defaultMaxStalledCount = 2
	defaultPollTimeout     = 5 * time.Second
	defaultPromoteInterval = time.Second
	fetchErrorBackoff      = time.Second
)

func (o WorkerOptions) withDefaults() WorkerOptions {
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.LockDuration <= 0 {
		o.LockDuration = defaultLockDuration
	}
	if o.StalledInterval <= 0 {
		o.StalledInterval = defaultStalledInterval
	}
	if o.MaxStalledCount <= 0 {
		o.MaxStalledCount = defaultMaxStalledCount
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = defaultPollTimeout
	}
	if o.PromoteInterval <= 0 {
		o.PromoteInterval = defaultPromoteInterval
	}
	return o
}

// Worker runs a fixed pool of fetch loops plus one scheduler loop.
type Worker struct {
	queue   *Queue
	handler Handler
	opts    WorkerOptions
	logger  Logger
}

func NewWorker(q *Queue, handler Handler, opts WorkerOptions, logger Logger) *Worker {
	return &Worker{queue: q, handler: handler, opts: opts.withDefaults(), logger: logger}
}

// Run blocks until ctx is cancelled. Jobs already being processed run to completion.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Infof("worker: listening on queue %s with concurrency %d", w.queue.Name(), w.opts.Concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.opts.Concurrency; i++ {
		g.Go(func() error {
			w.loop(gctx)
			return nil
		})
	}
	g.Go(func() error {
		w.schedule(gctx)
		return nil
	})
	err := g.Wait()
	w.logger.Infof("worker: stopped")
	return err
}

func (w *Worker) loop(ctx context.Context) {
	for ctx.Err() == nil {
		job, err := w.queue.Fetch(ctx, w.opts.PollTimeout, w.opts.LockDuration)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Errorf("worker: fetch: %v", err)
			sleep(ctx, fetchErrorBackoff)
			continue
		}
		if job == nil {
			continue
		}
		w.process(ctx, job)
	}
}

// process is detached from shutdown: a job that started is finished and acknowledged.
func (w *Worker) process(parent context.Context, job *Job) {
	ctx := context.WithoutCancel(parent)
	start := time.Now()

	renewCtx, stopRenew := context.WithCancel(ctx)
	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		w.renewLock(renewCtx, job)
	}()

	err := w.call(ctx, job)
	stopRenew()
	<-renewed

	if err == nil {
		if cerr := w.queue.Complete(ctx, job); cerr != nil {
			w.logger.Errorf("worker: complete job %s: %v", job.ID, cerr)
			return
		}
		w.logger.Infof("worker: job %s finished in %dms", job.ID, time.Since(start).Milliseconds())
		return
	}

	res, ferr := w.queue.Fail(ctx, job, err)
	switch {
	case ferr != nil:
		w.logger.Errorf("worker: record failure of job %s: %v (cause: %v)", job.ID, ferr, err)
	case res.Retry:
		w.logger.Errorf("worker: job %s failed on attempt %d/%d, retrying in %dms: %v",
			job.ID, job.AttemptsMade+1, job.Attempts, res.Delay.Milliseconds(), err)
	default:
		w.logger.Errorf("worker: job %s failed after %d attempts, moved to dead: %v",
			job.ID, job.AttemptsMade+1, err)
	}
}

func (w *Worker) call(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.handler(ctx, job.Data)
}

func (w *Worker) renewLock(ctx context.Context, job *Job) {
	ticker := time.NewTicker(w.opts.LockDuration / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := w.queue.ExtendLock(ctx, job, w.opts.LockDuration)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					w.logger.Errorf("worker: extend lock of job %s: %v", job.ID, err)
				}
				continue
			}
			if !ok {
				w.logger.Errorf("worker: lost lock of job %s", job.ID)
				return
			}
		}
	}
}

// schedule promotes due delayed jobs and recovers stalled ones.
func (w *Worker) schedule(ctx context.Context) {
	promote := time.NewTicker(w.opts.PromoteInterval)
	defer promote.Stop()
	stalled := time.NewTicker(w.opts.StalledInterval)
	defer stalled.Stop()

	w.checkStalled(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-promote.C:
			if _, err := w.queue.Promote(ctx); err != nil && ctx.Err() == nil {
				w.logger.Errorf("worker: promote delayed jobs: %v", err)
			}
		case <-stalled.C:
			w.checkStalled(ctx)
		}
	}
}

func (w *Worker) checkStalled(ctx context.Context) {
	res, err := w.queue.CheckStalled(ctx, w.opts.MaxStalledCount)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Errorf("worker: stalled check: %v", err)
		}
		return
	}
	for _, id := range res.Requeued {
		w.logger.Errorf("worker: job %s stalled, moved back to wait", id)
	}
	for _, id := range res.Dead {
		w.logger.Errorf("worker: job %s %s, moved to dead", id, StalledJobReason)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
