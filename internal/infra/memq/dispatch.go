package memq

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"jobq/internal/domain"
	"jobq/pkg/backoff"
)

// pool is the set of channels shared by the dispatcher and workers of one run.
//
// The dispatcher takes a slot before selecting a job, so a job is only picked
// once a worker is free to run it and priority order holds at hand-off time.
type pool struct {
	slots chan struct{}
	work  chan *dispatched
}

type dispatched struct {
	job     domain.Job
	runID   uint64
	reg     domain.Registration
	release func()
}

type outcome struct {
	result any
	err    error
}

// Start launches the dispatcher, the worker goroutines and the delayed-job promoter.
//
// Cancelling ctx stops dispatching. Processors run on a context that only
// Stop aborts, so in-flight jobs can finish during a graceful stop.
func (q *Queue) Start(ctx context.Context) error {
	q.runMu.Lock()
	defer q.runMu.Unlock()
	if q.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	procCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	p := &pool{
		slots: make(chan struct{}, q.cfg.Workers),
		work:  make(chan *dispatched, q.cfg.Workers),
	}
	q.cancel = cancel
	q.abort = abort
	q.pool = p
	q.running = true

	q.wg.Add(1)
	go q.dispatch(ctx, p)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, procCtx, p)
	}

	promoter := NewPromoter(q, q.cfg.PromoteInterval)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		_ = promoter.Run(ctx)
	}()

	q.log.Info().
		Int("workers", q.cfg.Workers).
		Dur("promote_interval", q.cfg.PromoteInterval).
		Float64("dispatch_rate", q.cfg.DispatchRate).
		Strs("processors", q.registry.Names()).
		Msg("queue started")
	q.signal()
	return nil
}

// Stop stops dispatching and waits for running processors to return. When ctx
// expires first, the remaining runs are aborted and their jobs go back to
// pending without counting the attempt.
func (q *Queue) Stop(ctx context.Context) error {
	q.runMu.Lock()
	defer q.runMu.Unlock()
	if !q.running {
		return nil
	}
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("stop queue %s: %w", q.cfg.Name, ctx.Err())
		q.abort()
		// invoke returns as soon as its context is aborted.
		<-done
	}
	q.abort()

	// Hand-offs never picked up by a worker.
	for {
		select {
		case d := <-q.pool.work:
			q.requeue(d)
			continue
		default:
		}
		break
	}

	q.running = false
	q.pool = nil
	q.cancel = nil
	q.abort = nil
	if err != nil {
		q.log.Warn().Err(err).Msg("queue stop timed out, running jobs returned to pending")
		return err
	}
	q.log.Info().Msg("queue stopped")
	return nil
}

func (q *Queue) dispatch(ctx context.Context, p *pool) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case p.slots <- struct{}{}:
		}

		d, ok := q.waitNext(ctx)
		if !ok {
			<-p.slots
			return
		}

		select {
		case p.work <- d:
		case <-ctx.Done():
			q.requeue(d)
			<-p.slots
			return
		}
	}
}

// waitNext blocks until a runnable job is selected or ctx ends.
func (q *Queue) waitNext(ctx context.Context) (*dispatched, bool) {
	if q.limiter != nil {
		if err := q.limiter.Wait(ctx); err != nil {
			return nil, false
		}
	}
	for {
		d, drained := q.next()
		if drained {
			q.emit(domain.Event{Type: domain.EventDrained})
			q.log.Debug().Msg("queue drained")
		}
		if d != nil {
			return d, true
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-q.wake:
		}
	}
}

// next selects and claims the best pending job: lowest priority value, then
// oldest CreatedAt, then submission order. Jobs whose processor is missing or
// saturated are skipped. drained reports the transition to an empty backlog.
func (q *Queue) next() (d *dispatched, drained bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused {
		return nil, false
	}

	var candidates []*record
	for _, r := range q.jobs {
		if r.visible && r.job.Status == domain.StatusPending {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		if q.dispatchedSinceIdle {
			q.dispatchedSinceIdle = false
			return nil, true
		}
		return nil, false
	}

	slices.SortFunc(candidates, func(a, b *record) int {
		return cmp.Or(
			cmp.Compare(a.job.Priority.Value(), b.job.Priority.Value()),
			a.job.CreatedAt.Compare(b.job.CreatedAt),
			cmp.Compare(a.seq, b.seq),
		)
	})

	for _, r := range candidates {
		reg, release, ok := q.registry.TryAcquire(r.job.Name)
		if !ok {
			if !q.registry.Has(r.job.Name) && q.warnLimiter.Allow() {
				q.log.Warn().Str("job_id", r.job.ID).Str("name", r.job.Name).Msg("job waiting: no processor registered")
			}
			continue
		}

		now := time.Now()
		r.runID++
		r.job.Status = domain.StatusProcessing
		r.job.Attempts++
		r.job.StartedAt = &now
		q.dispatchedSinceIdle = true

		return &dispatched{job: r.job.Clone(), runID: r.runID, reg: reg, release: release}, false
	}
	return nil, false
}

func (q *Queue) worker(ctx, procCtx context.Context, p *pool) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-p.work:
			if ctx.Err() != nil {
				q.requeue(d)
				<-p.slots
				return
			}
			q.process(procCtx, d)
			<-p.slots
			q.signal()
		}
	}
}

func (q *Queue) process(ctx context.Context, d *dispatched) {
	j := d.job
	q.emit(domain.Event{Type: domain.EventActive, Job: &j})
	q.save(j)

	start := time.Now()
	res, err := q.invoke(ctx, d)
	elapsed := time.Since(start)
	d.release()

	if ctx.Err() != nil && !errors.Is(err, domain.ErrJobTimeout) && err != nil {
		q.recorder.Record(context.Background(), j, "interrupted", elapsed)
		q.requeue(d)
		return
	}

	status := "ok"
	switch {
	case errors.Is(err, domain.ErrJobTimeout):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	q.recorder.Record(ctx, j, status, elapsed)
	q.finish(d, res, err, elapsed)
}

// invoke runs the processor under the job timeout. On timeout the processor's
// context is cancelled and its eventual result is dropped.
func (q *Queue) invoke(ctx context.Context, d *dispatched) (any, error) {
	runCtx, cancel := context.WithTimeout(ctx, d.job.Timeout)
	defer cancel()

	progress := func(pct int) { q.progress(d.job.ID, d.runID, pct) }

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				q.log.Error().
					Str("job_id", d.job.ID).
					Str("name", d.job.Name).
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("job processor panicked")
				done <- outcome{err: fmt.Errorf("panic in job %s: %v", d.job.Name, r)}
			}
		}()
		res, err := d.reg.Processor(runCtx, d.job.Clone(), progress)
		done <- outcome{result: res, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", domain.ErrJobTimeout, d.job.Timeout)
	}
}

func (q *Queue) progress(id string, runID uint64, pct int) {
	pct = max(0, min(pct, 100))

	q.mu.Lock()
	r, ok := q.jobs[id]
	if !ok || r.runID != runID || r.job.Status != domain.StatusProcessing {
		q.mu.Unlock()
		return
	}
	r.job.Progress = pct
	snap := r.job.Clone()
	q.mu.Unlock()

	q.emit(domain.Event{Type: domain.EventProgress, Job: &snap, Progress: pct})
}

// finish applies the run outcome: completed, delayed for retry, or failed.
func (q *Queue) finish(d *dispatched, res any, runErr error, elapsed time.Duration) {
	now := time.Now()

	q.mu.Lock()
	r, ok := q.jobs[d.job.ID]
	if !ok || r.runID != d.runID || r.job.Status != domain.StatusProcessing {
		q.mu.Unlock()
		return
	}

	evt := domain.Event{}
	switch {
	case runErr == nil:
		r.job.Status = domain.StatusCompleted
		r.job.CompletedAt = &now
		r.job.Result = res
		r.job.Progress = 100
		r.job.Error = ""
		q.sampler.RecordCompleted(elapsed, now)
		evt.Type = domain.EventCompleted

	case r.job.Attempts < r.job.MaxAttempts && !domain.IsNoRetry(runErr):
		delay := backoff.Delay(r.job.Backoff, r.job.Attempts)
		at := now.Add(delay)
		r.job.Status = domain.StatusDelayed
		r.job.ProcessAt = &at
		r.job.Error = runErr.Error()
		evt.Type = domain.EventStalled
		evt.Delay = delay
		evt.Error = runErr.Error()

	default:
		// A permanent error forfeits the remaining attempts.
		r.job.Attempts = r.job.MaxAttempts
		r.job.Status = domain.StatusFailed
		r.job.FailedAt = &now
		r.job.Error = runErr.Error()
		q.sampler.RecordFailed()
		evt.Type = domain.EventFailed
		evt.Error = runErr.Error()
	}

	snap := r.job.Clone()
	repeat := r.repeat != nil && snap.Status.Terminal()
	q.mu.Unlock()

	evt.Job = &snap
	q.logOutcome(snap, evt, elapsed)
	q.emit(evt)
	q.save(snap)

	if repeat {
		q.repeatJob(snap)
	}
}

// requeue returns an interrupted job to pending without counting the attempt.
func (q *Queue) requeue(d *dispatched) {
	d.release()

	q.mu.Lock()
	r, ok := q.jobs[d.job.ID]
	if !ok || r.runID != d.runID || r.job.Status != domain.StatusProcessing {
		q.mu.Unlock()
		return
	}
	r.job.Status = domain.StatusPending
	r.job.Attempts--
	r.job.StartedAt = nil
	r.job.Progress = 0
	snap := r.job.Clone()
	q.mu.Unlock()

	q.save(snap)
	q.log.Info().Str("job_id", snap.ID).Str("name", snap.Name).Msg("job interrupted, returned to pending")
}

func (q *Queue) logOutcome(j domain.Job, evt domain.Event, elapsed time.Duration) {
	switch evt.Type {
	case domain.EventCompleted:
		q.log.Info().
			Str("job_id", j.ID).
			Str("name", j.Name).
			Int("attempts", j.Attempts).
			Dur("elapsed", elapsed).
			Msg("job completed")
	case domain.EventStalled:
		q.log.Warn().
			Str("job_id", j.ID).
			Str("name", j.Name).
			Int("attempts", j.Attempts).
			Int("max_attempts", j.MaxAttempts).
			Dur("retry_in", evt.Delay).
			Str("error", j.Error).
			Msg("job failed, retry scheduled")
	case domain.EventFailed:
		q.log.Error().
			Str("job_id", j.ID).
			Str("name", j.Name).
			Int("attempts", j.Attempts).
			Str("error", j.Error).
			Msg("job failed")
	}
}
