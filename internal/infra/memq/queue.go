package memq

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"jobq/internal/domain"
	"jobq/internal/eventbus"
	"jobq/internal/metrics"
	"jobq/internal/ports"
	"jobq/internal/registry"
)

var _ ports.Queue = (*Queue)(nil)

const (
	DefaultName            = "default"
	DefaultPromoteInterval = 100 * time.Millisecond

	warnThrottleEvery = 5 * time.Second
	mirrorTimeout     = 2 * time.Second
)

type Config struct {
	Name    string
	Workers int
	// PromoteInterval is how often due delayed jobs are moved back to pending.
	PromoteInterval time.Duration
	// DispatchRate caps dispatched jobs per second. Zero disables the limit.
	DispatchRate  float64
	DispatchBurst int
	// AllowUnregistered accepts jobs whose name has no processor yet. They stay
	// pending until one is registered.
	AllowUnregistered bool
	SampleSize        int
	Thresholds        domain.Thresholds
}

func (c Config) withDefaults() Config {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.PromoteInterval <= 0 {
		c.PromoteInterval = DefaultPromoteInterval
	}
	if c.DispatchRate > 0 && c.DispatchBurst <= 0 {
		c.DispatchBurst = 1
	}
	if c.SampleSize <= 0 {
		c.SampleSize = metrics.DefaultSampleSize
	}
	return c
}

type Option func(*Queue)

func WithLogger(l zerolog.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// WithMirror copies every job state change to m.
func WithMirror(m ports.StateMirror) Option {
	return func(q *Queue) { q.mirror = m }
}

func WithRecorder(r *metrics.Recorder) Option {
	return func(q *Queue) { q.recorder = r }
}

// Queue is an in-memory priority job queue with delayed retries.
//
// All job state is owned by the queue and guarded by mu. Events are emitted
// after mu is released so listeners may call back into the queue.
type Queue struct {
	cfg      Config
	log      zerolog.Logger
	registry *registry.Registry
	bus      *eventbus.Bus
	sampler  *metrics.Sampler
	recorder *metrics.Recorder
	mirror   ports.StateMirror
	cron     cron.Parser

	limiter     *rate.Limiter
	warnLimiter *rate.Limiter

	mu                  sync.Mutex
	jobs                map[string]*record
	seq                 uint64
	paused              bool
	connected           bool
	dispatchedSinceIdle bool

	wake chan struct{}

	runMu   sync.Mutex
	cancel  context.CancelFunc
	abort   context.CancelFunc
	pool    *pool
	wg      sync.WaitGroup
	running bool
}

type record struct {
	job     domain.Job
	seq     uint64
	visible bool
	runID   uint64
	repeat  cron.Schedule
}

func New(cfg Config, opts ...Option) *Queue {
	cfg = cfg.withDefaults()
	q := &Queue{
		cfg:         cfg,
		log:         log.Logger,
		registry:    registry.New(),
		sampler:     metrics.NewSampler(cfg.SampleSize),
		cron:        cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		warnLimiter: rate.NewLimiter(rate.Every(warnThrottleEvery), 1),
		jobs:        make(map[string]*record),
		wake:        make(chan struct{}, 1),
	}
	if cfg.DispatchRate > 0 {
		q.limiter = rate.NewLimiter(rate.Limit(cfg.DispatchRate), cfg.DispatchBurst)
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.recorder == nil {
		q.recorder = metrics.NewRecorder()
	}
	q.log = q.log.With().Str("queue", cfg.Name).Logger()
	q.bus = eventbus.New(q.log)
	return q
}

func (q *Queue) Name() string { return q.cfg.Name }

func (q *Queue) AddJob(ctx context.Context, typ domain.JobType, name string, data map[string]any, opts domain.Options) (string, error) {
	name = strings.TrimSpace(name)
	if typ == "" || name == "" {
		return "", domain.ErrInvalidJob
	}
	if !q.cfg.AllowUnregistered && !q.registry.Has(name) {
		return "", fmt.Errorf("%w: %s", domain.ErrProcessorNotFound, name)
	}
	return q.add(typ, name, data, opts), nil
}

// AddBulkJobs submits jobs one by one. It stops at the first rejected job and
// returns the ids accepted so far; earlier jobs are not rolled back.
func (q *Queue) AddBulkJobs(ctx context.Context, jobs []ports.BulkJob) ([]string, error) {
	ids := make([]string, 0, len(jobs))
	for i, j := range jobs {
		id, err := q.AddJob(ctx, j.Type, j.Name, j.Data, j.Options)
		if err != nil {
			return ids, fmt.Errorf("bulk job %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (q *Queue) add(typ domain.JobType, name string, data map[string]any, opts domain.Options) string {
	o := opts.WithDefaults()
	now := time.Now()

	j := domain.Job{
		ID:          uuid.NewString(),
		Queue:       q.cfg.Name,
		Name:        name,
		Type:        typ,
		Data:        maps.Clone(data),
		Status:      domain.StatusPending,
		Priority:    o.Priority,
		MaxAttempts: o.Attempts,
		Delay:       o.Delay,
		Timeout:     o.Timeout,
		Backoff:     *o.Backoff,
		CreatedAt:   now,
	}

	var sched cron.Schedule
	if o.Repeat != "" {
		s, err := q.cron.Parse(o.Repeat)
		if err != nil {
			q.log.Warn().Err(err).Str("name", name).Str("repeat", o.Repeat).Msg("ignoring invalid repeat expression")
		} else {
			sched = s
			j.Repeat = o.Repeat
		}
	}

	switch {
	case o.Delay > 0:
		at := now.Add(o.Delay)
		j.Status, j.ProcessAt = domain.StatusDelayed, &at
	case sched != nil:
		at := sched.Next(now)
		j.Status, j.ProcessAt = domain.StatusDelayed, &at
	}

	q.mu.Lock()
	q.seq++
	r := &record{job: j, seq: q.seq, repeat: sched}
	q.jobs[j.ID] = r
	snap := r.job.Clone()
	q.mu.Unlock()

	// waiting is announced before the dispatcher may see the job.
	q.emit(domain.Event{Type: domain.EventWaiting, Job: &snap})
	q.save(snap)

	q.mu.Lock()
	if cur, ok := q.jobs[j.ID]; ok {
		cur.visible = true
	}
	q.mu.Unlock()
	q.signal()

	q.log.Debug().
		Str("job_id", j.ID).
		Str("name", name).
		Str("status", string(j.Status)).
		Str("priority", string(j.Priority)).
		Msg("job added")
	return j.ID
}

func (q *Queue) GetJob(id string) (*domain.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	j := r.job.Clone()
	return &j, true
}

// RemoveJob deletes a job that is not currently running.
func (q *Queue) RemoveJob(id string) bool {
	q.mu.Lock()
	r, ok := q.jobs[id]
	if !ok || r.job.Status == domain.StatusProcessing {
		q.mu.Unlock()
		return false
	}
	delete(q.jobs, id)
	q.mu.Unlock()

	q.drop(id)
	q.log.Debug().Str("job_id", id).Msg("job removed")
	return true
}

// RetryJob moves a failed job back to pending with a fresh attempt budget.
func (q *Queue) RetryJob(id string) bool {
	q.mu.Lock()
	r, ok := q.jobs[id]
	if !ok || r.job.Status != domain.StatusFailed {
		q.mu.Unlock()
		return false
	}
	r.job.Status = domain.StatusPending
	r.job.Attempts = 0
	r.job.Progress = 0
	// The next occurrence was scheduled when this run failed.
	r.repeat = nil
	r.job.Error = ""
	r.job.Result = nil
	r.job.FailedAt = nil
	snap := r.job.Clone()
	q.mu.Unlock()

	q.emit(domain.Event{Type: domain.EventWaiting, Job: &snap})
	q.save(snap)
	q.signal()
	q.log.Info().Str("job_id", id).Str("name", snap.Name).Msg("job retried")
	return true
}

func (q *Queue) RegisterProcessor(reg domain.Registration) error {
	replaced, err := q.registry.Register(reg)
	if err != nil {
		return err
	}
	q.log.Debug().
		Str("name", reg.Name).
		Str("type", string(reg.Type)).
		Int("concurrency", reg.Concurrency).
		Bool("replaced", replaced).
		Msg("processor registered")
	q.signal()
	return nil
}

func (q *Queue) On(t domain.EventType, fn domain.Listener) domain.ListenerID {
	return q.bus.On(t, fn)
}

func (q *Queue) Off(t domain.EventType, id domain.ListenerID) bool {
	return q.bus.Off(t, id)
}

type connector interface {
	Connect(ctx context.Context) error
}

type closer interface {
	Close() error
}

// Connect marks the backend as connected, pinging the state mirror when one is set.
func (q *Queue) Connect(ctx context.Context) error {
	if c, ok := q.mirror.(connector); ok {
		if err := c.Connect(ctx); err != nil {
			return fmt.Errorf("connect state mirror: %w", err)
		}
	}
	q.mu.Lock()
	q.connected = true
	q.mu.Unlock()
	return nil
}

func (q *Queue) Disconnect(ctx context.Context) error {
	q.mu.Lock()
	q.connected = false
	q.mu.Unlock()
	if c, ok := q.mirror.(closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close state mirror: %w", err)
		}
	}
	return nil
}

func (q *Queue) IsConnected() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.connected
}

func (q *Queue) emit(e domain.Event) {
	e.Queue = q.cfg.Name
	q.bus.Emit(e)
}

// signal wakes the dispatcher without blocking.
func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) save(j domain.Job) {
	if q.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := q.mirror.SaveState(ctx, j); err != nil {
		q.log.Warn().Err(err).Str("job_id", j.ID).Msg("state mirror save failed")
	}
}

func (q *Queue) drop(id string) {
	if q.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := q.mirror.Delete(ctx, id); err != nil {
		q.log.Warn().Err(err).Str("job_id", id).Msg("state mirror delete failed")
	}
}
