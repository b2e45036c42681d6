package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"jobq/internal/domain"
)

type entry struct {
	reg domain.Registration
	sem *semaphore.Weighted
}

// Registry maps job names to processors. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register stores reg under reg.Name, replacing any previous registration.
// It reports whether an existing processor was replaced.
func (r *Registry) Register(reg domain.Registration) (bool, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	if reg.Name == "" {
		return false, fmt.Errorf("%w: name is required", domain.ErrInvalidRegistration)
	}
	if reg.Processor == nil {
		return false, fmt.Errorf("%w: processor for %q is nil", domain.ErrInvalidRegistration, reg.Name)
	}
	if reg.Concurrency < 0 {
		reg.Concurrency = 0
	}
	if reg.Type == "" {
		reg.Type = domain.TypeCustom
	}

	e := &entry{reg: reg}
	if reg.Concurrency > 0 {
		e.sem = semaphore.NewWeighted(int64(reg.Concurrency))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced := r.entries[reg.Name]
	r.entries[reg.Name] = e
	return replaced, nil
}

func (r *Registry) Get(name string) (domain.Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return domain.Registration{}, false
	}
	return e.reg, true
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// TryAcquire reserves a concurrency slot for name. The returned release func
// must be called once the run ends. ok is false when the processor is missing
// or already at its concurrency limit.
func (r *Registry) TryAcquire(name string) (reg domain.Registration, release func(), ok bool) {
	r.mu.RLock()
	e, found := r.entries[name]
	r.mu.RUnlock()
	if !found {
		return domain.Registration{}, nil, false
	}
	if e.sem == nil {
		return e.reg, func() {}, true
	}
	if !e.sem.TryAcquire(1) {
		return domain.Registration{}, nil, false
	}
	var once sync.Once
	return e.reg, func() { once.Do(func() { e.sem.Release(1) }) }, true
}

// Names returns registered job names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Typed builds a Registration whose processor receives Data decoded into T.
//
// Decoding goes through JSON, so T should carry json tags matching the payload keys.
// A payload that cannot be decoded fails the job without retry.
func Typed[T any](name string, typ domain.JobType, concurrency int, fn func(ctx context.Context, payload T, job domain.Job, progress domain.ProgressFunc) (any, error)) domain.Registration {
	return domain.Registration{
		Name:        name,
		Type:        typ,
		Concurrency: concurrency,
		Processor: func(ctx context.Context, job domain.Job, progress domain.ProgressFunc) (any, error) {
			var payload T
			if len(job.Data) > 0 {
				b, err := json.Marshal(job.Data)
				if err != nil {
					return nil, domain.NoRetry(fmt.Errorf("encode payload for job %q: %w", name, err))
				}
				if err := json.Unmarshal(b, &payload); err != nil {
					return nil, domain.NoRetry(fmt.Errorf("decode payload for job %q: %w", name, err))
				}
			}
			return fn(ctx, payload, job, progress)
		},
	}
}
