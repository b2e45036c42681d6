package eventbus

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"jobq/internal/domain"
)

// Bus delivers lifecycle events to listeners registered per event type.
//
// Emit runs listeners synchronously on the caller's goroutine, in
// registration order. A panicking listener is logged and skipped; the
// remaining listeners still run.
type Bus struct {
	log zerolog.Logger

	mu   sync.RWMutex
	subs map[domain.EventType][]subscriber
	seq  atomic.Uint64
}

type subscriber struct {
	id domain.ListenerID
	fn domain.Listener
}

func New(log zerolog.Logger) *Bus {
	return &Bus{
		log:  log.With().Str("comp", "eventbus").Logger(),
		subs: make(map[domain.EventType][]subscriber),
	}
}

// On registers fn for events of type t and returns an id for Off.
func (b *Bus) On(t domain.EventType, fn domain.Listener) domain.ListenerID {
	if fn == nil {
		return 0
	}
	id := domain.ListenerID(b.seq.Add(1))

	b.mu.Lock()
	b.subs[t] = append(b.subs[t], subscriber{id: id, fn: fn})
	b.mu.Unlock()
	return id
}

// Off removes the listener with the given id. It reports whether one was removed.
func (b *Bus) Off(t domain.EventType, id domain.ListenerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[t]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		next := make([]subscriber, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, t)
		} else {
			b.subs[t] = next
		}
		return true
	}
	return false
}

// Count returns the number of listeners registered for t.
func (b *Bus) Count(t domain.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[t])
}

func (b *Bus) Emit(e domain.Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot so listeners may call On/Off without deadlocking.
	b.mu.RLock()
	subs := b.subs[e.Type]
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, e)
	}
}

func (b *Bus) deliver(s subscriber, e domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			ev := b.log.Error().
				Str("event", string(e.Type)).
				Uint64("listener", uint64(s.id)).
				Interface("panic", r).
				Str("stack", string(debug.Stack()))
			if e.Job != nil {
				ev = ev.Str("job_id", e.Job.ID)
			}
			ev.Msg("event listener panicked")
		}
	}()
	s.fn(e)
}
