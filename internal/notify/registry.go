package notify

import (
	"sync"

	"github.com/jatango/liveshop/internal/live"
)

// Registry fans events out to a user's open live channels. It is owned by
// the server process and injected into whatever needs to push, so tests can
// drive it with plain channels and teardown is a single Close.
//
// The push is advisory: state is durably persisted before anything is
// emitted, so an event for a user with no open channel is dropped.
type Registry struct {
	mu     sync.Mutex
	subs   map[string]map[*subscription]struct{}
	buffer int
	closed bool
}

type subscription struct {
	ch   chan live.Envelope
	once sync.Once
}

// close is shared between the subscriber's cancel func and Registry.Close,
// either of which may fire first.
func (s *subscription) close() { s.once.Do(func() { close(s.ch) }) }

func NewRegistry(buffer int) *Registry {
	if buffer <= 0 {
		buffer = 16
	}
	return &Registry{
		subs:   make(map[string]map[*subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe opens a channel for a user. The returned cancel func deregisters
// and closes it; calling cancel more than once is fine.
func (r *Registry) Subscribe(userID string) (<-chan live.Envelope, func()) {
	sub := &subscription{ch: make(chan live.Envelope, r.buffer)}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		sub.close()
		return sub.ch, func() {}
	}
	set, ok := r.subs[userID]
	if !ok {
		set = make(map[*subscription]struct{})
		r.subs[userID] = set
	}
	set[sub] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if set, ok := r.subs[userID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(r.subs, userID)
			}
		}
		r.mu.Unlock()
		sub.close()
	}
	return sub.ch, cancel
}

// Emit writes the event to every channel currently open for the user. A slow
// subscriber with a full buffer is skipped rather than blocking the emitter.
func (r *Registry) Emit(userID string, ev live.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sub := range r.subs[userID] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Subscribers reports how many channels a user has open.
func (r *Registry) Subscribers(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[userID])
}

// Close tears the registry down; subsequent Subscribe calls return a closed
// channel.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, set := range r.subs {
		for sub := range set {
			sub.close()
		}
	}
	r.subs = make(map[string]map[*subscription]struct{})
}
