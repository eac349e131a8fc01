// Package audittest records security events synchronously for assertions.
package audittest

import (
	"context"
	"sync"

	"siteauth/backend/internal/audit"
	"siteauth/backend/internal/audit/domain"
)

// Event is one recorded call.
type Event struct {
	Name      domain.EventName
	AccountID string
	Metadata  map[string]string
	ClientIP  string
}

// Recorder is an audit.Recorder that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ audit.Recorder = (*Recorder)(nil)

// Record implements audit.Recorder.
func (r *Recorder) Record(ctx context.Context, name domain.EventName, accountID string, metadata map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: name, AccountID: accountID, Metadata: metadata, ClientIP: audit.ClientIPFromContext(ctx)})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []domain.EventName {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventName, len(r.events))
	for i, e := range r.events {
		out[i] = e.Name
	}
	return out
}

// Count returns how many events named name were recorded.
func (r *Recorder) Count(name domain.EventName) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// Last returns the most recent event, or the zero Event.
func (r *Recorder) Last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}
	}
	return r.events[len(r.events)-1]
}

// Reset forgets all events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
