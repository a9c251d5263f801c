package telemetry

import (
	"sync"
	"time"
)

// Session groups events sharing a correlation_id between start_session and
// end_session (spec §4.7).
type Session struct {
	ID            string
	CorrelationID string
	Context       map[string]string
	StartedAt     time.Time
}

// SessionSummary is what end_session returns.
type SessionSummary struct {
	DurationMS int64
	EventCount int
	Events     []Event
}

type sessionTracker struct {
	mu       sync.Mutex
	sessions map[string]*Session
	events   map[string][]Event // session id -> events observed while the session was open
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{sessions: make(map[string]*Session), events: make(map[string][]Event)}
}

func (t *sessionTracker) start(id, correlationID string, ctxData map[string]string, now time.Time) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &Session{ID: id, CorrelationID: correlationID, Context: ctxData, StartedAt: now}
	t.sessions[id] = s
	return s
}

// observe records ev against any open session whose correlation_id matches.
func (t *sessionTracker) observe(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.sessions {
		if s.CorrelationID == ev.CorrelationID {
			t.events[s.ID] = append(t.events[s.ID], ev)
		}
	}
}

func (t *sessionTracker) end(id string, now time.Time) (SessionSummary, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok {
		return SessionSummary{}, false
	}
	events := t.events[id]
	delete(t.sessions, id)
	delete(t.events, id)
	return SessionSummary{
		DurationMS: now.Sub(s.StartedAt).Milliseconds(),
		EventCount: len(events),
		Events:     events,
	}, true
}
