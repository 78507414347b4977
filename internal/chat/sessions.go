package chat

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultSessionIdleTTL ends sessions that ran no turn for this long.
const DefaultSessionIdleTTL = 30 * time.Minute

type session struct {
	turn       *semaphore.Weighted
	lastActive time.Time
	// refs counts running and queued turns; a referenced session is never swept.
	refs    int
	pending *Clarification
	confirm *Confirmation
	// ending defers the end hook until the running turn releases the session.
	ending bool
}

// sessionRegistry serializes turns per session and tracks idle expiry.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
	idleTTL  time.Duration
	now      func() time.Time
	onEnd    func(id string)
}

func newSessionRegistry(idleTTL time.Duration, onEnd func(string)) *sessionRegistry {
	if idleTTL <= 0 {
		idleTTL = DefaultSessionIdleTTL
	}
	return &sessionRegistry{
		sessions: make(map[string]*session),
		idleTTL:  idleTTL,
		now:      time.Now,
		onEnd:    onEnd,
	}
}

// lookup returns the session entry, creating it. Callers hold r.mu.
func (r *sessionRegistry) lookup(id string) *session {
	s, ok := r.sessions[id]
	if !ok {
		s = &session{turn: semaphore.NewWeighted(1), lastActive: r.now()}
		r.sessions[id] = s
		sessionsActive.Inc()
	}
	return s
}

// acquire waits, in arrival order, until the session runs no other turn.
// It fails with ctx.Err() when the caller gives up while queued.
func (r *sessionRegistry) acquire(ctx context.Context, id string) (*session, func(), error) {
	r.mu.Lock()
	s := r.lookup(id)
	s.refs++
	r.mu.Unlock()

	turnsQueued.Inc()
	err := s.turn.Acquire(ctx, 1)
	turnsQueued.Dec()
	if err != nil {
		r.mu.Lock()
		r.unrefLocked(id, s, false)
		r.mu.Unlock()
		return nil, nil, err
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			if s.ending {
				s.ending = false
				s.pending = nil
				s.confirm = nil
				r.mu.Unlock()
				r.runEnd(id, s)
				return
			}
			s.turn.Release(1)
			r.unrefLocked(id, s, false)
			r.mu.Unlock()
		})
	}
	return s, release, nil
}

// unrefLocked drops one reference; drop forgets the entry once nothing
// refers to it. Callers hold r.mu.
func (r *sessionRegistry) unrefLocked(id string, s *session, drop bool) {
	s.refs--
	s.lastActive = r.now()
	if drop && s.refs == 0 && r.sessions[id] == s {
		delete(r.sessions, id)
		sessionsActive.Dec()
	}
}

// runEnd runs the end hook while holding the session's turn slot, so turns
// queued behind it start on a cleared session. The caller holds the slot and
// one reference; both are released on return.
func (r *sessionRegistry) runEnd(id string, s *session) {
	for {
		if r.onEnd != nil {
			r.onEnd(id)
		}
		r.mu.Lock()
		if !s.ending {
			break
		}
		s.ending = false
		r.mu.Unlock()
	}
	s.turn.Release(1)
	r.unrefLocked(id, s, true)
	r.mu.Unlock()
}

// takePending returns and clears the clarification asked on the previous turn.
func (r *sessionRegistry) takePending(s *session) *Clarification {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := s.pending
	s.pending = nil
	return p
}

func (r *sessionRegistry) setPending(s *session, c *Clarification) {
	r.mu.Lock()
	s.pending = c
	r.mu.Unlock()
}

// takeConfirmation returns and clears the request awaiting approval.
func (r *sessionRegistry) takeConfirmation(s *session) *Confirmation {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := s.confirm
	s.confirm = nil
	return c
}

func (r *sessionRegistry) setConfirmation(s *session, c *Confirmation) {
	r.mu.Lock()
	s.confirm = c
	r.mu.Unlock()
}

// end clears the session and runs the end hook. When a turn holds the
// session, the hook runs as that turn releases it, and turns arriving
// meanwhile queue behind it.
func (r *sessionRegistry) end(id string) {
	r.mu.Lock()
	s := r.lookup(id)
	s.pending = nil
	s.confirm = nil
	if !s.turn.TryAcquire(1) {
		s.ending = true
		r.mu.Unlock()
		return
	}
	s.refs++
	r.mu.Unlock()
	r.runEnd(id, s)
}

// sweep ends every unreferenced session idle for longer than the TTL.
func (r *sessionRegistry) sweep() []string {
	cutoff := r.now().Add(-r.idleTTL)
	var expired []string
	var held []*session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.refs == 0 && s.lastActive.Before(cutoff) && s.turn.TryAcquire(1) {
			s.refs++
			expired = append(expired, id)
			held = append(held, s)
		}
	}
	r.mu.Unlock()
	for i, id := range expired {
		r.runEnd(id, held[i])
	}
	return expired
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
