package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry holds the live sessions keyed by an opaque browser token.
type Registry struct {
	newSession func() *Session
	idleTTL    time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// NewRegistry creates a Registry. newSession builds an unstarted Session;
// sessions untouched for idleTTL are evicted by Start.
func NewRegistry(newSession func() *Session, idleTTL time.Duration) *Registry {
	return &Registry{
		newSession: newSession,
		idleTTL:    idleTTL,
		now:        time.Now,
		entries:    make(map[string]*entry),
	}
}

// Create starts a new Session and returns it with its token.
func (r *Registry) Create() (string, *Session, error) {
	token, err := newToken()
	if err != nil {
		return "", nil, err
	}

	s := r.newSession()
	s.Start()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		s.Stop()
		return "", nil, ErrClosed
	}
	r.entries[token] = &entry{session: s, lastSeen: r.now()}
	r.mu.Unlock()

	slog.Debug("session created", "session", s.ID())
	return token, s, nil
}

// Get returns the Session for token and marks it as used.
func (r *Registry) Get(token string) (*Session, bool) {
	if token == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[token]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.session, true
}

// Remove stops and forgets the Session for token.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	e, ok := r.entries[token]
	delete(r.entries, token)
	r.mu.Unlock()

	if ok {
		e.session.Stop()
	}
}

// Rotate moves the Session for token under a fresh token and returns it. The
// old token stops resolving immediately.
func (r *Registry) Rotate(token string) (string, error) {
	next, err := newToken()
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[token]
	if !ok {
		return "", ErrUnknownToken
	}
	delete(r.entries, token)
	e.lastSeen = r.now()
	r.entries[next] = e

	slog.Debug("session token rotated", "session", e.session.ID())
	return next, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Start evicts idle sessions until ctx is cancelled.
func (r *Registry) Start(ctx context.Context) {
	interval := r.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	slog.Info("session janitor started", "idleTTL", r.idleTTL.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				slog.Info("evicted idle sessions", "count", n)
			}
		}
	}
}

// Sweep stops every session idle for longer than the TTL and returns how many
// were evicted.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	var idle []*Session
	r.mu.Lock()
	for token, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.session)
			delete(r.entries, token)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Stop()
	}
	return len(idle)
}

// Close stops every session. Create fails afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Stop()
		}(e.session)
	}
	wg.Wait()
}

// newToken returns 32 random bytes, base64url encoded.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
