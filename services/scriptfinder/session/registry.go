// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/lookup"
)

const (
	// DefaultTimeout is the confirmation window of a new session.
	DefaultTimeout = 15 * time.Second

	// DefaultRetention is how long a resolved session stays addressable so
	// that late responses are answered with ErrSessionClosed rather than
	// ErrSessionNotFound.
	DefaultRetention = time.Minute
)

// Config configures a Registry.
type Config struct {
	// Timeout is the confirmation window. Zero means DefaultTimeout.
	Timeout time.Duration

	// Retention is how long terminal sessions are kept. Zero means
	// DefaultRetention.
	Retention time.Duration

	// BindToRequester rejects Confirm/Decline from anyone but the owner.
	BindToRequester bool

	// Clock drives timestamps and timers. Nil means RealClock().
	Clock Clock

	// OnResolved is called once per session after its terminal transition,
	// outside of any registry lock. May be nil.
	OnResolved func(s *Session, tr Transition)

	// Logger receives lifecycle diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

type registryEntry struct {
	session *Session
	expiry  Timer
	evict   Timer

	// active is true while the entry is counted in sessionsActive. Cleared
	// under Registry.mu by whichever of resolved or Close gets there first.
	active bool
}

// Registry owns all live sessions and their timers.
//
// Description:
//
//	Each session is addressed by a random UUID. Start arms a passive expiry
//	timer; the first of Confirm, Decline or the timer wins, and the loser
//	is answered with ErrSessionClosed. Resolved sessions are evicted after
//	the retention period.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*registryEntry
	closed   bool
}

// NewRegistry creates a Registry, applying defaults for zero Config fields.
func NewRegistry(cfg Config) *Registry {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		logger:   logger.With("component", "session_registry"),
		sessions: make(map[string]*registryEntry),
	}
}

// Timeout returns the configured confirmation window.
func (r *Registry) Timeout() time.Duration {
	return r.cfg.Timeout
}

// Start creates a Pending session for candidate and arms its expiry.
//
// Inputs:
//
//	candidate - The approximate match to confirm.
//	query - The raw query, kept for follow-up guidance.
//	owner - Identity of the requester. Empty disables identity binding.
//
// Outputs:
//
//	*Session - The new session. Never nil. After Close the session is
//	neither registered nor armed and stays Pending.
func (r *Registry) Start(candidate lookup.Candidate, query, owner string) *Session {
	s := &Session{
		id:           uuid.NewString(),
		candidate:    candidate,
		query:        query,
		owner:        owner,
		bound:        r.cfg.BindToRequester,
		createdAt:    r.cfg.Clock.Now(),
		expiresAfter: r.cfg.Timeout,
		state:        StatePending,
		done:         make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn("session started on closed registry",
			slog.String("session_id", s.id),
			slog.String("candidate", candidate.Key),
		)
		return s
	}
	entry := &registryEntry{session: s, active: true}
	r.sessions[s.id] = entry
	entry.expiry = r.cfg.Clock.AfterFunc(r.cfg.Timeout, func() { r.expire(s.id) })
	sessionsActive.Inc()
	r.mu.Unlock()

	r.logger.Debug("disambiguation session started",
		slog.String("session_id", s.id),
		slog.String("candidate", candidate.Key),
		slog.Duration("timeout", r.cfg.Timeout),
	)
	return s
}

// Get returns a live or retained session.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry.session, nil
}

// Respond delivers a user event (Confirm or Decline) to a session.
//
// Outputs:
//
//	*Session - The addressed session, also on ErrSessionClosed/ErrNotOwner.
//	Transition - The applied transition.
//	error - ErrSessionNotFound, ErrSessionClosed or ErrNotOwner.
func (r *Registry) Respond(id string, ev Event, actor string) (*Session, Transition, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, Transition{}, err
	}
	tr, err := s.Apply(ev, actor, r.cfg.Clock.Now())
	if err != nil {
		sessionRejectedTotal.WithLabelValues(ev.String(), rejectReason(err)).Inc()
		return s, Transition{}, err
	}
	r.resolved(s, tr)
	return s, tr, nil
}

// Len returns the number of sessions currently held, including retained ones.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops every timer and forgets all sessions. Pending sessions are
// left Pending; callers shutting down do not get expiry callbacks.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, entry := range r.sessions {
		stopTimer(entry.expiry)
		stopTimer(entry.evict)
		if entry.active {
			entry.active = false
			sessionsActive.Dec()
		}
		delete(r.sessions, id)
	}
	r.closed = true
}

func (r *Registry) expire(id string) {
	s, err := r.Get(id)
	if err != nil {
		return
	}
	tr, err := s.Apply(EventExpire, "", r.cfg.Clock.Now())
	if err != nil {
		// Lost the race against a user response.
		return
	}
	r.resolved(s, tr)
}

// resolved runs the bookkeeping that follows a terminal transition.
func (r *Registry) resolved(s *Session, tr Transition) {
	sessionTransitionsTotal.WithLabelValues(tr.Event.String(), tr.To.String()).Inc()
	sessionDecisionSeconds.WithLabelValues(tr.To.String()).Observe(tr.At.Sub(s.createdAt).Seconds())

	r.mu.Lock()
	if entry, ok := r.sessions[s.id]; ok && !r.closed {
		if entry.active {
			entry.active = false
			sessionsActive.Dec()
		}
		if tr.Event != EventExpire {
			stopTimer(entry.expiry)
		}
		entry.evict = r.cfg.Clock.AfterFunc(r.cfg.Retention, func() { r.evict(s.id) })
	}
	r.mu.Unlock()

	r.logger.Info("disambiguation session resolved",
		slog.String("session_id", s.id),
		slog.String("candidate", s.candidate.Key),
		slog.String("state", tr.To.String()),
	)

	if r.cfg.OnResolved != nil {
		r.cfg.OnResolved(s, tr)
	}
}

func (r *Registry) evict(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func stopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}

func rejectReason(err error) string {
	switch err {
	case ErrSessionClosed:
		return "closed"
	case ErrNotOwner:
		return "not_owner"
	default:
		return "unknown"
	}
}
