// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session implements the disambiguation exchange that asks a user
// to confirm an approximate catalog match.
//
// A Session is a four-state machine (Pending, Confirmed, Declined, Expired)
// that leaves Pending at most once. State changes are reported as
// Transition values; composing the user-facing reply for a transition is
// the caller's job, which keeps the machine testable without presentation.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/lookup"
)

var (
	// ErrSessionNotFound is returned for unknown or already evicted session IDs.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed is returned for events delivered after a terminal state.
	ErrSessionClosed = errors.New("session already resolved")

	// ErrNotOwner is returned when a bound session receives a response from
	// someone other than the requester it was created for.
	ErrNotOwner = errors.New("session belongs to another user")
)

// State is the lifecycle state of a Session.
type State int

const (
	StatePending State = iota
	StateConfirmed
	StateDeclined
	StateExpired
)

// String returns the lowercase state name used in JSON and metrics.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateDeclined:
		return "declined"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s != StatePending
}

// Event drives a Session out of Pending.
type Event int

const (
	EventConfirm Event = iota
	EventDecline
	EventExpire
)

// String returns the lowercase event name.
func (e Event) String() string {
	switch e {
	case EventConfirm:
		return "confirm"
	case EventDecline:
		return "decline"
	case EventExpire:
		return "expire"
	default:
		return "unknown"
	}
}

func (e Event) target() State {
	switch e {
	case EventConfirm:
		return StateConfirmed
	case EventDecline:
		return StateDeclined
	default:
		return StateExpired
	}
}

// Transition records one applied state change.
type Transition struct {
	From  State
	To    State
	Event Event
	At    time.Time
}

// Session is one pending confirmation of a Candidate.
//
// Thread Safety: Safe for concurrent use. Apply is serialized by an internal
// mutex because expiry fires on a timer goroutine.
type Session struct {
	id           string
	candidate    lookup.Candidate
	query        string
	owner        string
	bound        bool
	createdAt    time.Time
	expiresAfter time.Duration

	mu       sync.Mutex
	state    State
	resolved Transition
	done     chan struct{}
}

// ID returns the opaque session identifier.
func (s *Session) ID() string { return s.id }

// Candidate returns the single candidate attached at creation.
func (s *Session) Candidate() lookup.Candidate { return s.candidate }

// Query returns the raw query that produced the candidate.
func (s *Session) Query() string { return s.query }

// Owner returns the requester identity the session was created for.
func (s *Session) Owner() string { return s.owner }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// ExpiresAfter returns the confirmation window.
func (s *Session) ExpiresAfter() time.Duration { return s.expiresAfter }

// ExpiresAt returns CreatedAt plus the confirmation window.
func (s *Session) ExpiresAt() time.Time { return s.createdAt.Add(s.expiresAfter) }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Resolution returns the terminal transition, if one happened.
func (s *Session) Resolution() (Transition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved, s.state.Terminal()
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Apply delivers an event.
//
// Description:
//
//	From Pending, Confirm/Decline/Expire move to Confirmed/Declined/Expired
//	respectively. In any terminal state the event is ignored and
//	ErrSessionClosed is returned. On a bound session, Confirm and Decline
//	from an actor other than the owner return ErrNotOwner and change
//	nothing; Expire carries no actor.
//
// Inputs:
//
//	ev - The event.
//	actor - Identity of the responding user. Ignored for EventExpire.
//	at - Time of the event.
//
// Outputs:
//
//	Transition - The applied change. Zero value on error.
//	error - ErrSessionClosed or ErrNotOwner.
func (s *Session) Apply(ev Event, actor string, at time.Time) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return Transition{}, ErrSessionClosed
	}
	if ev != EventExpire && s.bound && s.owner != "" && actor != s.owner {
		return Transition{}, ErrNotOwner
	}

	tr := Transition{From: s.state, To: ev.target(), Event: ev, At: at}
	s.state = tr.To
	s.resolved = tr
	close(s.done)
	return tr, nil
}
