// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/lookup"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/session"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/session/sessiontest"
)

var rivals = lookup.Candidate{Key: "rivals", DisplayName: "Rivals", Score: 0.91}

func newRegistry(t *testing.T, onResolved func(*session.Session, session.Transition)) (*session.Registry, *sessiontest.FakeClock) {
	t.Helper()
	clock := sessiontest.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	r := session.NewRegistry(session.Config{
		Timeout:         15 * time.Second,
		Retention:       time.Minute,
		BindToRequester: true,
		Clock:           clock,
		OnResolved:      onResolved,
	})
	t.Cleanup(r.Close)
	return r, clock
}

func TestRegistry_StartDefaults(t *testing.T) {
	r := session.NewRegistry(session.Config{})
	defer r.Close()
	assert.Equal(t, session.DefaultTimeout, r.Timeout())

	s := r.Start(rivals, "Rival", "u1")
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, session.StatePending, s.State())
	assert.Equal(t, rivals, s.Candidate())
	assert.Equal(t, "Rival", s.Query())
	assert.Equal(t, "u1", s.Owner())
	assert.Equal(t, s.CreatedAt().Add(15*time.Second), s.ExpiresAt())
}

func TestRegistry_ConfirmBeforeTimeout(t *testing.T) {
	var calls atomic.Int32
	r, clock := newRegistry(t, func(*session.Session, session.Transition) { calls.Add(1) })

	s := r.Start(rivals, "Rival", "u1")
	clock.Advance(5 * time.Second)

	got, tr, err := r.Respond(s.ID(), session.EventConfirm, "u1")
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, session.StateConfirmed, tr.To)

	// The expiry timer must not fire a second transition.
	clock.Advance(20 * time.Second)
	assert.Equal(t, session.StateConfirmed, s.State())
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistry_ExpiresSilently(t *testing.T) {
	var resolved []session.Transition
	var mu sync.Mutex
	r, clock := newRegistry(t, func(_ *session.Session, tr session.Transition) {
		mu.Lock()
		defer mu.Unlock()
		resolved = append(resolved, tr)
	})

	s := r.Start(rivals, "Rival", "u1")
	clock.Advance(14 * time.Second)
	assert.Equal(t, session.StatePending, s.State())

	clock.Advance(time.Second)
	assert.Equal(t, session.StateExpired, s.State())
	require.Len(t, resolved, 1)
	assert.Equal(t, session.EventExpire, resolved[0].Event)

	// Late responses are ignored and produce no second resolution.
	_, _, err := r.Respond(s.ID(), session.EventConfirm, "u1")
	assert.ErrorIs(t, err, session.ErrSessionClosed)
	_, _, err = r.Respond(s.ID(), session.EventDecline, "u1")
	assert.ErrorIs(t, err, session.ErrSessionClosed)
	assert.Len(t, resolved, 1)
	assert.Equal(t, session.StateExpired, s.State())
}

func TestRegistry_DeclineThenConfirmIgnored(t *testing.T) {
	r, _ := newRegistry(t, nil)
	s := r.Start(rivals, "Rival", "u1")

	_, tr, err := r.Respond(s.ID(), session.EventDecline, "u1")
	require.NoError(t, err)
	assert.Equal(t, session.StateDeclined, tr.To)

	_, _, err = r.Respond(s.ID(), session.EventConfirm, "u1")
	assert.ErrorIs(t, err, session.ErrSessionClosed)
	assert.Equal(t, session.StateDeclined, s.State())
}

func TestRegistry_NotOwner(t *testing.T) {
	r, _ := newRegistry(t, nil)
	s := r.Start(rivals, "Rival", "owner")

	got, _, err := r.Respond(s.ID(), session.EventConfirm, "intruder")
	assert.ErrorIs(t, err, session.ErrNotOwner)
	assert.Same(t, s, got)
	assert.Equal(t, session.StatePending, s.State())
}

func TestRegistry_EvictsAfterRetention(t *testing.T) {
	r, clock := newRegistry(t, nil)
	s := r.Start(rivals, "Rival", "u1")

	clock.Advance(15 * time.Second)
	require.Equal(t, session.StateExpired, s.State())
	assert.Equal(t, 1, r.Len())

	clock.Advance(time.Minute)
	assert.Equal(t, 0, r.Len())

	_, err := r.Get(s.ID())
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	_, _, err = r.Respond(s.ID(), session.EventConfirm, "u1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestRegistry_UnknownSession(t *testing.T) {
	r, _ := newRegistry(t, nil)
	_, _, err := r.Respond("nope", session.EventConfirm, "u1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestRegistry_SessionsAreIndependent(t *testing.T) {
	r, clock := newRegistry(t, nil)
	a := r.Start(rivals, "Rival", "u1")
	clock.Advance(10 * time.Second)
	b := r.Start(rivals, "Rivls", "u2")

	assert.NotEqual(t, a.ID(), b.ID())

	clock.Advance(5 * time.Second)
	assert.Equal(t, session.StateExpired, a.State())
	assert.Equal(t, session.StatePending, b.State())

	_, _, err := r.Respond(b.ID(), session.EventConfirm, "u2")
	require.NoError(t, err)
	assert.Equal(t, session.StateConfirmed, b.State())
}

func TestRegistry_ConcurrentResponsesSingleWinner(t *testing.T) {
	r := session.NewRegistry(session.Config{Timeout: time.Hour})
	defer r.Close()
	s := r.Start(rivals, "Rival", "")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 16 {
		ev := session.EventConfirm
		if i%2 == 1 {
			ev = session.EventDecline
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := r.Respond(s.ID(), ev, "anyone"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.True(t, s.State().Terminal())
}

func TestRegistry_CloseStopsTimers(t *testing.T) {
	clock := sessiontest.NewFakeClock(time.Now())
	r := session.NewRegistry(session.Config{Clock: clock})
	s := r.Start(rivals, "Rival", "u1")
	assert.Equal(t, 1, clock.Pending())

	r.Close()
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, 0, r.Len())

	clock.Advance(time.Hour)
	assert.Equal(t, session.StatePending, s.State())
}
