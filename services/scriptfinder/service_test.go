// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scriptfinder

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/catalog"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/fallback"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/forward"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/session"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/session/sessiontest"
)

var (
	alice = Requester{ID: "100", Name: "alice"}
	bob   = Requester{ID: "200", Name: "bob"}
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(map[string]catalog.Entry{
		"rivals":     {Script: `loadstring(game:HttpGet("https://example.com/rivals.lua"))()`, KeyNeeded: false, Executors: []string{"Delta", "Fluxus"}},
		"bloxfruits": {Script: `print("bf")`, KeyNeeded: true, Executors: []string{"Synapse X"}},
		"arsenal":    {Script: `print("arsenal")`, Executors: []string{"Delta"}},
	})
	require.NoError(t, err)
	return c
}

type stubSource struct {
	res *fallback.Result
	err error
}

func (s stubSource) Search(context.Context, string) (*fallback.Result, error) {
	return s.res, s.err
}

type stubForwarder struct {
	mu         sync.Mutex
	configured bool
	err        error
	got        []forward.Request
}

func (f *stubForwarder) Configured() bool { return f.configured }

func (f *stubForwarder) Forward(_ context.Context, req forward.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, req)
	return f.err
}

func newTestService(t *testing.T, mutate func(*ServiceConfig)) (*Service, *sessiontest.FakeClock) {
	t.Helper()
	clock := sessiontest.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cfg := DefaultServiceConfig()
	cfg.Sessions.Clock = clock
	if mutate != nil {
		mutate(&cfg)
	}
	svc := NewService(testCatalog(t), cfg)
	t.Cleanup(svc.Close)
	return svc, clock
}

func TestService_FindExact(t *testing.T) {
	svc, _ := newTestService(t, nil)

	r := svc.Find(context.Background(), "Rivals", alice)
	require.NotNil(t, r.Embed)
	assert.Equal(t, "📜 Script for Rivals", r.Embed.Title)
	assert.Contains(t, r.Embed.Description, "rivals.lua")
	assert.Equal(t, "No", r.Embed.Fields[0].Value)
	assert.Equal(t, "Delta, Fluxus", r.Embed.Fields[1].Value)
	assert.Empty(t, r.SessionID)
	assert.False(t, r.Ephemeral)
	assert.Zero(t, svc.Sessions().Len())
}

func TestService_FindExactIgnoresCaseAndSpaces(t *testing.T) {
	svc, _ := newTestService(t, nil)

	r := svc.Find(context.Background(), "blox fruits", alice)
	require.NotNil(t, r.Embed)
	assert.Equal(t, "📜 Script for Blox Fruits", r.Embed.Title)
	assert.Equal(t, "Yes", r.Embed.Fields[0].Value)
}

func TestService_FindApproximateStartsSession(t *testing.T) {
	svc, _ := newTestService(t, nil)

	r := svc.Find(context.Background(), "Rival", alice)
	require.NotEmpty(t, r.SessionID)
	assert.True(t, r.Ephemeral)
	assert.Equal(t, "❓ Script not found for `Rival`.\nDid you mean **Rivals**?", r.Content)
	require.Len(t, r.Controls, 2)
	assert.Equal(t, "confirm:"+r.SessionID, r.Controls[0].ID)

	s, err := svc.Session(r.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StatePending, s.State())
	assert.Equal(t, alice.ID, s.Owner())
	assert.Equal(t, "rivals", s.Candidate().Key)
}

func TestService_FindMiss(t *testing.T) {
	svc, _ := newTestService(t, nil)

	r := svc.Find(context.Background(), "Fortnite", alice)
	assert.Nil(t, r.Embed)
	assert.Empty(t, r.SessionID)
	assert.True(t, r.Ephemeral)
	assert.Equal(t, "❌ Script not found.\nTry `/botsearch Fortnite` or submit a request with `/request Fortnite`.", r.Content)

	r = svc.Find(context.Background(), "   ", alice)
	assert.Empty(t, r.SessionID)
	assert.Nil(t, r.Embed)
}

func TestService_RespondConfirm(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	prompt := svc.Find(ctx, "bloxfruit", alice)
	require.NotEmpty(t, prompt.SessionID)

	r, err := svc.Respond(ctx, prompt.SessionID, session.EventConfirm, alice)
	require.NoError(t, err)
	require.NotNil(t, r.Embed)
	assert.Equal(t, "📜 Script for Bloxfruits", r.Embed.Title)

	_, err = svc.Respond(ctx, prompt.SessionID, session.EventDecline, alice)
	assert.ErrorIs(t, err, session.ErrSessionClosed)
}

func TestService_RespondDecline(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	prompt := svc.Find(ctx, "Rival", alice)
	r, err := svc.Respond(ctx, prompt.SessionID, session.EventDecline, alice)
	require.NoError(t, err)
	assert.Equal(t, "❌ Okay. Try `/botsearch` or submit a request with `/request`.", r.Content)

	s, err := svc.Session(prompt.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StateDeclined, s.State())
}

func TestService_RespondNotOwner(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	prompt := svc.Find(ctx, "Rival", alice)
	r, err := svc.Respond(ctx, prompt.SessionID, session.EventConfirm, bob)
	assert.ErrorIs(t, err, session.ErrNotOwner)
	assert.True(t, r.Ephemeral)
	assert.NotEmpty(t, r.Content)

	_, err = svc.Respond(ctx, prompt.SessionID, session.EventConfirm, alice)
	assert.NoError(t, err)
}

func TestService_RespondUnboundAllowsAnyone(t *testing.T) {
	svc, _ := newTestService(t, func(cfg *ServiceConfig) {
		cfg.Sessions.BindToRequester = false
	})
	ctx := context.Background()

	prompt := svc.Find(ctx, "Rival", alice)
	_, err := svc.Respond(ctx, prompt.SessionID, session.EventConfirm, bob)
	assert.NoError(t, err)
}

func TestService_SilentExpiry(t *testing.T) {
	svc, clock := newTestService(t, nil)
	ctx := context.Background()

	prompt := svc.Find(ctx, "Rival", alice)
	s, err := svc.Session(prompt.SessionID)
	require.NoError(t, err)

	clock.Advance(15 * time.Second)
	assert.Equal(t, session.StateExpired, s.State())
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after expiry")
	}

	_, err = svc.Respond(ctx, prompt.SessionID, session.EventConfirm, alice)
	assert.ErrorIs(t, err, session.ErrSessionClosed)

	clock.Advance(time.Minute)
	_, err = svc.Respond(ctx, prompt.SessionID, session.EventConfirm, alice)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestService_RespondRejectsExpireEvent(t *testing.T) {
	svc, _ := newTestService(t, nil)
	prompt := svc.Find(context.Background(), "Rival", alice)
	_, err := svc.Respond(context.Background(), prompt.SessionID, session.EventExpire, alice)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestService_Search(t *testing.T) {
	found := &fallback.Result{
		Script:  `loadstring(game:HttpGet("https://raw.githubusercontent.com/o/r/main/x.lua"))()`,
		RawURL:  "https://raw.githubusercontent.com/o/r/main/x.lua",
		HTMLURL: "https://github.com/o/r/blob/main/x.lua",
	}
	tests := []struct {
		name   string
		source fallback.Source
		found  bool
	}{
		{"found", stubSource{res: found}, true},
		{"empty", stubSource{}, false},
		{"unavailable", stubSource{err: fallback.ErrUnavailable}, false},
		{"disabled", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, func(cfg *ServiceConfig) { cfg.Source = tt.source })
			r := svc.Search(context.Background(), "da hood")
			if !tt.found {
				assert.Nil(t, r.Embed)
				assert.True(t, strings.HasPrefix(r.Content, "❌ Couldn’t find anything."))
				return
			}
			require.NotNil(t, r.Embed)
			assert.Equal(t, "🔍 Possible script for Da Hood", r.Embed.Title)
			assert.Contains(t, r.Embed.Description, found.Script)
			assert.Equal(t, found.HTMLURL, r.Embed.Fields[0].Value)
		})
	}
}

func TestService_Request(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		r := svc.Request(context.Background(), "Doors", "", alice)
		assert.Equal(t, "❌ Bot owner hasn’t set `REQUEST_WEBHOOK_URL`.", r.Content)
	})

	t.Run("forwarded", func(t *testing.T) {
		fw := &stubForwarder{configured: true}
		svc, _ := newTestService(t, func(cfg *ServiceConfig) { cfg.Forwarder = fw })
		r := svc.Request(context.Background(), "Doors", strings.Repeat("n", 1500), alice)
		assert.Equal(t, "✅ Your request has been forwarded!", r.Content)
		require.Len(t, fw.got, 1)
		assert.Equal(t, "Doors", fw.got[0].Query)
		assert.Equal(t, "100", fw.got[0].RequesterID)
		assert.Len(t, fw.got[0].Note, 1000)
	})

	t.Run("delivery failed", func(t *testing.T) {
		fw := &stubForwarder{configured: true, err: forward.ErrDeliveryFailed}
		svc, _ := newTestService(t, func(cfg *ServiceConfig) { cfg.Forwarder = fw })
		r := svc.Request(context.Background(), "Doors", "", alice)
		assert.Equal(t, "❌ Can’t reach the request channel. Check the webhook URL.", r.Content)
	})
}

func TestNewService_PanicsOnNilCatalog(t *testing.T) {
	assert.Panics(t, func() { NewService(nil, DefaultServiceConfig()) })
}
