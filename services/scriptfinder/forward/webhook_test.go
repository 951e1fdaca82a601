// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package forward

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookForwarder_NotConfigured(t *testing.T) {
	f := NewWebhookForwarder("  ", 0, nil)
	assert.False(t, f.Configured())
	err := f.Forward(context.Background(), Request{Query: "rivals"})
	assert.ErrorIs(t, err, ErrDestinationMissing)
}

func TestWebhookForwarder_PostsEmbed(t *testing.T) {
	var got webhookPayload
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := NewWebhookForwarder(srv.URL, 0, srv.Client())
	require.True(t, f.Configured())

	err := f.Forward(context.Background(), Request{
		Query:       "Da Hood",
		RequesterID: "42",
		Note:        "needs autofarm",
	})
	require.NoError(t, err)

	assert.Equal(t, "application/json", contentType)
	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "📝 New Script Request", e.Title)
	assert.Equal(t, 0xF1C40F, e.Color)
	require.Len(t, e.Fields, 3)
	assert.Equal(t, webhookField{Name: "Game", Value: "Da Hood"}, e.Fields[0])
	assert.Equal(t, webhookField{Name: "Requested by", Value: "<@42>"}, e.Fields[1])
	assert.Equal(t, webhookField{Name: "Extra info", Value: "needs autofarm"}, e.Fields[2])
	require.NotNil(t, e.Footer)
	assert.Equal(t, "Use /request again if you need to add more details.", e.Footer.Text)
}

func TestWebhookForwarder_TruncatesNote(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	note := strings.Repeat("é", 1200)
	err := NewWebhookForwarder(srv.URL, 0, nil).Forward(context.Background(), Request{Query: "x", Note: note})
	require.NoError(t, err)
	require.Len(t, got.Embeds[0].Fields, 3)
	assert.Equal(t, 1000, len([]rune(got.Embeds[0].Fields[2].Value)))
}

func TestWebhookForwarder_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewWebhookForwarder(srv.URL, 0, nil).Forward(context.Background(), Request{Query: "x"})
	assert.ErrorIs(t, err, ErrDeliveryFailed)
}

func TestWebhookForwarder_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL + "/api/webhooks/42/s3cretWebhookToken"
	srv.Close()

	err := NewWebhookForwarder(url, 0, nil).Forward(context.Background(), Request{Query: "x"})
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.NotContains(t, err.Error(), "s3cretWebhookToken")
	assert.Contains(t, err.Error(), "/api/webhooks/42/[REDACTED]")
}

func TestRequest_Mention(t *testing.T) {
	assert.Equal(t, "<@7>", Request{RequesterID: "7", RequesterName: "bob"}.Mention())
	assert.Equal(t, "bob", Request{RequesterName: "bob"}.Mention())
	assert.Equal(t, "unknown", Request{}.Mention())
}
