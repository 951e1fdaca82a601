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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/reply"
)

func setupTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc))
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandleFind(t *testing.T) {
	svc, _ := newTestService(t, nil)
	router := setupTestRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/v1/scripts/find", FindRequest{Query: "Rivals", Requester: alice})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	r := decode[reply.Reply](t, w)
	require.NotNil(t, r.Embed)
	assert.Equal(t, "📜 Script for Rivals", r.Embed.Title)
	assert.Equal(t, reply.ColorScript, r.Embed.Color)
}

func TestHandleFind_EchoesRequestID(t *testing.T) {
	svc, _ := newTestService(t, nil)
	router := setupTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/scripts/find", strings.NewReader(`{"query":"rivals"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestHandleFind_MissingQuery(t *testing.T) {
	svc, _ := newTestService(t, nil)
	router := setupTestRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/v1/scripts/find", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidRequest, decode[ErrorResponse](t, w).Code)
}

func TestHandleConfirmFlow(t *testing.T) {
	svc, _ := newTestService(t, nil)
	router := setupTestRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/v1/scripts/find", FindRequest{Query: "Rival", Requester: alice})
	require.Equal(t, http.StatusOK, w.Code)
	prompt := decode[reply.Reply](t, w)
	require.NotEmpty(t, prompt.SessionID)
	base := "/v1/scripts/sessions/" + prompt.SessionID

	w = doJSON(t, router, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[SessionView](t, w)
	assert.Equal(t, "pending", view.State)
	assert.Equal(t, "Rivals", view.Candidate)
	assert.Equal(t, "Rival", view.Query)
	assert.Nil(t, view.ResolvedAt)
	require.Len(t, view.Controls, 2)
	assert.False(t, view.Controls[0].Disabled)

	w = doJSON(t, router, http.MethodPost, base+"/confirm", RespondRequest{Requester: bob})
	require.Equal(t, http.StatusForbidden, w.Code)
	forbidden := decode[ErrorResponse](t, w)
	assert.Equal(t, CodeNotOwner, forbidden.Code)
	require.NotNil(t, forbidden.Reply)
	assert.True(t, forbidden.Reply.Ephemeral)

	w = doJSON(t, router, http.MethodPost, base+"/confirm", RespondRequest{Requester: alice})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	r := decode[reply.Reply](t, w)
	require.NotNil(t, r.Embed)
	assert.Equal(t, "📜 Script for Rivals", r.Embed.Title)

	w = doJSON(t, router, http.MethodPost, base+"/decline", RespondRequest{Requester: alice})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeSessionClosed, decode[ErrorResponse](t, w).Code)

	w = doJSON(t, router, http.MethodGet, base, nil)
	view = decode[SessionView](t, w)
	assert.Equal(t, "confirmed", view.State)
	assert.NotNil(t, view.ResolvedAt)
	assert.True(t, view.Controls[0].Disabled)
	assert.True(t, view.Controls[1].Disabled)
}

func TestHandleDecline_NoBody(t *testing.T) {
	svc, _ := newTestService(t, func(cfg *ServiceConfig) { cfg.Sessions.BindToRequester = false })
	router := setupTestRouter(svc)

	prompt := decode[reply.Reply](t, doJSON(t, router, http.MethodPost, "/v1/scripts/find", FindRequest{Query: "Rival"}))
	req := httptest.NewRequest(http.MethodPost, "/v1/scripts/sessions/"+prompt.SessionID+"/decline", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decode[reply.Reply](t, w).Content, "Okay.")
}

func TestHandleSession_NotFound(t *testing.T) {
	svc, _ := newTestService(t, nil)
	router := setupTestRouter(svc)

	w := doJSON(t, router, http.MethodGet, "/v1/scripts/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/scripts/sessions/nope/confirm", RespondRequest{Requester: alice})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeSessionNotFound, decode[ErrorResponse](t, w).Code)
}

func TestHandleSession_ExpiredShowsDisabledControls(t *testing.T) {
	svc, clock := newTestService(t, nil)
	router := setupTestRouter(svc)

	prompt := decode[reply.Reply](t, doJSON(t, router, http.MethodPost, "/v1/scripts/find", FindRequest{Query: "Rival", Requester: alice}))
	clock.Advance(15 * time.Second)

	view := decode[SessionView](t, doJSON(t, router, http.MethodGet, "/v1/scripts/sessions/"+prompt.SessionID, nil))
	assert.Equal(t, "expired", view.State)
	assert.True(t, view.Controls[0].Disabled)
}

func TestHandleWatchSession(t *testing.T) {
	svc, clock := newTestService(t, nil)
	router := setupTestRouter(svc)
	srv := httptest.NewServer(router)
	defer srv.Close()

	prompt := svc.Find(t.Context(), "Rival", alice)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/scripts/sessions/" + prompt.SessionID + "/watch"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first SessionView
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "pending", first.State)

	clock.Advance(15 * time.Second)

	var second SessionView
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "expired", second.State)
	assert.True(t, second.Controls[0].Disabled)

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
}

func TestHandleWatchSession_NotFound(t *testing.T) {
	svc, _ := newTestService(t, nil)
	srv := httptest.NewServer(setupTestRouter(svc))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/scripts/sessions/nope/watch"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleSearchAndRequest(t *testing.T) {
	fw := &stubForwarder{configured: true}
	svc, _ := newTestService(t, func(cfg *ServiceConfig) {
		cfg.Source = stubSource{}
		cfg.Forwarder = fw
	})
	router := setupTestRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/v1/scripts/search", SearchRequest{Query: "doors"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[reply.Reply](t, w).Content, "Couldn’t find anything")

	w = doJSON(t, router, http.MethodPost, "/v1/scripts/request", RequestRequest{Query: "doors", Note: "pls", Requester: alice})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "✅ Your request has been forwarded!", decode[reply.Reply](t, w).Content)
	require.Len(t, fw.got, 1)
	assert.Equal(t, "pls", fw.got[0].Note)

	w = doJSON(t, router, http.MethodPost, "/v1/scripts/request", map[string]string{"note": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealthAndReady(t *testing.T) {
	svc, _ := newTestService(t, nil)
	router := setupTestRouter(svc)

	w := doJSON(t, router, http.MethodGet, "/v1/scripts/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[HealthResponse](t, w).Status)

	w = doJSON(t, router, http.MethodGet, "/v1/scripts/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ready := decode[ReadyResponse](t, w)
	assert.True(t, ready.Ready)
	assert.Equal(t, 3, ready.CatalogSize)
	assert.False(t, ready.FallbackSearch)
	assert.False(t, ready.RequestForward)
}
