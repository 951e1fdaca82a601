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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/session"
)

// RequestIDHeader carries the correlation ID of a request.
const RequestIDHeader = "X-Request-ID"

// watchWriteTimeout bounds each websocket write.
const watchWriteTimeout = 5 * time.Second

// Handlers adapts a Service to gin.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	svc      *Service
	upgrader websocket.Upgrader
}

// NewHandlers creates Handlers for svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// getOrCreateRequestID returns the inbound request ID or a new one, and
// echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(RequestIDHeader, id)
	return id
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: err.Error(),
		Code:  CodeInvalidRequest,
	})
}

// HandleFind handles POST /v1/scripts/find.
//
// Description:
//
//	Resolves the query. The reply is an entry card, a prompt carrying a
//	session_id and Yes/No controls, or the not-found guidance.
//
// Response:
//
//	200 OK: reply.Reply
//	400 Bad Request: Missing query
func (h *Handlers) HandleFind(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleFind")

	var req FindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	r := h.svc.Find(c.Request.Context(), req.Query, req.Requester)
	logger.Info("find",
		slog.String("query", req.Query),
		slog.Bool("prompted", r.SessionID != ""),
	)
	c.JSON(http.StatusOK, r)
}

// HandleConfirm handles POST /v1/scripts/sessions/:id/confirm.
func (h *Handlers) HandleConfirm(c *gin.Context) {
	h.respond(c, session.EventConfirm, "HandleConfirm")
}

// HandleDecline handles POST /v1/scripts/sessions/:id/decline.
func (h *Handlers) HandleDecline(c *gin.Context) {
	h.respond(c, session.EventDecline, "HandleDecline")
}

// respond delivers a prompt answer.
//
// Response:
//
//	200 OK: reply.Reply
//	403 Forbidden: Responder is not the requester (ErrorResponse with reply)
//	404 Not Found: Unknown or evicted session
//	409 Conflict: Session already resolved or expired
func (h *Handlers) respond(c *gin.Context, ev session.Event, handler string) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", handler)

	var req RespondRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	id := c.Param("id")
	r, err := h.svc.Respond(c.Request.Context(), id, ev, req.Requester)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: CodeSessionNotFound})
		return
	case errors.Is(err, session.ErrSessionClosed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: CodeSessionClosed})
		return
	case errors.Is(err, session.ErrNotOwner):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: CodeNotOwner, Reply: &r})
		return
	case err != nil:
		logger.Error("respond failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternal})
		return
	}

	logger.Info("session answered",
		slog.String("session_id", id),
		slog.String("event", ev.String()),
	)
	c.JSON(http.StatusOK, r)
}

// HandleGetSession handles GET /v1/scripts/sessions/:id.
//
// Response:
//
//	200 OK: SessionView
//	404 Not Found: Unknown or evicted session
func (h *Handlers) HandleGetSession(c *gin.Context) {
	getOrCreateRequestID(c)

	s, err := h.svc.Session(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: CodeSessionNotFound})
		return
	}
	c.JSON(http.StatusOK, NewSessionView(s))
}

// HandleWatchSession handles GET /v1/scripts/sessions/:id/watch.
//
// Description:
//
//	Upgrades to a websocket, sends the current SessionView, and, if the
//	session is still pending, sends one more view when it resolves
//	(including silent expiry) before closing normally. Front ends use it
//	to disable their controls.
func (h *Handlers) HandleWatchSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleWatchSession")

	s, err := h.svc.Session(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: CodeSessionNotFound})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	// Drain client frames so close and ping are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(v SessionView) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
		if err := conn.WriteJSON(v); err != nil {
			logger.Debug("websocket write failed", slog.String("error", err.Error()))
			return false
		}
		return true
	}

	first := NewSessionView(s)
	if !send(first) {
		return
	}
	if first.State == session.StatePending.String() {
		select {
		case <-s.Done():
			if !send(NewSessionView(s)) {
				return
			}
		case <-gone:
			return
		}
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, s.State().String()),
		time.Now().Add(watchWriteTimeout))
}

// HandleSearch handles POST /v1/scripts/search.
func (h *Handlers) HandleSearch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSearch")

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	r := h.svc.Search(c.Request.Context(), req.Query)
	logger.Info("search", slog.String("query", req.Query), slog.Bool("found", r.Embed != nil))
	c.JSON(http.StatusOK, r)
}

// HandleRequest handles POST /v1/scripts/request.
//
// Notes longer than reply.MaxNoteLength runes are truncated, not rejected.
func (h *Handlers) HandleRequest(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRequest")

	var req RequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	r := h.svc.Request(c.Request.Context(), req.Query, req.Note, req.Requester)
	logger.Info("request", slog.String("query", req.Query))
	c.JSON(http.StatusOK, r)
}

// HandleHealth handles GET /v1/scripts/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

// HandleReady handles GET /v1/scripts/ready.
//
// Ready once a non-empty catalog is loaded, which NewService guarantees
// in practice.
func (h *Handlers) HandleReady(c *gin.Context) {
	resp := ReadyResponse{
		CatalogSize:    h.svc.catalog.Len(),
		Sessions:       h.svc.sessions.Len(),
		FallbackSearch: h.svc.source != nil,
		RequestForward: h.svc.forwarder != nil && h.svc.forwarder.Configured(),
	}
	resp.Ready = resp.CatalogSize > 0
	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
