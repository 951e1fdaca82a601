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
	"time"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/reply"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/session"
)

// ErrorResponse is the error envelope of every handler.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`

	// Reply carries a user-visible message when there is one.
	Reply *reply.Reply `json:"reply,omitempty"`
}

// Error codes.
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeSessionClosed   = "SESSION_CLOSED"
	CodeNotOwner        = "NOT_OWNER"
	CodeInternal        = "INTERNAL_ERROR"
)

// FindRequest is the body of POST /v1/scripts/find.
type FindRequest struct {
	Query     string    `json:"query" binding:"required"`
	Requester Requester `json:"requester"`
}

// RespondRequest is the body of the confirm and decline endpoints.
type RespondRequest struct {
	Requester Requester `json:"requester"`
}

// SearchRequest is the body of POST /v1/scripts/search.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
}

// RequestRequest is the body of POST /v1/scripts/request.
type RequestRequest struct {
	Query     string    `json:"query" binding:"required"`
	Note      string    `json:"note"`
	Requester Requester `json:"requester"`
}

// SessionView is the externally visible state of a session.
type SessionView struct {
	ID         string          `json:"id"`
	State      string          `json:"state"`
	Query      string          `json:"query"`
	Candidate  string          `json:"candidate"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
	Controls   []reply.Control `json:"controls"`
}

// NewSessionView snapshots s. Controls are disabled once s is resolved.
func NewSessionView(s *session.Session) SessionView {
	state := s.State()
	v := SessionView{
		ID:        s.ID(),
		State:     state.String(),
		Query:     s.Query(),
		Candidate: s.Candidate().DisplayName,
		CreatedAt: s.CreatedAt(),
		ExpiresAt: s.ExpiresAt(),
		Controls:  reply.PromptControls(s.ID(), state.Terminal()),
	}
	if tr, ok := s.Resolution(); ok {
		at := tr.At
		v.ResolvedAt = &at
	}
	return v
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is returned by the readiness endpoint.
type ReadyResponse struct {
	Ready          bool `json:"ready"`
	CatalogSize    int  `json:"catalog_size"`
	Sessions       int  `json:"sessions"`
	FallbackSearch bool `json:"fallback_search"`
	RequestForward bool `json:"request_forward"`
}
