// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scriptfinder is the script lookup service: it resolves game titles
// against the catalog, runs the "did you mean" confirmation exchange, and
// fronts the fallback search and staff request forwarding.
//
// Service holds the transport-independent operations. Handlers expose them
// as a JSON interaction API under /v1/scripts.
package scriptfinder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/catalog"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/fallback"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/forward"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/lookup"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/redact"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/reply"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/session"
)

const serviceTracerName = "scriptfinder.service"

// ErrInvalidEvent is returned by Respond for events users cannot send.
var ErrInvalidEvent = errors.New("invalid session event")

// Requester identifies the user behind an interaction.
type Requester struct {
	// ID is the stable chat user ID. Sessions are bound to it.
	ID string `json:"id"`
	// Name is a display name used when ID is unknown.
	Name string `json:"name,omitempty"`
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Cutoff is the minimum similarity of an approximate match.
	Cutoff float64

	// Sessions configures the disambiguation registry.
	Sessions session.Config

	// Source answers /botsearch. Nil disables it.
	Source fallback.Source

	// Forwarder delivers /request. Nil means not configured.
	Forwarder forward.Forwarder

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultServiceConfig returns the production defaults with no collaborators.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Cutoff: lookup.DefaultCutoff,
		Sessions: session.Config{
			Timeout:         session.DefaultTimeout,
			Retention:       session.DefaultRetention,
			BindToRequester: true,
		},
	}
}

// Service implements the bot's operations independently of any transport.
//
// Thread Safety: Safe for concurrent use. The catalog is shared read-only;
// sessions synchronize themselves.
type Service struct {
	catalog   *catalog.Catalog
	resolver  *lookup.Resolver
	sessions  *session.Registry
	source    fallback.Source
	forwarder forward.Forwarder
	logger    *slog.Logger
}

// NewService creates a Service over c. Panics if c is nil.
func NewService(c *catalog.Catalog, cfg ServiceConfig) *Service {
	if c == nil {
		panic("NewService: catalog must not be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Sessions.Logger == nil {
		cfg.Sessions.Logger = logger
	}
	if cfg.Sessions.OnResolved == nil {
		cfg.Sessions.OnResolved = func(sess *session.Session, tr session.Transition) {
			logger.Debug("session resolved",
				slog.String("session_id", sess.ID()),
				slog.String("key", sess.Candidate().Key),
				slog.String("state", tr.To.String()),
			)
		}
	}
	var opts []lookup.ResolverOption
	if cfg.Cutoff > 0 {
		opts = append(opts, lookup.WithCutoff(cfg.Cutoff))
	}
	return &Service{
		catalog:   c,
		resolver:  lookup.NewResolver(c, opts...),
		sessions:  session.NewRegistry(cfg.Sessions),
		source:    cfg.Source,
		forwarder: cfg.Forwarder,
		logger:    logger,
	}
}

// Catalog returns the loaded catalog.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Sessions returns the session registry.
func (s *Service) Sessions() *session.Registry { return s.sessions }

// Close stops all session timers.
func (s *Service) Close() {
	s.sessions.Close()
}

// Find looks up query and returns what the bot should answer.
//
// Description:
//
//	An exact hit is presented directly under the query title-cased. An
//	approximate hit starts a disambiguation session owned by who and
//	returns a Yes/No prompt; the caller later delivers the answer through
//	Respond. A miss suggests /botsearch and /request.
//
// Inputs:
//
//	ctx - Context for tracing.
//	query - Raw user input.
//	who - The requester. who.ID owns any session started.
//
// Outputs:
//
//	reply.Reply - Never an error; a miss is a normal reply.
func (s *Service) Find(ctx context.Context, query string, who Requester) reply.Reply {
	ctx, span := otel.Tracer(serviceTracerName).Start(ctx, "scriptfinder.Service.Find")
	defer span.End()

	out := s.resolver.ResolveQuery(ctx, query)
	span.SetAttributes(attribute.String("outcome", out.Kind.String()))

	switch out.Kind {
	case lookup.ExactHit:
		return reply.Entry(reply.ExactTitle(query), out.Entry)
	case lookup.ApproximateHit:
		sess := s.sessions.Start(out.Candidate, query, who.ID)
		span.SetAttributes(attribute.String("session_id", sess.ID()))
		return reply.Prompt(query, out.Candidate.DisplayName, sess.ID())
	default:
		return reply.Miss(query)
	}
}

// Respond applies a user's answer to a pending prompt.
//
// Outputs:
//
//	reply.Reply - The entry on confirm, guidance on decline, or the
//	  not-owner notice alongside ErrNotOwner.
//	error - session.ErrSessionNotFound, session.ErrSessionClosed,
//	  session.ErrNotOwner or ErrInvalidEvent.
func (s *Service) Respond(ctx context.Context, sessionID string, ev session.Event, who Requester) (reply.Reply, error) {
	_, span := otel.Tracer(serviceTracerName).Start(ctx, "scriptfinder.Service.Respond")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("event", ev.String()),
	)

	if ev != session.EventConfirm && ev != session.EventDecline {
		return reply.Reply{}, fmt.Errorf("Respond: %w: %s", ErrInvalidEvent, ev)
	}

	sess, tr, err := s.sessions.Respond(sessionID, ev, who.ID)
	switch {
	case errors.Is(err, session.ErrNotOwner):
		return reply.NotOwner(), err
	case err != nil:
		return reply.Reply{}, err
	}

	if tr.To == session.StateConfirmed {
		c := sess.Candidate()
		return reply.Entry(c.DisplayName, c.Entry), nil
	}
	return reply.Declined(), nil
}

// Session returns a live or recently resolved session.
func (s *Service) Session(id string) (*session.Session, error) {
	return s.sessions.Get(id)
}

// Search asks the fallback source for query.
//
// Failures of the source are logged and answered like an empty result.
func (s *Service) Search(ctx context.Context, query string) reply.Reply {
	ctx, span := otel.Tracer(serviceTracerName).Start(ctx, "scriptfinder.Service.Search")
	defer span.End()

	if s.source == nil || strings.TrimSpace(query) == "" {
		return reply.SearchMiss(query)
	}

	res, err := s.source.Search(ctx, query)
	if err != nil {
		s.logger.Warn("fallback search failed",
			slog.String("query", query),
			slog.String("error", redact.Error(err)),
		)
		return reply.SearchMiss(query)
	}
	if res == nil {
		span.SetAttributes(attribute.Bool("found", false))
		return reply.SearchMiss(query)
	}
	span.SetAttributes(attribute.Bool("found", true))
	return reply.SearchResult(query, res.Script, res.HTMLURL)
}

// Request forwards a script request to staff.
func (s *Service) Request(ctx context.Context, query, note string, who Requester) reply.Reply {
	ctx, span := otel.Tracer(serviceTracerName).Start(ctx, "scriptfinder.Service.Request")
	defer span.End()

	if s.forwarder == nil || !s.forwarder.Configured() {
		return reply.RequestNotConfigured(forward.DestinationSetting)
	}

	err := s.forwarder.Forward(ctx, forward.Request{
		Query:         query,
		RequesterID:   who.ID,
		RequesterName: who.Name,
		Note:          reply.TruncateNote(note),
	})
	switch {
	case errors.Is(err, forward.ErrDestinationMissing):
		return reply.RequestNotConfigured(forward.DestinationSetting)
	case err != nil:
		s.logger.Warn("request forward failed",
			slog.String("query", query),
			slog.String("error", redact.Error(err)),
		)
		return reply.RequestFailed()
	}
	return reply.RequestForwarded()
}
