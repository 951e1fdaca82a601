// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package forward delivers script requests to the staff channel.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/redact"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/reply"
)

// DestinationSetting names the setting that holds the webhook URL.
const DestinationSetting = "REQUEST_WEBHOOK_URL"

const forwardTracerName = "scriptfinder.forward"

var (
	// ErrDestinationMissing means no destination is configured.
	ErrDestinationMissing = errors.New("request destination not configured")

	// ErrDeliveryFailed wraps transport and non-2xx failures.
	ErrDeliveryFailed = errors.New("request delivery failed")
)

var forwardTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "scriptfinder",
	Name:      "forward_total",
	Help:      "Forwarded script requests by result",
}, []string{"result"})

// Request is one user request for a missing script.
type Request struct {
	Query         string
	RequesterID   string
	RequesterName string
	Note          string
}

// Mention renders the requester as a chat mention, or by name when no
// ID is known.
func (r Request) Mention() string {
	if r.RequesterID != "" {
		return "<@" + r.RequesterID + ">"
	}
	if r.RequesterName != "" {
		return r.RequesterName
	}
	return "unknown"
}

// Forwarder delivers requests.
type Forwarder interface {
	// Configured reports whether a destination exists.
	Configured() bool

	// Forward delivers req. Returns ErrDestinationMissing when not
	// configured and an error wrapping ErrDeliveryFailed otherwise.
	Forward(ctx context.Context, req Request) error
}

// WebhookForwarder posts requests as an embed to a chat webhook.
//
// Thread Safety: Safe for concurrent use.
type WebhookForwarder struct {
	url    string
	client *http.Client
}

// NewWebhookForwarder creates a forwarder for url. An empty url yields a
// forwarder that reports ErrDestinationMissing.
func NewWebhookForwarder(url string, timeout time.Duration, client *http.Client) *WebhookForwarder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &WebhookForwarder{url: strings.TrimSpace(url), client: client}
}

// Configured implements Forwarder.
func (w *WebhookForwarder) Configured() bool {
	return w.url != ""
}

type webhookPayload struct {
	Embeds []webhookEmbed `json:"embeds"`
}

type webhookEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []webhookField `json:"fields,omitempty"`
	Footer      *webhookFooter `json:"footer,omitempty"`
}

type webhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type webhookFooter struct {
	Text string `json:"text"`
}

func toWebhookEmbed(e reply.Embed) webhookEmbed {
	out := webhookEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, webhookField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.Footer != "" {
		out.Footer = &webhookFooter{Text: e.Footer}
	}
	return out
}

// Forward implements Forwarder.
//
// Description:
//
//	Builds the "New Script Request" embed (note truncated to
//	reply.MaxNoteLength runes) and POSTs it as JSON. Any 2xx status is
//	success; webhooks usually answer 204.
func (w *WebhookForwarder) Forward(ctx context.Context, req Request) (err error) {
	if !w.Configured() {
		forwardTotal.WithLabelValues("not_configured").Inc()
		return ErrDestinationMissing
	}

	ctx, span := otel.Tracer(forwardTracerName).Start(ctx, "forward.WebhookForwarder.Forward")
	defer span.End()
	span.SetAttributes(attribute.Bool("has_note", req.Note != ""))
	defer func() {
		if err != nil {
			forwardTotal.WithLabelValues("failed").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "forward failed")
			return
		}
		forwardTotal.WithLabelValues("delivered").Inc()
	}()

	payload := webhookPayload{Embeds: []webhookEmbed{
		toWebhookEmbed(reply.RequestEmbed(req.Query, req.Mention(), req.Note)),
	}}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("Forward: marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, redact.Error(err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, redact.Error(err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: webhook returned %d", ErrDeliveryFailed, resp.StatusCode)
	}

	slog.Info("script request forwarded",
		slog.String("query", req.Query),
		slog.String("requester", req.Mention()),
	)
	return nil
}
