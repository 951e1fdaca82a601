// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry installs the process-wide tracer provider, propagator
// and slog logger.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// EnvOTLPEndpoint enables the OTLP gRPC exporter when set.
const EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"

// Options selects trace exporters.
type Options struct {
	// ServiceName is recorded as the service.name resource attribute.
	ServiceName string

	// Version is recorded as service.version when set.
	Version string

	// Stdout writes spans to StdoutWriter (os.Stderr when nil).
	Stdout       bool
	StdoutWriter io.Writer

	// OTLPEndpoint overrides the OTEL_EXPORTER_OTLP_ENDPOINT lookup.
	OTLPEndpoint string
}

// ShutdownFunc flushes and stops exporters.
type ShutdownFunc func(context.Context) error

// Setup installs a global tracer provider and the W3C propagators.
//
// Description:
//
//	With no exporter selected the global provider is left alone (spans are
//	no-ops) but the propagator is still installed so inbound trace context
//	flows through otelgin. Each selected exporter gets a batch span
//	processor on one shared provider.
//
// Outputs:
//
//	ShutdownFunc - Always non-nil. Call it before exit.
//	error - Non-nil if an exporter cannot be created.
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	endpoint := opts.OTLPEndpoint
	if endpoint == "" {
		endpoint = os.Getenv(EnvOTLPEndpoint)
	}
	if !opts.Stdout && endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	var tpOpts []sdktrace.TracerProviderOption
	if opts.Stdout {
		w := opts.StdoutWriter
		if w == nil {
			w = os.Stderr
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("Setup: stdout exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	if endpoint != "" {
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(endpoint))
		if err != nil {
			return nil, fmt.Errorf("Setup: otlp exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}

	res, err := newResource(opts)
	if err != nil {
		return nil, fmt.Errorf("Setup: %w", err)
	}
	tpOpts = append(tpOpts, sdktrace.WithResource(res))

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	slog.Debug("tracing enabled",
		slog.Bool("stdout", opts.Stdout),
		slog.String("otlp_endpoint", endpoint),
	)
	return tp.Shutdown, nil
}

func newResource(opts Options) (*resource.Resource, error) {
	name := opts.ServiceName
	if name == "" {
		name = "scriptfinder"
	}
	attrs := []attribute.KeyValue{attribute.String("service.name", name)}
	if opts.Version != "" {
		attrs = append(attrs, attribute.String("service.version", opts.Version))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil && !errors.Is(err, resource.ErrSchemaURLConflict) {
		return nil, fmt.Errorf("building resource: %w", err)
	}
	return res, nil
}

// NewLogger builds the process logger. JSON output is used when json is
// true, text otherwise.
func NewLogger(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
