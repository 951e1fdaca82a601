// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lookup resolves canonical keys against the script catalog.
//
// Resolution is exact first; only on an exact miss is every catalog key
// scored with Similarity, and the single best key at or above the cutoff is
// proposed as a Candidate. The package has no side effects beyond telemetry.
package lookup

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/catalog"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/keys"
)

// OutcomeKind enumerates resolver results.
type OutcomeKind int

const (
	// Miss means neither an exact nor an approximate entry exists.
	Miss OutcomeKind = iota
	// ExactHit means the key is present in the catalog.
	ExactHit
	// ApproximateHit means a different key scored at or above the cutoff.
	ApproximateHit
)

// String returns the label used in logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case ExactHit:
		return "exact"
	case ApproximateHit:
		return "approximate"
	default:
		return "miss"
	}
}

// Candidate is a catalog entry proposed for a query it did not exactly match.
type Candidate struct {
	// Key is the canonical catalog key.
	Key string
	// Entry is a copy of the catalog entry.
	Entry catalog.Entry
	// DisplayName is keys.DisplayName(Key).
	DisplayName string
	// Score is the Similarity of Key against the query key.
	Score float64
}

// Outcome is the result of Resolve.
//
// Exactly one of Entry (ExactHit) or Candidate (ApproximateHit) is
// meaningful; both are zero for Miss.
type Outcome struct {
	Kind      OutcomeKind
	Key       string
	Entry     catalog.Entry
	Candidate Candidate
}

// Resolver resolves keys against a fixed catalog snapshot.
//
// Thread Safety: Safe for concurrent use; the catalog is immutable.
type Resolver struct {
	catalog *catalog.Catalog
	cutoff  float64
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCutoff overrides DefaultCutoff. Values outside (0, 1] are ignored.
func WithCutoff(cutoff float64) ResolverOption {
	return func(r *Resolver) {
		if cutoff > 0 && cutoff <= 1 {
			r.cutoff = cutoff
		}
	}
}

// NewResolver creates a Resolver over c.
//
// Inputs:
//
//	c - The catalog snapshot. Must not be nil.
//	opts - Optional settings.
func NewResolver(c *catalog.Catalog, opts ...ResolverOption) *Resolver {
	if c == nil {
		panic("NewResolver: catalog must not be nil")
	}
	r := &Resolver{catalog: c, cutoff: DefaultCutoff}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cutoff returns the similarity cutoff in use.
func (r *Resolver) Cutoff() float64 {
	return r.cutoff
}

// Resolve looks up a canonical key.
//
// Description:
//
//	1. Exact: key present in the catalog returns ExactHit, and no
//	   similarity is computed.
//	2. Approximate: every catalog key is scored with Similarity(catalogKey,
//	   key). The highest score at or above the cutoff wins. Equal scores
//	   are broken by the lexicographically greatest key, so the result never
//	   depends on map iteration order.
//	3. Otherwise Miss. An empty key is always a Miss.
//
// Inputs:
//
//	ctx - Context for tracing.
//	key - A canonical key produced by keys.Normalize.
//
// Outputs:
//
//	Outcome - Never an error; one of ExactHit, ApproximateHit or Miss.
func (r *Resolver) Resolve(ctx context.Context, key string) Outcome {
	_, span := otel.Tracer(lookupTracerName).Start(ctx, "lookup.Resolver.Resolve")
	defer span.End()

	out := r.resolve(key)

	span.SetAttributes(
		attribute.String("outcome", out.Kind.String()),
		attribute.Int("catalog_size", r.catalog.Len()),
	)
	if out.Kind == ApproximateHit {
		span.SetAttributes(
			attribute.String("candidate", out.Candidate.Key),
			attribute.Float64("score", out.Candidate.Score),
		)
	}
	recordOutcome(out.Kind)
	return out
}

// ResolveQuery normalizes a raw query and resolves it.
func (r *Resolver) ResolveQuery(ctx context.Context, query string) Outcome {
	return r.Resolve(ctx, keys.Normalize(query))
}

func (r *Resolver) resolve(key string) Outcome {
	if key == "" {
		return Outcome{Kind: Miss}
	}

	if entry, ok := r.catalog.Lookup(key); ok {
		return Outcome{Kind: ExactHit, Key: key, Entry: entry}
	}

	bestKey, bestScore := "", -1.0
	r.catalog.Each(func(k string) bool {
		score := Similarity(k, key)
		if score < r.cutoff {
			return true
		}
		// Keys arrive in ascending order, so >= lets the greater key win ties.
		if score >= bestScore {
			bestKey, bestScore = k, score
		}
		return true
	})

	if bestKey == "" {
		return Outcome{Kind: Miss, Key: key}
	}

	entry, _ := r.catalog.Lookup(bestKey)
	return Outcome{
		Kind: ApproximateHit,
		Key:  key,
		Candidate: Candidate{
			Key:         bestKey,
			Entry:       entry,
			DisplayName: keys.DisplayName(bestKey),
			Score:       bestScore,
		},
	}
}
