// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fallback finds scripts outside the local catalog.
//
// A Source is consulted only on explicit request (the /botsearch command);
// the lookup path never calls it. GitHubSource searches public Lua code and
// CachedSource keeps positive results in BadgerDB for a while.
package fallback

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable wraps every failure to reach or understand the remote
// service. Callers present it exactly like an empty result.
var ErrUnavailable = errors.New("fallback source unavailable")

// Result is one externally sourced script.
type Result struct {
	// Script is a ready-to-paste loader line.
	Script string `json:"script"`
	// RawURL is the raw file the script loads.
	RawURL string `json:"raw_url"`
	// HTMLURL is the human-facing page of the source file.
	HTMLURL string `json:"html_url"`
}

// Source looks up a raw query.
//
// Search returns (nil, nil) when the source has no result and a non-nil
// error (wrapping ErrUnavailable) when it could not answer.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Source interface {
	Search(ctx context.Context, query string) (*Result, error)
}

// Terms splits a query on whitespace.
func Terms(query string) []string {
	return strings.Fields(query)
}

// queryKey is the identity used to collapse and cache equivalent queries.
func queryKey(query string) string {
	return strings.ToLower(strings.Join(Terms(query), " "))
}
