// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog holds the immutable in-memory script catalog.
//
// A Catalog is built once at process start from a structured data file and
// is read-only afterwards, so it can be shared by every request goroutine
// without locking.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/keys"
)

// ErrInvalidCatalog is returned for any malformed or inconsistent catalog
// data. It is a startup error: callers must not serve with a partial catalog.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Entry is one script record.
//
// Thread Safety: Treated as immutable once stored in a Catalog. Accessors on
// Catalog return copies so callers cannot alias the stored Executors slice.
type Entry struct {
	// Script is the script body shown to the user.
	Script string `json:"script" yaml:"script" toml:"script"`

	// KeyNeeded reports whether the script requires a key system.
	KeyNeeded bool `json:"key_needed" yaml:"key_needed" toml:"key_needed"`

	// Executors lists compatible executors in display order.
	Executors []string `json:"executors" yaml:"executors" toml:"executors"`
}

func (e Entry) clone() Entry {
	e.Executors = slices.Clone(e.Executors)
	return e
}

// Catalog maps canonical keys to entries.
//
// Thread Safety: Immutable after New returns; safe for concurrent use.
type Catalog struct {
	entries map[string]Entry
	keys    []string
}

// New builds a Catalog from raw keyed entries.
//
// Description:
//
//	Every key is passed through keys.Normalize. Two raw keys that collapse
//	to the same canonical key, or a key that normalizes to the empty
//	string, make the catalog invalid.
//
// Inputs:
//
//	raw - Entries keyed by game identifier. Not retained.
//
// Outputs:
//
//	*Catalog - The immutable catalog. Never nil on success.
//	error - Wraps ErrInvalidCatalog on key collisions or empty keys.
func New(raw map[string]Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make(map[string]Entry, len(raw)),
		keys:    make([]string, 0, len(raw)),
	}

	// Sorted so that collision errors name the same pair on every run.
	rawKeys := make([]string, 0, len(raw))
	for k := range raw {
		rawKeys = append(rawKeys, k)
	}
	sort.Strings(rawKeys)

	origin := make(map[string]string, len(raw))
	for _, rk := range rawKeys {
		key := keys.Normalize(rk)
		if key == "" {
			return nil, fmt.Errorf("%w: key %q is empty after normalization", ErrInvalidCatalog, rk)
		}
		if prev, dup := origin[key]; dup {
			return nil, fmt.Errorf("%w: keys %q and %q both normalize to %q", ErrInvalidCatalog, prev, rk, key)
		}
		origin[key] = rk
		c.entries[key] = raw[rk].clone()
		c.keys = append(c.keys, key)
	}
	sort.Strings(c.keys)

	return c, nil
}

// Lookup returns the entry stored under a canonical key.
func (c *Catalog) Lookup(key string) (Entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Keys returns all canonical keys in ascending order. The slice is a copy.
func (c *Catalog) Keys() []string {
	return slices.Clone(c.keys)
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Each calls fn for every key in ascending order until fn returns false.
//
// The resolver uses this to scan without copying the key slice per query.
func (c *Catalog) Each(fn func(key string) bool) {
	for _, k := range c.keys {
		if !fn(k) {
			return
		}
	}
}
