// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fallback

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	badgerstore "github.com/AleutianAI/scriptfinder/services/scriptfinder/storage/badger"
)

// DefaultCacheTTL is how long a found script stays cached.
const DefaultCacheTTL = 6 * time.Hour

// CacheKeyPrefix namespaces fallback results inside the BadgerDB.
const CacheKeyPrefix = "fallback/search/v1/"

var errCacheMiss = errors.New("cache miss")

// cachedRecord is the gob-encoded value stored per query.
type cachedRecord struct {
	Query    string
	Result   Result
	StoredAt time.Time
}

// CacheEntry describes one stored record, for inspection tools.
type CacheEntry struct {
	Key       string
	Query     string
	Result    Result
	StoredAt  time.Time
	ExpiresAt time.Time
	RawSize   int
	DecodeErr error
}

// CachedSource decorates a Source with a BadgerDB-backed result cache.
//
// Description:
//
//	Only positive results are stored; an empty answer or an error from the
//	wrapped source is never cached, so a script published later is found
//	on the next request. Cache failures are logged and fall through to the
//	wrapped source.
//
// Thread Safety: Safe for concurrent use.
type CachedSource struct {
	inner  Source
	db     *badgerstore.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedSource wraps inner. Panics if inner or db is nil.
func NewCachedSource(inner Source, db *badgerstore.DB, ttl time.Duration, logger *slog.Logger) *CachedSource {
	if inner == nil {
		panic("NewCachedSource: inner must not be nil")
	}
	if db == nil {
		panic("NewCachedSource: db must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{inner: inner, db: db, ttl: ttl, logger: logger}
}

// Search implements Source.
func (c *CachedSource) Search(ctx context.Context, query string) (*Result, error) {
	qk := queryKey(query)
	if qk == "" {
		return nil, nil
	}
	key := cacheKey(qk)

	cached, err := c.load(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("fallback cache: load failed", slog.String("error", err.Error()))
	case cached != nil:
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		c.logger.Debug("fallback cache: hit", slog.String("query", qk))
		return cached, nil
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()

	res, err := c.inner.Search(ctx, query)
	if err != nil || res == nil {
		return res, err
	}
	if err := c.save(ctx, key, qk, res); err != nil {
		c.logger.Warn("fallback cache: save failed", slog.String("error", err.Error()))
	}
	return res, nil
}

func (c *CachedSource) load(ctx context.Context, key []byte) (*Result, error) {
	var raw []byte
	err := c.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})
	if errors.Is(err, errCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fallback cache load: %w", err)
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("fallback cache decode: %w", err)
	}
	return &rec.Result, nil
}

func (c *CachedSource) save(ctx context.Context, key []byte, qk string, res *Result) error {
	var buf bytes.Buffer
	rec := cachedRecord{Query: qk, Result: *res, StoredAt: time.Now().UTC()}
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("fallback cache encode: %w", err)
	}
	err := c.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.SetEntry(dgbadger.NewEntry(key, buf.Bytes()).WithTTL(c.ttl))
	})
	if err != nil {
		return fmt.Errorf("fallback cache save: %w", err)
	}
	return nil
}

func cacheKey(qk string) []byte {
	sum := sha256.Sum256([]byte(qk))
	return []byte(CacheKeyPrefix + hex.EncodeToString(sum[:]))
}

func decodeRecord(raw []byte) (cachedRecord, error) {
	var rec cachedRecord
	err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec)
	return rec, err
}

// ListCache returns every fallback record in db, in key order. Records
// that fail to decode are returned with DecodeErr set.
func ListCache(ctx context.Context, db *badgerstore.DB) ([]CacheEntry, error) {
	var entries []CacheEntry
	err := db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(CacheKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			e := CacheEntry{Key: string(item.Key())}
			if exp := item.ExpiresAt(); exp > 0 {
				e.ExpiresAt = time.Unix(int64(exp), 0)
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				e.DecodeErr = fmt.Errorf("copy value: %w", err)
				entries = append(entries, e)
				continue
			}
			e.RawSize = len(raw)
			if rec, err := decodeRecord(raw); err != nil {
				e.DecodeErr = fmt.Errorf("gob decode: %w", err)
			} else {
				e.Query, e.Result, e.StoredAt = rec.Query, rec.Result, rec.StoredAt
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ListCache: %w", err)
	}
	return entries, nil
}
