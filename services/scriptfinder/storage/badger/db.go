// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps an embedded BadgerDB instance with context-aware
// transaction helpers.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// ErrClosed is returned by transaction helpers after Close.
var ErrClosed = errors.New("badger: database closed")

// Config configures OpenDB.
type Config struct {
	// Path is the on-disk directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in RAM. Used by tests.
	InMemory bool

	// ReadOnly opens an existing on-disk database without write access.
	ReadOnly bool

	// SyncWrites fsyncs every write. Off by default; the data stored here
	// is a cache and can be lost.
	SyncWrites bool
}

// DefaultConfig returns an on-disk configuration with an empty Path.
// Callers must set Path.
func DefaultConfig() Config {
	return Config{}
}

// InMemoryConfig returns a configuration for a throwaway in-memory database.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// DB is an open BadgerDB handle.
//
// Thread Safety: Safe for concurrent use.
type DB struct {
	db *dgbadger.DB
}

// OpenDB opens (creating if needed) the database described by cfg.
//
// Outputs:
//
//	*DB - The open database. Close it when done.
//	error - Non-nil if the directory cannot be created or opened.
func OpenDB(cfg Config) (*DB, error) {
	var opts dgbadger.Options
	if cfg.InMemory {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("OpenDB: path must not be empty")
		}
		if cfg.ReadOnly {
			if _, err := os.Stat(cfg.Path); err != nil {
				return nil, fmt.Errorf("OpenDB: %w", err)
			}
		} else if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("OpenDB: create %s: %w", cfg.Path, err)
		}
		opts = dgbadger.DefaultOptions(cfg.Path).WithReadOnly(cfg.ReadOnly)
	}
	opts = opts.WithLogger(nil).WithSyncWrites(cfg.SyncWrites)

	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("OpenDB: %w", err)
	}
	slog.Debug("badger database opened",
		slog.String("path", cfg.Path),
		slog.Bool("in_memory", cfg.InMemory),
	)
	return &DB{db: db}, nil
}

// WithReadTxn runs fn in a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.db.IsClosed() {
		return ErrClosed
	}
	return d.db.View(fn)
}

// WithTxn runs fn in a read-write transaction and commits it if fn
// returns nil.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.db.IsClosed() {
		return ErrClosed
	}
	return d.db.Update(fn)
}

// Close flushes and closes the database.
func (d *DB) Close() error {
	if d.db.IsClosed() {
		return nil
	}
	return d.db.Close()
}
