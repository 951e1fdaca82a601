// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/catalog"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/config"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/fallback"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/forward"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/lookup"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/session"
	badgerstore "github.com/AleutianAI/scriptfinder/services/scriptfinder/storage/badger"
)

// runtimeDeps is everything built from a Config that needs closing.
type runtimeDeps struct {
	svc *scriptfinder.Service
	db  *badgerstore.DB
}

func (d *runtimeDeps) Close() {
	if d.svc != nil {
		d.svc.Close()
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			slog.Warn("Failed to close fallback cache", slog.String("error", err.Error()))
		}
	}
}

// buildService loads the catalog and wires the collaborators described by
// cfg.
//
// The fallback cache is optional: if its directory cannot be opened the
// service runs uncached.
func buildService(ctx context.Context, cfg *config.Config) (*runtimeDeps, error) {
	cat, err := catalog.LoadFile(ctx, cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("LoadCatalog: %w", err)
	}

	deps := &runtimeDeps{}
	source := buildSource(cfg.Fallback, deps)

	svcCfg := scriptfinder.DefaultServiceConfig()
	svcCfg.Cutoff = lookup.DefaultCutoff
	svcCfg.Sessions = session.Config{
		Timeout:         cfg.Session.Timeout,
		Retention:       cfg.Session.Retention,
		BindToRequester: cfg.Session.BindToRequester,
	}
	svcCfg.Source = source
	svcCfg.Forwarder = forward.NewWebhookForwarder(cfg.Forward.WebhookURL, cfg.Forward.Timeout, nil)

	deps.svc = scriptfinder.NewService(cat, svcCfg)
	return deps, nil
}

func buildSource(cfg config.FallbackConfig, deps *runtimeDeps) fallback.Source {
	if !cfg.Enabled {
		return nil
	}

	var token []byte
	if cfg.Token != "" {
		token = []byte(cfg.Token)
	}
	var src fallback.Source = fallback.NewGitHubSource(fallback.GitHubConfig{
		BaseURL:           cfg.BaseURL,
		Token:             token,
		PerPage:           cfg.PerPage,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Timeout:           cfg.Timeout,
	})

	if cfg.CacheDir == "" {
		return src
	}
	dbCfg := badgerstore.DefaultConfig()
	dbCfg.Path = cfg.CacheDir
	db, err := badgerstore.OpenDB(dbCfg)
	if err != nil {
		slog.Warn("Fallback cache BadgerDB unavailable, searching uncached",
			slog.String("path", cfg.CacheDir),
			slog.String("error", err.Error()),
		)
		return src
	}
	deps.db = db
	slog.Info("Fallback cache BadgerDB opened", slog.String("path", cfg.CacheDir))
	return fallback.NewCachedSource(src, db, cfg.CacheTTL, slog.Default())
}

// localRequester identifies the terminal user.
func localRequester() scriptfinder.Requester {
	name := "local"
	if u := envUser(); u != "" {
		name = u
	}
	return scriptfinder.Requester{ID: "cli:" + name, Name: name}
}
