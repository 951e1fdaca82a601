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
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/fallback"
	badgerstore "github.com/AleutianAI/scriptfinder/services/scriptfinder/storage/badger"
)

var cacheDumpPath string

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the fallback search cache",
	}

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print cached GitHub search results",
		Long: "Opens the fallback cache read-only and prints each cached query with\n" +
			"its source URL, age and remaining TTL. Stop a running server first;\n" +
			"BadgerDB allows only one process to hold the directory.",
		Args: cobra.NoArgs,
		RunE: runCacheDump,
	}
	dump.Flags().StringVar(&cacheDumpPath, "path", "", "cache directory; overrides fallback.cache_dir")

	cmd.AddCommand(dump)
	return cmd
}

func runCacheDump(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	path := cacheDumpPath
	if path == "" {
		path = appConfig.Fallback.CacheDir
	}
	if path == "" {
		fmt.Fprintln(out, "No cache directory configured. Set fallback.cache_dir or SCRIPTFINDER_CACHE_DIR.")
		return nil
	}
	fmt.Fprintf(out, "Fallback cache path: %s\n", path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "Cache directory does not exist. No search has been cached yet.")
		return nil
	}

	cfg := badgerstore.DefaultConfig()
	cfg.Path = path
	cfg.ReadOnly = true
	db, err := badgerstore.OpenDB(cfg)
	if err != nil {
		return fmt.Errorf("open fallback cache: %w", err)
	}
	defer func() { _ = db.Close() }()

	entries, err := fallback.ListCache(cmd.Context(), db)
	if err != nil {
		return err
	}
	writeCacheDump(out, entries, time.Now())
	return nil
}

func writeCacheDump(w io.Writer, entries []fallback.CacheEntry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "\nNo cached search results.")
		return
	}

	fmt.Fprintf(w, "\nFound %d cached result%s:\n", len(entries), plural(len(entries), "", "s"))
	fmt.Fprintln(w, strings.Repeat("─", 80))

	for i, e := range entries {
		fmt.Fprintf(w, "\n[%d] Query:    %s\n", i+1, e.Query)
		fmt.Fprintf(w, "    Key:      %s\n", e.Key)

		if e.ExpiresAt.IsZero() {
			fmt.Fprintln(w, "    TTL:      no expiry set")
		} else if remaining := e.ExpiresAt.Sub(now); remaining < 0 {
			fmt.Fprintf(w, "    TTL:      EXPIRED (%s ago)\n", (-remaining).Round(time.Second))
		} else {
			fmt.Fprintf(w, "    TTL:      %s remaining (expires %s)\n",
				remaining.Round(time.Second),
				e.ExpiresAt.Format("2006-01-02 15:04:05 MST"),
			)
		}
		fmt.Fprintf(w, "    Raw size: %s\n", formatBytes(e.RawSize))

		if e.DecodeErr != nil {
			fmt.Fprintf(w, "    DECODE ERROR: %v\n", e.DecodeErr)
			continue
		}
		if !e.StoredAt.IsZero() {
			fmt.Fprintf(w, "    Stored:   %s ago\n", now.Sub(e.StoredAt).Round(time.Second))
		}
		fmt.Fprintf(w, "    Source:   %s\n", e.Result.HTMLURL)
		fmt.Fprintf(w, "    Raw:      %s\n", e.Result.RawURL)
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("─", 80))
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(n int) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB (%d bytes)", float64(n)/1024/1024, n)
	case n >= 1024:
		return fmt.Sprintf("%.1f KB (%d bytes)", float64(n)/1024, n)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

func plural(n int, singular, pluralSuffix string) string {
	if n == 1 {
		return singular
	}
	return pluralSuffix
}
