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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/catalog"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/keys"
)

var listJSON bool

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the script catalog",
	}

	validate := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check that a catalog file loads",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCatalogValidate,
	}

	list := &cobra.Command{
		Use:   "list [file]",
		Short: "List catalog entries",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCatalogList,
	}
	list.Flags().BoolVar(&listJSON, "json", false, "print entries as JSON")

	cmd.AddCommand(validate, list)
	return cmd
}

func catalogArg(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return appConfig.Catalog.Path
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	path := catalogArg(args)
	c, err := catalog.LoadFile(cmd.Context(), path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s: %d entries\n", path, c.Len())
	return nil
}

// listedEntry is the JSON shape of one catalog list row.
type listedEntry struct {
	Key         string   `json:"key"`
	DisplayName string   `json:"display_name"`
	KeyNeeded   bool     `json:"key_needed"`
	Executors   []string `json:"executors"`
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	c, err := catalog.LoadFile(cmd.Context(), catalogArg(args))
	if err != nil {
		return err
	}

	rows := make([]listedEntry, 0, c.Len())
	c.Each(func(key string) bool {
		e, _ := c.Lookup(key)
		rows = append(rows, listedEntry{
			Key:         key,
			DisplayName: keys.DisplayName(key),
			KeyNeeded:   e.KeyNeeded,
			Executors:   e.Executors,
		})
		return true
	})

	out := cmd.OutOrStdout()
	switch {
	case listJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case isTerminal(out):
		fmt.Fprintln(out, renderCatalogTable(rows))
		return nil
	default:
		return writeCatalogTabs(out, rows)
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func renderCatalogTable(rows []listedEntry) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("KEY", "GAME", "KEY NEEDED", "WORKS WITH")
	for _, r := range rows {
		t.Row(r.Key, r.DisplayName, yesNo(r.KeyNeeded), strings.Join(r.Executors, ", "))
	}
	return t.Render()
}

func writeCatalogTabs(w io.Writer, rows []listedEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tGAME\tKEY NEEDED\tWORKS WITH")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Key, r.DisplayName, yesNo(r.KeyNeeded), strings.Join(r.Executors, ", "))
	}
	return tw.Flush()
}
