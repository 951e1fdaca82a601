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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/reply"
)

var requestNote string

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <game>",
		Short: "Search GitHub for a script not in the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearchCommand,
	}
}

func runSearchCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.Join(args, " ")

	deps, err := buildService(ctx, appConfig)
	if err != nil {
		return err
	}
	defer deps.Close()

	r, err := withSpinner(ctx, cmd.ErrOrStderr(), "Searching GitHub…", func() reply.Reply {
		return deps.svc.Search(ctx, query)
	})
	if err != nil {
		return err
	}
	renderReply(cmd.OutOrStdout(), r, isTerminal(cmd.OutOrStdout()))
	return nil
}

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request <game>",
		Short: "Ask staff to add a script",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRequestCommand,
	}
	cmd.Flags().StringVar(&requestNote, "note", "", "extra details (up to 1000 characters)")
	return cmd
}

func runRequestCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.Join(args, " ")

	deps, err := buildService(ctx, appConfig)
	if err != nil {
		return err
	}
	defer deps.Close()

	r := deps.svc.Request(ctx, query, requestNote, localRequester())
	renderReply(cmd.OutOrStdout(), r, isTerminal(cmd.OutOrStdout()))
	return nil
}
