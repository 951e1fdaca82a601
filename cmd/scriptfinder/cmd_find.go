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
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/reply"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/session"
)

// findYes accepts an approximate match without prompting.
var findYes bool

type promptAnswer int

const (
	answerNone promptAnswer = iota
	answerYes
	answerNo
)

func newFindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <game>",
		Short: "Look up a script by game title",
		Long: "Look up a script by game title. When only a close match exists you are\n" +
			"asked to confirm it; the question times out like the chat prompt does.",
		Args: cobra.MinimumNArgs(1),
		RunE: runFindCommand,
	}
	cmd.Flags().BoolVarP(&findYes, "yes", "y", false, "accept a close match without asking")
	return cmd
}

func runFindCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.Join(args, " ")

	deps, err := buildService(ctx, appConfig)
	if err != nil {
		return err
	}
	defer deps.Close()

	out := cmd.OutOrStdout()
	styled := isTerminal(out)
	who := localRequester()

	r := deps.svc.Find(ctx, query, who)
	if r.SessionID == "" {
		renderReply(out, r, styled)
		return nil
	}

	answer, err := askConfirm(ctx, cmd, r, deps.svc.Sessions().Timeout())
	if err != nil {
		return err
	}

	var ev session.Event
	switch answer {
	case answerYes:
		ev = session.EventConfirm
	case answerNo:
		ev = session.EventDecline
	default:
		return nil
	}

	res, err := deps.svc.Respond(ctx, r.SessionID, ev, who)
	if errors.Is(err, session.ErrSessionClosed) {
		fmt.Fprintln(cmd.ErrOrStderr(), "⌛ That suggestion expired. Run find again.")
		return nil
	}
	if err != nil {
		return err
	}
	renderReply(out, res, styled)
	return nil
}

// askConfirm resolves a prompt reply into an answer.
//
// With --yes the match is accepted. Without a terminal on stdin the prompt
// text is printed and the session is left to expire. Otherwise a huh
// confirm runs with the session timeout; timing out is answerNone.
func askConfirm(ctx context.Context, cmd *cobra.Command, r reply.Reply, timeout time.Duration) (promptAnswer, error) {
	if findYes {
		return answerYes, nil
	}
	if !isTerminal(os.Stdin) || !isTerminal(cmd.ErrOrStderr()) {
		fmt.Fprintln(cmd.OutOrStdout(), r.Content)
		return answerNone, nil
	}

	affirmative, negative := "Yes", "No"
	if len(r.Controls) == 2 {
		affirmative, negative = r.Controls[0].Label, r.Controls[1].Label
	}

	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(strings.ReplaceAll(r.Content, "**", "")).
			Affirmative(affirmative).
			Negative(negative).
			Value(&ok),
	)).
		WithTimeout(timeout).
		WithProgramOptions(tea.WithOutput(cmd.ErrOrStderr()))

	err := form.RunWithContext(ctx)
	switch {
	case errors.Is(err, huh.ErrTimeout), errors.Is(err, huh.ErrUserAborted):
		return answerNone, nil
	case err != nil:
		return answerNone, fmt.Errorf("prompt: %w", err)
	case ok:
		return answerYes, nil
	default:
		return answerNo, nil
	}
}
