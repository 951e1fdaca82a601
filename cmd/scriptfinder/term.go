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
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func envUser() string {
	for _, k := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// waitModel shows a spinner on stderr until its job finishes.
type waitModel[T any] struct {
	spinner spinner.Model
	label   string
	job     func() T
	result  T
	done    bool
}

type jobDoneMsg[T any] struct{ result T }

func (m waitModel[T]) Init() tea.Cmd {
	job := m.job
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return jobDoneMsg[T]{result: job()}
	})
}

func (m waitModel[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case jobDoneMsg[T]:
		m.result = msg.result
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m waitModel[T]) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + m.label + "\n"
}

// withSpinner runs job, animating a spinner on stderr when stderr is a
// terminal. Returns ctx.Err() or context.Canceled if the user aborts.
func withSpinner[T any](ctx context.Context, stderr io.Writer, label string, job func() T) (T, error) {
	if !isTerminal(stderr) {
		return job(), nil
	}

	m := waitModel[T]{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		label:   label,
		job:     job,
	}
	final, err := tea.NewProgram(m, tea.WithOutput(stderr), tea.WithContext(ctx)).Run()
	if err != nil {
		var zero T
		return zero, err
	}
	fm := final.(waitModel[T])
	if !fm.done {
		var zero T
		return zero, context.Canceled
	}
	return fm.result, nil
}
