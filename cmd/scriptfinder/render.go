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
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/reply"
)

var (
	fieldNameStyle = lipgloss.NewStyle().Bold(true)
	footerStyle    = lipgloss.NewStyle().Faint(true).Italic(true)
)

func hexColor(c int) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%06X", c&0xFFFFFF))
}

// renderReply writes r for a terminal. styled selects lipgloss boxes over
// plain text.
func renderReply(w io.Writer, r reply.Reply, styled bool) {
	if r.Content != "" {
		fmt.Fprintln(w, r.Content)
	}
	if r.Embed == nil {
		return
	}
	if styled {
		fmt.Fprintln(w, renderEmbedStyled(*r.Embed))
		return
	}
	fmt.Fprint(w, renderEmbedPlain(*r.Embed))
}

func renderEmbedPlain(e reply.Embed) string {
	var b strings.Builder
	b.WriteString(e.Title + "\n")
	if e.Description != "" {
		b.WriteString(e.Description + "\n")
	}
	for _, f := range e.Fields {
		fmt.Fprintf(&b, "%s: %s\n", f.Name, f.Value)
	}
	if e.Footer != "" {
		b.WriteString(e.Footer + "\n")
	}
	return b.String()
}

func renderEmbedStyled(e reply.Embed) string {
	color := hexColor(e.Color)
	title := lipgloss.NewStyle().Bold(true).Foreground(color).Render(e.Title)

	blocks := []string{title}
	if e.Description != "" {
		blocks = append(blocks, e.Description)
	}

	var inline, stacked []string
	for _, f := range e.Fields {
		cell := fieldNameStyle.Render(f.Name) + "\n" + f.Value
		if f.Inline {
			inline = append(inline, lipgloss.NewStyle().PaddingRight(4).Render(cell))
		} else {
			stacked = append(stacked, cell)
		}
	}
	if len(inline) > 0 {
		blocks = append(blocks, lipgloss.JoinHorizontal(lipgloss.Top, inline...))
	}
	blocks = append(blocks, stacked...)
	if e.Footer != "" {
		blocks = append(blocks, footerStyle.Render(e.Footer))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Render(strings.Join(blocks, "\n\n"))
}
