// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reply composes the user-facing messages of the bot.
//
// Every function here is deterministic and free of I/O. Transports (the HTTP
// API, the terminal front end, the request webhook) render the same Reply
// values in their own way.
package reply

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/catalog"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/keys"
)

// Embed colors.
const (
	ColorScript  = 0x00FF99
	ColorSearch  = 0x3498DB
	ColorRequest = 0xF1C40F
)

// MaxNoteLength is the longest request note forwarded, in runes.
const MaxNoteLength = 1000

// ControlStyle is the visual weight of an interactive control.
type ControlStyle string

const (
	StyleSuccess ControlStyle = "success"
	StyleDanger  ControlStyle = "danger"
)

// Control actions.
const (
	ActionConfirm = "confirm"
	ActionDecline = "decline"
)

// Field is one name/value row of an Embed.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Embed is structured rich content.
type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color"`
	Fields      []Field `json:"fields,omitempty"`
	Footer      string  `json:"footer,omitempty"`
}

// Control is an interactive button bound to a session.
type Control struct {
	ID       string       `json:"id"`
	Action   string       `json:"action"`
	Label    string       `json:"label"`
	Style    ControlStyle `json:"style"`
	Disabled bool         `json:"disabled"`
}

// Reply is what the bot answers with.
type Reply struct {
	Content   string    `json:"content,omitempty"`
	Embed     *Embed    `json:"embed,omitempty"`
	Controls  []Control `json:"controls,omitempty"`
	Ephemeral bool      `json:"ephemeral"`
	SessionID string    `json:"session_id,omitempty"`
}

// Entry presents a catalog entry under "Script for <title>".
func Entry(title string, e catalog.Entry) Reply {
	return Reply{Embed: EntryEmbed(title, e)}
}

// EntryEmbed builds the script card for a catalog entry.
func EntryEmbed(title string, e catalog.Entry) *Embed {
	keyNeeded := "No"
	if e.KeyNeeded {
		keyNeeded = "Yes"
	}
	return &Embed{
		Title:       "📜 Script for " + title,
		Description: luaBlock(e.Script),
		Color:       ColorScript,
		Fields: []Field{
			{Name: "🔑 Key Needed", Value: keyNeeded, Inline: true},
			{Name: "🛠️ Works With", Value: strings.Join(e.Executors, ", "), Inline: true},
		},
		Footer: "Use scripts at your own risk.",
	}
}

// ExactTitle is the card title for an exact hit: the query as typed,
// title-cased.
func ExactTitle(query string) string {
	return keys.Title(query)
}

// Miss suggests the fallback search and a staff request for query.
func Miss(query string) Reply {
	return Reply{
		Content: fmt.Sprintf("❌ Script not found.\nTry `/botsearch %s` or submit a request with `/request %s`.",
			query, query),
		Ephemeral: true,
	}
}

// Prompt asks the user to confirm an approximate match.
func Prompt(query, displayName, sessionID string) Reply {
	return Reply{
		Content:   fmt.Sprintf("❓ Script not found for `%s`.\nDid you mean **%s**?", query, displayName),
		Controls:  PromptControls(sessionID, false),
		Ephemeral: true,
		SessionID: sessionID,
	}
}

// PromptControls returns the Yes/No pair of a prompt.
func PromptControls(sessionID string, disabled bool) []Control {
	return []Control{
		{ID: ActionConfirm + ":" + sessionID, Action: ActionConfirm, Label: "✅ Yes", Style: StyleSuccess, Disabled: disabled},
		{ID: ActionDecline + ":" + sessionID, Action: ActionDecline, Label: "❌ No", Style: StyleDanger, Disabled: disabled},
	}
}

// Declined is shown after the user rejects a candidate.
func Declined() Reply {
	return Reply{
		Content:   "❌ Okay. Try `/botsearch` or submit a request with `/request`.",
		Ephemeral: true,
	}
}

// NotOwner answers a prompt response from someone other than the requester.
func NotOwner() Reply {
	return Reply{
		Content:   "⚠️ This suggestion belongs to someone else. Run `/find` yourself.",
		Ephemeral: true,
	}
}

// SearchResult is a script found by the fallback source.
func SearchResult(query, script, sourceURL string) Reply {
	return Reply{Embed: &Embed{
		Title:       "🔍 Possible script for " + keys.Title(query),
		Description: luaBlock(script),
		Color:       ColorSearch,
		Fields: []Field{
			{Name: "Source (GitHub)", Value: sourceURL},
		},
		Footer: "Not in the local DB. Add it with /request if it works!",
	}}
}

// SearchMiss is shown when the fallback source found nothing.
func SearchMiss(query string) Reply {
	return Reply{
		Content: fmt.Sprintf("❌ Couldn’t find anything.\nTry `/find %s` or submit `/request %s`.",
			query, query),
		Ephemeral: true,
	}
}

// RequestEmbed is the staff notification for a script request.
func RequestEmbed(query, requesterMention, note string) Embed {
	e := Embed{
		Title: "📝 New Script Request",
		Color: ColorRequest,
		Fields: []Field{
			{Name: "Game", Value: query},
			{Name: "Requested by", Value: requesterMention},
		},
		Footer: "Use /request again if you need to add more details.",
	}
	if note != "" {
		e.Fields = append(e.Fields, Field{Name: "Extra info", Value: TruncateNote(note)})
	}
	return e
}

// TruncateNote cuts note to MaxNoteLength runes.
func TruncateNote(note string) string {
	r := []rune(note)
	if len(r) <= MaxNoteLength {
		return note
	}
	return string(r[:MaxNoteLength])
}

// RequestForwarded confirms a delivered request.
func RequestForwarded() Reply {
	return Reply{Content: "✅ Your request has been forwarded!", Ephemeral: true}
}

// RequestNotConfigured reports a missing forwarding destination.
func RequestNotConfigured(setting string) Reply {
	return Reply{
		Content:   fmt.Sprintf("❌ Bot owner hasn’t set `%s`.", setting),
		Ephemeral: true,
	}
}

// RequestFailed reports a delivery failure.
func RequestFailed() Reply {
	return Reply{
		Content:   "❌ Can’t reach the request channel. Check the webhook URL.",
		Ephemeral: true,
	}
}

func luaBlock(script string) string {
	return "```lua\n" + script + "\n```"
}
