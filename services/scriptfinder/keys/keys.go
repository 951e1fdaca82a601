// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package keys maps free-text game titles to canonical catalog keys and back
// to human-readable display names.
//
// Normalize is the only way a query or a catalog key becomes a lookup key, so
// the loader and the resolver always agree on what "the same game" means.
package keys

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleLanguage selects language-neutral title casing rules.
var titleLanguage = language.Und

// Normalize maps a raw query to its canonical lookup key.
//
// Description:
//
//	Lowercases the input and removes every Unicode whitespace rune. The
//	result is used purely as a matching key and is never shown to users.
//
// Inputs:
//
//	raw - Free-text query. May be empty.
//
// Outputs:
//
//	string - The canonical key. Empty when raw is empty or all whitespace.
//
// Thread Safety: Pure function; safe for concurrent use.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.ToLower(raw))
}

// IsCanonical reports whether key is already in normalized form.
func IsCanonical(key string) bool {
	return Normalize(key) == key
}

// DisplayName turns a canonical key back into a title for presentation.
//
// Description:
//
//	Every run of non-alphanumeric runes becomes a single space, the result
//	is trimmed and title-cased. A key with no separators ("bloxfruits")
//	yields a single word ("Bloxfruits").
//
// Thread Safety: Safe for concurrent use.
func DisplayName(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	inGap := false
	for _, r := range key {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			inGap = false
			continue
		}
		if !inGap {
			b.WriteByte(' ')
			inGap = true
		}
	}
	return Title(strings.TrimSpace(b.String()))
}

// Title title-cases free text, e.g. a raw query echoed back in a reply.
//
// Description:
//
//	Every maximal run of cased letters is a word: its first rune is
//	title-cased and the rest lowercased. Digits, punctuation and spaces are
//	uncased and end a word, so "1v1lol" becomes "1V1Lol" and "bedwars2x"
//	becomes "Bedwars2X".
//
// Thread Safety: Safe for concurrent use; a Caser is created per call.
func Title(s string) string {
	caser := cases.Title(titleLanguage)
	var b strings.Builder
	b.Grow(len(s))
	start := -1
	for i, r := range s {
		if isCased(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			b.WriteString(caser.String(s[start:i]))
			start = -1
		}
		b.WriteRune(r)
	}
	if start >= 0 {
		b.WriteString(caser.String(s[start:]))
	}
	return b.String()
}

func isCased(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
}
