// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package redact strips credentials from strings before they are logged or
// returned in errors.
package redact

import (
	"regexp"
)

type pattern struct {
	re          *regexp.Regexp
	replacement string
}

// patterns are applied in order. More specific forms come first.
var patterns = []pattern{
	// Chat webhook URL: https://<host>/api/webhooks/<id>/<token>
	{
		re:          regexp.MustCompile(`(/api/webhooks/\d+/)[A-Za-z0-9._-]+`),
		replacement: "${1}[REDACTED]",
	},
	// Fine-grained GitHub token: github_pat_<base62/underscore, 22+ chars>
	{
		re:          regexp.MustCompile(`github_pat_[A-Za-z0-9_]{22,}`),
		replacement: "[REDACTED:github_token]",
	},
	// Classic GitHub tokens: ghp_, gho_, ghu_, ghs_, ghr_ + 36 base62
	{
		re:          regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{20,}`),
		replacement: "[REDACTED:github_token]",
	},
	// Authorization header values: "token <x>" or "Bearer <x>"
	{
		re:          regexp.MustCompile(`(?i)\b(token|bearer)\s+[A-Za-z0-9._-]{10,}`),
		replacement: "${1} [REDACTED]",
	},
	// Credentials in URL query parameters
	{
		re:          regexp.MustCompile(`\b(access_token|token|key)=[A-Za-z0-9._-]{10,}`),
		replacement: "${1}=[REDACTED]",
	},
}

// SafeLogString returns s with known credential shapes replaced.
//
// Thread Safety: Safe for concurrent use; patterns are compiled once.
func SafeLogString(s string) string {
	if s == "" {
		return s
	}
	for _, p := range patterns {
		s = p.re.ReplaceAllString(s, p.replacement)
	}
	return s
}

// Error is SafeLogString(err.Error()), or "" for a nil error.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return SafeLogString(err.Error())
}
