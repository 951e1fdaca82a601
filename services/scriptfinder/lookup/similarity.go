// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lookup

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultCutoff is the minimum Similarity a catalog key needs to be offered
// as an approximate match. The comparison is inclusive.
const DefaultCutoff = 0.6

// Similarity returns the SequenceMatcher ratio of a and b.
//
// Description:
//
//	ratio = 2*M / (len(a) + len(b)), where M is the number of runes in the
//	matching blocks found by the Ratcliff/Obershelp algorithm. Lengths are
//	counted in runes. Two empty strings score 1.0. The result is in [0, 1].
//
//	a is the catalog key and b the query key; the algorithm is not strictly
//	symmetric, and this order is the one the resolver relies on.
//
// Thread Safety: Pure function; safe for concurrent use.
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return m.Ratio()
}

func splitRunes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "")
}
