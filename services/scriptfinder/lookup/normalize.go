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

import "github.com/AleutianAI/scriptfinder/services/scriptfinder/keys"

// Normalize is keys.Normalize, re-exported for callers that only deal
// with the resolver.
func Normalize(raw string) string { return keys.Normalize(raw) }

// DisplayName is keys.DisplayName.
func DisplayName(key string) string { return keys.DisplayName(key) }
