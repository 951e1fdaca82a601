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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// lookupTracerName is the OTel tracer name for the resolver.
const lookupTracerName = "scriptfinder.lookup"

var (
	// lookupOutcomesTotal counts resolver outcomes.
	//
	// Labels:
	//   - outcome: "exact", "approximate", "miss"
	lookupOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scriptfinder",
			Subsystem: "lookup",
			Name:      "outcomes_total",
			Help:      "Total resolver outcomes by kind.",
		},
		[]string{"outcome"},
	)
)

func recordOutcome(kind OutcomeKind) {
	lookupOutcomesTotal.WithLabelValues(kind.String()).Inc()
}
