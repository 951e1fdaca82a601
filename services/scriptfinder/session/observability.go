// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// sessionsActive tracks sessions still waiting for a response.
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "scriptfinder",
		Subsystem: "session",
		Name:      "active",
		Help:      "Disambiguation sessions currently pending.",
	})

	// sessionTransitionsTotal counts terminal transitions.
	// Labels: event (confirm, decline, expire), state (confirmed, declined, expired)
	sessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scriptfinder",
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Terminal session transitions by event and resulting state.",
	}, []string{"event", "state"})

	// sessionRejectedTotal counts events that did not change state.
	// Labels: event, reason (closed, not_owner)
	sessionRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scriptfinder",
		Subsystem: "session",
		Name:      "rejected_total",
		Help:      "Session events ignored because the session was closed or owned by someone else.",
	}, []string{"event", "reason"})

	// sessionDecisionSeconds measures time from prompt to resolution.
	sessionDecisionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scriptfinder",
		Subsystem: "session",
		Name:      "decision_seconds",
		Help:      "Time from prompt to terminal state.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 30},
	}, []string{"state"})
)
