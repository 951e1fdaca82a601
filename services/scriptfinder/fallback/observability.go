// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fallback

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const fallbackTracerName = "scriptfinder.fallback"

var (
	fallbackCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scriptfinder",
		Subsystem: "fallback",
		Name:      "calls_total",
		Help:      "Fallback searches by source and result",
	}, []string{"source", "result"})

	fallbackDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scriptfinder",
		Subsystem: "fallback",
		Name:      "duration_seconds",
		Help:      "Fallback search latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"source"})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scriptfinder",
		Subsystem: "fallback",
		Name:      "cache_lookups_total",
		Help:      "Fallback cache lookups by result",
	}, []string{"result"})
)

func recordSearch(source string, elapsed time.Duration, found bool, err error) {
	result := "empty"
	switch {
	case err != nil && errors.Is(err, ErrUnavailable):
		result = "unavailable"
	case err != nil:
		result = "error"
	case found:
		result = "found"
	}
	fallbackCallsTotal.WithLabelValues(source, result).Inc()
	fallbackDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}
