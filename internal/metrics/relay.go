// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics holds the Prometheus collectors shared across loopcast.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StreamActive is 1 while a relay session is active.
	StreamActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "loopcast_stream_active",
		Help: "Whether a relay stream is currently active (1) or not (0)",
	})

	// StreamPhaseTransitions counts state machine transitions.
	StreamPhaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_stream_phase_transitions_total",
		Help: "Total number of stream state transitions",
	}, []string{"from", "to"})

	// StreamStartsTotal counts start requests by outcome.
	StreamStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_stream_starts_total",
		Help: "Total number of stream start requests by result",
	}, []string{"result"})

	// StreamStartupLatency tracks time from start request to process launch.
	StreamStartupLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loopcast_stream_startup_latency_seconds",
		Help:    "Time from start request to a launched relay process",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"source_kind"})

	// ProcessExitsTotal counts relay process exits by reason.
	ProcessExitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_process_exits_total",
		Help: "Total number of relay process exits",
	}, []string{"reason"})

	// ProcSignalsTotal counts signals delivered to process groups.
	ProcSignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_proc_signals_total",
		Help: "Signals sent to relay process groups by outcome",
	}, []string{"signal", "result"})

	// ResolveTotal counts source resolutions by kind and result.
	ResolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_source_resolve_total",
		Help: "Total number of source resolutions",
	}, []string{"kind", "result"})

	// PlatformCacheTotal counts platform resolution cache lookups.
	PlatformCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_platform_cache_total",
		Help: "Platform format cache lookups by result",
	}, []string{"result"})
)

// SetStreamActive mirrors the session flag into the gauge.
func SetStreamActive(active bool) {
	if active {
		StreamActive.Set(1)
		return
	}
	StreamActive.Set(0)
}

// IncPhaseTransition records a state transition.
func IncPhaseTransition(from, to string) {
	StreamPhaseTransitions.WithLabelValues(from, to).Inc()
}

// IncStreamStart records a start request outcome.
func IncStreamStart(result string) {
	if result == "" {
		result = "unknown"
	}
	StreamStartsTotal.WithLabelValues(result).Inc()
}

// ObserveStartupLatency records the startup latency for the given source kind.
func ObserveStartupLatency(kind string, seconds float64) {
	StreamStartupLatency.WithLabelValues(kind).Observe(seconds)
}

// IncProcessExit records a relay process exit.
func IncProcessExit(reason string) {
	ProcessExitsTotal.WithLabelValues(reason).Inc()
}

// IncProcSignal records a signal delivery to a process group.
func IncProcSignal(signal, result string) {
	ProcSignalsTotal.WithLabelValues(signal, result).Inc()
}

// IncResolve records a source resolution outcome.
func IncResolve(kind, result string) {
	ResolveTotal.WithLabelValues(kind, result).Inc()
}

// IncPlatformCache records a cache hit or miss.
func IncPlatformCache(result string) { PlatformCacheTotal.WithLabelValues(result).Inc() }
