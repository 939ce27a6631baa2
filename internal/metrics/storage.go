// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchAttemptsTotal counts download attempts by result.
	FetchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_fetch_attempts_total",
		Help: "Download attempts by result",
	}, []string{"result"})

	// FetchBytesTotal counts bytes written by completed downloads.
	FetchBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loopcast_fetch_bytes_total",
		Help: "Bytes persisted by successful downloads",
	})

	// FetchDuration tracks wall time of whole downloads (all attempts).
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loopcast_fetch_duration_seconds",
		Help:    "Total download duration including retries",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"result"})

	// UploadsTotal counts media uploads by result.
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_uploads_total",
		Help: "Media uploads by result",
	}, []string{"result"})

	// JanitorRemovedTotal counts files removed by the temp janitor.
	JanitorRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_janitor_removed_total",
		Help: "Temp entries handled by the janitor",
	}, []string{"result"})
)

// IncFetchAttempt records a single download attempt.
func IncFetchAttempt(result string) { FetchAttemptsTotal.WithLabelValues(result).Inc() }

// AddFetchBytes adds persisted download bytes.
func AddFetchBytes(n int64) {
	if n > 0 {
		FetchBytesTotal.Add(float64(n))
	}
}

// ObserveFetchDuration records a finished download.
func ObserveFetchDuration(result string, seconds float64) {
	FetchDuration.WithLabelValues(result).Observe(seconds)
}

// IncUpload records an upload outcome.
func IncUpload(result string) { UploadsTotal.WithLabelValues(result).Inc() }

// IncJanitor records a janitor removal outcome.
func IncJanitor(result string) { JanitorRemovedTotal.WithLabelValues(result).Inc() }
