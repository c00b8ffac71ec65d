/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry holds Prometheus metrics and OpenTelemetry tracing setup.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts admin API requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_api_requests_total",
		Help: "Total admin API requests by method, endpoint, and status code.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes admin API latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hearth_api_request_duration_seconds",
		Help:    "Admin API request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight admin API requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hearth_api_active_connections",
		Help: "In-flight admin API requests.",
	})

	// PollsTotal counts playback status polls by result.
	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_playback_polls_total",
		Help: "Playback status polls by result (ok, connection_error, error).",
	}, []string{"result"})

	// TransitionsTotal counts inferred track transitions by detection kind.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_playback_transitions_total",
		Help: "Inferred track transitions by detection kind (position_reset, beyond_expected).",
	}, []string{"kind"})

	// SessionsStartedTotal counts viewing sessions started.
	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hearth_sessions_started_total",
		Help: "Viewing sessions started.",
	})

	// SessionsEndedTotal counts viewing sessions ended, by reason.
	SessionsEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_sessions_ended_total",
		Help: "Viewing sessions ended by reason (exhausted, stopped).",
	}, []string{"reason"})

	// OffAirEntriesTotal counts transitions into the off-air fallback.
	OffAirEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hearth_offair_entries_total",
		Help: "Times the orchestrator fell back to the off-air asset.",
	})

	// QueueDepth gauges the pending upcoming-queue length.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hearth_queue_depth",
		Help: "Items pending in the upcoming queue.",
	})

	// LibraryItems gauges indexed media items by type.
	LibraryItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hearth_library_items",
		Help: "Indexed media items by type.",
	}, []string{"media_type"})
)

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
