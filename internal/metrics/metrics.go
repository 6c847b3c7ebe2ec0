// Package metrics holds Prometheus instruments that are used across the
// bot.  All collectors are registered with the global registry, so importing
// this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_verifications_total",
			Help: "Region verification attempts by outcome.",
		}, []string{"outcome"})

	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_transitions_total",
			Help: "Funnel steps entered, by step name.",
		}, []string{"step"})

	LinkClicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_link_clicks_total",
			Help: "Final links handed out, by region.",
		}, []string{"region"})

	BroadcastDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_deliveries_total",
			Help: "Broadcast deliveries by status (delivered, blocked, failed).",
		}, []string{"status"})

	BroadcastRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_runs_total",
			Help: "Cumulative number of broadcast runs started.",
		})

	ActiveSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of in-memory sessions, by table.",
		}, []string{"table"})

	SessionEvictTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_evicted_total",
			Help: "Sessions dropped by the idle evictor, by table.",
		}, []string{"table"})

	Updates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updates_total",
			Help: "Inbound platform updates, by event kind.",
		}, []string{"kind"})

	DuplicateUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "updates_duplicate_total",
			Help: "Redelivered updates dropped before dispatch.",
		})
)

func init() {
	prometheus.MustRegister(
		Verifications,
		Transitions,
		LinkClicks,
		BroadcastDeliveries,
		BroadcastRuns,
		ActiveSessions,
		SessionEvictTotal,
		Updates,
		DuplicateUpdates,
	)
}
