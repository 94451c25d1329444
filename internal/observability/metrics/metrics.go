// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	catalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinebot_catalog_requests_total",
		Help: "Catalog requests by catalog, operation and result (ok, not_found, unavailable, cached)",
	}, []string{"catalog", "op", "result"})

	resolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinebot_resolve_total",
		Help: "Finished resolutions by outcome (record, ai_text, not_found)",
	}, []string{"outcome"})

	resolveStates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinebot_resolve_state_total",
		Help: "Resolution engine state entries",
	}, []string{"state"})

	ephemeralDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinebot_ephemeral_deletes_total",
		Help: "Ephemeral message deletions by result (ok, gone, error, superseded)",
	}, []string{"result"})

	ephemeralPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cinebot_ephemeral_pending",
		Help: "Pending ephemeral deletions",
	})

	broadcastTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinebot_broadcast_ticks_total",
		Help: "Broadcast ticks by result (sent, empty, overlap, error)",
	}, []string{"result"})

	broadcastDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinebot_broadcast_deliveries_total",
		Help: "Per-target broadcast deliveries by result",
	}, []string{"result"})

	busDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cinebot_bus_dropped_total",
		Help: "In-process events dropped on full subscriber buffers",
	})

	updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinebot_updates_total",
		Help: "Inbound Telegram updates by kind and route",
	}, []string{"kind", "route"})
)

func CatalogRequest(catalog, op, result string) {
	catalogRequests.WithLabelValues(catalog, op, result).Inc()
}

func Resolved(outcome string) { resolveTotal.WithLabelValues(outcome).Inc() }

func ResolveState(state string) { resolveStates.WithLabelValues(state).Inc() }

func EphemeralDelete(result string) { ephemeralDeletes.WithLabelValues(result).Inc() }

func SetEphemeralPending(n int) { ephemeralPending.Set(float64(n)) }

func BroadcastTick(result string) { broadcastTicks.WithLabelValues(result).Inc() }

func BroadcastDelivery(ok bool) {
	r := "ok"
	if !ok {
		r = "failed"
	}
	broadcastDeliveries.WithLabelValues(r).Inc()
}

// AddBusDrops adds a delta read from the event bus drop counter.
func AddBusDrops(n uint64) {
	if n > 0 {
		busDrops.Add(float64(n))
	}
}

func Update(kind, route string) {
	if route == "" {
		route = "none"
	}
	updatesTotal.WithLabelValues(kind, route).Inc()
}
