// Package observability holds the Prometheus metrics and OpenTelemetry
// tracing setup shared across the service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks currently open push-stream connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dotspark",
		Subsystem: "events",
		Name:      "active_connections",
		Help:      "Number of open push-stream connections.",
	})

	// EventsPublished counts events fanned out to connections, by type.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dotspark",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Events published to the change bus, by event type.",
	}, []string{"type"})

	// EventsDropped counts events dropped because a connection was slow or
	// the broadcast queue was full.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dotspark",
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Events dropped due to slow connections or a full queue.",
	})

	// MappingOperations counts successful mapping mutations.
	MappingOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dotspark",
		Subsystem: "grid",
		Name:      "mapping_operations_total",
		Help:      "Successful mapping mutations, by operation and action.",
	}, []string{"operation", "action"})

	// PositionsSaved counts committed placements, single and batch.
	PositionsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dotspark",
		Subsystem: "grid",
		Name:      "positions_saved_total",
		Help:      "Committed element placements, by element type.",
	}, []string{"element_type"})

	// CollisionsDetected counts placements rejected by collision validation.
	CollisionsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dotspark",
		Subsystem: "grid",
		Name:      "collisions_detected_total",
		Help:      "Placements rejected because they overlap another element.",
	})
)
