package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Presence metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookchat_connections_active",
			Help: "Currently attached websocket connections",
		},
	)

	// Business metrics
	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookchat_messages_posted_total",
			Help: "Total messages persisted",
		},
		[]string{"kind"}, // "user" or "system"
	)

	RoomsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookchat_rooms_resolved_total",
			Help: "Total room resolutions",
		},
		[]string{"outcome"}, // "created", "existing" or "reactivated"
	)

	ReceiptsMarked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookchat_read_receipts_marked_total",
			Help: "Total read receipts inserted",
		},
	)

	BroadcastsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookchat_broadcast_deliveries_total",
			Help: "Total live frames delivered to local connections",
		},
	)

	TypingSignals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookchat_typing_signals_total",
			Help: "Total typing start/stop signals relayed",
		},
	)
)
