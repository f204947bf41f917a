package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lobbyhub_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lobbyhub_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Lobby metrics
	LobbyOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lobbyhub_lobby_operations_total",
			Help: "Lobby operations by outcome code",
		},
		[]string{"op", "code"}, // code is "ok" on success
	)

	RoomsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lobbyhub_rooms_created_total",
			Help: "Total rooms created",
		},
		[]string{"mode"},
	)

	JoinCodeCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lobbyhub_join_code_collisions_total",
			Help: "Join code inserts rejected as duplicates",
		},
	)

	// Resolver metrics
	ResolverPlaceholders = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lobbyhub_resolver_placeholders_total",
			Help: "Placeholder participants synthesized by the slot resolver",
		},
	)

	// Reclaimer metrics
	ReclaimSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lobbyhub_reclaim_sweeps_total",
			Help: "Reclaimer sweeps by result",
		},
		[]string{"result"}, // "ok" or "error"
	)

	SeatsReleased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lobbyhub_seats_released_total",
			Help: "Seats released by the reclaimer",
		},
		[]string{"reason"},
	)

	ReclaimDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lobbyhub_reclaim_duration_seconds",
			Help:    "Wall time of one reclaimer sweep",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Event pipeline metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lobbyhub_events_published_total",
			Help: "Room events pushed onto the queue",
		},
		[]string{"result"},
	)

	EventsJournaled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lobbyhub_events_journaled_total",
			Help: "Room events persisted by the journal",
		},
	)

	// Websocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lobbyhub_websocket_connections",
			Help: "Open room watch connections",
		},
	)
)
