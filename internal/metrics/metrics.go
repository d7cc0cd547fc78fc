package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket connection metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_active_connections",
		Help: "Number of active WebSocket connections",
	})

	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_total_connections",
		Help: "Total number of WebSocket connections established",
	})

	ConnectionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_connection_errors_total",
		Help: "Total number of WebSocket connection errors",
	})

	// Message metrics
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_received_total",
		Help: "Total number of WebSocket messages received by type",
	}, []string{"type"})

	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_sent_total",
		Help: "Total number of WebSocket messages sent by type",
	}, []string{"type"})

	MessageSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_message_send_errors_total",
		Help: "Total number of WebSocket message send errors by type",
	}, []string{"type"})

	// Bandwidth metrics
	BytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_bytes_received_total",
		Help: "Total bytes received via WebSocket",
	})

	BytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_bytes_sent_total",
		Help: "Total bytes sent via WebSocket",
	})

	// Broadcast metrics
	BroadcastRecipients = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "websocket_broadcast_recipients",
		Help:    "Number of recipients per broadcast",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})

	// Game metrics
	ActiveControllers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_active_controllers",
		Help: "Number of live game controllers",
	})

	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_events_processed_total",
		Help: "Total number of player events processed by type",
	}, []string{"type"})

	WordsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_words_submitted_total",
		Help: "Total number of words submitted by result",
	}, []string{"result"})

	GamesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_games_finished_total",
		Help: "Total number of games finished by mode",
	}, []string{"mode"})
)
