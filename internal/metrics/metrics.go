// Package metrics holds the relay's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{Name: "tcpredir_connections_accepted_total", Help: "Connections accepted by the listener"})
	ConnectionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{Name: "tcpredir_connections_rejected_total", Help: "Connections closed before relaying, by reason"}, []string{"reason"})
	ConnectionsClosed   = promauto.NewCounterVec(prometheus.CounterOpts{Name: "tcpredir_connections_closed_total", Help: "Relayed connections closed, by reason"}, []string{"reason"})
	ActiveConnections   = promauto.NewGauge(prometheus.GaugeOpts{Name: "tcpredir_active_connections", Help: "Connections currently being handled"})
	SocketOptionErrors  = promauto.NewCounterVec(prometheus.CounterOpts{Name: "tcpredir_socket_option_errors_total", Help: "Socket options that could not be applied"}, []string{"op"})
	BytesTransferred    = promauto.NewCounterVec(prometheus.CounterOpts{Name: "tcpredir_bytes_transferred_total", Help: "Bytes relayed, by direction"}, []string{"direction"})
	ConnectionDuration  = promauto.NewHistogram(prometheus.HistogramOpts{Name: "tcpredir_connection_duration_seconds", Help: "Relayed connection lifetime seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 20)})
)

// Rejection reasons.
const (
	RejectNoOriginalDst = "no_original_dst"
	RejectLoop          = "loop"
	RejectConnect       = "connect"
	RejectSocketOption  = "socket_option"
	RejectTooMany       = "too_many"
)

// Directions for BytesTransferred.
const (
	DirectionUpload   = "client_to_server"
	DirectionDownload = "server_to_client"
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
