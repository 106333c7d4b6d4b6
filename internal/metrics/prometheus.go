// Package metrics defines the Prometheus instruments of the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rejection reasons used as the "reason" label
const (
	ReasonInvalidSource  = "invalid_source"
	ReasonTooShort       = "too_short"
	ReasonUnknownCommand = "unknown_command"
	ReasonPaused         = "paused"
	ReasonOther          = "other"
)

// Metrics contains all Prometheus metrics for the relay
type Metrics struct {
	PacketsReceived   prometheus.Counter
	PacketsForwarded  prometheus.Counter
	PacketsRejected   *prometheus.CounterVec
	CommandsForwarded *prometheus.CounterVec
	SinkErrors        prometheus.Counter
	DecodeDuration    prometheus.Histogram
}

// NewMetrics creates the metrics and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PacketsReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "kmrelay_packets_received_total",
			Help: "Total number of UDP datagrams handed to the decoder",
		}),
		PacketsForwarded: f.NewCounter(prometheus.CounterOpts{
			Name: "kmrelay_packets_forwarded_total",
			Help: "Total number of commands written to the serial sink",
		}),
		PacketsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kmrelay_packets_rejected_total",
			Help: "Total number of dropped datagrams by reason",
		}, []string{"reason"}),
		CommandsForwarded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kmrelay_commands_forwarded_total",
			Help: "Forwarded commands by command keyword",
		}, []string{"command"}),
		SinkErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "kmrelay_sink_errors_total",
			Help: "Total number of failed serial sink writes",
		}),
		DecodeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kmrelay_decode_duration_seconds",
			Help:    "Time spent decoding a datagram",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 8), // 1us to ~16ms
		}),
	}
}
