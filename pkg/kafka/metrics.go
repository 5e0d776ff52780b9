package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Consumer outcomes.
const (
	outcomeReceived     = "received"
	outcomeProcessed    = "processed"
	outcomeFailed       = "failed"
	outcomeDuplicate    = "duplicate"
	outcomeDeadLettered = "dead_lettered"
)

// Producer outcomes.
const (
	outcomePublished = "published"
	outcomeError     = "error"
)

var (
	consumerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "kafka",
			Name:      "consumer_messages_total",
			Help:      "Messages seen by consumers, by outcome.",
		},
		[]string{"topic", "group", "outcome"},
	)

	consumerHandleSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "kafka",
			Name:      "consumer_handle_seconds",
			Help:      "Time spent handling one message, retries included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic", "group"},
	)

	producerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "kafka",
			Name:      "producer_messages_total",
			Help:      "Messages written by producers, by outcome.",
		},
		[]string{"topic", "outcome"},
	)

	producerWriteSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "kafka",
			Name:      "producer_write_seconds",
			Help:      "Time spent writing one message to the brokers.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)
