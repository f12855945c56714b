package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

func histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: prometheus.DefBuckets,
	}, labels)
}

// Consumer-side metrics, labeled by topic and consumer group. Received minus
// processed minus failed is the current in-flight count.
var (
	ConsumerMessagesReceived = counterVec(
		"kafka_consumer_messages_received_total",
		"Total number of Kafka messages fetched from the broker",
		"topic", "consumer_group",
	)

	ConsumerMessagesProcessed = counterVec(
		"kafka_consumer_messages_processed_total",
		"Total number of successfully processed Kafka messages",
		"topic", "consumer_group",
	)

	ConsumerMessagesFailed = counterVec(
		"kafka_consumer_messages_failed_total",
		"Total number of Kafka messages that exhausted all handler retries",
		"topic", "consumer_group",
	)

	ConsumerProcessingDuration = histogramVec(
		"kafka_consumer_processing_duration_seconds",
		"Duration of Kafka message processing in seconds",
		"topic", "consumer_group",
	)

	ConsumerDLQPublished = counterVec(
		"kafka_consumer_dlq_published_total",
		"Total number of messages published to the dead-letter queue",
		"topic", "consumer_group",
	)

	// Deduplication happens at the handler layer, which sees the envelope
	// rather than the topic, hence the event_type and source labels.
	ConsumerMessagesDuplicate = counterVec(
		"kafka_consumer_messages_duplicate_total",
		"Total number of duplicate Kafka messages skipped by the idempotency guard",
		"event_type", "source",
	)
)

// Producer-side metrics, labeled by topic.
var (
	ProducerMessagesPublished = counterVec(
		"kafka_producer_messages_published_total",
		"Total number of Kafka messages published",
		"topic",
	)

	ProducerPublishErrors = counterVec(
		"kafka_producer_publish_errors_total",
		"Total number of Kafka publish errors",
		"topic",
	)

	ProducerPublishDuration = histogramVec(
		"kafka_producer_publish_duration_seconds",
		"Duration of Kafka publish operations in seconds",
		"topic",
	)
)
