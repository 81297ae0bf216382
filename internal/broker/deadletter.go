// Package broker – dead-letter sinks.
package broker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	kafka "github.com/segmentio/kafka-go"
)

// publishTimeout bounds a single dead-letter delivery so a slow or
// unreachable sink can never stall the pipeline.
const publishTimeout = 2 * time.Second

// KafkaDeadLetterSink republishes unprocessable records to a dead-letter
// topic, carrying the failure cause in a header. Delivery failures are
// logged and swallowed: a dead letter is already a loss report, losing the
// report must not also halt ingestion.
type KafkaDeadLetterSink struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

// NewKafkaDeadLetterSink builds a sink writing to the given topic.
func NewKafkaDeadLetterSink(brokers []string, topic string, log zerolog.Logger) *KafkaDeadLetterSink {
	return &KafkaDeadLetterSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		log: log,
	}
}

// Publish forwards the record and its cause, best-effort.
func (s *KafkaDeadLetterSink) Publish(ctx context.Context, rec Record, cause error) {
	wctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := s.writer.WriteMessages(wctx, kafka.Message{
		Key:   rec.Key,
		Value: rec.Value,
		Headers: []kafka.Header{
			{Key: "x-dead-letter-reason", Value: []byte(cause.Error())},
			{Key: "x-original-topic", Value: []byte(rec.Topic)},
		},
	})
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("topic", rec.Topic).
			Int("partition", rec.Partition).
			Int64("offset", rec.Offset).
			Msg("dead-letter delivery failed")
	}
}

// Close releases the underlying writer.
func (s *KafkaDeadLetterSink) Close() error { return s.writer.Close() }

// LogDeadLetterSink records dead letters in the structured log only. It is
// the fallback when no dead-letter topic is configured.
type LogDeadLetterSink struct {
	Log zerolog.Logger
}

// Publish logs the record and its cause.
func (s LogDeadLetterSink) Publish(_ context.Context, rec Record, cause error) {
	s.Log.Warn().
		Err(cause).
		Str("topic", rec.Topic).
		Int("partition", rec.Partition).
		Int64("offset", rec.Offset).
		Int("bytes", len(rec.Value)).
		Msg("record routed to dead letter")
}
