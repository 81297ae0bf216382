// Package broker – Kafka adapters.
//
// KafkaConsumer adapts a kafka-go consumer-group reader to the Consumer
// contract. Partition assignment and rebalancing stay with the client
// library; this adapter only controls batch size and commit timing, which
// is exactly the split the ingestion pipeline needs for at-least-once
// processing.
package broker

import (
	"context"
	"errors"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

// KafkaConfig collects the settings for one consumer-group reader.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// PollTimeout bounds a single FetchBatch call. Zero means 2s.
	PollTimeout time.Duration
}

// KafkaConsumer reads records through a consumer-group kafka.Reader and
// commits explicitly, never before the pipeline asks.
type KafkaConsumer struct {
	reader      *kafka.Reader
	pollTimeout time.Duration

	// pending holds fetched-but-uncommitted messages, in fetch order.
	pending []kafka.Message
}

// NewKafkaConsumer builds a consumer-group backed Consumer. Commits are
// fully manual: the reader's auto-commit interval is left at zero.
func NewKafkaConsumer(cfg KafkaConfig) *KafkaConsumer {
	pt := cfg.PollTimeout
	if pt <= 0 {
		pt = 2 * time.Second
	}
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10 << 20,
			// CommitInterval zero = synchronous commits on CommitMessages.
		}),
		pollTimeout: pt,
	}
}

// FetchBatch pulls up to max records, waiting at most the poll timeout.
// A timeout with nothing read returns an empty batch and a nil error.
func (c *KafkaConsumer) FetchBatch(ctx context.Context, max int) ([]Record, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	var out []Record
	for len(out) < max {
		msg, err := c.reader.FetchMessage(fetchCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return out, nil
			}
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				// Caller-driven cancellation, not a poll timeout.
				return out, ctx.Err()
			}
			return out, err
		}
		c.pending = append(c.pending, msg)
		out = append(out, Record{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Value:     msg.Value,
			Time:      msg.Time,
		})
	}
	return out, nil
}

// CommitOffsets acknowledges every pending message at or below the given
// per-partition cursor. Later messages stay pending for a future commit.
func (c *KafkaConsumer) CommitOffsets(ctx context.Context, cursor map[int]int64) error {
	var commit, keep []kafka.Message
	for _, m := range c.pending {
		if off, ok := cursor[m.Partition]; ok && m.Offset <= off {
			commit = append(commit, m)
		} else {
			keep = append(keep, m)
		}
	}
	if len(commit) == 0 {
		return nil
	}
	if err := c.reader.CommitMessages(ctx, commit...); err != nil {
		return err
	}
	c.pending = keep
	return nil
}

// Close releases the underlying reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
