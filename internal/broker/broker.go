// Package broker defines the minimal contracts the ingestion pipeline needs
// from the messaging infrastructure, plus Kafka-backed implementations. The
// contracts carry no Kafka types so the pipeline can be exercised against
// in-memory fakes.
package broker

import (
	"context"
	"time"
)

// Record is an opaque payload received from a topic partition.
type Record struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}

// Consumer reads assigned partitions of a topic in per-partition arrival
// order. FetchBatch blocks up to the implementation's poll timeout and
// returns at most max records; an empty batch with a nil error means the
// poll timed out with nothing to read. CommitOffsets acknowledges every
// fetched record whose offset is at or below the given per-partition
// cursor. Implementations need not be safe for concurrent use; the pipeline
// drives each consumer from a single goroutine.
type Consumer interface {
	FetchBatch(ctx context.Context, max int) ([]Record, error)
	CommitOffsets(ctx context.Context, cursor map[int]int64) error
	Close() error
}

// DeadLetterSink receives records the pipeline cannot process, together with
// the reason. Delivery is best-effort and must not block the pipeline;
// implementations bound their own I/O.
type DeadLetterSink interface {
	Publish(ctx context.Context, rec Record, cause error)
}
