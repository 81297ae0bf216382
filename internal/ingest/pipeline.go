// Package ingest implements the durable, ordered message ingestion pipeline.
//
// One Pipeline drives one broker consumer through an explicit polling state
// machine:
//
//	Idle → Polling → Validating → Deduplicating → Persisting →
//	CommittingOffset → Polling (loop), terminal Stopped
//
// Contract highlights:
//   - at most MaxBatchSize unacknowledged records are in flight;
//   - records that fail to decode are dead-lettered and skipped, but still
//     advance the committed offset so they are never re-pulled;
//   - duplicates (broker redelivery, detected by the Deduplicator) are
//     dropped and counted, and also advance the offset;
//   - valid records are persisted in one atomic store transaction together
//     with the per-partition offset cursor, then the broker offset is
//     committed, then the Deduplicator records the ids — in that order, so
//     a crash at any point results in redelivery, never loss;
//   - transient persistence failures retry the held batch with backoff; an
//     exhausted retry budget halts this worker in Stopped for operator
//     intervention without crashing the process;
//   - cancellation is cooperative and checked at the start of each poll
//     cycle, never inside an in-flight persist/commit step.
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/averche/go-chat-admin/internal/broker"
	"github.com/averche/go-chat-admin/internal/dedup"
	"github.com/averche/go-chat-admin/internal/domain"
	"github.com/averche/go-chat-admin/internal/repo"
)

// State names the pipeline's position in its poll cycle.
type State string

// Pipeline states.
const (
	StateIdle             State = "idle"
	StatePolling          State = "polling"
	StateValidating       State = "validating"
	StateDeduplicating    State = "deduplicating"
	StatePersisting       State = "persisting"
	StateCommittingOffset State = "committing_offset"
	StateStopped          State = "stopped"
)

// ErrRetryBudgetExhausted is returned by Run when repeated persistence
// failures exceed the retry budget and the worker halts.
var ErrRetryBudgetExhausted = errors.New("persistence retry budget exhausted")

// Config collects the pipeline's tunables.
type Config struct {
	// MaxBatchSize bounds the number of unacknowledged in-flight records.
	MaxBatchSize int
	// RetryBudget is the number of persistence retries before halting.
	RetryBudget int
	// RetryBackoff is the base delay between persistence retries.
	RetryBackoff time.Duration
}

func (c *Config) defaults() {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 100
	}
	if c.RetryBudget <= 0 {
		c.RetryBudget = 5
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
}

// batchEntry pairs a raw record with its decoded message.
type batchEntry struct {
	rec broker.Record
	msg *domain.Message
}

// Pipeline pulls message records from one broker consumer, deduplicates
// them, and writes them through the message store. Construct with New and
// drive with Run from a single goroutine.
type Pipeline struct {
	db       *gorm.DB
	consumer broker.Consumer
	dedup    *dedup.Deduplicator
	dlq      broker.DeadLetterSink
	cfg      Config
	log      zerolog.Logger

	mu    sync.Mutex
	state State

	// sleep is a seam so retry/backoff tests run without waiting.
	sleep func(ctx context.Context, d time.Duration)
}

// New constructs a Pipeline. The dead-letter sink may not be nil; pass a
// broker.LogDeadLetterSink when no dead-letter topic is configured.
func New(db *gorm.DB, c broker.Consumer, d *dedup.Deduplicator, dlq broker.DeadLetterSink, cfg Config, log zerolog.Logger) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		db:       db,
		consumer: c,
		dedup:    d,
		dlq:      dlq,
		cfg:      cfg,
		log:      log,
		state:    StateIdle,
		sleep:    sleepCtx,
	}
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run executes poll cycles until ctx is cancelled (returns nil after a clean
// stop) or the retry budget is exhausted (returns ErrRetryBudgetExhausted).
// A cancellation arriving mid-cycle finishes the in-flight persist and
// offset commit before stopping, so no acknowledged record is lost and none
// is double-counted.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.setState(StateStopped)

	for {
		// Cancellation point: only at the top of a cycle.
		if ctx.Err() != nil {
			p.log.Info().Msg("pipeline stopping")
			return nil
		}

		p.setState(StatePolling)
		records, err := p.consumer.FetchBatch(ctx, p.cfg.MaxBatchSize)
		if err != nil {
			if ctx.Err() != nil {
				continue // top of loop exits cleanly
			}
			p.log.Warn().Err(err).Msg("fetch failed, backing off")
			p.sleep(ctx, p.cfg.RetryBackoff)
			continue
		}
		if len(records) == 0 {
			continue
		}

		// The cycle past this point runs to completion even under
		// cancellation: the batch is in flight.
		if err := p.processBatch(context.WithoutCancel(ctx), records); err != nil {
			p.alertHalt(err)
			return err
		}
	}
}

// processBatch runs Validating → Deduplicating → Persisting →
// CommittingOffset for one fetched batch.
func (p *Pipeline) processBatch(ctx context.Context, records []broker.Record) error {
	topic := records[0].Topic
	recordsFetched.WithLabelValues(topic).Add(float64(len(records)))

	// Validating: decode; failures are dead-lettered and skipped.
	p.setState(StateValidating)
	entries := make([]batchEntry, 0, len(records))
	for _, rec := range records {
		msg, err := decodeRecord(rec)
		if err != nil {
			p.log.Warn().
				Err(err).
				Int("partition", rec.Partition).
				Int64("offset", rec.Offset).
				Msg("undecodable record")
			recordsDeadLettered.WithLabelValues(topic, "decode").Inc()
			p.dlq.Publish(ctx, rec, err)
			continue
		}
		entries = append(entries, batchEntry{rec: rec, msg: msg})
	}

	// Deduplicating: drop redelivered ids. They still advance the offset so
	// the broker does not hand them back. A failing dedup read is treated
	// like a persistence failure: same store, same retry budget.
	p.setState(StateDeduplicating)
	attempts := 0
	fresh := make([]batchEntry, 0, len(entries))
	for i := 0; i < len(entries); {
		e := entries[i]
		seen, err := p.dedup.Seen(ctx, e.msg.ID)
		if err != nil {
			attempts++
			persistRetries.WithLabelValues(topic).Inc()
			if attempts > p.cfg.RetryBudget {
				return p.haltError(topic, err)
			}
			p.log.Warn().Err(err).Int("attempt", attempts).Msg("dedup read failed, retrying")
			p.sleep(ctx, p.cfg.RetryBackoff*time.Duration(attempts))
			continue
		}
		if seen {
			p.log.Debug().
				Str("message_id", e.msg.ID).
				Int64("offset", e.rec.Offset).
				Msg("duplicate dropped")
			recordsDuplicate.WithLabelValues(topic).Inc()
		} else {
			fresh = append(fresh, e)
		}
		i++
	}
	entries = fresh

	// Highest offset per partition across the whole fetched batch; skipped
	// records advance the cursor too.
	cursor := map[int]int64{}
	for _, rec := range records {
		if off, ok := cursor[rec.Partition]; !ok || rec.Offset > off {
			cursor[rec.Partition] = rec.Offset
		}
	}

	// Persisting: atomic batch write plus offset cursors in one transaction.
	// Referential failures inside the batch dead-letter the offending record
	// and the write is retried without it; other failures burn retry budget.
	p.setState(StatePersisting)
	for {
		err := p.persist(ctx, topic, entries, cursor)
		if err == nil {
			break
		}

		var be *repo.BatchError
		if errors.As(err, &be) && errors.Is(be.Err, repo.ErrRoomMissing) {
			bad := entries[be.Index]
			p.log.Warn().
				Str("message_id", bad.msg.ID).
				Int64("offset", bad.rec.Offset).
				Msg("message references missing room")
			recordsDeadLettered.WithLabelValues(topic, "missing_room").Inc()
			p.dlq.Publish(ctx, bad.rec, be.Err)
			entries = append(entries[:be.Index], entries[be.Index+1:]...)
			continue
		}

		attempts++
		persistRetries.WithLabelValues(topic).Inc()
		if attempts > p.cfg.RetryBudget {
			return p.haltError(topic, err)
		}
		p.log.Warn().
			Err(err).
			Int("attempt", attempts).
			Msg("persist failed, retrying batch")
		p.sleep(ctx, p.cfg.RetryBackoff*time.Duration(attempts))
	}
	recordsPersisted.WithLabelValues(topic).Add(float64(len(entries)))

	// CommittingOffset: broker ack strictly after durable persistence, then
	// dedup recording. A crash between persist and these steps causes
	// redelivery, which the Deduplicator filters next time.
	p.setState(StateCommittingOffset)
	if err := p.consumer.CommitOffsets(ctx, cursor); err != nil {
		// The write is durable; redelivery is safe. Log and move on.
		p.log.Warn().Err(err).Msg("broker commit failed")
	}
	for _, e := range entries {
		if err := p.dedup.Record(ctx, e.msg.ID, e.msg.CreatedAt); err != nil {
			p.log.Warn().Err(err).Str("message_id", e.msg.ID).Msg("dedup record failed")
		}
	}

	p.log.Info().
		Str("topic", topic).
		Int("fetched", len(records)).
		Int("persisted", len(entries)).
		Msg("batch committed")
	return nil
}

// persist writes the batch and its per-partition offset cursors atomically.
// The store cursor advances even for partitions whose records were all
// skipped (dead-lettered or duplicates), so they are not re-pulled.
func (p *Pipeline) persist(ctx context.Context, topic string, entries []batchEntry, cursor map[int]int64) error {
	// Strictly increasing created_at within the batch keeps history reads
	// (ordered by created_at, id) aligned with partition arrival order even
	// when the broker's millisecond timestamps collide.
	var prev time.Time
	for i := range entries {
		m := entries[i].msg
		if !m.CreatedAt.IsZero() && !m.CreatedAt.After(prev) {
			m.CreatedAt = prev.Add(time.Nanosecond)
			m.UpdatedAt = m.CreatedAt
		}
		if !m.CreatedAt.IsZero() {
			prev = m.CreatedAt
		}
	}

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(entries) > 0 {
			msgs := make([]domain.Message, len(entries))
			for i, e := range entries {
				msgs[i] = *e.msg
			}
			if _, err := repo.SaveMessages(ctx, tx, msgs); err != nil {
				return err
			}
		}
		for part, off := range cursor {
			if err := repo.CommitOffset(ctx, tx, topic, part, off); err != nil {
				return err
			}
		}
		return nil
	})
}

// haltError wraps an unrecoverable store error for Run to surface.
func (p *Pipeline) haltError(topic string, err error) error {
	p.log.Error().Err(err).Str("topic", topic).Msg("persistence failure beyond retry budget")
	return errors.Join(ErrRetryBudgetExhausted, err)
}

// alertHalt emits the operator-visible fatal alert for a halted partition
// worker. The process keeps running; only this worker stops.
func (p *Pipeline) alertHalt(err error) {
	pipelinesHalted.Inc()
	p.log.Error().
		Err(err).
		Msg("pipeline halted pending intervention")
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
