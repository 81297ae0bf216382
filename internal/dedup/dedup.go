// Package dedup implements redelivery detection for the ingestion pipeline.
//
// The broker delivers at-least-once, so the same record (same producer-
// assigned message id) may arrive more than once. Deduplicator tracks
// recently ingested ids in a TTL-bounded table so re-ingesting a batch after
// a crash or redelivery persists zero new rows for ids already written.
//
// Retention is time-bounded: entries expire after the configured window and
// are evicted opportunistically on Record. State lives in the database so
// redelivery after a worker restart is still filtered; the database's own
// synchronization makes the component safe for concurrent callers.
package dedup

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/averche/go-chat-admin/internal/domain"
)

// DefaultRetention is the retention window applied when none is configured.
const DefaultRetention = 15 * time.Minute

// Deduplicator answers "has this message id been ingested recently?".
// It exclusively owns DedupEntry state; the pipeline consults it and never
// queries the table directly.
type Deduplicator struct {
	db        *gorm.DB
	retention time.Duration

	// now is a seam for expiry tests.
	now func() time.Time
}

// New constructs a Deduplicator with the given retention window.
// A non-positive retention falls back to DefaultRetention.
func New(db *gorm.DB, retention time.Duration) *Deduplicator {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Deduplicator{db: db, retention: retention, now: time.Now}
}

// Seen reports whether messageID was recorded within the retention window.
func (d *Deduplicator) Seen(ctx context.Context, messageID string) (bool, error) {
	var n int64
	err := d.db.WithContext(ctx).
		Model(&domain.DedupEntry{}).
		Where("message_id = ? AND expires_at > ?", messageID, d.now().UTC()).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Record marks messageID as seen at ts and evicts expired entries. Recording
// an already-seen id refreshes its expiry rather than failing, so replaying
// a half-recorded batch is harmless.
func (d *Deduplicator) Record(ctx context.Context, messageID string, ts time.Time) error {
	now := d.now().UTC()
	entry := domain.DedupEntry{
		MessageID: messageID,
		SeenAt:    ts.UTC(),
		ExpiresAt: now.Add(d.retention),
	}
	err := d.db.WithContext(ctx).Save(&entry).Error
	if err != nil {
		return err
	}

	// Opportunistic eviction keeps the table bounded without a sweeper.
	return d.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.DedupEntry{}).Error
}
