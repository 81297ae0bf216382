// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the per-topic-partition offset cursor
// used by the ingestion pipeline.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/averche/go-chat-admin/internal/domain"
)

// GetOffset returns the last committed offset for (topic, partition), or -1
// when no batch has ever been committed for that partition.
func GetOffset(ctx context.Context, db *gorm.DB, topic string, partition int) (int64, error) {
	var row domain.IngestionOffset
	err := db.WithContext(ctx).
		Where("topic = ? AND partition = ?", topic, partition).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Offset, nil
}

// CommitOffset upserts the cursor for (topic, partition). Commits are
// monotonic: an offset at or below the stored one is a no-op, never a
// rollback. Callers pass the transaction handle of the batch write so the
// cursor and the batch land atomically.
func CommitOffset(ctx context.Context, db *gorm.DB, topic string, partition int, offset int64) error {
	row := domain.IngestionOffset{Topic: topic, Partition: partition, Offset: offset}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "topic"}, {Name: "partition"}},
			DoUpdates: clause.Assignments(map[string]any{
				"offset": gorm.Expr(`MAX("offset", excluded."offset")`),
			}),
		}).
		Create(&row).Error
}
