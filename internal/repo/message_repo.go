// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model, including the atomic batch write used by the ingestion pipeline.
package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/averche/go-chat-admin/internal/domain"
)

// BatchError reports which entries of a batch write failed. The batch is
// all-or-nothing: when a BatchError is returned, nothing was persisted.
type BatchError struct {
	// Index is the position of the failing message within the batch.
	Index int
	// MessageID is the ID of the failing message.
	MessageID string
	// Err is the underlying cause (ErrRoomMissing, driver error, ...).
	Err error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("batch entry %d (message %s): %v", e.Index, e.MessageID, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *BatchError) Unwrap() error { return e.Err }

// SaveMessage inserts a single message row. If the message references a
// room, the room's existence is checked inside the same transaction and a
// missing room surfaces as ErrRoomMissing.
func SaveMessage(ctx context.Context, db *gorm.DB, m *domain.Message) (*domain.Message, error) {
	msgs, err := SaveMessages(ctx, db, []domain.Message{*m})
	if err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

// SaveMessages inserts a batch of messages in one transaction. The write is
// atomic: any failing entry aborts the whole batch and the returned
// *BatchError identifies it. Referential integrity of RoomID is checked per
// entry, inside the transaction, so a room deleted between validation and
// write cannot slip through.
//
// Timestamps are assigned here (UTC, in slice order) so that batch order and
// created_at order agree, preserving per-partition arrival order for the
// ingestion path.
func SaveMessages(ctx context.Context, db *gorm.DB, msgs []domain.Message) ([]domain.Message, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range msgs {
			m := &msgs[i]
			if m.CreatedAt.IsZero() {
				// Nanosecond stagger keeps created_at strictly increasing within the batch.
				m.CreatedAt = now.Add(time.Duration(i) * time.Nanosecond)
			}
			m.UpdatedAt = m.CreatedAt

			if m.RoomID != nil {
				ok, err := RoomExists(ctx, tx, *m.RoomID)
				if err != nil {
					return &BatchError{Index: i, MessageID: m.ID, Err: err}
				}
				if !ok {
					return &BatchError{Index: i, MessageID: m.ID, Err: ErrRoomMissing}
				}
			}
			if err := tx.Create(m).Error; err != nil {
				return &BatchError{Index: i, MessageID: m.ID, Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// CountRoomMessages returns the total number of messages in a room.
func CountRoomMessages(ctx context.Context, db *gorm.DB, roomID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("room_id = ?", roomID).
		Count(&total).Error
	return total, err
}

// ListRoomMessagesPage returns a page of a room's messages ordered
// deterministically (CreatedAt ASC, ID ASC). The ordering is stable across
// calls, so iteration can be restarted from any page boundary.
func ListRoomMessagesPage(ctx context.Context, db *gorm.DB, roomID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// RoomMessagesStats returns aggregate metadata for a room's messages: the
// total number of rows and the maximum UpdatedAt among them. Used for
// conditional responses in the HTTP layer. When the room has no messages,
// the returned count is 0 and maxUpdatedAt is nil.
func RoomMessagesStats(ctx context.Context, db *gorm.DB, roomID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("room_id = ?", roomID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
