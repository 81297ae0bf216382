// Package ingest – record decoding.
package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/averche/go-chat-admin/internal/broker"
	"github.com/averche/go-chat-admin/internal/domain"
)

// wireMessage is the JSON shape producers publish to the chat topic.
type wireMessage struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	RoomID   *string `json:"room_id,omitempty"`
	SenderID *int64  `json:"sender_id,omitempty"`
}

// DecodeError wraps a per-record decode or validation failure. It is
// non-fatal to the pipeline; the offending record is dead-lettered.
type DecodeError struct {
	Offset int64
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode record at offset %d: %v", e.Offset, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *DecodeError) Unwrap() error { return e.Err }

// decodeRecord turns a raw broker record into a validated Message. The
// record's broker timestamp becomes CreatedAt so history ordering reflects
// production time, not ingestion time.
func decodeRecord(rec broker.Record) (*domain.Message, error) {
	var w wireMessage
	if err := json.Unmarshal(rec.Value, &w); err != nil {
		return nil, &DecodeError{Offset: rec.Offset, Err: err}
	}
	m := &domain.Message{
		ID:       w.ID,
		Content:  w.Content,
		RoomID:   w.RoomID,
		SenderID: w.SenderID,
	}
	if !rec.Time.IsZero() {
		m.CreatedAt = rec.Time.UTC()
		m.UpdatedAt = m.CreatedAt
	}
	if err := m.Validate(); err != nil {
		return nil, &DecodeError{Offset: rec.Offset, Err: err}
	}
	return m, nil
}
