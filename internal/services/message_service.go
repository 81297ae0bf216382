// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns synchronous (non-broker) message submission and room history reads.
// Submission goes through exactly the same validation and persistence path
// as the ingestion pipeline: domain.Message.Validate for shape and the
// store's in-transaction referential check for room linkage, so the two
// paths cannot diverge.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// room/message identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/averche/go-chat-admin/internal/domain"
	"github.com/averche/go-chat-admin/internal/repo"
)

// MessageService coordinates synchronous message persistence and history
// reads atop the message store.
type MessageService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// MaxContentRunes caps submitted message content length; 0 disables the cap.
	MaxContentRunes int
}

// ErrContentTooLong is returned when submitted content exceeds the cap.
var ErrContentTooLong = errors.New("message content too long")

// Submit validates and persists a directly submitted message. A message
// referencing a nonexistent room is rejected with ErrRoomMissing.
func (s *MessageService) Submit(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(attribute.String("message.id", m.ID)),
	)
	defer span.End()

	m.Content = strings.TrimSpace(m.Content)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if s.MaxContentRunes > 0 && len([]rune(m.Content)) > s.MaxContentRunes {
		return nil, ErrContentTooLong
	}

	saved, err := repo.SaveMessage(ctx, s.DB, m)
	if errors.Is(err, repo.ErrRoomMissing) {
		return nil, ErrRoomMissing
	}
	return saved, err
}

// ListPage returns paginated messages for a room, ordered by creation time
// ascending. It verifies the room exists before reading.
func (s *MessageService) ListPage(ctx context.Context, roomID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	ok, err := repo.RoomExists(ctx, s.DB, roomID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ErrRoomNotFound
	}

	total, err := repo.CountRoomMessages(ctx, s.DB, roomID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListRoomMessagesPage(ctx, s.DB, roomID, offset, pageSize)
	return items, total, err
}

// Get fetches a single message by ID.
func (s *MessageService) Get(ctx context.Context, id string) (*domain.Message, error) {
	m, err := repo.GetMessage(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	return m, err
}

// Stats exposes aggregate room-history metadata for conditional responses.
func (s *MessageService) Stats(ctx context.Context, roomID string) (int64, *time.Time, error) {
	return repo.RoomMessagesStats(ctx, s.DB, roomID)
}
