// Package services – RoomService
//
// This file implements the RoomService, which manages the lifecycle of chat
// rooms. It validates commands (name, room type, private-room password),
// normalizes names, and coordinates repository operations for creating,
// renaming, and listing rooms.
//
// Service-level errors (e.g., ErrRoomNotFound, ErrDuplicateRoomName) are
// returned for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/averche/go-chat-admin/internal/domain"
	"github.com/averche/go-chat-admin/internal/repo"
)

// RoomRepo defines the repository contract required by RoomService.
// Implementations are responsible for persistence of room aggregates.
type RoomRepo interface {
	// CreateRoom inserts a room and its setting atomically.
	CreateRoom(ctx context.Context, db *gorm.DB, room *domain.Room, setting *domain.RoomSetting) (*domain.Room, error)

	// RenameRoom updates a room's name.
	RenameRoom(ctx context.Context, db *gorm.DB, id, newName string) (*domain.Room, error)

	// GetRoom fetches a room by ID.
	GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.Room, error)

	// ListRooms returns all rooms.
	ListRooms(ctx context.Context, db *gorm.DB) ([]domain.Room, error)
}

// gormRoomRepo adapts the repo free functions to the RoomRepo interface.
// This keeps the service decoupled from the concrete repo package while
// reusing its functions.
type gormRoomRepo struct{}

func (gormRoomRepo) CreateRoom(ctx context.Context, db *gorm.DB, room *domain.Room, setting *domain.RoomSetting) (*domain.Room, error) {
	return repo.CreateRoom(ctx, db, room, setting)
}

func (gormRoomRepo) RenameRoom(ctx context.Context, db *gorm.DB, id, newName string) (*domain.Room, error) {
	return repo.RenameRoom(ctx, db, id, newName)
}

func (gormRoomRepo) GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.Room, error) {
	return repo.GetRoom(ctx, db, id)
}

func (gormRoomRepo) ListRooms(ctx context.Context, db *gorm.DB) ([]domain.Room, error) {
	return repo.ListRooms(ctx, db)
}

// RoomService provides room-level operations such as creating, renaming and
// listing rooms. It enforces naming and visibility rules atop the store.
type RoomService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the room repository used by this service.
	Repo RoomRepo

	// NameMaxLen caps stored room names by rune length.
	NameMaxLen int
}

// NewRoomService constructs a RoomService with sane defaults.
func NewRoomService(db *gorm.DB) *RoomService {
	return &RoomService{DB: db, Repo: gormRoomRepo{}, NameMaxLen: 255}
}

// CreateRoomCommand carries a validated room-creation request.
type CreateRoomCommand struct {
	ID            string
	Name          string
	OwnerID       *int64
	RoomType      domain.RoomType
	AssistantRule string
	// Password is required iff RoomType is private.
	Password *string
}

// Create validates the command and persists the room together with its
// setting. The password rule is checked against the command's room type
// before anything is written.
func (s *RoomService) Create(ctx context.Context, cmd CreateRoomCommand) (*domain.Room, error) {
	tr := otel.Tracer("services/RoomService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("room.id", cmd.ID),
			attribute.String("room.type", string(cmd.RoomType)),
		),
	)
	defer span.End()

	room := &domain.Room{
		ID:       cmd.ID,
		Name:     clipRunes(normalizeName(cmd.Name), s.NameMaxLen),
		OwnerID:  cmd.OwnerID,
		RoomType: cmd.RoomType,
	}
	if err := room.Validate(); err != nil {
		return nil, err
	}

	setting := &domain.RoomSetting{
		AssistantRule: cmd.AssistantRule,
		RoomType:      cmd.RoomType,
		Password:      cmd.Password,
	}
	if err := setting.Validate(); err != nil {
		return nil, err
	}

	created, err := s.Repo.CreateRoom(ctx, s.DB, room, setting)
	if errors.Is(err, repo.ErrDuplicateName) {
		return nil, ErrDuplicateRoomName
	}
	return created, err
}

// Rename changes a room's name, enforcing the same normalization and
// uniqueness rules as Create.
func (s *RoomService) Rename(ctx context.Context, id, newName string) (*domain.Room, error) {
	tr := otel.Tracer("services/RoomService")
	ctx, span := tr.Start(ctx, "Rename",
		trace.WithAttributes(attribute.String("room.id", id)),
	)
	defer span.End()

	newName = clipRunes(normalizeName(newName), s.NameMaxLen)
	if newName == "" {
		return nil, domain.ErrEmptyRoomName
	}

	room, err := s.Repo.RenameRoom(ctx, s.DB, id, newName)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrRoomNotFound
	case errors.Is(err, repo.ErrDuplicateName):
		return nil, ErrDuplicateRoomName
	}
	return room, err
}

// Get fetches a room by ID.
func (s *RoomService) Get(ctx context.Context, id string) (*domain.Room, error) {
	room, err := s.Repo.GetRoom(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// List returns all rooms.
func (s *RoomService) List(ctx context.Context) ([]domain.Room, error) {
	return s.Repo.ListRooms(ctx, s.DB)
}

// clipRunes truncates s to at most max runes.
func clipRunes(s string, max int) string {
	if max > 0 {
		if r := []rune(s); len(r) > max {
			return string(r[:max])
		}
	}
	return s
}

// normalizeName trims whitespace and collapses multiple spaces to one.
func normalizeName(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
