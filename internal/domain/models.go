// Package domain defines the persistence models for chat rooms, room
// settings, and messages. These types are mapped with GORM and form the core
// data layer of the room administration backend. Validation rules that must
// hold on both the synchronous API path and the broker ingestion path live
// here so that neither path can drift from the other.
package domain

import (
	"errors"
	"strings"
	"time"
)

// RoomType classifies the visibility of a room.
type RoomType string

const (
	// RoomPrivate rooms require a password in their settings.
	RoomPrivate RoomType = "private"
	// RoomPublic rooms must not carry a password.
	RoomPublic RoomType = "public"
)

// Valid reports whether the value is one of the known room types.
func (t RoomType) Valid() bool {
	return t == RoomPrivate || t == RoomPublic
}

// Validation errors shared by the API path and the ingestion path.
var (
	// ErrEmptyRoomName is returned when a room is created or renamed with a
	// blank name.
	ErrEmptyRoomName = errors.New("room name is empty")

	// ErrInvalidRoomType is returned for a room type outside {private, public}.
	ErrInvalidRoomType = errors.New("invalid room type")

	// ErrPasswordRequired is returned when a private room is written without
	// a password in its settings.
	ErrPasswordRequired = errors.New("password is required for private rooms")

	// ErrPasswordForbidden is returned when a public room carries a password.
	ErrPasswordForbidden = errors.New("public rooms must not have a password")

	// ErrEmptyMessageID is returned for a message without an identifier.
	ErrEmptyMessageID = errors.New("message id is empty")

	// ErrEmptyContent is returned for a message with blank content.
	ErrEmptyContent = errors.New("message content is empty")
)

// Room represents a named chat channel with an owner and visibility type.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name: unique human-readable room name.
//   - OwnerID: optional reference to the owning user; indexed for lookups.
//   - RoomType: "private" or "public".
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Room struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null;uniqueIndex:ux_room_name"`
	OwnerID   *int64    `json:"owner_id,omitempty" gorm:"index:idx_room_owner"`
	RoomType  RoomType  `json:"room_type"  gorm:"type:varchar(16);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Room.
func (Room) TableName() string { return "chat_rooms" }

// Validate checks the room's own invariants (not uniqueness, which only the
// store can decide).
func (r *Room) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyRoomName
	}
	if !r.RoomType.Valid() {
		return ErrInvalidRoomType
	}
	return nil
}

// RoomSetting carries per-room policy: the assistant rule and, for private
// rooms, the access password. The room reference is a weak back-reference;
// settings may be created alongside or after their room.
type RoomSetting struct {
	ID            int64    `json:"id"              gorm:"primaryKey;autoIncrement"`
	RoomID        *string  `json:"room_id,omitempty" gorm:"type:char(36);index:idx_room_setting_room"`
	AssistantRule string   `json:"assistant_rule"  gorm:"type:text;not null"`
	RoomType      RoomType `json:"room_type"       gorm:"type:varchar(16);not null"`
	Password      *string  `json:"-"               gorm:"type:varchar(255)"`
}

// TableName returns the database table name for RoomSetting.
func (RoomSetting) TableName() string { return "chat_room_settings" }

// Validate enforces the password rule against this setting's own room type:
// a private room requires a non-empty password, a public room must not
// carry one.
func (s *RoomSetting) Validate() error {
	if !s.RoomType.Valid() {
		return ErrInvalidRoomType
	}
	if s.RoomType == RoomPrivate {
		if s.Password == nil || strings.TrimSpace(*s.Password) == "" {
			return ErrPasswordRequired
		}
		return nil
	}
	if s.Password != nil && *s.Password != "" {
		return ErrPasswordForbidden
	}
	return nil
}

// Message represents a unit of chat content associated with a room and a
// sender. Messages arrive either synchronously through the API or from the
// broker ingestion pipeline; both paths persist the same shape.
//
// Fields:
//   - ID: UUID primary key (char(36)); producer-assigned and reused on
//     broker redelivery, which is why ingestion deduplicates on it.
//   - RoomID: optional reference to the containing room (indexed).
//   - SenderID: optional reference to the sending user (indexed).
type Message struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	RoomID    *string   `json:"room_id,omitempty"   gorm:"type:char(36);index:idx_msg_room"`
	SenderID  *int64    `json:"sender_id,omitempty" gorm:"index:idx_msg_sender"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_msg_created"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "chat_messages" }

// Validate checks the message's shape. Referential integrity of RoomID is
// the store's responsibility and is checked at write time.
func (m *Message) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrEmptyMessageID
	}
	if strings.TrimSpace(m.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}

// IngestionOffset is the per-topic-partition cursor of the ingestion
// pipeline. It is mutated only by the pipeline, inside the same transaction
// as the message batch it acknowledges.
type IngestionOffset struct {
	Topic     string    `gorm:"type:varchar(249);primaryKey"`
	Partition int       `gorm:"primaryKey;autoIncrement:false"`
	Offset    int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the database table name for IngestionOffset.
func (IngestionOffset) TableName() string { return "ingestion_offsets" }

// DedupEntry records a recently ingested message id so broker redelivery can
// be detected. Entries expire after the configured retention window.
type DedupEntry struct {
	MessageID string    `gorm:"type:char(36);primaryKey"`
	SeenAt    time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index:idx_dedup_expiry"`
}

// TableName returns the database table name for DedupEntry.
func (DedupEntry) TableName() string { return "ingestion_dedup" }
