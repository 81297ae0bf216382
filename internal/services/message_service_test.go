package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/averche/go-chat-admin/internal/domain"
)

func TestSubmit_ThenListPage(t *testing.T) {
	db := newServiceDB(t)
	rooms := NewRoomService(db)
	msgs := &MessageService{DB: db}
	ctx := context.Background()

	owner := int64(1)
	if _, err := rooms.Create(ctx, CreateRoomCommand{
		ID: "R1", Name: "General", OwnerID: &owner, RoomType: domain.RoomPublic,
	}); err != nil {
		t.Fatalf("create room: %v", err)
	}

	sender := int64(1)
	if _, err := msgs.Submit(ctx, &domain.Message{
		ID: "M1", Content: "hi", RoomID: strp("R1"), SenderID: &sender,
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	items, total, err := msgs.ListPage(ctx, "R1", 1, 20)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != "M1" {
		t.Fatalf("expected exactly [M1], got total=%d items=%#v", total, items)
	}
}

func TestSubmit_ValidationAndReferentialErrors(t *testing.T) {
	db := newServiceDB(t)
	msgs := &MessageService{DB: db, MaxContentRunes: 10}
	ctx := context.Background()

	if _, err := msgs.Submit(ctx, &domain.Message{ID: "", Content: "hi"}); !errors.Is(err, domain.ErrEmptyMessageID) {
		t.Fatalf("expected ErrEmptyMessageID, got %v", err)
	}
	if _, err := msgs.Submit(ctx, &domain.Message{ID: "m1", Content: "   "}); !errors.Is(err, domain.ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if _, err := msgs.Submit(ctx, &domain.Message{ID: "m1", Content: strings.Repeat("x", 11)}); !errors.Is(err, ErrContentTooLong) {
		t.Fatalf("expected ErrContentTooLong, got %v", err)
	}
	if _, err := msgs.Submit(ctx, &domain.Message{ID: "m1", Content: "hi", RoomID: strp("ghost")}); !errors.Is(err, ErrRoomMissing) {
		t.Fatalf("expected ErrRoomMissing, got %v", err)
	}
}

func TestListPage_UnknownRoom(t *testing.T) {
	msgs := &MessageService{DB: newServiceDB(t)}

	if _, _, err := msgs.ListPage(context.Background(), "ghost", 1, 20); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

// Rename racing a message insert into the same room: both must succeed, the
// final name must be the renamed one, and the message must still reference
// the room.
func TestRenameConcurrentWithSubmit(t *testing.T) {
	db := newServiceDB(t)
	rooms := NewRoomService(db)
	msgs := &MessageService{DB: db}
	ctx := context.Background()

	owner := int64(1)
	if _, err := rooms.Create(ctx, CreateRoomCommand{
		ID: "R1", Name: "General", OwnerID: &owner, RoomType: domain.RoomPublic,
	}); err != nil {
		t.Fatalf("create room: %v", err)
	}

	var wg sync.WaitGroup
	var renameErr, submitErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, renameErr = rooms.Rename(ctx, "R1", "General2")
	}()
	go func() {
		defer wg.Done()
		sender := int64(1)
		_, submitErr = msgs.Submit(ctx, &domain.Message{
			ID: "M1", Content: "hi", RoomID: strp("R1"), SenderID: &sender,
		})
	}()
	wg.Wait()

	if renameErr != nil || submitErr != nil {
		t.Fatalf("concurrent ops failed: rename=%v submit=%v", renameErr, submitErr)
	}

	room, err := rooms.Get(ctx, "R1")
	if err != nil || room.Name != "General2" {
		t.Fatalf("final room state wrong: %+v err=%v", room, err)
	}
	items, total, err := msgs.ListPage(ctx, "R1", 1, 10)
	if err != nil || total != 1 || items[0].RoomID == nil || *items[0].RoomID != "R1" {
		t.Fatalf("message lost or unlinked: total=%d items=%#v err=%v", total, items, err)
	}
}
