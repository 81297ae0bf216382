package repo

import (
	"context"
	"testing"
)

func TestGetOffset_UnknownPartition(t *testing.T) {
	db := newRepoDB(t)

	off, err := GetOffset(context.Background(), db, "chat-messages", 0)
	if err != nil {
		t.Fatalf("GetOffset: %v", err)
	}
	if off != -1 {
		t.Fatalf("expected -1 for unknown partition, got %d", off)
	}
}

func TestCommitOffset_Monotonic(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if err := CommitOffset(ctx, db, "chat-messages", 0, 10); err != nil {
		t.Fatalf("CommitOffset(10): %v", err)
	}
	if err := CommitOffset(ctx, db, "chat-messages", 0, 25); err != nil {
		t.Fatalf("CommitOffset(25): %v", err)
	}
	// A stale commit must never move the cursor backwards.
	if err := CommitOffset(ctx, db, "chat-messages", 0, 7); err != nil {
		t.Fatalf("CommitOffset(7): %v", err)
	}

	off, err := GetOffset(ctx, db, "chat-messages", 0)
	if err != nil || off != 25 {
		t.Fatalf("expected committed offset 25, got %d err=%v", off, err)
	}
}

func TestCommitOffset_PartitionsAreIndependent(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if err := CommitOffset(ctx, db, "chat-messages", 0, 5); err != nil {
		t.Fatalf("p0: %v", err)
	}
	if err := CommitOffset(ctx, db, "chat-messages", 1, 99); err != nil {
		t.Fatalf("p1: %v", err)
	}

	if off, _ := GetOffset(ctx, db, "chat-messages", 0); off != 5 {
		t.Fatalf("p0 offset: %d", off)
	}
	if off, _ := GetOffset(ctx, db, "chat-messages", 1); off != 99 {
		t.Fatalf("p1 offset: %d", off)
	}
}
