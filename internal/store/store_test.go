package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "relay.db"), logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndListTurns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	turns := []Turn{
		{Channel: "telegram", ChatID: "42", SenderID: "7", Command: "default", Outcome: "ok"},
		{Channel: "telegram", ChatID: "42", SenderID: "7", Command: "v2", Outcome: "upstream"},
		{Channel: "cli", ChatID: "direct", SenderID: "operator", Command: "v5", Outcome: "ok"},
	}
	for _, turn := range turns {
		if err := s.RecordTurn(ctx, turn); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := s.RecentTurns(ctx, "42", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 turns for chat 42, got %d", len(got))
	}
	for _, turn := range got {
		if turn.ChatID != "42" {
			t.Fatalf("wrong chat: %+v", turn)
		}
		if turn.CreatedAt.IsZero() {
			t.Fatal("created_at not set")
		}
	}
}

func TestRecordIngestionAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordTurn(ctx, Turn{Channel: "cli", ChatID: "d", SenderID: "op", Command: "v4", Outcome: "ok"}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordIngestion(ctx, Ingestion{Filename: "report.pdf", Source: "url", Outcome: "ok"}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordIngestion(ctx, Ingestion{Filename: "notes.md", Source: "attachment", Outcome: "workflow"}); err != nil {
		t.Fatal(err)
	}

	turns, ingestions, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if turns != 1 || ingestions != 2 {
		t.Fatalf("got turns=%d ingestions=%d", turns, ingestions)
	}
}

func TestRecentTurns_DefaultLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.RecentTurns(ctx, "nobody", 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected none, got %d", len(got))
	}
}
