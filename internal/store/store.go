package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Turn is one handled request: who asked, what command ran, how it ended.
type Turn struct {
	ID        int64
	Channel   string
	ChatID    string
	SenderID  string
	Command   string
	Outcome   string // "ok" or the error kind
	CreatedAt time.Time
}

// Ingestion is one document import attempt.
type Ingestion struct {
	ID        int64
	Filename  string
	Source    string // "url" or "attachment"
	Outcome   string
	CreatedAt time.Time
}

// SQLiteStore keeps a durable log of handled turns and document imports.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		channel     TEXT NOT NULL,
		chat_id     TEXT NOT NULL,
		sender_id   TEXT NOT NULL,
		command     TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_turns_chat ON turns(chat_id, created_at);

	CREATE TABLE IF NOT EXISTS ingestions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		filename    TEXT NOT NULL,
		source      TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_ingestions_time ON ingestions(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) RecordTurn(ctx context.Context, t Turn) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (channel, chat_id, sender_id, command, outcome, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Channel, t.ChatID, t.SenderID, t.Command, t.Outcome, t.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) RecordIngestion(ctx context.Context, in Ingestion) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestions (filename, source, outcome, created_at)
		 VALUES (?, ?, ?, ?)`,
		in.Filename, in.Source, in.Outcome, in.CreatedAt,
	)
	return err
}

// RecentTurns returns the newest turns for a chat, newest first.
func (s *SQLiteStore) RecentTurns(ctx context.Context, chatID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, chat_id, sender_id, command, outcome, created_at
		 FROM turns WHERE chat_id = ? ORDER BY created_at DESC LIMIT ?`,
		chatID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.Channel, &t.ChatID, &t.SenderID, &t.Command, &t.Outcome, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Stats returns total turn and ingestion counts for the status command.
func (s *SQLiteStore) Stats(ctx context.Context) (turns, ingestions int64, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&turns); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingestions`).Scan(&ingestions); err != nil {
		return 0, 0, err
	}
	return turns, ingestions, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
