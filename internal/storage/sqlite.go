package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS program_states (
	conversation_id TEXT PRIMARY KEY,
	start_date      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);`

// SQLiteStorage keeps start dates in a local SQLite file.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates the database at path. ":memory:" works
// for tests.
func NewSQLiteStorage(path string, logger *zap.Logger) (*SQLiteStorage, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection so ":memory:" is a single database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("SQLite storage ready", zap.String("path", path))
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) GetStartDate(ctx context.Context, conversationID string) (string, bool, error) {
	var date string
	err := s.db.QueryRowContext(ctx,
		`SELECT start_date FROM program_states WHERE conversation_id = ?`, conversationID).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query start date: %w", err)
	}
	return date, true, nil
}

func (s *SQLiteStorage) SaveStartDate(ctx context.Context, conversationID, date string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO program_states (conversation_id, start_date, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (conversation_id)
		DO UPDATE SET start_date = excluded.start_date, updated_at = excluded.updated_at`,
		conversationID, date, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save start date: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListConversations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT conversation_id FROM program_states ORDER BY conversation_id`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
