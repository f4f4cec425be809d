package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("PostgreSQL storage ready",
		zap.String("host", config.Host),
		zap.String("dbname", config.DBName))

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) GetStartDate(ctx context.Context, conversationID string) (string, bool, error) {
	query := `
		SELECT start_date
		FROM program_states
		WHERE conversation_id = $1`

	var date string
	err := s.db.QueryRowContext(ctx, query, conversationID).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("error querying start date: %w", err)
	}

	return date, true, nil
}

func (s *PostgresStorage) SaveStartDate(ctx context.Context, conversationID, date string) error {
	query := `
		INSERT INTO program_states (conversation_id, start_date, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (conversation_id)
		DO UPDATE SET start_date = EXCLUDED.start_date, updated_at = EXCLUDED.updated_at`

	if _, err := s.db.ExecContext(ctx, query, conversationID, date, time.Now()); err != nil {
		return fmt.Errorf("error saving start date: %w", err)
	}

	return nil
}

func (s *PostgresStorage) ListConversations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT conversation_id FROM program_states ORDER BY conversation_id`)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning conversation: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
