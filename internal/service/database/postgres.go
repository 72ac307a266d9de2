package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type PostgresService struct {
	db     *sql.DB
	logger *zap.Logger
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// schema is applied on startup. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS fc_members (
		organization_id TEXT        NOT NULL,
		character_id    TEXT        NOT NULL,
		position        INTEGER     NOT NULL,
		name            TEXT        NOT NULL,
		rank            TEXT        NOT NULL,
		avatar_url      TEXT        NOT NULL DEFAULT '',
		updated_at      TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (organization_id, character_id)
	)`,
	`CREATE TABLE IF NOT EXISTS fc_name_history (
		character_id TEXT        PRIMARY KEY,
		names        TEXT[]      NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fc_events (
		id              BIGSERIAL   PRIMARY KEY,
		organization_id TEXT        NOT NULL,
		character_id    TEXT        NOT NULL,
		kind            TEXT        NOT NULL,
		previous        TEXT        NOT NULL DEFAULT '',
		current         TEXT        NOT NULL DEFAULT '',
		display_name    TEXT        NOT NULL DEFAULT '',
		display_rank    TEXT        NOT NULL DEFAULT '',
		avatar_url      TEXT        NOT NULL DEFAULT '',
		occurred_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS fc_events_character_idx ON fc_events (character_id, occurred_at DESC)`,
	`CREATE TABLE IF NOT EXISTS fc_tracker_state (
		organization_id  TEXT        PRIMARY KEY,
		bootstrapped_at  TIMESTAMPTZ NOT NULL,
		last_cycle_at    TIMESTAMPTZ NOT NULL,
		last_member_count INTEGER    NOT NULL
	)`,
}

func NewPostgresService(cfg PostgresConfig, logger *zap.Logger) (*PostgresService, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info("PostgreSQL connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
	)

	return NewPostgresServiceFromDB(db, logger), nil
}

// NewPostgresServiceFromDB wraps an already opened handle.
func NewPostgresServiceFromDB(db *sql.DB, logger *zap.Logger) *PostgresService {
	return &PostgresService{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the roster tables when they do not exist yet.
func (ps *PostgresService) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := ps.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	ps.logger.Info("PostgreSQL schema ready", zap.Int("statements", len(schema)))
	return nil
}

// WithTx runs fn inside a transaction, committing only when fn returns nil.
func (ps *PostgresService) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			ps.logger.Error("Transaction rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (ps *PostgresService) GetDB() *sql.DB {
	return ps.db
}

func (ps *PostgresService) Close() error {
	if ps.db != nil {
		return ps.db.Close()
	}
	return nil
}

func (ps *PostgresService) Ping(ctx context.Context) error {
	return ps.db.PingContext(ctx)
}
