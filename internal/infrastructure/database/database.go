package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"crosspost-connect/internal/config"
)

var Module = fx.Module("database",
	fx.Provide(NewDatabase),
)

type Database struct {
	DB     *sql.DB
	logger *zap.Logger
}

func NewDatabase(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*Database, error) {
	// Build PostgreSQL connection string
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	)

	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connected successfully",
		zap.String("driver", cfg.Database.Driver),
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("dbname", cfg.Database.DBName),
	)

	database := &Database{
		DB:     db,
		logger: logger,
	}

	// Run migrations
	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return database.Close()
		},
	})

	return database, nil
}

var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "social_connections",
		// No unique constraint on (user_id, provider): rotation inserts the
		// new row before deleting the old one.
		sql: `
		CREATE TABLE IF NOT EXISTS social_connections (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			provider VARCHAR(50) NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT DEFAULT '',
			external_id VARCHAR(255) NOT NULL,
			display_name VARCHAR(255) DEFAULT '',
			token_expires_at BIGINT,
			scopes TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		`,
	},
	{
		name: "idx_social_connections_user_provider",
		sql: `
		CREATE INDEX IF NOT EXISTS idx_social_connections_user_provider
			ON social_connections(user_id, provider, created_at DESC);
		`,
	},
	{
		name: "oauth_states",
		sql: `
		CREATE TABLE IF NOT EXISTS oauth_states (
			state VARCHAR(128) PRIMARY KEY,
			provider VARCHAR(50) NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			ttl_seconds BIGINT NOT NULL,
			consumed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		`,
	},
	{
		name: "api_logs",
		sql: `
		CREATE TABLE IF NOT EXISTS api_logs (
			id BIGSERIAL PRIMARY KEY,
			provider VARCHAR(50) NOT NULL,
			operation VARCHAR(50) NOT NULL,
			endpoint TEXT NOT NULL,
			method VARCHAR(10) NOT NULL,
			response_body TEXT DEFAULT '',
			status_code INT NOT NULL,
			duration_ms BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		`,
	},
	{
		name: "idx_api_logs_provider",
		sql: `
		CREATE INDEX IF NOT EXISTS idx_api_logs_provider ON api_logs(provider, created_at DESC);
		`,
	},
}

func (d *Database) migrate() error {
	for _, m := range migrations {
		if _, err := d.DB.Exec(m.sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.name, err)
		}
	}

	d.logger.Info("Database migrations completed successfully",
		zap.Int("count", len(migrations)),
	)
	return nil
}

func (d *Database) Close() error {
	return d.DB.Close()
}
