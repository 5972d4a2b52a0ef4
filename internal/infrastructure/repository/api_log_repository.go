package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"crosspost-connect/internal/domain/entity"
	"crosspost-connect/internal/domain/repository"
	"crosspost-connect/internal/infrastructure/database"
)

type apiLogRepository struct {
	db     *database.Database
	logger *zap.Logger
}

// NewAPILogRepository creates a new API log repository
func NewAPILogRepository(db *database.Database, logger *zap.Logger) repository.APILogRepository {
	return &apiLogRepository{
		db:     db,
		logger: logger,
	}
}

// Save saves an API log entry to the database
func (r *apiLogRepository) Save(ctx context.Context, log *entity.APILog) error {
	query := `
		INSERT INTO api_logs (provider, operation, endpoint, method, response_body, status_code, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.DB.ExecContext(ctx, query,
		string(log.Provider),
		log.Operation,
		log.Endpoint,
		log.Method,
		log.ResponseBody,
		log.StatusCode,
		log.Duration,
		log.CreatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to save API log",
			zap.String("endpoint", log.Endpoint),
			zap.Error(err),
		)
		return fmt.Errorf("failed to save API log: %w", err)
	}

	return nil
}

func (r *apiLogRepository) FindRecent(ctx context.Context, limit int) ([]*entity.APILog, error) {
	query := `
		SELECT id, provider, operation, endpoint, method, response_body, status_code, duration_ms, created_at
		FROM api_logs
		ORDER BY created_at DESC
		LIMIT $1
	`
	return r.query(ctx, query, limit)
}

func (r *apiLogRepository) FindByProvider(ctx context.Context, provider entity.Provider, limit int) ([]*entity.APILog, error) {
	query := `
		SELECT id, provider, operation, endpoint, method, response_body, status_code, duration_ms, created_at
		FROM api_logs
		WHERE provider = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.query(ctx, query, string(provider), limit)
}

func (r *apiLogRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.APILog, error) {
	rows, err := r.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query API logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*entity.APILog, 0)
	for rows.Next() {
		var log entity.APILog
		var provider string
		if err := rows.Scan(
			&log.ID,
			&provider,
			&log.Operation,
			&log.Endpoint,
			&log.Method,
			&log.ResponseBody,
			&log.StatusCode,
			&log.Duration,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan API log: %w", err)
		}
		log.Provider = entity.Provider(provider)
		logs = append(logs, &log)
	}

	return logs, rows.Err()
}
