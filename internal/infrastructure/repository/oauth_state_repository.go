package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"crosspost-connect/internal/domain/entity"
	"crosspost-connect/internal/domain/repository"
	"crosspost-connect/internal/infrastructure/database"
)

// pqUniqueViolation is the SQLSTATE for unique_violation
const pqUniqueViolation = "23505"

type oauthStateRepository struct {
	db  *database.Database
	now func() time.Time
}

func NewOAuthStateRepository(db *database.Database) repository.OAuthStateRepository {
	return &oauthStateRepository{
		db:  db,
		now: time.Now,
	}
}

func (r *oauthStateRepository) Store(ctx context.Context, state *entity.OAuthState) error {
	metadata, err := json.Marshal(state.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal oauth state metadata: %w", err)
	}

	createdAt := state.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	query := `
		INSERT INTO oauth_states (state, provider, user_id, metadata, ttl_seconds, consumed, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
	`

	_, err = r.db.DB.ExecContext(ctx, query,
		state.State,
		string(state.Provider),
		state.UserID,
		metadata,
		state.TTLSeconds,
		createdAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return entity.ErrDuplicateState
		}
		return fmt.Errorf("failed to store oauth state: %w", err)
	}

	return nil
}

// ValidateAndConsume flips consumed in a single conditional UPDATE, so two
// concurrent callers cannot both see a row. The follow-up SELECT only runs on
// failure, to report why.
func (r *oauthStateRepository) ValidateAndConsume(ctx context.Context, state string, provider entity.Provider) (*entity.ConsumedState, error) {
	now := r.now()

	query := `
		UPDATE oauth_states
		SET consumed = TRUE
		WHERE state = $1
			AND provider = $2
			AND consumed = FALSE
			AND created_at + ttl_seconds * INTERVAL '1 second' > $3
		RETURNING user_id, metadata
	`

	var userID string
	var metadata []byte
	err := r.db.DB.QueryRowContext(ctx, query, state, string(provider), now).Scan(&userID, &metadata)
	if err == nil {
		consumed := &entity.ConsumedState{UserID: userID}
		if err := json.Unmarshal(metadata, &consumed.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal oauth state metadata: %w", err)
		}
		return consumed, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	return nil, r.classifyFailure(ctx, state, provider, now)
}

func (r *oauthStateRepository) classifyFailure(ctx context.Context, state string, provider entity.Provider, now time.Time) error {
	query := `
		SELECT provider, consumed, created_at, ttl_seconds
		FROM oauth_states
		WHERE state = $1
	`

	var record entity.OAuthState
	var storedProvider string
	err := r.db.DB.QueryRowContext(ctx, query, state).Scan(
		&storedProvider,
		&record.Consumed,
		&record.CreatedAt,
		&record.TTLSeconds,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrStateNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load oauth state: %w", err)
	}
	record.Provider = entity.Provider(storedProvider)

	return classifyState(&record, provider, now)
}

// classifyState explains why a stored state cannot be consumed. Consumption
// is checked before expiry so that a replay always reports
// ErrStateAlreadyConsumed.
func classifyState(record *entity.OAuthState, provider entity.Provider, now time.Time) error {
	switch {
	case record.Provider != provider:
		return entity.ErrProviderMismatch
	case record.Consumed:
		return entity.ErrStateAlreadyConsumed
	case record.IsExpired(now):
		return entity.ErrStateExpired
	default:
		// Row was valid at SELECT time; the UPDATE lost a race to another caller.
		return entity.ErrStateAlreadyConsumed
	}
}
