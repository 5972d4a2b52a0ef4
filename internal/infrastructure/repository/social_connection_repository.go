package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"crosspost-connect/internal/domain/entity"
	"crosspost-connect/internal/domain/repository"
	"crosspost-connect/internal/infrastructure/database"
)

type socialConnectionRepository struct {
	db *database.Database
}

func NewSocialConnectionRepository(db *database.Database) repository.SocialConnectionRepository {
	return &socialConnectionRepository{
		db: db,
	}
}

const socialConnectionColumns = `id, user_id, provider, access_token, refresh_token, external_id, display_name, token_expires_at, scopes, created_at`

func (r *socialConnectionRepository) Create(ctx context.Context, conn *entity.NewSocialConnection) (int64, error) {
	query := `
		INSERT INTO social_connections (user_id, provider, access_token, refresh_token, external_id, display_name, token_expires_at, scopes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.DB.QueryRowContext(ctx, query,
		conn.UserID,
		string(conn.Provider),
		conn.AccessToken,
		conn.RefreshToken,
		conn.ExternalID,
		conn.DisplayName,
		nullInt64(conn.TokenExpiresAt),
		pq.Array(nonNilScopes(conn.Scopes)),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create social connection: %w", err)
	}

	return id, nil
}

func (r *socialConnectionRepository) ListByUser(ctx context.Context, userID string) ([]*entity.SocialConnection, error) {
	query := `
		SELECT ` + socialConnectionColumns + `
		FROM social_connections
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list social connections: %w", err)
	}
	defer rows.Close()

	var conns []*entity.SocialConnection
	for rows.Next() {
		conn, err := scanSocialConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan social connection: %w", err)
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate social connections: %w", err)
	}

	return conns, nil
}

func (r *socialConnectionRepository) GetWithTokens(ctx context.Context, id int64) (*entity.SocialConnection, error) {
	query := `
		SELECT ` + socialConnectionColumns + `
		FROM social_connections
		WHERE id = $1
	`

	conn, err := scanSocialConnection(r.db.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get social connection %d: %w", id, err)
	}

	return conn, nil
}

func (r *socialConnectionRepository) UpdateTokens(ctx context.Context, id int64, update *entity.TokenUpdate) error {
	query := `
		UPDATE social_connections
		SET access_token = $1, refresh_token = $2, token_expires_at = $3
		WHERE id = $4
	`

	result, err := r.db.DB.ExecContext(ctx, query,
		update.AccessToken,
		update.RefreshToken,
		nullInt64(update.TokenExpiresAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update social connection tokens: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return entity.ErrConnectionNotFound
	}

	return nil
}

func (r *socialConnectionRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.DB.ExecContext(ctx, `DELETE FROM social_connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete social connection %d: %w", id, err)
	}
	return nil
}

func (r *socialConnectionRepository) HasValid(ctx context.Context, userID string, provider entity.Provider, validUntilUnix int64) (bool, error) {
	query := `
		SELECT token_expires_at, refresh_token
		FROM social_connections
		WHERE user_id = $1 AND provider = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var expiresAt sql.NullInt64
	var refreshToken sql.NullString
	err := r.db.DB.QueryRowContext(ctx, query, userID, string(provider)).Scan(&expiresAt, &refreshToken)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check social connection: %w", err)
	}

	if !expiresAt.Valid || expiresAt.Int64 > validUntilUnix {
		return true, nil
	}
	return refreshToken.String != "", nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSocialConnection(row rowScanner) (*entity.SocialConnection, error) {
	var conn entity.SocialConnection
	var provider string
	var refreshToken, displayName sql.NullString
	var expiresAt sql.NullInt64
	var scopes pq.StringArray

	err := row.Scan(
		&conn.ID,
		&conn.UserID,
		&provider,
		&conn.AccessToken,
		&refreshToken,
		&conn.ExternalID,
		&displayName,
		&expiresAt,
		&scopes,
		&conn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	conn.Provider = entity.Provider(provider)
	conn.RefreshToken = refreshToken.String
	conn.DisplayName = displayName.String
	conn.Scopes = []string(scopes)
	if expiresAt.Valid {
		v := expiresAt.Int64
		conn.TokenExpiresAt = &v
	}

	return &conn, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nonNilScopes(scopes []string) []string {
	if scopes == nil {
		return []string{}
	}
	return scopes
}
