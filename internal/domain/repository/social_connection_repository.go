package repository

import (
	"context"

	"crosspost-connect/internal/domain/entity"
)

type SocialConnectionRepository interface {
	// Create inserts a new connection and returns its id
	Create(ctx context.Context, conn *entity.NewSocialConnection) (int64, error)

	// ListByUser returns every connection of the user, most recently created first
	ListByUser(ctx context.Context, userID string) ([]*entity.SocialConnection, error)

	// GetWithTokens returns a connection including its token values.
	// Returns entity.ErrConnectionNotFound when the id does not exist.
	GetWithTokens(ctx context.Context, id int64) (*entity.SocialConnection, error)

	// UpdateTokens replaces the credential of an existing connection in place
	UpdateTokens(ctx context.Context, id int64, update *entity.TokenUpdate) error

	// Delete removes a connection. Deleting a missing id is not an error.
	Delete(ctx context.Context, id int64) error

	// HasValid reports whether the latest connection for the provider has a
	// token that outlives validUntilUnix, or a refresh token to replace it
	HasValid(ctx context.Context, userID string, provider entity.Provider, validUntilUnix int64) (bool, error)
}

// APILogRepository stores provider call audit entries
type APILogRepository interface {
	Save(ctx context.Context, log *entity.APILog) error
	FindRecent(ctx context.Context, limit int) ([]*entity.APILog, error)
	FindByProvider(ctx context.Context, provider entity.Provider, limit int) ([]*entity.APILog, error)
}
