package repository

import (
	"context"

	"crosspost-connect/internal/domain/entity"
)

type OAuthStateRepository interface {
	// Store persists a new unconsumed state. Returns entity.ErrDuplicateState
	// if the token already exists.
	Store(ctx context.Context, state *entity.OAuthState) error

	// ValidateAndConsume atomically checks existence, provider, expiry and
	// consumption, then marks the state consumed. Concurrent callers on the
	// same state get exactly one success.
	ValidateAndConsume(ctx context.Context, state string, provider entity.Provider) (*entity.ConsumedState, error)
}
