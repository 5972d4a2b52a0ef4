package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"crosspost-connect/internal/domain/entity"
	"crosspost-connect/internal/domain/repository"
)

type ConnectionRotator interface {
	// Rotate stores a new connection, then removes the ones it supersedes.
	// A failed removal is logged and does not fail the rotation.
	Rotate(ctx context.Context, userID string, provider entity.Provider, tokens *entity.TokenResult, identity *entity.Identity, defaultScopes []string) (*entity.SocialConnection, error)
}

type connectionRotator struct {
	repo   repository.SocialConnectionRepository
	now    func() time.Time
	logger *zap.Logger
}

func NewConnectionRotator(repo repository.SocialConnectionRepository, logger *zap.Logger) ConnectionRotator {
	return &connectionRotator{
		repo:   repo,
		now:    time.Now,
		logger: logger,
	}
}

func (r *connectionRotator) Rotate(ctx context.Context, userID string, provider entity.Provider, tokens *entity.TokenResult, identity *entity.Identity, defaultScopes []string) (*entity.SocialConnection, error) {
	now := r.now()

	scopes := defaultScopes
	if tokens.Scope != "" {
		scopes = strings.Fields(tokens.Scope)
	}

	newConn := &entity.NewSocialConnection{
		UserID:         userID,
		Provider:       provider,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		ExternalID:     identity.ExternalID,
		DisplayName:    identity.DisplayName,
		TokenExpiresAt: tokens.ExpiresAt(now.Unix()),
		Scopes:         scopes,
	}

	// Create before delete: a crash in between leaves a duplicate, never zero connections
	id, err := r.repo.Create(ctx, newConn)
	if err != nil {
		return nil, fmt.Errorf("failed to create social connection: %w", err)
	}

	r.logger.Info("Social connection created",
		zap.Int64("connection_id", id),
		zap.String("user_id", userID),
		zap.String("provider", provider.String()),
		zap.String("external_id", identity.ExternalID),
	)

	createdAt := r.removeSuperseded(ctx, userID, provider, id)
	if createdAt.IsZero() {
		createdAt = now
	}

	return &entity.SocialConnection{
		ID:             id,
		UserID:         userID,
		Provider:       provider,
		AccessToken:    newConn.AccessToken,
		RefreshToken:   newConn.RefreshToken,
		ExternalID:     newConn.ExternalID,
		DisplayName:    newConn.DisplayName,
		TokenExpiresAt: newConn.TokenExpiresAt,
		Scopes:         newConn.Scopes,
		CreatedAt:      createdAt,
	}, nil
}

// removeSuperseded deletes the connections created before keepID. Newer
// ones belong to a concurrent rotation and are left for it. Returns the
// stored creation time of keepID, or zero when it could not be listed.
func (r *connectionRotator) removeSuperseded(ctx context.Context, userID string, provider entity.Provider, keepID int64) time.Time {
	conns, err := r.repo.ListByUser(ctx, userID)
	if err != nil {
		r.logger.Warn("Failed to look up superseded connections",
			zap.String("user_id", userID),
			zap.String("provider", provider.String()),
			zap.NamedError("rotation", entity.ErrRotationPartialFailure),
			zap.Error(err),
		)
		return time.Time{}
	}

	var kept *entity.SocialConnection
	for _, c := range conns {
		if c.ID == keepID {
			kept = c
			break
		}
	}
	if kept == nil {
		r.logger.Warn("New connection missing from listing, skipping cleanup",
			zap.Int64("connection_id", keepID),
			zap.String("user_id", userID),
			zap.NamedError("rotation", entity.ErrRotationPartialFailure),
		)
		return time.Time{}
	}

	for _, c := range conns {
		if c.Provider != provider || !c.OlderThan(kept) {
			continue
		}
		if err := r.repo.Delete(ctx, c.ID); err != nil {
			r.logger.Warn("Failed to delete superseded connection",
				zap.Int64("connection_id", c.ID),
				zap.Int64("replacement_id", keepID),
				zap.String("user_id", userID),
				zap.String("provider", provider.String()),
				zap.NamedError("rotation", entity.ErrRotationPartialFailure),
				zap.Error(err),
			)
			continue
		}
		r.logger.Info("Superseded connection deleted",
			zap.Int64("connection_id", c.ID),
			zap.Int64("replacement_id", keepID),
		)
	}

	return kept.CreatedAt
}
