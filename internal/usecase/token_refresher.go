package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"crosspost-connect/internal/config"
	"crosspost-connect/internal/domain/entity"
	"crosspost-connect/internal/domain/repository"
	"crosspost-connect/internal/infrastructure/oauth2"
)

type TokenRefresher interface {
	// GetValidToken returns an access token that will not expire within the
	// refresh buffer, refreshing it first if needed. ok is false when the
	// connection needs to be re-authorized.
	GetValidToken(ctx context.Context, conn *entity.SocialConnection) (token string, ok bool)
}

type tokenRefresher struct {
	registry *oauth2.Registry
	repo     repository.SocialConnectionRepository
	buffer   time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger

	// in-flight refreshes keyed by connection id
	inflight singleflight.Group
}

func NewTokenRefresher(registry *oauth2.Registry, repo repository.SocialConnectionRepository, cfg *config.Config, logger *zap.Logger) TokenRefresher {
	return &tokenRefresher{
		registry: registry,
		repo:     repo,
		buffer:   cfg.OAuth.RefreshBuffer,
		timeout:  cfg.OAuth.HTTPTimeout,
		now:      time.Now,
		logger:   logger,
	}
}

func (r *tokenRefresher) GetValidToken(ctx context.Context, conn *entity.SocialConnection) (string, bool) {
	if conn.TokenExpiresAt == nil {
		return conn.AccessToken, true
	}

	now := r.now()
	if *conn.TokenExpiresAt > now.Add(r.buffer).Unix() {
		return conn.AccessToken, true
	}

	logFields := []zap.Field{
		zap.Int64("connection_id", conn.ID),
		zap.String("user_id", conn.UserID),
		zap.String("provider", conn.Provider.String()),
		zap.Int64("token_expires_at", *conn.TokenExpiresAt),
	}

	if !conn.HasRefreshToken() {
		r.logger.Info("Token near expiry and no refresh token stored, re-authorization required", logFields...)
		return "", false
	}

	// Twitter rotates refresh tokens, so a second concurrent refresh with the
	// same token would be rejected
	token, err, shared := r.inflight.Do(strconv.FormatInt(conn.ID, 10), func() (interface{}, error) {
		// Joined callers share this call, so it must not end with the first caller's request
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.refresh(refreshCtx, conn, now, logFields)
	})
	if err != nil {
		r.logger.Warn("Failed to refresh token, connection unusable", append(logFields, zap.Error(err))...)
		return "", false
	}
	if shared {
		r.logger.Debug("Joined in-flight token refresh", logFields...)
	}

	return token.(string), true
}

func (r *tokenRefresher) refresh(ctx context.Context, conn *entity.SocialConnection, now time.Time, logFields []zap.Field) (string, error) {
	provider, err := r.registry.Get(conn.Provider)
	if err != nil {
		return "", err
	}

	r.logger.Info("Refreshing access token", logFields...)

	tokens, err := provider.RefreshToken(ctx, conn.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh connection %d: %w", conn.ID, err)
	}

	// Providers that do not rotate refresh tokens omit them from the response
	refreshToken := tokens.RefreshToken
	if refreshToken == "" {
		refreshToken = conn.RefreshToken
	}

	update := &entity.TokenUpdate{
		AccessToken:    tokens.AccessToken,
		RefreshToken:   refreshToken,
		TokenExpiresAt: tokens.ExpiresAt(now.Unix()),
	}
	if err := r.repo.UpdateTokens(ctx, conn.ID, update); err != nil {
		// The fresh token is still usable for this call
		r.logger.Error("Failed to persist refreshed token", append(logFields, zap.Error(err))...)
	} else {
		r.logger.Info("Successfully refreshed token",
			zap.Int64("connection_id", conn.ID),
			zap.Int64("expires_in", tokens.ExpiresIn),
		)
	}

	return tokens.AccessToken, nil
}
