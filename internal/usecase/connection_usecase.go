package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"crosspost-connect/internal/config"
	"crosspost-connect/internal/domain/entity"
	"crosspost-connect/internal/domain/repository"
	"crosspost-connect/internal/infrastructure/oauth2"
)

// maxStateAttempts bounds regeneration when a state token collides
const maxStateAttempts = 3

type ConnectionUsecase interface {
	// BeginAuthorization stores a fresh state and returns the provider consent URL
	BeginAuthorization(ctx context.Context, userID string, provider entity.Provider) (string, error)

	// CompleteAuthorization consumes the state, exchanges the code and stores
	// the resulting connection
	CompleteAuthorization(ctx context.Context, provider entity.Provider, code, state string) (*entity.SocialConnection, error)

	// GetPublishableToken returns a usable access token, or "" when the user
	// has to connect (again)
	GetPublishableToken(ctx context.Context, userID string, provider entity.Provider) (string, error)

	// Disconnect removes every connection the user has for the provider
	Disconnect(ctx context.Context, userID string, provider entity.Provider) error

	// ListConnections returns one connection per provider, the most recent one
	ListConnections(ctx context.Context, userID string) ([]*entity.SocialConnection, error)

	// HasValidConnection reports whether a token can be obtained without re-authorization
	HasValidConnection(ctx context.Context, userID string, provider entity.Provider) (bool, error)
}

type connectionUsecase struct {
	registry  *oauth2.Registry
	stateRepo repository.OAuthStateRepository
	connRepo  repository.SocialConnectionRepository
	refresher TokenRefresher
	rotator   ConnectionRotator
	stateTTL  time.Duration
	buffer    time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewConnectionUsecase(
	registry *oauth2.Registry,
	stateRepo repository.OAuthStateRepository,
	connRepo repository.SocialConnectionRepository,
	refresher TokenRefresher,
	rotator ConnectionRotator,
	cfg *config.Config,
	logger *zap.Logger,
) ConnectionUsecase {
	return &connectionUsecase{
		registry:  registry,
		stateRepo: stateRepo,
		connRepo:  connRepo,
		refresher: refresher,
		rotator:   rotator,
		stateTTL:  cfg.OAuth.StateTTL,
		buffer:    cfg.OAuth.RefreshBuffer,
		now:       time.Now,
		logger:    logger,
	}
}

func (u *connectionUsecase) BeginAuthorization(ctx context.Context, userID string, provider entity.Provider) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}

	p, err := u.registry.Get(provider)
	if err != nil {
		return "", err
	}

	pkce, err := oauth2.GeneratePKCE()
	if err != nil {
		return "", err
	}

	var state string
	for attempt := 1; ; attempt++ {
		state, err = oauth2.GenerateState()
		if err != nil {
			return "", err
		}

		err = u.stateRepo.Store(ctx, &entity.OAuthState{
			State:      state,
			Provider:   provider,
			UserID:     userID,
			Metadata:   map[string]string{entity.MetadataCodeVerifier: pkce.CodeVerifier},
			CreatedAt:  u.now(),
			TTLSeconds: int64(u.stateTTL / time.Second),
		})
		if err == nil {
			break
		}
		if !errors.Is(err, entity.ErrDuplicateState) || attempt == maxStateAttempts {
			return "", fmt.Errorf("failed to store oauth state: %w", err)
		}
		u.logger.Warn("OAuth state collision, regenerating", zap.Int("attempt", attempt))
	}

	u.logger.Info("Authorization started",
		zap.String("user_id", userID),
		zap.String("provider", provider.String()),
		zap.Duration("state_ttl", u.stateTTL),
	)

	return p.BuildAuthorizeURL(state, pkce.CodeChallenge), nil
}

func (u *connectionUsecase) CompleteAuthorization(ctx context.Context, provider entity.Provider, code, state string) (*entity.SocialConnection, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}
	if state == "" {
		return nil, entity.ErrStateNotFound
	}

	p, err := u.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	consumed, err := u.stateRepo.ValidateAndConsume(ctx, state, provider)
	if err != nil {
		u.logger.Warn("OAuth state rejected",
			zap.String("provider", provider.String()),
			zap.Error(err),
		)
		return nil, err
	}

	verifier := consumed.CodeVerifier()
	if verifier == "" {
		return nil, entity.ErrMissingCodeVerifier
	}

	tokens, err := p.ExchangeCode(ctx, code, verifier)
	if err != nil {
		u.logger.Error("Failed to exchange authorization code",
			zap.String("user_id", consumed.UserID),
			zap.String("provider", provider.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	identity, err := p.FetchIdentity(ctx, tokens.AccessToken)
	if err != nil {
		u.logger.Error("Failed to fetch provider identity",
			zap.String("user_id", consumed.UserID),
			zap.String("provider", provider.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to fetch identity: %w", err)
	}

	conn, err := u.rotator.Rotate(ctx, consumed.UserID, provider, tokens, identity, p.Scopes())
	if err != nil {
		return nil, err
	}

	u.logger.Info("Authorization completed",
		zap.String("user_id", consumed.UserID),
		zap.String("provider", provider.String()),
		zap.Int64("connection_id", conn.ID),
	)

	return conn, nil
}

func (u *connectionUsecase) GetPublishableToken(ctx context.Context, userID string, provider entity.Provider) (string, error) {
	conns, err := u.connRepo.ListByUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to list connections: %w", err)
	}

	latest := entity.LatestForProvider(conns, provider)
	if latest == nil {
		return "", nil
	}

	conn, err := u.connRepo.GetWithTokens(ctx, latest.ID)
	if errors.Is(err, entity.ErrConnectionNotFound) {
		// Removed by a concurrent rotation or disconnect
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load connection: %w", err)
	}

	token, ok := u.refresher.GetValidToken(ctx, conn)
	if !ok {
		return "", nil
	}
	return token, nil
}

func (u *connectionUsecase) Disconnect(ctx context.Context, userID string, provider entity.Provider) error {
	conns, err := u.connRepo.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list connections: %w", err)
	}

	removed := 0
	for _, c := range conns {
		if c.Provider != provider {
			continue
		}
		if err := u.connRepo.Delete(ctx, c.ID); err != nil {
			return fmt.Errorf("failed to delete connection %d: %w", c.ID, err)
		}
		removed++
	}

	u.logger.Info("Provider disconnected",
		zap.String("user_id", userID),
		zap.String("provider", provider.String()),
		zap.Int("removed", removed),
	)

	return nil
}

func (u *connectionUsecase) ListConnections(ctx context.Context, userID string) ([]*entity.SocialConnection, error) {
	conns, err := u.connRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	entity.SortMostRecentFirst(conns)

	seen := make(map[entity.Provider]bool)
	out := make([]*entity.SocialConnection, 0, len(conns))
	for _, c := range conns {
		if seen[c.Provider] {
			continue
		}
		seen[c.Provider] = true
		out = append(out, c)
	}

	return out, nil
}

func (u *connectionUsecase) HasValidConnection(ctx context.Context, userID string, provider entity.Provider) (bool, error) {
	// Same horizon as the refresher, so a true here means GetPublishableToken
	// will not ask for re-authorization
	return u.connRepo.HasValid(ctx, userID, provider, u.now().Add(u.buffer).Unix())
}
