package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"crosspost-connect/internal/config"
	"crosspost-connect/internal/domain/entity"
	"crosspost-connect/internal/infrastructure/memstore"
	"crosspost-connect/internal/infrastructure/oauth2"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeProvider records every call and answers from canned values
type fakeProvider struct {
	mu sync.Mutex

	name entity.Provider

	exchangeResult *entity.TokenResult
	exchangeErr    error
	refreshResult  *entity.TokenResult
	refreshErr     error
	identity       *entity.Identity

	// refreshGate, when set, holds RefreshToken until it is closed
	refreshGate chan struct{}

	exchangeCalls  int
	refreshCalls   int
	identityCalls  int
	lastCode       string
	lastVerifier   string
	lastRefreshTok string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		name: entity.ProviderTwitter,
		exchangeResult: &entity.TokenResult{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    7200,
		},
		refreshResult: &entity.TokenResult{
			AccessToken:  "access-2",
			RefreshToken: "refresh-2",
			ExpiresIn:    7200,
		},
		identity: &entity.Identity{ExternalID: "ext-1", DisplayName: "blogauthor"},
	}
}

func (p *fakeProvider) Name() entity.Provider { return p.name }

func (p *fakeProvider) Scopes() []string {
	return []string{"tweet.read", "tweet.write", "offline.access"}
}

func (p *fakeProvider) BuildAuthorizeURL(state, codeChallenge string) string {
	return oauth2.BuildAuthorizeURL("https://provider.example.com/authorize", "client-id",
		"https://blog.example.com/redirect/oauth/twitter", state, codeChallenge, p.Scopes())
}

func (p *fakeProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*entity.TokenResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeCalls++
	p.lastCode = code
	p.lastVerifier = codeVerifier
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	result := *p.exchangeResult
	return &result, nil
}

func (p *fakeProvider) RefreshToken(ctx context.Context, refreshToken string) (*entity.TokenResult, error) {
	p.mu.Lock()
	p.refreshCalls++
	gate := p.refreshGate
	p.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastRefreshTok = refreshToken
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	result := *p.refreshResult
	return &result, nil
}

func (p *fakeProvider) FetchIdentity(ctx context.Context, accessToken string) (*entity.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identityCalls++
	identity := *p.identity
	return &identity, nil
}

func (p *fakeProvider) networkCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchangeCalls + p.refreshCalls + p.identityCalls
}

// failingDeleteStore forces the delete step of a rotation to fail
type failingDeleteStore struct {
	*memstore.SocialConnectionStore
}

func (s *failingDeleteStore) Delete(ctx context.Context, id int64) error {
	return errors.New("connection refused")
}

// lockstepStore holds every ListByUser until the expected number of Create
// calls has happened, forcing concurrent rotations to overlap
type lockstepStore struct {
	*memstore.SocialConnectionStore
	created sync.WaitGroup
}

func newLockstepStore(inner *memstore.SocialConnectionStore, creates int) *lockstepStore {
	s := &lockstepStore{SocialConnectionStore: inner}
	s.created.Add(creates)
	return s
}

func (s *lockstepStore) Create(ctx context.Context, conn *entity.NewSocialConnection) (int64, error) {
	defer s.created.Done()
	return s.SocialConnectionStore.Create(ctx, conn)
}

func (s *lockstepStore) ListByUser(ctx context.Context, userID string) ([]*entity.SocialConnection, error) {
	s.created.Wait()
	return s.SocialConnectionStore.ListByUser(ctx, userID)
}

type harness struct {
	clock     *fakeClock
	provider  *fakeProvider
	states    *memstore.OAuthStateStore
	conns     *memstore.SocialConnectionStore
	refresher *tokenRefresher
	rotator   *connectionRotator
	usecase   *connectionUsecase
}

func testConfig() *config.Config {
	return &config.Config{
		OAuth: config.OAuthConfig{
			StateTTL:      10 * time.Minute,
			RefreshBuffer: 300 * time.Second,
			HTTPTimeout:   10 * time.Second,
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	provider := newFakeProvider()
	registry := oauth2.NewRegistryOf(provider)
	states := memstore.NewOAuthStateStoreWithClock(clock.Now)
	conns := memstore.NewSocialConnectionStore(clock.Now)
	logger := zaptest.NewLogger(t)
	cfg := testConfig()

	refresher := NewTokenRefresher(registry, conns, cfg, logger).(*tokenRefresher)
	refresher.now = clock.Now

	rotator := NewConnectionRotator(conns, logger).(*connectionRotator)
	rotator.now = clock.Now

	uc := NewConnectionUsecase(registry, states, conns, refresher, rotator, cfg, logger).(*connectionUsecase)
	uc.now = clock.Now

	return &harness{
		clock:     clock,
		provider:  provider,
		states:    states,
		conns:     conns,
		refresher: refresher,
		rotator:   rotator,
		usecase:   uc,
	}
}
