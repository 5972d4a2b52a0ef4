package memstore

import (
	"context"
	"sync"
	"time"

	"crosspost-connect/internal/domain/entity"
)

type SocialConnectionStore struct {
	mu     sync.Mutex
	nextID int64
	conns  map[int64]*entity.SocialConnection
	now    func() time.Time
}

func NewSocialConnectionStore(now func() time.Time) *SocialConnectionStore {
	return &SocialConnectionStore{
		conns: make(map[int64]*entity.SocialConnection),
		now:   now,
	}
}

func (s *SocialConnectionStore) Create(ctx context.Context, conn *entity.NewSocialConnection) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.conns[s.nextID] = &entity.SocialConnection{
		ID:             s.nextID,
		UserID:         conn.UserID,
		Provider:       conn.Provider,
		AccessToken:    conn.AccessToken,
		RefreshToken:   conn.RefreshToken,
		ExternalID:     conn.ExternalID,
		DisplayName:    conn.DisplayName,
		TokenExpiresAt: copyInt64(conn.TokenExpiresAt),
		Scopes:         append([]string(nil), conn.Scopes...),
		CreatedAt:      s.now(),
	}

	return s.nextID, nil
}

func (s *SocialConnectionStore) ListByUser(ctx context.Context, userID string) ([]*entity.SocialConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entity.SocialConnection
	for _, c := range s.conns {
		if c.UserID == userID {
			out = append(out, copyConnection(c))
		}
	}
	entity.SortMostRecentFirst(out)

	return out, nil
}

func (s *SocialConnectionStore) GetWithTokens(ctx context.Context, id int64) (*entity.SocialConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[id]
	if !ok {
		return nil, entity.ErrConnectionNotFound
	}
	return copyConnection(c), nil
}

func (s *SocialConnectionStore) UpdateTokens(ctx context.Context, id int64, update *entity.TokenUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[id]
	if !ok {
		return entity.ErrConnectionNotFound
	}
	c.AccessToken = update.AccessToken
	c.RefreshToken = update.RefreshToken
	c.TokenExpiresAt = copyInt64(update.TokenExpiresAt)

	return nil
}

func (s *SocialConnectionStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conns, id)
	return nil
}

func (s *SocialConnectionStore) HasValid(ctx context.Context, userID string, provider entity.Provider, validUntilUnix int64) (bool, error) {
	conns, _ := s.ListByUser(ctx, userID)
	latest := entity.LatestForProvider(conns, provider)
	if latest == nil {
		return false, nil
	}
	if latest.TokenExpiresAt == nil || *latest.TokenExpiresAt > validUntilUnix {
		return true, nil
	}
	return latest.HasRefreshToken(), nil
}

// Count returns how many connections exist for the user and provider
func (s *SocialConnectionStore) Count(userID string, provider entity.Provider) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.conns {
		if c.UserID == userID && c.Provider == provider {
			n++
		}
	}
	return n
}

func copyConnection(c *entity.SocialConnection) *entity.SocialConnection {
	out := *c
	out.TokenExpiresAt = copyInt64(c.TokenExpiresAt)
	out.Scopes = append([]string(nil), c.Scopes...)
	return &out
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
