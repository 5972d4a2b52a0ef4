package memstore

import (
	"context"
	"sync"
	"time"

	"crosspost-connect/internal/domain/entity"
	"crosspost-connect/internal/domain/repository"
)

type OAuthStateStore struct {
	mu     sync.Mutex
	states map[string]*entity.OAuthState
	now    func() time.Time
}

func NewOAuthStateStore() repository.OAuthStateRepository {
	return NewOAuthStateStoreWithClock(time.Now)
}

// NewOAuthStateStoreWithClock returns a store that reads the time from now
func NewOAuthStateStoreWithClock(now func() time.Time) *OAuthStateStore {
	return &OAuthStateStore{
		states: make(map[string]*entity.OAuthState),
		now:    now,
	}
}

func (s *OAuthStateStore) Store(ctx context.Context, state *entity.OAuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.states[state.State]; exists {
		return entity.ErrDuplicateState
	}

	record := *state
	record.Consumed = false
	record.Metadata = copyMetadata(state.Metadata)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	s.states[state.State] = &record

	return nil
}

func (s *OAuthStateStore) ValidateAndConsume(ctx context.Context, state string, provider entity.Provider) (*entity.ConsumedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.states[state]
	switch {
	case !ok:
		return nil, entity.ErrStateNotFound
	case record.Provider != provider:
		return nil, entity.ErrProviderMismatch
	case record.Consumed:
		return nil, entity.ErrStateAlreadyConsumed
	case record.IsExpired(s.now()):
		return nil, entity.ErrStateExpired
	}

	record.Consumed = true

	return &entity.ConsumedState{
		UserID:   record.UserID,
		Metadata: copyMetadata(record.Metadata),
	}, nil
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
