package repository

import (
	"errors"
	"testing"
	"time"

	"crosspost-connect/internal/domain/entity"
)

func TestClassifyState(t *testing.T) {
	created := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		record   entity.OAuthState
		provider entity.Provider
		now      time.Time
		want     error
	}{
		{
			name:     "provider mismatch",
			record:   entity.OAuthState{Provider: entity.ProviderLinkedIn, CreatedAt: created, TTLSeconds: 600},
			provider: entity.ProviderTwitter,
			now:      created.Add(time.Minute),
			want:     entity.ErrProviderMismatch,
		},
		{
			name:     "consumed wins over expired",
			record:   entity.OAuthState{Provider: entity.ProviderTwitter, CreatedAt: created, TTLSeconds: 600, Consumed: true},
			provider: entity.ProviderTwitter,
			now:      created.Add(time.Hour),
			want:     entity.ErrStateAlreadyConsumed,
		},
		{
			name:     "expired at exactly ttl",
			record:   entity.OAuthState{Provider: entity.ProviderTwitter, CreatedAt: created, TTLSeconds: 600},
			provider: entity.ProviderTwitter,
			now:      created.Add(600 * time.Second),
			want:     entity.ErrStateExpired,
		},
		{
			name:     "lost race",
			record:   entity.OAuthState{Provider: entity.ProviderTwitter, CreatedAt: created, TTLSeconds: 600},
			provider: entity.ProviderTwitter,
			now:      created.Add(time.Second),
			want:     entity.ErrStateAlreadyConsumed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyState(&tt.record, tt.provider, tt.now); !errors.Is(got, tt.want) {
				t.Fatalf("classifyState() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseConsumeResult(t *testing.T) {
	consumed, err := parseConsumeResult([]string{"ok", "user-1", `{"code_verifier":"abc"}`})
	if err != nil {
		t.Fatalf("parseConsumeResult() error = %v", err)
	}
	if consumed.UserID != "user-1" || consumed.CodeVerifier() != "abc" {
		t.Fatalf("parseConsumeResult() = %+v", consumed)
	}

	errorReplies := map[string]error{
		"not_found":         entity.ErrStateNotFound,
		"provider_mismatch": entity.ErrProviderMismatch,
		"consumed":          entity.ErrStateAlreadyConsumed,
		"expired":           entity.ErrStateExpired,
	}
	for reply, want := range errorReplies {
		if _, err := parseConsumeResult([]string{reply}); !errors.Is(err, want) {
			t.Errorf("parseConsumeResult(%q) error = %v, want %v", reply, err, want)
		}
	}

	if _, err := parseConsumeResult(nil); err == nil {
		t.Error("expected error for empty reply")
	}
	if _, err := parseConsumeResult([]string{"ok", "user-1"}); err == nil {
		t.Error("expected error for short ok reply")
	}
}
