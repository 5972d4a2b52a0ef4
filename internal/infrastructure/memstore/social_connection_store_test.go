package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"crosspost-connect/internal/domain/entity"
)

func TestSocialConnectionStoreMostRecentFirst(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	store := NewSocialConnectionStore(clock.Now)
	ctx := context.Background()

	oldID, _ := store.Create(ctx, &entity.NewSocialConnection{UserID: "u", Provider: entity.ProviderTwitter, ExternalID: "old"})
	clock.Advance(time.Second)
	newID, _ := store.Create(ctx, &entity.NewSocialConnection{UserID: "u", Provider: entity.ProviderTwitter, ExternalID: "new"})

	conns, err := store.ListByUser(ctx, "u")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(conns) != 2 || conns[0].ID != newID || conns[1].ID != oldID {
		t.Fatalf("ListByUser() order = %v", conns)
	}
}

func TestSocialConnectionStoreUpdateAndHasValid(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	store := NewSocialConnectionStore(clock.Now)
	ctx := context.Background()

	expired := int64(900)
	id, _ := store.Create(ctx, &entity.NewSocialConnection{
		UserID:         "u",
		Provider:       entity.ProviderLinkedIn,
		AccessToken:    "a1",
		TokenExpiresAt: &expired,
	})

	ok, err := store.HasValid(ctx, "u", entity.ProviderLinkedIn, 1000)
	if err != nil || ok {
		t.Fatalf("HasValid() = %v, %v; want false", ok, err)
	}

	future := int64(5000)
	if err := store.UpdateTokens(ctx, id, &entity.TokenUpdate{AccessToken: "a2", TokenExpiresAt: &future}); err != nil {
		t.Fatalf("UpdateTokens() error = %v", err)
	}

	ok, _ = store.HasValid(ctx, "u", entity.ProviderLinkedIn, 1000)
	if !ok {
		t.Fatal("HasValid() = false after refresh")
	}

	conn, _ := store.GetWithTokens(ctx, id)
	if conn.AccessToken != "a2" {
		t.Fatalf("AccessToken = %q, want a2", conn.AccessToken)
	}

	if err := store.UpdateTokens(ctx, 99, &entity.TokenUpdate{}); !errors.Is(err, entity.ErrConnectionNotFound) {
		t.Fatalf("UpdateTokens(missing) error = %v", err)
	}
}
