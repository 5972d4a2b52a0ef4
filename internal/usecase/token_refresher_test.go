package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"crosspost-connect/internal/domain/entity"
)

func storedConnection(t *testing.T, h *harness, expiresIn int64, refreshToken string) *entity.SocialConnection {
	t.Helper()
	ctx := context.Background()

	var expiresAt *int64
	if expiresIn != 0 {
		at := h.clock.Now().Unix() + expiresIn
		expiresAt = &at
	}

	id, err := h.conns.Create(ctx, &entity.NewSocialConnection{
		UserID:         "user-1",
		Provider:       entity.ProviderTwitter,
		AccessToken:    "stored-token",
		RefreshToken:   refreshToken,
		ExternalID:     "ext-1",
		TokenExpiresAt: expiresAt,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	conn, _ := h.conns.GetWithTokens(ctx, id)
	return conn
}

func TestGetValidTokenLongLived(t *testing.T) {
	h := newHarness(t)
	conn := storedConnection(t, h, 7200, "refresh-1")

	token, ok := h.refresher.GetValidToken(context.Background(), conn)
	if !ok || token != "stored-token" {
		t.Fatalf("GetValidToken() = %q, %v", token, ok)
	}
	if n := h.provider.networkCalls(); n != 0 {
		t.Fatalf("network calls = %d, want 0", n)
	}
}

func TestGetValidTokenNoExpiry(t *testing.T) {
	h := newHarness(t)
	conn := storedConnection(t, h, 0, "")

	token, ok := h.refresher.GetValidToken(context.Background(), conn)
	if !ok || token != "stored-token" || h.provider.networkCalls() != 0 {
		t.Fatalf("GetValidToken() = %q, %v", token, ok)
	}
}

func TestGetValidTokenNearExpiryRefreshes(t *testing.T) {
	h := newHarness(t)
	conn := storedConnection(t, h, 200, "refresh-1")

	token, ok := h.refresher.GetValidToken(context.Background(), conn)
	if !ok || token != "access-2" {
		t.Fatalf("GetValidToken() = %q, %v; want access-2", token, ok)
	}

	stored, _ := h.conns.GetWithTokens(context.Background(), conn.ID)
	if stored.AccessToken != "access-2" || stored.RefreshToken != "refresh-2" {
		t.Fatalf("stored tokens = %q / %q", stored.AccessToken, stored.RefreshToken)
	}
	if want := h.clock.Now().Unix() + 7200; stored.TokenExpiresAt == nil || *stored.TokenExpiresAt != want {
		t.Fatalf("TokenExpiresAt = %v, want %d", stored.TokenExpiresAt, want)
	}
}

func TestGetValidTokenBufferBoundary(t *testing.T) {
	h := newHarness(t)

	// exactly now+300 is inside the buffer
	conn := storedConnection(t, h, 300, "refresh-1")
	if token, _ := h.refresher.GetValidToken(context.Background(), conn); token != "access-2" {
		t.Fatalf("at buffer edge: token = %q, want refreshed", token)
	}

	h2 := newHarness(t)
	conn = storedConnection(t, h2, 301, "refresh-1")
	if token, _ := h2.refresher.GetValidToken(context.Background(), conn); token != "stored-token" {
		t.Fatalf("past buffer edge: token = %q, want stored", token)
	}
	if h2.provider.refreshCalls != 0 {
		t.Fatalf("refreshCalls = %d, want 0", h2.provider.refreshCalls)
	}
}

func TestGetValidTokenKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	h := newHarness(t)
	h.provider.refreshResult = &entity.TokenResult{AccessToken: "access-2", ExpiresIn: 3600}
	conn := storedConnection(t, h, 100, "refresh-1")

	if _, ok := h.refresher.GetValidToken(context.Background(), conn); !ok {
		t.Fatal("GetValidToken() not ok")
	}

	stored, _ := h.conns.GetWithTokens(context.Background(), conn.ID)
	if stored.RefreshToken != "refresh-1" {
		t.Fatalf("RefreshToken = %q, want refresh-1", stored.RefreshToken)
	}
}

func TestGetValidTokenNoRefreshToken(t *testing.T) {
	h := newHarness(t)
	conn := storedConnection(t, h, 60, "")

	token, ok := h.refresher.GetValidToken(context.Background(), conn)
	if ok || token != "" {
		t.Fatalf("GetValidToken() = %q, %v; want empty", token, ok)
	}
	if h.provider.refreshCalls != 0 {
		t.Fatalf("refreshCalls = %d, want 0", h.provider.refreshCalls)
	}
}

func TestGetValidTokenRefreshFails(t *testing.T) {
	h := newHarness(t)
	h.provider.refreshErr = &entity.ProviderError{
		Kind:       entity.ErrRefreshFailed,
		Provider:   entity.ProviderTwitter,
		StatusCode: 400,
	}
	conn := storedConnection(t, h, -60, "refresh-1")

	token, ok := h.refresher.GetValidToken(context.Background(), conn)
	if ok || token != "" {
		t.Fatalf("GetValidToken() = %q, %v; want empty", token, ok)
	}

	stored, _ := h.conns.GetWithTokens(context.Background(), conn.ID)
	if stored.AccessToken != "stored-token" {
		t.Fatalf("stored token changed to %q", stored.AccessToken)
	}
}

func TestGetValidTokenConcurrentRefreshShared(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.provider.refreshGate = gate
	conn := storedConnection(t, h, 60, "refresh-1")

	const callers = 8
	tokens := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			copied := *conn
			tokens[i], _ = h.refresher.GetValidToken(context.Background(), &copied)
		}(i)
	}

	// let every caller reach the in-flight refresh before it completes
	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()

	if n := h.provider.networkCalls(); n != 1 {
		t.Fatalf("refresh calls = %d, want 1", n)
	}
	for i, token := range tokens {
		if token != "access-2" {
			t.Fatalf("caller %d token = %q, want access-2", i, token)
		}
	}
}

func TestGetValidTokenSharedRefreshSurvivesFirstCallerCancel(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.provider.refreshGate = gate
	conn := storedConnection(t, h, 60, "refresh-1")

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var firstToken, joinedToken string

	wg.Add(1)
	go func() {
		defer wg.Done()
		copied := *conn
		firstToken, _ = h.refresher.GetValidToken(firstCtx, &copied)
	}()

	// wait until the first caller is inside the provider call
	deadline := time.Now().Add(2 * time.Second)
	for h.provider.networkCalls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("refresh never started")
		}
		time.Sleep(time.Millisecond)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		copied := *conn
		joinedToken, _ = h.refresher.GetValidToken(context.Background(), &copied)
	}()

	time.Sleep(50 * time.Millisecond)
	cancelFirst()
	close(gate)
	wg.Wait()

	if joinedToken != "access-2" {
		t.Fatalf("joined caller token = %q, want access-2", joinedToken)
	}
	if firstToken != "access-2" {
		t.Fatalf("first caller token = %q, want access-2", firstToken)
	}
	if n := h.provider.networkCalls(); n != 1 {
		t.Fatalf("refresh calls = %d, want 1", n)
	}
}
