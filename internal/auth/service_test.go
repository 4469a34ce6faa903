package auth

import (
	"context"
	"testing"
	"time"

	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/config"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/identity"
)

func testAuth(t *testing.T) (*Service, identity.User) {
	t.Helper()
	cfg := config.Config{
		JWTSecret:       "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
	repo := identity.NewMemoryRepository()
	ids := identity.NewService(repo)
	user, err := ids.Register(context.Background(), identity.Credentials{Email: "f@example.com", Password: "long-enough"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return NewService(cfg, repo), user
}

func TestLoginIssuesVerifiableTokens(t *testing.T) {
	svc, user := testAuth(t)

	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := ParseAndVerifyHS256(pair.AccessToken, []byte("access-secret"))
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if claims["sub"] != user.ID || claims["role"] != user.Role {
		t.Fatalf("unexpected claims: %v", claims)
	}
	if pair.ExpiresIn <= 0 {
		t.Fatalf("expected positive expiry, got %d", pair.ExpiresIn)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, user := testAuth(t)

	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	// Access tokens are signed with a different secret than refresh tokens.
	if _, _, err := svc.Refresh(context.Background(), pair.AccessToken); err == nil {
		t.Fatal("expected refresh with access token to fail")
	}
	if _, _, err := svc.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}
