package auth

import (
	"testing"
	"time"

	"sms-relay/internal/config"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := newTestManager(t)

	now := time.Unix(1700000000, 0).UTC()
	pair, err := m.IssuePair(now, Identity{VolunteerID: "vol-1", Email: "ana@example.org", Name: "Ana"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}
	if pair.ExpiresIn != 900 {
		t.Fatalf("expected expires_in=900, got %d", pair.ExpiresIn)
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	id := claims.Identity()
	if id.VolunteerID != "vol-1" || id.Email != "ana@example.org" || id.Name != "Ana" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	refresh, err := m.Verify(pair.RefreshToken, TokenTypeRefresh, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if refresh.Subject != "vol-1" || refresh.Name != "" {
		t.Fatalf("refresh token should carry only the subject: %+v", refresh)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	p, err := m.IssuePair(time.Now(), Identity{VolunteerID: "v"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, time.Now()); err == nil {
		t.Fatalf("expected token_type mismatch")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := newTestManager(t)
	now := time.Unix(1700000000, 0).UTC()
	p, _ := m.IssuePair(now, Identity{VolunteerID: "v"})
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(time.Hour)); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestIssuePairRequiresVolunteer(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.IssuePair(time.Now(), Identity{}); err == nil {
		t.Fatalf("expected error without volunteer id")
	}
}
