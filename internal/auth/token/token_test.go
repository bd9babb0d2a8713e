package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/rentora/rentora/internal/platform/errors"
)

var testKey = []byte("test-signing-key")

func testConfig(now time.Time) Config {
	return Config{
		Key: testKey,
		Now: func() time.Time { return now },
	}
}

func signToken(t *testing.T, key []byte, claims jwt.Claims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func accessTokenClaims(userID string, expiresAt time.Time) accessClaims {
	return accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(expiresAt.Add(-time.Hour)),
		},
		UserID: userID,
	}
}

func TestVerifyAccessTokenValid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := signToken(t, testKey, accessTokenClaims("user-1", now.Add(time.Hour)))

	claims, err := VerifyAccessToken(raw, testConfig(now))
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("user id = %q, want %q", claims.UserID, "user-1")
	}
	if !claims.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expires at = %v, want %v", claims.ExpiresAt, now.Add(time.Hour))
	}
}

func TestVerifyAccessTokenExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := signToken(t, testKey, accessTokenClaims("user-1", now.Add(-time.Minute)))

	_, err := VerifyAccessToken(raw, testConfig(now))
	if !errors.Is(err, apperrors.New(apperrors.CodeAccessTokenExpired, "")) {
		t.Fatalf("error = %v, want expired code", err)
	}
}

func TestVerifyAccessTokenWrongKey(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := signToken(t, []byte("other-key"), accessTokenClaims("user-1", now.Add(time.Hour)))

	_, err := VerifyAccessToken(raw, testConfig(now))
	if !errors.Is(err, apperrors.New(apperrors.CodeAccessTokenInvalid, "")) {
		t.Fatalf("error = %v, want invalid code", err)
	}
}

func TestVerifyAccessTokenRejectsWrongAlg(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	claims := accessTokenClaims("user-1", now.Add(time.Hour))
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := VerifyAccessToken(raw, testConfig(now)); err == nil {
		t.Fatal("expected error for disallowed signing method")
	}
}

func TestVerifyAccessTokenRequiresUserID(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := signToken(t, testKey, accessTokenClaims("  ", now.Add(time.Hour)))

	_, err := VerifyAccessToken(raw, testConfig(now))
	if !errors.Is(err, apperrors.New(apperrors.CodeAccessTokenInvalid, "")) {
		t.Fatalf("error = %v, want invalid code", err)
	}
}

func TestVerifyAccessTokenRequiresExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := signToken(t, testKey, accessClaims{UserID: "user-1"})

	_, err := VerifyAccessToken(raw, testConfig(now))
	if !errors.Is(err, apperrors.New(apperrors.CodeAccessTokenInvalid, "")) {
		t.Fatalf("error = %v, want invalid code", err)
	}
}

func TestVerifyAccessTokenGarbage(t *testing.T) {
	_, err := VerifyAccessToken("not-a-token", testConfig(time.Now()))
	if !errors.Is(err, apperrors.New(apperrors.CodeAccessTokenInvalid, "")) {
		t.Fatalf("error = %v, want invalid code", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("RENTORA_JWT_SIGNING_KEY", "env-key")

	cfg, err := LoadConfigFromEnv(nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if string(cfg.Key) != "env-key" {
		t.Fatalf("key = %q, want %q", cfg.Key, "env-key")
	}
	if cfg.Now == nil {
		t.Fatal("expected default clock")
	}
}

func TestLoadConfigFromEnvRequiresKey(t *testing.T) {
	t.Setenv("RENTORA_JWT_SIGNING_KEY", "  ")

	if _, err := LoadConfigFromEnv(nil); err == nil {
		t.Fatal("expected error for missing signing key")
	}
}
