// Package token verifies rentora access tokens.
//
// Access tokens are issued by the rental platform's REST login flow as
// HS256-signed JWTs carrying a user_id claim. The chat service verifies
// them with the same shared signing key so a browser session works across
// both surfaces.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/rentora/rentora/internal/platform/errors"
)

// accessTokenEnv holds raw env values before post-parse validation.
type accessTokenEnv struct {
	SigningKey string `env:"RENTORA_JWT_SIGNING_KEY"`
}

// Config defines how access tokens are verified.
type Config struct {
	Key []byte
	Now func() time.Time
}

// Claims captures validated access token claims.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// accessClaims is the internal claims type used for JWT parsing.
type accessClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// LoadConfigFromEnv reads access token verification configuration.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw accessTokenEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse access token env: %w", err)
	}
	signingKey := strings.TrimSpace(raw.SigningKey)
	if signingKey == "" {
		return Config{}, fmt.Errorf("RENTORA_JWT_SIGNING_KEY is required")
	}
	if now == nil {
		now = time.Now
	}
	return Config{
		Key: []byte(signingKey),
		Now: now,
	}, nil
}

// VerifyAccessToken verifies a signed access token and extracts its claims.
func VerifyAccessToken(raw string, cfg Config) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, apperrors.New(apperrors.CodeAccessTokenInvalid, "access token is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if len(cfg.Key) == 0 {
		return Claims{}, errors.New("access token verifier is not configured")
	}

	var parsed accessClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeAccessTokenInvalid, "access token exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeAccessTokenExpired, "access token is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return Claims{}, apperrors.New(apperrors.CodeAccessTokenInvalid, "access token not active yet")
		}
	}

	userID := strings.TrimSpace(parsed.UserID)
	if userID == "" {
		return Claims{}, apperrors.New(apperrors.CodeAccessTokenInvalid, "access token user_id is required")
	}

	claims := Claims{
		UserID:    userID,
		ExpiresAt: exp,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.New(apperrors.CodeAccessTokenInvalid, "access token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeAccessTokenInvalid, "access token alg is invalid")
	}
	return apperrors.New(apperrors.CodeAccessTokenInvalid, "access token is invalid")
}
