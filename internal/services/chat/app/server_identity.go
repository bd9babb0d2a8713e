package server

import (
	"context"
	"log"
	"net/url"
	"strings"

	"github.com/rentora/rentora/internal/auth/token"
	chatstorage "github.com/rentora/rentora/internal/services/chat/storage"
)

// identity is the resolved user for one connection. It is fixed at handshake
// time and never changes for the connection's lifetime.
type identity struct {
	userID      string
	displayName string
}

// anonymousIdentity is a valid terminal resolution, not an error state.
var anonymousIdentity = identity{}

func (i identity) isAnonymous() bool {
	return i.userID == ""
}

// identityResolver resolves a handshake token to an identity. Resolution
// never fails: every parse, verify, or lookup problem degrades to anonymous.
type identityResolver interface {
	Resolve(ctx context.Context, rawToken string) identity
}

// userDirectory looks up full identity records by the stable user id carried
// in the token payload.
type userDirectory interface {
	GetUser(ctx context.Context, userID string) (chatstorage.User, bool, error)
}

// tokenIdentityResolver verifies signed access tokens and resolves the
// subject against the user directory.
type tokenIdentityResolver struct {
	tokenConfig token.Config
	users       userDirectory
}

func newTokenIdentityResolver(tokenConfig token.Config, users userDirectory) *tokenIdentityResolver {
	return &tokenIdentityResolver{
		tokenConfig: tokenConfig,
		users:       users,
	}
}

// Resolve verifies the raw token and loads the user record behind it.
func (r *tokenIdentityResolver) Resolve(ctx context.Context, rawToken string) identity {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return anonymousIdentity
	}

	claims, err := token.VerifyAccessToken(rawToken, r.tokenConfig)
	if err != nil {
		log.Printf("chat: token verification failed, treating connection as anonymous: %v", err)
		return anonymousIdentity
	}

	if r.users == nil {
		log.Printf("chat: user directory unavailable, treating user=%q as anonymous", claims.UserID)
		return anonymousIdentity
	}
	user, found, err := r.users.GetUser(ctx, claims.UserID)
	if err != nil {
		log.Printf("chat: user lookup failed for user=%q, treating connection as anonymous: %v", claims.UserID, err)
		return anonymousIdentity
	}
	if !found {
		log.Printf("chat: unknown user=%q in valid token, treating connection as anonymous", claims.UserID)
		return anonymousIdentity
	}

	return identity{
		userID:      user.ID,
		displayName: user.DisplayName,
	}
}

// tokenFromQuery extracts the token parameter from a raw handshake query
// string. Browsers cannot set arbitrary WebSocket headers, so the token
// travels in the URL.
func tokenFromQuery(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(values.Get("token"))
}
