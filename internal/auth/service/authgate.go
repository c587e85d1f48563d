package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
	"github.com/luminara-labs/storefront-auth/internal/auth/store"
	"github.com/luminara-labs/storefront-auth/pkg/slogx"
)

// CredentialKind discriminates the two ways a request can prove itself.
type CredentialKind int

const (
	// CredentialBearer is a signed access token from the Authorization header.
	CredentialBearer CredentialKind = iota
	// CredentialSessionToken is a raw opaque session reference.
	CredentialSessionToken
)

// Credential is the tagged union the gate authenticates. Exactly one of the
// two forms is populated, per Kind.
type Credential struct {
	Kind  CredentialKind
	Value string
}

// BearerCredential wraps a signed access token.
func BearerCredential(token string) Credential {
	return Credential{Kind: CredentialBearer, Value: token}
}

// SessionCredential wraps an opaque session token.
func SessionCredential(token string) Credential {
	return Credential{Kind: CredentialSessionToken, Value: token}
}

// Principal is the authenticated caller: the identity plus the live session
// the credential resolved to.
type Principal struct {
	Identity domain.Identity
	Session  domain.Session
}

// AuthGate authenticates credentials against tokens, sessions, and
// identities. Every decision resolves the session row; a signed token whose
// session has been revoked is dead no matter how valid its signature is.
type AuthGate struct {
	Tokens   *TokenService
	Sessions *SessionService
	Store    store.Store
}

// Authenticate resolves a credential to a principal or a typed refusal.
// Side effects: an expired-but-unrevoked session row is marked revoked, and
// a successful authentication touches session activity (sliding the expiry
// window). Store failures refuse: this is the strict path and it fails
// closed.
func (g *AuthGate) Authenticate(ctx context.Context, cred Credential, now time.Time) (Principal, error) {
	switch cred.Kind {
	case CredentialBearer:
		return g.authenticateBearer(ctx, cred.Value, now)
	case CredentialSessionToken:
		return g.authenticateSession(ctx, cred.Value, now)
	default:
		return Principal{}, domain.ErrTokenMalformed
	}
}

// OptionalAuthenticate never refuses: any failure, including a store
// outage, yields (nil, false) and the caller proceeds anonymously.
func (g *AuthGate) OptionalAuthenticate(ctx context.Context, cred Credential, now time.Time) (Principal, bool) {
	p, err := g.Authenticate(ctx, cred, now)
	if err != nil {
		return Principal{}, false
	}
	return p, true
}

func (g *AuthGate) authenticateBearer(ctx context.Context, raw string, now time.Time) (Principal, error) {
	claims, err := g.Tokens.Verify(raw)
	if err != nil {
		return Principal{}, err
	}

	sess, err := g.resolveSessionByID(ctx, claims.SID, now)
	if err != nil {
		return Principal{}, err
	}
	if sess.UserID != claims.UserID {
		// Token and session disagree about who is logged in. Treat as a bad
		// token rather than leaking which half is wrong.
		return Principal{}, domain.ErrTokenInvalidPayload
	}

	return g.finish(ctx, sess, now)
}

func (g *AuthGate) authenticateSession(ctx context.Context, token string, now time.Time) (Principal, error) {
	sess, err := g.Store.Sessions().GetActiveSessionByToken(ctx, token, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Principal{}, domain.ErrSessionNotFound
		}
		return Principal{}, domain.ErrStoreUnavailable
	}
	return g.finish(ctx, sess, now)
}

// resolveSessionByID loads a session in any state and maps it to the
// taxonomy, revoking expired rows as a side effect so later lookups are
// cheaper and the defunct row cannot be slid back to life.
func (g *AuthGate) resolveSessionByID(ctx context.Context, id string, now time.Time) (domain.Session, error) {
	sess, err := g.Store.Sessions().GetSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, domain.ErrStoreUnavailable
	}

	if sess.Revoked {
		return domain.Session{}, domain.ErrSessionRevoked
	}
	if !now.Before(sess.ExpiresAt) {
		if err := g.Store.Sessions().RevokeSession(ctx, sess.ID, now); err != nil {
			slogx.FromContext(ctx).Warn("failed to retire expired session",
				slog.String("session_id", sess.ID),
				slog.Any("error", err),
			)
		}
		return domain.Session{}, domain.ErrSessionExpired
	}
	return sess, nil
}

func (g *AuthGate) finish(ctx context.Context, sess domain.Session, now time.Time) (Principal, error) {
	ident, err := g.Store.Identities().GetIdentityByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Session outlived its identity row. Nothing to attach.
			return Principal{}, domain.ErrSessionNotFound
		}
		return Principal{}, domain.ErrStoreUnavailable
	}

	// Activity touch slides the expiry window. Best effort; an already-gone
	// row just means the next request re-authenticates.
	if err := g.Sessions.TouchActivity(ctx, sess.ID, now); err != nil {
		slogx.FromContext(ctx).Warn("failed to touch session activity",
			slog.String("session_id", sess.ID),
			slog.Any("error", err),
		)
	}

	return Principal{Identity: ident, Session: sess}, nil
}
