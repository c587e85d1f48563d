package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
	"github.com/luminara-labs/storefront-auth/internal/auth/store"
	"github.com/luminara-labs/storefront-auth/pkg/slogx"
)

// CredentialVerifier checks an email/password pair against the external
// identity provider, which owns credentials. ok=false means the pair was
// rejected; err means the provider could not be asked at all.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, email, password string) (externalID string, ok bool, err error)
}

// LoginRequest carries one login attempt. MFACode is optional on the first
// round; when the account has MFA enabled and the code is absent the attempt
// parks on ErrMFARequired.
type LoginRequest struct {
	Email     string
	Password  string
	MFACode   string
	IPAddress string
	UserAgent string
}

// LoginResult is a completed login: who, which session, and the token pair
// the client will present from now on.
type LoginResult struct {
	Identity      domain.Identity
	Session       domain.SessionHandle
	AccessToken   string
	SessionReused bool
}

// AuthService orchestrates the login, logout, and recovery flows across the
// throttles, the external credential check, MFA, sessions, and tokens.
type AuthService struct {
	Store    store.Store
	Verifier CredentialVerifier
	Tokens   *TokenService
	MFA      *MFAService
	Sessions *SessionService
	Throttle *LoginThrottle
	Recovery *RecoveryThrottle
}

// Login runs the full flow: lockout check, external credential
// verification, MFA gate, session upsert, token issue.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)
	email := NormalizeEmail(req.Email)

	state, err := s.Throttle.IsLocked(ctx, email, now)
	if err == nil && state.Locked {
		return LoginResult{}, &domain.AccountLockedError{Until: state.Until}
	}

	externalID, ok, err := s.Verifier.VerifyCredentials(ctx, email, req.Password)
	if err != nil {
		// The provider being down is not the caller's fault; refuse without
		// charging the attempt against the lockout budget.
		l.Error("credential verification unavailable", slog.Any("error", err))
		return LoginResult{}, fmt.Errorf("verify credentials: %w", err)
	}
	if !ok {
		return LoginResult{}, s.failLogin(ctx, email, req, now)
	}

	// A returning user keeps their stored display name; only first contact
	// derives one from the email.
	displayName := displayNameFromEmail(email)
	if existing, err := s.Store.Identities().GetIdentityByExternalID(ctx, externalID); err == nil && existing.DisplayName != "" {
		displayName = existing.DisplayName
	}

	ident, err := s.Store.Identities().UpsertIdentity(ctx, domain.Identity{
		ExternalID:  externalID,
		Email:       email,
		DisplayName: displayName,
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("upsert identity: %w", err)
	}

	if ident.MFAActive() {
		if req.MFACode == "" {
			return LoginResult{}, domain.ErrMFARequired
		}
		if err := s.MFA.VerifyCode(ctx, ident, req.MFACode, now); err != nil {
			if errors.Is(err, domain.ErrMFAInvalidCode) {
				return LoginResult{}, s.failLogin(ctx, email, req, now)
			}
			return LoginResult{}, err
		}
	}

	if err := s.Throttle.RecordAttempt(ctx, email, true, req.IPAddress, req.UserAgent, now); err != nil {
		l.Warn("failed to record successful attempt", slog.Any("error", err))
	}
	if err := s.Throttle.ClearOnSuccess(ctx, email, now); err != nil {
		l.Warn("failed to clear throttle state", slog.Any("error", err))
	}

	sess, reused, err := s.Sessions.CreateOrReuse(ctx, ident.ID, req.UserAgent, req.IPAddress, now)
	if err != nil {
		return LoginResult{}, fmt.Errorf("establish session: %w", err)
	}

	token, err := s.Tokens.Issue(ident, sess.ID, now)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	l.Info("login succeeded",
		slog.Int64("user_id", ident.ID),
		slog.String("session_id", sess.ID),
		slog.Bool("session_reused", reused),
	)

	return LoginResult{
		Identity: ident,
		Session: domain.SessionHandle{
			SessionID:    sess.ID,
			SessionToken: sess.SessionToken,
			ExpiresAt:    sess.ExpiresAt,
		},
		AccessToken:   token,
		SessionReused: reused,
	}, nil
}

// failLogin records the failure and reports either plain invalid
// credentials or the lock this failure just tripped. MFA failures charge
// the same budget as password failures.
func (s *AuthService) failLogin(ctx context.Context, email string, req LoginRequest, now time.Time) error {
	result, err := s.Throttle.HandleFailure(ctx, email, req.IPAddress, req.UserAgent, now)
	if err != nil {
		slogx.FromContext(ctx).Warn("failed to record login failure", slog.Any("error", err))
		return domain.ErrInvalidCredentials
	}
	if result.Locked {
		return &domain.AccountLockedError{Until: now.Add(s.Throttle.LockDuration)}
	}
	if req.MFACode != "" {
		return domain.ErrMFAInvalidCode
	}
	return domain.ErrInvalidCredentials
}

// Logout revokes the session behind an opaque token. Missing sessions are
// fine; logout is idempotent from the caller's point of view.
func (s *AuthService) Logout(ctx context.Context, sessionToken string) error {
	err := s.Sessions.RevokeByToken(ctx, sessionToken, time.Now().UTC())
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	return nil
}

// RequestRecovery throttles and forwards a password recovery request. The
// provider owns credentials, so our part ends at the throttle decision and
// the audit log; the response upstream is uniform whether or not the email
// maps to an account.
func (s *AuthService) RequestRecovery(ctx context.Context, email string) error {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)
	email = NormalizeEmail(email)

	decision, err := s.Recovery.CheckLimits(ctx, email, now)
	if err != nil {
		return fmt.Errorf("check recovery limits: %w", err)
	}
	if !decision.Allowed {
		return &domain.RecoveryBlockedError{RetryAfter: decision.RetryAfter}
	}

	if _, err := s.Recovery.IncrementAttempt(ctx, email, now); err != nil {
		return fmt.Errorf("count recovery attempt: %w", err)
	}

	// Look up the identity for the audit trail only. The outcome must not
	// change the caller-visible behavior.
	if _, err := s.Store.Identities().GetIdentityByEmail(ctx, email); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			l.Warn("recovery identity lookup failed", slog.Any("error", err))
		}
		l.Info("recovery requested for unknown identity")
		return nil
	}

	l.Info("recovery requested", slog.Int("remaining_attempts", decision.RemainingAttempts-1))
	return nil
}

// CompleteRecovery runs after the provider confirms a credential reset:
// clear the throttles and terminate every open session, since whoever held
// them may be the reason the password changed.
func (s *AuthService) CompleteRecovery(ctx context.Context, email string) error {
	now := time.Now().UTC()
	email = NormalizeEmail(email)

	if err := s.Recovery.ResetAfterSuccess(ctx, email); err != nil {
		return err
	}
	if err := s.Throttle.ClearOnSuccess(ctx, email, now); err != nil {
		return err
	}

	ident, err := s.Store.Identities().GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load identity: %w", err)
	}
	return s.Sessions.RevokeAll(ctx, ident.ID, now)
}

// NormalizeEmail lower-cases and trims an identity string so throttle keys
// and lookups agree on a single spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func displayNameFromEmail(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
