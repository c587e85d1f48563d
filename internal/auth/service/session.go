package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
	"github.com/luminara-labs/storefront-auth/internal/auth/geo"
	"github.com/luminara-labs/storefront-auth/internal/auth/store"
	"github.com/luminara-labs/storefront-auth/pkg/cryptox"
	"github.com/luminara-labs/storefront-auth/pkg/idx"
	"github.com/luminara-labs/storefront-auth/pkg/useragent"
)

const (
	// DefaultSessionTTL is the sliding inactivity window. Any reuse or
	// activity touch pushes expiry out by the full TTL again.
	DefaultSessionTTL = 30 * 24 * time.Hour

	// fingerprintLength truncates the hex device fingerprint. 16 hex chars
	// (64 bits) is plenty for per-user device dedup.
	fingerprintLength = 16

	// geoQueueSize bounds the enrichment backlog. When full, lookups are
	// dropped; location is cosmetic.
	geoQueueSize = 64
)

// SessionService manages the session rows behind opaque session tokens and
// signed access tokens alike. Creation is an atomic upsert keyed on
// (user, device fingerprint): two racing logins from the same device
// converge on one row with one token.
type SessionService struct {
	Store    store.Store
	Resolver geo.Resolver
	TTL      time.Duration

	logger *slog.Logger

	mu      sync.Mutex
	geoCh   chan geoJob
	done    chan struct{}
	started bool
}

type geoJob struct {
	sessionID string
	ip        string
}

// NewSessionService builds a session service with the given TTL (zero means
// DefaultSessionTTL) and geo resolver (nil disables enrichment).
func NewSessionService(st store.Store, resolver geo.Resolver, ttl time.Duration, logger *slog.Logger) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if resolver == nil {
		resolver = geo.NoopResolver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		Store:    st,
		Resolver: resolver,
		TTL:      ttl,
		logger:   logger,
	}
}

// DeviceFingerprint derives the stable per-device key used for session
// dedup. Same user agent and IP means same device.
func DeviceFingerprint(userAgent, ip string) string {
	sum := sha256.Sum256([]byte(userAgent + "-" + ip))
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}

// CreateOrReuse returns the active session for (user, device), creating one
// if none exists or refreshing the existing row's token window if one does.
// The caller gets the same opaque token back on reuse.
func (s *SessionService) CreateOrReuse(ctx context.Context, userID int64, userAgent, ip string, now time.Time) (domain.Session, bool, error) {
	ua := useragent.Parse(userAgent)

	candidate := domain.Session{
		ID:                idx.New().String(),
		UserID:            userID,
		DeviceFingerprint: DeviceFingerprint(userAgent, ip),
		DeviceName:        ua.DeviceName,
		Browser:           ua.Browser,
		OS:                ua.OS,
		IPAddress:         ip,
		UserAgent:         userAgent,
		CreatedAt:         now,
		LastActivityAt:    now,
		ExpiresAt:         now.Add(s.TTL),
	}

	var (
		sess   domain.Session
		reused bool
	)
	// A fresh random token colliding with a stored one is astronomically
	// unlikely but cheap to retry once.
	for attempt := 0; attempt < 2; attempt++ {
		token, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return domain.Session{}, false, fmt.Errorf("generate session token: %w", err)
		}
		candidate.SessionToken = token

		sess, reused, err = s.Store.Sessions().UpsertActiveSession(ctx, candidate, now)
		if err != nil {
			if errors.Is(err, store.ErrAlreadyExists) && attempt == 0 {
				continue
			}
			return domain.Session{}, false, fmt.Errorf("upsert session: %w", err)
		}
		break
	}

	if !reused {
		s.enqueueGeo(sess.ID, ip)
	}
	return sess, reused, nil
}

// GetByToken resolves an opaque session token to its active session.
// Revoked and expired sessions are not found.
func (s *SessionService) GetByToken(ctx context.Context, token string, now time.Time) (domain.Session, error) {
	sess, err := s.Store.Sessions().GetActiveSessionByToken(ctx, token, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// GetByID returns a session in any state. The auth gate needs to tell a
// revoked session from an expired one from a missing one.
func (s *SessionService) GetByID(ctx context.Context, id string) (domain.Session, error) {
	sess, err := s.Store.Sessions().GetSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// ListActiveByUser returns the user's live sessions, newest first.
func (s *SessionService) ListActiveByUser(ctx context.Context, userID int64, now time.Time) ([]domain.Session, error) {
	return s.Store.Sessions().ListActiveSessionsByUser(ctx, userID, now)
}

// TouchActivity bumps last-activity and slides expiry forward by the TTL.
func (s *SessionService) TouchActivity(ctx context.Context, id string, now time.Time) error {
	err := s.Store.Sessions().TouchSessionActivity(ctx, id, now, now.Add(s.TTL))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Revoke marks one session revoked. Idempotent; revocation is final.
func (s *SessionService) Revoke(ctx context.Context, id string, now time.Time) error {
	if err := s.Store.Sessions().RevokeSession(ctx, id, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrSessionNotFound
		}
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeByToken revokes the session holding an opaque token. Used by logout.
func (s *SessionService) RevokeByToken(ctx context.Context, token string, now time.Time) error {
	if err := s.Store.Sessions().RevokeSessionByToken(ctx, token, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrSessionNotFound
		}
		return fmt.Errorf("revoke session by token: %w", err)
	}
	return nil
}

// RevokeAllExcept revokes every live session of a user except the one
// holding keepToken ("sign out everywhere else").
func (s *SessionService) RevokeAllExcept(ctx context.Context, userID int64, keepToken string, now time.Time) error {
	return s.Store.Sessions().RevokeAllSessionsExcept(ctx, userID, keepToken, now)
}

// RevokeAll revokes every live session of a user.
func (s *SessionService) RevokeAll(ctx context.Context, userID int64, now time.Time) error {
	return s.Store.Sessions().RevokeAllSessions(ctx, userID, now)
}

// CleanupExpired deletes revoked and expired rows. Housekeeping only; the
// read paths already hide defunct rows.
func (s *SessionService) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.Store.Sessions().DeleteDefunctSessions(ctx, now)
}

// Start launches the background location enricher. Safe to call once.
func (s *SessionService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.geoCh = make(chan geoJob, geoQueueSize)
	s.done = make(chan struct{})
	s.started = true
	go s.enrichLoop()
}

// Stop drains the enricher and waits for it to exit.
func (s *SessionService) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.geoCh)
	done := s.done
	s.mu.Unlock()
	<-done
}

// enqueueGeo hands a session off for location lookup. Never blocks: when
// the enricher is stopped or backed up the lookup is dropped.
func (s *SessionService) enqueueGeo(sessionID, ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	select {
	case s.geoCh <- geoJob{sessionID: sessionID, ip: ip}:
	default:
		s.logger.Debug("geo queue full, dropping lookup", slog.String("session_id", sessionID))
	}
}

func (s *SessionService) enrichLoop() {
	defer close(s.done)
	for job := range s.geoCh {
		ctx, cancel := context.WithTimeout(context.Background(), geo.DefaultTimeout)
		location, err := s.Resolver.Resolve(ctx, job.ip)
		cancel()
		if err != nil {
			s.logger.Debug("geo lookup failed",
				slog.String("session_id", job.sessionID),
				slog.Any("error", err),
			)
			continue
		}

		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		err = s.Store.Sessions().UpdateSessionLocation(ctx, job.sessionID, location)
		cancel()
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("failed to store session location",
				slog.String("session_id", job.sessionID),
				slog.Any("error", err),
			)
		}
	}
}
