// Package auth provides username/password sessions for the dashboard.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fillteam/filltrack/internal/events"
	"github.com/fillteam/filltrack/internal/model"
	"github.com/fillteam/filltrack/internal/store"
)

// ErrInvalidCredentials is returned for unknown usernames and wrong
// passwords alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// SessionUser is the authenticated identity. Member is the linked team
// member profile; it may be nil when the profile lookup timed out or the
// account is not linked, and is filled in asynchronously in the former case.
type SessionUser struct {
	UserID   string
	Username string

	mu     sync.RWMutex
	member *model.TeamMember
}

// Member returns the linked profile, or nil while it is not yet loaded.
func (su *SessionUser) Member() *model.TeamMember {
	su.mu.RLock()
	defer su.mu.RUnlock()
	return su.member
}

func (su *SessionUser) setMember(m *model.TeamMember) {
	su.mu.Lock()
	su.member = m
	su.mu.Unlock()
}

// Service authenticates users against the user store and tracks the
// current session.
type Service struct {
	users          *store.UserStore
	members        *store.MemberStore
	bus            *events.Bus
	profileTimeout time.Duration

	mu      sync.RWMutex
	current *SessionUser
}

// NewService creates an auth service. profileTimeout bounds the member
// profile lookup during login; zero means 10s.
func NewService(users *store.UserStore, members *store.MemberStore, bus *events.Bus, profileTimeout time.Duration) *Service {
	if profileTimeout == 0 {
		profileTimeout = 10 * time.Second
	}
	return &Service{
		users:          users,
		members:        members,
		bus:            bus,
		profileTimeout: profileTimeout,
	}
}

// Login verifies the credentials and establishes the session. The member
// profile lookup is bounded: on timeout the session proceeds degraded (nil
// member) and the profile is attached when the deferred lookup completes.
func (s *Service) Login(ctx context.Context, username, password string) (*SessionUser, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if !VerifyPassword(password, u.Salt, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if err := s.users.TouchLogin(ctx, u.ID); err != nil {
		slog.Warn("record last login", "user", u.Username, "error", err)
	}

	su := &SessionUser{UserID: u.ID, Username: u.Username}

	if u.MemberID != "" {
		profileCtx, cancel := context.WithTimeout(ctx, s.profileTimeout)
		member, err := s.members.Get(profileCtx, u.MemberID)
		cancel()
		switch {
		case err == nil:
			su.setMember(member)
		case errors.Is(err, store.ErrNotFound):
			// Dangling member link; session proceeds unlinked.
			slog.Warn("session user has dangling member link", "user", u.Username, "member_id", u.MemberID)
		default:
			// Liveness over completeness: proceed degraded, backfill async.
			slog.Warn("member profile lookup failed, proceeding degraded", "user", u.Username, "error", err)
			go s.backfillProfile(su, u.MemberID)
		}
	}

	s.mu.Lock()
	s.current = su
	s.mu.Unlock()

	s.publish(events.EventSessionLogin, su)
	return su, nil
}

func (s *Service) backfillProfile(su *SessionUser, memberID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.profileTimeout)
	defer cancel()

	member, err := s.members.Get(ctx, memberID)
	if err != nil {
		slog.Warn("deferred profile lookup failed", "member_id", memberID, "error", err)
		return
	}
	su.setMember(member)
}

// Logout clears the current session. Safe to call when nobody is logged in.
func (s *Service) Logout() {
	s.mu.Lock()
	su := s.current
	s.current = nil
	s.mu.Unlock()

	if su != nil {
		s.publish(events.EventSessionLogout, su)
	}
}

// Current returns the active session user, or nil.
func (s *Service) Current() *SessionUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Service) publish(t events.EventType, su *SessionUser) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.NewEvent(t, events.SourceAuth, map[string]any{
		"user_id":  su.UserID,
		"username": su.Username,
	}))
}

// NewSalt generates a random password salt.
func NewSalt() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// HashPassword derives the stored hash from a password and salt.
func HashPassword(password, salt string) string {
	sum := sha256.Sum256([]byte(salt + ":" + password))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword checks a candidate password in constant time.
func VerifyPassword(password, salt, hash string) bool {
	candidate := HashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(hash)) == 1
}
