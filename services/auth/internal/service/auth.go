package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/restaurant/pkg/events"
	"github.com/Skotchmaster/restaurant/pkg/hash"
	"github.com/Skotchmaster/restaurant/pkg/logging"
	"github.com/Skotchmaster/restaurant/pkg/roles"
	"github.com/Skotchmaster/restaurant/pkg/tokens"
	"github.com/Skotchmaster/restaurant/services/auth/internal/models"
	"github.com/Skotchmaster/restaurant/services/auth/internal/repo"
)

type AuthService struct {
	Store  UserStore
	Tokens *tokens.Service
	Hasher hash.Hasher
	Notifier

	// RestrictPrivilegedSignup makes public signup refuse roles above the
	// lowest tier.
	RestrictPrivilegedSignup bool

	decoyOnce sync.Once
	decoyHash string
}

// Session is the outcome of signup, login and refresh. RefreshToken is only
// ever handed to the cookie writer.
type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *models.User
}

func newSession(pair tokens.Pair, u *models.User) *Session {
	return &Session{
		AccessToken:      pair.Access.Token,
		AccessExpiresAt:  pair.Access.ExpiresAt,
		RefreshToken:     pair.Refresh.Token,
		RefreshExpiresAt: pair.Refresh.ExpiresAt,
		User:             u,
	}
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.signup")

	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		l.Warn("signup_failed", "status", 400, "reason", "validation", "error", err)
		return nil, validationError(err)
	}

	role := roles.Default
	if in.Role != "" {
		role = roles.Role(in.Role)
	}
	if role.Privileged() && s.RestrictPrivilegedSignup {
		l.Warn("signup_failed", "status", 403, "reason", "privileged role requested", "role", string(role))
		return nil, fmt.Errorf("role %s cannot be requested at signup: %w", role, ErrForbidden)
	}

	if _, err := s.Store.FindByEmail(ctx, in.Email); err == nil {
		l.Warn("signup_failed", "status", 409, "reason", "email taken")
		return nil, fmt.Errorf("email %s: %w", in.Email, ErrConflict)
	} else if !errors.Is(err, repo.ErrNotFound) {
		l.Error("signup_failed", "status", 500, "error", err)
		return nil, err
	}

	pwHash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		l.Error("signup_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: pwHash,
		Role:         role,
	}

	pair, err := s.Tokens.IssuePair(user.ID, user.Email, user.Role)
	if err != nil {
		l.Error("signup_failed", "status", 500, "reason", "cannot issue tokens", "error", err)
		return nil, err
	}
	refreshHash := tokens.HashRefreshToken(pair.Refresh.Token)
	user.RefreshTokenHash = &refreshHash

	if err := s.Store.Insert(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			l.Warn("signup_failed", "status", 409, "reason", "email taken")
			return nil, fmt.Errorf("email %s: %w", in.Email, ErrConflict)
		}
		l.Error("signup_failed", "status", 500, "error", err)
		return nil, err
	}

	l.Info("signup_successful", "user_id", user.ID, "role", string(user.Role))
	s.publish(ctx, events.UserRegistered, user, "", "")
	s.index(ctx, user)

	return newSession(pair, user), nil
}

// decoy is a hash of the configured cost that unknown-email logins are
// checked against, so both failure paths spend the same time in the hasher.
func (s *AuthService) decoy() string {
	s.decoyOnce.Do(func() {
		h, err := s.Hasher.Hash(uuid.NewString())
		if err == nil {
			s.decoyHash = h
		}
	})
	return s.decoyHash
}

// Login answers unknown email and wrong password identically.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		l.Warn("login_failed", "status", 400, "reason", "validation", "error", err)
		return nil, validationError(err)
	}

	user, err := s.Store.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.Hasher.Verify(in.Password, s.decoy())
			l.Warn("login_failed", "status", 401, "reason", "unknown email")
			return nil, fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}

	if !s.Hasher.Verify(in.Password, user.PasswordHash) {
		l.Warn("login_failed", "status", 401, "reason", "wrong password", "user_id", user.ID)
		return nil, fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	}

	pair, err := s.Tokens.IssuePair(user.ID, user.Email, user.Role)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot issue tokens", "error", err)
		return nil, err
	}

	refreshHash := tokens.HashRefreshToken(pair.Refresh.Token)
	user, err = s.Store.UpdateFields(ctx, user.ID, repo.RefreshHashPatch{Hash: &refreshHash})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("login_failed", "status", 401, "reason", "user vanished")
			return nil, fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}

	l.Info("login_successful", "user_id", user.ID)
	s.publish(ctx, events.UserLoggedIn, user, "", "")

	return newSession(pair, user), nil
}

// Refresh rotates the session held by refreshToken. The stored hash is
// swapped with a compare-and-swap, so a token can be redeemed at most once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := s.Tokens.Verify(refreshToken, tokens.Refresh)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "invalid refresh token", "error", err)
		return nil, fmt.Errorf("refresh: %w", ErrUnauthorized)
	}

	user, err := s.Store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("refresh_failed", "status", 401, "reason", "unknown user", "user_id", claims.Subject)
			return nil, fmt.Errorf("refresh: %w", ErrUnauthorized)
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}

	if !user.HasSession() {
		l.Warn("refresh_failed", "status", 401, "reason", "no active session", "user_id", user.ID)
		return nil, fmt.Errorf("refresh: %w", ErrUnauthorized)
	}

	stored := *user.RefreshTokenHash
	presented := tokens.HashRefreshToken(refreshToken)
	if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		l.Warn("refresh_reuse_detected", "status", 401, "user_id", user.ID, "jti", claims.ID)
		return nil, fmt.Errorf("refresh: %w", ErrUnauthorized)
	}

	pair, err := s.Tokens.IssuePair(user.ID, user.Email, user.Role)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot issue tokens", "error", err)
		return nil, err
	}

	next := tokens.HashRefreshToken(pair.Refresh.Token)
	if err := s.Store.RotateRefreshHash(ctx, user.ID, stored, next); err != nil {
		if errors.Is(err, repo.ErrStaleRefreshToken) {
			l.Warn("refresh_reuse_detected", "status", 401, "reason", "lost rotation race", "user_id", user.ID)
			return nil, fmt.Errorf("refresh: %w", ErrUnauthorized)
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}
	user.RefreshTokenHash = &next

	l.Info("refresh_successful", "user_id", user.ID)
	s.publish(ctx, events.UserTokensRefreshed, user, "", "")

	return newSession(pair, user), nil
}

// Logout ends the session of userID. Repeated calls and unknown users are
// not errors.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	if userID == "" {
		return nil
	}

	user, err := s.Store.UpdateFields(ctx, userID, repo.RefreshHashPatch{})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Info("logout_noop", "user_id", userID)
			return nil
		}
		l.Error("logout_failed", "status", 500, "user_id", userID, "error", err)
		return err
	}

	l.Info("logout_successful", "user_id", userID)
	s.publish(ctx, events.UserLoggedOut, user, "", "")
	return nil
}
