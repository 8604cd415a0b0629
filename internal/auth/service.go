// Package auth signs athletes and coaches in, rotates and revokes their
// tokens, and resolves a bearer token to the stored profile.
package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mealcheck/internal/account"
	"mealcheck/internal/apperr"
	"mealcheck/internal/retry"
)

// dummyHash keeps sign-in for unknown emails as slow as for known ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("mealcheck-dummy"), bcrypt.DefaultCost)

// Session is what a successful sign-in or refresh hands back.
type Session struct {
	TokenPair
	Profile account.Profile `json:"profile"`
}

// Service is the identity boundary.
type Service struct {
	store  account.Store
	deny   Denylist
	tokens Tokens
	reads  retry.Policy
	now    func() time.Time
}

func NewService(store account.Store, deny Denylist, tokens Tokens, reads retry.Policy) *Service {
	return &Service{store: store, deny: deny, tokens: tokens, reads: reads, now: time.Now}
}

// SignIn checks the password against the stored bcrypt hash.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	if email == "" || password == "" {
		return Session{}, apperr.AuthFailed("email and password required")
	}
	p, err := retry.Value(ctx, s.reads, func(ctx context.Context) (*account.Profile, error) {
		return s.store.GetByEmail(ctx, account.NormalizeEmail(email))
	})
	if err != nil {
		return Session{}, apperr.Unavailable("profile store", err)
	}
	if p == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return Session{}, apperr.AuthFailed("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return Session{}, apperr.AuthFailed("invalid credentials")
	}
	return s.issue(ctx, *p)
}

// Refresh consumes a refresh token and issues a new pair. A token can be
// used once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken, s.now())
	if err != nil {
		return Session{}, apperr.AuthFailed("invalid refresh token")
	}
	if err := retry.Once(ctx, s.reads.Timeout, func(ctx context.Context) error {
		return s.store.ConsumeRefreshToken(ctx, claims.ID, s.now())
	}); err != nil {
		if errors.Is(err, account.ErrTokenUnknown) {
			return Session{}, apperr.AuthFailed("refresh token revoked")
		}
		return Session{}, apperr.Unavailable("profile store", err)
	}
	p, err := s.lookup(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, *p)
}

// SignOut denylists the access token and revokes the refresh token, if any.
func (s *Service) SignOut(ctx context.Context, access Claims, refreshToken string) error {
	if access.ExpiresAt != nil {
		ttl := access.ExpiresAt.Time.Sub(s.now())
		if err := s.deny.Deny(ctx, access.ID, ttl); err != nil {
			return apperr.Unavailable("denylist", err)
		}
	}
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.ParseRefresh(refreshToken, s.now())
	if err != nil || claims.Subject != access.Subject {
		// Access token is already revoked; a bad refresh token changes nothing.
		log.Printf("[WARN] sign-out for %s ignored an invalid refresh token", access.Subject)
		return nil
	}
	if err := retry.Once(ctx, s.reads.Timeout, func(ctx context.Context) error {
		return s.store.RevokeRefreshToken(ctx, claims.ID)
	}); err != nil {
		return apperr.Unavailable("profile store", err)
	}
	return nil
}

// Authenticate resolves an access token to the profile stored for its
// subject. The role comes from that record only.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*account.Profile, Claims, error) {
	claims, err := s.tokens.ParseAccess(accessToken, s.now())
	if err != nil {
		return nil, Claims{}, apperr.AuthFailed("invalid token")
	}
	denied, err := s.deny.Denied(ctx, claims.ID)
	if err != nil {
		return nil, Claims{}, apperr.Unavailable("denylist", err)
	}
	if denied {
		return nil, Claims{}, apperr.AuthFailed("token revoked")
	}
	p, err := s.lookup(ctx, claims.Subject)
	if err != nil {
		return nil, Claims{}, err
	}
	return p, claims, nil
}

func (s *Service) lookup(ctx context.Context, id string) (*account.Profile, error) {
	p, err := retry.Value(ctx, s.reads, func(ctx context.Context) (*account.Profile, error) {
		return s.store.GetByID(ctx, id)
	})
	if err != nil {
		return nil, apperr.Unavailable("profile store", err)
	}
	if p == nil {
		return nil, apperr.AuthFailed("profile no longer exists")
	}
	return p, nil
}

func (s *Service) issue(ctx context.Context, p account.Profile) (Session, error) {
	pair, err := s.tokens.Issue(p.ID, s.now())
	if err != nil {
		return Session{}, apperr.Internal("sign tokens")
	}
	if err := retry.Once(ctx, s.reads.Timeout, func(ctx context.Context) error {
		return s.store.SaveRefreshToken(ctx, pair.refreshID, p.ID, pair.RefreshExp)
	}); err != nil {
		return Session{}, apperr.Unavailable("profile store", err)
	}
	return Session{TokenPair: pair, Profile: p}, nil
}
