package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

var (
	errWrongKind = errors.New("wrong token kind")
	errIssuer    = errors.New("issuer mismatch")
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExp    time.Time `json:"access_expires_at"`
	RefreshExp   time.Time `json:"refresh_expires_at"`
	refreshID    string
}

// Claims represents JWT payload. The subject is the profile id; the role is
// never carried in the token.
type Claims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 tokens for one issuer.
type Tokens struct {
	Key        []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issue issues signed access and refresh tokens for subject.
func (t Tokens) Issue(subject string, now time.Time) (TokenPair, error) {
	accessExp := now.Add(t.AccessTTL)
	refreshExp := now.Add(t.RefreshTTL)
	refreshID := uuid.NewString()

	accessToken, err := t.sign(kindAccess, subject, uuid.NewString(), now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := t.sign(kindRefresh, subject, refreshID, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		refreshID:    refreshID,
	}, nil
}

func (t Tokens) sign(kind, subject, id string, now, exp time.Time) (string, error) {
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    t.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Key)
}

// ParseAccess validates an access token.
func (t Tokens) ParseAccess(tokenStr string, now time.Time) (Claims, error) {
	return t.parse(tokenStr, kindAccess, now)
}

// ParseRefresh validates a refresh token.
func (t Tokens) ParseRefresh(tokenStr string, now time.Time) (Claims, error) {
	return t.parse(tokenStr, kindRefresh, now)
}

func (t Tokens) parse(tokenStr, kind string, now time.Time) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.Key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if t.Issuer != "" && claims.Issuer != t.Issuer {
		return Claims{}, errIssuer
	}
	if claims.Kind != kind {
		return Claims{}, errWrongKind
	}
	if claims.Subject == "" || claims.ID == "" {
		return Claims{}, errors.New("token missing subject or id")
	}
	return *claims, nil
}
