// Package account owns profiles: identity, role and credentials.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mealcheck/internal/meal"
)

var (
	ErrNotFound     = errors.New("profile not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrTokenUnknown = errors.New("refresh token unknown or revoked")
)

// Role is a closed variant. The zero value is not a valid role.
type Role uint8

const (
	RoleAthlete Role = iota + 1
	RoleCoach
)

// ParseRole maps the stored role string.
func ParseRole(s string) (Role, error) {
	switch s {
	case "athlete":
		return RoleAthlete, nil
	case "coach":
		return RoleCoach, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	switch r {
	case RoleAthlete:
		return "athlete"
	case RoleCoach:
		return "coach"
	}
	return "invalid"
}

func (r Role) MarshalText() ([]byte, error) {
	if r != RoleAthlete && r != RoleCoach {
		return nil, fmt.Errorf("invalid role %d", r)
	}
	return []byte(r.String()), nil
}

// Profile is the authoritative record for a signed-in user.
type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Athlete projects the profile onto a roster entry.
func (p Profile) Athlete() meal.Athlete {
	return meal.Athlete{ID: p.ID, FullName: p.FullName, Email: p.Email}
}

// NormalizeEmail lower-cases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Store is the record boundary for profiles and refresh tokens.
type Store interface {
	GetByID(ctx context.Context, id string) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	ListByRole(ctx context.Context, role Role) ([]Profile, error)
	Create(ctx context.Context, p Profile) error
	SaveRefreshToken(ctx context.Context, tokenID, profileID string, expiresAt time.Time) error
	RevokeRefreshToken(ctx context.Context, tokenID string) error
	// ConsumeRefreshToken revokes tokenID and reports ErrTokenUnknown when it
	// was missing, expired or already revoked.
	ConsumeRefreshToken(ctx context.Context, tokenID string, now time.Time) error
}

// Roster adapts a Store to meal.Roster: athletes in listing order.
type Roster struct {
	Store Store
}

func (r Roster) ListAthletes(ctx context.Context) ([]meal.Athlete, error) {
	profiles, err := r.Store.ListByRole(ctx, RoleAthlete)
	if err != nil {
		return nil, err
	}
	out := make([]meal.Athlete, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.Athlete())
	}
	return out, nil
}
