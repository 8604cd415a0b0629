package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"mealcheck/internal/store"
)

// PGStore persists profiles in Postgres.
type PGStore struct {
	conn *sql.DB
	db   store.DBTX
}

func NewStore(conn *sql.DB) *PGStore {
	return &PGStore{conn: conn, db: conn}
}

const profileColumns = `id, email, full_name, role, password_hash, created_at`

func scanProfile(row interface{ Scan(...any) error }) (*Profile, error) {
	var p Profile
	var role string
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &role, &p.PasswordHash, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	r, err := ParseRole(role)
	if err != nil {
		return nil, err
	}
	p.Role = r
	return &p, nil
}

// GetByID returns the profile or nil when absent.
func (s *PGStore) GetByID(ctx context.Context, id string) (*Profile, error) {
	return scanProfile(s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
}

// GetByEmail returns the profile or nil when absent.
func (s *PGStore) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	return scanProfile(s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email = $1`, NormalizeEmail(email)))
}

// ListByRole lists profiles in creation order.
func (s *PGStore) ListByRole(ctx context.Context, role Role) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE role = $1
		ORDER BY created_at, id
	`, role.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// Create inserts a profile. A duplicate email yields ErrEmailTaken.
func (s *PGStore) Create(ctx context.Context, p Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, full_name, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, NormalizeEmail(p.Email), p.FullName, p.Role.String(), p.PasswordHash)
	if err != nil && isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

// SaveRefreshToken stores a refresh token id for rotation checks and drops
// the profile's dead tokens in the same transaction.
func (s *PGStore) SaveRefreshToken(ctx context.Context, tokenID, profileID string, expiresAt time.Time) error {
	return store.RunInTx(ctx, s.conn, nil, func(ctx context.Context, tx store.DBTX) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM refresh_tokens
			WHERE profile_id = $1 AND (revoked OR expires_at <= NOW())
		`, profileID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO refresh_tokens (token_id, profile_id, expires_at)
			VALUES ($1, $2, $3)
		`, tokenID, profileID, expiresAt)
		return err
	})
}

// RevokeRefreshToken marks a token revoked.
func (s *PGStore) RevokeRefreshToken(ctx context.Context, tokenID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token_id = $1`, tokenID)
	return err
}

// ConsumeRefreshToken revokes a live token in one statement.
func (s *PGStore) ConsumeRefreshToken(ctx context.Context, tokenID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE token_id = $1 AND NOT revoked AND expires_at > $2
	`, tokenID, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTokenUnknown
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
