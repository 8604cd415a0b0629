package meal

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mealcheck/internal/store"
)

// Repository is the record boundary for submissions.
type Repository interface {
	Get(ctx context.Context, athleteID, date string, meal Type) (*Submission, error)
	ListForAthlete(ctx context.Context, athleteID, date string) ([]Submission, error)
	ListRange(ctx context.Context, r Range) ([]Submission, error)
	Upsert(ctx context.Context, s Submission) (Submission, error)
}

// PGRepository persists submissions in Postgres.
type PGRepository struct {
	db store.DBTX
}

// NewRepository creates a repo.
func NewRepository(db store.DBTX) *PGRepository {
	return &PGRepository{db: db}
}

const submissionColumns = `id, user_id, date, meal_type, image_key, image_version, late, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (Submission, error) {
	var s Submission
	var date time.Time
	var meal string
	if err := row.Scan(&s.ID, &s.AthleteID, &date, &meal, &s.ImageKey, &s.ImageVersion, &s.Late, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Submission{}, err
	}
	s.Date = date.Format(DateLayout)
	s.Meal = Type(meal)
	return s, nil
}

// Get returns the record for one key, or nil when absent.
func (r *PGRepository) Get(ctx context.Context, athleteID, date string, meal Type) (*Submission, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+`
		FROM meals
		WHERE user_id = $1 AND date = $2::date AND meal_type = $3
	`, athleteID, date, string(meal))
	s, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListForAthlete returns an athlete's records for one date.
func (r *PGRepository) ListForAthlete(ctx context.Context, athleteID, date string) ([]Submission, error) {
	return r.list(ctx, `
		SELECT `+submissionColumns+`
		FROM meals
		WHERE user_id = $1 AND date = $2::date
		ORDER BY meal_type DESC
	`, athleteID, date)
}

// ListRange returns every record with a date in r, oldest first.
func (r *PGRepository) ListRange(ctx context.Context, rng Range) ([]Submission, error) {
	return r.list(ctx, `
		SELECT `+submissionColumns+`
		FROM meals
		WHERE date BETWEEN $1::date AND $2::date
		ORDER BY date, created_at
	`, rng.From, rng.To)
}

func (r *PGRepository) list(ctx context.Context, query string, args ...any) ([]Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// Upsert writes s keyed by (user, date, meal type). An existing row keeps its
// id and created_at; image, version and late flag are replaced.
func (r *PGRepository) Upsert(ctx context.Context, s Submission) (Submission, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO meals (id, user_id, date, meal_type, image_key, image_version, late)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7)
		ON CONFLICT (user_id, date, meal_type) DO UPDATE SET
			image_key = EXCLUDED.image_key,
			image_version = EXCLUDED.image_version,
			late = EXCLUDED.late,
			updated_at = NOW()
		RETURNING `+submissionColumns,
		s.ID, s.AthleteID, s.Date, string(s.Meal), s.ImageKey, s.ImageVersion, s.Late)
	return scanSubmission(row)
}
