package meal

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps submissions in process. The (athlete, date, meal)
// key is unique exactly as in Postgres.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[memKey]Submission
	now  func() time.Time
	// FailGet and FailUpsert inject errors for tests.
	FailGet    error
	FailUpsert error
}

type memKey struct {
	athlete string
	date    string
	meal    Type
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[memKey]Submission), now: time.Now}
}

func (m *MemoryRepository) Get(ctx context.Context, athleteID, date string, meal Type) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGet != nil {
		return nil, m.FailGet
	}
	s, ok := m.rows[memKey{athleteID, date, meal}]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryRepository) ListForAthlete(ctx context.Context, athleteID, date string) ([]Submission, error) {
	return m.filter(func(s Submission) bool { return s.AthleteID == athleteID && s.Date == date }), nil
}

func (m *MemoryRepository) ListRange(ctx context.Context, r Range) ([]Submission, error) {
	return m.filter(func(s Submission) bool { return r.Contains(s.Date) }), nil
}

func (m *MemoryRepository) filter(keep func(Submission) bool) []Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Submission{}
	for _, s := range m.rows {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *MemoryRepository) Upsert(ctx context.Context, s Submission) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpsert != nil {
		return Submission{}, m.FailUpsert
	}
	now := m.now()
	k := memKey{s.AthleteID, s.Date, s.Meal}
	if prev, ok := m.rows[k]; ok {
		prev.ImageKey = s.ImageKey
		prev.ImageVersion = s.ImageVersion
		prev.Late = s.Late
		prev.UpdatedAt = now
		m.rows[k] = prev
		return prev, nil
	}
	s.CreatedAt = now
	s.UpdatedAt = now
	m.rows[k] = s
	return s, nil
}

// Len reports how many records are stored.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
