package account

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps profiles in process, in insertion order.
type MemoryStore struct {
	mu       sync.Mutex
	profiles []Profile
	tokens   map[string]memToken
	// Fail injects an error into every call, for tests.
	Fail error
}

type memToken struct {
	profileID string
	expiresAt time.Time
	revoked   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]memToken)}
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	for _, p := range m.profiles {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	email = NormalizeEmail(email)
	for _, p := range m.profiles {
		if p.Email == email {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListByRole(ctx context.Context, role Role) ([]Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	out := []Profile{}
	for _, p := range m.profiles {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) Create(ctx context.Context, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	p.Email = NormalizeEmail(p.Email)
	for _, existing := range m.profiles {
		if existing.Email == p.Email {
			return ErrEmailTaken
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.profiles = append(m.profiles, p)
	return nil
}

func (m *MemoryStore) SaveRefreshToken(ctx context.Context, tokenID, profileID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.tokens[tokenID] = memToken{profileID: profileID, expiresAt: expiresAt}
	return nil
}

func (m *MemoryStore) RevokeRefreshToken(ctx context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	if tok, ok := m.tokens[tokenID]; ok {
		tok.revoked = true
		m.tokens[tokenID] = tok
	}
	return nil
}

func (m *MemoryStore) ConsumeRefreshToken(ctx context.Context, tokenID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	tok, ok := m.tokens[tokenID]
	if !ok || tok.revoked || !tok.expiresAt.After(now) {
		return ErrTokenUnknown
	}
	tok.revoked = true
	m.tokens[tokenID] = tok
	return nil
}
