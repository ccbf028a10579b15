package service

// In-memory implementations of the store interfaces. The token store hands
// out strictly increasing creation timestamps so the reuse check's ordering
// assumption holds even when many tokens are created within one test run.

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/skillwise/auth/internal/model"
	"github.com/skillwise/auth/internal/queue"
	"github.com/skillwise/auth/internal/repository"
)

type memUsers struct {
	mu     sync.Mutex
	seq    uint64
	rows   map[uint64]model.User
	stats  *memStats
	tokens *memTokens
}

func newMemUsers(stats *memStats, tokens *memTokens) *memUsers {
	return &memUsers{rows: map[uint64]model.User{}, stats: stats, tokens: tokens}
}

// Create mirrors the repository contract: the user row and its zeroed stats
// row appear together or not at all.
func (m *memUsers) Create(_ context.Context, email, passwordHash, firstName, lastName, role string) (uint64, error) {
	m.mu.Lock()
	for _, u := range m.rows {
		if u.Email == email {
			m.mu.Unlock()
			return 0, repository.ErrEmailExists
		}
	}
	m.seq++
	id := m.seq
	now := time.Now().UTC()
	m.rows[id] = model.User{
		ID: id, Email: email, PasswordHash: passwordHash,
		FirstName: firstName, LastName: lastName, Role: role,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	m.mu.Unlock()
	m.stats.seed(id)
	return id, nil
}

func (m *memUsers) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	delete(m.rows, id)
	m.mu.Unlock()
	m.stats.remove(id)
	m.tokens.removeForUser(id)
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.rows {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id uint64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	m.rows[id] = u
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id uint64, p model.ProfilePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	m.rows[id] = u
	return nil
}

func (m *memUsers) SetActive(_ context.Context, id uint64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsActive = active
	m.rows[id] = u
	return nil
}

func (m *memUsers) List(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.rows))
	for _, u := range m.rows {
		out = append(out, u)
	}
	return out, nil
}

type memTokens struct {
	mu    sync.Mutex
	seq   uint64
	clock int64
	rows  map[uint64]model.RefreshToken
}

func newMemTokens() *memTokens { return &memTokens{rows: map[uint64]model.RefreshToken{}} }

// next returns a strictly increasing timestamp.
func (m *memTokens) next() time.Time {
	m.clock++
	return time.Unix(0, m.clock*int64(time.Millisecond)).UTC()
}

func (m *memTokens) Store(_ context.Context, userID uint64, tokenHash string, exp time.Time) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.rows[m.seq] = model.RefreshToken{
		ID: m.seq, UserID: userID, TokenHash: tokenHash,
		ExpiresAt: exp, CreatedAt: m.next(),
	}
	return m.seq, nil
}

func (m *memTokens) FindByHash(_ context.Context, tokenHash string) (model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.rows {
		if t.TokenHash == tokenHash {
			return t, nil
		}
	}
	return model.RefreshToken{}, repository.ErrNotFound
}

func (m *memTokens) CountIssuedAfter(_ context.Context, userID uint64, after time.Time, excludeID uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.rows {
		if t.UserID == userID && t.ID != excludeID && t.CreatedAt.After(after) {
			n++
		}
	}
	return n, nil
}

func (m *memTokens) Rotate(_ context.Context, oldID, userID uint64, newHash string, exp time.Time) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.rows[oldID]
	if !ok || old.RevokedAt != nil {
		return 0, repository.ErrTokenRotated
	}
	now := m.next()
	old.RevokedAt = &now
	m.rows[oldID] = old
	m.seq++
	m.rows[m.seq] = model.RefreshToken{
		ID: m.seq, UserID: userID, TokenHash: newHash,
		ExpiresAt: exp, CreatedAt: m.next(),
	}
	return m.seq, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.rows {
		if t.TokenHash == tokenHash && t.RevokedAt == nil {
			now := m.next()
			t.RevokedAt = &now
			m.rows[id] = t
		}
	}
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.rows {
		if t.UserID == userID && t.RevokedAt == nil {
			now := m.next()
			t.RevokedAt = &now
			m.rows[id] = t
		}
	}
	return nil
}

func (m *memTokens) removeForUser(userID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.rows {
		if t.UserID == userID {
			delete(m.rows, id)
		}
	}
}

// activeCount reports how many unrevoked tokens a user still holds.
func (m *memTokens) activeCount(userID uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.rows {
		if t.UserID == userID && t.RevokedAt == nil {
			n++
		}
	}
	return n
}

type memStats struct {
	mu   sync.Mutex
	rows map[uint64]model.UserStats
}

func newMemStats() *memStats { return &memStats{rows: map[uint64]model.UserStats{}} }

func (m *memStats) seed(userID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[userID] = model.UserStats{UserID: userID, UpdatedAt: time.Now().UTC()}
}

func (m *memStats) remove(userID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, userID)
}

func (m *memStats) GetByUser(_ context.Context, userID uint64) (model.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[userID]
	if !ok {
		return model.UserStats{}, repository.ErrNotFound
	}
	return s, nil
}

type memEvents struct {
	mu     sync.Mutex
	events []queue.Event
}

func (m *memEvents) Publish(_ context.Context, e queue.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// lastOfType returns the most recent event of the given type, if any.
func (m *memEvents) lastOfType(eventType string) (queue.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Type == eventType {
			return m.events[i], true
		}
	}
	return queue.Event{}, false
}
