package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/org/stockdesk/pkg/models"
)

// MemoryBackend is a Backend kept in process memory. It is used by tests
// and by the development server when no database is configured. Values are
// copied in and out so callers never share state with the store.
type MemoryBackend struct {
	mu      sync.RWMutex
	users   map[string]*models.User
	tokens  map[string]*models.AccessToken
	events  []*models.CreditEvent
	sites   map[string]*models.Site
	plans   map[string]*models.PricingPlan
	tasks   map[string]*models.DownloadTask
	audit   []*models.AuditEntry
	auditID int64
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		users:  map[string]*models.User{},
		tokens: map[string]*models.AccessToken{},
		sites:  map[string]*models.Site{},
		plans:  map[string]*models.PricingPlan{},
		tasks:  map[string]*models.DownloadTask{},
	}
}

func copyOf[T any](v *T) *T {
	c := *v
	return &c
}

// --- Users ---

func (m *MemoryBackend) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return ErrAlreadyExists
	}
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrAlreadyExists
		}
	}
	m.users[u.ID] = copyOf(u)
	return nil
}

func (m *MemoryBackend) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		return copyOf(u), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryBackend) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return copyOf(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryBackend) ListUsers(ctx context.Context) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, copyOf(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryBackend) SetUserCredits(ctx context.Context, id string, credits int, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Credits = credits
	u.ExpiresAt = expiresAt
	return nil
}

func (m *MemoryBackend) AdjustCredits(ctx context.Context, id string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	if u.Credits+delta < 0 {
		return u.Credits, ErrInsufficientCredits
	}
	u.Credits += delta
	return u.Credits, nil
}

// --- Access tokens ---

func (m *MemoryBackend) WriteAccessToken(ctx context.Context, t *models.AccessToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.Hash] = copyOf(t)
	return nil
}

func (m *MemoryBackend) GetAccessToken(ctx context.Context, hash string) (*models.AccessToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tokens[hash]; ok {
		return copyOf(t), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryBackend) RevokeAccessToken(ctx context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok {
		return ErrNotFound
	}
	if t.RevokedAt == nil {
		now := time.Now().UTC()
		t.RevokedAt = &now
	}
	return nil
}

// --- Credit history ---

func (m *MemoryBackend) WriteCreditEvent(ctx context.Context, e *models.CreditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, copyOf(e))
	return nil
}

func (m *MemoryBackend) ListCreditEvents(ctx context.Context, userID string) ([]*models.CreditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.CreditEvent
	for i := len(m.events) - 1; i >= 0; i-- {
		if userID == "" || m.events[i].UserID == userID {
			out = append(out, copyOf(m.events[i]))
		}
	}
	return out, nil
}

// --- Sites ---

func (m *MemoryBackend) WriteSite(ctx context.Context, s *models.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites[s.ID] = copyOf(s)
	return nil
}

func (m *MemoryBackend) GetSite(ctx context.Context, id string) (*models.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sites[id]; ok {
		return copyOf(s), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryBackend) DeleteSite(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[id]; !ok {
		return ErrNotFound
	}
	delete(m.sites, id)
	return nil
}

func (m *MemoryBackend) ListSites(ctx context.Context) ([]*models.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Site, 0, len(m.sites))
	for _, s := range m.sites {
		out = append(out, copyOf(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- Pricing ---

func (m *MemoryBackend) WritePlan(ctx context.Context, p *models.PricingPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = copyOf(p)
	return nil
}

func (m *MemoryBackend) GetPlan(ctx context.Context, id string) (*models.PricingPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.plans[id]; ok {
		return copyOf(p), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryBackend) DeletePlan(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[id]; !ok {
		return ErrNotFound
	}
	delete(m.plans, id)
	return nil
}

func (m *MemoryBackend) ListPlans(ctx context.Context) ([]*models.PricingPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.PricingPlan, 0, len(m.plans))
	for _, p := range m.plans {
		out = append(out, copyOf(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

// --- Download tasks ---

func (m *MemoryBackend) CreateTask(ctx context.Context, t *models.DownloadTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; ok {
		return ErrAlreadyExists
	}
	m.tasks[t.ID] = copyOf(t)
	return nil
}

func (m *MemoryBackend) GetTask(ctx context.Context, id string) (*models.DownloadTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tasks[id]; ok {
		return copyOf(t), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryBackend) UpdateTask(ctx context.Context, t *models.DownloadTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	m.tasks[t.ID] = copyOf(t)
	return nil
}

func (m *MemoryBackend) ListTasks(ctx context.Context, userID string) ([]*models.DownloadTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.DownloadTask
	for _, t := range m.tasks {
		if t.UserID == userID {
			out = append(out, copyOf(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryBackend) ListTasksByStatus(ctx context.Context, status models.TaskStatus, limit int) ([]*models.DownloadTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.DownloadTask
	for _, t := range m.tasks {
		if t.Status == status {
			out = append(out, copyOf(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Audit ---

func (m *MemoryBackend) WriteAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditID++
	e.ID = m.auditID
	m.audit = append(m.audit, copyOf(e))
	return nil
}

// AuditEntries returns a copy of the audit log.
func (m *MemoryBackend) AuditEntries() []models.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.AuditEntry, len(m.audit))
	for i, e := range m.audit {
		out[i] = *e
	}
	return out
}

func (m *MemoryBackend) Close() {}
