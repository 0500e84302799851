package identity

import (
	"context"
	"sync"
	"time"

	"membergate/internal/domain/users"
)

// Memory is an in-process account store with the provider's update
// semantics: metadata patches merge per key and a nil value removes the key.
// Every write bumps updated_at.
type Memory struct {
	mu     sync.Mutex
	byID   map[string]users.User
	tokens map[string]string
	clock  int64
	// Writes counts successful updates.
	Writes int
}

func NewMemory() *Memory {
	return &Memory{byID: map[string]users.User{}, tokens: map[string]string{}}
}

// Put stores a copy of u and returns the stored version.
func (m *Memory) Put(u users.User) users.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = NormalizeEmail(u.Email)
	u.AppMetadata = deepCopy(u.AppMetadata)
	u.UserMetadata = deepCopy(u.UserMetadata)
	u.UpdatedAt = m.nextVersion()
	m.byID[u.ID] = u
	return u
}

// IssueToken binds an access token to an account for CurrentUser.
func (m *Memory) IssueToken(token, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = userID
}

func (m *Memory) FindByEmail(_ context.Context, email string) (*users.User, error) {
	email = NormalizeEmail(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetByID(_ context.Context, id string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *Memory) Update(_ context.Context, id string, patch Patch) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apply(id, patch)
}

func (m *Memory) UpdateIfUnchanged(_ context.Context, base users.User, patch Patch) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[base.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if cur.Version() != base.Version() {
		return nil, ErrConflict
	}
	return m.apply(base.ID, patch)
}

func (m *Memory) CurrentUser(_ context.Context, token string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokens[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *Memory) apply(id string, patch Patch) (*users.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.AppMetadata = merge(u.AppMetadata, patch.AppMetadata)
	u.UserMetadata = merge(u.UserMetadata, patch.UserMetadata)
	u.UpdatedAt = m.nextVersion()
	m.byID[id] = u
	m.Writes++
	return copyUser(u), nil
}

func (m *Memory) nextVersion() string {
	m.clock++
	return time.Unix(1_700_000_000+m.clock, 0).UTC().Format(time.RFC3339)
}

func merge(dst, patch map[string]any) map[string]any {
	out := deepCopy(dst)
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = deepCopyValue(v)
	}
	return out
}

func copyUser(u users.User) *users.User {
	u.AppMetadata = deepCopy(u.AppMetadata)
	u.UserMetadata = deepCopy(u.UserMetadata)
	return &u
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = deepCopyValue(t[i])
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	default:
		return v
	}
}
