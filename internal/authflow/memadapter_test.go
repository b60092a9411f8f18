package authflow

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"siakad/internal/auth"
)

// memAdapter is an in-memory auth.Adapter.
type memAdapter struct {
	mu       sync.Mutex
	users    map[string]*auth.User
	accounts map[string]auth.Account
	sessions map[string]auth.StoredSession
	tokens   map[string]auth.VerificationToken
	failGet  error
}

func newMemAdapter() *memAdapter {
	return &memAdapter{
		users:    map[string]*auth.User{},
		accounts: map[string]auth.Account{},
		sessions: map[string]auth.StoredSession{},
		tokens:   map[string]auth.VerificationToken{},
	}
}

func accountKey(provider, id string) string { return provider + "/" + id }

func clone(u *auth.User) *auth.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func (m *memAdapter) CreateUser(ctx context.Context, u auth.User) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = auth.RoleMahasiswa
	}
	m.users[u.ID] = &u
	return clone(&u), nil
}

func (m *memAdapter) GetUser(ctx context.Context, id string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	return clone(m.users[id]), nil
}

func (m *memAdapter) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	for _, u := range m.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, nil
}

func (m *memAdapter) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountKey(provider, providerAccountID)]
	if !ok {
		return nil, nil
	}
	return clone(m.users[a.UserID]), nil
}

func (m *memAdapter) UpdateUser(ctx context.Context, u auth.User) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[u.ID]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	u.Role = existing.Role
	m.users[u.ID] = &u
	return clone(&u), nil
}

func (m *memAdapter) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *memAdapter) LinkAccount(ctx context.Context, a auth.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[accountKey(a.Provider, a.ProviderAccountID)] = a
	return nil
}

func (m *memAdapter) UnlinkAccount(ctx context.Context, provider, providerAccountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, accountKey(provider, providerAccountID))
	return nil
}

func (m *memAdapter) CreateSession(ctx context.Context, s auth.StoredSession) (*auth.StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionToken] = s
	return &s, nil
}

func (m *memAdapter) GetSessionAndUser(ctx context.Context, token string) (*auth.StoredSession, *auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, nil, nil
	}
	u, ok := m.users[s.UserID]
	if !ok {
		return nil, nil, nil
	}
	return &s, clone(u), nil
}

func (m *memAdapter) UpdateSession(ctx context.Context, s auth.StoredSession) (*auth.StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.SessionToken]; !ok {
		return nil, nil
	}
	m.sessions[s.SessionToken] = s
	return &s, nil
}

func (m *memAdapter) DeleteSession(ctx context.Context, token string) (*auth.StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, nil
	}
	delete(m.sessions, token)
	return &s, nil
}

func (m *memAdapter) CreateVerificationToken(ctx context.Context, t auth.VerificationToken) (*auth.VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.Identifier+"/"+t.Token] = t
	return &t, nil
}

func (m *memAdapter) UseVerificationToken(ctx context.Context, identifier, token string) (*auth.VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[identifier+"/"+token]
	if !ok {
		return nil, nil
	}
	delete(m.tokens, identifier+"/"+token)
	return &t, nil
}

func (m *memAdapter) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
