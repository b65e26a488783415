package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryProvider keeps users and sessions in process. Sessions expire after a
// period of inactivity.
type MemoryProvider struct {
	mu                sync.RWMutex
	users             map[string]*memoryUser
	sessions          map[string]*memorySession
	inactivityTimeout time.Duration
	resets            []string
	now               func() time.Time
}

type memoryUser struct {
	id       string
	email    string
	password string
}

type memorySession struct {
	token          string
	userEmail      string
	lastActivityAt time.Time
}

func NewMemoryProvider(inactivityTimeout time.Duration) *MemoryProvider {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 12 * time.Hour
	}
	return &MemoryProvider{
		users:             make(map[string]*memoryUser),
		sessions:          make(map[string]*memorySession),
		inactivityTimeout: inactivityTimeout,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// AddUser registers or replaces a user.
func (p *MemoryProvider) AddUser(email, password string) {
	email = normalizeEmail(email)
	p.mu.Lock()
	defer p.mu.Unlock()
	if u, ok := p.users[email]; ok {
		u.password = password
		return
	}
	p.users[email] = &memoryUser{id: uuid.NewString(), email: email, password: password}
}

// SeedUsers parses "email:password,email:password".
func (p *MemoryProvider) SeedUsers(list string) error {
	for _, pair := range strings.Split(list, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		email, password, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(email) == "" || password == "" {
			return fmt.Errorf("invalid AUTH_USERS entry %q (expected email:password)", pair)
		}
		p.AddUser(email, password)
	}
	return nil
}

func (p *MemoryProvider) GetSession(_ context.Context, token string) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[token]
	if !ok || token == "" {
		return Session{}, ErrNoSession
	}
	now := p.now()
	if now.Sub(s.lastActivityAt) >= p.inactivityTimeout {
		delete(p.sessions, token)
		return Session{}, ErrNoSession
	}
	s.lastActivityAt = now
	return p.sessionView(s), nil
}

func (p *MemoryProvider) SignInWithPassword(_ context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[email]
	if !ok || u.password != password {
		return Session{}, ErrInvalidCredentials
	}
	s := &memorySession{
		token:          uuid.NewString(),
		userEmail:      email,
		lastActivityAt: p.now(),
	}
	p.sessions[s.token] = s
	return p.sessionView(s), nil
}

func (p *MemoryProvider) SignOut(_ context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, token)
	return nil
}

// ResetPasswordForEmail succeeds for unknown addresses too so callers cannot
// probe which accounts exist.
func (p *MemoryProvider) ResetPasswordForEmail(_ context.Context, email, _ string) error {
	email = normalizeEmail(email)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.users[email]; ok {
		p.resets = append(p.resets, email)
	}
	return nil
}

func (p *MemoryProvider) UpdateUser(_ context.Context, token, password string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[token]
	if !ok {
		return ErrNoSession
	}
	p.users[s.userEmail].password = password
	return nil
}

// ResetRequests returns the addresses a recovery was requested for.
func (p *MemoryProvider) ResetRequests() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.resets...)
}

func (p *MemoryProvider) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.expireInactive()
			}
		}
	}()
}

func (p *MemoryProvider) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

func (p *MemoryProvider) expireInactive() {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for token, s := range p.sessions {
		if now.Sub(s.lastActivityAt) >= p.inactivityTimeout {
			delete(p.sessions, token)
		}
	}
}

func (p *MemoryProvider) sessionView(s *memorySession) Session {
	u := p.users[s.userEmail]
	return Session{
		AccessToken: s.token,
		User:        User{ID: u.id, Email: u.email},
		ExpiresAt:   s.lastActivityAt.Add(p.inactivityTimeout),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
