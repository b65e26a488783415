package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryProviderSignInGetSignOut(t *testing.T) {
	p := NewMemoryProvider(time.Hour)
	if err := p.SeedUsers("Ayse@Example.com:secret1, bob@example.com:hunter22"); err != nil {
		t.Fatalf("SeedUsers() error = %v", err)
	}
	ctx := context.Background()

	if _, err := p.SignInWithPassword(ctx, "ayse@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("SignIn(wrong) error = %v, want ErrInvalidCredentials", err)
	}
	s, err := p.SignInWithPassword(ctx, " AYSE@example.com ", "secret1")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if s.AccessToken == "" || s.User.Email != "ayse@example.com" {
		t.Fatalf("session = %+v", s)
	}

	got, err := p.GetSession(ctx, s.AccessToken)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.User.Email != "ayse@example.com" {
		t.Fatalf("GetSession().User.Email = %q", got.User.Email)
	}

	if err := p.SignOut(ctx, s.AccessToken); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if _, err := p.GetSession(ctx, s.AccessToken); !errors.Is(err, ErrNoSession) {
		t.Fatalf("GetSession() after sign out error = %v, want ErrNoSession", err)
	}
}

func TestMemoryProviderExpiresInactiveSessions(t *testing.T) {
	p := NewMemoryProvider(time.Minute)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	p.AddUser("u@example.com", "secret1")

	s, err := p.SignInWithPassword(context.Background(), "u@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	now = now.Add(30 * time.Second)
	if _, err := p.GetSession(context.Background(), s.AccessToken); err != nil {
		t.Fatalf("GetSession() within ttl error = %v", err)
	}
	now = now.Add(2 * time.Minute)
	p.expireInactive()
	if p.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", p.ActiveCount())
	}
}

func TestMemoryProviderUpdateAndReset(t *testing.T) {
	p := NewMemoryProvider(time.Hour)
	p.AddUser("u@example.com", "secret1")
	ctx := context.Background()
	s, _ := p.SignInWithPassword(ctx, "u@example.com", "secret1")

	if err := p.UpdateUser(ctx, s.AccessToken, "newpass"); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if _, err := p.SignInWithPassword(ctx, "u@example.com", "newpass"); err != nil {
		t.Fatalf("SignIn(new password) error = %v", err)
	}
	if err := p.UpdateUser(ctx, "bogus", "x"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("UpdateUser(bogus) error = %v, want ErrNoSession", err)
	}

	if err := p.ResetPasswordForEmail(ctx, "nobody@example.com", ""); err != nil {
		t.Fatalf("Reset(unknown) error = %v", err)
	}
	if err := p.ResetPasswordForEmail(ctx, "U@example.com", ResetRedirectPath); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if got := p.ResetRequests(); len(got) != 1 || got[0] != "u@example.com" {
		t.Fatalf("ResetRequests() = %v", got)
	}
}

func TestSeedUsersRejectsMalformed(t *testing.T) {
	p := NewMemoryProvider(time.Hour)
	if err := p.SeedUsers("no-colon"); err == nil {
		t.Fatalf("SeedUsers() error = nil, want malformed entry error")
	}
}

func TestValidateNewPassword(t *testing.T) {
	cases := []struct {
		password, confirm string
		want              error
	}{
		{"secret1", "secret1", nil},
		{"secret1", "secret2", ErrPasswordMismatch},
		{"abc", "abc", ErrPasswordTooShort},
		{"şifre1", "şifre1", nil},
	}
	for _, tc := range cases {
		if got := ValidateNewPassword(tc.password, tc.confirm); !errors.Is(got, tc.want) {
			t.Fatalf("ValidateNewPassword(%q,%q) = %v, want %v", tc.password, tc.confirm, got, tc.want)
		}
	}
}
