package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ent0n29/katibim/internal/logging"
)

func newGuardFixture(t *testing.T) (Guard, Session) {
	t.Helper()
	p := NewMemoryProvider(time.Hour)
	p.AddUser("u@example.com", "secret1")
	s, err := p.SignInWithPassword(context.Background(), "u@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	return Guard{Provider: p, Logger: logging.Discard()}, s
}

func echoEmail() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := FromContext(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(s.User.Email))
	})
}

func TestGuardPagesRedirectsWithoutSession(t *testing.T) {
	g, _ := newGuardFixture(t)
	rec := httptest.NewRecorder()
	g.Pages(echoEmail()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ui/docs.html", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != LoginPath {
		t.Fatalf("Location = %q, want %q", loc, LoginPath)
	}
}

func TestGuardAPIRejectsUnknownToken(t *testing.T) {
	g, _ := newGuardFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	g.API(echoEmail()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestGuardAcceptsCookieAndBearer(t *testing.T) {
	g, s := newGuardFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/ui/docs.html", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: s.AccessToken})
	rec := httptest.NewRecorder()
	g.Pages(echoEmail()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "u@example.com" {
		t.Fatalf("cookie: status=%d body=%q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	rec = httptest.NewRecorder()
	g.API(echoEmail()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "u@example.com" {
		t.Fatalf("bearer: status=%d body=%q", rec.Code, rec.Body.String())
	}
}
