package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ent0n29/katibim/internal/redact"
)

// CookieName holds the access token for browser requests.
const CookieName = "sb-access-token"

// LoginPath is where unauthenticated page requests are sent.
const LoginPath = "/ui/login.html"

type sessionKey struct{}

// WithSession stores the resolved session on a context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by the guard.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// TokenFromRequest reads a bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// Guard checks each request for an active session. A failed check is never
// retried.
type Guard struct {
	Provider Provider
	Logger   *slog.Logger
}

func (g Guard) resolve(r *http.Request) (Session, bool) {
	s, err := g.Provider.GetSession(r.Context(), TokenFromRequest(r))
	if err != nil {
		if !errors.Is(err, ErrNoSession) && g.Logger != nil {
			g.Logger.Warn("session check failed", slog.String("error", redact.Text(err.Error())))
		}
		return Session{}, false
	}
	return s, true
}

// Pages redirects to the login page when there is no session.
func (g Guard) Pages(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := g.resolve(r)
		if !ok {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// API answers 401 when there is no session.
func (g Guard) API(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := g.resolve(r)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "authentication required",
				"code":  "unauthenticated",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}
