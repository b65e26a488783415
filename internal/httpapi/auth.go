package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/katibim/internal/auth"
	"github.com/ent0n29/katibim/internal/redact"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type passwordUpdateRequest struct {
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

type passwordUpdateResponse struct {
	Status          string `json:"status"`
	RedirectTo      string `json:"redirect_to"`
	RedirectAfterMS int64  `json:"redirect_after_ms"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	sess, err := s.auth.SignInWithPassword(r.Context(), email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
			return
		}
		s.logger.Warn("sign in failed",
			slog.String("email", redact.Email(email)),
			slog.String("error", redact.Text(err.Error())),
		)
		respondError(w, http.StatusBadGateway, "auth_unavailable", "sign in failed")
		return
	}
	setSessionCookie(w, r, sess)
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if token != "" {
		if err := s.auth.SignOut(r.Context(), token); err != nil && !errors.Is(err, auth.ErrNoSession) {
			s.logger.Warn("sign out failed", slog.String("error", redact.Text(err.Error())))
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]string{"status": "signed_out", "redirect_to": auth.LoginPath})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user":       sess.User,
		"expires_at": sess.ExpiresAt,
	})
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}
	email := strings.TrimSpace(req.Email)
	if err := s.auth.ResetPasswordForEmail(r.Context(), email, absoluteURL(r, auth.ResetRedirectPath)); err != nil {
		s.logger.Warn("password reset request failed",
			slog.String("email", redact.Email(email)),
			slog.String("error", redact.Text(err.Error())),
		)
		respondError(w, http.StatusBadGateway, "auth_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (s *Server) handlePasswordUpdate(w http.ResponseWriter, r *http.Request) {
	var req passwordUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "password and confirm are required")
		return
	}
	if err := auth.ValidateNewPassword(req.Password, req.Confirm); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_password", err.Error())
		return
	}
	sess, _ := auth.FromContext(r.Context())
	if err := s.auth.UpdateUser(r.Context(), sess.AccessToken, req.Password); err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
			return
		}
		s.logger.Warn("password update failed", slog.String("error", redact.Text(err.Error())))
		respondError(w, http.StatusBadGateway, "auth_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, passwordUpdateResponse{
		Status:          "updated",
		RedirectTo:      auth.LoginPath,
		RedirectAfterMS: millis(auth.PasswordRedirectDelay),
	})
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, sess auth.Session) {
	c := &http.Cookie{
		Name:     auth.CookieName,
		Value:    sess.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if !sess.ExpiresAt.IsZero() {
		c.Expires = sess.ExpiresAt
		c.MaxAge = int(time.Until(sess.ExpiresAt).Seconds())
	}
	http.SetCookie(w, c)
}

func absoluteURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + path
}
