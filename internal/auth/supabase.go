package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ent0n29/katibim/internal/reliability"
)

// SupabaseProvider talks to a Supabase project's GoTrue endpoints.
type SupabaseProvider struct {
	baseURL string
	anonKey string
	client  *http.Client
	now     func() time.Time
}

func NewSupabaseProvider(projectURL, anonKey string, client *http.Client) (*SupabaseProvider, error) {
	projectURL = strings.TrimRight(strings.TrimSpace(projectURL), "/")
	if projectURL == "" || strings.TrimSpace(anonKey) == "" {
		return nil, fmt.Errorf("supabase url and anon key are required")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &SupabaseProvider{
		baseURL: projectURL + "/auth/v1",
		anonKey: strings.TrimSpace(anonKey),
		client:  client,
		now:     time.Now,
	}, nil
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type gotrueToken struct {
	AccessToken string     `json:"access_token"`
	ExpiresIn   int64      `json:"expires_in"`
	ExpiresAt   int64      `json:"expires_at"`
	User        gotrueUser `json:"user"`
}

func (p *SupabaseProvider) GetSession(ctx context.Context, token string) (Session, error) {
	if strings.TrimSpace(token) == "" {
		return Session{}, ErrNoSession
	}
	var u gotrueUser
	status, err := p.do(ctx, "get user", http.MethodGet, "/user", token, nil, &u)
	if err != nil {
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return Session{}, ErrNoSession
		}
		return Session{}, err
	}
	return Session{AccessToken: token, User: User{ID: u.ID, Email: u.Email}}, nil
}

func (p *SupabaseProvider) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	var tok gotrueToken
	body := map[string]string{"email": strings.TrimSpace(email), "password": password}
	status, err := p.do(ctx, "sign in", http.MethodPost, "/token?grant_type=password", "", body, &tok)
	if err != nil {
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	s := Session{
		AccessToken: tok.AccessToken,
		User:        User{ID: tok.User.ID, Email: tok.User.Email},
	}
	switch {
	case tok.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tok.ExpiresAt, 0).UTC()
	case tok.ExpiresIn > 0:
		s.ExpiresAt = p.now().Add(time.Duration(tok.ExpiresIn) * time.Second).UTC()
	}
	return s, nil
}

func (p *SupabaseProvider) SignOut(ctx context.Context, token string) error {
	status, err := p.do(ctx, "sign out", http.MethodPost, "/logout", token, nil, nil)
	if status == http.StatusUnauthorized {
		return nil
	}
	return err
}

func (p *SupabaseProvider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	path := "/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	_, err := p.do(ctx, "reset password", http.MethodPost, path, "", map[string]string{"email": strings.TrimSpace(email)}, nil)
	return err
}

func (p *SupabaseProvider) UpdateUser(ctx context.Context, token, password string) error {
	status, err := p.do(ctx, "update user", http.MethodPut, "/user", token, map[string]string{"password": password}, nil)
	if status == http.StatusUnauthorized {
		return ErrNoSession
	}
	return err
}

type gotrueError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
}

func (e gotrueError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (p *SupabaseProvider) do(ctx context.Context, op, method, path, token string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("apikey", p.anonKey)
	if token == "" {
		token = p.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, &ProviderError{Op: op, Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ge gotrueError
		msg := ""
		if json.Unmarshal(raw, &ge) == nil {
			msg = ge.text()
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode, &ProviderError{
			Op:        op,
			Status:    resp.StatusCode,
			Message:   msg,
			Retryable: reliability.IsRetryableHTTPStatus(resp.StatusCode),
		}
	}
	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return resp.StatusCode, nil
}
