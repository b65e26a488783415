// Package client talks to a running katibim service over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ent0n29/katibim/internal/auth"
	"github.com/ent0n29/katibim/internal/documents"
)

var ErrUnauthenticated = errors.New("not signed in")

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("katibim api status %d: %s", e.Status, e.Message)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

// Client implements the library's store and cleaner over HTTP. The zero value
// is not usable; call New.
type Client struct {
	base   *url.URL
	token  string
	client *http.Client
}

func New(baseURL, token string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{base: u, token: strings.TrimSpace(token), client: httpClient}, nil
}

func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = strings.TrimSpace(token)
	return &cp
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var sess auth.Session
	err := c.do(ctx, http.MethodPost, "/v1/auth/login", map[string]string{"email": email, "password": password}, &sess)
	return sess, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/logout", nil, nil)
}

func (c *Client) Session(ctx context.Context) (auth.User, error) {
	var out struct {
		User auth.User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/auth/session", nil, &out)
	return out.User, err
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/password/reset", map[string]string{"email": email}, nil)
}

func (c *Client) UpdatePassword(ctx context.Context, password, confirm string) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/password/update", map[string]string{"password": password, "confirm": confirm}, nil)
}

func (c *Client) List(ctx context.Context) ([]documents.Record, error) {
	var out struct {
		Documents []documents.Record `json:"documents"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/documents", nil, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

func (c *Client) Insert(ctx context.Context, title, content string) (documents.Record, error) {
	var rec documents.Record
	err := c.do(ctx, http.MethodPost, "/v1/documents", map[string]string{"title": title, "content": content}, &rec)
	return rec, err
}

func (c *Client) Update(ctx context.Context, id int64, content string) (documents.Record, error) {
	var rec documents.Record
	err := c.do(ctx, http.MethodPatch, documentPath(id), map[string]string{"content": content}, &rec)
	return rec, err
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, documentPath(id), nil, nil)
}

// Clean sends text through the service's AI cleanup proxy.
func (c *Client) Clean(ctx context.Context, text string) (string, error) {
	var out struct {
		ProcessedText string `json:"processedText"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/ai/process-text", map[string]string{"text": text}, &out); err != nil {
		return "", err
	}
	return out.ProcessedText, nil
}

// DownloadPDF streams the server-rendered PDF of a document into w.
func (c *Client) DownloadPDF(ctx context.Context, id int64, w io.Writer) error {
	res, err := c.send(ctx, http.MethodGet, documentPath(id)+"/pdf", nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if _, err := io.Copy(w, res.Body); err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}
	return nil
}

func documentPath(id int64) string {
	return "/v1/documents/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	res, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send returns the response only for 2xx statuses; the caller closes it.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return res, nil
	}
	defer res.Body.Close()
	return nil, decodeError(res)
}

func decodeError(res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	var body struct {
		Error   string `json:"error"`
		Code    string `json:"code"`
		Details string `json:"details"`
	}
	apiErr := &APIError{Status: res.StatusCode}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Code, apiErr.Message, apiErr.Details = body.Code, body.Error, body.Details
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	switch res.StatusCode {
	case http.StatusUnauthorized:
		if apiErr.Code == "unauthenticated" {
			return fmt.Errorf("%w: %s", ErrUnauthenticated, apiErr.Message)
		}
		if apiErr.Code == "invalid_credentials" {
			return fmt.Errorf("%w: %s", auth.ErrInvalidCredentials, apiErr.Message)
		}
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", documents.ErrNotFound, apiErr.Message)
	}
	return apiErr
}
