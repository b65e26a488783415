package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ent0n29/katibim/internal/reliability"
)

// SupabaseStore talks to a Supabase project's PostgREST endpoint. Requests run
// with the caller's access token (see WithAccessToken) so row-level security
// applies, falling back to the anon key.
type SupabaseStore struct {
	baseURL string
	anonKey string
	table   string
	client  *http.Client
}

func NewSupabaseStore(projectURL, anonKey, table string, client *http.Client) (*SupabaseStore, error) {
	table, err := safeTableName(table)
	if err != nil {
		return nil, err
	}
	projectURL = strings.TrimRight(strings.TrimSpace(projectURL), "/")
	if projectURL == "" || strings.TrimSpace(anonKey) == "" {
		return nil, fmt.Errorf("supabase url and anon key are required")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &SupabaseStore{
		baseURL: projectURL + "/rest/v1/" + table,
		anonKey: strings.TrimSpace(anonKey),
		table:   table,
		client:  client,
	}, nil
}

func (s *SupabaseStore) List(ctx context.Context) ([]Record, error) {
	q := url.Values{}
	q.Set("select", "id,title,content")
	q.Set("order", "id.desc")
	var out []Record
	if err := s.do(ctx, "list", http.MethodGet, "?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

func (s *SupabaseStore) Insert(ctx context.Context, title, content string) (Record, error) {
	title, content, err := NewRecord(title, content)
	if err != nil {
		return Record{}, err
	}
	body := []map[string]string{{"title": title, "content": content}}
	var out []Record
	if err := s.do(ctx, "insert", http.MethodPost, "?select=id,title,content", body, &out); err != nil {
		return Record{}, err
	}
	if len(out) == 0 {
		return Record{}, &StoreError{Op: "insert", Message: "no row returned"}
	}
	return out[0], nil
}

func (s *SupabaseStore) Update(ctx context.Context, id int64, content string) (Record, error) {
	var out []Record
	path := "?id=eq." + strconv.FormatInt(id, 10) + "&select=id,title,content"
	if err := s.do(ctx, "update", http.MethodPatch, path, map[string]string{"content": content}, &out); err != nil {
		return Record{}, err
	}
	if len(out) == 0 {
		return Record{}, ErrNotFound
	}
	return out[0], nil
}

func (s *SupabaseStore) Delete(ctx context.Context, id int64) error {
	return s.do(ctx, "delete", http.MethodDelete, "?id=eq."+strconv.FormatInt(id, 10), nil, nil)
}

func (s *SupabaseStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

type postgrestError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (s *SupabaseStore) do(ctx context.Context, op, method, query string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+query, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	token := accessTokenFrom(ctx)
	if token == "" {
		token = s.anonKey
	}
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && out != nil {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &StoreError{Op: op, Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &StoreError{Op: op, Message: "read response: " + err.Error(), Retryable: true}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var pe postgrestError
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &pe) == nil && pe.Message != "" {
			msg = pe.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &StoreError{
			Op:        op,
			Status:    resp.StatusCode,
			Message:   msg,
			Retryable: reliability.IsRetryableHTTPStatus(resp.StatusCode),
		}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &StoreError{Op: op, Status: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return nil
}
