// Package bus publishes change notifications over NATS.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ent0n29/katibim/internal/documents"
)

// Client wraps a NATS connection with subject helpers.
type Client struct {
	conn   *nats.Conn
	prefix string
	log    *slog.Logger
}

// Options configures the connection.
type Options struct {
	URL            string
	SubjectPrefix  string
	ConnectTimeout time.Duration
}

func Connect(opts Options, log *slog.Logger) (*Client, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil, errors.New("no NATS url configured")
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	prefix := strings.Trim(strings.TrimSpace(opts.SubjectPrefix), ".")
	if prefix == "" {
		prefix = "katibim"
	}

	conn, err := nats.Connect(url,
		nats.Name("katibim"),
		nats.Timeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	log.Info("connected to NATS", slog.String("servers", url))

	return &Client{conn: conn, prefix: prefix, log: log}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.log.Info("closing NATS connection")
	_ = c.conn.Drain()
	c.conn.Close()
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

// PublishDocumentChange sends the change as JSON on <prefix>.documents.<kind>.
func (c *Client) PublishDocumentChange(_ context.Context, change documents.Change) error {
	return c.publishJSON(DocumentSubject(c.prefix, change.Kind), change)
}

// DictationEvent is a session lifecycle notification.
type DictationEvent struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	State     string    `json:"state"`
	At        time.Time `json:"at"`
}

// PublishDictationEvent sends the event on <prefix>.dictation.<state>.
func (c *Client) PublishDictationEvent(_ context.Context, ev DictationEvent) error {
	return c.publishJSON(DictationSubject(c.prefix, ev.State), ev)
}

func (c *Client) publishJSON(subject string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	if err := c.conn.Publish(subject, raw); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func DocumentSubject(prefix, kind string) string {
	return prefix + ".documents." + token(kind)
}

func DictationSubject(prefix, state string) string {
	return prefix + ".dictation." + token(state)
}

// token keeps a subject segment free of NATS wildcards and separators.
func token(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ':
			return '_'
		}
		return r
	}, s)
}
