package documents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrInvalidRecord = errors.New("title and content are required")
)

// Record is a persisted dictation document.
type Record struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Store is a single remote table of records. Implementations must be safe for
// concurrent use.
type Store interface {
	List(ctx context.Context) ([]Record, error)
	Insert(ctx context.Context, title, content string) (Record, error)
	Update(ctx context.Context, id int64, content string) (Record, error)
	// Delete is idempotent: removing an id that does not exist succeeds.
	Delete(ctx context.Context, id int64) error
	Close() error
}

// StoreError describes a failed call against a remote store.
type StoreError struct {
	Op        string
	Status    int
	Message   string
	Retryable bool
}

func (e *StoreError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// NewRecord trims and validates an insert payload.
func NewRecord(title, content string) (string, string, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return "", "", ErrInvalidRecord
	}
	return title, content, nil
}

// SortNewestFirst orders records by descending id in place and returns them.
func SortNewestFirst(records []Record) []Record {
	sort.SliceStable(records, func(i, j int) bool { return records[i].ID > records[j].ID })
	return records
}

// FilterByTitle returns the records whose title contains query, ignoring case
// with Turkish rules (I/ı, İ/i), as the browser list does. An empty query
// returns every record. The input order is kept.
func FilterByTitle(records []Record, query string) []Record {
	query = foldTitle(strings.TrimSpace(query))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if query == "" || strings.Contains(foldTitle(r.Title), query) {
			out = append(out, r)
		}
	}
	return out
}

func foldTitle(s string) string {
	return strings.ToLowerSpecial(unicode.TurkishCase, s)
}

type accessTokenKey struct{}

// WithAccessToken attaches the caller's auth token so row-level-security
// backends can act on the user's behalf.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

func accessTokenFrom(ctx context.Context) string {
	v, _ := ctx.Value(accessTokenKey{}).(string)
	return v
}
