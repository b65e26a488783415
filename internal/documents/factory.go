package documents

import (
	"context"
	"fmt"
	"strings"
)

// Options selects and configures a backend.
type Options struct {
	Backend         string // auto, supabase, postgres, sqlite or memory
	SupabaseURL     string
	SupabaseAnonKey string
	DatabaseURL     string
	SQLitePath      string
	Table           string
}

// NewStore builds the configured backend. "auto" prefers Supabase, then
// Postgres, then SQLite, and falls back to in-memory.
func NewStore(ctx context.Context, opts Options) (Store, string, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" || backend == "auto" {
		backend = autoBackend(opts)
	}
	table := opts.Table
	if strings.TrimSpace(table) == "" {
		table = "doc"
	}

	switch backend {
	case "supabase":
		s, err := NewSupabaseStore(opts.SupabaseURL, opts.SupabaseAnonKey, table, nil)
		return s, backend, err
	case "postgres":
		s, err := NewPostgresStore(ctx, opts.DatabaseURL, table)
		return s, backend, err
	case "sqlite":
		s, err := NewSQLiteStore(ctx, opts.SQLitePath, table)
		return s, backend, err
	case "memory":
		return NewMemoryStore(), backend, nil
	default:
		return nil, backend, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

func autoBackend(opts Options) string {
	switch {
	case strings.TrimSpace(opts.SupabaseURL) != "" && strings.TrimSpace(opts.SupabaseAnonKey) != "":
		return "supabase"
	case strings.TrimSpace(opts.DatabaseURL) != "":
		return "postgres"
	case strings.TrimSpace(opts.SQLitePath) != "":
		return "sqlite"
	default:
		return "memory"
	}
}
