package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists records in a PostgreSQL table.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresStore(ctx context.Context, databaseURL, table string) (*PostgresStore, error) {
	table, err := safeTableName(table)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initPostgresSchema(ctx, pool, table); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, table: table}, nil
}

func initPostgresSchema(ctx context.Context, pool *pgxpool.Pool, table string) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`, table),
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id, title, content FROM %s ORDER BY id DESC`, s.table))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Record, 0, 16)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Title, &r.Content); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Insert(ctx context.Context, title, content string) (Record, error) {
	title, content, err := NewRecord(title, content)
	if err != nil {
		return Record{}, err
	}
	r := Record{Title: title, Content: content}
	err = s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (title, content) VALUES ($1, $2) RETURNING id`, s.table),
		title, content,
	).Scan(&r.ID)
	if err != nil {
		return Record{}, fmt.Errorf("insert document: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Update(ctx context.Context, id int64, content string) (Record, error) {
	var r Record
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`UPDATE %s SET content=$1 WHERE id=$2 RETURNING id, title, content`, s.table),
		content, id,
	).Scan(&r.ID, &r.Title, &r.Content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("update document: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, s.table), id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// safeTableName allows only identifiers that can be interpolated into SQL.
func safeTableName(table string) (string, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return "", errors.New("table name is required")
	}
	for i, c := range table {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return "", fmt.Errorf("invalid table name %q", table)
		}
	}
	return table, nil
}
