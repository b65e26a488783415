package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records in a local SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

func NewSQLiteStore(ctx context.Context, path, table string) (*SQLiteStore, error) {
	table, err := safeTableName(table)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`, table)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db, table: table}, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, title, content FROM %s ORDER BY id DESC`, s.table))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var items []Record
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
	if items == nil {
		items = []Record{}
	}
	return items, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, title, content string) (Record, error) {
	title, content, err := NewRecord(title, content)
	if err != nil {
		return Record{}, err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (title, content) VALUES (?, ?)`, s.table), title, content)
	if err != nil {
		return Record{}, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Record{}, fmt.Errorf("insert document id: %w", err)
	}
	return Record{ID: id, Title: title, Content: content}, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id int64, content string) (Record, error) {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET content=? WHERE id=?`, s.table), content, id)
	if err != nil {
		return Record{}, fmt.Errorf("update document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Record{}, ErrNotFound
	}
	var r Record
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT id, title, content FROM %s WHERE id=?`, s.table), id).
		Scan(&r.ID, &r.Title, &r.Content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("reload document: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=?`, s.table), id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
