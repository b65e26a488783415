package documents

import (
	"context"
	"sync"
)

// MemoryStore is an in-process store for local/dev use and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]Record)}
}

func (s *MemoryStore) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return SortNewestFirst(out), nil
}

func (s *MemoryStore) Insert(_ context.Context, title, content string) (Record, error) {
	title, content, err := NewRecord(title, content)
	if err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r := Record{ID: s.nextID, Title: title, Content: content}
	s.records[r.ID] = r
	return r, nil
}

func (s *MemoryStore) Update(_ context.Context, id int64, content string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	r.Content = content
	s.records[id] = r
	return r, nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
