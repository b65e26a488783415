package library

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ent0n29/katibim/internal/documents"
	"github.com/ent0n29/katibim/internal/logging"
)

type failingStore struct {
	*documents.MemoryStore
	failUpdate bool
	failDelete bool
}

func (s *failingStore) Update(ctx context.Context, id int64, content string) (documents.Record, error) {
	if s.failUpdate {
		return documents.Record{}, errors.New("network down")
	}
	return s.MemoryStore.Update(ctx, id, content)
}

func (s *failingStore) Delete(ctx context.Context, id int64) error {
	if s.failDelete {
		return errors.New("network down")
	}
	return s.MemoryStore.Delete(ctx, id)
}

type fakeTimer struct {
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(_ time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

// fireAll runs every timer that was not stopped.
func (c *fakeClock) fireAll() {
	c.mu.Lock()
	timers := append([]*fakeTimer(nil), c.timers...)
	c.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.stopped = true
			t.f()
		}
	}
}

type memClipboard struct{ text string }

func (c *memClipboard) WriteAll(text string) error {
	c.text = text
	return nil
}

func seeded(t *testing.T, store Store, opts Options) *Library {
	t.Helper()
	ctx := context.Background()
	for _, r := range []struct{ title, content string }{
		{"Note A", "hello"},
		{"Shopping", "milk"},
		{"note b", "bye"},
	} {
		if _, err := store.Insert(ctx, r.title, r.content); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	l := New(store, opts)
	if err := l.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	return l
}

func TestRecordsSortedAndFiltered(t *testing.T) {
	l := seeded(t, documents.NewMemoryStore(), Options{})

	got := l.Records()
	if len(got) != 3 || got[0].ID != 3 || got[2].ID != 1 {
		t.Fatalf("Records() = %+v, want ids 3,2,1", got)
	}
	l.SetFilter("NOTE")
	got = l.Records()
	if len(got) != 2 || got[0].Title != "note b" || got[1].Title != "Note A" {
		t.Fatalf("filtered = %+v", got)
	}
	l.SetFilter("missing")
	if got := l.Records(); len(got) != 0 {
		t.Fatalf("filtered = %+v, want empty", got)
	}
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	l := New(documents.NewMemoryStore(), Options{Logger: logging.Discard()})

	rec, err := l.Save(ctx, "Note A", "hello")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got := l.Records(); len(got) != 1 || got[0] != (documents.Record{ID: 1, Title: "Note A", Content: "hello"}) {
		t.Fatalf("Records() = %+v", got)
	}
	if err := l.Update(ctx, rec.ID, "hello world"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := l.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := l.Records(); got[0].Content != "hello world" {
		t.Fatalf("content = %q", got[0].Content)
	}
	if err := l.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := l.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := l.Records(); len(got) != 0 {
		t.Fatalf("Records() = %+v, want empty", got)
	}
}

func TestSaveRejectsBlank(t *testing.T) {
	l := New(documents.NewMemoryStore(), Options{Logger: logging.Discard()})
	if _, err := l.Save(context.Background(), "  ", "x"); !errors.Is(err, documents.ErrInvalidRecord) {
		t.Fatalf("Save() error = %v, want ErrInvalidRecord", err)
	}
	if l.LastError() == "" {
		t.Fatalf("LastError() empty after rejected save")
	}
}

func TestUpdateRollsBackOnFailure(t *testing.T) {
	store := &failingStore{MemoryStore: documents.NewMemoryStore()}
	l := seeded(t, store, Options{})
	before := l.Records()

	store.failUpdate = true
	if err := l.Update(context.Background(), 1, "changed"); err == nil {
		t.Fatalf("Update() error = nil, want failure")
	}
	after := l.Records()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("record %d = %+v, want snapshot %+v", i, after[i], before[i])
		}
	}
	if l.LastError() == "" {
		t.Fatalf("LastError() empty after failed update")
	}
}

func TestTransactShowsOptimisticValueDuringCommit(t *testing.T) {
	l := seeded(t, documents.NewMemoryStore(), Options{})
	err := l.Transact(context.Background(), 2,
		func(r documents.Record) documents.Record { r.Content = "optimistic"; return r },
		func(context.Context, documents.Record) error {
			if got, _ := l.Get(2); got.Content != "optimistic" {
				t.Errorf("during commit content = %q", got.Content)
			}
			return errors.New("rejected")
		},
	)
	if err == nil {
		t.Fatalf("Transact() error = nil")
	}
	if got, _ := l.Get(2); got.Content != "milk" {
		t.Fatalf("after rollback content = %q, want milk", got.Content)
	}
}

func TestDeleteKeepsListOnFailure(t *testing.T) {
	store := &failingStore{MemoryStore: documents.NewMemoryStore(), failDelete: true}
	l := seeded(t, store, Options{})
	if err := l.Delete(context.Background(), 2); err == nil {
		t.Fatalf("Delete() error = nil")
	}
	if len(l.Records()) != 3 {
		t.Fatalf("Records() len = %d, want 3", len(l.Records()))
	}
}

type blockingStore struct {
	*documents.MemoryStore
	calls   atomic.Int32
	release chan struct{}
	first   []documents.Record
}

// List blocks on the first call and returns a stale snapshot.
func (s *blockingStore) List(ctx context.Context) ([]documents.Record, error) {
	if s.calls.Add(1) == 1 {
		<-s.release
		return s.first, nil
	}
	return s.MemoryStore.List(ctx)
}

func TestRefreshDropsStaleResponse(t *testing.T) {
	mem := documents.NewMemoryStore()
	_, _ = mem.Insert(context.Background(), "old", "x")
	store := &blockingStore{MemoryStore: mem, release: make(chan struct{}), first: []documents.Record{}}
	l := New(store, Options{Logger: logging.Discard()})

	done := make(chan error, 1)
	go func() { done <- l.Refresh(context.Background()) }()
	for store.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if err := l.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("slow Refresh() error = %v", err)
	}
	if got := l.Records(); len(got) != 1 || got[0].Title != "old" {
		t.Fatalf("Records() = %+v, want newer response kept", got)
	}
}

type gatedCleaner struct {
	calls   atomic.Int32
	release chan struct{}
	out     string
	err     error
}

func (c *gatedCleaner) Clean(_ context.Context, text string) (string, error) {
	c.calls.Add(1)
	<-c.release
	if c.err != nil {
		return "", c.err
	}
	return c.out, nil
}

func TestCleanIgnoresSecondCallWhileInFlight(t *testing.T) {
	cleaner := &gatedCleaner{release: make(chan struct{}), out: "Hello."}
	l := seeded(t, documents.NewMemoryStore(), Options{Cleaner: cleaner})

	type result struct {
		started bool
		err     error
	}
	first := make(chan result, 1)
	go func() {
		started, err := l.Clean(context.Background(), 1)
		first <- result{started, err}
	}()
	for !l.Cleaning(1) {
		time.Sleep(time.Millisecond)
	}

	started, err := l.Clean(context.Background(), 1)
	if started || err != nil {
		t.Fatalf("second Clean() = %v, %v, want ignored", started, err)
	}
	close(cleaner.release)
	r := <-first
	if !r.started || r.err != nil {
		t.Fatalf("first Clean() = %+v", r)
	}
	if n := cleaner.calls.Load(); n != 1 {
		t.Fatalf("cleaner calls = %d, want 1", n)
	}
	if got, _ := l.Get(1); got.Content != "Hello." {
		t.Fatalf("content = %q, want cleaned", got.Content)
	}
}

func TestCleanDistinctEntriesRunConcurrently(t *testing.T) {
	cleaner := &gatedCleaner{release: make(chan struct{}), out: "x"}
	l := seeded(t, documents.NewMemoryStore(), Options{Cleaner: cleaner})

	var wg sync.WaitGroup
	for _, id := range []int64{1, 2} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _ = l.Clean(context.Background(), id)
		}(id)
	}
	for !(l.Cleaning(1) && l.Cleaning(2)) {
		time.Sleep(time.Millisecond)
	}
	close(cleaner.release)
	wg.Wait()
	if n := cleaner.calls.Load(); n != 2 {
		t.Fatalf("cleaner calls = %d, want 2", n)
	}
}

func TestCleanFailureLeavesContent(t *testing.T) {
	cleaner := &gatedCleaner{release: make(chan struct{}), err: errors.New("quota")}
	close(cleaner.release)
	l := seeded(t, documents.NewMemoryStore(), Options{Cleaner: cleaner})

	if _, err := l.Clean(context.Background(), 1); err == nil {
		t.Fatalf("Clean() error = nil")
	}
	if got, _ := l.Get(1); got.Content != "hello" {
		t.Fatalf("content = %q, want unchanged", got.Content)
	}
	if l.Cleaning(1) {
		t.Fatalf("Cleaning(1) = true after failure")
	}
}

func TestCopyConfirmationResetsAndIsPreempted(t *testing.T) {
	clock := &fakeClock{}
	clip := &memClipboard{}
	l := seeded(t, documents.NewMemoryStore(), Options{Clock: clock, Clipboard: clip})

	if err := l.Copy(1); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if clip.text != "hello" || l.CopiedID() != 1 {
		t.Fatalf("clipboard=%q copied=%d", clip.text, l.CopiedID())
	}
	clock.fireAll()
	if l.CopiedID() != 0 {
		t.Fatalf("CopiedID() = %d after timer, want 0", l.CopiedID())
	}

	_ = l.Copy(1)
	_ = l.Copy(2)
	if l.CopiedID() != 2 {
		t.Fatalf("CopiedID() = %d, want 2", l.CopiedID())
	}
	if !clock.timers[1].stopped {
		t.Fatalf("first timer should be stopped when another entry is copied")
	}
	clock.fireAll()
	if l.CopiedID() != 0 {
		t.Fatalf("CopiedID() = %d, want 0", l.CopiedID())
	}
}

func TestToggleOpensOneEntry(t *testing.T) {
	l := seeded(t, documents.NewMemoryStore(), Options{})
	l.Toggle(2)
	if l.OpenID() != 2 {
		t.Fatalf("OpenID() = %d", l.OpenID())
	}
	l.Toggle(3)
	if l.OpenID() != 3 {
		t.Fatalf("OpenID() = %d", l.OpenID())
	}
	l.Toggle(3)
	if l.OpenID() != 0 {
		t.Fatalf("OpenID() = %d, want closed", l.OpenID())
	}
}

func TestExportWritesPDF(t *testing.T) {
	l := seeded(t, documents.NewMemoryStore(), Options{})
	var buf bytes.Buffer
	if err := l.Export(1, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("Export() did not produce a PDF")
	}
	if err := l.Export(99, &buf); !errors.Is(err, ErrUnknownRecord) {
		t.Fatalf("Export(99) error = %v", err)
	}
}
