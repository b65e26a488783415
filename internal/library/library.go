// Package library is the list/detail view model over the document store: a
// sorted, filterable cache with optimistic edits, per-entry AI cleanup and
// clipboard confirmation.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ent0n29/katibim/internal/documents"
	"github.com/ent0n29/katibim/internal/export"
)

// CopiedResetAfter is how long a copy confirmation stays visible.
const CopiedResetAfter = 2 * time.Second

var ErrUnknownRecord = errors.New("record is not in the list")

type Store interface {
	List(ctx context.Context) ([]documents.Record, error)
	Insert(ctx context.Context, title, content string) (documents.Record, error)
	Update(ctx context.Context, id int64, content string) (documents.Record, error)
	Delete(ctx context.Context, id int64) error
}

type Cleaner interface {
	Clean(ctx context.Context, text string) (string, error)
}

type Clipboard interface {
	WriteAll(text string) error
}

type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type Options struct {
	Cleaner   Cleaner
	Clipboard Clipboard
	Clock     Clock
	Logger    *slog.Logger
	Export    export.Options
}

// Library caches the remote records. All methods are safe for concurrent use.
type Library struct {
	store     Store
	cleaner   Cleaner
	clipboard Clipboard
	clock     Clock
	logger    *slog.Logger
	exportOpt export.Options

	mu         sync.Mutex
	records    []documents.Record
	filter     string
	openID     int64
	lastError  string
	issuedSeq  uint64
	appliedSeq uint64

	inFlight map[int64]bool

	copiedID  int64
	copyGen   uint64
	copyTimer Timer
}

func New(store Store, opts Options) *Library {
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Library{
		store:     store,
		cleaner:   opts.Cleaner,
		clipboard: opts.Clipboard,
		clock:     opts.Clock,
		logger:    opts.Logger,
		exportOpt: opts.Export,
		records:   []documents.Record{},
		inFlight:  make(map[int64]bool),
	}
}

// Refresh reloads the list. A response is dropped when a newer one has
// already been applied. On error the cache is left unchanged.
func (l *Library) Refresh(ctx context.Context) error {
	l.mu.Lock()
	l.issuedSeq++
	seq := l.issuedSeq
	l.mu.Unlock()

	list, err := l.store.List(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.logger.Error("document list failed", slog.String("error", err.Error()))
		return err
	}
	if seq < l.appliedSeq {
		l.logger.Debug("stale document list dropped", slog.Uint64("seq", seq), slog.Uint64("applied", l.appliedSeq))
		return nil
	}
	l.appliedSeq = seq
	l.records = documents.SortNewestFirst(append([]documents.Record(nil), list...))
	return nil
}

// Records returns the cached records, newest first, narrowed by the filter.
func (l *Library) Records() []documents.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return documents.FilterByTitle(l.records, l.filter)
}

func (l *Library) SetFilter(q string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filter = q
}

// Toggle opens id, or closes it when it is already open.
func (l *Library) Toggle(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.openID == id {
		l.openID = 0
		return
	}
	l.openID = id
}

func (l *Library) OpenID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.openID
}

// LastError is the message of the last failed user-visible mutation.
func (l *Library) LastError() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastError
}

func (l *Library) Get(id int64) (documents.Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOf(id)
	if i < 0 {
		return documents.Record{}, false
	}
	return l.records[i], true
}

// Save validates and inserts a record, then reloads the list.
func (l *Library) Save(ctx context.Context, title, content string) (documents.Record, error) {
	title, content, err := documents.NewRecord(title, content)
	if err != nil {
		l.setError(err.Error())
		return documents.Record{}, err
	}
	rec, err := l.store.Insert(ctx, title, content)
	if err != nil {
		l.logger.Error("document insert failed", slog.String("error", err.Error()))
		l.setError("kayıt eklenemedi: " + err.Error())
		return documents.Record{}, err
	}
	l.setError("")
	if err := l.Refresh(ctx); err != nil {
		l.mu.Lock()
		l.records = documents.SortNewestFirst(append(l.records, rec))
		l.mu.Unlock()
	}
	return rec, nil
}

// Delete removes id locally only after the store confirms.
func (l *Library) Delete(ctx context.Context, id int64) error {
	if err := l.store.Delete(ctx, id); err != nil {
		l.logger.Error("document delete failed", slog.Int64("id", id), slog.String("error", err.Error()))
		l.setError("kayıt silinemedi: " + err.Error())
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexOf(id); i >= 0 {
		l.records = append(l.records[:i], l.records[i+1:]...)
	}
	if l.openID == id {
		l.openID = 0
	}
	l.lastError = ""
	return nil
}

// Transact applies mutate to the cached record immediately, then runs commit.
// If commit fails the cached record is restored to its snapshot.
func (l *Library) Transact(ctx context.Context, id int64, mutate func(documents.Record) documents.Record, commit func(context.Context, documents.Record) error) error {
	l.mu.Lock()
	i := l.indexOf(id)
	if i < 0 {
		l.mu.Unlock()
		return ErrUnknownRecord
	}
	snapshot := l.records[i]
	next := mutate(snapshot)
	next.ID = id
	l.records[i] = next
	l.mu.Unlock()

	if err := commit(ctx, next); err != nil {
		l.mu.Lock()
		if j := l.indexOf(id); j >= 0 {
			l.records[j] = snapshot
		}
		l.mu.Unlock()
		return err
	}
	return nil
}

// Update optimistically replaces the content of id.
func (l *Library) Update(ctx context.Context, id int64, content string) error {
	err := l.Transact(ctx, id,
		func(r documents.Record) documents.Record {
			r.Content = content
			return r
		},
		func(ctx context.Context, r documents.Record) error {
			_, err := l.store.Update(ctx, r.ID, r.Content)
			return err
		},
	)
	if err != nil {
		l.logger.Error("document update failed", slog.Int64("id", id), slog.String("error", err.Error()))
		l.setError("güncelleme başarısız: " + err.Error())
		return err
	}
	l.setError("")
	return nil
}

// Clean sends the entry's content through the cleaner and saves the result.
// It returns false without doing anything while a cleanup of the same entry
// is still running.
func (l *Library) Clean(ctx context.Context, id int64) (bool, error) {
	if l.cleaner == nil {
		return false, errors.New("no cleaner configured")
	}
	l.mu.Lock()
	if l.inFlight[id] {
		l.mu.Unlock()
		return false, nil
	}
	i := l.indexOf(id)
	if i < 0 {
		l.mu.Unlock()
		return false, ErrUnknownRecord
	}
	text := l.records[i].Content
	l.inFlight[id] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.inFlight, id)
		l.mu.Unlock()
	}()

	out, err := l.cleaner.Clean(ctx, text)
	if err != nil {
		l.logger.Error("ai cleanup failed", slog.Int64("id", id), slog.String("error", err.Error()))
		return true, err
	}
	return true, l.Update(ctx, id, out)
}

// Cleaning reports whether a cleanup of id is in flight.
func (l *Library) Cleaning(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight[id]
}

// Copy writes the entry's content to the clipboard and marks it copied for
// CopiedResetAfter. Copying another entry replaces the mark and its timer.
func (l *Library) Copy(id int64) error {
	rec, ok := l.Get(id)
	if !ok {
		return ErrUnknownRecord
	}
	if l.clipboard == nil {
		return errors.New("no clipboard available")
	}
	if err := l.clipboard.WriteAll(rec.Content); err != nil {
		l.logger.Error("clipboard copy failed", slog.String("error", err.Error()))
		return fmt.Errorf("copy to clipboard: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.copyTimer != nil {
		l.copyTimer.Stop()
	}
	l.copyGen++
	gen := l.copyGen
	l.copiedID = id
	l.copyTimer = l.clock.AfterFunc(CopiedResetAfter, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.copyGen == gen {
			l.copiedID = 0
			l.copyTimer = nil
		}
	})
	return nil
}

// CopiedID is the entry showing a copy confirmation, or 0.
func (l *Library) CopiedID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.copiedID
}

// Export renders the entry as a PDF.
func (l *Library) Export(id int64, w io.Writer) error {
	rec, ok := l.Get(id)
	if !ok {
		return ErrUnknownRecord
	}
	return export.WritePDF(w, rec.Title, rec.Content, l.exportOpt)
}

// Close stops the pending copy timer.
func (l *Library) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.copyTimer != nil {
		l.copyTimer.Stop()
		l.copyTimer = nil
	}
}

func (l *Library) setError(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastError = msg
}

func (l *Library) indexOf(id int64) int {
	for i, r := range l.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}
