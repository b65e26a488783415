package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ent0n29/katibim/internal/auth"
	"github.com/ent0n29/katibim/internal/client"
	"github.com/ent0n29/katibim/internal/config"
	"github.com/ent0n29/katibim/internal/documents"
	"github.com/ent0n29/katibim/internal/httpapi"
	"github.com/ent0n29/katibim/internal/logging"
	"github.com/ent0n29/katibim/internal/observability"
)

type fakeClipboard struct{ text string }

func (c *fakeClipboard) WriteAll(text string) error {
	c.text = text
	return nil
}

type suffixCleaner struct{}

func (suffixCleaner) Clean(_ context.Context, text string) (string, error) {
	return text + ".", nil
}

type harness struct {
	t         *testing.T
	server    string
	dir       string
	clipboard *fakeClipboard
	store     *documents.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	provider := auth.NewMemoryProvider(time.Hour)
	provider.AddUser("yazar@example.com", "gizli-sifre")
	store := documents.NewMemoryStore()
	srv := httpapi.New(httpapi.Deps{
		Config:    config.Defaults(),
		Auth:      provider,
		AuthMode:  "memory",
		Store:     store,
		StoreMode: "memory",
		Cleaner:   suffixCleaner{},
		Metrics:   observability.NewMetricsWithRegistry("test_cli", prometheus.NewRegistry()),
		Logger:    logging.Discard(),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &harness{t: t, server: ts.URL, dir: t.TempDir(), clipboard: &fakeClipboard{}, store: store}
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	root := NewRootCmd(Env{
		In:        strings.NewReader(stdin),
		Out:       &out,
		Err:       &bytes.Buffer{},
		ConfigDir: h.dir,
		Clipboard: h.clipboard,
	})
	root.SetArgs(append([]string{"--server", h.server}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) login() {
	h.t.Helper()
	if _, err := h.run("", "login", "--email", "yazar@example.com", "--password", "gizli-sifre"); err != nil {
		h.t.Fatalf("login error = %v", err)
	}
}

func TestLoginSavesPrivateSession(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("yazar@example.com\ngizli-sifre\n", "login")
	if err != nil {
		t.Fatalf("login error = %v", err)
	}
	if !strings.Contains(out, "yazar@example.com") {
		t.Fatalf("login output = %q", out)
	}
	info, err := os.Stat(filepath.Join(h.dir, "session.json"))
	if err != nil {
		t.Fatalf("session file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("session file mode = %o, want 600", perm)
	}

	who, err := h.run("", "whoami")
	if err != nil || !strings.Contains(who, "yazar@example.com") {
		t.Fatalf("whoami = %q, %v", who, err)
	}

	if _, err := h.run("", "logout"); err != nil {
		t.Fatalf("logout error = %v", err)
	}
	if _, err := h.run("", "whoami"); !errors.Is(err, client.ErrUnauthenticated) {
		t.Fatalf("whoami after logout error = %v, want ErrUnauthenticated", err)
	}
}

func TestDocumentCommands(t *testing.T) {
	h := newHarness(t)
	h.login()

	if _, err := h.run("", "add", "--title", "Toplantı", "--content", "   "); err == nil {
		t.Fatalf("add with blank content succeeded")
	}
	if _, err := h.run("", "add", "--title", "Toplantı", "--content", "gündem maddeleri"); err != nil {
		t.Fatalf("add error = %v", err)
	}
	if _, err := h.run("stdin metni", "add", "--title", "Alışveriş", "--file", "-"); err != nil {
		t.Fatalf("add from stdin error = %v", err)
	}

	list, err := h.run("", "list", "--filter", "TOPLANT")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(list, "Toplantı") || strings.Contains(list, "Alışveriş") {
		t.Fatalf("filtered list = %q", list)
	}

	show, err := h.run("", "show", "2")
	if err != nil || !strings.Contains(show, "stdin metni") {
		t.Fatalf("show = %q, %v", show, err)
	}

	if _, err := h.run("", "copy", "1"); err != nil {
		t.Fatalf("copy error = %v", err)
	}
	if h.clipboard.text != "gündem maddeleri" {
		t.Fatalf("clipboard = %q", h.clipboard.text)
	}

	if _, err := h.run("", "clean", "1"); err != nil {
		t.Fatalf("clean error = %v", err)
	}
	records, _ := h.store.List(context.Background())
	for _, r := range records {
		if r.ID == 1 && r.Content != "gündem maddeleri." {
			t.Fatalf("cleaned content = %q", r.Content)
		}
	}

	if _, err := h.run("", "delete", "2"); err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if _, err := h.run("", "show", "2"); err == nil {
		t.Fatalf("show deleted document succeeded")
	}
	if _, err := h.run("", "delete", "abc"); err == nil {
		t.Fatalf("delete with bad id succeeded")
	}
}

func TestExportWritesPDF(t *testing.T) {
	h := newHarness(t)
	h.login()
	if _, err := h.run("", "add", "--title", "Rapor", "--content", "satır bir\nsatır iki"); err != nil {
		t.Fatalf("add error = %v", err)
	}

	for _, local := range []bool{false, true} {
		out := filepath.Join(t.TempDir(), "rapor.pdf")
		args := []string{"export", "1", "--out", out}
		if local {
			args = append(args, "--local")
		}
		if _, err := h.run("", args...); err != nil {
			t.Fatalf("export (local=%v) error = %v", local, err)
		}
		raw, err := os.ReadFile(out)
		if err != nil {
			t.Fatalf("read export: %v", err)
		}
		if !bytes.HasPrefix(raw, []byte("%PDF")) {
			t.Fatalf("export (local=%v) is not a pdf", local)
		}
	}
}

func TestPasswordUpdateValidatesLocally(t *testing.T) {
	h := newHarness(t)
	h.login()
	if _, err := h.run("", "password", "update", "--password", "abc", "--confirm", "abc"); !errors.Is(err, auth.ErrPasswordTooShort) {
		t.Fatalf("short password error = %v", err)
	}
	if _, err := h.run("", "password", "update", "--password", "abcdef", "--confirm", "abcdeg"); !errors.Is(err, auth.ErrPasswordMismatch) {
		t.Fatalf("mismatch error = %v", err)
	}
	if _, err := h.run("", "password", "update", "--password", "yeni-sifre", "--confirm", "yeni-sifre"); err != nil {
		t.Fatalf("update error = %v", err)
	}
	if _, err := h.run("", "password", "reset", "--email", "yazar@example.com"); err != nil {
		t.Fatalf("reset error = %v", err)
	}
}
