package client

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ent0n29/katibim/internal/auth"
	"github.com/ent0n29/katibim/internal/config"
	"github.com/ent0n29/katibim/internal/documents"
	"github.com/ent0n29/katibim/internal/httpapi"
	"github.com/ent0n29/katibim/internal/library"
	"github.com/ent0n29/katibim/internal/logging"
	"github.com/ent0n29/katibim/internal/observability"
)

type upperCleaner struct{}

func (upperCleaner) Clean(_ context.Context, text string) (string, error) {
	return strings.ToUpper(text), nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	provider := auth.NewMemoryProvider(time.Hour)
	provider.AddUser("yazar@example.com", "gizli-sifre")
	srv := httpapi.New(httpapi.Deps{
		Config:    config.Defaults(),
		Auth:      provider,
		AuthMode:  "memory",
		Store:     documents.NewMemoryStore(),
		StoreMode: "memory",
		Cleaner:   upperCleaner{},
		Metrics:   observability.NewMetricsWithRegistry("test_client", prometheus.NewRegistry()),
		Logger:    logging.Discard(),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func signedIn(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	c, err := New(ts.URL, "", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sess, err := c.Login(context.Background(), "yazar@example.com", "gizli-sifre")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return c.WithToken(sess.AccessToken)
}

func TestLoginErrors(t *testing.T) {
	ts := newServer(t)
	c, _ := New(ts.URL, "", nil)

	if _, err := c.Login(context.Background(), "yazar@example.com", "yanlis"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("Login(bad) error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := c.List(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("List() without token error = %v, want ErrUnauthenticated", err)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("localhost", "", nil); err == nil {
		t.Fatalf("New(localhost) error = nil, want invalid url")
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	ts := newServer(t)
	c := signedIn(t, ts)
	ctx := context.Background()

	user, err := c.Session(ctx)
	if err != nil || user.Email != "yazar@example.com" {
		t.Fatalf("Session() = %+v, %v", user, err)
	}

	rec, err := c.Insert(ctx, "Not", "ilk metin")
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := c.Update(ctx, rec.ID, "ikinci metin"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := c.Update(ctx, rec.ID+100, "x"); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("Update(missing) error = %v, want ErrNotFound", err)
	}

	list, err := c.List(ctx)
	if err != nil || len(list) != 1 || list[0].Content != "ikinci metin" {
		t.Fatalf("List() = %+v, %v", list, err)
	}

	var pdf bytes.Buffer
	if err := c.DownloadPDF(ctx, rec.ID, &pdf); err != nil {
		t.Fatalf("DownloadPDF() error = %v", err)
	}
	if !bytes.HasPrefix(pdf.Bytes(), []byte("%PDF")) {
		t.Fatalf("downloaded file is not a pdf")
	}

	if err := c.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := c.Session(ctx); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("Session() after logout error = %v, want ErrUnauthenticated", err)
	}
}

func TestLibraryOverClient(t *testing.T) {
	ts := newServer(t)
	c := signedIn(t, ts)
	ctx := context.Background()

	lib := library.New(c, library.Options{Cleaner: c, Logger: logging.Discard()})
	defer lib.Close()

	rec, err := lib.Save(ctx, "Dikte", "merhaba dünya")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	started, err := lib.Clean(ctx, rec.ID)
	if err != nil || !started {
		t.Fatalf("Clean() = %v, %v", started, err)
	}
	got, ok := lib.Get(rec.ID)
	if !ok || got.Content != "MERHABA DÜNYA" {
		t.Fatalf("cleaned record = %+v", got)
	}
}

func TestPasswordEndpoints(t *testing.T) {
	ts := newServer(t)
	c := signedIn(t, ts)
	ctx := context.Background()

	var apiErr *APIError
	if err := c.UpdatePassword(ctx, "abcdef", "abcxyz"); !errors.As(err, &apiErr) || apiErr.Code != "invalid_password" {
		t.Fatalf("UpdatePassword(mismatch) error = %v", err)
	}
	if err := c.UpdatePassword(ctx, "yeni-sifre", "yeni-sifre"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}
	if err := c.RequestPasswordReset(ctx, "yazar@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
}
