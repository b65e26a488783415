// Package cli implements katibimctl, a terminal client for a running katibim
// service.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/ent0n29/katibim/internal/client"
	"github.com/ent0n29/katibim/internal/library"
	"github.com/ent0n29/katibim/internal/logging"
)

const defaultServer = "http://localhost:8080"

// Env carries process-level dependencies so tests can replace them.
type Env struct {
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
	ConfigDir string
	Clipboard library.Clipboard
	Logger    *slog.Logger
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

type rootOptions struct {
	env     Env
	server  string
	timeout time.Duration
}

// NewRootCmd builds the command tree.
func NewRootCmd(env Env) *cobra.Command {
	if env.In == nil {
		env.In = os.Stdin
	}
	if env.Out == nil {
		env.Out = os.Stdout
	}
	if env.Err == nil {
		env.Err = os.Stderr
	}
	if env.Clipboard == nil {
		env.Clipboard = systemClipboard{}
	}
	if env.Logger == nil {
		env.Logger = logging.Discard()
	}
	opts := &rootOptions{env: env}

	root := &cobra.Command{
		Use:           "katibimctl",
		Short:         "Manage dictated documents on a katibim server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(env.In)
	root.SetOut(env.Out)
	root.SetErr(env.Err)

	server := os.Getenv("KATIBIM_SERVER")
	root.PersistentFlags().StringVar(&opts.server, "server", server, "katibim server URL (default from the saved session, else "+defaultServer+")")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 90*time.Second, "per-command timeout")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newPasswordCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newAddCmd(opts),
		newDeleteCmd(opts),
		newCleanCmd(opts),
		newCopyCmd(opts),
		newExportCmd(opts),
	)
	return root
}

// Execute runs katibimctl with process defaults.
func Execute() {
	root := NewRootCmd(Env{})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *rootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func (o *rootOptions) store() sessionFile {
	return sessionFile{dir: o.env.ConfigDir}
}

// serverURL prefers the flag, then the saved session, then the default.
func (o *rootOptions) serverURL(saved savedSession) string {
	if s := strings.TrimSpace(o.server); s != "" {
		return s
	}
	if saved.Server != "" {
		return saved.Server
	}
	return defaultServer
}

// anonymous returns a client without credentials.
func (o *rootOptions) anonymous() (*client.Client, error) {
	saved, _ := o.store().Load()
	return client.New(o.serverURL(saved), "", nil)
}

// authed returns a client using the saved session.
func (o *rootOptions) authed() (*client.Client, error) {
	saved, err := o.store().Load()
	if err != nil {
		return nil, err
	}
	return client.New(o.serverURL(saved), saved.AccessToken, nil)
}

func (o *rootOptions) library(c *client.Client) *library.Library {
	return library.New(c, library.Options{
		Cleaner:   c,
		Clipboard: o.env.Clipboard,
		Logger:    o.env.Logger,
	})
}

// loadedLibrary returns a library with the current list already fetched.
func (o *rootOptions) loadedLibrary(ctx context.Context) (*library.Library, error) {
	c, err := o.authed()
	if err != nil {
		return nil, err
	}
	lib := o.library(c)
	if err := lib.Refresh(ctx); err != nil {
		lib.Close()
		return nil, err
	}
	return lib, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", raw)
	}
	return id, nil
}
