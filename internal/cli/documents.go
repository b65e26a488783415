package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ent0n29/katibim/internal/documents"
	"github.com/ent0n29/katibim/internal/export"
	"github.com/ent0n29/katibim/internal/library"
)

func newListCmd(o *rootOptions) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()
			lib, err := o.loadedLibrary(ctx)
			if err != nil {
				return err
			}
			defer lib.Close()
			lib.SetFilter(filter)

			records := lib.Records()
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, dimStyle.Render("Kayıt bulunamadı."))
				return nil
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-8s %s", "ID", "BAŞLIK")))
			for _, r := range records {
				fmt.Fprintf(out, "%s %s\n", idStyle.Render(fmt.Sprintf("%-8d", r.ID)), r.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "case-insensitive title filter")
	return cmd
}

func newShowCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, lib, err := o.record(cmd, args[0])
			if err != nil {
				return err
			}
			defer lib.Close()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(rec.Title)+" "+idStyle.Render(fmt.Sprintf("#%d", rec.ID)))
			fmt.Fprintln(out, bodyStyle.Render(rec.Content))
			return nil
		},
	}
}

func newAddCmd(o *rootOptions) *cobra.Command {
	var title, content, file string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save a new document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				raw, err := readSource(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				content = string(raw)
			}
			c, err := o.authed()
			if err != nil {
				return err
			}
			lib := o.library(c)
			defer lib.Close()
			ctx, cancel := o.context(cmd)
			defer cancel()
			rec, err := lib.Save(ctx, title, content)
			if err != nil {
				if errors.Is(err, documents.ErrInvalidRecord) {
					return fmt.Errorf("başlık ve metin boş olamaz")
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("Kaydedildi: #%d %s", rec.ID, rec.Title)))
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "document title")
	cmd.Flags().StringVar(&content, "content", "", "document text")
	cmd.Flags().StringVar(&file, "file", "", "read the text from a file, or - for stdin")
	return cmd
}

func newDeleteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := o.authed()
			if err != nil {
				return err
			}
			lib := o.library(c)
			defer lib.Close()
			ctx, cancel := o.context(cmd)
			defer cancel()
			if err := lib.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Silindi: #%d\n", id)
			return nil
		},
	}
}

func newCleanCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean <id>",
		Short: "Fix spelling and punctuation with AI and save the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := o.context(cmd)
			defer cancel()
			lib, err := o.loadedLibrary(ctx)
			if err != nil {
				return err
			}
			defer lib.Close()
			fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("İşlem yapılıyor..."))
			if _, err := lib.Clean(ctx, id); err != nil {
				if errors.Is(err, library.ErrUnknownRecord) {
					return fmt.Errorf("document #%d not found", id)
				}
				return fmt.Errorf("metin işlenemedi, içerik değişmedi: %w", err)
			}
			rec, _ := lib.Get(id)
			fmt.Fprintln(cmd.OutOrStdout(), bodyStyle.Render(rec.Content))
			return nil
		},
	}
}

func newCopyCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <id>",
		Short: "Copy a document's text to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, lib, err := o.record(cmd, args[0])
			if err != nil {
				return err
			}
			defer lib.Close()
			if err := lib.Copy(rec.ID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Kopyalandı!"))
			return nil
		},
	}
}

func newExportCmd(o *rootOptions) *cobra.Command {
	var out string
	var local bool
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Save a document as PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := o.context(cmd)
			defer cancel()
			lib, err := o.loadedLibrary(ctx)
			if err != nil {
				return err
			}
			defer lib.Close()
			rec, ok := lib.Get(id)
			if !ok {
				return fmt.Errorf("document #%d not found", id)
			}
			if out == "" {
				out = export.FileName(rec.Title)
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if local {
				err = lib.Export(id, f)
			} else {
				c, cerr := o.authed()
				if cerr != nil {
					f.Close()
					return cerr
				}
				err = c.DownloadPDF(ctx, id, f)
			}
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(out)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("PDF kaydedildi: "+out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default derived from the title)")
	cmd.Flags().BoolVar(&local, "local", false, "render the PDF locally instead of on the server")
	return cmd
}

// record loads the list and returns one entry with the library that holds it.
func (o *rootOptions) record(cmd *cobra.Command, raw string) (documents.Record, *library.Library, error) {
	id, err := parseID(raw)
	if err != nil {
		return documents.Record{}, nil, err
	}
	ctx, cancel := o.context(cmd)
	defer cancel()
	lib, err := o.loadedLibrary(ctx)
	if err != nil {
		return documents.Record{}, nil, err
	}
	rec, ok := lib.Get(id)
	if !ok {
		lib.Close()
		return documents.Record{}, nil, fmt.Errorf("document #%d not found", id)
	}
	return rec, lib, nil
}

func readSource(stdin io.Reader, path string) ([]byte, error) {
	if strings.TrimSpace(path) == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
