// Package export renders documents as downloadable files.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"
)

// Options controls PDF rendering. Without FontPath the built-in Helvetica is
// used, which cannot encode every Turkish letter; those are transliterated.
type Options struct {
	// FontPath is a UTF-8 TrueType font used for both title and body.
	FontPath string
	Now      func() time.Time
}

// WritePDF renders title and content on A4 pages, keeping the content's line
// breaks.
func WritePDF(w io.Writer, title, content string, opts Options) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(title, true)
	pdf.SetCreator("katibim", true)
	if opts.Now != nil {
		pdf.SetCreationDate(opts.Now())
	}

	family := "Helvetica"
	tr := cp1252Translator(pdf)
	if opts.FontPath != "" {
		family = "body"
		pdf.AddUTF8Font(family, "", opts.FontPath)
		pdf.AddUTF8Font(family, "B", opts.FontPath)
		tr = func(s string) string { return s }
	}

	pdf.AddPage()
	pdf.SetFont(family, "B", 16)
	pdf.MultiCell(0, 8, tr(title), "", "L", false)
	pdf.Ln(4)
	pdf.SetFont(family, "", 11)
	for _, para := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(para) == "" {
			pdf.Ln(5)
			continue
		}
		pdf.MultiCell(0, 5.5, tr(para), "", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func cp1252Translator(pdf *fpdf.Fpdf) func(string) string {
	enc := pdf.UnicodeTranslatorFromDescriptor("cp1252")
	return func(s string) string { return enc(Transliterate(s)) }
}

var turkishFold = strings.NewReplacer(
	"ğ", "g", "Ğ", "G",
	"ş", "s", "Ş", "S",
	"ı", "i", "İ", "I",
)

// Transliterate maps letters missing from cp1252 to close ASCII forms.
func Transliterate(s string) string {
	return turkishFold.Replace(s)
}

// FileName derives a safe attachment name from a document title.
func FileName(title string) string {
	title = Transliterate(strings.TrimSpace(title))
	var b strings.Builder
	lastDash := false
	for _, r := range title {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "document"
	}
	return name + ".pdf"
}
