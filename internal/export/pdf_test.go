package export

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestWritePDFProducesDocument(t *testing.T) {
	var buf bytes.Buffer
	err := WritePDF(&buf, "Toplantı Notları", "Birinci satır\n\nİkinci paragraf: çay, şeker, öğle.", Options{
		Now: func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("WritePDF() error = %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output does not start with a PDF header: %q", buf.Bytes()[:min(16, buf.Len())])
	}
	if !bytes.Contains(buf.Bytes(), []byte("%%EOF")) {
		t.Fatalf("output missing EOF marker")
	}
}

func TestWritePDFMissingFontFails(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, "t", "c", Options{FontPath: "/nonexistent/font.ttf"}); err == nil {
		t.Fatalf("WritePDF() error = nil, want font load error")
	}
}

func TestTransliterate(t *testing.T) {
	if got := Transliterate("Işık ağaç ŞİŞE"); got != "Isik agaç SISE" {
		t.Fatalf("Transliterate() = %q", got)
	}
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"Toplantı Notları": "toplanti-notlari.pdf",
		"  ":               "document.pdf",
		"a/b\\c":           "a-b-c.pdf",
		"Rapor: 2026 (v2)": "rapor-2026-v2.pdf",
	}
	for in, want := range cases {
		if got := FileName(in); got != want {
			t.Fatalf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
	if strings.Contains(FileName("çay"), "ç") {
		t.Fatalf("FileName should drop non-ascii letters")
	}
}
