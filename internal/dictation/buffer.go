package dictation

import "strings"

// MaxInterimWords caps the interim text shown while the user is speaking.
const MaxInterimWords = 10

// Result is one recognition alternative reported by the recognizer.
type Result struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"is_final"`
}

// Buffer accumulates the transcript of a capture session. Finalized text only
// grows through Apply; interim text is replaced on every result.
type Buffer struct {
	finalized strings.Builder
	interim   string
}

// Apply consumes results from resultIndex onward. Final pieces are appended
// followed by a single space. It reports whether anything changed.
func (b *Buffer) Apply(resultIndex int, results []Result) bool {
	if resultIndex < 0 {
		resultIndex = 0
	}
	var final, interim strings.Builder
	for i := resultIndex; i < len(results); i++ {
		if results[i].IsFinal {
			final.WriteString(results[i].Transcript)
		} else {
			interim.WriteString(results[i].Transcript)
		}
	}
	changed := false
	if final.Len() > 0 {
		b.finalized.WriteString(final.String())
		b.finalized.WriteByte(' ')
		changed = true
	}
	next := LastWords(interim.String(), MaxInterimWords)
	if next != b.interim {
		b.interim = next
		changed = true
	}
	return changed
}

func (b *Buffer) ClearInterim() bool {
	if b.interim == "" {
		return false
	}
	b.interim = ""
	return true
}

// SetFinalized replaces the finalized text, e.g. after the user edits it.
func (b *Buffer) SetFinalized(text string) {
	b.finalized.Reset()
	b.finalized.WriteString(text)
}

func (b *Buffer) Reset() {
	b.finalized.Reset()
	b.interim = ""
}

func (b *Buffer) Finalized() string { return b.finalized.String() }
func (b *Buffer) Interim() string { return b.interim }

// LastWords returns the trailing n whitespace-separated words of s.
func LastWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
