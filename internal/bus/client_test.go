package bus

import (
	"testing"

	"github.com/ent0n29/katibim/internal/logging"
)

func TestSubjects(t *testing.T) {
	if got := DocumentSubject("katibim", "created"); got != "katibim.documents.created" {
		t.Fatalf("DocumentSubject() = %q", got)
	}
	if got := DictationSubject("app", "Listening"); got != "app.dictation.listening" {
		t.Fatalf("DictationSubject() = %q", got)
	}
	if got := DocumentSubject("k", "a.b*>"); got != "k.documents.a_b__" {
		t.Fatalf("DocumentSubject(wildcards) = %q", got)
	}
	if got := DictationSubject("k", ""); got != "k.dictation.unknown" {
		t.Fatalf("DictationSubject(empty) = %q", got)
	}
}

func TestConnectRequiresURL(t *testing.T) {
	if _, err := Connect(Options{}, logging.Discard()); err == nil {
		t.Fatalf("Connect() error = nil, want missing url error")
	}
}

func TestNilClientIsUnhealthy(t *testing.T) {
	var c *Client
	if c.Healthy() {
		t.Fatalf("Healthy() = true for nil client")
	}
	c.Close()
}
