package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/katibim/internal/cleanup"
	"github.com/ent0n29/katibim/internal/redact"
)

type processTextResponse struct {
	ProcessedText string `json:"processedText"`
}

// processTextError keeps the proxy's own error shape, which browser callers
// already parse.
type processTextError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleProcessText(w http.ResponseWriter, r *http.Request) {
	if s.cleaner == nil {
		s.metrics.ObserveCleanup("unconfigured", 0)
		respondJSON(w, http.StatusInternalServerError, processTextError{Error: cleanup.ErrMissingCredential.Error()})
		return
	}

	var body map[string]json.RawMessage
	if err := decodeJSON(r, &body); err != nil {
		s.metrics.ObserveCleanup("invalid", 0)
		respondJSON(w, http.StatusBadRequest, processTextError{Error: "request body must be a JSON object with a text field"})
		return
	}
	var text string
	raw, ok := body["text"]
	if !ok || json.Unmarshal(raw, &text) != nil || strings.TrimSpace(text) == "" {
		s.metrics.ObserveCleanup("invalid", 0)
		respondJSON(w, http.StatusBadRequest, processTextError{Error: "text is required and must be a string"})
		return
	}

	started := time.Now()
	out, err := s.cleaner.Clean(r.Context(), text)
	elapsed := time.Since(started)
	if err != nil {
		s.metrics.ObserveCleanup("error", elapsed)
		s.logger.Error("text cleanup failed",
			slog.Int("chars", len([]rune(text))),
			slog.Duration("elapsed", elapsed),
			slog.String("error", redact.Text(err.Error())),
		)
		msg := "text processing failed"
		if errors.Is(err, cleanup.ErrMissingCredential) {
			msg = err.Error()
		}
		respondJSON(w, http.StatusInternalServerError, processTextError{Error: msg, Details: err.Error()})
		return
	}
	s.metrics.ObserveCleanup("ok", elapsed)
	respondJSON(w, http.StatusOK, processTextResponse{ProcessedText: out})
}
