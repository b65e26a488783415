package httpapi

import (
	"net/http"

	"github.com/ent0n29/katibim/internal/auth"
	"github.com/ent0n29/katibim/internal/library"
)

type uiSettingsResponse struct {
	DictationLanguage      string `json:"dictation_language"`
	RestartDelayMS         int64  `json:"restart_delay_ms"`
	CopiedResetMS          int64  `json:"copied_reset_ms"`
	PasswordRedirectMS     int64  `json:"password_redirect_ms"`
	MinPasswordLength      int    `json:"min_password_length"`
	AICleanup              bool   `json:"ai_cleanup"`
	TransliteratedPDFFonts bool   `json:"transliterated_pdf_fonts"`
}

func (s *Server) handleUISettings(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, uiSettingsResponse{
		DictationLanguage:      s.cfg.DictationLanguage,
		RestartDelayMS:         s.cfg.DictationRestartDelay.Milliseconds(),
		CopiedResetMS:          library.CopiedResetAfter.Milliseconds(),
		PasswordRedirectMS:     auth.PasswordRedirectDelay.Milliseconds(),
		MinPasswordLength:      auth.MinPasswordLength,
		AICleanup:              s.cleaner != nil,
		TransliteratedPDFFonts: s.cfg.ExportFontPath == "",
	})
}
