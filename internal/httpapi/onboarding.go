package httpapi

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type setupCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type setupStatusResponse struct {
	StoreMode     string       `json:"store_mode"`
	AuthMode      string       `json:"auth_mode"`
	AICleanup     bool         `json:"ai_cleanup"`
	Notifications bool         `json:"notifications"`
	Checks        []setupCheck `json:"checks"`
}

func (s *Server) handleSetupStatus(w http.ResponseWriter, _ *http.Request) {
	checks := make([]setupCheck, 0, 6)
	checks = append(checks, s.storeChecks()...)
	checks = append(checks, s.authChecks()...)

	if s.cleaner == nil {
		checks = append(checks, setupCheck{
			ID:     "ai_cleanup",
			Status: "warn",
			Label:  "AI cleanup",
			Detail: "GEMINI_API_KEY is not set; /api/ai/process-text answers 500",
			Fix:    "Set GEMINI_API_KEY to enable the Temizle action.",
		})
	} else {
		checks = append(checks, setupCheck{
			ID:     "ai_cleanup",
			Status: "ok",
			Label:  "AI cleanup",
			Detail: s.cfg.GeminiModel,
		})
	}

	checks = append(checks, s.natsCheck())
	checks = append(checks, s.fontCheck())

	respondJSON(w, http.StatusOK, setupStatusResponse{
		StoreMode:     s.storeMode,
		AuthMode:      s.authMode,
		AICleanup:     s.cleaner != nil,
		Notifications: s.notifier != nil,
		Checks:        checks,
	})
}

func (s *Server) storeChecks() []setupCheck {
	switch s.storeMode {
	case "supabase", "postgres", "sqlite":
		return []setupCheck{{
			ID:     "document_store",
			Status: "ok",
			Label:  "Document store",
			Detail: s.storeMode,
		}}
	case "memory":
		return []setupCheck{{
			ID:     "document_store",
			Status: "warn",
			Label:  "Document store",
			Detail: "in-memory only",
			Fix:    "Set SUPABASE_URL/SUPABASE_ANON_KEY, DATABASE_URL or SQLITE_PATH to persist documents.",
		}}
	default:
		return []setupCheck{{
			ID:     "document_store",
			Status: "error",
			Label:  "Document store",
			Detail: fmt.Sprintf("unknown backend %q", s.storeMode),
		}}
	}
}

func (s *Server) authChecks() []setupCheck {
	if s.authMode == "supabase" {
		return []setupCheck{{
			ID:     "auth_provider",
			Status: "ok",
			Label:  "Auth provider",
			Detail: "supabase",
		}}
	}
	check := setupCheck{
		ID:     "auth_provider",
		Status: "warn",
		Label:  "Auth provider",
		Detail: "in-memory users",
		Fix:    "Use AUTH_BACKEND=supabase in production.",
	}
	if strings.TrimSpace(s.cfg.AuthUsers) == "" {
		check.Status = "error"
		check.Detail = "no users configured; nobody can sign in"
		check.Fix = "Set AUTH_USERS=email:password[,email:password]."
	}
	return []setupCheck{check}
}

func (s *Server) natsCheck() setupCheck {
	raw := strings.TrimSpace(s.cfg.NATSURL)
	if raw == "" {
		return setupCheck{
			ID:     "notifications",
			Status: "ok",
			Label:  "Change notifications",
			Detail: "disabled",
		}
	}
	if err := probePort(raw, "4222"); err != nil {
		return setupCheck{
			ID:     "notifications",
			Status: "warn",
			Label:  "Change notifications",
			Detail: fmt.Sprintf("NATS not reachable (%v)", err),
			Fix:    "Start nats-server or clear NATS_URL.",
		}
	}
	return setupCheck{
		ID:     "notifications",
		Status: "ok",
		Label:  "Change notifications",
		Detail: "nats",
	}
}

func (s *Server) fontCheck() setupCheck {
	path := strings.TrimSpace(s.cfg.ExportFontPath)
	if path == "" {
		return setupCheck{
			ID:     "export_font",
			Status: "warn",
			Label:  "PDF font",
			Detail: "built-in font; ğ, ş and ı are transliterated",
			Fix:    "Set EXPORT_FONT_PATH to a TTF with Turkish glyphs.",
		}
	}
	if _, err := os.Stat(path); err != nil {
		return setupCheck{
			ID:     "export_font",
			Status: "error",
			Label:  "PDF font",
			Detail: "font file missing",
			Fix:    "Check EXPORT_FONT_PATH.",
		}
	}
	return setupCheck{
		ID:     "export_font",
		Status: "ok",
		Label:  "PDF font",
		Detail: "present",
	}
}

// probePort dials the host of a URL such as nats://host:4222.
func probePort(raw, defaultPort string) error {
	// The NATS client accepts comma-separated server lists; probe the first.
	raw = strings.TrimSpace(strings.Split(raw, ",")[0])
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	host := strings.TrimSpace(u.Host)
	if host == "" {
		return fmt.Errorf("host missing")
	}
	addr := host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), defaultPort)
	}
	c, err := net.DialTimeout("tcp", addr, 250*time.Millisecond)
	if err != nil {
		return err
	}
	_ = c.Close()
	return nil
}
