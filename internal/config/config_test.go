package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StoreBackend != "auto" {
		t.Fatalf("StoreBackend = %q, want %q", cfg.StoreBackend, "auto")
	}
	if cfg.StoreTable != "doc" {
		t.Fatalf("StoreTable = %q, want %q", cfg.StoreTable, "doc")
	}
	if cfg.DictationRestartDelay != 100*time.Millisecond {
		t.Fatalf("DictationRestartDelay = %s, want 100ms", cfg.DictationRestartDelay)
	}
	if cfg.DictationLanguage != "tr-TR" {
		t.Fatalf("DictationLanguage = %q, want %q", cfg.DictationLanguage, "tr-TR")
	}
	if cfg.GeminiAPIKey != "" {
		t.Fatalf("GeminiAPIKey = %q, want empty default", cfg.GeminiAPIKey)
	}
}

func TestLoadSupabaseBackendRequiresCredentials(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("STORE_BACKEND", "supabase")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")

	_, err := Load()
	if err == nil {
		t.Fatalf("Load() error = nil, want missing anon key error")
	}
	if !strings.Contains(err.Error(), "SUPABASE_ANON_KEY") {
		t.Fatalf("error = %v, want mention of SUPABASE_ANON_KEY", err)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("STORE_BACKEND", "mongo")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want invalid backend error")
	}
}

func TestLoadFileOverlayLosesToEnv(t *testing.T) {
	setCoreEnvEmpty(t)
	path := filepath.Join(t.TempDir(), "katibim.yaml")
	body := strings.Join([]string{
		"bind_addr: \":9000\"",
		"store_backend: sqlite",
		"sqlite_path: /tmp/katibim.db",
		"dictation_restart_delay: 250ms",
		"gemini_model: gemini-file-model",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("APP_CONFIG_FILE", path)
	t.Setenv("GEMINI_MODEL", "gemini-env-model")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9000" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9000")
	}
	if cfg.StoreBackend != "sqlite" || cfg.SQLitePath != "/tmp/katibim.db" {
		t.Fatalf("store = %q %q, want sqlite /tmp/katibim.db", cfg.StoreBackend, cfg.SQLitePath)
	}
	if cfg.DictationRestartDelay != 250*time.Millisecond {
		t.Fatalf("DictationRestartDelay = %s, want 250ms", cfg.DictationRestartDelay)
	}
	if cfg.GeminiModel != "gemini-env-model" {
		t.Fatalf("GeminiModel = %q, want env value", cfg.GeminiModel)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("DICTATION_RESTART_DELAY", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want parse error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_CONFIG_FILE",
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_LOG_FORMAT",
		"APP_LOG_LEVEL",
		"APP_LOG_DIR",
		"STORE_BACKEND",
		"SUPABASE_URL",
		"SUPABASE_ANON_KEY",
		"STORE_TABLE",
		"DATABASE_URL",
		"SQLITE_PATH",
		"AUTH_BACKEND",
		"AUTH_USERS",
		"AUTH_SESSION_TTL",
		"GEMINI_API_KEY",
		"GEMINI_MODEL",
		"DICTATION_LANGUAGE",
		"DICTATION_RESTART_DELAY",
		"NATS_URL",
		"NATS_SUBJECT_PREFIX",
		"OTEL_TRACES_EXPORTER",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
		"EXPORT_FONT_PATH",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
