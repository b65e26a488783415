package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config contains all runtime settings for the dictation service.
type Config struct {
	BindAddr         string        `yaml:"bind_addr"`
	ShutdownTimeout  time.Duration `yaml:"-"`
	MetricsNamespace string        `yaml:"metrics_namespace"`
	AllowAnyOrigin   bool          `yaml:"allow_any_origin"`

	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`
	LogDir    string `yaml:"log_dir"`

	StoreBackend    string `yaml:"store_backend"`
	SupabaseURL     string `yaml:"supabase_url"`
	SupabaseAnonKey string `yaml:"supabase_anon_key"`
	StoreTable      string `yaml:"store_table"`
	DatabaseURL     string `yaml:"database_url"`
	SQLitePath      string `yaml:"sqlite_path"`

	AuthBackend    string        `yaml:"auth_backend"`
	AuthUsers      string        `yaml:"auth_users"`
	AuthSessionTTL time.Duration `yaml:"-"`

	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`

	DictationLanguage     string        `yaml:"dictation_language"`
	DictationRestartDelay time.Duration `yaml:"-"`

	NATSURL           string `yaml:"nats_url"`
	NATSSubjectPrefix string `yaml:"nats_subject_prefix"`

	TracesExporter string `yaml:"traces_exporter"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`

	// ExportFontPath points at a TTF with Turkish glyphs. When empty, PDF
	// export transliterates the letters the core fonts cannot encode.
	ExportFontPath string `yaml:"export_font_path"`
}

// Load reads .env, the optional YAML overlay and environment variables, in that
// order of increasing precedence, and applies safe defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf(".env parse error: %w", err)
	}

	cfg := Defaults()
	if path := stringsTrimSpace("APP_CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.BindAddr = envOrDefault("APP_BIND_ADDR", cfg.BindAddr)
	cfg.MetricsNamespace = envOrDefault("APP_METRICS_NAMESPACE", cfg.MetricsNamespace)
	cfg.LogFormat = envOrDefault("APP_LOG_FORMAT", cfg.LogFormat)
	cfg.LogLevel = envOrDefault("APP_LOG_LEVEL", cfg.LogLevel)
	cfg.LogDir = envOrDefault("APP_LOG_DIR", cfg.LogDir)
	cfg.StoreBackend = envOrDefault("STORE_BACKEND", cfg.StoreBackend)
	cfg.SupabaseURL = envOrDefault("SUPABASE_URL", cfg.SupabaseURL)
	cfg.SupabaseAnonKey = envOrDefault("SUPABASE_ANON_KEY", cfg.SupabaseAnonKey)
	cfg.StoreTable = envOrDefault("STORE_TABLE", cfg.StoreTable)
	cfg.DatabaseURL = envOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.SQLitePath = envOrDefault("SQLITE_PATH", cfg.SQLitePath)
	cfg.AuthBackend = envOrDefault("AUTH_BACKEND", cfg.AuthBackend)
	cfg.AuthUsers = envOrDefault("AUTH_USERS", cfg.AuthUsers)
	cfg.GeminiAPIKey = envOrDefault("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = envOrDefault("GEMINI_MODEL", cfg.GeminiModel)
	cfg.DictationLanguage = envOrDefault("DICTATION_LANGUAGE", cfg.DictationLanguage)
	cfg.NATSURL = envOrDefault("NATS_URL", cfg.NATSURL)
	cfg.NATSSubjectPrefix = envOrDefault("NATS_SUBJECT_PREFIX", cfg.NATSSubjectPrefix)
	cfg.TracesExporter = envOrDefault("OTEL_TRACES_EXPORTER", cfg.TracesExporter)
	cfg.OTLPEndpoint = envOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.ExportFontPath = envOrDefault("EXPORT_FONT_PATH", cfg.ExportFontPath)

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AuthSessionTTL, err = durationFromEnv("AUTH_SESSION_TTL", cfg.AuthSessionTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.DictationRestartDelay, err = durationFromEnv("DICTATION_RESTART_DELAY", cfg.DictationRestartDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		BindAddr:              ":8080",
		ShutdownTimeout:       15 * time.Second,
		MetricsNamespace:      "katibim",
		LogFormat:             "text",
		LogLevel:              "info",
		StoreBackend:          "auto",
		StoreTable:            "doc",
		AuthBackend:           "auto",
		AuthSessionTTL:        12 * time.Hour,
		GeminiModel:           "gemini-2.0-flash",
		DictationLanguage:     "tr-TR",
		DictationRestartDelay: 100 * time.Millisecond,
		NATSSubjectPrefix:     "katibim",
		TracesExporter:        "none",
	}
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	switch strings.ToLower(c.StoreBackend) {
	case "auto", "memory", "sqlite", "postgres", "supabase":
	default:
		return fmt.Errorf("invalid STORE_BACKEND: %q (expected auto|supabase|postgres|sqlite|memory)", c.StoreBackend)
	}
	switch strings.ToLower(c.AuthBackend) {
	case "auto", "memory", "supabase":
	default:
		return fmt.Errorf("invalid AUTH_BACKEND: %q (expected auto|supabase|memory)", c.AuthBackend)
	}
	needsSupabase := strings.EqualFold(c.StoreBackend, "supabase") || strings.EqualFold(c.AuthBackend, "supabase")
	if needsSupabase {
		if strings.TrimSpace(c.SupabaseURL) == "" {
			return errors.New("SUPABASE_URL is required for the supabase backend")
		}
		if strings.TrimSpace(c.SupabaseAnonKey) == "" {
			return errors.New("SUPABASE_ANON_KEY is required for the supabase backend")
		}
	}
	if strings.EqualFold(c.StoreBackend, "postgres") && strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required for the postgres backend")
	}
	if strings.EqualFold(c.StoreBackend, "sqlite") && strings.TrimSpace(c.SQLitePath) == "" {
		return errors.New("SQLITE_PATH is required for the sqlite backend")
	}
	if strings.TrimSpace(c.StoreTable) == "" {
		return errors.New("STORE_TABLE must not be empty")
	}
	if c.DictationRestartDelay <= 0 {
		return errors.New("DICTATION_RESTART_DELAY must be positive")
	}
	if c.AuthSessionTTL < time.Minute {
		return errors.New("AUTH_SESSION_TTL must be at least 1m")
	}
	switch strings.ToLower(c.TracesExporter) {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("invalid OTEL_TRACES_EXPORTER: %q (expected none|stdout|otlp)", c.TracesExporter)
	}
	return nil
}

// SupabaseConfigured reports whether both hosted backend settings are present.
func (c Config) SupabaseConfigured() bool {
	return strings.TrimSpace(c.SupabaseURL) != "" && strings.TrimSpace(c.SupabaseAnonKey) != ""
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return file.apply(cfg)
}

// fileConfig mirrors Config with durations as strings so the YAML file can use
// the same "100ms" notation as the environment.
type fileConfig struct {
	Config                `yaml:",inline"`
	ShutdownTimeout       string `yaml:"shutdown_timeout"`
	AuthSessionTTL        string `yaml:"auth_session_ttl"`
	DictationRestartDelay string `yaml:"dictation_restart_delay"`
}

func (f fileConfig) apply(cfg *Config) error {
	merge := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	merge(&cfg.BindAddr, f.BindAddr)
	merge(&cfg.MetricsNamespace, f.MetricsNamespace)
	merge(&cfg.LogFormat, f.LogFormat)
	merge(&cfg.LogLevel, f.LogLevel)
	merge(&cfg.LogDir, f.LogDir)
	merge(&cfg.StoreBackend, f.StoreBackend)
	merge(&cfg.SupabaseURL, f.SupabaseURL)
	merge(&cfg.SupabaseAnonKey, f.SupabaseAnonKey)
	merge(&cfg.StoreTable, f.StoreTable)
	merge(&cfg.DatabaseURL, f.DatabaseURL)
	merge(&cfg.SQLitePath, f.SQLitePath)
	merge(&cfg.AuthBackend, f.AuthBackend)
	merge(&cfg.AuthUsers, f.AuthUsers)
	merge(&cfg.GeminiAPIKey, f.GeminiAPIKey)
	merge(&cfg.GeminiModel, f.GeminiModel)
	merge(&cfg.DictationLanguage, f.DictationLanguage)
	merge(&cfg.NATSURL, f.NATSURL)
	merge(&cfg.NATSSubjectPrefix, f.NATSSubjectPrefix)
	merge(&cfg.TracesExporter, f.TracesExporter)
	merge(&cfg.OTLPEndpoint, f.OTLPEndpoint)
	merge(&cfg.ExportFontPath, f.ExportFontPath)
	if f.AllowAnyOrigin {
		cfg.AllowAnyOrigin = true
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"shutdown_timeout", f.ShutdownTimeout, &cfg.ShutdownTimeout},
		{"auth_session_ttl", f.AuthSessionTTL, &cfg.AuthSessionTTL},
		{"dictation_restart_delay", f.DictationRestartDelay, &cfg.DictationRestartDelay},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("config file %s parse error: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
