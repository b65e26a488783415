package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/katibim/internal/auth"
	"github.com/ent0n29/katibim/internal/cleanup"
	"github.com/ent0n29/katibim/internal/config"
	"github.com/ent0n29/katibim/internal/dictation"
	"github.com/ent0n29/katibim/internal/documents"
	"github.com/ent0n29/katibim/internal/export"
	"github.com/ent0n29/katibim/internal/observability"
	"github.com/ent0n29/katibim/internal/protocol"
)

// Deps are the collaborators the HTTP surface needs. Cleaner is nil when no
// generative API key is configured.
type Deps struct {
	Config    config.Config
	Auth      auth.Provider
	AuthMode  string
	Store     documents.Store
	StoreMode string
	Cleaner   cleanup.Cleaner
	Metrics   *observability.Metrics
	Logger    *slog.Logger
	Notifier  DictationNotifier
	Clock     dictation.Clock
	Ready     func() error
}

type Server struct {
	cfg       config.Config
	auth      auth.Provider
	authMode  string
	guard     auth.Guard
	store     documents.Store
	storeMode string
	cleaner   cleanup.Cleaner
	metrics   *observability.Metrics
	logger    *slog.Logger
	notifier  DictationNotifier
	clock     dictation.Clock
	ready     func() error
	upgrader  websocket.Upgrader
	static    http.Handler
	exportOpt export.Options

	wsReadTimeout  time.Duration
	wsPingInterval time.Duration
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = dictation.SystemClock()
	}
	cfg := d.Config
	return &Server{
		cfg:       cfg,
		auth:      d.Auth,
		authMode:  d.AuthMode,
		guard:     auth.Guard{Provider: d.Auth, Logger: d.Logger},
		store:     d.Store,
		storeMode: d.StoreMode,
		cleaner:   d.Cleaner,
		metrics:   d.Metrics,
		logger:    d.Logger,
		notifier:  d.Notifier,
		clock:     d.Clock,
		ready:     d.Ready,
		static:    newStaticHandler(),
		exportOpt: export.Options{FontPath: cfg.ExportFontPath},

		wsReadTimeout:  defaultWSReadTimeout,
		wsPingInterval: defaultWSPingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive a dictation session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.uiHandler()))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/setup/status", s.handleSetupStatus)
	r.Get("/v1/ui/settings", s.handleUISettings)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/auth/login", s.handleLogin)
	r.Post("/v1/auth/logout", s.handleLogout)
	r.Post("/v1/auth/password/reset", s.handlePasswordReset)

	r.Group(func(r chi.Router) {
		r.Use(s.guard.API)
		r.Get("/v1/auth/session", s.handleSession)
		r.Post("/v1/auth/password/update", s.handlePasswordUpdate)

		r.Get("/v1/documents", s.handleListDocuments)
		r.Post("/v1/documents", s.handleCreateDocument)
		r.Patch("/v1/documents/{id}", s.handleUpdateDocument)
		r.Delete("/v1/documents/{id}", s.handleDeleteDocument)
		r.Get("/v1/documents/{id}/pdf", s.handleDocumentPDF)

		r.Post("/api/ai/process-text", s.handleProcessText)
		r.Get("/v1/dictation/ws", s.handleDictationWS)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"store_mode": s.storeMode,
		"auth_mode":  s.authMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.ready != nil {
		if err := s.ready(); err != nil {
			respondError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"store_mode": s.storeMode,
		"auth_mode":  s.authMode,
	})
}

// countRequests labels by route pattern so ids do not explode cardinality.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if s.metrics == nil {
			return
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status/100)+"xx").Inc()
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.RecognizerEvent:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.RecognizerCommand:
		return m.Type, true
	case protocol.Transcript:
		return m.Type, true
	case protocol.DictationState:
		return m.Type, true
	case protocol.Warning:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}

func millis(d time.Duration) int64 { return d.Milliseconds() }
