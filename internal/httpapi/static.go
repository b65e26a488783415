package httpapi

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed static/*
var embeddedStatic embed.FS

// protectedPages need an active session. The login, password and
// confirmation pages stay public.
var protectedPages = map[string]bool{
	"":              true,
	"index.html":    true,
	"docs.html":     true,
	"speaking.html": true,
	"account.html":  true,
}

func newStaticHandler() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		return http.NotFoundHandler()
	}
	return http.FileServer(http.FS(sub))
}

// uiHandler expects the /ui/ prefix to be stripped already.
func (s *Server) uiHandler() http.Handler {
	guarded := s.guard.Pages(s.static)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if protectedPages[strings.TrimPrefix(r.URL.Path, "/")] {
			guarded.ServeHTTP(w, r)
			return
		}
		s.static.ServeHTTP(w, r)
	})
}
