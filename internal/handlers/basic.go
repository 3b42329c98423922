package handlers

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// HealthCheckHandler reports process liveness
// @Summary Health check
// @Description Returns ok when the server is up
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// EchoHandler answers with a fixed body, useful for connectivity checks
// @Summary Echo
// @Description Returns a fixed response for connectivity testing
// @Tags health
// @Produce plain
// @Success 200 {string} string
// @Router /echo [get]
func EchoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("echo test"))
}

// StaticHandler serves the bundled web UI. Unknown paths fall back to the
// UI's 404 page when one exists.
type StaticHandler struct {
	root   string
	logger *log.Logger
}

// NewStaticHandler creates a static file handler rooted at dir
func NewStaticHandler(dir string, logger *log.Logger) *StaticHandler {
	return &StaticHandler{root: dir, logger: logger}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(filepath.Clean(r.URL.Path), "/")
	if rel == "" || rel == "." {
		rel = "index.html"
	}

	path := filepath.Join(h.root, rel)
	if !strings.HasPrefix(path, filepath.Clean(h.root)) {
		http.NotFound(w, r)
		return
	}

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		http.ServeFile(w, r, path)
		return
	}

	notFound := filepath.Join(h.root, "404.html")
	if body, err := os.ReadFile(notFound); err == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write(body)
		return
	}
	http.NotFound(w, r)
}
