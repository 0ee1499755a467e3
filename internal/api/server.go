package api

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	log "github.com/sirupsen/logrus"

	"github.com/frametech/leads-dashboard/internal/dashboard"
	"github.com/frametech/leads-dashboard/internal/middleware/custom"
	"github.com/frametech/leads-dashboard/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server wraps dependencies for HTTP handlers.
type Server struct {
	Dashboard *dashboard.Service
	Gate      session.Gate
	Flags     session.FlagStore

	// LoginLimiter throttles POST /login. Nil disables it.
	LoginLimiter *custom.RateLimiter

	// SecureCookie marks the session cookie Secure (HTTPS deployments).
	SecureCookie bool

	pages map[string]*template.Template
}

// NewServer creates a new API server instance and parses the page templates.
func NewServer(d *dashboard.Service, gate session.Gate, flags session.FlagStore) (*Server, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &Server{Dashboard: d, Gate: gate, Flags: flags, pages: pages}, nil
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log.StandardLogger(), NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Get("/api/status", s.handleStatus)

	r.Group(func(r chi.Router) {
		r.Use(s.withSession)

		// event stream stays uncompressed so every event is flushed as written
		r.With(s.requireLogin).Get("/api/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(compress)

			r.Get("/login", s.handleLoginPage)
			r.With(s.limitLogin).Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)

			r.Group(func(r chi.Router) {
				r.Use(s.requireLogin)

				r.Get("/", func(w http.ResponseWriter, r *http.Request) {
					http.Redirect(w, r, "/dashboard", http.StatusFound)
				})
				r.Get("/dashboard", s.handleDashboard)
				r.Get("/leads", s.handleLeads)
				r.Get("/call-logs", s.handleCallLogs)

				r.Get("/api/overview", s.handleAPIOverview)
				r.Get("/api/leads", s.handleAPILeads)
				r.Get("/api/call-logs", s.handleAPICallLogs)
			})
		})
	})

	return r
}

func compress(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

func (s *Server) limitLogin(next http.Handler) http.Handler {
	if s.LoginLimiter == nil {
		return next
	}
	return s.LoginLimiter.Limit(next)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ----------------------
// Status
// ----------------------

// handleStatus reports whether the leads backend answers a count query.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := map[string]string{
		"api":     "ok",
		"backend": "ok",
	}
	code := http.StatusOK
	if _, err := s.Dashboard.Store.Count(ctx); err != nil {
		log.WithError(err).Warn("status: backend unreachable")
		resp["backend"] = "unreachable"
		code = http.StatusServiceUnavailable
	}
	if ov := s.Dashboard.Current(); ov.Loaded() {
		resp["last_refresh"] = ov.RefreshedAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, code, resp)
}

// ----------------------
// Templates
// ----------------------

func parsePages() (map[string]*template.Template, error) {
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	names := []string{"login.html", "dashboard.html", "leads.html", "call_logs.html", "error.html"}
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}
	return pages, nil
}

func (s *Server) render(w http.ResponseWriter, code int, name string, data map[string]any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Errorf("template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.WithError(err).Errorf("rendering template %s", name)
	}
}
