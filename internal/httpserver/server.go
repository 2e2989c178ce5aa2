package httpserver

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"snipbin/internal/paste"
	"snipbin/web"
)

const defaultMaxBytes = 1_048_576

// Config captures server configuration.
type Config struct {
	Pastes     *paste.Service
	MaxBytes   int
	TrustProxy bool
	BaseURL    string
	Logger     *slog.Logger
	// Clock drives the expiry countdown; it defaults to time.Now.
	Clock func() time.Time
}

// Server wraps HTTP handling logic.
type Server struct {
	pastes     *paste.Service
	router     chi.Router
	templates  *template.Template
	maxBytes   int
	trustProxy bool
	baseURL    *url.URL
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs a new Server instance.
func New(cfg Config) (*Server, error) {
	if cfg.Pastes == nil {
		return nil, errors.New("paste service required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	srv := &Server{
		pastes:     cfg.Pastes,
		router:     chi.NewRouter(),
		maxBytes:   cfg.MaxBytes,
		trustProxy: cfg.TrustProxy,
		logger:     cfg.Logger,
		now:        cfg.Clock,
	}

	tmpl, err := template.New("layout").Funcs(template.FuncMap{
		"countdown": func(expires time.Time) string {
			return countdown(expires, srv.now())
		},
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "Never"
			}
			return t.UTC().Format(time.RFC1123)
		},
		"formatSize": formatSize,
	}).ParseFS(web.Templates, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	srv.templates = tmpl

	if cfg.BaseURL != "" {
		parsedBase, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base url: %w", err)
		}
		if parsedBase.Scheme == "" || parsedBase.Host == "" {
			return nil, errors.New("base url must include scheme and host")
		}
		parsedBase.Path = strings.TrimSuffix(parsedBase.Path, "/")
		srv.baseURL = parsedBase
	}

	srv.routes()
	return srv, nil
}

// Handler returns the underlying router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(compress)

	r.Handle("/static/*", http.FileServerFS(web.Static))
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		data, err := web.Static.ReadFile("static/favicon.svg")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write(data)
	})

	r.Get("/", s.handleIndex)
	r.Post("/pastes", s.handleCreate)

	r.Route("/p/{id}", func(pr chi.Router) {
		pr.Get("/", s.handleView)
		pr.Get("/raw", s.handleRaw)
		pr.Get("/download", s.handleDownload)
		pr.Get("/fork", s.handleFork)
		pr.Get("/qr", s.handleQR)
	})

	r.Route("/api", func(ar chi.Router) {
		ar.Post("/pastes", s.apiCreate)
		ar.Get("/pastes/{id}", s.apiGet)
		ar.Get("/languages", s.apiLanguages)
		ar.Get("/expirations", s.apiExpirations)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(s.notFound)
}

func (s *Server) isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if s.baseURL != nil && s.baseURL.Scheme == "https" {
		return true
	}
	if s.trustProxy {
		proto := strings.ToLower(r.Header.Get("X-Forwarded-Proto"))
		if proto == "https" {
			return true
		}
	}
	return false
}

func (s *Server) canonicalURL(r *http.Request, id string) string {
	if s.baseURL != nil {
		u := *s.baseURL
		if id != "" {
			u.Path = strings.TrimSuffix(u.Path, "/") + "/p/" + id
		}
		return u.String()
	}

	scheme := "http"
	if s.isSecureRequest(r) {
		scheme = "https"
	}
	host := r.Host
	if host == "" {
		host = "localhost"
	}
	path := "/"
	if id != "" {
		path = "/p/" + id
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, path)
}
