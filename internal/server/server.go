// Package server exposes the site over HTTP: page shells, the JSON content
// API, the security request form and the experience WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ironwatch/site/internal/assets"
	"github.com/ironwatch/site/internal/blocks"
	"github.com/ironwatch/site/internal/cms"
	"github.com/ironwatch/site/internal/navigation"
	"github.com/ironwatch/site/internal/request"
	"github.com/ironwatch/site/internal/scene"
	"github.com/ironwatch/site/pkg/core"
)

// DefaultMaxBodyBytes fits five base64 encoded attachments at their size
// limit plus the form fields.
const DefaultMaxBodyBytes = 72 << 20

// Content is the subset of the CMS client the server reads from.
type Content interface {
	PageWithSettings(ctx context.Context, slug string) (*cms.PageView, error)
	PageBySlug(ctx context.Context, slug string) (*core.Page, error)
	Settings(ctx context.Context) (*core.Settings, error)
	TeamMembers(ctx context.Context) ([]core.TeamMember, error)
	Healthcheck(ctx context.Context) error
}

// Submitter accepts security request form bodies.
type Submitter interface {
	Submit(ctx context.Context, raw []byte) (*request.Response, error)
}

// Manifester summarises the models of a scene.
type Manifester interface {
	Manifest(ctx context.Context, sc *core.Scene) assets.Manifest
}

// Dependencies wires a Server.
type Dependencies struct {
	Content  Content
	Scenes   scene.Source
	Assets   Manifester
	Requests Submitter
	Renderer *blocks.Renderer
	// Sessions serves the experience WebSocket. Nil disables the route.
	Sessions http.Handler
	Logger   *slog.Logger

	MainRoute    string
	HomeSlug     string
	StaticDir    string
	MaxBodyBytes int64
}

// Server routes HTTP requests to the site's handlers.
type Server struct {
	deps   Dependencies
	logger *slog.Logger
	router *mux.Router
	http   *http.Server
}

// New builds the router.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MainRoute == "" {
		deps.MainRoute = navigation.DefaultMainRoute
	}
	if deps.HomeSlug == "" {
		deps.HomeSlug = "home"
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{deps: deps, logger: deps.Logger, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.recoverer, s.logRequests)

	r.HandleFunc("/healthcheck", s.handleHealthcheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/settings", s.handleSettings).Methods(http.MethodGet)
	api.HandleFunc("/team", s.handleTeam).Methods(http.MethodGet)
	api.HandleFunc("/pages/{slug}", s.handlePageJSON).Methods(http.MethodGet)
	api.HandleFunc("/scenes/{slug}", s.handleScene).Methods(http.MethodGet)
	api.HandleFunc("/scenes/{slug}/assets", s.handleSceneAssets).Methods(http.MethodGet)
	api.HandleFunc("/security-request", s.handleSecurityRequest).Methods(http.MethodPost)
	api.HandleFunc("/security-request/schema", s.handleSecurityRequestSchema).Methods(http.MethodGet)

	if s.deps.Sessions != nil {
		r.Handle("/ws/experience", s.deps.Sessions).Methods(http.MethodGet)
	}
	if s.deps.StaticDir != "" {
		r.PathPrefix("/static/").Handler(
			http.StripPrefix("/static/", http.FileServer(http.Dir(s.deps.StaticDir))))
	}

	r.HandleFunc(s.deps.MainRoute, s.handleExperience).Methods(http.MethodGet)
	r.HandleFunc(s.deps.MainRoute+"/{scene}", s.handleExperience).Methods(http.MethodGet)
	r.HandleFunc("/", s.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/{slug}", s.handlePage).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) ListenAndServe(addr string, readTimeout, writeTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}
	s.logger.Info("http server listening", "address", ln.Addr().String())
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
// Hijacked WebSocket connections are not tracked here.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.logger.Error("panic serving request", "path", r.URL.Path, "panic", v)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"took", time.Since(start))
	})
}
