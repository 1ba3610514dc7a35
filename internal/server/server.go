package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"tailscale.com/client/local"

	"github.com/meltforce/liftplan/internal/session"
	"github.com/meltforce/liftplan/internal/storage"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db     *storage.DB
	engine *session.Engine
	log    *slog.Logger
	ts     *local.Client
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(db *storage.DB, engine *session.Engine, log *slog.Logger) *Server {
	s := &Server{
		db:     db,
		engine: engine,
		log:    log,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// SetTailscale enables tsnet identity resolution. Without it, every request
// runs as the dev user.
func (s *Server) SetTailscale(lc *local.Client) {
	s.ts = lc
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.identity)

		r.Get("/me", s.handleMe)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleCreateSession)
			r.Get("/{id}", s.handleGetSession)
			r.Patch("/{id}", s.handlePatchSession)
			r.Put("/{id}", s.handleFinishSession)
			r.Delete("/{id}", s.handleDeleteSession)
		})

		r.Get("/calendar", s.handleCalendar)
		r.Get("/stats", s.handleStats)
	})
}
