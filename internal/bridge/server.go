// Package bridge implements the HTTP surface for the existing bridge
// channel: compiling drafts, starting runs, streaming
// ProgramExecEvents, and accepting client pause/resume/halt commands.
// Routing follows server/api's chi-based handler shape rather than the
// older raw http.ServeMux in server/server.go; authentication follows
// server/token.go and server/middle/middle.go, generalized from
// password-based user accounts to bearer-token bridge clients.
package bridge

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dekarrin/fiberhost/internal/draft"
	"github.com/dekarrin/fiberhost/internal/fiber"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/hostlog"
	"github.com/dekarrin/fiberhost/internal/scheduler"
	sqlitestore "github.com/dekarrin/fiberhost/internal/store/sqlite"
)

// PathPrefix is the prefix every bridge route is mounted under,
// matching server/api.PathPrefix's "/api/v1" convention.
const PathPrefix = "/api/v1"

// Server holds every collaborator a bridge request handler needs.
type Server struct {
	Router chi.Router

	parser      *fiber.FiberParser
	globalEnv   *fiberexpr.Env
	store       *sqlitestore.Store
	clients     *ClientStore
	runs        *scheduler.Registry
	secret      []byte
	unauthDelay time.Duration
	logger      *hostlog.Logger

	mu     sync.RWMutex
	drafts map[uuid.UUID]draft.Draft
}

// NewServer builds a bridge Server and its chi route table. parser
// must already have every unit's namespace composed into it (host
// startup's job, not the bridge's).
func NewServer(cfg Config, parser *fiber.FiberParser, globalEnv *fiberexpr.Env, store *sqlitestore.Store, clients *ClientStore, logger *hostlog.Logger) *Server {
	s := &Server{
		parser:      parser,
		globalEnv:   globalEnv,
		store:       store,
		clients:     clients,
		runs:        scheduler.NewRegistry(),
		secret:      cfg.TokenSecret,
		unauthDelay: time.Duration(cfg.UnauthDelayMillis) * time.Millisecond,
		logger:      logger,
		drafts:      make(map[uuid.UUID]draft.Draft),
	}

	r := chi.NewRouter()
	r.Use(RecoverPanic(logger))

	r.Route(PathPrefix, func(r chi.Router) {
		r.Post("/tokens", s.epCreateToken)

		r.Group(func(r chi.Router) {
			r.Use(OptionalAuth(clients, s.secret, s.unauthDelay, logger))
			r.Get("/info", s.epGetInfo)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(clients, s.secret, s.unauthDelay, logger))

			r.Post("/drafts", s.epCreateDraft)
			r.Get("/drafts/{id}", s.epGetDraft)
			r.Post("/drafts/{id}/compile", s.epCompileDraft)
			r.Post("/drafts/{id}/runs", s.epStartRun)
			r.Get("/runs/{id}/events", s.epStreamRunEvents)
			r.Post("/runs/{id}/commands", s.epPostRunCommand)
		})
	})

	s.Router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.Router.ServeHTTP(w, req)
}

func requireIDParam(req *http.Request, key string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(req, key))
}
