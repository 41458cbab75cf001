// Package server exposes the query router over a small JSON HTTP API.
package server

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/KaramelBytes/usageql-cli/internal/backend"
	"github.com/KaramelBytes/usageql-cli/internal/router"
	"github.com/KaramelBytes/usageql-cli/internal/unify"
)

// TableCatalog lists loaded tables and their schemas.
type TableCatalog interface {
	GetAllTables(ctx context.Context) ([]string, error)
	GetTableSchema(ctx context.Context, name string) (backend.Schema, error)
}

// Options configures a Server.
type Options struct {
	Router *router.Router
	// Tables backs the /api/tables endpoints. Nil answers them with 503.
	Tables TableCatalog
	// Summary is served from /api/summary when set.
	Summary *unify.Summary
	Logger  *zap.Logger

	RateLimitRPS   float64
	RateLimitBurst int
}

// Server routes API requests to the query router.
type Server struct {
	router  *router.Router
	tables  TableCatalog
	summary *unify.Summary
	log     *zap.Logger
	mux     *http.ServeMux
	handler http.Handler
}

// New builds the server and its middleware stack.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rt := opts.Router
	if rt == nil {
		rt = router.New(nil, router.Options{Logger: log})
	}
	s := &Server{
		router:  rt,
		tables:  opts.Tables,
		summary: opts.Summary,
		log:     log,
		mux:     http.NewServeMux(),
	}
	s.routes()
	s.handler = Chain(
		RequestID(),
		AccessLog(log),
		Recovery(log),
		RateLimit(NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst), log),
	)(s.mux)
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/query", s.handleQuery)
	s.mux.HandleFunc("GET /api/analyses", s.handleAnalyses)
	s.mux.HandleFunc("GET /api/examples", s.handleExamples)
	s.mux.HandleFunc("GET /api/tables", s.handleTables)
	s.mux.HandleFunc("GET /api/tables/{name}/schema", s.handleSchema)
	s.mux.HandleFunc("GET /api/summary", s.handleSummary)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
