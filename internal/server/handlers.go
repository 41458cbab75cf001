package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/usageql-cli/internal/backend"
)

const maxQueryBody = 8 << 10

type queryRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"backend": s.tables != nil,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "question is required")
		return
	}
	res := s.router.ProcessQuery(r.Context(), req.Question)
	s.log.Debug("question answered",
		zap.String("request_id", RequestIDFrom(r.Context())),
		zap.String("query_id", res.ID),
		zap.String("analysis", res.Analysis),
		zap.Bool("failed", res.Error != ""),
	)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.AvailableAnalyses())
}

func (s *Server) handleExamples(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.ExampleQuestions())
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	if s.tables == nil {
		writeError(w, r, http.StatusServiceUnavailable, codeNoBackend, "no backend attached")
		return
	}
	names, err := s.tables.GetAllTables(r.Context())
	if err != nil {
		s.log.Error("list tables", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	if s.tables == nil {
		writeError(w, r, http.StatusServiceUnavailable, codeNoBackend, "no backend attached")
		return
	}
	name := r.PathValue("name")
	sc, err := s.tables.GetTableSchema(r.Context(), name)
	switch {
	case errors.Is(err, backend.ErrNoTable):
		writeError(w, r, http.StatusNotFound, codeNotFound, "no such table: "+name)
	case err != nil:
		s.log.Error("table schema", zap.String("table", name), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, codeInternal, err.Error())
	default:
		writeJSON(w, http.StatusOK, sc)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.summary == nil {
		writeError(w, r, http.StatusNotFound, codeNotFound, "no data summary available")
		return
	}
	writeJSON(w, http.StatusOK, s.summary)
}
