package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ironwatch/site/internal/request"
	"github.com/ironwatch/site/internal/util"
)

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Content.Healthcheck(r.Context()); err != nil {
		s.logger.Warn("healthcheck failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "cms": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Content.Settings(r.Context())
	if err != nil {
		s.apiContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	members, err := s.deps.Content.TeamMembers(r.Context())
	if err != nil {
		s.apiContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handlePageJSON(w http.ResponseWriter, r *http.Request) {
	slug := util.NormalizeSlug(mux.Vars(r)["slug"])
	if !util.ValidSlug(slug) {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	page, err := s.deps.Content.PageBySlug(r.Context(), slug)
	if err != nil {
		s.apiContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	slug := util.NormalizeSlug(mux.Vars(r)["slug"])
	sc, err := s.deps.Scenes.Scene(r.Context(), slug)
	if err != nil {
		s.apiContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleSceneAssets(w http.ResponseWriter, r *http.Request) {
	slug := util.NormalizeSlug(mux.Vars(r)["slug"])
	sc, err := s.deps.Scenes.Scene(r.Context(), slug)
	if err != nil {
		s.apiContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Assets.Manifest(r.Context(), sc))
}

func (s *Server) handleSecurityRequest(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.deps.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := s.deps.Requests.Submit(r.Context(), raw)
	var verr *request.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Validation failed", Details: verr.Details})
	case errors.Is(err, request.ErrInvalidBody):
		writeError(w, http.StatusBadRequest, "Invalid request body")
	default:
		s.logger.Error("security request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) handleSecurityRequestSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, request.Schema())
}

func (s *Server) apiContentError(w http.ResponseWriter, err error) {
	status := contentStatus(err)
	if status != http.StatusNotFound {
		s.logger.Error("fetching content", "error", err)
		writeError(w, status, "content unavailable")
		return
	}
	writeError(w, status, "not found")
}
