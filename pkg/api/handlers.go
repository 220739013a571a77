package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rubiojr/movieei/pkg/auth"
	"github.com/rubiojr/movieei/pkg/log"
	"github.com/rubiojr/movieei/pkg/omdb"
	"github.com/rubiojr/movieei/pkg/search"
	"github.com/rubiojr/movieei/pkg/version"
)

// HandleMovies proxies a search to the upstream API, keeping the API key on
// the server. Successful upstream bodies are relayed unchanged.
func (s *Server) HandleMovies(w http.ResponseWriter, r *http.Request) {
	l := log.ForService("proxy")

	params, err := search.ParseParams(r.URL.Query(), s.defaultType)
	if err != nil {
		s.writeMovieError(w, http.StatusBadRequest, MsgSearchTermRequired)
		return
	}

	upstream := s.currentUpstream()
	if upstream == nil || !upstream.Configured() {
		hasKey, hasURL := false, false
		if upstream != nil {
			hasKey, hasURL = upstream.HasAPIKey(), upstream.HasBaseURL()
		}
		l.Errorf("Missing upstream configuration: api_key=%t base_url=%t", hasKey, hasURL)
		s.writeMovieError(w, http.StatusInternalServerError, MsgConfigError)
		return
	}

	body, err := upstream.SearchRaw(r.Context(), omdb.Query{
		Term: params.Term,
		Page: params.Page,
		Type: params.Type,
	})
	if err != nil {
		l.Errorf("Fetch error for %q page %s: %v", params.Term, params.Page, err)
		s.writeMovieError(w, http.StatusInternalServerError, MsgFetchFailed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", s.cacheControl())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		l.Debugf("Writing response: %v", err)
	}
}

func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	user, err := s.verifier.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		var aerr *auth.Error
		if errors.As(err, &aerr) {
			s.writeJSON(w, aerr.Status(), aerr)
			return
		}
		s.logger.Errorf("Verifying credentials: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Login failed", "Could not verify credentials")
		return
	}

	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}
