package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"picturebuzz/internal/analytics"
)

func (s *Server) requireAnalytics(w http.ResponseWriter) bool {
	if s.Analytics == nil {
		writeError(w, http.StatusServiceUnavailable, "Analytics requires a database connection")
		return false
	}
	return true
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !s.requireAnalytics(w) {
		return
	}
	category := r.URL.Query().Get("category")
	if category == "" {
		category = "score"
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.Analytics.GetLeaderboard(r.Context(), category, limit)
	if errors.Is(err, analytics.ErrUnknownCategory) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.Log.Error().Err(err).Msg("leaderboard")
		writeError(w, http.StatusInternalServerError, "Error loading leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"entries":  entries,
	})
}

func (s *Server) handleGameRecap(w http.ResponseWriter, r *http.Request) {
	if !s.requireAnalytics(w) {
		return
	}
	recap, err := s.Analytics.GetGameRecap(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, analytics.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Game not found")
		return
	}
	if err != nil {
		s.Log.Error().Err(err).Msg("game recap")
		writeError(w, http.StatusInternalServerError, "Error loading game")
		return
	}
	writeJSON(w, http.StatusOK, recap)
}

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireAnalytics(w) {
		return
	}
	stats, err := s.Analytics.GetPlayerLifetimeStats(r.Context(), mux.Vars(r)["name"])
	if errors.Is(err, analytics.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Player not found")
		return
	}
	if err != nil {
		s.Log.Error().Err(err).Msg("player stats")
		writeError(w, http.StatusInternalServerError, "Error loading player stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
