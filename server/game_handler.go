package server

import (
	"net/http"

	"MelodyMind/model"
)

const gameListLimit = 200

// GameSessionRequest is the body of POST /games/record.
type GameSessionRequest struct {
	GameSlug    string                 `json:"gameSlug" validate:"required,max=64"`
	DurationSec int                    `json:"durationSec" validate:"required,gte=1"`
	PreMood     string                 `json:"preMood"`
	PostMood    string                 `json:"postMood"`
	Score       *float64               `json:"score"`
	Notes       string                 `json:"notes" validate:"max=5000"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// RecordGameSessionHandler stores one finished game.
func (h *APIHandler) RecordGameSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req GameSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	s := model.NewGameSession(userID, req.GameSlug, req.DurationSec)
	var err error
	if s.PreMood, err = optionalMood(req.PreMood); err != nil {
		writeError(w, r, err)
		return
	}
	if s.PostMood, err = optionalMood(req.PostMood); err != nil {
		writeError(w, r, err)
		return
	}
	s.Score = req.Score
	s.Notes = req.Notes
	s.Metadata = req.Metadata

	if err := h.Games.Create(r.Context(), s); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// ListMyGameSessionsHandler returns the caller's latest sessions.
func (h *APIHandler) ListMyGameSessionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	items, err := h.Games.ListByUser(r.Context(), userID, gameListLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.GameSession{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GameStatsHandler aggregates the caller's sessions per game.
func (h *APIHandler) GameStatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	stats, err := h.Games.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"byGame": stats})
}
