package server

import (
	"net/http"
	"strings"

	"MelodyMind/core/mood"
	"MelodyMind/core/recommend"
	"MelodyMind/model"
)

// recommendationLimit 推荐接口默认返回条数
const recommendationLimit = 25

// SmartPlaylistRequest is the body of POST /recommendations/playlists.
type SmartPlaylistRequest struct {
	MoodLabel string `json:"moodLabel"`
	Limit     int    `json:"limit" validate:"omitempty,min=1,max=100"`
}

type recommendationResponse struct {
	Success   bool         `json:"success"`
	MoodLabel mood.Label   `json:"moodLabel"`
	Genres    []string     `json:"genres,omitempty"`
	Reranked  bool         `json:"reranked"`
	Items     []model.Song `json:"items"`
}

// parseMood 缺省为 neutral，未知标签返回 400
func parseMood(raw string) (mood.Label, error) {
	if strings.TrimSpace(raw) == "" {
		return mood.Neutral, nil
	}
	return mood.Parse(raw)
}

// RecommendationsHandler returns mood-matched songs, re-ranked against the
// caller's journal when semantic ranking is enabled.
func (h *APIHandler) RecommendationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	m, err := parseMood(r.URL.Query().Get("mood"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", recommendationLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	reco, err := h.Recommender.Recommend(r.Context(), userID, m, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	songs := reco.Songs
	if songs == nil {
		songs = []model.Song{}
	}
	writeJSON(w, http.StatusOK, recommendationResponse{
		Success:   true,
		MoodLabel: reco.Mood,
		Genres:    reco.Genres,
		Reranked:  reco.Reranked,
		Items:     songs,
	})
}

// SmartPlaylistHandler previews the songs a mood playlist would start
// from. Nothing is persisted and the journal is not consulted.
func (h *APIHandler) SmartPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var req SmartPlaylistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := parseMood(req.MoodLabel)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res := recommend.Recommend(recommend.Request{Mood: m, Limit: req.Limit})
	songs, err := h.Songs.FindByTags(r.Context(), model.SongQuery{
		MoodTags: []string{string(m)},
		Genres:   res.Genres,
	}, res.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if songs == nil {
		songs = []model.Song{}
	}
	writeJSON(w, http.StatusCreated, recommendationResponse{
		Success:   true,
		MoodLabel: m,
		Genres:    res.Genres,
		Items:     songs,
	})
}
