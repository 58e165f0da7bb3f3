package server

import (
	"net/http"
	"time"

	"MelodyMind/model"
)

const maxTrendDays = 365

// MoodSongEventRequest is the body of POST /analytics/events/mood-song.
type MoodSongEventRequest struct {
	MoodLabel string         `json:"moodLabel" validate:"required"`
	Song      *MoodSongEvent `json:"song" validate:"required"`
}

// MoodSongEvent 前端传来的歌曲快照
type MoodSongEvent struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Artist   string   `json:"artist"`
	Genres   []string `json:"genres"`
	MoodTags []string `json:"moodTags"`
	Duration int      `json:"duration"`
}

type trendPoint struct {
	Date         string  `json:"date"`
	AvgIntensity float64 `json:"avg_intensity"`
	TotalEntries int     `json:"total_entries"`
}

// RecordMoodSongHandler records that a song was played in a mood.
func (h *APIHandler) RecordMoodSongHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req MoodSongEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := parseMood(req.MoodLabel)
	if err != nil {
		writeError(w, r, err)
		return
	}

	e := model.NewAnalyticsEvent(userID, model.EventMoodSong, string(m))
	if req.Song.ID != "" {
		e.SongID = &req.Song.ID
	}
	e.SongTitle = req.Song.Title
	e.SongArtist = req.Song.Artist
	e.SongGenres = req.Song.Genres
	if len(e.SongGenres) == 0 {
		e.SongGenres = req.Song.MoodTags
	}
	e.Metadata = model.JSONMap{"duration": req.Song.Duration}

	if err := h.Analytics.Record(r.Context(), e); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "id": e.ID})
}

// AnalyticsSummaryHandler returns the caller's activity totals.
func (h *APIHandler) AnalyticsSummaryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	summary, err := h.Analytics.Summary(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// AnalyticsTrendsHandler returns the daily journal intensity for the last
// ?days days.
func (h *APIHandler) AnalyticsTrendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	days, err := queryInt(r, "days", defaultJournalWin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if days <= 0 {
		days = defaultJournalWin
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}

	now := time.Now().UTC()
	entries, err := h.Journal.ListRange(r.Context(), userID, now.AddDate(0, 0, -days), now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dailyTrend(entries))
}

// dailyTrend 输入按日期正序
func dailyTrend(entries []model.JournalEntry) []trendPoint {
	out := []trendPoint{}
	for _, e := range entries {
		d := e.Date.UTC().Format(dateLayout)
		if n := len(out); n > 0 && out[n-1].Date == d {
			p := &out[n-1]
			p.AvgIntensity = (p.AvgIntensity*float64(p.TotalEntries) + e.Intensity) / float64(p.TotalEntries+1)
			p.TotalEntries++
			continue
		}
		out = append(out, trendPoint{Date: d, AvgIntensity: e.Intensity, TotalEntries: 1})
	}
	return out
}
