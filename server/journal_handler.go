package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"MelodyMind/core/apperr"
	"MelodyMind/logger"
	"MelodyMind/model"
)

const (
	dateLayout        = "2006-01-02"
	defaultJournalWin = 30 // days
)

// JournalRequest is the body of POST /journal.
type JournalRequest struct {
	Date      string   `json:"date" validate:"required"`
	MoodLabel string   `json:"moodLabel" validate:"required"`
	Intensity *float64 `json:"intensity" validate:"required,gte=0,lte=10"`
	Notes     string   `json:"notes" validate:"max=5000"`
	Tags      []string `json:"tags" validate:"max=20,dive,max=50"`
}

// parseDate 接受 YYYY-MM-DD 或 RFC3339
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.Invalid("invalid date %q", s)
}

// UpsertJournalHandler writes the caller's entry for a day. A second write
// for the same day replaces the first.
func (h *APIHandler) UpsertJournalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req JournalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	day, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := parseMood(req.MoodLabel)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry := model.NewJournalEntry(userID, day, string(m), *req.Intensity, req.Notes, req.Tags)
	if err := h.Journal.Upsert(r.Context(), entry); err != nil {
		writeError(w, r, err)
		return
	}
	// 日记变化会影响个性化排序
	if h.Recommender != nil {
		h.Recommender.Invalidate(r.Context(), userID)
	}

	logger.Debug("[Journal] upserted",
		logger.String("userId", userID),
		logger.String("date", entry.Date.Format(dateLayout)))
	writeJSON(w, http.StatusCreated, entry)
}

// GetJournalHandler returns one of the caller's entries.
func (h *APIHandler) GetJournalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	entry, err := h.Journal.GetByID(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ListJournalHandler lists entries between start and end (inclusive),
// newest first. The default window is the last 30 days.
func (h *APIHandler) ListJournalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -defaultJournalWin)
	to := now
	var err error
	if s := q.Get("start"); s != "" {
		if from, err = parseDate(s); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if s := q.Get("end"); s != "" {
		if to, err = parseDate(s); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if to.Before(from) {
		writeError(w, r, apperr.Invalid("end before start"))
		return
	}

	entries, err := h.Journal.ListRange(r.Context(), userID, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]model.JournalEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	writeJSON(w, http.StatusOK, out)
}

// MonthJournalHandler is the calendar view for one month, oldest first.
func (h *APIHandler) MonthJournalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	year, err := strconv.Atoi(vars["year"])
	if err != nil || year < 1 {
		writeError(w, r, apperr.Invalid("invalid year"))
		return
	}
	month, err := strconv.Atoi(vars["month"])
	if err != nil || month < 1 || month > 12 {
		writeError(w, r, apperr.Invalid("invalid month"))
		return
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	entries, err := h.Journal.ListRange(r.Context(), userID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
