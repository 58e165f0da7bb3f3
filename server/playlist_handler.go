package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"MelodyMind/core/apperr"
	"MelodyMind/core/mood"
	"MelodyMind/core/playlist"
	"MelodyMind/logger"
	"MelodyMind/model"
)

// CreatePlaylistRequest is the body of POST /playlists.
type CreatePlaylistRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=1024"`
	MoodLabel   string `json:"moodLabel"`
	IsPublic    bool   `json:"isPublic"`
}

// UpdatePlaylistRequest only changes the fields that are present.
type UpdatePlaylistRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1024"`
	MoodLabel   *string `json:"moodLabel"`
	IsPublic    *bool   `json:"isPublic"`
}

// AddItemRequest is the body of POST /playlists/{id}/items.
type AddItemRequest struct {
	SongID string `json:"songId" validate:"required"`
}

// GeneratePlaylistRequest is the body of POST /playlists/generate. Every
// field may also be given as a query parameter.
type GeneratePlaylistRequest struct {
	MoodLabel    string `json:"mood_label"`
	PlaylistName string `json:"playlist_name" validate:"max=200"`
	MaxItems     int    `json:"max_items" validate:"gte=0"`
	PreferLocal  *bool  `json:"prefer_local"`
	Rerank       *bool  `json:"rerank"`
}

type generatedResponse struct {
	*model.Playlist
	Items []playlist.SongSummary `json:"items"`
}

// optionalMood 空字符串合法，非空时必须是标准标签
func optionalMood(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	m, err := mood.Parse(raw)
	return string(m), err
}

// CreatePlaylistHandler creates an empty playlist.
func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req CreatePlaylistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := optionalMood(req.MoodLabel)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p := model.NewPlaylist(userID, strings.TrimSpace(req.Name), req.Description, m)
	p.IsPublic = req.IsPublic
	p.Items = []model.PlaylistItem{}
	if err := h.Playlists.Create(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetPlaylistHandler returns the playlist with its songs resolved.
func (h *APIHandler) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	p, err := h.Playlists.GetOwned(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdatePlaylistHandler edits the playlist's metadata.
func (h *APIHandler) UpdatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req UpdatePlaylistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.Playlists.GetOwned(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.MoodLabel != nil {
		if p.MoodLabel, err = optionalMood(*req.MoodLabel); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.IsPublic != nil {
		p.IsPublic = *req.IsPublic
	}
	if err := h.Playlists.Update(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeletePlaylistHandler removes the playlist and its items.
func (h *APIHandler) DeletePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.Playlists.Delete(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ListMyPlaylistsHandler lists the caller's playlists, newest first.
func (h *APIHandler) ListMyPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	items, err := h.Playlists.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Playlist{}
	}
	writeJSON(w, http.StatusOK, items)
}

// AddPlaylistItemHandler appends a song to the end of the playlist.
func (h *APIHandler) AddPlaylistItemHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]

	if _, err := h.Playlists.GetOwned(r.Context(), id, userID); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.Songs.FindByID(r.Context(), req.SongID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Song not found")
			return
		}
		writeError(w, r, err)
		return
	}
	if _, err := h.Playlists.AddItem(r.Context(), id, req.SongID); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.Playlists.GetOwned(r.Context(), id, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetPlaylistItemsHandler returns the ordered items with songs resolved.
func (h *APIHandler) GetPlaylistItemsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	p, err := h.Playlists.GetOwned(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := p.Items
	if items == nil {
		items = []model.PlaylistItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// decodeGenerateRequest 请求体可以为空，查询参数作为补充
func decodeGenerateRequest(r *http.Request) (*GeneratePlaylistRequest, error) {
	var req GeneratePlaylistRequest
	if r.Body != nil {
		err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBody)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, apperr.Invalid("invalid request body: %v", err)
		}
	}

	q := r.URL.Query()
	if req.MoodLabel == "" {
		req.MoodLabel = q.Get("mood_label")
	}
	if req.PlaylistName == "" {
		req.PlaylistName = q.Get("playlist_name")
	}
	if req.MaxItems == 0 && q.Get("max_items") != "" {
		n, err := strconv.Atoi(q.Get("max_items"))
		if err != nil {
			return nil, apperr.Invalid("max_items must be an integer")
		}
		req.MaxItems = n
	}
	if req.PreferLocal == nil && q.Get("prefer_local") != "" {
		b, err := strconv.ParseBool(q.Get("prefer_local"))
		if err != nil {
			return nil, apperr.Invalid("prefer_local must be a boolean")
		}
		req.PreferLocal = &b
	}
	if req.Rerank == nil && q.Get("rerank") != "" {
		b, err := strconv.ParseBool(q.Get("rerank"))
		if err != nil {
			return nil, apperr.Invalid("rerank must be a boolean")
		}
		req.Rerank = &b
	}
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// GeneratePlaylistHandler builds and stores a playlist for a mood.
func (h *APIHandler) GeneratePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	req, err := decodeGenerateRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := parseMood(req.MoodLabel)
	if err != nil {
		writeError(w, r, err)
		return
	}

	preferLocal := true
	if req.PreferLocal != nil {
		preferLocal = *req.PreferLocal
	}
	// 默认只打乱顺序，显式 rerank=true 才做语义重排
	rerank := req.Rerank != nil && *req.Rerank

	gen, err := h.Generator.Generate(r.Context(), playlist.Request{
		UserID:      userID,
		Mood:        m,
		Name:        req.PlaylistName,
		Limit:       req.MaxItems,
		PreferLocal: preferLocal,
		Rerank:      rerank,
	})
	if err != nil {
		logger.Error("[Playlist] generate failed",
			logger.String("userId", userID),
			logger.String("mood", string(m)),
			logger.ErrorField(err))
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, generatedResponse{Playlist: gen.Playlist, Items: gen.Items})
}
