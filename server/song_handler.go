package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"MelodyMind/core/apperr"
	"MelodyMind/logger"
	"MelodyMind/model"
	"MelodyMind/storage"
)

const (
	maxUploadSize  = 100 << 20 // 100MB
	songListLimit  = 200
	localListLimit = 1000
)

type songListResponse struct {
	Success bool         `json:"success"`
	Items   []model.Song `json:"items"`
}

func songList(songs []model.Song) songListResponse {
	if songs == nil {
		songs = []model.Song{}
	}
	return songListResponse{Success: true, Items: songs}
}

// formList 同时支持重复字段和逗号分隔
func formList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.MultipartForm.Value[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// UploadSongHandler stores the file in object storage and creates the song row.
func (h *APIHandler) UploadSongHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if h.Objects == nil {
		writeError(w, r, notConfigured("storage", "object storage is not available"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "File required")
		return
	}
	defer file.Close()

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = header.Filename
	}
	song := model.NewSong(title, strings.TrimSpace(r.FormValue("artist")), strings.TrimSpace(r.FormValue("album")))
	if d := r.FormValue("duration"); d != "" {
		if song.Duration, err = strconv.Atoi(d); err != nil || song.Duration < 0 {
			writeMessage(w, http.StatusBadRequest, "duration must be a non-negative integer")
			return
		}
	}
	song.Genres = formList(r, "genres")
	song.MoodTags = formList(r, "moodTags")
	song.ObjectKey = storage.ObjectKey(song.ID, header.Filename)
	song.ContentType = header.Header.Get("Content-Type")
	if song.ContentType == "" || song.ContentType == "application/octet-stream" {
		song.ContentType = storage.ContentTypeFor(header.Filename)
	}
	song.FileSize = header.Size
	song.UploadedBy = &userID

	if _, err := h.Objects.Upload(r.Context(), song.ObjectKey, file, header.Size, song.ContentType); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Songs.Create(r.Context(), song); err != nil {
		// 数据库写入失败则清理已上传的对象
		if rmErr := h.Objects.Remove(context.Background(), song.ObjectKey); rmErr != nil {
			logger.Warn("[Song] orphaned object",
				logger.String("key", song.ObjectKey),
				logger.ErrorField(rmErr))
		}
		writeError(w, r, err)
		return
	}

	logger.Info("[Song] uploaded",
		logger.String("songId", song.ID),
		logger.String("key", song.ObjectKey),
		logger.Int("size", int(song.FileSize)))
	h.catalogChanged(r.Context())
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "song": song})
}

// ListSongsHandler returns the newest songs.
func (h *APIHandler) ListSongsHandler(w http.ResponseWriter, r *http.Request) {
	songs, err := h.Songs.List(r.Context(), songListLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, songList(songs))
}

// StreamSongHandler is public so that <audio> elements can load it without
// headers. Local files support Range requests; uploaded songs redirect to a
// presigned object URL.
func (h *APIHandler) StreamSongHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	song, err := h.Songs.FindByID(r.Context(), id)
	if errors.Is(err, apperr.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Song not found")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if song.IsLocal && song.LocalPath != "" {
		f, err := os.Open(song.LocalPath)
		if err != nil {
			logger.Warn("[Stream] local file missing",
				logger.String("songId", song.ID),
				logger.String("path", song.LocalPath),
				logger.ErrorField(err))
			writeMessage(w, http.StatusNotFound, "Local file not found")
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", storage.ContentTypeFor(song.LocalPath))
		w.Header().Set("Accept-Ranges", "bytes")
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
		return
	}

	if song.ObjectKey == "" || h.Objects == nil {
		writeMessage(w, http.StatusNotFound, "File not found")
		return
	}
	u, err := h.Objects.PresignedURL(r.Context(), song.ObjectKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// ScanLocalHandler imports the configured music directory.
func (h *APIHandler) ScanLocalHandler(w http.ResponseWriter, r *http.Request) {
	if h.Scanner == nil {
		writeError(w, r, notConfigured("scanner", "local music directory is not configured"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	report, err := h.Scanner.Scan(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if report.Added+report.Updated > 0 {
		h.catalogChanged(r.Context())
	}
	writeJSON(w, http.StatusOK, report)
}

// catalogChanged 曲库变化后缓存的推荐结果全部作废
func (h *APIHandler) catalogChanged(ctx context.Context) {
	if h.Recommender != nil {
		h.Recommender.InvalidateCatalog(ctx)
	}
}

// ListLocalSongsHandler returns every imported local song.
func (h *APIHandler) ListLocalSongsHandler(w http.ResponseWriter, r *http.Request) {
	songs, err := h.Songs.ListLocal(r.Context(), localListLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, songList(songs))
}

// SongsByMoodHandler matches the tag against both mood tags and genres.
func (h *APIHandler) SongsByMoodHandler(w http.ResponseWriter, r *http.Request) {
	tag := strings.ToLower(strings.TrimSpace(mux.Vars(r)["mood"]))
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit <= 0 || limit > songListLimit {
		limit = songListLimit
	}

	songs, err := h.Songs.FindByTags(r.Context(), model.SongQuery{
		MoodTags: []string{tag},
		Genres:   []string{tag},
	}, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, songList(songs))
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Invalid("%s must be an integer", key)
	}
	return n, nil
}
