package server

import (
	"bytes"
	"io"
	"net/http"
	"unicode/utf8"

	"MelodyMind/core/inference"
	"MelodyMind/logger"
	"MelodyMind/model"
)

const (
	maxMoodUpload       = 20 << 20 // 20MB
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// TextMoodRequest is the body of POST /mood/text.
type TextMoodRequest struct {
	Text      string   `json:"text" validate:"required"`
	Intensity *float64 `json:"intensity" validate:"omitempty,gte=0,lte=10"`
}

type moodResponse struct {
	MoodLabel   string         `json:"mood_label"`
	Confidence  *float64       `json:"confidence"`
	Intensity   float64        `json:"intensity"`
	RawScore    *float64       `json:"raw_score,omitempty"`
	Features    map[string]any `json:"features,omitempty"`
	DetectionID string         `json:"detectionId"`
}

// readUpload 读取 multipart 中的 file 字段
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMoodUpload)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "file required")
		return nil, false
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		writeMessage(w, http.StatusBadRequest, "failed to read file")
		return nil, false
	}
	return buf.Bytes(), true
}

func (h *APIHandler) saveDetection(r *http.Request, userID, kind string, res *inference.Result, metadata map[string]any) (*model.MoodDetection, error) {
	d := model.NewMoodDetection(userID, kind)
	d.MoodLabel = string(res.Label)
	d.Confidence = res.Confidence
	d.Intensity = res.Intensity
	d.RawScore = res.RawScore
	d.Metadata = metadata
	if err := h.Moods.Create(r.Context(), d); err != nil {
		return nil, err
	}
	logger.Debug("[Mood] detection saved",
		logger.String("userId", userID),
		logger.String("type", kind),
		logger.String("mood", d.MoodLabel))
	return d, nil
}

// DetectImageMoodHandler analyzes a webcam snapshot.
func (h *APIHandler) DetectImageMoodHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	data, ok := readUpload(w, r)
	if !ok {
		return
	}

	res, err := h.Inference.Image.AnalyzeImage(r.Context(), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.saveDetection(r, userID, model.DetectionImage, res, res.Details)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, moodResponse{
		MoodLabel:   d.MoodLabel,
		Confidence:  res.Confidence,
		Intensity:   res.Intensity,
		DetectionID: d.ID,
	})
}

// DetectTextMoodHandler analyzes free text.
func (h *APIHandler) DetectTextMoodHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req TextMoodRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Inference.Text.AnalyzeText(r.Context(), req.Text, req.Intensity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.saveDetection(r, userID, model.DetectionText, res,
		map[string]any{"textLength": utf8.RuneCountInString(req.Text)})
	if err != nil {
		writeError(w, r, err)
		return
	}
	raw := res.RawScore
	writeJSON(w, http.StatusOK, moodResponse{
		MoodLabel:   d.MoodLabel,
		Confidence:  res.Confidence,
		Intensity:   res.Intensity,
		RawScore:    &raw,
		DetectionID: d.ID,
	})
}

// DetectAudioMoodHandler analyzes a voice recording.
func (h *APIHandler) DetectAudioMoodHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	data, ok := readUpload(w, r)
	if !ok {
		return
	}

	res, err := h.Inference.Audio.AnalyzeAudio(r.Context(), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.saveDetection(r, userID, model.DetectionAudio, res, res.Details)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, moodResponse{
		MoodLabel:   d.MoodLabel,
		Confidence:  res.Confidence,
		Intensity:   res.Intensity,
		Features:    res.Details,
		DetectionID: d.ID,
	})
}

// MoodHistoryHandler lists the caller's detections, newest first.
func (h *APIHandler) MoodHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	items, err := h.Moods.History(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.MoodDetection{}
	}
	writeJSON(w, http.StatusOK, items)
}
