package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MelodyMind/config"
	"MelodyMind/core/apperr"
	"MelodyMind/core/auth"
	"MelodyMind/core/inference"
	"MelodyMind/core/mood"
	"MelodyMind/core/playlist"
	"MelodyMind/core/recommend"
	"MelodyMind/core/scanner"
	"MelodyMind/model"
	"MelodyMind/repository"
)

type testEnv struct {
	store   *memStore
	objects *fakeObjects
	handler *APIHandler
	router  *mux.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		ClientOrigin:   "*",
		AIFaceAdapter:  "mock",
		AITextAdapter:  "mock",
		AIAudioAdapter: "mock",
		AIRecoAdapter:  "mock",
	}
	store := newMemStore()
	songs := memSongs{store}
	playlists := memPlaylists{store}
	journal := memJournal{store}
	objects := newFakeObjects()

	h := NewAPIHandler(Deps{
		Config:      cfg,
		Tokens:      auth.NewTokenManager("test-secret", time.Hour),
		Users:       memUsers{store},
		Songs:       songs,
		Playlists:   playlists,
		Journal:     journal,
		Moods:       memMoods{store},
		Analytics:   memAnalytics{store},
		Games:       memGames{store},
		Objects:     objects,
		Inference:   inference.NewSet(cfg, nil),
		Recommender: recommend.NewService(journal, songs, nil, nil),
		Generator:   playlist.NewGenerator(songs, playlists, playlist.WithShuffler(noShuffle{})),
	})
	return &testEnv{store: store, objects: objects, handler: h, router: NewRouter(h)}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.handler.Tokens.GenerateToken(userID, userID+"@example.com")
	require.NoError(t, err)
	return tok
}

// do 发送请求，body 为 nil、[]byte 或可 JSON 编码的值
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func multipartBody(t *testing.T, field, filename string, data []byte, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodOptions, "/api/v1/playlists/generate", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Not Found"}`, rec.Body.String())
}

func TestAuth_SignupLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "Ana@Example.com", "name": "Ana", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var signup authResponse
	decode(t, rec, &signup)
	assert.True(t, signup.Success)
	assert.NotEmpty(t, signup.Token)
	assert.Equal(t, "ana@example.com", signup.User.Email)
	assert.NotContains(t, rec.Body.String(), "passwordHash", "the hash is never serialized")

	rec = env.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "ana@example.com", "name": "Ana", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login authResponse
	decode(t, rec, &login)

	rec = env.do(t, http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), signup.User.ID)
}

func TestAuth_SignupValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{"short password", map[string]string{"email": "a@b.co", "name": "Ana", "password": "123"}, "password"},
		{"bad email", map[string]string{"email": "nope", "name": "Ana", "password": "secret1"}, "email"},
		{"missing name", map[string]string{"email": "a@b.co", "password": "secret1"}, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/auth/signup", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp errorResponse
			decode(t, rec, &resp)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Message, tt.want)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)
	other := auth.NewTokenManager("another-secret", time.Hour)
	forged, err := other.GenerateToken("u1", "u1@example.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"wrong secret", "Bearer " + forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/songs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	rec := env.do(t, http.MethodGet, "/api/v1/songs", env.token(t, "u1"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"items":[]}`, rec.Body.String())
}

func TestMoodText(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")

	rec := env.do(t, http.MethodPost, "/api/v1/mood/text", tok, map[string]interface{}{
		"text": "feeling fine", "intensity": 8,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp moodResponse
	decode(t, rec, &resp)
	assert.Equal(t, "neutral", resp.MoodLabel)
	assert.Equal(t, 8.0, resp.Intensity)
	require.NotNil(t, resp.Confidence)
	assert.NotEmpty(t, resp.DetectionID)

	require.Len(t, env.store.detections, 1)
	d := env.store.detections[0]
	assert.Equal(t, model.DetectionText, d.DetectionType)
	assert.Equal(t, "u1", d.UserID)
	assert.EqualValues(t, 12, d.Metadata["textLength"])

	rec = env.do(t, http.MethodPost, "/api/v1/mood/text", tok, map[string]interface{}{"text": "x", "intensity": 11})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/mood/text", tok, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, env.store.detections, 1, "rejected requests persist nothing")
}

func TestMoodImageAndAudio(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")

	post := func(path string, field string, data []byte) *httptest.ResponseRecorder {
		body, ct := multipartBody(t, field, "clip.bin", data, nil)
		req := httptest.NewRequest(http.MethodPost, path, body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	rec := post("/api/v1/mood/image", "file", []byte{0xff, 0xd8, 0xff})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var img moodResponse
	decode(t, rec, &img)
	assert.Equal(t, "neutral", img.MoodLabel)
	assert.InDelta(t, 0.5, *img.Confidence, 1e-9)

	rec = post("/api/v1/mood/audio", "file", []byte("RIFF...."))
	require.Equal(t, http.StatusOK, rec.Code)
	var audio moodResponse
	decode(t, rec, &audio)
	assert.Equal(t, "calm", audio.MoodLabel)
	assert.NotNil(t, audio.Features)

	rec = post("/api/v1/mood/image", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = post("/api/v1/mood/audio", "file", []byte{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty payload")

	rec = env.do(t, http.MethodGet, "/api/v1/mood/history?limit=1", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []model.MoodDetection
	decode(t, rec, &history)
	require.Len(t, history, 1)
	assert.Equal(t, model.DetectionAudio, history[0].DetectionType)
}

func TestVoiceCommand(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")

	rec := env.do(t, http.MethodPost, "/api/v1/voice/command", tok, map[string]string{"text": "Play Bohemian Rhapsody"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success bool `json:"success"`
		Command struct {
			Action     *string           `json:"action"`
			Parameters map[string]string `json:"parameters"`
		} `json:"command"`
		Mood voiceMood `json:"mood"`
	}
	decode(t, rec, &resp)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Command.Action)
	assert.Equal(t, "play", *resp.Command.Action)
	assert.Equal(t, "bohemian rhapsody", resp.Command.Parameters["query"])
	assert.Equal(t, "neutral", resp.Mood.MoodLabel)

	rec = env.do(t, http.MethodPost, "/api/v1/voice/analyze", tok, map[string]string{"transcript": "how was your day"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"action":null`)

	rec = env.do(t, http.MethodPost, "/api/v1/voice/analyze", tok, map[string]string{"text": "wrong field"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoiceWebSocket(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/voice/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+env.token(t, "u1"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"text": "skip this one"}))
	var reply struct {
		Type    string `json:"type"`
		Command struct {
			Action *string `json:"action"`
		} `json:"command"`
		Mood *voiceMood `json:"mood"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "command", reply.Type)
	require.NotNil(t, reply.Command.Action)
	assert.Equal(t, "next", *reply.Command.Action)
	require.NotNil(t, reply.Mood)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var errReply voiceWSReply
	require.NoError(t, conn.ReadJSON(&errReply))
	assert.Equal(t, "error", errReply.Type)
}

func TestGeneratePlaylist(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")
	env.store.addSong("Remote Happy", false, []string{"happy"}, []string{"pop"})
	env.store.addSong("Local Plain", true, nil, []string{"unknown"})
	env.store.addSong("Local Happy", true, []string{"happy"}, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/playlists/generate", tok, map[string]interface{}{
		"mood_label": "happy", "playlist_name": "Morning", "max_items": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ID        string                 `json:"id"`
		Name      string                 `json:"name"`
		MoodLabel string                 `json:"moodLabel"`
		Items     []playlist.SongSummary `json:"items"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "Morning - Happy", resp.Name)
	assert.Equal(t, "happy", resp.MoodLabel)
	require.Len(t, resp.Items, 2)
	titles := []string{resp.Items[0].SongTitle, resp.Items[1].SongTitle}
	assert.Equal(t, []string{"Local Happy", "Local Plain"}, titles, "local mood matches first, then other local songs")
	assert.Equal(t, model.StreamURL(resp.Items[0].SongID), resp.Items[0].AudioURL)
	assert.True(t, resp.Items[0].IsLocal)

	rec = env.do(t, http.MethodPost, "/api/v1/playlists/generate?mood_label=calm&prefer_local=false", tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(t, rec, &resp)
	assert.Equal(t, "Generated Playlist - Calm", resp.Name)
	assert.Len(t, resp.Items, 3, "no calm songs, so the cascade falls through to any song")

	rec = env.do(t, http.MethodPost, "/api/v1/playlists/generate", tok, map[string]string{"mood_label": "grumpy"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type countingRanker struct{ calls int }

func (c *countingRanker) Rank(_ context.Context, _ mood.Label, _ []model.JournalEntry, songs []model.Song) ([]model.Song, error) {
	c.calls++
	return songs, nil
}

func TestGeneratePlaylist_RerankIsOptIn(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")
	env.store.addSong("Local Happy", true, []string{"happy"}, nil)

	// embedding mode enabled, so only the request decides
	env.handler.Inference = inference.NewSet(&config.Config{AIRecoAdapter: "hf", HFAPIToken: "tok"}, nil)
	require.True(t, env.handler.Inference.RerankEnabled())
	ranker := &countingRanker{}
	env.handler.Generator = playlist.NewGenerator(memSongs{env.store}, memPlaylists{env.store},
		playlist.WithShuffler(noShuffle{}), playlist.WithRanker(ranker))

	rec := env.do(t, http.MethodPost, "/api/v1/playlists/generate", tok, map[string]string{"mood_label": "happy"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 0, ranker.calls, "default generation only shuffles")

	rec = env.do(t, http.MethodPost, "/api/v1/playlists/generate", tok, map[string]interface{}{"mood_label": "happy", "rerank": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, ranker.calls)

	rec = env.do(t, http.MethodPost, "/api/v1/playlists/generate?mood_label=happy&rerank=true", tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 2, ranker.calls)
}

func TestPlaylistCRUD(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")
	song := env.store.addSong("Song A", false, []string{"calm"}, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/playlists", tok, map[string]interface{}{"description": "no name"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/playlists", tok, map[string]interface{}{"name": "Evening", "moodLabel": "calm"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created model.Playlist
	decode(t, rec, &created)
	base := "/api/v1/playlists/" + created.ID

	rec = env.do(t, http.MethodPost, base+"/items", tok, map[string]string{"songId": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodPost, base+"/items", tok, map[string]string{"songId": song.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, base+"/items", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []model.PlaylistItem
	decode(t, rec, &items)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Song)
	assert.Equal(t, "Song A", items[0].Song.Title)

	rec = env.do(t, http.MethodPut, base, tok, map[string]interface{}{"name": "Late Evening", "isPublic": true})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated model.Playlist
	decode(t, rec, &updated)
	assert.Equal(t, "Late Evening", updated.Name)
	assert.Equal(t, "calm", updated.MoodLabel, "absent fields are kept")
	assert.True(t, updated.IsPublic)

	rec = env.do(t, http.MethodGet, base, env.token(t, "intruder"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other users cannot see the playlist")

	rec = env.do(t, http.MethodGet, "/api/v1/playlists/user/me/list", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []model.Playlist
	decode(t, rec, &mine)
	assert.Len(t, mine, 1)

	rec = env.do(t, http.MethodDelete, base, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, base, tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJournal(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")

	rec := env.do(t, http.MethodPost, "/api/v1/journal", tok, map[string]interface{}{
		"date": "2026-03-05", "moodLabel": "sad", "intensity": 3, "notes": "rainy",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first model.JournalEntry
	decode(t, rec, &first)

	rec = env.do(t, http.MethodPost, "/api/v1/journal", tok, map[string]interface{}{
		"date": "2026-03-05T18:30:00Z", "moodLabel": "happy", "intensity": 7,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var second model.JournalEntry
	decode(t, rec, &second)
	assert.Equal(t, first.ID, second.ID, "same day replaces the entry")
	assert.Equal(t, "happy", second.MoodLabel)

	rec = env.do(t, http.MethodPost, "/api/v1/journal", tok, map[string]interface{}{
		"date": "2026-03-06", "moodLabel": "calm",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "intensity is required")

	rec = env.do(t, http.MethodGet, "/api/v1/journal/month/2026/3", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var month []model.JournalEntry
	decode(t, rec, &month)
	require.Len(t, month, 1)

	rec = env.do(t, http.MethodGet, "/api/v1/journal/month/2026/13", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/journal?start=2026-03-01&end=2026-03-31", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ranged []model.JournalEntry
	decode(t, rec, &ranged)
	assert.Len(t, ranged, 1)

	rec = env.do(t, http.MethodGet, "/api/v1/journal/"+first.ID, env.token(t, "u2"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecommendations(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")
	env.store.addSong("Sunny", false, []string{"happy"}, nil)
	env.store.addSong("Gloomy", false, []string{"sad"}, nil)
	env.store.addSong("Ambient Thing", false, nil, []string{"ambient"})

	rec := env.do(t, http.MethodGet, "/api/v1/recommendations?mood=happy", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp recommendationResponse
	decode(t, rec, &resp)
	assert.Equal(t, "happy", string(resp.MoodLabel))
	assert.False(t, resp.Reranked)
	require.NotEmpty(t, resp.Items)
	assert.Equal(t, "Sunny", resp.Items[0].Title)

	rec = env.do(t, http.MethodGet, "/api/v1/recommendations", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Equal(t, "neutral", string(resp.MoodLabel), "missing mood defaults to neutral")

	rec = env.do(t, http.MethodGet, "/api/v1/recommendations?mood=hangry", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/recommendations/playlists", tok, map[string]string{"moodLabel": "sad"})
	require.Equal(t, http.StatusCreated, rec.Code)
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Items)
	assert.Equal(t, "Gloomy", resp.Items[0].Title)
	assert.Empty(t, env.store.playlists, "the preview persists nothing")
}

func TestSongsByMood(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")
	env.store.addSong("Tagged", false, []string{"focused"}, nil)
	env.store.addSong("Genre", false, nil, []string{"focused"})
	env.store.addSong("Other", false, []string{"sad"}, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/songs/by-mood/Focused?limit=10", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp songListResponse
	decode(t, rec, &resp)
	assert.Len(t, resp.Items, 2)

	rec = env.do(t, http.MethodGet, "/api/v1/songs/by-mood/focused?limit=ten", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamLocalFileSupportsRange(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "track.mp3")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	song := model.NewSong("Track", "Me", "Local Collection")
	song.IsLocal = true
	song.LocalPath = path
	env.store.songs = append(env.store.songs, *song)

	req := httptest.NewRequest(http.MethodGet, model.StreamURL(song.ID), nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "2345", rec.Body.String())
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "bytes 2-5/10", rec.Header().Get("Content-Range"))

	require.NoError(t, os.Remove(path))
	rec = env.do(t, http.MethodGet, model.StreamURL(song.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, model.StreamURL("missing"), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamRemoteRedirectsToPresignedURL(t *testing.T) {
	env := newTestEnv(t)
	song := model.NewSong("Remote", "Band", "")
	song.ObjectKey = "songs/" + song.ID + ".mp3"
	env.store.songs = append(env.store.songs, *song)

	rec := env.do(t, http.MethodGet, model.StreamURL(song.ID), "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), song.ObjectKey)
}

func TestUploadSong(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")

	upload := func() *httptest.ResponseRecorder {
		body, ct := multipartBody(t, "file", "Song One.mp3", []byte("ID3data"), map[string]string{
			"artist": "Band", "genres": "Pop, Rock", "moodTags": "happy",
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/songs/upload", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	rec := upload()
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Song model.Song `json:"song"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "Song One.mp3", resp.Song.Title, "title falls back to the filename")
	assert.Equal(t, model.StringList{"pop", "rock"}, resp.Song.Genres)
	require.Len(t, env.store.songs, 1)
	key := env.store.songs[0].ObjectKey
	assert.Equal(t, "songs/"+resp.Song.ID+".mp3", key)
	assert.Equal(t, []byte("ID3data"), env.objects.uploaded[key])

	env.store.failSongCreate = true
	rec = upload()
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, env.objects.removed, 1, "the object is removed when the row cannot be written")
	assert.NotContains(t, env.objects.uploaded, env.objects.removed[0])

	env.handler.Objects = nil
	rec = upload()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCatalogChangesInvalidateRecommendations(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")
	results := &countingResults{}
	env.handler.Recommender = recommend.NewService(memJournal{env.store}, memSongs{env.store}, nil, results)

	body, ct := multipartBody(t, "file", "New.mp3", []byte("ID3"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/songs/upload", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, results.catalogInvalid, "upload")

	env.handler.Scanner = fakeScanner{report: scanner.Report{Message: "Successfully processed 0 songs"}}
	rec = env.do(t, http.MethodPost, "/api/v1/songs/scan-local", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, results.catalogInvalid, "nothing imported")

	env.handler.Scanner = fakeScanner{report: scanner.Report{Added: 2}}
	rec = env.do(t, http.MethodPost, "/api/v1/songs/scan-local", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, results.catalogInvalid, "scan imported songs")
	assert.Zero(t, results.userInvalid)
}

func TestScanLocal_NotConfigured(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/songs/scan-local", env.token(t, "u1"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnalytics(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")

	rec := env.do(t, http.MethodPost, "/api/v1/analytics/events/mood-song", tok, map[string]interface{}{"moodLabel": "happy"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "song is required")

	rec = env.do(t, http.MethodPost, "/api/v1/analytics/events/mood-song", tok, map[string]interface{}{
		"moodLabel": "happy",
		"song":      map[string]interface{}{"id": "s1", "title": "T", "moodTags": []string{"happy"}, "duration": 180},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, env.store.events, 1)
	e := env.store.events[0]
	assert.Equal(t, model.EventMoodSong, e.Type)
	assert.Equal(t, model.StringList{"happy"}, e.SongGenres, "mood tags stand in for missing genres")

	rec = env.do(t, http.MethodGet, "/api/v1/analytics/summary", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"journalCount":0`)
}

func TestGames(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")

	rec := env.do(t, http.MethodPost, "/api/v1/games/record", tok, map[string]interface{}{"gameSlug": "breathing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "durationSec is required")
	rec = env.do(t, http.MethodPost, "/api/v1/games/record", tok, map[string]interface{}{"durationSec": 60})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "gameSlug is required")
	rec = env.do(t, http.MethodPost, "/api/v1/games/record", tok, map[string]interface{}{
		"gameSlug": "breathing", "durationSec": 60, "preMood": "grumpy",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, body := range []map[string]interface{}{
		{"gameSlug": "breathing", "durationSec": 60, "preMood": "Anxious", "postMood": "calm", "score": 8},
		{"gameSlug": "breathing", "durationSec": 120, "score": 6},
		{"gameSlug": "memory", "durationSec": 90},
	} {
		rec = env.do(t, http.MethodPost, "/api/v1/games/record", tok, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	var last model.GameSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &last))
	assert.Equal(t, "memory", last.GameSlug)
	assert.Equal(t, "u1", last.UserID)
	assert.Equal(t, "anxious", env.store.games[0].PreMood)

	rec = env.do(t, http.MethodGet, "/api/v1/games/user/me", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []model.GameSession
	decode(t, rec, &sessions)
	require.Len(t, sessions, 3)
	assert.Equal(t, "memory", sessions[0].GameSlug, "newest first")

	rec = env.do(t, http.MethodGet, "/api/v1/games/stats", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		ByGame []model.GameStats `json:"byGame"`
	}
	decode(t, rec, &stats)
	require.Len(t, stats.ByGame, 2)
	assert.Equal(t, "breathing", stats.ByGame[0].GameSlug)
	assert.Equal(t, int64(2), stats.ByGame[0].TotalSessions)
	assert.Equal(t, int64(180), stats.ByGame[0].TotalDuration)
	require.NotNil(t, stats.ByGame[0].AvgScore)
	assert.InDelta(t, 7.0, *stats.ByGame[0].AvgScore, 1e-9)
	assert.Nil(t, stats.ByGame[1].AvgScore)

	rec = env.do(t, http.MethodGet, "/api/v1/analytics/summary", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"gameSessionCount":3`)

	rec = env.do(t, http.MethodGet, "/api/v1/games/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDailyTrend(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }
	got := dailyTrend([]model.JournalEntry{
		{Date: day(1), Intensity: 4},
		{Date: day(1), Intensity: 6},
		{Date: day(3), Intensity: 9},
	})
	require.Len(t, got, 2)
	assert.Equal(t, trendPoint{Date: "2026-01-01", AvgIntensity: 5, TotalEntries: 2}, got[0])
	assert.Equal(t, "2026-01-03", got[1].Date)
	assert.NotNil(t, dailyTrend(nil))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Invalid("bad"), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", apperr.ErrNotFound), http.StatusNotFound},
		{&apperr.ConfigurationError{Capability: "embedding", Reason: "no token"}, http.StatusServiceUnavailable},
		{fmt.Errorf("call: %w", &apperr.ProviderError{Model: "m", StatusCode: 503}), http.StatusBadGateway},
		{fmt.Errorf("%w: expired", auth.ErrInvalidToken), http.StatusUnauthorized},
		{repository.ErrDuplicateUser, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
