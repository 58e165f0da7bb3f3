package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/minio/minio-go/v7"

	"MelodyMind/config"
	"MelodyMind/core/apperr"
	"MelodyMind/core/auth"
	"MelodyMind/core/inference"
	"MelodyMind/core/playlist"
	"MelodyMind/core/recommend"
	"MelodyMind/core/scanner"
	"MelodyMind/logger"
	"MelodyMind/repository"
)

// ObjectStore is the part of storage.SongStore the handlers need.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (minio.UploadInfo, error)
	Remove(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string) (*url.URL, error)
}

// LocalScanner imports the local music directory.
type LocalScanner interface {
	Scan(ctx context.Context) (*scanner.Report, error)
}

// Deps 是 APIHandler 的全部依赖。Objects 和 Scanner 可以为空
type Deps struct {
	Config      *config.Config
	Tokens      *auth.TokenManager
	Users       repository.UserRepository
	Songs       repository.SongRepository
	Playlists   repository.PlaylistRepository
	Journal     repository.JournalRepository
	Moods       repository.MoodDetectionRepository
	Analytics   repository.AnalyticsRepository
	Games       repository.GameSessionRepository
	Objects     ObjectStore
	Scanner     LocalScanner
	Inference   *inference.Set
	Recommender *recommend.Service
	Generator   *playlist.Generator
}

// APIHandler holds the dependencies shared by every HTTP handler.
type APIHandler struct {
	Deps
	upgrader websocket.Upgrader
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(deps Deps) *APIHandler {
	return &APIHandler{
		Deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}
}

type contextKey string

const userIDKey contextKey = "userID"

// AuthMiddleware is a middleware function that checks for a valid JWT token
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			writeMessage(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := h.Tokens.ParseToken(parts[1])
		if err != nil {
			logger.Debug("[Auth] token rejected", logger.ErrorField(err))
			writeMessage(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", errors.New("user ID not found in context")
	}
	return userID, nil
}

// requireUser 只会在 AuthMiddleware 之后调用
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return userID, true
}

func notConfigured(capability, reason string) error {
	return &apperr.ConfigurationError{Capability: capability, Reason: reason}
}
