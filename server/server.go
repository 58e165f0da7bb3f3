package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"MelodyMind/cache"
	"MelodyMind/config"
	"MelodyMind/core/auth"
	"MelodyMind/core/inference"
	"MelodyMind/core/playlist"
	"MelodyMind/core/recommend"
	"MelodyMind/core/scanner"
	"MelodyMind/db"
	"MelodyMind/logger"
	"MelodyMind/repository"
	"MelodyMind/storage"
)

const scanWorkers = 4

func setCORSHeaders(w http.ResponseWriter, origin string) {
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
	w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
	w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
	if origin != "*" {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Add("Vary", "Origin")
	}
}

// corsMiddleware 允许前端跨域访问，Range 头用于音频拖动
func corsMiddleware(origin string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			setCORSHeaders(w, origin)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter registers every endpoint on a fresh router.
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	origin := "*"
	if h.Config != nil && h.Config.ClientOrigin != "" {
		origin = h.Config.ClientOrigin
	}
	router.Use(corsMiddleware(origin))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "service": "melodymind"})
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	// 用户认证相关的API端点
	api.HandleFunc("/auth/signup", h.SignupHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.LoginHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", h.AuthMiddleware(h.MeHandler)).Methods(http.MethodGet)

	// 歌曲
	api.HandleFunc("/songs", h.AuthMiddleware(h.ListSongsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/songs/upload", h.AuthMiddleware(h.UploadSongHandler)).Methods(http.MethodPost)
	api.HandleFunc("/songs/stream/{id}", h.StreamSongHandler).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/songs/scan-local", h.AuthMiddleware(h.ScanLocalHandler)).Methods(http.MethodPost)
	api.HandleFunc("/songs/local", h.AuthMiddleware(h.ListLocalSongsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/songs/by-mood/{mood}", h.AuthMiddleware(h.SongsByMoodHandler)).Methods(http.MethodGet)

	// 情绪检测
	api.HandleFunc("/mood/image", h.AuthMiddleware(h.DetectImageMoodHandler)).Methods(http.MethodPost)
	api.HandleFunc("/mood/text", h.AuthMiddleware(h.DetectTextMoodHandler)).Methods(http.MethodPost)
	api.HandleFunc("/mood/audio", h.AuthMiddleware(h.DetectAudioMoodHandler)).Methods(http.MethodPost)
	api.HandleFunc("/mood/history", h.AuthMiddleware(h.MoodHistoryHandler)).Methods(http.MethodGet)

	// 语音指令，ws 通过 ?token= 鉴权
	api.HandleFunc("/voice/command", h.AuthMiddleware(h.VoiceCommandHandler)).Methods(http.MethodPost)
	api.HandleFunc("/voice/analyze", h.AuthMiddleware(h.VoiceAnalyzeHandler)).Methods(http.MethodPost)
	api.HandleFunc("/voice/ws", h.VoiceWebSocketHandler).Methods(http.MethodGet)

	// 推荐
	api.HandleFunc("/recommendations", h.AuthMiddleware(h.RecommendationsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/recommendations/playlists", h.AuthMiddleware(h.SmartPlaylistHandler)).Methods(http.MethodPost)

	// 歌单，固定路径必须在 {id} 之前
	api.HandleFunc("/playlists", h.AuthMiddleware(h.CreatePlaylistHandler)).Methods(http.MethodPost)
	api.HandleFunc("/playlists/generate", h.AuthMiddleware(h.GeneratePlaylistHandler)).Methods(http.MethodPost)
	api.HandleFunc("/playlists/user/me/list", h.AuthMiddleware(h.ListMyPlaylistsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{id}", h.AuthMiddleware(h.GetPlaylistHandler)).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{id}", h.AuthMiddleware(h.UpdatePlaylistHandler)).Methods(http.MethodPut)
	api.HandleFunc("/playlists/{id}", h.AuthMiddleware(h.DeletePlaylistHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/playlists/{id}/items", h.AuthMiddleware(h.GetPlaylistItemsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{id}/items", h.AuthMiddleware(h.AddPlaylistItemHandler)).Methods(http.MethodPost)

	// 心情日记
	api.HandleFunc("/journal", h.AuthMiddleware(h.UpsertJournalHandler)).Methods(http.MethodPost)
	api.HandleFunc("/journal", h.AuthMiddleware(h.ListJournalHandler)).Methods(http.MethodGet)
	api.HandleFunc("/journal/month/{year}/{month}", h.AuthMiddleware(h.MonthJournalHandler)).Methods(http.MethodGet)
	api.HandleFunc("/journal/{id}", h.AuthMiddleware(h.GetJournalHandler)).Methods(http.MethodGet)

	// 统计
	api.HandleFunc("/analytics/summary", h.AuthMiddleware(h.AnalyticsSummaryHandler)).Methods(http.MethodGet)
	api.HandleFunc("/analytics/trends", h.AuthMiddleware(h.AnalyticsTrendsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/analytics/events/mood-song", h.AuthMiddleware(h.RecordMoodSongHandler)).Methods(http.MethodPost)

	// 小游戏
	api.HandleFunc("/games/record", h.AuthMiddleware(h.RecordGameSessionHandler)).Methods(http.MethodPost)
	api.HandleFunc("/games/user/me", h.AuthMiddleware(h.ListMyGameSessionsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/games/stats", h.AuthMiddleware(h.GameStatsHandler)).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not Found")
	})
	// 预检请求的方法不在路由上，mux 不会执行中间件，在这里应答
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			setCORSHeaders(w, origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		writeMessage(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return router
}

// BuildDeps wires the repositories, caches and core services. Redis and
// MinIO are optional: without Redis nothing is cached, without MinIO
// uploads answer 503.
func BuildDeps(ctx context.Context, cfg *config.Config) Deps {
	gdb := db.GormDB
	songRepo := repository.NewGormSongRepository(gdb)
	playlistRepo := repository.NewGormPlaylistRepository(gdb)
	journalRepo := repository.NewGormJournalRepository(gdb)

	deps := Deps{
		Config:    cfg,
		Tokens:    auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL),
		Users:     repository.NewGormUserRepository(gdb),
		Songs:     songRepo,
		Playlists: playlistRepo,
		Journal:   journalRepo,
		Moods:     repository.NewGormMoodDetectionRepository(gdb),
		Analytics: repository.NewGormAnalyticsRepository(gdb),
		Games:     repository.NewGormGameSessionRepository(gdb),
		Scanner:   scanner.New(cfg.MusicDir, songRepo, scanWorkers),
		Inference: inference.NewSet(cfg, nil),
	}

	store, err := storage.NewSongStore(cfg)
	if err == nil {
		err = store.EnsureBucket(ctx)
	}
	if err != nil {
		logger.Warn("[Server] object storage unavailable, uploads disabled", logger.ErrorField(err))
	} else {
		deps.Objects = store
	}

	rankerOpts := []recommend.Option{recommend.WithFanout(cfg.RerankFanout)}
	var results recommend.ResultCache
	if cache.RedisClient != nil {
		rankerOpts = append(rankerOpts, recommend.WithVectorCache(
			cache.NewEmbeddingCache(cache.RedisClient, cfg.HFEmbedModelID, cfg.EmbeddingTTL)))
		results = cache.NewRecommendationCache(cache.RedisClient, cfg.RecommendTTL)
	}
	ranker := recommend.NewRanker(deps.Inference, rankerOpts...)

	deps.Recommender = recommend.NewService(journalRepo, songRepo, ranker, results)
	deps.Generator = playlist.NewGenerator(songRepo, playlistRepo, playlist.WithRanker(ranker))
	return deps
}

// Start initializes and starts the HTTP server. It blocks until SIGINT or
// SIGTERM and then shuts down gracefully.
func Start(cfg *config.Config) error {
	if err := db.ConnectGormDB(cfg); err != nil {
		return err
	}
	defer db.CloseGormDB()
	if err := db.AutoMigrateModels(); err != nil {
		return err
	}

	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("[Server] redis unavailable, caching disabled", logger.ErrorField(err))
		_ = cache.CloseRedis()
		cache.RedisClient = nil
	} else {
		defer cache.CloseRedis()
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	deps := BuildDeps(initCtx, cfg)
	cancel()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      NewRouter(NewAPIHandler(deps)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // 本地扫描和大文件上传
		IdleTimeout:  120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[Server] listening", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-stop:
	}
	logger.Info("[Server] shutting down")

	// 创建一个5秒超时的上下文
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("[Server] stopped")
	return nil
}
