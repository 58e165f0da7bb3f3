package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr     string
	ClientOrigin string

	// MySQL
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO配置，远程上传的歌曲存放在这里
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string
	PresignTTL     time.Duration

	// JWT
	JWTSecret string
	JWTTTL    time.Duration

	// 本地音乐目录
	MusicDir string

	// Logging
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Inference provider (Hugging Face inference API)
	HFAPIToken     string
	HFBaseURL      string
	HFImageModelID string
	HFTextModelID  string
	HFAudioModelID string
	HFEmbedModelID string
	AIFaceAdapter  string // "mock" or "hf"
	AITextAdapter  string
	AIAudioAdapter string
	AIRecoAdapter  string
	HFTimeout      time.Duration
	RerankFanout   int
	EmbeddingTTL   time.Duration
	RecommendTTL   time.Duration
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "12h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		ClientOrigin: getEnv("CLIENT_ORIGIN", "*"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for the password
		DBName:     getEnv("DB_NAME", "melodymind"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),     // 默认使用0号数据库

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "melodymind"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		PresignTTL:     getEnvDuration("MINIO_PRESIGN_TTL", time.Hour),

		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTTTL:    getEnvDuration("JWT_TTL", 7*24*time.Hour),

		MusicDir: getEnv("MUSIC_DIR", "music"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPath:       getEnv("LOG_PATH", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),

		HFAPIToken:     os.Getenv("HF_API_TOKEN"),
		HFBaseURL:      getEnv("HF_BASE_URL", "https://api-inference.huggingface.co"),
		HFImageModelID: getEnv("HF_IMAGE_MODEL_ID", "trpakov/vit-face-expression"),
		HFTextModelID:  getEnv("HF_TEXT_MODEL_ID", "SamLowe/roberta-base-go_emotions"),
		HFAudioModelID: getEnv("HF_AUDIO_MODEL_ID", "superb/hubert-large-superb-er"),
		HFEmbedModelID: getEnv("HF_EMBED_MODEL_ID", "sentence-transformers/all-MiniLM-L6-v2"),
		AIFaceAdapter:  getEnv("AI_FACE_ADAPTER", "mock"),
		AITextAdapter:  getEnv("AI_TEXT_ADAPTER", "mock"),
		AIAudioAdapter: getEnv("AI_AUDIO_ADAPTER", "mock"),
		AIRecoAdapter:  getEnv("AI_RECO_ADAPTER", "mock"),
		HFTimeout:      getEnvDuration("HF_TIMEOUT", 30*time.Second),
		RerankFanout:   getEnvInt("RERANK_FANOUT", 4),
		EmbeddingTTL:   getEnvDuration("EMBEDDING_CACHE_TTL", 7*24*time.Hour),
		RecommendTTL:   getEnvDuration("RECOMMEND_CACHE_TTL", 2*time.Minute),
	}
}
