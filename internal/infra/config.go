package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	AllowedOrigins []string

	DBMaxConns       int
	DBConnectTimeout time.Duration

	StorageBackend string
	StoragePath    string
	StorageBaseURL string

	ObjectEndpoint      string
	ObjectAccessKey     string
	ObjectSecretKey     string
	ObjectBucket        string
	ObjectRegion        string
	ObjectUseSSL        bool
	ObjectPublicBaseURL string
	ObjectPresignExpiry time.Duration

	DriveCredentialsJSON string
	DriveCredentialsFile string
	DriveParentFolderID  string

	GeminiAPIKey        string
	GeminiModel         string
	GeminiBaseURL       string
	GeminiRatePerMin    int
	GenerationTimeout   time.Duration
	WorkerConcurrency   int
	WorkerQueueSize     int
	MaxUploadBytes      int64
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
	RateLimitPerMin     int
	ShutdownGracePeriod time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		DBMaxConns:       getEnvInt("DB_MAX_CONNS", 0),
		DBConnectTimeout: time.Second * time.Duration(getEnvInt("DB_CONNECT_TIMEOUT_SECONDS", 10)),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		StoragePath:    getEnv("STORAGE_PATH", "./uploads"),

		ObjectEndpoint:      os.Getenv("OBJECT_ENDPOINT"),
		ObjectAccessKey:     os.Getenv("OBJECT_ACCESS_KEY"),
		ObjectSecretKey:     os.Getenv("OBJECT_SECRET_KEY"),
		ObjectBucket:        os.Getenv("OBJECT_BUCKET"),
		ObjectRegion:        os.Getenv("OBJECT_REGION"),
		ObjectUseSSL:        getEnvBool("OBJECT_USE_SSL", true),
		ObjectPublicBaseURL: os.Getenv("OBJECT_PUBLIC_BASE_URL"),
		ObjectPresignExpiry: time.Minute * time.Duration(getEnvInt("OBJECT_PRESIGN_MINUTES", 60)),

		DriveCredentialsJSON: os.Getenv("GOOGLE_DRIVE_CREDENTIALS_JSON"),
		DriveCredentialsFile: os.Getenv("GOOGLE_DRIVE_CREDENTIALS_FILE"),
		DriveParentFolderID:  os.Getenv("GOOGLE_DRIVE_PARENT_FOLDER_ID"),

		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:       getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiRatePerMin:    getEnvInt("GEMINI_RATE_PER_MINUTE", 0),
		GenerationTimeout:   time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 180)),
		WorkerConcurrency:   getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerQueueSize:     getEnvInt("WORKER_QUEUE_SIZE", 64),
		MaxUploadBytes:      int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		ShutdownGracePeriod: time.Second * time.Duration(getEnvInt("SHUTDOWN_GRACE_SECONDS", 30)),
	}

	cfg.StorageBaseURL = strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+cfg.Port+"/uploads"), "/")

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.StorageBackend {
	case "local", "object", "drive":
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be one of local, object, drive (got %q)", cfg.StorageBackend)
	}

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 1
	}
	if cfg.DBConnectTimeout <= 0 {
		cfg.DBConnectTimeout = 10 * time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
