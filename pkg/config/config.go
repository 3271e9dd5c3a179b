package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	AI          AIConfig
	Designs     DesignsConfig
	Conversions ConversionsConfig
	QA          QAConfig
	Deployments DeploymentsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AIConfig points at the generative vision/text provider.
type AIConfig struct {
	BaseURL        string
	APIKey         string
	VisionModel    string
	AssistantModel string
	RequestTimeout time.Duration
	MaxOutputChars int
}

// DesignsConfig controls design file uploads.
type DesignsConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// ConversionsConfig tunes the design-to-HTML worker pool.
type ConversionsConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	ResultTTL         time.Duration
	CleanupInterval   time.Duration
	ProgressCacheTTL  time.Duration
}

// QAConfig governs QA check caching and document limits.
type QAConfig struct {
	CacheTTL      time.Duration
	MaxDocumentKB int
}

// DeploymentsConfig configures the marketing platform client.
type DeploymentsConfig struct {
	PlatformBaseURL   string
	PlatformClientID  string
	PlatformSecret    string
	StubMode          bool
	RequestTimeout    time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.AI = AIConfig{
		BaseURL:        v.GetString("AI_BASE_URL"),
		APIKey:         v.GetString("AI_API_KEY"),
		VisionModel:    v.GetString("AI_VISION_MODEL"),
		AssistantModel: v.GetString("AI_ASSISTANT_MODEL"),
		RequestTimeout: parseDuration(v.GetString("AI_REQUEST_TIMEOUT"), 90*time.Second),
		MaxOutputChars: v.GetInt("AI_MAX_OUTPUT_CHARS"),
	}

	maxDesignSize := v.GetInt64("DESIGNS_MAX_FILE_SIZE")
	if maxDesignSize <= 0 {
		maxDesignSize = 20 * 1024 * 1024
	}
	cfg.Designs = DesignsConfig{
		StorageDir:       v.GetString("DESIGNS_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("DESIGNS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("DESIGNS_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxDesignSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("DESIGNS_ALLOWED_MIME_TYPES")),
	}

	cfg.Conversions = ConversionsConfig{
		WorkerConcurrency: v.GetInt("CONVERSIONS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("CONVERSIONS_WORKER_RETRIES"),
		ResultTTL:         parseDuration(v.GetString("CONVERSIONS_RESULT_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("CONVERSIONS_CLEANUP_INTERVAL"), time.Hour),
		ProgressCacheTTL:  parseDuration(v.GetString("CONVERSIONS_PROGRESS_CACHE_TTL"), time.Minute),
	}

	cfg.QA = QAConfig{
		CacheTTL:      parseDuration(v.GetString("QA_CACHE_TTL"), 5*time.Minute),
		MaxDocumentKB: v.GetInt("QA_MAX_DOCUMENT_KB"),
	}

	cfg.Deployments = DeploymentsConfig{
		PlatformBaseURL:   v.GetString("PLATFORM_BASE_URL"),
		PlatformClientID:  v.GetString("PLATFORM_CLIENT_ID"),
		PlatformSecret:    v.GetString("PLATFORM_CLIENT_SECRET"),
		StubMode:          v.GetBool("PLATFORM_STUB_MODE"),
		RequestTimeout:    parseDuration(v.GetString("PLATFORM_REQUEST_TIMEOUT"), 15*time.Second),
		WorkerConcurrency: v.GetInt("DEPLOYMENTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("DEPLOYMENTS_WORKER_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "emailgen_studio")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("AI_BASE_URL", "https://api.openai.com")
	v.SetDefault("AI_API_KEY", "")
	v.SetDefault("AI_VISION_MODEL", "gpt-4o")
	v.SetDefault("AI_ASSISTANT_MODEL", "gpt-4o-mini")
	v.SetDefault("AI_REQUEST_TIMEOUT", "90s")
	v.SetDefault("AI_MAX_OUTPUT_CHARS", 200000)

	v.SetDefault("DESIGNS_STORAGE_DIR", "./uploads")
	v.SetDefault("DESIGNS_SIGNED_URL_SECRET", "dev_designs_secret")
	v.SetDefault("DESIGNS_SIGNED_URL_TTL", "30m")
	v.SetDefault("DESIGNS_MAX_FILE_SIZE", 20*1024*1024)
	v.SetDefault("DESIGNS_ALLOWED_MIME_TYPES", "image/png,image/jpeg,application/pdf")

	v.SetDefault("CONVERSIONS_WORKER_CONCURRENCY", 2)
	v.SetDefault("CONVERSIONS_WORKER_RETRIES", 3)
	v.SetDefault("CONVERSIONS_RESULT_TTL", "24h")
	v.SetDefault("CONVERSIONS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("CONVERSIONS_PROGRESS_CACHE_TTL", "1m")

	v.SetDefault("QA_CACHE_TTL", "5m")
	v.SetDefault("QA_MAX_DOCUMENT_KB", 512)

	v.SetDefault("PLATFORM_BASE_URL", "https://marketing.example.com")
	v.SetDefault("PLATFORM_CLIENT_ID", "")
	v.SetDefault("PLATFORM_CLIENT_SECRET", "")
	v.SetDefault("PLATFORM_STUB_MODE", true)
	v.SetDefault("PLATFORM_REQUEST_TIMEOUT", "15s")
	v.SetDefault("DEPLOYMENTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("DEPLOYMENTS_WORKER_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
