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

// Media provider names accepted by MEDIA_PROVIDER.
const (
	MediaProviderCloudinary = "cloudinary"
	MediaProviderLocal      = "local"
)

type Config struct {
	Env  string
	Port int

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Crypto   CryptoConfig
	Media    MediaConfig
	Session  SessionConfig
	Cache    CacheConfig
	Exports  ExportsConfig
	Cleanup  CleanupConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CryptoConfig carries the secret the field cipher key is derived from.
// The key is derived once at startup and injected into the cipher; it is
// never read again during the process lifetime.
type CryptoConfig struct {
	SecretKey string
}

// MediaConfig selects and configures the image host.
type MediaConfig struct {
	Provider       string
	CloudName      string
	APIKey         string
	APISecret      string
	UploadFolder   string
	UploadTimeout  time.Duration
	LocalDir       string
	PublicBaseURL  string
	MaxUploadBytes int64
}

// SessionConfig configures the token issued on a successful login.
type SessionConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
}

// CacheConfig tunes the roster list cache.
type CacheConfig struct {
	ListTTL time.Duration
}

// ExportsConfig gates the roster export endpoint.
type ExportsConfig struct {
	Enabled bool
}

// CleanupConfig tunes the background media cleanup queue.
type CleanupConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
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
		Enabled:  v.GetBool("ENABLE_REDIS_CACHE"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Crypto = CryptoConfig{SecretKey: v.GetString("SECRET_KEY")}

	maxUpload := v.GetInt64("MEDIA_MAX_UPLOAD_SIZE")
	if maxUpload <= 0 {
		maxUpload = 20 * 1024 * 1024
	}
	cfg.Media = MediaConfig{
		Provider:       strings.ToLower(v.GetString("MEDIA_PROVIDER")),
		CloudName:      v.GetString("CLOUDINARY_CLOUD_NAME"),
		APIKey:         v.GetString("CLOUDINARY_API_KEY"),
		APISecret:      v.GetString("CLOUDINARY_API_SECRET"),
		UploadFolder:   v.GetString("MEDIA_UPLOAD_FOLDER"),
		UploadTimeout:  parseDuration(v.GetString("MEDIA_UPLOAD_TIMEOUT"), time.Minute),
		LocalDir:       v.GetString("MEDIA_LOCAL_DIR"),
		PublicBaseURL:  strings.TrimRight(v.GetString("MEDIA_PUBLIC_BASE_URL"), "/"),
		MaxUploadBytes: maxUpload,
	}

	cfg.Session = SessionConfig{
		TokenSecret: v.GetString("SESSION_TOKEN_SECRET"),
		TokenTTL:    parseDuration(v.GetString("SESSION_TOKEN_TTL"), time.Hour),
	}

	cfg.Cache = CacheConfig{
		ListTTL: parseDuration(v.GetString("STUDENT_LIST_CACHE_TTL"), time.Minute),
	}

	cfg.Exports = ExportsConfig{Enabled: v.GetBool("ENABLE_EXPORTS")}

	cfg.Cleanup = CleanupConfig{
		Workers:    v.GetInt("CLEANUP_WORKERS"),
		MaxRetries: v.GetInt("CLEANUP_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("CLEANUP_RETRY_DELAY"), 5*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 5002)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "student_records")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS_CACHE", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SECRET_KEY", "default_secret")

	v.SetDefault("MEDIA_PROVIDER", MediaProviderLocal)
	v.SetDefault("MEDIA_UPLOAD_FOLDER", "data_entry_app")
	v.SetDefault("MEDIA_UPLOAD_TIMEOUT", "60s")
	v.SetDefault("MEDIA_LOCAL_DIR", "./uploads")
	v.SetDefault("MEDIA_PUBLIC_BASE_URL", "")
	v.SetDefault("MEDIA_MAX_UPLOAD_SIZE", 20*1024*1024)

	v.SetDefault("SESSION_TOKEN_SECRET", "dev_session_secret")
	v.SetDefault("SESSION_TOKEN_TTL", "1h")

	v.SetDefault("STUDENT_LIST_CACHE_TTL", "1m")
	v.SetDefault("ENABLE_EXPORTS", true)

	v.SetDefault("CLEANUP_WORKERS", 1)
	v.SetDefault("CLEANUP_MAX_RETRIES", 3)
	v.SetDefault("CLEANUP_RETRY_DELAY", "5s")
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
