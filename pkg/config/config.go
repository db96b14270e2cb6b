package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage backends.
const (
	StorageFilesystem = "filesystem"
	StorageS3         = "s3"
	StoragePostgres   = "postgres"
)

// Metadata cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Overall eligibility policies.
const (
	PolicyEnrolled = "enrolled"
	PolicyAll      = "all"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	CORS        CORSConfig
	Log         LogConfig
	Storage     StorageConfig
	Store       StoreConfig
	Cache       CacheConfig
	Eligibility EligibilityConfig
	Upload      UploadConfig
	Access      AccessConfig

	// Warnings lists settings that were invalid and replaced by their defaults.
	Warnings []string
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

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects and configures the blob backend holding report documents.
type StorageConfig struct {
	Backend   string
	Container string
	Dir       string
	S3        S3Config
}

// S3Config configures the S3 blob backend.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

// StoreConfig tunes the retry policy applied to every backend call.
type StoreConfig struct {
	RetryAttempts int
	RetryDelay    time.Duration
}

// CacheConfig governs the report index cache.
type CacheConfig struct {
	Backend string
	TTL     time.Duration
}

// EligibilityConfig carries the overall eligibility policy flag.
type EligibilityConfig struct {
	OverallPolicy string
}

// UploadConfig bounds CSV uploads.
type UploadConfig struct {
	MaxBytes int64
}

// AccessConfig gates report viewing behind a password exchanged for a short-lived token.
type AccessConfig struct {
	PasswordHash string
	Secret       string
	TokenTTL     time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		Backend:   cfg.oneOf(v, "STORAGE_BACKEND", StorageFilesystem, StorageFilesystem, StorageS3, StoragePostgres),
		Container: v.GetString("STORAGE_CONTAINER"),
		Dir:       v.GetString("STORAGE_DIR"),
		S3: S3Config{
			Bucket:   v.GetString("S3_BUCKET"),
			Region:   v.GetString("S3_REGION"),
			Endpoint: v.GetString("S3_ENDPOINT"),
		},
	}

	attempts := v.GetInt("STORE_RETRY_ATTEMPTS")
	if attempts <= 0 {
		attempts = 3
	}
	cfg.Store = StoreConfig{
		RetryAttempts: attempts,
		RetryDelay:    cfg.duration(v, "STORE_RETRY_DELAY", 500*time.Millisecond),
	}

	cfg.Cache = CacheConfig{
		Backend: cfg.oneOf(v, "METADATA_CACHE_BACKEND", CacheMemory, CacheMemory, CacheRedis),
		TTL:     cfg.duration(v, "METADATA_CACHE_TTL", 5*time.Minute),
	}

	cfg.Eligibility = EligibilityConfig{
		OverallPolicy: cfg.oneOf(v, "ELIGIBILITY_OVERALL_POLICY", PolicyEnrolled, PolicyEnrolled, PolicyAll),
	}

	maxUpload := v.GetInt64("UPLOAD_MAX_BYTES")
	if maxUpload <= 0 {
		maxUpload = 10 * 1024 * 1024
	}
	cfg.Upload = UploadConfig{MaxBytes: maxUpload}

	cfg.Access = AccessConfig{
		PasswordHash: v.GetString("REPORT_ACCESS_PASSWORD_HASH"),
		Secret:       v.GetString("REPORT_ACCESS_SECRET"),
		TokenTTL:     cfg.duration(v, "REPORT_ACCESS_TTL", 30*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "eligibility_reports")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_BACKEND", StorageFilesystem)
	v.SetDefault("STORAGE_CONTAINER", "reports")
	v.SetDefault("STORAGE_DIR", "./reports")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")

	v.SetDefault("STORE_RETRY_ATTEMPTS", 3)
	v.SetDefault("STORE_RETRY_DELAY", "500ms")

	v.SetDefault("METADATA_CACHE_BACKEND", CacheMemory)
	v.SetDefault("METADATA_CACHE_TTL", "5m")

	v.SetDefault("ELIGIBILITY_OVERALL_POLICY", PolicyEnrolled)
	v.SetDefault("UPLOAD_MAX_BYTES", 10*1024*1024)

	v.SetDefault("REPORT_ACCESS_PASSWORD_HASH", "")
	v.SetDefault("REPORT_ACCESS_SECRET", "dev_report_access_secret")
	v.SetDefault("REPORT_ACCESS_TTL", "30m")
}

// oneOf returns the lower-cased value of key when it is one of allowed, otherwise fallback.
func (c *Config) oneOf(v *viper.Viper, key, fallback string, allowed ...string) string {
	raw := v.GetString(key)
	value := strings.ToLower(strings.TrimSpace(raw))
	for _, candidate := range allowed {
		if value == candidate {
			return value
		}
	}
	c.Warnings = append(c.Warnings, fmt.Sprintf("%s=%q is not one of %s, using %q", key, raw, strings.Join(allowed, "|"), fallback))
	return fallback
}

func (c *Config) duration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	raw := v.GetString(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s=%q is not a positive duration, using %s", key, raw, fallback))
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
