package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

// Config aggregates runtime configuration for the chunk relay API.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Postgres PostgresConfig `koanf:"postgres"`
	GitLab   GitLabConfig   `koanf:"gitlab"`
	Upload   UploadConfig   `koanf:"upload"`
	MinIO    MinIOConfig    `koanf:"minio"`
	Redis    RedisConfig    `koanf:"redis"`
	Auth     AuthConfig     `koanf:"auth"`
	CORS     CORSConfig     `koanf:"cors"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Tracing  TracingConfig  `koanf:"tracing"`
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port" validate:"gt=0,lt=65536"`
	ReadTimeout  time.Duration `koanf:"readtimeout"`
	WriteTimeout time.Duration `koanf:"writetimeout"`
	IdleTimeout  time.Duration `koanf:"idletimeout"`
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains the metadata database connection details.
type PostgresConfig struct {
	URL      string `koanf:"url" validate:"required"`
	MaxConns int32  `koanf:"maxconns" validate:"gte=0"`
}

// GitLabConfig points at the repository hosting service.
type GitLabConfig struct {
	URL     string `koanf:"url" validate:"required,url"`
	Token   string `koanf:"token" validate:"required"`
	GroupID int    `koanf:"groupid" validate:"gt=0"`
	Branch  string `koanf:"branch" validate:"required"`
}

// UploadConfig governs chunk handling.
type UploadConfig struct {
	// ChunkSize is a hint for clients; chunks of any size are accepted.
	ChunkSize      int64  `koanf:"chunksize" validate:"gt=0"`
	StagingBackend string `koanf:"stagingbackend" validate:"oneof=local minio"`
	StagingDir     string `koanf:"stagingdir"`
}

// MinIOConfig carries MinIO connection and bucket information for object staging.
type MinIOConfig struct {
	Endpoint        string `koanf:"endpoint"`
	AccessKeyID     string `koanf:"accesskeyid"`
	SecretAccessKey string `koanf:"secretaccesskey"`
	Bucket          string `koanf:"bucket"`
	UseSSL          bool   `koanf:"usessl"`
	Region          string `koanf:"region"`
	// ExpiryDays removes staged objects left behind by failed commits. Zero
	// keeps them forever.
	ExpiryDays int `koanf:"expirydays" validate:"gte=0"`
}

// RedisConfig enables the repository listing cache when Addr is set.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	CacheTTL time.Duration `koanf:"cachettl"`
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// AuthConfig groups credential settings.
type AuthConfig struct {
	Username     string        `koanf:"username" validate:"required"`
	PasswordHash string        `koanf:"passwordhash"`
	TokenSecret  string        `koanf:"tokensecret"`
	TokenTTL     time.Duration `koanf:"tokenttl"`
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	Origins string `koanf:"origins"`
}

// AllowedOrigins splits the comma separated origin list.
func (c CORSConfig) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.Origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `koanf:"level"`
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string `koanf:"path"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"servicename"`
}

// envKeys maps environment variables onto configuration keys. Variables not
// listed here are ignored.
var envKeys = map[string]string{
	"API_HOST":               "server.host",
	"API_PORT":               "server.port",
	"API_READ_TIMEOUT":       "server.readtimeout",
	"API_WRITE_TIMEOUT":      "server.writetimeout",
	"API_IDLE_TIMEOUT":       "server.idletimeout",
	"POSTGRES_URL":           "postgres.url",
	"POSTGRES_MAX_CONNS":     "postgres.maxconns",
	"GITLAB_URL":             "gitlab.url",
	"GITLAB_TOKEN":           "gitlab.token",
	"GITLAB_GROUP_ID":        "gitlab.groupid",
	"GITLAB_BRANCH":          "gitlab.branch",
	"CHUNK_SIZE":             "upload.chunksize",
	"STAGING_BACKEND":        "upload.stagingbackend",
	"STAGING_DIR":            "upload.stagingdir",
	"MINIO_ENDPOINT":         "minio.endpoint",
	"MINIO_ROOT_USER":        "minio.accesskeyid",
	"MINIO_ROOT_PASSWORD":    "minio.secretaccesskey",
	"MINIO_BUCKET":           "minio.bucket",
	"MINIO_USE_SSL":          "minio.usessl",
	"MINIO_REGION":           "minio.region",
	"MINIO_STAGING_EXPIRY":   "minio.expirydays",
	"REDIS_ADDR":             "redis.addr",
	"REDIS_PASSWORD":         "redis.password",
	"REDIS_DB":               "redis.db",
	"REPOSITORY_CACHE_TTL":   "redis.cachettl",
	"BASIC_AUTH_USERNAME":    "auth.username",
	"PASSWORD_HASH":          "auth.passwordhash",
	"AUTH_TOKEN_SECRET":      "auth.tokensecret",
	"AUTH_TOKEN_TTL":         "auth.tokenttl",
	"ALLOWED_ORIGINS":        "cors.origins",
	"LOG_LEVEL":              "log.level",
	"METRICS_PATH":           "metrics.path",
	"OTEL_ENABLED":           "tracing.enabled",
	"OTEL_EXPORTER_ENDPOINT": "tracing.endpoint",
	"OTEL_SERVICE_NAME":      "tracing.servicename",
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.host":           "0.0.0.0",
		"server.port":           8001,
		"server.readtimeout":    60 * time.Second,
		"server.writetimeout":   60 * time.Second,
		"server.idletimeout":    120 * time.Second,
		"postgres.maxconns":     int32(10),
		"gitlab.url":            "https://gitlab.com",
		"gitlab.groupid":        109704268,
		"gitlab.branch":         "main",
		"upload.chunksize":      int64(5242880),
		"upload.stagingbackend": "local",
		"upload.stagingdir":     "",
		"minio.endpoint":        "localhost:9000",
		"minio.bucket":          "chunkrelay-staging",
		"minio.expirydays":      7,
		"redis.cachettl":        30 * time.Second,
		"auth.username":         "admin",
		"auth.tokenttl":         12 * time.Hour,
		"cors.origins":          "http://localhost:3000",
		"log.level":             "info",
		"metrics.path":          "/metrics",
		"tracing.endpoint":      "localhost:4318",
		"tracing.servicename":   "chunkrelay",
	}
}

var validate = validator.New()

// Load reads configuration from environment variables on top of defaults and
// validates the result.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if err := k.Load(env.Provider("", ".", func(key string) string {
		return envKeys[key]
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if strings.TrimSpace(cfg.Upload.StagingDir) == "" {
		cfg.Upload.StagingDir = filepath.Join(os.TempDir(), "chunkrelay_chunks")
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
