package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

type Config struct {
	Web       WebConfig
	Match     MatchConfig
	Gallery   GalleryConfig
	Ledger    LedgerConfig
	Embedding EmbeddingConfig
	Database  DatabaseConfig
	MariaDB   MariaDBConfig
	MQTT      MQTTConfig
	Log       LogConfig
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins string  // comma-separated CORS allow-list; localhost is always allowed
	RateLimit      float64 // recognition requests per second per client, 0 disables
	RateBurst      int
	TrustProxy     bool // take the client address from X-Forwarded-For / X-Real-IP
}

type MatchConfig struct {
	EmbeddingDim int
	Threshold    float64 // inclusive maximum distance
	Metric       string  // euclidean or cosine
}

type GalleryConfig struct {
	Source      string // dir, manifest or postgres
	Dir         string
	Manifest    string
	RefreshCron string // cron spec for periodic refresh (optional)
	ANNMinSize  int    // enable the HNSW candidate index at this size, 0 = exact scan only
}

type LedgerConfig struct {
	Backend  string // file, bolt, memory, postgres or mariadb
	Path     string
	Timezone string
	Period   string        // daily or a Go duration
	CacheTTL time.Duration // positive membership cache, 0 disables
}

type EmbeddingConfig struct {
	URL          string // defaults to http://localhost:8000
	MaxImageSize int
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MariaDBConfig struct {
	DSN string // e.g. attendance:secret@tcp(mariadb:3306)/attendance?parseTime=true
}

type MQTTConfig struct {
	Broker   string // e.g. tcp://localhost:1883, empty disables event publishing
	Topic    string
	ClientID string
	Username string
	Password string
}

type LogConfig struct {
	Level  string
	Format string // text or json
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a non-negative float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a Go duration (e.g. "10m").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	port := envInt("WEB_PORT", envInt("PORT", constants.DefaultPort))

	return &Config{
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           port,
			AllowedOrigins: os.Getenv("WEB_ALLOWED_ORIGINS"),
			RateLimit:      envFloat("WEB_RATE_LIMIT", constants.DefaultRateLimit),
			RateBurst:      envInt("WEB_RATE_BURST", constants.DefaultRateBurst),
			TrustProxy:     envBool("WEB_TRUST_PROXY", false),
		},
		Match: MatchConfig{
			EmbeddingDim: envInt("MATCH_EMBEDDING_DIM", constants.DefaultEmbeddingDim),
			Threshold:    envFloat("MATCH_THRESHOLD", constants.DefaultMatchThreshold),
			Metric:       envString("MATCH_METRIC", "euclidean"),
		},
		Gallery: GalleryConfig{
			Source:      envString("GALLERY_SOURCE", "dir"),
			Dir:         envString("GALLERY_DIR", constants.DefaultGalleryDir),
			Manifest:    envString("GALLERY_MANIFEST", constants.DefaultGalleryManifest),
			RefreshCron: os.Getenv("GALLERY_REFRESH_CRON"),
			ANNMinSize:  envInt("GALLERY_ANN_MIN_SIZE", 0),
		},
		Ledger: LedgerConfig{
			Backend:  envString("LEDGER_BACKEND", "file"),
			Path:     envString("LEDGER_PATH", constants.DefaultLedgerPath),
			Timezone: envString("LEDGER_TIMEZONE", "Local"),
			Period:   envString("LEDGER_PERIOD", constants.DefaultLedgerPeriod),
			CacheTTL: envDuration("LEDGER_CACHE_TTL", 0),
		},
		Embedding: EmbeddingConfig{
			URL:          os.Getenv("EMBEDDING_URL"),
			MaxImageSize: envInt("EMBEDDING_MAX_IMAGE_SIZE", constants.MaxImageSize),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		MariaDB: MariaDBConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			Topic:    envString("MQTT_TOPIC", "attendance/events"),
			ClientID: envString("MQTT_CLIENT_ID", "face-attendance"),
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
	}
}

// Location returns the time zone used for ledger period keys.
func (c *LedgerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks enum values and the settings each selected backend needs.
func (c *Config) Validate() error {
	var errs []error

	if c.Match.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_EMBEDDING_DIM must be positive, got %d", c.Match.EmbeddingDim))
	}
	switch strings.ToLower(c.Match.Metric) {
	case "euclidean", "cosine":
	default:
		errs = append(errs, fmt.Errorf("MATCH_METRIC must be euclidean or cosine, got %q", c.Match.Metric))
	}

	switch c.Gallery.Source {
	case "dir", "manifest":
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("GALLERY_SOURCE=postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("GALLERY_SOURCE must be dir, manifest or postgres, got %q", c.Gallery.Source))
	}

	switch c.Ledger.Backend {
	case "file", "bolt", "memory":
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("LEDGER_BACKEND=postgres requires DATABASE_URL"))
		}
	case "mariadb":
		if c.MariaDB.DSN == "" {
			errs = append(errs, errors.New("LEDGER_BACKEND=mariadb requires MARIADB_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("LEDGER_BACKEND must be file, bolt, memory, postgres or mariadb, got %q", c.Ledger.Backend))
	}
	if _, err := c.Ledger.Location(); err != nil {
		errs = append(errs, err)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
