package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/me-in-moments/internal/imageproc"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Database  DatabaseConfig  `yaml:"database"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Match     MatchConfig     `yaml:"match"`
	Web       WebConfig       `yaml:"web"`
}

type EmbeddingConfig struct {
	URL          string        `yaml:"url"`
	Model        string        `yaml:"model"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxImageSize int           `yaml:"max_image_size"` // longest side sent to the server, 0 disables resizing
	MinDetScore  float64       `yaml:"min_det_score"`
	Dim          int           `yaml:"dim"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"` // PostgreSQL connection URL, empty keeps the cache in memory
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type WorkspaceConfig struct {
	Dir        string   `yaml:"dir"` // empty uses the system temp dir
	Extensions []string `yaml:"extensions"`
}

type MatchConfig struct {
	DefaultThreshold float64 `yaml:"default_threshold"`
	SuggestedMin     float64 `yaml:"suggested_min"`
	SuggestedMax     float64 `yaml:"suggested_max"`
	Preprocess       string  `yaml:"preprocess"`
}

type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
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

// envFloat reads an environment variable as a float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a positive duration ("30s").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Defaults returns the configuration from the embedded defaults.yaml.
func Defaults() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedded defaults.yaml: %w", err)
	}
	return &cfg, nil
}

// Load reads the embedded defaults and applies environment overrides.
func Load() (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	cfg.Embedding.URL = envString("EMBEDDING_URL", cfg.Embedding.URL)
	cfg.Embedding.Model = envString("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.Timeout = envDuration("EMBEDDING_TIMEOUT", cfg.Embedding.Timeout)
	cfg.Embedding.MaxImageSize = envInt("EMBEDDING_MAX_IMAGE_SIZE", cfg.Embedding.MaxImageSize)
	cfg.Embedding.MinDetScore = envFloat("EMBEDDING_MIN_DET_SCORE", cfg.Embedding.MinDetScore)
	cfg.Embedding.Dim = envInt("EMBEDDING_DIM", cfg.Embedding.Dim)

	cfg.Database.URL = envString("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)

	cfg.Workspace.Dir = envString("WORKSPACE_DIR", cfg.Workspace.Dir)

	cfg.Match.DefaultThreshold = envFloat("MATCH_THRESHOLD", cfg.Match.DefaultThreshold)
	cfg.Match.Preprocess = envString("MATCH_PREPROCESS", cfg.Match.Preprocess)

	cfg.Web.Host = envString("WEB_HOST", cfg.Web.Host)
	cfg.Web.Port = envInt("WEB_PORT", cfg.Web.Port)

	return cfg, nil
}

// Validate checks values that would otherwise fail late during a run.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Embedding.URL) == "" {
		errs = append(errs, errors.New("embedding URL is required"))
	}
	if c.Embedding.Timeout <= 0 {
		errs = append(errs, errors.New("embedding timeout must be positive"))
	}
	if c.Embedding.MaxImageSize < 0 {
		errs = append(errs, errors.New("embedding max image size must not be negative"))
	}
	if c.Embedding.Dim < 0 {
		errs = append(errs, errors.New("embedding dim must not be negative"))
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid web port %d", c.Web.Port))
	}
	if c.Web.MaxUploadSize <= 0 {
		errs = append(errs, errors.New("max upload size must be positive"))
	}
	if c.Match.SuggestedMin > c.Match.SuggestedMax {
		errs = append(errs, errors.New("suggested threshold range is inverted"))
	}
	if _, err := imageproc.ParseMode(c.Match.Preprocess); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// PreprocessMode returns the parsed preprocessing mode.
func (c *MatchConfig) PreprocessMode() imageproc.Mode {
	mode, err := imageproc.ParseMode(c.Preprocess)
	if err != nil {
		return imageproc.ModeNone
	}
	return mode
}
