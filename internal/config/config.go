package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed matching.yaml
var matchingYAML []byte

type Config struct {
	Database DatabaseConfig
	Detector DetectorConfig
	Matching MatchingConfig
	Legacy   LegacyConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type DetectorConfig struct {
	URL          string // face detector service URL (defaults to http://localhost:8000)
	MaxImageSize int    // photos are downscaled to fit this size before upload (default 1920)
}

// MatchingConfig holds the face matching parameters. Defaults come from the
// embedded matching.yaml and can be overridden by environment variables.
type MatchingConfig struct {
	Tolerance          float64 `yaml:"tolerance"`           // maximum distance for a valid match
	AmbiguityMargin    float64 `yaml:"ambiguity_margin"`    // minimum gap to the runner-up
	EmbeddingDim       int     `yaml:"embedding_dim"`       // fixed embedding width
	DuplicateThreshold float64 `yaml:"duplicate_threshold"` // enrollment duplicate guard distance
}

type LegacyConfig struct {
	MySQLDSN string // DSN of the legacy MySQL deployment for one-shot imports
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

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var matching MatchingConfig
	if err := yaml.Unmarshal(matchingYAML, &matching); err != nil {
		// This is an embedded file so this error should never happen in practice.
		panic("failed to unmarshal embedded matching.yaml: " + err.Error())
	}

	matching.Tolerance = envFloat("FACE_TOLERANCE", matching.Tolerance)
	matching.AmbiguityMargin = envFloat("FACE_AMBIGUITY_MARGIN", matching.AmbiguityMargin)
	matching.EmbeddingDim = envInt("EMBEDDING_DIM", matching.EmbeddingDim)
	matching.DuplicateThreshold = envFloat("FACE_DUPLICATE_THRESHOLD", matching.DuplicateThreshold)

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Detector: DetectorConfig{
			URL:          os.Getenv("DETECTOR_URL"),
			MaxImageSize: envInt("DETECTOR_MAX_IMAGE_SIZE", 1920),
		},
		Matching: matching,
		Legacy: LegacyConfig{
			MySQLDSN: os.Getenv("LEGACY_MYSQL_DSN"),
		},
	}
}
