// Package config loads server settings from an optional .env file and the
// process environment.
//
// Values in the environment always win over values read from the file, so a
// checked-in .env can carry defaults for a deployment while individual keys
// are overridden by the MCP client configuration.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Environment keys.
const (
	KeyLogLevel          = "SEGMENT_MCP_LOG_LEVEL"
	KeyLogFormat         = "SEGMENT_MCP_LOG_FORMAT"
	KeyDefaultModel      = "SEGMENT_MCP_DEFAULT_MODEL"
	KeyModelServer       = "SEGMENT_MCP_MODEL_SERVER"
	KeyModelTimeout      = "SEGMENT_MCP_MODEL_TIMEOUT"
	KeyQuantization      = "SEGMENT_MCP_QUANTIZATION_BYTES"
	KeyMaxDimension      = "SEGMENT_MCP_MAX_DIMENSION"
	KeyCacheBytes        = "SEGMENT_MCP_CACHE_BYTES"
	KeyOverlayOpacity    = "SEGMENT_MCP_OVERLAY_OPACITY"
	KeyKMeansClusters    = "SEGMENT_MCP_KMEANS_CLUSTERS"
	KeyTextMinConfidence = "SEGMENT_MCP_TEXT_MIN_CONFIDENCE"
	KeyTextLanguage      = "SEGMENT_MCP_TEXT_LANGUAGE"
)

// Config holds every tunable of the server.
type Config struct {
	LogLevel  string
	LogFormat string

	// DefaultModel is loaded at startup, mirroring the demo page which
	// loads the PASCAL variant as soon as it opens.
	DefaultModel string

	// ModelServer is the base URL of the DeepLab model server.
	ModelServer  string
	ModelTimeout time.Duration

	// QuantizationBytes selects the deployed weight precision (1, 2 or 4).
	QuantizationBytes int

	// MaxDimension bounds the longest side of the image sent to a model.
	MaxDimension int

	// CacheBytes bounds the encoded image bytes kept by the source cache.
	CacheBytes int64

	OverlayOpacity float64

	KMeansClusters int

	TextMinConfidence float64
	TextLanguage      string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel:          "info",
		LogFormat:         "text",
		DefaultModel:      "pascal",
		ModelServer:       "http://localhost:8501",
		ModelTimeout:      60 * time.Second,
		QuantizationBytes: 4,
		MaxDimension:      513,
		CacheBytes:        64 << 20,
		OverlayOpacity:    0.5,
		KMeansClusters:    4,
		TextMinConfidence: 0.5,
		TextLanguage:      "eng",
	}
}

// Load reads envFile (if it exists) and then the process environment.
// An empty envFile skips the file entirely.
func Load(envFile string) (Config, error) {
	values := map[string]string{}
	if envFile != "" {
		fileValues, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			values = fileValues
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, errors.Wrapf(err, "read %s", envFile)
		}
	}
	return FromMap(values, os.LookupEnv)
}

// FromMap builds a Config from file values, with lookup taking precedence.
// A nil lookup uses only the map.
func FromMap(values map[string]string, lookup func(string) (string, bool)) (Config, error) {
	get := func(key string) (string, bool) {
		if lookup != nil {
			if v, ok := lookup(key); ok && v != "" {
				return strings.TrimSpace(v), true
			}
		}
		v, ok := values[key]
		if !ok || v == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	cfg := Default()
	var err error

	if v, ok := get(KeyLogLevel); ok {
		cfg.LogLevel = strings.ToLower(v)
		if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
			return Config{}, errors.Wrap(err, KeyLogLevel)
		}
	}
	if v, ok := get(KeyLogFormat); ok {
		cfg.LogFormat = strings.ToLower(v)
		if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
			return Config{}, errors.Errorf("%s: unsupported format %q", KeyLogFormat, v)
		}
	}
	if v, ok := get(KeyDefaultModel); ok {
		cfg.DefaultModel = v
	}
	if v, ok := get(KeyModelServer); ok {
		cfg.ModelServer = strings.TrimRight(v, "/")
	}
	if v, ok := get(KeyModelTimeout); ok {
		if cfg.ModelTimeout, err = time.ParseDuration(v); err != nil {
			return Config{}, errors.Wrap(err, KeyModelTimeout)
		}
	}
	if v, ok := get(KeyQuantization); ok {
		if cfg.QuantizationBytes, err = strconv.Atoi(v); err != nil {
			return Config{}, errors.Wrap(err, KeyQuantization)
		}
		switch cfg.QuantizationBytes {
		case 1, 2, 4:
		default:
			return Config{}, errors.Errorf("%s: must be 1, 2 or 4, got %d", KeyQuantization, cfg.QuantizationBytes)
		}
	}
	if v, ok := get(KeyMaxDimension); ok {
		if cfg.MaxDimension, err = strconv.Atoi(v); err != nil {
			return Config{}, errors.Wrap(err, KeyMaxDimension)
		}
		if cfg.MaxDimension <= 0 {
			return Config{}, errors.Errorf("%s: must be positive", KeyMaxDimension)
		}
	}
	if v, ok := get(KeyCacheBytes); ok {
		if cfg.CacheBytes, err = strconv.ParseInt(v, 10, 64); err != nil {
			return Config{}, errors.Wrap(err, KeyCacheBytes)
		}
	}
	if v, ok := get(KeyOverlayOpacity); ok {
		if cfg.OverlayOpacity, err = strconv.ParseFloat(v, 64); err != nil {
			return Config{}, errors.Wrap(err, KeyOverlayOpacity)
		}
		if cfg.OverlayOpacity < 0 || cfg.OverlayOpacity > 1 {
			return Config{}, errors.Errorf("%s: must be within [0,1]", KeyOverlayOpacity)
		}
	}
	if v, ok := get(KeyKMeansClusters); ok {
		if cfg.KMeansClusters, err = strconv.Atoi(v); err != nil {
			return Config{}, errors.Wrap(err, KeyKMeansClusters)
		}
		if cfg.KMeansClusters < 2 {
			return Config{}, errors.Errorf("%s: need at least 2 clusters", KeyKMeansClusters)
		}
	}
	if v, ok := get(KeyTextMinConfidence); ok {
		if cfg.TextMinConfidence, err = strconv.ParseFloat(v, 64); err != nil {
			return Config{}, errors.Wrap(err, KeyTextMinConfidence)
		}
		if cfg.TextMinConfidence < 0 || cfg.TextMinConfidence > 1 {
			return Config{}, errors.Errorf("%s: must be within [0,1]", KeyTextMinConfidence)
		}
	}
	if v, ok := get(KeyTextLanguage); ok {
		cfg.TextLanguage = v
	}

	return cfg, nil
}
