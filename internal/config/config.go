// Package config loads faceauth settings.
//
// Precedence (highest to lowest):
//  1. CLI flags (once bound with BindPFlag)
//  2. Environment variables (FACEAUTH_STORE_DIR, FACEAUTH_MATCH_THRESHOLD, ...)
//  3. faceauth.yaml in the working directory, or the file given with --config
//  4. Defaults from the constants package
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kozaktomas/faceauth/internal/constants"
	"github.com/kozaktomas/faceauth/internal/fingerprint"
	"github.com/kozaktomas/faceauth/internal/logging"
)

const envPrefix = "FACEAUTH"

type Config struct {
	Store     StoreConfig
	Embedding EmbeddingConfig
	Match     MatchConfig
	Image     ImageConfig
	Log       LogConfig
}

type StoreConfig struct {
	Dir       string        // directory holding one file per identity (default "persist")
	Dim       int           // expected embedding dimensionality, 0 = take it from the first enrollment
	IOTimeout time.Duration // bound on each filesystem call
}

type EmbeddingConfig struct {
	URL     string // defaults to http://localhost:8000
	Timeout time.Duration
}

type MatchConfig struct {
	Metric    string  // euclidean or cosine
	Threshold float64 // maximum distance still considered the same person
}

type ImageConfig struct {
	MaxSize int // images are scaled down to fit this many pixels per side
}

type LogConfig struct {
	Level  string
	Format string // text, json or pretty
}

// InitViper returns a viper instance with defaults, the optional config file
// and FACEAUTH_* environment variables registered. An explicitly named
// configFile must exist; the default faceauth.yaml may be absent.
func InitViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("faceauth")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if configFile != "" || !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The embedding server URL is shared with other tools under its bare name.
	if err := v.BindEnv("embedding.url", envPrefix+"_EMBEDDING_URL", "EMBEDDING_URL"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.dir", constants.DefaultStoreDir)
	v.SetDefault("store.dim", 0)
	v.SetDefault("store.io_timeout", constants.DefaultIOTimeout)

	v.SetDefault("embedding.url", constants.DefaultEmbeddingURL)
	v.SetDefault("embedding.timeout", constants.DefaultEmbeddingTimeout)

	// match.threshold has no default here: it depends on the metric, see Load.
	v.SetDefault("match.metric", constants.DefaultMatchMetric)

	v.SetDefault("image.max_size", constants.MaxImageSize)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatPretty)
}

// Load reads the configuration out of v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Store: StoreConfig{
			Dir:       v.GetString("store.dir"),
			Dim:       v.GetInt("store.dim"),
			IOTimeout: v.GetDuration("store.io_timeout"),
		},
		Embedding: EmbeddingConfig{
			URL:     v.GetString("embedding.url"),
			Timeout: v.GetDuration("embedding.timeout"),
		},
		Match: MatchConfig{
			Metric:    strings.ToLower(v.GetString("match.metric")),
			Threshold: constants.DefaultEuclideanTolerance,
		},
		Image: ImageConfig{
			MaxSize: v.GetInt("image.max_size"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}

	switch {
	case v.IsSet("match.threshold"):
		cfg.Match.Threshold = v.GetFloat64("match.threshold")
	case cfg.Match.Metric == fingerprint.MetricCosine:
		cfg.Match.Threshold = constants.DefaultDistanceThreshold
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Store.Dir == "" {
		errs = append(errs, errors.New("store.dir must not be empty"))
	}
	if c.Store.Dim < 0 {
		errs = append(errs, fmt.Errorf("store.dim must not be negative, got %d", c.Store.Dim))
	}
	if c.Store.IOTimeout <= 0 {
		errs = append(errs, fmt.Errorf("store.io_timeout must be positive, got %s", c.Store.IOTimeout))
	}
	if _, err := fingerprint.NewPredicate(c.Match.Metric, c.Match.Threshold); err != nil {
		errs = append(errs, fmt.Errorf("match: %w", err))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	switch c.Log.Format {
	case logging.FormatText, logging.FormatJSON, logging.FormatPretty:
	default:
		errs = append(errs, fmt.Errorf("log.format must be text, json or pretty, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
