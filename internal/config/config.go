// Package config loads the settings of the gtfsvis command.
//
// Settings are read from an optional YAML file, then from a .env file and the
// process environment (GTFSVIS_* variables override the file), and finally
// validated.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	FeedDir     string `yaml:"feedDir" validate:"required_without=FeedURL"`
	FeedURL     string `yaml:"feedURL" validate:"omitempty,url"`
	OutDir      string `yaml:"outDir" validate:"required"`
	ListenAddr  string `yaml:"listenAddr" validate:"required,hostname_port"`
	MetricsAddr string `yaml:"metricsAddr" validate:"omitempty,hostname_port"`
	NATSURL     string `yaml:"natsURL" validate:"omitempty,url"`
	NATSSubject string `yaml:"natsSubject" validate:"required"`
	LogLevel    string `yaml:"logLevel" validate:"oneof=debug info warn error fatal"`
	SampleTrips int    `yaml:"sampleTrips" validate:"min=1,max=3"`
}

// Returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		OutDir:      ".visualizefiles",
		ListenAddr:  ":8000",
		NATSSubject: "gtfsvis.snapshot",
		LogLevel:    "info",
		SampleTrips: 3,
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies .env
// and environment overrides and validates the result.
func Load(path string) (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	overrides := map[string]*string{
		"GTFSVIS_FEED_DIR":     &c.FeedDir,
		"GTFSVIS_FEED_URL":     &c.FeedURL,
		"GTFSVIS_OUT_DIR":      &c.OutDir,
		"GTFSVIS_LISTEN_ADDR":  &c.ListenAddr,
		"GTFSVIS_METRICS_ADDR": &c.MetricsAddr,
		"GTFSVIS_NATS_URL":     &c.NATSURL,
		"GTFSVIS_NATS_SUBJECT": &c.NATSSubject,
		"GTFSVIS_LOG_LEVEL":    &c.LogLevel,
	}
	for key, dst := range overrides {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v := os.Getenv("GTFSVIS_SAMPLE_TRIPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GTFSVIS_SAMPLE_TRIPS: %q", v)
		}
		c.SampleTrips = n
	}
	return nil
}

// Validate checks every field against its constraints
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		return fmt.Errorf("invalid config: %w", invalid)
	}
	return err
}
