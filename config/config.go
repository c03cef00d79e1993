// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"aquamind/ml"
)

// Model sources.
const (
	SourceFile   = "file"
	SourceHTTP   = "http"
	SourceSQLite = "sqlite"
	SourceRemote = "remote"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	} `yaml:"http"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Model struct {
		Source       string           `yaml:"source"`
		Type         string           `yaml:"type"`
		Path         string           `yaml:"path"`
		URL          string           `yaml:"url"`
		CachePath    string           `yaml:"cache_path"`
		Database     string           `yaml:"database"`
		Name         string           `yaml:"name"`
		Proba        bool             `yaml:"proba"`
		Timeout      time.Duration    `yaml:"timeout"`
		Watch        bool             `yaml:"watch"`
		LabelMapping *ml.LabelMapping `yaml:"label_mapping"`
	} `yaml:"model"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
	Canary struct {
		Schedule string `yaml:"schedule"`
	} `yaml:"canary"`
	Bot struct {
		Token string `yaml:"token"`
	} `yaml:"bot"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var c Config
	c.Http.Port = 8080
	c.Http.Timeout = 30 * time.Second
	c.Http.AllowedOrigins = []string{"*"}
	c.Http.MaxUploadBytes = 10 << 20
	c.Log.Level = "info"
	c.Log.MaxSizeMB = 50
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 28
	c.Model.Source = SourceFile
	c.Model.Type = ml.TypeDecisionTree
	c.Model.Path = "best_water_model.json"
	c.Model.Database = "aquamind.db"
	c.Model.Name = "water"
	c.Model.Timeout = 10 * time.Second
	c.Model.Watch = true
	c.Cache.Size = 1024
	c.Canary.Schedule = "@every 10m"
	return &c
}

// Load reads path over the defaults. An empty path returns the defaults.
// TELEGRAM_BOT_TOKEN fills bot.token when the file leaves it empty.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if config.Bot.Token == "" {
		config.Bot.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	return config, config.Validate()
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.Http.Port))
	}
	if c.Http.Timeout <= 0 {
		errs = append(errs, errors.New("http.timeout must be positive"))
	}
	if c.Http.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("http.max_upload_bytes must be positive"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	switch c.Model.Source {
	case SourceFile:
		if c.Model.Path == "" {
			errs = append(errs, errors.New("model.path is required for source file"))
		}
	case SourceHTTP, SourceRemote:
		if c.Model.URL == "" {
			errs = append(errs, fmt.Errorf("model.url is required for source %s", c.Model.Source))
		}
	case SourceSQLite:
		if c.Model.Database == "" || c.Model.Name == "" {
			errs = append(errs, errors.New("model.database and model.name are required for source sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("model.source %q is not one of file, http, sqlite, remote", c.Model.Source))
	}
	if c.Model.Source != SourceRemote {
		switch c.Model.Type {
		case ml.TypeDecisionTree, ml.TypeLogistic:
		default:
			errs = append(errs, fmt.Errorf("model.type %q is not one of decision_tree, logistic", c.Model.Type))
		}
	}
	if m := c.Model.LabelMapping; m != nil {
		if len(m.PositiveTokens) == 0 {
			errs = append(errs, errors.New("model.label_mapping.positive_tokens is empty"))
		}
		if m.PositiveClassIndex < 0 {
			errs = append(errs, errors.New("model.label_mapping.positive_class_index is negative"))
		}
	}
	if c.Cache.Size < 0 {
		errs = append(errs, errors.New("cache.size is negative"))
	}
	return errors.Join(errs...)
}
