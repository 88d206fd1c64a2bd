// Package config loads application settings from a YAML file via Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Settings mirrors the structure of config.yaml.
type Settings struct {
	Database DatabaseSettings `mapstructure:"database"`
	Photos   PhotoSettings    `mapstructure:"photos"`
	Survey   SurveySettings   `mapstructure:"survey"`
	Log      LogSettings      `mapstructure:"log"`
}

// DatabaseSettings locates the survey database.
type DatabaseSettings struct {
	Path string `mapstructure:"path"`
}

// PhotoSettings locates the photo archive for the active survey.
type PhotoSettings struct {
	Root string `mapstructure:"root"`
}

// SurveySettings identifies the survey scope every new record is keyed by.
type SurveySettings struct {
	Year      int    `mapstructure:"year"`
	Site      int    `mapstructure:"site"`
	Species   string `mapstructure:"species"`
	Creator   string `mapstructure:"creator"`
	Observer  string `mapstructure:"observer"`
	CountType string `mapstructure:"count_type"`
}

// LogSettings controls the slog handler.
type LogSettings struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load reads config.yaml from the working directory or the user config
// directory and unmarshals it into Settings. Missing file is not an error;
// defaults apply and the UI prompts for whatever is absent.
func Load() (*Settings, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "rookery-counter"))
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "counts.db")
	v.SetDefault("photos.root", ".")
	v.SetDefault("log.level", "info")
	v.SetDefault("survey.count_type", "Ground")
}

// Validate rejects settings no session can be started from.
func (s *Settings) Validate() error {
	if s.Database.Path == "" {
		return fmt.Errorf("validate config: database.path is required")
	}
	if s.Survey.Year < 0 {
		return fmt.Errorf("validate config: survey.year %d is negative", s.Survey.Year)
	}
	if s.Survey.CountType == "" {
		return fmt.Errorf("validate config: survey.count_type is required")
	}
	return nil
}
