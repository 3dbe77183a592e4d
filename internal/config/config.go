// This file defines the configuration structure for the application.
package config

import (
	// use Viper for loading the config.yml file.
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int `mapstructure:"port"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Classifier struct {
		Enabled        bool   `mapstructure:"enabled"`
		Endpoint       string `mapstructure:"endpoint"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"classifier"`
	Ingest struct {
		BatchSize int    `mapstructure:"batch_size"`
		WatchDir  string `mapstructure:"watch_dir"`
	} `mapstructure:"ingest"`
	Sessions struct {
		StaleAfterMinutes    int `mapstructure:"stale_after_minutes"`
		SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes"`
	} `mapstructure:"sessions"`
}

// ClassifierTimeout returns the per-row classifier call timeout.
func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutSeconds) * time.Second
}

// StaleAfter returns the age past which an active session with no progress
// update is swept to error.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Sessions.StaleAfterMinutes) * time.Minute
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or "yaml"
	viper.AddConfigPath(".")      // looking for config in the current directory

	// --- Environment Variable Overrides ---
	// This tells Viper to look for environment variables with a "PANIC_" prefix.
	// e.g., PANIC_DATABASE_PATH will override the `database.path` key.
	viper.SetEnvPrefix("PANIC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("port", 8080)
	viper.SetDefault("database.path", "./panicsense.db")
	viper.SetDefault("classifier.enabled", false)
	viper.SetDefault("classifier.endpoint", "http://localhost:5000/analyze")
	viper.SetDefault("classifier.timeout_seconds", 30)
	viper.SetDefault("ingest.batch_size", 20)
	viper.SetDefault("ingest.watch_dir", "")
	viper.SetDefault("sessions.stale_after_minutes", 10)
	viper.SetDefault("sessions.sweep_interval_minutes", 5)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error and use defaults
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
