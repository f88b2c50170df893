package config

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds the backend connection configuration
type ServerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AgentConfig holds the agent selection configuration
type AgentConfig struct {
	DefaultMode string `mapstructure:"default_mode"`
}

// StorageConfig holds paths for client-local state
type StorageConfig struct {
	SessionDBPath string `mapstructure:"session_db_path"`
	HistoryDBPath string `mapstructure:"history_db_path"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads the configuration from the config.yaml file. The file location
// can be overridden with AGENTCHAT_CONFIG_PATH; a missing file is not an
// error, defaults apply.
func Load() (*Config, error) {
	v := viper.New()
	if path := os.Getenv("AGENTCHAT_CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}
	if c.Agent.DefaultMode == "" {
		c.Agent.DefaultMode = "react"
	}
	if c.Storage.SessionDBPath == "" {
		c.Storage.SessionDBPath = "session.db"
	}
	if c.Storage.HistoryDBPath == "" {
		c.Storage.HistoryDBPath = "history.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}
