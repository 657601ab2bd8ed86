// Package config loads shopchat configuration from an optional YAML file
// overridden by environment variables.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Storefront API
	APIURL    string
	APIToken  string
	Transport string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig is the YAML shape of the optional config file.
type fileConfig struct {
	APIURL    string `yaml:"api_url"`
	APIToken  string `yaml:"api_token"`
	Transport string `yaml:"transport"`
	LogFile   string `yaml:"log_file"`
	LogLevel  string `yaml:"log_level"`
}

// Load reads configuration: defaults, then the config file (SHOPCHAT_CONFIG
// or ~/.config/shopchat/config.yaml), then environment variables on top.
func Load() Config {
	cfg := Config{
		APIURL:    "http://localhost:4000",
		Transport: "sse",
		LogFile:   "/tmp/shopchat.log",
		LogLevel:  slog.LevelInfo,
	}

	if path := configFilePath(); path != "" {
		applyFile(&cfg, path)
	}

	cfg.APIURL = getEnv("SHOPCHAT_API_URL", cfg.APIURL)
	cfg.APIToken = getEnv("SHOPCHAT_API_TOKEN", cfg.APIToken)
	cfg.Transport = getEnv("SHOPCHAT_TRANSPORT", cfg.Transport)
	cfg.LogFile = getEnv("SHOPCHAT_LOG_FILE", cfg.LogFile)
	if lvl := os.Getenv("SHOPCHAT_LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = ParseLogLevel(lvl)
	}

	return cfg
}

func configFilePath() string {
	if path := os.Getenv("SHOPCHAT_CONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".config", "shopchat", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func applyFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return
	}
	if fc.APIURL != "" {
		cfg.APIURL = fc.APIURL
	}
	if fc.APIToken != "" {
		cfg.APIToken = fc.APIToken
	}
	if fc.Transport != "" {
		cfg.Transport = fc.Transport
	}
	if fc.LogFile != "" {
		cfg.LogFile = fc.LogFile
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = ParseLogLevel(fc.LogLevel)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// ParseLogLevel maps a level name onto a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
