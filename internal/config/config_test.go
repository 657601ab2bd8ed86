package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SHOPCHAT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SHOPCHAT_API_URL", "")
	t.Setenv("SHOPCHAT_TRANSPORT", "")
	t.Setenv("SHOPCHAT_LOG_LEVEL", "")

	cfg := Load()
	if cfg.APIURL != "http://localhost:4000" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Transport != "sse" {
		t.Errorf("Transport = %q", cfg.Transport)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "api_url: http://file:1234\ntransport: ws\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SHOPCHAT_CONFIG", path)
	t.Setenv("SHOPCHAT_API_URL", "http://env:5678")
	t.Setenv("SHOPCHAT_TRANSPORT", "")
	t.Setenv("SHOPCHAT_LOG_LEVEL", "")

	cfg := Load()
	if cfg.APIURL != "http://env:5678" {
		t.Errorf("APIURL = %q, env must override file", cfg.APIURL)
	}
	if cfg.Transport != "ws" {
		t.Errorf("Transport = %q, want file value", cfg.Transport)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want file value", cfg.LogLevel)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
