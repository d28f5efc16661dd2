package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NEXT_PUBLIC_API_URL", "TRIALCHAT_API_URL", "TRIALCHAT_TIMEOUT_SECONDS", "TRIALCHAT_DATA_DIR",
		"TRIALCHAT_STORAGE_BACKEND", "TRIALCHAT_LOG_LEVEL", "TRIALCHAT_DEBUG_LOG_REQUESTS",
		"TRIALCHAT_DEBUG_LOG_RESPONSES", "TRIALCHAT_DEBUG_LOG_DIRECTORY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadOrCreate_WritesDefault(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("expected default api url, got %q", cfg.APIURL)
	}
	if cfg.Timeout().Minutes() != 5 {
		t.Fatalf("expected 5 minute timeout, got %v", cfg.Timeout())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), "api_url") {
		t.Fatalf("unexpected config contents:\n%s", data)
	}
}

func TestLoadOrCreate_ReadsExisting(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
api_url = "https://trials.example.com/"
timeout_seconds = 90

[storage]
backend = "sqlite"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "https://trials.example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.APIURL)
	}
	if cfg.TimeoutSeconds != 90 {
		t.Errorf("expected 90s timeout, got %d", cfg.TimeoutSeconds)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level to survive, got %q", cfg.Log.Level)
	}
}

func TestApplyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEXT_PUBLIC_API_URL", "http://10.0.0.5:8000")
	t.Setenv("TRIALCHAT_TIMEOUT_SECONDS", "30")
	t.Setenv("TRIALCHAT_DEBUG_LOG_REQUESTS", "1")

	cfg, err := ApplyEnv(Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "http://10.0.0.5:8000" {
		t.Errorf("unexpected api url %q", cfg.APIURL)
	}
	if cfg.TimeoutSeconds != 30 {
		t.Errorf("unexpected timeout %d", cfg.TimeoutSeconds)
	}
	if !cfg.Debug.LogRequests {
		t.Error("expected request logging enabled")
	}

	t.Setenv("TRIALCHAT_API_URL", "http://override:9000")
	cfg, err = ApplyEnv(Default())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIURL != "http://override:9000" {
		t.Errorf("TRIALCHAT_API_URL should win, got %q", cfg.APIURL)
	}
}

func TestDataDirMovesDefaultLogPaths(t *testing.T) {
	clearEnv(t)
	dataDir := t.TempDir()
	t.Setenv("TRIALCHAT_DATA_DIR", dataDir)

	cfg, err := ApplyEnv(Default())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != dataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, dataDir)
	}
	if want := filepath.Join(dataDir, "trialchat.log"); cfg.Log.File != want {
		t.Errorf("Log.File = %q, want %q", cfg.Log.File, want)
	}
	if want := filepath.Join(dataDir, "debug"); cfg.Debug.LogDirectory != want {
		t.Errorf("Debug.LogDirectory = %q, want %q", cfg.Debug.LogDirectory, want)
	}

	custom := Default()
	custom.Log.File = "/var/log/trialchat.log"
	cfg, err = ApplyEnv(custom)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.File != "/var/log/trialchat.log" {
		t.Errorf("explicit Log.File moved to %q", cfg.Log.File)
	}
}

func TestLoadOrCreate_DataDirOnlyConfig(t *testing.T) {
	clearEnv(t)
	dataDir := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "data_dir = \"" + filepath.ToSlash(dataDir) + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(filepath.ToSlash(dataDir), "trialchat.log"); cfg.Log.File != want {
		t.Errorf("Log.File = %q, want %q", cfg.Log.File, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "empty url", mutate: func(c *Config) { c.APIURL = " " }, wantErr: true},
		{name: "relative url", mutate: func(c *Config) { c.APIURL = "/chat" }, wantErr: true},
		{name: "ftp url", mutate: func(c *Config) { c.APIURL = "ftp://host" }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.TimeoutSeconds = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			_, err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TRIALCHAT_LOG_LEVEL=debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	os.Unsetenv("TRIALCHAT_LOG_LEVEL")

	LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path)

	if got := os.Getenv("TRIALCHAT_LOG_LEVEL"); got != "debug" {
		t.Fatalf("expected value from .env, got %q", got)
	}
}
