package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from .env files without overriding ones already set.
// A missing file is not an error.
func LoadDotEnv(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_ = godotenv.Load(path)
	}
}

// ApplyEnv overlays TRIALCHAT_* environment variables on cfg and validates the result.
func ApplyEnv(cfg Config) (Config, error) {
	if v := os.Getenv("NEXT_PUBLIC_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("TRIALCHAT_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("TRIALCHAT_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("TRIALCHAT_TIMEOUT_SECONDS: %w", err)
		}
		cfg.TimeoutSeconds = seconds
	}
	if v := os.Getenv("TRIALCHAT_DATA_DIR"); v != "" {
		cfg = relocateDataDir(cfg, cfg.DataDir, expandPath(v))
	}
	if v := os.Getenv("TRIALCHAT_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("TRIALCHAT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	cfg.Debug = LoadDebugConfigFromEnv(cfg.Debug)

	return Validate(cfg)
}

func LoadDebugConfigFromEnv(cfg DebugConfig) DebugConfig {
	if os.Getenv("TRIALCHAT_DEBUG_LOG_REQUESTS") == "1" {
		cfg.LogRequests = true
	}
	if os.Getenv("TRIALCHAT_DEBUG_LOG_RESPONSES") == "1" {
		cfg.LogResponses = true
	}
	if v := os.Getenv("TRIALCHAT_DEBUG_LOG_DIRECTORY"); v != "" {
		cfg.LogDirectory = expandPath(v)
	}
	return cfg
}
