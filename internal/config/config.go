package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultAPIURL         = "http://127.0.0.1:8000"
	DefaultTimeoutSeconds = 300

	logFileName  = "trialchat.log"
	debugDirName = "debug"
)

type StorageConfig struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type DebugConfig struct {
	LogRequests  bool   `toml:"log_requests"`
	LogResponses bool   `toml:"log_responses"`
	LogDirectory string `toml:"log_directory"`
}

type Config struct {
	APIURL         string        `toml:"api_url"`
	TimeoutSeconds int           `toml:"timeout_seconds"`
	DataDir        string        `toml:"data_dir"`
	Storage        StorageConfig `toml:"storage"`
	Log            LogConfig     `toml:"log"`
	Debug          DebugConfig   `toml:"debug"`
}

// Timeout is the per-request deadline for backend calls.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StorageDir is where local session state lives.
func (c Config) StorageDir() string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	return c.DataDir
}

func Default() Config {
	defaultDataDir := defaultDataDir()
	return Config{
		APIURL:         DefaultAPIURL,
		TimeoutSeconds: DefaultTimeoutSeconds,
		DataDir:        defaultDataDir,
		Storage: StorageConfig{
			Backend: "file",
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(defaultDataDir, logFileName),
		},
		Debug: DebugConfig{
			LogRequests:  false,
			LogResponses: false,
			LogDirectory: filepath.Join(defaultDataDir, debugDirName),
		},
	}
}

func LoadOrCreate(path string) (Config, error) {
	config := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return config, err
			}

			configData, err := toml.Marshal(config)
			if err != nil {
				return config, err
			}

			if err := os.WriteFile(path, configData, 0o644); err != nil {
				return config, err
			}

			return ApplyEnv(config)
		}

		return config, err
	}

	configData, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := toml.Unmarshal(configData, &config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", path, err)
	}

	config = relocateDataDir(config, Default().DataDir, expandPath(config.DataDir))
	config.Storage.Dir = expandPath(config.Storage.Dir)
	config.Log.File = expandPath(config.Log.File)
	config.Debug.LogDirectory = expandPath(config.Debug.LogDirectory)

	return ApplyEnv(config)
}

// Validate normalizes c and reports the first invalid field.
func Validate(c Config) (Config, error) {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APIURL == "" {
		return c, errors.New("api_url is required")
	}

	parsed, err := url.Parse(c.APIURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return c, fmt.Errorf("api_url must be an absolute http(s) URL, got %q", c.APIURL)
	}

	if c.TimeoutSeconds <= 0 {
		return c, fmt.Errorf("timeout_seconds must be positive, got %d", c.TimeoutSeconds)
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}

	return c, nil
}

// relocateDataDir moves DataDir to newDir. Log and debug paths that still point at their defaults
// under oldDir follow it; explicitly configured ones are left alone.
func relocateDataDir(c Config, oldDir, newDir string) Config {
	if newDir == "" || newDir == oldDir {
		c.DataDir = newDir
		return c
	}

	if c.Log.File == filepath.Join(oldDir, logFileName) {
		c.Log.File = filepath.Join(newDir, logFileName)
	}
	if c.Debug.LogDirectory == filepath.Join(oldDir, debugDirName) {
		c.Debug.LogDirectory = filepath.Join(newDir, debugDirName)
	}
	c.DataDir = newDir
	return c
}

func defaultDataDir() string {
	homeDir, _ := os.UserHomeDir()

	if homeDir == "" {
		return ".trialchat"
	}

	return filepath.Join(homeDir, ".trialchat")
}

func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()

		if homeDir != "" {
			trimmed := strings.TrimPrefix(path, "~")
			trimmed = strings.TrimPrefix(trimmed, string(os.PathSeparator))

			return filepath.Join(homeDir, trimmed)
		}
	}

	return path
}
