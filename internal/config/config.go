package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// BackendConfig holds connection details for the RAG backend.
type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// HistoryConfig selects and configures where the session log is persisted.
type HistoryConfig struct {
	Type  string             `yaml:"type"`
	Key   string             `yaml:"key"`
	File  *FileHistoryConfig `yaml:"file,omitempty"`
	Redis *RedisConfig       `yaml:"redis,omitempty"`
}

// FileHistoryConfig places the history file.
type FileHistoryConfig struct {
	Dir string `yaml:"dir"`
}

// RedisConfig contains connection details for a Redis history store.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// DocumentsConfig controls where generated documents are written.
type DocumentsConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// SpeechConfig names an external transcriber. Empty disables voice input.
type SpeechConfig struct {
	Command []string `yaml:"command"`
}

// LogConfig configures the log sink.
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Backend   BackendConfig   `yaml:"backend"`
	History   HistoryConfig   `yaml:"history"`
	Documents DocumentsConfig `yaml:"documents"`
	Speech    SpeechConfig    `yaml:"speech"`
	Log       LogConfig       `yaml:"log"`
}

// Environment variables that override file settings.
const (
	EnvAPIURL         = "LEGALCHAT_API_URL"
	EnvHistoryBackend = "LEGALCHAT_HISTORY_BACKEND"
	EnvRedisAddr      = "LEGALCHAT_REDIS_ADDR"
	EnvLogFile        = "LEGALCHAT_LOG_FILE"
	EnvTimeoutSecs    = "LEGALCHAT_TIMEOUT_SECS"
)

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnvOverrides(cfg)
			applyConfigDefaults(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(&cfg)
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/legalchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/legalchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnvOverrides(cfg)
	applyConfigDefaults(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "legalchat", "config.yaml"), nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".legalchat"
	}
	return filepath.Join(home, ".local", "share", "legalchat")
}

func defaultConfig() *AppConfig {
	dataDir := defaultDataDir()
	return &AppConfig{
		Backend: BackendConfig{BaseURL: "http://localhost:8000", TimeoutSecs: 120, MaxRetries: 2},
		History: HistoryConfig{
			Type: "file",
			Key:  "chatMessages",
			File: &FileHistoryConfig{Dir: dataDir},
		},
		Documents: DocumentsConfig{OutputDir: "."},
		Log:       LogConfig{File: filepath.Join(dataDir, "legalchat.log"), Level: "info"},
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv(EnvHistoryBackend); v != "" {
		cfg.History.Type = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		if cfg.History.Redis == nil {
			cfg.History.Redis = &RedisConfig{}
		}
		cfg.History.Redis.Addr = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv(EnvTimeoutSecs); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutSecs = secs
		}
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:8000"
	}
	if cfg.Backend.TimeoutSecs <= 0 {
		cfg.Backend.TimeoutSecs = 120
	}
	if cfg.Backend.MaxRetries < 0 {
		cfg.Backend.MaxRetries = 0
	}
	if cfg.History.Type == "" {
		cfg.History.Type = "file"
	}
	if cfg.History.Key == "" {
		cfg.History.Key = "chatMessages"
	}
	if cfg.History.Type == "file" {
		if cfg.History.File == nil {
			cfg.History.File = &FileHistoryConfig{}
		}
		if cfg.History.File.Dir == "" {
			cfg.History.File.Dir = defaultDataDir()
		}
	}
	if cfg.History.Type == "redis" {
		if cfg.History.Redis == nil {
			cfg.History.Redis = &RedisConfig{}
		}
		if cfg.History.Redis.Addr == "" {
			cfg.History.Redis.Addr = "127.0.0.1:6379"
		}
		if cfg.History.Redis.TimeoutSecs == 0 {
			cfg.History.Redis.TimeoutSecs = 3
		}
	}
	if cfg.Documents.OutputDir == "" {
		cfg.Documents.OutputDir = "."
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
