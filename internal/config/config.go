package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "chatsync.yaml"
	envPrefix   = "CHATSYNC_"
)

type Config struct {
	API   API   `yaml:"api"`
	Cache Cache `yaml:"cache"`
	Log   Log   `yaml:"log"`
	UI    UI    `yaml:"ui"`
}

type API struct {
	// Base URL of the conversation service
	BaseURL string `yaml:"base_url" example:"http://127.0.0.1:8000" validate:"required,url"`
	// Per-request timeout
	TimeoutSeconds int `yaml:"timeout_seconds" example:"30" validate:"min=1,max=300"`
	// Max messages fetched when hydrating a conversation
	HistoryLimit int `yaml:"history_limit" example:"500" validate:"min=1,max=5000"`
	// Max conversations shown in the sidebar
	SummaryLimit int `yaml:"summary_limit" example:"50" validate:"min=1,max=500"`
}

type Cache struct {
	// Storage backend for the local mirror
	Backend string `yaml:"backend" example:"file" validate:"oneof=file memory redis"`
	// State file for the file backend, defaults to the user cache dir
	Path string `yaml:"path" example:"/home/me/.cache/chatsync/state.json"`
	// Connection URL for the redis backend
	RedisURL string `yaml:"redis_url" example:"redis://localhost:6379/0" validate:"required_if=Backend redis"`
	// Prefix applied to every cache key
	KeyPrefix string `yaml:"key_prefix" example:"chatsync:"`
}

type Log struct {
	Level string `yaml:"level" example:"info" validate:"oneof=debug info warn error"`
	// Log file, the terminal belongs to the UI
	File string `yaml:"file" example:"chatsync.log"`
}

type UI struct {
	AltScreen bool `yaml:"alt_screen" example:"true"`
	// Render bot replies as markdown
	Markdown bool `yaml:"markdown" example:"true"`
}

func Default() *Config {
	return &Config{
		API: API{
			BaseURL:        "http://127.0.0.1:8000",
			TimeoutSeconds: 30,
			HistoryLimit:   500,
			SummaryLimit:   50,
		},
		Cache: Cache{
			Backend:   "file",
			KeyPrefix: "chatsync:",
		},
		Log: Log{
			Level: "info",
			File:  "chatsync.log",
		},
		UI: UI{
			AltScreen: true,
			Markdown:  true,
		},
	}
}

// Load layers defaults, .env, the YAML file at path and CHATSYNC_* variables,
// in that order. A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	result := Default()
	if path == "" {
		path = envOr(envPrefix+"CONFIG", DefaultPath)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err = yaml.Unmarshal(data, result); err != nil {
			return nil, oops.In("config").With("path", path).Errorf("failed to parse YAML config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, oops.In("config").With("path", path).Errorf("failed to read config file: %w", err)
	}

	applyEnv(result)

	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Config) Validate() error {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return oops.In("config").Errorf("failed to validate config: %w", err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.API.BaseURL = envOr(envPrefix+"API_BASE_URL", c.API.BaseURL)
	c.API.TimeoutSeconds = envOrInt(envPrefix+"API_TIMEOUT_SECONDS", c.API.TimeoutSeconds)
	c.API.HistoryLimit = envOrInt(envPrefix+"API_HISTORY_LIMIT", c.API.HistoryLimit)
	c.API.SummaryLimit = envOrInt(envPrefix+"API_SUMMARY_LIMIT", c.API.SummaryLimit)

	c.Cache.Backend = envOr(envPrefix+"CACHE_BACKEND", c.Cache.Backend)
	c.Cache.Path = envOr(envPrefix+"CACHE_PATH", c.Cache.Path)
	c.Cache.RedisURL = envOr(envPrefix+"CACHE_REDIS_URL", c.Cache.RedisURL)
	c.Cache.KeyPrefix = envOr(envPrefix+"CACHE_KEY_PREFIX", c.Cache.KeyPrefix)

	c.Log.Level = envOr(envPrefix+"LOG_LEVEL", c.Log.Level)
	c.Log.File = envOr(envPrefix+"LOG_FILE", c.Log.File)

	c.UI.AltScreen = envOrBool(envPrefix+"UI_ALT_SCREEN", c.UI.AltScreen)
	c.UI.Markdown = envOrBool(envPrefix+"UI_MARKDOWN", c.UI.Markdown)
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
