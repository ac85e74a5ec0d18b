// Package config loads StressGuard settings from a YAML file, with ${VAR}
// expansion from the environment and an optional .env file.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/stressguard/internal/errors"
	"github.com/felixgeelhaar/stressguard/internal/log"
	"github.com/felixgeelhaar/stressguard/internal/provider"
)

// DefaultFile is the config file looked up when none is given
const DefaultFile = "stressguard.yaml"

// MinPromptLength is the shortest system prompt accepted as configured
const MinPromptLength = 50

// FallbackPrompt is used when a configured prompt is missing or too short
const FallbackPrompt = "Eres un asistente empático de bienestar emocional."

var (
	//go:embed prompts/casual.txt
	defaultCasualPrompt string
	//go:embed prompts/guidance.txt
	defaultGuidancePrompt string
)

// Chat modes
const (
	ModeManual    = "manual"
	ModeAutomatic = "automatic"
)

// Config is the complete stressguard.yaml configuration
type Config struct {
	Provider  provider.Config `yaml:"provider"`
	Prompts   PromptsConfig   `yaml:"prompts"`
	Chat      ChatConfig      `yaml:"chat"`
	Storage   StorageConfig   `yaml:"storage"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// PromptsConfig holds the two system prompts, inline or by file
type PromptsConfig struct {
	Casual       string `yaml:"casual"`
	CasualFile   string `yaml:"casual_file"`
	Guidance     string `yaml:"guidance"`
	GuidanceFile string `yaml:"guidance_file"`
}

// ChatConfig tunes the conversation
type ChatConfig struct {
	MaxHistory int    `yaml:"max_history"`
	Voice      bool   `yaml:"voice"`
	Mode       string `yaml:"mode"`
}

// StorageConfig locates the SQLite database
type StorageConfig struct {
	Path string `yaml:"path"`
}

// AlertsConfig configures the sensor alert receiver
type AlertsConfig struct {
	Addr string `yaml:"addr"`
}

// ServerConfig configures the HTTP service
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// TelemetryConfig configures OpenTelemetry tracing
type TelemetryConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Provider: provider.Config{
			Name:          "ollama",
			Model:         "llama3.2:3b-instruct-q8_0",
			BaseURL:       "http://localhost:11434",
			Temperature:   0.6,
			TopP:          0.9,
			RepeatPenalty: 1.1,
			Timeout:       120 * time.Second,
		},
		Chat: ChatConfig{
			MaxHistory: 20,
			Mode:       ModeManual,
		},
		Storage: StorageConfig{Path: filepath.Join(StateDir(), "stressguard.db")},
		Alerts:  AlertsConfig{Addr: "127.0.0.1:65432"},
		Server:  ServerConfig{Addr: ":8080"},
		Log:     LogConfig{Level: "info", Format: "console"},
		Telemetry: TelemetryConfig{
			SampleRate: 1.0,
		},
	}
}

// StateDir returns the directory for the database and log file
func StateDir() string {
	if dir := os.Getenv("STRESSGUARD_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stressguard"
	}
	return filepath.Join(home, ".stressguard")
}

// LoadEnv loads variables from an .env file. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.NewFileUnmarshalError(path, "dotenv", err)
	}
	return nil
}

// Load reads path over the defaults. An empty path tries DefaultFile; a
// missing default file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("read config %s", path), err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "YAML", err)
	}

	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	switch strings.ToLower(c.Provider.Name) {
	case "ollama", "openai":
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("provider.name %q is not supported", c.Provider.Name)).
			WithSuggestion("Use one of: ollama, openai")
	}
	if c.Provider.Model == "" {
		return errors.NewConfigInvalidError("provider.model is required")
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return errors.NewConfigInvalidError("provider.temperature must be between 0 and 2")
	}
	if c.Provider.TopP < 0 || c.Provider.TopP > 1 {
		return errors.NewConfigInvalidError("provider.top_p must be between 0 and 1")
	}
	if c.Provider.Timeout < 0 {
		return errors.NewConfigInvalidError("provider.timeout must not be negative")
	}
	if c.Chat.MaxHistory < 0 {
		return errors.NewConfigInvalidError("chat.max_history must not be negative")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return errors.NewConfigInvalidError("telemetry.sample_rate must be between 0 and 1")
	}
	switch c.Chat.Mode {
	case ModeManual, ModeAutomatic:
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("chat.mode %q must be manual or automatic", c.Chat.Mode))
	}
	if _, ok := log.LookupLevel(c.Log.Level); c.Log.Level != "" && !ok {
		return errors.NewConfigInvalidError(fmt.Sprintf("log.level %q is not a level", c.Log.Level)).
			WithSuggestion("Use one of: debug, info, warn, error")
	}
	if _, ok := log.LookupFormat(c.Log.Format); c.Log.Format != "" && !ok {
		return errors.NewConfigInvalidError(fmt.Sprintf("log.format %q is not a format", c.Log.Format)).
			WithSuggestion("Use one of: console, text, json")
	}
	return nil
}

// Prompts are the resolved system instructions
type Prompts struct {
	Casual   string
	Guidance string
}

// ResolvePrompts reads prompt files and falls back to the embedded defaults
// when a prompt is not configured
func (c *Config) ResolvePrompts() (Prompts, error) {
	casual, err := resolvePrompt(c.Prompts.Casual, c.Prompts.CasualFile, defaultCasualPrompt)
	if err != nil {
		return Prompts{}, err
	}
	guidance, err := resolvePrompt(c.Prompts.Guidance, c.Prompts.GuidanceFile, defaultGuidancePrompt)
	if err != nil {
		return Prompts{}, err
	}
	return Prompts{Casual: casual, Guidance: guidance}, nil
}

func resolvePrompt(inline, file, fallback string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	if file != "" {
		data, err := os.ReadFile(expandHome(file))
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("read prompt %s", file), err)
		}
		return string(data), nil
	}
	return fallback, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
