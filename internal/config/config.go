// Package config loads server configuration from a JSONC file and the
// environment.
//
// Sources in priority order (later wins):
//
//  1. Built-in defaults
//  2. geminiassist.json / geminiassist.jsonc in ~/.config/geminiassist/
//  3. geminiassist.json / geminiassist.jsonc in the working directory
//  4. Environment variables
//
// GEMINI_API_KEY has no default and no file fallback: the process refuses to
// start without it.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/jsonc"
)

// Generation parameters are operational constants, not configuration.
const (
	Temperature     = 0.2
	MaxOutputTokens = 8192
	TopP            = 0.95
	TopK            = 40
)

// DefaultModel is used when no model override is configured.
const DefaultModel = "gemini-2.5-pro"

// DefaultSystemPrompt instructs the model on its consulting role.
const DefaultSystemPrompt = `You are an expert coding assistant helping Claude (another AI) solve complex programming problems.

Your role:
- Provide clear, practical solutions with working code examples
- Explain your reasoning concisely but thoroughly
- Focus on best practices, security, and maintainability
- Suggest optimizations when relevant
- Point out potential issues or edge cases
- Use the specific technologies and frameworks shown in the provided code context

Response guidelines:
- Start with a brief summary of your approach
- Provide complete, runnable code examples when possible
- Explain key concepts or non-obvious implementations
- Suggest testing strategies when appropriate
- Be direct and actionable - Claude needs specific guidance to help the user
- If you need additional context to provide a solid answer, ask Claude specific clarifying questions about:
  - Requirements or constraints not mentioned
  - Preferred approaches or technologies
  - Error messages or specific behaviors
  - Environment details or deployment context
  - Performance requirements or scale considerations

Remember: You're consulting with another AI to help a human developer, so be precise and comprehensive in your technical advice.`

// ErrMissingAPIKey is returned by Validate when no API credential is set.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY environment variable is required")

// Config holds the resolved server configuration.
type Config struct {
	APIKey       string
	Model        string
	SystemPrompt string

	SessionTTL       time.Duration
	ReapInterval     time.Duration
	RequestSpacing   time.Duration
	FilePollInterval time.Duration
	FileTimeout      time.Duration

	LogLevel string
}

// fileConfig is the JSONC file schema. Durations are Go duration strings.
type fileConfig struct {
	Model            string `json:"model"`
	SystemPrompt     string `json:"system_prompt"`
	SessionTTL       string `json:"session_ttl"`
	ReapInterval     string `json:"reap_interval"`
	RequestSpacing   string `json:"request_spacing"`
	FilePollInterval string `json:"file_poll_interval"`
	FileTimeout      string `json:"file_timeout"`
	LogLevel         string `json:"log_level"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Model:            DefaultModel,
		SystemPrompt:     DefaultSystemPrompt,
		SessionTTL:       time.Hour,
		ReapInterval:     5 * time.Minute,
		RequestSpacing:   time.Second,
		FilePollInterval: time.Second,
		FileTimeout:      30 * time.Second,
		LogLevel:         "INFO",
	}
}

// Load resolves configuration from defaults, config files under the given
// working directory and the user config directory, and the environment.
func Load(directory string) (*Config, error) {
	cfg := Default()

	home := os.Getenv("HOME")
	if home != "" {
		globalDir := filepath.Join(home, ".config", "geminiassist")
		if err := loadFirst(cfg, globalDir); err != nil {
			return nil, err
		}
	}
	if directory != "" {
		if err := loadFirst(cfg, directory); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate reports configuration errors that must abort startup.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// loadFirst merges the first config file found in dir, if any.
func loadFirst(cfg *Config, dir string) error {
	for _, name := range []string{"geminiassist.jsonc", "geminiassist.json"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := mergeFile(cfg, data); err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
		return nil
	}
	return nil
}

func mergeFile(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &fc); err != nil {
		return err
	}

	if fc.Model != "" {
		cfg.Model = fc.Model
	}
	if fc.SystemPrompt != "" {
		cfg.SystemPrompt = fc.SystemPrompt
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}

	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{fc.SessionTTL, &cfg.SessionTTL},
		{fc.ReapInterval, &cfg.ReapInterval},
		{fc.RequestSpacing, &cfg.RequestSpacing},
		{fc.FilePollInterval, &cfg.FilePollInterval},
		{fc.FileTimeout, &cfg.FileTimeout},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return err
		}
		*d.dst = parsed
	}
	return nil
}

// applyEnvOverrides applies environment variables, the highest-priority source.
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg.Model = model
	}
	// SYSTEM_PROMPT is honored for compatibility with earlier deployments.
	if prompt := os.Getenv("GEMINI_SYSTEM_PROMPT"); prompt != "" {
		cfg.SystemPrompt = prompt
	} else if prompt := os.Getenv("SYSTEM_PROMPT"); prompt != "" {
		cfg.SystemPrompt = prompt
	}
	if level := os.Getenv("GEMINI_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
}
