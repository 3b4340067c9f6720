package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ProviderConfig represents configuration for a hosted LLM provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`  // API key; environment variables take precedence
	BaseURL string `yaml:"base_url,omitempty"` // Custom base URL (default: official API)
	Model   string `yaml:"model,omitempty"`    // Default model name
}

// OllamaConfig represents configuration for the Ollama provider.
type OllamaConfig struct {
	Host  string `yaml:"host,omitempty"`  // Ollama host (default: "http://localhost:11434")
	Model string `yaml:"model,omitempty"` // Default model name
}

// Config is the llmadapter configuration.
type Config struct {
	DefaultOrganization string `yaml:"default_organization,omitempty" validate:"required,oneof=openai anthropic google ollama"`
	DefaultModel        string `yaml:"default_model,omitempty"`
	Timeout             int    `yaml:"timeout,omitempty" validate:"gte=0"` // Request timeout in seconds, 0 disables
	RegistryPath        string `yaml:"registry_path,omitempty"`            // Empty uses the embedded registry
	LedgerPath          string `yaml:"ledger_path,omitempty"`

	OpenAI    ProviderConfig `yaml:"openai,omitempty"`
	Anthropic ProviderConfig `yaml:"anthropic,omitempty"`
	Google    ProviderConfig `yaml:"google,omitempty"`
	Ollama    OllamaConfig   `yaml:"ollama,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DefaultOrganization: "openai",
		Timeout:             60,
		LedgerPath:          "~/.llmadapter/usage.db",
		Ollama: OllamaConfig{
			Host: "http://localhost:11434",
		},
	}
}

// GetConfigPath returns the default config file path.
// Can be overridden via LLMADAPTER_CONFIG_PATH environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("LLMADAPTER_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.llmadapter/config.yaml"
	}
	return filepath.Join(homeDir, ".llmadapter", "config.yaml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Load builds the configuration: defaults, then the YAML file at path if it
// exists, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		data, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
		}

		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", expandedPath, err)
		}

		// Merge file config onto defaults
		if err := mergo.Merge(&cfg, fileConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	cfg.RegistryPath = expandPath(cfg.RegistryPath)
	cfg.LedgerPath = expandPath(cfg.LedgerPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes the configuration to path.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	// Ensure directory exists
	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
