package config

import "os"

// Built-in model per organization, used when neither the config file nor
// the caller names one.
var defaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-haiku-20240307",
	"google":    "gemini-1.5-flash",
	"ollama":    "llama3.1",
}

// applyEnvOverrides applies environment variable overrides. Set variables
// win over the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Anthropic.APIKey = v
	}
	if v := getGoogleAPIKeyFromEnv(); v != "" {
		cfg.Google.APIKey = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Ollama.Host = v
	}
}

// getGoogleAPIKeyFromEnv prefers GOOGLE_API_KEY over GEMINI_API_KEY.
func getGoogleAPIKeyFromEnv() string {
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		return v
	}
	return os.Getenv("GEMINI_API_KEY")
}

// APIKeyFor returns the API key configured for organization. Ollama needs
// none, so it always gets an empty key.
func (c *Config) APIKeyFor(organization string) string {
	switch organization {
	case "openai":
		return c.OpenAI.APIKey
	case "anthropic":
		return c.Anthropic.APIKey
	case "google":
		return c.Google.APIKey
	default:
		return ""
	}
}

// BaseURLFor returns the endpoint override for organization, or "" for the
// provider default. For Ollama this is the host.
func (c *Config) BaseURLFor(organization string) string {
	switch organization {
	case "openai":
		return c.OpenAI.BaseURL
	case "anthropic":
		return c.Anthropic.BaseURL
	case "google":
		return c.Google.BaseURL
	case "ollama":
		return c.Ollama.Host
	default:
		return ""
	}
}

// ModelFor picks the model for organization: default_model when it is the
// default organization, then the provider section, then the built-in choice.
func (c *Config) ModelFor(organization string) string {
	if organization == c.DefaultOrganization && c.DefaultModel != "" {
		return c.DefaultModel
	}
	var model string
	switch organization {
	case "openai":
		model = c.OpenAI.Model
	case "anthropic":
		model = c.Anthropic.Model
	case "google":
		model = c.Google.Model
	case "ollama":
		model = c.Ollama.Model
	}
	if model != "" {
		return model
	}
	return defaultModels[organization]
}
