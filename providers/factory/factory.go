// Package factory constructs providers from the environment or from a
// model identifier.
package factory

import (
	"context"
	"fmt"
	"strings"

	"github.com/sethvargo/go-envconfig"

	"github.com/relaylabs/agentloop/llm"
	anthropicprov "github.com/relaylabs/agentloop/providers/anthropic"
	geminiprov "github.com/relaylabs/agentloop/providers/gemini"
	ollamaprov "github.com/relaylabs/agentloop/providers/ollama"
	openaiprov "github.com/relaylabs/agentloop/providers/openai"
)

// Config is the provider-selection environment surface.
type Config struct {
	Provider string `env:"AGENT_PROVIDER, default=openai"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL, default=gpt-4o-mini"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL, default=claude-sonnet-4-20250514"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL, default=gemini-2.5-flash"`

	OllamaModel   string `env:"OLLAMA_MODEL, default=llama3.1:8b"`
	OllamaBaseURL string `env:"OLLAMA_BASE_URL, default=http://127.0.0.1:11434"`
	OllamaAPIKey  string `env:"OLLAMA_API_KEY"`
}

// FromEnv builds the provider named by AGENT_PROVIDER.
func FromEnv(ctx context.Context) (llm.Provider, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("read provider config: %w", err)
	}
	return FromConfig(ctx, cfg)
}

// FromConfig builds a provider from an explicit configuration.
func FromConfig(ctx context.Context, cfg Config) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when AGENT_PROVIDER=openai")
		}
		return openaiprov.New(
			openaiprov.WithAPIKey(cfg.OpenAIAPIKey),
			openaiprov.WithModel(cfg.OpenAIModel),
			openaiprov.WithBaseURL(cfg.OpenAIBaseURL),
		)
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required when AGENT_PROVIDER=anthropic")
		}
		return anthropicprov.New(
			anthropicprov.WithAPIKey(cfg.AnthropicAPIKey),
			anthropicprov.WithModel(cfg.AnthropicModel),
		)
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when AGENT_PROVIDER=gemini")
		}
		return geminiprov.New(ctx, cfg.GeminiAPIKey, geminiprov.WithModel(cfg.GeminiModel))
	case "ollama":
		return ollamaprov.New(
			ollamaprov.WithModel(cfg.OllamaModel),
			ollamaprov.WithBaseURL(cfg.OllamaBaseURL),
			ollamaprov.WithAPIKey(cfg.OllamaAPIKey),
		)
	default:
		return nil, fmt.Errorf("unsupported AGENT_PROVIDER %q (use openai, anthropic, gemini, or ollama)", cfg.Provider)
	}
}

// ProviderForModel maps a model identifier onto a provider name: gpt-* and
// o* go to openai, claude-* to anthropic, gemini-* to gemini, anything else
// to ollama.
func ProviderForModel(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "gpt-"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return "openai"
	case strings.HasPrefix(m, "claude-"):
		return "anthropic"
	case strings.HasPrefix(m, "gemini-"):
		return "gemini"
	default:
		return "ollama"
	}
}

// FromModel builds the provider implied by a model identifier, pinned to
// that model. Credentials still come from the environment.
func FromModel(ctx context.Context, model string) (llm.Provider, error) {
	return FromProviderModel(ctx, ProviderForModel(model), model)
}

// FromProviderModel builds the named provider, pinned to model when model
// is non-empty. Credentials still come from the environment.
func FromProviderModel(ctx context.Context, provider, model string) (llm.Provider, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("read provider config: %w", err)
	}
	cfg.Provider = provider
	if model != "" {
		switch strings.ToLower(strings.TrimSpace(provider)) {
		case "openai":
			cfg.OpenAIModel = model
		case "anthropic":
			cfg.AnthropicModel = model
		case "gemini":
			cfg.GeminiModel = model
		case "ollama":
			cfg.OllamaModel = model
		}
	}
	return FromConfig(ctx, cfg)
}
