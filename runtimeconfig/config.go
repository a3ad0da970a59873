// Package runtimeconfig loads agent profiles from JSON or YAML files and
// turns them into ready-to-run agents. A profile names a provider, model,
// system prompt, tool selection and middleware toggles.
package runtimeconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/relaylabs/agentloop/agent"
	"github.com/relaylabs/agentloop/guardrail"
	"github.com/relaylabs/agentloop/llm"
	"github.com/relaylabs/agentloop/middlewares"
	"github.com/relaylabs/agentloop/providers/factory"
	"github.com/relaylabs/agentloop/tools"
)

// Config is an agent profile. Tools entries use the registry selection
// syntax: tool names, "@bundle", or "*".
type Config struct {
	Name          string   `json:"name" yaml:"name"`
	Provider      string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model         string   `json:"model,omitempty" yaml:"model,omitempty"`
	SystemPrompt  string   `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxIterations int      `json:"maxIterations,omitempty" yaml:"maxIterations,omitempty"`
	Tools         []string `json:"tools,omitempty" yaml:"tools,omitempty"`

	Middleware Middleware `json:"middleware,omitempty" yaml:"middleware,omitempty"`
}

// Middleware holds the per-profile middleware toggles.
type Middleware struct {
	Summarize            bool     `json:"summarize,omitempty" yaml:"summarize,omitempty"`
	SummaryTriggerTokens int      `json:"summaryTriggerTokens,omitempty" yaml:"summaryTriggerTokens,omitempty"`
	SummaryKeepMessages  int      `json:"summaryKeepMessages,omitempty" yaml:"summaryKeepMessages,omitempty"`
	TrimToolHistory      int      `json:"trimToolHistory,omitempty" yaml:"trimToolHistory,omitempty"`
	ApprovalTools        []string `json:"approvalTools,omitempty" yaml:"approvalTools,omitempty"`
	BlockedTerms         []string `json:"blockedTerms,omitempty" yaml:"blockedTerms,omitempty"`
	RedactPII            bool     `json:"redactPII,omitempty" yaml:"redactPII,omitempty"`
}

// Load reads a profile from path. The decoder follows the file extension:
// .json, or .yaml/.yml.
func Load(path string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Config{}, fmt.Errorf("config path is required")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config file %q as JSON: %w", absPath, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config file %q as YAML: %w", absPath, err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config extension %q", filepath.Ext(absPath))
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Provider = strings.TrimSpace(c.Provider)
	c.Model = strings.TrimSpace(c.Model)
	c.SystemPrompt = strings.TrimSpace(c.SystemPrompt)

	clean := c.Tools[:0]
	for _, entry := range c.Tools {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		clean = append(clean, entry)
	}
	c.Tools = clean
}

// Build resolves the profile into an agent: provider from the factory,
// tools from the registry, middlewares from the toggles. Extra options are
// applied after the profile's own and may override it.
func Build(ctx context.Context, cfg Config, extra ...agent.Option) (*agent.Agent, error) {
	provider, err := providerFor(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var opts []agent.Option
	if cfg.Name != "" {
		opts = append(opts, agent.WithName(cfg.Name))
	}
	if cfg.SystemPrompt != "" {
		opts = append(opts, agent.WithSystemPrompt(cfg.SystemPrompt))
	}
	if cfg.Model != "" {
		opts = append(opts, agent.WithModel(cfg.Model))
	}
	if cfg.Temperature != nil {
		opts = append(opts, agent.WithTemperature(*cfg.Temperature))
	}
	if cfg.MaxIterations > 0 {
		opts = append(opts, agent.WithMaxIterations(cfg.MaxIterations))
	}

	if len(cfg.Tools) > 0 {
		selected, err := tools.BuildSelection(cfg.Tools)
		if err != nil {
			return nil, fmt.Errorf("resolve tool selection: %w", err)
		}
		opts = append(opts, agent.WithTools(selected...))
	}

	opts = append(opts, middlewareOptions(cfg.Middleware)...)
	opts = append(opts, extra...)

	built, err := agent.New(provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("build agent from profile %q: %w", cfg.Name, err)
	}
	return built, nil
}

func providerFor(ctx context.Context, cfg Config) (llm.Provider, error) {
	switch {
	case cfg.Provider != "":
		return factory.FromProviderModel(ctx, cfg.Provider, cfg.Model)
	case cfg.Model != "":
		return factory.FromModel(ctx, cfg.Model)
	default:
		return factory.FromEnv(ctx)
	}
}

func middlewareOptions(mw Middleware) []agent.Option {
	var opts []agent.Option
	if mw.Summarize {
		var sopts []middlewares.SummarizerOption
		if mw.SummaryTriggerTokens > 0 {
			sopts = append(sopts, middlewares.WithTriggerTokens(mw.SummaryTriggerTokens))
		}
		if mw.SummaryKeepMessages > 0 {
			sopts = append(sopts, middlewares.WithKeepMessages(mw.SummaryKeepMessages))
		}
		opts = append(opts, agent.WithMiddleware(middlewares.NewSummarizer(sopts...)))
	}
	if mw.TrimToolHistory > 0 {
		opts = append(opts, agent.WithMiddleware(middlewares.NewTrimTools(mw.TrimToolHistory)))
	}
	if len(mw.ApprovalTools) > 0 {
		opts = append(opts, agent.WithMiddleware(middlewares.GateTools(mw.ApprovalTools...)))
	}
	if len(mw.BlockedTerms) > 0 || mw.RedactPII {
		pipeline := guardrail.NewPipeline()
		if len(mw.BlockedTerms) > 0 {
			pipeline.AddInput(guardrail.NewBlocklist(mw.BlockedTerms...))
		}
		if mw.RedactPII {
			pipeline.Add(&guardrail.PIIRedactor{})
		}
		opts = append(opts, agent.WithMiddleware(guardrail.NewMiddleware(pipeline)))
	}
	return opts
}
