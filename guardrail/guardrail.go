// Package guardrail screens the text flowing through an agent run: user
// input before it reaches the model, model output before it reaches the
// caller. Rules can block, warn, or redact.
package guardrail

import (
	"context"
	"fmt"
	"strings"
)

type Action string

const (
	// ActionBlock rejects the text entirely.
	ActionBlock Action = "block"
	// ActionWarn records the match but lets the text through.
	ActionWarn Action = "warn"
	// ActionRedact replaces the offending spans and continues.
	ActionRedact Action = "redact"
)

type Result struct {
	Triggered bool   `json:"triggered"`
	Action    Action `json:"action,omitempty"`
	Rule      string `json:"rule"`
	Message   string `json:"message,omitempty"`
	// Redacted holds the sanitized text when Action is redact.
	Redacted string `json:"redacted,omitempty"`
}

// Rule inspects one piece of text. Rules are direction-agnostic; the
// pipeline decides whether a rule sees input, output, or both.
type Rule interface {
	Name() string
	Check(ctx context.Context, text string) (Result, error)
}

// Pipeline runs rules in registration order. Input rules see the last user
// message before each model call; output rules see the model reply.
type Pipeline struct {
	input  []Rule
	output []Rule
}

func NewPipeline() *Pipeline { return &Pipeline{} }

func (p *Pipeline) AddInput(r Rule) *Pipeline {
	p.input = append(p.input, r)
	return p
}

func (p *Pipeline) AddOutput(r Rule) *Pipeline {
	p.output = append(p.output, r)
	return p
}

// Add registers a rule for both directions.
func (p *Pipeline) Add(r Rule) *Pipeline {
	p.input = append(p.input, r)
	p.output = append(p.output, r)
	return p
}

// CheckInput runs the input rules. A block stops immediately; redactions
// chain, each rule seeing the previous rule's output.
func (p *Pipeline) CheckInput(ctx context.Context, text string) (string, []Result, error) {
	return run(ctx, p.input, text)
}

func (p *Pipeline) CheckOutput(ctx context.Context, text string) (string, []Result, error) {
	return run(ctx, p.output, text)
}

func run(ctx context.Context, rules []Rule, text string) (string, []Result, error) {
	var triggered []Result
	for _, r := range rules {
		res, err := r.Check(ctx, text)
		if err != nil {
			return "", nil, fmt.Errorf("guardrail %q: %w", r.Name(), err)
		}
		if !res.Triggered {
			continue
		}
		switch res.Action {
		case ActionBlock:
			return "", []Result{res}, nil
		case ActionRedact:
			if res.Redacted != "" {
				text = res.Redacted
			}
			triggered = append(triggered, res)
		default:
			triggered = append(triggered, res)
		}
	}
	return text, triggered, nil
}

// Blocked reports whether any result carries a block action.
func Blocked(results []Result) bool {
	for _, r := range results {
		if r.Triggered && r.Action == ActionBlock {
			return true
		}
	}
	return false
}

// Summary renders triggered results for logs.
func Summary(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Triggered {
			parts = append(parts, fmt.Sprintf("[%s] %s: %s", r.Action, r.Rule, r.Message))
		}
	}
	if len(parts) == 0 {
		return "clean"
	}
	return strings.Join(parts, "; ")
}

func pass(rule string) Result { return Result{Rule: rule} }

func block(rule, message string) Result {
	return Result{Triggered: true, Action: ActionBlock, Rule: rule, Message: message}
}

func redact(rule, message, sanitized string) Result {
	return Result{Triggered: true, Action: ActionRedact, Rule: rule, Message: message, Redacted: sanitized}
}
