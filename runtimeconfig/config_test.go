package runtimeconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadJSONProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.json")
	content := `{
		"name": "researcher",
		"provider": "ollama",
		"model": "llama3.1:8b",
		"systemPrompt": " You research things. ",
		"maxIterations": 5,
		"tools": ["@core", " web_search ", ""],
		"middleware": {"summarize": true, "summaryTriggerTokens": 2000, "trimToolHistory": 4}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "researcher" {
		t.Fatalf("name = %q", cfg.Name)
	}
	if cfg.SystemPrompt != "You research things." {
		t.Fatalf("systemPrompt = %q", cfg.SystemPrompt)
	}
	if cfg.MaxIterations != 5 {
		t.Fatalf("maxIterations = %d", cfg.MaxIterations)
	}
	if len(cfg.Tools) != 2 || cfg.Tools[0] != "@core" || cfg.Tools[1] != "web_search" {
		t.Fatalf("tools = %#v", cfg.Tools)
	}
	if !cfg.Middleware.Summarize || cfg.Middleware.SummaryTriggerTokens != 2000 {
		t.Fatalf("middleware = %#v", cfg.Middleware)
	}
	if cfg.Middleware.TrimToolHistory != 4 {
		t.Fatalf("trimToolHistory = %d", cfg.Middleware.TrimToolHistory)
	}
}

func TestLoadYAMLProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	content := `name: chef
provider: anthropic
model: claude-sonnet-4-20250514
systemPrompt: You suggest recipes.
tools:
  - calculator
middleware:
  approvalTools:
    - send_email
  blockedTerms:
    - off-menu
  redactPII: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "chef" || cfg.Provider != "anthropic" {
		t.Fatalf("profile = %#v", cfg)
	}
	if len(cfg.Middleware.ApprovalTools) != 1 || cfg.Middleware.ApprovalTools[0] != "send_email" {
		t.Fatalf("approvalTools = %#v", cfg.Middleware.ApprovalTools)
	}
	if len(cfg.Middleware.BlockedTerms) != 1 || !cfg.Middleware.RedactPII {
		t.Fatalf("guardrail toggles = %#v", cfg.Middleware)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{bad"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatal("expected parse error for malformed JSON")
	}

	unknown := filepath.Join(dir, "agent.toml")
	if err := os.WriteFile(unknown, []byte("name = \"x\""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(unknown); err == nil {
		t.Fatal("expected error for unsupported extension")
	}

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
