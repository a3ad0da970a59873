package factory

import "testing"

func TestProviderForModel(t *testing.T) {
	cases := []struct {
		model string
		want  string
	}{
		{"gpt-4o-mini", "openai"},
		{"o1-preview", "openai"},
		{"o3-mini", "openai"},
		{"claude-sonnet-4-20250514", "anthropic"},
		{"  Claude-Haiku  ", "anthropic"},
		{"gemini-2.0-flash", "gemini"},
		{"llama3.2", "ollama"},
		{"qwen2.5-coder", "ollama"},
		{"", "ollama"},
	}
	for _, tc := range cases {
		if got := ProviderForModel(tc.model); got != tc.want {
			t.Fatalf("ProviderForModel(%q) = %q, want %q", tc.model, got, tc.want)
		}
	}
}
