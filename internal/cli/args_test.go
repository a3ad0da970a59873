package cli

import "testing"

func TestParseArgsSplitsFlagsFromPositional(t *testing.T) {
	opts, positional := parseArgs([]string{
		"--profile=agent.yaml",
		"--thread=t1",
		"--tools=calculator, @web ,",
		"--limit=5",
		"plan", "my", "week",
	})
	if opts.profile != "agent.yaml" || opts.thread != "t1" {
		t.Fatalf("opts = %#v", opts)
	}
	if len(opts.tools) != 2 || opts.tools[0] != "calculator" || opts.tools[1] != "@web" {
		t.Fatalf("tools = %#v", opts.tools)
	}
	if opts.limit != 5 {
		t.Fatalf("limit = %d", opts.limit)
	}
	if normalizeInput(positional) != "plan my week" {
		t.Fatalf("input = %q", normalizeInput(positional))
	}
}

func TestNormalizeInputSkipsSeparator(t *testing.T) {
	if got := normalizeInput([]string{"--", "hello there"}); got != "hello there" {
		t.Fatalf("input = %q", got)
	}
}

func TestParsePositiveInt(t *testing.T) {
	if parsePositiveInt("12") != 12 || parsePositiveInt("x") != 0 || parsePositiveInt("-3") != 0 {
		t.Fatal("parsePositiveInt misbehaves")
	}
}
