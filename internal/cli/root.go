// Package cli implements the agentloop command: run agents from profiles,
// resolve pending approvals, and inspect threads, tools, prompts and
// recorded events.
package cli

import (
	"context"
	"strings"

	"github.com/joho/godotenv"

	"github.com/relaylabs/agentloop/prompt"
)

func Run(ctx context.Context, args []string) {
	_ = godotenv.Load()
	prompt.RegisterBuiltins()
	_, _ = prompt.LoadDir("./.agentloop/prompts")

	if len(args) < 1 {
		printUsage()
		return
	}

	switch strings.TrimSpace(args[0]) {
	case "run":
		runAgent(ctx, args[1:])
	case "resume":
		resumeThread(ctx, args[1:])
	case "threads":
		listThreads(ctx, args[1:])
	case "tools":
		listTools()
	case "prompts":
		listPrompts()
	case "events":
		listEvents(ctx, args[1:])
	case "metrics":
		showMetrics(ctx, args[1:])
	case "help", "-h", "--help":
		printUsage()
	default:
		runAgent(ctx, args)
	}
}
