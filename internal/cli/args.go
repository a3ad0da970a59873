package cli

import (
	"log"
	"strconv"
	"strings"

	"github.com/relaylabs/agentloop/state"
)

type cliOptions struct {
	profile      string
	thread       string
	model        string
	systemPrompt string
	tools        []string
	storePath    string
	eventsPath   string
	run          string
	reject       string
	limit        int
}

func parseArgs(args []string) (cliOptions, []string) {
	opts := cliOptions{}
	positional := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--profile="):
			opts.profile = strings.TrimSpace(strings.TrimPrefix(arg, "--profile="))
		case strings.HasPrefix(arg, "--thread="):
			opts.thread = strings.TrimSpace(strings.TrimPrefix(arg, "--thread="))
		case strings.HasPrefix(arg, "--model="):
			opts.model = strings.TrimSpace(strings.TrimPrefix(arg, "--model="))
		case strings.HasPrefix(arg, "--system-prompt="):
			opts.systemPrompt = strings.TrimSpace(strings.TrimPrefix(arg, "--system-prompt="))
		case strings.HasPrefix(arg, "--tools="):
			opts.tools = splitCSV(strings.TrimPrefix(arg, "--tools="))
		case strings.HasPrefix(arg, "--store="):
			opts.storePath = strings.TrimSpace(strings.TrimPrefix(arg, "--store="))
		case strings.HasPrefix(arg, "--events="):
			opts.eventsPath = strings.TrimSpace(strings.TrimPrefix(arg, "--events="))
		case strings.HasPrefix(arg, "--run="):
			opts.run = strings.TrimSpace(strings.TrimPrefix(arg, "--run="))
		case strings.HasPrefix(arg, "--reject="):
			opts.reject = strings.TrimSpace(strings.TrimPrefix(arg, "--reject="))
		case strings.HasPrefix(arg, "--limit="):
			opts.limit = parsePositiveInt(strings.TrimPrefix(arg, "--limit="))
		default:
			positional = append(positional, arg)
		}
	}
	return opts, positional
}

func normalizeInput(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) == "--" {
		args = args[1:]
	}
	return strings.TrimSpace(strings.Join(args, " "))
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsePositiveInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func closeStore(store state.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		log.Printf("state store close failed: %v", err)
	}
}
