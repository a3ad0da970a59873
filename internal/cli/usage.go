package cli

import "fmt"

func printUsage() {
	fmt.Print(`agentloop - run and inspect agents

Usage:
  agentloop run [flags] <prompt>     run an agent once
  agentloop resume --thread=<id>     resolve a pending approval
  agentloop threads [flags]          list recorded runs
  agentloop tools                    list registered tools and bundles
  agentloop prompts                  list registered prompts
  agentloop events --run=<id>        show recorded events for a run
  agentloop metrics                  show rollup event counters

Flags:
  --profile=<path>        agent profile (.json/.yaml)
  --thread=<id>           conversation thread (enables checkpointing)
  --model=<name>          model override; provider inferred from prefix
  --system-prompt=<text>  system prompt override
  --tools=<a,b,@bundle>   tool selection
  --store=<path>          sqlite state store (or AGENT_STATE_PATH)
  --events=<path>         sqlite event store (or AGENT_EVENTS_PATH)
  --reject=<reason>       reject pending calls on resume instead of approving
  --limit=<n>             cap list output

Provider credentials come from the environment (OPENAI_API_KEY,
ANTHROPIC_API_KEY, GEMINI_API_KEY, OLLAMA_HOST); a .env file is loaded
when present.
`)
}
