package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/relaylabs/agentloop/agent"
	"github.com/relaylabs/agentloop/llm"
	obsstore "github.com/relaylabs/agentloop/observe/store"
	obssqlite "github.com/relaylabs/agentloop/observe/store/sqlite"
	"github.com/relaylabs/agentloop/providers/factory"
	"github.com/relaylabs/agentloop/runtimeconfig"
	"github.com/relaylabs/agentloop/state"
	"github.com/relaylabs/agentloop/state/sqlite"
	"github.com/relaylabs/agentloop/tools"
	"github.com/relaylabs/agentloop/types"
)

func runAgent(ctx context.Context, args []string) {
	opts, positional := parseArgs(args)
	input := normalizeInput(positional)
	if input == "" {
		log.Println("nothing to do: provide a prompt, e.g. agentloop run \"plan my week\"")
		return
	}

	store := openStateStore(opts)
	defer closeStore(store)
	events := maybeEventStore(opts)
	if events != nil {
		defer events.Close()
	}

	a, err := buildAgent(ctx, opts, store, events)
	if err != nil {
		log.Fatalf("build agent: %v", err)
	}

	var runOpts []agent.RunOption
	if opts.thread != "" {
		runOpts = append(runOpts, agent.WithThreadID(opts.thread))
	}
	result, err := a.RunDetailed(ctx, input, runOpts...)
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}

	if result.Interrupted() {
		printPending(result.Interrupt)
		return
	}
	fmt.Println(result.Output)
}

func resumeThread(ctx context.Context, args []string) {
	opts, _ := parseArgs(args)
	if opts.thread == "" {
		log.Fatal("resume requires --thread=")
	}

	store := openStateStore(opts)
	if store == nil {
		log.Fatal("resume requires --store= (or AGENT_STATE_PATH)")
	}
	defer closeStore(store)
	events := maybeEventStore(opts)
	if events != nil {
		defer events.Close()
	}

	a, err := buildAgent(ctx, opts, store, events)
	if err != nil {
		log.Fatalf("build agent: %v", err)
	}

	checkpoint, err := store.LoadLatestCheckpoint(ctx, opts.thread)
	if err != nil {
		log.Fatalf("load thread %q: %v", opts.thread, err)
	}
	if checkpoint.Pending == nil {
		log.Fatalf("thread %q has nothing pending", opts.thread)
	}

	decisions := make([]agent.Decision, 0, len(checkpoint.Pending.Calls))
	for _, call := range checkpoint.Pending.Calls {
		if opts.reject != "" {
			decisions = append(decisions, agent.Reject(call.ID, opts.reject))
		} else {
			decisions = append(decisions, agent.Approve(call.ID))
		}
	}

	result, err := a.Resume(ctx, opts.thread, decisions...)
	if err != nil {
		log.Fatalf("resume failed: %v", err)
	}
	if result.Interrupted() {
		printPending(result.Interrupt)
		return
	}
	fmt.Println(result.Output)
}

func buildAgent(ctx context.Context, opts cliOptions, store state.Store, events obsstore.Store) (*agent.Agent, error) {
	var extra []agent.Option
	if store != nil {
		extra = append(extra, agent.WithStore(store))
	}
	if events != nil {
		extra = append(extra, agent.WithObserver(obsstore.Sink(events)))
	}
	if opts.systemPrompt != "" {
		extra = append(extra, agent.WithSystemPrompt(opts.systemPrompt))
	}
	if len(opts.tools) > 0 {
		selected, err := tools.BuildSelection(opts.tools)
		if err != nil {
			return nil, err
		}
		extra = append(extra, agent.WithTools(selected...))
	}

	if opts.profile != "" {
		cfg, err := runtimeconfig.Load(opts.profile)
		if err != nil {
			return nil, err
		}
		if opts.model != "" {
			cfg.Model = opts.model
		}
		return runtimeconfig.Build(ctx, cfg, extra...)
	}

	provider, err := providerFor(ctx, opts.model)
	if err != nil {
		return nil, err
	}
	if opts.model != "" {
		extra = append(extra, agent.WithModel(opts.model))
	}
	return agent.New(provider, extra...)
}

func providerFor(ctx context.Context, model string) (llm.Provider, error) {
	if model != "" {
		return factory.FromModel(ctx, model)
	}
	return factory.FromEnv(ctx)
}

func openStateStore(opts cliOptions) state.Store {
	path := opts.storePath
	if path == "" {
		path = strings.TrimSpace(os.Getenv("AGENT_STATE_PATH"))
	}
	if path == "" {
		if opts.thread == "" {
			return nil
		}
		path = "agentloop.db"
	}
	store, err := sqlite.New(path)
	if err != nil {
		log.Fatalf("open state store %q: %v", path, err)
	}
	return store
}

// maybeEventStore opens the event store only when one was asked for, so a
// plain run stays file-free.
func maybeEventStore(opts cliOptions) obsstore.Store {
	path := opts.eventsPath
	if path == "" {
		path = strings.TrimSpace(os.Getenv("AGENT_EVENTS_PATH"))
	}
	if path == "" {
		return nil
	}
	st, err := obssqlite.Open(path)
	if err != nil {
		log.Fatalf("open event store %q: %v", path, err)
	}
	return st
}

func printPending(interrupt *types.Interrupt) {
	fmt.Printf("run paused on thread %q awaiting approval:\n", interrupt.ThreadID)
	w := bufio.NewWriter(os.Stdout)
	for _, action := range interrupt.Actions {
		fmt.Fprintf(w, "  [%s] %s %s\n", action.ToolCallID, action.Tool, string(action.Arguments))
		if action.Description != "" {
			fmt.Fprintf(w, "        %s\n", action.Description)
		}
	}
	fmt.Fprintf(w, "resolve with: agentloop resume --thread=%s [--reject=reason]\n", interrupt.ThreadID)
	w.Flush()
}
