package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/relaylabs/agentloop/observe"
	"github.com/relaylabs/agentloop/observe/store"
	obssqlite "github.com/relaylabs/agentloop/observe/store/sqlite"
	"github.com/relaylabs/agentloop/prompt"
	"github.com/relaylabs/agentloop/state"
	"github.com/relaylabs/agentloop/tools"
)

func listThreads(ctx context.Context, args []string) {
	opts, _ := parseArgs(args)
	st := openStateStore(opts)
	if st == nil {
		log.Fatal("threads requires --store= (or AGENT_STATE_PATH)")
	}
	defer closeStore(st)

	limit := opts.limit
	if limit <= 0 {
		limit = 20
	}
	runs, err := st.ListRuns(ctx, state.ListRunsQuery{ThreadID: opts.thread, Limit: limit})
	if err != nil {
		log.Fatalf("list runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tTHREAD\tSTATUS\tINPUT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", run.RunID, run.ThreadID, run.Status, clip(run.Input, 60))
	}
	w.Flush()
}

func listTools() {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tDESCRIPTION")
	for _, info := range tools.Catalog() {
		fmt.Fprintf(w, "%s\t%s\n", info.Name, info.Description)
	}
	w.Flush()

	fmt.Println()
	for _, bundle := range tools.Bundles() {
		fmt.Printf("@%s: %s\n", bundle.Name, strings.Join(bundle.Tools, ", "))
	}
}

func listPrompts() {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROMPT\tVERSION\tDESCRIPTION")
	for _, spec := range prompt.List() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", spec.Name, spec.Version, spec.Description)
	}
	w.Flush()
}

func listEvents(ctx context.Context, args []string) {
	opts, _ := parseArgs(args)
	st := openEventStore(opts)
	defer st.Close()

	query := store.ListQuery{Limit: opts.limit}
	var (
		events []observe.Event
		err    error
	)
	switch {
	case opts.run != "":
		events, err = st.ListEventsByRun(ctx, opts.run, query)
	case opts.thread != "":
		events, err = st.ListEventsByThread(ctx, opts.thread, query)
	default:
		log.Fatal("events requires --run= or --thread=")
	}
	if err != nil {
		log.Fatalf("list events: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tSTATUS\tNAME\tDETAIL")
	for _, e := range events {
		detail := e.ToolName
		if detail == "" {
			detail = e.Model
		}
		if e.Error != "" {
			detail = e.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format("15:04:05.000"), e.Kind, e.Status, e.Name, clip(detail, 50))
	}
	w.Flush()
}

func showMetrics(ctx context.Context, args []string) {
	opts, _ := parseArgs(args)
	st := openEventStore(opts)
	defer st.Close()

	summary, err := st.AggregateMetrics(ctx, store.MetricsQuery{})
	if err != nil {
		log.Fatalf("aggregate metrics: %v", err)
	}
	fmt.Printf("runs:      %d started, %d completed, %d failed\n",
		summary.RunsStarted, summary.RunsCompleted, summary.RunsFailed)
	fmt.Printf("providers: %d calls, %d failures\n", summary.ProviderCalls, summary.ProviderFailures)
	fmt.Printf("tools:     %d calls, %d failures\n", summary.ToolCalls, summary.ToolFailures)
}

func openEventStore(opts cliOptions) store.Store {
	path := opts.eventsPath
	if path == "" {
		path = strings.TrimSpace(os.Getenv("AGENT_EVENTS_PATH"))
	}
	if path == "" {
		path = "agentloop-events.db"
	}
	st, err := obssqlite.Open(path)
	if err != nil {
		log.Fatalf("open event store %q: %v", path, err)
	}
	return st
}

func clip(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
