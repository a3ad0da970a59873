package multiagent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/relaylabs/agentloop/observe"
)

func (o *Orchestrator) runSequential(ctx context.Context, runID, input string) (*Result, error) {
	result := &Result{AgentRuns: make(map[string]AgentRun)}

	current := input
	for i, sub := range o.ordered() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		o.emit(ctx, observe.Event{
			Kind:   observe.KindCustom,
			RunID:  runID,
			Status: observe.StatusStarted,
			Name:   "multiagent.step",
			Attributes: map[string]any{
				"agent":    sub.Name,
				"sequence": i + 1,
			},
		})

		run, err := o.runOne(ctx, sub, current)
		result.AgentRuns[sub.Name] = run
		if err != nil {
			o.emit(ctx, observe.Event{
				Kind:       observe.KindCustom,
				RunID:      runID,
				Status:     observe.StatusFailed,
				Name:       "multiagent.step",
				Error:      err.Error(),
				Attributes: map[string]any{"agent": sub.Name},
			})
			return nil, fmt.Errorf("multiagent: agent %q failed: %w", sub.Name, err)
		}

		result.Output = run.Output
		current = run.Output

		o.emit(ctx, observe.Event{
			Kind:       observe.KindCustom,
			RunID:      runID,
			Status:     observe.StatusCompleted,
			Name:       "multiagent.step",
			DurationMs: run.Duration.Milliseconds(),
			Attributes: map[string]any{"agent": sub.Name},
		})
	}
	return result, nil
}

func (o *Orchestrator) runParallel(ctx context.Context, runID, input string) (*Result, error) {
	subs := o.ordered()
	result := &Result{AgentRuns: make(map[string]AgentRun)}

	var wg sync.WaitGroup
	runs := make([]AgentRun, len(subs))
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *SubAgent) {
			defer wg.Done()
			run, err := o.runOne(ctx, sub, input)
			runs[i] = run

			status := observe.StatusCompleted
			if err != nil {
				status = observe.StatusFailed
			}
			o.emit(ctx, observe.Event{
				Kind:       observe.KindCustom,
				RunID:      runID,
				Status:     status,
				Name:       "multiagent.fanout",
				DurationMs: run.Duration.Milliseconds(),
				Error:      run.Error,
				Attributes: map[string]any{"agent": sub.Name},
			})
		}(i, sub)
	}
	wg.Wait()

	var outputs []string
	for _, run := range runs {
		result.AgentRuns[run.Agent] = run
		if run.Error == "" && run.Output != "" {
			outputs = append(outputs, fmt.Sprintf("[%s]: %s", run.Agent, run.Output))
		}
	}
	result.Output = strings.Join(outputs, "\n\n")
	return result, nil
}

func (o *Orchestrator) runSupervisor(ctx context.Context, runID, input string) (*Result, error) {
	coordinator, workers := o.split()
	if coordinator == nil {
		return nil, fmt.Errorf("multiagent: supervisor pattern requires a coordinator agent")
	}
	if len(workers) == 0 {
		return nil, fmt.Errorf("multiagent: supervisor pattern requires at least one worker")
	}

	result := &Result{AgentRuns: make(map[string]AgentRun)}

	prompt := fmt.Sprintf(`You supervise a team of agents.

Team:
%s

Request: %s

Delegate work to team members with the delegate_task tool, then synthesize their
answers into one final response.`, strings.Join(rosterLines(workers), "\n"), input)

	recorder := &delegationRecorder{runs: make(map[string]AgentRun)}
	runCtx := withDelegationRecorder(ctx, recorder)

	run, err := o.runOne(runCtx, coordinator, prompt)
	result.AgentRuns[coordinator.Name] = run

	recorder.mu.Lock()
	for name, workerRun := range recorder.runs {
		result.AgentRuns[name] = workerRun
	}
	recorder.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("multiagent: coordinator %q failed: %w", coordinator.Name, err)
	}
	result.Output = run.Output
	return result, nil
}

func (o *Orchestrator) runRouter(ctx context.Context, runID, input string) (*Result, error) {
	coordinator, specialists := o.split()
	if coordinator == nil {
		return nil, fmt.Errorf("multiagent: router pattern requires a coordinator agent")
	}
	if len(specialists) == 0 {
		return nil, fmt.Errorf("multiagent: router pattern requires at least one specialist")
	}

	result := &Result{AgentRuns: make(map[string]AgentRun)}

	prompt := fmt.Sprintf(`You route requests to specialist agents.

Specialists:
%s

Request: %s

Reply with ONLY the name of the specialist best suited to handle this request.`,
		strings.Join(rosterLines(specialists), "\n"), input)

	routerRun, err := o.runOne(ctx, coordinator, prompt)
	result.AgentRuns[coordinator.Name] = routerRun
	if err != nil {
		return nil, fmt.Errorf("multiagent: router %q failed: %w", coordinator.Name, err)
	}

	selected := pickSpecialist(routerRun.Output, specialists)
	result.SelectedAgent = selected.Name

	o.emit(ctx, observe.Event{
		Kind:       observe.KindCustom,
		RunID:      runID,
		Status:     observe.StatusStarted,
		Name:       "multiagent.route",
		Attributes: map[string]any{"agent": selected.Name},
	})

	run, err := o.runOne(ctx, selected, input)
	result.AgentRuns[selected.Name] = run
	if err != nil {
		return nil, fmt.Errorf("multiagent: specialist %q failed: %w", selected.Name, err)
	}
	result.Output = run.Output
	return result, nil
}

// runOne runs a single sub-agent under the per-agent timeout and wraps the
// outcome in an AgentRun.
func (o *Orchestrator) runOne(ctx context.Context, sub *SubAgent, input string) (AgentRun, error) {
	runCtx, cancel := context.WithTimeout(ctx, o.cfg.AgentTimeout)
	defer cancel()

	started := time.Now()
	output, err := sub.Agent.Run(runCtx, input)
	run := AgentRun{
		Agent:    sub.Name,
		Output:   output,
		Duration: time.Since(started),
	}
	if err != nil {
		run.Error = err.Error()
	}
	return run, err
}

// pickSpecialist matches the router's reply to a specialist by name,
// falling back to the first specialist when nothing matches.
func pickSpecialist(reply string, specialists []*SubAgent) *SubAgent {
	trimmed := strings.TrimSpace(reply)
	for _, sub := range specialists {
		if strings.EqualFold(trimmed, sub.Name) {
			return sub
		}
	}
	lower := strings.ToLower(reply)
	for _, sub := range specialists {
		if strings.Contains(lower, strings.ToLower(sub.Name)) {
			return sub
		}
	}
	return specialists[0]
}
