// Package multiagent coordinates several agents on one task. An
// Orchestrator holds named sub-agents and runs them under an execution
// pattern: sequential hand-off, parallel fan-out, supervisor delegation,
// or router dispatch.
package multiagent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaylabs/agentloop/agent"
	"github.com/relaylabs/agentloop/llm"
	"github.com/relaylabs/agentloop/observe"
	"github.com/relaylabs/agentloop/state"
	"github.com/relaylabs/agentloop/tools"
)

// Pattern selects how registered agents coordinate on a run.
type Pattern string

const (
	// PatternSequential runs agents in registration order, feeding each
	// agent's output to the next as input.
	PatternSequential Pattern = "sequential"
	// PatternParallel runs every agent on the same input concurrently and
	// joins the outputs.
	PatternParallel Pattern = "parallel"
	// PatternSupervisor gives the coordinator a delegation tool and lets
	// it farm work out to the other agents.
	PatternSupervisor Pattern = "supervisor"
	// PatternRouter asks the coordinator to pick one specialist, then runs
	// the original input through that specialist alone.
	PatternRouter Pattern = "router"
)

// Role marks an agent's place in the pattern. Exactly one coordinator is
// required for supervisor and router runs; all other agents are workers.
type Role string

const (
	RoleWorker      Role = "worker"
	RoleCoordinator Role = "coordinator"
)

// AgentConfig describes one sub-agent to register.
type AgentConfig struct {
	Name         string
	Description  string
	Provider     llm.Provider
	SystemPrompt string
	Tools        []tools.Tool
	Role         Role
	Options      []agent.Option
}

// Config configures an Orchestrator.
type Config struct {
	Pattern      Pattern
	AgentTimeout time.Duration
	// SharedMemory gives every agent shared_memory_read and
	// shared_memory_write tools backed by one in-process store.
	SharedMemory bool
	// AgentCalls gives every agent call_agent and list_agents tools so
	// peers can consult each other directly.
	AgentCalls bool
	Observer   observe.Sink
	Store      state.Store
}

// SubAgent is a registered agent plus its orchestrator metadata.
type SubAgent struct {
	Name        string
	Description string
	Role        Role
	Agent       *agent.Agent
	AddedAt     time.Time
}

// AgentRun is one agent's contribution to a multi-agent run.
type AgentRun struct {
	Agent    string        `json:"agent"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Result is the outcome of an orchestrated run.
type Result struct {
	RunID         string              `json:"runId"`
	Pattern       Pattern             `json:"pattern"`
	Output        string              `json:"output"`
	AgentRuns     map[string]AgentRun `json:"agentRuns"`
	SelectedAgent string              `json:"selectedAgent,omitempty"`
	Duration      time.Duration       `json:"duration"`
}

// Orchestrator manages a set of named sub-agents.
type Orchestrator struct {
	cfg    Config
	memory *SharedMemory

	mu     sync.RWMutex
	agents map[string]*SubAgent
	order  []string
}

func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Pattern == "" {
		cfg.Pattern = PatternSequential
	}
	switch cfg.Pattern {
	case PatternSequential, PatternParallel, PatternSupervisor, PatternRouter:
	default:
		return nil, fmt.Errorf("multiagent: unknown pattern %q", cfg.Pattern)
	}
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = 5 * time.Minute
	}

	o := &Orchestrator{
		cfg:    cfg,
		agents: make(map[string]*SubAgent),
	}
	if cfg.SharedMemory {
		o.memory = NewSharedMemory()
	}
	return o, nil
}

// Register builds and adds a sub-agent. Names must be unique; the
// coordinator role may be held by at most one agent.
func (o *Orchestrator) Register(cfg AgentConfig) error {
	if cfg.Name == "" {
		return errors.New("multiagent: agent name is required")
	}
	if cfg.Provider == nil {
		return fmt.Errorf("multiagent: agent %q has no provider", cfg.Name)
	}
	if cfg.Role == "" {
		cfg.Role = RoleWorker
	}

	opts := append([]agent.Option{agent.WithName(cfg.Name)}, cfg.Options...)
	if cfg.SystemPrompt != "" {
		opts = append(opts, agent.WithSystemPrompt(cfg.SystemPrompt))
	}
	opts = append(opts, agent.WithTools(cfg.Tools...))
	if o.cfg.Store != nil {
		opts = append(opts, agent.WithStore(o.cfg.Store))
	}
	if o.cfg.Observer != nil {
		opts = append(opts, agent.WithObserver(o.cfg.Observer))
	}
	if o.memory != nil {
		opts = append(opts, agent.WithTools(o.memoryReadTool(), o.memoryWriteTool()))
	}
	if o.cfg.AgentCalls {
		opts = append(opts, agent.WithTools(o.callAgentTool(cfg.Name), o.listAgentsTool()))
	}
	if o.cfg.Pattern == PatternSupervisor && cfg.Role == RoleCoordinator {
		opts = append(opts, agent.WithTool(o.delegateTool(cfg.Name)))
	}

	built, err := agent.New(cfg.Provider, opts...)
	if err != nil {
		return fmt.Errorf("multiagent: build agent %q: %w", cfg.Name, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.agents[cfg.Name]; exists {
		return fmt.Errorf("multiagent: agent %q already registered", cfg.Name)
	}
	if cfg.Role == RoleCoordinator {
		for _, sub := range o.agents {
			if sub.Role == RoleCoordinator {
				return fmt.Errorf("multiagent: coordinator already registered (%q)", sub.Name)
			}
		}
	}
	o.agents[cfg.Name] = &SubAgent{
		Name:        cfg.Name,
		Description: cfg.Description,
		Role:        cfg.Role,
		Agent:       built,
		AddedAt:     time.Now().UTC(),
	}
	o.order = append(o.order, cfg.Name)
	return nil
}

// Run executes the configured pattern against input.
func (o *Orchestrator) Run(ctx context.Context, input string) (*Result, error) {
	if len(o.ordered()) == 0 {
		return nil, errors.New("multiagent: no agents registered")
	}

	runID := uuid.NewString()
	started := time.Now()

	o.emit(ctx, observe.Event{
		Kind:   observe.KindCustom,
		RunID:  runID,
		Status: observe.StatusStarted,
		Name:   "multiagent.run",
		Attributes: map[string]any{
			"pattern": string(o.cfg.Pattern),
			"agents":  len(o.ordered()),
		},
	})

	var (
		result *Result
		err    error
	)
	switch o.cfg.Pattern {
	case PatternSequential:
		result, err = o.runSequential(ctx, runID, input)
	case PatternParallel:
		result, err = o.runParallel(ctx, runID, input)
	case PatternSupervisor:
		result, err = o.runSupervisor(ctx, runID, input)
	case PatternRouter:
		result, err = o.runRouter(ctx, runID, input)
	}
	if err != nil {
		o.emit(ctx, observe.Event{
			Kind:   observe.KindCustom,
			RunID:  runID,
			Status: observe.StatusFailed,
			Name:   "multiagent.run",
			Error:  err.Error(),
		})
		return nil, err
	}

	result.RunID = runID
	result.Pattern = o.cfg.Pattern
	result.Duration = time.Since(started)

	o.emit(ctx, observe.Event{
		Kind:       observe.KindCustom,
		RunID:      runID,
		Status:     observe.StatusCompleted,
		Name:       "multiagent.run",
		DurationMs: result.Duration.Milliseconds(),
	})
	return result, nil
}

// Agent returns a registered sub-agent by name.
func (o *Orchestrator) Agent(name string) (*SubAgent, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	sub, ok := o.agents[name]
	return sub, ok
}

// Agents lists registered sub-agents in registration order.
func (o *Orchestrator) Agents() []*SubAgent {
	subs := o.ordered()
	out := make([]*SubAgent, len(subs))
	copy(out, subs)
	return out
}

// Memory returns the shared memory, or nil when not enabled.
func (o *Orchestrator) Memory() *SharedMemory {
	return o.memory
}

// SendMessage routes a one-off message from one agent to another outside
// of any pattern, returning the target's reply.
func (o *Orchestrator) SendMessage(ctx context.Context, from, to, message string) (string, error) {
	target, ok := o.Agent(to)
	if !ok {
		return "", fmt.Errorf("multiagent: agent %q not found", to)
	}
	fromName := from
	if sender, ok := o.Agent(from); ok {
		fromName = sender.Name
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.AgentTimeout)
	defer cancel()
	return target.Agent.Run(runCtx, fmt.Sprintf("[Message from %s]: %s", fromName, message))
}

func (o *Orchestrator) ordered() []*SubAgent {
	o.mu.RLock()
	defer o.mu.RUnlock()
	subs := make([]*SubAgent, 0, len(o.order))
	for _, name := range o.order {
		subs = append(subs, o.agents[name])
	}
	return subs
}

// split partitions agents into the coordinator (if any) and everyone else.
func (o *Orchestrator) split() (coordinator *SubAgent, workers []*SubAgent) {
	for _, sub := range o.ordered() {
		if sub.Role == RoleCoordinator {
			coordinator = sub
		} else {
			workers = append(workers, sub)
		}
	}
	return coordinator, workers
}

func (o *Orchestrator) emit(ctx context.Context, event observe.Event) {
	if o.cfg.Observer != nil {
		_ = o.cfg.Observer.Emit(ctx, event)
	}
}

func rosterLines(subs []*SubAgent) []string {
	lines := make([]string, 0, len(subs))
	for _, sub := range subs {
		lines = append(lines, fmt.Sprintf("- %s: %s", sub.Name, sub.Description))
	}
	return lines
}
