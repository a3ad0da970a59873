package multiagent

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/relaylabs/agentloop/llm"
	"github.com/relaylabs/agentloop/types"
)

// replyProvider answers every call by applying reply to the last message.
type replyProvider struct {
	name  string
	reply func(last string) string
}

func (p *replyProvider) Name() string { return p.name }

func (p *replyProvider) Capabilities() llm.Capabilities {
	return llm.Capabilities{Tools: true}
}

func (p *replyProvider) Generate(ctx context.Context, req types.Request) (types.Response, error) {
	last := ""
	if len(req.Messages) > 0 {
		last = req.Messages[len(req.Messages)-1].Content
	}
	return types.Response{
		Message: types.Message{Role: types.RoleAssistant, Content: p.reply(last)},
	}, nil
}

// scriptProvider returns canned responses in order, repeating the final one.
type scriptProvider struct {
	name      string
	mu        sync.Mutex
	responses []types.Response
	calls     int
}

func (p *scriptProvider) Name() string { return p.name }

func (p *scriptProvider) Capabilities() llm.Capabilities {
	return llm.Capabilities{Tools: true}
}

func (p *scriptProvider) Generate(ctx context.Context, req types.Request) (types.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.calls
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	p.calls++
	return p.responses[idx], nil
}

func TestSequentialPassesOutputForward(t *testing.T) {
	o, err := NewOrchestrator(Config{Pattern: PatternSequential, AgentTimeout: time.Minute})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	first := &replyProvider{name: "fake", reply: func(last string) string { return "step1:" + last }}
	second := &replyProvider{name: "fake", reply: func(last string) string { return "step2:" + last }}

	if err := o.Register(AgentConfig{Name: "drafter", Provider: first}); err != nil {
		t.Fatalf("register drafter: %v", err)
	}
	if err := o.Register(AgentConfig{Name: "editor", Provider: second}); err != nil {
		t.Fatalf("register editor: %v", err)
	}

	result, err := o.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := "step2:step1:hello"; result.Output != want {
		t.Fatalf("output = %q, want %q", result.Output, want)
	}
	if len(result.AgentRuns) != 2 {
		t.Fatalf("expected 2 agent runs, got %d", len(result.AgentRuns))
	}
	if result.AgentRuns["drafter"].Output != "step1:hello" {
		t.Fatalf("drafter output = %q", result.AgentRuns["drafter"].Output)
	}
}

func TestParallelJoinsOutputs(t *testing.T) {
	o, err := NewOrchestrator(Config{Pattern: PatternParallel})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	for _, name := range []string{"alpha", "beta"} {
		name := name
		p := &replyProvider{name: "fake", reply: func(string) string { return name + " says hi" }}
		if err := o.Register(AgentConfig{Name: name, Provider: p}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	result, err := o.Run(context.Background(), "greet")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(result.Output, "[alpha]: alpha says hi") {
		t.Fatalf("missing alpha output: %q", result.Output)
	}
	if !strings.Contains(result.Output, "[beta]: beta says hi") {
		t.Fatalf("missing beta output: %q", result.Output)
	}
}

func TestRouterSelectsSpecialistByName(t *testing.T) {
	o, err := NewOrchestrator(Config{Pattern: PatternRouter})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	router := &replyProvider{name: "fake", reply: func(string) string { return "billing" }}
	billing := &replyProvider{name: "fake", reply: func(string) string { return "invoice resolved" }}
	support := &replyProvider{name: "fake", reply: func(string) string { return "should not run" }}

	if err := o.Register(AgentConfig{Name: "dispatcher", Provider: router, Role: RoleCoordinator}); err != nil {
		t.Fatalf("register dispatcher: %v", err)
	}
	if err := o.Register(AgentConfig{Name: "billing", Description: "handles invoices", Provider: billing}); err != nil {
		t.Fatalf("register billing: %v", err)
	}
	if err := o.Register(AgentConfig{Name: "support", Description: "handles outages", Provider: support}); err != nil {
		t.Fatalf("register support: %v", err)
	}

	result, err := o.Run(context.Background(), "why was I charged twice?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.SelectedAgent != "billing" {
		t.Fatalf("selected = %q, want billing", result.SelectedAgent)
	}
	if result.Output != "invoice resolved" {
		t.Fatalf("output = %q", result.Output)
	}
	if _, ran := result.AgentRuns["support"]; ran {
		t.Fatal("support should not have run")
	}
}

func TestSupervisorDelegatesViaTool(t *testing.T) {
	o, err := NewOrchestrator(Config{Pattern: PatternSupervisor})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	delegateCall := types.ToolCall{
		ID:        "call-1",
		Name:      "delegate_task",
		Arguments: json.RawMessage(`{"agent":"researcher","task":"find the figure"}`),
	}
	supervisor := &scriptProvider{
		name: "fake",
		responses: []types.Response{
			{Message: types.Message{Role: types.RoleAssistant, ToolCalls: []types.ToolCall{delegateCall}}},
			{Message: types.Message{Role: types.RoleAssistant, Content: "final: figure found"}},
		},
	}
	worker := &replyProvider{name: "fake", reply: func(string) string { return "the figure is 42" }}

	if err := o.Register(AgentConfig{Name: "lead", Provider: supervisor, Role: RoleCoordinator}); err != nil {
		t.Fatalf("register lead: %v", err)
	}
	if err := o.Register(AgentConfig{Name: "researcher", Description: "looks things up", Provider: worker}); err != nil {
		t.Fatalf("register researcher: %v", err)
	}

	result, err := o.Run(context.Background(), "what is the figure?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Output != "final: figure found" {
		t.Fatalf("output = %q", result.Output)
	}
	workerRun, ok := result.AgentRuns["researcher"]
	if !ok {
		t.Fatal("expected researcher run to be recorded")
	}
	if workerRun.Output != "the figure is 42" {
		t.Fatalf("researcher output = %q", workerRun.Output)
	}
}

func TestRegisterRejectsDuplicatesAndSecondCoordinator(t *testing.T) {
	o, err := NewOrchestrator(Config{Pattern: PatternRouter})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	p := &replyProvider{name: "fake", reply: func(string) string { return "ok" }}

	if err := o.Register(AgentConfig{Name: "a", Provider: p}); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := o.Register(AgentConfig{Name: "a", Provider: p}); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
	if err := o.Register(AgentConfig{Name: "lead", Provider: p, Role: RoleCoordinator}); err != nil {
		t.Fatalf("register lead: %v", err)
	}
	if err := o.Register(AgentConfig{Name: "lead2", Provider: p, Role: RoleCoordinator}); err == nil {
		t.Fatal("expected second coordinator to be rejected")
	}
}

func TestSharedMemoryTTL(t *testing.T) {
	m := NewSharedMemory()

	m.Set("plan", "v1", "alpha")
	if v, ok := m.Get("plan"); !ok || v != "v1" {
		t.Fatalf("Get(plan) = %v, %v", v, ok)
	}

	m.SetWithTTL("temp", "gone soon", "beta", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := m.Get("temp"); ok {
		t.Fatal("expected expired entry to be dropped")
	}

	keys := m.Keys()
	if len(keys) != 1 || keys[0] != "plan" {
		t.Fatalf("Keys() = %v", keys)
	}

	m.Delete("plan")
	if _, ok := m.Get("plan"); ok {
		t.Fatal("expected deleted entry to be gone")
	}
}
