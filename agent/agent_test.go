package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/relaylabs/agentloop/llm"
	"github.com/relaylabs/agentloop/state/memory"
	"github.com/relaylabs/agentloop/tools"
	"github.com/relaylabs/agentloop/types"
)

// mockProvider replays scripted responses and records every request it saw.
type mockProvider struct {
	name      string
	mu        sync.Mutex
	responses []types.Response
	errs      []error
	requests  []types.Request
}

func (p *mockProvider) Name() string {
	if p.name != "" {
		return p.name
	}
	return "mock"
}

func (p *mockProvider) Capabilities() llm.Capabilities {
	return llm.Capabilities{Tools: true}
}

func (p *mockProvider) Generate(ctx context.Context, req types.Request) (types.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	idx := len(p.requests) - 1
	if idx < len(p.errs) && p.errs[idx] != nil {
		return types.Response{}, p.errs[idx]
	}
	if len(p.responses) == 0 {
		return types.Response{Message: types.Message{Role: types.RoleAssistant, Content: "done"}}, nil
	}
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	return p.responses[idx], nil
}

func (p *mockProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *mockProvider) request(i int) types.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[i]
}

func textResponse(content string) types.Response {
	return types.Response{Message: types.Message{Role: types.RoleAssistant, Content: content}}
}

func toolCallResponse(calls ...types.ToolCall) types.Response {
	return types.Response{Message: types.Message{Role: types.RoleAssistant, ToolCalls: calls}}
}

type echoArgs struct {
	Text string `json:"text"`
}

func echoTool() tools.Tool {
	return tools.Typed("echo", "Echo the given text back.",
		func(ctx context.Context, args echoArgs) (any, error) {
			return "echo:" + args.Text, nil
		})
}

func TestRunReturnsAssistantText(t *testing.T) {
	p := &mockProvider{responses: []types.Response{textResponse("hello there")}}
	a, err := New(p, WithSystemPrompt("be brief"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := a.Run(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "hello there" {
		t.Fatalf("output = %q", out)
	}
	if p.calls() != 1 {
		t.Fatalf("provider calls = %d, want 1", p.calls())
	}
	req := p.request(0)
	if req.SystemPrompt != "be brief" {
		t.Fatalf("system prompt = %q", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "hi" {
		t.Fatalf("messages = %#v", req.Messages)
	}
}

func TestToolLoopExecutesAndContinues(t *testing.T) {
	p := &mockProvider{responses: []types.Response{
		toolCallResponse(types.ToolCall{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"ping"}`)}),
		textResponse("final answer"),
	}}
	a, err := New(p, WithTool(echoTool()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := a.RunDetailed(context.Background(), "call the tool")
	if err != nil {
		t.Fatalf("RunDetailed: %v", err)
	}
	if result.Output != "final answer" {
		t.Fatalf("output = %q", result.Output)
	}
	if result.Iterations != 2 {
		t.Fatalf("iterations = %d, want 2", result.Iterations)
	}

	// user, assistant tool-call, tool result, final assistant
	if len(result.Messages) != 4 {
		t.Fatalf("message count = %d: %#v", len(result.Messages), result.Messages)
	}
	toolMsg := result.Messages[2]
	if toolMsg.Role != types.RoleTool || toolMsg.ToolCallID != "c1" {
		t.Fatalf("tool message = %#v", toolMsg)
	}
	if toolMsg.Content != "echo:ping" {
		t.Fatalf("tool content = %q", toolMsg.Content)
	}

	// The second provider call must include the tool result.
	second := p.request(1)
	if len(second.Messages) != 3 {
		t.Fatalf("second request messages = %d", len(second.Messages))
	}
}

func TestUnknownToolSurfacesErrorToModel(t *testing.T) {
	p := &mockProvider{responses: []types.Response{
		toolCallResponse(types.ToolCall{ID: "c1", Name: "nope", Arguments: json.RawMessage(`{}`)}),
		textResponse("recovered"),
	}}
	a, err := New(p, WithTool(echoTool()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := a.RunDetailed(context.Background(), "x")
	if err != nil {
		t.Fatalf("RunDetailed: %v", err)
	}
	if result.Output != "recovered" {
		t.Fatalf("output = %q", result.Output)
	}
	toolMsg := result.Messages[2]
	if !strings.HasPrefix(toolMsg.Content, "error:") {
		t.Fatalf("expected error content, got %q", toolMsg.Content)
	}
}

func TestMaxIterationsExceeded(t *testing.T) {
	p := &mockProvider{responses: []types.Response{
		toolCallResponse(types.ToolCall{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"again"}`)}),
	}}
	a, err := New(p, WithTool(echoTool()), WithMaxIterations(3))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = a.Run(context.Background(), "loop forever")
	if !errors.Is(err, ErrMaxIterations) {
		t.Fatalf("err = %v, want ErrMaxIterations", err)
	}
	if p.calls() != 3 {
		t.Fatalf("provider calls = %d, want 3", p.calls())
	}
}

// orderMiddleware records the order its hooks fire in.
type orderMiddleware struct {
	NoopMiddleware
	id  string
	log *[]string
	mu  *sync.Mutex
}

func (m *orderMiddleware) record(hook string) {
	m.mu.Lock()
	*m.log = append(*m.log, m.id+"."+hook)
	m.mu.Unlock()
}

func (m *orderMiddleware) BeforeAgent(ctx context.Context, ev *TurnEvent) error {
	m.record("beforeAgent")
	return m.NoopMiddleware.BeforeAgent(ctx, ev)
}

func (m *orderMiddleware) BeforeGenerate(ctx context.Context, ev *GenerateEvent) error {
	m.record("beforeGenerate")
	return m.NoopMiddleware.BeforeGenerate(ctx, ev)
}

func (m *orderMiddleware) AfterGenerate(ctx context.Context, ev *GenerateEvent) error {
	m.record("afterGenerate")
	return m.NoopMiddleware.AfterGenerate(ctx, ev)
}

func (m *orderMiddleware) AfterAgent(ctx context.Context, ev *TurnEvent) error {
	m.record("afterAgent")
	return m.NoopMiddleware.AfterAgent(ctx, ev)
}

func TestMiddlewareOrdering(t *testing.T) {
	var (
		log []string
		mu  sync.Mutex
	)
	first := &orderMiddleware{id: "a", log: &log, mu: &mu}
	second := &orderMiddleware{id: "b", log: &log, mu: &mu}

	p := &mockProvider{responses: []types.Response{textResponse("ok")}}
	a, err := New(p, WithMiddleware(first, second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.Run(context.Background(), "x"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		"a.beforeAgent", "b.beforeAgent",
		"a.beforeGenerate", "b.beforeGenerate",
		"b.afterGenerate", "a.afterGenerate",
		"b.afterAgent", "a.afterAgent",
	}
	if len(log) != len(want) {
		t.Fatalf("hook log = %v", log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("hook %d = %q, want %q (full: %v)", i, log[i], want[i], log)
		}
	}
}

// overrideMiddleware routes every call to an alternate provider.
type overrideMiddleware struct {
	NoopMiddleware
	alternate llm.Provider
	model     string
}

func (m *overrideMiddleware) BeforeGenerate(ctx context.Context, ev *GenerateEvent) error {
	if err := m.NoopMiddleware.BeforeGenerate(ctx, ev); err != nil {
		return err
	}
	ev.Request.Model = m.model
	ev.Override = m.alternate
	return nil
}

func TestProviderOverride(t *testing.T) {
	base := &mockProvider{name: "base", responses: []types.Response{textResponse("from base")}}
	alt := &mockProvider{name: "alt", responses: []types.Response{textResponse("from alt")}}

	a, err := New(base, WithMiddleware(&overrideMiddleware{alternate: alt, model: "alt-model"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := a.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "from alt" {
		t.Fatalf("output = %q", out)
	}
	if base.calls() != 0 {
		t.Fatalf("base provider was called %d times", base.calls())
	}
	if alt.request(0).Model != "alt-model" {
		t.Fatalf("alt model = %q", alt.request(0).Model)
	}
}

func TestThreadCheckpointRestore(t *testing.T) {
	store := memory.New()
	p := &mockProvider{responses: []types.Response{textResponse("noted")}}
	a, err := New(p, WithStore(store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if _, err := a.Run(ctx, "my name is Ada", WithThreadID("t1")); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := a.Run(ctx, "what is my name?", WithThreadID("t1")); err != nil {
		t.Fatalf("second run: %v", err)
	}

	// Second call sees the restored transcript plus the new user turn.
	second := p.request(1)
	if len(second.Messages) != 3 {
		t.Fatalf("restored message count = %d, want 3", len(second.Messages))
	}
	if second.Messages[0].Content != "my name is Ada" {
		t.Fatalf("restored first message = %q", second.Messages[0].Content)
	}

	// A different thread starts clean.
	if _, err := a.Run(ctx, "hello", WithThreadID("t2")); err != nil {
		t.Fatalf("third run: %v", err)
	}
	if third := p.request(2); len(third.Messages) != 1 {
		t.Fatalf("fresh thread message count = %d", len(third.Messages))
	}
}

// gate interrupts every call to the named tool.
type gate struct {
	NoopMiddleware
	tool string
}

func (g *gate) BeforeTool(ctx context.Context, ev *ToolEvent) error {
	if err := g.NoopMiddleware.BeforeTool(ctx, ev); err != nil {
		return err
	}
	if ev.ToolCall.Name == g.tool {
		return Interrupt("approval required for %s", g.tool)
	}
	return nil
}

func TestInterruptAndResume(t *testing.T) {
	store := memory.New()
	p := &mockProvider{responses: []types.Response{
		toolCallResponse(types.ToolCall{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"secret"}`)}),
		textResponse("all done"),
	}}
	a, err := New(p,
		WithTool(echoTool()),
		WithStore(store),
		WithMiddleware(&gate{tool: "echo"}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	result, err := a.RunDetailed(ctx, "do the thing", WithThreadID("t1"))
	if err != nil {
		t.Fatalf("RunDetailed: %v", err)
	}
	if !result.Interrupted() {
		t.Fatal("expected an interrupted result")
	}
	if len(result.Interrupt.Actions) != 1 || result.Interrupt.Actions[0].Tool != "echo" {
		t.Fatalf("interrupt actions = %#v", result.Interrupt.Actions)
	}

	// A plain run on the pending thread is refused.
	if _, err := a.Run(ctx, "more input", WithThreadID("t1")); !errors.Is(err, ErrPendingInterrupt) {
		t.Fatalf("err = %v, want ErrPendingInterrupt", err)
	}

	resumed, err := a.Resume(ctx, "t1", Approve("c1"))
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Output != "all done" {
		t.Fatalf("resumed output = %q", resumed.Output)
	}

	// The approved tool actually ran and its result reached the model.
	last := p.request(p.calls() - 1)
	found := false
	for _, msg := range last.Messages {
		if msg.Role == types.RoleTool && msg.Content == "echo:secret" {
			found = true
		}
	}
	if !found {
		t.Fatalf("tool result missing from resumed request: %#v", last.Messages)
	}

	// The interrupt is cleared; the thread accepts new runs again.
	if _, err := a.Run(ctx, "follow-up", WithThreadID("t1")); err != nil {
		t.Fatalf("post-resume run: %v", err)
	}
}

func TestResumeRejectDeliversReason(t *testing.T) {
	store := memory.New()
	p := &mockProvider{responses: []types.Response{
		toolCallResponse(types.ToolCall{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"x"}`)}),
		textResponse("understood"),
	}}
	a, err := New(p,
		WithTool(echoTool()),
		WithStore(store),
		WithMiddleware(&gate{tool: "echo"}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if _, err := a.RunDetailed(ctx, "go", WithThreadID("t1")); err != nil {
		t.Fatalf("RunDetailed: %v", err)
	}

	resumed, err := a.Resume(ctx, "t1", Reject("c1", "not allowed today"))
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Output != "understood" {
		t.Fatalf("output = %q", resumed.Output)
	}

	last := p.request(p.calls() - 1)
	found := false
	for _, msg := range last.Messages {
		if msg.Role == types.RoleTool && msg.Content == "not allowed today" {
			found = true
		}
	}
	if !found {
		t.Fatalf("rejection reason missing from request: %#v", last.Messages)
	}
}

func TestResumeRequiresEveryDecision(t *testing.T) {
	store := memory.New()
	p := &mockProvider{responses: []types.Response{
		toolCallResponse(
			types.ToolCall{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"a"}`)},
			types.ToolCall{ID: "c2", Name: "echo", Arguments: json.RawMessage(`{"text":"b"}`)},
		),
		textResponse("done"),
	}}
	a, err := New(p,
		WithTool(echoTool()),
		WithStore(store),
		WithMiddleware(&gate{tool: "echo"}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	result, err := a.RunDetailed(ctx, "go", WithThreadID("t1"))
	if err != nil {
		t.Fatalf("RunDetailed: %v", err)
	}
	if len(result.Interrupt.Actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(result.Interrupt.Actions))
	}

	if _, err := a.Resume(ctx, "t1", Approve("c1")); err == nil {
		t.Fatal("expected resume with a missing decision to fail")
	}
	if _, err := a.Resume(ctx, "t1", Approve("c1"), Approve("c1")); err == nil {
		t.Fatal("expected duplicate decisions to fail")
	}
	if _, err := a.Resume(ctx, "t1", Approve("c1"), Reject("c2", "")); err != nil {
		t.Fatalf("complete resume failed: %v", err)
	}
}

func TestParallelToolCallsPreserveOrder(t *testing.T) {
	slow := tools.Typed("slow", "Waits, then answers.",
		func(ctx context.Context, _ struct{}) (any, error) {
			time.Sleep(20 * time.Millisecond)
			return "slow-result", nil
		})
	fast := tools.Typed("fast", "Answers immediately.",
		func(ctx context.Context, _ struct{}) (any, error) {
			return "fast-result", nil
		})

	p := &mockProvider{responses: []types.Response{
		toolCallResponse(
			types.ToolCall{ID: "c1", Name: "slow", Arguments: json.RawMessage(`{}`)},
			types.ToolCall{ID: "c2", Name: "fast", Arguments: json.RawMessage(`{}`)},
		),
		textResponse("merged"),
	}}
	a, err := New(p, WithTools(slow, fast), WithParallelToolCalls(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := a.RunDetailed(context.Background(), "both")
	if err != nil {
		t.Fatalf("RunDetailed: %v", err)
	}

	var toolContents []string
	for _, msg := range result.Messages {
		if msg.Role == types.RoleTool {
			toolContents = append(toolContents, msg.Content)
		}
	}
	if len(toolContents) != 2 || toolContents[0] != "slow-result" || toolContents[1] != "fast-result" {
		t.Fatalf("tool results = %v", toolContents)
	}
}

func TestToolStateDeltaPersistsOnThread(t *testing.T) {
	store := memory.New()
	counter := tools.Typed("bump", "Increment a counter in thread state.",
		func(ctx context.Context, _ struct{}) (any, error) {
			rt := tools.RuntimeFromContext(ctx)
			n := 0
			if v, ok := rt.State("count"); ok {
				if f, ok := v.(int); ok {
					n = f
				}
			}
			rt.SetState("count", n+1)
			return fmt.Sprintf("count=%d", n+1), nil
		})

	p := &mockProvider{responses: []types.Response{
		toolCallResponse(types.ToolCall{ID: "c1", Name: "bump", Arguments: json.RawMessage(`{}`)}),
		textResponse("bumped"),
	}}
	a, err := New(p, WithTool(counter), WithStore(store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	result, err := a.RunDetailed(ctx, "bump it", WithThreadID("t1"))
	if err != nil {
		t.Fatalf("RunDetailed: %v", err)
	}
	if result.State["count"] != 1 {
		t.Fatalf("state count = %v", result.State["count"])
	}

	// Seeded state overrides the checkpoint on the next run.
	result, err = a.RunDetailed(ctx, "bump again", WithThreadID("t1"), WithState(map[string]any{"count": 10}))
	if err != nil {
		t.Fatalf("second RunDetailed: %v", err)
	}
	if result.State["count"] != 11 {
		t.Fatalf("state count after seed = %v", result.State["count"])
	}
}

// stateSnooper reads and scribbles on the state view an AfterTool hook
// receives.
type stateSnooper struct {
	NoopMiddleware

	mu   sync.Mutex
	seen []map[string]any
}

func (s *stateSnooper) AfterTool(ctx context.Context, ev *ToolEvent) error {
	view := map[string]any{}
	for k, v := range ev.State {
		view[k] = v
	}
	ev.State["tampered"] = true
	s.mu.Lock()
	s.seen = append(s.seen, view)
	s.mu.Unlock()
	return nil
}

func TestAfterToolStateIsSnapshot(t *testing.T) {
	write := func(key string) tools.Tool {
		return tools.Typed(key, "Writes one state key.",
			func(ctx context.Context, _ struct{}) (any, error) {
				tools.RuntimeFromContext(ctx).SetState(key, "set")
				return "ok", nil
			})
	}

	p := &mockProvider{responses: []types.Response{
		toolCallResponse(
			types.ToolCall{ID: "c1", Name: "alpha", Arguments: json.RawMessage(`{}`)},
			types.ToolCall{ID: "c2", Name: "beta", Arguments: json.RawMessage(`{}`)},
		),
		textResponse("done"),
	}}
	snoop := &stateSnooper{}
	a, err := New(p,
		WithTools(write("alpha"), write("beta")),
		WithParallelToolCalls(true),
		WithMiddleware(snoop),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := a.RunDetailed(context.Background(), "both")
	if err != nil {
		t.Fatalf("RunDetailed: %v", err)
	}

	if len(snoop.seen) != 2 {
		t.Fatalf("hook fired %d times, want 2", len(snoop.seen))
	}
	if result.State["alpha"] != "set" || result.State["beta"] != "set" {
		t.Fatalf("state = %v", result.State)
	}
	// Hooks see a copy; scribbling on it never reaches the thread state.
	if _, ok := result.State["tampered"]; ok {
		t.Fatalf("hook mutation leaked into thread state: %v", result.State)
	}
}

func TestGenerateRetries(t *testing.T) {
	p := &mockProvider{
		errs:      []error{errors.New("transient"), nil},
		responses: []types.Response{textResponse("ok"), textResponse("ok")},
	}
	a, err := New(p, WithRetryPolicy(RetryPolicy{MaxAttempts: 2, BaseBackoff: time.Millisecond}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := a.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "ok" {
		t.Fatalf("output = %q", out)
	}
	if p.calls() != 2 {
		t.Fatalf("provider calls = %d, want 2", p.calls())
	}
}

func TestRunRecordSaved(t *testing.T) {
	store := memory.New()
	p := &mockProvider{responses: []types.Response{textResponse("saved")}}
	a, err := New(p, WithStore(store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	result, err := a.RunDetailed(ctx, "persist me", WithThreadID("t1"))
	if err != nil {
		t.Fatalf("RunDetailed: %v", err)
	}

	record, err := store.LoadRun(ctx, result.RunID)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if record.Status != "completed" || record.Output != "saved" {
		t.Fatalf("record = %#v", record)
	}
	if record.Input != "persist me" {
		t.Fatalf("record input = %q", record.Input)
	}
}
