// Package agent implements the model/tool loop at the core of the runtime.
// An Agent couples a provider, a tool set and a middleware chain; runs are
// checkpointed per thread so a later invocation with the same thread ID
// picks the conversation back up.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"github.com/relaylabs/agentloop/llm"
	"github.com/relaylabs/agentloop/observe"
	"github.com/relaylabs/agentloop/state"
	"github.com/relaylabs/agentloop/tools"
	"github.com/relaylabs/agentloop/types"
)

const (
	defaultMaxIterations = 10
	defaultToolTimeout   = 2 * time.Minute
)

// ErrMaxIterations is returned when the loop still sees tool calls after
// the configured iteration budget.
var ErrMaxIterations = errors.New("agent: max iterations reached")

// ErrPendingInterrupt is returned by Run when the thread already carries an
// unresolved interrupt. Resolve it with Resume.
var ErrPendingInterrupt = errors.New("agent: thread has a pending interrupt")

type Agent struct {
	provider        llm.Provider
	name            string
	systemPrompt    string
	model           string
	temperature     *float64
	maxOutputTokens int
	maxIterations   int
	toolset         map[string]tools.Tool
	toolOrder       []string
	middlewares     []Middleware
	store           state.Store
	sink            observe.Sink
	retry           RetryPolicy
	toolTimeout     time.Duration
	parallelTools   bool
}

type Option func(*Agent)

func WithName(name string) Option {
	return func(a *Agent) { a.name = name }
}

func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.systemPrompt = prompt }
}

// WithModel pins the model identifier sent to the provider. Middlewares may
// still rewrite it per call.
func WithModel(model string) Option {
	return func(a *Agent) { a.model = model }
}

func WithTemperature(t float64) Option {
	return func(a *Agent) { a.temperature = &t }
}

func WithMaxOutputTokens(n int) Option {
	return func(a *Agent) { a.maxOutputTokens = n }
}

func WithMaxIterations(n int) Option {
	return func(a *Agent) { a.maxIterations = n }
}

func WithTool(tool tools.Tool) Option {
	return func(a *Agent) {
		if tool == nil {
			return
		}
		name := tool.Definition().Name
		if name == "" {
			return
		}
		if _, exists := a.toolset[name]; !exists {
			a.toolOrder = append(a.toolOrder, name)
		}
		a.toolset[name] = tool
	}
}

func WithTools(ts ...tools.Tool) Option {
	return func(a *Agent) {
		for _, t := range ts {
			WithTool(t)(a)
		}
	}
}

func WithMiddleware(mw ...Middleware) Option {
	return func(a *Agent) {
		for _, m := range mw {
			if m != nil {
				a.middlewares = append(a.middlewares, m)
			}
		}
	}
}

// WithStore enables run persistence and thread checkpointing.
func WithStore(store state.Store) Option {
	return func(a *Agent) { a.store = store }
}

func WithObserver(sink observe.Sink) Option {
	return func(a *Agent) { a.sink = sink }
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(a *Agent) { a.retry = policy }
}

func WithToolTimeout(d time.Duration) Option {
	return func(a *Agent) { a.toolTimeout = d }
}

// WithParallelToolCalls executes the tool calls of a single model turn
// concurrently instead of sequentially.
func WithParallelToolCalls(enabled bool) Option {
	return func(a *Agent) { a.parallelTools = enabled }
}

func New(provider llm.Provider, opts ...Option) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("agent: provider is required")
	}
	a := &Agent{
		provider:      provider,
		maxIterations: defaultMaxIterations,
		toolset:       map[string]tools.Tool{},
		retry:         defaultRetryPolicy(),
		toolTimeout:   defaultToolTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.maxIterations < 1 {
		a.maxIterations = defaultMaxIterations
	}
	a.retry = normalizeRetryPolicy(a.retry)
	if len(a.toolset) > 0 && !provider.Capabilities().Tools {
		return nil, fmt.Errorf("agent: provider %q does not support tool calling", provider.Name())
	}
	return a, nil
}

// RunOptions carry per-invocation inputs: the thread to continue, a
// read-only context value visible to middlewares and tools, seed state, and
// preloaded transcript messages.
type RunOptions struct {
	threadID     string
	contextValue any
	state        map[string]any
	messages     []types.Message
}

type RunOption func(*RunOptions)

// WithThreadID keys this run to a conversation thread. Runs on the same
// thread share transcript and state through the configured store.
func WithThreadID(threadID string) RunOption {
	return func(o *RunOptions) { o.threadID = threadID }
}

// WithContextValue attaches an immutable per-invocation value. Middlewares
// read it from events; tools read it via RuntimeFromContext.
func WithContextValue(v any) RunOption {
	return func(o *RunOptions) { o.contextValue = v }
}

// WithState seeds conversation state keys for this invocation. Seeded keys
// override values restored from the thread checkpoint.
func WithState(kv map[string]any) RunOption {
	return func(o *RunOptions) {
		if o.state == nil {
			o.state = map[string]any{}
		}
		for k, v := range kv {
			o.state[k] = v
		}
	}
}

// WithMessages preloads transcript messages ahead of the user input.
func WithMessages(msgs ...types.Message) RunOption {
	return func(o *RunOptions) { o.messages = append(o.messages, msgs...) }
}

// Run executes the agent and returns the final assistant text.
func (a *Agent) Run(ctx context.Context, input string, opts ...RunOption) (string, error) {
	result, err := a.RunDetailed(ctx, input, opts...)
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// RunDetailed executes the agent and returns the full result: transcript,
// state, usage, events, and the interrupt when the run paused for approval.
func (a *Agent) RunDetailed(ctx context.Context, input string, opts ...RunOption) (types.RunResult, error) {
	options := RunOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	rc := &runContext{
		runID:        uuid.NewString(),
		threadID:     options.threadID,
		contextValue: options.contextValue,
		input:        input,
		stateBag:     map[string]any{},
		startedAt:    time.Now().UTC(),
	}

	if rc.threadID != "" && a.store != nil {
		cp, err := a.store.LoadLatestCheckpoint(ctx, rc.threadID)
		switch {
		case err == nil:
			if cp.Pending != nil {
				return types.RunResult{RunID: rc.runID, ThreadID: rc.threadID}, ErrPendingInterrupt
			}
			rc.messages = append(rc.messages, cp.Messages...)
			for k, v := range cp.State {
				rc.stateBag[k] = v
			}
		case errors.Is(err, state.ErrNotFound):
			// Fresh thread.
		default:
			return types.RunResult{}, fmt.Errorf("load checkpoint for thread %s: %w", rc.threadID, err)
		}
	}

	rc.messages = append(rc.messages, options.messages...)
	for k, v := range options.state {
		rc.stateBag[k] = v
	}
	if input != "" {
		rc.messages = append(rc.messages, types.Message{Role: types.RoleUser, Content: input})
	}

	return a.execute(ctx, rc, 1)
}

// Resume resolves a pending interrupt on a thread and continues the run.
// Every pending action needs a decision; unknown tool call IDs are rejected.
func (a *Agent) Resume(ctx context.Context, threadID string, decisions ...Decision) (types.RunResult, error) {
	if a.store == nil {
		return types.RunResult{}, fmt.Errorf("agent: resume requires a store")
	}
	if threadID == "" {
		return types.RunResult{}, fmt.Errorf("agent: resume requires a thread ID")
	}

	cp, err := a.store.LoadLatestCheckpoint(ctx, threadID)
	if err != nil {
		return types.RunResult{}, fmt.Errorf("load checkpoint for thread %s: %w", threadID, err)
	}
	if cp.Pending == nil || len(cp.Pending.Calls) == 0 {
		return types.RunResult{}, fmt.Errorf("agent: thread %s has no pending interrupt", threadID)
	}

	byCallID := make(map[string]Decision, len(decisions))
	for _, d := range decisions {
		if d.ToolCallID == "" {
			return types.RunResult{}, fmt.Errorf("agent: decision is missing a tool call ID")
		}
		if _, dup := byCallID[d.ToolCallID]; dup {
			return types.RunResult{}, fmt.Errorf("agent: duplicate decision for tool call %s", d.ToolCallID)
		}
		byCallID[d.ToolCallID] = d
	}

	rc := &runContext{
		runID:       uuid.NewString(),
		threadID:    threadID,
		stateBag:    map[string]any{},
		startedAt:   time.Now().UTC(),
		resumedFrom: cp.Pending.RunID,
	}
	rc.messages = append(rc.messages, cp.Messages...)
	for k, v := range cp.State {
		rc.stateBag[k] = v
	}

	rc.emit(ctx, a.sink, types.Event{
		Type:     types.EventRunResumed,
		RunID:    rc.runID,
		ThreadID: threadID,
		Provider: a.provider.Name(),
		Message:  fmt.Sprintf("resuming %d pending tool calls", len(cp.Pending.Calls)),
	})

	iteration := cp.Pending.Iteration
	for _, call := range cp.Pending.Calls {
		decision, ok := byCallID[call.ID]
		if !ok {
			return types.RunResult{}, fmt.Errorf("agent: no decision for pending tool call %s (%s)", call.ID, call.Name)
		}
		if decision.Kind == DecisionReject {
			reason := decision.Reason
			if reason == "" {
				reason = "tool call rejected"
			}
			rc.messages = append(rc.messages, types.Message{
				Role:       types.RoleTool,
				Name:       call.Name,
				ToolCallID: call.ID,
				Content:    reason,
			})
			continue
		}
		resolved, err := applyDecision(call, decision)
		if err != nil {
			return types.RunResult{}, err
		}
		msg := a.runTool(ctx, rc, iteration, resolved)
		rc.messages = append(rc.messages, msg)
	}

	// Clear the interrupt before continuing so a crash mid-continuation
	// does not replay the decisions.
	if err := a.checkpoint(ctx, rc, nil); err != nil {
		return types.RunResult{}, err
	}

	return a.execute(ctx, rc, iteration+1)
}

// runContext is the mutable state of one invocation. The mutex guards the
// event list and state bag while tool calls run concurrently.
type runContext struct {
	mu           sync.Mutex
	runID        string
	threadID     string
	resumedFrom  string
	input        string
	contextValue any
	messages     []types.Message
	stateBag     map[string]any
	events       []types.Event
	usage        types.Usage
	usageSeen    bool
	lastModel    string
	startedAt    time.Time
}

func (rc *runContext) emit(ctx context.Context, sink observe.Sink, ev types.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	rc.mu.Lock()
	rc.events = append(rc.events, ev)
	rc.mu.Unlock()
	if sink != nil {
		_ = sink.Emit(ctx, observe.FromRuntimeEvent(ev))
	}
}

func (rc *runContext) addUsage(u *types.Usage) {
	if u == nil {
		return
	}
	rc.usageSeen = true
	rc.usage.InputTokens += u.InputTokens
	rc.usage.OutputTokens += u.OutputTokens
	rc.usage.TotalTokens += u.TotalTokens
}

func (a *Agent) execute(ctx context.Context, rc *runContext, startIteration int) (types.RunResult, error) {
	log := clog.FromContext(ctx).With("run_id", rc.runID)
	if rc.threadID != "" {
		log = log.With("thread_id", rc.threadID)
	}
	ctx = clog.WithLogger(ctx, log)

	if startIteration == 1 {
		rc.emit(ctx, a.sink, types.Event{
			Type:     types.EventRunStarted,
			RunID:    rc.runID,
			ThreadID: rc.threadID,
			Provider: a.provider.Name(),
			Model:    a.model,
		})
	}

	turn := &TurnEvent{
		RunID:        rc.runID,
		ThreadID:     rc.threadID,
		Provider:     a.provider.Name(),
		Messages:     &rc.messages,
		State:        rc.stateBag,
		ContextValue: rc.contextValue,
	}
	for _, mw := range a.middlewares {
		if err := mw.BeforeAgent(ctx, turn); err != nil {
			return a.fail(ctx, rc, 0, "before_agent", "", err)
		}
	}

	var output string
	iteration := startIteration
	for ; iteration < startIteration+a.maxIterations; iteration++ {
		resp, provider, err := a.generateTurn(ctx, rc, iteration)
		if err != nil {
			return a.fail(ctx, rc, iteration, "generate", "", err)
		}
		rc.lastModel = resp.Model
		if rc.lastModel == "" {
			rc.lastModel = a.model
		}
		rc.addUsage(resp.Usage)
		rc.messages = append(rc.messages, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			output = resp.Message.Content
			break
		}

		log.Debugf("iteration %d: %d tool calls from %s", iteration, len(resp.Message.ToolCalls), provider.Name())
		interrupted, err := a.dispatchTools(ctx, rc, iteration, resp.Message.ToolCalls)
		if err != nil {
			return a.fail(ctx, rc, iteration, "tool", "", err)
		}
		if len(interrupted.Calls) > 0 {
			return a.interrupt(ctx, rc, iteration, interrupted)
		}

		if err := a.checkpoint(ctx, rc, nil); err != nil {
			return a.fail(ctx, rc, iteration, "checkpoint", "", err)
		}
	}

	if output == "" && iteration >= startIteration+a.maxIterations {
		return a.fail(ctx, rc, iteration-1, "loop", "", ErrMaxIterations)
	}

	for i := len(a.middlewares) - 1; i >= 0; i-- {
		if err := a.middlewares[i].AfterAgent(ctx, turn); err != nil {
			return a.fail(ctx, rc, iteration, "after_agent", "", err)
		}
	}

	result := a.result(rc, output, iteration-startIteration+1, nil)
	rc.emit(ctx, a.sink, types.Event{
		Type:     types.EventRunCompleted,
		RunID:    rc.runID,
		ThreadID: rc.threadID,
		Provider: a.provider.Name(),
		Model:    rc.lastModel,
	})
	result.Events = rc.events

	if err := a.checkpoint(ctx, rc, nil); err != nil {
		return result, err
	}
	if err := a.saveRun(ctx, rc, "completed", output, ""); err != nil {
		return result, err
	}
	return result, nil
}

// generateTurn runs the before/after generate hooks around one provider
// call. A middleware may rewrite the request in place or route the call to
// a different provider via Override.
func (a *Agent) generateTurn(ctx context.Context, rc *runContext, iteration int) (types.Response, llm.Provider, error) {
	req := types.Request{
		Model:           a.model,
		SystemPrompt:    a.systemPrompt,
		Messages:        append([]types.Message(nil), rc.messages...),
		Tools:           a.toolDefinitions(),
		MaxOutputTokens: a.maxOutputTokens,
		Temperature:     a.temperature,
	}

	gen := &GenerateEvent{
		RunID:        rc.runID,
		ThreadID:     rc.threadID,
		Provider:     a.provider.Name(),
		Iteration:    iteration,
		StartedAt:    time.Now().UTC(),
		Request:      &req,
		State:        rc.stateBag,
		ContextValue: rc.contextValue,
	}
	for _, mw := range a.middlewares {
		if err := mw.BeforeGenerate(ctx, gen); err != nil {
			return types.Response{}, nil, fmt.Errorf("before generate: %w", err)
		}
	}

	provider := a.provider
	if gen.Override != nil {
		provider = gen.Override
		gen.Provider = provider.Name()
	}

	rc.emit(ctx, a.sink, types.Event{
		Type:      types.EventBeforeGenerate,
		RunID:     rc.runID,
		ThreadID:  rc.threadID,
		Provider:  provider.Name(),
		Model:     gen.Request.Model,
		Iteration: iteration,
	})

	resp, err := a.generateWithRetry(ctx, provider, *gen.Request)
	gen.FinishedAt = time.Now().UTC()
	if err != nil {
		return types.Response{}, nil, fmt.Errorf("provider %s: %w", provider.Name(), err)
	}

	gen.Response = &resp
	for i := len(a.middlewares) - 1; i >= 0; i-- {
		if err := a.middlewares[i].AfterGenerate(ctx, gen); err != nil {
			return types.Response{}, nil, fmt.Errorf("after generate: %w", err)
		}
	}
	resp = *gen.Response

	rc.emit(ctx, a.sink, types.Event{
		Type:      types.EventAfterGenerate,
		RunID:     rc.runID,
		ThreadID:  rc.threadID,
		Provider:  provider.Name(),
		Model:     resp.Model,
		Iteration: iteration,
	})
	return resp, provider, nil
}

func (a *Agent) generateWithRetry(ctx context.Context, provider llm.Provider, req types.Request) (types.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= a.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := a.retry.backoffForAttempt(attempt - 1)
			clog.FromContext(ctx).Warnf("retrying generate (attempt %d/%d) after %s: %v",
				attempt, a.retry.MaxAttempts, delay, lastErr)
			select {
			case <-ctx.Done():
				return types.Response{}, ctx.Err()
			case <-time.After(delay):
			}
		}
		resp, err := provider.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return types.Response{}, ctx.Err()
		}
	}
	return types.Response{}, lastErr
}

// pendingSet collects the tool calls a BeforeTool hook gated this turn.
type pendingSet struct {
	Calls   []types.ToolCall
	Actions []types.ActionRequest
}

// dispatchTools executes one model turn's tool calls. Gating hooks run
// serially first; approved calls then execute sequentially or concurrently.
// Gated calls are not executed and come back in the pending set.
func (a *Agent) dispatchTools(ctx context.Context, rc *runContext, iteration int, calls []types.ToolCall) (pendingSet, error) {
	var pending pendingSet
	approved := make([]types.ToolCall, 0, len(calls))

	for _, call := range calls {
		ev := &ToolEvent{
			RunID:        rc.runID,
			ThreadID:     rc.threadID,
			Provider:     a.provider.Name(),
			Iteration:    iteration,
			StartedAt:    time.Now().UTC(),
			ToolCall:     &call,
			State:        rc.stateBag,
			ContextValue: rc.contextValue,
		}
		gated := false
		for _, mw := range a.middlewares {
			err := mw.BeforeTool(ctx, ev)
			if err == nil {
				continue
			}
			if ie, ok := asInterrupt(err); ok {
				pending.Calls = append(pending.Calls, *ev.ToolCall)
				pending.Actions = append(pending.Actions, types.ActionRequest{
					ToolCallID:  ev.ToolCall.ID,
					Tool:        ev.ToolCall.Name,
					Arguments:   ev.ToolCall.Arguments,
					Description: ie.Description,
				})
				gated = true
				break
			}
			return pendingSet{}, fmt.Errorf("before tool %s: %w", call.Name, err)
		}
		if !gated {
			approved = append(approved, *ev.ToolCall)
		}
	}

	results := make([]types.Message, len(approved))
	if a.parallelTools && len(approved) > 1 {
		var wg sync.WaitGroup
		for i, call := range approved {
			wg.Add(1)
			go func(i int, call types.ToolCall) {
				defer wg.Done()
				results[i] = a.runTool(ctx, rc, iteration, call)
			}(i, call)
		}
		wg.Wait()
	} else {
		for i, call := range approved {
			results[i] = a.runTool(ctx, rc, iteration, call)
		}
	}
	rc.messages = append(rc.messages, results...)
	return pending, nil
}

// runTool executes a single approved tool call and returns its tool
// message. Gating hooks have already run; execution failures surface to the
// model as error text rather than aborting the run.
func (a *Agent) runTool(ctx context.Context, rc *runContext, iteration int, call types.ToolCall) types.Message {
	log := clog.FromContext(ctx)
	rc.emit(ctx, a.sink, types.Event{
		Type:       types.EventBeforeTool,
		RunID:      rc.runID,
		ThreadID:   rc.threadID,
		Provider:   a.provider.Name(),
		Iteration:  iteration,
		ToolName:   call.Name,
		ToolCallID: call.ID,
	})

	started := time.Now().UTC()
	content, execErr := a.executeTool(ctx, rc, call)

	msg := types.Message{
		Role:       types.RoleTool,
		Name:       call.Name,
		ToolCallID: call.ID,
		Content:    content,
	}
	if execErr != nil {
		msg.Content = "error: " + execErr.Error()
		log.Warnf("tool %s failed: %v", call.Name, execErr)
		for _, mw := range a.middlewares {
			mw.OnError(ctx, &ErrorEvent{
				RunID:     rc.runID,
				ThreadID:  rc.threadID,
				Provider:  a.provider.Name(),
				Iteration: iteration,
				Stage:     "tool",
				ToolName:  call.Name,
				Err:       execErr,
			})
		}
	}

	// Hooks get a snapshot: with parallel tool calls, sibling goroutines
	// keep merging deltas into the live bag under rc.mu.
	rc.mu.Lock()
	stateView := cloneState(rc.stateBag)
	rc.mu.Unlock()

	ev := &ToolEvent{
		RunID:        rc.runID,
		ThreadID:     rc.threadID,
		Provider:     a.provider.Name(),
		Iteration:    iteration,
		StartedAt:    started,
		FinishedAt:   time.Now().UTC(),
		ToolCall:     &call,
		Result:       &msg,
		ToolError:    execErr,
		State:        stateView,
		ContextValue: rc.contextValue,
	}
	for i := len(a.middlewares) - 1; i >= 0; i-- {
		if err := a.middlewares[i].AfterTool(ctx, ev); err != nil {
			log.Warnf("after tool %s: %v", call.Name, err)
		}
	}

	outEvent := types.Event{
		Type:       types.EventAfterTool,
		RunID:      rc.runID,
		ThreadID:   rc.threadID,
		Provider:   a.provider.Name(),
		Iteration:  iteration,
		ToolName:   call.Name,
		ToolCallID: call.ID,
	}
	if execErr != nil {
		outEvent.Error = execErr.Error()
	}
	rc.emit(ctx, a.sink, outEvent)
	return msg
}

// executeTool resolves and invokes the named tool with the per-call timeout
// and a Runtime in context; state deltas recorded by the tool are merged
// into the thread state on success.
func (a *Agent) executeTool(ctx context.Context, rc *runContext, call types.ToolCall) (string, error) {
	tool, ok := a.toolset[call.Name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}

	if a.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.toolTimeout)
		defer cancel()
	}

	rc.mu.Lock()
	rt := tools.NewRuntime(rc.runID, rc.threadID, call.ID, rc.contextValue, rc.stateBag)
	rc.mu.Unlock()
	ctx = tools.WithRuntime(ctx, rt)

	result, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		return "", err
	}

	rc.mu.Lock()
	for k, v := range rt.StateDelta() {
		rc.stateBag[k] = v
	}
	rc.mu.Unlock()
	return renderToolResult(result)
}

func renderToolResult(result any) (string, error) {
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case json.RawMessage:
		return string(v), nil
	case error:
		return v.Error(), nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode tool result: %w", err)
		}
		return string(encoded), nil
	}
}

// interrupt checkpoints the gated calls and returns an interrupted result.
// Requires a store and a thread ID; an interrupt with nowhere to park the
// pending calls is a configuration error.
func (a *Agent) interrupt(ctx context.Context, rc *runContext, iteration int, pending pendingSet) (types.RunResult, error) {
	if a.store == nil || rc.threadID == "" {
		err := fmt.Errorf("agent: interrupt requires a store and a thread ID")
		return types.RunResult{}, err
	}

	record := &state.PendingInterrupt{
		RunID:     rc.runID,
		Iteration: iteration,
		Calls:     pending.Calls,
		Actions:   pending.Actions,
	}
	if err := a.checkpoint(ctx, rc, record); err != nil {
		return types.RunResult{}, err
	}

	rc.emit(ctx, a.sink, types.Event{
		Type:     types.EventRunInterrupted,
		RunID:    rc.runID,
		ThreadID: rc.threadID,
		Provider: a.provider.Name(),
		Message:  fmt.Sprintf("%d tool calls awaiting approval", len(pending.Calls)),
	})

	result := a.result(rc, "", record.Iteration, &types.Interrupt{
		ThreadID: rc.threadID,
		Actions:  pending.Actions,
	})
	result.Events = rc.events

	if err := a.saveRun(ctx, rc, "interrupted", "", ""); err != nil {
		return result, err
	}
	return result, nil
}

func (a *Agent) fail(ctx context.Context, rc *runContext, iteration int, stage, toolName string, cause error) (types.RunResult, error) {
	for _, mw := range a.middlewares {
		mw.OnError(ctx, &ErrorEvent{
			RunID:     rc.runID,
			ThreadID:  rc.threadID,
			Provider:  a.provider.Name(),
			Iteration: iteration,
			Stage:     stage,
			ToolName:  toolName,
			Err:       cause,
		})
	}
	rc.emit(ctx, a.sink, types.Event{
		Type:      types.EventRunFailed,
		RunID:     rc.runID,
		ThreadID:  rc.threadID,
		Provider:  a.provider.Name(),
		Iteration: iteration,
		Error:     cause.Error(),
	})
	_ = a.saveRun(ctx, rc, "failed", "", cause.Error())
	result := a.result(rc, "", iteration, nil)
	result.Events = rc.events
	return result, cause
}

func (a *Agent) result(rc *runContext, output string, iterations int, interrupt *types.Interrupt) types.RunResult {
	completed := time.Now().UTC()
	result := types.RunResult{
		Output:      output,
		Messages:    append([]types.Message(nil), rc.messages...),
		State:       cloneState(rc.stateBag),
		Iterations:  iterations,
		Provider:    a.provider.Name(),
		Model:       rc.lastModel,
		RunID:       rc.runID,
		ThreadID:    rc.threadID,
		StartedAt:   &rc.startedAt,
		CompletedAt: &completed,
		Interrupt:   interrupt,
	}
	if rc.usageSeen {
		usage := rc.usage
		result.Usage = &usage
	}
	return result
}

func (a *Agent) toolDefinitions() []types.ToolDefinition {
	if len(a.toolOrder) == 0 {
		return nil
	}
	defs := make([]types.ToolDefinition, 0, len(a.toolOrder))
	for _, name := range a.toolOrder {
		defs = append(defs, a.toolset[name].Definition())
	}
	return defs
}

func (a *Agent) checkpoint(ctx context.Context, rc *runContext, pending *state.PendingInterrupt) error {
	if a.store == nil || rc.threadID == "" {
		return nil
	}
	_, err := a.store.SaveCheckpoint(ctx, state.CheckpointRecord{
		ThreadID: rc.threadID,
		Messages: append([]types.Message(nil), rc.messages...),
		State:    cloneState(rc.stateBag),
		Pending:  pending,
	})
	if err != nil {
		return fmt.Errorf("save checkpoint for thread %s: %w", rc.threadID, err)
	}
	return nil
}

func (a *Agent) saveRun(ctx context.Context, rc *runContext, status, output, errText string) error {
	if a.store == nil {
		return nil
	}
	now := time.Now().UTC()
	record := state.RunRecord{
		RunID:     rc.runID,
		ThreadID:  rc.threadID,
		Provider:  a.provider.Name(),
		Status:    status,
		Input:     rc.input,
		Output:    output,
		Messages:  append([]types.Message(nil), rc.messages...),
		Error:     errText,
		CreatedAt: &rc.startedAt,
		UpdatedAt: &now,
	}
	if rc.usageSeen {
		usage := rc.usage
		record.Usage = &usage
	}
	if rc.resumedFrom != "" {
		record.Metadata = map[string]any{"resumedFrom": rc.resumedFrom}
	}
	if status == "completed" || status == "failed" {
		record.CompletedAt = &now
	}
	if err := a.store.SaveRun(ctx, record); err != nil {
		return fmt.Errorf("save run %s: %w", rc.runID, err)
	}
	return nil
}

func cloneState(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Name reports the agent's configured name, or the provider name.
func (a *Agent) Name() string {
	if a.name != "" {
		return a.name
	}
	return strings.TrimSpace(a.provider.Name()) + "-agent"
}

// Tools lists the registered tool definitions in registration order.
func (a *Agent) Tools() []types.ToolDefinition {
	return a.toolDefinitions()
}

// SystemPrompt reports the configured base system prompt.
func (a *Agent) SystemPrompt() string { return a.systemPrompt }

// Provider exposes the agent's default provider.
func (a *Agent) Provider() llm.Provider { return a.provider }
