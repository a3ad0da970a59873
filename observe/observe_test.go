package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/relaylabs/agentloop/types"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (c *captureSink) Emit(ctx context.Context, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestNormalizeFillsDefaults(t *testing.T) {
	e := Event{}
	e.Normalize()
	if e.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
	if e.Kind != KindCustom {
		t.Fatalf("kind = %q", e.Kind)
	}
	if e.Attributes == nil {
		t.Fatal("attributes not initialized")
	}
}

func TestFromRuntimeEventMapsKindsAndStatuses(t *testing.T) {
	cases := []struct {
		eventType types.EventType
		kind      Kind
		status    Status
	}{
		{types.EventRunStarted, KindRun, StatusStarted},
		{types.EventRunCompleted, KindRun, StatusCompleted},
		{types.EventRunFailed, KindRun, StatusFailed},
		{types.EventBeforeGenerate, KindProvider, StatusStarted},
		{types.EventAfterGenerate, KindProvider, StatusCompleted},
		{types.EventBeforeTool, KindTool, StatusStarted},
		{types.EventAfterTool, KindTool, StatusCompleted},
	}
	for _, tc := range cases {
		got := FromRuntimeEvent(types.Event{Type: tc.eventType, RunID: "r1"})
		if got.Kind != tc.kind || got.Status != tc.status {
			t.Fatalf("%s mapped to %s/%s, want %s/%s", tc.eventType, got.Kind, got.Status, tc.kind, tc.status)
		}
	}
}

func TestFromRuntimeEventCarriesDetail(t *testing.T) {
	in := types.Event{
		Type:       types.EventAfterTool,
		Timestamp:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		RunID:      "r1",
		ThreadID:   "t1",
		Provider:   "mock",
		ToolName:   "calculator",
		ToolCallID: "c1",
		Iteration:  3,
	}
	got := FromRuntimeEvent(in)
	if got.RunID != "r1" || got.ThreadID != "t1" || got.ToolName != "calculator" {
		t.Fatalf("identifiers = %#v", got)
	}
	if got.Attributes["iteration"] != 3 || got.Attributes["toolCallId"] != "c1" {
		t.Fatalf("attributes = %#v", got.Attributes)
	}
	if !got.Timestamp.Equal(in.Timestamp) {
		t.Fatalf("timestamp = %v", got.Timestamp)
	}
}

func TestFromRuntimeEventErrorForcesFailed(t *testing.T) {
	got := FromRuntimeEvent(types.Event{Type: types.EventAfterTool, Error: "boom"})
	if got.Status != StatusFailed {
		t.Fatalf("status = %q", got.Status)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}
	sink := NewMultiSink(a, nil, b)

	if err := sink.Emit(context.Background(), Event{Kind: KindRun}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("counts = %d/%d", a.count(), b.count())
	}
}

func TestMultiSinkStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	a := &captureSink{err: boom}
	b := &captureSink{}
	sink := NewMultiSink(a, b)

	if err := sink.Emit(context.Background(), Event{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if b.count() != 0 {
		t.Fatalf("downstream sink ran after error: %d", b.count())
	}
}

func TestMultiSinkCollapsesTrivialCases(t *testing.T) {
	if _, ok := NewMultiSink().(NoopSink); !ok {
		t.Fatal("empty MultiSink should be a noop")
	}
	only := &captureSink{}
	if NewMultiSink(only, nil) != Sink(only) {
		t.Fatal("single sink should be returned directly")
	}
}

func TestAsyncSinkDeliversOffHotPath(t *testing.T) {
	downstream := &captureSink{}
	sink := NewAsyncSink(downstream, 8)

	for i := 0; i < 3; i++ {
		if err := sink.Emit(context.Background(), Event{Kind: KindTool}); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for downstream.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("delivered %d of 3 events", downstream.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
	sink.Close()
}

func TestAsyncSinkEmitAfterCloseIsNoop(t *testing.T) {
	downstream := &captureSink{}
	sink := NewAsyncSink(downstream, 2)
	sink.Close()
	sink.Close() // idempotent

	if err := sink.Emit(context.Background(), Event{Kind: KindTool}); err != nil {
		t.Fatalf("Emit after Close: %v", err)
	}
	if n := downstream.count(); n != 0 {
		t.Fatalf("delivered %d events after close", n)
	}
}

func TestSinkFuncNilIsSafe(t *testing.T) {
	var f SinkFunc
	if err := f.Emit(context.Background(), Event{}); err != nil {
		t.Fatalf("nil SinkFunc: %v", err)
	}
}
