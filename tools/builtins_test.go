package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func runTool(t *testing.T, tool Tool, args string) map[string]any {
	t.Helper()
	out, err := tool.Execute(context.Background(), json.RawMessage(args))
	if err != nil {
		t.Fatalf("Execute(%s): %v", args, err)
	}
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("result type %T", out)
	}
	return m
}

func TestCalculatorEvaluates(t *testing.T) {
	calc := NewCalculator()
	cases := []struct {
		expr string
		want string
	}{
		{"2+3", "5"},
		{"(2+3)*4", "20"},
		{"10/4", "2.5"},
		{"-3+1", "-2"},
		{"2*(1+2)-4/2", "4"},
	}
	for _, tc := range cases {
		got := runTool(t, calc, `{"expression":"`+tc.expr+`"}`)
		if got["result"] != tc.want {
			t.Fatalf("%s = %v, want %s", tc.expr, got["result"], tc.want)
		}
	}
}

func TestCalculatorRejectsBadInput(t *testing.T) {
	calc := NewCalculator()
	for _, expr := range []string{"", "1/0", "foo", `os.Exit(1)`, "1<<3"} {
		body, _ := json.Marshal(map[string]string{"expression": expr})
		if _, err := calc.Execute(context.Background(), body); err == nil {
			t.Fatalf("expected error for %q", expr)
		}
	}
}

func TestTimestampConverter(t *testing.T) {
	conv := NewTimestampConverter()

	got := runTool(t, conv, `{"value":"1700000000"}`)
	if got["rfc3339"] != "2023-11-14T22:13:20Z" {
		t.Fatalf("rfc3339 = %v", got["rfc3339"])
	}
	if got["unix"] != int64(1700000000) {
		t.Fatalf("unix = %v (%T)", got["unix"], got["unix"])
	}

	got = runTool(t, conv, `{"value":"2023-11-14T22:13:20Z"}`)
	if got["unix"] != int64(1700000000) {
		t.Fatalf("round trip unix = %v", got["unix"])
	}

	// Thirteen digits are treated as millis.
	got = runTool(t, conv, `{"value":"1700000000000"}`)
	if got["unix"] != int64(1700000000) {
		t.Fatalf("millis unix = %v", got["unix"])
	}

	got = runTool(t, conv, `{"value":"1700000000","timezone":"America/New_York"}`)
	if got["timezone"] != "America/New_York" {
		t.Fatalf("timezone = %v", got["timezone"])
	}
	if !strings.HasSuffix(got["local"].(string), "-05:00") {
		t.Fatalf("local = %v", got["local"])
	}

	if _, err := conv.Execute(context.Background(), json.RawMessage(`{"value":"not a time"}`)); err == nil {
		t.Fatal("expected error for unparseable value")
	}
	if _, err := conv.Execute(context.Background(), json.RawMessage(`{"value":"1700000000","timezone":"Mars/Olympus"}`)); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestUUIDGenerator(t *testing.T) {
	gen := NewUUIDGenerator()

	got := runTool(t, gen, `{}`)
	ids := got["uuids"].([]string)
	if len(ids) != 1 || got["version"] != "v4" {
		t.Fatalf("defaults = %#v", got)
	}

	got = runTool(t, gen, `{"count":3,"version":"v7"}`)
	ids = got["uuids"].([]string)
	if len(ids) != 3 {
		t.Fatalf("count = %d", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate uuid %s", id)
		}
		seen[id] = true
	}

	got = runTool(t, gen, `{"count":500}`)
	if len(got["uuids"].([]string)) != 100 {
		t.Fatal("count should clamp to 100")
	}

	if _, err := gen.Execute(context.Background(), json.RawMessage(`{"version":"v9"}`)); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestMemoryStoreUsesRuntimeState(t *testing.T) {
	mem := NewMemoryStore()

	// Outside a run there is no runtime to write into.
	if _, err := mem.Execute(context.Background(), json.RawMessage(`{"action":"set","key":"k","value":"v"}`)); err == nil {
		t.Fatal("expected error without runtime")
	}

	rt := NewRuntime("r1", "t1", "c1", nil, map[string]any{"memory:color": "blue"})
	ctx := WithRuntime(context.Background(), rt)

	out, err := mem.Execute(ctx, json.RawMessage(`{"action":"get","key":"color"}`))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := out.(map[string]any); got["value"] != "blue" {
		t.Fatalf("get = %#v", got)
	}

	if _, err := mem.Execute(ctx, json.RawMessage(`{"action":"set","key":"city","value":"Oslo"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	delta := rt.StateDelta()
	if delta["memory:city"] != "Oslo" {
		t.Fatalf("delta = %#v", delta)
	}

	out, err = mem.Execute(ctx, json.RawMessage(`{"action":"list"}`))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	keys := out.(map[string]any)["keys"].([]string)
	if len(keys) != 2 {
		t.Fatalf("keys = %v", keys)
	}

	if _, err := mem.Execute(ctx, json.RawMessage(`{"action":"explode"}`)); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestRuntimeStateDeltaIsolation(t *testing.T) {
	base := map[string]any{"count": 1}
	rt := NewRuntime("r1", "t1", "c1", "ctx-val", base)

	if rt.RunID() != "r1" || rt.ThreadID() != "t1" || rt.ToolCallID() != "c1" {
		t.Fatalf("identifiers = %s/%s/%s", rt.RunID(), rt.ThreadID(), rt.ToolCallID())
	}
	if rt.ContextValue() != "ctx-val" {
		t.Fatalf("context value = %v", rt.ContextValue())
	}

	rt.SetState("count", 2)
	if v, _ := rt.State("count"); v != 2 {
		t.Fatalf("delta not visible: %v", v)
	}
	if base["count"] != 1 {
		t.Fatalf("caller map mutated: %v", base["count"])
	}

	delta := rt.StateDelta()
	delta["count"] = 99
	if v, _ := rt.State("count"); v != 2 {
		t.Fatalf("delta copy leaked: %v", v)
	}
}
