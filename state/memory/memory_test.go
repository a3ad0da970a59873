package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/relaylabs/agentloop/state"
	"github.com/relaylabs/agentloop/types"
)

func TestRunRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	run := state.RunRecord{
		RunID:    "r1",
		ThreadID: "t1",
		Provider: "mock",
		Status:   "completed",
		Input:    "hi",
		Output:   "hello",
		Usage:    &types.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		Metadata: map[string]any{"resumedFrom": "r0"},
	}
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.LoadRun(ctx, "r1")
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if got.Output != "hello" || got.Status != "completed" {
		t.Fatalf("loaded = %#v", got)
	}
	if got.Usage == nil || got.Usage.TotalTokens != 15 {
		t.Fatalf("usage = %#v", got.Usage)
	}
	if got.Metadata["resumedFrom"] != "r0" {
		t.Fatalf("metadata = %#v", got.Metadata)
	}

	if _, err := s.LoadRun(ctx, "missing"); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("missing run err = %v", err)
	}
}

func TestListRunsFilters(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, r := range []state.RunRecord{
		{RunID: "r1", ThreadID: "t1", Status: "completed"},
		{RunID: "r2", ThreadID: "t1", Status: "failed"},
		{RunID: "r3", ThreadID: "t2", Status: "completed"},
	} {
		if err := s.SaveRun(ctx, r); err != nil {
			t.Fatalf("SaveRun %s: %v", r.RunID, err)
		}
	}

	runs, err := s.ListRuns(ctx, state.ListRunsQuery{ThreadID: "t1"})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("thread filter = %d runs", len(runs))
	}

	runs, err = s.ListRuns(ctx, state.ListRunsQuery{Status: "completed"})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("status filter = %d runs", len(runs))
	}

	runs, err = s.ListRuns(ctx, state.ListRunsQuery{Limit: 1})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("limit = %d runs", len(runs))
	}
}

func TestCheckpointSequencing(t *testing.T) {
	s := New()
	ctx := context.Background()

	seq, err := s.SaveCheckpoint(ctx, state.CheckpointRecord{
		ThreadID: "t1",
		Messages: []types.Message{{Role: types.RoleUser, Content: "first"}},
	})
	if err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	if seq != 1 {
		t.Fatalf("first seq = %d", seq)
	}

	seq, err = s.SaveCheckpoint(ctx, state.CheckpointRecord{
		ThreadID: "t1",
		Messages: []types.Message{{Role: types.RoleUser, Content: "second"}},
	})
	if err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	if seq != 2 {
		t.Fatalf("second seq = %d", seq)
	}

	if _, err := s.SaveCheckpoint(ctx, state.CheckpointRecord{ThreadID: "t1", Seq: 2}); !errors.Is(err, state.ErrConflict) {
		t.Fatalf("duplicate seq err = %v", err)
	}

	latest, err := s.LoadLatestCheckpoint(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadLatestCheckpoint: %v", err)
	}
	if latest.Seq != 2 || latest.Messages[0].Content != "second" {
		t.Fatalf("latest = %#v", latest)
	}

	list, err := s.ListCheckpoints(ctx, "t1", 1)
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(list) != 1 || list[0].Seq != 2 {
		t.Fatalf("list = %#v", list)
	}

	if _, err := s.LoadLatestCheckpoint(ctx, "empty"); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("empty thread err = %v", err)
	}
}

func TestPendingInterruptRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	pending := &state.PendingInterrupt{
		RunID:     "r1",
		Iteration: 2,
		Calls: []types.ToolCall{
			{ID: "c1", Name: "send_email", Arguments: json.RawMessage(`{"to":"a@b.c"}`)},
		},
		Actions: []types.ActionRequest{
			{ToolCallID: "c1", Tool: "send_email", Description: "approval required"},
		},
	}
	if _, err := s.SaveCheckpoint(ctx, state.CheckpointRecord{ThreadID: "t1", Pending: pending}); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	latest, err := s.LoadLatestCheckpoint(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadLatestCheckpoint: %v", err)
	}
	if latest.Pending == nil || latest.Pending.RunID != "r1" || latest.Pending.Iteration != 2 {
		t.Fatalf("pending = %#v", latest.Pending)
	}
	if len(latest.Pending.Calls) != 1 || latest.Pending.Calls[0].Name != "send_email" {
		t.Fatalf("pending calls = %#v", latest.Pending.Calls)
	}

	// Clearing the interrupt is just a newer checkpoint without one.
	if _, err := s.SaveCheckpoint(ctx, state.CheckpointRecord{ThreadID: "t1"}); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	latest, err = s.LoadLatestCheckpoint(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadLatestCheckpoint: %v", err)
	}
	if latest.Pending != nil {
		t.Fatalf("pending should be cleared, got %#v", latest.Pending)
	}
}
