// Package memory provides an in-process state.Store, the default
// checkpointer for examples and tests. Nothing survives process exit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/relaylabs/agentloop/state"
)

type Store struct {
	mu          sync.RWMutex
	runs        map[string]state.RunRecord
	checkpoints map[string][]state.CheckpointRecord
}

func New() *Store {
	return &Store{
		runs:        map[string]state.RunRecord{},
		checkpoints: map[string][]state.CheckpointRecord{},
	}
}

func (s *Store) SaveRun(ctx context.Context, run state.RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if run.RunID == "" {
		return state.ErrConflict
	}
	now := time.Now().UTC()
	if run.CreatedAt == nil {
		run.CreatedAt = &now
	}
	if run.UpdatedAt == nil {
		run.UpdatedAt = &now
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.RunID] = cloneRun(run)
	return nil
}

func (s *Store) LoadRun(ctx context.Context, runID string) (state.RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return state.RunRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return state.RunRecord{}, state.ErrNotFound
	}
	return cloneRun(run), nil
}

func (s *Store) ListRuns(ctx context.Context, query state.ListRunsQuery) ([]state.RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	out := make([]state.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		if query.ThreadID != "" && run.ThreadID != query.ThreadID {
			continue
		}
		if query.Status != "" && run.Status != query.Status {
			continue
		}
		out = append(out, cloneRun(run))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		left, right := time.Time{}, time.Time{}
		if out[i].UpdatedAt != nil {
			left = *out[i].UpdatedAt
		}
		if out[j].UpdatedAt != nil {
			right = *out[j].UpdatedAt
		}
		return left.After(right)
	})

	if offset >= len(out) {
		return []state.RunRecord{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SaveCheckpoint(ctx context.Context, checkpoint state.CheckpointRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if checkpoint.ThreadID == "" {
		return 0, state.ErrConflict
	}
	if checkpoint.CreatedAt.IsZero() {
		checkpoint.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.checkpoints[checkpoint.ThreadID]
	if checkpoint.Seq <= 0 {
		next := 1
		if len(existing) > 0 {
			next = existing[len(existing)-1].Seq + 1
		}
		checkpoint.Seq = next
	} else {
		for _, cp := range existing {
			if cp.Seq == checkpoint.Seq {
				return 0, state.ErrConflict
			}
		}
	}
	s.checkpoints[checkpoint.ThreadID] = append(existing, cloneCheckpoint(checkpoint))
	return checkpoint.Seq, nil
}

func (s *Store) LoadLatestCheckpoint(ctx context.Context, threadID string) (state.CheckpointRecord, error) {
	if err := ctx.Err(); err != nil {
		return state.CheckpointRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := s.checkpoints[threadID]
	if len(existing) == 0 {
		return state.CheckpointRecord{}, state.ErrNotFound
	}
	return cloneCheckpoint(existing[len(existing)-1]), nil
}

func (s *Store) ListCheckpoints(ctx context.Context, threadID string, limit int) ([]state.CheckpointRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := s.checkpoints[threadID]
	out := make([]state.CheckpointRecord, 0, limit)
	for i := len(existing) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneCheckpoint(existing[i]))
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

func cloneRun(run state.RunRecord) state.RunRecord {
	out := run
	out.Messages = nil
	if run.Messages != nil {
		out.Messages = append(out.Messages, run.Messages...)
	}
	if run.Usage != nil {
		usage := *run.Usage
		out.Usage = &usage
	}
	if run.Metadata != nil {
		out.Metadata = make(map[string]any, len(run.Metadata))
		for k, v := range run.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

func cloneCheckpoint(cp state.CheckpointRecord) state.CheckpointRecord {
	out := cp
	out.Messages = nil
	if cp.Messages != nil {
		out.Messages = append(out.Messages, cp.Messages...)
	}
	if cp.State != nil {
		out.State = make(map[string]any, len(cp.State))
		for k, v := range cp.State {
			out.State[k] = v
		}
	}
	if cp.Pending != nil {
		pending := *cp.Pending
		pending.Calls = nil
		if cp.Pending.Calls != nil {
			pending.Calls = append(pending.Calls, cp.Pending.Calls...)
		}
		pending.Actions = nil
		if cp.Pending.Actions != nil {
			pending.Actions = append(pending.Actions, cp.Pending.Actions...)
		}
		out.Pending = &pending
	}
	return out
}
