// Package state defines the persistence surface for agent runs and thread
// checkpoints. Implementations live under state/memory, state/sqlite and
// state/redis.
package state

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("state: not found")
	ErrConflict = errors.New("state: conflict")
)

type ListRunsQuery struct {
	ThreadID string
	Limit    int
	Offset   int
	Status   string
}

// Store persists run records and per-thread conversation checkpoints.
// Checkpoints are keyed by thread identifier so that a later invocation with
// the same thread ID resumes the transcript and state where it left off.
type Store interface {
	SaveRun(ctx context.Context, run RunRecord) error
	LoadRun(ctx context.Context, runID string) (RunRecord, error)
	ListRuns(ctx context.Context, query ListRunsQuery) ([]RunRecord, error)

	// SaveCheckpoint appends a checkpoint for a thread. A Seq of zero asks
	// the store to assign the next sequence number; an explicit Seq that
	// already exists yields ErrConflict.
	SaveCheckpoint(ctx context.Context, checkpoint CheckpointRecord) (int, error)
	LoadLatestCheckpoint(ctx context.Context, threadID string) (CheckpointRecord, error)
	ListCheckpoints(ctx context.Context, threadID string, limit int) ([]CheckpointRecord, error)

	Close() error
}
