// Package sqlite implements state.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/relaylabs/agentloop/state"
	"github.com/relaylabs/agentloop/types"
)

//go:embed schema.sql
var schemaSQL string

const (
	defaultBusyTimeout = 5 * time.Second
	defaultLimit       = 50
)

type Store struct {
	db          *sql.DB
	busyTimeout time.Duration
	enableWAL   bool
	maxOpenConn int
}

type Option func(*Store)

func WithBusyTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout >= 0 {
			s.busyTimeout = timeout
		}
	}
}

func WithWAL(enabled bool) Option {
	return func(s *Store) { s.enableWAL = enabled }
}

func WithMaxOpenConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxOpenConn = n
		}
	}
}

func New(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	s := &Store{
		busyTimeout: defaultBusyTimeout,
		enableWAL:   true,
		maxOpenConn: 1,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpenConn)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s.db = db
	if err := s.initialize(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	if s.busyTimeout > 0 {
		ms := int(s.busyTimeout / time.Millisecond)
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d;", ms)); err != nil {
			return fmt.Errorf("failed to set busy_timeout: %w", err)
		}
	}
	if s.enableWAL {
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable wal: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *Store) SaveRun(ctx context.Context, run state.RunRecord) error {
	now := time.Now().UTC()
	if run.CreatedAt == nil {
		run.CreatedAt = &now
	}
	if run.UpdatedAt == nil {
		run.UpdatedAt = &now
	}
	if run.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if run.ThreadID == "" {
		return fmt.Errorf("thread_id is required")
	}
	if run.Provider == "" {
		run.Provider = "unknown"
	}
	if run.Status == "" {
		run.Status = "running"
	}

	messagesRaw, err := json.Marshal(run.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}
	usageRaw, err := json.Marshal(run.Usage)
	if err != nil {
		return fmt.Errorf("failed to marshal usage: %w", err)
	}
	if run.Metadata == nil {
		run.Metadata = map[string]any{}
	}
	metaRaw, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	const q = `
INSERT INTO runs (
  run_id, thread_id, provider, status, input, output, messages, usage, metadata, error, created_at, updated_at, completed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
  thread_id=excluded.thread_id,
  provider=excluded.provider,
  status=excluded.status,
  input=excluded.input,
  output=excluded.output,
  messages=excluded.messages,
  usage=excluded.usage,
  metadata=excluded.metadata,
  error=excluded.error,
  updated_at=excluded.updated_at,
  completed_at=excluded.completed_at;
`

	_, err = s.db.ExecContext(
		ctx,
		q,
		run.RunID,
		run.ThreadID,
		run.Provider,
		run.Status,
		run.Input,
		run.Output,
		string(messagesRaw),
		nullIfEmptyJSON(usageRaw),
		string(metaRaw),
		run.Error,
		toNullableTime(run.CreatedAt),
		toNullableTime(run.UpdatedAt),
		toNullableTime(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *Store) LoadRun(ctx context.Context, runID string) (state.RunRecord, error) {
	if strings.TrimSpace(runID) == "" {
		return state.RunRecord{}, fmt.Errorf("run_id is required")
	}

	const q = `
SELECT run_id, thread_id, provider, status, input, output, messages, usage, metadata, error, created_at, updated_at, completed_at
FROM runs
WHERE run_id = ?;
`
	row := s.db.QueryRowContext(ctx, q, runID)
	run, err := scanRun(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return state.RunRecord{}, state.ErrNotFound
		}
		return state.RunRecord{}, err
	}
	return run, nil
}

func (s *Store) ListRuns(ctx context.Context, query state.ListRunsQuery) ([]state.RunRecord, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	var (
		where []string
		args  []any
	)
	if query.ThreadID != "" {
		where = append(where, "thread_id = ?")
		args = append(args, query.ThreadID)
	}
	if query.Status != "" {
		where = append(where, "status = ?")
		args = append(args, query.Status)
	}

	sqlText := `
SELECT run_id, thread_id, provider, status, input, output, messages, usage, metadata, error, created_at, updated_at, completed_at
FROM runs
`
	if len(where) > 0 {
		sqlText += " WHERE " + strings.Join(where, " AND ")
	}
	sqlText += " ORDER BY created_at DESC LIMIT ? OFFSET ?;"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]state.RunRecord, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

func (s *Store) SaveCheckpoint(ctx context.Context, checkpoint state.CheckpointRecord) (int, error) {
	if checkpoint.ThreadID == "" {
		return 0, fmt.Errorf("thread_id is required")
	}
	if checkpoint.Seq < 0 {
		return 0, fmt.Errorf("seq must be >= 0")
	}
	if checkpoint.State == nil {
		checkpoint.State = map[string]any{}
	}
	if checkpoint.CreatedAt.IsZero() {
		checkpoint.CreatedAt = time.Now().UTC()
	}

	messagesRaw, err := json.Marshal(checkpoint.Messages)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal checkpoint messages: %w", err)
	}
	stateRaw, err := json.Marshal(checkpoint.State)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal checkpoint state: %w", err)
	}
	var pendingRaw any
	if checkpoint.Pending != nil {
		raw, err := json.Marshal(checkpoint.Pending)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal pending interrupt: %w", err)
		}
		pendingRaw = string(raw)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin checkpoint tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	seq := checkpoint.Seq
	if seq == 0 {
		var max sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			`SELECT MAX(seq) FROM checkpoints WHERE thread_id = ?;`, checkpoint.ThreadID,
		).Scan(&max); err != nil {
			return 0, fmt.Errorf("failed to compute next checkpoint seq: %w", err)
		}
		seq = int(max.Int64) + 1
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO checkpoints (thread_id, seq, messages, state, pending, created_at)
VALUES (?, ?, ?, ?, ?, ?);
`,
		checkpoint.ThreadID,
		seq,
		string(messagesRaw),
		string(stateRaw),
		pendingRaw,
		checkpoint.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, state.ErrConflict
		}
		return 0, fmt.Errorf("failed to save checkpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return seq, nil
}

func (s *Store) LoadLatestCheckpoint(ctx context.Context, threadID string) (state.CheckpointRecord, error) {
	if threadID == "" {
		return state.CheckpointRecord{}, fmt.Errorf("thread_id is required")
	}

	const q = `
SELECT thread_id, seq, messages, state, pending, created_at
FROM checkpoints
WHERE thread_id = ?
ORDER BY seq DESC
LIMIT 1;
`
	row := s.db.QueryRowContext(ctx, q, threadID)
	record, err := scanCheckpoint(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return state.CheckpointRecord{}, state.ErrNotFound
		}
		return state.CheckpointRecord{}, err
	}
	return record, nil
}

func (s *Store) ListCheckpoints(ctx context.Context, threadID string, limit int) ([]state.CheckpointRecord, error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread_id is required")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	const q = `
SELECT thread_id, seq, messages, state, pending, created_at
FROM checkpoints
WHERE thread_id = ?
ORDER BY seq DESC
LIMIT ?;
`
	rows, err := s.db.QueryContext(ctx, q, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	out := make([]state.CheckpointRecord, 0, limit)
	for rows.Next() {
		record, err := scanCheckpoint(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoints: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanRun(scan func(dest ...any) error) (state.RunRecord, error) {
	var (
		run          state.RunRecord
		messagesRaw  string
		usageRaw     sql.NullString
		metadataRaw  string
		createdRaw   string
		updatedRaw   string
		completedRaw sql.NullString
	)
	if err := scan(
		&run.RunID,
		&run.ThreadID,
		&run.Provider,
		&run.Status,
		&run.Input,
		&run.Output,
		&messagesRaw,
		&usageRaw,
		&metadataRaw,
		&run.Error,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return state.RunRecord{}, err
	}

	if err := json.Unmarshal([]byte(messagesRaw), &run.Messages); err != nil {
		return state.RunRecord{}, fmt.Errorf("failed to decode run messages: %w", err)
	}
	if usageRaw.Valid && strings.TrimSpace(usageRaw.String) != "" && usageRaw.String != "null" {
		var usage types.Usage
		if err := json.Unmarshal([]byte(usageRaw.String), &usage); err != nil {
			return state.RunRecord{}, fmt.Errorf("failed to decode run usage: %w", err)
		}
		run.Usage = &usage
	}
	if strings.TrimSpace(metadataRaw) == "" {
		run.Metadata = map[string]any{}
	} else if err := json.Unmarshal([]byte(metadataRaw), &run.Metadata); err != nil {
		return state.RunRecord{}, fmt.Errorf("failed to decode run metadata: %w", err)
	}
	created, err := parseRequiredTime(createdRaw)
	if err != nil {
		return state.RunRecord{}, fmt.Errorf("failed to parse run created_at: %w", err)
	}
	updated, err := parseRequiredTime(updatedRaw)
	if err != nil {
		return state.RunRecord{}, fmt.Errorf("failed to parse run updated_at: %w", err)
	}
	run.CreatedAt = &created
	run.UpdatedAt = &updated
	if completedRaw.Valid && strings.TrimSpace(completedRaw.String) != "" {
		completed, err := parseRequiredTime(completedRaw.String)
		if err != nil {
			return state.RunRecord{}, fmt.Errorf("failed to parse run completed_at: %w", err)
		}
		run.CompletedAt = &completed
	}
	return run, nil
}

func scanCheckpoint(scan func(dest ...any) error) (state.CheckpointRecord, error) {
	var (
		record       state.CheckpointRecord
		messagesRaw  string
		stateRaw     string
		pendingRaw   sql.NullString
		createdAtRaw string
	)
	if err := scan(
		&record.ThreadID,
		&record.Seq,
		&messagesRaw,
		&stateRaw,
		&pendingRaw,
		&createdAtRaw,
	); err != nil {
		return state.CheckpointRecord{}, err
	}

	if err := json.Unmarshal([]byte(messagesRaw), &record.Messages); err != nil {
		return state.CheckpointRecord{}, fmt.Errorf("failed to decode checkpoint messages: %w", err)
	}
	if err := json.Unmarshal([]byte(stateRaw), &record.State); err != nil {
		return state.CheckpointRecord{}, fmt.Errorf("failed to decode checkpoint state: %w", err)
	}
	if pendingRaw.Valid && strings.TrimSpace(pendingRaw.String) != "" {
		var pending state.PendingInterrupt
		if err := json.Unmarshal([]byte(pendingRaw.String), &pending); err != nil {
			return state.CheckpointRecord{}, fmt.Errorf("failed to decode pending interrupt: %w", err)
		}
		record.Pending = &pending
	}
	created, err := parseRequiredTime(createdAtRaw)
	if err != nil {
		return state.CheckpointRecord{}, fmt.Errorf("failed to parse checkpoint created_at: %w", err)
	}
	record.CreatedAt = created
	return record, nil
}

func parseRequiredTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func toNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullIfEmptyJSON(raw []byte) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return string(raw)
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
