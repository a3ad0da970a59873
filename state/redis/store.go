// Package redis implements state.Store on Redis, for deployments that share
// thread memory across processes. Checkpoints use a per-thread sequence
// counter and a sorted-set index; records expire after a configurable TTL.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/relaylabs/agentloop/state"
)

const (
	defaultTTL    = 72 * time.Hour
	defaultLimit  = 50
	defaultPrefix = "agentloop"
)

type Store struct {
	client   *goredis.Client
	ttl      time.Duration
	prefix   string
	addr     string
	db       int
	password string
}

type Option func(*Store)

func WithPassword(password string) Option {
	return func(s *Store) { s.password = password }
}

func WithDB(db int) Option {
	return func(s *Store) { s.db = db }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if strings.TrimSpace(prefix) != "" {
			s.prefix = strings.TrimSpace(prefix)
		}
	}
}

func WithClient(client *goredis.Client) Option {
	return func(s *Store) {
		if client != nil {
			s.client = client
		}
	}
}

func New(addr string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	s := &Store{
		ttl:    defaultTTL,
		prefix: defaultPrefix,
		addr:   addr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = goredis.NewClient(&goredis.Options{
			Addr:     s.addr,
			Password: s.password,
			DB:       s.db,
		})
	}

	if err := s.client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return s, nil
}

func (s *Store) SaveRun(ctx context.Context, run state.RunRecord) error {
	if run.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if run.ThreadID == "" {
		return fmt.Errorf("thread_id is required")
	}
	now := time.Now().UTC()
	if run.UpdatedAt == nil {
		run.UpdatedAt = &now
	}
	if run.CreatedAt == nil {
		run.CreatedAt = &now
	}
	if run.Metadata == nil {
		run.Metadata = map[string]any{}
	}

	raw, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.runKey(run.RunID), string(raw), s.ttl)
	pipe.ZAdd(ctx, s.threadRunIndexKey(run.ThreadID), goredis.Z{
		Score:  float64(run.UpdatedAt.Unix()),
		Member: run.RunID,
	})
	pipe.Expire(ctx, s.threadRunIndexKey(run.ThreadID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run in redis: %w", err)
	}
	return nil
}

func (s *Store) LoadRun(ctx context.Context, runID string) (state.RunRecord, error) {
	if runID == "" {
		return state.RunRecord{}, fmt.Errorf("run_id is required")
	}

	raw, err := s.client.Get(ctx, s.runKey(runID)).Result()
	if err != nil {
		if err == goredis.Nil {
			return state.RunRecord{}, state.ErrNotFound
		}
		return state.RunRecord{}, fmt.Errorf("failed to load run from redis: %w", err)
	}

	var run state.RunRecord
	if err := json.Unmarshal([]byte(raw), &run); err != nil {
		return state.RunRecord{}, fmt.Errorf("failed to decode run from redis: %w", err)
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

	ids := make([]string, 0, limit)
	if query.ThreadID != "" {
		values, err := s.client.ZRevRange(ctx, s.threadRunIndexKey(query.ThreadID), int64(offset), int64(offset+limit-1)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list run ids by thread: %w", err)
		}
		ids = append(ids, values...)
	} else {
		var cursor uint64
		match := s.prefix + ":run:*"
		for len(ids) < limit {
			keys, next, err := s.client.Scan(ctx, cursor, match, int64(limit)).Result()
			if err != nil {
				return nil, fmt.Errorf("failed to scan redis run keys: %w", err)
			}
			for _, key := range keys {
				if id := strings.TrimPrefix(key, s.prefix+":run:"); id != key && id != "" {
					ids = append(ids, id)
				}
				if len(ids) >= limit {
					break
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}

	if len(ids) == 0 {
		return []state.RunRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.runKey(id)
	}
	loaded, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mget runs from redis: %w", err)
	}

	out := make([]state.RunRecord, 0, len(loaded))
	for _, raw := range loaded {
		text, ok := raw.(string)
		if !ok {
			continue
		}
		var run state.RunRecord
		if err := json.Unmarshal([]byte(text), &run); err != nil {
			continue
		}
		if query.Status != "" && run.Status != query.Status {
			continue
		}
		out = append(out, run)
	}

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
	return out, nil
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

	seq := checkpoint.Seq
	if seq == 0 {
		next, err := s.client.Incr(ctx, s.checkpointSeqCounterKey(checkpoint.ThreadID)).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to allocate checkpoint seq: %w", err)
		}
		seq = int(next)
	} else {
		ok, err := s.client.SetNX(ctx, s.checkpointKey(checkpoint.ThreadID, seq)+":claim", "1", s.ttl).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to claim checkpoint seq: %w", err)
		}
		if !ok {
			return 0, state.ErrConflict
		}
	}
	checkpoint.Seq = seq

	raw, err := json.Marshal(checkpoint)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.checkpointKey(checkpoint.ThreadID, seq), string(raw), s.ttl)
	pipe.ZAdd(ctx, s.checkpointIndexKey(checkpoint.ThreadID), goredis.Z{
		Score:  float64(seq),
		Member: fmt.Sprintf("%d", seq),
	})
	pipe.Expire(ctx, s.checkpointIndexKey(checkpoint.ThreadID), s.ttl)
	pipe.Expire(ctx, s.checkpointSeqCounterKey(checkpoint.ThreadID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to save checkpoint in redis: %w", err)
	}
	return seq, nil
}

func (s *Store) LoadLatestCheckpoint(ctx context.Context, threadID string) (state.CheckpointRecord, error) {
	if threadID == "" {
		return state.CheckpointRecord{}, fmt.Errorf("thread_id is required")
	}

	members, err := s.client.ZRevRange(ctx, s.checkpointIndexKey(threadID), 0, 0).Result()
	if err != nil {
		return state.CheckpointRecord{}, fmt.Errorf("failed to read checkpoint index: %w", err)
	}
	if len(members) == 0 {
		return state.CheckpointRecord{}, state.ErrNotFound
	}

	raw, err := s.client.Get(ctx, s.prefix+":cp:"+threadID+":"+members[0]).Result()
	if err != nil {
		if err == goredis.Nil {
			return state.CheckpointRecord{}, state.ErrNotFound
		}
		return state.CheckpointRecord{}, fmt.Errorf("failed to load checkpoint from redis: %w", err)
	}

	var record state.CheckpointRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return state.CheckpointRecord{}, fmt.Errorf("failed to decode checkpoint: %w", err)
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

	members, err := s.client.ZRevRange(ctx, s.checkpointIndexKey(threadID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint index: %w", err)
	}
	out := make([]state.CheckpointRecord, 0, len(members))
	for _, member := range members {
		raw, err := s.client.Get(ctx, s.prefix+":cp:"+threadID+":"+member).Result()
		if err != nil {
			if err == goredis.Nil {
				continue
			}
			return nil, fmt.Errorf("failed to load checkpoint from redis: %w", err)
		}
		var record state.CheckpointRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) runKey(runID string) string {
	return s.prefix + ":run:" + runID
}

func (s *Store) threadRunIndexKey(threadID string) string {
	return s.prefix + ":thread:" + threadID + ":runs"
}

func (s *Store) checkpointKey(threadID string, seq int) string {
	return fmt.Sprintf("%s:cp:%s:%d", s.prefix, threadID, seq)
}

func (s *Store) checkpointIndexKey(threadID string) string {
	return s.prefix + ":cp:" + threadID + ":index"
}

func (s *Store) checkpointSeqCounterKey(threadID string) string {
	return s.prefix + ":cp:" + threadID + ":seq"
}
