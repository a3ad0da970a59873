// Package sqlite stores observe events in a local SQLite database. It is
// the bundled store.Store implementation and needs no external service.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/relaylabs/agentloop/observe"
	"github.com/relaylabs/agentloop/observe/store"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent sinks.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveEvent(ctx context.Context, event observe.Event) error {
	event.Normalize()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	attrs, err := json.Marshal(event.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_events (
			event_id, run_id, thread_id, kind, status, name,
			provider, model, tool_name, message, error,
			duration_ms, attributes, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.RunID, event.ThreadID, string(event.Kind),
		string(event.Status), event.Name, event.Provider, event.Model,
		event.ToolName, event.Message, event.Error, event.DurationMs,
		string(attrs), event.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Store) ListEventsByRun(ctx context.Context, runID string, query store.ListQuery) ([]observe.Event, error) {
	return s.list(ctx, "run_id", runID, query)
}

func (s *Store) ListEventsByThread(ctx context.Context, threadID string, query store.ListQuery) ([]observe.Event, error) {
	return s.list(ctx, "thread_id", threadID, query)
}

func (s *Store) list(ctx context.Context, column, value string, query store.ListQuery) ([]observe.Event, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT event_id, run_id, thread_id, kind, status, name,
			provider, model, tool_name, message, error,
			duration_ms, attributes, timestamp
		FROM agent_events
		WHERE %s = ?
		ORDER BY timestamp ASC
		LIMIT ? OFFSET ?`, column),
		value, limit, query.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []observe.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Store) AggregateMetrics(ctx context.Context, query store.MetricsQuery) (store.MetricsSummary, error) {
	var summary store.MetricsSummary

	where := ""
	args := []any{}
	if query.Since != nil {
		where = "WHERE timestamp >= ?"
		args = append(args, query.Since.UTC().Format(time.RFC3339Nano))
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT kind, status, COUNT(*)
		FROM agent_events
		%s
		GROUP BY kind, status`, where), args...)
	if err != nil {
		return summary, fmt.Errorf("aggregate metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, status string
		var count int64
		if err := rows.Scan(&kind, &status, &count); err != nil {
			return summary, fmt.Errorf("scan metrics row: %w", err)
		}
		switch observe.Kind(kind) {
		case observe.KindRun:
			switch observe.Status(status) {
			case observe.StatusStarted:
				summary.RunsStarted += count
			case observe.StatusCompleted:
				summary.RunsCompleted += count
			case observe.StatusFailed:
				summary.RunsFailed += count
			}
		case observe.KindProvider:
			summary.ProviderCalls += count
			if observe.Status(status) == observe.StatusFailed {
				summary.ProviderFailures += count
			}
		case observe.KindTool:
			summary.ToolCalls += count
			if observe.Status(status) == observe.StatusFailed {
				summary.ToolFailures += count
			}
		}
	}
	return summary, rows.Err()
}

func scanEvent(rows *sql.Rows) (observe.Event, error) {
	var event observe.Event
	var kind, status, attrs, timestamp string
	if err := rows.Scan(
		&event.ID, &event.RunID, &event.ThreadID, &kind, &status,
		&event.Name, &event.Provider, &event.Model, &event.ToolName,
		&event.Message, &event.Error, &event.DurationMs, &attrs, &timestamp,
	); err != nil {
		return event, fmt.Errorf("scan event row: %w", err)
	}
	event.Kind = observe.Kind(kind)
	event.Status = observe.Status(status)
	if attrs != "" && attrs != "{}" {
		if err := json.Unmarshal([]byte(attrs), &event.Attributes); err != nil {
			return event, fmt.Errorf("decode attributes: %w", err)
		}
	}
	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return event, fmt.Errorf("parse timestamp: %w", err)
	}
	event.Timestamp = ts
	return event, nil
}
