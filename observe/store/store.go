// Package store persists observe events for later inspection and rollup
// metrics. The sqlite subpackage is the bundled implementation.
package store

import (
	"context"
	"time"

	"github.com/relaylabs/agentloop/observe"
)

type ListQuery struct {
	Limit  int
	Offset int
}

type MetricsQuery struct {
	Since *time.Time
}

type MetricsSummary struct {
	RunsStarted      int64 `json:"runsStarted"`
	RunsCompleted    int64 `json:"runsCompleted"`
	RunsFailed       int64 `json:"runsFailed"`
	ProviderCalls    int64 `json:"providerCalls"`
	ProviderFailures int64 `json:"providerFailures"`
	ToolCalls        int64 `json:"toolCalls"`
	ToolFailures     int64 `json:"toolFailures"`
}

type Store interface {
	SaveEvent(ctx context.Context, event observe.Event) error
	ListEventsByRun(ctx context.Context, runID string, query ListQuery) ([]observe.Event, error)
	ListEventsByThread(ctx context.Context, threadID string, query ListQuery) ([]observe.Event, error)
	AggregateMetrics(ctx context.Context, query MetricsQuery) (MetricsSummary, error)
	Close() error
}

// Sink adapts an event store to the observe.Sink interface so it can sit
// in a MultiSink next to logging and tracing.
func Sink(st Store) observe.SinkFunc {
	return func(ctx context.Context, event observe.Event) error {
		return st.SaveEvent(ctx, event)
	}
}
