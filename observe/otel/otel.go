// Package otel bridges observe events to OpenTelemetry spans so agent
// runs, model calls and tool calls show up in any OTel-compatible backend.
package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/relaylabs/agentloop/observe"
)

const instrumentationName = "github.com/relaylabs/agentloop"

// Sink implements observe.Sink by emitting one span per event.
type Sink struct {
	tracer trace.Tracer
}

// NewSink builds a sink on the given TracerProvider; nil means noop.
func NewSink(tp trace.TracerProvider) *Sink {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Sink{tracer: tp.Tracer(instrumentationName)}
}

func (s *Sink) Emit(_ context.Context, event observe.Event) error {
	event.Normalize()

	start := event.Timestamp
	_, span := s.tracer.Start(context.Background(), spanNameFor(event), trace.WithTimestamp(start))

	attrs := []attribute.KeyValue{
		attribute.String("agent.event.kind", string(event.Kind)),
	}
	if event.RunID != "" {
		attrs = append(attrs, attribute.String("agent.run.id", event.RunID))
	}
	if event.ThreadID != "" {
		attrs = append(attrs, attribute.String("agent.thread.id", event.ThreadID))
	}
	if event.Provider != "" {
		attrs = append(attrs, attribute.String("agent.provider", event.Provider))
	}
	if event.Model != "" {
		attrs = append(attrs, attribute.String("agent.model", event.Model))
	}
	if event.ToolName != "" {
		attrs = append(attrs, attribute.String("agent.tool.name", event.ToolName))
	}
	if event.Name != "" {
		attrs = append(attrs, attribute.String("agent.event.name", event.Name))
	}
	if event.Status != "" {
		attrs = append(attrs, attribute.String("agent.status", string(event.Status)))
	}
	if event.Message != "" {
		attrs = append(attrs, attribute.String("agent.message", truncate(event.Message, 1024)))
	}
	for k, v := range event.Attributes {
		attrs = append(attrs, attribute.String("agent.attr."+k, fmt.Sprintf("%v", v)))
	}
	span.SetAttributes(attrs...)

	switch event.Status {
	case observe.StatusFailed:
		span.SetStatus(codes.Error, event.Error)
		if event.Error != "" {
			span.RecordError(fmt.Errorf("%s", event.Error))
		}
	case observe.StatusCompleted:
		span.SetStatus(codes.Ok, "")
	}

	end := start
	if event.DurationMs > 0 {
		end = start.Add(time.Duration(event.DurationMs) * time.Millisecond)
	}
	span.End(trace.WithTimestamp(end))
	return nil
}

func spanNameFor(event observe.Event) string {
	switch event.Kind {
	case observe.KindRun:
		return "agent.run"
	case observe.KindProvider:
		if event.Provider != "" {
			return "agent.llm." + event.Provider
		}
		return "agent.llm.generate"
	case observe.KindTool:
		if event.ToolName != "" {
			return "agent.tool." + event.ToolName
		}
		return "agent.tool.call"
	case observe.KindCheckpoint:
		return "agent.checkpoint"
	default:
		if event.Name != "" {
			return "agent." + event.Name
		}
		return "agent.event"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
