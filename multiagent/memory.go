package multiagent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relaylabs/agentloop/tools"
)

// SharedMemory is an in-process key/value store visible to every agent in
// an orchestrator. Entries may carry a TTL; expired entries are dropped
// lazily on access.
type SharedMemory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     any
	writtenBy string
	expiresAt time.Time
}

func NewSharedMemory() *SharedMemory {
	return &SharedMemory{entries: make(map[string]memoryEntry)}
}

func (m *SharedMemory) Set(key string, value any, writtenBy string) {
	m.SetWithTTL(key, value, writtenBy, 0)
}

func (m *SharedMemory) SetWithTTL(key string, value any, writtenBy string, ttl time.Duration) {
	entry := memoryEntry{value: value, writtenBy: writtenBy}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
}

func (m *SharedMemory) Get(key string) (any, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (m *SharedMemory) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *SharedMemory) Keys() []string {
	now := time.Now()
	m.mu.RLock()
	keys := make([]string, 0, len(m.entries))
	for key, entry := range m.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			continue
		}
		keys = append(keys, key)
	}
	m.mu.RUnlock()
	return keys
}

type memoryReadArgs struct {
	Key      string `json:"key,omitempty" jsonschema_description:"The key to read."`
	ListKeys bool   `json:"list_keys,omitempty" jsonschema_description:"List all keys instead of reading one."`
}

func (o *Orchestrator) memoryReadTool() tools.Tool {
	return tools.Typed("shared_memory_read",
		"Read a value from the memory shared by all agents in this system.",
		func(ctx context.Context, args memoryReadArgs) (any, error) {
			if args.ListKeys {
				return map[string]any{"keys": o.memory.Keys()}, nil
			}
			if args.Key == "" {
				return nil, fmt.Errorf("key is required")
			}
			value, found := o.memory.Get(args.Key)
			if !found {
				return map[string]any{"found": false, "key": args.Key}, nil
			}
			return map[string]any{"found": true, "key": args.Key, "value": value}, nil
		})
}

type memoryWriteArgs struct {
	Key        string `json:"key" jsonschema:"required" jsonschema_description:"The key to store under."`
	Value      string `json:"value" jsonschema:"required" jsonschema_description:"The value to store."`
	TTLSeconds int    `json:"ttl_seconds,omitempty" jsonschema_description:"Optional time-to-live in seconds."`
}

func (o *Orchestrator) memoryWriteTool() tools.Tool {
	return tools.Typed("shared_memory_write",
		"Write a value to the memory shared by all agents in this system.",
		func(ctx context.Context, args memoryWriteArgs) (any, error) {
			if args.Key == "" {
				return nil, fmt.Errorf("key is required")
			}

			writtenBy := "unknown"
			if rt := tools.RuntimeFromContext(ctx); rt != nil {
				writtenBy = rt.RunID()
			}
			if args.TTLSeconds > 0 {
				o.memory.SetWithTTL(args.Key, args.Value, writtenBy, time.Duration(args.TTLSeconds)*time.Second)
			} else {
				o.memory.Set(args.Key, args.Value, writtenBy)
			}
			return map[string]any{"success": true, "key": args.Key}, nil
		})
}
