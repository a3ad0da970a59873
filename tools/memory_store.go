package tools

import (
	"context"
	"fmt"
	"strings"
)

type memoryArgs struct {
	Action string `json:"action" jsonschema:"required" jsonschema_description:"One of: set, get, list, delete."`
	Key    string `json:"key,omitempty" jsonschema_description:"State key for set/get/delete."`
	Value  string `json:"value,omitempty" jsonschema_description:"Value to store for set."`
}

// NewMemoryStore lets the model read and write conversation state. Writes
// go through the tool runtime so they persist with the thread checkpoint.
func NewMemoryStore() Tool {
	return Typed("memory_store",
		"Remember facts across the conversation: set, get, list or delete a value by key.",
		func(ctx context.Context, args memoryArgs) (any, error) {
			rt := RuntimeFromContext(ctx)
			if rt == nil {
				return nil, fmt.Errorf("memory_store requires an agent run")
			}

			action := strings.ToLower(strings.TrimSpace(args.Action))
			key := strings.TrimSpace(args.Key)
			switch action {
			case "set":
				if key == "" {
					return nil, fmt.Errorf("key is required for set")
				}
				rt.SetState("memory:"+key, args.Value)
				return map[string]any{"stored": key}, nil
			case "get":
				if key == "" {
					return nil, fmt.Errorf("key is required for get")
				}
				v, ok := rt.State("memory:" + key)
				if !ok {
					return map[string]any{"found": false, "key": key}, nil
				}
				return map[string]any{"found": true, "key": key, "value": v}, nil
			case "list":
				keys := []string{}
				for _, k := range rt.StateKeys() {
					if name, ok := strings.CutPrefix(k, "memory:"); ok {
						keys = append(keys, name)
					}
				}
				return map[string]any{"keys": keys}, nil
			case "delete":
				if key == "" {
					return nil, fmt.Errorf("key is required for delete")
				}
				rt.SetState("memory:"+key, nil)
				return map[string]any{"deleted": key}, nil
			default:
				return nil, fmt.Errorf("unknown action %q", args.Action)
			}
		})
}
