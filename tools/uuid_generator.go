package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type uuidArgs struct {
	Count   int    `json:"count,omitempty" jsonschema_description:"How many UUIDs to generate (1-100, default 1)."`
	Version string `json:"version,omitempty" jsonschema_description:"UUID version: v4 (random, default) or v7 (time-ordered)."`
}

func NewUUIDGenerator() Tool {
	return Typed("uuid_generator",
		"Generate random (v4) or time-ordered (v7) UUIDs.",
		func(ctx context.Context, args uuidArgs) (any, error) {
			_ = ctx
			count := args.Count
			if count <= 0 {
				count = 1
			}
			if count > 100 {
				count = 100
			}

			version := strings.ToLower(strings.TrimSpace(args.Version))
			if version == "" {
				version = "v4"
			}

			ids := make([]string, 0, count)
			for i := 0; i < count; i++ {
				switch version {
				case "v4":
					ids = append(ids, uuid.NewString())
				case "v7":
					id, err := uuid.NewV7()
					if err != nil {
						return nil, fmt.Errorf("generate v7 uuid: %w", err)
					}
					ids = append(ids, id.String())
				default:
					return nil, fmt.Errorf("unsupported uuid version %q", args.Version)
				}
			}
			return map[string]any{"version": version, "uuids": ids}, nil
		})
}
