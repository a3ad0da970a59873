package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type timestampArgs struct {
	Value    string `json:"value,omitempty" jsonschema_description:"Timestamp to convert: unix seconds, unix millis, or RFC 3339. Empty means now."`
	Timezone string `json:"timezone,omitempty" jsonschema_description:"IANA timezone for the formatted output, default UTC."`
}

// NewTimestampConverter converts between unix epochs and RFC 3339 strings.
func NewTimestampConverter() Tool {
	return Typed("timestamp_converter",
		"Convert a timestamp between unix epoch and RFC 3339, optionally in a timezone.",
		func(ctx context.Context, args timestampArgs) (any, error) {
			_ = ctx
			t, err := parseTimestamp(strings.TrimSpace(args.Value))
			if err != nil {
				return nil, err
			}

			loc := time.UTC
			if tz := strings.TrimSpace(args.Timezone); tz != "" {
				loc, err = time.LoadLocation(tz)
				if err != nil {
					return nil, fmt.Errorf("unknown timezone %q: %w", tz, err)
				}
			}

			local := t.In(loc)
			return map[string]any{
				"unix":       t.Unix(),
				"unix_milli": t.UnixMilli(),
				"rfc3339":    t.UTC().Format(time.RFC3339),
				"local":      local.Format(time.RFC3339),
				"timezone":   loc.String(),
				"weekday":    local.Weekday().String(),
			}, nil
		})
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		// Heuristic: epochs past the year 2286 in seconds are millis.
		if n > 1e10 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
