package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxHTTPResponseBytes = 1 << 20

type httpClientArgs struct {
	URL     string            `json:"url" jsonschema:"required" jsonschema_description:"Absolute http(s) URL to request."`
	Method  string            `json:"method,omitempty" jsonschema_description:"HTTP method, default GET."`
	Headers map[string]string `json:"headers,omitempty" jsonschema_description:"Request headers."`
	Body    string            `json:"body,omitempty" jsonschema_description:"Request body for POST/PUT/PATCH."`
}

// NewHTTPClient performs a single HTTP request. Responses are truncated at
// 1 MiB so tool output stays within model context.
func NewHTTPClient() Tool {
	return Typed("http_client",
		"Perform an HTTP request and return status, headers and body.",
		func(ctx context.Context, args httpClientArgs) (any, error) {
			target := strings.TrimSpace(args.URL)
			if target == "" {
				return nil, fmt.Errorf("url is required")
			}
			parsed, err := url.Parse(target)
			if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
				return nil, fmt.Errorf("url must be absolute http(s), got %q", target)
			}

			method := strings.ToUpper(strings.TrimSpace(args.Method))
			if method == "" {
				method = http.MethodGet
			}
			switch method {
			case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
				http.MethodDelete, http.MethodHead, http.MethodOptions:
			default:
				return nil, fmt.Errorf("unsupported method %q", method)
			}

			var body io.Reader
			if args.Body != "" {
				body = strings.NewReader(args.Body)
			}
			req, err := http.NewRequestWithContext(ctx, method, target, body)
			if err != nil {
				return nil, err
			}
			for k, v := range args.Headers {
				req.Header.Set(k, v)
			}

			client := &http.Client{Timeout: 30 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("request %s %s: %w", method, target, err)
			}
			defer resp.Body.Close()

			payload, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPResponseBytes))
			if err != nil {
				return nil, err
			}

			headers := map[string]string{}
			for k := range resp.Header {
				headers[k] = resp.Header.Get(k)
			}
			return map[string]any{
				"status":    resp.StatusCode,
				"headers":   headers,
				"body":      string(payload),
				"truncated": len(payload) == maxHTTPResponseBytes,
			}, nil
		})
}
