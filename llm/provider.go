// Package llm defines the provider abstraction the agent runtime generates
// completions through. Concrete adapters live under providers/.
package llm

import (
	"context"
	"errors"

	"github.com/relaylabs/agentloop/types"
)

var ErrNotSupported = errors.New("operation not supported by provider")

type Capabilities struct {
	Tools            bool
	Streaming        bool
	StructuredOutput bool
}

type Provider interface {
	Name() string
	Capabilities() Capabilities
	Generate(ctx context.Context, req types.Request) (types.Response, error)
}
