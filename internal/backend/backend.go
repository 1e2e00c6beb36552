package backend

import (
	"context"
	"fmt"
)

// Backend is the generation/judgment service used by every pipeline stage.
type Backend interface {
	// Send issues one request and returns the free-text reply.
	Send(ctx context.Context, msg Message) (Response, error)

	// Close releases any resources held by the adapter.
	Close() error
}

// New creates a backend based on cfg.Type.
// The ProcessManager is only used by subprocess adapters and may be nil.
func New(cfg Config, pm *ProcessManager) (Backend, error) {
	switch cfg.Type {
	case "anthropic", "":
		return NewAnthropicAdapter(cfg)
	case "bedrock":
		return NewBedrockAdapter(context.Background(), cfg)
	case "claude":
		return NewClaudeAdapter(cfg, pm)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
