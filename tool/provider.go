package tool

import "context"

// Provider is a source of tool definitions external to the process, such
// as an MCP server. An agent attaches a provider and refreshes its registry
// whenever ToolsChanged fires.
type Provider interface {
	// Tools returns the provider's current tool definitions.
	Tools(ctx context.Context) ([]*Tool, error)
	// Close releases resources owned by the provider.
	Close() error
	// ToolsChanged returns a channel that fires when the tool set is
	// updated. Providers without live updates return nil.
	ToolsChanged() <-chan struct{}
}
