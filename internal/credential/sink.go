package credential

import "context"

// Sink persists an acquired secret under a provider id.
// Implementations must be safe for concurrent writes of different provider ids.
type Sink interface {
	Save(ctx context.Context, providerID, secret string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, providerID, secret string) error

// Save calls f.
func (f SinkFunc) Save(ctx context.Context, providerID, secret string) error {
	return f(ctx, providerID, secret)
}
