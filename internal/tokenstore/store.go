// Package tokenstore persists acquired provider secrets.
//
// Three backends are available: a JSON profile file, the OS keyring and a
// read-only view of environment variables. All of them satisfy
// credential.Sink, so either login flow can save into any of them.
package tokenstore

import (
	"context"
	"errors"

	"github.com/BIGWOO/clawx-auth/internal/credential"
)

var (
	// ErrReadOnly is returned by stores that cannot be written.
	ErrReadOnly = errors.New("token store is read-only")
	// ErrNotFound is returned when no secret is stored for a provider.
	ErrNotFound = errors.New("no token stored for provider")
)

// Store saves, loads and deletes secrets keyed by provider id.
type Store interface {
	credential.Sink
	Load(ctx context.Context, providerID string) (string, error)
	Delete(ctx context.Context, providerID string) error
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*KeyringStore)(nil)
	_ Store = (*EnvStore)(nil)
)
