package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keyring service name secrets are stored under.
const DefaultKeyringService = "clawx-auth"

// KeyringStore keeps secrets in the OS keyring, one entry per provider.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keyring store using service as the entry namespace.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringStore{service: service}
}

// Save stores secret under providerID.
func (s *KeyringStore) Save(ctx context.Context, providerID, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := keyring.Set(s.service, providerID, secret); err != nil {
		return fmt.Errorf("failed to save token to keyring: %w", err)
	}
	return nil
}

// Load returns the secret stored under providerID.
func (s *KeyringStore) Load(ctx context.Context, providerID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	secret, err := keyring.Get(s.service, providerID)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, providerID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token from keyring: %w", err)
	}
	return secret, nil
}

// Delete removes the entry of providerID. Deleting a missing entry is not an error.
func (s *KeyringStore) Delete(ctx context.Context, providerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := keyring.Delete(s.service, providerID)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}
