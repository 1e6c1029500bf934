package tokenstore

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvPrefix prefixes the environment variables read by EnvStore.
const EnvPrefix = "CLAWX_"

// EnvStore reads secrets from CLAWX_<PROVIDER>_TOKEN variables. It cannot be written.
type EnvStore struct {
	lookup func(string) (string, bool)
}

// NewEnvStore creates a store reading the process environment.
func NewEnvStore() *EnvStore {
	return &EnvStore{lookup: os.LookupEnv}
}

// EnvVar returns the variable name holding the secret of providerID.
func EnvVar(providerID string) string {
	name := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(providerID))
	return EnvPrefix + name + "_TOKEN"
}

// Save always fails with ErrReadOnly.
func (s *EnvStore) Save(context.Context, string, string) error {
	return ErrReadOnly
}

// Load returns the value of the provider's variable.
func (s *EnvStore) Load(_ context.Context, providerID string) (string, error) {
	v, ok := s.lookup(EnvVar(providerID))
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrNotFound, EnvVar(providerID))
	}
	return v, nil
}

// Delete always fails with ErrReadOnly.
func (s *EnvStore) Delete(context.Context, string) error {
	return ErrReadOnly
}
