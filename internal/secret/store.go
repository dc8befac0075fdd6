// Package secret resolves credentials, such as the warehouse password,
// that should not live in the config file.
package secret

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrReadOnly is returned by stores that cannot be written to.
var ErrReadOnly = errors.New("secret store is read-only")

// SecretStore provides a pluggable interface for storing sensitive data
// such as warehouse passwords.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// ── Env ────────────────────────────────────────────────────

// EnvStore reads secrets from BALLPARK_<KEY>_PASSWORD environment variables.
type EnvStore struct {
	Lookup func(string) (string, bool) // defaults to os.LookupEnv
}

// EnvName returns the variable EnvStore reads for key, e.g.
// "warehouse" -> BALLPARK_WAREHOUSE_PASSWORD.
func EnvName(key string) string {
	k := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(key))
	return "BALLPARK_" + k + "_PASSWORD"
}

func (e EnvStore) Get(key string) ([]byte, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(EnvName(key))
	if !ok {
		return nil, nil
	}
	return []byte(v), nil
}

func (EnvStore) Set(string, []byte) error { return ErrReadOnly }
func (EnvStore) Delete(string) error      { return ErrReadOnly }

// ── Chain ──────────────────────────────────────────────────

// Chain reads from each store in order and returns the first non-empty
// value. Writes go to the first store that accepts them.
type Chain []SecretStore

func (c Chain) Get(key string) ([]byte, error) {
	var errs []error
	for _, s := range c {
		v, err := s.Get(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(v) > 0 {
			return v, nil
		}
	}
	return nil, errors.Join(errs...)
}

func (c Chain) Set(key string, value []byte) error {
	for _, s := range c {
		err := s.Set(key, value)
		if errors.Is(err, ErrReadOnly) {
			continue
		}
		return err
	}
	return ErrReadOnly
}

func (c Chain) Delete(key string) error {
	for _, s := range c {
		if err := s.Delete(key); err != nil && !errors.Is(err, ErrReadOnly) {
			return err
		}
	}
	return nil
}

// Resolve returns the secret stored under key, or fallback when no store
// holds one.
func Resolve(s SecretStore, key, fallback string) (string, error) {
	if s == nil {
		return fallback, nil
	}
	v, err := s.Get(key)
	if err != nil {
		return "", fmt.Errorf("read secret %q: %w", key, err)
	}
	if len(v) == 0 {
		return fallback, nil
	}
	return string(v), nil
}
