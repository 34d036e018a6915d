// Package keychain stores provider API keys in the OS keychain.
package keychain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	zkr "github.com/zalando/go-keyring"

	"mindlog-agent/internal/credentials"
)

const serviceName = "mindlog"

// Store is a credentials.Source backed by the OS keychain. Each provider's
// key is an entry under the "mindlog" service with the provider as account.
type Store struct{}

func New() *Store {
	return &Store{}
}

func (s *Store) APIKey(_ context.Context, provider string) (string, error) {
	v, err := zkr.Get(serviceName, provider)
	if err != nil {
		if errors.Is(err, zkr.ErrNotFound) {
			return "", fmt.Errorf("%w: %s not in keychain", credentials.ErrNotFound, provider)
		}
		return "", fmt.Errorf("keychain get %s: %w", provider, err)
	}
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s keychain entry is empty", credentials.ErrNotFound, provider)
	}
	return strings.TrimSpace(v), nil
}

// Set stores key for provider, replacing any existing entry.
func (s *Store) Set(provider, key string) error {
	key = strings.TrimSpace(key)
	if provider == "" || key == "" {
		return errors.New("keychain: provider and key are required")
	}
	if err := zkr.Set(serviceName, provider, key); err != nil {
		return fmt.Errorf("keychain set %s: %w", provider, err)
	}
	return nil
}

// Delete removes provider's entry. Deleting a missing entry is not an error.
func (s *Store) Delete(provider string) error {
	if err := zkr.Delete(serviceName, provider); err != nil && !errors.Is(err, zkr.ErrNotFound) {
		return fmt.Errorf("keychain delete %s: %w", provider, err)
	}
	return nil
}

// Available reports whether the OS keychain works. MINDLOG_KEYRING_DISABLED=1
// turns it off for headless hosts.
func Available() bool {
	if os.Getenv("MINDLOG_KEYRING_DISABLED") == "1" {
		return false
	}
	const probe = "mindlog-keyring-probe"
	if err := zkr.Set(probe, "probe", "ok"); err != nil {
		return false
	}
	_ = zkr.Delete(probe, "probe")
	return true
}
