// Package credentials resolves provider API keys.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"mindlog-agent/internal/integrations/paramstore"
)

// ErrNotFound reports that a source holds no key for the provider.
var ErrNotFound = errors.New("credentials: api key not found")

// Source looks up the API key for a provider name such as "gemini".
type Source interface {
	APIKey(ctx context.Context, provider string) (string, error)
}

// Getter reads a single secret parameter.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// BatchGetter reads several parameters in one round trip.
type BatchGetter interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

// tokenPayload is the JSON shape stored in SSM for each provider token.
type tokenPayload struct {
	Token string `json:"token"`
}

// ParamStore reads keys stored in SSM as {"token": "..."} under
// <prefix>/<provider>-token.
type ParamStore struct {
	getter Getter
	prefix string

	mu      sync.RWMutex
	preload map[string]string
}

func NewParamStore(getter Getter, prefix string) (*ParamStore, error) {
	if getter == nil {
		return nil, errors.New("credentials: paramstore getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, errors.New("credentials: parameter prefix must not be empty")
	}
	return &ParamStore{getter: getter, prefix: prefix}, nil
}

// ParameterName returns the SSM name holding provider's token.
func (p *ParamStore) ParameterName(provider string) string {
	return p.prefix + "/" + provider + "-token"
}

// Preload fetches the tokens of all providers in one batch when the getter
// supports it. Providers it finds are answered without another SSM call.
func (p *ParamStore) Preload(ctx context.Context, providers ...string) error {
	bg, ok := p.getter.(BatchGetter)
	if !ok || len(providers) == 0 {
		return nil
	}
	names := make([]string, 0, len(providers))
	for _, name := range providers {
		names = append(names, p.ParameterName(name))
	}
	values, err := bg.GetParameters(ctx, names...)
	if err != nil {
		return fmt.Errorf("credentials: preload tokens: %w", err)
	}
	p.mu.Lock()
	p.preload = values
	p.mu.Unlock()
	return nil
}

func (p *ParamStore) APIKey(ctx context.Context, provider string) (string, error) {
	name := p.ParameterName(provider)
	p.mu.RLock()
	raw, ok := p.preload[name]
	p.mu.RUnlock()
	if ok {
		return decodeToken(provider, raw)
	}

	raw, err := p.getter.GetParameter(ctx, name)
	if err != nil {
		if errors.Is(err, paramstore.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, provider)
		}
		return "", fmt.Errorf("credentials: fetch %s token from paramstore: %w", provider, err)
	}
	return decodeToken(provider, raw)
}

func decodeToken(provider, raw string) (string, error) {
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("credentials: unmarshal %s token value as JSON: %w", provider, err)
	}
	if strings.TrimSpace(tp.Token) == "" {
		return "", fmt.Errorf("%w: %s token is empty", ErrNotFound, provider)
	}
	return strings.TrimSpace(tp.Token), nil
}

// Env reads keys from environment variables named <PROVIDER>_API_KEY.
type Env struct {
	lookup func(string) (string, bool)
}

func NewEnv() *Env {
	return &Env{lookup: os.LookupEnv}
}

// EnvVar returns the variable consulted for provider.
func EnvVar(provider string) string {
	return strings.ToUpper(strings.ReplaceAll(provider, "-", "_")) + "_API_KEY"
}

func (e *Env) APIKey(_ context.Context, provider string) (string, error) {
	v, ok := e.lookup(EnvVar(provider))
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s not set", ErrNotFound, EnvVar(provider))
	}
	return strings.TrimSpace(v), nil
}

// Static serves fixed keys, mostly for tests and explicit configuration.
type Static map[string]string

func (s Static) APIKey(_ context.Context, provider string) (string, error) {
	if v := strings.TrimSpace(s[provider]); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, provider)
}

// Chain tries each source in order and returns the first key found.
// A source error other than ErrNotFound stops the chain.
type Chain []Source

func (c Chain) APIKey(ctx context.Context, provider string) (string, error) {
	for _, src := range c {
		if src == nil {
			continue
		}
		key, err := src.APIKey(ctx, provider)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, provider)
}

// Key resolves one provider's key on first use and caches it. Failures are
// not cached, so a key added after a failed lookup is picked up by the next
// call.
type Key struct {
	src      Source
	provider string

	mu    sync.Mutex
	value string
}

func NewKey(src Source, provider string) *Key {
	return &Key{src: src, provider: provider}
}

func (k *Key) Get(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.value != "" {
		return k.value, nil
	}
	if k.src == nil {
		return "", fmt.Errorf("%w: no source for %s", ErrNotFound, k.provider)
	}
	v, err := k.src.APIKey(ctx, k.provider)
	if err != nil {
		return "", err
	}
	k.value = v
	return v, nil
}
