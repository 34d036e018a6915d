// Package providers builds the configured AI backends and binds the active
// one behind an ai.Facade.
package providers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"mindlog-agent/internal/ai"
	"mindlog-agent/internal/config"
	"mindlog-agent/internal/credentials"
	"mindlog-agent/internal/integrations/gemini"
	"mindlog-agent/internal/integrations/openai"
)

// Registry holds one adapter per provider and the facade callers use.
// Each adapter owns its rate limiter, so switching providers never resets
// another provider's spacing.
type Registry struct {
	facade *ai.Facade

	mu       sync.Mutex
	adapters map[string]*ai.Adapter
	active   string
}

// Options tune backend construction, mostly for tests.
type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func New(cfg config.Config, src credentials.Source, opts Options) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.New("providers: credentials source must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	geminiOpts := []gemini.Option{
		gemini.WithBaseURL(cfg.Gemini.BaseURL),
		gemini.WithModel(cfg.Gemini.Model),
		gemini.WithLogger(logger),
	}
	kimiOpts := []openai.Option{
		openai.WithName(config.ProviderKimi),
		openai.WithBaseURL(cfg.Kimi.BaseURL),
		openai.WithModel(cfg.Kimi.Model),
		openai.WithLogger(logger),
	}
	if opts.HTTPClient != nil {
		geminiOpts = append(geminiOpts, gemini.WithHTTPClient(opts.HTTPClient))
		kimiOpts = append(kimiOpts, openai.WithHTTPClient(opts.HTTPClient))
	}

	gc, err := gemini.New(src, geminiOpts...)
	if err != nil {
		return nil, fmt.Errorf("providers: gemini: %w", err)
	}
	kc, err := openai.NewClient(src, kimiOpts...)
	if err != nil {
		return nil, fmt.Errorf("providers: kimi: %w", err)
	}

	r := &Registry{adapters: make(map[string]*ai.Adapter, 2)}
	for _, b := range []ai.Backend{gc, kc} {
		a, err := ai.NewAdapter(b,
			ai.WithInterval(cfg.RateLimitInterval),
			ai.WithTimeout(cfg.RequestTimeout),
			ai.WithLocale(cfg.AILocale()),
			ai.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("providers: %s adapter: %w", b.Name(), err)
		}
		r.adapters[b.Name()] = a
	}

	active, ok := r.adapters[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("providers: unknown provider %q", cfg.Provider)
	}
	if r.facade, err = ai.NewFacade(active); err != nil {
		return nil, err
	}
	r.active = cfg.Provider
	return r, nil
}

// Service is the facade over the active provider.
func (r *Registry) Service() *ai.Facade {
	return r.facade
}

// Active returns the bound provider name.
func (r *Registry) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Names lists the built providers.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Use rebinds the facade to the named provider.
func (r *Registry) Use(name string) error {
	a, ok := r.adapters[name]
	if !ok {
		return fmt.Errorf("providers: unknown provider %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.facade.Switch(a); err != nil {
		return err
	}
	r.active = name
	return nil
}
