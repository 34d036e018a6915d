// Package config holds runtime settings for the journal assistant.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mindlog-agent/internal/ai"
	"mindlog-agent/internal/domain"
	"mindlog-agent/internal/integrations/gemini"
	"mindlog-agent/internal/integrations/openai"
	"mindlog-agent/internal/ratelimit"
)

const (
	ProviderGemini = "gemini"
	ProviderKimi   = "kimi"

	DefaultMaxTextLength = 300
)

// Endpoint is one provider's base URL and model.
type Endpoint struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type Config struct {
	Provider          string        `yaml:"provider"`
	Locale            string        `yaml:"locale"`
	RateLimitInterval time.Duration `yaml:"rate_limit_interval"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MaxTextLength     int           `yaml:"max_text_length"`
	MaxHistory        int           `yaml:"max_history"`
	StateTable        string        `yaml:"state_table"`
	ParamPrefix       string        `yaml:"param_prefix"`
	Gemini            Endpoint      `yaml:"gemini"`
	Kimi              Endpoint      `yaml:"kimi"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Provider:          ProviderGemini,
		Locale:            string(ai.LocaleChinese),
		RateLimitInterval: ratelimit.DefaultInterval,
		RequestTimeout:    ai.DefaultRequestTimeout,
		MaxTextLength:     DefaultMaxTextLength,
		MaxHistory:        domain.MaxHistoryTurns,
		Gemini:            Endpoint{BaseURL: gemini.DefaultBaseURL, Model: gemini.DefaultModel},
		Kimi:              Endpoint{BaseURL: openai.DefaultBaseURL, Model: openai.DefaultModel},
	}
}

// FromEnv overlays environment variables on the defaults. Malformed numbers
// and durations keep the default.
func FromEnv() Config {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) Config {
	c := Defaults()
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
				*dst = d
			}
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}

	str("MINDLOG_PROVIDER", &c.Provider)
	str("MINDLOG_LOCALE", &c.Locale)
	dur("RATE_LIMIT_INTERVAL", &c.RateLimitInterval)
	dur("REQUEST_TIMEOUT", &c.RequestTimeout)
	num("MAX_TEXT_LENGTH", &c.MaxTextLength)
	str("STATE_TABLE", &c.StateTable)
	str("PARAM_PREFIX", &c.ParamPrefix)
	str("GEMINI_BASE_URL", &c.Gemini.BaseURL)
	str("GEMINI_MODEL", &c.Gemini.Model)
	str("KIMI_BASE_URL", &c.Kimi.BaseURL)
	str("KIMI_MODEL", &c.Kimi.Model)
	c.Provider = strings.ToLower(c.Provider)
	return c
}

// LoadFile reads a YAML file over the defaults. Environment references such
// as ${STATE_TABLE} in string values are expanded.
func LoadFile(path string) (Config, error) {
	c := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("config: parse %s: %w", path, err)
	}

	for _, s := range []*string{
		&c.Provider, &c.Locale, &c.StateTable, &c.ParamPrefix,
		&c.Gemini.BaseURL, &c.Gemini.Model, &c.Kimi.BaseURL, &c.Kimi.Model,
	} {
		*s = strings.TrimSpace(os.ExpandEnv(*s))
	}
	c.Provider = strings.ToLower(c.Provider)
	return c, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Provider {
	case ProviderGemini, ProviderKimi:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	if c.RateLimitInterval <= 0 {
		errs = append(errs, errors.New("rate limit interval must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if _, err := ai.ParseLocale(c.Locale); err != nil {
		errs = append(errs, err)
	}
	if c.MaxTextLength <= 0 {
		errs = append(errs, errors.New("max text length must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// AILocale returns the prompt locale, falling back to Chinese.
func (c Config) AILocale() ai.Locale {
	l, err := ai.ParseLocale(c.Locale)
	if err != nil {
		return ai.LocaleChinese
	}
	return l
}
