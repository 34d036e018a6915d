package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mindlog-agent/internal/ai"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	c := Defaults()
	require.Equal(t, ProviderGemini, c.Provider)
	require.Equal(t, 4*time.Second, c.RateLimitInterval)
	require.Equal(t, 60*time.Second, c.RequestTimeout)
	require.Equal(t, 300, c.MaxTextLength)
	require.Equal(t, 10, c.MaxHistory)
	require.Equal(t, "https://api.moonshot.cn/v1", c.Kimi.BaseURL)
	require.Equal(t, "gemini-2.0-flash", c.Gemini.Model)
	require.NoError(t, c.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	c := fromLookup(envMap(map[string]string{
		"MINDLOG_PROVIDER":    "KIMI",
		"MINDLOG_LOCALE":      "en-US",
		"RATE_LIMIT_INTERVAL": "2s",
		"REQUEST_TIMEOUT":     "15s",
		"MAX_TEXT_LENGTH":     "500",
		"STATE_TABLE":         "mindlog-state",
		"PARAM_PREFIX":        "/mindlog/prod",
		"KIMI_MODEL":          "moonshot-v1-8k",
	}))
	require.Equal(t, ProviderKimi, c.Provider)
	require.Equal(t, ai.LocaleEnglish, c.AILocale())
	require.Equal(t, 2*time.Second, c.RateLimitInterval)
	require.Equal(t, 15*time.Second, c.RequestTimeout)
	require.Equal(t, 500, c.MaxTextLength)
	require.Equal(t, "mindlog-state", c.StateTable)
	require.Equal(t, "/mindlog/prod", c.ParamPrefix)
	require.Equal(t, "moonshot-v1-8k", c.Kimi.Model)
	require.Equal(t, Defaults().Kimi.BaseURL, c.Kimi.BaseURL)
}

func TestFromEnv_MalformedValuesKeepDefaults(t *testing.T) {
	c := fromLookup(envMap(map[string]string{
		"RATE_LIMIT_INTERVAL": "fast",
		"MAX_TEXT_LENGTH":     "lots",
		"STATE_TABLE":         "   ",
	}))
	require.Equal(t, Defaults().RateLimitInterval, c.RateLimitInterval)
	require.Equal(t, DefaultMaxTextLength, c.MaxTextLength)
	require.Empty(t, c.StateTable)
}

func TestLoadFile_LayersOverDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("MINDLOG_TEST_TABLE", "journal-state")
	path := filepath.Join(t.TempDir(), "mindlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: kimi
rate_limit_interval: 1500ms
state_table: ${MINDLOG_TEST_TABLE}
kimi:
  model: kimi-latest
`), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, ProviderKimi, c.Provider)
	require.Equal(t, 1500*time.Millisecond, c.RateLimitInterval)
	require.Equal(t, "journal-state", c.StateTable)
	require.Equal(t, "kimi-latest", c.Kimi.Model)
	require.Equal(t, Defaults().Kimi.BaseURL, c.Kimi.BaseURL)
	require.Equal(t, Defaults().RequestTimeout, c.RequestTimeout)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "config: read")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [unterminated"), 0o600))
	_, err = LoadFile(path)
	require.ErrorContains(t, err, "config: parse")
}

func TestValidate(t *testing.T) {
	c := Defaults()
	c.Provider = "claude"
	c.RateLimitInterval = 0
	c.Locale = "fr-FR"
	err := c.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown provider "claude"`)
	require.Contains(t, err.Error(), "rate limit interval must be positive")
	require.Contains(t, err.Error(), "unsupported locale")
}
