// Package upstream performs the single JSON POST every provider backend
// makes and classifies the outcome into the ai error taxonomy.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"mindlog-agent/internal/ai"
)

const (
	maxErrorBody    = 4096
	maxResponseBody = 1 << 20
)

// Call describes one outbound request.
type Call struct {
	Provider string
	URL      string
	// LogURL is URL with credentials removed. It is the only form logged or
	// placed in errors.
	LogURL string
	Header http.Header
	Body   any
}

// PostJSON marshals c.Body, sends it once and returns the raw body of a 200
// response. It never retries. Non-200 bodies are logged at WARN.
func PostJSON(ctx context.Context, client *http.Client, logger *slog.Logger, c Call) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logURL := c.LogURL
	if logURL == "" {
		logURL = c.URL
	}

	body, err := json.Marshal(c.Body)
	if err != nil {
		return nil, ai.NewError(ai.KindEncodingFailed, c.Provider, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, ai.NewError(ai.KindServiceUnavailable, c.Provider, fmt.Errorf("create request for %s: %w", logURL, redactErr(err, c.URL, logURL)))
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return nil, ai.NewError(ai.KindNetwork, c.Provider, redactErr(err, c.URL, logURL))
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		excerpt, readErr := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		attrs := []any{"provider", c.Provider, "status", res.StatusCode, "url", logURL, "body", string(excerpt)}
		if readErr != nil {
			attrs = append(attrs, "read_err", readErr)
		}
		logger.Warn("provider returned non-200 status", attrs...)

		kind := ai.KindServiceUnavailable
		if res.StatusCode == http.StatusTooManyRequests {
			kind = ai.KindRateLimitExceeded
		}
		return nil, &ai.Error{
			Kind:       kind,
			Provider:   c.Provider,
			StatusCode: res.StatusCode,
			Err:        &StatusError{StatusCode: res.StatusCode, URL: logURL, Body: string(excerpt)},
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return nil, ai.NewError(ai.KindNetwork, c.Provider, fmt.Errorf("read response body: %w", err))
	}
	return buf, nil
}

// StatusError carries the excerpt of a non-200 response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// RedactQuery returns rawURL with the values of the named query parameters
// replaced.
func RedactQuery(rawURL string, params ...string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable url>"
	}
	q := u.Query()
	for _, p := range params {
		if q.Has(p) {
			q.Set(p, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// redactErr rewrites the *url.Error net/http returns, which embeds the full
// request URL.
func redactErr(err error, rawURL, logURL string) error {
	var uerr *url.Error
	if rawURL != logURL && errors.As(err, &uerr) {
		return &url.Error{Op: uerr.Op, URL: logURL, Err: uerr.Err}
	}
	return err
}
