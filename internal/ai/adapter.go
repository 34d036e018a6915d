// Package ai implements the provider-agnostic journal capabilities: prompt
// composition, rate-limited dispatch to a Backend, and normalization of the
// provider reply into canonical results.
package ai

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"mindlog-agent/internal/domain"
	"mindlog-agent/internal/ratelimit"
)

// DefaultRequestTimeout bounds a single network call. It starts after the
// rate-limit slot is granted.
const DefaultRequestTimeout = 60 * time.Second

// Adapter implements Service over a single Backend. Each Adapter owns its own
// Limiter, so distinct adapters never share spacing state.
type Adapter struct {
	backend Backend
	limiter *ratelimit.Limiter
	prompts PromptBuilder
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Adapter)

// WithInterval sets the minimum spacing between calls.
func WithInterval(d time.Duration) Option {
	return func(a *Adapter) {
		a.limiter = ratelimit.New(d)
	}
}

// WithLimiter installs a prebuilt limiter. It must not be shared with
// another adapter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(a *Adapter) {
		if l != nil {
			a.limiter = l
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithLocale(l Locale) Option {
	return func(a *Adapter) {
		a.prompts = NewPromptBuilder(l)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter binds backend to a fresh limiter with the default interval.
func NewAdapter(backend Backend, opts ...Option) (*Adapter, error) {
	if backend == nil {
		return nil, errors.New("ai: backend must not be nil")
	}
	a := &Adapter{
		backend: backend,
		limiter: ratelimit.New(ratelimit.DefaultInterval),
		prompts: NewPromptBuilder(LocaleChinese),
		timeout: DefaultRequestTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Provider returns the backend name.
func (a *Adapter) Provider() string {
	return a.backend.Name()
}

func (a *Adapter) Analyze(ctx context.Context, text string, images []domain.Image) (*domain.AnalysisResult, error) {
	p := a.prompts.Analyze(text)
	resp, err := a.complete(ctx, &Request{
		Operation: OpAnalyze,
		System:    p.System,
		Prompt:    p.Text,
		Images:    limitImages(images),
		Params:    ParamsFor(OpAnalyze),
	})
	if err != nil {
		return nil, err
	}
	return DecodeAnalysis(a.backend.Name(), resp.Text)
}

func (a *Adapter) Chat(ctx context.Context, message string, history []domain.ChatTurn, personality domain.Personality) (string, error) {
	recent := domain.RecentTurns(history, domain.MaxHistoryTurns)
	resp, err := a.complete(ctx, &Request{
		Operation: OpChat,
		System:    a.prompts.Chat(personality),
		Prompt:    message,
		History:   append([]domain.ChatTurn(nil), recent...),
		Params:    ParamsFor(OpChat),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (a *Adapter) Report(ctx context.Context, entries []domain.JournalEntry, start, end time.Time, kind domain.ReviewKind) (*domain.ReviewReport, error) {
	p := a.prompts.Report(entries, start, end, kind)
	resp, err := a.complete(ctx, &Request{
		Operation: OpReport,
		System:    p.System,
		Prompt:    p.Text,
		Params:    ParamsFor(OpReport),
	})
	if err != nil {
		return nil, err
	}
	return DecodeReport(a.backend.Name(), resp.Text, kind, start, end)
}

// Layout returns the provider's layout JSON exactly as produced.
func (a *Adapter) Layout(ctx context.Context, content string, template domain.LayoutTemplate, imageCount int) (string, error) {
	p := a.prompts.Layout(content, template, imageCount)
	resp, err := a.complete(ctx, &Request{
		Operation: OpLayout,
		System:    p.System,
		Prompt:    p.Text,
		Params:    ParamsFor(OpLayout),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// complete runs one call: credentials, slot, then a single bounded network
// exchange. A reply without text is KindInvalidResponse.
func (a *Adapter) complete(ctx context.Context, req *Request) (*Response, error) {
	provider := a.backend.Name()
	if err := a.backend.Authorize(ctx); err != nil {
		return nil, classify(KindInvalidAPIKey, provider, err)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	started := time.Now()
	resp, err := a.backend.Complete(callCtx, req)
	if err != nil {
		return nil, classify(KindNetwork, provider, err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return nil, NewError(KindInvalidResponse, provider, errors.New("reply has no text"))
	}
	a.logger.Debug("ai call completed",
		"provider", provider,
		"operation", req.Operation,
		"finish_reason", resp.FinishReason,
		"elapsed", time.Since(started),
	)
	return resp, nil
}

// classify keeps an *Error from the backend and wraps anything else as kind.
func classify(kind Kind, provider string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return NewError(kind, provider, err)
}

func limitImages(images []domain.Image) []domain.Image {
	if len(images) > domain.MaxImages {
		images = images[:domain.MaxImages]
	}
	out := make([]domain.Image, 0, len(images))
	for _, img := range images {
		out = append(out, domain.Image{MIMEType: img.ContentType(), Data: img.Data})
	}
	return out
}
