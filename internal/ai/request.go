package ai

import (
	"context"
	"time"

	"mindlog-agent/internal/domain"
)

// Operation names one of the four capabilities.
type Operation string

const (
	OpAnalyze Operation = "analyze"
	OpChat    Operation = "chat"
	OpReport  Operation = "report"
	OpLayout  Operation = "layout"
)

// GenerationParams controls sampling for a single call.
type GenerationParams struct {
	Temperature float64
	MaxTokens   int
	// JSONResponse asks the provider for a JSON-only reply where it supports it.
	JSONResponse bool
}

// ParamsFor returns the generation parameters used for op.
func ParamsFor(op Operation) GenerationParams {
	switch op {
	case OpChat:
		return GenerationParams{Temperature: 0.8, MaxTokens: 1024}
	case OpReport:
		return GenerationParams{Temperature: 0.7, MaxTokens: 4096, JSONResponse: true}
	case OpLayout:
		return GenerationParams{Temperature: 0.6, MaxTokens: 2048, JSONResponse: true}
	default:
		return GenerationParams{Temperature: 0.7, MaxTokens: 2048, JSONResponse: true}
	}
}

// Request is the provider-agnostic envelope handed to a Backend.
type Request struct {
	Operation Operation
	// System is the lead instruction. Backends place it in their system slot.
	System string
	// Prompt is the final user message.
	Prompt string
	// Images is at most domain.MaxImages entries.
	Images []domain.Image
	// History holds prior chat turns, oldest first, already truncated.
	History []domain.ChatTurn
	Params  GenerationParams
}

// Response is the raw reply extracted from a provider envelope.
type Response struct {
	Text         string
	FinishReason string
	// Diagnostics carries provider-specific fields such as model version or
	// token usage. It is informational only.
	Diagnostics map[string]string
}

// Backend translates a Request into one provider's wire format.
// Complete performs exactly one network call and never retries.
type Backend interface {
	Name() string
	// Authorize resolves the backend's credentials without touching the network
	// endpoint. It fails with KindInvalidAPIKey when no key is available.
	Authorize(ctx context.Context) error
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Service is the capability interface the rest of the application depends on.
type Service interface {
	Analyze(ctx context.Context, text string, images []domain.Image) (*domain.AnalysisResult, error)
	Chat(ctx context.Context, message string, history []domain.ChatTurn, personality domain.Personality) (string, error)
	Report(ctx context.Context, entries []domain.JournalEntry, start, end time.Time, kind domain.ReviewKind) (*domain.ReviewReport, error)
	Layout(ctx context.Context, content string, template domain.LayoutTemplate, imageCount int) (string, error)
}
