// Package aitest provides an in-memory ai.Service for callers' tests.
package aitest

import (
	"context"
	"sync"
	"time"

	"mindlog-agent/internal/ai"
	"mindlog-agent/internal/domain"
)

// Call records one invocation of the fake.
type Call struct {
	Operation   ai.Operation
	Text        string
	Images      []domain.Image
	History     []domain.ChatTurn
	Personality domain.Personality
	Entries     []domain.JournalEntry
	Start, End  time.Time
	Kind        domain.ReviewKind
	Template    domain.LayoutTemplate
	ImageCount  int
}

// Fake returns canned results. A non-nil Err is returned by every call.
type Fake struct {
	AnalysisResult *domain.AnalysisResult
	ChatReply      string
	ReviewReport   *domain.ReviewReport
	LayoutJSON     string
	Err            error

	mu    sync.Mutex
	calls []Call
}

var _ ai.Service = (*Fake)(nil)

func (f *Fake) record(c Call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

// Calls returns a copy of the recorded invocations in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) Analyze(_ context.Context, text string, images []domain.Image) (*domain.AnalysisResult, error) {
	f.record(Call{Operation: ai.OpAnalyze, Text: text, Images: images})
	if f.Err != nil {
		return nil, f.Err
	}
	if f.AnalysisResult == nil {
		return &domain.AnalysisResult{
			Tags:          []string{},
			Todos:         []domain.Todo{},
			ShoppingItems: []domain.ShoppingItem{},
			ScheduleItems: []domain.ScheduleItem{},
		}, nil
	}
	return f.AnalysisResult, nil
}

func (f *Fake) Chat(_ context.Context, message string, history []domain.ChatTurn, personality domain.Personality) (string, error) {
	f.record(Call{Operation: ai.OpChat, Text: message, History: history, Personality: personality})
	if f.Err != nil {
		return "", f.Err
	}
	return f.ChatReply, nil
}

func (f *Fake) Report(_ context.Context, entries []domain.JournalEntry, start, end time.Time, kind domain.ReviewKind) (*domain.ReviewReport, error) {
	f.record(Call{Operation: ai.OpReport, Entries: entries, Start: start, End: end, Kind: kind})
	if f.Err != nil {
		return nil, f.Err
	}
	if f.ReviewReport == nil {
		return &domain.ReviewReport{Kind: kind, PeriodStart: start, PeriodEnd: end}, nil
	}
	return f.ReviewReport, nil
}

func (f *Fake) Layout(_ context.Context, content string, template domain.LayoutTemplate, imageCount int) (string, error) {
	f.record(Call{Operation: ai.OpLayout, Text: content, Template: template, ImageCount: imageCount})
	if f.Err != nil {
		return "", f.Err
	}
	return f.LayoutJSON, nil
}
