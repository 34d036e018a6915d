package ai

import (
	"context"
	"errors"
	"sync"
	"time"

	"mindlog-agent/internal/domain"
)

// Facade is the single Service the application holds. It delegates every
// call to the currently bound implementation, which can be swapped at
// runtime without touching call sites.
type Facade struct {
	mu  sync.RWMutex
	svc Service
}

func NewFacade(svc Service) (*Facade, error) {
	if svc == nil {
		return nil, errors.New("ai: service must not be nil")
	}
	return &Facade{svc: svc}, nil
}

// Switch binds svc for subsequent calls. Calls already in flight finish on
// the previous binding.
func (f *Facade) Switch(svc Service) error {
	if svc == nil {
		return errors.New("ai: service must not be nil")
	}
	f.mu.Lock()
	f.svc = svc
	f.mu.Unlock()
	return nil
}

func (f *Facade) current() Service {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.svc
}

func (f *Facade) Analyze(ctx context.Context, text string, images []domain.Image) (*domain.AnalysisResult, error) {
	return f.current().Analyze(ctx, text, images)
}

func (f *Facade) Chat(ctx context.Context, message string, history []domain.ChatTurn, personality domain.Personality) (string, error) {
	return f.current().Chat(ctx, message, history, personality)
}

func (f *Facade) Report(ctx context.Context, entries []domain.JournalEntry, start, end time.Time, kind domain.ReviewKind) (*domain.ReviewReport, error) {
	return f.current().Report(ctx, entries, start, end, kind)
}

func (f *Facade) Layout(ctx context.Context, content string, template domain.LayoutTemplate, imageCount int) (string, error) {
	return f.current().Layout(ctx, content, template, imageCount)
}
