// Package usecase exposes the journal assistant to the API surface: input
// validation, conversation persistence and mapping of provider failures.
package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"mindlog-agent/internal/ai"
	"mindlog-agent/internal/domain"
)

const defaultMaxTextLength = 300

// ConversationStore persists chat turns between requests.
type ConversationStore interface {
	GetMeta(ctx context.Context, conversationID string) (domain.ConversationMeta, error)
	GetRecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.ChatTurn, error)
	AppendExchange(ctx context.Context, conversationID string, user, assistant domain.ChatTurn) error
}

type Service struct {
	ai         ai.Service
	store      ConversationStore
	maxTextLen int
	maxHistory int
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Service)

// WithStore enables server-side conversation history. Without a store, chat
// uses the history supplied by the caller.
func WithStore(s ConversationStore) Option {
	return func(svc *Service) {
		svc.store = s
	}
}

func WithMaxTextLength(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.maxTextLen = n
		}
	}
}

func WithMaxHistory(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.maxHistory = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

func NewService(provider ai.Service, opts ...Option) (*Service, error) {
	if provider == nil {
		return nil, errors.New("usecase: ai service must not be nil")
	}
	s := &Service{
		ai:         provider,
		maxTextLen: defaultMaxTextLength,
		maxHistory: domain.MaxHistoryTurns,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type AnalyzeInput struct {
	Text   string
	Images []domain.Image
}

type ChatInput struct {
	Message        string
	Personality    domain.Personality
	ConversationID string
	// History is used only when no store is configured.
	History []domain.ChatTurn
}

type ChatOutput struct {
	Reply          string
	ConversationID string
	// Turns is the stored turn count after this exchange, zero without a store.
	Turns int
}

type ReportInput struct {
	Kind        domain.ReviewKind
	PeriodStart time.Time
	PeriodEnd   time.Time
	Entries     []domain.JournalEntry
}

type LayoutInput struct {
	Content    string
	Template   domain.LayoutTemplate
	ImageCount int
}

type LayoutOutput struct {
	Layout string
}

func (s *Service) Analyze(ctx context.Context, in AnalyzeInput) (*domain.AnalysisResult, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && len(in.Images) == 0 {
		return nil, newError(ErrorInvalidInput, "empty_text", nil)
	}
	if err := s.checkLength(text, "text_too_long"); err != nil {
		return nil, err
	}
	for _, img := range in.Images {
		if strings.TrimSpace(img.Data) == "" {
			return nil, newError(ErrorInvalidInput, "empty_image", nil)
		}
		if !strings.HasPrefix(img.ContentType(), "image/") {
			return nil, newError(ErrorInvalidInput, "unsupported_image_type", nil)
		}
	}

	res, err := s.ai.Analyze(ctx, text, in.Images)
	if err != nil {
		return nil, s.providerError(ai.OpAnalyze, err)
	}
	if res.SentimentScore != nil && !domain.ScoreInRange(*res.SentimentScore) {
		s.logger.Warn("provider returned out-of-range sentiment score", "score", *res.SentimentScore)
	}
	return res, nil
}

func (s *Service) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if err := s.checkLength(message, "message_too_long"); err != nil {
		return ChatOutput{}, err
	}
	personality := in.Personality
	if personality == "" {
		personality = domain.PersonalityWarm
	}
	convID := strings.TrimSpace(in.ConversationID)
	if convID == "" {
		convID = newUUID()
	}

	history := domain.RecentTurns(in.History, s.maxHistory)
	existingTurns := 0
	if s.store != nil {
		history = nil
		if strings.TrimSpace(in.ConversationID) != "" {
			meta, err := s.store.GetMeta(ctx, convID)
			if err != nil {
				return ChatOutput{}, newError(ErrorInternal, "dynamodb_meta_error", err)
			}
			existingTurns = meta.Turns
		}
		if existingTurns > 0 {
			stored, err := s.store.GetRecentTurns(ctx, convID, s.maxHistory)
			if err != nil {
				return ChatOutput{}, newError(ErrorInternal, "dynamodb_history_error", err)
			}
			history = stored
		}
	}

	asked := s.now().UTC()
	reply, err := s.ai.Chat(ctx, message, history, personality)
	if err != nil {
		return ChatOutput{}, s.providerError(ai.OpChat, err)
	}
	out := ChatOutput{Reply: reply, ConversationID: convID}
	if s.store == nil {
		return out, nil
	}

	user := domain.ChatTurn{ID: newUUID(), Role: domain.RoleUser, Content: message, Timestamp: asked}
	assistant := domain.ChatTurn{ID: newUUID(), Role: domain.RoleAssistant, Content: reply, Timestamp: s.now().UTC()}
	if !assistant.Timestamp.After(user.Timestamp) {
		assistant.Timestamp = user.Timestamp.Add(time.Nanosecond)
	}
	if err := s.store.AppendExchange(ctx, convID, user, assistant); err != nil {
		return ChatOutput{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}
	out.Turns = existingTurns + 2
	return out, nil
}

func (s *Service) Report(ctx context.Context, in ReportInput) (*domain.ReviewReport, error) {
	kind := in.Kind
	if kind == "" {
		kind = domain.ReviewWeekly
	}
	start, end := in.PeriodStart, in.PeriodEnd
	if start.IsZero() && end.IsZero() {
		start, end = kind.PeriodEnding(s.now())
	}
	if start.IsZero() || end.IsZero() {
		return nil, newError(ErrorInvalidInput, "incomplete_period", nil)
	}
	if end.Before(start) {
		return nil, newError(ErrorInvalidInput, "period_end_before_start", nil)
	}

	report, err := s.ai.Report(ctx, in.Entries, start, end, kind)
	if err != nil {
		return nil, s.providerError(ai.OpReport, err)
	}
	s.warnOutOfRange(report)
	return report, nil
}

func (s *Service) Layout(ctx context.Context, in LayoutInput) (LayoutOutput, error) {
	content := strings.TrimSpace(in.Content)
	if in.ImageCount < 0 {
		return LayoutOutput{}, newError(ErrorInvalidInput, "negative_image_count", nil)
	}
	if content == "" && in.ImageCount == 0 {
		return LayoutOutput{}, newError(ErrorInvalidInput, "empty_content", nil)
	}
	template := in.Template
	if template == "" {
		template = domain.LayoutAuto
	}

	layout, err := s.ai.Layout(ctx, content, template, in.ImageCount)
	if err != nil {
		return LayoutOutput{}, s.providerError(ai.OpLayout, err)
	}
	return LayoutOutput{Layout: layout}, nil
}

func (s *Service) checkLength(text, reason string) error {
	if utf8.RuneCountInString(text) > s.maxTextLen {
		return newError(ErrorInvalidInput, reason, nil)
	}
	return nil
}

func (s *Service) providerError(op ai.Operation, err error) error {
	ue := fromProvider(op, err)
	attrs := []any{"operation", op, "code", ue.Code, "reason", ue.Reason, "err", err}
	if status, ok := upstreamStatusCode(err); ok {
		attrs = append(attrs, "status", status)
	}
	s.logger.Error("provider call failed", attrs...)
	return ue
}

func (s *Service) warnOutOfRange(r *domain.ReviewReport) {
	for _, p := range r.EmotionCurve {
		if !domain.ScoreInRange(p.Score) {
			s.logger.Warn("provider returned out-of-range curve score", "date", p.Date, "score", p.Score)
		}
	}
	if !domain.ScoreInRange(r.TodoStats.CompletionRate) {
		s.logger.Warn("provider returned out-of-range completion rate", "rate", r.TodoStats.CompletionRate)
	}
}

var newUUID = func() string {
	return uuid.NewString()
}
