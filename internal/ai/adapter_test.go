package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mindlog-agent/internal/domain"
	"mindlog-agent/internal/ratelimit"
)

type stubBackend struct {
	authErr error
	text    string
	err     error

	mu        sync.Mutex
	requests  []*Request
	deadlines []bool
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Authorize(context.Context) error { return s.authErr }

func (s *stubBackend) Complete(ctx context.Context, req *Request) (*Response, error) {
	_, hasDeadline := ctx.Deadline()
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.deadlines = append(s.deadlines, hasDeadline)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &Response{Text: s.text, FinishReason: "STOP"}, nil
}

func (s *stubBackend) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func newTestAdapter(t *testing.T, b Backend, opts ...Option) *Adapter {
	t.Helper()
	opts = append([]Option{WithInterval(time.Millisecond)}, opts...)
	a, err := NewAdapter(b, opts...)
	require.NoError(t, err)
	return a
}

func TestNewAdapter_NilBackend(t *testing.T) {
	_, err := NewAdapter(nil)
	require.Error(t, err)
}

func TestNewAdapter_Defaults(t *testing.T) {
	a, err := NewAdapter(&stubBackend{})
	require.NoError(t, err)
	require.Equal(t, ratelimit.DefaultInterval, a.limiter.Interval())
	require.Equal(t, DefaultRequestTimeout, a.timeout)
	require.Equal(t, LocaleChinese, a.prompts.Locale())
	require.Equal(t, "stub", a.Provider())
}

// ---------------------------------------------------------------------------
// Analyze
// ---------------------------------------------------------------------------

func TestAnalyze_BuildsRequestAndDecodes(t *testing.T) {
	b := &stubBackend{text: `{"tags": ["walk"], "summary": "nice", "sentimentScore": 0.6}`}
	a := newTestAdapter(t, b)

	images := []domain.Image{{Data: "AAA"}, {MIMEType: "image/png", Data: "BBB"}, {Data: "CCC"}, {Data: "DDD"}}
	got, err := a.Analyze(context.Background(), "went for a walk", images)
	require.NoError(t, err)
	require.Equal(t, []string{"walk"}, got.Tags)

	require.Len(t, b.requests, 1)
	req := b.requests[0]
	require.Equal(t, OpAnalyze, req.Operation)
	require.Contains(t, req.Prompt, "went for a walk")
	require.Equal(t, ParamsFor(OpAnalyze), req.Params)
	require.True(t, req.Params.JSONResponse)
	require.Len(t, req.Images, domain.MaxImages)
	require.Equal(t, "image/jpeg", req.Images[0].MIMEType)
	require.Equal(t, "image/png", req.Images[1].MIMEType)
	require.True(t, b.deadlines[0], "network call must run under a request timeout")
}

func TestAnalyze_EmptyTextStillSendsRequest(t *testing.T) {
	b := &stubBackend{text: `{}`}
	a := newTestAdapter(t, b)

	got, err := a.Analyze(context.Background(), "", nil)
	require.NoError(t, err)
	require.Empty(t, got.Tags)
	require.Equal(t, 1, b.calls())
	require.NotEmpty(t, b.requests[0].Prompt)
	require.Empty(t, b.requests[0].Images)
}

func TestAnalyze_EmptyReplyIsInvalidResponse(t *testing.T) {
	a := newTestAdapter(t, &stubBackend{text: "   "})
	_, err := a.Analyze(context.Background(), "text", nil)
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestAnalyze_UndecodableReply(t *testing.T) {
	a := newTestAdapter(t, &stubBackend{text: "I could not find anything."})
	_, err := a.Analyze(context.Background(), "text", nil)
	require.ErrorIs(t, err, ErrDecodingFailed)
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

func TestChat_TruncatesHistoryToTenTurns(t *testing.T) {
	b := &stubBackend{text: "I hear you."}
	a := newTestAdapter(t, b)

	history := make([]domain.ChatTurn, 15)
	for i := range history {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		history[i] = domain.ChatTurn{Role: role, Content: fmt.Sprintf("turn-%02d", i)}
	}

	reply, err := a.Chat(context.Background(), "new message", history, domain.PersonalityWarm)
	require.NoError(t, err)
	require.Equal(t, "I hear you.", reply)

	req := b.requests[0]
	require.Equal(t, OpChat, req.Operation)
	require.Equal(t, "new message", req.Prompt)
	require.Contains(t, req.System, domain.PersonalityWarm.Instruction())
	require.Len(t, req.History, 10)
	for i, turn := range req.History {
		require.Equal(t, fmt.Sprintf("turn-%02d", i+5), turn.Content)
	}
	require.False(t, req.Params.JSONResponse)
}

func TestChat_EmptyReply(t *testing.T) {
	a := newTestAdapter(t, &stubBackend{text: ""})
	_, err := a.Chat(context.Background(), "hi", nil, domain.PersonalityConcise)
	require.ErrorIs(t, err, ErrInvalidResponse)
}

// ---------------------------------------------------------------------------
// Report and Layout
// ---------------------------------------------------------------------------

func TestReport_UsesCallerPeriod(t *testing.T) {
	b := &stubBackend{text: `{"summary": "ok", "emotionCurve": [{"date": "bad", "score": 0.2}]}`}
	a := newTestAdapter(t, b)
	start, end := domain.ReviewWeekly.PeriodEnding(time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC))

	got, err := a.Report(context.Background(), []domain.JournalEntry{{Title: "x", Date: start}}, start, end, domain.ReviewWeekly)
	require.NoError(t, err)
	require.Equal(t, start, got.PeriodStart)
	require.Equal(t, end, got.PeriodEnd)
	require.Empty(t, got.EmotionCurve)
	require.Equal(t, OpReport, b.requests[0].Operation)
	require.Equal(t, 4096, b.requests[0].Params.MaxTokens)
}

func TestLayout_ReturnsRawText(t *testing.T) {
	raw := "```json\n{\"template\": \"story\", \"sections\": []}\n```"
	b := &stubBackend{text: raw}
	a := newTestAdapter(t, b)

	got, err := a.Layout(context.Background(), "beach day", domain.LayoutAuto, 2)
	require.NoError(t, err)
	require.Equal(t, raw, got)
	require.Contains(t, b.requests[0].Prompt, "Available templates")
}

// ---------------------------------------------------------------------------
// Errors, limiter and cancellation
// ---------------------------------------------------------------------------

func TestComplete_AuthorizeFailureSkipsNetwork(t *testing.T) {
	b := &stubBackend{authErr: NewError(KindInvalidAPIKey, "stub", errors.New("no key"))}
	a := newTestAdapter(t, b)

	_, err := a.Chat(context.Background(), "hi", nil, domain.PersonalityWarm)
	require.ErrorIs(t, err, ErrInvalidAPIKey)
	require.Zero(t, b.calls())
}

func TestComplete_PlainAuthorizeErrorIsInvalidAPIKey(t *testing.T) {
	a := newTestAdapter(t, &stubBackend{authErr: errors.New("keychain locked")})
	_, err := a.Layout(context.Background(), "x", domain.LayoutMinimal, 0)
	require.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestComplete_BackendErrorsPropagate(t *testing.T) {
	a := newTestAdapter(t, &stubBackend{err: NewError(KindRateLimitExceeded, "stub", nil)})
	_, err := a.Analyze(context.Background(), "x", nil)
	require.ErrorIs(t, err, ErrRateLimitExceeded)

	a = newTestAdapter(t, &stubBackend{err: errors.New("connection reset")})
	_, err = a.Analyze(context.Background(), "x", nil)
	require.ErrorIs(t, err, ErrNetwork)
	require.Contains(t, err.Error(), "connection reset")
}

func TestComplete_CallsAreSpaced(t *testing.T) {
	b := &stubBackend{text: "ok"}
	a := newTestAdapter(t, b, WithInterval(40*time.Millisecond))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := a.Chat(context.Background(), "hi", nil, domain.PersonalityWarm)
		require.NoError(t, err)
	}
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	require.Equal(t, 3, b.calls())
}

func TestComplete_CancelledWhileWaitingForSlot(t *testing.T) {
	b := &stubBackend{text: "ok"}
	a := newTestAdapter(t, b, WithInterval(time.Hour))

	_, err := a.Chat(context.Background(), "first", nil, domain.PersonalityWarm)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = a.Chat(ctx, "second", nil, domain.PersonalityWarm)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, b.calls())
}

func TestComplete_DistinctAdaptersDoNotShareLimiter(t *testing.T) {
	first := newTestAdapter(t, &stubBackend{text: "a"}, WithInterval(time.Hour))
	second := newTestAdapter(t, &stubBackend{text: "b"}, WithInterval(time.Hour))

	_, err := first.Chat(context.Background(), "hi", nil, domain.PersonalityWarm)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := second.Chat(ctx, "hi", nil, domain.PersonalityWarm)
	require.NoError(t, err)
	require.Equal(t, "b", reply)
}
