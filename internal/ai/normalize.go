package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"mindlog-agent/internal/domain"
)

type analysisPayload struct {
	Tags           []string          `json:"tags"`
	Summary        *string           `json:"summary"`
	SentimentScore *float64          `json:"sentimentScore"`
	Todos          []todoPayload     `json:"todos"`
	ShoppingList   []shoppingPayload `json:"shoppingList"`
	Schedule       []schedulePayload `json:"schedule"`
}

type todoPayload struct {
	Title    string  `json:"title"`
	Priority string  `json:"priority"`
	DueDate  *string `json:"dueDate"`
}

type shoppingPayload struct {
	Name     string  `json:"name"`
	Quantity *string `json:"quantity"`
	Category *string `json:"category"`
}

type schedulePayload struct {
	Title     string  `json:"title"`
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
	Location  *string `json:"location"`
	Notes     *string `json:"notes"`
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// optionalDate treats an absent or blank value as no date.
func optionalDate(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// stripCodeFence removes a single Markdown code fence wrapped around the
// whole reply, which some models emit despite JSON-only instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := strings.TrimPrefix(s, "```")
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return s
	}
	body = strings.TrimSpace(body[nl+1:])
	if !strings.HasSuffix(body, "```") {
		return s
	}
	return strings.TrimSpace(strings.TrimSuffix(body, "```"))
}

// DecodeAnalysis strictly decodes a provider reply into an AnalysisResult.
// Any shape mismatch is a KindDecodingFailed error.
func DecodeAnalysis(provider, text string) (*domain.AnalysisResult, error) {
	var p analysisPayload
	dec := json.NewDecoder(bytes.NewBufferString(stripCodeFence(text)))
	if err := dec.Decode(&p); err != nil {
		return nil, NewError(KindDecodingFailed, provider, fmt.Errorf("decode analysis: %w", err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("multiple JSON values")
		}
		return nil, NewError(KindDecodingFailed, provider, fmt.Errorf("decode analysis trailing data: %w", err))
	}

	out := &domain.AnalysisResult{
		Tags:           make([]string, 0, len(p.Tags)),
		Summary:        p.Summary,
		SentimentScore: p.SentimentScore,
		Todos:          make([]domain.Todo, 0, len(p.Todos)),
		ShoppingItems:  make([]domain.ShoppingItem, 0, len(p.ShoppingList)),
		ScheduleItems:  make([]domain.ScheduleItem, 0, len(p.Schedule)),
	}
	for _, tag := range p.Tags {
		if tag = strings.TrimSpace(tag); tag != "" && len(out.Tags) < domain.MaxTags {
			out.Tags = append(out.Tags, tag)
		}
	}
	for _, t := range p.Todos {
		due, err := optionalDate(t.DueDate)
		if err != nil {
			return nil, NewError(KindDecodingFailed, provider, fmt.Errorf("todo %q dueDate: %w", t.Title, err))
		}
		out.Todos = append(out.Todos, domain.Todo{
			ID:       uuid.NewString(),
			Title:    t.Title,
			Priority: domain.ParsePriority(t.Priority),
			DueDate:  due,
		})
	}
	for _, s := range p.ShoppingList {
		out.ShoppingItems = append(out.ShoppingItems, domain.ShoppingItem{
			ID:       uuid.NewString(),
			Name:     s.Name,
			Quantity: s.Quantity,
			Category: s.Category,
		})
	}
	for _, s := range p.Schedule {
		start, err := optionalDate(s.StartDate)
		if err != nil {
			return nil, NewError(KindDecodingFailed, provider, fmt.Errorf("schedule %q startDate: %w", s.Title, err))
		}
		end, err := optionalDate(s.EndDate)
		if err != nil {
			return nil, NewError(KindDecodingFailed, provider, fmt.Errorf("schedule %q endDate: %w", s.Title, err))
		}
		out.ScheduleItems = append(out.ScheduleItems, domain.ScheduleItem{
			ID:       uuid.NewString(),
			Title:    s.Title,
			Start:    start,
			End:      end,
			Location: s.Location,
			Notes:    s.Notes,
		})
	}
	return out, nil
}

// DecodeReport extracts a ReviewReport field by field. Missing or mistyped
// fields take their zero defaults and curve points with unparseable dates
// are dropped. Only a reply that is not a JSON object fails.
func DecodeReport(provider, text string, kind domain.ReviewKind, start, end time.Time) (*domain.ReviewReport, error) {
	raw := stripCodeFence(text)
	if !gjson.Valid(raw) {
		return nil, NewError(KindDecodingFailed, provider, errors.New("report is not valid JSON"))
	}
	root := gjson.Parse(raw)
	if !root.IsObject() {
		return nil, NewError(KindDecodingFailed, provider, errors.New("report is not a JSON object"))
	}

	out := &domain.ReviewReport{
		Kind:           kind,
		PeriodStart:    start,
		PeriodEnd:      end,
		Summary:        stringField(root.Get("summary")),
		EmotionCurve:   emotionCurve(root.Get("emotionCurve")),
		KeyEvents:      stringList(root.Get("keyEvents")),
		GrowthInsights: stringList(root.Get("growthInsights")),
		TodoStats:      todoStats(root.Get("todoCompletion")),
		Suggestions:    stringList(root.Get("nextPeriodSuggestions")),
	}
	if len(out.KeyEvents) > domain.MaxKeyEvents {
		out.KeyEvents = out.KeyEvents[:domain.MaxKeyEvents]
	}
	return out, nil
}

func stringField(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}

func stringList(r gjson.Result) []string {
	out := []string{}
	if !r.IsArray() {
		return out
	}
	for _, v := range r.Array() {
		if v.Type == gjson.String {
			out = append(out, v.Str)
		}
	}
	return out
}

func emotionCurve(r gjson.Result) []domain.EmotionPoint {
	out := []domain.EmotionPoint{}
	if !r.IsArray() {
		return out
	}
	for _, p := range r.Array() {
		date, score := p.Get("date"), p.Get("score")
		if date.Type != gjson.String || score.Type != gjson.Number {
			continue
		}
		d, err := parseDate(date.Str)
		if err != nil {
			continue
		}
		out = append(out, domain.EmotionPoint{ID: uuid.NewString(), Date: d, Score: score.Num})
	}
	return out
}

func todoStats(r gjson.Result) domain.TodoStats {
	stats := domain.TodoStats{Insights: stringList(r.Get("insights"))}
	if !r.IsObject() {
		return stats
	}
	if v := r.Get("total"); v.Type == gjson.Number {
		stats.Total = int(v.Int())
	}
	if v := r.Get("completed"); v.Type == gjson.Number {
		stats.Completed = int(v.Int())
	}
	if v := r.Get("completionRate"); v.Type == gjson.Number {
		stats.CompletionRate = v.Num
	}
	return stats
}
