// Package handler adapts API Gateway proxy events to the journal usecase.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"mindlog-agent/internal/domain"
	"mindlog-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// UseCase is the journal assistant as seen by the API.
type UseCase interface {
	Analyze(ctx context.Context, in usecase.AnalyzeInput) (*domain.AnalysisResult, error)
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	Report(ctx context.Context, in usecase.ReportInput) (*domain.ReviewReport, error)
	Layout(ctx context.Context, in usecase.LayoutInput) (usecase.LayoutOutput, error)
}

type Handler struct {
	uc     UseCase
	logger *slog.Logger
}

func NewHandler(uc UseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: usecase must not be nil")
	}
	return &Handler{uc: uc, logger: slog.Default()}, nil
}

type analyzeRequest struct {
	Text   string         `json:"text"`
	Images []domain.Image `json:"images"`
}

type chatRequest struct {
	Message        string            `json:"message"`
	Personality    string            `json:"personality"`
	ConversationID string            `json:"conversationId"`
	History        []domain.ChatTurn `json:"history"`
}

type chatResponse struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversationId"`
	Turns          int    `json:"turns,omitempty"`
}

type reportRequest struct {
	Kind        string                `json:"kind"`
	PeriodStart *time.Time            `json:"periodStart"`
	PeriodEnd   *time.Time            `json:"periodEnd"`
	Entries     []domain.JournalEntry `json:"entries"`
}

type layoutRequest struct {
	Content    string `json:"content"`
	Template   string `json:"template"`
	ImageCount int    `json:"imageCount"`
}

type layoutResponse struct {
	Layout string `json:"layout"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With("correlation_id", correlationID, "path", req.Path)

	if req.HTTPMethod != http.MethodPost {
		return respond(correlationID, http.StatusMethodNotAllowed, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "method not allowed"}), nil
	}

	var (
		out any
		err error
	)
	switch route(req.Path) {
	case "analyze":
		out, err = h.analyze(ctx, req.Body)
	case "chat":
		out, err = h.chat(ctx, req.Body)
	case "report":
		out, err = h.report(ctx, req.Body)
	case "layout":
		out, err = h.layout(ctx, req.Body)
	default:
		return respond(correlationID, http.StatusNotFound, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "unknown route"}), nil
	}
	if err != nil {
		status, body := errorBody(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "status", status, "err", err)
		} else {
			logger.Warn("request rejected", "status", status, "err", err)
		}
		return respond(correlationID, status, body), nil
	}
	return respond(correlationID, http.StatusOK, out), nil
}

func (h *Handler) analyze(ctx context.Context, body string) (any, error) {
	var in analyzeRequest
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	return h.uc.Analyze(ctx, usecase.AnalyzeInput{Text: in.Text, Images: in.Images})
}

func (h *Handler) chat(ctx context.Context, body string) (any, error) {
	var in chatRequest
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	personality, err := domain.ParsePersonality(in.Personality)
	if err != nil {
		return nil, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "unknown_personality", Err: err}
	}
	out, err := h.uc.Chat(ctx, usecase.ChatInput{
		Message:        in.Message,
		Personality:    personality,
		ConversationID: in.ConversationID,
		History:        in.History,
	})
	if err != nil {
		return nil, err
	}
	return chatResponse{Reply: out.Reply, ConversationID: out.ConversationID, Turns: out.Turns}, nil
}

func (h *Handler) report(ctx context.Context, body string) (any, error) {
	var in reportRequest
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	kind, err := domain.ParseReviewKind(in.Kind)
	if err != nil {
		return nil, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "unknown_kind", Err: err}
	}
	rin := usecase.ReportInput{Kind: kind, Entries: in.Entries}
	if in.PeriodStart != nil {
		rin.PeriodStart = *in.PeriodStart
	}
	if in.PeriodEnd != nil {
		rin.PeriodEnd = *in.PeriodEnd
	}
	return h.uc.Report(ctx, rin)
}

func (h *Handler) layout(ctx context.Context, body string) (any, error) {
	var in layoutRequest
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	tmpl, err := domain.ParseLayoutTemplate(in.Template)
	if err != nil {
		return nil, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "unknown_template", Err: err}
	}
	out, err := h.uc.Layout(ctx, usecase.LayoutInput{Content: in.Content, Template: tmpl, ImageCount: in.ImageCount})
	if err != nil {
		return nil, err
	}
	return layoutResponse{Layout: out.Layout}, nil
}

func decode(body string, dst any) error {
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err}
	}
	return nil
}

func route(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return strings.ToLower(path)
}

func errorBody(err error) (int, errorResponse) {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal), Message: "internal error"}
	}
	status := http.StatusInternalServerError
	switch ue.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorRateLimited:
		status = http.StatusTooManyRequests
	case usecase.ErrorUpstream:
		status = http.StatusBadGateway
	}
	msg := ue.Message()
	if ue.Code == usecase.ErrorInternal {
		msg = "internal error"
	}
	return status, errorResponse{Error: string(ue.Code), Message: msg}
}

func respond(correlationID string, status int, body any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(fmt.Sprintf(`{"error":%q,"message":"internal error"}`, usecase.ErrorInternal))
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(b),
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
