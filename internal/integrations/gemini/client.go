// Package gemini is the Google Gemini generateContent backend.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mindlog-agent/internal/ai"
	"mindlog-agent/internal/credentials"
	"mindlog-agent/internal/domain"
	"mindlog-agent/internal/integrations/upstream"
)

const (
	Name           = "gemini"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"
)

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Role  string `json:"role"`
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
	ModelVersion string `json:"modelVersion"`
}

// Client implements ai.Backend for Gemini. The API key travels in the
// key query parameter and is never logged.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
	key        *credentials.Key
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if b := strings.TrimSpace(baseURL); b != "" {
			c.baseURL = b
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Gemini backend that resolves its key from src on first use.
func New(src credentials.Source, opts ...Option) (*Client, error) {
	if src == nil {
		return nil, errors.New("gemini: credentials source must not be nil")
	}
	c := &Client{
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		// The adapter bounds each call with its own deadline; this is a backstop.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     slog.Default(),
		key:        credentials.NewKey(src, Name),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string { return Name }

func (c *Client) Authorize(ctx context.Context) error {
	if _, err := c.key.Get(ctx); err != nil {
		return ai.NewError(ai.KindInvalidAPIKey, Name, err)
	}
	return nil
}

func generateURL(baseURL, model, apiKey string) string {
	base := strings.TrimRight(baseURL, "/")
	return base + "/models/" + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(apiKey)
}

func (c *Client) Complete(ctx context.Context, req *ai.Request) (*ai.Response, error) {
	apiKey, err := c.key.Get(ctx)
	if err != nil {
		return nil, ai.NewError(ai.KindInvalidAPIKey, Name, err)
	}

	target := generateURL(c.baseURL, c.model, apiKey)
	raw, err := upstream.PostJSON(ctx, c.httpClient, c.logger, upstream.Call{
		Provider: Name,
		URL:      target,
		LogURL:   upstream.RedactQuery(target, "key"),
		Body:     buildRequest(req),
	})
	if err != nil {
		return nil, err
	}

	var payload generateResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ai.NewError(ai.KindInvalidResponse, Name, fmt.Errorf("decode response: %w", err))
	}
	if len(payload.Candidates) == 0 {
		reason := "no candidates in response"
		if payload.PromptFeedback != nil && payload.PromptFeedback.BlockReason != "" {
			reason += ", prompt blocked: " + payload.PromptFeedback.BlockReason
		}
		return nil, ai.NewError(ai.KindInvalidResponse, Name, errors.New(reason))
	}

	first := payload.Candidates[0]
	var text strings.Builder
	for _, p := range first.Content.Parts {
		text.WriteString(p.Text)
	}

	diag := map[string]string{}
	if payload.ModelVersion != "" {
		diag["modelVersion"] = payload.ModelVersion
	}
	if u := payload.UsageMetadata; u != nil {
		diag["promptTokens"] = strconv.Itoa(u.PromptTokenCount)
		diag["candidateTokens"] = strconv.Itoa(u.CandidatesTokenCount)
		diag["totalTokens"] = strconv.Itoa(u.TotalTokenCount)
	}
	return &ai.Response{Text: text.String(), FinishReason: first.FinishReason, Diagnostics: diag}, nil
}

// buildRequest maps the canonical request onto contents/parts. History uses
// Gemini's "model" role for assistant turns.
func buildRequest(req *ai.Request) generateRequest {
	out := generateRequest{
		Contents: make([]content, 0, len(req.History)+1),
		GenerationConfig: generationConfig{
			Temperature:     req.Params.Temperature,
			MaxOutputTokens: req.Params.MaxTokens,
		},
	}
	if req.Params.JSONResponse {
		out.GenerationConfig.ResponseMimeType = "application/json"
	}
	if req.System != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	for _, turn := range req.History {
		out.Contents = append(out.Contents, content{
			Role:  roleFor(turn.Role),
			Parts: []part{{Text: turn.Content}},
		})
	}

	parts := []part{{Text: req.Prompt}}
	for _, img := range req.Images {
		parts = append(parts, part{InlineData: &inlineData{MimeType: img.ContentType(), Data: img.Data}})
	}
	out.Contents = append(out.Contents, content{Role: "user", Parts: parts})
	return out
}

func roleFor(r domain.Role) string {
	if r == domain.RoleAssistant {
		return "model"
	}
	return "user"
}
