// Package openai is the backend for OpenAI-compatible Chat Completions
// endpoints. Its defaults target Moonshot's Kimi.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mindlog-agent/internal/ai"
	"mindlog-agent/internal/credentials"
	"mindlog-agent/internal/domain"
	"mindlog-agent/internal/integrations/upstream"
)

const (
	DefaultName    = "kimi"
	DefaultBaseURL = "https://api.moonshot.cn/v1"
	DefaultModel   = "kimi-k2-turbo-preview"
)

// chatMessage content is either a string or a []contentPart when images
// are attached.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the minimal response shape returned by the Chat Completions endpoint.
type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Client implements ai.Backend over an OpenAI-compatible endpoint with
// Bearer authentication.
type Client struct {
	name       string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
	key        *credentials.Key
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

// WithName sets the provider name used for credential lookup, logs and
// errors.
func WithName(name string) Option {
	return func(c *Client) {
		if n := strings.TrimSpace(name); n != "" {
			c.name = n
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

// NewClient creates a Client whose key is resolved from src on first use and
// reused for the lifetime of the process.
func NewClient(src credentials.Source, opts ...Option) (*Client, error) {
	if src == nil {
		return nil, errors.New("openai: credentials source must not be nil")
	}
	c := &Client{
		name:       DefaultName,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.key = credentials.NewKey(src, c.name)
	return c, nil
}

func (c *Client) Name() string { return c.name }

// resolvedHTTPClient returns the configured HTTP client, or a default if none was
// set (e.g. in tests that nil out the field).
func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 5 * time.Minute}
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

func (c *Client) Authorize(ctx context.Context) error {
	if _, err := c.key.Get(ctx); err != nil {
		return ai.NewError(ai.KindInvalidAPIKey, c.name, err)
	}
	return nil
}

func (c *Client) Complete(ctx context.Context, req *ai.Request) (*ai.Response, error) {
	apiKey, err := c.key.Get(ctx)
	if err != nil {
		return nil, ai.NewError(ai.KindInvalidAPIKey, c.name, err)
	}

	target := chatURL(c.baseURL)
	raw, err := upstream.PostJSON(ctx, c.resolvedHTTPClient(), c.logger, upstream.Call{
		Provider: c.name,
		URL:      target,
		Header:   http.Header{"Authorization": []string{"Bearer " + apiKey}},
		Body:     buildRequest(c.model, req),
	})
	if err != nil {
		return nil, err
	}

	var payload chatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return nil, ai.NewError(ai.KindInvalidResponse, c.name, fmt.Errorf("decode response: %w", decErr))
	}
	if len(payload.Choices) == 0 {
		return nil, ai.NewError(ai.KindInvalidResponse, c.name, errors.New("no choices in response"))
	}
	choice := payload.Choices[0]

	diag := map[string]string{}
	if payload.ID != "" {
		diag["id"] = payload.ID
	}
	if payload.Model != "" {
		diag["model"] = payload.Model
	}
	if u := payload.Usage; u != nil {
		diag["promptTokens"] = strconv.Itoa(u.PromptTokens)
		diag["completionTokens"] = strconv.Itoa(u.CompletionTokens)
		diag["totalTokens"] = strconv.Itoa(u.TotalTokens)
	}
	return &ai.Response{Text: choice.Message.Content, FinishReason: choice.FinishReason, Diagnostics: diag}, nil
}

// buildRequest lays out system, history and the final user message. Images
// become data: URLs on the final message.
func buildRequest(model string, req *ai.Request) chatRequest {
	messages := make([]chatMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, turn := range req.History {
		role := "user"
		if turn.Role == domain.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: turn.Content})
	}

	var user any = req.Prompt
	if len(req.Images) > 0 {
		parts := []contentPart{{Type: "text", Text: req.Prompt}}
		for _, img := range req.Images {
			parts = append(parts, contentPart{
				Type:     "image_url",
				ImageURL: &imageURL{URL: "data:" + img.ContentType() + ";base64," + img.Data},
			})
		}
		user = parts
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	out := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Params.Temperature,
		MaxTokens:   req.Params.MaxTokens,
	}
	if req.Params.JSONResponse {
		out.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return out
}
