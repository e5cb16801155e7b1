// Package llm is a decision capability backed by an OpenAI-compatible
// chat-completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rustyeddy/aitrader/decision"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client asks a chat model for the next step of a trading day. It keeps no
// conversation state: every call rebuilds the transcript from the decision
// context.
type Client struct {
	model       string
	apiKey      string
	baseURL     string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL, e.g. a local OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// New creates a client for model.
func New(model, apiKey string, opts ...Option) *Client {
	c := &Client{
		model:   model,
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Model() string { return c.model }

// Error is a failed chat-completions request. Throttling, server errors and
// transport failures are temporary.
type Error struct {
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chat completion: %v", e.Err)
	}
	return fmt.Sprintf("chat completion: status %d: %s", e.Status, e.Body)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Temporary() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Propose implements decision.Capability.
func (c *Client) Propose(ctx context.Context, dc *decision.Context) (decision.Proposal, error) {
	content, err := c.complete(ctx, messages(dc))
	if err != nil {
		return decision.Proposal{}, err
	}
	return ParseReply(content), nil
}

func (c *Client) complete(ctx context.Context, msgs []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &Error{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return "", &Error{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", &Error{Status: resp.StatusCode, Body: "no choices in response"}
	}
	return cr.Choices[0].Message.Content, nil
}
