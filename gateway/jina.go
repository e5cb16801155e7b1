package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HostedJinaURL is the public reader endpoint, usable without a key.
const HostedJinaURL = "https://r.jina.ai"

// JinaReader answers context queries through a Jina Reader endpoint. With an
// empty BaseURL the hosted reader is used; a custom BaseURL is sent the API
// key as a bearer token.
type JinaReader struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// JinaOption configures a JinaReader.
type JinaOption func(*JinaReader)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) JinaOption {
	return func(j *JinaReader) {
		j.client = c
	}
}

func NewJinaReader(baseURL, apiKey string, opts ...JinaOption) *JinaReader {
	j := &JinaReader{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	if j.baseURL == "" {
		j.baseURL = HostedJinaURL
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Hosted reports whether the reader talks to the public endpoint.
func (j *JinaReader) Hosted() bool { return j.baseURL == HostedJinaURL }

type jinaRequest struct {
	Query    string         `json:"query"`
	Contexts []string       `json:"contexts"`
	Params   map[string]any `json:"params"`
}

func (j *JinaReader) Lookup(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(jinaRequest{Query: query, Contexts: []string{}, Params: map[string]any{}})
	if err != nil {
		return "", &Error{Op: OpQueryContext, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/reader", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Op: OpQueryContext, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if !j.Hosted() && j.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+j.apiKey)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return "", &Error{Op: OpQueryContext, Err: fmt.Errorf("jina reader request: %w", err), Retryable: ctx.Err() == nil}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &Error{Op: OpQueryContext, Err: err, Retryable: true}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &Error{
			Op:        OpQueryContext,
			Err:       fmt.Errorf("jina reader status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
			Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	answer, err := jinaAnswer(raw)
	if err != nil {
		return "", &Error{Op: OpQueryContext, Err: fmt.Errorf("decode jina reader response: %w", err)}
	}
	return answer, nil
}

// jinaAnswer extracts the answer from the loosely specified response body:
// an "answer", "data" or "content" field, possibly nested one level, or a
// bare string. Anything else is returned as the raw JSON.
func jinaAnswer(raw []byte) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case map[string]any:
		for _, key := range []string{"answer", "data", "content"} {
			switch inner := t[key].(type) {
			case string:
				if inner != "" {
					return inner, nil
				}
			case map[string]any:
				for _, k := range []string{"content", "answer"} {
					if s, ok := inner[k].(string); ok && s != "" {
						return s, nil
					}
				}
				b, _ := json.Marshal(inner)
				return string(b), nil
			}
		}
	}
	return string(raw), nil
}
