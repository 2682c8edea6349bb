// Package llm wraps an OpenAI-compatible chat-completions endpoint
// (Groq by default) behind a small fallible text-generation contract.
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

	"github.com/cenkalti/backoff/v5"
	"github.com/stellarlinkco/rostrum/internal/config"
)

const (
	requestTimeout  = 60 * time.Second
	maxAttempts     = 3
	maxRetryElapsed = 90 * time.Second
)

// Request is one generation round trip. System carries the persona
// framing, Prompt the composed user prompt.
type Request struct {
	System      string
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// Client is the opaque generation service boundary. Implementations
// must treat every failure as recoverable: callers convert errors into
// placeholder text rather than aborting a debate.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type httpClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) Client {
	return &httpClient{
		apiKey:     strings.TrimSpace(cfg.Provider.APIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.Provider.BaseURL), "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

func (c *httpClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("missing api key")
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("missing base url")
	}
	if req.Model == "" {
		return "", fmt.Errorf("missing model")
	}

	messages := make([]map[string]string, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	body := map[string]any{
		"model":       req.Model,
		"messages":    messages,
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
		"top_p":       req.TopP,
	}

	operation := func() (string, error) {
		return c.sendChatCompletion(ctx, body)
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxAttempts),
		backoff.WithMaxElapsedTime(maxRetryElapsed),
	)
}

func (c *httpClient) sendChatCompletion(ctx context.Context, body map[string]any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		if retriableStatus(resp.StatusCode) {
			return "", err
		}
		return "", backoff.Permanent(err)
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if len(decoded.Choices) == 0 {
		return "", backoff.Permanent(fmt.Errorf("empty choices in response"))
	}
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", backoff.Permanent(fmt.Errorf("empty content in response"))
	}
	return content, nil
}

func retriableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
