// Package search integrates the Tavily search API for fact-checking
// and topic research. An unconfigured client degrades every call to an
// empty result instead of failing the debate.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/stellarlinkco/rostrum/internal/config"
)

const (
	defaultBaseURL = "https://api.tavily.com/v1"
	requestTimeout = 30 * time.Second

	DepthBasic    = "basic"
	DepthAdvanced = "advanced"
)

type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Response mirrors the wire contract: a failed search carries an Err
// field and an empty result list rather than a Go error.
type Response struct {
	Results []Result `json:"results"`
	Err     string   `json:"error,omitempty"`
}

// FactCheck is the outcome of a fact-check lookup for one statement.
type FactCheck struct {
	Statement string   `json:"statement"`
	Sources   []Result `json:"sources"`
	Err       string   `json:"error,omitempty"`
}

// Client is the opaque fact-lookup boundary.
type Client interface {
	Configured() bool
	Search(ctx context.Context, query, depth string, maxResults int) Response
	FactCheckStatement(ctx context.Context, statement string) FactCheck
	ResearchContext(ctx context.Context, topic string, maxResults int) string
}

type tavilyClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) Client {
	c := &tavilyClient{
		apiKey:     strings.TrimSpace(cfg.Search.APIKey),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	if c.apiKey == "" {
		log.Printf("[search] no Tavily API key configured, search functionality will be limited")
	}
	return c
}

func (c *tavilyClient) Configured() bool {
	return c.apiKey != ""
}

func (c *tavilyClient) Search(ctx context.Context, query, depth string, maxResults int) Response {
	if c.apiKey == "" {
		return Response{Err: "no API key configured"}
	}
	if depth == "" {
		depth = DepthBasic
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	payload, err := json.Marshal(map[string]any{
		"query":        query,
		"search_depth": depth,
		"max_results":  maxResults,
	})
	if err != nil {
		return Response{Err: fmt.Sprintf("marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return Response{Err: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[search] search request failed: %v", err)
		return Response{Err: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{Err: fmt.Sprintf("read response: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[search] API error: %d - %s", resp.StatusCode, truncate(string(body), 200))
		return Response{Err: fmt.Sprintf("API error: %d", resp.StatusCode)}
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return Response{Err: fmt.Sprintf("decode response: %v", err)}
	}
	return out
}

// FactCheckStatement searches for supporting material on a statement.
// Source content is trimmed so prompt context stays bounded.
func (c *tavilyClient) FactCheckStatement(ctx context.Context, statement string) FactCheck {
	query := "fact check: " + statement

	resp := c.Search(ctx, query, DepthAdvanced, 3)
	if resp.Err != "" && len(resp.Results) == 0 {
		return FactCheck{Statement: statement, Err: resp.Err}
	}

	sources := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = "Unknown source"
		}
		sources = append(sources, Result{
			Title:   title,
			URL:     r.URL,
			Content: truncate(r.Content, 250),
		})
	}

	return FactCheck{Statement: statement, Sources: sources}
}

// ResearchContext renders a sourced background block for a debate
// topic, or an empty string when the client is unconfigured.
func (c *tavilyClient) ResearchContext(ctx context.Context, topic string, maxResults int) string {
	if c.apiKey == "" {
		return ""
	}

	resp := c.Search(ctx, topic, DepthAdvanced, maxResults)
	if resp.Err != "" && len(resp.Results) == 0 {
		return fmt.Sprintf("Error retrieving research: %s", resp.Err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Research on: %s\n\n", topic)
	for i, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = "Unknown source"
		}
		url := r.URL
		if url == "" {
			url = "No URL"
		}
		fmt.Fprintf(&sb, "### Source %d: %s\n", i+1, title)
		fmt.Fprintf(&sb, "URL: %s\n\n", url)
		fmt.Fprintf(&sb, "%s\n\n", truncate(r.Content, 500))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
