package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stellarlinkco/rostrum/internal/config"
)

func newTestClient(apiKey, baseURL string) *tavilyClient {
	cfg := config.DefaultConfig()
	cfg.Search.APIKey = apiKey
	c := NewClient(cfg).(*tavilyClient)
	if baseURL != "" {
		c.baseURL = baseURL
	}
	return c
}

func TestSearch_Unconfigured(t *testing.T) {
	c := newTestClient("", "")
	if c.Configured() {
		t.Error("client without key should not be configured")
	}
	resp := c.Search(context.Background(), "q", DepthBasic, 5)
	if resp.Err == "" {
		t.Error("expected error field for unconfigured client")
	}
	if len(resp.Results) != 0 {
		t.Error("expected empty results")
	}
}

func TestSearch_RequestShapeAndParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "tv-key" {
			t.Fatalf("missing api key header")
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["search_depth"] != "advanced" {
			t.Fatalf("search_depth = %v", body["search_depth"])
		}
		if body["max_results"].(float64) != 3 {
			t.Fatalf("max_results = %v", body["max_results"])
		}
		_ = json.NewEncoder(w).Encode(Response{Results: []Result{
			{Title: "T1", URL: "http://a", Content: "c1"},
		}})
	}))
	defer srv.Close()

	c := newTestClient("tv-key", srv.URL)
	resp := c.Search(context.Background(), "q", DepthAdvanced, 3)
	if resp.Err != "" {
		t.Fatalf("unexpected error: %s", resp.Err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Title != "T1" {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
}

func TestSearch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient("bad-key", srv.URL)
	resp := c.Search(context.Background(), "q", DepthBasic, 5)
	if resp.Err == "" {
		t.Error("expected error field for API error")
	}
	if len(resp.Results) != 0 {
		t.Error("expected empty results on API error")
	}
}

func TestFactCheckStatement_TruncatesSources(t *testing.T) {
	long := strings.Repeat("x", 400)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if !strings.HasPrefix(body["query"].(string), "fact check: ") {
			t.Fatalf("query = %v", body["query"])
		}
		_ = json.NewEncoder(w).Encode(Response{Results: []Result{
			{Title: "", URL: "http://a", Content: long},
		}})
	}))
	defer srv.Close()

	c := newTestClient("tv-key", srv.URL)
	fc := c.FactCheckStatement(context.Background(), "the moon is made of cheese")
	if fc.Err != "" {
		t.Fatalf("unexpected error: %s", fc.Err)
	}
	if len(fc.Sources) != 1 {
		t.Fatalf("len(sources) = %d", len(fc.Sources))
	}
	if fc.Sources[0].Title != "Unknown source" {
		t.Errorf("title = %q, want Unknown source", fc.Sources[0].Title)
	}
	if len(fc.Sources[0].Content) != 253 {
		t.Errorf("content length = %d, want 250 + ellipsis", len(fc.Sources[0].Content))
	}
}

func TestResearchContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Response{Results: []Result{
			{Title: "Study A", URL: "http://a", Content: "findings"},
			{Title: "Study B", URL: "http://b", Content: "more findings"},
		}})
	}))
	defer srv.Close()

	c := newTestClient("tv-key", srv.URL)
	out := c.ResearchContext(context.Background(), "carbon taxes", 3)
	if !strings.Contains(out, "## Research on: carbon taxes") {
		t.Errorf("missing heading: %q", out)
	}
	if !strings.Contains(out, "Source 1: Study A") || !strings.Contains(out, "Source 2: Study B") {
		t.Errorf("missing sources: %q", out)
	}

	unconfigured := newTestClient("", "")
	if got := unconfigured.ResearchContext(context.Background(), "x", 3); got != "" {
		t.Errorf("unconfigured research context = %q, want empty", got)
	}
}
