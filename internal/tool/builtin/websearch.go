package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stellarlinkco/agentbox/internal/tool"
)

const duckDuckGoURL = "https://api.duckduckgo.com/"

// duckDuckGoResponse mirrors the subset of the instant answer payload we
// read. RelatedTopics mixes topic entries and category groups; groups carry
// a nested Topics list instead of Text.
type duckDuckGoResponse struct {
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Heading       string `json:"Heading"`
	Answer        string `json:"Answer"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// WebSearch queries the DuckDuckGo instant answer API.
type WebSearch struct {
	baseURL string
	http    *http.Client
}

func NewWebSearch(timeout time.Duration) *WebSearch {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebSearch{baseURL: duckDuckGoURL, http: &http.Client{Timeout: timeout}}
}

func (w *WebSearch) Name() string { return "web_search" }

func (w *WebSearch) Description() string {
	return "Search the web for current information, input is the search query"
}

func (w *WebSearch) Invoke(ctx context.Context, input string) (tool.Result, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return tool.Fail("empty search query"), nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return tool.Fail(fmt.Sprintf("build request: %v", err)), nil
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return tool.Fail(fmt.Sprintf("search request: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tool.Fail(fmt.Sprintf("search returned status %d", resp.StatusCode)), nil
	}

	var body duckDuckGoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return tool.Fail(fmt.Sprintf("decode response: %v", err)), nil
	}

	summary, related := summarize(body)
	return tool.Ok(map[string]any{
		"query":   query,
		"summary": summary,
		"related": related,
	}), nil
}

// summarize picks the best available answer text and up to three related
// topic snippets.
func summarize(body duckDuckGoResponse) (string, []string) {
	summary := body.AbstractText
	if summary == "" {
		summary = body.Answer
	}

	related := []string{}
	for _, topic := range body.RelatedTopics {
		if topic.Text == "" {
			continue
		}
		related = append(related, topic.Text)
		if len(related) == 3 {
			break
		}
	}

	if summary == "" && len(related) > 0 {
		summary = related[0]
	}
	if summary == "" {
		summary = "no instant answer found"
	}
	return summary, related
}
