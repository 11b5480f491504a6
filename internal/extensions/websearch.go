package extensions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cortexflow/wec/internal/wec/dispatcher"
)

// WebSearchExtension searches the web via the Tavily Search API.
type WebSearchExtension struct {
	apiKey     string
	httpClient *http.Client
}

// NewWebSearchExtension returns a WebSearchExtension keyed by a Tavily API
// key. An empty key is accepted; Invoke then fails with an error result
// rather than a panic, so workflows that never reach this extension don't
// need one configured.
func NewWebSearchExtension(apiKey string) *WebSearchExtension {
	return &WebSearchExtension{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type tavilyResponse struct {
	Answer  string         `json:"answer"`
	Results []tavilyResult `json:"results"`
}

func (w *WebSearchExtension) Describe() []dispatcher.ToolDefinition {
	return []dispatcher.ToolDefinition{
		{Name: "search", Description: "Searches the web for a query and returns a summarized answer."},
	}
}

func (w *WebSearchExtension) Invoke(tool string, args map[string]interface{}) (dispatcher.ToolResponse, error) {
	if w.apiKey == "" {
		return errorResponse("web search extension has no API key configured"), nil
	}

	query, _ := args["query"].(string)
	if query == "" {
		return errorResponse("query is required"), nil
	}

	reqBody, err := json.Marshal(tavilyRequest{
		APIKey:        w.apiKey,
		Query:         query,
		SearchDepth:   "basic",
		MaxResults:    5,
		IncludeAnswer: true,
	})
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	resp, err := w.httpClient.Post("https://api.tavily.com/search", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return errorResponse(err.Error()), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorResponse(fmt.Sprintf("tavily search failed: status %d", resp.StatusCode)), nil
	}

	var result tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return errorResponse(err.Error()), nil
	}

	return dispatcher.ToolResponse{
		Content: []dispatcher.ContentItem{{Type: "text", Text: result.Answer}},
		Result: map[string]interface{}{
			"answer":  result.Answer,
			"results": result.Results,
		},
	}, nil
}
