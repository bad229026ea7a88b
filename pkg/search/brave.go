package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"thinkwrapper-backend/pkg/faults"
)

// Result is one ranked web result used as newsletter source material
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Provider fetches ranked web results for a query. An empty result set is a
// valid outcome, not an error.
type Provider interface {
	Search(ctx context.Context, query string, count int) ([]Result, error)
}

// BraveClient implements Provider using the Brave Search REST API
type BraveClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewBraveClient creates a Brave Search client. An empty apiKey yields a
// client whose Search always returns faults.ErrNotConfigured.
func NewBraveClient(apiKey string) *BraveClient {
	return &BraveClient{
		apiKey:  apiKey,
		baseURL: "https://api.search.brave.com/res/v1/web/search",
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether an API key is present
func (c *BraveClient) Configured() bool {
	return c.apiKey != ""
}

func (c *BraveClient) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if c.apiKey == "" {
		return nil, faults.ErrNotConfigured
	}
	if count <= 0 {
		count = 5
	}
	if count > 20 {
		count = 20
	}

	endpoint := c.baseURL + "?q=" + url.QueryEscape(query) + "&count=" + strconv.Itoa(count)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, faults.Transient("brave search request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.Transient("failed to read brave response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to parsing
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, faults.Transient("brave API error (%d): %s", resp.StatusCode, string(respBody))
	default:
		return nil, faults.Permanent("brave API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, faults.Permanent("failed to parse brave response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, Result{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
		})
		if len(results) >= count {
			break
		}
	}

	// "no results" is a normal outcome for narrow topics
	if len(results) == 0 {
		return []Result{}, nil
	}
	return results, nil
}

var _ Provider = (*BraveClient)(nil)
