// Package kb talks to the retrieval sidecar that indexes tax-regulation
// snippets. It is an optional collaborator: the validator treats any
// failure here as "unverifiable", never as a processing error.
package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Snippet is one retrieved passage with its provenance.
type Snippet struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Searcher is the lookup surface the validator consumes.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Snippet, error)
}

// Client queries the sidecar over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResponse struct {
	Results []Snippet `json:"results"`
}

// Search returns up to k snippets relevant to the query.
func (c *Client) Search(ctx context.Context, query string, k int) ([]Snippet, error) {
	body, err := json.Marshal(searchRequest{Query: query, K: k})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("knowledge base unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("knowledge base returned status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return out.Results, nil
}
