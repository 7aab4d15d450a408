package taxonomy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"gallery-router/internal/common/errors"
)

// Client fetches taxonomy snapshots from the remote gallery API over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientConfig configures the gallery API client.
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// NewClient creates a gallery API client. The timeout bounds the whole
// request; the engine itself exposes no additional cancellation surface.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.ConfigError("gallery API base URL is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// GetTaxonomy fetches the taxonomy snapshot for a credential scope.
func (c *Client) GetTaxonomy(ctx context.Context, scope string) (*Snapshot, error) {
	endpoint := fmt.Sprintf("%s/api/taxonomy?scope=%s", c.baseURL, url.QueryEscape(scope))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.InternalError("failed to build taxonomy request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.TaxonomyError("taxonomy fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.TaxonomyError(
			fmt.Sprintf("taxonomy fetch returned status %d", resp.StatusCode), nil)
	}

	var snapshot Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, errors.TaxonomyError("failed to decode taxonomy response", err)
	}

	return &snapshot, nil
}
