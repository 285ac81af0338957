package carrierhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/albal/rmtrack/internal/provider"
	"github.com/pkg/errors"
)

// Client ходит за статусом в настоящий carrier API. Контракт тот же, что у
// mock-провайдера: Delivered терминален.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type statusResp struct {
	Status    string `json:"status"`
	Delivered bool   `json:"delivered"`
}

func (c *Client) FetchStatus(ctx context.Context, identifier string, startedAt, _ time.Time) (provider.StatusResult, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return provider.StatusResult{}, errors.Wrap(err, "parse base url")
	}
	u.Path = "/v1/status"

	q := u.Query()
	q.Set("apiKey", c.apiKey)
	q.Set("identifier", identifier)
	q.Set("startedAt", startedAt.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return provider.StatusResult{}, errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return provider.StatusResult{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return provider.StatusResult{}, fmt.Errorf("carrier http %d", resp.StatusCode)
	}

	var r statusResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return provider.StatusResult{}, errors.Wrap(err, "decode")
	}
	if r.Status == "" {
		return provider.StatusResult{}, errors.New("carrier returned empty status")
	}

	return provider.StatusResult{
		Status:    r.Status,
		Delivered: r.Delivered,
	}, nil
}
