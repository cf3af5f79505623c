package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// HTTPClient is a generic JSON-over-HTTP source client. The per-platform
// request shaping beyond path and query parameters is intentionally thin;
// what matters here is mapping transport outcomes onto the error taxonomy.
type HTTPClient struct {
	platform string
	baseURL  string
	httpc    *http.Client
	log      logrus.FieldLogger
}

// NewHTTPClient creates a client for one platform API.
func NewHTTPClient(platform, baseURL string, timeout time.Duration, log logrus.FieldLogger) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		platform: platform,
		baseURL:  baseURL,
		httpc:    &http.Client{Timeout: timeout},
		log:      log.WithField("platform", platform),
	}
}

// Platform returns the service key this client is registered under.
func (c *HTTPClient) Platform() string {
	return c.platform
}

// FetchUserItems fetches the user's own recent posts.
func (c *HTTPClient) FetchUserItems(ctx context.Context, userID string, lookbackDays int) ([]models.Item, error) {
	return c.fetch(ctx, "/v1/users/"+url.PathEscape(userID)+"/items", lookbackDays, false)
}

// FetchPeerItems fetches a competitor's recent posts.
func (c *HTTPClient) FetchPeerItems(ctx context.Context, peerID string, lookbackDays int) ([]models.Item, error) {
	return c.fetch(ctx, "/v1/users/"+url.PathEscape(peerID)+"/items", lookbackDays, true)
}

type itemsResponse struct {
	Items []models.Item `json:"items"`
}

func (c *HTTPClient) fetch(ctx context.Context, path string, lookbackDays int, competitor bool) ([]models.Item, error) {
	u := fmt.Sprintf("%s%s?lookback_days=%d", c.baseURL, path, lookbackDays)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &PermanentError{Platform: c.platform, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransientError{Platform: c.platform, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitedError{
			Platform:   c.platform,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 500:
		return nil, &TransientError{
			Platform: c.platform,
			Err:      fmt.Errorf("status %d", resp.StatusCode),
		}
	case resp.StatusCode >= 400:
		return nil, &PermanentError{Platform: c.platform, Status: resp.StatusCode}
	}

	var body itemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		// A malformed payload is just as dead as a 4xx.
		return nil, &PermanentError{Platform: c.platform, Err: err}
	}

	for i := range body.Items {
		body.Items[i].Platform = c.platform
		body.Items[i].IsCompetitor = competitor
	}
	return body.Items, nil
}

// parseRetryAfter handles both forms of the Retry-After header:
// delta-seconds and HTTP-date. A date in the past yields zero.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
