package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFeed polls a JSON endpoint returning {"price": "2000.5", "updatedAt": 1700000000}.
// The price may be a string or a number and is scaled to feed units.
type HTTPFeed struct {
	client   HTTPDoer
	endpoint string
	timeout  time.Duration
}

// NewHTTPFeed constructs a feed. When client is nil http.DefaultClient is used.
func NewHTTPFeed(client HTTPDoer, endpoint string, timeout time.Duration) *HTTPFeed {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPFeed{client: client, endpoint: strings.TrimSpace(endpoint), timeout: timeout}
}

// LatestPrice fetches the current answer from the endpoint.
func (f *HTTPFeed) LatestPrice() (*big.Int, time.Time, error) {
	if f == nil || f.endpoint == "" {
		return nil, time.Time{}, fmt.Errorf("http feed not configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, time.Time{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, time.Time{}, fmt.Errorf("http feed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	var payload struct {
		Price     json.Number `json:"price"`
		UpdatedAt json.Number `json:"updatedAt"`
	}
	if err := decoder.Decode(&payload); err != nil {
		return nil, time.Time{}, fmt.Errorf("http feed: decode: %w", err)
	}
	price, err := ParseDecimal(payload.Price.String())
	if err != nil {
		return nil, time.Time{}, err
	}
	var updatedAt time.Time
	if raw := strings.TrimSpace(payload.UpdatedAt.String()); raw != "" {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("http feed: invalid updatedAt %q", raw)
		}
		updatedAt = time.Unix(secs, 0).UTC()
	}
	return price, updatedAt, nil
}
