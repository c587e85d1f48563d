// Package geo resolves an IP address to a coarse human-readable location.
// Results decorate the session list in account settings; they are never part
// of an access decision, so every failure path degrades to "no location".
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Resolver turns an IP address into a display location like "Sydney, Australia".
type Resolver interface {
	Resolve(ctx context.Context, ip string) (string, error)
}

// DefaultTimeout bounds a single lookup. The caller already runs lookups off
// the request path, but a hung lookup still ties up the enrichment worker.
const DefaultTimeout = 5 * time.Second

// HTTPResolver queries a free ip-api style JSON endpoint.
type HTTPResolver struct {
	BaseURL string // e.g. "http://ip-api.com/json"
	Client  *http.Client
}

// NewHTTPResolver returns a resolver against the given base URL with a
// timeout-bounded client.
func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: DefaultTimeout},
	}
}

type geoResponse struct {
	Status  string `json:"status"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// Resolve looks up ip and returns "City, Country". Private and unparseable
// addresses come back as an error; the caller logs and moves on.
func (r *HTTPResolver) Resolve(ctx context.Context, ip string) (string, error) {
	if strings.TrimSpace(ip) == "" {
		return "", fmt.Errorf("geo: empty ip")
	}

	endpoint := r.BaseURL + "/" + url.PathEscape(ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("geo: build request: %w", err)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("geo: lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geo: unexpected status %d", resp.StatusCode)
	}

	var body geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("geo: decode response: %w", err)
	}

	if body.Status != "" && body.Status != "success" {
		return "", fmt.Errorf("geo: lookup rejected for %s", ip)
	}

	switch {
	case body.City != "" && body.Country != "":
		return body.City + ", " + body.Country, nil
	case body.Country != "":
		return body.Country, nil
	default:
		return "", fmt.Errorf("geo: no location for %s", ip)
	}
}

// NoopResolver never resolves anything. Used in dev and in tests.
type NoopResolver struct{}

func (NoopResolver) Resolve(ctx context.Context, ip string) (string, error) {
	return "", fmt.Errorf("geo: resolution disabled")
}
