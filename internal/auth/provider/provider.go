// Package provider is the client side of the external identity provider,
// which owns user credentials. This service never sees password hashes;
// it only asks "is this pair valid" and receives a durable external id.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 10 * time.Second

// HTTPVerifier asks the provider's verification endpoint.
type HTTPVerifier struct {
	URL    string
	Client *http.Client
}

// NewHTTPVerifier returns a verifier posting to the given URL.
func NewHTTPVerifier(url string) *HTTPVerifier {
	return &HTTPVerifier{
		URL:    strings.TrimRight(url, "/"),
		Client: &http.Client{Timeout: requestTimeout},
	}
}

type verifyRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyResponse struct {
	Valid      bool   `json:"valid"`
	ExternalID string `json:"external_id"`
}

// VerifyCredentials posts the pair and interprets the answer. A non-200
// from the provider is an error, not a rejection; the caller must not
// charge it against anyone's lockout budget.
func (v *HTTPVerifier) VerifyCredentials(ctx context.Context, email, password string) (string, bool, error) {
	body, err := json.Marshal(verifyRequest{Email: email, Password: password})
	if err != nil {
		return "", false, fmt.Errorf("provider: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.URL, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("provider: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.Client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("provider: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("provider: unexpected status %d", resp.StatusCode)
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("provider: decode response: %w", err)
	}
	if !out.Valid {
		return "", false, nil
	}
	if out.ExternalID == "" {
		return "", false, fmt.Errorf("provider: valid response without external id")
	}
	return out.ExternalID, true, nil
}

// DenyAllVerifier refuses every pair. Used when no provider URL is
// configured, so a misconfigured deployment fails safe instead of open.
type DenyAllVerifier struct{}

func (DenyAllVerifier) VerifyCredentials(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}
