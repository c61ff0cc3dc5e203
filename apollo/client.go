// Package apollo implements the client for Apollo's people bulk match
// endpoint, the upstream used to resolve contact emails.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadlift/metrics"
)

// Placeholder values written into the Email column when a row could not
// be matched. These mirror what operators already expect to see in the
// output files.
const (
	EmailNotFound        = "No email found"
	EmailValidationError = "Validation Error"
	EmailAPIError        = "API Error"
)

// ErrInsufficientCredits aborts a job: retrying the remaining batches
// would burn requests against an account that cannot pay for them.
var ErrInsufficientCredits = errors.New("insufficient provider credits, please upgrade your plan")

const bulkMatchPath = "/api/v1/people/bulk_match?reveal_personal_emails=true&reveal_phone_number=false"

// MatchRequest is one person lookup within a bulk match call.
type MatchRequest struct {
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	LinkedinURL      string `json:"linkedin_url,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
	Domain           string `json:"domain,omitempty"`
}

type bulkMatchPayload struct {
	Details []MatchRequest `json:"details"`
}

type bulkMatchResponse struct {
	Matches []struct {
		Email string `json:"email"`
	} `json:"matches"`
}

// Client talks to the enrichment provider's REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a provider client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Logf receives human-readable progress lines for the job log.
type Logf func(format string, args ...interface{})

// BulkMatch resolves emails for a batch of match requests. The returned
// slice always has one entry per request; rows the provider could not
// match carry a placeholder value instead of an address.
//
// A non-nil error is returned only for failures that should abort the
// whole job (transport errors, insufficient credits). Per-batch API
// problems are reported through placeholder values.
func (c *Client) BulkMatch(ctx context.Context, apiKey string, batch []MatchRequest, logf Logf) ([]string, error) {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}

	body, err := json.Marshal(bulkMatchPayload{Details: batch})
	if err != nil {
		return nil, fmt.Errorf("failed to encode bulk match payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+bulkMatchPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build bulk match request: %w", err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveProviderRequest("transport_error", time.Since(start))
		logf("General Error: %v", err)
		return nil, fmt.Errorf("bulk match request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.ObserveProviderRequest("transport_error", time.Since(start))
		return nil, fmt.Errorf("failed to read bulk match response: %w", err)
	}

	if resp.StatusCode == http.StatusUnprocessableEntity {
		metrics.ObserveProviderRequest("validation_error", time.Since(start))
		logf("Validation error from provider. Status: %d", resp.StatusCode)
		logf("Response: %s...", truncate(string(respBody), 200))
		return placeholders(EmailValidationError, len(batch)), nil
	}

	if resp.StatusCode != http.StatusOK {
		metrics.ObserveProviderRequest("api_error", time.Since(start))
		logf("API Error: %d - %s", resp.StatusCode, string(respBody))
		if strings.Contains(strings.ToLower(string(respBody)), "insufficient credits") {
			logf("❌ STOPPING: Insufficient provider credits. Please upgrade your plan.")
			return nil, ErrInsufficientCredits
		}
		return placeholders(EmailAPIError, len(batch)), nil
	}

	var parsed bulkMatchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		metrics.ObserveProviderRequest("api_error", time.Since(start))
		return nil, fmt.Errorf("failed to decode bulk match response: %w", err)
	}
	metrics.ObserveProviderRequest("ok", time.Since(start))

	if len(parsed.Matches) == 0 {
		return placeholders(EmailNotFound, len(batch)), nil
	}

	emails := make([]string, 0, len(batch))
	for _, match := range parsed.Matches {
		email := match.Email
		if email == "" {
			email = EmailNotFound
		}
		emails = append(emails, email)
	}
	// The provider answers one match per detail; pad short responses so
	// callers can always index the result by row.
	for len(emails) < len(batch) {
		emails = append(emails, EmailNotFound)
	}
	return emails[:len(batch)], nil
}

func placeholders(value string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
