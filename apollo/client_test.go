package apollo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testBatch(n int) []MatchRequest {
	batch := make([]MatchRequest, n)
	for i := range batch {
		batch[i] = MatchRequest{
			FirstName: fmt.Sprintf("First%d", i),
			LastName:  fmt.Sprintf("Last%d", i),
			Domain:    "acme.com",
		}
	}
	return batch
}

func TestBulkMatchSuccess(t *testing.T) {
	var gotAPIKey, gotPath, gotQuery string
	var gotPayload bulkMatchPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("x-api-key")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("failed to decode request payload: %v", err)
		}
		fmt.Fprint(w, `{"matches":[{"email":"a@acme.com"},{"email":""},{"email":"c@acme.com"}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	emails, err := client.BulkMatch(context.Background(), "test-key", testBatch(3), nil)
	if err != nil {
		t.Fatalf("BulkMatch failed: %v", err)
	}

	if gotAPIKey != "test-key" {
		t.Errorf("expected x-api-key header, got %q", gotAPIKey)
	}
	if gotPath != "/api/v1/people/bulk_match" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotQuery != "reveal_personal_emails=true&reveal_phone_number=false" {
		t.Errorf("unexpected query: %s", gotQuery)
	}
	if len(gotPayload.Details) != 3 {
		t.Errorf("expected 3 details in payload, got %d", len(gotPayload.Details))
	}

	expected := []string{"a@acme.com", EmailNotFound, "c@acme.com"}
	if len(emails) != 3 {
		t.Fatalf("expected 3 emails, got %d", len(emails))
	}
	for i, want := range expected {
		if emails[i] != want {
			t.Errorf("email[%d] = %q, expected %q", i, emails[i], want)
		}
	}
}

func TestBulkMatchPadsShortResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"matches":[{"email":"only@acme.com"}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	emails, err := client.BulkMatch(context.Background(), "k", testBatch(3), nil)
	if err != nil {
		t.Fatalf("BulkMatch failed: %v", err)
	}
	if len(emails) != 3 {
		t.Fatalf("expected 3 emails, got %d", len(emails))
	}
	if emails[0] != "only@acme.com" || emails[1] != EmailNotFound || emails[2] != EmailNotFound {
		t.Errorf("unexpected emails: %v", emails)
	}
}

func TestBulkMatchEmptyMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"matches":[]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	emails, err := client.BulkMatch(context.Background(), "k", testBatch(2), nil)
	if err != nil {
		t.Fatalf("BulkMatch failed: %v", err)
	}
	for i, email := range emails {
		if email != EmailNotFound {
			t.Errorf("email[%d] = %q, expected %q", i, email, EmailNotFound)
		}
	}
}

func TestBulkMatchValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":"invalid details"}`)
	}))
	defer server.Close()

	var logged []string
	logf := func(format string, args ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}

	client := NewClient(server.URL)
	emails, err := client.BulkMatch(context.Background(), "k", testBatch(2), logf)
	if err != nil {
		t.Fatalf("expected no abort error for 422, got %v", err)
	}
	for i, email := range emails {
		if email != EmailValidationError {
			t.Errorf("email[%d] = %q, expected %q", i, email, EmailValidationError)
		}
	}
	if len(logged) == 0 {
		t.Error("expected validation error to be logged")
	}
}

func TestBulkMatchAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"server exploded"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	emails, err := client.BulkMatch(context.Background(), "k", testBatch(2), nil)
	if err != nil {
		t.Fatalf("expected no abort error for generic API error, got %v", err)
	}
	for i, email := range emails {
		if email != EmailAPIError {
			t.Errorf("email[%d] = %q, expected %q", i, email, EmailAPIError)
		}
	}
}

func TestBulkMatchInsufficientCredits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":"Insufficient credits remaining on this plan"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.BulkMatch(context.Background(), "k", testBatch(2), nil)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
}

func TestBulkMatchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL)
	if _, err := client.BulkMatch(context.Background(), "k", testBatch(1), nil); err == nil {
		t.Fatal("expected transport error against a closed server")
	}
}

func TestBulkMatchMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.BulkMatch(context.Background(), "k", testBatch(1), nil); err == nil {
		t.Fatal("expected error for malformed response body")
	}
}
