// Package calendar talks to the external calendar collaborator. Event
// creation is best-effort: callers treat every failure as non-fatal and keep
// the appointment authoritative in the database.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const requestTimeout = 5 * time.Second

// Event is the payload for a calendar entry.
type Event struct {
	CaseID     uuid.UUID `json:"caseId"`
	ProviderID uuid.UUID `json:"providerId"`
	Title      string    `json:"title"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
}

// Client is an HTTP client for the calendar service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a calendar client. An empty base URL disables the client; every
// CreateEvent call then fails fast and the caller's best-effort handling
// applies.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Enabled reports whether a calendar endpoint is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// CreateEvent creates a calendar entry and returns its external id.
func (c *Client) CreateEvent(ctx context.Context, event Event) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("calendar sync is not configured")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to encode calendar event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build calendar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("calendar service returned status %d", resp.StatusCode)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode calendar response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("calendar service returned no event id")
	}

	return out.ID, nil
}
