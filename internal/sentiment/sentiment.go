// Package sentiment binds the optional upstream emotional-charge signal.
// The queue consults it to stretch undo windows on outgoing messages; the
// collaborator being absent, slow, or broken must never block an enqueue,
// so the HTTP scorer keeps a short timeout and callers treat every error
// as "no signal".
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stewardhq/steward/internal/pkg/httpretry"
)

// Scorer produces an emotional-charge score in [0,1] for an outgoing
// message. Higher means more charged.
type Scorer interface {
	Score(ctx context.Context, subject, body string) (float64, error)
}

// HTTPScorer calls an external scoring service.
type HTTPScorer struct {
	endpoint string
	client   httpretry.HTTPDoer
}

// NewHTTPScorer creates a scorer against the given endpoint. The client
// retries transient failures with backoff but caps total wait well under
// the enqueue path's patience.
func NewHTTPScorer(endpoint string) *HTTPScorer {
	base := &http.Client{Timeout: 3 * time.Second}
	return &HTTPScorer{
		endpoint: endpoint,
		client:   httpretry.NewRetryClient(base, 1),
	}
}

type scoreRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

// Score posts the message text and returns the service's score.
func (s *HTTPScorer) Score(ctx context.Context, subject, body string) (float64, error) {
	reqBody, err := json.Marshal(scoreRequest{Subject: subject, Body: body})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("sentiment service returned %d", resp.StatusCode)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	if out.Score < 0 || out.Score > 1 {
		return 0, fmt.Errorf("sentiment score %f out of range", out.Score)
	}
	return out.Score, nil
}
