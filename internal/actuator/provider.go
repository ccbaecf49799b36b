package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/stewardhq/steward/internal/domain"
	"github.com/stewardhq/steward/internal/pkg/httpretry"
)

// ProviderConfig holds what the mailbox/calendar REST adapter needs.
type ProviderConfig struct {
	// BaseURL is the provider API root, no trailing slash.
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// Timeout bounds a single provider call before retries.
	Timeout time.Duration
}

// ProviderActuator drives the mailbox and calendar provider's REST API.
// It covers every action type except send_message, which goes out through
// SES.
type ProviderActuator struct {
	baseURL string
	tokens  oauth2.TokenSource
	client  httpretry.HTTPDoer
}

// NewProviderActuator wires the OAuth2 client-credentials token source and
// the retrying HTTP client.
func NewProviderActuator(cfg ProviderConfig) (*ProviderActuator, error) {
	if cfg.BaseURL == "" || cfg.TokenURL == "" {
		return nil, fmt.Errorf("provider actuator: base_url and token_url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	return &ProviderActuator{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tokens:  cc.TokenSource(context.Background()),
		client:  httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 2),
	}, nil
}

// Authenticate forces a token fetch so misconfiguration surfaces at startup
// rather than on the first claimed action.
func (p *ProviderActuator) Authenticate(ctx context.Context) error {
	tok, err := p.tokens.Token()
	if err != nil {
		return fmt.Errorf("provider token: %w", err)
	}
	if !tok.Valid() {
		return fmt.Errorf("provider token: received invalid token")
	}
	return nil
}

// Execute maps the action onto the provider's REST surface.
func (p *ProviderActuator) Execute(ctx context.Context, a *domain.Action) (*Result, error) {
	switch pl := a.Payload.(type) {
	case domain.ReplyMessagePayload:
		return p.call(ctx, http.MethodPost,
			fmt.Sprintf("/messages/%s/reply", pl.MessageID),
			map[string]any{"body": pl.Body, "reply_all": pl.ReplyAll},
			"replied to message "+pl.MessageID)
	case domain.ForwardMessagePayload:
		return p.call(ctx, http.MethodPost,
			fmt.Sprintf("/messages/%s/forward", pl.MessageID),
			map[string]any{"to": pl.To, "comment": pl.Comment},
			"forwarded message "+pl.MessageID)
	case domain.DeleteMessagePayload:
		return p.call(ctx, http.MethodDelete,
			fmt.Sprintf("/messages/%s", pl.MessageID), nil,
			"deleted message "+pl.MessageID)
	case domain.ArchiveMessagePayload:
		return p.call(ctx, http.MethodPost,
			fmt.Sprintf("/messages/%s/archive", pl.MessageID), nil,
			"archived message "+pl.MessageID)
	case domain.MarkReadPayload:
		return p.call(ctx, http.MethodPatch,
			fmt.Sprintf("/messages/%s", pl.MessageID),
			map[string]any{"unread": pl.Unread},
			"updated read state of "+pl.MessageID)
	case domain.FlagMessagePayload:
		method := http.MethodPut
		if pl.Remove {
			method = http.MethodDelete
		}
		return p.call(ctx, method,
			fmt.Sprintf("/messages/%s/flags/%s", pl.MessageID, pl.Flag), nil,
			fmt.Sprintf("flag %q on %s", pl.Flag, pl.MessageID))
	case domain.ScheduleEventPayload:
		return p.call(ctx, http.MethodPost, "/events", map[string]any{
			"title":       pl.Title,
			"starts_at":   pl.StartsAt,
			"ends_at":     pl.EndsAt,
			"attendees":   pl.Attendees,
			"location":    pl.Location,
			"description": pl.Description,
		}, "scheduled event "+pl.Title)
	case domain.CancelEventPayload:
		return p.call(ctx, http.MethodPost,
			fmt.Sprintf("/events/%s/cancel", pl.EventID),
			map[string]any{"comment": pl.Comment},
			"cancelled event "+pl.EventID)
	case domain.RespondToEventPayload:
		return p.call(ctx, http.MethodPost,
			fmt.Sprintf("/events/%s/respond", pl.EventID),
			map[string]any{"response": pl.Response, "comment": pl.Comment},
			fmt.Sprintf("responded %s to event %s", pl.Response, pl.EventID))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, a.Type)
}

// call performs one authenticated provider request. 2xx is success; the
// provider echoes a resource id as {"id": "..."} on creations.
func (p *ProviderActuator) call(ctx context.Context, method, path string, body any, detail string) (*Result, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	tok, err := p.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("provider token: %w", err)
	}
	tok.SetAuthHeader(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("provider %s %s: status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	res := &Result{Detail: detail}
	var echo struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&echo); err == nil {
		res.ResourceID = echo.ID
	}
	return res, nil
}
