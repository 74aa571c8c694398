package homeassistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/immiframe/internal/domain"
)

// Config holds the Home Assistant REST connection.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client is a minimal Home Assistant REST client: read an entity state and
// set an input_text value.
type Client struct {
	client *resty.Client
}

type stateResponse struct {
	EntityID string `json:"entity_id"`
	State    string `json:"state"`
}

type setValueRequest struct {
	EntityID string `json:"entity_id"`
	Value    string `json:"value"`
}

// NewClient creates a Home Assistant client authenticated with a long-lived
// or supervisor token.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetAuthToken(cfg.Token)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	return &Client{client: client}
}

// State returns the state string of an entity. Unknown and unavailable
// states are errors.
func (c *Client) State(ctx context.Context, entityID string) (string, error) {
	var resp stateResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("entity", entityID).
		SetResult(&resp).
		Get("/api/states/{entity}")
	if err != nil {
		return "", fmt.Errorf("%w: home assistant state %s: %v", domain.ErrSourceUnavailable, entityID, err)
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return "", fmt.Errorf("%w: home assistant state %s: status %d", domain.ErrSourceUnavailable, entityID, httpResp.StatusCode())
	}

	state := strings.TrimSpace(resp.State)
	switch strings.ToLower(state) {
	case "", "unknown", "unavailable":
		return "", fmt.Errorf("%w: entity %s has no usable state (%q)", domain.ErrSourceUnavailable, entityID, state)
	}
	return state, nil
}

// SetInputText sets the value of an input_text entity.
func (c *Client) SetInputText(ctx context.Context, entityID, value string) error {
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(setValueRequest{EntityID: entityID, Value: value}).
		Post("/api/services/input_text/set_value")
	if err != nil {
		return fmt.Errorf("home assistant set_value %s: %w", entityID, err)
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return fmt.Errorf("home assistant set_value %s: status %d", entityID, httpResp.StatusCode())
	}
	return nil
}
