// Package notify sends operational alerts to Slack via an incoming
// webhook. The corpus carries no Slack or generic webhook client library,
// and a webhook POST is a single JSON body over net/http with no signing
// or retry protocol to justify a dependency, so this is a deliberate
// stdlib exception (see DESIGN.md).
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// SlackClient posts messages to one incoming webhook URL.
type SlackClient struct {
	webhookURL string
	http       *http.Client
	log        zerolog.Logger
}

// NewSlackClient wires a client against webhookURL. An empty URL is
// valid: Notify becomes a no-op, so the notify-slack node degrades
// gracefully when no webhook is configured.
func NewSlackClient(webhookURL string, log zerolog.Logger) *SlackClient {
	return &SlackClient{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("component", "slack").Logger(),
	}
}

type slackPayload struct {
	Text string `json:"text"`
}

// Notify posts text to the configured webhook. A no-op when no webhook
// URL is configured.
func (c *SlackClient) Notify(ctx context.Context, text string) error {
	if c.webhookURL == "" {
		c.log.Debug().Msg("slack webhook not configured, skipping notification")
		return nil
	}

	body, err := json.Marshal(slackPayload{Text: text})
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
