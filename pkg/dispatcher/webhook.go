package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dealrelay/dealrelay/pkg/events"
)

// maxResponseBytes caps how much of an engine reply is kept in the audit
// record.
const maxResponseBytes = 64 * 1024

// webhookBody is the JSON payload posted to the automation engine.
type webhookBody struct {
	Event     events.EventType `json:"event"`
	Entity    map[string]any   `json:"entity"`
	Timestamp time.Time        `json:"timestamp"`
}

func (d *Dispatcher) webhookURL(webhookID string) string {
	return strings.TrimSuffix(d.config.BaseURL, "/") + "/" + webhookID
}

// callWebhook POSTs the event to the engine and returns the decoded reply.
// Any non-2xx status, transport error or timeout comes back as an error
// whose message is safe to store in the audit log.
func (d *Dispatcher) callWebhook(ctx context.Context, webhookID string, event events.EventType, payload map[string]any, at time.Time) (map[string]any, error) {
	body, err := json.Marshal(webhookBody{
		Event:     event,
		Entity:    payload,
		Timestamp: at,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL(webhookID), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if d.config.Credential != "" {
		req.Header.Set("Authorization", "Bearer "+d.config.Credential)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("webhook call timed out after %s", d.config.PerCallTimeout)
		}

		return nil, fmt.Errorf("webhook call failed: %w", err)
	}
	defer resp.Body.Close()

	replyBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return decodeReply(replyBody), nil
}

// decodeReply treats the engine reply opaquely: JSON objects pass through,
// anything else is wrapped raw.
func decodeReply(body []byte) map[string]any {
	if len(body) == 0 {
		return nil
	}

	var reply map[string]any

	if err := json.Unmarshal(body, &reply); err == nil {
		return reply
	}

	return map[string]any{"raw": string(body)}
}
