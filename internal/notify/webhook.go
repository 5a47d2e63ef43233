package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookSink posts a MessageCard document to a chat webhook (Teams
// compatible).
type WebhookSink struct {
	webhookURL string
	client     *http.Client
}

// NewWebhookSink creates a webhook sink for the given URL.
func NewWebhookSink(webhookURL string) *WebhookSink {
	return &WebhookSink{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (w *WebhookSink) Name() string { return "webhook" }

// Send posts the payload as a MessageCard.
func (w *WebhookSink) Send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(w.messageCard(p))
	if err != nil {
		return fmt.Errorf("error generating webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("error creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook notification failed with status: %d", resp.StatusCode)
	}
	return nil
}

// messageCard builds the MessageCard document for the payload.
func (w *WebhookSink) messageCard(p Payload) map[string]interface{} {
	facts := make([]map[string]interface{}, 0, len(p.Facts))
	for _, f := range p.Facts {
		facts = append(facts, map[string]interface{}{
			"name":  f.Name,
			"value": f.Value,
		})
	}

	card := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": colorFor(p.Event),
		"summary":    fmt.Sprintf("%s: %s", p.Title, p.Body),
		"sections": []map[string]interface{}{
			{
				"activityTitle":    p.Title,
				"activitySubtitle": p.Body,
				"facts":            facts,
				"markdown":         true,
			},
		},
	}

	if p.Link != "" {
		card["potentialAction"] = []map[string]interface{}{
			{
				"@type": "OpenUri",
				"name":  "View PR",
				"targets": []map[string]interface{}{
					{"os": "default", "uri": p.Link},
				},
			},
		}
	}
	return card
}

// colorFor maps event types to card theme colors.
func colorFor(ev EventType) string {
	switch ev {
	case EventUrgentPR:
		return "FF0000"
	case EventConflictDetected:
		return "FFA500"
	case EventAuthorNotified:
		return "00FF00"
	case EventReviewerAssigned:
		return "0078D4"
	default:
		return "808080"
	}
}
