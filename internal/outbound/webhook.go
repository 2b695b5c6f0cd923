package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/seawatch/threat-monitor/backend/internal/models"
)

// Webhook posts a MessageCard-style payload to a chat webhook URL.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook builds a webhook notifier for the given URL.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name identifies the sink in logs.
func (w *Webhook) Name() string { return "webhook" }

// Notify posts the record as a card. Any non-2xx response is an error.
func (w *Webhook) Notify(ctx context.Context, rec models.ThreatRecord) error {
	payload, err := json.Marshal(buildCard(rec))
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned %s", res.Status)
	}

	return nil
}

func buildCard(rec models.ThreatRecord) map[string]any {
	facts := []map[string]string{
		{"name": "Region", "value": rec.Region},
		{"name": "Category", "value": rec.Category},
		{"name": "Potential impact", "value": rec.PotentialImpact},
		{"name": "Date mentioned", "value": rec.DateMentioned},
	}
	if len(rec.Countries) > 0 {
		facts = append(facts, map[string]string{"name": "Countries", "value": strings.Join(rec.Countries, ", ")})
	}
	if len(rec.SourceURLs) > 0 {
		facts = append(facts, map[string]string{"name": "Sources", "value": strings.Join(rec.SourceURLs, "\n")})
	}

	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": "D13438",
		"summary":    rec.Title,
		"title":      "New maritime threat: " + rec.Title,
		"sections": []map[string]any{{
			"text":  rec.Description,
			"facts": facts,
		}},
	}
}
