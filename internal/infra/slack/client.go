package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// WebhookClient delivers messages through a Slack incoming webhook.
// When disabled it logs the message and reports success, which is the
// dry-run mode used on staging deployments.
type WebhookClient struct {
	webhookURL string
	enabled    bool
	client     *http.Client
	logger     *logrus.Logger
}

func NewWebhookClient(webhookURL string, enabled bool, logger *logrus.Logger) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		enabled:    enabled,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (c *WebhookClient) Send(ctx context.Context, text string) error {
	if !c.enabled {
		c.logger.Infof("Slack notifications disabled. Would have sent: %s", text)
		return nil
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
