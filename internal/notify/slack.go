package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"player-watch/internal/httpclient"
	"player-watch/internal/types"

	"github.com/sirupsen/logrus"
)

// Alerter posts operational alerts.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// SlackNotifier posts messages to a Slack incoming webhook. A notifier with
// an empty webhook URL is valid and drops messages silently.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a SlackNotifier from configuration.
func NewSlackNotifier(configManager types.ConfigManager, clientManager *httpclient.HTTPClientManager) *SlackNotifier {
	client := clientManager.GetClient(&httpclient.Config{
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 15 * time.Second,
	})
	return &SlackNotifier{
		webhookURL: configManager.GetSlackConfig().WebhookURL,
		client:     client,
	}
}

// Alert posts a plain-text message to the webhook.
func (n *SlackNotifier) Alert(ctx context.Context, text string) error {
	if n.webhookURL == "" {
		logrus.WithField("text", text).Debug("Slack webhook not configured, dropping alert")
		return nil
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
