package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"fraudsim/internal/model"
)

// Notifier delivers fraud alerts. Delivery is fire-and-forget: callers log
// failures and move on, the transaction outcome is already committed.
type Notifier interface {
	SendFraudAlert(ctx context.Context, txn model.Transaction) error
}

// LogNotifier writes the alert to the log; used when no webhook is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendFraudAlert(ctx context.Context, txn model.Transaction) error {
	if n.logger != nil {
		n.logger.Warn("fraud alert",
			"transaction_id", txn.TransactionID,
			"sender", txn.SenderAccount,
			"status", txn.Status,
			"reason", txn.FraudReason,
		)
	}
	return nil
}

// WebhookNotifier posts the flagged transaction to a configured endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) SendFraudAlert(ctx context.Context, txn model.Transaction) error {
	body, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver alert: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	return nil
}
