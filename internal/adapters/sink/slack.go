package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
)

// SlackSink posts a short notification message to a Slack incoming webhook.
type SlackSink struct {
	webhookURL string
	client     *http.Client
	logger     *zap.Logger
}

// NewSlackSink creates a new Slack notification sink
func NewSlackSink(webhookURL string, logger *zap.Logger) *SlackSink {
	return &SlackSink{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Name returns the sink name used in logs and metrics
func (s *SlackSink) Name() string {
	return "slack"
}

// Notify posts the lead notification to Slack
func (s *SlackSink) Notify(ctx context.Context, doc *core.EmailDocument) error {
	payload := map[string]string{
		"text": fmt.Sprintf("New Interested Lead: %s from %s", doc.Subject, doc.From),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, string(msg))
	}

	s.logger.Debug("Posted slack notification", zap.String("email_id", doc.ID))
	return nil
}
