package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/adapters/sink"
	"github.com/mikey/onebox/internal/config"
	"github.com/mikey/onebox/internal/core"
)

// SinkFactory creates notification sinks based on configuration
type SinkFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSinkFactory creates a new sink factory
func NewSinkFactory(cfg *config.Config, logger *zap.Logger) *SinkFactory {
	return &SinkFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSinks builds the configured notification sinks. Sinks without a
// configured URL are skipped rather than failing startup.
func (f *SinkFactory) CreateSinks() []core.NotificationSink {
	integrations := f.cfg.GetIntegrations()
	var sinks []core.NotificationSink

	if integrations.SlackWebhookURL != "" {
		sinks = append(sinks, sink.NewSlackSink(integrations.SlackWebhookURL, f.logger))
	} else {
		f.logger.Info("Slack webhook not configured, skipping sink")
	}

	if integrations.WebhookURL != "" {
		sinks = append(sinks, sink.NewWebhookSink(integrations.WebhookURL, f.logger))
	} else {
		f.logger.Info("Generic webhook not configured, skipping sink")
	}

	return sinks
}
