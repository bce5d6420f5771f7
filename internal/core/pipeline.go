package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/metrics"
)

// EmailPipeline is the core service that indexes, classifies and fans out
// incoming email documents. Every step is independently fault-tolerant: a
// failure is logged and the remaining steps still run, so Process never
// returns an error to the fetch loop.
type EmailPipeline struct {
	index        IndexStore
	llmClient    LLMClient
	cache        CategoryCache
	sinks        []NotificationSink
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
}

// NewEmailPipeline creates a new classification and indexing pipeline
func NewEmailPipeline(
	index IndexStore,
	llmClient LLMClient,
	cache CategoryCache,
	sinks []NotificationSink,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
) *EmailPipeline {
	return &EmailPipeline{
		index:        index,
		llmClient:    llmClient,
		cache:        cache,
		sinks:        sinks,
		logger:       logger,
		cacheEnabled: cacheEnabled,
		cacheTTL:     cacheTTL,
	}
}

// Process runs one document through upsert, classification and category
// update, then dispatches to the integrations when the trigger category
// was assigned.
func (p *EmailPipeline) Process(ctx context.Context, doc *EmailDocument) {
	if err := p.index.IndexEmail(ctx, doc); err != nil {
		p.logger.Error("Failed to index email",
			zap.String("id", doc.ID),
			zap.Error(err))
	} else {
		metrics.EmailsIndexed.Inc()
		p.logger.Info("Email indexed", zap.String("id", doc.ID))
	}

	category := p.classify(ctx, doc)
	doc.AICategory = category
	metrics.Classifications.WithLabelValues(string(category)).Inc()

	if err := p.index.UpdateCategory(ctx, doc.ID, category); err != nil {
		p.logger.Error("Failed to update category",
			zap.String("id", doc.ID),
			zap.String("category", string(category)),
			zap.Error(err))
	}

	if category == TriggerCategory {
		p.Dispatch(ctx, doc)
	}
}

// classify obtains a category label for the document, consulting the cache
// first so a re-fetched message does not hit the classifier again. Any
// classifier failure degrades to Uncategorized.
func (p *EmailPipeline) classify(ctx context.Context, doc *EmailDocument) Category {
	if p.cacheEnabled {
		if entry, err := p.cache.Get(ctx, doc.ID); err == nil {
			p.logger.Debug("Classification cache hit", zap.String("id", doc.ID))
			return entry.Category
		}
	}

	category, err := p.llmClient.CategorizeEmail(ctx, doc.Subject, doc.Body)
	if err != nil {
		p.logger.Error("Failed to categorize email",
			zap.String("id", doc.ID),
			zap.Error(err))
		return CategoryUncategorized
	}

	// Only real labels are worth remembering; an Uncategorized result means
	// the classifier punted and the next encounter should retry.
	if p.cacheEnabled && category != CategoryUncategorized {
		entry := &CategoryEntry{
			EmailID:      doc.ID,
			Category:     category,
			ClassifiedAt: time.Now(),
			ExpiresAt:    time.Now().Add(p.cacheTTL),
		}
		if err := p.cache.Set(ctx, entry); err != nil {
			p.logger.Error("Failed to update classification cache", zap.Error(err))
		}
	}

	return category
}

// Dispatch fans the document out to every configured sink. Sinks are
// attempted independently; one failing never stops another.
func (p *EmailPipeline) Dispatch(ctx context.Context, doc *EmailDocument) {
	for _, sink := range p.sinks {
		if err := sink.Notify(ctx, doc); err != nil {
			metrics.SinkFailures.WithLabelValues(sink.Name()).Inc()
			p.logger.Error("Failed to notify integration",
				zap.String("sink", sink.Name()),
				zap.String("id", doc.ID),
				zap.Error(err))
			continue
		}
		p.logger.Info("Integration notified",
			zap.String("sink", sink.Name()),
			zap.String("id", doc.ID))
	}
}
