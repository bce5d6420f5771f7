package bootstrap

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
)

// seedTexts is the starter knowledge base for reply suggestion. Deployments
// replace these through the vector store directly.
var seedTexts = []string{
	"I am applying for a job position. If the lead is interested, share the meeting booking link: https://cal.com/example",
	"Our product helps businesses manage email outreach effectively with AI-powered categorization and real-time synchronization.",
	"For partnership inquiries, schedule a meeting to discuss opportunities. Use the calendar link: https://cal.com/example",
}

// Seeder prepares external storage on startup
type Seeder struct {
	index      core.IndexStore
	vectors    core.VectorStore
	llmClient  core.LLMClient
	collection string
	vectorSize int
	logger     *zap.Logger
}

// NewSeeder creates a new bootstrap seeder
func NewSeeder(index core.IndexStore, vectors core.VectorStore, llmClient core.LLMClient, collection string, vectorSize int, logger *zap.Logger) *Seeder {
	return &Seeder{
		index:      index,
		vectors:    vectors,
		llmClient:  llmClient,
		collection: collection,
		vectorSize: vectorSize,
		logger:     logger,
	}
}

// Run creates the search index and the vector collection, then embeds and
// upserts the seed snippets. Failures are logged but never fatal so the
// service can start while a backing store is still coming up.
func (s *Seeder) Run(ctx context.Context) {
	if err := s.index.EnsureIndex(ctx); err != nil {
		s.logger.Warn("Failed to ensure search index", zap.Error(err))
	}

	if err := s.vectors.EnsureCollection(ctx, s.collection, s.vectorSize); err != nil {
		s.logger.Warn("Failed to ensure vector collection", zap.Error(err))
		return
	}

	snippets := make([]core.ContextSnippet, 0, len(seedTexts))
	for _, text := range seedTexts {
		vector, err := s.llmClient.EmbedText(ctx, text)
		if err != nil {
			s.logger.Warn("Failed to embed seed snippet", zap.Error(err))
			continue
		}
		if len(vector) == 0 {
			continue
		}
		snippets = append(snippets, core.ContextSnippet{
			ID:     uuid.NewString(),
			Text:   text,
			Vector: vector,
		})
	}

	if len(snippets) == 0 {
		s.logger.Warn("No seed snippets embedded, reply suggestion will rely on static context")
		return
	}

	if err := s.vectors.UpsertSnippets(ctx, s.collection, snippets); err != nil {
		s.logger.Warn("Failed to upsert seed snippets", zap.Error(err))
		return
	}

	s.logger.Info("Seeded vector collection",
		zap.String("collection", s.collection),
		zap.Int("snippets", len(snippets)))
}
