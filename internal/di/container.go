package di

import (
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/adapters/elastic"
	"github.com/mikey/onebox/internal/adapters/qdrant"
	"github.com/mikey/onebox/internal/adapters/smtp"
	"github.com/mikey/onebox/internal/api"
	"github.com/mikey/onebox/internal/bootstrap"
	"github.com/mikey/onebox/internal/config"
	"github.com/mikey/onebox/internal/core"
	"github.com/mikey/onebox/internal/factory"
	"github.com/mikey/onebox/internal/logging"
	"github.com/mikey/onebox/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewSinkFactory); err != nil {
		return nil, err
	}

	// Register LLM client
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return nil, err
	}

	// Register category cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.CategoryCache, error) {
		return f.CreateCategoryCache()
	}); err != nil {
		return nil, err
	}

	// Register cache TTL and enabled flag
	if err := container.Provide(func(f *factory.CacheFactory) (time.Duration, error) {
		return f.GetCacheTTL()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory) bool {
		return f.IsCacheEnabled()
	}); err != nil {
		return nil, err
	}

	// Register index store
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.IndexStore {
		ec := cfg.GetElastic()
		return elastic.NewStore(ec.Endpoint, ec.Username, ec.Password, ec.Index, logger)
	}); err != nil {
		return nil, err
	}

	// Register vector store
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.VectorStore {
		return qdrant.NewStore(cfg.GetQdrant().Endpoint, logger)
	}); err != nil {
		return nil, err
	}

	// Register notification sinks
	if err := container.Provide(func(f *factory.SinkFactory) []core.NotificationSink {
		return f.CreateSinks()
	}); err != nil {
		return nil, err
	}

	// Register email pipeline
	if err := container.Provide(core.NewEmailPipeline); err != nil {
		return nil, err
	}

	// Register reply service
	if err := container.Provide(func(llmClient core.LLMClient, vectors core.VectorStore, cfg *config.Config, logger *zap.Logger) *core.ReplyService {
		qc := cfg.GetQdrant()
		rc := cfg.GetReply()
		return core.NewReplyService(llmClient, vectors, qc.Collection, rc.TopK, rc.Context, logger)
	}); err != nil {
		return nil, err
	}

	// Register bootstrap seeder
	if err := container.Provide(func(index core.IndexStore, vectors core.VectorStore, llmClient core.LLMClient, cfg *config.Config, logger *zap.Logger) *bootstrap.Seeder {
		qc := cfg.GetQdrant()
		return bootstrap.NewSeeder(index, vectors, llmClient, qc.Collection, qc.VectorSize, logger)
	}); err != nil {
		return nil, err
	}

	// Register accounts
	if err := container.Provide(func(cfg *config.Config) ([]core.AccountConfig, error) {
		return cfg.GetAccounts()
	}); err != nil {
		return nil, err
	}

	// Register SMTP sender
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *smtp.Sender {
		sc := cfg.GetSMTP()
		return smtp.NewSender(sc.Host, sc.Port, sc.Username, sc.Password, sc.From, logger)
	}); err != nil {
		return nil, err
	}

	// Register API server
	if err := container.Provide(func(index core.IndexStore, replies *core.ReplyService, sender *smtp.Sender, accounts []core.AccountConfig, cfg *config.Config, logger *zap.Logger) *api.Server {
		return api.NewServer(index, replies, sender, accounts, cfg.GetServer().ListenAddress, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
