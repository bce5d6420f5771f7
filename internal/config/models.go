package config

import (
	"fmt"
	"time"

	"github.com/mikey/onebox/internal/core"
)

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey         string
	ModelName      string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float32
	TopP           float32
	MaxBodySize    int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey         string
	ModelName      string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float32
	TopP           float32
	MaxBodySize    int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region           string
	ModelID          string
	EmbeddingModelID string
	MaxTokens        int
	Temperature      float32
	TopP             float32
	MaxBodySize      int
}

// ElasticConfig represents the configuration for the Elasticsearch index
type ElasticConfig struct {
	Endpoint string
	Username string
	Password string
	Index    string
}

// QdrantConfig represents the configuration for the Qdrant vector store
type QdrantConfig struct {
	Endpoint   string
	Collection string
	VectorSize int
}

// SyncConfig represents the configuration for mailbox synchronization
type SyncConfig struct {
	BackfillWindow   time.Duration
	WatchdogInterval time.Duration
}

// ReplyConfig represents the configuration for reply suggestion
type ReplyConfig struct {
	Context string
	TopK    int
}

// IntegrationsConfig represents the configuration for notification sinks
type IntegrationsConfig struct {
	SlackWebhookURL string
	WebhookURL      string
}

// ServerConfig represents the configuration for the HTTP API server
type ServerConfig struct {
	ListenAddress string
}

// SMTPConfig represents the configuration for outbound reply delivery
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:         c.GetString("gemini.api_key"),
		ModelName:      c.GetString("gemini.model_name"),
		EmbeddingModel: c.GetString("gemini.embedding_model"),
		MaxTokens:      c.GetInt("gemini.max_tokens"),
		Temperature:    float32(c.GetFloat64("gemini.temperature")),
		TopP:           float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize:    c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:         c.GetString("openai.api_key"),
		ModelName:      c.GetString("openai.model_name"),
		EmbeddingModel: c.GetString("openai.embedding_model"),
		MaxTokens:      c.GetInt("openai.max_tokens"),
		Temperature:    float32(c.GetFloat64("openai.temperature")),
		TopP:           float32(c.GetFloat64("openai.top_p")),
		MaxBodySize:    c.GetInt("openai.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:           c.GetString("bedrock.region"),
		ModelID:          c.GetString("bedrock.model_id"),
		EmbeddingModelID: c.GetString("bedrock.embedding_model_id"),
		MaxTokens:        c.GetInt("bedrock.max_tokens"),
		Temperature:      float32(c.GetFloat64("bedrock.temperature")),
		TopP:             float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize:      c.GetInt("bedrock.max_body_size"),
	}
}

// GetElastic returns the Elasticsearch configuration
func (c *Config) GetElastic() ElasticConfig {
	return ElasticConfig{
		Endpoint: c.GetString("elasticsearch.endpoint"),
		Username: c.GetString("elasticsearch.username"),
		Password: c.GetString("elasticsearch.password"),
		Index:    c.GetString("elasticsearch.index"),
	}
}

// GetQdrant returns the Qdrant configuration
func (c *Config) GetQdrant() QdrantConfig {
	return QdrantConfig{
		Endpoint:   c.GetString("qdrant.endpoint"),
		Collection: c.GetString("qdrant.collection"),
		VectorSize: c.GetInt("qdrant.vector_size"),
	}
}

// GetSync returns the mailbox synchronization configuration
func (c *Config) GetSync() SyncConfig {
	watchdog, err := c.GetDuration("sync.watchdog_interval")
	if err != nil {
		watchdog = 25 * time.Minute
	}
	days := c.GetInt("sync.backfill_days")
	if days <= 0 {
		days = 30
	}
	return SyncConfig{
		BackfillWindow:   time.Duration(days) * 24 * time.Hour,
		WatchdogInterval: watchdog,
	}
}

// GetReply returns the reply suggestion configuration
func (c *Config) GetReply() ReplyConfig {
	return ReplyConfig{
		Context: c.GetString("reply.context"),
		TopK:    c.GetInt("reply.top_k"),
	}
}

// GetIntegrations returns the notification sink configuration
func (c *Config) GetIntegrations() IntegrationsConfig {
	return IntegrationsConfig{
		SlackWebhookURL: c.GetString("integrations.slack_webhook_url"),
		WebhookURL:      c.GetString("integrations.webhook_url"),
	}
}

// GetServer returns the HTTP API server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress: c.GetString("server.listen_address"),
	}
}

// GetSMTP returns the outbound SMTP configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Host:     c.GetString("smtp.host"),
		Port:     c.GetInt("smtp.port"),
		Username: c.GetString("smtp.username"),
		Password: c.GetString("smtp.password"),
		From:     c.GetString("smtp.from"),
	}
}

// GetAccounts returns the configured IMAP accounts. A single account may
// also be configured through flat imap.* keys, which is convenient for
// environment-variable only deployments.
func (c *Config) GetAccounts() ([]core.AccountConfig, error) {
	var accounts []core.AccountConfig
	if err := c.v.UnmarshalKey("accounts", &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts: %w", err)
	}

	if len(accounts) == 0 && c.GetString("imap.host") != "" {
		accounts = append(accounts, core.AccountConfig{
			AccountID: c.GetString("imap.account_id"),
			Host:      c.GetString("imap.host"),
			Port:      c.GetInt("imap.port"),
			Secure:    c.GetBool("imap.secure"),
			User:      c.GetString("imap.user"),
			Pass:      c.GetString("imap.pass"),
			Folders:   c.GetStringSlice("imap.folders"),
		})
	}

	for i := range accounts {
		if accounts[i].AccountID == "" {
			accounts[i].AccountID = accounts[i].User
		}
		if accounts[i].Port == 0 {
			accounts[i].Port = 993
		}
		if len(accounts[i].Folders) == 0 {
			accounts[i].Folders = []string{"INBOX"}
		}
	}
	return accounts, nil
}
