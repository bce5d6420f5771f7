package core

import (
	"context"
)

// LLMClient defines the interface for interacting with the inference provider
type LLMClient interface {
	// CategorizeEmail assigns one of the closed category labels to an email
	CategorizeEmail(ctx context.Context, subject, body string) (Category, error)

	// GenerateReply drafts a reply to an email given supporting context.
	// An empty string is a valid result and means the model produced nothing.
	GenerateReply(ctx context.Context, subject, body, replyContext string) (string, error)

	// EmbedText computes an embedding vector for the given text
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// IndexStore defines the interface for the email search index
type IndexStore interface {
	// EnsureIndex creates the index with its mapping if it does not exist
	EnsureIndex(ctx context.Context) error

	// IndexEmail upserts a document keyed by its id
	IndexEmail(ctx context.Context, doc *EmailDocument) error

	// UpdateCategory applies a partial update touching only aiCategory
	UpdateCategory(ctx context.Context, id string, category Category) error

	// GetEmail fetches a single document by id
	GetEmail(ctx context.Context, id string) (*EmailDocument, error)

	// Search returns documents matching the query, relevance-ranked when
	// query text is present
	Search(ctx context.Context, q SearchQuery) ([]*EmailDocument, error)
}

// VectorStore defines the interface for the nearest-neighbor snippet store
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist
	EnsureCollection(ctx context.Context, name string, vectorSize int) error

	// UpsertSnippets stores snippets with their embeddings
	UpsertSnippets(ctx context.Context, collection string, snippets []ContextSnippet) error

	// SearchSimilar returns the text payloads of the nearest stored
	// snippets, nearest first
	SearchSimilar(ctx context.Context, collection string, vector []float32, limit int) ([]string, error)
}

// NotificationSink is one downstream integration target
type NotificationSink interface {
	// Name identifies the sink in logs and metrics
	Name() string

	// Notify delivers a classified document to the integration
	Notify(ctx context.Context, doc *EmailDocument) error
}

// CategoryCache defines the interface for caching classification results
type CategoryCache interface {
	// Get retrieves a cached entry for a document id
	Get(ctx context.Context, emailID string) (*CategoryEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CategoryEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, emailID string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
