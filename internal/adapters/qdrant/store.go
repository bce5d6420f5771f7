package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
)

// Store implements core.VectorStore over the Qdrant REST API.
type Store struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewStore creates a new vector store client
func NewStore(endpoint string, logger *zap.Logger) *Store {
	return &Store{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// EnsureCollection creates a cosine-distance collection of the given
// dimension. An already-existing collection is not an error.
func (s *Store) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	resp, err := s.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(name), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Qdrant answers 409 when the collection already exists.
	if resp.StatusCode == http.StatusConflict {
		s.logger.Info("Vector collection already exists", zap.String("collection", name))
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to create collection %s: %s", name, readError(resp))
	}
	s.logger.Info("Vector collection created", zap.String("collection", name))
	return nil
}

// UpsertSnippets stores snippets with their embeddings, keyed by snippet id.
func (s *Store) UpsertSnippets(ctx context.Context, collection string, snippets []core.ContextSnippet) error {
	points := make([]map[string]interface{}, 0, len(snippets))
	for _, snippet := range snippets {
		points = append(points, map[string]interface{}{
			"id":     snippet.ID,
			"vector": snippet.Vector,
			"payload": map[string]interface{}{
				"text": snippet.Text,
			},
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(collection))
	resp, err := s.do(ctx, http.MethodPut, path, map[string]interface{}{"points": points})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to upsert points into %s: %s", collection, readError(resp))
	}
	s.logger.Info("Stored context snippets",
		zap.String("collection", collection),
		zap.Int("count", len(snippets)))
	return nil
}

// SearchSimilar returns the text payloads of the nearest snippets,
// nearest-first.
func (s *Store) SearchSimilar(ctx context.Context, collection string, vector []float32, limit int) ([]string, error) {
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(collection))
	resp, err := s.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vector search in %s failed: %s", collection, readError(resp))
	}

	var result struct {
		Result []struct {
			Payload struct {
				Text string `json:"text"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	texts := make([]string, 0, len(result.Result))
	for _, hit := range result.Result {
		if hit.Payload.Text != "" {
			texts = append(texts, hit.Payload.Text)
		}
	}
	return texts, nil
}

func (s *Store) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to vector store failed: %w", err)
	}
	return resp, nil
}

func readError(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if err != nil || len(data) == 0 {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, data)
}
