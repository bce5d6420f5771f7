package elastic

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

// Store implements core.IndexStore against Elasticsearch-compatible HTTP
// APIs (works with OpenSearch and Zinc as well).
type Store struct {
	endpoint string
	username string
	password string
	index    string
	client   *http.Client
	logger   *zap.Logger
}

// NewStore creates a new search index store
func NewStore(endpoint, username, password, index string, logger *zap.Logger) *Store {
	return &Store{
		endpoint: endpoint,
		username: username,
		password: password,
		index:    index,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// emailMapping is the index mapping for email documents.
var emailMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"id":         map[string]interface{}{"type": "keyword"},
			"accountId":  map[string]interface{}{"type": "keyword"},
			"folder":     map[string]interface{}{"type": "keyword"},
			"subject":    map[string]interface{}{"type": "text"},
			"body":       map[string]interface{}{"type": "text"},
			"from":       map[string]interface{}{"type": "keyword"},
			"to":         map[string]interface{}{"type": "keyword"},
			"date":       map[string]interface{}{"type": "date"},
			"aiCategory": map[string]interface{}{"type": "keyword"},
			"indexedAt":  map[string]interface{}{"type": "date"},
		},
	},
}

// EnsureIndex creates the email index with its mapping unless it already
// exists.
func (s *Store) EnsureIndex(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodHead, "/"+s.index, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	resp, err = s.do(ctx, http.MethodPut, "/"+s.index, emailMapping)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to create index: %s", readError(resp))
	}
	s.logger.Info("Search index created", zap.String("index", s.index))
	return nil
}

// IndexEmail upserts the document keyed by its id. Re-indexing the same id
// overwrites rather than duplicates.
func (s *Store) IndexEmail(ctx context.Context, doc *core.EmailDocument) error {
	path := fmt.Sprintf("/%s/_doc/%s", s.index, url.PathEscape(doc.ID))
	resp, err := s.do(ctx, http.MethodPut, path, doc)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to index document %s: %s", doc.ID, readError(resp))
	}
	return nil
}

// UpdateCategory applies a partial update setting only the aiCategory field.
func (s *Store) UpdateCategory(ctx context.Context, id string, category core.Category) error {
	path := fmt.Sprintf("/%s/_update/%s", s.index, url.PathEscape(id))
	body := map[string]interface{}{
		"doc": map[string]interface{}{
			"aiCategory": category,
		},
	}
	resp, err := s.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to update category for %s: %s", id, readError(resp))
	}
	s.logger.Info("Category updated",
		zap.String("id", id),
		zap.String("category", string(category)))
	return nil
}

// GetEmail fetches one document by id. Returns nil without error when the
// document does not exist.
func (s *Store) GetEmail(ctx context.Context, id string) (*core.EmailDocument, error) {
	path := fmt.Sprintf("/%s/_doc/%s", s.index, url.PathEscape(id))
	resp, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to get document %s: %s", id, readError(resp))
	}

	var result struct {
		Found  bool               `json:"found"`
		Source core.EmailDocument `json:"_source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if !result.Found {
		return nil, nil
	}
	return &result.Source, nil
}

// Search runs a filtered full-text query. Without query text it degrades to
// a pure filter query.
func (s *Store) Search(ctx context.Context, q core.SearchQuery) ([]*core.EmailDocument, error) {
	var must []interface{}
	if q.Query != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Query,
				"fields": []string{"subject", "body"},
			},
		})
	}

	var filter []interface{}
	if q.AccountID != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"accountId": q.AccountID},
		})
	}
	if q.Folder != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"folder": q.Folder},
		})
	}
	if q.SinceDays > 0 {
		from := time.Now().AddDate(0, 0, -q.SinceDays).UTC().Format(time.RFC3339)
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{
				"date": map[string]interface{}{"gte": from},
			},
		})
	}

	boolQuery := map[string]interface{}{"filter": filter}
	if len(must) > 0 {
		boolQuery["must"] = must
	}

	size := q.Size
	if size <= 0 {
		size = 20
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"size":  size,
	}

	resp, err := s.do(ctx, http.MethodPost, "/"+s.index+"/_search", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search failed: %s", readError(resp))
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source core.EmailDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	docs := make([]*core.EmailDocument, 0, len(result.Hits.Hits))
	for i := range result.Hits.Hits {
		docs = append(docs, &result.Hits.Hits[i].Source)
	}
	return docs, nil
}

func (s *Store) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to search index failed: %w", err)
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
