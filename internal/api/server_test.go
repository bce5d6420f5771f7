package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
)

type stubIndex struct {
	docs      map[string]*core.EmailDocument
	searchErr error
	results   []*core.EmailDocument
	lastQuery core.SearchQuery
}

func (s *stubIndex) EnsureIndex(ctx context.Context) error { return nil }

func (s *stubIndex) IndexEmail(ctx context.Context, doc *core.EmailDocument) error { return nil }

func (s *stubIndex) UpdateCategory(ctx context.Context, id string, category core.Category) error {
	return nil
}

func (s *stubIndex) GetEmail(ctx context.Context, id string) (*core.EmailDocument, error) {
	return s.docs[id], nil
}

func (s *stubIndex) Search(ctx context.Context, q core.SearchQuery) ([]*core.EmailDocument, error) {
	s.lastQuery = q
	return s.results, s.searchErr
}

type stubLLM struct {
	reply string
}

func (s *stubLLM) CategorizeEmail(ctx context.Context, subject, body string) (core.Category, error) {
	return core.CategoryUncategorized, nil
}

func (s *stubLLM) GenerateReply(ctx context.Context, subject, body, replyContext string) (string, error) {
	if s.reply == "" {
		return "", errors.New("no model")
	}
	return s.reply, nil
}

func (s *stubLLM) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("no model")
}

func newTestServer(index *stubIndex, llm *stubLLM) *Server {
	replies := core.NewReplyService(llm, nil, "", 0, "static", zap.NewNop())
	accounts := []core.AccountConfig{{
		AccountID: "acct",
		Host:      "imap.example.com",
		User:      "user@example.com",
		Pass:      "secret",
		Folders:   []string{"INBOX"},
	}}
	return NewServer(index, replies, nil, accounts, ":0", zap.NewNop())
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&stubIndex{}, &stubLLM{})

	rec := doRequest(s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["time"])
}

func TestAccountsEndpointOmitsCredentials(t *testing.T) {
	s := newTestServer(&stubIndex{}, &stubLLM{})

	rec := doRequest(s, http.MethodGet, "/api/accounts")
	require.Equal(t, http.StatusOK, rec.Code)

	var accounts []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, "acct", accounts[0]["accountId"])
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestSearchEndpointPassesFilters(t *testing.T) {
	index := &stubIndex{results: []*core.EmailDocument{{ID: "acct-INBOX-1"}}}
	s := newTestServer(index, &stubLLM{})

	rec := doRequest(s, http.MethodGet, "/api/emails?q=meeting&accountId=acct&folder=INBOX&size=5&days=7")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "meeting", index.lastQuery.Query)
	assert.Equal(t, "acct", index.lastQuery.AccountID)
	assert.Equal(t, "INBOX", index.lastQuery.Folder)
	assert.Equal(t, 5, index.lastQuery.Size)
	assert.Equal(t, 7, index.lastQuery.SinceDays)

	var docs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	assert.Len(t, docs, 1)
}

func TestSearchEndpointDegradesToEmptyList(t *testing.T) {
	index := &stubIndex{searchErr: errors.New("index down")}
	s := newTestServer(index, &stubLLM{})

	rec := doRequest(s, http.MethodGet, "/api/emails")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestSuggestReplyUnknownIDIs404(t *testing.T) {
	s := newTestServer(&stubIndex{docs: map[string]*core.EmailDocument{}}, &stubLLM{})

	rec := doRequest(s, http.MethodPost, "/api/emails/missing/suggest-reply")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSuggestReplyReturnsGeneratedText(t *testing.T) {
	index := &stubIndex{docs: map[string]*core.EmailDocument{
		"acct-INBOX-1": {ID: "acct-INBOX-1", Subject: "Hi", Body: "Hello"},
	}}
	s := newTestServer(index, &stubLLM{reply: "Sounds great, thank you."})

	rec := doRequest(s, http.MethodPost, "/api/emails/acct-INBOX-1/suggest-reply")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Sounds great, thank you.", body["reply"])
}

func TestSendReplyWithoutSMTPIs503(t *testing.T) {
	index := &stubIndex{docs: map[string]*core.EmailDocument{
		"acct-INBOX-1": {ID: "acct-INBOX-1", From: "lead@example.com"},
	}}
	s := newTestServer(index, &stubLLM{reply: "ok"})

	rec := doRequest(s, http.MethodPost, "/api/emails/acct-INBOX-1/send-reply")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
