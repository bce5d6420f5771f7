package sink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
)

func leadDoc() *core.EmailDocument {
	return &core.EmailDocument{
		ID:         "acct-INBOX-12",
		AccountID:  "acct",
		Folder:     "INBOX",
		Subject:    "Re: your application",
		From:       "recruiter@example.com",
		AICategory: core.CategoryInterested,
	}
}

func TestSlackSinkPayload(t *testing.T) {
	var gotBody map[string]interface{}
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewSlackSink(server.URL, zap.NewNop())
	require.Equal(t, "slack", s.Name())
	require.NoError(t, s.Notify(context.Background(), leadDoc()))

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "New Interested Lead: Re: your application from recruiter@example.com", gotBody["text"])
	assert.Len(t, gotBody, 1)
}

func TestSlackSinkNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer server.Close()

	s := NewSlackSink(server.URL, zap.NewNop())
	err := s.Notify(context.Background(), leadDoc())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestWebhookSinkPayload(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewWebhookSink(server.URL, zap.NewNop())
	require.Equal(t, "webhook", s.Name())
	require.NoError(t, s.Notify(context.Background(), leadDoc()))

	assert.Equal(t, "InterestedLead", gotBody["event"])
	email := gotBody["email"].(map[string]interface{})
	assert.Equal(t, "acct-INBOX-12", email["id"])
	assert.Equal(t, "Interested", email["aiCategory"])
}

func TestWebhookSinkNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	s := NewWebhookSink(server.URL, zap.NewNop())
	assert.Error(t, s.Notify(context.Background(), leadDoc()))
}
