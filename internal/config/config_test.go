package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, "gemini", cfg.GetLLM().Provider)
	assert.Equal(t, "http://localhost:9200", cfg.GetElastic().Endpoint)
	assert.Equal(t, "emails", cfg.GetElastic().Index)
	assert.Equal(t, "product_data", cfg.GetQdrant().Collection)
	assert.Equal(t, 768, cfg.GetQdrant().VectorSize)
	assert.Equal(t, ":4000", cfg.GetServer().ListenAddress)
	assert.Equal(t, 3, cfg.GetReply().TopK)
	assert.Contains(t, cfg.GetReply().Context, "https://cal.com/example")

	sync := cfg.GetSync()
	assert.Equal(t, 30*24*time.Hour, sync.BackfillWindow)
	assert.Equal(t, 25*time.Minute, sync.WatchdogInterval)
}

func TestGetAccountsFromList(t *testing.T) {
	v := NewEmptyViper()
	v.Set("accounts", []map[string]interface{}{
		{
			"account_id": "work",
			"host":       "imap.example.com",
			"user":       "me@example.com",
			"pass":       "secret",
			"folders":    []string{"INBOX", "Archive"},
		},
		{
			"host": "imap.other.com",
			"user": "other@example.com",
		},
	})
	cfg := NewFromViper(v)

	accounts, err := cfg.GetAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	assert.Equal(t, "work", accounts[0].AccountID)
	assert.Equal(t, []string{"INBOX", "Archive"}, accounts[0].Folders)
	assert.Equal(t, 993, accounts[0].Port)

	// Missing fields fall back to the user id, port 993 and INBOX.
	assert.Equal(t, "other@example.com", accounts[1].AccountID)
	assert.Equal(t, 993, accounts[1].Port)
	assert.Equal(t, []string{"INBOX"}, accounts[1].Folders)
}

func TestGetAccountsFlatKeysFallback(t *testing.T) {
	v := NewEmptyViper()
	v.Set("imap.host", "imap.example.com")
	v.Set("imap.user", "solo@example.com")
	v.Set("imap.pass", "secret")
	v.Set("imap.secure", true)
	cfg := NewFromViper(v)

	accounts, err := cfg.GetAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "solo@example.com", accounts[0].AccountID)
	assert.True(t, accounts[0].Secure)
	assert.Equal(t, []string{"INBOX"}, accounts[0].Folders)
}

func TestNewFromFileReadsTheGivenPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.yaml")
	content := "llm:\n  provider: openai\nserver:\n  listen_address: \":9999\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.GetLLM().Provider)
	assert.Equal(t, ":9999", cfg.GetServer().ListenAddress)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, "emails", cfg.GetElastic().Index)
}

func TestNewFromFileMissingFileIsAnError(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestGetAccountsEmpty(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	accounts, err := cfg.GetAccounts()
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
