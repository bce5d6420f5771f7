package imapsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
)

type fakeSession struct {
	mu           sync.Mutex
	usable       bool
	connectErr   error
	logoutErr    error
	fetchErr     error
	messages     map[string][]RawMessage
	unseen       map[string][]RawMessage
	connectCalls int
	logoutCalls  int
	sinceCalls   int
	unseenCalls  int
	updates      chan string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		messages: make(map[string][]RawMessage),
		unseen:   make(map[string][]RawMessage),
		updates:  make(chan string, 8),
	}
}

func (f *fakeSession) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.usable = true
	return nil
}

func (f *fakeSession) Logout() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	f.usable = false
	return f.logoutErr
}

func (f *fakeSession) Usable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usable
}

func (f *fakeSession) FetchSince(folder string, since time.Time) ([]RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinceCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.messages[folder], nil
}

func (f *fakeSession) FetchUnseen(folder string) ([]RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unseenCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.unseen[folder], nil
}

func (f *fakeSession) Updates() <-chan string { return f.updates }

type recordingProcessor struct {
	mu   sync.Mutex
	docs []*core.EmailDocument
}

func (r *recordingProcessor) Process(ctx context.Context, doc *core.EmailDocument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
}

func (r *recordingProcessor) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

func testAccount() core.AccountConfig {
	return core.AccountConfig{
		AccountID: "acct",
		Host:      "imap.example.com",
		User:      "acct",
		Folders:   []string{"INBOX"},
	}
}

func newTestManager(session Session, processor Processor) *Manager {
	return NewManager(testAccount(), session, processor, NewNormalizer(zap.NewNop()),
		zap.NewNop(), 30*24*time.Hour, time.Hour)
}

func TestStartConnectFailureIsReturned(t *testing.T) {
	session := newFakeSession()
	session.connectErr = errors.New("dial refused")
	m := newTestManager(session, &recordingProcessor{})

	err := m.Start(context.Background())
	require.Error(t, err)
}

func TestStartBackfillsEveryFolder(t *testing.T) {
	session := newFakeSession()
	session.messages["INBOX"] = []RawMessage{
		{UID: 1, Raw: []byte(plainMessage)},
		{UID: 2, Raw: []byte(htmlMessage)},
	}
	processor := &recordingProcessor{}
	m := newTestManager(session, processor)

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	assert.Equal(t, 1, session.sinceCalls)
	assert.Equal(t, 2, processor.count())
}

func TestBackfillSkipsUnparseableMessages(t *testing.T) {
	session := newFakeSession()
	session.messages["INBOX"] = []RawMessage{
		{UID: 1, Raw: nil},
		{UID: 2, Raw: []byte(plainMessage)},
	}
	processor := &recordingProcessor{}
	m := newTestManager(session, processor)

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	assert.Equal(t, 1, processor.count())
}

func TestFolderLockReleasedAfterFetchError(t *testing.T) {
	session := newFakeSession()
	session.fetchErr = errors.New("connection reset mid-fetch")
	m := newTestManager(session, &recordingProcessor{})

	err := m.backfillFolder(context.Background(), "INBOX")
	require.Error(t, err)

	// The folder must be immediately lockable again.
	assert.True(t, m.folderLock("INBOX").TryLock())
}

func TestUpdateEventTriggersUnseenFetch(t *testing.T) {
	session := newFakeSession()
	session.unseen["INBOX"] = []RawMessage{{UID: 9, Raw: []byte(plainMessage)}}
	processor := &recordingProcessor{}
	m := newTestManager(session, processor)

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	session.updates <- "INBOX"

	assert.Eventually(t, func() bool {
		return processor.count() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWatchdogNoopWhenUsable(t *testing.T) {
	session := newFakeSession()
	session.usable = true
	m := newTestManager(session, &recordingProcessor{})

	m.watchdogTick(context.Background())

	assert.Zero(t, session.logoutCalls)
	assert.Zero(t, session.connectCalls)
}

func TestWatchdogReconnectsAndResyncs(t *testing.T) {
	session := newFakeSession()
	session.usable = false
	session.messages["INBOX"] = []RawMessage{{UID: 3, Raw: []byte(plainMessage)}}
	processor := &recordingProcessor{}
	m := newTestManager(session, processor)

	m.watchdogTick(context.Background())

	assert.Equal(t, 1, session.logoutCalls)
	assert.Equal(t, 1, session.connectCalls)
	assert.Equal(t, 1, session.sinceCalls)
	assert.Equal(t, 1, processor.count())
}

func TestWatchdogSwallowsLogoutError(t *testing.T) {
	session := newFakeSession()
	session.usable = false
	session.logoutErr = errors.New("already gone")
	m := newTestManager(session, &recordingProcessor{})

	m.watchdogTick(context.Background())

	assert.Equal(t, 1, session.logoutCalls)
	assert.Equal(t, 1, session.connectCalls)
}

func TestWatchdogRetriesOnNextTickAfterFailedReconnect(t *testing.T) {
	session := newFakeSession()
	session.usable = false
	session.connectErr = errors.New("still down")
	m := newTestManager(session, &recordingProcessor{})

	m.watchdogTick(context.Background())
	assert.Equal(t, 1, session.connectCalls)
	assert.Zero(t, session.sinceCalls)

	// Server comes back; the next tick must succeed and resync.
	session.mu.Lock()
	session.connectErr = nil
	session.mu.Unlock()

	m.watchdogTick(context.Background())
	assert.Equal(t, 2, session.connectCalls)
	assert.Equal(t, 1, session.sinceCalls)
}

func TestStopIsIdempotent(t *testing.T) {
	session := newFakeSession()
	m := newTestManager(session, &recordingProcessor{})
	require.NoError(t, m.Start(context.Background()))

	m.Stop()
	m.Stop()

	assert.Equal(t, 2, session.logoutCalls)
}
