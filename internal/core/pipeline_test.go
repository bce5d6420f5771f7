package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeIndex struct {
	docs        map[string]*EmailDocument
	indexCalls  int
	updateCalls int
	indexErr    error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]*EmailDocument)}
}

func (f *fakeIndex) EnsureIndex(ctx context.Context) error { return nil }

func (f *fakeIndex) IndexEmail(ctx context.Context, doc *EmailDocument) error {
	f.indexCalls++
	if f.indexErr != nil {
		return f.indexErr
	}
	copied := *doc
	f.docs[doc.ID] = &copied
	return nil
}

func (f *fakeIndex) UpdateCategory(ctx context.Context, id string, category Category) error {
	f.updateCalls++
	if doc, ok := f.docs[id]; ok {
		doc.AICategory = category
	}
	return nil
}

func (f *fakeIndex) GetEmail(ctx context.Context, id string) (*EmailDocument, error) {
	return f.docs[id], nil
}

func (f *fakeIndex) Search(ctx context.Context, q SearchQuery) ([]*EmailDocument, error) {
	return nil, nil
}

type fakeLLM struct {
	category      Category
	categorizeErr error
	classifyCalls int
	reply         string
	replyErr      error
	replyCalls    int
	lastContext   string
	vector        []float32
	embedErr      error
	embedCalls    int
}

func (f *fakeLLM) CategorizeEmail(ctx context.Context, subject, body string) (Category, error) {
	f.classifyCalls++
	return f.category, f.categorizeErr
}

func (f *fakeLLM) GenerateReply(ctx context.Context, subject, body, replyContext string) (string, error) {
	f.replyCalls++
	f.lastContext = replyContext
	return f.reply, f.replyErr
}

func (f *fakeLLM) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.embedCalls++
	return f.vector, f.embedErr
}

type fakeCache struct {
	entries map[string]*CategoryEntry
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*CategoryEntry)}
}

func (f *fakeCache) Get(ctx context.Context, emailID string) (*CategoryEntry, error) {
	entry, ok := f.entries[emailID]
	if !ok {
		return nil, errors.New("not found")
	}
	return entry, nil
}

func (f *fakeCache) Set(ctx context.Context, entry *CategoryEntry) error {
	f.sets++
	f.entries[entry.EmailID] = entry
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, emailID string) error {
	delete(f.entries, emailID)
	return nil
}

func (f *fakeCache) Cleanup(ctx context.Context) error { return nil }

type fakeSink struct {
	name  string
	err   error
	calls int
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Notify(ctx context.Context, doc *EmailDocument) error {
	f.calls++
	return f.err
}

func testDoc() *EmailDocument {
	return &EmailDocument{
		ID:        DocumentID("acct", "INBOX", 7),
		AccountID: "acct",
		Folder:    "INBOX",
		Subject:   "Hello",
		Body:      "World",
		From:      "sender@example.com",
		Date:      time.Now(),
	}
}

func TestProcessIndexesAndClassifies(t *testing.T) {
	index := newFakeIndex()
	llm := &fakeLLM{category: CategoryNotInterested}
	pipeline := NewEmailPipeline(index, llm, newFakeCache(), nil, zap.NewNop(), false, 0)

	doc := testDoc()
	pipeline.Process(context.Background(), doc)

	assert.Equal(t, CategoryNotInterested, doc.AICategory)
	assert.Equal(t, 1, index.indexCalls)
	assert.Equal(t, 1, index.updateCalls)
	assert.Equal(t, CategoryNotInterested, index.docs[doc.ID].AICategory)
}

func TestProcessReindexSameIDIsIdempotent(t *testing.T) {
	index := newFakeIndex()
	llm := &fakeLLM{category: CategorySpam}
	pipeline := NewEmailPipeline(index, llm, newFakeCache(), nil, zap.NewNop(), false, 0)

	pipeline.Process(context.Background(), testDoc())
	pipeline.Process(context.Background(), testDoc())

	assert.Len(t, index.docs, 1)
}

func TestProcessClassifierFailureDegradesToUncategorized(t *testing.T) {
	index := newFakeIndex()
	llm := &fakeLLM{categorizeErr: errors.New("model unavailable")}
	slack := &fakeSink{name: "slack"}
	pipeline := NewEmailPipeline(index, llm, newFakeCache(), []NotificationSink{slack}, zap.NewNop(), false, 0)

	doc := testDoc()
	pipeline.Process(context.Background(), doc)

	assert.Equal(t, CategoryUncategorized, doc.AICategory)
	assert.Equal(t, 1, index.updateCalls)
	assert.Zero(t, slack.calls)
}

func TestProcessIndexFailureStillClassifies(t *testing.T) {
	index := newFakeIndex()
	index.indexErr = errors.New("index down")
	llm := &fakeLLM{category: CategoryOutOfOffice}
	pipeline := NewEmailPipeline(index, llm, newFakeCache(), nil, zap.NewNop(), false, 0)

	doc := testDoc()
	pipeline.Process(context.Background(), doc)

	assert.Equal(t, CategoryOutOfOffice, doc.AICategory)
	assert.Equal(t, 1, llm.classifyCalls)
}

func TestProcessInterestedDispatchesToAllSinks(t *testing.T) {
	index := newFakeIndex()
	llm := &fakeLLM{category: CategoryInterested}
	failing := &fakeSink{name: "slack", err: errors.New("rate limited")}
	working := &fakeSink{name: "webhook"}
	pipeline := NewEmailPipeline(index, llm, newFakeCache(), []NotificationSink{failing, working}, zap.NewNop(), false, 0)

	pipeline.Process(context.Background(), testDoc())

	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, working.calls)
}

func TestProcessCacheHitSkipsClassifier(t *testing.T) {
	index := newFakeIndex()
	llm := &fakeLLM{category: CategoryInterested}
	cache := newFakeCache()
	pipeline := NewEmailPipeline(index, llm, cache, nil, zap.NewNop(), true, time.Hour)

	pipeline.Process(context.Background(), testDoc())
	assert.Equal(t, 1, llm.classifyCalls)
	assert.Equal(t, 1, cache.sets)

	// Second pass over the same document id must not reach the classifier.
	pipeline.Process(context.Background(), testDoc())
	assert.Equal(t, 1, llm.classifyCalls)
}

func TestProcessUncategorizedIsNeverCached(t *testing.T) {
	index := newFakeIndex()
	llm := &fakeLLM{categorizeErr: errors.New("timeout")}
	cache := newFakeCache()
	pipeline := NewEmailPipeline(index, llm, cache, nil, zap.NewNop(), true, time.Hour)

	pipeline.Process(context.Background(), testDoc())

	assert.Zero(t, cache.sets)

	// Retry after the classifier recovers should classify again.
	llm.categorizeErr = nil
	llm.category = CategoryMeetingBooked
	doc := testDoc()
	pipeline.Process(context.Background(), doc)
	assert.Equal(t, CategoryMeetingBooked, doc.AICategory)
	assert.Equal(t, 1, cache.sets)
}
