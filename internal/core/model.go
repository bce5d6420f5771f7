package core

import (
	"fmt"
	"time"
)

// Category is the closed set of labels the classifier may assign to an email.
type Category string

const (
	CategoryInterested    Category = "Interested"
	CategoryMeetingBooked Category = "Meeting Booked"
	CategoryNotInterested Category = "Not Interested"
	CategorySpam          Category = "Spam"
	CategoryOutOfOffice   Category = "Out of Office"
	CategoryUncategorized Category = "Uncategorized"
)

// Categories lists the labels the classifier may choose from. Uncategorized
// is deliberately absent: it is the initial and failure value, never a
// classifier output.
var Categories = []Category{
	CategoryInterested,
	CategoryMeetingBooked,
	CategoryNotInterested,
	CategorySpam,
	CategoryOutOfOffice,
}

// TriggerCategory is the single label that fans out to notification sinks.
const TriggerCategory = CategoryInterested

// ParseCategory validates a raw classifier label against the closed set.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	if s == string(CategoryUncategorized) {
		return CategoryUncategorized, nil
	}
	return CategoryUncategorized, fmt.Errorf("unknown category %q", s)
}

// EmailDocument is the canonical unit of work flowing through the pipeline
// and stored in the search index.
type EmailDocument struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"accountId"`
	Folder     string    `json:"folder"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	From       string    `json:"from"`
	To         []string  `json:"to"`
	Date       time.Time `json:"date"`
	AICategory Category  `json:"aiCategory"`
	IndexedAt  time.Time `json:"indexedAt"`
}

// DocumentID derives the stable index id for a message. The same account,
// folder and server-assigned uid always map to the same id, which is what
// makes re-fetching idempotent.
func DocumentID(accountID, folder string, uid uint32) string {
	return fmt.Sprintf("%s-%s-%d", accountID, folder, uid)
}

// AccountConfig is the static descriptor of one watched mailbox.
type AccountConfig struct {
	AccountID string   `mapstructure:"account_id"`
	Host      string   `mapstructure:"host"`
	Port      int      `mapstructure:"port"`
	Secure    bool     `mapstructure:"secure"`
	User      string   `mapstructure:"user"`
	Pass      string   `mapstructure:"pass"`
	Folders   []string `mapstructure:"folders"`
}

// CategoryEntry is a cached classification result for one document.
type CategoryEntry struct {
	EmailID      string
	Category     Category
	ClassifiedAt time.Time
	ExpiresAt    time.Time
}

// SearchQuery is a filtered, optionally relevance-ranked index query.
type SearchQuery struct {
	Query     string
	AccountID string
	Folder    string
	Size      int
	SinceDays int
}

// ContextSnippet is one stored RAG context item with its embedding.
type ContextSnippet struct {
	ID     string
	Text   string
	Vector []float32
}
