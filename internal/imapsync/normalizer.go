package imapsync

import (
	"bytes"
	"fmt"
	"net/mail"
	"time"

	"github.com/jaytaylor/html2text"
	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
)

const noSubjectPlaceholder = "(no subject)"

// Normalizer converts raw RFC822 message content into canonical email
// documents.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a new message normalizer
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize parses a raw message into an EmailDocument. Subject, body,
// recipients and date all degrade to safe defaults when absent; only a MIME
// parse failure yields an error, which the caller logs and skips.
func (n *Normalizer) Normalize(accountID, folder string, uid uint32, raw []byte) (*core.EmailDocument, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	subject := env.GetHeader("Subject")
	if subject == "" {
		subject = noSubjectPlaceholder
	}

	body := env.Text
	if body == "" && env.HTML != "" {
		if text, terr := html2text.FromString(env.HTML); terr == nil {
			body = text
		} else {
			n.logger.Debug("Failed to render HTML body", zap.Error(terr))
			body = env.HTML
		}
	}

	to := []string{}
	if addrs, aerr := env.AddressList("To"); aerr == nil {
		for _, addr := range addrs {
			to = append(to, addr.Address)
		}
	}

	date := time.Now()
	if parsed, derr := mail.ParseDate(env.GetHeader("Date")); derr == nil {
		date = parsed
	}

	return &core.EmailDocument{
		ID:         core.DocumentID(accountID, folder, uid),
		AccountID:  accountID,
		Folder:     folder,
		Subject:    subject,
		Body:       body,
		From:       env.GetHeader("From"),
		To:         to,
		Date:       date,
		AICategory: core.CategoryUncategorized,
		IndexedAt:  time.Now(),
	}, nil
}
