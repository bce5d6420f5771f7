package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/metrics"
)

// Canned replies used by the terminal template fallback.
const (
	replyGeneric    = "Thank you for your email. I will get back to you soon."
	replyOnboarding = "Thank you for the welcome message! I'm excited to start using the platform for my email outreach."
	replyScheduling = "I'd be happy to schedule a meeting. Please let me know your availability next week. You can book a slot here: https://cal.com/example"
	replyOutOfOffice = "Thanks for letting me know you're out of office. I'll follow up when you return."
	replyInvoice    = "Thank you for the invoice. I will review it and process payment within the due date."
	replyFollowUp   = "Thank you for following up. I've reviewed the proposal and will get back to you with my feedback soon."
	replyDemo       = "Thank you for your interest in our product. I'd be happy to schedule a demo. Please let me know your availability."
)

// ReplyService produces reply suggestions through an ordered fallback chain:
// direct generation, retrieval-augmented generation, then keyword templates.
// It never fails; the template stage always yields a reply.
type ReplyService struct {
	llmClient     LLMClient
	vectors       VectorStore
	collection    string
	topK          int
	staticContext string
	logger        *zap.Logger
}

// NewReplyService creates a new reply synthesis service
func NewReplyService(
	llmClient LLMClient,
	vectors VectorStore,
	collection string,
	topK int,
	staticContext string,
	logger *zap.Logger,
) *ReplyService {
	return &ReplyService{
		llmClient:     llmClient,
		vectors:       vectors,
		collection:    collection,
		topK:          topK,
		staticContext: staticContext,
		logger:        logger,
	}
}

// SuggestReply returns a non-empty reply for the document. The first
// strategy yielding text wins; anything that goes wrong along the way is
// logged and absorbed by the next stage.
func (s *ReplyService) SuggestReply(ctx context.Context, doc *EmailDocument) string {
	if reply := s.directReply(ctx, doc); reply != "" {
		metrics.Replies.WithLabelValues("direct").Inc()
		s.logger.Info("Generated reply directly", zap.String("id", doc.ID))
		return reply
	}

	if reply := s.ragReply(ctx, doc); reply != "" {
		metrics.Replies.WithLabelValues("rag").Inc()
		s.logger.Info("Generated reply with retrieval context", zap.String("id", doc.ID))
		return reply
	}

	metrics.Replies.WithLabelValues("template").Inc()
	s.logger.Info("Falling back to template reply", zap.String("id", doc.ID))
	return TemplateReply(doc.Subject, doc.Body)
}

func (s *ReplyService) directReply(ctx context.Context, doc *EmailDocument) string {
	reply, err := s.llmClient.GenerateReply(ctx, doc.Subject, doc.Body, s.staticContext)
	if err != nil {
		s.logger.Debug("Direct reply generation failed", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(reply)
}

func (s *ReplyService) ragReply(ctx context.Context, doc *EmailDocument) string {
	vector, err := s.llmClient.EmbedText(ctx, doc.Subject+" "+doc.Body)
	if err != nil {
		s.logger.Debug("Embedding failed", zap.Error(err))
		return ""
	}
	if len(vector) == 0 {
		// Nothing to search with; skip straight to the template stage.
		return ""
	}

	var contexts []string
	if s.vectors != nil {
		contexts, err = s.vectors.SearchSimilar(ctx, s.collection, vector, s.topK)
		if err != nil {
			s.logger.Debug("Vector search failed", zap.Error(err))
		}
	}

	enhanced := strings.TrimSpace(strings.Join(contexts, " "))
	if enhanced == "" {
		enhanced = s.staticContext
	}

	reply, err := s.llmClient.GenerateReply(ctx, doc.Subject, doc.Body, enhanced)
	if err != nil {
		s.logger.Debug("RAG reply generation failed", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(reply)
}

// TemplateReply picks a canned reply by matching keyword rules against the
// subject and body, case-insensitively, in a fixed order. It is pure and
// always returns a non-empty string.
func TemplateReply(subject, body string) string {
	subj := strings.ToLower(subject)
	text := strings.ToLower(body)

	switch {
	case strings.Contains(subj, "welcome") || strings.Contains(subj, "platform"):
		return replyOnboarding
	case strings.Contains(subj, "meeting") || strings.Contains(text, "meeting"):
		return replyScheduling
	case strings.Contains(subj, "office") || strings.Contains(text, "office"):
		return replyOutOfOffice
	case strings.Contains(subj, "invoice") || strings.Contains(text, "invoice"):
		return replyInvoice
	case strings.Contains(subj, "follow") || strings.Contains(text, "follow"):
		return replyFollowUp
	case strings.Contains(subj, "demo") || strings.Contains(text, "demo"):
		return replyDemo
	}
	return replyGeneric
}
