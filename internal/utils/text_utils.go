package utils

import (
	"unicode/utf8"

	"go.uber.org/zap"
)

// truncationNotice is appended to email bodies cut down to the size limit so
// the model knows the text is incomplete.
const truncationNotice = "\n[... Content truncated due to size limits ...]"

// TextProcessor prepares email text for LLM prompts: enforcing a byte
// budget without splitting multi-byte runes, and dropping invalid UTF-8.
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{logger: logger}
}

// TruncateText cuts text down to at most maxSize bytes. The cut point backs
// up until the result is valid UTF-8, so a rune is never split. A maxSize of
// zero or less means no limit.
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for len(truncated) > 0 && !utf8.ValidString(truncated) {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Email body truncated for prompt",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + truncationNotice
}

// SanitizeUTF8 strips invalid byte sequences, keeping every valid rune.
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			// A one-byte RuneError is a decode failure, not a literal
			// replacement character in the input.
			if _, size := utf8.DecodeRuneInString(text[i:]); size == 1 {
				continue
			}
		}
		result = append(result, r)
	}

	tp.logger.Debug("Invalid UTF-8 stripped from email body",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(string(result))))

	return string(result)
}

// ProcessText truncates then sanitizes, the order every LLM adapter wants.
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.SanitizeUTF8(tp.TruncateText(text, maxSize))
}
