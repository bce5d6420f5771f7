package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateTextRespectsLimitAndRuneBoundaries(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "short", tp.TruncateText("short", 100))
	assert.Equal(t, "no limit", tp.TruncateText("no limit", 0))

	// "héllo" is six bytes; a five-byte cut lands inside the é and must
	// back up rather than emit a broken sequence.
	got := tp.TruncateText("héllo", 5)
	trimmed := strings.TrimSuffix(got, truncationNotice)
	assert.True(t, utf8.ValidString(trimmed))
	assert.True(t, len(trimmed) <= 5)
	assert.True(t, strings.HasSuffix(got, truncationNotice))
}

func TestSanitizeUTF8DropsInvalidBytes(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "clean", tp.SanitizeUTF8("clean"))

	dirty := "a\xffb\xfec"
	got := tp.SanitizeUTF8(dirty)
	assert.Equal(t, "abc", got)
	assert.True(t, utf8.ValidString(got))

	// A literal replacement character is kept.
	assert.Equal(t, "a�b", tp.SanitizeUTF8("a�b"))
}

func TestProcessTextTruncatesThenSanitizes(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	long := strings.Repeat("x", 50)
	got := tp.ProcessText(long, 10)
	assert.True(t, strings.HasPrefix(got, "xxxxxxxxxx"))
	assert.True(t, strings.HasSuffix(got, truncationNotice))
	assert.True(t, utf8.ValidString(got))
}
