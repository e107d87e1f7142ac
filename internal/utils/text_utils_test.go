package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", tp.TruncateText("hello", 100))
	})

	t.Run("zero max size unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", tp.TruncateText("hello", 0))
	})

	t.Run("long text truncated with marker", func(t *testing.T) {
		long := strings.Repeat("a", 200)
		out := tp.TruncateText(long, 50)
		assert.True(t, strings.HasPrefix(out, strings.Repeat("a", 50)))
		assert.Contains(t, out, "Content truncated")
	})

	t.Run("never splits a multibyte rune", func(t *testing.T) {
		text := strings.Repeat("é", 10)
		for max := 1; max < len(text); max++ {
			out := tp.TruncateText(text, max)
			assert.True(t, utf8.ValidString(out), "max=%d produced invalid UTF-8", max)
		}
	})
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "clean text", tp.SanitizeUTF8("clean text"))

	dirty := "abc\xff\xfedef"
	out := tp.SanitizeUTF8(dirty)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "abcdef", out)
}

func TestProcessText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	long := strings.Repeat("x", 100) + "\xff"
	out := tp.ProcessText(long, 50)
	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, "Content truncated")
}
