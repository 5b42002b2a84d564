package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	s := NewTextSanitizer()

	t.Run("strips markup", func(t *testing.T) {
		assert.Equal(t, "hello", s.SanitizeText("<b>hello</b>"))
		assert.Empty(t, s.SanitizeText("<script>alert(1)</script>"), "script content is dropped entirely")
	})

	t.Run("trims whitespace", func(t *testing.T) {
		assert.Equal(t, "hello", s.SanitizeText("  hello\n"))
	})

	t.Run("plain text passes through", func(t *testing.T) {
		assert.Equal(t, "just a post", s.SanitizeText("just a post"))
	})
}

func TestSanitizeName(t *testing.T) {
	s := NewTextSanitizer()

	t.Run("keeps tripcode separator", func(t *testing.T) {
		assert.Equal(t, "Lain#secret", s.SanitizeName("Lain#secret"))
	})

	t.Run("drops unsafe characters", func(t *testing.T) {
		assert.Equal(t, "Lainsecret", s.SanitizeName("Lain<>!@$%^secret"))
	})

	t.Run("caps length", func(t *testing.T) {
		long := strings.Repeat("a", 100)
		assert.Len(t, s.SanitizeName(long), 50)
	})

	t.Run("blank stays blank", func(t *testing.T) {
		assert.Empty(t, s.SanitizeName("   "))
	})
}
