package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnkiTag(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "vocab", "vocab"},
		{"spaces", "Deep Work", "Deep_Work"},
		{"accents", "Févier 2024", "Fevier_2024"},
		{"multiple spaces", "a   b", "a_b"},
		{"leading trailing", "  padded  ", "padded"},
		{"underscore runs", "a _ b", "a_b"},
		{"all stripped", "日本語", ""},
		{"mixed script", "kanji日本語tag", "kanjitag"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnkiTag(tt.in))
		})
	}
}

func TestAnkiTags_DropsEmpty(t *testing.T) {
	got := AnkiTags([]string{"vocab", "日本語", "Deep Work"})
	assert.Equal(t, []string{"vocab", "Deep_Work"}, got)
}

func TestSearchQuery(t *testing.T) {
	assert.Equal(t, "hello world", SearchQuery("  hello   world "))
	assert.Equal(t, "", SearchQuery("   "))
}
