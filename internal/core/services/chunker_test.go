package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitText(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		size      int
		overlap   int
		wantCount int
	}{
		{"blank", "   ", 10, 2, 0},
		{"short", "hello", 10, 2, 1},
		{"exact multiple", strings.Repeat("a", 20), 10, 0, 2},
		{"with overlap", strings.Repeat("a", 20), 10, 5, 3},
		{"overlap too large", strings.Repeat("a", 20), 10, 10, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := SplitText(tt.text, tt.size, tt.overlap)
			assert.Len(t, chunks, tt.wantCount)
			for _, c := range chunks {
				assert.LessOrEqual(t, len([]rune(c)), tt.size)
			}
		})
	}
}

func TestSplitText_MultibyteRunes(t *testing.T) {
	text := strings.Repeat("é", 25)
	chunks := SplitText(text, 10, 0)

	assert.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("é", 10), chunks[0])
	assert.Equal(t, strings.Repeat("é", 5), chunks[2])
}
