package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven/mocks"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"  \"Understanding   C-ESMP Plans\"  ", "Understanding C-ESMP Plans"},
		{"'Quarterly Water Use Report.'", "Quarterly Water Use Report"},
		{"one two three four five six seven eight nine", "one two three four five six seven"},
		{strings.Repeat("x", 70), strings.Repeat("x", 57) + "..."},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanTitle(tt.raw))
	}
}

func TestFallbackTitle(t *testing.T) {
	assert.Equal(t, domain.DefaultTitle, fallbackTitle("   "))
	assert.Equal(t, "What is a C-ESMP?", fallbackTitle("What is a C-ESMP? And who signs it?"))

	long := strings.Repeat("word ", 20)
	got := fallbackTitle(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len([]rune(got)), 60)
}

func TestGenerateTitle(t *testing.T) {
	completion := mocks.NewMockCompletionService()
	completion.TitleReply = "\"C-ESMP Overview\""

	assert.Equal(t, "C-ESMP Overview", generateTitle(context.Background(), completion, "What is a C-ESMP?"))

	completion.SetFailures(1)
	assert.Equal(t, "What is a C-ESMP?", generateTitle(context.Background(), completion, "What is a C-ESMP?"))

	assert.Equal(t, "Hello", generateTitle(context.Background(), nil, "Hello"))
}
