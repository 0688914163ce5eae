package normalisers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaintextNormaliser(t *testing.T) {
	n := &PlaintextNormaliser{}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"crlf", "a\r\nb\rc", "a\nb\nc"},
		{"trailing spaces", "a  \nb\t", "a\nb"},
		{"blank runs", "a\n\n\n\nb", "a\n\nb"},
		{"control chars", "a\x00b\x07c\td", "abc\td"},
		{"surrounding space", "\n\n  a\n\n", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalise(tt.input))
		})
	}
}

func TestMarkdownNormaliser(t *testing.T) {
	n := &MarkdownNormaliser{}

	input := "---\ntitle: Plan\n---\n# Plan\r\n\r\n<!-- draft -->\r\n\r\n\r\nBody text"
	assert.Equal(t, "# Plan\n\nBody text", n.Normalise(input))
}

func TestCSVNormaliser(t *testing.T) {
	n := &CSVNormaliser{}

	t.Run("rows become labelled pairs", func(t *testing.T) {
		input := "site,status\r\nNorth, open\r\nSouth,\r\n"
		assert.Equal(t, "site: North; status: open\nsite: South", n.Normalise(input))
	})

	t.Run("missing header names", func(t *testing.T) {
		input := "site\nNorth,extra\n"
		assert.Equal(t, "site: North; column B: extra", n.Normalise(input))
	})

	t.Run("header only falls back to text", func(t *testing.T) {
		assert.Equal(t, "site,status", n.Normalise("site,status  \n"))
	})

	t.Run("malformed falls back to text", func(t *testing.T) {
		input := "a,b\n\"unterminated,1\n"
		assert.Equal(t, "a,b\n\"unterminated,1", n.Normalise(input))
	})
}

func TestJSONNormaliser(t *testing.T) {
	n := &JSONNormaliser{}

	assert.Equal(t, "{\n  \"a\": [\n    1,\n    2\n  ]\n}", n.Normalise(` {"a":[1,2]} `))
	assert.Equal(t, "not json", n.Normalise("not json  \n"))
}
