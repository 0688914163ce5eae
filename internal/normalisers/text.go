package normalisers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"regexp"
	"strings"
)

// PlaintextNormaliser handles plain text and log files.
// It is the fallback for any text type.
type PlaintextNormaliser struct{}

func (n *PlaintextNormaliser) Normalise(content string) string {
	return cleanLines(content)
}

func (n *PlaintextNormaliser) SupportedTypes() []string {
	return []string{"text/plain", "text/*"}
}

func (n *PlaintextNormaliser) Priority() int {
	return 1
}

var (
	frontMatter  = regexp.MustCompile(`(?s)\A---\n.*?\n---\n`)
	htmlComments = regexp.MustCompile(`(?s)<!--.*?-->`)
)

// MarkdownNormaliser drops front matter and HTML comments, which carry no answerable text.
type MarkdownNormaliser struct{}

func (n *MarkdownNormaliser) Normalise(content string) string {
	content = normaliseLineEndings(content)
	content = frontMatter.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")
	return cleanLines(content)
}

func (n *MarkdownNormaliser) SupportedTypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

func (n *MarkdownNormaliser) Priority() int {
	return 50
}

// CSVNormaliser renders each record as "header: value" pairs so that a chunk
// cut from the middle of the file still names its columns.
type CSVNormaliser struct{}

func (n *CSVNormaliser) Normalise(content string) string {
	r := csv.NewReader(strings.NewReader(normaliseLineEndings(content)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return cleanLines(content)
	}

	var sb strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return cleanLines(content)
		}

		pairs := make([]string, 0, len(record))
		for i, value := range record {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			name := "column " + string(rune('A'+i%26))
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				name = strings.TrimSpace(header[i])
			}
			pairs = append(pairs, name+": "+value)
		}
		if len(pairs) > 0 {
			sb.WriteString(strings.Join(pairs, "; "))
			sb.WriteString("\n")
		}
	}
	if sb.Len() == 0 {
		return cleanLines(content)
	}
	return strings.TrimSpace(sb.String())
}

func (n *CSVNormaliser) SupportedTypes() []string {
	return []string{"text/csv"}
}

func (n *CSVNormaliser) Priority() int {
	return 50
}

// JSONNormaliser indents JSON so chunk boundaries fall between lines.
// Invalid JSON is treated as plain text.
type JSONNormaliser struct{}

func (n *JSONNormaliser) Normalise(content string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(strings.TrimSpace(content)), "", "  "); err != nil {
		return cleanLines(content)
	}
	return buf.String()
}

func (n *JSONNormaliser) SupportedTypes() []string {
	return []string{"application/json"}
}

func (n *JSONNormaliser) Priority() int {
	return 50
}

func normaliseLineEndings(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}

// cleanLines normalises line endings, drops control characters and
// trailing spaces, and collapses runs of blank lines to one.
func cleanLines(content string) string {
	content = normaliseLineEndings(content)
	content = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, content)

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
