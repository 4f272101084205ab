package core

import (
	"strings"

	"github.com/JonMunkholm/annonces/internal/schema"
)

// SplitLines cuts decoded text into non-blank lines.
//
// CRLF and lone CR are normalized to LF and a single trailing empty line is
// dropped. Interior blank lines are skipped but still counted, so Number is
// the physical line number a user sees in an editor.
func SplitLines(text string) []Line {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}

	parts := strings.Split(text, "\n")
	lines := make([]Line, 0, len(parts))
	for i, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		lines = append(lines, Line{Number: i + 1, Text: p})
	}
	return lines
}

// SplitFields cuts one line on the dialect's delimiter. Tokens keep their
// quoting so well-formedness can be checked on the raw value.
//
// When the line yields exactly one token more than the field count and that
// last token is blank, it is an end-of-line delimiter artifact and is
// dropped (if the dialect allows it).
func SplitFields(line string, d schema.Dialect) []string {
	tokens := strings.Split(line, d.Delimiter)
	if d.DropTrailingEmpty && len(tokens) == d.FieldCount+1 && strings.TrimSpace(tokens[len(tokens)-1]) == "" {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// tokenize splits every line's text into tokens in place.
func tokenize(lines []Line, d schema.Dialect) {
	for i := range lines {
		lines[i].Tokens = SplitFields(lines[i].Text, d)
	}
}
