package core

// normalize.go turns raw tokens into logical values.
//
// A raw token looks like `"value"` with optional spaces around it. The
// quoting wrapper is checked separately (IsWellQuoted) so that a missing
// quote is reported as a finding rather than breaking normalization.

import "strings"

// IsWellQuoted reports whether tok starts and ends with quote and is at
// least two bytes long. An empty token or a lone quote is never well-quoted.
func IsWellQuoted(tok string, quote byte) bool {
	return len(tok) >= 2 && tok[0] == quote && tok[len(tok)-1] == quote
}

// Normalize removes one layer of surrounding quotes and trims whitespace.
// It never fails.
func Normalize(tok string, quote byte) string {
	s := strings.TrimSpace(tok)
	if len(s) > 0 && s[0] == quote {
		s = s[1:]
	}
	if len(s) > 0 && s[len(s)-1] == quote {
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}

// NormalizeRow normalizes tokens into exactly n values, padding with empty
// strings or truncating as needed.
func NormalizeRow(tokens []string, n int, quote byte) []string {
	values := make([]string, n)
	for i := 0; i < n && i < len(tokens); i++ {
		values[i] = Normalize(tokens[i], quote)
	}
	return values
}
