package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/annonces/internal/schema"
)

// DuplicateIndex maps a business key to the ordered line numbers where it
// occurs. It is built before any row is validated and read-only afterwards.
type DuplicateIndex map[string][]int

// BuildDuplicateIndex scans the key field of every line, whatever its
// structural status. Empty keys are ignored.
func BuildDuplicateIndex(lines []Line, d schema.Dialect) DuplicateIndex {
	idx := make(DuplicateIndex)
	pos := d.KeyRank - 1
	for _, l := range lines {
		if pos >= len(l.Tokens) {
			continue
		}
		key := Normalize(l.Tokens[pos], d.Quote)
		if key == "" {
			continue
		}
		idx[key] = append(idx[key], l.Number)
	}
	return idx
}

// Lines returns the line numbers where key occurs.
func (idx DuplicateIndex) Lines(key string) []int {
	return idx[key]
}

// IsDuplicate reports whether key occurs on more than one line.
func (idx DuplicateIndex) IsDuplicate(key string) bool {
	return len(idx[key]) > 1
}

// Duplicates returns the number of keys occurring more than once.
func (idx DuplicateIndex) Duplicates() int {
	n := 0
	for _, lines := range idx {
		if len(lines) > 1 {
			n++
		}
	}
	return n
}

// FindingsFor returns the duplicate finding for one occurrence of key at
// line. Each finding cites every line so it reads on its own.
func (idx DuplicateIndex) FindingsFor(key string, line int, rule schema.FieldRule) []Finding {
	if key == "" || !idx.IsDuplicate(key) {
		return nil
	}
	lines := idx[key]
	nums := make([]string, len(lines))
	for i, n := range lines {
		nums[i] = strconv.Itoa(n)
	}
	return []Finding{{
		LineNumber:  line,
		BusinessKey: key,
		Rank:        rule.Rank,
		FieldName:   rule.Name,
		Code:        CodeDuplicateKey,
		Severity:    SeverityError,
		Message:     fmt.Sprintf("Reference used %d times, on lines %s.", len(lines), strings.Join(nums, ", ")),
		RawValue:    quoteValue(key),
	}}
}
