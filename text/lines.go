package text

import (
	"strings"

	"mergetool/types"
)

// SplitLines splits text by newline and removes trailing empty element if present,
// so "a\nb" and "a\nb\n" both yield two lines. A lone "\r" before the newline is
// kept as part of the line.
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// JoinLines is the inverse of SplitLines for text that ends with a newline
func JoinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// ValidateLines rejects lines that carry an embedded newline
func ValidateLines(lines []string) error {
	for i, line := range lines {
		if strings.ContainsRune(line, '\n') {
			return types.Invalidf("line %d contains an embedded newline", i+1)
		}
	}
	return nil
}

// ApplyChanges rebuilds "after" by splicing the modified content of every
// change record onto "before", in range order.
func ApplyChanges(before, after []string, result *types.DiffResult) []string {
	out := make([]string, 0, len(after))
	next := 1
	for _, c := range result.Changes {
		out = append(out, types.LineRange{StartLine: next, EndLine: c.Original.StartLine}.Slice(before)...)
		out = append(out, c.Modified.Slice(after)...)
		next = c.Original.EndLine
	}
	out = append(out, types.LineRange{StartLine: next, EndLine: len(before) + 1}.Slice(before)...)
	return out
}
