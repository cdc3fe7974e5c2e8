package text

import (
	"errors"
	"testing"

	"mergetool/types"

	"github.com/stretchr/testify/assert"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", []string{}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"blank last line is kept", "a\n\n", []string{"a", ""}},
		{"single newline", "\n", []string{""}},
		{"carriage return stays", "a\r\nb\r\n", []string{"a\r", "b\r"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitLines(tt.input))
		})
	}
}

func TestSplitLinesTrailingNewlineInvariant(t *testing.T) {
	assert.Equal(t, len(SplitLines("x\ny\nz")), len(SplitLines("x\ny\nz\n")), "same line count")
}

func TestJoinLines(t *testing.T) {
	assert.Equal(t, "", JoinLines(nil))
	assert.Equal(t, "a\nb\n", JoinLines([]string{"a", "b"}))
	assert.Equal(t, []string{"a", "", "b"}, SplitLines(JoinLines([]string{"a", "", "b"})), "round trip")
}

func TestValidateLines(t *testing.T) {
	assert.NoError(t, ValidateLines([]string{"a", "", "b\r"}))

	err := ValidateLines([]string{"ok", "bad\nline"})
	assert.True(t, errors.Is(err, types.ErrInvalidInput), "embedded newline")
	assert.Contains(t, err.Error(), "line 2")
}
