package text

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"mergetool/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineRange(start, end int) types.LineRange {
	return types.LineRange{StartLine: start, EndLine: end}
}

func mustDiff(t *testing.T, before, after []string) *types.DiffResult {
	t.Helper()
	result, err := ComputeDiff(context.Background(), before, after, types.DiffOptions{})
	require.NoError(t, err)
	return result
}

func TestComputeDiffIdentity(t *testing.T) {
	lines := []string{"package main", "", "func main() {}", ""}

	result := mustDiff(t, lines, lines)

	assert.Empty(t, result.Changes, "identical input has no changes")
	assert.False(t, result.Truncated, "truncated")
}

func TestComputeDiffEmptyInputs(t *testing.T) {
	result := mustDiff(t, nil, []string{})
	assert.Empty(t, result.Changes, "no changes")

	result = mustDiff(t, nil, []string{"a", "b"})
	require.Len(t, result.Changes, 1)
	assert.Equal(t, lineRange(1, 1), result.Changes[0].Original, "original")
	assert.Equal(t, lineRange(1, 3), result.Changes[0].Modified, "modified")

	result = mustDiff(t, []string{"a", "b"}, nil)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, lineRange(1, 3), result.Changes[0].Original, "original")
	assert.Equal(t, lineRange(1, 1), result.Changes[0].Modified, "modified")
}

func TestComputeDiffShapes(t *testing.T) {
	tests := []struct {
		name     string
		before   []string
		after    []string
		original []types.LineRange
		modified []types.LineRange
	}{
		{
			name:     "modification",
			before:   []string{"l1", "l2", "l3"},
			after:    []string{"l1", "R2", "l3"},
			original: []types.LineRange{lineRange(2, 3)},
			modified: []types.LineRange{lineRange(2, 3)},
		},
		{
			name:     "insertion",
			before:   []string{"a", "c"},
			after:    []string{"a", "b", "c"},
			original: []types.LineRange{lineRange(2, 2)},
			modified: []types.LineRange{lineRange(2, 3)},
		},
		{
			name:     "deletion at end",
			before:   []string{"a", "b"},
			after:    []string{"a"},
			original: []types.LineRange{lineRange(2, 3)},
			modified: []types.LineRange{lineRange(2, 2)},
		},
		{
			name:     "replace grows into one hunk",
			before:   []string{"a", "b", "c"},
			after:    []string{"a", "x", "y", "c"},
			original: []types.LineRange{lineRange(2, 3)},
			modified: []types.LineRange{lineRange(2, 4)},
		},
		{
			name:     "two separate hunks",
			before:   []string{"1", "2", "3", "4", "5"},
			after:    []string{"1", "two", "3", "four", "5"},
			original: []types.LineRange{lineRange(2, 3), lineRange(4, 5)},
			modified: []types.LineRange{lineRange(2, 3), lineRange(4, 5)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := mustDiff(t, tt.before, tt.after)

			require.Len(t, result.Changes, len(tt.original), "record count")
			for i, c := range result.Changes {
				assert.Equal(t, tt.original[i], c.Original, fmt.Sprintf("record %d original", i))
				assert.Equal(t, tt.modified[i], c.Modified, fmt.Sprintf("record %d modified", i))
			}
			assert.Equal(t, tt.after, ApplyChanges(tt.before, tt.after, result), "round trip")
		})
	}
}

func TestComputeDiffInnerChangesOnlyForSingleLinePairs(t *testing.T) {
	result := mustDiff(t,
		[]string{"keep", "foo bar baz", "mid", "x", "y"},
		[]string{"keep", "foo qux baz", "mid", "z"},
	)

	require.Len(t, result.Changes, 2)

	first := result.Changes[0]
	require.Len(t, first.InnerChanges, 1)
	assert.Equal(t, types.CharRange{Line: 2, StartCol: 4, EndCol: 7}, first.InnerChanges[0].Original, "original cols")
	assert.Equal(t, types.CharRange{Line: 2, StartCol: 4, EndCol: 7}, first.InnerChanges[0].Modified, "modified cols")

	second := result.Changes[1]
	assert.Equal(t, lineRange(4, 6), second.Original, "multi-line original")
	assert.Equal(t, lineRange(4, 5), second.Modified, "multi-line modified")
	assert.Nil(t, second.InnerChanges, "multi-line records carry no inner changes")
}

func TestComputeDiffInvalidInput(t *testing.T) {
	ctx := context.Background()

	_, err := ComputeDiff(ctx, []string{"a"}, []string{"b"}, types.DiffOptions{MaxComputationTimeMs: -1})
	assert.True(t, errors.Is(err, types.ErrInvalidInput), "negative budget")

	_, err = ComputeDiff(ctx, []string{"a\nb"}, []string{"b"}, types.DiffOptions{})
	assert.True(t, errors.Is(err, types.ErrInvalidInput), "embedded newline in before")

	_, err = ComputeDiff(ctx, []string{"a"}, []string{"b", "c\n"}, types.DiffOptions{})
	assert.True(t, errors.Is(err, types.ErrInvalidInput), "embedded newline in after")
}

func TestComputeDiffCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := ComputeDiff(ctx, []string{"a"}, []string{"b"}, types.DiffOptions{})

	assert.Nil(t, result, "no result")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeDiffIgnoreTrimWhitespace(t *testing.T) {
	before := []string{"func f() {", "\treturn 1", "}"}
	after := []string{"func f() {", "    return 1  ", "}"}

	result, err := ComputeDiff(context.Background(), before, after, types.DiffOptions{IgnoreTrimWhitespace: true})
	require.NoError(t, err)
	assert.Empty(t, result.Changes, "whitespace-only edits are ignored")

	result = mustDiff(t, before, after)
	assert.Len(t, result.Changes, 1, "whitespace edits count by default")
}

func TestComputeDiffBudgetFallback(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n = 20000
	before := make([]string, 0, n+2)
	after := make([]string, 0, n+2)
	before = append(before, "header")
	after = append(after, "header")
	for i := 0; i < n; i++ {
		before = append(before, fmt.Sprintf("before %d %d", i, rng.Int63()))
		after = append(after, fmt.Sprintf("after %d %d", i, rng.Int63()))
	}
	before = append(before, "footer")
	after = append(after, "footer")

	start := time.Now()
	result, err := ComputeDiff(context.Background(), before, after, types.DiffOptions{MaxComputationTimeMs: 1})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, result.Truncated, "truncated")
	require.Len(t, result.Changes, 1, "single coarse record")
	assert.Equal(t, lineRange(2, n+2), result.Changes[0].Original, "original span")
	assert.Equal(t, lineRange(2, n+2), result.Changes[0].Modified, "modified span")
	assert.Less(t, elapsed, 2*time.Second, "bounded latency")
	assert.Equal(t, after, ApplyChanges(before, after, result), "coarse result still round trips")
}

func TestComputeDiffTrimsBeforeBudget(t *testing.T) {
	const n = 20000
	before := make([]string, 0, 2*n+1)
	for i := 0; i < 2*n; i++ {
		before = append(before, fmt.Sprintf("shared %d", i))
	}
	after := append([]string(nil), before...)
	after[n] = "changed"

	result, err := ComputeDiff(context.Background(), before, after, types.DiffOptions{MaxComputationTimeMs: 1})

	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, lineRange(n+1, n+2), result.Changes[0].Original,
		"shared prefix and suffix are trimmed even when the budget is spent")
	assert.Equal(t, lineRange(n+1, n+2), result.Changes[0].Modified)
	assert.Equal(t, after, ApplyChanges(before, after, result))
}

func TestComputeDiffWithContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	result, err := ComputeDiff(ctx, []string{"a", "b"}, []string{"a", "c"}, types.DiffOptions{MaxComputationTimeMs: 5000})

	require.NoError(t, err)
	assert.False(t, result.Truncated, "small inputs finish well within budget")
}

// randomLines draws from a small alphabet so that both sides share plenty
// of lines and the diff has real structure to find.
func randomLines(rng *rand.Rand) []string {
	alphabet := []string{"a", "b", "c", "d", "", "  a"}
	lines := make([]string, rng.Intn(30))
	for i := range lines {
		lines[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return lines
}

func TestComputeDiffProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 500; iter++ {
		before := randomLines(rng)
		after := randomLines(rng)

		result := mustDiff(t, before, after)
		label := fmt.Sprintf("iteration %d: %q -> %q", iter, before, after)

		assert.False(t, result.Truncated, label)
		assert.Equal(t, after, ApplyChanges(before, after, result), "round trip: "+label)

		for i, c := range result.Changes {
			assert.False(t, c.Original.IsEmpty() && c.Modified.IsEmpty(), "record is not empty: "+label)
			assert.GreaterOrEqual(t, c.Original.StartLine, 1, label)
			assert.LessOrEqual(t, c.Original.EndLine, len(before)+1, label)
			assert.LessOrEqual(t, c.Modified.EndLine, len(after)+1, label)
			if i == 0 {
				continue
			}
			prev := result.Changes[i-1]
			assert.Greater(t, c.Original.StartLine, prev.Original.EndLine-1, "ascending original: "+label)
			assert.Greater(t, c.Modified.StartLine, prev.Modified.EndLine-1, "ascending modified: "+label)
			assert.Greater(t, c.Original.StartLine, prev.Original.StartLine, "strictly ascending: "+label)
		}

		identity := mustDiff(t, before, before)
		assert.Empty(t, identity.Changes, "identity: "+label)
	}
}
