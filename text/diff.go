package text

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"mergetool/types"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ComputeDiff computes the line diff between before and after.
//
// The result is pure: identical input yields zero records, and when the time
// budget (or the context deadline, whichever is sooner) runs out the differing
// span is reported as one record with Truncated set. Only malformed options,
// lines with embedded newlines or a cancelled context produce an error.
//
// The budget bounds the diff search only. Line encoding and common prefix
// and suffix trimming run first, in time linear in the input, and are not
// interrupted; a tiny budget on a large input can therefore be overrun by
// that pre-pass.
func ComputeDiff(ctx context.Context, before, after []string, opts types.DiffOptions) (*types.DiffResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateLines(before); err != nil {
		return nil, fmt.Errorf("before: %w", err)
	}
	if err := ValidateLines(after); err != nil {
		return nil, fmt.Errorf("after: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	budget := opts.Budget()
	if deadline, ok := ctx.Deadline(); ok {
		budget = min(budget, time.Until(deadline))
	}
	budget = max(budget, time.Nanosecond)

	// linear pre-pass, not checked against the budget
	enc := newLineEncoder(opts.IgnoreTrimWhitespace)
	a, okA := enc.encode(before)
	b, okB := enc.encode(after)

	prefix := commonPrefix(a, b)
	suffix := commonSuffix(a[prefix:], b[prefix:])
	midA := a[prefix : len(a)-suffix]
	midB := b[prefix : len(b)-suffix]

	result := &types.DiffResult{}
	if len(midA) == 0 && len(midB) == 0 {
		return result, nil
	}

	span := types.ChangeRecord{
		Original: types.LineRange{StartLine: prefix + 1, EndLine: len(a) - suffix + 1},
		Modified: types.LineRange{StartLine: prefix + 1, EndLine: len(b) - suffix + 1},
	}

	// Running out of runes only happens with more than a million distinct
	// lines; report the span coarsely like a budget overrun.
	if !okA || !okB {
		result.Changes = []types.ChangeRecord{span}
		result.Truncated = true
		return result, nil
	}

	if len(midA) == 0 || len(midB) == 0 {
		result.Changes = []types.ChangeRecord{span}
	} else {
		dmp := diffmatchpatch.New()
		dmp.DiffTimeout = max(budget-time.Since(start), time.Nanosecond)
		diffs := dmp.DiffMainRunes(midA, midB, false)

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Since(start) >= budget {
			result.Changes = []types.ChangeRecord{span}
			result.Truncated = true
			return result, nil
		}
		result.Changes = collectRecords(diffs, prefix)
	}

	addInnerChanges(ctx, result, before, after, start, budget)
	return result, nil
}

// collectRecords folds a rune diff into change records. Every run of
// deletions and insertions between two equalities becomes one record.
func collectRecords(diffs []diffmatchpatch.Diff, offset int) []types.ChangeRecord {
	var records []types.ChangeRecord
	i, j := offset, offset
	pending := false
	startI, startJ := 0, 0

	flush := func() {
		if !pending {
			return
		}
		records = append(records, types.ChangeRecord{
			Original: types.LineRange{StartLine: startI + 1, EndLine: i + 1},
			Modified: types.LineRange{StartLine: startJ + 1, EndLine: j + 1},
		})
		pending = false
	}

	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		if n == 0 {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			i += n
			j += n
		case diffmatchpatch.DiffDelete:
			if !pending {
				pending, startI, startJ = true, i, j
			}
			i += n
		case diffmatchpatch.DiffInsert:
			if !pending {
				pending, startI, startJ = true, i, j
			}
			j += n
		}
	}
	flush()
	return records
}

// addInnerChanges fills in character-level changes for one-line to one-line
// records while budget remains. Records past the deadline keep none.
func addInnerChanges(ctx context.Context, result *types.DiffResult, before, after []string, start time.Time, budget time.Duration) {
	for k := range result.Changes {
		c := &result.Changes[k]
		if c.Original.Len() != 1 || c.Modified.Len() != 1 {
			continue
		}
		remaining := budget - time.Since(start)
		if remaining <= 0 || ctx.Err() != nil {
			return
		}
		c.InnerChanges = innerChanges(
			before[c.Original.StartLine-1], after[c.Modified.StartLine-1],
			c.Original.StartLine, c.Modified.StartLine,
			min(remaining, InnerDiffTimeout),
		)
	}
}

// lineEncoder maps every distinct line to one rune so the line diff can run
// on diffmatchpatch's rune API.
type lineEncoder struct {
	ignoreTrimWhitespace bool
	runes                map[string]rune
	next                 rune
}

func newLineEncoder(ignoreTrimWhitespace bool) *lineEncoder {
	return &lineEncoder{
		ignoreTrimWhitespace: ignoreTrimWhitespace,
		runes:                make(map[string]rune),
		next:                 firstLineRune,
	}
}

// encode returns false once the rune space is exhausted
func (e *lineEncoder) encode(lines []string) ([]rune, bool) {
	out := make([]rune, len(lines))
	for i, line := range lines {
		key := line
		if e.ignoreTrimWhitespace {
			key = strings.TrimSpace(line)
		}
		r, ok := e.runes[key]
		if !ok {
			if e.next > utf8.MaxRune {
				return out, false
			}
			r = e.next
			e.runes[key] = r
			e.next++
			if e.next == surrogateStart {
				e.next = surrogateEnd + 1
			}
		}
		out[i] = r
	}
	return out, true
}

func commonPrefix(a, b []rune) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func commonSuffix(a, b []rune) int {
	n := min(len(a), len(b))
	for i := 1; i <= n; i++ {
		if a[len(a)-i] != b[len(b)-i] {
			return i - 1
		}
	}
	return n
}
