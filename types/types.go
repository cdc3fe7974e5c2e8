package types

import (
	"fmt"
	"time"
)

// DefaultMaxComputationTime is the diff budget used when DiffOptions leaves it unset
const DefaultMaxComputationTime = 1000 * time.Millisecond

// LineRange is a span of lines, 1-indexed, start inclusive and end exclusive.
// StartLine == EndLine is an empty range: a pure insertion or deletion point
// that sits before StartLine.
type LineRange struct {
	StartLine int
	EndLine   int
}

// Len returns the number of lines covered by the range
func (r LineRange) Len() int { return r.EndLine - r.StartLine }

// IsEmpty reports whether the range covers no lines
func (r LineRange) IsEmpty() bool { return r.EndLine <= r.StartLine }

// LastLine returns the last covered line (1-indexed, inclusive), or StartLine-1 when empty
func (r LineRange) LastLine() int { return r.EndLine - 1 }

// Overlaps reports whether two ranges share at least one line, or whether an
// empty range falls strictly inside a non-empty one.
func (r LineRange) Overlaps(o LineRange) bool {
	switch {
	case r.IsEmpty() && o.IsEmpty():
		return false
	case r.IsEmpty():
		return o.StartLine < r.StartLine && r.StartLine < o.EndLine
	case o.IsEmpty():
		return r.StartLine < o.StartLine && o.StartLine < r.EndLine
	default:
		return r.StartLine < o.EndLine && o.StartLine < r.EndLine
	}
}

// Slice returns the lines of a 1-indexed document covered by the range
func (r LineRange) Slice(lines []string) []string {
	start := max(r.StartLine-1, 0)
	end := min(r.EndLine-1, len(lines))
	if start >= end {
		return nil
	}
	return lines[start:end]
}

func (r LineRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.StartLine, r.EndLine)
}

// CharRange is a byte span within a single line. Line is 1-indexed, columns
// are 0-indexed byte offsets with End exclusive (the convention Neovim uses
// for highlight columns). Columns always fall on grapheme cluster boundaries.
type CharRange struct {
	Line     int
	StartCol int
	EndCol   int
}

// IsEmpty reports whether the range covers no bytes
func (r CharRange) IsEmpty() bool { return r.EndCol <= r.StartCol }

// CharChange is a sub-line difference inside a modified line pair
type CharChange struct {
	Original CharRange
	Modified CharRange
}

// ChangeRecord is one contiguous hunk where "before" and "after" differ
type ChangeRecord struct {
	Original     LineRange // in "before"
	Modified     LineRange // in "after"
	InnerChanges []CharChange
}

// DiffResult is the outcome of a line diff. Changes are ascending and
// non-overlapping in both coordinate spaces. Truncated is set when the time
// budget ran out and the result was coarsened.
type DiffResult struct {
	Changes   []ChangeRecord
	Truncated bool
}

// DiffOptions controls ComputeDiff
type DiffOptions struct {
	// MaxComputationTimeMs bounds the line diff. Zero selects DefaultMaxComputationTime.
	MaxComputationTimeMs int
	// IgnoreTrimWhitespace compares lines after trimming leading and trailing whitespace
	IgnoreTrimWhitespace bool
}

// Validate rejects malformed options
func (o DiffOptions) Validate() error {
	if o.MaxComputationTimeMs < 0 {
		return Invalidf("max_computation_time_ms must not be negative, got %d", o.MaxComputationTimeMs)
	}
	return nil
}

// Budget returns the effective time budget
func (o DiffOptions) Budget() time.Duration {
	if o.MaxComputationTimeMs == 0 {
		return DefaultMaxComputationTime
	}
	return time.Duration(o.MaxComputationTimeMs) * time.Millisecond
}

// MergeBlock ties a base region to both sides' versions of it.
//
// Output1 is the left side's range and Output2 the right side's. A side that
// did not change the region mirrors BaseRange, in base coordinates, and has
// its Changed flag unset.
type MergeBlock struct {
	BaseRange    LineRange
	Output1Range LineRange
	Output2Range LineRange
	Inner1       []CharChange
	Inner2       []CharChange
	Changed1     bool
	Changed2     bool
}

// IsConflict reports whether both sides changed this exact base region
func (b MergeBlock) IsConflict() bool {
	return b.Changed1 && b.Changed2
}

// BlockState is the resolution state of a tracked merge block
type BlockState int

const (
	BlockUnresolved BlockState = iota
	BlockAutoResolved
	BlockManuallyResolved
)

// String returns the string representation of BlockState for Lua integration
func (s BlockState) String() string {
	switch s {
	case BlockUnresolved:
		return "unresolved"
	case BlockAutoResolved:
		return "auto_resolved"
	case BlockManuallyResolved:
		return "manually_resolved"
	default:
		return "unknown"
	}
}
