package merge

import (
	"slices"

	"mergetool/types"
)

// Action is a manual resolution applied to a merge block
type Action int

const (
	AcceptLeft Action = iota
	AcceptRight
	AcceptBoth
	AcceptNone
)

// String returns the string representation of Action for Lua integration
func (a Action) String() string {
	switch a {
	case AcceptLeft:
		return "left"
	case AcceptRight:
		return "right"
	case AcceptBoth:
		return "both"
	case AcceptNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseAction parses the names produced by Action.String
func ParseAction(s string) (Action, error) {
	switch s {
	case "left":
		return AcceptLeft, nil
	case "right":
		return AcceptRight, nil
	case "both":
		return AcceptBoth, nil
	case "none":
		return AcceptNone, nil
	default:
		return 0, types.Invalidf("unknown action %q", s)
	}
}

// Sides holds the three versions a session merges
type Sides struct {
	Base  []string
	Left  []string
	Right []string
}

// LeftLines returns the left version of the block's region. An unchanged
// side reads its content from base.
func (s Sides) LeftLines(b types.MergeBlock) []string {
	if b.Changed1 {
		return b.Output1Range.Slice(s.Left)
	}
	return b.BaseRange.Slice(s.Base)
}

// RightLines returns the right version of the block's region
func (s Sides) RightLines(b types.MergeBlock) []string {
	if b.Changed2 {
		return b.Output2Range.Slice(s.Right)
	}
	return b.BaseRange.Slice(s.Base)
}

// BaseLines returns the block's region in base
func (s Sides) BaseLines(b types.MergeBlock) []string {
	return b.BaseRange.Slice(s.Base)
}

// ResolvedLines returns the content the block's region takes under an action.
// Accepting both places the left content before the right content.
func (s Sides) ResolvedLines(b types.MergeBlock, a Action) []string {
	var out []string
	switch a {
	case AcceptLeft:
		out = append(out, s.LeftLines(b)...)
	case AcceptRight:
		out = append(out, s.RightLines(b)...)
	case AcceptBoth:
		out = append(out, s.LeftLines(b)...)
		out = append(out, s.RightLines(b)...)
	default:
		out = append(out, s.BaseLines(b)...)
	}
	return out
}

// AutoLines returns the content of a block that can be resolved without the
// user: the changed side of a one-sided block, or the shared content when
// both sides made the same change. ok is false for a true conflict.
func (s Sides) AutoLines(b types.MergeBlock) (lines []string, ok bool) {
	switch {
	case b.Changed1 && !b.Changed2:
		return s.LeftLines(b), true
	case b.Changed2 && !b.Changed1:
		return s.RightLines(b), true
	}
	left, right := s.LeftLines(b), s.RightLines(b)
	if slices.Equal(left, right) {
		return left, true
	}
	return nil, false
}
