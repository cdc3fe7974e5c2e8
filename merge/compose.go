package merge

import (
	"sort"

	"mergetool/types"
)

// Placement locates one merge block in the composed result
type Placement struct {
	Block  int             // index into the blocks passed to Compose
	Result types.LineRange // in the composed result
	State  types.BlockState
}

// Composition is the initial merge result shown to the user
type Composition struct {
	Lines      []string
	Placements []Placement // ascending by base position
}

// Compose builds the initial result text. Base content is kept everywhere
// except where a block auto-resolves, which takes the changed side's lines.
// True conflicts and blocks whose base range overlaps another block are left
// unresolved with base content.
func Compose(sides Sides, blocks []types.MergeBlock) *Composition {
	order := make([]int, len(blocks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := blocks[order[i]].BaseRange, blocks[order[j]].BaseRange
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.EndLine < b.EndLine
	})

	comp := &Composition{
		Lines:      make([]string, 0, len(sides.Base)),
		Placements: make([]Placement, 0, len(blocks)),
	}
	cursor := 1 // next base line to copy

	for k := 0; k < len(order); {
		group := overlapGroup(blocks, order[k:])
		span := blocks[group[0]].BaseRange
		for _, i := range group[1:] {
			r := blocks[i].BaseRange
			span.StartLine = min(span.StartLine, r.StartLine)
			span.EndLine = max(span.EndLine, r.EndLine)
		}

		comp.Lines = append(comp.Lines, types.LineRange{StartLine: cursor, EndLine: span.StartLine}.Slice(sides.Base)...)
		resultStart := len(comp.Lines) + 1

		if len(group) == 1 {
			b := blocks[group[0]]
			state := types.BlockUnresolved
			content := sides.BaseLines(b)
			if lines, ok := sides.AutoLines(b); ok {
				state, content = types.BlockAutoResolved, lines
			}
			comp.Lines = append(comp.Lines, content...)
			comp.Placements = append(comp.Placements, Placement{
				Block:  group[0],
				Result: types.LineRange{StartLine: resultStart, EndLine: len(comp.Lines) + 1},
				State:  state,
			})
		} else {
			// Overlapping blocks share one stretch of base content; each is
			// placed at its own offset inside it.
			comp.Lines = append(comp.Lines, span.Slice(sides.Base)...)
			delta := resultStart - span.StartLine
			for _, i := range group {
				r := blocks[i].BaseRange
				comp.Placements = append(comp.Placements, Placement{
					Block:  i,
					Result: types.LineRange{StartLine: r.StartLine + delta, EndLine: r.EndLine + delta},
					State:  types.BlockUnresolved,
				})
			}
		}

		cursor = span.EndLine
		k += len(group)
	}

	comp.Lines = append(comp.Lines, types.LineRange{StartLine: cursor, EndLine: len(sides.Base) + 1}.Slice(sides.Base)...)
	return comp
}

// overlapGroup returns the leading run of sorted block indices whose base
// ranges chain together through overlaps
func overlapGroup(blocks []types.MergeBlock, sorted []int) []int {
	union := blocks[sorted[0]].BaseRange
	n := 1
	for n < len(sorted) {
		r := blocks[sorted[n]].BaseRange
		if !union.Overlaps(r) {
			break
		}
		union.EndLine = max(union.EndLine, r.EndLine)
		n++
	}
	return sorted[:n]
}

// PartiallyOverlapping returns the indices of blocks whose base range
// overlaps another block's without being identical to it
func PartiallyOverlapping(blocks []types.MergeBlock) []int {
	var out []int
	for i := range blocks {
		for j := range blocks {
			if i != j && blocks[i].BaseRange.Overlaps(blocks[j].BaseRange) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}
