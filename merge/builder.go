package merge

import (
	"fmt"

	"mergetool/types"
)

// BuildBlocks turns the base->left and base->right diffs into merge blocks.
//
// Every left record becomes a block. A right record whose base range is
// identical to an existing block's marks that block as a conflict; any other
// right record becomes a new right-only block. Base ranges that overlap
// without being identical stay separate blocks. Left blocks come first, in
// diff order, followed by the right-only ones.
func BuildBlocks(left, right *types.DiffResult) ([]types.MergeBlock, error) {
	if left == nil || right == nil {
		return nil, fmt.Errorf("%w: both diffs are required", types.ErrInvalidInput)
	}

	blocks := make([]types.MergeBlock, 0, len(left.Changes)+len(right.Changes))
	byBase := make(map[types.LineRange]int, len(left.Changes))

	for _, c := range left.Changes {
		byBase[c.Original] = len(blocks)
		blocks = append(blocks, types.MergeBlock{
			BaseRange:    c.Original,
			Output1Range: c.Modified,
			Output2Range: c.Original,
			Inner1:       c.InnerChanges,
			Changed1:     true,
		})
	}

	for _, c := range right.Changes {
		if i, ok := byBase[c.Original]; ok {
			blocks[i].Output2Range = c.Modified
			blocks[i].Inner2 = c.InnerChanges
			blocks[i].Changed2 = true
			continue
		}
		blocks = append(blocks, types.MergeBlock{
			BaseRange:    c.Original,
			Output1Range: c.Original,
			Output2Range: c.Modified,
			Inner2:       c.InnerChanges,
			Changed2:     true,
		})
	}

	return blocks, nil
}

// CountConflicts returns the number of blocks both sides changed
func CountConflicts(blocks []types.MergeBlock) int {
	n := 0
	for _, b := range blocks {
		if b.IsConflict() {
			n++
		}
	}
	return n
}
