package text

import (
	"time"
	"unicode/utf8"

	"mergetool/logger"
	"mergetool/types"

	"github.com/clipperhouse/uax29/v2/graphemes"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ComputeInnerChanges returns the character-level changes between a single
// pair of lines. beforeLine and afterLine are the 1-indexed line numbers the
// ranges are reported against. Columns are byte offsets that never split a
// grapheme cluster. Any failure yields no changes.
func ComputeInnerChanges(before, after string, beforeLine, afterLine int) []types.CharChange {
	return innerChanges(before, after, beforeLine, afterLine, InnerDiffTimeout)
}

func innerChanges(before, after string, beforeLine, afterLine int, timeout time.Duration) (changes []types.CharChange) {
	if before == after || len(before) > MaxInnerLineLength || len(after) > MaxInnerLineLength {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("inner diff of lines %d/%d failed: %v", beforeLine, afterLine, r)
			changes = nil
		}
	}()

	m := newClusterMapper()
	a, lensA, okA := m.encode(before)
	b, lensB, okB := m.encode(after)
	if !okA || !okB {
		return nil
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = timeout
	diffs := dmp.DiffMainRunes(a, b, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var (
		ci, cj  int // cluster index
		bi, bj  int // byte offset
		pending bool
		startI  int
		startJ  int
	)
	flush := func() {
		if !pending {
			return
		}
		changes = append(changes, types.CharChange{
			Original: types.CharRange{Line: beforeLine, StartCol: startI, EndCol: bi},
			Modified: types.CharRange{Line: afterLine, StartCol: startJ, EndCol: bj},
		})
		pending = false
	}

	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			for k := 0; k < n; k++ {
				bi += lensA[ci]
				bj += lensB[cj]
				ci++
				cj++
			}
		case diffmatchpatch.DiffDelete:
			if !pending {
				pending, startI, startJ = true, bi, bj
			}
			for k := 0; k < n; k++ {
				bi += lensA[ci]
				ci++
			}
		case diffmatchpatch.DiffInsert:
			if !pending {
				pending, startI, startJ = true, bi, bj
			}
			for k := 0; k < n; k++ {
				bj += lensB[cj]
				cj++
			}
		}
	}
	flush()
	return changes
}

// clusterMapper assigns one rune per grapheme cluster. A cluster that is a
// single rune below the private use planes stands for itself; anything else
// (combining sequences, emoji sequences, invalid bytes) gets a private use rune.
type clusterMapper struct {
	runes map[string]rune
	next  rune
}

func newClusterMapper() *clusterMapper {
	return &clusterMapper{runes: make(map[string]rune), next: privateUseStart}
}

// encode returns the runes for s along with each cluster's byte length
func (m *clusterMapper) encode(s string) ([]rune, []int, bool) {
	var out []rune
	var lens []int
	iter := graphemes.FromString(s)
	for iter.Next() {
		cluster := iter.Value()
		r, ok := m.runeFor(cluster)
		if !ok {
			return nil, nil, false
		}
		out = append(out, r)
		lens = append(lens, len(cluster))
	}
	return out, lens, true
}

func (m *clusterMapper) runeFor(cluster string) (rune, bool) {
	r, size := utf8.DecodeRuneInString(cluster)
	if size == len(cluster) && r < privateUseStart && (r != utf8.RuneError || size > 1) {
		return r, true
	}
	if r, ok := m.runes[cluster]; ok {
		return r, true
	}
	if m.next > privateUseEnd {
		return 0, false
	}
	r = m.next
	m.runes[cluster] = r
	m.next++
	return r, true
}
