package tracker

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"mergetool/anchor"
	"mergetool/logger"
	"mergetool/merge"
	"mergetool/types"
)

// Text is mutable text that offers anchors. Line arguments are 0-indexed
// with an exclusive end, like the Neovim buffer API.
type Text interface {
	anchor.Store
	LineCount() (int, error)
	GetLines(start, end int) ([]string, error)
	SetLines(start, end int, lines []string) error
}

// Block is a merge block as it currently sits in the result text
type Block struct {
	Index int // into the session's merge blocks
	Merge types.MergeBlock
	State types.BlockState
	Range types.LineRange // in the result text, 1-indexed

	start anchor.ID // at the first line, left gravity unless placed empty
	end   anchor.ID // left gravity, at the line after the last
	// placedEmpty is set when the block's region was empty when its anchors
	// were placed; only such blocks may legitimately have collapsed anchors.
	placedEmpty bool
}

// Diagnostic reports a block that was dropped from tracking
type Diagnostic struct {
	Block int
	Err   error
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("block %d: %v", d.Block, d.Err)
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Stats counts blocks by what happened to them
type Stats struct {
	Unresolved       int
	AutoResolved     int
	ManuallyResolved int
	Removed          int // region deleted by the user, or overwritten by resolving an overlapping block
	Dropped          int // lost to anchor failures
}

// Tracker keeps merge blocks attached to the result text while it is edited
type Tracker struct {
	mu     sync.Mutex
	text   Text
	sides  merge.Sides
	blocks []*Block // active, in result order
	stats  Stats
	// raised while resolving, reported by the next Refresh
	pending []Diagnostic
}

// New places a pair of anchors for every placed block. A block whose anchors
// cannot be placed is dropped and reported; that does not fail the tracker.
func New(text Text, sides merge.Sides, blocks []types.MergeBlock, placements []merge.Placement) (*Tracker, []Diagnostic) {
	t := &Tracker{text: text, sides: sides}
	var diags []Diagnostic

	for _, p := range placements {
		b := &Block{
			Index:       p.Block,
			Merge:       blocks[p.Block],
			State:       p.State,
			Range:       p.Result,
			placedEmpty: p.Result.IsEmpty(),
		}
		if err := t.placeAnchors(b); err != nil {
			diags = append(diags, t.drop(b, err))
			continue
		}
		t.blocks = append(t.blocks, b)
	}
	return t, diags
}

// Refresh recomputes every block's range from its anchors and returns the
// active blocks. Blocks whose region the user deleted are counted as
// resolved and removed; blocks with broken anchors are dropped and reported.
func (t *Tracker) Refresh() ([]Block, []Diagnostic) {
	t.mu.Lock()
	defer t.mu.Unlock()

	diags := append(t.pending, t.refreshAll()...)
	t.pending = nil
	return t.snapshot(), diags
}

func (t *Tracker) refreshAll() []Diagnostic {
	var diags []Diagnostic
	active := t.blocks[:0]
	for _, b := range t.blocks {
		keep, err := t.refreshBlock(b)
		if err != nil {
			diags = append(diags, t.drop(b, err))
			continue
		}
		if keep {
			active = append(active, b)
		}
	}
	t.blocks = active
	sort.SliceStable(t.blocks, func(i, j int) bool {
		return t.blocks[i].Range.StartLine < t.blocks[j].Range.StartLine
	})
	return diags
}

// refreshBlock updates b.Range. It returns false when the block was resolved
// by deletion and has been removed.
func (t *Tracker) refreshBlock(b *Block) (bool, error) {
	start, startOK, err := t.text.Resolve(b.start)
	if err != nil {
		return false, err
	}
	end, endOK, err := t.text.Resolve(b.end)
	if err != nil {
		return false, err
	}

	switch {
	case !startOK && !endOK:
		t.remove(b)
		return false, nil
	case !startOK:
		return false, fmt.Errorf("start anchor %d deleted", b.start)
	case !endOK:
		return false, fmt.Errorf("end anchor %d deleted", b.end)
	}

	if end.Less(start) {
		start, end = end, start
	}
	if start == end && !b.placedEmpty {
		t.remove(b)
		return false, nil
	}

	// An anchor that ended up mid-line counts as the following line boundary
	b.Range = types.LineRange{StartLine: lineBoundary(start), EndLine: lineBoundary(end)}
	if b.Range.EndLine < b.Range.StartLine {
		b.Range.EndLine = b.Range.StartLine
	}
	return true, nil
}

// Resolve applies an action to an active block: its region in the result
// text is replaced and the block becomes manually resolved. Resolving a
// block again replaces its region again.
//
// Other blocks whose regions overlap the resolved one are retired as
// removed, since their lines now hold the chosen content.
func (t *Tracker) Resolve(index int, action merge.Action) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.find(index) < 0 {
		return fmt.Errorf("%w: %d", types.ErrBlockNotTracked, index)
	}
	for _, d := range t.refreshAll() {
		if d.Block == index {
			return d
		}
		t.pending = append(t.pending, d)
	}
	pos := t.find(index)
	if pos < 0 {
		return fmt.Errorf("%w: %d was deleted from the result", types.ErrBlockNotTracked, index)
	}
	b := t.blocks[pos]
	old := b.Range

	var adjacent []*Block
	active := t.blocks[:0]
	for _, o := range t.blocks {
		switch {
		case o == b:
		case o.Range.Overlaps(old):
			logger.Info("block %d overlaps resolved block %d, retiring it", o.Index, index)
			t.remove(o)
			continue
		case o.Range.StartLine == old.EndLine,
			o.Range.IsEmpty() && o.Range.StartLine == old.StartLine:
			adjacent = append(adjacent, o)
		}
		active = append(active, o)
	}
	t.blocks = active

	lines := t.sides.ResolvedLines(b.Merge, action)
	if err := t.text.SetLines(old.StartLine-1, old.EndLine-1, lines); err != nil {
		return fmt.Errorf("replace block %d: %w", index, err)
	}

	t.deleteAnchors(b)
	b.Range = types.LineRange{StartLine: old.StartLine, EndLine: old.StartLine + len(lines)}
	b.placedEmpty = len(lines) == 0
	if err := t.placeAnchors(b); err != nil {
		diag := t.drop(b, err)
		t.blocks = slices.DeleteFunc(t.blocks, func(o *Block) bool { return o == b })
		return diag
	}
	b.State = types.BlockManuallyResolved

	// Anchors on the edit boundary cannot tell which side of the new lines
	// they belong to, so neighbours touching it are placed again.
	delta := len(lines) - old.Len()
	for _, o := range adjacent {
		if o.Range.StartLine == old.EndLine {
			o.Range.StartLine += delta
			o.Range.EndLine += delta
		}
		t.deleteAnchors(o)
		if err := t.placeAnchors(o); err != nil {
			t.pending = append(t.pending, t.drop(o, err))
			t.blocks = slices.DeleteFunc(t.blocks, func(x *Block) bool { return x == o })
		}
	}

	logger.Debug("resolved block %d with %s at %s", index, action, b.Range)
	return nil
}

// Blocks returns the active blocks as of the last refresh or resolve
func (t *Tracker) Blocks() []Block {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// Next returns the first unresolved block starting after line (1-indexed),
// wrapping around to the first one
func (t *Tracker) Next(line int) (Block, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var first *Block
	for _, b := range t.blocks {
		if b.State != types.BlockUnresolved {
			continue
		}
		if first == nil {
			first = b
		}
		if b.Range.StartLine > line {
			return *b, true
		}
	}
	if first == nil {
		return Block{}, false
	}
	return *first, true
}

// Prev returns the last unresolved block starting before line (1-indexed),
// wrapping around to the last one
func (t *Tracker) Prev(line int) (Block, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var last *Block
	for i := len(t.blocks) - 1; i >= 0; i-- {
		b := t.blocks[i]
		if b.State != types.BlockUnresolved {
			continue
		}
		if last == nil {
			last = b
		}
		if b.Range.StartLine < line {
			return *b, true
		}
	}
	if last == nil {
		return Block{}, false
	}
	return *last, true
}

// Stats returns the block counts
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stats
	s.Unresolved, s.AutoResolved, s.ManuallyResolved = 0, 0, 0
	for _, b := range t.blocks {
		switch b.State {
		case types.BlockUnresolved:
			s.Unresolved++
		case types.BlockAutoResolved:
			s.AutoResolved++
		case types.BlockManuallyResolved:
			s.ManuallyResolved++
		}
	}
	return s
}

// Close deletes every anchor the tracker placed
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for _, b := range t.blocks {
		errs = append(errs, t.text.Delete(b.start), t.text.Delete(b.end))
	}
	t.blocks = nil
	return errors.Join(errs...)
}

// placeAnchors anchors b.Range. A non-empty region keeps its start anchor
// when its first line is rewritten; an empty region grows when lines are
// typed into it.
func (t *Tracker) placeAnchors(b *Block) error {
	gravity := anchor.GravityLeft
	if b.placedEmpty {
		gravity = anchor.GravityRight
	}
	start, err := t.text.Place(anchor.Position{Line: b.Range.StartLine - 1}, gravity)
	if err != nil {
		return err
	}
	end, err := t.text.Place(anchor.Position{Line: b.Range.EndLine - 1}, anchor.GravityLeft)
	if err != nil {
		_ = t.text.Delete(start)
		return err
	}
	b.start, b.end = start, end
	return nil
}

func (t *Tracker) deleteAnchors(b *Block) {
	if err := t.text.Delete(b.start); err != nil {
		logger.Debug("delete start anchor of block %d: %v", b.Index, err)
	}
	if err := t.text.Delete(b.end); err != nil {
		logger.Debug("delete end anchor of block %d: %v", b.Index, err)
	}
}

// drop gives up on a block after an anchor failure
func (t *Tracker) drop(b *Block, err error) Diagnostic {
	t.deleteAnchors(b)
	t.stats.Dropped++
	diag := Diagnostic{Block: b.Index, Err: fmt.Errorf("%w: %v", types.ErrAnchorUnresolvable, err)}
	logger.Warn("dropping merge block: %v", diag)
	return diag
}

func (t *Tracker) remove(b *Block) {
	t.deleteAnchors(b)
	t.stats.Removed++
	logger.Debug("block %d region deleted, treating as resolved", b.Index)
}

func (t *Tracker) find(index int) int {
	for i, b := range t.blocks {
		if b.Index == index {
			return i
		}
	}
	return -1
}

func (t *Tracker) snapshot() []Block {
	out := make([]Block, len(t.blocks))
	for i, b := range t.blocks {
		out[i] = *b
	}
	return out
}

// lineBoundary converts an anchor position to the 1-indexed line that starts
// at or after it
func lineBoundary(p anchor.Position) int {
	if p.Col > 0 {
		return p.Line + 2
	}
	return p.Line + 1
}
