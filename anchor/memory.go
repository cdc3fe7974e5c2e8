package anchor

import (
	"sync"

	"mergetool/types"
)

type mark struct {
	pos     Position
	gravity Gravity
}

// MemoryText is mutable in-memory text with anchors. Edits and the anchor
// moves they cause happen under one lock, so a Resolve never observes text
// and anchors out of step.
type MemoryText struct {
	mu     sync.Mutex
	lines  []string
	marks  map[ID]*mark
	nextID ID
}

// NewMemoryText creates text holding a copy of lines
func NewMemoryText(lines []string) *MemoryText {
	return &MemoryText{
		lines:  append([]string(nil), lines...),
		marks:  make(map[ID]*mark),
		nextID: 1,
	}
}

// Lines returns a copy of the whole text
func (t *MemoryText) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

// LineCount returns the number of lines
func (t *MemoryText) LineCount() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines), nil
}

// GetLines returns lines [start, end), 0-indexed
func (t *MemoryText) GetLines(start, end int) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkRange(start, end); err != nil {
		return nil, err
	}
	return append([]string(nil), t.lines[start:end]...), nil
}

// SetLines replaces lines [start, end), 0-indexed, with repl.
//
// Anchors before the edit stay put and anchors after it shift by the line
// delta. Anchors at the start of the edit or inside the replaced lines
// collapse onto the edit: right gravity ones land after the new lines, left
// gravity ones before them.
func (t *MemoryText) SetLines(start, end int, repl []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkRange(start, end); err != nil {
		return err
	}

	next := make([]string, 0, len(t.lines)-(end-start)+len(repl))
	next = append(next, t.lines[:start]...)
	next = append(next, repl...)
	next = append(next, t.lines[end:]...)
	t.lines = next

	from := Position{Line: start}
	to := Position{Line: end}
	delta := len(repl) - (end - start)
	for _, m := range t.marks {
		switch {
		case m.pos.Less(from):
		case m.pos == from || m.pos.Less(to):
			if m.gravity == GravityRight {
				m.pos = Position{Line: start + len(repl)}
			} else {
				m.pos = from
			}
		default:
			m.pos.Line += delta
		}
	}
	return nil
}

// Place creates an anchor at pos
func (t *MemoryText) Place(pos Position, gravity Gravity) (ID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pos.Line < 0 || pos.Line > len(t.lines) || pos.Col < 0 {
		return 0, types.Invalidf("anchor position %s outside text of %d lines", pos, len(t.lines))
	}
	if pos.Line == len(t.lines) && pos.Col != 0 {
		return 0, types.Invalidf("anchor position %s past end of text", pos)
	}
	if pos.Line < len(t.lines) && pos.Col > len(t.lines[pos.Line]) {
		return 0, types.Invalidf("anchor position %s past end of line", pos)
	}
	id := t.nextID
	t.nextID++
	t.marks[id] = &mark{pos: pos, gravity: gravity}
	return id, nil
}

// Resolve returns the anchor's current position
func (t *MemoryText) Resolve(id ID) (Position, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.marks[id]
	if !ok {
		return Position{}, false, nil
	}
	return m.pos, true, nil
}

// Delete removes the anchor
func (t *MemoryText) Delete(id ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.marks, id)
	return nil
}

// Clear removes every anchor, the way reloading a buffer drops its marks
func (t *MemoryText) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.marks = make(map[ID]*mark)
}

// AnchorCount returns the number of live anchors
func (t *MemoryText) AnchorCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.marks)
}

func (t *MemoryText) checkRange(start, end int) error {
	if start < 0 || end < start || end > len(t.lines) {
		return types.Invalidf("line range [%d,%d) outside text of %d lines", start, end, len(t.lines))
	}
	return nil
}
