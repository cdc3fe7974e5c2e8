package anchor

import "fmt"

// Position is a point in mutable text. Line and Col are 0-indexed, Col is a
// byte offset. Line may equal the line count to address the end of the text.
type Position struct {
	Line int
	Col  int
}

// Less orders positions by line, then column
func (p Position) Less(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Col < o.Col
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Line, p.Col)
}

// Gravity decides which side of an insertion made exactly at an anchor the
// anchor ends up on
type Gravity int

const (
	// GravityRight anchors move to the end of text inserted at their position
	GravityRight Gravity = iota
	// GravityLeft anchors stay before text inserted at their position
	GravityLeft
)

// ID identifies a placed anchor within its store
type ID int

// Store is the anchoring capability a host offers for its mutable text.
// Anchors survive edits made elsewhere in the text.
type Store interface {
	// Place creates an anchor at pos
	Place(pos Position, gravity Gravity) (ID, error)
	// Resolve returns the anchor's current position. ok is false when the
	// host no longer knows the anchor (it was deleted).
	Resolve(id ID) (pos Position, ok bool, err error)
	// Delete removes the anchor. Deleting an unknown anchor is not an error.
	Delete(id ID) error
}
