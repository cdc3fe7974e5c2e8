package session

import (
	"context"
	"fmt"
	"sync"

	"mergetool/logger"
	"mergetool/merge"
	"mergetool/text"
	"mergetool/tracker"
	"mergetool/types"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Session is one three-way merge: the inputs, both diffs against base, the
// merge blocks and, once opened, the tracker keeping them on the result text.
type Session struct {
	ID          string
	Sides       merge.Sides
	Options     types.DiffOptions
	LeftDiff    *types.DiffResult // base -> left
	RightDiff   *types.DiffResult // base -> right
	Blocks      []types.MergeBlock
	Composition *merge.Composition

	tracker *tracker.Tracker
}

// New diffs base against both sides and builds the merge blocks. Nothing is
// written anywhere until Open.
func New(ctx context.Context, base, left, right []string, opts types.DiffOptions) (*Session, error) {
	defer logger.Trace("session.New")()

	s := &Session{
		ID:      uuid.NewString(),
		Sides:   merge.Sides{Base: base, Left: left, Right: right},
		Options: opts,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		s.LeftDiff, err = text.ComputeDiff(gctx, base, left, opts)
		if err != nil {
			return fmt.Errorf("diff base against left: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		s.RightDiff, err = text.ComputeDiff(gctx, base, right, opts)
		if err != nil {
			return fmt.Errorf("diff base against right: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	blocks, err := merge.BuildBlocks(s.LeftDiff, s.RightDiff)
	if err != nil {
		return nil, err
	}
	s.Blocks = blocks
	s.Composition = merge.Compose(s.Sides, blocks)

	if overlapping := merge.PartiallyOverlapping(blocks); len(overlapping) > 0 {
		logger.Info("session %s: %d blocks overlap without matching base ranges", s.ID, len(overlapping))
	}
	if s.Truncated() {
		logger.Debug("session %s: diff budget exceeded, blocks are coarse", s.ID)
	}
	return s, nil
}

// Truncated reports whether either diff ran out of time
func (s *Session) Truncated() bool {
	return s.LeftDiff.Truncated || s.RightDiff.Truncated
}

// Conflicts returns the number of blocks both sides changed
func (s *Session) Conflicts() int {
	return merge.CountConflicts(s.Blocks)
}

// Open replaces the content of txt with the composed result and starts
// tracking the blocks in it
func (s *Session) Open(txt tracker.Text) ([]tracker.Diagnostic, error) {
	if s.tracker != nil {
		return nil, fmt.Errorf("session %s is already open", s.ID)
	}
	count, err := txt.LineCount()
	if err != nil {
		return nil, fmt.Errorf("read result text: %w", err)
	}
	if err := txt.SetLines(0, count, s.Composition.Lines); err != nil {
		return nil, fmt.Errorf("write result text: %w", err)
	}

	t, diags := tracker.New(txt, s.Sides, s.Blocks, s.Composition.Placements)
	s.tracker = t
	logger.Info("session %s opened: %d blocks, %d conflicts", s.ID, len(s.Blocks), s.Conflicts())
	return diags, nil
}

// Tracker returns the session's tracker, or nil before Open
func (s *Session) Tracker() *tracker.Tracker {
	return s.tracker
}

// Refresh recomputes block ranges from the result text
func (s *Session) Refresh() ([]tracker.Block, []tracker.Diagnostic, error) {
	if s.tracker == nil {
		return nil, nil, fmt.Errorf("session %s is not open", s.ID)
	}
	blocks, diags := s.tracker.Refresh()
	return blocks, diags, nil
}

// Resolve applies an action to one block
func (s *Session) Resolve(index int, action merge.Action) error {
	if s.tracker == nil {
		return fmt.Errorf("session %s is not open", s.ID)
	}
	return s.tracker.Resolve(index, action)
}

// Close drops the session's anchors
func (s *Session) Close() error {
	if s.tracker == nil {
		return nil
	}
	err := s.tracker.Close()
	s.tracker = nil
	logger.Info("session %s closed", s.ID)
	return err
}

// Registry holds the open sessions by id
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers s under its id
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// Get returns the session with the given id
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownSession, id)
	}
	return s, nil
}

// Remove unregisters and returns the session with the given id
func (r *Registry) Remove(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownSession, id)
	}
	delete(r.sessions, id)
	return s, nil
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// All returns the open sessions in no particular order
func (r *Registry) All() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
