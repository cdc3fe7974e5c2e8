package engine

import (
	"time"

	"mergetool/logger"
	"mergetool/merge"
	"mergetool/metrics"
	"mergetool/session"
	"mergetool/text"
	"mergetool/tracker"
	"mergetool/types"
)

// ComputeDiff diffs two line sequences
func (e *Engine) ComputeDiff(before, after []string, opts any) (map[string]any, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	options, err := e.diffOptions(opts)
	if err != nil {
		return nil, e.fail("compute_diff", err)
	}
	start := time.Now()
	result, err := text.ComputeDiff(e.mainCtx, before, after, options)
	if err != nil {
		return nil, e.fail("compute_diff", err)
	}
	e.metrics.TrackDiff(time.Since(start), result.Truncated)
	return result.ToLuaFormat(), nil
}

// Open starts a merge session writing its result into buffer bufnr
func (e *Engine) Open(bufnr int, base, left, right []string, opts any) (map[string]any, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	options, err := e.diffOptions(opts)
	if err != nil {
		return nil, e.fail("open", err)
	}

	start := time.Now()
	s, err := session.New(e.mainCtx, base, left, right, options)
	if err != nil {
		return nil, e.fail("open", err)
	}
	// both sides are diffed concurrently, so each gets the full elapsed time
	elapsed := time.Since(start)
	e.metrics.TrackDiff(elapsed, s.LeftDiff.Truncated)
	e.metrics.TrackDiff(elapsed, s.RightDiff.Truncated)

	txt, err := e.config.NewText(e.n, bufnr)
	if err != nil {
		return nil, e.fail("open", err)
	}
	diags, err := s.Open(txt)
	if err != nil {
		return nil, e.fail("open", err)
	}
	e.sessions.Add(s)
	e.metrics.Track(metrics.EventSessionOpened, 1)
	e.metrics.Track(metrics.EventBlockDropped, len(diags))

	return map[string]any{
		"id":          s.ID,
		"blocks":      blocksToLua(s.Tracker().Blocks()),
		"diagnostics": diagnosticsToLua(diags),
		"conflicts":   s.Conflicts(),
		"left_diff":   s.LeftDiff.ToLuaFormat(),
		"right_diff":  s.RightDiff.ToLuaFormat(),
	}, nil
}

// Refresh recomputes block ranges after the user edited the result
func (e *Engine) Refresh(id string) (map[string]any, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	s, err := e.sessions.Get(id)
	if err != nil {
		return nil, e.fail("refresh", err)
	}
	blocks, diags, err := s.Refresh()
	if err != nil {
		return nil, e.fail("refresh", err)
	}
	e.metrics.Track(metrics.EventBlockDropped, len(diags))
	return map[string]any{
		"blocks":      blocksToLua(blocks),
		"diagnostics": diagnosticsToLua(diags),
	}, nil
}

// Resolve applies an action ("left", "right", "both" or "none") to a block
func (e *Engine) Resolve(id string, index int, action string) (map[string]any, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	a, err := merge.ParseAction(action)
	if err != nil {
		return nil, e.fail("resolve", err)
	}
	s, err := e.sessions.Get(id)
	if err != nil {
		return nil, e.fail("resolve", err)
	}
	if err := s.Resolve(index, a); err != nil {
		if _, ok := err.(tracker.Diagnostic); ok {
			e.metrics.Track(metrics.EventBlockDropped, 1)
		}
		return nil, e.fail("resolve", err)
	}
	e.metrics.TrackResolution(a.String())
	return map[string]any{
		"blocks": blocksToLua(s.Tracker().Blocks()),
	}, nil
}

// Next returns the start line of the next unresolved block after line, or -1
func (e *Engine) Next(id string, line int) (int, error) {
	return e.navigate("next", id, func(t *tracker.Tracker) (tracker.Block, bool) {
		return t.Next(line)
	})
}

// Prev returns the start line of the previous unresolved block before line, or -1
func (e *Engine) Prev(id string, line int) (int, error) {
	return e.navigate("prev", id, func(t *tracker.Tracker) (tracker.Block, bool) {
		return t.Prev(line)
	})
}

func (e *Engine) navigate(method, id string, find func(*tracker.Tracker) (tracker.Block, bool)) (int, error) {
	if err := e.lock(); err != nil {
		return -1, err
	}
	defer e.mu.Unlock()

	s, err := e.sessions.Get(id)
	if err != nil {
		return -1, e.fail(method, err)
	}
	_, diags, err := s.Refresh()
	if err != nil {
		return -1, e.fail(method, err)
	}
	e.metrics.Track(metrics.EventBlockDropped, len(diags))

	b, ok := find(s.Tracker())
	if !ok {
		return -1, nil
	}
	return b.Range.StartLine, nil
}

// Close ends a session and removes its anchors
func (e *Engine) Close(id string) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	s, err := e.sessions.Remove(id)
	if err != nil {
		return e.fail("close", err)
	}
	e.metrics.Track(metrics.EventSessionClosed, 1)
	if err := s.Close(); err != nil {
		return e.fail("close", err)
	}
	return nil
}

// Stats returns the daemon counters plus block counts per open session
func (e *Engine) Stats() (map[string]any, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	out := e.metrics.Summary().ToLuaFormat()
	sessions := make(map[string]any, e.sessions.Len())
	for _, s := range e.sessions.All() {
		t := s.Tracker()
		if t == nil {
			continue
		}
		sessions[s.ID] = statsToLua(t.Stats())
	}
	out["sessions"] = sessions
	return out, nil
}

// diffOptions reads request options over the configured defaults. Neovim
// sends an empty Lua table as an array, so that is accepted as no options.
func (e *Engine) diffOptions(opts any) (types.DiffOptions, error) {
	switch v := opts.(type) {
	case nil:
		return e.config.DiffOptions, nil
	case map[string]any:
		return types.DiffOptionsFromLua(v, e.config.DiffOptions)
	case []any:
		if len(v) == 0 {
			return e.config.DiffOptions, nil
		}
	}
	logger.Debug("unexpected options %v", opts)
	return e.config.DiffOptions, types.Invalidf("options must be a table, got %T", opts)
}
