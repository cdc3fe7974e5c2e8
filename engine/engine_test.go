package engine

import (
	"errors"
	"fmt"
	"testing"

	"mergetool/anchor"
	"mergetool/tracker"
	"mergetool/types"

	"github.com/neovim/go-client/nvim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	base  = []string{"l1", "l2", "l3", "l4", "l5"}
	left  = []string{"l1", "R2", "l3", "l4", "l5"}
	right = []string{"l1", "L2", "l3", "R4", "l5"}
)

// newTestEngine returns an engine whose buffers are in-memory texts
func newTestEngine(t *testing.T) (*Engine, map[int]*anchor.MemoryText) {
	t.Helper()
	texts := map[int]*anchor.MemoryText{}
	e, err := NewEngine(EngineConfig{
		NewText: func(_ *nvim.Nvim, bufnr int) (tracker.Text, error) {
			txt, ok := texts[bufnr]
			if !ok {
				return nil, fmt.Errorf("no buffer %d", bufnr)
			}
			return txt, nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(e.Stop)
	return e, texts
}

func openFixture(t *testing.T, e *Engine, texts map[int]*anchor.MemoryText) (string, *anchor.MemoryText) {
	t.Helper()
	mem := anchor.NewMemoryText([]string{"stale"})
	texts[1] = mem
	res, err := e.Open(1, base, left, right, nil)
	require.NoError(t, err)
	return res["id"].(string), mem
}

func TestComputeDiff(t *testing.T) {
	e, _ := newTestEngine(t)

	res, err := e.ComputeDiff([]string{"a", "b"}, []string{"a", "c"}, map[string]any{"max_computation_time_ms": int64(500)})
	require.NoError(t, err)
	assert.Equal(t, false, res["truncated"])
	changes := res["changes"].([]map[string]any)
	require.Len(t, changes, 1)
	assert.Equal(t, map[string]any{"start_line": 2, "end_line": 3}, changes[0]["original"])

	_, err = e.ComputeDiff([]string{"a\nb"}, nil, nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestDiffOptions(t *testing.T) {
	e, _ := newTestEngine(t)

	opts, err := e.diffOptions([]any{})
	require.NoError(t, err)
	assert.Equal(t, types.DiffOptions{}, opts)

	opts, err = e.diffOptions(map[string]any{"ignore_trim_whitespace": true})
	require.NoError(t, err)
	assert.True(t, opts.IgnoreTrimWhitespace)

	_, err = e.diffOptions(map[string]any{"max_computation_time_ms": "soon"})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = e.diffOptions([]any{1})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = e.diffOptions("fast")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestOpen(t *testing.T) {
	e, texts := newTestEngine(t)
	mem := anchor.NewMemoryText(nil)
	texts[7] = mem

	res, err := e.Open(7, base, left, right, []any{})
	require.NoError(t, err)

	assert.NotEmpty(t, res["id"])
	assert.Equal(t, 1, res["conflicts"])
	assert.Equal(t, []string{"l1", "l2", "l3", "R4", "l5"}, mem.Lines())
	assert.Empty(t, res["diagnostics"])

	blocks := res["blocks"].([]map[string]any)
	require.Len(t, blocks, 2)
	assert.Equal(t, 0, blocks[0]["index"])
	assert.Equal(t, "unresolved", blocks[0]["state"])
	assert.Equal(t, true, blocks[0]["conflict"])
	assert.Equal(t, map[string]any{"start_line": 2, "end_line": 3}, blocks[0]["range"])
	assert.Equal(t, "auto_resolved", blocks[1]["state"])

	assert.Len(t, res["left_diff"].(map[string]any)["changes"], 1)
	assert.Len(t, res["right_diff"].(map[string]any)["changes"], 2)
}

func TestOpenFailures(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Open(99, base, left, right, nil)
	assert.Error(t, err, "unknown buffer")

	_, err = e.Open(99, base, []string{"bad\nline"}, right, nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	stats, err := e.Stats()
	require.NoError(t, err)
	assert.Empty(t, stats["sessions"])
	assert.Equal(t, 2, stats["counts"].(map[string]any)["request_failed"])
}

func TestOpenWithoutConnection(t *testing.T) {
	e, err := NewEngine(EngineConfig{NsID: 3})
	require.NoError(t, err)
	defer e.Stop()

	_, err = e.Open(1, base, left, right, nil)
	assert.ErrorIs(t, err, errNoConnection)
}

func TestResolveAndNavigate(t *testing.T) {
	e, texts := newTestEngine(t)
	id, mem := openFixture(t, e, texts)

	line, err := e.Next(id, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, line)

	line, err = e.Next(id, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, line, "wraps around")

	line, err = e.Prev(id, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, line)

	res, err := e.Resolve(id, 0, "both")
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "R2", "L2", "l3", "R4", "l5"}, mem.Lines())

	blocks := res["blocks"].([]map[string]any)
	require.Len(t, blocks, 2)
	assert.Equal(t, "manually_resolved", blocks[0]["state"])
	assert.Equal(t, map[string]any{"start_line": 2, "end_line": 4}, blocks[0]["range"])
	assert.Equal(t, map[string]any{"start_line": 5, "end_line": 6}, blocks[1]["range"])

	line, err = e.Next(id, 0)
	require.NoError(t, err)
	assert.Equal(t, -1, line, "nothing unresolved")
}

func TestResolveErrors(t *testing.T) {
	e, texts := newTestEngine(t)
	id, _ := openFixture(t, e, texts)

	_, err := e.Resolve(id, 0, "theirs")
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = e.Resolve(id, 42, "left")
	assert.ErrorIs(t, err, types.ErrBlockNotTracked)

	_, err = e.Resolve("nope", 0, "left")
	assert.ErrorIs(t, err, types.ErrUnknownSession)
}

func TestRefreshAfterEdit(t *testing.T) {
	e, texts := newTestEngine(t)
	id, mem := openFixture(t, e, texts)

	require.NoError(t, mem.SetLines(0, 0, []string{"new first line"}))

	res, err := e.Refresh(id)
	require.NoError(t, err)
	blocks := res["blocks"].([]map[string]any)
	require.Len(t, blocks, 2)
	assert.Equal(t, map[string]any{"start_line": 3, "end_line": 4}, blocks[0]["range"])
	assert.Empty(t, res["diagnostics"])

	line, err := e.Next(id, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, line)
}

func TestCloseAndStats(t *testing.T) {
	e, texts := newTestEngine(t)
	id, mem := openFixture(t, e, texts)

	_, err := e.Resolve(id, 0, "right")
	require.NoError(t, err)

	stats, err := e.Stats()
	require.NoError(t, err)
	counts := stats["counts"].(map[string]any)
	assert.Equal(t, 1, counts["session_opened"])
	assert.Equal(t, 2, counts["diff_computed"])
	assert.Equal(t, map[string]any{"right": 1}, stats["resolutions"])

	sessions := stats["sessions"].(map[string]any)
	require.Contains(t, sessions, id)
	assert.Equal(t, 1, sessions[id].(map[string]any)["manually_resolved"])
	assert.Equal(t, 1, sessions[id].(map[string]any)["auto_resolved"])

	require.NoError(t, e.Close(id))
	assert.Equal(t, 0, mem.AnchorCount())

	_, err = e.Refresh(id)
	assert.True(t, errors.Is(err, types.ErrUnknownSession))
	assert.ErrorIs(t, e.Close(id), types.ErrUnknownSession)
}

func TestStop(t *testing.T) {
	e, texts := newTestEngine(t)
	_, mem := openFixture(t, e, texts)

	e.Stop()
	assert.Equal(t, 0, mem.AnchorCount(), "sessions closed")

	_, err := e.ComputeDiff(nil, nil, nil)
	assert.Error(t, err)
	_, err = e.Stats()
	assert.Error(t, err)
}
