package buffer

import (
	"errors"
	"fmt"
	"sync"

	"mergetool/anchor"
	"mergetool/logger"

	"github.com/neovim/go-client/nvim"
)

var errNoClient = errors.New("nvim client not set")

type Config struct {
	NsID int
}

// NvimBuffer is a Neovim buffer used as merge result text. Anchors are
// extmarks in the configured namespace.
type NvimBuffer struct {
	client *nvim.Nvim // stored internally, set via SetClient
	id     nvim.Buffer
	config Config

	mu sync.Mutex
	// marks placed on the line past the last one, which Neovim keeps at
	// the end of the last line instead
	clamped map[anchor.ID]bool
}

func New(config Config, bufnr int) *NvimBuffer {
	return &NvimBuffer{
		id:      nvim.Buffer(bufnr),
		config:  config,
		clamped: make(map[anchor.ID]bool),
	}
}

// SetClient stores the nvim client for all buffer operations
func (b *NvimBuffer) SetClient(n *nvim.Nvim) {
	b.client = n
}

// ID returns the buffer handle
func (b *NvimBuffer) ID() int { return int(b.id) }

// LineCount returns the number of lines in the buffer
func (b *NvimBuffer) LineCount() (int, error) {
	if b.client == nil {
		return 0, errNoClient
	}
	var count int
	batch := b.client.NewBatch()
	batch.ExecLua(`return vim.api.nvim_buf_line_count(...)`, &count, int(b.id))
	if err := batch.Execute(); err != nil {
		return 0, fmt.Errorf("line count of buffer %d: %w", b.id, err)
	}
	return count, nil
}

// GetLines returns lines [start, end), 0-indexed
func (b *NvimBuffer) GetLines(start, end int) ([]string, error) {
	if b.client == nil {
		return nil, errNoClient
	}
	var lines [][]byte
	batch := b.client.NewBatch()
	batch.BufferLines(b.id, start, end, true, &lines)
	if err := batch.Execute(); err != nil {
		return nil, fmt.Errorf("get lines [%d,%d) of buffer %d: %w", start, end, b.id, err)
	}
	return bytesToLines(lines), nil
}

// SetLines replaces lines [start, end), 0-indexed
func (b *NvimBuffer) SetLines(start, end int, lines []string) error {
	if b.client == nil {
		return errNoClient
	}
	defer logger.Trace("buffer.SetLines")()
	batch := b.client.NewBatch()
	batch.SetBufferLines(b.id, start, end, true, linesToBytes(lines))
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("set lines [%d,%d) of buffer %d: %w", start, end, b.id, err)
	}
	return nil
}

// placeExtmarkLua places an extmark and returns {id, clamped}. Neovim cannot
// put a mark on the line past the last one, so that position becomes the end
// of the last line and clamped is 1.
const placeExtmarkLua = `
local buf, ns, row, col, right = ...
local clamped = 0
local count = vim.api.nvim_buf_line_count(buf)
if row >= count then
	row = count - 1
	col = #(vim.api.nvim_buf_get_lines(buf, row, row + 1, false)[1] or "")
	clamped = 1
end
return { vim.api.nvim_buf_set_extmark(buf, ns, row, col, { right_gravity = right }), clamped }
`

// Place creates an extmark at pos
func (b *NvimBuffer) Place(pos anchor.Position, gravity anchor.Gravity) (anchor.ID, error) {
	if b.client == nil {
		return 0, errNoClient
	}
	var reply []int
	batch := b.client.NewBatch()
	batch.ExecLua(placeExtmarkLua, &reply, int(b.id), b.config.NsID, pos.Line, pos.Col, gravity == anchor.GravityRight)
	if err := batch.Execute(); err != nil {
		return 0, fmt.Errorf("place extmark at %s: %w", pos, err)
	}
	if len(reply) != 2 {
		return 0, fmt.Errorf("unexpected extmark reply %v", reply)
	}
	id := anchor.ID(reply[0])
	b.setClamped(id, reply[1] != 0)
	return id, nil
}

func (b *NvimBuffer) setClamped(id anchor.ID, clamped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if clamped {
		b.clamped[id] = true
	} else {
		delete(b.clamped, id)
	}
}

func (b *NvimBuffer) isClamped(id anchor.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clamped[id]
}

// Resolve returns the extmark's current position
func (b *NvimBuffer) Resolve(id anchor.ID) (anchor.Position, bool, error) {
	if b.client == nil {
		return anchor.Position{}, false, errNoClient
	}
	var pos []int
	batch := b.client.NewBatch()
	batch.ExecLua(`return vim.api.nvim_buf_get_extmark_by_id(...)`, &pos, int(b.id), b.config.NsID, int(id), map[string]any{})
	if err := batch.Execute(); err != nil {
		return anchor.Position{}, false, fmt.Errorf("resolve extmark %d: %w", id, err)
	}
	return extmarkPosition(pos, b.isClamped(id))
}

// Delete removes the extmark
func (b *NvimBuffer) Delete(id anchor.ID) error {
	if b.client == nil {
		return errNoClient
	}
	batch := b.client.NewBatch()
	batch.ExecLua(`vim.api.nvim_buf_del_extmark(...)`, nil, int(b.id), b.config.NsID, int(id))
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("delete extmark %d: %w", id, err)
	}
	b.setClamped(id, false)
	return nil
}

// ClearAnchors removes every extmark in the namespace
func (b *NvimBuffer) ClearAnchors() error {
	if b.client == nil {
		return errNoClient
	}
	batch := b.client.NewBatch()
	batch.ClearBufferNamespace(b.id, b.config.NsID, 0, -1)
	if err := batch.Execute(); err != nil {
		return err
	}
	b.mu.Lock()
	clear(b.clamped)
	b.mu.Unlock()
	return nil
}

// extmarkPosition reads the result of nvim_buf_get_extmark_by_id, which is
// an empty list for a mark that no longer exists. A clamped mark stands for
// the start of the line after the one it sits on, even when that line is
// empty and the mark's column is 0.
func extmarkPosition(pos []int, clamped bool) (anchor.Position, bool, error) {
	switch len(pos) {
	case 0:
		return anchor.Position{}, false, nil
	case 2:
		if clamped {
			return anchor.Position{Line: pos[0] + 1}, true, nil
		}
		return anchor.Position{Line: pos[0], Col: pos[1]}, true, nil
	default:
		return anchor.Position{}, false, fmt.Errorf("unexpected extmark position %v", pos)
	}
}

func linesToBytes(lines []string) [][]byte {
	out := make([][]byte, len(lines))
	for i, line := range lines {
		out[i] = []byte(line)
	}
	return out
}

func bytesToLines(lines [][]byte) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = string(line)
	}
	return out
}
