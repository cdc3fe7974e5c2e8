package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffResultToLuaFormatAdditionalFields(t *testing.T) {
	d := &DiffResult{
		Changes: []ChangeRecord{{
			Original: LineRange{StartLine: 2, EndLine: 3},
			Modified: LineRange{StartLine: 2, EndLine: 4},
		}},
	}

	m := d.ToLuaFormat("id", "abc", "conflicts", 2, 42, "ignored", "dangling")

	assert.Equal(t, "abc", m["id"])
	assert.Equal(t, 2, m["conflicts"])
	assert.Equal(t, false, m["truncated"])
	assert.NotContains(t, m, "dangling", "a key without a value is dropped")
	assert.Len(t, m, 4, "non-string keys are skipped")

	changes := m["changes"].([]map[string]any)
	assert.Equal(t, map[string]any{"start_line": 2, "end_line": 4}, changes[0]["modified"])
}

func TestLuaInt(t *testing.T) {
	for _, v := range []any{int(7), int8(7), int64(7), uint8(7), float64(7)} {
		n, ok := LuaInt(v)
		assert.True(t, ok, "%T", v)
		assert.Equal(t, 7, n)
	}

	_, ok := LuaInt("7")
	assert.False(t, ok)
}
