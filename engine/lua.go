package engine

import (
	"mergetool/tracker"
)

func blockToLua(b tracker.Block) map[string]any {
	m := b.Merge.ToLuaFormat()
	m["index"] = b.Index
	m["state"] = b.State.String()
	m["range"] = b.Range.ToLuaFormat()
	return m
}

func blocksToLua(blocks []tracker.Block) []map[string]any {
	out := make([]map[string]any, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, blockToLua(b))
	}
	return out
}

func diagnosticsToLua(diags []tracker.Diagnostic) []map[string]any {
	out := make([]map[string]any, 0, len(diags))
	for _, d := range diags {
		out = append(out, map[string]any{
			"block":   d.Block,
			"message": d.Err.Error(),
		})
	}
	return out
}

func statsToLua(s tracker.Stats) map[string]any {
	return map[string]any{
		"unresolved":        s.Unresolved,
		"auto_resolved":     s.AutoResolved,
		"manually_resolved": s.ManuallyResolved,
		"removed":           s.Removed,
		"dropped":           s.Dropped,
	}
}
