package types

// ToLuaFormat converts a LineRange to a Lua-friendly map format
func (r LineRange) ToLuaFormat() map[string]any {
	return map[string]any{
		"start_line": r.StartLine,
		"end_line":   r.EndLine,
	}
}

// ToLuaFormat converts a CharRange to a Lua-friendly map format
func (r CharRange) ToLuaFormat() map[string]any {
	return map[string]any{
		"line":      r.Line,
		"start_col": r.StartCol,
		"end_col":   r.EndCol,
	}
}

func charChangesToLua(changes []CharChange) []map[string]any {
	out := make([]map[string]any, 0, len(changes))
	for _, c := range changes {
		out = append(out, map[string]any{
			"original": c.Original.ToLuaFormat(),
			"modified": c.Modified.ToLuaFormat(),
		})
	}
	return out
}

// ToLuaFormat converts a ChangeRecord to a Lua-friendly map format
func (c ChangeRecord) ToLuaFormat() map[string]any {
	return map[string]any{
		"original":      c.Original.ToLuaFormat(),
		"modified":      c.Modified.ToLuaFormat(),
		"inner_changes": charChangesToLua(c.InnerChanges),
	}
}

// ToLuaFormat converts a DiffResult to a Lua-friendly map format.
// Additional fields can be passed as key-value pairs: ToLuaFormat("id", sessionID)
func (d *DiffResult) ToLuaFormat(additionalFields ...any) map[string]any {
	changes := make([]map[string]any, 0, len(d.Changes))
	for _, c := range d.Changes {
		changes = append(changes, c.ToLuaFormat())
	}

	luaFormat := map[string]any{
		"changes":   changes,
		"truncated": d.Truncated,
	}

	for i := 0; i < len(additionalFields)-1; i += 2 {
		if key, ok := additionalFields[i].(string); ok {
			luaFormat[key] = additionalFields[i+1]
		}
	}

	return luaFormat
}

// ToLuaFormat converts a MergeBlock to a Lua-friendly map format
func (b MergeBlock) ToLuaFormat() map[string]any {
	return map[string]any{
		"base_range":    b.BaseRange.ToLuaFormat(),
		"output1_range": b.Output1Range.ToLuaFormat(),
		"output2_range": b.Output2Range.ToLuaFormat(),
		"inner1":        charChangesToLua(b.Inner1),
		"inner2":        charChangesToLua(b.Inner2),
		"conflict":      b.IsConflict(),
	}
}

// DiffOptionsFromLua reads options from a Lua table. Unknown keys are ignored;
// values of the wrong type are InvalidInput.
func DiffOptionsFromLua(m map[string]any, defaults DiffOptions) (DiffOptions, error) {
	opts := defaults
	if m == nil {
		return opts, nil
	}
	if v, ok := m["max_computation_time_ms"]; ok {
		n, ok := LuaInt(v)
		if !ok {
			return opts, Invalidf("max_computation_time_ms must be a number, got %T", v)
		}
		opts.MaxComputationTimeMs = n
	}
	if v, ok := m["ignore_trim_whitespace"]; ok {
		b, ok := v.(bool)
		if !ok {
			return opts, Invalidf("ignore_trim_whitespace must be a boolean, got %T", v)
		}
		opts.IgnoreTrimWhitespace = b
	}
	return opts, opts.Validate()
}

// LuaInt converts a decoded Lua number to int. It accepts the numeric types msgpack decoding produces
func LuaInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
