package config

// Options is a loosely-typed option bag decoded straight from JSON config.
// The typed accessors tolerate the types encoding/json actually produces
// (bool, string, float64, nested maps) and fall back to defaults otherwise.
type Options map[string]any

// Bool returns the option as a bool, or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

// Int returns the option as an int, or def. JSON numbers arrive as float64.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// String returns the option as a string, or def.
func (o Options) String(key string, def string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return def
}

// Rune returns the first rune of a string option, or def. Used for the CSV
// field separator ("comma": ";").
func (o Options) Rune(key string, def rune) rune {
	s, ok := o[key].(string)
	if !ok || s == "" {
		return def
	}
	for _, r := range s {
		return r
	}
	return def
}

// StringMap returns a nested string-to-string option, or nil.
func (o Options) StringMap(key string) map[string]string {
	raw, ok := o[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
