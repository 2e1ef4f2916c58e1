package graphql

// Plain replaces the ordered maps in v with plain maps.
func Plain(v any) any {
	switch x := v.(type) {
	case *OrderedMap:
		if x == nil {
			return nil
		}
		out := make(map[string]any, len(x.keys))
		for _, k := range x.keys {
			out[k] = Plain(x.values[k])
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Plain(item)
		}
		return out
	default:
		return v
	}
}
