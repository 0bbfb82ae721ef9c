package graph

import (
	"fmt"

	gremlingo "github.com/apache/tinkerpop/gremlin-go/v3/driver"
)

// Gremlin results arrive as loosely typed maps and slices whose key and
// value types vary by server and serializer. These helpers normalize them
// into plain Go shapes before anything else touches them.

// resultMap converts a projected or elementMap result into a map keyed by
// the string form of each key. T tokens (id, label) stringify to "id" and
// "label".
func resultMap(res *gremlingo.Result) (map[string]any, error) {
	if res == nil {
		return nil, fmt.Errorf("nil result")
	}
	raw := res.GetInterface()
	switch m := raw.(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected result type %T", raw)
	}
}

// asSlice unwraps a folded traversal result into a []any
func asSlice(v any) []any {
	switch s := v.(type) {
	case nil:
		return nil
	case []any:
		return s
	case *[]any:
		if s == nil {
			return nil
		}
		return *s
	default:
		return []any{s}
	}
}

// asBool reads a boolean property value; the second return reports whether
// the value was present and boolean
func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// asInt64 coerces the numeric types Gremlin servers hand back
func asInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// idKey gives a stable comparable form for an opaque element id
func idKey(id any) string {
	return fmt.Sprint(id)
}
