package value

import (
	"encoding/json"
	"sort"
)

// FromJSON converts a generic JSON-decoded Go value (as produced by
// json.Unmarshal into interface{}) into a Value. Object keys become
// Keyword values, matching ctx/memory's GetFlex(Keyword(...)) lookup
// convention used throughout the evaluator.
func FromJSON(v any) Value {
	switch x := v.(type) {
	case nil:
		return Nil
	case bool:
		return Bool(x)
	case float64:
		if x == float64(int64(x)) {
			return Int(int64(x))
		}
		return Float(x)
	case string:
		return String(x)
	case []any:
		items := make([]Value, len(x))
		for i, e := range x {
			items[i] = FromJSON(e)
		}
		return Vector(items)
	case map[string]any:
		// json.Unmarshal already discarded the document's key order, so sort
		// for a deterministic OrderedMap layout.
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewOrderedMap()
		for _, k := range keys {
			m.Set(Keyword(k), FromJSON(x[k]))
		}
		return Map(m)
	default:
		return Nil
	}
}

// ParseJSON decodes JSON text directly into a Value.
func ParseJSON(data []byte) (Value, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Nil, err
	}
	return FromJSON(v), nil
}

// ToJSON converts a Value into a plain Go value suitable for
// json.Marshal. Sets serialize as JSON arrays (order per Items());
// keywords/symbols serialize as their bare text.
func ToJSON(v Value) any {
	switch v.Kind {
	case KindNil:
		return nil
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString, KindKeyword, KindSymbol:
		return v.Str
	case KindVector:
		out := make([]any, len(v.Vector))
		for i, e := range v.Vector {
			out[i] = ToJSON(e)
		}
		return out
	case KindSet:
		items := v.Set.Items()
		out := make([]any, len(items))
		for i, e := range items {
			out[i] = ToJSON(e)
		}
		return out
	case KindMap:
		out := make(map[string]any, v.Map.Len())
		for _, e := range v.Map.Entries() {
			out[displayKeyJSON(e[0])] = ToJSON(e[1])
		}
		return out
	default:
		return Print(v)
	}
}

func displayKeyJSON(v Value) string {
	switch v.Kind {
	case KindString, KindKeyword, KindSymbol:
		return v.Str
	default:
		return Print(v)
	}
}
