package lisp

import (
	"math"

	"ptc-lisp/pkg/value"
)

// ApplyMemoryContract implements spec.md §4.5, run once on the outermost
// return of a program:
//   - a non-map return v yields {return: v, memory_delta: {}, memory: starting}
//   - a map return without :result merges every entry into memory
//   - a map return with :result splits it out as the return, merging the rest
func ApplyMemoryContract(result value.Value, starting *value.OrderedMap) (ret value.Value, memoryDelta, memory *value.OrderedMap) {
	if result.Kind != value.KindMap {
		return result, value.NewOrderedMap(), starting
	}
	if _, hasResult := result.Map.Get(value.Keyword("result")); !hasResult {
		delta := result.Map.Clone()
		merged := starting.Clone()
		for _, e := range delta.Entries() {
			merged.Set(e[0], e[1])
		}
		return result, delta, merged
	}
	returnVal, _ := result.Map.Get(value.Keyword("result"))
	delta := value.NewOrderedMap()
	for _, e := range result.Map.Entries() {
		if value.Equal(e[0], value.Keyword("result")) {
			continue
		}
		delta.Set(e[0], e[1])
	}
	merged := starting.Clone()
	for _, e := range delta.Entries() {
		merged.Set(e[0], e[1])
	}
	return returnVal, delta, merged
}

// RoundFloats recursively rounds every Float occurrence in v to precision
// decimal places, preserving map key order (spec.md §4.5). The stored
// memory is never rounded — callers apply this only to the return value.
func RoundFloats(v value.Value, precision int) value.Value {
	switch v.Kind {
	case value.KindFloat:
		return value.Float(roundTo(v.Float, precision))
	case value.KindVector:
		out := make([]value.Value, len(v.Vector))
		for i, e := range v.Vector {
			out[i] = RoundFloats(e, precision)
		}
		return value.Vector(out)
	case value.KindMap:
		out := value.NewOrderedMap()
		for _, e := range v.Map.Entries() {
			out.Set(e[0], RoundFloats(e[1], precision))
		}
		return value.Map(out)
	case value.KindSet:
		out := value.NewOrderedSet()
		for _, e := range v.Set.Items() {
			out.Add(RoundFloats(e, precision))
		}
		return value.Set(out)
	default:
		return v
	}
}

func roundTo(f float64, precision int) float64 {
	if precision < 0 {
		return f
	}
	scale := math.Pow(10, float64(precision))
	return math.Round(f*scale) / scale
}
