package analyzer

// builtinNames is the closed set of runtime-library entry points (spec.md
// §4.4). The analyzer treats any bare symbol in this set as resolved even
// when no local or user-namespace binding shadows it; pkg/lisp's builtin
// registry must register exactly this set, so the two stay in lock-step —
// pkg/lisp's registry test compares the two via BuiltinNames.
var builtinNames = map[string]bool{
	// Arithmetic
	"+": true, "-": true, "*": true, "/": true,
	"inc": true, "dec": true, "abs": true, "mod": true, "min": true, "max": true,
	// Comparison
	"=": true, "not=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	// Boolean (not; and/or are special forms, not builtins)
	"not": true,
	// Sentinels
	"return": true, "fail": true,
	// Strings
	"str": true, "str-join": true, "split": true, "split-lines": true,
	"trim": true, "lower-case": true, "upper-case": true, "subs": true,
	"re-find": true, "re-seq": true, "starts-with?": true, "ends-with?": true,
	"contains?": true,
	// Collection
	"count": true, "empty?": true, "first": true, "second": true, "last": true,
	"nth": true, "rest": true, "next": true, "ffirst": true, "fnext": true,
	"nfirst": true, "nnext": true, "seq": true, "conj": true, "cons": true,
	"into": true, "concat": true, "flatten": true, "zip": true, "interleave": true,
	"take": true, "drop": true, "take-while": true, "drop-while": true,
	"distinct": true, "reverse": true, "sort": true, "sort-by": true,
	"group-by": true, "frequencies": true, "partition": true, "partition-all": true,
	"map-indexed": true, "keep": true, "keep-indexed": true,
	// Higher-order
	"map": true, "mapv": true, "filter": true, "remove": true, "find": true,
	"reduce": true, "some": true, "every?": true, "not-any?": true,
	"pluck": true, "sum-by": true, "avg-by": true, "min-by": true, "max-by": true,
	// Predicate combinators
	"where": true, "all-of": true, "any-of": true, "none-of": true,
	// Map ops
	"get": true, "get-in": true, "assoc": true, "assoc-in": true,
	"update": true, "update-in": true, "update-vals": true, "update-keys": true,
	"merge": true, "merge-with": true, "select-keys": true, "dissoc": true,
	"keys": true, "vals": true,
	// Set ops
	"union": true, "intersection": true, "difference": true,
	// I/O-like
	"println": true, "print": true,
	// Concurrency
	"pmap": true,
	// Type probes
	"nil?": true, "number?": true, "integer?": true, "float?": true,
	"string?": true, "keyword?": true, "map?": true, "vector?": true,
	"set?": true, "fn?": true,
}

func isBuiltin(name string) bool { return builtinNames[name] }

// BuiltinNames returns the analyzer's builtin set. pkg/lisp's tests compare
// it against the evaluator's registry so the two cannot drift apart.
func BuiltinNames() map[string]bool {
	out := make(map[string]bool, len(builtinNames))
	for k := range builtinNames {
		out[k] = true
	}
	return out
}

// specialForms are head symbols the analyzer handles syntactically rather
// than resolving and calling. "and"/"or" short-circuit; the rest desugar or
// construct Core AST nodes directly.
var specialForms = map[string]bool{
	"quote": true, "if": true, "do": true, "let": true, "fn": true,
	"defn": true, "def": true, "when": true, "cond": true,
	"->": true, "->>": true, "and": true, "or": true,
	"loop": true, "recur": true,
}
