// Package value implements the PTC-Lisp value model (C1): a single tagged
// union covering every runtime value the evaluator can produce, plus a
// canonical printer used both for the `str` builtin and for round-tripping
// through the reader in tests.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags a Value's variant.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindKeyword
	KindSymbol
	KindVector
	KindMap
	KindSet
	KindClosure
	KindBuiltin
	KindVar
	KindReturn
	KindFail
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindKeyword:
		return "keyword"
	case KindSymbol:
		return "symbol"
	case KindVector:
		return "vector"
	case KindMap:
		return "map"
	case KindSet:
		return "set"
	case KindClosure:
		return "closure"
	case KindBuiltin:
		return "builtin"
	case KindVar:
		return "var"
	case KindReturn:
		return "return"
	case KindFail:
		return "fail"
	default:
		return "unknown"
	}
}

// BuiltinArity classifies how a Builtin checks its argument count.
type BuiltinArity int

const (
	ArityNormal BuiltinArity = iota
	ArityVariadic
	ArityVariadicNonEmpty
	ArityMultiple
)

// Fn is the Go implementation behind a Builtin value.
type Fn func(args []Value) (Value, error)

// Builtin wraps a native Go function as a callable Value.
type Builtin struct {
	Name  string
	Arity BuiltinArity
	Min   int // minimum argument count for variadic kinds
	Call  Fn
}

// Param describes one formal parameter of a Closure, supporting the
// destructuring forms named in spec.md §4.2.4.
type Param struct {
	Name   string   // simple binding name ("" if this is a destructuring pattern)
	Vector []Param  // non-nil for [a b & rest] style destructuring
	Rest   *Param   // non-nil if Vector ends in "& rest"
	Keys   []string // non-nil for {:keys [...]}
	Or     map[string]Value
	As     string // :as binding name, if present
	IsMap  bool
}

// Node is implemented by every core-AST node type (pkg/analyzer). Value
// lives below the analyzer in the import graph, so it only needs the
// marker interface, not the concrete node types.
type Node interface {
	Node()
}

// Env is implemented by the evaluator's lexical environment. Value only
// needs to hold a reference to it (for closures); it never calls into Env
// itself.
type Env interface {
	Lookup(name string) (Value, bool)
}

// Closure is a user- or analyzer-constructed function value.
type Closure struct {
	Params   []Param
	Variadic *Param // non-nil if the closure accepts "& rest"
	Body     []Node // body forms, evaluated with Do semantics
	Env      Env
	// NamespaceSnapshot captures the user namespace at closure-creation
	// time so sibling helpers remain reachable after the closure escapes
	// its defining `do` block (see spec.md §9 "Cyclic closures").
	NamespaceSnapshot map[string]Value
	Name              string // set by defn's metadata; "" for anonymous fn
}

// Var is a late-bound reference to a namespace entry, produced when a bare
// symbol resolves through ctx/, memory/, tool/ or user/ but is not yet
// invoked.
type Var struct {
	Namespace string
	Key       string
}

// Value is the tagged union. Exactly one of the typed fields is meaningful
// for a given Kind; callers must switch on Kind (or use the As* accessors)
// before reading a field.
type Value struct {
	Kind    Kind
	Bool    bool
	Int     int64
	Float   float64
	Str     string // String, Keyword, Symbol all store their text here
	Vector  []Value
	Map     *OrderedMap
	Set     *OrderedSet
	Closure *Closure
	Builtin *Builtin
	Var     *Var
	Payload *Value // Return(v)/Fail(v) inner value
}

// Nil is the canonical nil value.
var Nil = Value{Kind: KindNil}

func Bool(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value  { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value  { return Value{Kind: KindString, Str: s} }
func Keyword(s string) Value { return Value{Kind: KindKeyword, Str: s} }
func Symbol(s string) Value  { return Value{Kind: KindSymbol, Str: s} }
func Vector(vs []Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{Kind: KindVector, Vector: vs}
}
func Map(m *OrderedMap) Value   { return Value{Kind: KindMap, Map: m} }
func Set(s *OrderedSet) Value   { return Value{Kind: KindSet, Set: s} }
func ClosureV(c *Closure) Value { return Value{Kind: KindClosure, Closure: c} }
func BuiltinV(b *Builtin) Value { return Value{Kind: KindBuiltin, Builtin: b} }
func VarV(ns, key string) Value { return Value{Kind: KindVar, Var: &Var{Namespace: ns, Key: key}} }
func Return(v Value) Value      { return Value{Kind: KindReturn, Payload: &v} }
func Fail(v Value) Value        { return Value{Kind: KindFail, Payload: &v} }

// IsSentinel reports whether v is a Return or Fail value.
func (v Value) IsSentinel() bool { return v.Kind == KindReturn || v.Kind == KindFail }

// Truthy implements spec.md §4.3: only nil and false are falsy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNil:
		return false
	case KindBool:
		return v.Bool
	default:
		return true
	}
}

// Equal implements structural equality across vectors/maps/sets (spec.md §8
// property 6): keyword ":k" and string "k" are distinct keys.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		// Numeric tower: an Int and a Float compare equal iff numerically equal.
		if (a.Kind == KindInt && b.Kind == KindFloat) || (a.Kind == KindFloat && b.Kind == KindInt) {
			return numeric(a) == numeric(b)
		}
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindInt:
		return a.Int == b.Int
	case KindFloat:
		return a.Float == b.Float
	case KindString, KindKeyword, KindSymbol:
		return a.Str == b.Str
	case KindVector:
		if len(a.Vector) != len(b.Vector) {
			return false
		}
		for i := range a.Vector {
			if !Equal(a.Vector[i], b.Vector[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return a.Map.Equal(b.Map)
	case KindSet:
		return a.Set.Equal(b.Set)
	case KindVar:
		return a.Var.Namespace == b.Var.Namespace && a.Var.Key == b.Var.Key
	default:
		return false // closures/builtins compare by identity only, never equal here
	}
}

func numeric(v Value) float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}
	return v.Float
}

// HashKey returns a comparable Go value usable as a map key, preserving the
// keyword/string distinction required by spec.md §3.
func HashKey(v Value) interface{} {
	switch v.Kind {
	case KindNil:
		return nil
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return "s:" + v.Str
	case KindKeyword:
		return "k:" + v.Str
	case KindSymbol:
		return "y:" + v.Str
	default:
		return Print(v)
	}
}

// Print renders v in canonical PTC-Lisp syntax. For nil, booleans, ints,
// finite floats, strings, keywords, symbols and collections of these,
// Parse(Print(v)) reconstructs an equal Value (spec.md §8 property 1).
// Closure, Builtin, Var, Return and Fail values and non-finite floats
// print in forms the reader does not read back as the same Value.
func Print(v Value) string {
	var sb strings.Builder
	print(&sb, v)
	return sb.String()
}

func print(sb *strings.Builder, v Value) {
	switch v.Kind {
	case KindNil:
		sb.WriteString("nil")
	case KindBool:
		if v.Bool {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.Int, 10))
	case KindFloat:
		sb.WriteString(formatFloat(v.Float))
	case KindString:
		sb.WriteString(quoteString(v.Str))
	case KindKeyword:
		sb.WriteString(":")
		sb.WriteString(v.Str)
	case KindSymbol:
		sb.WriteString(v.Str)
	case KindVector:
		sb.WriteString("[")
		for i, e := range v.Vector {
			if i > 0 {
				sb.WriteString(" ")
			}
			print(sb, e)
		}
		sb.WriteString("]")
	case KindMap:
		sb.WriteString("{")
		for i, k := range v.Map.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			print(sb, k)
			sb.WriteString(" ")
			val, _ := v.Map.Get(k)
			print(sb, val)
		}
		sb.WriteString("}")
	case KindSet:
		sb.WriteString("#{")
		for i, e := range v.Set.Items() {
			if i > 0 {
				sb.WriteString(" ")
			}
			print(sb, e)
		}
		sb.WriteString("}")
	case KindClosure:
		name := v.Closure.Name
		if name == "" {
			name = "anonymous"
		}
		fmt.Fprintf(sb, "#<closure:%s>", name)
	case KindBuiltin:
		fmt.Fprintf(sb, "#<builtin:%s>", v.Builtin.Name)
	case KindVar:
		fmt.Fprintf(sb, "%s/%s", v.Var.Namespace, v.Var.Key)
	case KindReturn:
		sb.WriteString("#<return ")
		print(sb, *v.Payload)
		sb.WriteString(">")
	case KindFail:
		sb.WriteString("#<fail ")
		print(sb, *v.Payload)
		sb.WriteString(">")
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "##Inf"
	}
	if math.IsInf(f, -1) {
		return "##-Inf"
	}
	if math.IsNaN(f) {
		return "##NaN"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func quoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// TypeName returns the PTC-Lisp-facing type name for error messages.
func TypeName(v Value) string { return v.Kind.String() }
