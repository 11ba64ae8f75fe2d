package value

// OrderedMap is an insertion-ordered mapping from Value to Value. Keys are
// compared via HashKey so keyword/string keys stay distinct (spec.md §3),
// while iteration order is deterministic (insertion order; an overwritten
// key keeps its original position — matches Clojure's map print
// order well enough for the testable properties in spec.md §8).
type OrderedMap struct {
	order []interface{} // HashKey order, for iteration
	keys  map[interface{}]Value
	vals  map[interface{}]Value
}

// NewOrderedMap returns an empty map.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{
		keys: make(map[interface{}]Value),
		vals: make(map[interface{}]Value),
	}
}

// Set inserts or overwrites a key, preserving its original position on
// overwrite (Clojure map semantics).
func (m *OrderedMap) Set(k, v Value) {
	hk := HashKey(k)
	if _, exists := m.vals[hk]; !exists {
		m.order = append(m.order, hk)
	}
	m.keys[hk] = k
	m.vals[hk] = v
}

// Get performs an exact (non-coerced) lookup.
func (m *OrderedMap) Get(k Value) (Value, bool) {
	v, ok := m.vals[HashKey(k)]
	return v, ok
}

// GetFlex implements the flexible string/keyword lookup from spec.md §4.4:
// try the literal key first, then its coerced (string<->keyword) form.
// Writes never coerce: Set stores a key exactly as given.
func (m *OrderedMap) GetFlex(k Value) (Value, bool) {
	if v, ok := m.Get(k); ok {
		return v, true
	}
	switch k.Kind {
	case KindString:
		return m.Get(Keyword(k.Str))
	case KindKeyword:
		return m.Get(String(k.Str))
	default:
		return Nil, false
	}
}

// Delete removes a key if present.
func (m *OrderedMap) Delete(k Value) {
	hk := HashKey(k)
	if _, ok := m.vals[hk]; !ok {
		return
	}
	delete(m.vals, hk)
	delete(m.keys, hk)
	for i, o := range m.order {
		if o == hk {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int { return len(m.order) }

// Keys returns keys in insertion order.
func (m *OrderedMap) Keys() []Value {
	out := make([]Value, 0, len(m.order))
	for _, hk := range m.order {
		out = append(out, m.keys[hk])
	}
	return out
}

// Entries returns [k, v] pairs in insertion order.
func (m *OrderedMap) Entries() [][2]Value {
	out := make([][2]Value, 0, len(m.order))
	for _, hk := range m.order {
		out = append(out, [2]Value{m.keys[hk], m.vals[hk]})
	}
	return out
}

// Clone returns a shallow copy (values are not deep-copied; PTC-Lisp values
// other than closures are immutable once constructed, so this is safe).
func (m *OrderedMap) Clone() *OrderedMap {
	c := NewOrderedMap()
	for _, e := range m.Entries() {
		c.Set(e[0], e[1])
	}
	return c
}

// Equal reports structural equality between two maps.
func (m *OrderedMap) Equal(o *OrderedMap) bool {
	if m.Len() != o.Len() {
		return false
	}
	for _, e := range m.Entries() {
		ov, ok := o.Get(e[0])
		if !ok || !Equal(e[1], ov) {
			return false
		}
	}
	return true
}

// MapOf is a convenience constructor from alternating key/value Values.
func MapOf(kvs ...Value) *OrderedMap {
	m := NewOrderedMap()
	for i := 0; i+1 < len(kvs); i += 2 {
		m.Set(kvs[i], kvs[i+1])
	}
	return m
}

// OrderedSet is an insertion-ordered set of Values.
type OrderedSet struct {
	order []interface{}
	items map[interface{}]Value
}

// NewOrderedSet returns an empty set.
func NewOrderedSet() *OrderedSet {
	return &OrderedSet{items: make(map[interface{}]Value)}
}

// Add inserts v if not already present.
func (s *OrderedSet) Add(v Value) {
	hk := HashKey(v)
	if _, ok := s.items[hk]; ok {
		return
	}
	s.items[hk] = v
	s.order = append(s.order, hk)
}

// Contains reports whether v is a member.
func (s *OrderedSet) Contains(v Value) bool {
	_, ok := s.items[HashKey(v)]
	return ok
}

// Remove deletes v if present.
func (s *OrderedSet) Remove(v Value) {
	hk := HashKey(v)
	if _, ok := s.items[hk]; !ok {
		return
	}
	delete(s.items, hk)
	for i, o := range s.order {
		if o == hk {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of members.
func (s *OrderedSet) Len() int { return len(s.order) }

// Items returns members in insertion order.
func (s *OrderedSet) Items() []Value {
	out := make([]Value, 0, len(s.order))
	for _, hk := range s.order {
		out = append(out, s.items[hk])
	}
	return out
}

// Equal reports structural equality between two sets.
func (s *OrderedSet) Equal(o *OrderedSet) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, v := range s.Items() {
		if !o.Contains(v) {
			return false
		}
	}
	return true
}

// SetOf is a convenience constructor.
func SetOf(vs ...Value) *OrderedSet {
	s := NewOrderedSet()
	for _, v := range vs {
		s.Add(v)
	}
	return s
}

// Union returns a new set containing members of both a and b.
func Union(a, b *OrderedSet) *OrderedSet {
	out := NewOrderedSet()
	for _, v := range a.Items() {
		out.Add(v)
	}
	for _, v := range b.Items() {
		out.Add(v)
	}
	return out
}

// Intersection returns members present in both a and b.
func Intersection(a, b *OrderedSet) *OrderedSet {
	out := NewOrderedSet()
	for _, v := range a.Items() {
		if b.Contains(v) {
			out.Add(v)
		}
	}
	return out
}

// Difference returns members of a not present in b.
func Difference(a, b *OrderedSet) *OrderedSet {
	out := NewOrderedSet()
	for _, v := range a.Items() {
		if !b.Contains(v) {
			out.Add(v)
		}
	}
	return out
}
