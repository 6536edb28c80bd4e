package typesystem

import (
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
)

// Meta is a compile-time value: the domain of the constant folder. Its type
// classifies the active arm. The zero Meta has no type and means "not
// foldable".
type Meta struct {
	typ Type
	i   int64
	u   uint64
	f   float64
	b   bool
	t   Type
	sym uint64
	ref *Meta
	box box
}

// box is a shared heap payload. Boxes are shared by pointer between Meta
// copies; Clone performs the structural deep copy of mutable containers.
type box interface {
	clone() box
}

type stringBox struct{ s string }
type listBox struct{ head, tail Meta }
type tupleBox struct{ vals []Meta }
type arrayBox struct{ vals []Meta }
type blockBox struct{ vals []Meta }
type unionBox struct{ val Meta }
type intersectBox struct{ vals []Meta }

// funcBox carries a value-graph node. The node is opaque here to keep the
// dependency one-way; the value package owns its concrete type.
type funcBox struct {
	fn       interface{}
	captures map[string]Meta
}

type macroBox struct{ fn interface{} }

func (b *stringBox) clone() box { return &stringBox{s: b.s} }
func (b *listBox) clone() box   { return &listBox{head: b.head.Clone(), tail: b.tail.Clone()} }
func (b *tupleBox) clone() box  { return &tupleBox{vals: cloneAll(b.vals)} }
func (b *arrayBox) clone() box  { return &arrayBox{vals: cloneAll(b.vals)} }
func (b *blockBox) clone() box  { return &blockBox{vals: cloneAll(b.vals)} }
func (b *unionBox) clone() box  { return &unionBox{val: b.val.Clone()} }
func (b *intersectBox) clone() box {
	return &intersectBox{vals: cloneAll(b.vals)}
}
func (b *funcBox) clone() box  { return b }
func (b *macroBox) clone() box { return b }

func cloneAll(vals []Meta) []Meta {
	out := make([]Meta, len(vals))
	for i, v := range vals {
		out[i] = v.Clone()
	}
	return out
}

// Constructors.

func MetaVoid() Meta                   { return Meta{typ: Void} }
func MetaEmpty() Meta                  { return Meta{typ: Empty} }
func MetaInt(t Type, v int64) Meta     { return Meta{typ: t, i: v} }
func MetaUint(t Type, v uint64) Meta   { return Meta{typ: t, u: v} }
func MetaFloat(t Type, v float64) Meta { return Meta{typ: t, f: v} }
func MetaType(t Type) Meta             { return Meta{typ: TypeType, t: t} }
func MetaBool(v bool) Meta             { return Meta{typ: Bool, b: v} }
func MetaChar(r rune) Meta             { return Meta{typ: Char, i: int64(r)} }

func MetaSymbol(name string) Meta {
	return Meta{typ: Symbol, sym: FindSymbol(name)}
}

func MetaString(s string) Meta {
	return Meta{typ: String, box: &stringBox{s: s}}
}

func MetaRef(target *Meta, t Type) Meta {
	return Meta{typ: t, ref: target}
}

func MetaList(t Type, head, tail Meta) Meta {
	return Meta{typ: t, box: &listBox{head: head, tail: tail}}
}

func MetaTuple(t Type, vals []Meta) Meta {
	return Meta{typ: t, box: &tupleBox{vals: vals}}
}

func MetaArray(t Type, vals []Meta) Meta {
	return Meta{typ: t, box: &arrayBox{vals: vals}}
}

func MetaBlock(t Type, vals []Meta) Meta {
	return Meta{typ: t, box: &blockBox{vals: vals}}
}

func MetaUnion(t Type, val Meta) Meta {
	return Meta{typ: t, box: &unionBox{val: val}}
}

func MetaIntersect(t Type, vals []Meta) Meta {
	return Meta{typ: t, box: &intersectBox{vals: vals}}
}

func MetaFunction(t Type, fn interface{}) Meta {
	return Meta{typ: t, box: &funcBox{fn: fn}}
}

func MetaFunctionWithCaptures(t Type, fn interface{}, captures map[string]Meta) Meta {
	return Meta{typ: t, box: &funcBox{fn: fn, captures: captures}}
}

func MetaMacro(t Type, fn interface{}) Meta {
	return Meta{typ: t, box: &macroBox{fn: fn}}
}

// Type returns the classifying type, nil for the not-foldable Meta.
func (m Meta) Type() Type { return m.typ }

// Valid reports whether m holds a value at all.
func (m Meta) Valid() bool { return m.typ != nil }

func (m Meta) IsVoid() bool { return m.typ == Void }

func (m Meta) IsInt() bool {
	nt, ok := m.typ.(*NumericType)
	return ok && !nt.Floating() && nt.Signed()
}

func (m Meta) IsUint() bool {
	nt, ok := m.typ.(*NumericType)
	return ok && !nt.Floating() && !nt.Signed()
}

func (m Meta) IsFloat() bool {
	nt, ok := m.typ.(*NumericType)
	return ok && nt.Floating()
}

func (m Meta) IsChar() bool   { return m.typ == Char }
func (m Meta) IsType() bool   { return m.typ == TypeType }
func (m Meta) IsBool() bool   { return m.typ == Bool }
func (m Meta) IsSymbol() bool { return m.typ == Symbol }

func (m Meta) IsRef() bool {
	_, ok := m.typ.(*ReferenceType)
	return ok && m.ref != nil
}

func (m Meta) IsString() bool {
	_, ok := m.box.(*stringBox)
	return m.typ == String && ok
}

func (m Meta) IsList() bool {
	_, ok := m.typ.(*ListType)
	return ok && m.box != nil
}

func (m Meta) IsTuple() bool {
	_, ok := m.box.(*tupleBox)
	return ok
}

func (m Meta) IsArray() bool {
	_, ok := m.box.(*arrayBox)
	return ok
}

func (m Meta) IsBlock() bool {
	_, ok := m.box.(*blockBox)
	return ok
}

func (m Meta) IsUnion() bool {
	_, ok := m.box.(*unionBox)
	return ok
}

func (m Meta) IsIntersect() bool {
	_, ok := m.box.(*intersectBox)
	return ok
}

func (m Meta) IsFunction() bool {
	_, ok := m.box.(*funcBox)
	return ok
}

func (m Meta) IsMacro() bool {
	_, ok := m.box.(*macroBox)
	return ok
}

func (m Meta) AsInt() int64     { return m.i }
func (m Meta) AsUint() uint64   { return m.u }
func (m Meta) AsFloat() float64 { return m.f }
func (m Meta) AsType() Type     { return m.t }
func (m Meta) AsBool() bool     { return m.b }
func (m Meta) AsSymbol() uint64 { return m.sym }
func (m Meta) AsChar() rune     { return rune(m.i) }

// AsRef returns the referenced Meta for in-place update.
func (m Meta) AsRef() *Meta { return m.ref }

func (m Meta) AsString() string {
	return m.box.(*stringBox).s
}

// SetString rewrites the shared string payload in place.
func (m Meta) SetString(s string) {
	m.box.(*stringBox).s = s
}

func (m Meta) ListHead() *Meta { return &m.box.(*listBox).head }
func (m Meta) ListTail() *Meta { return &m.box.(*listBox).tail }

func (m Meta) AsTuple() []Meta     { return m.box.(*tupleBox).vals }
func (m Meta) AsArray() []Meta     { return m.box.(*arrayBox).vals }
func (m Meta) AsBlock() []Meta     { return m.box.(*blockBox).vals }
func (m Meta) AsUnion() *Meta      { return &m.box.(*unionBox).val }
func (m Meta) AsIntersect() []Meta { return m.box.(*intersectBox).vals }

// IntersectAs returns the member of an intersection Meta with the given
// type, or the invalid Meta.
func (m Meta) IntersectAs(t Type) Meta {
	for _, v := range m.AsIntersect() {
		if v.Type() == t {
			return v
		}
	}
	return Meta{}
}

// FuncNode returns the value-graph node of a function Meta.
func (m Meta) FuncNode() interface{} {
	return m.box.(*funcBox).fn
}

// FuncCaptures returns the captures table of a function Meta, nil if none.
func (m Meta) FuncCaptures() map[string]Meta {
	return m.box.(*funcBox).captures
}

// SetFuncCaptures installs the captures table on a function Meta.
func (m Meta) SetFuncCaptures(captures map[string]Meta) {
	m.box.(*funcBox).captures = captures
}

// MacroNode returns the value-graph node of a macro Meta.
func (m Meta) MacroNode() interface{} {
	return m.box.(*macroBox).fn
}

// Clone deep-copies mutable containers, leaving immutable payloads shared.
func (m Meta) Clone() Meta {
	if m.box != nil {
		out := m
		out.box = m.box.clone()
		return out
	}
	return m
}

// Equals is structural equality; it agrees with Hash.
func (m Meta) Equals(o Meta) bool {
	if m.typ != o.typ {
		return false
	}
	if m.typ == nil {
		return true
	}
	switch {
	case m.IsVoid():
		return true
	case m.IsInt(), m.IsChar():
		return m.i == o.i
	case m.IsUint():
		return m.u == o.u
	case m.IsFloat():
		return m.f == o.f
	case m.IsType():
		return m.t == o.t
	case m.IsBool():
		return m.b == o.b
	case m.IsSymbol():
		return m.sym == o.sym
	case m.IsString():
		return m.AsString() == o.AsString()
	case m.IsRef():
		return m.ref == o.ref
	case m.IsList():
		return m.ListHead().Equals(*o.ListHead()) && m.ListTail().Equals(*o.ListTail())
	case m.IsTuple():
		return metasEqual(m.AsTuple(), o.AsTuple())
	case m.IsArray():
		return metasEqual(m.AsArray(), o.AsArray())
	case m.IsBlock():
		return metasEqual(m.AsBlock(), o.AsBlock())
	case m.IsUnion():
		return m.AsUnion().Equals(*o.AsUnion())
	case m.IsIntersect():
		return metasEqual(m.AsIntersect(), o.AsIntersect())
	case m.IsFunction():
		return m.FuncNode() == o.FuncNode()
	case m.IsMacro():
		return m.MacroNode() == o.MacroNode()
	}
	return true
}

func metasEqual(a, b []Meta) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equals(b[i]) {
			return false
		}
	}
	return true
}

// Hash is defined recursively and agrees with Equals.
func (m Meta) Hash() uint64 {
	h := uint64(0)
	if m.typ != nil {
		h = hashString(m.typ.Key())
	}
	switch {
	case m.typ == nil, m.IsVoid():
		return h
	case m.IsInt(), m.IsChar():
		return h ^ hashUint(uint64(m.i))
	case m.IsUint():
		return h ^ hashUint(m.u)
	case m.IsFloat():
		return h ^ hashUint(math.Float64bits(m.f))
	case m.IsType():
		return h ^ hashString(m.t.Key())
	case m.IsBool():
		if m.b {
			return h ^ hashUint(1)
		}
		return h ^ hashUint(0)
	case m.IsSymbol():
		return h ^ hashUint(m.sym)
	case m.IsString():
		return h ^ hashString(m.AsString())
	case m.IsRef():
		return h ^ m.ref.Hash()
	case m.IsList():
		return h ^ m.ListHead().Hash() ^ m.ListTail().Hash()
	case m.IsTuple():
		return h ^ hashMetas(m.AsTuple())
	case m.IsArray():
		return h ^ hashMetas(m.AsArray())
	case m.IsBlock():
		return h ^ hashMetas(m.AsBlock())
	case m.IsUnion():
		return h ^ m.AsUnion().Hash()
	case m.IsIntersect():
		return h ^ hashMetas(m.AsIntersect())
	case m.IsFunction():
		return h ^ hashString(fmt.Sprintf("%p", m.FuncNode()))
	case m.IsMacro():
		return h ^ hashString(fmt.Sprintf("%p", m.MacroNode()))
	}
	return h
}

func hashMetas(vals []Meta) uint64 {
	h := uint64(0)
	for _, v := range vals {
		h ^= v.Hash()
	}
	return h
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func hashUint(v uint64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	h.Write(buf[:])
	return h.Sum64()
}

// String renders the value the way the REPL prints fold results.
func (m Meta) String() string {
	switch {
	case m.typ == nil:
		return "<null>"
	case m.IsVoid():
		return "()"
	case m.typ == Empty:
		return "[]"
	case m.IsInt():
		return strconv.FormatInt(m.i, 10)
	case m.IsUint():
		return strconv.FormatUint(m.u, 10)
	case m.IsChar():
		return "'" + string(rune(m.i)) + "'"
	case m.IsFloat():
		return formatFloat(m.f)
	case m.IsType():
		return m.t.String()
	case m.IsBool():
		return strconv.FormatBool(m.b)
	case m.IsSymbol():
		return SymbolName(m.sym)
	case m.IsString():
		return m.AsString()
	case m.IsRef():
		return "~" + m.ref.String()
	case m.IsList():
		return "(" + m.ListHead().String() + " :: " + m.ListTail().String() + ")"
	case m.IsTuple():
		return "(" + joinMetas(m.AsTuple(), ", ") + ")"
	case m.IsArray():
		return "[" + joinMetas(m.AsArray(), " ") + "]"
	case m.IsBlock():
		return "[" + joinMetas(m.AsBlock(), " ") + "]"
	case m.IsUnion():
		return m.AsUnion().String()
	case m.IsIntersect():
		return "(" + joinMetas(m.AsIntersect(), " & ") + ")"
	case m.IsFunction():
		return "<function>"
	case m.IsMacro():
		return "<macro>"
	}
	return "<unknown>"
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func joinMetas(vals []Meta, sep string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, sep)
}
