// Package typesystem implements the interned type algebra and the Meta
// compile-time values that flow through constant folding. Types are interned
// by structural key: requesting the same shape twice returns the same
// pointer, so type equality is pointer equality.
package typesystem

import (
	"fmt"
	"sort"
	"strings"
)

// Type is the interface of every interned type.
type Type interface {
	// Key is the canonical structural key used for interning.
	Key() string
	// Size is the byte size of a value of this type.
	Size() int
	// ID is the unique interning id, assigned in creation order.
	ID() uint32
	// Implicitly reports whether this type coerces to other without an
	// explicit cast.
	Implicitly(other Type) bool
	// Explicitly reports whether a user-requested conversion to other is
	// possible.
	Explicitly(other Type) bool
	// ConflictsWith reports whether this type and other may not coexist in
	// one intersection.
	ConflictsWith(other Type) bool
	String() string
}

var (
	pool   = map[string]Type{}
	nextID uint32
)

// intern returns the pooled instance for key, constructing it with mk on
// first use.
func intern(key string, mk func() Type) Type {
	if t, ok := pool[key]; ok {
		return t
	}
	t := mk()
	pool[key] = t
	return t
}

func takeID() uint32 {
	id := nextID
	nextID++
	return id
}

// base carries the fields shared by every type variant.
type base struct {
	key  string
	size int
	id   uint32
}

func (b *base) Key() string { return b.key }
func (b *base) Size() int   { return b.size }
func (b *base) ID() uint32  { return b.id }

// baseImplicitly is the identity/Any rule shared by all types.
func baseImplicitly(self, other Type) bool {
	return other == self || other == Any
}

// BaseType is an atomic type with no structure: bool, void, any, etc.
type BaseType struct {
	base
	name string
}

func newBase(name string, size int) *BaseType {
	return intern(name, func() Type {
		return &BaseType{base: base{key: name, size: size, id: takeID()}, name: name}
	}).(*BaseType)
}

func (t *BaseType) Implicitly(other Type) bool    { return baseImplicitly(t, other) }
func (t *BaseType) Explicitly(other Type) bool    { return baseImplicitly(t, other) }
func (t *BaseType) ConflictsWith(other Type) bool { return t == other }
func (t *BaseType) String() string                { return t.name }

// NumericType is a fixed-width integer or floating-point type.
type NumericType struct {
	base
	floating bool
	signed   bool
}

// Numeric interns the numeric type of the given byte width.
func Numeric(size int, floating, signed bool) *NumericType {
	prefix := "u"
	if floating {
		prefix = "f"
	} else if signed {
		prefix = "i"
	}
	key := fmt.Sprintf("%s%d", prefix, size*8)
	return intern(key, func() Type {
		return &NumericType{
			base:     base{key: key, size: size, id: takeID()},
			floating: floating,
			signed:   signed,
		}
	}).(*NumericType)
}

func (t *NumericType) Floating() bool { return t.floating }
func (t *NumericType) Signed() bool   { return t.signed }

func (t *NumericType) Implicitly(other Type) bool {
	if baseImplicitly(t, other) {
		return true
	}
	nt, ok := other.(*NumericType)
	if !ok {
		return false
	}
	if t.floating {
		return nt.floating && nt.size >= t.size
	}
	return !nt.floating && nt.signed == t.signed && nt.size >= t.size
}

func (t *NumericType) Explicitly(other Type) bool {
	if baseImplicitly(t, other) {
		return true
	}
	_, ok := other.(*NumericType)
	return ok
}

func (t *NumericType) ConflictsWith(other Type) bool { return t == other }
func (t *NumericType) String() string                { return t.key }

// TupleType is an ordered sequence of member types with byte offsets.
type TupleType struct {
	base
	members []Type
	offsets []int
}

// Tuple interns the tuple of the given member types.
func Tuple(members ...Type) *TupleType {
	var sb strings.Builder
	sb.WriteString("[T")
	size := 0
	offsets := make([]int, len(members))
	for i, m := range members {
		offsets[i] = size
		size += m.Size()
		sb.WriteString(" ")
		sb.WriteString(m.Key())
	}
	sb.WriteString("]")
	key := sb.String()
	return intern(key, func() Type {
		return &TupleType{
			base:    base{key: key, size: size, id: takeID()},
			members: append([]Type(nil), members...),
			offsets: offsets,
		}
	}).(*TupleType)
}

func (t *TupleType) Members() []Type   { return t.members }
func (t *TupleType) Member(i int) Type { return t.members[i] }
func (t *TupleType) Offset(i int) int  { return t.offsets[i] }
func (t *TupleType) Count() int        { return len(t.members) }

func (t *TupleType) Implicitly(other Type) bool {
	if baseImplicitly(t, other) {
		return true
	}
	tt, ok := other.(*TupleType)
	if !ok || len(tt.members) != len(t.members) {
		return false
	}
	for i, m := range t.members {
		if !m.Implicitly(tt.members[i]) {
			return false
		}
	}
	return true
}

func (t *TupleType) Explicitly(other Type) bool {
	if baseImplicitly(t, other) {
		return true
	}
	if other == TypeType {
		return allTypes(t.members)
	}
	tt, ok := other.(*TupleType)
	if !ok || len(tt.members) != len(t.members) {
		return false
	}
	for i, m := range t.members {
		if !m.Explicitly(tt.members[i]) {
			return false
		}
	}
	return true
}

func (t *TupleType) ConflictsWith(other Type) bool { return t == other }

func (t *TupleType) String() string {
	parts := make([]string, len(t.members))
	for i, m := range t.members {
		parts[i] = m.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func allTypes(members []Type) bool {
	for _, m := range members {
		if m != TypeType {
			return false
		}
	}
	return true
}

// BlockType is the tuple-of-terms type used to represent syntactic
// groupings. Unlike TupleType it carries no offsets and occupies no storage.
type BlockType struct {
	base
	members []Type
}

// Block interns the block type of the given member types.
func Block(members ...Type) *BlockType {
	var sb strings.Builder
	sb.WriteString("[B")
	for _, m := range members {
		sb.WriteString(" ")
		sb.WriteString(m.Key())
	}
	sb.WriteString("]")
	key := sb.String()
	return intern(key, func() Type {
		return &BlockType{
			base:    base{key: key, size: 0, id: takeID()},
			members: append([]Type(nil), members...),
		}
	}).(*BlockType)
}

func (t *BlockType) Members() []Type   { return t.members }
func (t *BlockType) Member(i int) Type { return t.members[i] }
func (t *BlockType) Count() int        { return len(t.members) }

func (t *BlockType) Implicitly(other Type) bool {
	if baseImplicitly(t, other) {
		return true
	}
	tt, ok := other.(*BlockType)
	if !ok || len(tt.members) != len(t.members) {
		return false
	}
	for i, m := range t.members {
		if !m.Implicitly(tt.members[i]) {
			return false
		}
	}
	return true
}

func (t *BlockType) Explicitly(other Type) bool {
	if t.Implicitly(other) {
		return true
	}
	if other == TypeType {
		return allTypes(t.members)
	}
	tt, ok := other.(*BlockType)
	if !ok || len(tt.members) != len(t.members) {
		return false
	}
	for i, m := range t.members {
		if !m.Explicitly(tt.members[i]) {
			return false
		}
	}
	return true
}

func (t *BlockType) ConflictsWith(other Type) bool { return t == other }

func (t *BlockType) String() string {
	parts := make([]string, len(t.members))
	for i, m := range t.members {
		parts[i] = m.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ArrayType is a fixed- or unknown-count homogeneous sequence.
type ArrayType struct {
	base
	element Type
	count   int
}

// Array interns an array type. Count -1 means the count is not part of the
// type.
func Array(element Type, count int) *ArrayType {
	key := fmt.Sprintf("%s[%d]", element.Key(), count)
	size := 0
	if count > 0 {
		size = element.Size() * count
	}
	return intern(key, func() Type {
		return &ArrayType{
			base:    base{key: key, size: size, id: takeID()},
			element: element,
			count:   count,
		}
	}).(*ArrayType)
}

func (t *ArrayType) Element() Type { return t.element }
func (t *ArrayType) Count() int    { return t.count }

func (t *ArrayType) Implicitly(other Type) bool {
	if baseImplicitly(t, other) {
		return true
	}
	if tt, ok := other.(*TupleType); ok {
		for _, m := range tt.Members() {
			if !t.element.Implicitly(m) {
				return false
			}
		}
		return t.count == tt.Count()
	}
	at, ok := other.(*ArrayType)
	if !ok {
		return false
	}
	return t.element.Implicitly(at.element) && t.count == at.count
}

func (t *ArrayType) Explicitly(other Type) bool {
	if t.Implicitly(other) {
		return true
	}
	if tt, ok := other.(*TupleType); ok {
		for _, m := range tt.Members() {
			if !t.element.Explicitly(m) {
				return false
			}
		}
		return t.count == tt.Count()
	}
	at, ok := other.(*ArrayType)
	if !ok {
		return false
	}
	return t.element.Explicitly(at.element) && t.count == at.count
}

func (t *ArrayType) ConflictsWith(other Type) bool { return t == other }

func (t *ArrayType) String() string {
	if t.count < 0 {
		return t.element.String() + "[]"
	}
	return fmt.Sprintf("%s[%d]", t.element, t.count)
}

// UnionType is a set of alternative member types; its size is the maximum
// member size.
type UnionType struct {
	base
	members []Type // sorted by key
}

// Union interns the union of the given member types.
func Union(members ...Type) *UnionType {
	sorted := sortedUnique(members)
	var sb strings.Builder
	sb.WriteString("[U")
	size := 0
	for _, m := range sorted {
		if m.Size() > size {
			size = m.Size()
		}
		sb.WriteString(" ")
		sb.WriteString(m.Key())
	}
	sb.WriteString("]")
	key := sb.String()
	return intern(key, func() Type {
		return &UnionType{
			base:    base{key: key, size: size, id: takeID()},
			members: sorted,
		}
	}).(*UnionType)
}

func (t *UnionType) Members() []Type { return t.members }

func (t *UnionType) Has(m Type) bool {
	for _, x := range t.members {
		if x == m {
			return true
		}
	}
	return false
}

func (t *UnionType) Implicitly(other Type) bool { return baseImplicitly(t, other) }

func (t *UnionType) Explicitly(other Type) bool {
	if baseImplicitly(t, other) {
		return true
	}
	if other == TypeType {
		return allTypes(t.members)
	}
	return t.Has(other)
}

func (t *UnionType) ConflictsWith(other Type) bool { return t == other }

func (t *UnionType) String() string {
	parts := make([]string, len(t.members))
	for i, m := range t.members {
		parts[i] = m.String()
	}
	return "(" + strings.Join(parts, " | ") + ")"
}

// IntersectionType is a set of simultaneous member types; when all members
// are mutually compatible function types the whole intersection is a single
// function pointer, otherwise the members are laid out in sequence.
type IntersectionType struct {
	base
	members []Type // sorted by key
}

// Intersection interns the intersection of the given member types.
func Intersection(members ...Type) *IntersectionType {
	sorted := sortedUnique(members)
	var sb strings.Builder
	sb.WriteString("[I")
	size := 0
	overload := true
	var prev Type
	for _, m := range sorted {
		if prev != nil {
			_, prevFn := prev.(*FunctionType)
			mf, mFn := m.(*FunctionType)
			if !prevFn || !mFn || mf.ConflictsWith(prev) {
				overload = false
			}
		}
		prev = m
		size += m.Size()
		sb.WriteString(" ")
		sb.WriteString(m.Key())
	}
	if overload && prev != nil {
		size = prev.Size()
	}
	sb.WriteString("]")
	key := sb.String()
	return intern(key, func() Type {
		return &IntersectionType{
			base:    base{key: key, size: size, id: takeID()},
			members: sorted,
		}
	}).(*IntersectionType)
}

func (t *IntersectionType) Members() []Type { return t.members }

func (t *IntersectionType) Has(m Type) bool {
	for _, x := range t.members {
		if x == m {
			return true
		}
	}
	return false
}

func (t *IntersectionType) Implicitly(other Type) bool { return baseImplicitly(t, other) }

func (t *IntersectionType) Explicitly(other Type) bool {
	if baseImplicitly(t, other) {
		return true
	}
	if other == TypeType {
		return allTypes(t.members)
	}
	return t == other
}

func (t *IntersectionType) ConflictsWith(other Type) bool {
	for _, m := range t.members {
		if m.ConflictsWith(other) {
			return true
		}
	}
	return t == other
}

func (t *IntersectionType) String() string {
	parts := make([]string, len(t.members))
	for i, m := range t.members {
		parts[i] = m.String()
	}
	return "(" + strings.Join(parts, " & ") + ")"
}

// ListType is the 8-byte head pointer of a cons list.
type ListType struct {
	base
	element Type
}

// List interns the list type over element.
func List(element Type) *ListType {
	key := "[L " + element.Key() + "]"
	return intern(key, func() Type {
		return &ListType{
			base:    base{key: key, size: 8, id: takeID()},
			element: element,
		}
	}).(*ListType)
}

func (t *ListType) Element() Type { return t.element }

func (t *ListType) Implicitly(other Type) bool    { return baseImplicitly(t, other) }
func (t *ListType) Explicitly(other Type) bool    { return t.Implicitly(other) }
func (t *ListType) ConflictsWith(other Type) bool { return t == other }
func (t *ListType) String() string                { return "[" + t.element.String() + "]" }

// ReferenceType is an 8-byte pointer to an element; it implicitly converts
// to the element itself (auto-dereference).
type ReferenceType struct {
	base
	element Type
}

// Reference interns the reference type over element.
func Reference(element Type) *ReferenceType {
	key := "[R " + element.Key() + "]"
	return intern(key, func() Type {
		return &ReferenceType{
			base:    base{key: key, size: 8, id: takeID()},
			element: element,
		}
	}).(*ReferenceType)
}

func (t *ReferenceType) Element() Type { return t.element }

func (t *ReferenceType) Implicitly(other Type) bool {
	if baseImplicitly(t, other) {
		return true
	}
	return other == t.element
}

func (t *ReferenceType) Explicitly(other Type) bool {
	if other == TypeType {
		return t.element == TypeType
	}
	return t.Implicitly(other)
}

func (t *ReferenceType) ConflictsWith(other Type) bool { return t == other }
func (t *ReferenceType) String() string                { return "~" + t.element.String() }

// EmptyType is the type of the empty list literal; it coerces to any list.
type EmptyType struct {
	base
}

func newEmpty() *EmptyType {
	return intern("[empty]", func() Type {
		return &EmptyType{base: base{key: "[empty]", size: 8, id: takeID()}}
	}).(*EmptyType)
}

func (t *EmptyType) Implicitly(other Type) bool {
	if baseImplicitly(t, other) {
		return true
	}
	_, isList := other.(*ListType)
	return isList
}

func (t *EmptyType) Explicitly(other Type) bool    { return t.Implicitly(other) }
func (t *EmptyType) ConflictsWith(other Type) bool { return t == other }
func (t *EmptyType) String() string                { return "[]" }

func sortedUnique(members []Type) []Type {
	out := append([]Type(nil), members...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	dedup := out[:0]
	var prev Type
	for _, m := range out {
		if m != prev {
			dedup = append(dedup, m)
		}
		prev = m
	}
	return dedup
}

// Join returns the smallest common target of a and b under implicit rules,
// falling back to explicit conversion; nil when the types are unrelated.
func Join(a, b Type) Type {
	switch {
	case a == b:
		return a
	case a.Implicitly(b):
		return b
	case b.Implicitly(a):
		return a
	case a.Explicitly(b):
		return b
	case b.Explicitly(a):
		return a
	}
	return nil
}

// The primitive atoms, interned at package init.
var (
	I8     = Numeric(1, false, true)
	I16    = Numeric(2, false, true)
	I32    = Numeric(4, false, true)
	I64    = Numeric(8, false, true)
	U8     = Numeric(1, false, false)
	U16    = Numeric(2, false, false)
	U32    = Numeric(4, false, false)
	U64    = Numeric(8, false, false)
	Float  = Numeric(4, true, true)
	Double = Numeric(8, true, true)

	Bool     = newBase("bool", 1)
	TypeType = newBase("type", 4)
	Symbol   = newBase("symbol", 4)
	Error    = newBase("error", 1)
	Void     = newBase("void", 1)
	Any      = newBase("any", 1)
	String   = newBase("string", 8)
	Char     = newBase("char", 4)
	Empty    = newEmpty()
)

// IsFloating reports whether t is a floating-point numeric type.
func IsFloating(t Type) bool {
	nt, ok := t.(*NumericType)
	return ok && nt.Floating()
}

// IsGC reports whether values of t are heap blocks managed by the runtime's
// reference counter.
func IsGC(t Type) bool {
	if t == String {
		return true
	}
	_, isList := t.(*ListType)
	return isList
}

// ShouldAlloca reports whether a value of t is returned through memory
// rather than a register.
func ShouldAlloca(t Type) bool {
	if t.Size() > 8 {
		return true
	}
	switch t.(type) {
	case *ArrayType, *TupleType:
		return true
	}
	return false
}
