package value

import (
	"fmt"
	"io"
	"strings"

	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/typesystem"
)

// JoinBaseType is the curried type of the tuple constructor `,`.
func JoinBaseType() typesystem.Type {
	return typesystem.Intersection(
		typesystem.Func(typesystem.TypeType, typesystem.Func(typesystem.TypeType, typesystem.TypeType)),
		typesystem.Func(typesystem.Any, typesystem.Func(typesystem.Any, typesystem.Any)),
	)
}

// JoinValue packs two values into a tuple.
type JoinValue struct {
	node
	lhs Value
	rhs Value
}

func NewJoin(line, column int) *JoinValue {
	v := &JoinValue{node: at(line, column)}
	v.setType(JoinBaseType())
	return v
}

func (v *JoinValue) Left() Value  { return v.lhs }
func (v *JoinValue) Right() Value { return v.rhs }

func (v *JoinValue) CanApply(ctx *Stack, arg Value) bool {
	return v.lhs == nil || v.rhs == nil
}

func (v *JoinValue) Apply(ctx *Stack, arg Value) Value {
	if v.lhs == nil {
		v.lhs = arg
		if v.lhs.Type(ctx) == typesystem.TypeType {
			v.setType(typesystem.Func(typesystem.TypeType, typesystem.TypeType))
		} else {
			v.setType(typesystem.Func(typesystem.Any, typesystem.Any))
		}
	} else if v.rhs == nil {
		v.rhs = arg
		v.setType(typesystem.Tuple(v.lhs.Type(ctx), v.rhs.Type(ctx)))
	}
	return v
}

func (v *JoinValue) Fold(ctx *Stack) typesystem.Meta {
	if v.lhs == nil || v.rhs == nil {
		return typesystem.MetaFunction(typesystem.Func(typesystem.Any, typesystem.Any), v)
	}
	return typesystem.JoinMeta(v.lhs.Fold(ctx), v.rhs.Fold(ctx))
}

func (v *JoinValue) Lvalue(ctx *Stack) bool {
	return v.lhs != nil && v.rhs != nil && v.lhs.Lvalue(ctx) && v.rhs.Lvalue(ctx)
}

func (v *JoinValue) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	return ir.ValueOf(frame.Add(ir.NewJoinInsn(
		[]*ir.Location{v.lhs.Gen(ctx, gen, frame), v.rhs.Gen(ctx, gen, frame)},
		v.Type(ctx))), gen, frame)
}

func (v *JoinValue) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, ",")
	if v.lhs != nil {
		v.lhs.Format(w, level+1)
	}
	if v.rhs != nil {
		v.rhs.Format(w, level+1)
	}
}

func (v *JoinValue) Clone(ctx *Stack) Value {
	n := NewJoin(v.line, v.column)
	if v.lhs != nil {
		n.Apply(ctx, v.lhs.Clone(ctx))
	}
	if v.rhs != nil {
		n.Apply(ctx, v.rhs.Clone(ctx))
	}
	return n
}

func (v *JoinValue) Repr() string {
	if v.lhs == nil || v.rhs == nil {
		return binaryRepr(",", v.lhs, v.rhs)
	}
	return "(" + v.lhs.Repr() + ", " + v.rhs.Repr() + ")"
}

func (v *JoinValue) Explore(visit func(Value)) {
	visit(v)
	if v.lhs != nil {
		v.lhs.Explore(visit)
	}
	if v.rhs != nil {
		v.rhs.Explore(visit)
	}
}

// ConsValue is the list constructor `::`; an element and a list (or the
// empty list) compose into a list.
type ConsValue struct {
	node
	lhs Value
	rhs Value
}

func NewCons(line, column int) *ConsValue {
	v := &ConsValue{node: at(line, column)}
	v.setType(typesystem.Func(typesystem.Any, typesystem.Func(typesystem.Any, typesystem.Any)))
	return v
}

func (v *ConsValue) CanApply(ctx *Stack, arg Value) bool {
	return v.lhs == nil || v.rhs == nil
}

func (v *ConsValue) Apply(ctx *Stack, arg Value) Value {
	if v.lhs == nil {
		v.lhs = arg
		lt := typesystem.List(v.lhs.Type(ctx))
		v.setType(typesystem.Intersection(
			typesystem.Func(lt, lt),
			typesystem.Func(typesystem.Empty, lt),
		))
	} else if v.rhs == nil {
		v.rhs = arg
		v.setType(typesystem.List(v.lhs.Type(ctx)))
	}
	return v
}

func (v *ConsValue) Fold(ctx *Stack) typesystem.Meta {
	if v.lhs == nil || v.rhs == nil {
		return typesystem.MetaFunction(typesystem.Func(typesystem.Any, typesystem.Any), v)
	}
	return typesystem.Cons(v.lhs.Fold(ctx), v.rhs.Fold(ctx))
}

func (v *ConsValue) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "::")
	if v.lhs != nil {
		v.lhs.Format(w, level+1)
	}
	if v.rhs != nil {
		v.rhs.Format(w, level+1)
	}
}

func (v *ConsValue) Clone(ctx *Stack) Value {
	n := NewCons(v.line, v.column)
	if v.lhs != nil {
		n.Apply(ctx, v.lhs.Clone(ctx))
	}
	if v.rhs != nil {
		n.Apply(ctx, v.rhs.Clone(ctx))
	}
	return n
}

func (v *ConsValue) Repr() string { return binaryRepr("::", v.lhs, v.rhs) }

func (v *ConsValue) Explore(visit func(Value)) {
	visit(v)
	if v.lhs != nil {
		v.lhs.Explore(visit)
	}
	if v.rhs != nil {
		v.rhs.Explore(visit)
	}
}

// Range is the compile-time `a..b` unroller: it pushes the inclusive run of
// constants onto the stack and dissolves.
type Range struct {
	node
	lhs Value
}

func NewRange(line, column int) *Range {
	v := &Range{node: at(line, column)}
	v.setType(typesystem.Func(typesystem.I64,
		typesystem.Func(typesystem.I64, typesystem.Array(typesystem.I64, -1))))
	return v
}

func (v *Range) CanApply(ctx *Stack, arg Value) bool { return true }

func (v *Range) Apply(ctx *Stack, arg Value) Value {
	if v.lhs == nil {
		v.lhs = arg
		v.setType(typesystem.Func(typesystem.I64, typesystem.Array(typesystem.I64, -1)))
		return v
	}
	l, r := v.lhs.Fold(ctx), arg.Fold(ctx)
	if l.IsInt() && r.IsInt() {
		for i := l.AsInt(); i <= r.AsInt(); i++ {
			ctx.Push(NewInteger(i, v.line, v.column))
		}
	} else {
		ctx.errAt(v, "Bounds of range expression must be constant.")
	}
	return nil
}

func (v *Range) Fold(ctx *Stack) typesystem.Meta {
	if v.lhs == nil {
		return typesystem.MetaFunction(v.Type(ctx), v)
	}
	return typesystem.Meta{}
}

func (v *Range) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "..")
	if v.lhs != nil {
		v.lhs.Format(w, level+1)
	}
}

func (v *Range) Clone(ctx *Stack) Value {
	n := NewRange(v.line, v.column)
	if v.lhs != nil {
		n.Apply(ctx, v.lhs.Clone(ctx))
	}
	return n
}

func (v *Range) Repr() string { return binaryRepr("..", v.lhs, nil) }

func (v *Range) Explore(visit func(Value)) {
	visit(v)
	if v.lhs != nil {
		v.lhs.Explore(visit)
	}
}

// Repeat is the compile-time `v**n` replicator.
type Repeat struct {
	node
	lhs Value
}

func NewRepeat(line, column int) *Repeat {
	v := &Repeat{node: at(line, column)}
	v.setType(typesystem.Func(typesystem.Any, typesystem.Func(typesystem.I64, typesystem.Any)))
	return v
}

func (v *Repeat) CanApply(ctx *Stack, arg Value) bool { return true }

func (v *Repeat) Apply(ctx *Stack, arg Value) Value {
	if v.lhs == nil {
		v.lhs = arg
		v.setType(typesystem.Func(typesystem.I64, typesystem.Any))
		return v
	}
	m := arg.Fold(ctx)
	if !m.IsInt() {
		ctx.errAt(v, "Number of repetitions must be constant integer.")
		return nil
	}
	for i := int64(0); i < m.AsInt(); i++ {
		ctx.Push(v.lhs.Clone(ctx))
	}
	return nil
}

func (v *Repeat) Fold(ctx *Stack) typesystem.Meta {
	if v.lhs == nil {
		return typesystem.MetaFunction(v.Type(ctx), v)
	}
	return typesystem.Meta{}
}

func (v *Repeat) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "**")
	if v.lhs != nil {
		v.lhs.Format(w, level+1)
	}
}

func (v *Repeat) Clone(ctx *Stack) Value {
	n := NewRepeat(v.line, v.column)
	if v.lhs != nil {
		n.Apply(ctx, v.lhs.Clone(ctx))
	}
	return n
}

func (v *Repeat) Repr() string { return binaryRepr("**", v.lhs, nil) }

func (v *Repeat) Explore(visit func(Value)) {
	visit(v)
	if v.lhs != nil {
		v.lhs.Explore(visit)
	}
}

// ReferenceValue takes the address of an lvalue.
type ReferenceValue struct {
	node
	operand Value
}

func NewReference(line, column int) *ReferenceValue {
	v := &ReferenceValue{node: at(line, column)}
	v.setType(typesystem.Func(typesystem.Any, typesystem.Any))
	return v
}

func (v *ReferenceValue) CanApply(ctx *Stack, arg Value) bool { return v.operand == nil }

func (v *ReferenceValue) Apply(ctx *Stack, arg Value) Value {
	if v.operand == nil {
		if !arg.Lvalue(ctx) {
			ctx.errAt(v, "Cannot take reference to non-lvalue.")
			v.setType(typesystem.Error)
		} else {
			v.operand = arg
			v.setType(typesystem.Reference(v.operand.Type(ctx)))
		}
	}
	return v
}

func (v *ReferenceValue) Fold(ctx *Stack) typesystem.Meta {
	if v.operand == nil {
		return typesystem.Meta{}
	}
	e := v.operand.Entry(ctx)
	if e == nil {
		return typesystem.Meta{}
	}
	target := &e.value
	if rt, ok := v.Type(ctx).(*typesystem.ReferenceType); ok {
		return typesystem.MetaRef(target, rt)
	}
	return typesystem.Meta{}
}

func (v *ReferenceValue) Lvalue(ctx *Stack) bool { return true }

func (v *ReferenceValue) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	// the referenced entry's location doubles as the reference value
	return v.operand.Gen(ctx, gen, frame)
}

func (v *ReferenceValue) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "~")
	if v.operand != nil {
		v.operand.Format(w, level+1)
	}
}

func (v *ReferenceValue) Clone(ctx *Stack) Value {
	n := NewReference(v.line, v.column)
	if v.operand != nil {
		n.Apply(ctx, v.operand)
	}
	return n
}

func (v *ReferenceValue) Repr() string {
	if v.operand == nil {
		return "~"
	}
	return "(~ " + v.operand.Repr() + ")"
}

func (v *ReferenceValue) Explore(visit func(Value)) {
	visit(v)
	if v.operand != nil {
		v.operand.Explore(visit)
	}
}

// ArrayDef composes an element type and constant dimensions into an array
// type, in either application order.
type ArrayDef struct {
	node
	elem Value
	dims Value
}

func NewArrayDef(line, column int) *ArrayDef {
	v := &ArrayDef{node: at(line, column)}
	anyArray := typesystem.Array(typesystem.Any, -1)
	v.setType(typesystem.Intersection(
		typesystem.Func(typesystem.TypeType, typesystem.Func(anyArray, typesystem.TypeType)),
		typesystem.Func(anyArray, typesystem.Func(typesystem.TypeType, typesystem.TypeType)),
	))
	return v
}

func (v *ArrayDef) CanApply(ctx *Stack, arg Value) bool {
	return v.elem == nil || v.dims == nil
}

func (v *ArrayDef) Apply(ctx *Stack, arg Value) Value {
	switch {
	case arg.Type(ctx) == typesystem.TypeType && v.elem == nil:
		v.elem = arg
		if !v.elem.Fold(ctx).IsType() {
			ctx.errAt(v, "Cannot resolve array element type at compile time.")
			v.setType(typesystem.Error)
			return v
		}
		if v.dims != nil {
			v.setType(typesystem.TypeType)
		} else {
			v.setType(typesystem.Func(typesystem.Array(typesystem.Any, -1), typesystem.TypeType))
		}
	case v.dims == nil && isArrayType(arg.Type(ctx)):
		v.dims = arg
		m := v.dims.Fold(ctx)
		if !m.IsArray() {
			ctx.errAt(v, "Cannot resolve array dimensions at compile time.")
			v.setType(typesystem.Error)
			return v
		}
		for _, d := range m.AsArray() {
			if !d.IsInt() {
				ctx.errAt(v, "Array dimension is not an integer.")
				v.setType(typesystem.Error)
				return v
			}
			if d.AsInt() < 0 {
				ctx.errAt(v, "Array dimension cannot be negative.")
				v.setType(typesystem.Error)
				return v
			}
		}
		if v.elem != nil {
			v.setType(typesystem.TypeType)
		} else {
			v.setType(typesystem.Func(typesystem.TypeType, typesystem.TypeType))
		}
	default:
		ctx.errAt(v, "Unknown value in array type.")
		v.setType(typesystem.Error)
	}
	return v
}

func isArrayType(t typesystem.Type) bool {
	_, ok := t.(*typesystem.ArrayType)
	return ok
}

func (v *ArrayDef) Fold(ctx *Stack) typesystem.Meta {
	if v.elem == nil || v.dims == nil {
		return typesystem.MetaFunction(v.Type(ctx), v)
	}
	t := v.elem.Fold(ctx).AsType()
	dims := v.dims.Fold(ctx).AsArray()
	if len(dims) == 0 {
		return typesystem.MetaType(typesystem.Array(t, -1))
	}
	return typesystem.MetaType(typesystem.Array(t, int(dims[0].AsInt())))
}

func (v *ArrayDef) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "ArrayDef")
	if v.elem != nil {
		v.elem.Format(w, level+1)
	}
	if v.dims != nil {
		v.dims.Format(w, level+1)
	}
}

func (v *ArrayDef) Clone(ctx *Stack) Value {
	n := NewArrayDef(v.line, v.column)
	if v.elem != nil {
		n.Apply(ctx, v.elem.Clone(ctx))
	}
	if v.dims != nil {
		n.Apply(ctx, v.dims.Clone(ctx))
	}
	return n
}

func (v *ArrayDef) Repr() string { return "arraydef" }

func (v *ArrayDef) Explore(visit func(Value)) {
	visit(v)
	if v.elem != nil {
		v.elem.Explore(visit)
	}
	if v.dims != nil {
		v.dims.Explore(visit)
	}
}

// ArrayValue is an array literal. It receives its elements as one quoted
// block, evaluated in a scratch scope.
type ArrayValue struct {
	node
	elts []Value
}

func NewArray(line, column int) *ArrayValue {
	v := &ArrayValue{node: at(line, column)}
	v.setType(typesystem.QuotingFunc(typesystem.Any, typesystem.Any))
	return v
}

func (v *ArrayValue) Elements() []Value { return v.elts }

func (v *ArrayValue) CanApply(ctx *Stack, arg Value) bool { return len(v.elts) == 0 }

func (v *ArrayValue) Apply(ctx *Stack, arg Value) Value {
	q, ok := arg.(*Quote)
	if !ok {
		ctx.errAt(v, "Expected quoted elements in array literal.")
		v.setType(typesystem.Error)
		return v
	}
	tmp := NewStack(ctx, false)
	EvalTerm(q.Term(), tmp)
	elts := tmp.Values()
	// comma-separated elements arrive as one right-nested join
	if len(elts) == 1 {
		if j, isJoin := elts[0].(*JoinValue); isJoin && j.Left() != nil && j.Right() != nil {
			elts = nil
			var rest Value = j
			for j, isJoin = rest.(*JoinValue); isJoin && j.Left() != nil && j.Right() != nil; j, isJoin = rest.(*JoinValue) {
				elts = append(elts, j.Left())
				rest = j.Right()
			}
			elts = append(elts, rest)
		}
	}
	v.elts = append(v.elts, elts...)
	tmp.Clear()
	elt := typesystem.Type(typesystem.Any)
	if len(v.elts) > 0 {
		elt = v.elts[0].Type(ctx)
		for _, e := range v.elts[1:] {
			j := typesystem.Join(elt, e.Type(ctx))
			if j == nil {
				elt = typesystem.Any
				break
			}
			elt = j
		}
	}
	v.setType(typesystem.Array(elt, len(v.elts)))
	return v
}

func (v *ArrayValue) Fold(ctx *Stack) typesystem.Meta {
	t, ok := v.Type(ctx).(*typesystem.ArrayType)
	if !ok {
		return typesystem.MetaFunction(v.Type(ctx), v)
	}
	metas := make([]typesystem.Meta, len(v.elts))
	for i, e := range v.elts {
		m := e.Fold(ctx)
		if !m.Valid() {
			return typesystem.Meta{}
		}
		metas[i] = m
	}
	return typesystem.MetaArray(t, metas)
}

func (v *ArrayValue) Lvalue(ctx *Stack) bool {
	t, ok := v.Type(ctx).(*typesystem.ArrayType)
	if !ok || len(v.elts) == 0 {
		return false
	}
	_, isRef := t.Element().(*typesystem.ReferenceType)
	return isRef
}

func (v *ArrayValue) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	t, ok := v.Type(ctx).(*typesystem.ArrayType)
	if !ok {
		return frame.None()
	}
	locs := make([]*ir.Location, len(v.elts))
	for i, e := range v.elts {
		loc := e.Gen(ctx, gen, frame)
		if e.Type(ctx) != t.Element() {
			loc = ir.ValueOf(frame.Add(ir.NewCastInsn(loc, t.Element())), gen, frame)
		}
		locs[i] = loc
	}
	members := make([]typesystem.Type, len(v.elts))
	for i := range members {
		members[i] = t.Element()
	}
	return ir.ValueOf(frame.Add(ir.NewJoinInsn(locs, typesystem.Tuple(members...))), gen, frame)
}

func (v *ArrayValue) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "Array")
	for _, e := range v.elts {
		e.Format(w, level+1)
	}
}

func (v *ArrayValue) Clone(ctx *Stack) Value {
	n := NewArray(v.line, v.column)
	n.typ = v.typ
	for _, e := range v.elts {
		n.elts = append(n.elts, e.Clone(ctx))
	}
	return n
}

func (v *ArrayValue) Repr() string {
	parts := make([]string, len(v.elts))
	for i, e := range v.elts {
		parts[i] = e.Repr()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (v *ArrayValue) Explore(visit func(Value)) {
	visit(v)
	for _, e := range v.elts {
		e.Explore(visit)
	}
}

// Index selects array elements: a scalar index yields a reference to the
// element, a vector index an array of references.
type Index struct {
	node
	arr Value
	idx Value
}

func NewIndex(line, column int) *Index {
	v := &Index{node: at(line, column)}
	v.setType(typesystem.Func(
		typesystem.Array(typesystem.Any, -1),
		typesystem.Func(typesystem.Array(typesystem.I64, -1), typesystem.Any)))
	return v
}

func (v *Index) CanApply(ctx *Stack, arg Value) bool {
	return v.arr == nil || v.idx == nil
}

func (v *Index) Apply(ctx *Stack, arg Value) Value {
	if v.arr == nil {
		v.arr = arg
		at, ok := v.arr.Type(ctx).(*typesystem.ArrayType)
		if !ok {
			ctx.errAt(v, "Cannot index non-array value.")
			v.setType(typesystem.Error)
			return v
		}
		v.setType(typesystem.Func(typesystem.Array(typesystem.Any, -1),
			typesystem.Array(at.Element(), -1)))
	} else if v.idx == nil {
		v.idx = arg
		it, ok := v.idx.Type(ctx).(*typesystem.ArrayType)
		if !ok {
			ctx.errAt(v, "Array index must be an array of integers.")
			v.setType(typesystem.Error)
			return v
		}
		elt := v.arr.Type(ctx).(*typesystem.ArrayType).Element()
		if it.Count() == 1 {
			v.setType(typesystem.Reference(elt))
		} else {
			v.setType(typesystem.Array(typesystem.Reference(elt), it.Count()))
		}
	}
	return v
}

func (v *Index) Fold(ctx *Stack) typesystem.Meta {
	if v.arr == nil || v.idx == nil {
		return typesystem.MetaFunction(v.Type(ctx), v)
	}
	a := v.arr.Fold(ctx)
	i := v.idx.Fold(ctx)
	if !a.IsArray() || !i.IsArray() {
		return typesystem.Meta{}
	}
	elems := a.AsArray()
	idxs := i.AsArray()
	inBounds := func(n int64) bool { return n >= 0 && n < int64(len(elems)) }
	if len(idxs) == 1 {
		n := idxs[0].AsInt()
		if !inBounds(n) {
			ctx.errAt(v, "Array index ", n, " out of bounds.")
			return typesystem.Meta{}
		}
		return elems[n]
	}
	out := make([]typesystem.Meta, len(idxs))
	for k, m := range idxs {
		n := m.AsInt()
		if !inBounds(n) {
			ctx.errAt(v, "Array index ", n, " out of bounds.")
			return typesystem.Meta{}
		}
		out[k] = elems[n]
	}
	if t, ok := v.Type(ctx).(*typesystem.ArrayType); ok {
		return typesystem.MetaArray(t, out)
	}
	return typesystem.Meta{}
}

func (v *Index) Lvalue(ctx *Stack) bool { return v.arr != nil && v.idx != nil }

func (v *Index) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	at, ok := v.arr.Type(ctx).(*typesystem.ArrayType)
	if !ok {
		return frame.None()
	}
	i := v.idx.Fold(ctx)
	base := v.arr.Gen(ctx, gen, frame)
	if i.IsArray() && len(i.AsArray()) == 1 {
		off := i.AsArray()[0].AsInt() * int64(at.Element().Size())
		return ir.Field(at.Element(), base, off, fmt.Sprintf("%s[%d]", base.Name, i.AsArray()[0].AsInt()))
	}
	ctx.errAt(v, "Array index must be constant.")
	return frame.None()
}

func (v *Index) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "Index")
	if v.arr != nil {
		v.arr.Format(w, level+1)
	}
	if v.idx != nil {
		v.idx.Format(w, level+1)
	}
}

func (v *Index) Clone(ctx *Stack) Value {
	n := NewIndex(v.line, v.column)
	if v.arr != nil {
		n.Apply(ctx, v.arr.Clone(ctx))
	}
	if v.idx != nil {
		n.Apply(ctx, v.idx.Clone(ctx))
	}
	return n
}

func (v *Index) Repr() string {
	switch {
	case v.arr == nil:
		return "??[??]"
	case v.idx == nil:
		return v.arr.Repr() + "[??]"
	}
	return v.arr.Repr() + v.idx.Repr()
}

func (v *Index) Explore(visit func(Value)) {
	visit(v)
	if v.arr != nil {
		v.arr.Explore(visit)
	}
	if v.idx != nil {
		v.idx.Explore(visit)
	}
}
