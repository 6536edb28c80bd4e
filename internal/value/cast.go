package value

import (
	"fmt"
	"io"

	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/typesystem"
)

// Cast converts a value to a destination type. Casting to `type` reifies
// tuples of types or a type-constrained function into a concrete type;
// casting a reference to its element dereferences; numeric casts convert
// representation.
type Cast struct {
	node
	dst typesystem.Type
	src Value
}

func NewCast(dst typesystem.Type, src Value) *Cast {
	v := &Cast{node: at(src.Line(), src.Column()), dst: dst, src: src}
	v.setType(dst)
	return v
}

func (v *Cast) Src() Value           { return v.src }
func (v *Cast) Dst() typesystem.Type { return v.dst }

func (v *Cast) Fold(ctx *Stack) typesystem.Meta {
	if v.dst == typesystem.TypeType {
		return v.foldToType(ctx)
	}
	if _, isRef := v.src.Type(ctx).(*typesystem.ReferenceType); isRef {
		// dereference; element accessors fold straight to the element value
		m := v.src.Fold(ctx)
		if m.IsRef() {
			return *m.AsRef()
		}
		return m
	}
	if nt, isNum := v.dst.(*typesystem.NumericType); isNum {
		m := v.src.Fold(ctx)
		if !m.Valid() {
			return typesystem.Meta{}
		}
		if nt.Floating() {
			return typesystem.MetaFloat(v.dst, typesystem.ToFloat(m))
		}
		return typesystem.MetaInt(v.dst, typesystem.Trunc(typesystem.ToInt(m), v.dst))
	}
	return typesystem.Meta{}
}

// foldToType reifies a value as a first-class type.
func (v *Cast) foldToType(ctx *Stack) typesystem.Meta {
	t := v.src.Type(ctx)
	switch st := t.(type) {
	case *typesystem.FunctionType:
		if !v.src.Fold(ctx).IsFunction() {
			ctx.errAt(v, "Cannot find function.")
			return typesystem.Meta{}
		}
		cons := st.Constraints()
		if len(cons) != 1 || cons[0].Kind() != typesystem.EqualsValue || !cons[0].Value().IsType() {
			ctx.errAt(v, "Cannot convert function to type object.")
			return typesystem.Meta{}
		}
		fn := v.src.Fold(ctx).FuncNode()
		var ret typesystem.Type
		if l, ok := fn.(*Lambda); ok {
			br := l.Body().Fold(ctx)
			if br.IsType() {
				ret = br.AsType()
			}
		}
		if ret == nil {
			ctx.errAt(v, "Cannot convert function to type object.")
			return typesystem.Meta{}
		}
		return typesystem.MetaType(typesystem.Func(cons[0].Value().AsType(), ret))
	case *typesystem.TupleType:
		m := v.src.Fold(ctx)
		if !m.IsTuple() {
			ctx.errAt(v, "Cannot evaluate tuple at compile-time.")
			return typesystem.Meta{}
		}
		ts := make([]typesystem.Type, 0, len(m.AsTuple()))
		for _, e := range m.AsTuple() {
			ts = append(ts, e.AsType())
		}
		return typesystem.MetaType(typesystem.Tuple(ts...))
	case *typesystem.BlockType:
		m := v.src.Fold(ctx)
		if !m.IsBlock() {
			return v.src.Fold(ctx)
		}
		ts := make([]typesystem.Type, 0, len(m.AsBlock()))
		for _, e := range m.AsBlock() {
			ts = append(ts, e.AsType())
		}
		return typesystem.MetaType(typesystem.Tuple(ts...))
	}
	return v.src.Fold(ctx)
}

// Lvalue holds for a pure reference dereference.
func (v *Cast) Lvalue(ctx *Stack) bool {
	if v.src == nil {
		return false
	}
	_, srcRef := v.src.Type(ctx).(*typesystem.ReferenceType)
	_, dstRef := v.dst.(*typesystem.ReferenceType)
	return srcRef && !dstRef
}

func (v *Cast) Entry(ctx *Stack) *Entry { return v.src.Entry(ctx) }

func (v *Cast) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	return ir.ValueOf(frame.Add(ir.NewCastInsn(v.src.Gen(ctx, gen, frame), v.dst)), gen, frame)
}

func (v *Cast) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintf(w, "%s cast\n", v.dst)
	v.src.Format(w, level+1)
}

func (v *Cast) Clone(ctx *Stack) Value {
	return NewCast(v.dst, v.src)
}

func (v *Cast) Repr() string {
	return "(" + v.src.Repr() + " as " + v.dst.String() + ")"
}

func (v *Cast) Explore(visit func(Value)) {
	visit(v)
	if v.src != nil {
		v.src.Explore(visit)
	}
}
