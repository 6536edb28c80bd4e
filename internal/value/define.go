package value

import (
	"fmt"
	"io"

	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/term"
	"github.com/funvibe/lattice/internal/typesystem"
)

// Define declares a name with an explicit type in the nearest scope.
type Define struct {
	node
	typeExpr Value
	name     string
}

func NewDefine(typeExpr Value, name string) *Define {
	return &Define{node: at(typeExpr.Line(), typeExpr.Column()), typeExpr: typeExpr, name: name}
}

func (v *Define) Name() string { return v.name }

func (v *Define) CanApply(ctx *Stack, arg Value) bool {
	return v.name == "" || v.typeExpr != nil
}

// Apply resolves the type expression and binds the name; arg is unused.
func (v *Define) Apply(ctx *Stack, arg Value) Value {
	fr := v.typeExpr.Fold(ctx)
	if !fr.IsType() {
		ctx.errAt(v, "Expected type expression, got '", fr.String(), "'.")
		v.setType(typesystem.Error)
		return v
	}
	if scope := ctx.NearestScope(); scope != nil {
		if _, exists := scope[v.name]; exists {
			ctx.errAt(v, "Redefinition of variable '", v.name, "'.")
			v.setType(typesystem.Error)
			return v
		}
	}
	v.setType(fr.AsType())
	ctx.Bind(v.name, v.typ)
	return v
}

func (v *Define) Lvalue(ctx *Stack) bool { return true }

func (v *Define) Entry(ctx *Stack) *Entry { return ctx.Lookup(v.name) }

func (v *Define) Fold(ctx *Stack) typesystem.Meta {
	if v.typeExpr == nil || v.name == "" {
		return typesystem.Meta{}
	}
	e := v.Entry(ctx)
	if e == nil {
		return typesystem.Meta{}
	}
	return e.Value()
}

func (v *Define) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	e := v.Entry(ctx)
	if e == nil {
		return frame.None()
	}
	if e.Loc() == nil {
		e.SetLoc(frame.StackNamed(v.Type(ctx), v.name))
	}
	return e.Loc()
}

func (v *Define) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintf(w, "Define %s\n", v.name)
	v.typeExpr.Format(w, level+1)
}

func (v *Define) Clone(ctx *Stack) Value {
	n := NewDefine(v.typeExpr, v.name)
	n.Apply(ctx, nil)
	return n
}

func (v *Define) Repr() string {
	return "(" + v.typeExpr.Repr() + " " + v.name + ")"
}

func (v *Define) Explore(visit func(Value)) {
	visit(v)
	if v.typeExpr != nil {
		v.typeExpr.Explore(visit)
	}
}

// bindTo binds a destination pattern (a variable or a join of variables) to
// a source value, distributing over joins.
func bindTo(ctx *Stack, dst, src Value) {
	switch d := dst.(type) {
	case *Variable:
		name := d.Name()
		if scope := ctx.NearestScope(); scope != nil {
			if _, exists := scope[name]; exists {
				ctx.errAt(d, "Redefinition of variable '", name, "'.")
				return
			}
		}
		e := ctx.Bind(name, src.Type(ctx))
		if val := src.Entry(ctx); val != nil {
			if val.Builtin() != nil {
				e.SetBuiltin(val.Builtin())
			}
			if val.Value().Valid() {
				e.SetValue(val.Value())
			}
		} else if m := src.Fold(ctx); m.Valid() {
			e.SetValue(m)
		}
		if l, ok := src.(*Lambda); ok {
			l.BindRec(name, src.Type(ctx), src.Fold(ctx))
			// a recursive body types fully only once its own name is
			// bound: infer the return from the non-recursive branches,
			// then complete again against the refined binding
			if ft, isFt := l.Type(ctx).(*typesystem.FunctionType); isFt &&
				ft.Arg() != typesystem.Any && ft.Ret() == typesystem.Any {
				if ret := inferEarlyReturn(l); ret != nil {
					e.SetType(typesystem.Func(ft.Arg(), ret, ft.Constraints()...))
					l.Complete(l.Scope())
				}
			}
			e.SetType(l.Type(ctx))
			e.SetValue(l.Fold(ctx))
		}
		if in, ok := src.(*Intersect); ok {
			in.BindRec(name, src.Type(ctx), src.Fold(ctx))
			e.SetType(in.Type(ctx))
			e.SetValue(in.Fold(ctx))
		}
	case *JoinValue:
		sj, ok := src.(*JoinValue)
		if !ok {
			ctx.errAt(src, "Attempted to bind multiple variables to non-tuple value.")
			return
		}
		bindTo(ctx, d.Left(), sj.Left())
		bindTo(ctx, d.Right(), sj.Right())
	}
}

// inferEarlyReturn derives a recursive lambda's return type from the
// branches that do not recurse: taken If bodies and a concretely typed
// final expression.
func inferEarlyReturn(l *Lambda) typesystem.Type {
	body := l.Body()
	children := []Value{body}
	if seq, ok := body.(*Sequence); ok {
		children = seq.Children()
	}
	var ret typesystem.Type
	consider := func(t typesystem.Type) {
		if t == nil || t == typesystem.Any || t == typesystem.Void || t == typesystem.Error {
			return
		}
		if ret == nil {
			ret = t
			return
		}
		if j := typesystem.Join(ret, t); j != nil {
			ret = j
		}
	}
	for _, c := range children {
		if iff, ok := c.(*If); ok && iff.Body() != nil {
			consider(iff.Body().Type(l.Scope()))
		}
	}
	if len(children) > 0 {
		consider(children[len(children)-1].Type(l.Scope()))
	}
	return ret
}

// assignTo writes a source's compile-time value through a destination:
// through references in place, distributing over joins, and into variable
// entries otherwise.
func assignTo(ctx *Stack, dst, src Value) {
	if _, isRef := dst.Type(ctx).(*typesystem.ReferenceType); isRef {
		l := dst.Fold(ctx)
		if l.IsRef() {
			typesystem.Assign(l.AsRef(), src.Fold(ctx))
		}
		return
	}
	if dj, ok := dst.(*JoinValue); ok {
		sj, ok := src.(*JoinValue)
		if !ok {
			ctx.errAt(src, "Attempted to assign multiple variables to non-tuple value.")
			return
		}
		assignTo(ctx, dj.Left(), sj.Left())
		assignTo(ctx, dj.Right(), sj.Right())
		return
	}
	switch dst.(type) {
	case *Variable, *Define:
		e := dst.Entry(ctx)
		if e == nil {
			return
		}
		if val := src.Entry(ctx); val != nil {
			if _, isVar := dst.(*Variable); isVar {
				e.Reassign()
			}
			if val.Builtin() != nil {
				e.SetBuiltin(val.Builtin())
			}
			if val.Value().Valid() {
				e.SetValue(val.Value())
			}
		} else if m := src.Fold(ctx); m.Valid() {
			if _, isVar := dst.(*Variable); isVar {
				e.Reassign()
			}
			e.SetValue(m)
		}
	}
}

// Autodefine is the `let` form: a quoted destination and an initializer,
// with the destination's type inferred from the initializer.
type Autodefine struct {
	node
	dst  Value
	init Value
}

func NewAutodefine(line, column int) *Autodefine {
	v := &Autodefine{node: at(line, column)}
	v.setType(typesystem.QuotingFunc(typesystem.Any, typesystem.Any))
	return v
}

func (v *Autodefine) CanApply(ctx *Stack, arg Value) bool {
	return v.dst == nil || v.init == nil
}

func (v *Autodefine) Apply(ctx *Stack, arg Value) Value {
	if v.dst == nil {
		q, ok := arg.(*Quote)
		if !ok {
			ctx.errAt(arg, "Expected symbol.")
			return v
		}
		rep := ctx.Reporter()
		rep.Catch()
		prev := ctx.Len()
		EvalTerm(q.Term(), ctx)
		rep.Discard()
		if ctx.Len() == prev+1 {
			switch ctx.Top().(type) {
			case *Variable, *JoinValue:
				v.dst = ctx.Pop()
			}
		}
		if v.dst == nil {
			ctx.errAt(arg, "Expected symbol.")
		}
		v.setType(typesystem.Func(typesystem.Any, typesystem.Void))
	} else if v.init == nil {
		v.init = arg
		bindTo(ctx, v.dst, v.init)
		v.setType(typesystem.Void)
	}
	return v
}

func (v *Autodefine) Lvalue(ctx *Stack) bool { return true }

func (v *Autodefine) Fold(ctx *Stack) typesystem.Meta {
	if v.dst == nil || v.init == nil {
		return typesystem.Meta{}
	}
	v.dst.Fold(ctx)
	if m := v.init.Fold(ctx); m.Valid() {
		if e := v.dst.Entry(ctx); e != nil {
			e.SetValue(m)
		}
	}
	return typesystem.MetaVoid()
}

func (v *Autodefine) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	e := v.dst.Entry(ctx)
	if e == nil {
		return frame.None()
	}
	if vr, isVar := v.dst.(*Variable); isVar && !e.Reassigned() {
		if _, isFn := v.init.Type(ctx).(*typesystem.FunctionType); isFn {
			fr := v.init.Fold(ctx)
			if fr.IsFunction() {
				if l, ok := fr.FuncNode().(*Lambda); ok {
					l.AddAltLabel(vr.Name())
				}
			}
		}
	}
	if e.Loc() == nil {
		if vr, isVar := v.dst.(*Variable); isVar {
			e.SetLoc(frame.StackNamed(v.init.Type(ctx), vr.Name()))
		} else {
			e.SetLoc(frame.Stack(v.init.Type(ctx)))
		}
	}
	frame.Add(ir.NewMovInsn(e.Loc(), v.init.Gen(ctx, gen, frame)))
	return e.Loc()
}

func (v *Autodefine) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "Define")
	if v.dst != nil {
		v.dst.Format(w, level+1)
	}
	if v.init != nil {
		v.init.Format(w, level+1)
	}
}

func (v *Autodefine) Clone(ctx *Stack) Value {
	n := NewAutodefine(v.line, v.column)
	if v.dst != nil {
		n.dst = v.dst
	}
	if v.init != nil {
		n.init = v.init
	}
	return n
}

func (v *Autodefine) Repr() string {
	switch {
	case v.dst == nil:
		return "let"
	case v.init == nil:
		return "(let " + v.dst.Repr() + ")"
	}
	return "(let " + v.dst.Repr() + " = " + v.init.Repr() + ")"
}

func (v *Autodefine) Explore(visit func(Value)) {
	visit(v)
	if v.dst != nil {
		v.dst.Explore(visit)
	}
	if v.init != nil {
		v.init.Explore(visit)
	}
}

// Assign is the `=` form. An uninitialized variable destination rewrites
// into an Autodefine; a reference destination writes through the
// reference.
type Assign struct {
	node
	lhs Value
	rhs Value
}

func NewAssign(line, column int) *Assign {
	v := &Assign{node: at(line, column)}
	v.setType(typesystem.QuotingFunc(typesystem.Any, typesystem.Func(typesystem.Any, typesystem.Any)))
	return v
}

func (v *Assign) CanApply(ctx *Stack, arg Value) bool {
	return v.lhs == nil || v.rhs == nil
}

func (v *Assign) Apply(ctx *Stack, arg Value) Value {
	if v.lhs == nil {
		q, ok := arg.(*Quote)
		if ok {
			temp := NewStack(ctx, false)
			EvalTerm(q.Term(), temp)
			if temp.Len() > 1 {
				ctx.errAt(v, "More than one destination provided to assignment.")
				return nil
			}
			if temp.Len() == 0 {
				ctx.errAt(v, "No destination provided to assignment.")
				return nil
			}
			arg = temp.Top()
			temp.Clear()
		}
		if !arg.Lvalue(ctx) {
			ctx.errAt(v, "Value on left side of assignment is not assignable.")
		}
		v.lhs = arg
		switch lhs := v.lhs.(type) {
		case *Autodefine:
			v.setType(typesystem.Func(typesystem.Any, typesystem.Any))
		case *Variable:
			if lhs.Entry(ctx) == nil {
				v.setType(typesystem.Func(typesystem.Any, typesystem.Any))
			} else if rt, isRef := lhs.Type(ctx).(*typesystem.ReferenceType); isRef {
				v.setType(typesystem.Func(rt.Element(), typesystem.Any))
			} else {
				v.setType(typesystem.Func(lhs.Type(ctx), typesystem.Any))
			}
		default:
			if rt, isRef := v.lhs.Type(ctx).(*typesystem.ReferenceType); isRef {
				v.setType(typesystem.Func(rt.Element(), typesystem.Any))
			} else {
				v.setType(typesystem.Func(v.lhs.Type(ctx), typesystem.Any))
			}
		}
	} else if v.rhs == nil {
		v.rhs = arg
		if ad, isAuto := v.lhs.(*Autodefine); isAuto {
			ad.Apply(ctx, v.rhs)
			v.lhs = nil
			v.rhs = nil
			return ad
		}
		if vr, isVar := v.lhs.(*Variable); isVar && vr.Entry(ctx) == nil {
			nameQuote := NewQuote(term.NewVariable(vr.Name(), vr.Line(), vr.Column()), vr.Line(), vr.Column())
			def := NewAutodefine(v.line, v.column)
			def.Apply(ctx, nameQuote)
			def.Apply(ctx, v.rhs)
			v.rhs = nil
			return def
		}
		dstT := v.lhs.Type(ctx)
		if rt, isRef := dstT.(*typesystem.ReferenceType); isRef {
			dstT = rt.Element()
		}
		if v.rhs.Type(ctx) != dstT {
			v.rhs = NewCast(dstT, v.rhs)
		}
		v.setType(typesystem.Void)
	}
	return v
}

func (v *Assign) Lvalue(ctx *Stack) bool { return true }

func (v *Assign) Entry(ctx *Stack) *Entry {
	if v.lhs == nil {
		return nil
	}
	return v.lhs.Entry(ctx)
}

func (v *Assign) Fold(ctx *Stack) typesystem.Meta {
	if v.lhs == nil || v.rhs == nil {
		return typesystem.Meta{}
	}
	l := v.lhs.Fold(ctx)
	if l.IsRef() {
		typesystem.Assign(l.AsRef(), v.rhs.Fold(ctx))
	} else if e := v.lhs.Entry(ctx); e != nil {
		e.SetValue(v.rhs.Fold(ctx))
	}
	return typesystem.MetaVoid()
}

func (v *Assign) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	if typesystem.ShouldAlloca(v.lhs.Type(ctx)) {
		r := v.rhs.Gen(ctx, gen, frame)
		size := ir.ValueOf(frame.Add(ir.NewSizeofInsn(r)), gen, frame)
		mem := ir.ValueOf(frame.Add(ir.NewAllocaInsn(size, v.lhs.Type(ctx))), gen, frame)
		frame.Add(ir.NewMemcpyInsn(mem, r, size, gen.NewLabel()))
		frame.Add(ir.NewMovInsn(v.lhs.Gen(ctx, gen, frame), mem))
	} else {
		frame.Add(ir.NewMovInsn(v.lhs.Gen(ctx, gen, frame), v.rhs.Gen(ctx, gen, frame)))
	}
	return frame.None()
}

func (v *Assign) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "Assign")
	if v.lhs != nil {
		v.lhs.Format(w, level+1)
	}
	if v.rhs != nil {
		v.rhs.Format(w, level+1)
	}
}

func (v *Assign) Clone(ctx *Stack) Value {
	n := NewAssign(v.line, v.column)
	n.lhs = v.lhs
	n.rhs = v.rhs
	return n
}

func (v *Assign) Repr() string { return binaryRepr("=", v.lhs, v.rhs) }

func (v *Assign) Explore(visit func(Value)) {
	visit(v)
	if v.lhs != nil {
		v.lhs.Explore(visit)
	}
	if v.rhs != nil {
		v.rhs.Explore(visit)
	}
}
