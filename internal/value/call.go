package value

import (
	"fmt"
	"io"

	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/typesystem"
)

// caseForValue selects the lambda implementing a call: a plain lambda is
// itself; an intersection picks its best-matching case for the argument's
// compile-time value.
func caseForValue(ctx *Stack, fn Value, arg Value) *Lambda {
	switch f := fn.(type) {
	case *Lambda:
		return f
	case *Intersect:
		return f.CaseFor(ctx, arg.Fold(ctx))
	}
	return nil
}

// Call applies a function value to an argument. The callee is resolved
// through folding; generic lambdas are instantiated at the argument type.
type Call struct {
	node
	fn      Value
	desired typesystem.Type
	arg     Value
	inst    *Lambda
}

func NewCall(fn Value, desired typesystem.Type, arg Value, line, column int) *Call {
	return &Call{node: at(line, column), fn: fn, desired: desired, arg: arg}
}

func (v *Call) Func() Value { return v.fn }
func (v *Call) Arg() Value  { return v.arg }

// resolve finds the lambda this call dispatches to, reporting callee shape
// errors once.
func (v *Call) resolve(ctx *Stack) *Lambda {
	if v.inst != nil {
		return v.inst
	}
	m := v.fn.Fold(ctx)
	var l *Lambda
	switch {
	case m.IsFunction():
		if fnv, ok := m.FuncNode().(Value); ok {
			l = caseForValue(ctx, fnv, v.arg)
		}
	case m.IsIntersect():
		member := typesystem.Meta{}
		if v.desired != nil {
			member = m.IntersectAs(v.desired)
		}
		if !member.IsFunction() {
			ctx.errAt(v, "Called object '", v.fn.Repr(), "' does not have function type.")
			return nil
		}
		ft := member.Type().(*typesystem.FunctionType)
		if !ft.Total() {
			ctx.errAt(v, "Cannot call ", member.Type(), " case of ", v.fn.Type(ctx),
				" intersect; cases are not total.")
			return nil
		}
		if fnv, ok := member.FuncNode().(Value); ok {
			l = caseForValue(ctx, fnv, v.arg)
		}
	default:
		ctx.errAt(v, "Called object '", v.fn.Repr(), "' does not have function type.")
		return nil
	}
	if l == nil {
		if ft, ok := v.fn.Type(ctx).(*typesystem.FunctionType); ok && !ft.Total() {
			ctx.errAt(v, "Cannot call non-total case for argument '", v.arg.Repr(), "'.")
		}
		return nil
	}
	if ft, ok := l.Type(ctx).(*typesystem.FunctionType); ok && ft.Arg() == typesystem.Any {
		l = InstantiateFor(ctx, l, v.arg)
		v.inst = l
	}
	return l
}

func (v *Call) Type(ctx *Stack) typesystem.Type {
	if v.typ != nil {
		return v.typ
	}
	if ft, ok := v.fn.Type(ctx).(*typesystem.FunctionType); ok && ft.Arg() != typesystem.Any {
		v.setType(ft.Ret())
		return v.typ
	}
	l := v.resolve(ctx)
	if l == nil {
		v.setType(typesystem.Error)
		return v.typ
	}
	v.setType(l.Type(ctx).(*typesystem.FunctionType).Ret())
	return v.typ
}

// Fold inlines: the lambda's match entry is bound to the argument's value
// and the body folded in the lambda's scope.
func (v *Call) Fold(ctx *Stack) typesystem.Meta {
	l := v.resolve(ctx)
	if l == nil {
		return typesystem.Meta{}
	}
	backup := map[string]typesystem.Meta{}
	for name, e := range l.Scope().Scope() {
		backup[name] = e.Value()
	}
	assignTo(l.Scope(), l.Match(), v.arg)
	m := l.Body().Fold(l.Scope())
	for name, val := range backup {
		if e := l.Scope().Scope()[name]; e != nil {
			e.SetValue(val)
		}
	}
	return m
}

func (v *Call) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	l := v.resolve(ctx)
	if l == nil {
		return frame.None()
	}
	fnLoc := l.Gen(ctx, gen, frame)
	return ir.ValueOf(frame.Add(ir.NewCallInsn(v.arg.Gen(ctx, gen, frame), fnLoc)), gen, frame)
}

func (v *Call) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "Call")
	v.fn.Format(w, level+1)
	if v.arg != nil {
		v.arg.Format(w, level+1)
	}
}

func (v *Call) Clone(ctx *Stack) Value {
	return NewCall(v.fn.Clone(ctx), v.desired, v.arg.Clone(ctx), v.line, v.column)
}

func (v *Call) Repr() string {
	if v.inst != nil {
		return "(" + v.inst.Repr() + " " + v.arg.Repr() + ")"
	}
	return "(" + v.fn.Repr() + " " + v.arg.Repr() + ")"
}

func (v *Call) Explore(visit func(Value)) {
	visit(v)
	v.fn.Explore(visit)
	if v.arg != nil {
		v.arg.Explore(visit)
	}
}
