package value

import (
	"fmt"
	"io"

	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/typesystem"
)

// Variable is a name occurrence resolved against the enclosing scopes.
type Variable struct {
	node
	name string
}

func NewVariable(name string, line, column int) *Variable {
	return &Variable{node: at(line, column), name: name}
}

func (v *Variable) Name() string { return v.name }

func (v *Variable) Type(ctx *Stack) typesystem.Type {
	if v.typ != nil {
		return v.typ
	}
	e := ctx.Lookup(v.name)
	if e == nil {
		ctx.errAt(v, "Undeclared variable '", v.name, "'.")
		v.setType(typesystem.Error)
		return v.typ
	}
	v.setType(e.Type())
	return v.typ
}

func (v *Variable) Fold(ctx *Stack) typesystem.Meta {
	e := ctx.Lookup(v.name)
	if e == nil {
		ctx.errAt(v, "Undeclared variable '", v.name, "'.")
		return typesystem.Meta{}
	}
	return e.Value()
}

func (v *Variable) Lvalue(ctx *Stack) bool { return true }

func (v *Variable) Entry(ctx *Stack) *Entry { return ctx.Lookup(v.name) }

func (v *Variable) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	e := v.Entry(ctx)
	if e == nil || e.Loc() == nil {
		return frame.None()
	}
	return e.Loc()
}

func (v *Variable) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintf(w, "Variable %s\n", v.name)
}

func (v *Variable) Clone(ctx *Stack) Value { return NewVariable(v.name, v.line, v.column) }

func (v *Variable) Repr() string { return v.name }

func (v *Variable) Explore(visit func(Value)) { visit(v) }
