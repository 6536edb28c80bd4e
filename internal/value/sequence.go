package value

import (
	"fmt"
	"io"
	"strings"

	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/typesystem"
)

// Sequence evaluates children in order; its value is the last child's. A
// taken If child short-circuits folding, mirroring the early return its
// generated code performs.
type Sequence struct {
	node
	children []Value
}

func NewSequence(children []Value, line, column int) *Sequence {
	return &Sequence{node: at(line, column), children: children}
}

func (v *Sequence) Children() []Value { return v.children }

func (v *Sequence) Append(child Value) { v.children = append(v.children, child) }

func (v *Sequence) Type(ctx *Stack) typesystem.Type {
	if v.typ != nil {
		return v.typ
	}
	if len(v.children) == 0 {
		v.setType(typesystem.Void)
	} else {
		v.setType(v.children[len(v.children)-1].Type(ctx))
	}
	return v.typ
}

func (v *Sequence) Fold(ctx *Stack) typesystem.Meta {
	var m typesystem.Meta
	for _, c := range v.children {
		if iff, ok := c.(*If); ok {
			taken, result := iff.foldBranch(ctx)
			if taken {
				return result
			}
			m = typesystem.MetaVoid()
			continue
		}
		m = c.Fold(ctx)
		if !m.Valid() {
			break
		}
	}
	return m
}

func (v *Sequence) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	loc := frame.None()
	for _, c := range v.children {
		loc = c.Gen(ctx, gen, frame)
	}
	return loc
}

func (v *Sequence) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "Sequence")
	for _, c := range v.children {
		c.Format(w, level+1)
	}
}

func (v *Sequence) Clone(ctx *Stack) Value {
	children := make([]Value, len(v.children))
	for i, c := range v.children {
		children[i] = c.Clone(ctx)
	}
	return NewSequence(children, v.line, v.column)
}

func (v *Sequence) Repr() string {
	parts := make([]string, len(v.children))
	for i, c := range v.children {
		parts[i] = c.Repr()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (v *Sequence) Explore(visit func(Value)) {
	visit(v)
	for _, c := range v.children {
		c.Explore(visit)
	}
}

// Program is the root of an elaborated module.
type Program struct {
	node
	children []Value
}

func NewProgram(children []Value, line, column int) *Program {
	return &Program{node: at(line, column), children: children}
}

func (v *Program) Children() []Value { return v.children }

func (v *Program) Append(child Value) { v.children = append(v.children, child) }

func (v *Program) Type(ctx *Stack) typesystem.Type {
	if v.typ != nil {
		return v.typ
	}
	if len(v.children) == 0 {
		v.setType(typesystem.Void)
	} else {
		v.setType(v.children[len(v.children)-1].Type(ctx))
	}
	return v.typ
}

func (v *Program) Fold(ctx *Stack) typesystem.Meta {
	var m typesystem.Meta
	for _, c := range v.children {
		m = c.Fold(ctx)
		if !m.Valid() {
			break
		}
	}
	return m
}

func (v *Program) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	loc := frame.None()
	for _, c := range v.children {
		loc = c.Gen(ctx, gen, frame)
	}
	return loc
}

func (v *Program) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "Program")
	for _, c := range v.children {
		c.Format(w, level+1)
	}
}

func (v *Program) Clone(ctx *Stack) Value {
	children := make([]Value, len(v.children))
	for i, c := range v.children {
		children[i] = c.Clone(ctx)
	}
	return NewProgram(children, v.line, v.column)
}

func (v *Program) Repr() string {
	parts := make([]string, len(v.children))
	for i, c := range v.children {
		parts[i] = c.Repr()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (v *Program) Explore(visit func(Value)) {
	visit(v)
	for _, c := range v.children {
		c.Explore(visit)
	}
}
