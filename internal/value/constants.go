package value

import (
	"fmt"
	"io"
	"strconv"

	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/typesystem"
)

// VoidValue is the unit value.
type VoidValue struct {
	node
}

func NewVoid(line, column int) *VoidValue {
	v := &VoidValue{node: at(line, column)}
	v.setType(typesystem.Void)
	return v
}

func (v *VoidValue) Fold(ctx *Stack) typesystem.Meta { return typesystem.MetaVoid() }

func (v *VoidValue) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "Void ()")
}

func (v *VoidValue) Clone(ctx *Stack) Value { return NewVoid(v.line, v.column) }
func (v *VoidValue) Repr() string           { return "()" }

func (v *VoidValue) Explore(visit func(Value)) { visit(v) }

// EmptyValue is the empty list literal.
type EmptyValue struct {
	node
}

func NewEmpty(line, column int) *EmptyValue {
	v := &EmptyValue{node: at(line, column)}
	v.setType(typesystem.Empty)
	return v
}

func (v *EmptyValue) Fold(ctx *Stack) typesystem.Meta { return typesystem.MetaEmpty() }

func (v *EmptyValue) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "Empty []")
}

func (v *EmptyValue) Clone(ctx *Stack) Value { return NewEmpty(v.line, v.column) }
func (v *EmptyValue) Repr() string           { return "[]" }

func (v *EmptyValue) Explore(visit func(Value)) { visit(v) }

// IntegerConstant is an integer literal.
type IntegerConstant struct {
	node
	value int64
}

func NewInteger(value int64, line, column int) *IntegerConstant {
	v := &IntegerConstant{node: at(line, column), value: value}
	v.setType(typesystem.I64)
	return v
}

func (v *IntegerConstant) Value() int64 { return v.value }

func (v *IntegerConstant) Fold(ctx *Stack) typesystem.Meta {
	return typesystem.MetaInt(v.Type(ctx), v.value)
}

func (v *IntegerConstant) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	return ir.ValueOf(frame.Add(ir.NewIntData(v.value)), gen, frame)
}

func (v *IntegerConstant) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintf(w, "Integer %d\n", v.value)
}

func (v *IntegerConstant) Clone(ctx *Stack) Value { return NewInteger(v.value, v.line, v.column) }

func (v *IntegerConstant) Repr() string { return strconv.FormatInt(v.value, 10) }

func (v *IntegerConstant) Explore(visit func(Value)) { visit(v) }

// RationalConstant is a floating-point literal.
type RationalConstant struct {
	node
	value float64
}

func NewRational(value float64, line, column int) *RationalConstant {
	v := &RationalConstant{node: at(line, column), value: value}
	v.setType(typesystem.Double)
	return v
}

func (v *RationalConstant) Value() float64 { return v.value }

func (v *RationalConstant) Fold(ctx *Stack) typesystem.Meta {
	return typesystem.MetaFloat(v.Type(ctx), v.value)
}

func (v *RationalConstant) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	return ir.ValueOf(frame.Add(ir.NewFloatData(v.value)), gen, frame)
}

func (v *RationalConstant) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintf(w, "Float %v\n", v.value)
}

func (v *RationalConstant) Clone(ctx *Stack) Value {
	return NewRational(v.value, v.line, v.column)
}

func (v *RationalConstant) Repr() string {
	return strconv.FormatFloat(v.value, 'g', -1, 64)
}

func (v *RationalConstant) Explore(visit func(Value)) { visit(v) }

// StringConstant is a string literal.
type StringConstant struct {
	node
	value string
}

func NewString(value string, line, column int) *StringConstant {
	v := &StringConstant{node: at(line, column), value: value}
	v.setType(typesystem.String)
	return v
}

func (v *StringConstant) Value() string { return v.value }

func (v *StringConstant) Fold(ctx *Stack) typesystem.Meta {
	return typesystem.MetaString(v.value)
}

func (v *StringConstant) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	return ir.ValueOf(frame.Add(ir.NewStrData(v.value)), gen, frame)
}

func (v *StringConstant) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintf(w, "String %q\n", v.value)
}

func (v *StringConstant) Clone(ctx *Stack) Value { return NewString(v.value, v.line, v.column) }

func (v *StringConstant) Repr() string { return strconv.Quote(v.value) }

func (v *StringConstant) Explore(visit func(Value)) { visit(v) }

// CharConstant is a character literal.
type CharConstant struct {
	node
	value rune
}

func NewChar(value rune, line, column int) *CharConstant {
	v := &CharConstant{node: at(line, column), value: value}
	v.setType(typesystem.Char)
	return v
}

func (v *CharConstant) Value() rune { return v.value }

func (v *CharConstant) Fold(ctx *Stack) typesystem.Meta {
	return typesystem.MetaChar(v.value)
}

func (v *CharConstant) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintf(w, "Character '%c'\n", v.value)
}

func (v *CharConstant) Clone(ctx *Stack) Value { return NewChar(v.value, v.line, v.column) }

func (v *CharConstant) Repr() string { return "'" + string(v.value) + "'" }

func (v *CharConstant) Explore(visit func(Value)) { visit(v) }

// TypeConstant is a first-class type value.
type TypeConstant struct {
	node
	value typesystem.Type
}

func NewTypeConstant(value typesystem.Type, line, column int) *TypeConstant {
	v := &TypeConstant{node: at(line, column), value: value}
	v.setType(typesystem.TypeType)
	return v
}

func (v *TypeConstant) Value() typesystem.Type { return v.value }

func (v *TypeConstant) Fold(ctx *Stack) typesystem.Meta {
	return typesystem.MetaType(v.value)
}

func (v *TypeConstant) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintf(w, "Type %s\n", v.value)
}

func (v *TypeConstant) Clone(ctx *Stack) Value {
	return NewTypeConstant(v.value, v.line, v.column)
}

func (v *TypeConstant) Repr() string { return v.value.String() }

func (v *TypeConstant) Explore(visit func(Value)) { visit(v) }

// BoolConstant is a boolean literal.
type BoolConstant struct {
	node
	value bool
}

func NewBool(value bool, line, column int) *BoolConstant {
	v := &BoolConstant{node: at(line, column), value: value}
	v.setType(typesystem.Bool)
	return v
}

func (v *BoolConstant) Value() bool { return v.value }

func (v *BoolConstant) Fold(ctx *Stack) typesystem.Meta {
	return typesystem.MetaBool(v.value)
}

func (v *BoolConstant) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	return ir.ValueOf(frame.Add(ir.NewBoolData(v.value)), gen, frame)
}

func (v *BoolConstant) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintf(w, "Boolean %v\n", v.value)
}

func (v *BoolConstant) Clone(ctx *Stack) Value { return NewBool(v.value, v.line, v.column) }

func (v *BoolConstant) Repr() string { return strconv.FormatBool(v.value) }

func (v *BoolConstant) Explore(visit func(Value)) { visit(v) }

// Interaction wraps the function value of a registered binary type method.
type Interaction struct {
	node
	fn typesystem.Meta
}

func NewInteraction(fn typesystem.Meta, line, column int) *Interaction {
	v := &Interaction{node: at(line, column), fn: fn}
	v.setType(fn.Type())
	return v
}

func (v *Interaction) Fold(ctx *Stack) typesystem.Meta { return v.fn }

func (v *Interaction) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintf(w, "Interaction %s\n", v.typ)
}

func (v *Interaction) Clone(ctx *Stack) Value {
	return NewInteraction(v.fn, v.line, v.column)
}

func (v *Interaction) Repr() string { return "#interaction" }

func (v *Interaction) Explore(visit func(Value)) { visit(v) }
