package value

import (
	"fmt"
	"io"

	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/lexer"
	"github.com/funvibe/lattice/internal/parser"
	"github.com/funvibe/lattice/internal/source"
	"github.com/funvibe/lattice/internal/typesystem"
)

// PrintBaseType is the overloaded type of `print`.
func PrintBaseType() typesystem.Type {
	return typesystem.Intersection(
		typesystem.Func(typesystem.String, typesystem.Void),
		typesystem.Func(typesystem.Char, typesystem.Void),
		typesystem.Func(typesystem.Bool, typesystem.Void),
		typesystem.Func(typesystem.I64, typesystem.Void),
		typesystem.Func(typesystem.Double, typesystem.Void),
	)
}

// Print writes a value at run time through the runtime printers, and echoes
// the folded value at compile time.
type Print struct {
	node
	operand Value
}

func NewPrint(line, column int) *Print {
	v := &Print{node: at(line, column)}
	v.setType(PrintBaseType())
	return v
}

func (v *Print) CanApply(ctx *Stack, arg Value) bool { return v.operand == nil }

func (v *Print) Apply(ctx *Stack, arg Value) Value {
	if v.operand == nil {
		v.operand = arg
		v.setType(typesystem.Void)
	}
	return v
}

func (v *Print) Fold(ctx *Stack) typesystem.Meta {
	if v.operand == nil {
		return typesystem.Meta{}
	}
	m := v.operand.Fold(ctx)
	if !m.Valid() {
		ctx.errAt(v.operand, "Could not evaluate value for compile-time print.")
	} else {
		fmt.Fprintln(FoldOutput, m.String())
	}
	return typesystem.MetaVoid()
}

func (v *Print) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	frame.Add(ir.NewPrintInsn(v.operand.Gen(ctx, gen, frame)))
	return frame.None()
}

func (v *Print) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "print")
	if v.operand != nil {
		v.operand.Format(w, level+1)
	}
}

func (v *Print) Clone(ctx *Stack) Value {
	n := NewPrint(v.line, v.column)
	if v.operand != nil {
		n.Apply(ctx, v.operand.Clone(ctx))
	}
	return n
}

func (v *Print) Repr() string {
	if v.operand == nil {
		return "print"
	}
	return "(print " + v.operand.Repr() + ")"
}

func (v *Print) Explore(visit func(Value)) {
	visit(v)
	if v.operand != nil {
		v.operand.Explore(visit)
	}
}

// Metaprint echoes a value at compile time only.
type Metaprint struct {
	node
	operand Value
}

func NewMetaprint(line, column int) *Metaprint {
	v := &Metaprint{node: at(line, column)}
	v.setType(typesystem.Func(typesystem.Any, typesystem.Void))
	return v
}

func (v *Metaprint) CanApply(ctx *Stack, arg Value) bool { return v.operand == nil }

func (v *Metaprint) Apply(ctx *Stack, arg Value) Value {
	if v.operand == nil {
		v.operand = arg
		v.setType(typesystem.Void)
	}
	return v
}

func (v *Metaprint) Fold(ctx *Stack) typesystem.Meta {
	if v.operand == nil {
		return typesystem.Meta{}
	}
	m := v.operand.Fold(ctx)
	if !m.Valid() {
		ctx.errAt(v.operand, "Could not evaluate value for compile-time print.")
	} else {
		fmt.Fprintln(FoldOutput, m.String())
	}
	return typesystem.MetaVoid()
}

func (v *Metaprint) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "metaprint")
	if v.operand != nil {
		v.operand.Format(w, level+1)
	}
}

func (v *Metaprint) Clone(ctx *Stack) Value {
	n := NewMetaprint(v.line, v.column)
	if v.operand != nil {
		n.Apply(ctx, v.operand.Clone(ctx))
	}
	return n
}

func (v *Metaprint) Repr() string {
	if v.operand == nil {
		return "metaprint"
	}
	return "(metaprint " + v.operand.Repr() + ")"
}

func (v *Metaprint) Explore(visit func(Value)) {
	visit(v)
	if v.operand != nil {
		v.operand.Explore(visit)
	}
}

// Typeof reflects a value's type as a first-class type.
type Typeof struct {
	node
	operand Value
}

func NewTypeof(line, column int) *Typeof {
	v := &Typeof{node: at(line, column)}
	v.setType(typesystem.Func(typesystem.Any, typesystem.TypeType))
	return v
}

func (v *Typeof) CanApply(ctx *Stack, arg Value) bool { return v.operand == nil }

func (v *Typeof) Apply(ctx *Stack, arg Value) Value {
	if v.operand == nil {
		v.operand = arg
		v.setType(typesystem.TypeType)
	}
	return v
}

func (v *Typeof) Fold(ctx *Stack) typesystem.Meta {
	if v.operand == nil {
		return typesystem.Meta{}
	}
	return typesystem.MetaType(v.operand.Type(ctx))
}

func (v *Typeof) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "typeof")
	if v.operand != nil {
		v.operand.Format(w, level+1)
	}
}

func (v *Typeof) Clone(ctx *Stack) Value {
	n := NewTypeof(v.line, v.column)
	if v.operand != nil {
		n.Apply(ctx, v.operand.Clone(ctx))
	}
	return n
}

func (v *Typeof) Repr() string {
	if v.operand == nil {
		return "typeof"
	}
	return "(typeof " + v.operand.Repr() + ")"
}

func (v *Typeof) Explore(visit func(Value)) {
	visit(v)
	if v.operand != nil {
		v.operand.Explore(visit)
	}
}

// Eval turns a compile-time value back into syntax-level values on the
// stack.
type Eval struct {
	node
}

func NewEval(line, column int) *Eval {
	v := &Eval{node: at(line, column)}
	v.setType(typesystem.Func(typesystem.Any, typesystem.Any))
	return v
}

func (v *Eval) CanApply(ctx *Stack, arg Value) bool { return true }

func evalMeta(ctx *Stack, m typesystem.Meta, line, column int) Value {
	switch {
	case m.IsArray():
		tmp := NewStack(ctx, false)
		for _, e := range m.AsArray() {
			tmp.Push(evalMeta(tmp, e, line, column))
		}
		for _, pushed := range tmp.Values() {
			ctx.Push(pushed)
		}
		return nil
	case m.IsUnion():
		return evalMeta(ctx, *m.AsUnion(), line, column)
	case m.IsSymbol():
		return NewVariable(typesystem.SymbolName(m.AsSymbol()), line, column)
	case m.IsInt():
		return NewInteger(m.AsInt(), line, column)
	case m.IsFloat():
		return NewRational(m.AsFloat(), line, column)
	case m.IsBool():
		return NewBool(m.AsBool(), line, column)
	case m.IsString():
		return NewString(m.AsString(), line, column)
	case m.IsVoid():
		return NewVoid(line, column)
	}
	ctx.err(line, column, "Could not evaluate term.")
	return nil
}

func (v *Eval) Apply(ctx *Stack, arg Value) Value {
	if arg == nil {
		return v
	}
	return evalMeta(ctx, arg.Fold(ctx), arg.Line(), arg.Column())
}

func (v *Eval) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "eval")
}

func (v *Eval) Clone(ctx *Stack) Value { return NewEval(v.line, v.column) }

func (v *Eval) Repr() string { return "eval" }

func (v *Eval) Explore(visit func(Value)) { visit(v) }

// MetaEval captures its argument's folded value; the meta form of a
// computation.
type MetaEval struct {
	node
	val typesystem.Meta
}

func NewMetaEval(line, column int) *MetaEval {
	v := &MetaEval{node: at(line, column)}
	v.setType(typesystem.Func(typesystem.Any, typesystem.Any))
	return v
}

func (v *MetaEval) CanApply(ctx *Stack, arg Value) bool { return !v.val.Valid() }

func (v *MetaEval) Apply(ctx *Stack, arg Value) Value {
	v.val = arg.Fold(ctx)
	if v.val.Valid() {
		v.setType(v.val.Type())
	}
	return v
}

func (v *MetaEval) Fold(ctx *Stack) typesystem.Meta { return v.val }

func (v *MetaEval) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "meta")
}

func (v *MetaEval) Clone(ctx *Stack) Value { return NewMetaEval(v.line, v.column) }

func (v *MetaEval) Repr() string { return "meta" }

func (v *MetaEval) Explore(visit func(Value)) { visit(v) }

// Use textually includes another source file: the module is lexed, parsed
// and evaluated into the current scope.
type Use struct {
	node
	path Value
}

func NewUse(line, column int) *Use {
	v := &Use{node: at(line, column)}
	v.setType(typesystem.Func(typesystem.String, typesystem.Void))
	return v
}

func (v *Use) CanApply(ctx *Stack, arg Value) bool { return v.path == nil }

func (v *Use) Apply(ctx *Stack, arg Value) Value {
	if v.path != nil {
		return v
	}
	v.path = arg
	v.setType(typesystem.Void)
	m := v.path.Fold(ctx)
	if !m.IsString() {
		ctx.errAt(arg, "Module path must be constant string.")
		return v
	}
	rep := ctx.Reporter()
	src, err := source.FromFile(m.AsString())
	if err != nil {
		ctx.errAt(arg, "Could not load module '", m.AsString(), "'.")
		return v
	}
	cache := lexer.Lex(src, rep)
	if rep.Count() > 0 {
		return v
	}
	p := parser.New(cache.View(), rep)
	prog := p.ParseFull()
	if prog == nil {
		return v
	}
	for _, child := range prog.Children() {
		if ctx.ExpectsMeta() {
			ctx.Push(NewQuote(child, child.Line(), child.Column()))
		} else {
			EvalTerm(child, ctx)
		}
	}
	return v
}

func (v *Use) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "Use")
	if v.path != nil {
		v.path.Format(w, level+1)
	}
}

func (v *Use) Clone(ctx *Stack) Value {
	n := NewUse(v.line, v.column)
	if v.path != nil {
		n.Apply(ctx, v.path)
	}
	return n
}

func (v *Use) Repr() string {
	if v.path == nil {
		return "(use ??)"
	}
	return "(use " + v.path.Repr() + ")"
}

func (v *Use) Explore(visit func(Value)) {
	visit(v)
	if v.path != nil {
		v.path.Explore(visit)
	}
}

// Incomplete wraps a term that could not be elaborated.
type Incomplete struct {
	node
}

func NewIncomplete(line, column int) *Incomplete {
	v := &Incomplete{node: at(line, column)}
	v.setType(typesystem.Any)
	return v
}

func (v *Incomplete) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "Incomplete")
}

func (v *Incomplete) Clone(ctx *Stack) Value { return NewIncomplete(v.line, v.column) }

func (v *Incomplete) Repr() string { return "???" }

func (v *Incomplete) Explore(visit func(Value)) { visit(v) }
