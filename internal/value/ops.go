package value

import (
	"fmt"
	"io"

	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/typesystem"
)

// The operator families. Each family is one node type tagged with its
// operation; partial applications refine the node's type as operands
// arrive, which is what drives overload-style dispatch on the stack.

func mathPartialIntType() typesystem.Type {
	return typesystem.Intersection(
		typesystem.Func(typesystem.I64, typesystem.I64),
		typesystem.Func(typesystem.Double, typesystem.Double),
	)
}

func mathPartialDoubleType() typesystem.Type {
	return typesystem.Func(typesystem.Double, typesystem.Double)
}

// MathBaseType is the curried type of the arithmetic operators.
func MathBaseType() typesystem.Type {
	return typesystem.Intersection(
		typesystem.Func(typesystem.I64, mathPartialIntType()),
		typesystem.Func(typesystem.Double, mathPartialDoubleType()),
	)
}

// AddBaseType extends the arithmetic type with string concatenation.
func AddBaseType() typesystem.Type {
	return typesystem.Intersection(
		typesystem.Func(typesystem.I64, mathPartialIntType()),
		typesystem.Func(typesystem.Double, mathPartialDoubleType()),
		typesystem.Func(typesystem.String, typesystem.Func(typesystem.String, typesystem.String)),
	)
}

// BinaryMath is +, -, *, / and %.
type BinaryMath struct {
	node
	op  ir.BinaryOp
	lhs Value
	rhs Value
}

func newMath(op ir.BinaryOp, line, column int) *BinaryMath {
	v := &BinaryMath{node: at(line, column), op: op}
	if op == ir.OpAdd {
		v.setType(AddBaseType())
	} else {
		v.setType(MathBaseType())
	}
	return v
}

func NewAdd(line, column int) *BinaryMath      { return newMath(ir.OpAdd, line, column) }
func NewSubtract(line, column int) *BinaryMath { return newMath(ir.OpSub, line, column) }
func NewMultiply(line, column int) *BinaryMath { return newMath(ir.OpMul, line, column) }
func NewDivide(line, column int) *BinaryMath   { return newMath(ir.OpDiv, line, column) }
func NewModulus(line, column int) *BinaryMath  { return newMath(ir.OpMod, line, column) }

func (v *BinaryMath) Left() Value  { return v.lhs }
func (v *BinaryMath) Right() Value { return v.rhs }

func (v *BinaryMath) CanApply(ctx *Stack, arg Value) bool {
	return v.lhs == nil || v.rhs == nil
}

func (v *BinaryMath) Apply(ctx *Stack, arg Value) Value {
	if v.lhs == nil {
		v.lhs = arg
		switch v.lhs.Type(ctx) {
		case typesystem.I64:
			v.setType(mathPartialIntType())
		case typesystem.Double:
			v.setType(mathPartialDoubleType())
		case typesystem.String:
			if v.op == ir.OpAdd {
				v.setType(typesystem.Func(typesystem.String, typesystem.String))
			}
		}
	} else if v.rhs == nil {
		v.rhs = arg
		joinOperands(ctx, &v.lhs, &v.rhs)
		v.setType(v.lhs.Type(ctx))
	}
	return v
}

// joinOperands coerces two operands to their common type. An Any operand
// (a not-yet-typed recursive call) adopts the concrete side's type instead
// of widening both to Any.
func joinOperands(ctx *Stack, lhs, rhs *Value) {
	lt, rt := (*lhs).Type(ctx), (*rhs).Type(ctx)
	if lt == rt {
		return
	}
	j := typesystem.Join(rt, lt)
	if j == typesystem.Any {
		if lt != typesystem.Any {
			j = lt
		} else if rt != typesystem.Any {
			j = rt
		}
	}
	if j == nil {
		return
	}
	if rt != j {
		*rhs = NewCast(j, *rhs)
	} else if lt != j {
		*lhs = NewCast(j, *lhs)
	}
}

func (v *BinaryMath) Fold(ctx *Stack) typesystem.Meta {
	if v.lhs == nil || v.rhs == nil {
		return typesystem.MetaFunction(typesystem.Func(typesystem.Any, typesystem.Any), v)
	}
	l, r := v.lhs.Fold(ctx), v.rhs.Fold(ctx)
	switch v.op {
	case ir.OpAdd:
		return typesystem.Add(l, r)
	case ir.OpSub:
		return typesystem.Sub(l, r)
	case ir.OpMul:
		return typesystem.Mul(l, r)
	case ir.OpDiv:
		return typesystem.Div(l, r)
	case ir.OpMod:
		return typesystem.Mod(l, r)
	}
	return typesystem.Meta{}
}

func (v *BinaryMath) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	if v.op == ir.OpAdd && v.lhs.Type(ctx) == typesystem.String {
		return ir.ValueOf(frame.Add(ir.NewCCallInsn(
			[]*ir.Location{v.lhs.Gen(ctx, gen, frame), v.rhs.Gen(ctx, gen, frame)},
			"_strcat", typesystem.String,
		)), gen, frame)
	}
	return ir.ValueOf(frame.Add(ir.NewBinaryInsn(v.op,
		v.lhs.Gen(ctx, gen, frame), v.rhs.Gen(ctx, gen, frame))), gen, frame)
}

func (v *BinaryMath) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, v.op.String())
	if v.lhs != nil {
		v.lhs.Format(w, level+1)
	}
	if v.rhs != nil {
		v.rhs.Format(w, level+1)
	}
}

func (v *BinaryMath) Clone(ctx *Stack) Value {
	n := newMath(v.op, v.line, v.column)
	if v.lhs != nil {
		n.Apply(ctx, v.lhs.Clone(ctx))
	}
	if v.rhs != nil {
		n.Apply(ctx, v.rhs.Clone(ctx))
	}
	return n
}

func (v *BinaryMath) Repr() string { return binaryRepr(v.op.String(), v.lhs, v.rhs) }

func (v *BinaryMath) Explore(visit func(Value)) {
	visit(v)
	if v.lhs != nil {
		v.lhs.Explore(visit)
	}
	if v.rhs != nil {
		v.rhs.Explore(visit)
	}
}

func binaryRepr(op string, lhs, rhs Value) string {
	switch {
	case lhs == nil && rhs == nil:
		return op
	case rhs == nil:
		return "(" + lhs.Repr() + " " + op + ")"
	}
	return "(" + lhs.Repr() + " " + op + " " + rhs.Repr() + ")"
}

// LogicBaseType is the curried type of the boolean operators.
func LogicBaseType() typesystem.Type {
	return typesystem.Func(typesystem.Bool, typesystem.Func(typesystem.Bool, typesystem.Bool))
}

// BinaryLogic is and, or and xor.
type BinaryLogic struct {
	node
	op  ir.BinaryOp
	lhs Value
	rhs Value
}

func newLogic(op ir.BinaryOp, line, column int) *BinaryLogic {
	v := &BinaryLogic{node: at(line, column), op: op}
	v.setType(LogicBaseType())
	return v
}

func NewAnd(line, column int) *BinaryLogic { return newLogic(ir.OpAnd, line, column) }
func NewOr(line, column int) *BinaryLogic  { return newLogic(ir.OpOr, line, column) }
func NewXor(line, column int) *BinaryLogic { return newLogic(ir.OpXor, line, column) }

func (v *BinaryLogic) CanApply(ctx *Stack, arg Value) bool {
	return v.lhs == nil || v.rhs == nil
}

func (v *BinaryLogic) Apply(ctx *Stack, arg Value) Value {
	if v.lhs == nil {
		v.lhs = arg
		v.setType(typesystem.Func(typesystem.Bool, typesystem.Bool))
	} else if v.rhs == nil {
		v.rhs = arg
		v.setType(typesystem.Bool)
	}
	return v
}

func (v *BinaryLogic) Fold(ctx *Stack) typesystem.Meta {
	if v.lhs == nil || v.rhs == nil {
		return typesystem.MetaFunction(typesystem.Func(typesystem.Any, typesystem.Any), v)
	}
	l, r := v.lhs.Fold(ctx), v.rhs.Fold(ctx)
	switch v.op {
	case ir.OpAnd:
		return typesystem.And(l, r)
	case ir.OpOr:
		return typesystem.Or(l, r)
	case ir.OpXor:
		return typesystem.Xor(l, r)
	}
	return typesystem.Meta{}
}

func (v *BinaryLogic) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	return ir.ValueOf(frame.Add(ir.NewBinaryInsn(v.op,
		v.lhs.Gen(ctx, gen, frame), v.rhs.Gen(ctx, gen, frame))), gen, frame)
}

func (v *BinaryLogic) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, v.op.String())
	if v.lhs != nil {
		v.lhs.Format(w, level+1)
	}
	if v.rhs != nil {
		v.rhs.Format(w, level+1)
	}
}

func (v *BinaryLogic) Clone(ctx *Stack) Value {
	n := newLogic(v.op, v.line, v.column)
	if v.lhs != nil {
		n.Apply(ctx, v.lhs.Clone(ctx))
	}
	if v.rhs != nil {
		n.Apply(ctx, v.rhs.Clone(ctx))
	}
	return n
}

func (v *BinaryLogic) Repr() string { return binaryRepr(v.op.String(), v.lhs, v.rhs) }

func (v *BinaryLogic) Explore(visit func(Value)) {
	visit(v)
	if v.lhs != nil {
		v.lhs.Explore(visit)
	}
	if v.rhs != nil {
		v.rhs.Explore(visit)
	}
}

// Not is boolean negation.
type Not struct {
	node
	operand Value
}

func NewNot(line, column int) *Not {
	v := &Not{node: at(line, column)}
	v.setType(typesystem.Func(typesystem.Bool, typesystem.Bool))
	return v
}

func (v *Not) CanApply(ctx *Stack, arg Value) bool { return v.operand == nil }

func (v *Not) Apply(ctx *Stack, arg Value) Value {
	if v.operand == nil {
		v.operand = arg
		v.setType(typesystem.Bool)
	}
	return v
}

func (v *Not) Fold(ctx *Stack) typesystem.Meta {
	if v.operand == nil {
		return typesystem.MetaFunction(typesystem.Func(typesystem.Any, typesystem.Any), v)
	}
	return typesystem.Not(v.operand.Fold(ctx))
}

func (v *Not) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	return ir.ValueOf(frame.Add(ir.NewNotInsn(v.operand.Gen(ctx, gen, frame))), gen, frame)
}

func (v *Not) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "not")
	if v.operand != nil {
		v.operand.Format(w, level+1)
	}
}

func (v *Not) Clone(ctx *Stack) Value {
	n := NewNot(v.line, v.column)
	if v.operand != nil {
		n.Apply(ctx, v.operand.Clone(ctx))
	}
	return n
}

func (v *Not) Repr() string {
	if v.operand == nil {
		return "not"
	}
	return "(not " + v.operand.Repr() + ")"
}

func (v *Not) Explore(visit func(Value)) {
	visit(v)
	if v.operand != nil {
		v.operand.Explore(visit)
	}
}

func comparePartialIntType() typesystem.Type {
	return typesystem.Intersection(
		typesystem.Func(typesystem.I64, typesystem.Bool),
		typesystem.Func(typesystem.Double, typesystem.Bool),
	)
}

// EqualityBaseType is the curried type of == and !=.
func EqualityBaseType() typesystem.Type {
	return typesystem.Intersection(
		typesystem.Func(typesystem.I64, comparePartialIntType()),
		typesystem.Func(typesystem.Bool, typesystem.Func(typesystem.Bool, typesystem.Bool)),
		typesystem.Func(typesystem.String, typesystem.Func(typesystem.String, typesystem.Bool)),
		typesystem.Func(typesystem.TypeType, typesystem.Func(typesystem.TypeType, typesystem.Bool)),
		typesystem.Func(typesystem.Double, typesystem.Func(typesystem.Double, typesystem.Bool)),
	)
}

// RelationBaseType is the curried type of the ordering comparisons.
func RelationBaseType() typesystem.Type {
	return typesystem.Intersection(
		typesystem.Func(typesystem.I64, comparePartialIntType()),
		typesystem.Func(typesystem.Double, typesystem.Func(typesystem.Double, typesystem.Bool)),
		typesystem.Func(typesystem.String, typesystem.Func(typesystem.String, typesystem.Bool)),
	)
}

// Compare is ==, !=, <, <=, > and >=.
type Compare struct {
	node
	cond     ir.Condition
	equality bool
	lhs      Value
	rhs      Value
}

func newCompare(cond ir.Condition, equality bool, line, column int) *Compare {
	v := &Compare{node: at(line, column), cond: cond, equality: equality}
	if equality {
		v.setType(EqualityBaseType())
	} else {
		v.setType(RelationBaseType())
	}
	return v
}

func NewEqual(line, column int) *Compare   { return newCompare(ir.CondEqual, true, line, column) }
func NewInequal(line, column int) *Compare { return newCompare(ir.CondNotEqual, true, line, column) }
func NewLess(line, column int) *Compare    { return newCompare(ir.CondLess, false, line, column) }
func NewLessEqual(line, column int) *Compare {
	return newCompare(ir.CondLessEqual, false, line, column)
}
func NewGreater(line, column int) *Compare { return newCompare(ir.CondGreater, false, line, column) }
func NewGreaterEqual(line, column int) *Compare {
	return newCompare(ir.CondGreaterEqual, false, line, column)
}

func (v *Compare) CanApply(ctx *Stack, arg Value) bool {
	return v.lhs == nil || v.rhs == nil
}

func (v *Compare) Apply(ctx *Stack, arg Value) Value {
	if v.lhs == nil {
		v.lhs = arg
		switch v.lhs.Type(ctx) {
		case typesystem.I64:
			v.setType(comparePartialIntType())
		case typesystem.Bool:
			if v.equality {
				v.setType(typesystem.Func(typesystem.Bool, typesystem.Bool))
			}
		case typesystem.Double:
			v.setType(typesystem.Func(typesystem.Double, typesystem.Bool))
		case typesystem.String:
			v.setType(typesystem.Func(typesystem.String, typesystem.Bool))
		case typesystem.TypeType:
			if v.equality {
				v.setType(typesystem.Func(typesystem.TypeType, typesystem.Bool))
			}
		}
	} else if v.rhs == nil {
		v.rhs = arg
		joinOperands(ctx, &v.lhs, &v.rhs)
		v.setType(typesystem.Bool)
	}
	return v
}

func (v *Compare) Fold(ctx *Stack) typesystem.Meta {
	if v.lhs == nil || v.rhs == nil {
		return typesystem.MetaFunction(typesystem.Func(typesystem.Any, typesystem.Any), v)
	}
	l, r := v.lhs.Fold(ctx), v.rhs.Fold(ctx)
	switch v.cond {
	case ir.CondEqual:
		return typesystem.Equal(l, r)
	case ir.CondNotEqual:
		return typesystem.Inequal(l, r)
	case ir.CondLess:
		return typesystem.Less(l, r)
	case ir.CondLessEqual:
		return typesystem.LessEqual(l, r)
	case ir.CondGreater:
		return typesystem.Greater(l, r)
	case ir.CondGreaterEqual:
		return typesystem.GreaterEqual(l, r)
	}
	return typesystem.Meta{}
}

func (v *Compare) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	return ir.ValueOf(frame.Add(ir.NewCompareInsn(v.cond,
		v.lhs.Gen(ctx, gen, frame), v.rhs.Gen(ctx, gen, frame))), gen, frame)
}

func (v *Compare) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, v.cond.String())
	if v.lhs != nil {
		v.lhs.Format(w, level+1)
	}
	if v.rhs != nil {
		v.rhs.Format(w, level+1)
	}
}

func (v *Compare) Clone(ctx *Stack) Value {
	n := newCompare(v.cond, v.equality, v.line, v.column)
	if v.lhs != nil {
		n.Apply(ctx, v.lhs.Clone(ctx))
	}
	if v.rhs != nil {
		n.Apply(ctx, v.rhs.Clone(ctx))
	}
	return n
}

func (v *Compare) Repr() string { return binaryRepr(v.cond.String(), v.lhs, v.rhs) }

func (v *Compare) Explore(visit func(Value)) {
	visit(v)
	if v.lhs != nil {
		v.lhs.Explore(visit)
	}
	if v.rhs != nil {
		v.rhs.Explore(visit)
	}
}
