package value

import (
	"fmt"
	"io"

	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/typesystem"
)

func controlType() typesystem.Type {
	return typesystem.Func(typesystem.Bool, typesystem.QuotingFunc(typesystem.Any, typesystem.Void))
}

// If evaluates its body when the condition holds. Inside a function body a
// taken If returns the body's value from the function.
type If struct {
	node
	cond Value
	body Value
}

func NewIf(line, column int) *If {
	v := &If{node: at(line, column)}
	v.setType(controlType())
	return v
}

func (v *If) Cond() Value { return v.cond }
func (v *If) Body() Value { return v.body }

func (v *If) CanApply(ctx *Stack, arg Value) bool {
	return v.cond == nil || v.body == nil
}

func (v *If) Apply(ctx *Stack, arg Value) Value {
	if v.cond == nil {
		v.cond = arg
		v.setType(typesystem.QuotingFunc(typesystem.Any, typesystem.Void))
	} else if v.body == nil {
		v.body = evalQuotedBody(ctx, arg)
		v.setType(typesystem.Void)
	}
	return v
}

// evalQuotedBody evaluates a quoted block in a child scope and collects the
// results into a sequence.
func evalQuotedBody(ctx *Stack, arg Value) Value {
	q, ok := arg.(*Quote)
	if !ok {
		return arg
	}
	temp := NewStack(ctx, false)
	EvalTerm(q.Term(), temp)
	vals := append([]Value(nil), temp.Values()...)
	temp.Clear()
	if len(vals) == 1 {
		return vals[0]
	}
	return NewSequence(vals, arg.Line(), arg.Column())
}

// foldBranch folds the condition and reports whether the branch was taken
// along with the body's value.
func (v *If) foldBranch(ctx *Stack) (bool, typesystem.Meta) {
	if v.cond == nil || v.body == nil {
		return false, typesystem.Meta{}
	}
	c := v.cond.Fold(ctx)
	if !c.IsBool() {
		return false, typesystem.Meta{}
	}
	if !c.AsBool() {
		return false, typesystem.MetaVoid()
	}
	return true, v.body.Fold(ctx)
}

func (v *If) Fold(ctx *Stack) typesystem.Meta {
	if v.cond == nil || v.body == nil {
		return typesystem.MetaFunction(v.Type(ctx), v)
	}
	v.foldBranch(ctx)
	return typesystem.MetaVoid()
}

// Gen emits the branch: the body is skipped when the condition is false.
// In a function whose body produces a value, a taken branch returns early
// through the function's return label.
func (v *If) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	skip := gen.NewLabel()
	falseLoc := ir.ValueOf(frame.Add(ir.NewBoolData(false)), gen, frame)
	frame.Add(ir.NewIfEqualInsn(v.cond.Gen(ctx, gen, frame), falseLoc, skip))
	bodyLoc := v.body.Gen(ctx, gen, frame)
	if _, isFn := frame.(*ir.Function); isFn && currentRetLabel != "" && bodyLoc.Valid() {
		ir.ValueOf(frame.Add(ir.NewRetInsn(bodyLoc)), gen, frame)
		frame.Add(ir.NewGotoInsn(currentRetLabel))
	}
	frame.Add(ir.NewLabel(skip, false))
	return frame.None()
}

func (v *If) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "If")
	if v.cond != nil {
		v.cond.Format(w, level+1)
	}
	if v.body != nil {
		v.body.Format(w, level+1)
	}
}

func (v *If) Clone(ctx *Stack) Value {
	n := NewIf(v.line, v.column)
	if v.cond != nil {
		n.cond = v.cond.Clone(ctx)
	}
	if v.body != nil {
		n.body = v.body.Clone(ctx)
		n.setType(typesystem.Void)
	}
	return n
}

func (v *If) Repr() string {
	switch {
	case v.cond == nil:
		return "(if ??: ??)"
	case v.body == nil:
		return "(if " + v.cond.Repr() + ": ??)"
	}
	return "(if " + v.cond.Repr() + ": " + v.body.Repr() + ")"
}

func (v *If) Explore(visit func(Value)) {
	visit(v)
	if v.cond != nil {
		v.cond.Explore(visit)
	}
	if v.body != nil {
		v.body.Explore(visit)
	}
}

// While re-evaluates its body as long as the condition holds.
type While struct {
	node
	cond Value
	body Value
}

func NewWhile(line, column int) *While {
	v := &While{node: at(line, column)}
	v.setType(controlType())
	return v
}

func (v *While) CanApply(ctx *Stack, arg Value) bool {
	return v.cond == nil || v.body == nil
}

func (v *While) Apply(ctx *Stack, arg Value) Value {
	if v.cond == nil {
		v.cond = arg
		v.setType(typesystem.QuotingFunc(typesystem.Any, typesystem.Void))
	} else if v.body == nil {
		v.body = evalQuotedBody(ctx, arg)
		v.setType(typesystem.Void)
	}
	return v
}

func (v *While) Fold(ctx *Stack) typesystem.Meta {
	if v.cond == nil || v.body == nil {
		return typesystem.MetaFunction(v.Type(ctx), v)
	}
	c := v.cond.Fold(ctx)
	for c.IsBool() && c.AsBool() {
		v.body.Fold(ctx)
		c = v.cond.Fold(ctx)
	}
	return typesystem.MetaVoid()
}

func (v *While) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	start := gen.NewLabel()
	end := gen.NewLabel()
	frame.Add(ir.NewLabel(start, false))
	falseLoc := ir.ValueOf(frame.Add(ir.NewBoolData(false)), gen, frame)
	frame.Add(ir.NewIfEqualInsn(v.cond.Gen(ctx, gen, frame), falseLoc, end))
	v.body.Gen(ctx, gen, frame)
	frame.Add(ir.NewGotoInsn(start))
	frame.Add(ir.NewLabel(end, false))
	return frame.None()
}

func (v *While) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "While")
	if v.cond != nil {
		v.cond.Format(w, level+1)
	}
	if v.body != nil {
		v.body.Format(w, level+1)
	}
}

func (v *While) Clone(ctx *Stack) Value {
	n := NewWhile(v.line, v.column)
	if v.cond != nil {
		n.cond = v.cond.Clone(ctx)
	}
	if v.body != nil {
		n.body = v.body.Clone(ctx)
		n.setType(typesystem.Void)
	}
	return n
}

func (v *While) Repr() string {
	switch {
	case v.cond == nil:
		return "(while ??: ??)"
	case v.body == nil:
		return "(while " + v.cond.Repr() + ": ??)"
	}
	return "(while " + v.cond.Repr() + ": " + v.body.Repr() + ")"
}

func (v *While) Explore(visit func(Value)) {
	visit(v)
	if v.cond != nil {
		v.cond.Explore(visit)
	}
	if v.body != nil {
		v.body.Explore(visit)
	}
}
