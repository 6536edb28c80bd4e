package value

import (
	"fmt"
	"io"

	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/term"
	"github.com/funvibe/lattice/internal/typesystem"
)

// Lambda is a function literal. It is a quoting macro by construction: the
// first application installs the match (a typed parameter, a bare name, or
// a constant pattern), the second the body. A lambda whose parameter type
// is Any stays generic until instantiated at a concrete argument type.
type Lambda struct {
	node
	ctx       *Stack // argument scope; its parent is the lambda's self scope
	bodyScope *Stack
	match     Value
	body      Value
	bodyQuote *Quote // original body syntax, for deferred re-evaluation
	name      string
	label     string
	alts      []string
	captures  map[string]*Entry
	insts     map[typesystem.Type]*Lambda
	inlined   bool
	retLabel  string
}

func NewLambda(line, column int) *Lambda {
	v := &Lambda{node: at(line, column), insts: map[typesystem.Type]*Lambda{}}
	v.setType(typesystem.QuotingFunc(typesystem.Any, typesystem.Any))
	return v
}

func (v *Lambda) Match() Value  { return v.match }
func (v *Lambda) Body() Value   { return v.body }
func (v *Lambda) Scope() *Stack { return v.ctx }

// Self is the lambda's own scope, where captures are rebound.
func (v *Lambda) Self() *Stack {
	if v.ctx == nil {
		return nil
	}
	return v.ctx.Parent()
}

// lambdaType derives the function type from the match and body.
func (v *Lambda) lambdaType(ctx *Stack) typesystem.Type {
	s := ctx
	if v.ctx != nil {
		s = v.ctx
	}
	mt := v.match.Type(s)

	rep := s.Reporter()
	rep.Catch()
	bt := v.body.Type(s)
	if rep.Count() > 0 {
		bt = typesystem.Any
	}
	rep.Discard()

	if _, isDef := v.match.(*Define); isDef {
		return typesystem.Func(mt, bt, typesystem.OfTypeConstraint(mt))
	}
	if fr := v.match.Fold(s); fr.Valid() {
		return typesystem.Func(mt, bt, typesystem.EqualsConstraint(fr))
	}
	return typesystem.Func(mt, bt)
}

func (v *Lambda) Type(ctx *Stack) typesystem.Type {
	if v.typ != nil {
		return v.typ
	}
	v.setType(v.lambdaType(ctx))
	return v.typ
}

func (v *Lambda) retype(ctx *Stack) {
	v.typ = nil
	v.setType(v.lambdaType(ctx))
}

func (v *Lambda) CanApply(ctx *Stack, arg Value) bool {
	return v.match == nil || v.body == nil
}

func (v *Lambda) Apply(ctx *Stack, arg Value) Value {
	if v.match == nil {
		return v.applyMatch(ctx, arg)
	}
	if v.body == nil {
		return v.applyBody(ctx, arg)
	}
	return v
}

// applyMatch evaluates the match expression in a fresh argument scope. A
// named lambda is recognized when the quoted match is a block beginning
// with a variable name.
func (v *Lambda) applyMatch(ctx *Stack, arg Value) Value {
	v.match = arg

	self := NewStack(ctx, true)
	args := NewStack(self, true)

	if q, ok := v.match.(*Quote); ok {
		if b, isBlock := q.Term().(*term.Block); isBlock && len(b.Children()) > 1 {
			if name, isVar := b.Children()[0].(*term.Variable); isVar {
				v.name = name.Name
			} else {
				t := b.Children()[0]
				ctx.err(t.Line(), t.Column(), "Expected function name.")
			}
			EvalTerm(b.Children()[1], args)
		} else {
			EvalTerm(q.Term(), args)
		}
	} else {
		args.Push(v.match)
	}

	switch {
	case args.Len() > 1:
		ctx.errAt(v, "Too many match values provided in lambda expression. ",
			"Expected 1, but found ", args.Len(), ".")
	case args.Len() == 1:
		top := args.Top()
		switch m := top.(type) {
		case *Variable:
			// inferred parameter; stays Any until instantiation
		case *Define:
			if _, declared := args.Scope()[m.Name()]; !declared {
				m.Apply(args, nil)
			}
		default:
			if !top.Fold(args).Valid() {
				args.err(top.Line(), top.Column(),
					"Expected either definition or constant expression in match for lambda expression.")
				args.note(top.Line(), top.Column(), "Found: ", top.Repr())
			}
		}
		v.match = args.Pop()
	default:
		v.match = NewVoid(v.line, v.column)
	}
	v.ctx = args
	return v
}

// applyBody installs the quoted body. When the parameter type is concrete
// the body is evaluated and typed once; a generic lambda defers until
// instantiation. A named lambda rewrites itself into a let binding.
func (v *Lambda) applyBody(ctx *Stack, arg Value) Value {
	v.body = arg
	if q, ok := arg.(*Quote); ok {
		v.bodyQuote = q
	}
	argT := typesystem.Type(typesystem.Any)
	if _, isVar := v.match.(*Variable); !isVar {
		argT = v.match.Type(v.ctx)
	}
	if argT != typesystem.Any {
		bodyStack := NewStack(v.ctx, false)
		rep := ctx.Reporter()
		rep.Catch()
		if q, ok := v.body.(*Quote); ok {
			EvalTerm(q.Term(), bodyStack)
		}
		if rep.Count() == 0 {
			vals := append([]Value(nil), bodyStack.Values()...)
			if len(vals) == 1 {
				v.body = vals[0]
			} else {
				v.body = NewSequence(vals, v.line, v.column)
			}
			v.retype(ctx)
			v.Complete(ctx)
		} else {
			mt := argT
			if _, isDef := v.match.(*Define); isDef {
				v.setType(typesystem.Func(mt, typesystem.Any, typesystem.OfTypeConstraint(mt)))
			} else if fr := v.match.Fold(v.ctx); fr.Valid() {
				v.setType(typesystem.Func(mt, typesystem.Any, typesystem.EqualsConstraint(fr)))
			} else {
				v.setType(typesystem.Func(mt, typesystem.Any))
			}
		}
		rep.Discard()
		v.bodyScope = bodyStack
	} else {
		v.setType(typesystem.Func(typesystem.Any, typesystem.Any))
	}

	if v.name != "" {
		def := NewAutodefine(v.line, v.column)
		nameQuote := NewQuote(term.NewVariable(v.name, v.line, v.column), v.line, v.column)
		def.Apply(ctx, nameQuote)
		def.Apply(ctx, v)
		return def
	}
	return v
}

// Complete finishes elaboration: the body is re-evaluated if it was
// deferred, then free variables bound in strictly enclosing scopes become
// capture entries in the lambda's self scope.
func (v *Lambda) Complete(ctx *Stack) {
	// refresh captures from an earlier completion, so a re-evaluated body
	// sees the current type of a recursive binding
	for name, e := range v.captures {
		if bound := v.Self().Scope()[name]; bound != nil {
			bound.SetType(e.Type())
			bound.SetValue(e.Value())
		}
	}
	ft, ok := v.Type(v.ctx).(*typesystem.FunctionType)
	if ok && ft.Arg() != typesystem.Any && ft.Ret() == typesystem.Any && v.bodyQuote != nil {
		body := v.bodyScope
		if body == nil {
			body = NewStack(v.ctx, false)
			v.bodyScope = body
		}
		body.Clear()
		EvalTerm(v.bodyQuote.Term(), body)
		vals := append([]Value(nil), body.Values()...)
		if len(vals) == 1 {
			v.body = vals[0]
		} else {
			v.body = NewSequence(vals, v.line, v.column)
		}
		v.retype(v.ctx)
	}

	free := map[string]bool{}
	v.body.Explore(func(n Value) {
		if vr, isVar := n.(*Variable); isVar {
			free[vr.Name()] = true
		}
	})

	v.captures = map[string]*Entry{}
	for name := range free {
		s := ctx.FindEnv(name)
		if s != nil && s.Parent() != nil && s.Depth() < v.ctx.Depth() {
			v.captures[name] = s.Lookup(name)
		}
	}

	for name, e := range v.captures {
		var bound *Entry
		if e.Builtin() != nil {
			bound = v.Self().BindBuiltin(name, e.Type(), e.Builtin())
		} else {
			bound = v.Self().Bind(name, e.Type())
		}
		bound.SetValue(e.Value())
		bound.SetStorage(StorageCapture)
	}
}

// Captures returns the capture table computed by Complete.
func (v *Lambda) Captures() map[string]*Entry { return v.captures }

func (v *Lambda) Fold(ctx *Stack) typesystem.Meta {
	if v.match == nil || v.body == nil {
		return typesystem.Meta{}
	}
	return typesystem.MetaFunction(v.Type(ctx), v)
}

// BindRec names the lambda's scopes after the binding so the body can refer
// to itself, then completes.
func (v *Lambda) BindRec(name string, t typesystem.Type, value typesystem.Meta) {
	if v.match == nil || v.body == nil {
		return
	}
	v.Scope().SetName(name + ".args")
	v.Self().SetName(name + ".self")
	v.Complete(v.ctx)
}

func (v *Lambda) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	ft := v.Type(ctx).(*typesystem.FunctionType)
	if ft.Arg() == typesystem.Any {
		return frame.None()
	}
	if v.label == "" {
		var fn *ir.Function
		if len(v.alts) > 0 {
			fn = gen.NewFunctionNamed(v.alts[0])
		} else {
			fn = gen.NewFunction()
		}
		v.label = fn.LabelName()
		v.retLabel = gen.NewLabel()
		for i := 1; i < len(v.alts); i++ {
			fn.Add(ir.NewLabel(v.alts[i], true))
		}
		if e := v.match.Entry(v.ctx); e != nil {
			e.SetLoc(fn.Stack(v.match.Type(v.ctx)))
			fn.Add(ir.NewMovInsn(e.Loc(), gen.LocateArg(v.match.Type(v.ctx))))
		}
		retval := genWithRet(v.body, v.ctx, gen, fn, v.retLabel)
		if ft.Ret() != typesystem.Void {
			ir.ValueOf(fn.Add(ir.NewRetInsn(retval)), gen, fn)
		}
		fn.Add(ir.NewLabel(v.retLabel, false))
	}
	loc := frame.Stack(v.Type(ctx))
	frame.Add(ir.NewLeaInsn(loc, v.label))
	return loc
}

// genWithRet generates a function body with the early-return label exposed
// to If nodes inside it.
func genWithRet(body Value, ctx *Stack, gen *ir.CodeGenerator, fn *ir.Function, retLabel string) *ir.Location {
	prev := currentRetLabel
	currentRetLabel = retLabel
	defer func() { currentRetLabel = prev }()
	return body.Gen(ctx, gen, fn)
}

// currentRetLabel is the active function's early-return target while its
// body generates. The generator is single-threaded, like the rest of the
// compiler.
var currentRetLabel string

func (v *Lambda) Inlined() bool { return v.inlined }

// GenInline emits the lambda's body directly into the calling frame, with
// the match bound to the given argument location.
func (v *Lambda) GenInline(ctx *Stack, arg *ir.Location, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	v.inlined = true
	if e := v.match.Entry(v.ctx); e != nil {
		e.SetLoc(arg)
	}
	retval := v.body.Gen(v.ctx, gen, frame)
	if ft, ok := v.Type(ctx).(*typesystem.FunctionType); ok && ft.Ret() == typesystem.Void {
		return frame.None()
	}
	return retval
}

func (v *Lambda) LabelName() string { return v.label }

// AddAltLabel records a user-visible name for the generated function.
func (v *Lambda) AddAltLabel(label string) {
	v.alts = append(v.alts, label)
}

// Instantiate caches a type-specialized clone.
func (v *Lambda) Instantiate(t typesystem.Type, l *Lambda) {
	v.insts[t] = l
}

// Instance returns the specialization for an argument type, if any.
func (v *Lambda) Instance(t typesystem.Type) *Lambda {
	return v.insts[t]
}

func (v *Lambda) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "Lambda")
	if v.match != nil {
		v.match.Format(w, level+1)
	}
	if v.body != nil {
		v.body.Format(w, level+1)
	}
}

func (v *Lambda) Clone(ctx *Stack) Value {
	n := NewLambda(v.line, v.column)
	if v.match != nil {
		n.Apply(ctx, v.match.Clone(ctx))
	}
	if v.match != nil && v.body != nil {
		n.Apply(ctx, v.body.Clone(ctx))
	}
	return n
}

func (v *Lambda) Repr() string {
	switch {
	case v.match == nil:
		return "(lambda ?? ??)"
	case v.body == nil:
		return "(lambda " + v.match.Repr() + " ??)"
	}
	return "(lambda " + v.match.Repr() + " " + v.body.Repr() + ")"
}

func (v *Lambda) Explore(visit func(Value)) {
	visit(v)
	if v.match != nil {
		v.match.Explore(visit)
	}
	if v.body != nil {
		v.body.Explore(visit)
	}
}

// InstantiateAt materializes (or reuses) the specialization of a generic
// lambda at a concrete argument type.
func InstantiateAt(callctx *Stack, l *Lambda, at typesystem.Type) *Lambda {
	if existing := l.Instance(at); existing != nil {
		return existing
	}
	name := ""
	switch m := l.Match().(type) {
	case *Variable:
		name = m.Name()
	case *Define:
		name = m.Name()
	}
	n := NewLambda(l.Line(), l.Column())
	argDef := NewDefine(NewTypeConstant(at, 0, 0), name)
	p := l.Self().Parent()
	n.Apply(p, argDef)
	n.Apply(p, l.Body().Clone(p))
	n.Complete(callctx)
	l.Instantiate(at, n)
	return n
}

// InstantiateFor specializes a generic lambda at an argument value's type,
// seeding the parameter's compile-time value.
func InstantiateFor(callctx *Stack, l *Lambda, arg Value) *Lambda {
	at := arg.Type(callctx)
	if existing := l.Instance(at); existing != nil {
		return existing
	}
	n := InstantiateAt(callctx, l, at)
	assignTo(n.Scope(), n.Match(), arg)
	return n
}
