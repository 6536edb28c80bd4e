package value

import (
	"github.com/funvibe/lattice/internal/diagnostics"
	"github.com/funvibe/lattice/internal/term"
	"github.com/funvibe/lattice/internal/typesystem"
)

// EvalTerm elaborates one syntax term against a stack. Children of a block
// are pushed unevaluated as Quotes whenever the stack top expects a
// meta-argument.
func EvalTerm(t term.Term, s *Stack) {
	switch tt := t.(type) {
	case *term.Integer:
		s.Push(NewInteger(tt.Value, tt.Line(), tt.Column()))
	case *term.Rational:
		s.Push(NewRational(tt.Value, tt.Line(), tt.Column()))
	case *term.String:
		s.Push(NewString(tt.Value, tt.Line(), tt.Column()))
	case *term.Char:
		s.Push(NewChar(tt.Value, tt.Line(), tt.Column()))
	case *term.Bool:
		s.Push(NewBool(tt.Value, tt.Line(), tt.Column()))
	case *term.Void:
		s.Push(NewVoid(tt.Line(), tt.Column()))
	case *term.Empty:
		s.Push(NewEmpty(tt.Line(), tt.Column()))
	case *term.Variable:
		e := s.Lookup(tt.Name)
		if e != nil && e.Node() != nil {
			s.Push(e.Node().Clone(s))
		} else {
			s.Push(NewVariable(tt.Name, tt.Line(), tt.Column()))
		}
	case *term.Block:
		local := NewStack(s, false)
		for _, child := range tt.Children() {
			if local.ExpectsMeta() {
				local.Push(NewQuote(child, child.Line(), child.Column()))
			} else {
				EvalTerm(child, local)
			}
		}
		for _, v := range local.Values() {
			s.Push(v)
		}
		local.Clear()
	case *term.Program:
		for _, child := range tt.Children() {
			if s.ExpectsMeta() {
				s.Push(NewQuote(child, child.Line(), child.Column()))
			} else {
				EvalTerm(child, s)
			}
		}
	}
}

// NewRoot builds the root scope with the builtin operators, forms, and type
// names.
func NewRoot(rep *diagnostics.Reporter) *Stack {
	root := NewStack(nil, true)
	root.rep = rep

	factory := func(mk func(line, column int) Value) BuiltinFactory {
		return func(v Value) Value { return mk(v.Line(), v.Column()) }
	}

	root.BindBuiltin("+", AddBaseType(), factory(func(l, c int) Value { return NewAdd(l, c) }))
	root.BindBuiltin("-", MathBaseType(), factory(func(l, c int) Value { return NewSubtract(l, c) }))
	root.BindBuiltin("*", MathBaseType(), factory(func(l, c int) Value { return NewMultiply(l, c) }))
	root.BindBuiltin("/", MathBaseType(), factory(func(l, c int) Value { return NewDivide(l, c) }))
	root.BindBuiltin("%", MathBaseType(), factory(func(l, c int) Value { return NewModulus(l, c) }))
	root.BindBuiltin(",", JoinBaseType(), factory(func(l, c int) Value { return NewJoin(l, c) }))
	root.BindBuiltin("&", IntersectBaseType(), factory(func(l, c int) Value { return NewIntersect(l, c) }))
	root.BindBuiltin("and", LogicBaseType(), factory(func(l, c int) Value { return NewAnd(l, c) }))
	root.BindBuiltin("or", LogicBaseType(), factory(func(l, c int) Value { return NewOr(l, c) }))
	root.BindBuiltin("xor", LogicBaseType(), factory(func(l, c int) Value { return NewXor(l, c) }))
	root.BindBuiltin("not", typesystem.Func(typesystem.Bool, typesystem.Bool),
		factory(func(l, c int) Value { return NewNot(l, c) }))
	root.BindBuiltin("==", EqualityBaseType(), factory(func(l, c int) Value { return NewEqual(l, c) }))
	root.BindBuiltin("!=", EqualityBaseType(), factory(func(l, c int) Value { return NewInequal(l, c) }))
	root.BindBuiltin("<", RelationBaseType(), factory(func(l, c int) Value { return NewLess(l, c) }))
	root.BindBuiltin("<=", RelationBaseType(), factory(func(l, c int) Value { return NewLessEqual(l, c) }))
	root.BindBuiltin(">", RelationBaseType(), factory(func(l, c int) Value { return NewGreater(l, c) }))
	root.BindBuiltin(">=", RelationBaseType(), factory(func(l, c int) Value { return NewGreaterEqual(l, c) }))
	root.BindBuiltin("::",
		typesystem.Func(typesystem.Any, typesystem.Func(typesystem.Any, typesystem.Any)),
		factory(func(l, c int) Value { return NewCons(l, c) }))
	root.BindBuiltin("..",
		typesystem.Func(typesystem.I64, typesystem.Func(typesystem.I64, typesystem.Array(typesystem.I64, -1))),
		factory(func(l, c int) Value { return NewRange(l, c) }))
	root.BindBuiltin("**",
		typesystem.Func(typesystem.Any, typesystem.Func(typesystem.I64, typesystem.Any)),
		factory(func(l, c int) Value { return NewRepeat(l, c) }))
	root.BindBuiltin("print", PrintBaseType(), factory(func(l, c int) Value { return NewPrint(l, c) }))
	root.BindBuiltin("metaprint", typesystem.Func(typesystem.Any, typesystem.Void),
		factory(func(l, c int) Value { return NewMetaprint(l, c) }))
	root.BindBuiltin("log", typesystem.Func(typesystem.Any, typesystem.Void),
		factory(func(l, c int) Value { return NewMetaprint(l, c) }))
	root.BindBuiltin("assign",
		typesystem.QuotingFunc(typesystem.Any, typesystem.Func(typesystem.Any, typesystem.Any)),
		factory(func(l, c int) Value { return NewAssign(l, c) }))
	root.BindBuiltin("lambda", typesystem.QuotingMacro(typesystem.Any),
		factory(func(l, c int) Value { return NewLambda(l, c) }))
	root.BindBuiltin("λ", typesystem.QuotingMacro(typesystem.Any),
		factory(func(l, c int) Value { return NewLambda(l, c) }))
	root.BindBuiltin("define", typesystem.QuotingMacro(typesystem.Any),
		factory(func(l, c int) Value { return NewAutodefine(l, c) }))
	root.BindBuiltin("let", typesystem.QuotingMacro(typesystem.Any),
		factory(func(l, c int) Value { return NewAutodefine(l, c) }))
	root.BindBuiltin("quote", typesystem.QuotingMacro(typesystem.Any),
		factory(func(l, c int) Value { return NewQuote(nil, l, c) }))
	root.BindBuiltin("eval", typesystem.Macro(typesystem.Any),
		factory(func(l, c int) Value { return NewEval(l, c) }))
	root.BindBuiltin("typeof", typesystem.Func(typesystem.Any, typesystem.TypeType),
		factory(func(l, c int) Value { return NewTypeof(l, c) }))
	root.BindBuiltin("~", typesystem.Func(typesystem.Any, typesystem.Any),
		factory(func(l, c int) Value { return NewReference(l, c) }))
	root.BindBuiltin("if", controlType(), factory(func(l, c int) Value { return NewIf(l, c) }))
	root.BindBuiltin("while", controlType(), factory(func(l, c int) Value { return NewWhile(l, c) }))
	root.BindBuiltin("array", typesystem.QuotingFunc(typesystem.Any, typesystem.Any),
		factory(func(l, c int) Value { return NewArray(l, c) }))
	root.BindBuiltin("use", typesystem.Func(typesystem.String, typesystem.Void),
		factory(func(l, c int) Value { return NewUse(l, c) }))

	root.BindMeta("i8", typesystem.TypeType, typesystem.MetaType(typesystem.I8))
	root.BindMeta("i16", typesystem.TypeType, typesystem.MetaType(typesystem.I16))
	root.BindMeta("i32", typesystem.TypeType, typesystem.MetaType(typesystem.I32))
	root.BindMeta("i64", typesystem.TypeType, typesystem.MetaType(typesystem.I64))
	root.BindMeta("u8", typesystem.TypeType, typesystem.MetaType(typesystem.U8))
	root.BindMeta("u16", typesystem.TypeType, typesystem.MetaType(typesystem.U16))
	root.BindMeta("u32", typesystem.TypeType, typesystem.MetaType(typesystem.U32))
	root.BindMeta("u64", typesystem.TypeType, typesystem.MetaType(typesystem.U64))
	root.BindMeta("f32", typesystem.TypeType, typesystem.MetaType(typesystem.Float))
	root.BindMeta("f64", typesystem.TypeType, typesystem.MetaType(typesystem.Double))
	root.BindMeta("char", typesystem.TypeType, typesystem.MetaType(typesystem.Char))
	root.BindMeta("string", typesystem.TypeType, typesystem.MetaType(typesystem.String))
	root.BindMeta("symbol", typesystem.TypeType, typesystem.MetaType(typesystem.Symbol))
	root.BindMeta("type", typesystem.TypeType, typesystem.MetaType(typesystem.TypeType))
	root.BindMeta("bool", typesystem.TypeType, typesystem.MetaType(typesystem.Bool))
	root.BindMeta("void", typesystem.TypeType, typesystem.MetaType(typesystem.Void))

	return root
}

// Session is one elaboration context: a root scope of builtins and a global
// scope user bindings land in.
type Session struct {
	Root   *Stack
	Global *Stack
}

func NewSession(rep *diagnostics.Reporter) *Session {
	root := NewRoot(rep)
	return &Session{Root: root, Global: NewStack(root, true)}
}

// EvalProgram elaborates a whole module: every top-level term is evaluated
// into the global scope, then all results are typed and folded.
func (s *Session) EvalProgram(prog *term.Program) *Program {
	for _, child := range prog.Children() {
		if s.Global.ExpectsMeta() {
			s.Global.Push(NewQuote(child, child.Line(), child.Column()))
		} else {
			EvalTerm(child, s.Global)
		}
	}
	vals := append([]Value(nil), s.Global.Values()...)
	for _, v := range vals {
		v.Type(s.Global)
	}
	for _, v := range vals {
		v.Fold(s.Global)
	}
	return NewProgram(vals, 1, 1)
}

// EvalChild elaborates one term against the session, for the REPL. The
// returned values are typed and folded but left out of the program's
// accumulated list.
func (s *Session) EvalChild(t term.Term) []Value {
	local := NewStack(s.Global, false)
	EvalTerm(t, local)
	vals := append([]Value(nil), local.Values()...)
	for _, v := range vals {
		v.Type(local)
	}
	for _, v := range vals {
		v.Fold(local)
	}
	local.Clear()
	return vals
}
