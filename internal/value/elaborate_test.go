package value

import (
	"bytes"
	"strings"
	"testing"

	"github.com/funvibe/lattice/internal/diagnostics"
	"github.com/funvibe/lattice/internal/lexer"
	"github.com/funvibe/lattice/internal/parser"
	"github.com/funvibe/lattice/internal/source"
	"github.com/funvibe/lattice/internal/typesystem"
)

// elaborate runs a source fragment through lexing, parsing, and
// elaboration, capturing compile-time prints.
func elaborate(t *testing.T, src string) (*Session, *Program, *diagnostics.Reporter, string) {
	t.Helper()
	var printed bytes.Buffer
	prev := FoldOutput
	FoldOutput = &printed
	defer func() { FoldOutput = prev }()

	rep := diagnostics.NewReporter()
	cache := lexer.Lex(source.FromString(src), rep)
	if rep.Count() > 0 {
		t.Fatalf("lex errors: %v", rep.Errors())
	}
	p := parser.New(cache.View(), rep)
	prog := p.ParseFull()
	if prog == nil {
		t.Fatalf("parse errors: %v", rep.Errors())
	}
	session := NewSession(rep)
	values := session.EvalProgram(prog)
	return session, values, rep, printed.String()
}

func expectPrints(t *testing.T, src string, want ...string) {
	t.Helper()
	_, _, rep, printed := elaborate(t, src)
	if rep.Count() > 0 {
		t.Fatalf("unexpected errors for %q: %v", src, rep.Errors())
	}
	got := strings.Split(strings.TrimRight(printed, "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("printed %q, want %v", printed, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: printed %q, want %q", i, got[i], want[i])
		}
	}
}

func expectError(t *testing.T, src, fragment string) {
	t.Helper()
	_, _, rep, _ := elaborate(t, src)
	if rep.Count() == 0 {
		t.Fatalf("expected an error mentioning %q for %q", fragment, src)
	}
	for _, e := range rep.Errors() {
		if strings.Contains(e.Message, fragment) {
			return
		}
	}
	t.Errorf("no error mentioning %q; got %v", fragment, rep.Errors())
}

func TestFoldArithmetic(t *testing.T) {
	expectPrints(t, "print 1 + 2 * 3", "7")
}

func TestFoldFloatArithmetic(t *testing.T) {
	expectPrints(t, "print 1.5 + 2.0", "3.5")
}

func TestFoldStringConcat(t *testing.T) {
	expectPrints(t, `let s = "hi" + " there"`+"\nprint s", "hi there")
}

func TestLambdaApplication(t *testing.T) {
	expectPrints(t, "let f = x:i64 -> x * x\nprint f 9", "81")
}

func TestOverloadedIntersection(t *testing.T) {
	expectPrints(t,
		"let g = (x:i64 -> x + 1) & (x:f64 -> x + 1.0)\nprint g 2\nprint g 2.5",
		"3", "3.5")
}

func TestRecursion(t *testing.T) {
	expectPrints(t,
		"let fact = n:i64 -> if n == 0: 1; n * fact (n - 1)\nprint fact 5",
		"120")
}

func TestArrayIndexing(t *testing.T) {
	expectPrints(t, "let a = [1, 2, 3]\nprint a[1]", "2")
}

func TestConditionals(t *testing.T) {
	expectPrints(t, "let f = n:i64 -> if n > 2: 10; 20\nprint f 5\nprint f 1", "10", "20")
}

func TestLetRebinding(t *testing.T) {
	expectPrints(t, "let x = 3\nx = x + 1\nprint x", "4")
}

func TestWhileFolding(t *testing.T) {
	expectPrints(t, "let i = 0\nwhile i < 5: i = i + 1\nprint i", "5")
}

func TestTypeofFolding(t *testing.T) {
	expectPrints(t, "metaprint (typeof 3)", "i64")
}

func TestRangeUnrolls(t *testing.T) {
	expectPrints(t, "let a = [1..4]\nprint a[3]", "4")
}

func TestUndeclaredVariable(t *testing.T) {
	expectError(t, "print y", "Undeclared variable 'y'")
}

func TestRedefinition(t *testing.T) {
	expectError(t, "let x = 1\nlet x = 2", "Redefinition of variable 'x'")
}

func TestReferenceNonLvalue(t *testing.T) {
	expectError(t, "let r = ~(1 + 2)", "Cannot take reference to non-lvalue")
}

func TestAmbiguousIntersection(t *testing.T) {
	expectError(t, "let g = (x:i64 -> 1) & (x:i64 -> 2)", "intersection")
}

func TestGenericLambdaInstantiation(t *testing.T) {
	expectPrints(t, "let id = x -> x\nprint (id 7)", "7")
}

func TestCaptureClosure(t *testing.T) {
	session, values, rep, _ := elaborate(t, "let y = 10\nlet f = x:i64 -> x + y")
	if rep.Count() > 0 {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
	_ = values
	e := session.Global.Lookup("f")
	if e == nil {
		t.Fatalf("f not bound")
	}
	m := e.Value()
	if !m.IsFunction() {
		t.Fatalf("f should fold to a function")
	}
	l, ok := m.FuncNode().(*Lambda)
	if !ok {
		t.Fatalf("f's function node should be a lambda")
	}
	cap, found := l.Captures()["y"]
	if !found {
		t.Fatalf("lambda should capture y; captures = %v", l.Captures())
	}
	if cap.Storage() != StorageCapture {
		t.Errorf("capture storage = %v, want StorageCapture", cap.Storage())
	}
	self := l.Self().Lookup("y")
	if self == nil || self.Storage() != StorageCapture {
		t.Errorf("y should be rebound in the lambda's self scope as a capture")
	}
}

func TestLambdaTypeConstraints(t *testing.T) {
	session, _, rep, _ := elaborate(t, "let f = x:i64 -> x + 1")
	if rep.Count() > 0 {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
	e := session.Global.Lookup("f")
	ft, ok := e.Type().(*typesystem.FunctionType)
	if !ok {
		t.Fatalf("f's type should be a function, got %v", e.Type())
	}
	if ft.Arg() != typesystem.I64 || ft.Ret() != typesystem.I64 {
		t.Errorf("f : %v, want i64 -> i64", ft)
	}
	cons := ft.Constraints()
	if len(cons) != 1 || cons[0].Kind() != typesystem.OfType {
		t.Errorf("typed parameter should carry an OfType constraint, got %v", cons)
	}
}

func TestValueConstraintCases(t *testing.T) {
	// a value-constrained case plus a typed fallback is total
	expectPrints(t,
		"let f = (0 -> 100) & (n:i64 -> n)\nprint f 0\nprint f 7",
		"100", "7")
}

func TestCastLvaluePreservation(t *testing.T) {
	session, _, rep, _ := elaborate(t, "let a = [1, 2]")
	if rep.Count() > 0 {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
	ref := NewCast(typesystem.I64, NewVariable("a", 1, 1))
	// cast of a non-reference is not a dereference
	if ref.Lvalue(session.Global) {
		t.Errorf("cast from non-reference should not be an lvalue")
	}
	inner := NewVariable("a", 1, 1)
	refCast := NewCast(typesystem.I64, refOf(session.Global, inner))
	if !refCast.Lvalue(session.Global) {
		t.Errorf("cast from reference to element should preserve lvalue-ness")
	}
}

func refOf(s *Stack, v Value) Value {
	r := NewReference(v.Line(), v.Column())
	return r.Apply(s, v)
}

func TestTupleJoin(t *testing.T) {
	expectPrints(t, "metaprint (1, 2)", "(1, 2)")
}

func TestConsList(t *testing.T) {
	expectPrints(t, "metaprint (1 :: 2 :: [])", "(1 :: (2 :: []))")
}
