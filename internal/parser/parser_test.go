package parser

import (
	"testing"

	"github.com/funvibe/lattice/internal/diagnostics"
	"github.com/funvibe/lattice/internal/lexer"
	"github.com/funvibe/lattice/internal/source"
	"github.com/funvibe/lattice/internal/term"
)

func parseProgram(t *testing.T, input string) (*term.Program, *diagnostics.Reporter) {
	t.Helper()
	rep := diagnostics.NewReporter()
	cache := lexer.Lex(source.FromString(input), rep)
	if rep.Count() > 0 {
		t.Fatalf("lex errors: %v", rep.Errors())
	}
	p := New(cache.View(), rep)
	return p.ParseFull(), rep
}

func reprOf(t *testing.T, input string) string {
	t.Helper()
	prog, rep := parseProgram(t, input)
	if rep.Count() > 0 || prog == nil {
		t.Fatalf("parse errors for %q: %v", input, rep.Errors())
	}
	return prog.Repr()
}

func TestParseShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"number", "42", "(42)"},
		{"juxtaposition", "print x", "((print x))"},
		{"parens", "print (f x)", "((print (f x)))"},
		{"empty parens", "()", "(())"},
		{"semicolons", "a; b", "(((a) (b)))"},
		{"array literal", "[1]", "((array (1)))"},
		{"empty brackets", "[]", "([])"},
		{"record literal", "{1}", "((record (1)))"},
		{"quote prefix", ":x", "((quote x))"},
		{"eval prefix", "!x", "((eval x))"},
		{"ref prefix", "~x", "((~ x))"},
		{"negation", "-5", "((0 - 5))"},
		{"annotation", "x:i64", "((i64 x))"},
		{"dot", "a.b", "((a b))"},
		{"two statements", "a\nb", "(a b)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reprOf(t, tt.input); got != tt.want {
				t.Errorf("repr = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOperatorGrouping(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"precedence", "1 + 2 * 3", "((1 + (2 * 3)))"},
		{"left assoc", "1 - 2 - 3", "(((1 - 2) - 3))"},
		{"mul then add", "2 * 3 + 1", "(((2 * 3) + 1))"},
		{"application operand", "print 1 + 2 * 3", "((print (1 + (2 * 3))))"},
		{"call in operand", "n * fact (n - 1)", "((n * (fact (n - 1))))"},
		{"comparison", "n == 0", "((n == 0))"},
		{"intersect lambdas", "a & b", "((a & b))"},
		{"cons chain", "1 :: 2 :: xs", "((1 :: (2 :: xs)))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reprOf(t, tt.input); got != tt.want {
				t.Errorf("repr = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseLambda(t *testing.T) {
	got := reprOf(t, "x:i64 -> x * x")
	want := "((lambda ((i64 x)) (x * x)))"
	if got != want {
		t.Errorf("lambda repr = %s, want %s", got, want)
	}
}

func TestParseAssign(t *testing.T) {
	got := reprOf(t, "let f = 3")
	want := "((assign (let f) 3))"
	if got != want {
		t.Errorf("assign repr = %s, want %s", got, want)
	}
}

func TestParseColonBlock(t *testing.T) {
	got := reprOf(t, "if n == 0: 1")
	want := "((if (n == 0) (1)))"
	if got != want {
		t.Errorf("colon block repr = %s, want %s", got, want)
	}
}

func TestParseIndentedBlock(t *testing.T) {
	input := "x ->\n    a\n    b\n"
	got := reprOf(t, input)
	want := "((lambda (x) ((a) (b))))"
	if got != want {
		t.Errorf("indented lambda repr = %s, want %s", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unclosed paren", "(1 2"},
		{"stray closer", ")"},
		{"lambda without arg", "-> x"},
		{"assign without dst", "= 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := diagnostics.NewReporter()
			cache := lexer.Lex(source.FromString(tt.input), rep)
			p := New(cache.View(), rep)
			p.ParseFull()
			if rep.Count() == 0 {
				t.Errorf("expected a parse error for %q", tt.input)
			}
		})
	}
}
