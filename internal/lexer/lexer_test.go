package lexer

import (
	"testing"

	"github.com/funvibe/lattice/internal/diagnostics"
	"github.com/funvibe/lattice/internal/source"
	"github.com/funvibe/lattice/internal/token"
)

func lexAll(t *testing.T, input string) ([]token.Token, *diagnostics.Reporter) {
	t.Helper()
	rep := diagnostics.NewReporter()
	cache := Lex(source.FromString(input), rep)
	return cache.Tokens(), rep
}

func kinds(tokens []token.Token) []token.Kind {
	out := make([]token.Kind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestScanBasics(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []token.Kind
	}{
		{"integer", "42", []token.Kind{token.NUMBER}},
		{"rational", "4.25", []token.Kind{token.NUMBER}},
		{"string", `"hi"`, []token.Kind{token.STRING}},
		{"char", "'a'", []token.Kind{token.CHAR}},
		{"bools", "true false", []token.Kind{token.BOOL, token.BOOL}},
		{"ident", "foo", []token.Kind{token.IDENT}},
		{"parens", "( )", []token.Kind{token.LPAREN, token.RPAREN}},
		{"brackets", "[ ]", []token.Kind{token.LBRACK, token.RBRACK}},
		{"braces", "{ }", []token.Kind{token.LBRACE, token.RBRACE}},
		{"semi", "1; 2", []token.Kind{token.NUMBER, token.SEMI, token.NUMBER}},
		{"newline", "1\n2", []token.Kind{token.NUMBER, token.NEWLINE, token.NUMBER}},
		{"lambda arrow", "x -> x", []token.Kind{token.IDENT, token.LAMBDA, token.IDENT}},
		{"assign", "x = 1", []token.Kind{token.IDENT, token.ASSIGN, token.NUMBER}},
		{"infix minus", "1 - 2", []token.Kind{token.NUMBER, token.IDENT, token.NUMBER}},
		{"prefix minus", "-2", []token.Kind{token.MINUS, token.NUMBER}},
		{"eval prefix", "!x", []token.Kind{token.EVAL, token.IDENT}},
		{"ref prefix", "~x", []token.Kind{token.REF, token.IDENT}},
		{"block colon", "if x: y", []token.Kind{token.IDENT, token.IDENT, token.COLON, token.IDENT}},
		{"annotation", "x:i64", []token.Kind{token.IDENT, token.ANNOT, token.IDENT}},
		{"quote prefix", ":foo", []token.Kind{token.QUOTE, token.IDENT}},
		{"cons", "1 :: xs", []token.Kind{token.NUMBER, token.IDENT, token.IDENT}},
		{"range", "1..5", []token.Kind{token.NUMBER, token.IDENT, token.NUMBER}},
		{"comment", "# note\n1", []token.Kind{token.NEWLINE, token.NUMBER}},
		{"comma ident", "a, b", []token.Kind{token.IDENT, token.IDENT, token.IDENT}},
		{"dot", "a.b", []token.Kind{token.IDENT, token.DOT, token.IDENT}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, rep := lexAll(t, tt.input)
			if rep.Count() > 0 {
				t.Fatalf("unexpected lex errors: %v", rep.Errors())
			}
			got := kinds(tokens)
			if len(got) != len(tt.want) {
				t.Fatalf("got kinds %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("token %d: got %v, want %v (%v)", i, got[i], tt.want[i], tokens)
				}
			}
		})
	}
}

func TestScanValues(t *testing.T) {
	tokens, rep := lexAll(t, `"a\nb" 'c' 12 3.5 foo`)
	if rep.Count() > 0 {
		t.Fatalf("unexpected lex errors: %v", rep.Errors())
	}
	wantValues := []string{"a\nb", "c", "12", "3.5", "foo"}
	if len(tokens) != len(wantValues) {
		t.Fatalf("got %d tokens, want %d", len(tokens), len(wantValues))
	}
	for i, w := range wantValues {
		if tokens[i].Value != w {
			t.Errorf("token %d value = %q, want %q", i, tokens[i].Value, w)
		}
	}
}

func TestScanPositions(t *testing.T) {
	tokens, _ := lexAll(t, "a\n  b")
	if len(tokens) != 3 {
		t.Fatalf("got %d tokens", len(tokens))
	}
	if tokens[0].Line != 1 || tokens[0].Column != 1 {
		t.Errorf("first token at %d:%d, want 1:1", tokens[0].Line, tokens[0].Column)
	}
	if tokens[2].Line != 2 || tokens[2].Column != 3 {
		t.Errorf("indented token at %d:%d, want 2:3", tokens[2].Line, tokens[2].Column)
	}
}

func TestScanErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated string", `"abc`},
		{"newline in string", "\"abc\ndef\""},
		{"bad escape", `"a\qb"`},
		{"underscore ident", "_foo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rep := lexAll(t, tt.input)
			if rep.Count() == 0 {
				t.Errorf("expected a lex error for %q", tt.input)
			}
		})
	}
}
