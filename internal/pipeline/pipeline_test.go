package pipeline

import (
	"io"
	"strings"
	"testing"

	"github.com/funvibe/lattice/internal/source"
	"github.com/funvibe/lattice/internal/value"
)

func compile(t *testing.T, src string, level Level) *Context {
	t.Helper()
	prev := value.FoldOutput
	value.FoldOutput = io.Discard
	defer func() { value.FoldOutput = prev }()

	ctx := NewContext(source.FromString(src), level)
	ForLevel(level).Run(ctx)
	return ctx
}

func TestPipelineToTokens(t *testing.T) {
	ctx := compile(t, "print 1 + 2", LevelLex)
	if ctx.Reporter.Count() > 0 {
		t.Fatalf("unexpected errors: %v", ctx.Reporter.Errors())
	}
	if ctx.Tokens == nil || ctx.Tokens.Len() != 4 {
		t.Errorf("expected 4 tokens, got %v", ctx.Tokens)
	}
	if ctx.Program != nil {
		t.Errorf("lex level should not parse")
	}
}

func TestPipelineToAST(t *testing.T) {
	ctx := compile(t, "print 1 + 2", LevelAST)
	if ctx.Reporter.Count() > 0 {
		t.Fatalf("unexpected errors: %v", ctx.Reporter.Errors())
	}
	if ctx.Values == nil || len(ctx.Values.Children()) != 1 {
		t.Fatalf("expected one elaborated top-level value")
	}
	if ctx.Gen != nil {
		t.Errorf("ast level should not generate IR")
	}
}

func TestPipelineToAssembly(t *testing.T) {
	ctx := compile(t, "print 1 + 2 * 3", LevelASM)
	if ctx.Reporter.Count() > 0 {
		t.Fatalf("unexpected errors: %v", ctx.Reporter.Errors())
	}
	asm := ctx.Data.String() + ctx.Text.String()
	for _, want := range []string{".data", ".text", "_start:", "callq _printi64"} {
		if !strings.Contains(asm, want) {
			t.Errorf("assembly missing %q", want)
		}
	}
}

func TestPipelineFullProgram(t *testing.T) {
	src := "let f = x:i64 -> x * x\nprint f 9\n"
	ctx := compile(t, src, LevelASM)
	if ctx.Reporter.Count() > 0 {
		t.Fatalf("unexpected errors: %v", ctx.Reporter.Errors())
	}
	if len(ctx.Gen.Functions()) == 0 {
		t.Errorf("lambda should compile to a function")
	}
	asm := ctx.Text.String()
	if !strings.Contains(asm, "f:") {
		t.Errorf("function should carry its bound name as label:\n%s", asm)
	}
	if !strings.Contains(asm, "callq") {
		t.Errorf("call site missing:\n%s", asm)
	}
}

func TestPipelineStopsOnErrors(t *testing.T) {
	ctx := compile(t, "print y", LevelASM)
	if ctx.Reporter.Count() == 0 {
		t.Fatalf("expected an error for undeclared variable")
	}
	if ctx.Text.Len() != 0 {
		t.Errorf("no assembly should be produced after errors")
	}
}

func TestParseLevelNames(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"lex", LevelLex},
		{"parse", LevelParse},
		{"ast", LevelAST},
		{"ir", LevelIR},
		{"", LevelASM},
		{"asm", LevelASM},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
