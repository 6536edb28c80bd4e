// Package pipeline sequences the compiler passes. Each stage reads and
// extends a shared Context; a stage does nothing once diagnostics have
// accumulated, so the driver can always run the full pipeline and report
// afterwards.
package pipeline

import (
	"bytes"

	"github.com/funvibe/lattice/internal/diagnostics"
	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/lexer"
	"github.com/funvibe/lattice/internal/parser"
	"github.com/funvibe/lattice/internal/source"
	"github.com/funvibe/lattice/internal/term"
	"github.com/funvibe/lattice/internal/token"
	"github.com/funvibe/lattice/internal/value"
	"github.com/funvibe/lattice/internal/x64"
)

// Level selects where compilation stops.
type Level int

const (
	LevelLex Level = iota + 1
	LevelParse
	LevelAST
	LevelIR
	LevelASM
)

// ParseLevel maps a config string to a Level; unknown strings mean full
// compilation.
func ParseLevel(s string) Level {
	switch s {
	case "lex":
		return LevelLex
	case "parse":
		return LevelParse
	case "ast":
		return LevelAST
	case "ir":
		return LevelIR
	}
	return LevelASM
}

// Context carries everything the stages produce.
type Context struct {
	Source   *source.Source
	Reporter *diagnostics.Reporter
	Tokens   *token.Cache
	Program  *term.Program
	Session  *value.Session
	Values   *value.Program
	Gen      *ir.CodeGenerator
	Text     bytes.Buffer
	Data     bytes.Buffer
	Level    Level
}

// NewContext prepares a context for one source.
func NewContext(src *source.Source, level Level) *Context {
	rep := diagnostics.NewReporter()
	rep.UseSource(src.Path)
	return &Context{
		Source:   src,
		Reporter: rep,
		Level:    level,
	}
}

// Processor is one pass over the context.
type Processor interface {
	Process(ctx *Context) *Context
}

// Pipeline is an ordered list of processors.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline in order.
func (p *Pipeline) Run(ctx *Context) *Context {
	for _, proc := range p.processors {
		ctx = proc.Process(ctx)
	}
	return ctx
}

// ForLevel builds the standard pipeline up to the requested level.
func ForLevel(level Level) *Pipeline {
	procs := []Processor{Lex{}}
	if level >= LevelParse {
		procs = append(procs, Parse{})
	}
	if level >= LevelAST {
		procs = append(procs, Elaborate{})
	}
	if level >= LevelIR {
		procs = append(procs, Generate{})
	}
	if level >= LevelASM {
		procs = append(procs, Allocate{}, Emit{})
	}
	return New(procs...)
}

// Lex scans the source into tokens.
type Lex struct{}

func (Lex) Process(ctx *Context) *Context {
	ctx.Tokens = lexer.Lex(ctx.Source, ctx.Reporter)
	return ctx
}

// Parse builds the syntax tree.
type Parse struct{}

func (Parse) Process(ctx *Context) *Context {
	if ctx.Reporter.Count() > 0 || ctx.Tokens == nil {
		return ctx
	}
	p := parser.New(ctx.Tokens.View(), ctx.Reporter)
	ctx.Program = p.ParseFull()
	return ctx
}

// Elaborate builds and folds the typed value graph.
type Elaborate struct{}

func (Elaborate) Process(ctx *Context) *Context {
	if ctx.Reporter.Count() > 0 || ctx.Program == nil {
		return ctx
	}
	ctx.Session = value.NewSession(ctx.Reporter)
	ctx.Values = ctx.Session.EvalProgram(ctx.Program)
	return ctx
}

// Generate emits IR for the value graph and runs the finalize fixpoint.
type Generate struct{}

func (Generate) Process(ctx *Context) *Context {
	if ctx.Reporter.Count() > 0 || ctx.Values == nil {
		return ctx
	}
	ctx.Gen = ir.NewCodeGenerator()
	ctx.Values.Gen(ctx.Session.Global, ctx.Gen, ctx.Gen)
	ctx.Gen.Finalize()
	return ctx
}

// Allocate runs liveness and register/stack allocation.
type Allocate struct{}

func (Allocate) Process(ctx *Context) *Context {
	if ctx.Reporter.Count() > 0 || ctx.Gen == nil {
		return ctx
	}
	ctx.Gen.Allocate()
	return ctx
}

// Emit prints the assembly sections.
type Emit struct{}

func (Emit) Process(ctx *Context) *Context {
	if ctx.Reporter.Count() > 0 || ctx.Gen == nil {
		return ctx
	}
	x64.EmitProgram(ctx.Gen, &ctx.Text, &ctx.Data)
	return ctx
}
