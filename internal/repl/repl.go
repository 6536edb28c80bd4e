// Package repl runs the interactive session: every input line is carried
// through the pipeline to the selected level and the result of that pass is
// echoed.
package repl

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/funvibe/lattice/internal/diagnostics"
	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/lexer"
	"github.com/funvibe/lattice/internal/parser"
	"github.com/funvibe/lattice/internal/pipeline"
	"github.com/funvibe/lattice/internal/source"
	"github.com/funvibe/lattice/internal/token"
	"github.com/funvibe/lattice/internal/value"
	"github.com/funvibe/lattice/internal/x64"
)

const (
	promptMain = "? "
	promptCont = ". "
)

// Repl holds the session state shared across inputs.
type Repl struct {
	level   pipeline.Level
	silent  bool
	in      *bufio.Scanner
	out     io.Writer
	rep     *diagnostics.Reporter
	src     *source.Source
	scan    *lexer.Scanner
	tokens  *token.Cache
	session *value.Session
	gen     *ir.CodeGenerator
	color   bool
}

func New(level pipeline.Level, silent bool, in io.Reader, out io.Writer) *Repl {
	rep := diagnostics.NewReporter()
	src := source.New()
	r := &Repl{
		level:   level,
		silent:  silent,
		in:      bufio.NewScanner(in),
		out:     out,
		rep:     rep,
		src:     src,
		scan:    lexer.NewScanner(src.View(), rep),
		tokens:  token.NewCache(),
		session: value.NewSession(rep),
		gen:     ir.NewCodeGenerator(),
	}
	if f, ok := in.(*os.File); ok {
		r.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return r
}

func (r *Repl) prompt(p string) {
	if !r.color {
		return
	}
	fmt.Fprint(r.out, "\x1b[1m"+p+"\x1b[0m")
}

// expand reads one more input line and scans it, returning false at end of
// input.
func (r *Repl) expand(prompt string) bool {
	r.prompt(prompt)
	if !r.in.Scan() {
		return false
	}
	before := r.tokens.Len()
	r.src.Append(r.in.Text())
	r.scan.Drain(r.tokens)
	return r.tokens.Len() > before
}

// Run loops until end of input or `quit`. The exit code is the number of
// errors reported.
func (r *Repl) Run() int {
	errors := 0
	view := r.tokens.View()
	for {
		r.rep.Clear()
		if !r.expand(promptMain) {
			return errors
		}
		if r.rep.Count() > 0 {
			r.rep.Print(r.out)
			errors += r.rep.Count()
			continue
		}
		if r.level == pipeline.LevelLex {
			if !r.silent {
				for _, t := range r.tokens.Tokens() {
					fmt.Fprintln(r.out, t)
				}
			}
			continue
		}

		if view.Peek().Kind == token.IDENT && view.Peek().Value == "quit" {
			fmt.Fprintln(r.out, "Leaving REPL...")
			return errors
		}

		p := parser.New(view, r.rep)
		p.Expand = func() bool { return r.expand(promptCont) }
		t := p.Parse()
		if r.rep.Count() > 0 || t == nil {
			r.rep.Print(r.out)
			errors += r.rep.Count()
			continue
		}
		if r.level == pipeline.LevelParse {
			if !r.silent {
				t.Format(r.out, 0)
			}
			continue
		}

		vals := r.session.EvalChild(t)
		if r.rep.Count() > 0 {
			r.rep.Print(r.out)
			errors += r.rep.Count()
			continue
		}
		if r.level == pipeline.LevelAST {
			if !r.silent {
				for _, v := range vals {
					v.Format(r.out, 0)
				}
			}
			continue
		}

		for _, v := range vals {
			v.Gen(r.session.Global, r.gen, r.gen)
		}
		r.gen.Finalize()
		if r.level == pipeline.LevelIR {
			if !r.silent {
				r.gen.Format(r.out)
			}
			continue
		}

		r.gen.Allocate()
		var text, data bytes.Buffer
		x64.EmitProgram(r.gen, &text, &data)
		if !r.silent {
			io.Copy(r.out, &data)
			io.Copy(r.out, &text)
		}
	}
}
