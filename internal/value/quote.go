package value

import (
	"fmt"
	"io"

	"github.com/funvibe/lattice/internal/term"
	"github.com/funvibe/lattice/internal/typesystem"
)

// Quote holds a raw syntax term. Quoting functions receive their arguments
// as Quotes; the consumer decides when, and in which scope, to evaluate.
type Quote struct {
	node
	term term.Term
}

// NewQuote wraps a term; the quote's type is the term's syntactic type so
// quoting macros can match on it.
func NewQuote(t term.Term, line, column int) *Quote {
	q := &Quote{node: at(line, column), term: t}
	if t != nil {
		q.setType(t.Type())
	} else {
		q.setType(typesystem.Func(typesystem.Any, typesystem.Any))
	}
	return q
}

func (v *Quote) Term() term.Term { return v.term }

func (v *Quote) Fold(ctx *Stack) typesystem.Meta {
	if v.term == nil {
		return typesystem.Meta{}
	}
	return v.term.Fold()
}

// CanApply holds only for the bare `quote` builtin awaiting its operand.
func (v *Quote) CanApply(ctx *Stack, arg Value) bool { return v.term == nil }

// Apply unwraps: quoting is resolved by the surrounding context.
func (v *Quote) Apply(ctx *Stack, arg Value) Value { return arg }

func (v *Quote) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "Quote")
	if v.term != nil {
		v.term.Format(w, level+1)
	}
}

func (v *Quote) Clone(ctx *Stack) Value {
	return NewQuote(v.term, v.line, v.column)
}

func (v *Quote) Repr() string {
	if v.term == nil {
		return "(quote ??)"
	}
	return "(quote " + v.term.Repr() + ")"
}

func (v *Quote) Explore(visit func(Value)) { visit(v) }
