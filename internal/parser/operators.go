package parser

import "github.com/funvibe/lattice/internal/term"

// Infix precedence. A chunk's flat term list is regrouped so operators bind
// their operands before juxtaposition applies: `print 1 + 2 * 3` feeds
// `print` the whole arithmetic expression. Juxtaposed runs between
// operators stay together, so `n * fact (n - 1)` multiplies by the call's
// result.
var precedence = map[string]int{
	"..": 95, "**": 95,
	"*": 90, "/": 90, "%": 90,
	"+": 80, "-": 80,
	"::": 70,
	"==": 60, "!=": 60, "<": 60, "<=": 60, ">": 60, ">=": 60,
	"and": 50, "or": 50, "xor": 50,
	"&": 40,
	",": 30,
}

// rightAssoc marks operators that nest rightward: 1 :: 2 :: xs prepends
// twice.
var rightAssoc = map[string]bool{
	"::": true,
	",":  true,
}

func operatorOf(t term.Term) (string, int, bool) {
	v, ok := t.(*term.Variable)
	if !ok {
		return "", 0, false
	}
	p, ok := precedence[v.Name]
	if !ok {
		return "", 0, false
	}
	return v.Name, p, true
}

// groupOperators restructures a chunk's terms by operator precedence. The
// first run keeps its leading terms as a juxtaposition prefix; only its
// last term becomes the initial left operand.
func groupOperators(terms []term.Term) []term.Term {
	hasOp := false
	for i, t := range terms {
		if _, _, ok := operatorOf(t); ok && i > 0 && i < len(terms)-1 {
			hasOp = true
			break
		}
	}
	if !hasOp {
		return terms
	}

	g := &grouper{terms: terms}
	run := g.readRun()
	if len(run) == 0 {
		return terms
	}
	prefix := run[:len(run)-1]
	left := run[len(run)-1]
	expr := g.climb(left, 0)
	return append(append([]term.Term{}, prefix...), expr)
}

type grouper struct {
	terms []term.Term
	pos   int
}

// readRun consumes a maximal run of non-operator terms, grouped as one
// juxtaposition.
func (g *grouper) readRun() []term.Term {
	var run []term.Term
	for g.pos < len(g.terms) {
		if _, _, ok := operatorOf(g.terms[g.pos]); ok && len(run) > 0 {
			break
		}
		run = append(run, g.terms[g.pos])
		g.pos++
	}
	return run
}

func (g *grouper) peekOp() (term.Term, int, bool) {
	if g.pos >= len(g.terms) {
		return nil, 0, false
	}
	t := g.terms[g.pos]
	if _, p, ok := operatorOf(t); ok && g.pos < len(g.terms)-1 {
		return t, p, true
	}
	return nil, 0, false
}

// climb is standard precedence climbing; operands are juxtaposition runs.
func (g *grouper) climb(left term.Term, minPrec int) term.Term {
	for {
		op, prec, ok := g.peekOp()
		if !ok || prec < minPrec {
			return left
		}
		opName, _, _ := operatorOf(op)
		g.pos++
		run := g.readRun()
		if len(run) == 0 {
			return left
		}
		right := runTerm(run)
		for {
			_, nextPrec, nextOk := g.peekOp()
			if !nextOk {
				break
			}
			if nextPrec > prec {
				right = g.climb(right, nextPrec)
			} else if nextPrec == prec && rightAssoc[opName] {
				right = g.climb(right, prec)
			} else {
				break
			}
		}
		left = term.NewBlock([]term.Term{left, op, right}, left.Line(), left.Column())
	}
}

func runTerm(run []term.Term) term.Term {
	if len(run) == 1 {
		return run[0]
	}
	return term.NewBlock(run, run[0].Line(), run[0].Column())
}
