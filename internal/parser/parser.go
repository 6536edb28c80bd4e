// Package parser builds syntax terms from tokens. Layout matters: a line
// splits on semicolons into chunks, parenthesized and bracketed groups nest,
// and a block opener at end of line captures the following indented lines.
package parser

import (
	"strconv"
	"strings"

	"github.com/funvibe/lattice/internal/diagnostics"
	"github.com/funvibe/lattice/internal/term"
	"github.com/funvibe/lattice/internal/token"
)

// Parser consumes a token view. In REPL mode Expand is called when input
// runs out inside an open construct; it returns false when no more input is
// available.
type Parser struct {
	view   *token.View
	rep    *diagnostics.Reporter
	Expand func() bool
}

func New(view *token.View, rep *diagnostics.Reporter) *Parser {
	return &Parser{view: view, rep: rep}
}

func (p *Parser) errHere(args ...interface{}) {
	t := p.view.Peek()
	p.rep.Report(diagnostics.PhaseParse, t.Line, t.Column, args...)
}

func (p *Parser) expand() bool {
	if p.Expand == nil {
		return false
	}
	return p.Expand()
}

// parseChunk accumulates primaries until a terminator token; the terminator
// kind is returned and a semicolon is consumed when consume is set.
func (p *Parser) parseChunk(terms *[]term.Term, indent int, consume bool) token.Kind {
	for {
		switch p.view.Peek().Kind {
		case token.NEWLINE, token.SEMI, token.RPAREN, token.RBRACK, token.RBRACE, token.NONE:
			k := p.view.Peek().Kind
			if k == token.SEMI && consume {
				p.view.Read()
			}
			*terms = groupOperators(*terms)
			return k
		}
		p.parsePrimary(terms, indent)
	}
}

// parseLine parses semicolon-separated chunks up to a newline or closer.
// Multiple chunks become sibling blocks.
func (p *Parser) parseLine(terms *[]term.Term, indent int, consume bool) token.Kind {
	var contents []term.Term
	l, c := p.view.Peek().Line, p.view.Peek().Column
	terminator := p.parseChunk(&contents, indent, true)
	for terminator == token.SEMI {
		if len(contents) > 0 {
			*terms = append(*terms, term.NewBlock(contents, l, c))
		}
		l, c = p.view.Peek().Line, p.view.Peek().Column
		contents = nil
		terminator = p.parseChunk(&contents, indent, true)
	}
	if len(contents) > 0 {
		if len(*terms) > 0 {
			*terms = append(*terms, term.NewBlock(contents, l, c))
		} else {
			*terms = append(*terms, contents...)
		}
	}
	if consume && terminator == token.NEWLINE {
		p.view.Read()
	}
	return terminator
}

// parseEnclosed parses newline-separated lines until the closing delimiter.
func (p *Parser) parseEnclosed(terms *[]term.Term, closer token.Kind, indent int) {
	var contents []term.Term
	l, c := p.view.Peek().Line, p.view.Peek().Column
	terminator := p.parseLine(&contents, indent, true)
	for terminator == token.NEWLINE {
		if len(contents) > 0 {
			*terms = append(*terms, term.NewBlock(contents, l, c))
		}
		l, c = p.view.Peek().Line, p.view.Peek().Column
		contents = nil
		terminator = p.parseLine(&contents, indent, true)
		if terminator == token.NONE && p.expand() {
			terminator = token.NEWLINE
		}
	}
	if len(contents) > 0 {
		if len(*terms) > 0 {
			*terms = append(*terms, term.NewBlock(contents, l, c))
		} else {
			*terms = append(*terms, contents...)
		}
	}
	if terminator == token.NONE {
		p.errHere("Unexpected end of input.")
	} else if terminator != closer {
		p.errHere("Expected '", closer, "', found '", terminator, "' at end of enclosed block.")
	}
	p.view.Read()
}

// parseIndented parses lines while they remain indented past prev.
func (p *Parser) parseIndented(terms *[]term.Term, indent, prev int) {
	var contents []term.Term
	l, c := p.view.Peek().Line, p.view.Peek().Column
	terminator := p.parseLine(&contents, c, true)

	if !p.view.More() || (terminator == token.NONE && p.view.Peek().Column > prev) {
		p.expand()
	}

	for p.view.More() && p.view.Peek().Column > prev {
		if len(contents) > 0 {
			*terms = append(*terms, term.NewBlock(contents, l, c))
		}
		l, c = p.view.Peek().Line, p.view.Peek().Column
		contents = nil
		terminator = p.parseLine(&contents, c, false)
		if p.view.Peek().Kind == token.NEWLINE && p.view.Peek().Column > prev {
			p.view.Read()
		}
		if !p.view.More() || (terminator == token.NONE && p.view.Peek().Column > prev) {
			p.expand()
		}
	}
	if len(contents) > 0 {
		if len(*terms) > 0 {
			*terms = append(*terms, term.NewBlock(contents, l, c))
		} else {
			*terms = append(*terms, contents...)
		}
	}
}

// blockOrSingle wraps multiple terms in a block, passing a single term
// through untouched.
func blockOrSingle(terms []term.Term) term.Term {
	if len(terms) == 1 {
		return terms[0]
	}
	return term.NewBlock(terms, terms[0].Line(), terms[0].Column())
}

func (p *Parser) parsePrimary(terms *[]term.Term, indent int) {
	t := p.view.Peek()
	switch t.Kind {
	case token.NUMBER:
		p.view.Read()
		if strings.Contains(t.Value, ".") {
			v, err := strconv.ParseFloat(t.Value, 64)
			if err != nil {
				p.errHere("Malformed numeric literal '", t.Value, "'.")
				return
			}
			*terms = append(*terms, term.NewRational(v, t.Line, t.Column))
			return
		}
		v, err := strconv.ParseInt(t.Value, 10, 64)
		if err != nil {
			p.errHere("Malformed numeric literal '", t.Value, "'.")
			return
		}
		*terms = append(*terms, term.NewInteger(v, t.Line, t.Column))
	case token.STRING:
		p.view.Read()
		*terms = append(*terms, term.NewString(t.Value, t.Line, t.Column))
	case token.CHAR:
		p.view.Read()
		r := rune(0)
		for _, c := range t.Value {
			r = c
			break
		}
		*terms = append(*terms, term.NewChar(r, t.Line, t.Column))
	case token.BOOL:
		p.view.Read()
		*terms = append(*terms, term.NewBool(t.Value == "true", t.Line, t.Column))
	case token.IDENT:
		p.view.Read()
		*terms = append(*terms, term.NewVariable(t.Value, t.Line, t.Column))
	case token.LPAREN:
		p.view.Read()
		var contents []term.Term
		p.parseEnclosed(&contents, token.RPAREN, indent)
		switch len(contents) {
		case 0:
			*terms = append(*terms, term.NewVoid(t.Line, t.Column))
		case 1:
			// an already-grouped single expression needs no second wrap
			*terms = append(*terms, contents[0])
		default:
			*terms = append(*terms, term.NewBlock(contents, t.Line, t.Column))
		}
	case token.LBRACE:
		p.view.Read()
		var contents []term.Term
		p.parseEnclosed(&contents, token.RBRACE, indent)
		*terms = append(*terms, term.NewBlock([]term.Term{
			term.NewVariable("record", t.Line, t.Column),
			term.NewBlock(contents, t.Line, t.Column),
		}, t.Line, t.Column))
	case token.LBRACK:
		p.view.Read()
		var contents []term.Term
		p.parseEnclosed(&contents, token.RBRACK, indent)
		if len(contents) == 0 {
			*terms = append(*terms, term.NewEmpty(t.Line, t.Column))
			return
		}
		*terms = append(*terms, term.NewBlock([]term.Term{
			term.NewVariable("array", t.Line, t.Column),
			term.NewBlock(contents, t.Line, t.Column),
		}, t.Line, t.Column))
	case token.QUOTE:
		p.view.Read()
		if p.view.Peek().Kind == token.LAMBDA || p.view.Peek().Kind == token.ASSIGN {
			p.errHere("Cannot quote operator '", p.view.Peek().Kind, "'.")
			return
		}
		var temp []term.Term
		p.parsePrimary(&temp, indent)
		if len(temp) == 0 {
			p.errHere("Quote prefix ':' requires operand, none provided.")
			return
		}
		*terms = append(*terms, term.NewBlock([]term.Term{
			term.NewVariable("quote", t.Line, t.Column),
			temp[0],
		}, t.Line, t.Column))
	case token.MINUS:
		p.view.Read()
		var temp []term.Term
		p.parsePrimary(&temp, indent)
		if len(temp) == 0 {
			p.errHere("Prefix operator '-' requires operand, none provided.")
			return
		}
		*terms = append(*terms, term.NewBlock([]term.Term{
			term.NewInteger(0, t.Line, t.Column),
			term.NewVariable("-", t.Line, t.Column),
			temp[0],
		}, t.Line, t.Column))
	case token.PLUS:
		p.view.Read()
		var temp []term.Term
		p.parsePrimary(&temp, indent)
		if len(temp) == 0 {
			p.errHere("Prefix operator '+' requires operand, none provided.")
			return
		}
		*terms = append(*terms, term.NewBlock([]term.Term{
			term.NewInteger(0, t.Line, t.Column),
			term.NewVariable("+", t.Line, t.Column),
			temp[0],
		}, t.Line, t.Column))
	case token.EVAL:
		p.view.Read()
		var temp []term.Term
		p.parsePrimary(&temp, indent)
		if len(temp) == 0 {
			p.errHere("Prefix operator '!' requires operand, none provided.")
			return
		}
		*terms = append(*terms, term.NewBlock([]term.Term{
			term.NewVariable("eval", t.Line, t.Column),
			temp[0],
		}, t.Line, t.Column))
	case token.REF:
		p.view.Read()
		var temp []term.Term
		p.parsePrimary(&temp, indent)
		if len(temp) == 0 {
			p.errHere("Prefix operator '~' requires operand, none provided.")
			return
		}
		*terms = append(*terms, term.NewBlock([]term.Term{
			term.NewVariable("~", t.Line, t.Column),
			temp[0],
		}, t.Line, t.Column))
	case token.ANNOT:
		p.view.Read()
		if len(*terms) == 0 {
			p.errHere("Type annotation requires a term to annotate.")
			return
		}
		annotated := (*terms)[len(*terms)-1]
		*terms = (*terms)[:len(*terms)-1]
		var temp []term.Term
		p.parsePrimary(&temp, indent)
		if len(temp) == 0 {
			p.errHere("Type annotation requires a type.")
			return
		}
		// the type leads so the annotated name elaborates as a declaration
		*terms = append(*terms, term.NewBlock([]term.Term{
			temp[0],
			annotated,
		}, t.Line, t.Column))
	case token.DOT:
		p.view.Read()
		if len(*terms) == 0 {
			p.errHere("Expected term to the left of dot.")
			return
		}
		left := (*terms)[len(*terms)-1]
		*terms = (*terms)[:len(*terms)-1]
		var temp []term.Term
		p.parsePrimary(&temp, indent)
		if len(temp) == 0 {
			p.errHere("Expected term to the right of dot.")
			return
		}
		*terms = append(*terms, term.NewBlock([]term.Term{
			left,
			blockOrSingle(temp),
		}, t.Line, t.Column))
	case token.LAMBDA:
		if len(*terms) == 0 {
			p.errHere("No argument provided in function definition.")
			p.view.Read()
			return
		}
		p.view.Read()
		arg := term.NewBlock(*terms, (*terms)[0].Line(), (*terms)[0].Column())
		*terms = nil
		var temp []term.Term
		if p.view.Peek().Kind == token.NEWLINE || p.view.Peek().Kind == token.NONE {
			p.view.Read()
			c := p.view.Peek().Column
			p.parseIndented(&temp, c, indent)
		} else {
			p.parseLine(&temp, indent, false)
		}
		if len(temp) == 0 {
			p.errHere("No body provided in function definition.")
			return
		}
		*terms = append(*terms, term.NewBlock([]term.Term{
			term.NewVariable("lambda", t.Line, t.Column),
			arg,
			blockOrSingle(temp),
		}, t.Line, t.Column))
	case token.ASSIGN:
		p.view.Read()
		if len(*terms) == 0 {
			p.errHere("No left term provided to assignment operator.")
			return
		}
		dst := blockOrSingle(*terms)
		*terms = nil
		var temp []term.Term
		if p.view.Peek().Kind == token.NEWLINE || p.view.Peek().Kind == token.NONE {
			p.view.Read()
			c := p.view.Peek().Column
			p.parseIndented(&temp, c, indent)
		} else {
			p.parseChunk(&temp, indent, false)
		}
		if len(temp) == 0 {
			p.errHere("No right term provided to assignment operator.")
			return
		}
		*terms = append(*terms, term.NewBlock([]term.Term{
			term.NewVariable("assign", t.Line, t.Column),
			dst,
			blockOrSingle(temp),
		}, t.Line, t.Column))
	case token.COLON:
		p.view.Read()
		var temp []term.Term
		if p.view.Peek().Kind == token.NEWLINE || p.view.Peek().Kind == token.NONE {
			p.view.Read()
			c := p.view.Peek().Column
			p.parseIndented(&temp, c, indent)
		} else {
			p.parseChunk(&temp, indent, false)
		}
		// operators to the left bind before the block attaches, so
		// `if n == 0: 1` reads as ((n == 0) then-block)
		*terms = append(groupOperators(*terms), term.NewBlock(temp, t.Line, t.Column))
	case token.NEWLINE:
		p.view.Read()
		p.expand()
	default:
		p.view.Read()
		p.errHere("Unexpected token '", t.Value, "'.")
	}
}

// Parse parses one top-level line, for the REPL.
func (p *Parser) Parse() term.Term {
	var terms []term.Term
	p.parseLine(&terms, 1, true)
	if p.rep.Count() > 0 || len(terms) == 0 {
		return nil
	}
	return blockOrSingle(terms)
}

// ParseFull parses the whole token stream into a Program.
func (p *Parser) ParseFull() *term.Program {
	prog := term.NewProgram(nil, p.view.Peek().Line, p.view.Peek().Column)
	for p.view.More() {
		var terms []term.Term
		terminator := p.parseLine(&terms, 1, true)
		if len(terms) > 0 {
			prog.Add(blockOrSingle(terms))
		}
		switch terminator {
		case token.RPAREN, token.RBRACK, token.RBRACE:
			p.errHere("Unexpected terminator '", terminator, "'.")
			p.view.Read()
		}
	}
	if p.rep.Count() > 0 {
		return nil
	}
	return prog
}
