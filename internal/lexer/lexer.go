// Package lexer turns source text into tokens. The grammar is
// whitespace-sensitive downstream, so newlines are tokens and column
// positions are preserved exactly.
package lexer

import (
	"unicode"

	"github.com/funvibe/lattice/internal/diagnostics"
	"github.com/funvibe/lattice/internal/source"
	"github.com/funvibe/lattice/internal/token"
)

// Scanner scans one Source with a Reporter for lexical errors.
type Scanner struct {
	view *source.View
	rep  *diagnostics.Reporter
}

func NewScanner(view *source.View, rep *diagnostics.Reporter) *Scanner {
	return &Scanner{view: view, rep: rep}
}

// Lex scans an entire source into a fresh token cache. On lexical errors the
// cache contains what was scanned so far; callers check the reporter.
func Lex(src *source.Source, rep *diagnostics.Reporter) *token.Cache {
	cache := token.NewCache()
	s := NewScanner(src.View(), rep)
	s.Drain(cache)
	return cache
}

// Drain scans until end of input, pushing tokens into cache.
func (s *Scanner) Drain(cache *token.Cache) {
	for s.view.Peek() != 0 {
		t := s.Scan()
		if t.Valid() {
			cache.Push(t)
		}
	}
}

// View exposes the underlying cursor so the REPL can resume scanning after
// appending input.
func (s *Scanner) View() *source.View {
	return s.view
}

func isDelimiterRune(c rune) bool {
	switch c {
	case 0, '(', ')', '{', '}', ';', ',', '[', ']', '\'', '"', '.':
		return true
	}
	return unicode.IsSpace(c)
}

func isClosingDelimiter(c rune) bool {
	switch c {
	case 0, ')', '}', ';', ',', ']', '.':
		return true
	}
	return unicode.IsSpace(c)
}

// isDelimiter reports whether the cursor sits on a token boundary. A colon
// only delimits when followed by whitespace (so `x:i64` stays one chunk of
// tokens while a trailing `:` opens a block).
func (s *Scanner) isDelimiter() bool {
	c := s.view.Peek()
	if c == ':' {
		return isColonDelimiter(s.view)
	}
	return isDelimiterRune(c)
}

func isColonDelimiter(v *source.View) bool {
	next := v.Src().ViewAt(v.Pos()+1, v.Line(), v.Column()+1)
	c := next.Peek()
	return c == 0 || unicode.IsSpace(c)
}

func issym(c rune) bool {
	return c != 0 && !isDelimiterRune(c) && c != ':' && unicode.IsPrint(c)
}

func (s *Scanner) errHere(args ...interface{}) {
	s.rep.Report(diagnostics.PhaseLex, s.view.Line(), s.view.Column(), args...)
}

func (s *Scanner) fromKind(k token.Kind) token.Token {
	return token.Token{Kind: k, Line: s.view.Line(), Column: s.view.Column()}
}

func (s *Scanner) fromValue(k token.Kind, v string) token.Token {
	return token.Token{Kind: k, Value: v, Line: s.view.Line(), Column: s.view.Column()}
}

func delimiterKind(c rune) token.Kind {
	switch c {
	case '(':
		return token.LPAREN
	case ')':
		return token.RPAREN
	case '{':
		return token.LBRACE
	case '}':
		return token.RBRACE
	case '[':
		return token.LBRACK
	case ']':
		return token.RBRACK
	case ':':
		return token.COLON
	case ';':
		return token.SEMI
	case '\n':
		return token.NEWLINE
	case '.':
		return token.DOT
	}
	return token.NONE
}

// Scan produces the next token, or an invalid token for skipped input
// (whitespace, comments).
func (s *Scanner) Scan() token.Token {
	c := s.view.Peek()
	var t token.Token
	switch {
	case c == '#':
		for s.view.Peek() != '\n' && s.view.Peek() != 0 {
			s.view.Read()
		}
	case c == '.':
		t = s.fromKind(token.IDENT)
		s.scanDot(&t)
	case c == '-':
		t = s.fromKind(token.MINUS)
		s.scanPrefixOp(&t)
	case c == '+':
		t = s.fromKind(token.PLUS)
		s.scanPrefixOp(&t)
	case c == ':':
		// a colon glued to the previous token annotates it with a type;
		// detached it quotes or opens a block
		if s.annotationContext() {
			t = s.fromKind(token.ANNOT)
			s.view.Read()
			return t
		}
		t = s.fromKind(token.QUOTE)
		s.scanPrefixColon(&t)
	case c == '!':
		t = s.fromKind(token.EVAL)
		s.scanPrefixOp(&t)
	case c == '~':
		t = s.fromKind(token.REF)
		s.scanPrefixOp(&t)
	case unicode.IsDigit(c):
		t = s.fromKind(token.NUMBER)
		s.scanNumberHead(&t)
	case s.isDelimiterToken():
		t = s.delimiterToken(c)
		s.view.Read()
	case c == '"':
		t = s.fromKind(token.STRING)
		s.scanString(&t)
	case c == '\'':
		t = s.fromKind(token.CHAR)
		s.scanChar(&t)
	case issym(c):
		t = s.fromKind(token.IDENT)
		s.scanIdentifier(&t)
	case unicode.IsSpace(c):
		s.view.Read()
	default:
		s.errHere("Unexpected symbol '", string(c), "' in input.")
		s.view.Read()
	}
	return t
}

// annotationContext reports whether the colon under the cursor binds the
// preceding token to a type: it must abut a symbol or closing delimiter on
// the left and must not begin `::` or a block-opening `: `.
func (s *Scanner) annotationContext() bool {
	if s.view.Pos() == 0 {
		return false
	}
	prev := s.view.Src().ViewAt(s.view.Pos()-1, s.view.Line(), s.view.Column()-1).Peek()
	if !issym(prev) && prev != ')' && prev != ']' {
		return false
	}
	next := s.view.Src().ViewAt(s.view.Pos()+1, s.view.Line(), s.view.Column()+1).Peek()
	if next == ':' || next == 0 || unicode.IsSpace(next) {
		return false
	}
	return true
}

// isDelimiterToken matches delimiters that form tokens by themselves,
// including newline but excluding quotes and a non-delimiting colon.
func (s *Scanner) isDelimiterToken() bool {
	c := s.view.Peek()
	if c == ':' {
		return isColonDelimiter(s.view)
	}
	switch c {
	case '(', ')', '{', '}', ';', ',', '[', ']', '\n', '.':
		return true
	}
	return false
}

func (s *Scanner) delimiterToken(c rune) token.Token {
	if c == ',' {
		return s.fromValue(token.IDENT, ",")
	}
	if k := delimiterKind(c); k != token.NONE {
		return s.fromKind(k)
	}
	return token.Token{}
}

func (s *Scanner) scanNumberTail(t *token.Token) {
	for !s.isDelimiter() {
		if unicode.IsDigit(s.view.Peek()) {
			t.Value += string(s.view.Read())
		} else {
			s.errHere("Unexpected symbol '", string(s.view.Peek()), "' in numeric literal.")
			break
		}
	}
}

func (s *Scanner) scanNumberHead(t *token.Token) {
	for !s.isDelimiter() || s.view.Peek() == '.' {
		switch {
		case unicode.IsDigit(s.view.Peek()):
			t.Value += string(s.view.Read())
		case s.view.Peek() == '.':
			// lookahead: a digit continues the literal, anything else is
			// a trailing dot token
			next := s.view.Src().ViewAt(s.view.Pos()+1, s.view.Line(), s.view.Column()+1)
			if unicode.IsDigit(next.Peek()) {
				t.Value += string(s.view.Read())
				s.scanNumberTail(t)
			}
			return
		default:
			s.errHere("Unexpected symbol '", string(s.view.Peek()), "' in numeric literal.")
			return
		}
	}
}

func (s *Scanner) scanEscape(t *token.Token) {
	s.view.Read() // consume backslash
	switch s.view.Peek() {
	case 'n':
		t.Value += "\n"
		s.view.Read()
	case 't':
		t.Value += "\t"
		s.view.Read()
	case 'r':
		t.Value += "\r"
		s.view.Read()
	case '0':
		t.Value += "\x00"
		s.view.Read()
	case '\\':
		t.Value += "\\"
		s.view.Read()
	case '"':
		t.Value += "\""
		s.view.Read()
	case '\'':
		t.Value += "'"
		s.view.Read()
	default:
		s.errHere("Invalid escape sequence '\\", string(s.view.Peek()), "'.")
	}
}

func (s *Scanner) scanString(t *token.Token) {
	s.view.Read() // consume opening quote
	for s.view.Peek() != '"' {
		switch s.view.Peek() {
		case 0:
			s.errHere("Unexpected end of input in string literal.")
			return
		case '\n':
			s.errHere("Unexpected end of line in string literal.")
			return
		case '\\':
			s.scanEscape(t)
		default:
			t.Value += string(s.view.Read())
		}
	}
	s.view.Read() // consume closing quote
}

func (s *Scanner) scanChar(t *token.Token) {
	s.view.Read() // consume opening quote
	switch s.view.Peek() {
	case 0:
		s.errHere("Unexpected end of input in character literal.")
		return
	case '\n':
		s.errHere("Unexpected end of line in character literal.")
		return
	case '\\':
		s.scanEscape(t)
	default:
		t.Value += string(s.view.Read())
	}
	if s.view.Peek() != '\'' {
		s.errHere("Expected closing quote in character literal, found unexpected symbol '",
			string(s.view.Peek()), "'.")
		return
	}
	s.view.Read() // consume closing quote
}

func (s *Scanner) scanDot(t *token.Token) {
	t.Value += string(s.view.Read())
	if s.view.Peek() == '.' {
		s.scanDot(t)
		return
	}
	if t.Value == "." {
		t.Kind = token.DOT
		t.Value = ""
	} else {
		t.Kind = token.IDENT
	}
}

func (s *Scanner) scanPrefixColon(t *token.Token) {
	if s.isDelimiterToken() {
		*t = s.delimiterToken(s.view.Peek())
		s.view.Read()
		return
	}
	t.Value += string(s.view.Read())
	if s.view.Peek() == ':' {
		// `::` standing alone is the cons identifier
		next := s.view.Src().ViewAt(s.view.Pos()+1, s.view.Line(), s.view.Column()+1)
		if next.Peek() != ':' && isDelimiterRune(next.Peek()) {
			s.view.Read()
			t.Kind = token.IDENT
			t.Value += ":"
		}
	}
}

func (s *Scanner) scanPrefixOp(t *token.Token) {
	t.Value += string(s.view.Read())
	c := s.view.Peek()
	switch {
	case c == '-' || c == '+' || c == '=' || c == '>' || c == '!' || c == '~' || isClosingDelimiter(c):
		t.Kind = token.IDENT
		s.scanIdentifier(t)
	case unicode.IsSpace(c):
		t.Kind = token.IDENT
	}
}

func (s *Scanner) scanIdentifier(t *token.Token) {
	for !s.isDelimiter() || (s.view.Peek() == ':' && len(t.Value) > 0 && t.Value[len(t.Value)-1] == ':') {
		if s.view.Peek() == ':' && s.annotationContext() {
			break
		}
		if issym(s.view.Peek()) || s.view.Peek() == ':' {
			t.Value += string(s.view.Read())
		} else {
			s.errHere("Unexpected symbol '", string(s.view.Peek()), "' in identifier.")
			break
		}
	}
	if len(t.Value) > 0 && t.Value[0] == '_' {
		s.errHere("Identifiers may not begin with underscores.")
	}
	switch t.Value {
	case "->":
		t.Kind = token.LAMBDA
		t.Value = ""
	case "=":
		t.Kind = token.ASSIGN
		t.Value = ""
	case "true", "false":
		t.Kind = token.BOOL
	}
}
