// Package source holds program text and hands out rune views with
// line/column tracking for the scanner.
package source

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Source is an in-memory program, either loaded from a file or accumulated
// line by line in a REPL session.
type Source struct {
	Path  string
	runes []rune
}

// FromFile loads a source file.
func FromFile(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read source file %q", path)
	}
	return &Source{Path: path, runes: []rune(string(data))}, nil
}

// FromString wraps literal program text.
func FromString(text string) *Source {
	return &Source{runes: []rune(text)}
}

// New returns an empty source for interactive use.
func New() *Source {
	return &Source{}
}

// Append adds a line of text, ensuring it is newline-terminated.
func (s *Source) Append(text string) {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	s.runes = append(s.runes, []rune(text)...)
}

// Len returns the rune count.
func (s *Source) Len() int {
	return len(s.runes)
}

// Line returns the 1-based line's text, for error display.
func (s *Source) Line(n int) string {
	line := 1
	var sb strings.Builder
	for _, r := range s.runes {
		if line == n {
			if r == '\n' {
				break
			}
			sb.WriteRune(r)
		}
		if r == '\n' {
			line++
		}
	}
	return sb.String()
}

// View is a read cursor over a Source.
type View struct {
	src    *Source
	pos    int
	line   int
	column int
}

// View opens a cursor at the start of the source.
func (s *Source) View() *View {
	return &View{src: s, line: 1, column: 1}
}

// ViewAt opens a cursor at an existing offset; the REPL uses this to resume
// scanning after the source is appended to.
func (s *Source) ViewAt(pos, line, column int) *View {
	return &View{src: s, pos: pos, line: line, column: column}
}

// Peek returns the current rune, or 0 at end of input.
func (v *View) Peek() rune {
	if v.pos >= len(v.src.runes) {
		return 0
	}
	return v.src.runes[v.pos]
}

// Read consumes and returns the current rune.
func (v *View) Read() rune {
	r := v.Peek()
	if r == 0 {
		return 0
	}
	v.pos++
	if r == '\n' {
		v.line++
		v.column = 1
	} else {
		v.column++
	}
	return r
}

func (v *View) Pos() int     { return v.pos }
func (v *View) Line() int    { return v.line }
func (v *View) Column() int  { return v.column }
func (v *View) Src() *Source { return v.src }
