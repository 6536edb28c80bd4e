package source

import "testing"

func TestViewTracksPosition(t *testing.T) {
	v := FromString("ab\ncd").View()
	if v.Line() != 1 || v.Column() != 1 {
		t.Fatalf("view starts at %d:%d, want 1:1", v.Line(), v.Column())
	}
	v.Read() // a
	v.Read() // b
	if v.Column() != 3 {
		t.Errorf("column = %d, want 3", v.Column())
	}
	v.Read() // newline
	if v.Line() != 2 || v.Column() != 1 {
		t.Errorf("after newline at %d:%d, want 2:1", v.Line(), v.Column())
	}
	if v.Peek() != 'c' {
		t.Errorf("peek = %q, want 'c'", v.Peek())
	}
}

func TestViewEnd(t *testing.T) {
	v := FromString("x").View()
	v.Read()
	if v.Peek() != 0 || v.Read() != 0 {
		t.Errorf("exhausted view should yield zero runes")
	}
}

func TestAppendForRepl(t *testing.T) {
	s := New()
	s.Append("let x = 1")
	v := s.View()
	if v.Peek() != 'l' {
		t.Errorf("appended text should be visible")
	}
	for v.Peek() != 0 {
		v.Read()
	}
	s.Append("x + 1")
	resumed := s.ViewAt(v.Pos(), v.Line(), v.Column())
	if resumed.Peek() != 'x' {
		t.Errorf("resumed view should see new input, got %q", resumed.Peek())
	}
}

func TestLine(t *testing.T) {
	s := FromString("one\ntwo\nthree")
	if got := s.Line(2); got != "two" {
		t.Errorf("Line(2) = %q, want %q", got, "two")
	}
}
