package typesystem

import "testing"

func TestInterning(t *testing.T) {
	tests := []struct {
		name string
		a    Type
		b    Type
	}{
		{"numeric", Numeric(8, false, true), Numeric(8, false, true)},
		{"tuple", Tuple(I64, Double), Tuple(I64, Double)},
		{"block", Block(I64, Bool), Block(I64, Bool)},
		{"array", Array(I64, 3), Array(I64, 3)},
		{"union", Union(I64, Bool), Union(Bool, I64)},
		{"intersection", Intersection(Func(I64, I64), Func(Double, Double)),
			Intersection(Func(Double, Double), Func(I64, I64))},
		{"list", List(I64), List(I64)},
		{"reference", Reference(String), Reference(String)},
		{"function", Func(I64, Bool), Func(I64, Bool)},
		{"macro", Macro(I64), Macro(I64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.a != tt.b {
				t.Errorf("interning of %s returned distinct instances %p and %p", tt.name, tt.a, tt.b)
			}
		})
	}
}

func TestNumericAtoms(t *testing.T) {
	if I64.Size() != 8 || I8.Size() != 1 || Float.Size() != 4 || Double.Size() != 8 {
		t.Errorf("unexpected numeric sizes: i64=%d i8=%d f32=%d f64=%d",
			I64.Size(), I8.Size(), Float.Size(), Double.Size())
	}
	if !Double.Floating() || I64.Floating() {
		t.Errorf("floating classification wrong")
	}
	if !I64.Signed() || U64.Signed() {
		t.Errorf("signedness classification wrong")
	}
}

func TestImplicitConversions(t *testing.T) {
	tests := []struct {
		name string
		from Type
		to   Type
		want bool
	}{
		{"identity", I64, I64, true},
		{"to any", I64, Any, true},
		{"int widening", I8, I64, true},
		{"int narrowing", I64, I8, false},
		{"cross signedness", I8, U16, false},
		{"float widening", Float, Double, true},
		{"float narrowing", Double, Float, false},
		{"int to float", I64, Double, false},
		{"tuple memberwise", Tuple(I8, Float), Tuple(I64, Double), true},
		{"tuple arity", Tuple(I64), Tuple(I64, I64), false},
		{"array to tuple", Array(I64, 2), Tuple(I64, I64), true},
		{"array count mismatch", Array(I64, 2), Tuple(I64, I64, I64), false},
		{"empty to list", Empty, List(I64), true},
		{"reference deref", Reference(I64), I64, true},
		{"reference identity", Reference(I64), Reference(I64), true},
		{"function to unconstrained", Func(I64, I64, OfTypeConstraint(I64)), Func(I64, I64), true},
		{"function arg mismatch", Func(I64, I64), Func(Double, I64), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.Implicitly(tt.to); got != tt.want {
				t.Errorf("%s implicitly %s = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestExplicitConversions(t *testing.T) {
	tests := []struct {
		name string
		from Type
		to   Type
		want bool
	}{
		{"int to float", I64, Double, true},
		{"float to int", Double, I64, true},
		{"int narrowing", I64, I8, true},
		{"tuple of types to type", Tuple(TypeType, TypeType), TypeType, true},
		{"mixed tuple to type", Tuple(TypeType, I64), TypeType, false},
		{"type ctor function to type",
			Func(TypeType, TypeType, EqualsConstraint(MetaType(I64))), TypeType, true},
		{"plain function to type", Func(TypeType, TypeType), TypeType, false},
		{"string to int", String, I64, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.Explicitly(tt.to); got != tt.want {
				t.Errorf("%s explicitly %s = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		name string
		a    Type
		b    Type
		want Type
	}{
		{"identical", I64, I64, I64},
		{"widening", I8, I64, I64},
		{"int float", I64, Double, Double},
		{"unrelated", String, Bool, nil},
		{"float widening", Float, Double, Double},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Join(tt.a, tt.b); got != tt.want {
				t.Errorf("Join(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestIntersectionSize(t *testing.T) {
	// compatible overloads collapse to a single function pointer
	overload := Intersection(
		Func(I64, I64, OfTypeConstraint(I64)),
		Func(Double, Double, OfTypeConstraint(Double)),
	)
	if overload.Size() != 8 {
		t.Errorf("overload intersection size = %d, want 8", overload.Size())
	}
	// unrelated members lay out in sequence
	mixed := Intersection(I64, Bool)
	if mixed.Size() != 9 {
		t.Errorf("mixed intersection size = %d, want 9", mixed.Size())
	}
}

func TestFunctionConflicts(t *testing.T) {
	a := Func(I64, I64, OfTypeConstraint(I64))
	b := Func(I64, Bool, OfTypeConstraint(I64))
	if !a.ConflictsWith(b) {
		t.Errorf("functions sharing arg with satisfiable constraints should conflict")
	}
	c := Func(Double, Double, OfTypeConstraint(Double))
	if a.ConflictsWith(c) {
		t.Errorf("functions with different args should not conflict")
	}
	m := Macro(I64)
	if !a.ConflictsWith(m) {
		t.Errorf("functions always conflict with macros")
	}
}

func TestShouldAlloca(t *testing.T) {
	tests := []struct {
		t    Type
		want bool
	}{
		{I64, false},
		{Bool, false},
		{Tuple(I64, I64), true},
		{Array(I64, 4), true},
		{String, false},
	}
	for _, tt := range tests {
		if got := ShouldAlloca(tt.t); got != tt.want {
			t.Errorf("ShouldAlloca(%s) = %v, want %v", tt.t, got, tt.want)
		}
	}
}
