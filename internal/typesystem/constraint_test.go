package typesystem

import "testing"

func TestConstraintPrecedence(t *testing.T) {
	eq := EqualsConstraint(MetaInt(I64, 1))
	of := OfTypeConstraint(I64)
	un := UnknownConstraint()

	if !eq.Precedes(of) || !of.Precedes(un) || !eq.Precedes(un) {
		t.Errorf("precedence should order EqualsValue > OfType > Unknown")
	}
	if un.Precedes(eq) || of.Precedes(eq) {
		t.Errorf("precedence inverted")
	}
	if !un.Precedes(NoConstraint) {
		t.Errorf("any real constraint precedes the null sentinel")
	}
}

func TestConstraintMatches(t *testing.T) {
	one := MetaInt(I64, 1)
	two := MetaInt(I64, 2)
	tests := []struct {
		name string
		c    Constraint
		m    Meta
		want bool
	}{
		{"unknown matches anything", UnknownConstraint(), one, true},
		{"of type matches", OfTypeConstraint(I64), two, true},
		{"equals same", EqualsConstraint(one), MetaInt(I64, 1), true},
		{"equals different", EqualsConstraint(one), two, false},
		{"null matches nothing", NoConstraint, one, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Matches(tt.m); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConstraintConflicts(t *testing.T) {
	one := EqualsConstraint(MetaInt(I64, 1))
	two := EqualsConstraint(MetaInt(I64, 2))
	if one.ConflictsWith(two) {
		t.Errorf("distinct value constraints should not conflict")
	}
	if !one.ConflictsWith(EqualsConstraint(MetaInt(I64, 1))) {
		t.Errorf("identical value constraints should conflict")
	}
	if !UnknownConstraint().ConflictsWith(one) {
		t.Errorf("the wildcard conflicts with everything")
	}
	if !OfTypeConstraint(I64).ConflictsWith(OfTypeConstraint(Double)) {
		t.Errorf("two type constraints conflict")
	}
}

func TestMaxMatch(t *testing.T) {
	one := MetaInt(I64, 1)
	cons := []Constraint{
		UnknownConstraint(),
		OfTypeConstraint(I64),
		EqualsConstraint(one),
	}
	got := MaxMatch(cons, one)
	if got.Kind() != EqualsValue {
		t.Errorf("MaxMatch picked kind %v, want EqualsValue", got.Kind())
	}
	got = MaxMatch(cons, MetaInt(I64, 5))
	if got.Kind() != OfType {
		t.Errorf("MaxMatch picked kind %v, want OfType", got.Kind())
	}
	if got := MaxMatch(nil, one); got.Kind() != Unknown {
		t.Errorf("empty constraint list should match as wildcard, got %v", got.Kind())
	}
}
