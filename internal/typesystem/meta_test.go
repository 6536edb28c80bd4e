package typesystem

import "testing"

func sampleMetas() []Meta {
	ref := MetaInt(I64, 9)
	return []Meta{
		{},
		MetaVoid(),
		MetaEmpty(),
		MetaInt(I64, 42),
		MetaUint(U64, 42),
		MetaFloat(Double, 2.5),
		MetaType(I64),
		MetaBool(true),
		MetaBool(false),
		MetaSymbol("x"),
		MetaString("hello"),
		MetaChar('q'),
		MetaRef(&ref, Reference(I64)),
		MetaTuple(Tuple(I64, Bool), []Meta{MetaInt(I64, 1), MetaBool(true)}),
		MetaArray(Array(I64, 2), []Meta{MetaInt(I64, 1), MetaInt(I64, 2)}),
		MetaList(List(I64), MetaInt(I64, 1), MetaEmpty()),
	}
}

func TestMetaHashEqAgreement(t *testing.T) {
	metas := sampleMetas()
	for i, a := range metas {
		for j, b := range metas {
			if a.Equals(b) && a.Hash() != b.Hash() {
				t.Errorf("metas %d and %d equal but hashes differ", i, j)
			}
			if i == j && !a.Equals(b) {
				t.Errorf("meta %d not equal to itself", i)
			}
		}
	}
}

func TestMetaEquality(t *testing.T) {
	if !MetaInt(I64, 3).Equals(MetaInt(I64, 3)) {
		t.Errorf("equal ints should compare equal")
	}
	if MetaInt(I64, 3).Equals(MetaInt(I32, 3)) {
		t.Errorf("ints of different types should differ")
	}
	if MetaInt(I64, 3).Equals(MetaInt(I64, 4)) {
		t.Errorf("different ints should differ")
	}
	a := MetaString("abc")
	b := MetaString("abc")
	if !a.Equals(b) {
		t.Errorf("equal strings should compare equal")
	}
}

func TestMetaClone(t *testing.T) {
	arr := MetaArray(Array(I64, 2), []Meta{MetaInt(I64, 1), MetaInt(I64, 2)})
	cl := arr.Clone()
	cl.AsArray()[0] = MetaInt(I64, 99)
	if arr.AsArray()[0].AsInt() != 1 {
		t.Errorf("clone should deep-copy array payloads")
	}

	// a plain copy shares the payload
	alias := arr
	alias.AsArray()[1] = MetaInt(I64, 7)
	if arr.AsArray()[1].AsInt() != 7 {
		t.Errorf("copies should share the boxed payload")
	}
}

func TestMetaString(t *testing.T) {
	tests := []struct {
		m    Meta
		want string
	}{
		{MetaInt(I64, 7), "7"},
		{MetaBool(true), "true"},
		{MetaFloat(Double, 3.5), "3.5"},
		{MetaFloat(Double, 2), "2.0"},
		{MetaString("hi"), "hi"},
		{MetaVoid(), "()"},
		{MetaTuple(Tuple(I64, I64), []Meta{MetaInt(I64, 1), MetaInt(I64, 2)}), "(1, 2)"},
		{MetaArray(Array(I64, 2), []Meta{MetaInt(I64, 1), MetaInt(I64, 2)}), "[1 2]"},
	}
	for _, tt := range tests {
		if got := tt.m.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestMetaArithmetic(t *testing.T) {
	i := func(v int64) Meta { return MetaInt(I64, v) }
	f := func(v float64) Meta { return MetaFloat(Double, v) }
	tests := []struct {
		name string
		got  Meta
		want Meta
	}{
		{"int add", Add(i(2), i(3)), i(5)},
		{"int sub", Sub(i(2), i(3)), i(-1)},
		{"int mul", Mul(i(4), i(3)), i(12)},
		{"int div", Div(i(7), i(2)), i(3)},
		{"int mod", Mod(i(7), i(2)), i(1)},
		{"mixed add floats", Add(i(2), f(0.5)), f(2.5)},
		{"string concat", Add(MetaString("a"), MetaString("b")), MetaString("ab")},
		{"bool and", And(MetaBool(true), MetaBool(false)), MetaBool(false)},
		{"bool or", Or(MetaBool(true), MetaBool(false)), MetaBool(true)},
		{"not", Not(MetaBool(true)), MetaBool(false)},
		{"less", Less(i(1), i(2)), MetaBool(true)},
		{"greaterequal", GreaterEqual(i(1), i(2)), MetaBool(false)},
		{"equal", Equal(i(2), i(2)), MetaBool(true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.got.Equals(tt.want) {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestMetaArithmeticUnsupported(t *testing.T) {
	if Add(MetaBool(true), MetaInt(I64, 1)).Valid() {
		t.Errorf("adding bool and int should not fold")
	}
	if Div(MetaInt(I64, 1), MetaInt(I64, 0)).Valid() {
		t.Errorf("division by zero should not fold")
	}
	if And(MetaInt(I64, 1), MetaBool(true)).Valid() {
		t.Errorf("and over non-bools should not fold")
	}
}

func TestMetaTruncation(t *testing.T) {
	m := Add(MetaInt(I8, 120), MetaInt(I8, 10))
	var wrapped int32 = 130
	if !m.IsInt() || m.AsInt() != int64(int8(wrapped)) {
		t.Errorf("i8 addition should wrap, got %v", m.AsInt())
	}
}

func TestMetaCons(t *testing.T) {
	l := Cons(MetaInt(I64, 1), MetaEmpty())
	if !l.IsList() {
		t.Fatalf("cons of element and empty should produce a list")
	}
	if l.ListHead().AsInt() != 1 {
		t.Errorf("list head = %d, want 1", l.ListHead().AsInt())
	}
	l2 := Cons(MetaInt(I64, 2), l)
	if !l2.IsList() || l2.ListTail().ListHead().AsInt() != 1 {
		t.Errorf("cons should prepend")
	}
}

func TestMetaJoin(t *testing.T) {
	m := JoinMeta(MetaInt(I64, 1), MetaBool(true))
	if !m.IsTuple() || len(m.AsTuple()) != 2 {
		t.Fatalf("join should produce a pair")
	}
	if m.Type() != Tuple(I64, Bool) {
		t.Errorf("join type = %s, want (i64, bool)", m.Type())
	}
}

func TestMetaAssignPreservesIdentity(t *testing.T) {
	target := MetaInt(I64, 1)
	ref := MetaRef(&target, Reference(I64))
	Assign(ref.AsRef(), MetaInt(I64, 5))
	if target.AsInt() != 5 {
		t.Errorf("assignment through reference should update the target in place")
	}
}

func TestSymbolInterning(t *testing.T) {
	a := FindSymbol("foo")
	b := FindSymbol("foo")
	c := FindSymbol("bar")
	if a != b {
		t.Errorf("same name should intern to same id")
	}
	if a == c {
		t.Errorf("different names should intern to different ids")
	}
	if SymbolName(a) != "foo" {
		t.Errorf("SymbolName round trip failed")
	}
}
