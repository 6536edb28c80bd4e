package typesystem

import "math"

// The meta evaluator: arithmetic and structural operations over compile-time
// values. Operands are joined to a common type first; a float operation if
// the joined type floats, else a truncating integer operation. Unsupported
// operand combinations yield the invalid Meta, which folding treats as "not
// foldable".

// Trunc wraps an integer into the destination width.
func Trunc(n int64, dst Type) int64 {
	nt, ok := dst.(*NumericType)
	if !ok {
		return n
	}
	switch nt.Size() {
	case 1:
		return int64(int8(n))
	case 2:
		return int64(int16(n))
	case 4:
		return int64(int32(n))
	}
	return n
}

// TruncU wraps an unsigned integer into the destination width.
func TruncU(n uint64, dst Type) uint64 {
	nt, ok := dst.(*NumericType)
	if !ok {
		return n
	}
	switch nt.Size() {
	case 1:
		return uint64(uint8(n))
	case 2:
		return uint64(uint16(n))
	case 4:
		return uint64(uint32(n))
	}
	return n
}

// ToFloat converts any numeric Meta to float64.
func ToFloat(m Meta) float64 {
	switch {
	case m.IsFloat():
		return m.AsFloat()
	case m.IsInt():
		return float64(m.AsInt())
	case m.IsUint():
		return float64(m.AsUint())
	}
	return 0
}

// ToInt converts any numeric Meta to int64.
func ToInt(m Meta) int64 {
	switch {
	case m.IsFloat():
		return int64(m.AsFloat())
	case m.IsInt():
		return m.AsInt()
	case m.IsUint():
		return int64(m.AsUint())
	}
	return 0
}

// ToUint converts any numeric Meta to uint64.
func ToUint(m Meta) uint64 {
	switch {
	case m.IsFloat():
		return uint64(m.AsFloat())
	case m.IsInt():
		return uint64(m.AsInt())
	case m.IsUint():
		return m.AsUint()
	}
	return 0
}

func numericPair(lhs, rhs Meta) (Type, bool) {
	if !lhs.Valid() || !rhs.Valid() {
		return nil, false
	}
	dst := Join(lhs.Type(), rhs.Type())
	if dst == nil {
		return nil, false
	}
	return dst, true
}

func Add(lhs, rhs Meta) Meta {
	dst, ok := numericPair(lhs, rhs)
	if !ok {
		return Meta{}
	}
	switch {
	case IsFloating(dst):
		return MetaFloat(dst, ToFloat(lhs)+ToFloat(rhs))
	case isInteger(dst):
		return MetaInt(dst, Trunc(ToInt(lhs)+ToInt(rhs), dst))
	case dst == String:
		return MetaString(lhs.AsString() + rhs.AsString())
	}
	return Meta{}
}

func Sub(lhs, rhs Meta) Meta {
	dst, ok := numericPair(lhs, rhs)
	if !ok {
		return Meta{}
	}
	switch {
	case IsFloating(dst):
		return MetaFloat(dst, ToFloat(lhs)-ToFloat(rhs))
	case isInteger(dst):
		return MetaInt(dst, Trunc(ToInt(lhs)-ToInt(rhs), dst))
	}
	return Meta{}
}

func Mul(lhs, rhs Meta) Meta {
	dst, ok := numericPair(lhs, rhs)
	if !ok {
		return Meta{}
	}
	switch {
	case IsFloating(dst):
		return MetaFloat(dst, ToFloat(lhs)*ToFloat(rhs))
	case isInteger(dst):
		return MetaInt(dst, Trunc(ToInt(lhs)*ToInt(rhs), dst))
	}
	return Meta{}
}

func Div(lhs, rhs Meta) Meta {
	dst, ok := numericPair(lhs, rhs)
	if !ok {
		return Meta{}
	}
	switch {
	case IsFloating(dst):
		return MetaFloat(dst, ToFloat(lhs)/ToFloat(rhs))
	case isInteger(dst):
		if ToInt(rhs) == 0 {
			return Meta{}
		}
		return MetaInt(dst, Trunc(ToInt(lhs)/ToInt(rhs), dst))
	}
	return Meta{}
}

func Mod(lhs, rhs Meta) Meta {
	dst, ok := numericPair(lhs, rhs)
	if !ok {
		return Meta{}
	}
	switch {
	case IsFloating(dst):
		return MetaFloat(dst, math.Mod(ToFloat(lhs), ToFloat(rhs)))
	case isInteger(dst):
		if ToInt(rhs) == 0 {
			return Meta{}
		}
		return MetaInt(dst, Trunc(ToInt(lhs)%ToInt(rhs), dst))
	}
	return Meta{}
}

func And(lhs, rhs Meta) Meta {
	if !lhs.IsBool() || !rhs.IsBool() {
		return Meta{}
	}
	return MetaBool(lhs.AsBool() && rhs.AsBool())
}

func Or(lhs, rhs Meta) Meta {
	if !lhs.IsBool() || !rhs.IsBool() {
		return Meta{}
	}
	return MetaBool(lhs.AsBool() || rhs.AsBool())
}

func Xor(lhs, rhs Meta) Meta {
	if !lhs.IsBool() || !rhs.IsBool() {
		return Meta{}
	}
	return MetaBool(lhs.AsBool() != rhs.AsBool())
}

func Not(operand Meta) Meta {
	if !operand.IsBool() {
		return Meta{}
	}
	return MetaBool(!operand.AsBool())
}

func Equal(lhs, rhs Meta) Meta {
	if !lhs.Valid() || !rhs.Valid() {
		return Meta{}
	}
	return MetaBool(lhs.Equals(rhs))
}

func Inequal(lhs, rhs Meta) Meta {
	if !lhs.Valid() || !rhs.Valid() {
		return Meta{}
	}
	return MetaBool(!lhs.Equals(rhs))
}

func Less(lhs, rhs Meta) Meta         { return compare(lhs, rhs, ltInt, ltFloat, ltStr) }
func LessEqual(lhs, rhs Meta) Meta    { return compare(lhs, rhs, leInt, leFloat, leStr) }
func Greater(lhs, rhs Meta) Meta      { return compare(lhs, rhs, gtInt, gtFloat, gtStr) }
func GreaterEqual(lhs, rhs Meta) Meta { return compare(lhs, rhs, geInt, geFloat, geStr) }

func ltInt(a, b int64) bool     { return a < b }
func leInt(a, b int64) bool     { return a <= b }
func gtInt(a, b int64) bool     { return a > b }
func geInt(a, b int64) bool     { return a >= b }
func ltFloat(a, b float64) bool { return a < b }
func leFloat(a, b float64) bool { return a <= b }
func gtFloat(a, b float64) bool { return a > b }
func geFloat(a, b float64) bool { return a >= b }
func ltStr(a, b string) bool    { return a < b }
func leStr(a, b string) bool    { return a <= b }
func gtStr(a, b string) bool    { return a > b }
func geStr(a, b string) bool    { return a >= b }

func compare(lhs, rhs Meta, onInt func(a, b int64) bool,
	onFloat func(a, b float64) bool, onStr func(a, b string) bool) Meta {
	dst, ok := numericPair(lhs, rhs)
	if !ok {
		return Meta{}
	}
	switch {
	case IsFloating(dst):
		return MetaBool(onFloat(ToFloat(lhs), ToFloat(rhs)))
	case isInteger(dst):
		return MetaBool(onInt(ToInt(lhs), ToInt(rhs)))
	case dst == String:
		return MetaBool(onStr(lhs.AsString(), rhs.AsString()))
	}
	return Meta{}
}

// Cons prepends a value to a list or empty Meta, producing a list Meta.
func Cons(lhs, rhs Meta) Meta {
	if !lhs.Valid() || !rhs.Valid() {
		return Meta{}
	}
	if rhs.IsVoid() || rhs.Type() == Empty {
		lt := List(lhs.Type())
		return MetaList(lt, lhs, Meta{typ: Empty})
	}
	lt, ok := rhs.Type().(*ListType)
	if !ok || !lhs.Type().Explicitly(lt.Element()) {
		return Meta{}
	}
	return MetaList(lt, lhs, rhs)
}

// JoinMeta packs two values into a tuple Meta.
func JoinMeta(lhs, rhs Meta) Meta {
	if !lhs.Valid() || !rhs.Valid() {
		return Meta{}
	}
	t := Tuple(lhs.Type(), rhs.Type())
	return MetaTuple(t, []Meta{lhs, rhs})
}

// Assign updates the target of a reference in place, preserving the
// identity other holders observe.
func Assign(lhs *Meta, rhs Meta) {
	*lhs = rhs
}

func isInteger(t Type) bool {
	nt, ok := t.(*NumericType)
	return ok && !nt.Floating()
}
