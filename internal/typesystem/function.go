package typesystem

import "strings"

func constraintKey(cons []Constraint) string {
	var sb strings.Builder
	sb.WriteString(" { ")
	for _, c := range cons {
		sb.WriteString(c.Key())
		sb.WriteString(" ")
	}
	sb.WriteString("} ")
	return sb.String()
}

// FunctionType is an argument type, a return type, a quoting flag, and a
// list of constraints describing which argument values this case covers.
// Quoting functions receive their argument unevaluated, as a Quote.
type FunctionType struct {
	base
	arg     Type
	ret     Type
	quoting bool
	cons    []Constraint
}

// Func interns a non-quoting function type.
func Func(arg, ret Type, cons ...Constraint) *FunctionType {
	return newFunc(arg, ret, false, cons)
}

// QuotingFunc interns a quoting function type.
func QuotingFunc(arg, ret Type, cons ...Constraint) *FunctionType {
	return newFunc(arg, ret, true, cons)
}

func newFunc(arg, ret Type, quoting bool, cons []Constraint) *FunctionType {
	if len(cons) == 0 {
		cons = []Constraint{UnknownConstraint()}
	}
	head := "[F "
	if quoting {
		head = "[QF "
	}
	key := head + arg.Key() + " " + ret.Key() + constraintKey(cons) + "]"
	return intern(key, func() Type {
		return &FunctionType{
			base:    base{key: key, size: 8, id: takeID()},
			arg:     arg,
			ret:     ret,
			quoting: quoting,
			cons:    append([]Constraint(nil), cons...),
		}
	}).(*FunctionType)
}

func (t *FunctionType) Arg() Type                 { return t.arg }
func (t *FunctionType) Ret() Type                 { return t.ret }
func (t *FunctionType) Quoting() bool             { return t.quoting }
func (t *FunctionType) Constraints() []Constraint { return t.cons }

// Total reports whether every possible argument is covered: any OfType or
// Unknown constraint makes the case set total.
func (t *FunctionType) Total() bool {
	for _, c := range t.cons {
		if c.Kind() == OfType || c.Kind() == Unknown {
			return true
		}
	}
	return false
}

func (t *FunctionType) ConflictsWith(other Type) bool {
	if _, isMacro := other.(*MacroType); isMacro {
		return true
	}
	ft, ok := other.(*FunctionType)
	if !ok {
		return false
	}
	if ft.arg != t.arg && ft.ret != t.ret {
		return false
	}
	for _, a := range t.cons {
		for _, b := range ft.cons {
			if a.ConflictsWith(b) {
				return true
			}
		}
	}
	return false
}

func (t *FunctionType) Implicitly(other Type) bool {
	if baseImplicitly(t, other) {
		return true
	}
	ft, ok := other.(*FunctionType)
	if !ok {
		return false
	}
	if ft.quoting != t.quoting || ft.ret != t.ret || ft.arg != t.arg {
		return false
	}
	return len(ft.cons) == 1 && ft.cons[0].Kind() == Unknown
}

func (t *FunctionType) Explicitly(other Type) bool {
	if baseImplicitly(t, other) {
		return true
	}
	if other == TypeType {
		return t.arg == TypeType && t.ret == TypeType && len(t.cons) == 1 &&
			t.cons[0].Kind() == EqualsValue && t.cons[0].Value().IsType()
	}
	return t.Implicitly(other)
}

// Matches returns the most specific constraint matching a compile-time
// argument.
func (t *FunctionType) Matches(value Meta) Constraint {
	return MaxMatch(t.cons, value)
}

func (t *FunctionType) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	if len(t.cons) == 1 && t.cons[0].Kind() == EqualsValue {
		sb.WriteString(t.cons[0].Value().String())
	} else {
		sb.WriteString(t.arg.String())
	}
	if t.quoting {
		sb.WriteString(" => ")
	} else {
		sb.WriteString(" -> ")
	}
	sb.WriteString(t.ret.String())
	sb.WriteString(")")
	return sb.String()
}

// MacroType behaves like a function whose return type is determined at the
// use site.
type MacroType struct {
	base
	arg     Type
	quoting bool
	cons    []Constraint
}

// Macro interns a non-quoting macro type.
func Macro(arg Type, cons ...Constraint) *MacroType {
	return newMacro(arg, false, cons)
}

// QuotingMacro interns a quoting macro type.
func QuotingMacro(arg Type, cons ...Constraint) *MacroType {
	return newMacro(arg, true, cons)
}

func newMacro(arg Type, quoting bool, cons []Constraint) *MacroType {
	head := "[M "
	if quoting {
		head = "[QM "
	}
	key := head + arg.Key() + constraintKey(cons) + "]"
	return intern(key, func() Type {
		return &MacroType{
			base:    base{key: key, size: 0, id: takeID()},
			arg:     arg,
			quoting: quoting,
			cons:    append([]Constraint(nil), cons...),
		}
	}).(*MacroType)
}

func (t *MacroType) Arg() Type                 { return t.arg }
func (t *MacroType) Quoting() bool             { return t.quoting }
func (t *MacroType) Constraints() []Constraint { return t.cons }

func (t *MacroType) ConflictsWith(other Type) bool {
	mt, ok := other.(*MacroType)
	if !ok {
		return true
	}
	if mt.arg != t.arg {
		return false
	}
	for _, a := range t.cons {
		for _, b := range mt.cons {
			if a.ConflictsWith(b) {
				return true
			}
		}
	}
	return false
}

func (t *MacroType) Implicitly(other Type) bool {
	if baseImplicitly(t, other) {
		return true
	}
	mt, ok := other.(*MacroType)
	if !ok {
		return false
	}
	return mt.arg == t.arg && mt.quoting == t.quoting
}

func (t *MacroType) Explicitly(other Type) bool {
	return t.Implicitly(other)
}

// Matches returns the most specific constraint matching a compile-time
// argument.
func (t *MacroType) Matches(value Meta) Constraint {
	return MaxMatch(t.cons, value)
}

func (t *MacroType) String() string {
	if t.quoting {
		return "(" + t.arg.String() + " quoting-macro)"
	}
	return "(" + t.arg.String() + " macro)"
}
