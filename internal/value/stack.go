// Package value implements elaboration: the scope/operand stack, the typed
// value graph, constant folding, and IR generation from typed values.
package value

import (
	"github.com/funvibe/lattice/internal/diagnostics"
	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/typesystem"
)

// Storage classifies where a binding's runtime value lives.
type Storage int

const (
	StorageGlobal Storage = iota
	StorageLocal
	StorageArgument
	StorageCapture
)

// BuiltinFactory constructs a fresh builtin node when a bound operator name
// is applied; the argument is the variable occurrence being replaced.
type BuiltinFactory func(v Value) Value

// Entry is one name binding: its declared type, current compile-time value,
// optional template node, optional builtin constructor, and the IR location
// once assigned.
type Entry struct {
	typ        typesystem.Type
	value      typesystem.Meta
	node       Value
	builtin    BuiltinFactory
	loc        *ir.Location
	reassigned bool
	storage    Storage
}

func (e *Entry) Type() typesystem.Type       { return e.typ }
func (e *Entry) SetType(t typesystem.Type)   { e.typ = t }
func (e *Entry) Value() typesystem.Meta      { return e.value }
func (e *Entry) SetValue(m typesystem.Meta)  { e.value = m }
func (e *Entry) Node() Value                 { return e.node }
func (e *Entry) Builtin() BuiltinFactory     { return e.builtin }
func (e *Entry) SetBuiltin(b BuiltinFactory) { e.builtin = b }
func (e *Entry) Loc() *ir.Location           { return e.loc }
func (e *Entry) SetLoc(l *ir.Location)       { e.loc = l }
func (e *Entry) Storage() Storage            { return e.storage }
func (e *Entry) SetStorage(s Storage)        { e.storage = s }
func (e *Entry) Reassigned() bool            { return e.reassigned }
func (e *Entry) Reassign()                   { e.reassigned = true }

type interactKey struct {
	first  typesystem.Type
	second typesystem.Type
}

// Stack is a lexical scope node that doubles as the operand stack during
// elaboration. Scope nodes carry a name table and a type-method table;
// plain nodes only hold operands and delegate bindings upward.
type Stack struct {
	name     string
	parent   *Stack
	values   []Value
	children []*Stack
	depth    int

	table    map[string]*Entry
	tmethods map[interactKey]*Entry
	tmcache  map[typesystem.Type][]interactKey

	rep *diagnostics.Reporter // set on the root
}

// NewStack creates a child of parent; scope nodes get their own name table.
func NewStack(parent *Stack, scope bool) *Stack {
	s := &Stack{parent: parent}
	if parent != nil {
		s.depth = parent.depth + 1
		parent.children = append(parent.children, s)
	}
	if scope {
		s.table = map[string]*Entry{}
		s.tmethods = map[interactKey]*Entry{}
		s.tmcache = map[typesystem.Type][]interactKey{}
		// seed the method cache from the nearest enclosing scope
		p := parent
		for p != nil && p.tmcache == nil {
			p = p.parent
		}
		if p != nil {
			for k, v := range p.tmcache {
				s.tmcache[k] = append([]interactKey(nil), v...)
			}
		}
	}
	return s
}

// Reporter finds the diagnostics reporter installed on the root scope.
func (s *Stack) Reporter() *diagnostics.Reporter {
	n := s
	for n != nil {
		if n.rep != nil {
			return n.rep
		}
		n = n.parent
	}
	return nil
}

func (s *Stack) errAt(v Value, args ...interface{}) {
	if rep := s.Reporter(); rep != nil {
		rep.Report(diagnostics.PhaseType, v.Line(), v.Column(), args...)
	}
}

func (s *Stack) err(line, column int, args ...interface{}) {
	if rep := s.Reporter(); rep != nil {
		rep.Report(diagnostics.PhaseType, line, column, args...)
	}
}

func (s *Stack) note(line, column int, args ...interface{}) {
	if rep := s.Reporter(); rep != nil {
		rep.Note(line, column, args...)
	}
}

func (s *Stack) Name() string        { return s.name }
func (s *Stack) SetName(name string) { s.name = name }
func (s *Stack) Parent() *Stack      { return s.parent }
func (s *Stack) Depth() int          { return s.depth }
func (s *Stack) HasScope() bool      { return s.table != nil }
func (s *Stack) Len() int            { return len(s.values) }
func (s *Stack) Values() []Value     { return s.values }

// Top returns the top of the operand stack.
func (s *Stack) Top() Value {
	if len(s.values) == 0 {
		return nil
	}
	return s.values[len(s.values)-1]
}

// Pop removes and returns the top operand.
func (s *Stack) Pop() Value {
	v := s.Top()
	if v != nil {
		s.values = s.values[:len(s.values)-1]
	}
	return v
}

// Clear empties the operand stack without touching bindings.
func (s *Stack) Clear() {
	s.values = nil
}

// Lookup walks the parent chain for a binding.
func (s *Stack) Lookup(name string) *Entry {
	if s.table != nil {
		if e, ok := s.table[name]; ok {
			return e
		}
	}
	if s.parent != nil {
		return s.parent.Lookup(name)
	}
	return nil
}

// FindEnv returns the scope holding a binding.
func (s *Stack) FindEnv(name string) *Stack {
	if s.table != nil {
		if _, ok := s.table[name]; ok {
			return s
		}
	}
	if s.parent != nil {
		return s.parent.FindEnv(name)
	}
	return nil
}

// Scope returns this node's own table; nil for non-scope nodes.
func (s *Stack) Scope() map[string]*Entry { return s.table }

// NearestScope returns the closest table-carrying node's table.
func (s *Stack) NearestScope() map[string]*Entry {
	n := s
	for n != nil {
		if n.table != nil {
			return n.table
		}
		n = n.parent
	}
	return nil
}

// Bind installs a binding on the nearest table-carrying scope.
func (s *Stack) Bind(name string, t typesystem.Type) *Entry {
	return s.bindEntry(name, &Entry{typ: t})
}

// BindMeta installs a binding with a compile-time value.
func (s *Stack) BindMeta(name string, t typesystem.Type, m typesystem.Meta) *Entry {
	return s.bindEntry(name, &Entry{typ: t, value: m})
}

// BindBuiltin installs a binding with a builtin constructor.
func (s *Stack) BindBuiltin(name string, t typesystem.Type, b BuiltinFactory) *Entry {
	return s.bindEntry(name, &Entry{typ: t, builtin: b})
}

// BindNode installs a binding with a template node cloned at each use.
func (s *Stack) BindNode(name string, t typesystem.Type, v Value) *Entry {
	return s.bindEntry(name, &Entry{typ: t, node: v})
}

func (s *Stack) bindEntry(name string, e *Entry) *Entry {
	if s.table != nil {
		s.table[name] = e
		return e
	}
	if s.parent != nil {
		return s.parent.bindEntry(name, e)
	}
	return nil
}

// Erase removes a binding from this scope.
func (s *Stack) Erase(name string) {
	if s.table != nil {
		delete(s.table, name)
	}
}

// InteractOf finds the registered binary type method for (a, b).
func (s *Stack) InteractOf(a, b typesystem.Type) *Entry {
	if s.tmethods != nil {
		if e, ok := s.tmethods[interactKey{a, b}]; ok {
			return e
		}
	}
	if s.parent != nil {
		return s.parent.InteractOf(a, b)
	}
	return nil
}

// Interact registers a binary type method implemented by a compile-time
// function value.
func (s *Stack) Interact(a, b typesystem.Type, f typesystem.Meta) {
	ft := typesystem.Func(a, typesystem.Func(b, typesystem.Any))
	s.interactEntry(a, b, &Entry{typ: ft, value: f})
}

// InteractBuiltin registers a binary type method implemented by a builtin
// constructor.
func (s *Stack) InteractBuiltin(a, b typesystem.Type, f BuiltinFactory) {
	ft := typesystem.Func(a, typesystem.Func(b, typesystem.Any))
	s.interactEntry(a, b, &Entry{typ: ft, builtin: f})
}

func (s *Stack) interactEntry(a, b typesystem.Type, e *Entry) {
	if s.tmethods != nil {
		s.tmethods[interactKey{a, b}] = e
		// invalidate upward: any cached first-operand type that converts
		// to a learns the new method
		for t := range s.tmcache {
			if t.Explicitly(a) {
				s.tmcache[t] = append(s.tmcache[t], interactKey{a, b})
			}
		}
		return
	}
	if s.parent != nil {
		s.parent.interactEntry(a, b, e)
	}
}

// tryInteract looks for a binary type method applicable to (first, second).
func (s *Stack) tryInteract(first, second Value) *Entry {
	holder := s
	for holder != nil && holder.tmcache == nil {
		holder = holder.parent
	}
	if holder == nil {
		return nil
	}
	cache := holder.tmcache

	ft := first.Type(s)
	st := second.Type(s)
	keys, ok := cache[ft]
	if !ok {
		n := s
		for n != nil && n.tmcache == nil {
			n = n.parent
		}
		for n != nil && n.tmcache != nil {
			for k := range n.tmethods {
				if ft.Explicitly(k.first) {
					keys = append(keys, k)
				}
			}
			n = n.parent
			for n != nil && n.tmcache == nil {
				n = n.parent
			}
		}
		cache[ft] = keys
	}

	for _, k := range keys {
		if st.Explicitly(k.second) {
			if e := s.InteractOf(k.first, k.second); e != nil {
				return e
			}
		}
	}
	return nil
}

// tryApplyType resolves the function type selected when a value of type
// fn is applied to arg. For intersections, candidates are filtered by
// exact match, then implicit match, then non-Any argument; surviving
// ambiguity is reported.
func (s *Stack) tryApplyType(fn typesystem.Type, arg Value, line, column int) typesystem.Type {
	argT := arg.Type(s)
	if ft, ok := fn.(*typesystem.FunctionType); ok {
		if argT.Explicitly(ft.Arg()) {
			return ft
		}
		return nil
	}
	if mt, ok := fn.(*typesystem.MacroType); ok {
		if argT.Explicitly(mt.Arg()) {
			return mt
		}
		return nil
	}
	it, ok := fn.(*typesystem.IntersectionType)
	if !ok {
		return nil
	}
	var fns []*typesystem.FunctionType
	for _, m := range it.Members() {
		if ft := s.tryApplyType(m, arg, line, column); ft != nil {
			if f, ok := ft.(*typesystem.FunctionType); ok {
				fns = append(fns, f)
			}
		}
	}
	if len(fns) > 1 {
		equalFound, implicitFound, nonAnyFound := false, false, false
		for _, ft := range fns {
			if argT == ft.Arg() {
				equalFound = true
			}
			if argT.Implicitly(ft.Arg()) {
				implicitFound = true
			}
			if ft.Arg() != typesystem.Any {
				nonAnyFound = true
			}
		}
		keep := func(pred func(*typesystem.FunctionType) bool) {
			filtered := fns[:0]
			for _, ft := range fns {
				if pred(ft) {
					filtered = append(filtered, ft)
				}
			}
			fns = filtered
		}
		switch {
		case equalFound:
			keep(func(ft *typesystem.FunctionType) bool { return argT == ft.Arg() })
		case implicitFound:
			keep(func(ft *typesystem.FunctionType) bool { return argT.Implicitly(ft.Arg()) })
		case nonAnyFound:
			keep(func(ft *typesystem.FunctionType) bool { return ft.Arg() != typesystem.Any })
		}
	}
	if len(fns) > 1 {
		s.err(line, column,
			"Ambiguous application of overloaded function or macro for argument type '",
			argT, "'. Candidates were:")
		for _, ft := range fns {
			s.note(line, column, "    ", ft)
		}
		return nil
	}
	if len(fns) == 1 {
		return fns[0]
	}
	return nil
}

func (s *Stack) tryApply(fn, arg Value) typesystem.Type {
	return s.tryApplyType(fn.Type(s), arg, fn.Line(), fn.Column())
}

// apply invokes fn on arg: a builtin applies directly, a folded builtin
// function applies through its Meta, anything else becomes a Call node.
func (s *Stack) apply(fn Value, ft typesystem.Type, arg Value) Value {
	if e := fn.Entry(s); e != nil && e.Builtin() != nil {
		fn = e.Builtin()(fn)
	}
	if b, ok := fn.(Builtin); ok && b.CanApply(s, arg) {
		return b.Apply(s, arg)
	}
	m := fn.Fold(s)
	if m.IsFunction() {
		if b, ok := m.FuncNode().(Builtin); ok && b.CanApply(s, arg) {
			return b.Apply(s, arg)
		}
	}
	return NewCall(fn, ft, arg, fn.Line(), fn.Column())
}

// ExpectsMeta reports whether the stack top is a quoting function or an
// intersection containing one, in which case the next syntax term is pushed
// unevaluated as a Quote.
func (s *Stack) ExpectsMeta() bool {
	if len(s.values) == 0 {
		return false
	}
	switch tt := s.Top().Type(s).(type) {
	case *typesystem.FunctionType:
		return tt.Quoting()
	case *typesystem.MacroType:
		return tt.Quoting()
	case *typesystem.IntersectionType:
		for _, m := range tt.Members() {
			if ft, ok := m.(*typesystem.FunctionType); ok && ft.Quoting() {
				return true
			}
			if mt, ok := m.(*typesystem.MacroType); ok && mt.Quoting() {
				return true
			}
		}
	}
	return false
}

// Push feeds one elaborated value to the operand stack, trying in order:
// declaration (type value followed by a fresh variable), binary type-method
// interaction, function application in either direction, and finally a
// plain push.
func (s *Stack) Push(v Value) {
	if v == nil {
		return
	}

	// declaration
	if len(s.values) > 0 && s.Top().Type(s).Explicitly(typesystem.TypeType) {
		if vr, ok := v.(*Variable); ok && (vr.Entry(s) == nil || s.tryApply(vr, s.Top()) == nil) {
			top := s.Pop()
			if top.Type(s) != typesystem.TypeType {
				top = NewCast(typesystem.TypeType, top)
			}
			d := NewDefine(top, vr.Name())
			d.Apply(s, nil)
			s.Push(d)
			return
		}
	}

	if len(s.values) == 0 {
		s.values = append(s.values, v)
		return
	}

	// binary type-method interaction
	if e := s.tryInteract(s.Top(), v); e != nil {
		first := s.Pop()
		s.values = append(s.values, v, first)
		if e.Builtin() != nil {
			s.Push(e.Builtin()(first))
		} else {
			s.Push(NewInteraction(e.Value(), first.Line(), first.Column()))
		}
		return
	}
	if e := s.tryInteract(v, s.Top()); e != nil {
		s.values = append(s.values, v)
		if e.Builtin() != nil {
			s.Push(e.Builtin()(v))
		} else {
			s.Push(NewInteraction(e.Value(), v.Line(), v.Column()))
		}
		return
	}

	// function application
	if ft := s.tryApply(s.Top(), v); ft != nil {
		v = castToFormal(ft, v, s)
		result := s.apply(s.Pop(), ft, v)
		if result != nil {
			s.Push(result)
		}
		return
	}
	if ft := s.tryApply(v, s.Top()); ft != nil {
		s.values[len(s.values)-1] = castToFormal(ft, s.Top(), s)
		result := s.apply(v, ft, s.Pop())
		if result != nil {
			s.Push(result)
		}
		return
	}

	// array type composition and indexing: a type followed by constant
	// dimensions forms an array type, an array value followed by constant
	// indices an element reference
	if av, ok := v.(*ArrayValue); ok {
		topT := s.Top().Type(s)
		if topT == typesystem.TypeType {
			d := NewArrayDef(v.Line(), v.Column())
			d.Apply(s, s.Pop())
			d.Apply(s, av)
			if m := d.Fold(s); m.IsType() {
				s.Push(NewTypeConstant(m.AsType(), v.Line(), v.Column()))
			} else {
				s.Push(d)
			}
			return
		}
		if _, isArr := topT.(*typesystem.ArrayType); isArr {
			idx := NewIndex(v.Line(), v.Column())
			idx.Apply(s, s.Pop())
			idx.Apply(s, av)
			s.Push(idx)
			return
		}
	}
	if top, ok := s.Top().(*ArrayValue); ok && v.Type(s) == typesystem.TypeType {
		d := NewArrayDef(v.Line(), v.Column())
		d.Apply(s, top)
		s.Pop()
		d.Apply(s, v)
		if m := d.Fold(s); m.IsType() {
			s.Push(NewTypeConstant(m.AsType(), v.Line(), v.Column()))
		} else {
			s.Push(d)
		}
		return
	}

	s.values = append(s.values, v)
}

// castToFormal wraps arg in a Cast when the formal argument type differs,
// skipping the Any wildcard.
func castToFormal(ft typesystem.Type, arg Value, s *Stack) Value {
	f, ok := ft.(*typesystem.FunctionType)
	if !ok {
		return arg
	}
	formal := f.Arg()
	if formal == typesystem.Any || arg.Type(s) == formal {
		return arg
	}
	return NewCast(formal, arg)
}
