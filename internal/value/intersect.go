package value

import (
	"fmt"
	"io"
	"sort"

	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/typesystem"
)

// IntersectBaseType is the curried type of the `&` constructor.
func IntersectBaseType() typesystem.Type {
	return typesystem.Intersection(
		typesystem.Func(typesystem.TypeType, typesystem.Func(typesystem.TypeType, typesystem.TypeType)),
		typesystem.Func(typesystem.Any, typesystem.Func(typesystem.Any, typesystem.Any)),
	)
}

// Intersect is the `&` constructor: it gathers functions (and values) into
// an overloaded intersection. Members sharing an argument type merge into
// one function whose constraints accumulate; an Any-typed member becomes
// the wildcard case.
type Intersect struct {
	node
	lhs       Value
	rhs       Value
	caseCache map[uint64]*Lambda
	label     string
}

func NewIntersect(line, column int) *Intersect {
	v := &Intersect{node: at(line, column), caseCache: map[uint64]*Lambda{}}
	v.setType(IntersectBaseType())
	return v
}

func (v *Intersect) Left() Value  { return v.lhs }
func (v *Intersect) Right() Value { return v.rhs }

func (v *Intersect) Type(ctx *Stack) typesystem.Type {
	if v.typ != nil {
		return v.typ
	}
	v.setType(v.lazyType(ctx))
	return v.typ
}

func (v *Intersect) retype(ctx *Stack) {
	v.typ = nil
	v.setType(v.lazyType(ctx))
}

// lazyType merges two function members over the same argument type into a
// single multi-constraint function; everything else forms an intersection
// type. Per the merge rule, an Any return defers to the concrete one.
func (v *Intersect) lazyType(ctx *Stack) typesystem.Type {
	if v.lhs == nil && v.rhs == nil {
		return IntersectBaseType()
	}
	if v.rhs == nil {
		return typesystem.Func(typesystem.Any, typesystem.Any)
	}
	lt := v.lhs.Type(ctx)
	rt := v.rhs.Type(ctx)

	lf, lok := lt.(*typesystem.FunctionType)
	rf, rok := rt.(*typesystem.FunctionType)
	if lok && rok {
		if lf.Arg() == rf.Arg() &&
			(lf.Ret().Explicitly(rf.Ret()) || rf.Ret().Explicitly(lf.Ret()) ||
				lf.Ret() == typesystem.Any || rf.Ret() == typesystem.Any) &&
			!lf.ConflictsWith(rf) && !rf.ConflictsWith(lf) {
			var cons []typesystem.Constraint
			cons = append(cons, lf.Constraints()...)
			cons = append(cons, rf.Constraints()...)
			ret := typesystem.Join(lf.Ret(), rf.Ret())
			if ret == typesystem.Any {
				if lf.Ret() == typesystem.Any {
					ret = rf.Ret()
				} else {
					ret = lf.Ret()
				}
			}
			return typesystem.Func(lf.Arg(), ret, cons...)
		}
		return typesystem.Intersection(lt, rt)
	}
	return typesystem.Intersection(lt, rt)
}

// populate flattens nested intersects, grouping members by argument type.
// The nil key collects non-function members.
func (v *Intersect) populate(ctx *Stack, groups map[typesystem.Type][]Value) {
	for _, side := range []Value{v.lhs, v.rhs} {
		if side == nil {
			continue
		}
		if in, ok := side.(*Intersect); ok {
			in.populate(ctx, groups)
		} else if ft, ok := side.Type(ctx).(*typesystem.FunctionType); ok {
			groups[ft.Arg()] = append(groups[ft.Arg()], side)
		} else {
			groups[nil] = append(groups[nil], side)
		}
	}
	v.lhs = nil
	v.rhs = nil
}

// lambdas collects the lambda members of the tree.
func (v *Intersect) lambdas(ctx *Stack, out *[]*Lambda) {
	for _, side := range []Value{v.lhs, v.rhs} {
		if side == nil {
			continue
		}
		if in, ok := side.(*Intersect); ok {
			in.lambdas(ctx, out)
			continue
		}
		if _, ok := side.Type(ctx).(*typesystem.FunctionType); ok {
			fr := side.Fold(ctx)
			if fr.IsFunction() {
				if l, isL := fr.FuncNode().(*Lambda); isL {
					*out = append(*out, l)
				}
			}
		}
	}
}

func (v *Intersect) CanApply(ctx *Stack, arg Value) bool {
	return v.lhs == nil || v.rhs == nil
}

func (v *Intersect) Apply(ctx *Stack, arg Value) Value {
	if v.lhs == nil {
		v.lhs = arg
		if v.lhs.Type(ctx) == typesystem.TypeType {
			v.setType(typesystem.Func(typesystem.TypeType, typesystem.TypeType))
		} else {
			v.setType(typesystem.Func(typesystem.Any, typesystem.Any))
		}
		return v
	}
	if v.rhs != nil {
		return v
	}
	v.rhs = arg

	groups := map[typesystem.Type][]Value{}
	if in, ok := v.lhs.(*Intersect); ok {
		in.populate(ctx, groups)
	} else if ft, ok := v.lhs.Type(ctx).(*typesystem.FunctionType); ok {
		groups[ft.Arg()] = append(groups[ft.Arg()], v.lhs)
	} else {
		groups[nil] = append(groups[nil], v.lhs)
	}
	if in, ok := v.rhs.(*Intersect); ok {
		in.populate(ctx, groups)
	} else if ft, ok := v.rhs.Type(ctx).(*typesystem.FunctionType); ok {
		groups[ft.Arg()] = append(groups[ft.Arg()], v.rhs)
	} else {
		groups[nil] = append(groups[nil], v.rhs)
	}

	// pull out the wildcard case
	var anyCase Value
	if cases, ok := groups[typesystem.Any]; ok {
		if len(cases) > 1 {
			ctx.errAt(v, "More than one generic case in intersection.")
			for _, c := range cases {
				ctx.note(c.Line(), c.Column(), "Case: ", c.Repr())
			}
		} else {
			anyCase = cases[0]
		}
		delete(groups, typesystem.Any)
	}

	// deterministic group order
	keys := make([]typesystem.Type, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == nil {
			return true
		}
		if keys[j] == nil {
			return false
		}
		return keys[i].Key() < keys[j].Key()
	})

	// merge each same-argument group into one member
	folded := make([]Value, 0, len(groups))
	for _, k := range keys {
		cases := groups[k]
		if len(cases) == 0 {
			continue
		}
		merged := cases[0]
		etype := merged.Type(ctx)
		for _, c := range cases[1:] {
			if c.Type(ctx).ConflictsWith(merged.Type(ctx)) {
				ctx.err(c.Line(), c.Column(), "Cannot create intersection; types '",
					merged.Type(ctx), "' and '", c.Type(ctx), "' overlap.")
				continue
			}
			eft, eok := etype.(*typesystem.FunctionType)
			cft, cok := c.Type(ctx).(*typesystem.FunctionType)
			if eok && cok {
				if eft.Ret() != cft.Ret() && cft.Ret() != typesystem.Any && eft.Ret() != typesystem.Any {
					ctx.err(c.Line(), c.Column(), "Cannot create intersection; types '",
						etype, "' and '", cft, "' would result in ambiguous function.")
					continue
				}
				if eft.Ret() == typesystem.Any {
					etype = typesystem.Func(cft.Arg(), cft.Ret())
				}
			}
			in := NewIntersect(c.Line(), c.Column())
			in.lhs = merged
			in.rhs = c
			in.retype(ctx)
			merged = in
		}
		folded = append(folded, merged)
	}

	// rebuild the tree, instantiating the wildcard for non-total groups
	var result Value
	for _, member := range folded {
		if result == nil {
			result = member
		} else {
			in := NewIntersect(result.Line(), result.Column())
			in.lhs = result
			in.rhs = member
			in.retype(ctx)
			result = in
		}
		if ft, ok := result.Type(ctx).(*typesystem.FunctionType); ok && !ft.Total() && anyCase != nil {
			if anyLambda, isL := anyCase.(*Lambda); isL {
				in := NewIntersect(result.Line(), result.Column())
				in.lhs = result
				in.rhs = InstantiateAt(ctx, anyLambda, ft.Arg())
				in.retype(ctx)
				result = in
			}
		}
	}
	if anyCase != nil {
		if result == nil {
			result = anyCase
		} else {
			in := NewIntersect(result.Line(), result.Column())
			in.lhs = result
			in.rhs = anyCase
			in.retype(ctx)
			result = in
		}
	}

	resIn, ok := result.(*Intersect)
	if !ok {
		v.lhs = nil
		v.rhs = nil
		if result != nil {
			// a single member intersection degenerates to the member itself
			return result
		}
		v.setType(typesystem.Error)
		return v
	}
	v.lhs = resIn.lhs
	v.rhs = resIn.rhs
	resIn.lhs = nil
	resIn.rhs = nil
	v.retype(ctx)
	return v
}

func (v *Intersect) Fold(ctx *Stack) typesystem.Meta {
	t := v.Type(ctx)
	if t == typesystem.Error {
		return typesystem.Meta{}
	}
	if v.lhs == nil || v.rhs == nil {
		return typesystem.MetaFunction(t, v)
	}
	if _, ok := t.(*typesystem.FunctionType); ok {
		return typesystem.MetaFunction(t, v)
	}
	return typesystem.MetaIntersect(t, []typesystem.Meta{v.lhs.Fold(ctx), v.rhs.Fold(ctx)})
}

// BindRec distributes the recursive name into every lambda member.
func (v *Intersect) BindRec(name string, t typesystem.Type, value typesystem.Meta) {
	if v.lhs == nil || v.rhs == nil {
		return
	}
	for _, side := range []Value{v.lhs, v.rhs} {
		switch s := side.(type) {
		case *Lambda:
			s.BindRec(name, t, value)
		case *Intersect:
			s.BindRec(name, t, value)
		}
	}
}

func lambdaMatches(l *Lambda, ctx *Stack, value typesystem.Meta) typesystem.Constraint {
	ft, ok := l.Type(ctx).(*typesystem.FunctionType)
	if !ok {
		return typesystem.NoConstraint
	}
	return ft.Matches(value)
}

// CaseFor finds the best-matching lambda for a compile-time argument, by
// constraint precedence across the whole tree. Results are cached by the
// argument value.
func (v *Intersect) CaseFor(ctx *Stack, value typesystem.Meta) *Lambda {
	key := value.Hash()
	if l, ok := v.caseCache[key]; ok {
		return l
	}

	var l, r *Lambda
	left, right := typesystem.NoConstraint, typesystem.NoConstraint
	switch s := v.lhs.(type) {
	case *Lambda:
		l = s
		left = lambdaMatches(s, ctx, value)
	case *Intersect:
		l = s.CaseFor(ctx, value)
		if l != nil {
			if ft, ok := l.Type(ctx).(*typesystem.FunctionType); ok {
				left = typesystem.MaxMatch(ft.Constraints(), value)
			}
		}
	}
	switch s := v.rhs.(type) {
	case *Lambda:
		r = s
		right = lambdaMatches(s, ctx, value)
	case *Intersect:
		r = s.CaseFor(ctx, value)
		if r != nil {
			if ft, ok := r.Type(ctx).(*typesystem.FunctionType); ok {
				right = typesystem.MaxMatch(ft.Constraints(), value)
			}
		}
	}

	var pick *Lambda
	switch {
	case !left.Valid() && !right.Valid():
		return nil
	case left.Valid() && !right.Valid():
		pick = l
	case right.Valid() && !left.Valid():
		pick = r
	case left.Precedes(right):
		pick = l
	default:
		pick = r
	}
	v.caseCache[key] = pick
	return pick
}

// Gen synthesizes the dispatcher: the argument is compared against each
// EqualsValue constraint and jumps to that case's inlined body, falling
// through to the wildcard case.
func (v *Intersect) Gen(ctx *Stack, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	ft, ok := v.Type(ctx).(*typesystem.FunctionType)
	if !ok {
		return frame.None()
	}
	if v.label == "" {
		fn := gen.NewFunction()
		v.label = fn.LabelName()

		var cases []*Lambda
		v.lambdas(ctx, &cases)

		var constrained []*Lambda
		var wildcard *Lambda
		for _, l := range cases {
			lft, isFt := l.Type(ctx).(*typesystem.FunctionType)
			if !isFt {
				continue
			}
			equals := false
			for _, con := range lft.Constraints() {
				if con.Kind() == typesystem.EqualsValue {
					constrained = append(constrained, l)
					equals = true
					break
				}
			}
			if !equals {
				wildcard = l
			}
		}

		arg := fn.Stack(ft.Arg())
		fn.Add(ir.NewMovInsn(arg, gen.LocateArg(ft.Arg())))
		var retval *ir.Location
		if ft.Ret() == typesystem.Void {
			retval = frame.None()
		} else {
			retval = fn.Stack(ft.Ret())
		}

		end := gen.NewLabel()
		labels := make([]string, len(constrained))
		for i := range constrained {
			labels[i] = gen.NewLabel()
		}

		for i, l := range constrained {
			lft := l.Type(ctx).(*typesystem.FunctionType)
			for _, con := range lft.Constraints() {
				if con.Kind() != typesystem.EqualsValue {
					continue
				}
				if cv := genMeta(con.Value(), gen, fn); cv != nil {
					fn.Add(ir.NewIfEqualInsn(arg, cv, labels[i]))
				}
			}
		}

		if wildcard != nil {
			call := wildcard.GenInline(ctx, arg, gen, fn)
			if retval.Valid() && call.Valid() {
				fn.Add(ir.NewMovInsn(retval, call))
			}
		}
		fn.Add(ir.NewGotoInsn(end))

		for i, l := range constrained {
			fn.Add(ir.NewLabel(labels[i], false))
			call := l.GenInline(ctx, arg, gen, fn)
			if retval.Valid() && call.Valid() {
				fn.Add(ir.NewMovInsn(retval, call))
			}
			fn.Add(ir.NewGotoInsn(end))
		}

		fn.Add(ir.NewLabel(end, false))
		if retval.Valid() {
			ir.ValueOf(fn.Add(ir.NewRetInsn(retval)), gen, fn)
		}
	}
	loc := frame.Stack(v.Type(ctx))
	frame.Add(ir.NewLeaInsn(loc, v.label))
	return loc
}

// genMeta materializes a constant Meta as an IR location, for constraint
// comparisons.
func genMeta(m typesystem.Meta, gen *ir.CodeGenerator, frame ir.Frame) *ir.Location {
	switch {
	case m.IsInt(), m.IsChar():
		return ir.ValueOf(frame.Add(ir.NewIntData(m.AsInt())), gen, frame)
	case m.IsFloat():
		return ir.ValueOf(frame.Add(ir.NewFloatData(m.AsFloat())), gen, frame)
	case m.IsBool():
		return ir.ValueOf(frame.Add(ir.NewBoolData(m.AsBool())), gen, frame)
	case m.IsString():
		return ir.ValueOf(frame.Add(ir.NewStrData(m.AsString())), gen, frame)
	}
	return nil
}

func (v *Intersect) Format(w io.Writer, level int) {
	indent(w, level)
	fmt.Fprintln(w, "&")
	if v.lhs != nil {
		v.lhs.Format(w, level+1)
	}
	if v.rhs != nil {
		v.rhs.Format(w, level+1)
	}
}

func (v *Intersect) Clone(ctx *Stack) Value {
	n := NewIntersect(v.line, v.column)
	if v.lhs != nil {
		n.Apply(ctx, v.lhs)
	}
	if v.rhs != nil {
		n.Apply(ctx, v.rhs)
	}
	return n
}

func (v *Intersect) Repr() string { return binaryRepr("&", v.lhs, v.rhs) }

func (v *Intersect) Explore(visit func(Value)) {
	visit(v)
	if v.lhs != nil {
		v.lhs.Explore(visit)
	}
	if v.rhs != nil {
		v.rhs.Explore(visit)
	}
}
