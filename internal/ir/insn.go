package ir

import (
	"fmt"
	"io"

	"github.com/funvibe/lattice/internal/typesystem"
)

// LocSet is a liveness set.
type LocSet map[*Location]struct{}

func (s LocSet) add(l *Location)      { s[l] = struct{}{} }
func (s LocSet) remove(l *Location)   { delete(s, l) }
func (s LocSet) has(l *Location) bool { _, ok := s[l]; return ok }

// Insn is one IR instruction. Its output location is computed lazily and
// cached so the two finalize passes stabilize location identity.
type Insn interface {
	lazyValue(gen *CodeGenerator, frame Frame) *Location
	Cached() *Location
	setCached(l *Location)
	Format(w io.Writer)
	In() LocSet
	Out() LocSet
	// Liveout folds the successor's in-set into this insn's out-set and
	// recomputes the in-set; it returns true when predecessors must be
	// revisited (control transfers whose target sets grew).
	Liveout(frame Frame, out LocSet) bool
}

// ValueOf computes (or returns the cached) output location of an insn.
func ValueOf(i Insn, gen *CodeGenerator, frame Frame) *Location {
	if i.Cached() == nil {
		i.setCached(i.lazyValue(gen, frame))
	}
	return i.Cached()
}

// insnBase carries the cached location and liveness sets.
type insnBase struct {
	cached *Location
	in     LocSet
	out    LocSet
}

func makeBase() insnBase {
	return insnBase{in: LocSet{}, out: LocSet{}}
}

func (b *insnBase) Cached() *Location     { return b.cached }
func (b *insnBase) setCached(l *Location) { b.cached = l }
func (b *insnBase) In() LocSet            { return b.in }
func (b *insnBase) Out() LocSet           { return b.out }

// merge unions out into the out-set and seeds the in-set from it.
func (b *insnBase) merge(out LocSet) {
	for l := range out {
		b.out.add(l)
	}
	for l := range b.out {
		b.in.add(l)
	}
}

// DataInsn is a constant definition that lives in the data section.
type DataInsn interface {
	Insn
	ConstString() string
	Label() string
}

// IntData is an interned integer constant.
type IntData struct {
	insnBase
	Value int64
}

func NewIntData(v int64) *IntData { return &IntData{insnBase: makeBase(), Value: v} }

func (i *IntData) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return gen.internInt(i)
}

func (i *IntData) Format(w io.Writer) {}

func (i *IntData) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	return false
}

func (i *IntData) ConstString() string { return fmt.Sprintf("%d", i.Value) }
func (i *IntData) Label() string       { return "" }

// FloatData is an interned float constant; unlike the other constants its
// value is staged into a fresh stack temporary at each use.
type FloatData struct {
	insnBase
	Value float64
}

func NewFloatData(v float64) *FloatData { return &FloatData{insnBase: makeBase(), Value: v} }

func (i *FloatData) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	gen.internFloat(i)
	return frame.Stack(typesystem.Double)
}

func (i *FloatData) Format(w io.Writer) {
	fmt.Fprintf(w, "    %s = %v\n", i.cached, i.Value)
}

func (i *FloatData) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	i.in.remove(i.cached)
	return false
}

func (i *FloatData) ConstString() string { return fmt.Sprintf("%v", i.Value) }

func (i *FloatData) Label() string {
	if i.cached != nil {
		return i.cached.Name
	}
	return ""
}

// StrData is an interned string constant.
type StrData struct {
	insnBase
	Value    string
	DataName string
}

func NewStrData(v string) *StrData { return &StrData{insnBase: makeBase(), Value: v} }

func (i *StrData) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return gen.internString(i)
}

func (i *StrData) Format(w io.Writer) {}

func (i *StrData) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	return false
}

func (i *StrData) ConstString() string { return fmt.Sprintf("%q", i.Value) }
func (i *StrData) Label() string       { return i.DataName }

// BoolData is one of the two shared boolean constants.
type BoolData struct {
	insnBase
	Value bool
}

func NewBoolData(v bool) *BoolData { return &BoolData{insnBase: makeBase(), Value: v} }

func (i *BoolData) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return gen.internBool(i)
}

func (i *BoolData) Format(w io.Writer) {}

func (i *BoolData) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	return false
}

func (i *BoolData) ConstString() string {
	if i.Value {
		return "true"
	}
	return "false"
}

func (i *BoolData) Label() string { return "" }

// BinaryOp selects the operation of a BinaryInsn.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
)

var binaryOpNames = [...]string{"+", "-", "*", "/", "%", "and", "or", "xor"}

func (op BinaryOp) String() string { return binaryOpNames[op] }

// BinaryInsn computes a two-operand arithmetic or boolean operation into a
// fresh location of the left operand's type.
type BinaryInsn struct {
	insnBase
	Op  BinaryOp
	Lhs *Location
	Rhs *Location
}

func NewBinaryInsn(op BinaryOp, lhs, rhs *Location) *BinaryInsn {
	return &BinaryInsn{insnBase: makeBase(), Op: op, Lhs: lhs, Rhs: rhs}
}

func (i *BinaryInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return frame.Stack(i.Lhs.Type)
}

func (i *BinaryInsn) Format(w io.Writer) {
	fmt.Fprintf(w, "    %s = %s %s %s\n", i.cached, i.Lhs, i.Op, i.Rhs)
}

func (i *BinaryInsn) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	i.in.add(i.Lhs)
	i.in.add(i.Rhs)
	i.in.remove(i.cached)
	return false
}

// Condition selects a comparison predicate.
type Condition int

const (
	CondEqual Condition = iota
	CondNotEqual
	CondLess
	CondLessEqual
	CondGreater
	CondGreaterEqual
	CondZero
	CondNotZero
)

var conditionOps = [...]string{"==", "!=", "<", "<=", ">", ">=", "z", "nz"}

func (c Condition) String() string { return conditionOps[c] }

// CompareInsn computes a one-byte boolean from a comparison.
type CompareInsn struct {
	insnBase
	Cond Condition
	Lhs  *Location
	Rhs  *Location
}

func NewCompareInsn(cond Condition, lhs, rhs *Location) *CompareInsn {
	return &CompareInsn{insnBase: makeBase(), Cond: cond, Lhs: lhs, Rhs: rhs}
}

func (i *CompareInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return frame.Stack(typesystem.Bool)
}

func (i *CompareInsn) Format(w io.Writer) {
	fmt.Fprintf(w, "    %s = %s %s %s\n", i.cached, i.Lhs, i.Cond, i.Rhs)
}

func (i *CompareInsn) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	i.in.add(i.Lhs)
	i.in.add(i.Rhs)
	i.in.remove(i.cached)
	return false
}

// NotInsn computes boolean negation.
type NotInsn struct {
	insnBase
	Operand *Location
}

func NewNotInsn(operand *Location) *NotInsn {
	return &NotInsn{insnBase: makeBase(), Operand: operand}
}

func (i *NotInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return frame.Stack(i.Operand.Type)
}

func (i *NotInsn) Format(w io.Writer) {
	fmt.Fprintf(w, "    %s = not %s\n", i.cached, i.Operand)
}

func (i *NotInsn) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	i.in.add(i.Operand)
	i.in.remove(i.cached)
	return false
}

// JoinInsn packs member values into a tuple at their byte offsets.
type JoinInsn struct {
	insnBase
	Srcs   []*Location
	Result typesystem.Type
}

func NewJoinInsn(srcs []*Location, result typesystem.Type) *JoinInsn {
	return &JoinInsn{insnBase: makeBase(), Srcs: srcs, Result: result}
}

func (i *JoinInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return frame.Stack(i.Result)
}

func (i *JoinInsn) Format(w io.Writer) {
	fmt.Fprintf(w, "    %s =", i.cached)
	for n, src := range i.Srcs {
		if n > 0 {
			fmt.Fprint(w, ",")
		}
		fmt.Fprintf(w, " %s", src)
	}
	fmt.Fprintln(w)
}

func (i *JoinInsn) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	for _, src := range i.Srcs {
		i.in.add(src)
	}
	i.in.remove(i.cached)
	return false
}

// FieldInsn extracts a tuple member.
type FieldInsn struct {
	insnBase
	Src   *Location
	Index int
}

func NewFieldInsn(src *Location, index int) *FieldInsn {
	return &FieldInsn{insnBase: makeBase(), Src: src, Index: index}
}

func (i *FieldInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return frame.Stack(i.Src.Type.(*typesystem.TupleType).Member(i.Index))
}

func (i *FieldInsn) Format(w io.Writer) {
	fmt.Fprintf(w, "    %s = %s[%d]\n", i.cached, i.Src, i.Index)
}

func (i *FieldInsn) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	i.in.add(i.Src)
	i.in.remove(i.cached)
	return false
}

// CastInsn converts a value to the target type's representation.
type CastInsn struct {
	insnBase
	Src    *Location
	Target typesystem.Type
}

func NewCastInsn(src *Location, target typesystem.Type) *CastInsn {
	return &CastInsn{insnBase: makeBase(), Src: src, Target: target}
}

func (i *CastInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return frame.Stack(i.Target)
}

func (i *CastInsn) Format(w io.Writer) {
	fmt.Fprintf(w, "    %s = %s as %s\n", i.cached, i.Src, i.Target)
}

func (i *CastInsn) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	i.in.add(i.Src)
	i.in.remove(i.cached)
	return false
}

// SizeofInsn reads the length word of a runtime heap block.
type SizeofInsn struct {
	insnBase
	Operand *Location
}

func NewSizeofInsn(operand *Location) *SizeofInsn {
	return &SizeofInsn{insnBase: makeBase(), Operand: operand}
}

func (i *SizeofInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return frame.Stack(typesystem.I64)
}

func (i *SizeofInsn) Format(w io.Writer) {
	fmt.Fprintf(w, "    %s = sizeof %s\n", i.cached, i.Operand)
}

func (i *SizeofInsn) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	i.in.add(i.Operand)
	i.in.remove(i.cached)
	return false
}

// AllocaInsn reserves dynamic stack space.
type AllocaInsn struct {
	insnBase
	SizeLoc *Location
	Type    typesystem.Type
}

func NewAllocaInsn(size *Location, t typesystem.Type) *AllocaInsn {
	return &AllocaInsn{insnBase: makeBase(), SizeLoc: size, Type: t}
}

func (i *AllocaInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	frame.RequireStack()
	return frame.Stack(i.Type)
}

func (i *AllocaInsn) Format(w io.Writer) {
	fmt.Fprintf(w, "    %s = (%s) alloca %s\n", i.cached, i.Type, i.SizeLoc)
}

func (i *AllocaInsn) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	i.in.add(i.SizeLoc)
	i.in.remove(i.cached)
	return false
}

// MemcpyInsn copies a length-prefixed block through the _memcpy helper.
type MemcpyInsn struct {
	insnBase
	Dst     *Location
	Src     *Location
	SizeLoc *Location
	Loop    string // fresh label for the resume point
}

func NewMemcpyInsn(dst, src, size *Location, loop string) *MemcpyInsn {
	return &MemcpyInsn{insnBase: makeBase(), Dst: dst, Src: src, SizeLoc: size, Loop: loop}
}

func (i *MemcpyInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return frame.None()
}

func (i *MemcpyInsn) Format(w io.Writer) {
	fmt.Fprintf(w, "    memcpy(%s, %s, %s)\n", i.Dst, i.Src, i.SizeLoc)
}

func (i *MemcpyInsn) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	i.in.add(i.Dst)
	i.in.add(i.Src)
	i.in.add(i.SizeLoc)
	return false
}

// GotoInsn is an unconditional jump to a label in the same frame.
type GotoInsn struct {
	insnBase
	LabelName string
	revisit   bool
}

func NewGotoInsn(label string) *GotoInsn {
	return &GotoInsn{insnBase: makeBase(), LabelName: label, revisit: true}
}

func (i *GotoInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return frame.None()
}

func (i *GotoInsn) Format(w io.Writer) {
	fmt.Fprintf(w, "    goto %s\n", i.LabelName)
}

func (i *GotoInsn) Liveout(frame Frame, out LocSet) bool {
	before := len(i.out)
	i.merge(out)
	if target := frame.Label(i.LabelName); target != nil {
		i.merge(target.Out())
	}
	revisit := len(i.out) != before || i.revisit
	i.revisit = false
	return revisit
}

// IfEqualInsn jumps to a label when its operands compare equal.
type IfEqualInsn struct {
	insnBase
	Lhs       *Location
	Rhs       *Location
	LabelName string
	revisit   bool
}

func NewIfEqualInsn(lhs, rhs *Location, label string) *IfEqualInsn {
	return &IfEqualInsn{insnBase: makeBase(), Lhs: lhs, Rhs: rhs, LabelName: label, revisit: true}
}

func (i *IfEqualInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return frame.None()
}

func (i *IfEqualInsn) Format(w io.Writer) {
	fmt.Fprintf(w, "    if %s == %s: goto %s\n", i.Lhs, i.Rhs, i.LabelName)
}

func (i *IfEqualInsn) Liveout(frame Frame, out LocSet) bool {
	before := len(i.out)
	i.merge(out)
	if target := frame.Label(i.LabelName); target != nil {
		i.merge(target.Out())
	}
	i.in.add(i.Lhs)
	i.in.add(i.Rhs)
	revisit := len(i.out) != before || i.revisit
	i.revisit = false
	return revisit
}

// CallInsn calls a compiled function through its location, with the
// argument marshalled by the internal ABI.
type CallInsn struct {
	insnBase
	Operand *Location
	Func    *Location
	Home    Frame
}

func NewCallInsn(operand, fn *Location) *CallInsn {
	return &CallInsn{insnBase: makeBase(), Operand: operand, Func: fn}
}

func (i *CallInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	ft := i.Func.Type.(*typesystem.FunctionType)
	if ft.Ret() == typesystem.Void {
		return frame.None()
	}
	i.Home = frame
	return frame.Stack(ft.Ret())
}

func (i *CallInsn) Format(w io.Writer) {
	if i.cached.Valid() {
		fmt.Fprintf(w, "    %s = %s (%s)\n", i.cached, i.Func, i.Operand)
	} else {
		fmt.Fprintf(w, "    %s (%s)\n", i.Func, i.Operand)
	}
}

func (i *CallInsn) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	i.in.add(i.Func)
	i.in.add(i.Operand)
	i.in.remove(i.cached)
	return false
}

// CCallInsn calls a runtime helper with the C ABI.
type CCallInsn struct {
	insnBase
	Args []*Location
	Func string
	Ret  typesystem.Type
}

func NewCCallInsn(args []*Location, fn string, ret typesystem.Type) *CCallInsn {
	return &CCallInsn{insnBase: makeBase(), Args: args, Func: fn, Ret: ret}
}

func (i *CCallInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	if i.Ret == typesystem.Void {
		return frame.None()
	}
	return frame.Stack(i.Ret)
}

func (i *CCallInsn) Format(w io.Writer) {
	if i.cached.Valid() {
		fmt.Fprintf(w, "    %s = %s (", i.cached, i.Func)
	} else {
		fmt.Fprintf(w, "    %s (", i.Func)
	}
	for n, a := range i.Args {
		if n > 0 {
			fmt.Fprint(w, ", ")
		}
		fmt.Fprintf(w, "%s", a)
	}
	fmt.Fprintln(w, ")\t; stdlib call")
}

func (i *CCallInsn) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	for _, a := range i.Args {
		i.in.add(a)
	}
	i.in.remove(i.cached)
	return false
}

// PrintInsn writes a value to standard output through the typed runtime
// printers.
type PrintInsn struct {
	insnBase
	Src *Location
}

func NewPrintInsn(src *Location) *PrintInsn {
	return &PrintInsn{insnBase: makeBase(), Src: src}
}

func (i *PrintInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return frame.None()
}

func (i *PrintInsn) Format(w io.Writer) {
	fmt.Fprintf(w, "    print %s\n", i.Src)
}

func (i *PrintInsn) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	i.in.add(i.Src)
	return false
}

// RetInsn marks the frame's return value.
type RetInsn struct {
	insnBase
	Operand *Location
}

func NewRetInsn(operand *Location) *RetInsn {
	return &RetInsn{insnBase: makeBase(), Operand: operand}
}

func (i *RetInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	frame.Returns(i.Operand.Type)
	return frame.None()
}

func (i *RetInsn) Format(w io.Writer) {
	fmt.Fprintf(w, "    return %s\n", i.Operand)
}

func (i *RetInsn) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	i.in.add(i.Operand)
	return false
}

// MovInsn copies between locations.
type MovInsn struct {
	insnBase
	Dst *Location
	Src *Location
}

func NewMovInsn(dst, src *Location) *MovInsn {
	return &MovInsn{insnBase: makeBase(), Dst: dst, Src: src}
}

func (i *MovInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return frame.None()
}

func (i *MovInsn) Format(w io.Writer) {
	fmt.Fprintf(w, "    %s = %s\n", i.Dst, i.Src)
}

func (i *MovInsn) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	i.in.add(i.Src)
	i.in.remove(i.Dst)
	return false
}

// LeaInsn loads the address of a label.
type LeaInsn struct {
	insnBase
	Dst       *Location
	LabelName string
}

func NewLeaInsn(dst *Location, label string) *LeaInsn {
	return &LeaInsn{insnBase: makeBase(), Dst: dst, LabelName: label}
}

func (i *LeaInsn) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return frame.None()
}

func (i *LeaInsn) Format(w io.Writer) {
	fmt.Fprintf(w, "    %s = &%s\n", i.Dst, i.LabelName)
}

func (i *LeaInsn) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	i.in.remove(i.Dst)
	return false
}

// Label marks a jump target.
type Label struct {
	insnBase
	Name   string
	Global bool
}

func NewLabel(name string, global bool) *Label {
	return &Label{insnBase: makeBase(), Name: name, Global: global}
}

func (i *Label) lazyValue(gen *CodeGenerator, frame Frame) *Location {
	return frame.None()
}

func (i *Label) Format(w io.Writer) {
	fmt.Fprintf(w, "%s:\n", i.Name)
}

func (i *Label) Liveout(frame Frame, out LocSet) bool {
	i.merge(out)
	return false
}
