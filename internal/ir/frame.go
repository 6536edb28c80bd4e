package ir

import (
	"fmt"
	"io"

	"github.com/funvibe/lattice/internal/typesystem"
)

// noneLoc is the shared invalid location frames hand out for insns without
// results.
var noneLoc = &Location{Segm: Invalid, Type: typesystem.Void}

// Frame owns an instruction list and the storage its values live in: either
// a compiled function or the top-level code generator.
type Frame interface {
	// Stack creates an unassigned location of the given type with a fresh
	// temporary name.
	Stack(t typesystem.Type) *Location
	// StackNamed creates an unassigned location with a given name.
	StackNamed(t typesystem.Type, name string) *Location
	// Slot bump-allocates a size-aligned stack slot, returning its offset
	// below rbp.
	Slot(t typesystem.Type) int64
	// Add appends an insn and returns it.
	Add(i Insn) Insn
	// Size is the current stack frame size in bytes.
	Size() int64
	// Label finds the label insn with the given name.
	Label(name string) Insn
	// ReserveBackups grows the backup-slot area to hold n saved registers.
	ReserveBackups(n int)
	// Backup returns the i-th backup slot.
	Backup(i int) *Location
	// RequireStack forces prologue emission even for empty frames.
	RequireStack()
	NeedsStack() bool
	// Returns records the frame's return type.
	Returns(t typesystem.Type)
	ReturnType() typesystem.Type
	// Insns exposes the instruction list for passes and emission.
	Insns() []Insn
	// None is the shared no-result location.
	None() *Location
}

// frameBase implements the storage bookkeeping shared by Function and
// CodeGenerator.
type frameBase struct {
	stack     int64
	temps     int
	insns     []Insn
	variables []*Location
	labels    map[string]*Label
	backups   []*Location
	reqStack  bool
	ret       typesystem.Type
}

func makeFrameBase() frameBase {
	return frameBase{labels: map[string]*Label{}, ret: typesystem.Void}
}

func (f *frameBase) stackNamed(owner Frame, t typesystem.Type, name string) *Location {
	loc := &Location{Segm: Unassigned, Type: t, Name: name, Env: owner}
	f.variables = append(f.variables, loc)
	return loc
}

func (f *frameBase) stackTemp(owner Frame, t typesystem.Type) *Location {
	name := fmt.Sprintf(".t%d", f.temps)
	f.temps++
	return f.stackNamed(owner, t, name)
}

func (f *frameBase) Slot(t typesystem.Type) int64 {
	size := int64(t.Size())
	if size == 0 {
		size = 1
	}
	if f.stack%size != 0 {
		f.stack += size - f.stack%size
	}
	f.stack += size
	return f.stack
}

func (f *frameBase) Add(i Insn) Insn {
	f.insns = append(f.insns, i)
	if l, ok := i.(*Label); ok {
		f.labels[l.Name] = l
	}
	return i
}

func (f *frameBase) Label(name string) Insn {
	if l, ok := f.labels[name]; ok {
		return l
	}
	return nil
}

func (f *frameBase) Size() int64 { return f.stack }

func (f *frameBase) reserveBackups(owner Frame, n int) {
	for len(f.backups) < n {
		f.backups = append(f.backups, &Location{
			Segm: Stack,
			Off:  -f.Slot(typesystem.I64),
			Type: typesystem.I64,
			Env:  owner,
		})
	}
}

func (f *frameBase) Backup(i int) *Location { return f.backups[i] }

func (f *frameBase) RequireStack()    { f.reqStack = true }
func (f *frameBase) NeedsStack() bool { return f.reqStack }

func (f *frameBase) Returns(t typesystem.Type)   { f.ret = t }
func (f *frameBase) ReturnType() typesystem.Type { return f.ret }

func (f *frameBase) Insns() []Insn { return f.insns }

func (f *frameBase) None() *Location { return noneLoc }

func (f *frameBase) killUnassigned() {
	for _, l := range f.variables {
		if l.Segm == Unassigned {
			l.Kill()
		}
	}
}

// Function is a compiled function's frame.
type Function struct {
	frameBase
	label string
	end   string
}

func (f *Function) Stack(t typesystem.Type) *Location {
	return f.stackTemp(f, t)
}

func (f *Function) StackNamed(t typesystem.Type, name string) *Location {
	return f.stackNamed(f, t, name)
}

func (f *Function) ReserveBackups(n int) { f.reserveBackups(f, n) }

// LabelName is the function's entry label.
func (f *Function) LabelName() string { return f.label }

// EndLabel is the label just past the function body.
func (f *Function) EndLabel() string { return f.end }

// Finalize re-evaluates the instruction list twice so lazily created
// constants and temporaries reach a fixpoint of location identity.
func (f *Function) Finalize(gen *CodeGenerator) {
	f.end = gen.NewLabel()
	if typesystem.ShouldAlloca(f.ret) {
		f.RequireStack()
	}
	evaluateAll(gen, f, f.insns)
	evaluateAll(gen, f, f.insns)
}

// Allocate runs liveness, register allocation, and backup reservation over
// the function body.
func (f *Function) Allocate() {
	livenessPass(f, f.insns)
	allocationPass(f, f.insns)
	postAllocationPass(f, f.insns)
	f.killUnassigned()
}

// Format writes the function's IR dump.
func (f *Function) Format(w io.Writer) {
	fmt.Fprintf(w, "%s:\n", f.label)
	for _, i := range f.insns {
		i.Format(w)
	}
}

// CodeGenerator is the top-level frame: it owns the functions, the data
// section, fresh labels, and the constant interning caches.
type CodeGenerator struct {
	frameBase
	data      int64
	labelCt   int
	datas     int
	dataSrcs  []DataInsn
	dataVars  []*Location
	functions []*Function

	intConsts   map[int64]*Location
	floatConsts map[float64]*Location
	strConsts   map[string]*Location
	boolTrue    *Location
	boolFalse   *Location

	argLocs map[typesystem.Type]*Location
	retLocs map[typesystem.Type]*Location
}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{
		frameBase:   makeFrameBase(),
		intConsts:   map[int64]*Location{},
		floatConsts: map[float64]*Location{},
		strConsts:   map[string]*Location{},
		argLocs:     map[typesystem.Type]*Location{},
		retLocs:     map[typesystem.Type]*Location{},
	}
}

func (g *CodeGenerator) Stack(t typesystem.Type) *Location {
	return g.stackTemp(g, t)
}

func (g *CodeGenerator) StackNamed(t typesystem.Type, name string) *Location {
	return g.stackNamed(g, t, name)
}

func (g *CodeGenerator) ReserveBackups(n int) { g.reserveBackups(g, n) }

// DataLoc reserves a named data-section location backed by src.
func (g *CodeGenerator) DataLoc(t typesystem.Type, src DataInsn) *Location {
	name := fmt.Sprintf(".g%d", g.datas)
	g.datas++
	g.dataSrcs = append(g.dataSrcs, src)
	loc := &Location{Segm: Data, Type: t, Imm: src, Name: name, Env: g}
	g.dataVars = append(g.dataVars, loc)
	return loc
}

// DataSrcs returns the constant definitions in creation order.
func (g *CodeGenerator) DataSrcs() []DataInsn { return g.dataSrcs }

// Functions returns the compiled functions in creation order.
func (g *CodeGenerator) Functions() []*Function { return g.functions }

// NewFunction creates a function frame with a fresh label.
func (g *CodeGenerator) NewFunction() *Function {
	return g.NewFunctionNamed(g.NewLabel())
}

// NewFunctionNamed creates a function frame with a specific label.
func (g *CodeGenerator) NewFunctionNamed(label string) *Function {
	f := &Function{frameBase: makeFrameBase(), label: label}
	g.functions = append(g.functions, f)
	return f
}

// NewLabel returns a fresh local label from the monotonically increasing
// counter.
func (g *CodeGenerator) NewLabel() string {
	name := fmt.Sprintf(".L%d", g.labelCt)
	g.labelCt++
	return name
}

func (g *CodeGenerator) internInt(i *IntData) *Location {
	if loc, ok := g.intConsts[i.Value]; ok {
		return loc
	}
	loc := g.DataLoc(typesystem.I64, i)
	g.intConsts[i.Value] = loc
	return loc
}

// internFloat interns the data-section constant; the insn stages the value
// into a stack temporary separately.
func (g *CodeGenerator) internFloat(i *FloatData) *Location {
	if loc, ok := g.floatConsts[i.Value]; ok {
		return loc
	}
	loc := g.DataLoc(typesystem.Double, i)
	g.floatConsts[i.Value] = loc
	return loc
}

// FloatConst returns the interned data location for a float value.
func (g *CodeGenerator) FloatConst(v float64) *Location {
	return g.floatConsts[v]
}

func (g *CodeGenerator) internString(i *StrData) *Location {
	if loc, ok := g.strConsts[i.Value]; ok {
		return loc
	}
	i.DataName = g.NewLabel()
	loc := g.DataLoc(typesystem.String, i)
	g.strConsts[i.Value] = loc
	return loc
}

func (g *CodeGenerator) internBool(i *BoolData) *Location {
	if i.Value {
		if g.boolTrue == nil {
			g.boolTrue = g.DataLoc(typesystem.Bool, i)
		}
		return g.boolTrue
	}
	if g.boolFalse == nil {
		g.boolFalse = g.DataLoc(typesystem.Bool, i)
	}
	return g.boolFalse
}

// LocateArg returns the ABI location a value of type t is passed in.
func (g *CodeGenerator) LocateArg(t typesystem.Type) *Location {
	if loc, ok := g.argLocs[t]; ok {
		return loc
	}
	var loc *Location
	if typesystem.IsFloating(t) {
		loc = InReg(XMM0, t)
	} else {
		loc = InReg(RDI, t)
	}
	g.argLocs[t] = loc
	return loc
}

// LocateRet returns the ABI location a value of type t is returned in.
func (g *CodeGenerator) LocateRet(t typesystem.Type) *Location {
	if loc, ok := g.retLocs[t]; ok {
		return loc
	}
	var loc *Location
	if typesystem.IsFloating(t) {
		loc = InReg(XMM0, t)
	} else {
		loc = InReg(RAX, t)
	}
	loc.Env = g
	g.retLocs[t] = loc
	return loc
}

// Finalize runs the two-pass fixpoint over every frame.
func (g *CodeGenerator) Finalize() {
	for _, f := range g.functions {
		f.Finalize(g)
	}
	evaluateAll(g, g, g.insns)
	evaluateAll(g, g, g.insns)
}

// Allocate lays out the data section, then allocates every frame.
func (g *CodeGenerator) Allocate() {
	for _, loc := range g.dataVars {
		loc.Allocate(Data, g.data)
		g.data += int64(loc.Type.Size())
	}
	for _, f := range g.functions {
		f.Allocate()
	}
	livenessPass(g, g.insns)
	allocationPass(g, g.insns)
	postAllocationPass(g, g.insns)
	g.killUnassigned()
}

// Format writes the whole-program IR dump.
func (g *CodeGenerator) Format(w io.Writer) {
	for _, f := range g.functions {
		f.Format(w)
	}
	fmt.Fprintln(w, ".main:")
	for _, i := range g.insns {
		i.Format(w)
	}
}
