package ir

import (
	"testing"

	"github.com/funvibe/lattice/internal/typesystem"
)

func TestConstantInterning(t *testing.T) {
	gen := NewCodeGenerator()
	a := ValueOf(gen.Add(NewIntData(42)), gen, gen)
	b := ValueOf(gen.Add(NewIntData(42)), gen, gen)
	if a != b {
		t.Errorf("equal int constants should share one location")
	}
	c := ValueOf(gen.Add(NewIntData(7)), gen, gen)
	if a == c {
		t.Errorf("distinct int constants should not share a location")
	}

	s1 := ValueOf(gen.Add(NewStrData("hi")), gen, gen)
	s2 := ValueOf(gen.Add(NewStrData("hi")), gen, gen)
	if s1 != s2 {
		t.Errorf("equal string constants should share one location")
	}

	bt := ValueOf(gen.Add(NewBoolData(true)), gen, gen)
	bf := ValueOf(gen.Add(NewBoolData(false)), gen, gen)
	bt2 := ValueOf(gen.Add(NewBoolData(true)), gen, gen)
	if bt != bt2 || bt == bf {
		t.Errorf("boolean constants should intern to two locations")
	}
}

func TestNewLabelMonotonic(t *testing.T) {
	gen := NewCodeGenerator()
	a := gen.NewLabel()
	b := gen.NewLabel()
	if a == b {
		t.Errorf("labels should be unique, got %s twice", a)
	}
	if a != ".L0" || b != ".L1" {
		t.Errorf("labels should count up from .L0, got %s %s", a, b)
	}
}

func TestSlotAlignment(t *testing.T) {
	fn := NewCodeGenerator().NewFunction()
	fn.Slot(typesystem.I8)
	off := fn.Slot(typesystem.I64)
	if off%8 != 0 {
		t.Errorf("slot for i64 should be 8-aligned, got %d", off)
	}
}

// buildStraightLine assembles a small frame: three binary ops whose
// intermediates overlap.
func buildStraightLine(gen *CodeGenerator, fn *Function) []*Location {
	one := ValueOf(fn.Add(NewIntData(1)), gen, fn)
	two := ValueOf(fn.Add(NewIntData(2)), gen, fn)
	a := ValueOf(fn.Add(NewBinaryInsn(OpAdd, one, two)), gen, fn)
	b := ValueOf(fn.Add(NewBinaryInsn(OpMul, a, two)), gen, fn)
	c := ValueOf(fn.Add(NewBinaryInsn(OpSub, a, b)), gen, fn)
	ValueOf(fn.Add(NewRetInsn(c)), gen, fn)
	return []*Location{a, b, c}
}

func TestAllocationAssignsRegisters(t *testing.T) {
	gen := NewCodeGenerator()
	fn := gen.NewFunction()
	locs := buildStraightLine(gen, fn)
	fn.Finalize(gen)
	fn.Allocate()
	for i, l := range locs {
		if l.Segm != Register && l.Segm != Stack {
			t.Errorf("temporary %d left unallocated: segment %v", i, l.Segm)
		}
	}
}

func TestAllocationSoundness(t *testing.T) {
	gen := NewCodeGenerator()
	fn := gen.NewFunction()
	buildStraightLine(gen, fn)
	fn.Finalize(gen)
	fn.Allocate()

	// at no instruction may two simultaneously live locations share a
	// register
	for _, insn := range fn.Insns() {
		seen := map[Reg]*Location{}
		for l := range insn.In() {
			if l.Segm != Register {
				continue
			}
			if other, ok := seen[l.Reg]; ok && other != l {
				t.Fatalf("register %s assigned to two live values", l.Reg.Name())
			}
			seen[l.Reg] = l
		}
	}
}

func TestLivenessThroughBranch(t *testing.T) {
	gen := NewCodeGenerator()
	fn := gen.NewFunction()

	counter := fn.StackNamed(typesystem.I64, "counter")
	step := fn.StackNamed(typesystem.I64, "step")
	one := ValueOf(fn.Add(NewIntData(1)), gen, fn)
	fn.Add(NewMovInsn(counter, one))
	fn.Add(NewMovInsn(step, one))
	fn.Add(NewLabel(".Lloop", false))
	sum := ValueOf(fn.Add(NewBinaryInsn(OpAdd, counter, step)), gen, fn)
	fn.Add(NewMovInsn(counter, sum))
	fn.Add(NewGotoInsn(".Lloop"))
	fn.Add(NewLabel(".Lend", false))
	ValueOf(fn.Add(NewRetInsn(counter)), gen, fn)
	fn.Finalize(gen)
	fn.Allocate()

	// both loop variables are live around the back edge, so the goto must
	// carry them in its in-set
	var goto_ *GotoInsn
	for _, insn := range fn.Insns() {
		if g, ok := insn.(*GotoInsn); ok {
			goto_ = g
		}
	}
	for _, loc := range []*Location{counter, step} {
		if _, live := goto_.In()[loc]; !live {
			t.Errorf("back edge should keep %s live", loc.Name)
		}
		if loc.Segm == Unassigned || loc.Segm == Invalid {
			t.Errorf("%s should have storage, got segment %v", loc.Name, loc.Segm)
		}
	}
}

func TestBackupReservation(t *testing.T) {
	gen := NewCodeGenerator()
	fn := gen.NewFunction()

	fnType := typesystem.Func(typesystem.I64, typesystem.I64)
	callee := fn.StackNamed(fnType, "callee")
	arg := ValueOf(fn.Add(NewIntData(5)), gen, fn)
	live := ValueOf(fn.Add(NewBinaryInsn(OpAdd, arg, arg)), gen, fn)
	call := ValueOf(fn.Add(NewCallInsn(arg, callee)), gen, fn)
	after := ValueOf(fn.Add(NewBinaryInsn(OpAdd, live, call)), gen, fn)
	ValueOf(fn.Add(NewRetInsn(after)), gen, fn)

	fn.Finalize(gen)
	fn.Allocate()

	saved := 0
	for _, insn := range fn.Insns() {
		if c, ok := insn.(*CallInsn); ok {
			saved = len(LiveRegistersAcross(c))
		}
	}
	if saved == 0 {
		t.Fatalf("a value live across the call should be register-allocated")
	}
	// the frame must hold one backup slot per preserved register
	for i := 0; i < saved; i++ {
		b := fn.Backup(i)
		if b.Segm != Stack {
			t.Errorf("backup slot %d not on the stack", i)
		}
	}
}

func TestLocationEquality(t *testing.T) {
	tests := []struct {
		name string
		a    *Location
		b    *Location
		want bool
	}{
		{"same register", InReg(RAX, typesystem.I64), InReg(RAX, typesystem.I32), true},
		{"different register", InReg(RAX, typesystem.I64), InReg(RCX, typesystem.I64), false},
		{"same stack slot", OnStack(-8, typesystem.I64), OnStack(-8, typesystem.Bool), true},
		{"different stack slot", OnStack(-8, typesystem.I64), OnStack(-16, typesystem.I64), false},
		{"same immediate", Imm(4), Imm(4), true},
		{"register vs stack", InReg(RAX, typesystem.I64), OnStack(-8, typesystem.I64), false},
		{"register relative", RegRel(RBP, 8, typesystem.I64), RegRel(RBP, 8, typesystem.I64), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equals(tt.b); got != tt.want {
				t.Errorf("Equals = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrameRequiresStack(t *testing.T) {
	gen := NewCodeGenerator()
	fn := gen.NewFunction()
	if fn.NeedsStack() {
		t.Errorf("fresh frame should not need a stack")
	}
	size := ValueOf(fn.Add(NewIntData(16)), gen, fn)
	ValueOf(fn.Add(NewAllocaInsn(size, typesystem.String)), gen, fn)
	if !fn.NeedsStack() {
		t.Errorf("alloca should force the prologue")
	}
}
