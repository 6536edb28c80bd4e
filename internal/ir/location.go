// Package ir is the linear intermediate representation: typed storage
// locations, an instruction list per frame, and the liveness and register
// allocation passes that assign locations before emission.
package ir

import (
	"github.com/funvibe/lattice/internal/typesystem"
)

// Segment classifies a Location's storage.
type Segment int

const (
	Invalid Segment = iota
	Unassigned
	Stack
	Data
	Register
	RegisterRelative
	Immediate
	Relative
)

// Reg is an x86-64 register id. XMM registers start at 32 so integer and
// float pools stay disjoint.
type Reg int

const (
	RAX Reg = 0
	RCX Reg = 1
	RDX Reg = 2
	RBX Reg = 3
	RSP Reg = 4
	RBP Reg = 5
	RSI Reg = 6
	RDI Reg = 7
	R8  Reg = 8
	R9  Reg = 9
	R10 Reg = 10
	R11 Reg = 11
	R12 Reg = 12
	R13 Reg = 13
	R14 Reg = 14
	R15 Reg = 15

	XMM0 Reg = 32
	XMM1 Reg = 33
	XMM2 Reg = 34
	XMM3 Reg = 35
	XMM4 Reg = 36
	XMM5 Reg = 37
	XMM6 Reg = 38
	XMM7 Reg = 39

	NoReg Reg = 64
)

var registerNames = map[Reg]string{
	RAX: "rax", RCX: "rcx", RDX: "rdx", RBX: "rbx",
	RSP: "rsp", RBP: "rbp", RSI: "rsi", RDI: "rdi",
	R8: "r8", R9: "r9", R10: "r10", R11: "r11",
	R12: "r12", R13: "r13", R14: "r14", R15: "r15",
	XMM0: "xmm0", XMM1: "xmm1", XMM2: "xmm2", XMM3: "xmm3",
	XMM4: "xmm4", XMM5: "xmm5", XMM6: "xmm6", XMM7: "xmm7",
	NoReg: "NONE",
}

// Name returns the canonical 64-bit register name.
func (r Reg) Name() string {
	if n, ok := registerNames[r]; ok {
		return n
	}
	return ""
}

// IsXMM reports whether r is a vector register.
func (r Reg) IsXMM() bool { return r >= XMM0 && r <= XMM7 }

// Location is a tagged reference to a value's storage. Before allocation
// most locations are Unassigned; the allocator rewrites them to registers or
// stack slots in place, so every holder observes the assignment.
type Location struct {
	Segm Segment
	Off  int64
	Reg  Reg
	Type typesystem.Type
	Imm  DataInsn  // backing constant for Data locations
	Base *Location // base location for Relative
	Name string
	Env  Frame // owning frame
}

// Imm returns an immediate-operand location.
func Imm(v int64) *Location {
	return &Location{Segm: Immediate, Off: v, Type: typesystem.I64}
}

// InReg returns a register location of the given type.
func InReg(r Reg, t typesystem.Type) *Location {
	return &Location{Segm: Register, Reg: r, Type: t}
}

// RegRel returns a register-relative memory location.
func RegRel(r Reg, off int64, t typesystem.Type) *Location {
	return &Location{Segm: RegisterRelative, Reg: r, Off: off, Type: t}
}

// OnStack returns an rbp-relative stack location.
func OnStack(off int64, t typesystem.Type) *Location {
	return &Location{Segm: Stack, Off: off, Type: t}
}

// Field returns a location at a byte offset within base.
func Field(t typesystem.Type, base *Location, off int64, name string) *Location {
	return &Location{Segm: Relative, Off: off, Type: t, Base: base, Name: name}
}

// Valid reports whether the location refers to real storage.
func (l *Location) Valid() bool {
	if l == nil || l.Segm == Invalid {
		return false
	}
	if l.Segm == Relative {
		return l.Base.Valid()
	}
	return true
}

// Allocate assigns the location to a segment and offset.
func (l *Location) Allocate(segm Segment, off int64) {
	l.Segm = segm
	l.Off = off
}

// AllocateReg assigns the location to a register.
func (l *Location) AllocateReg(r Reg) {
	l.Segm = Register
	l.Reg = r
}

// Kill marks the location invalid; emission skips dead operands.
func (l *Location) Kill() {
	l.Segm = Invalid
}

// Equals is structural identity on (segment, offset, register, base).
func (l *Location) Equals(o *Location) bool {
	if l == nil || o == nil {
		return l == o
	}
	if l.Segm != o.Segm {
		return false
	}
	switch l.Segm {
	case Stack, Immediate, Data:
		return l.Off == o.Off
	case Register:
		return l.Reg == o.Reg
	case RegisterRelative:
		return l.Off == o.Off && l.Reg == o.Reg
	case Relative:
		return l.Base.Equals(o.Base) && l.Off == o.Off
	case Unassigned, Invalid:
		return true
	}
	return false
}

// String renders the location for the IR dump.
func (l *Location) String() string {
	switch {
	case l == nil:
		return "<none>"
	case l.Imm != nil:
		return l.Imm.ConstString()
	case l.Segm == Relative:
		return l.Base.Name + "." + l.Name
	case l.Name != "":
		return l.Name
	case l.Segm == Register:
		return l.Reg.Name()
	}
	return "?"
}
