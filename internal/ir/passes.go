package ir

import "github.com/funvibe/lattice/internal/typesystem"

// evaluateAll forces computation of every insn's output location.
func evaluateAll(gen *CodeGenerator, frame Frame, insns []Insn) {
	for _, i := range insns {
		ValueOf(i, gen, frame)
	}
}

// livenessPass computes in/out sets back to front. Control transfers union
// their target label's out-set, which only becomes complete on a later
// sweep, so sweeps repeat until no set grows.
func livenessPass(frame Frame, insns []Insn) {
	if len(insns) == 0 {
		return
	}
	empty := LocSet{}
	for {
		changed := false
		for i := len(insns) - 1; i >= 0; i-- {
			succ := empty
			if i < len(insns)-1 {
				succ = insns[i+1].In()
			}
			before := len(insns[i].In()) + len(insns[i].Out())
			revisit := insns[i].Liveout(frame, succ)
			if revisit || len(insns[i].In())+len(insns[i].Out()) != before {
				changed = true
			}
		}
		if !changed {
			break
		}
	}
}

// Register pools for allocation. rax and xmm7 are reserved as staging
// scratch for the emitter; rdx is clobbered by division; rsi/rdi carry
// C-ABI arguments.
var intPool = []Reg{RCX, RBX, R8, R9, R10, R11, R12, R13, R14, R15}
var floatPool = []Reg{XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6}

// allocationPass is the linear scan: at each insn, free registers whose
// values die there, then place each value born there into a free register
// of its class, spilling to a frame slot when the pool is dry.
func allocationPass(frame Frame, insns []Insn) {
	allocations := make([][]*Location, len(insns))
	frees := make([][]*Location, len(insns))

	for i, insn := range insns {
		for l := range insn.Out() {
			if l.Segm == Unassigned && !insn.In().has(l) {
				allocations[i] = append(allocations[i], l)
			}
		}
		for l := range insn.In() {
			if !insn.Out().has(l) {
				frees[i] = append(frees[i], l)
			}
		}
	}

	available := map[Reg]bool{}
	for _, r := range intPool {
		available[r] = true
	}
	fpAvailable := map[Reg]bool{}
	for _, r := range floatPool {
		fpAvailable[r] = true
	}

	for i := range insns {
		for _, l := range frees[i] {
			if l.Segm == Register {
				if l.Reg.IsXMM() {
					fpAvailable[l.Reg] = true
				} else {
					available[l.Reg] = true
				}
			}
		}
		for _, l := range allocations[i] {
			found := false
			if typesystem.IsFloating(l.Type) {
				for _, r := range floatPool {
					if fpAvailable[r] {
						l.AllocateReg(r)
						fpAvailable[r] = false
						found = true
						break
					}
				}
			} else if l.Type.Size() <= 8 {
				for _, r := range intPool {
					if available[r] {
						l.AllocateReg(r)
						available[r] = false
						found = true
						break
					}
				}
			}
			if !found {
				l.Allocate(Stack, -frame.Slot(l.Type))
			}
		}
	}
}

// postAllocationPass reserves backup slots for the registers that must be
// preserved across each call site.
func postAllocationPass(frame Frame, insns []Insn) {
	for _, insn := range insns {
		saved := 0
		switch insn.(type) {
		case *CallInsn, *CCallInsn, *PrintInsn:
		default:
			continue
		}
		for l := range insn.In() {
			if l.Segm == Register && insn.Out().has(l) {
				saved++
			}
		}
		frame.ReserveBackups(saved)
	}
}

// LiveRegistersAcross returns the register locations live through a call
// insn, in deterministic order; the emitter saves these around the call.
func LiveRegistersAcross(insn Insn) []*Location {
	var saved []*Location
	for l := range insn.In() {
		if l.Segm == Register && insn.Out().has(l) {
			saved = append(saved, l)
		}
	}
	// map order is random; sort by register id for deterministic emission
	for i := 1; i < len(saved); i++ {
		for j := i; j > 0 && saved[j-1].Reg > saved[j].Reg; j-- {
			saved[j-1], saved[j] = saved[j], saved[j-1]
		}
	}
	return saved
}
