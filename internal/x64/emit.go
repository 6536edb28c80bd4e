package x64

import (
	"bytes"

	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/typesystem"
)

// EmitProgram prints the whole program: data section with interned
// constants, the runtime prelude, every function, and the _start entry.
func EmitProgram(gen *ir.CodeGenerator, text, data *bytes.Buffer) {
	p := &printer{text: text, data: data}

	p.dataSection()
	for _, d := range gen.DataSrcs() {
		emitConst(p, gen, d)
	}

	p.textSection()
	prelude(p)
	for _, f := range gen.Functions() {
		emitFunction(p, gen, f)
	}
	p.label(true, "_start", true)

	rbp := ir.InReg(ir.RBP, typesystem.I64)
	rsp := ir.InReg(ir.RSP, typesystem.I64)
	p.mov(rsp, rbp)
	if gen.Size() > 0 {
		p.sub(ir.Imm(gen.Size()), rsp)
	}
	for _, i := range gen.Insns() {
		emitInsn(p, gen, i)
	}
	rax := ir.InReg(ir.RAX, typesystem.I64)
	rdi := ir.InReg(ir.RDI, typesystem.I64)
	p.mov(ir.Imm(60), rax)
	p.mov(ir.Imm(0), rdi)
	p.syscall()
}

func emitConst(p *printer, gen *ir.CodeGenerator, d ir.DataInsn) {
	switch c := d.(type) {
	case *ir.IntData:
		p.intConst(c.Value)
	case *ir.FloatData:
		p.label(false, gen.FloatConst(c.Value).Name, false)
		p.floatConst(c.Value)
	case *ir.StrData:
		length := len(c.Value)
		for length%8 != 0 {
			length++
		}
		p.label(false, c.Label(), false)
		p.intConst(int64(length))
		p.strConst(c.Value)
	case *ir.BoolData:
		if c.Value {
			p.intConst(1)
		} else {
			p.intConst(0)
		}
	}
}

// emitFunction prints the function's label, prologue, body, and epilogue.
// Functions returning large objects exit through the shared _memreturn
// helper instead of a plain ret.
func emitFunction(p *printer, gen *ir.CodeGenerator, f *ir.Function) {
	p.label(true, f.LabelName(), false)

	insns := f.Insns()
	i := 0
	for ; i < len(insns); i++ {
		if _, ok := insns[i].(*ir.Label); !ok {
			break
		}
		emitInsn(p, gen, insns[i])
	}

	rbp := ir.InReg(ir.RBP, typesystem.I64)
	rsp := ir.InReg(ir.RSP, typesystem.I64)

	framed := f.NeedsStack() || f.Size() > 0
	if framed {
		p.push(rbp)
		p.mov(rsp, rbp)
		if f.Size() > 0 {
			p.sub(ir.Imm(f.Size()), rsp)
		}
	}

	for ; i < len(insns); i++ {
		emitInsn(p, gen, insns[i])
	}

	if typesystem.ShouldAlloca(f.ReturnType()) {
		p.jmp("_memreturn")
	} else {
		if framed {
			p.mov(rbp, rsp)
			p.pop(rbp)
		}
		p.ret()
	}
}

// prelude defines the _memcpy and _memreturn helpers every program links
// against.
func prelude(p *printer) {
	rax := ir.InReg(ir.RAX, typesystem.I64)
	rcx := ir.InReg(ir.RCX, typesystem.I64)
	rbx := ir.InReg(ir.RBX, typesystem.I64)
	rdx := ir.InReg(ir.RDX, typesystem.I64)
	rdi := ir.InReg(ir.RDI, typesystem.I64)
	rsi := ir.InReg(ir.RSI, typesystem.I64)
	rbp := ir.InReg(ir.RBP, typesystem.I64)
	rsp := ir.InReg(ir.RSP, typesystem.I64)
	r15 := ir.InReg(ir.R15, typesystem.I64)
	eight := ir.Imm(8)
	relsi := ir.RegRel(ir.RSI, 0, typesystem.I64)
	reldi := ir.RegRel(ir.RDI, 0, typesystem.I64)

	// _memcpy copies quadwords from rsi to rdi for rdx bytes and jumps
	// back through r15.
	p.label(true, "_memcpy", false)
	p.mov(relsi, reldi)
	p.add(eight, rsi)
	p.add(eight, rdi)
	p.sub(eight, rdx)
	p.jcc("_memcpy", ir.CondGreater)
	p.jmpIndirect(r15)

	// _memreturn copies a length-prefixed result below the caller's frame
	// and resumes at the saved return address.
	prevbp := ir.RegRel(ir.RBP, 0, typesystem.I64)
	retaddr := ir.RegRel(ir.RBP, 8, typesystem.I64)
	rsisize := ir.RegRel(ir.RSI, 0, typesystem.I64)
	result := ir.RegRel(ir.RDI, 8, typesystem.I64)

	p.label(true, "_memreturn", false)
	p.mov(prevbp, rcx)
	p.mov(retaddr, rbx)
	p.mov(rax, rsi)
	p.mov(rsisize, rdx)
	p.add(rdx, rsi)
	p.lea(retaddr, rdi)
	p.add(eight, rdx)

	p.label(true, "_memreturn_loop", false)
	p.mov(relsi, reldi)
	p.sub(eight, rsi)
	p.sub(eight, rdi)
	p.sub(eight, rdx)
	p.jcc("_memreturn_loop", ir.CondGreater)
	p.lea(result, rax)
	p.mov(rax, rsp)
	p.mov(rcx, rbp)
	p.jmpIndirect(rbx)
}

// emitInsn prints one instruction.
func emitInsn(p *printer, gen *ir.CodeGenerator, insn ir.Insn) {
	switch i := insn.(type) {
	case *ir.FloatData:
		// stage the interned constant into this use's temporary
		if i.Cached().Valid() {
			p.mov(gen.FloatConst(i.Value), i.Cached())
		}
	case *ir.IntData, *ir.StrData, *ir.BoolData:
		// interned; referenced through their data locations
	case *ir.BinaryInsn:
		emitBinary(p, i)
	case *ir.CompareInsn:
		p.cmp(i.Rhs, i.Lhs)
		p.setcc(i.Cached(), i.Cond)
	case *ir.NotInsn:
		if !i.Cached().Valid() {
			return
		}
		p.mov(i.Operand, i.Cached())
		p.not(i.Cached())
	case *ir.JoinInsn:
		off := int64(0)
		for _, src := range i.Srcs {
			field := ir.Field(src.Type, i.Cached(), off, "")
			p.mov(src, field)
			off += int64(src.Type.Size())
		}
	case *ir.FieldInsn:
		tt := i.Src.Type.(*typesystem.TupleType)
		field := ir.Field(tt.Member(i.Index), i.Src, int64(tt.Offset(i.Index)), "")
		p.mov(field, i.Cached())
	case *ir.CastInsn:
		emitCast(p, i)
	case *ir.SizeofInsn:
		emitSizeof(p, i)
	case *ir.AllocaInsn:
		rsp := ir.InReg(ir.RSP, i.Cached().Type)
		p.sub(i.SizeLoc, rsp)
		p.mov(rsp, i.Cached())
	case *ir.MemcpyInsn:
		emitMemcpy(p, i)
	case *ir.GotoInsn:
		p.jmp(i.LabelName)
	case *ir.IfEqualInsn:
		p.cmp(i.Rhs, i.Lhs)
		p.jcc(i.LabelName, ir.CondEqual)
	case *ir.CallInsn:
		emitCall(p, i)
	case *ir.CCallInsn:
		emitCCall(p, i)
	case *ir.PrintInsn:
		emitPrint(p, i)
	case *ir.RetInsn:
		if typesystem.IsFloating(i.Operand.Type) {
			p.mov(i.Operand, ir.InReg(ir.XMM0, i.Operand.Type))
		} else {
			p.mov(i.Operand, ir.InReg(ir.RAX, i.Operand.Type))
		}
	case *ir.MovInsn:
		if i.Dst.Valid() && i.Src.Valid() {
			p.mov(i.Src, i.Dst)
		}
	case *ir.LeaInsn:
		if i.Dst.Valid() {
			p.leaLabel(i.LabelName, i.Dst)
		}
	case *ir.Label:
		p.label(true, i.Name, i.Global)
	}
}

func emitBinary(p *printer, i *ir.BinaryInsn) {
	if !i.Cached().Valid() {
		return
	}
	first, second := i.Lhs, i.Rhs
	if second.Equals(i.Cached()) {
		first, second = second, first
	}
	switch i.Op {
	case ir.OpAdd:
		p.mov(first, i.Cached())
		p.add(second, i.Cached())
	case ir.OpSub:
		p.mov(first, i.Cached())
		p.sub(second, i.Cached())
	case ir.OpMul:
		p.mov(first, i.Cached())
		if typesystem.IsFloating(i.Cached().Type) {
			p.mul(second, i.Cached())
		} else {
			p.imul(second, i.Cached())
		}
	case ir.OpDiv:
		emitDiv(p, i, first, second, false)
	case ir.OpMod:
		emitDiv(p, i, first, second, true)
	case ir.OpAnd:
		p.mov(first, i.Cached())
		p.and(second, i.Cached())
	case ir.OpOr:
		p.mov(first, i.Cached())
		p.or(second, i.Cached())
	case ir.OpXor:
		p.mov(first, i.Cached())
		p.xor(second, i.Cached())
	}
}

// emitDiv routes the dividend through rax with sign extension; mod takes
// the remainder from rdx. A divisor in the data section is staged through
// the destination first since idiv cannot take an immediate.
func emitDiv(p *printer, i *ir.BinaryInsn, first, second *ir.Location, mod bool) {
	if typesystem.IsFloating(i.Cached().Type) && !mod {
		p.mov(first, i.Cached())
		p.fdiv(second, i.Cached())
		return
	}
	rax := ir.InReg(ir.RAX, first.Type)
	rdx := ir.InReg(ir.RDX, first.Type)
	p.cdq()
	if second.Segm == ir.Data {
		p.mov(second, i.Cached())
		second = i.Cached()
	}
	p.mov(first, rax)
	p.idiv(second)
	if mod {
		p.mov(rdx, i.Cached())
	} else {
		p.mov(rax, i.Cached())
	}
}

func emitCast(p *printer, i *ir.CastInsn) {
	st, srcNum := i.Src.Type.(*typesystem.NumericType)
	nt, dstNum := i.Target.(*typesystem.NumericType)
	if !srcNum || !dstNum {
		// representation-preserving cast (reference deref handled by the
		// value layer; bool/char widenings copy)
		if i.Cached().Valid() && i.Src.Valid() {
			p.mov(i.Src, i.Cached())
		}
		return
	}
	src := i.Src
	if src.Segm == ir.Data {
		stage := ir.InReg(ir.RAX, i.Src.Type)
		if st.Floating() {
			stage = ir.InReg(ir.XMM7, i.Src.Type)
		}
		p.mov(src, stage)
		src = stage
	}
	switch {
	case st.Floating() && !nt.Floating():
		if st.Size() == 8 {
			p.cvttsd2si(src, i.Cached())
		} else {
			p.cvttss2si(src, i.Cached())
		}
	case !st.Floating() && nt.Floating():
		if nt.Size() == 8 {
			p.cvtsi2sd(src, i.Cached())
		} else {
			p.cvtsi2ss(src, i.Cached())
		}
	case st.Floating() && nt.Floating():
		if st.Size() == 4 && nt.Size() == 8 {
			p.cvtss2sd(src, i.Cached())
		} else if st.Size() == 8 && nt.Size() == 4 {
			p.cvtsd2ss(src, i.Cached())
		} else {
			p.mov(src, i.Cached())
		}
	default:
		if st.Size() >= nt.Size() {
			p.mov(src, i.Cached())
		} else if st.Signed() {
			p.movsx(src, i.Cached())
		} else {
			p.movzx(src, i.Cached())
		}
	}
}

func emitSizeof(p *printer, i *ir.SizeofInsn) {
	eight := ir.Imm(8)
	rax := ir.InReg(ir.RAX, typesystem.I64)
	var size *ir.Location
	switch i.Operand.Segm {
	case ir.Register:
		size = ir.RegRel(i.Operand.Reg, 0, typesystem.I64)
	case ir.Data:
		p.mov(i.Operand, rax)
		size = ir.RegRel(ir.RAX, 0, typesystem.I64)
	default:
		size = ir.Field(typesystem.I64, i.Operand, 0, i.Operand.Name+".size")
	}
	p.mov(size, i.Cached())
	p.add(eight, i.Cached())
}

func emitMemcpy(p *printer, i *ir.MemcpyInsn) {
	rdx := ir.InReg(ir.RDX, i.SizeLoc.Type)
	rdi := ir.InReg(ir.RDI, typesystem.I64)
	rsi := ir.InReg(ir.RSI, typesystem.I64)
	r15 := ir.InReg(ir.R15, typesystem.I64)
	p.mov(i.SizeLoc, rdx)
	p.mov(i.Dst, rdi)
	p.mov(i.Src, rsi)

	saveR15 := false
	for l := range i.In() {
		if l.Segm == ir.Register && l.Reg == ir.R15 {
			if _, live := i.Out()[l]; live {
				saveR15 = true
			}
		}
	}
	if saveR15 {
		p.push(r15)
	}
	p.leaLabel(i.Loop, r15)
	p.jmp("_memcpy")
	p.label(true, i.Loop, false)
	if saveR15 {
		p.pop(r15)
	}
}

// emitCall saves live registers into the frame's backup slots, marshals the
// argument, and moves the result out of the return register.
func emitCall(p *printer, i *ir.CallInsn) {
	saved := ir.LiveRegistersAcross(i)
	for n, l := range saved {
		backup := i.Home.Backup(n)
		backup.Type = l.Type
		p.mov(l, backup)
	}

	if typesystem.IsFloating(i.Operand.Type) {
		p.mov(i.Operand, ir.InReg(ir.XMM0, i.Operand.Type))
	} else {
		p.mov(i.Operand, ir.InReg(ir.RDI, i.Operand.Type))
	}
	p.callIndirect(i.Func)
	if i.Cached().Valid() {
		if typesystem.IsFloating(i.Cached().Type) {
			p.mov(ir.InReg(ir.XMM0, i.Cached().Type), i.Cached())
		} else {
			p.mov(ir.InReg(ir.RAX, i.Cached().Type), i.Cached())
		}
	}

	for n := len(saved) - 1; n >= 0; n-- {
		backup := i.Home.Backup(n)
		backup.Type = saved[n].Type
		p.mov(backup, saved[n])
	}
}

var intArgRegs = []ir.Reg{ir.RDI, ir.RSI, ir.RDX}
var floatArgRegs = []ir.Reg{ir.XMM0, ir.XMM1, ir.XMM2}

// emitCCall marshals up to three arguments with the C ABI, pushing live
// caller-saved registers around the call.
func emitCCall(p *printer, i *ir.CCallInsn) {
	saved := ir.LiveRegistersAcross(i)
	for _, l := range saved {
		p.push(l)
	}
	for n, a := range i.Args {
		if typesystem.IsFloating(a.Type) {
			p.mov(a, ir.InReg(floatArgRegs[n], a.Type))
		} else {
			p.mov(a, ir.InReg(intArgRegs[n], a.Type))
		}
	}
	p.call(i.Func)
	if i.Cached().Valid() {
		if typesystem.IsFloating(i.Cached().Type) {
			p.mov(ir.InReg(ir.XMM0, i.Cached().Type), i.Cached())
		} else {
			p.mov(ir.InReg(ir.RAX, i.Cached().Type), i.Cached())
		}
	}
	for n := len(saved) - 1; n >= 0; n-- {
		p.pop(saved[n])
	}
}

// emitPrint lowers to the typed runtime printers.
func emitPrint(p *printer, i *ir.PrintInsn) {
	helper := "_printi64"
	if typesystem.IsFloating(i.Src.Type) {
		helper = "_printf64"
	} else if i.Src.Type == typesystem.String {
		helper = "_printstr"
	}
	saved := ir.LiveRegistersAcross(i)
	for _, l := range saved {
		p.push(l)
	}
	if typesystem.IsFloating(i.Src.Type) {
		p.mov(i.Src, ir.InReg(ir.XMM0, i.Src.Type))
	} else {
		p.mov(i.Src, ir.InReg(ir.RDI, i.Src.Type))
	}
	p.call(helper)
	for n := len(saved) - 1; n >= 0; n-- {
		p.pop(saved[n])
	}
}
