// Package x64 prints AT&T-syntax assembly from the IR. Operand size
// suffixes derive from operand types; memory-to-memory operations stage
// through rax (xmm7 for floats), and conversions through rax or xmm7.
package x64

import (
	"bytes"
	"fmt"

	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/typesystem"
)

// Size is the operand width class selecting the instruction suffix.
type Size int

const (
	SizeVoid Size = iota
	SizeByte
	SizeWord
	SizeDword
	SizeQword
	SizeSingle
	SizeDouble
	SizeError
)

// TypeSize maps a type to its operand width class.
func TypeSize(t typesystem.Type) Size {
	switch t.Size() {
	case 0:
		return SizeVoid
	case 1:
		return SizeByte
	case 2:
		return SizeWord
	case 4:
		if typesystem.IsFloating(t) {
			return SizeSingle
		}
		return SizeDword
	case 8:
		if typesystem.IsFloating(t) {
			return SizeDouble
		}
		return SizeQword
	}
	return SizeError
}

var conditionNames = [...]string{"e", "ne", "l", "le", "g", "ge", "z", "nz"}

func condName(c ir.Condition) string {
	return conditionNames[c]
}

// printer accumulates the text and data sections.
type printer struct {
	text *bytes.Buffer
	data *bytes.Buffer
}

func (p *printer) indent() {
	p.text.WriteString("    ")
}

func suffix(kind Size) string {
	switch kind {
	case SizeByte:
		return "b"
	case SizeWord:
		return "w"
	case SizeDword:
		return "l"
	case SizeQword:
		return "q"
	case SizeSingle:
		return "ss"
	case SizeDouble:
		return "sd"
	}
	return ""
}

// regName renders a register at the given width.
func regName(r ir.Reg, kind Size) string {
	if r.IsXMM() {
		return fmt.Sprintf("%%xmm%d", int(r-ir.XMM0))
	}
	name := r.Name()
	switch r {
	case ir.RAX, ir.RCX, ir.RDX, ir.RBX:
		letter := string(name[1])
		switch kind {
		case SizeQword:
			return "%r" + letter + "x"
		case SizeDword:
			return "%e" + letter + "x"
		case SizeByte:
			return "%" + letter + "l"
		default:
			return "%" + letter + "x"
		}
	case ir.RBP, ir.RSP, ir.RSI, ir.RDI:
		stem := name[1:]
		switch kind {
		case SizeQword:
			return "%r" + stem
		case SizeDword:
			return "%e" + stem
		case SizeByte:
			return "%" + stem + "l"
		default:
			return "%" + stem
		}
	default:
		switch kind {
		case SizeDword:
			return "%" + name + "d"
		case SizeWord:
			return "%" + name + "w"
		case SizeByte:
			return "%" + name + "b"
		default:
			return "%" + name
		}
	}
}

// dataArg renders a data-section constant operand: interned ints and bools
// are immediates, strings are address immediates, floats memory operands.
func dataArg(loc *ir.Location) string {
	switch imm := loc.Imm.(type) {
	case *ir.IntData:
		return fmt.Sprintf("$%d", imm.Value)
	case *ir.FloatData:
		return loc.Name
	case *ir.StrData:
		return "$" + imm.Label()
	case *ir.BoolData:
		if imm.Value {
			return "$1"
		}
		return "$0"
	}
	return loc.Name
}

// arg renders an operand.
func arg(loc *ir.Location) string {
	switch {
	case loc.Imm != nil:
		return dataArg(loc)
	case loc.Segm == ir.Immediate:
		return fmt.Sprintf("$%d", loc.Off)
	case loc.Segm == ir.Stack:
		return fmt.Sprintf("%d(%%rbp)", loc.Off)
	case loc.Segm == ir.Register:
		return regName(loc.Reg, TypeSize(loc.Type))
	case loc.Segm == ir.RegisterRelative:
		return fmt.Sprintf("%d(%s)", loc.Off, regName(loc.Reg, SizeQword))
	case loc.Segm == ir.Relative:
		base := loc.Base
		switch base.Segm {
		case ir.Stack:
			return arg(ir.OnStack(base.Off+loc.Off, loc.Type))
		case ir.RegisterRelative:
			return arg(ir.RegRel(base.Reg, base.Off+loc.Off, loc.Type))
		case ir.Register:
			return arg(ir.RegRel(base.Reg, loc.Off, loc.Type))
		}
	}
	return ""
}

func (p *printer) intConst(value int64) {
	fmt.Fprintf(p.data, "    .quad %d\n", value)
}

func (p *printer) floatConst(value float64) {
	fmt.Fprintf(p.data, "    .double %v\n", value)
}

func (p *printer) strConst(value string) {
	escaped := escapeAsm(value)
	pad := len(value)
	for pad%8 != 0 {
		escaped += "\\0"
		pad++
	}
	fmt.Fprintf(p.data, "    .ascii \"%s\"\n", escaped)
}

func escapeAsm(s string) string {
	var out bytes.Buffer
	for _, r := range s {
		switch r {
		case '\n':
			out.WriteString("\\n")
		case '\t':
			out.WriteString("\\t")
		case '\r':
			out.WriteString("\\r")
		case '"':
			out.WriteString("\\\"")
		case '\\':
			out.WriteString("\\\\")
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}

func (p *printer) textSection() {
	p.text.WriteString(".text\n")
}

func (p *printer) dataSection() {
	p.data.WriteString(".data\n")
}

func (p *printer) label(inText bool, name string, global bool) {
	buf := p.data
	if inText {
		buf = p.text
	}
	if global {
		fmt.Fprintf(buf, ".global %s\n", name)
	}
	fmt.Fprintf(buf, "%s:\n", name)
}

// binary emits a sized two-operand instruction, staging through rax when
// neither operand is a register.
func (p *printer) binary(opcode string, src, dst *ir.Location, sized bool) {
	if dst.Segm == ir.Immediate || dst.Imm != nil {
		src, dst = dst, src
	}
	if src.Segm == ir.Register || dst.Segm == ir.Register {
		p.indent()
		if sized {
			fmt.Fprintf(p.text, "%s%s %s, %s\n", opcode, suffix(TypeSize(src.Type)), arg(src), arg(dst))
		} else {
			fmt.Fprintf(p.text, "%s %s, %s\n", opcode, arg(src), arg(dst))
		}
		return
	}
	// stage memory-to-memory through scratch: rax, or xmm7 for floats
	stage := ir.InReg(ir.RAX, src.Type)
	if typesystem.IsFloating(src.Type) {
		stage = ir.InReg(ir.XMM7, src.Type)
	}
	p.mov(src, stage)
	p.binary(opcode, stage, dst, sized)
}

func (p *printer) mov(src, dst *ir.Location) {
	if src.Equals(dst) {
		return
	}
	p.binary("mov", src, dst, true)
}

func (p *printer) add(src, dst *ir.Location) { p.binary("add", src, dst, true) }
func (p *printer) sub(src, dst *ir.Location) { p.binary("sub", src, dst, true) }
func (p *printer) cmp(src, dst *ir.Location) { p.binary("cmp", src, dst, true) }
func (p *printer) and(src, dst *ir.Location) { p.binary("and", src, dst, true) }
func (p *printer) or(src, dst *ir.Location)  { p.binary("or", src, dst, true) }
func (p *printer) xor(src, dst *ir.Location) { p.binary("xor", src, dst, true) }

func (p *printer) movsx(src, dst *ir.Location) { p.binary("movsx", src, dst, false) }
func (p *printer) movzx(src, dst *ir.Location) { p.binary("movzx", src, dst, false) }

// imul requires a register target; a memory destination is computed into
// rax then stored.
func (p *printer) imul(src, dst *ir.Location) { p.mulLike("imul", src, dst) }
func (p *printer) mul(src, dst *ir.Location)  { p.mulLike("mul", src, dst) }

func (p *printer) mulLike(opcode string, src, dst *ir.Location) {
	target := dst
	if dst.Segm != ir.Register {
		target = ir.InReg(ir.RAX, dst.Type)
		p.mov(dst, target)
	}
	p.binary(opcode, src, target, true)
	if target != dst {
		p.mov(target, dst)
	}
}

func (p *printer) idiv(src *ir.Location) {
	p.indent()
	fmt.Fprintf(p.text, "idiv%s %s\n", suffix(TypeSize(src.Type)), arg(src))
}

func (p *printer) fdiv(src, dst *ir.Location) { p.binary("div", src, dst, true) }

func (p *printer) not(operand *ir.Location) {
	p.indent()
	fmt.Fprintf(p.text, "not%s %s\n", suffix(TypeSize(operand.Type)), arg(operand))
}

// cvt emits a conversion, staging a memory destination through rax or xmm7
// depending on the destination class.
func (p *printer) cvt(opcode string, src, dst *ir.Location, sized bool) {
	target := dst
	if dst.Segm != ir.Register {
		if typesystem.IsFloating(dst.Type) {
			target = ir.InReg(ir.XMM7, dst.Type)
		} else {
			target = ir.InReg(ir.RAX, dst.Type)
		}
	}
	p.binary(opcode, src, target, sized)
	if target != dst {
		p.mov(target, dst)
	}
}

func (p *printer) cvttsd2si(src, dst *ir.Location) { p.cvt("cvttsd2si", src, dst, true) }
func (p *printer) cvttss2si(src, dst *ir.Location) { p.cvt("cvttss2si", src, dst, true) }
func (p *printer) cvtsd2ss(src, dst *ir.Location)  { p.cvt("cvtsd2ss", src, dst, false) }
func (p *printer) cvtss2sd(src, dst *ir.Location)  { p.cvt("cvtss2sd", src, dst, false) }
func (p *printer) cvtsi2sd(src, dst *ir.Location)  { p.cvt("cvtsi2sd", src, dst, true) }
func (p *printer) cvtsi2ss(src, dst *ir.Location)  { p.cvt("cvtsi2ss", src, dst, true) }

// leaLabel loads a label's address RIP-relative, staging a memory
// destination through rax.
func (p *printer) leaLabel(label string, dst *ir.Location) {
	target := dst
	if dst.Segm != ir.Register {
		target = ir.InReg(ir.RAX, dst.Type)
	}
	p.indent()
	fmt.Fprintf(p.text, "lea%s %s(%%rip), %s\n", suffix(TypeSize(dst.Type)), label, arg(target))
	if target != dst {
		p.mov(target, dst)
	}
}

func (p *printer) lea(addr, dst *ir.Location) {
	target := dst
	if dst.Segm != ir.Register {
		target = ir.InReg(ir.RAX, dst.Type)
	}
	p.indent()
	fmt.Fprintf(p.text, "lea%s %s, %s\n", suffix(TypeSize(dst.Type)), arg(addr), arg(target))
	if target != dst {
		p.mov(target, dst)
	}
}

func (p *printer) jmpIndirect(addr *ir.Location) {
	p.indent()
	fmt.Fprintf(p.text, "jmp *%s\n", arg(addr))
}

func (p *printer) jmp(label string) {
	p.indent()
	fmt.Fprintf(p.text, "jmp %s\n", label)
}

func (p *printer) jcc(label string, cond ir.Condition) {
	p.indent()
	fmt.Fprintf(p.text, "j%s %s\n", condName(cond), label)
}

func (p *printer) setcc(dst *ir.Location, cond ir.Condition) {
	p.indent()
	fmt.Fprintf(p.text, "set%s %s\n", condName(cond), arg(dst))
}

func (p *printer) syscall() {
	p.indent()
	p.text.WriteString("syscall\n")
}

func (p *printer) ret() {
	p.indent()
	p.text.WriteString("ret\n")
}

func (p *printer) callIndirect(fn *ir.Location) {
	p.indent()
	fmt.Fprintf(p.text, "callq *%s\n", arg(fn))
}

func (p *printer) call(fn string) {
	p.indent()
	fmt.Fprintf(p.text, "callq %s\n", fn)
}

func (p *printer) push(src *ir.Location) {
	p.indent()
	fmt.Fprintf(p.text, "push%s %s\n", suffix(TypeSize(src.Type)), arg(src))
}

func (p *printer) pop(dst *ir.Location) {
	p.indent()
	fmt.Fprintf(p.text, "pop%s %s\n", suffix(TypeSize(dst.Type)), arg(dst))
}

func (p *printer) cdq() {
	p.indent()
	p.text.WriteString("cdq\n")
}
