package x64

import (
	"bytes"
	"strings"
	"testing"

	"github.com/funvibe/lattice/internal/ir"
	"github.com/funvibe/lattice/internal/typesystem"
)

func TestTypeSize(t *testing.T) {
	tests := []struct {
		t    typesystem.Type
		want Size
	}{
		{typesystem.Bool, SizeByte},
		{typesystem.I16, SizeWord},
		{typesystem.I32, SizeDword},
		{typesystem.I64, SizeQword},
		{typesystem.Float, SizeSingle},
		{typesystem.Double, SizeDouble},
		{typesystem.String, SizeQword},
	}
	for _, tt := range tests {
		if got := TypeSize(tt.t); got != tt.want {
			t.Errorf("TypeSize(%s) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestRegisterNames(t *testing.T) {
	tests := []struct {
		reg  ir.Reg
		kind Size
		want string
	}{
		{ir.RAX, SizeQword, "%rax"},
		{ir.RAX, SizeDword, "%eax"},
		{ir.RAX, SizeByte, "%al"},
		{ir.RSI, SizeQword, "%rsi"},
		{ir.RSI, SizeByte, "%sil"},
		{ir.R10, SizeQword, "%r10"},
		{ir.R10, SizeDword, "%r10d"},
		{ir.R10, SizeByte, "%r10b"},
		{ir.XMM3, SizeDouble, "%xmm3"},
	}
	for _, tt := range tests {
		if got := regName(tt.reg, tt.kind); got != tt.want {
			t.Errorf("regName(%v, %v) = %q, want %q", tt.reg, tt.kind, got, tt.want)
		}
	}
}

func newPrinter() *printer {
	return &printer{text: &bytes.Buffer{}, data: &bytes.Buffer{}}
}

func TestMovSkipsIdentical(t *testing.T) {
	p := newPrinter()
	rax := ir.InReg(ir.RAX, typesystem.I64)
	p.mov(rax, ir.InReg(ir.RAX, typesystem.I64))
	if p.text.Len() != 0 {
		t.Errorf("mov between equal locations should emit nothing, got %q", p.text.String())
	}
}

func TestMemToMemStagesThroughRax(t *testing.T) {
	p := newPrinter()
	src := ir.OnStack(-8, typesystem.I64)
	dst := ir.OnStack(-16, typesystem.I64)
	p.mov(src, dst)
	got := p.text.String()
	want := "    movq -8(%rbp), %rax\n    movq %rax, -16(%rbp)\n"
	if got != want {
		t.Errorf("mem-to-mem mov:\n%s\nwant:\n%s", got, want)
	}
}

func TestDivEmitsCdqAndRax(t *testing.T) {
	gen := ir.NewCodeGenerator()
	fn := gen.NewFunction()
	lhs := fn.StackNamed(typesystem.I64, "lhs")
	rhs := fn.StackNamed(typesystem.I64, "rhs")
	lhs.Allocate(ir.Stack, -8)
	rhs.Allocate(ir.Stack, -16)
	div := ir.NewBinaryInsn(ir.OpDiv, lhs, rhs)
	out := ir.ValueOf(fn.Add(div), gen, fn)
	out.Allocate(ir.Stack, -24)

	p := newPrinter()
	emitInsn(p, gen, div)
	got := p.text.String()
	if !strings.Contains(got, "cdq") {
		t.Errorf("division should emit cdq:\n%s", got)
	}
	if !strings.Contains(got, "idivq") {
		t.Errorf("division should emit idivq:\n%s", got)
	}
	if !strings.Contains(got, "%rax") {
		t.Errorf("dividend should route through rax:\n%s", got)
	}
}

func TestModulusReadsRdx(t *testing.T) {
	gen := ir.NewCodeGenerator()
	fn := gen.NewFunction()
	lhs := fn.StackNamed(typesystem.I64, "lhs")
	rhs := fn.StackNamed(typesystem.I64, "rhs")
	lhs.Allocate(ir.Stack, -8)
	rhs.Allocate(ir.Stack, -16)
	mod := ir.NewBinaryInsn(ir.OpMod, lhs, rhs)
	out := ir.ValueOf(fn.Add(mod), gen, fn)
	out.Allocate(ir.Stack, -24)

	p := newPrinter()
	emitInsn(p, gen, mod)
	if !strings.Contains(p.text.String(), "%rdx") {
		t.Errorf("modulus should read the remainder from rdx:\n%s", p.text.String())
	}
}

func TestCompareEmitsSetcc(t *testing.T) {
	gen := ir.NewCodeGenerator()
	fn := gen.NewFunction()
	lhs := fn.StackNamed(typesystem.I64, "lhs")
	rhs := fn.StackNamed(typesystem.I64, "rhs")
	lhs.Allocate(ir.Stack, -8)
	rhs.AllocateReg(ir.RCX)
	cmp := ir.NewCompareInsn(ir.CondLess, lhs, rhs)
	out := ir.ValueOf(fn.Add(cmp), gen, fn)
	out.Allocate(ir.Stack, -9)

	p := newPrinter()
	emitInsn(p, gen, cmp)
	got := p.text.String()
	if !strings.Contains(got, "setl") {
		t.Errorf("less comparison should emit setl:\n%s", got)
	}
}

// emitTwice runs a tiny IR program through emission twice.
func emitTwice(t *testing.T, build func(gen *ir.CodeGenerator)) (string, string) {
	t.Helper()
	render := func() string {
		gen := ir.NewCodeGenerator()
		build(gen)
		gen.Finalize()
		gen.Allocate()
		var text, data bytes.Buffer
		EmitProgram(gen, &text, &data)
		return data.String() + text.String()
	}
	return render(), render()
}

func TestEmissionDeterminism(t *testing.T) {
	build := func(gen *ir.CodeGenerator) {
		one := ir.ValueOf(gen.Add(ir.NewIntData(1)), gen, gen)
		two := ir.ValueOf(gen.Add(ir.NewIntData(2)), gen, gen)
		sum := ir.ValueOf(gen.Add(ir.NewBinaryInsn(ir.OpAdd, one, two)), gen, gen)
		gen.Add(ir.NewPrintInsn(sum))
	}
	a, b := emitTwice(t, build)
	if a != b {
		t.Errorf("re-emitting the same IR should be byte-identical:\n%s\n----\n%s", a, b)
	}
}

func TestProgramShape(t *testing.T) {
	gen := ir.NewCodeGenerator()
	s := ir.ValueOf(gen.Add(ir.NewStrData("hey")), gen, gen)
	gen.Add(ir.NewPrintInsn(s))
	gen.Finalize()
	gen.Allocate()
	var text, data bytes.Buffer
	EmitProgram(gen, &text, &data)

	asm := data.String() + text.String()
	for _, want := range []string{
		".data", ".text", ".global _start", "_start:",
		"_memcpy:", "_memreturn:", "callq _printstr", "syscall",
		".ascii \"hey\\0\\0\\0\\0\\0\"",
	} {
		if !strings.Contains(asm, want) {
			t.Errorf("assembly missing %q:\n%s", want, asm)
		}
	}
}

func TestFunctionPrologue(t *testing.T) {
	gen := ir.NewCodeGenerator()
	fn := gen.NewFunction()
	arg := fn.Stack(typesystem.I64)
	fn.Add(ir.NewMovInsn(arg, gen.LocateArg(typesystem.I64)))
	out := ir.ValueOf(fn.Add(ir.NewBinaryInsn(ir.OpAdd, arg, arg)), gen, fn)
	ir.ValueOf(fn.Add(ir.NewRetInsn(out)), gen, fn)
	gen.Finalize()
	gen.Allocate()

	var text, data bytes.Buffer
	EmitProgram(gen, &text, &data)
	asm := text.String()
	if fn.Size() > 0 {
		for _, want := range []string{"pushq %rbp", "movq %rsp, %rbp", "popq %rbp", "    ret\n"} {
			if !strings.Contains(asm, want) {
				t.Errorf("function frame missing %q:\n%s", want, asm)
			}
		}
	}
}
