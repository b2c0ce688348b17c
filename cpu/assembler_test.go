package cpu

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/mipsim/memory"
)

func assemble(t *testing.T, asm *Assembler, lines ...string) (prog *Program) {
	t.Helper()

	prog, err := asm.Parse(strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatal(err)
	}
	return
}

func codesOf(prog *Program) (codes []uint32) {
	var next uint32
	for addr, code := range prog.Codes() {
		if len(codes) > 0 && addr != next {
			// Discontiguous text is not expected by these tests.
			return nil
		}
		codes = append(codes, code)
		next = addr + INSTRUCTION_LENGTH
	}
	return
}

func TestAssembler_Empty(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader(""))
	assert.NoError(err)
	assert.Equal(0, len(prog.Opcodes))
	assert.Equal(0, len(prog.Data))
	assert.True(prog.Symbols.Frozen())

	_, ok := prog.Symbols.Entry()
	assert.False(ok)
}

func TestAssembler_Encoding(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	prog := assemble(t, asm,
		"main:",
		"  addi $t0, $zero, 5",
		"  add $t2, $t0, $t1",
		"loop:",
		"  bne $t0, $zero, loop",
		"  j main",
		"  la $a0, msg",
		"  lw $t0, msg",
		"  syscall",
		"  clz $t0, $t1",
		".data",
		"msg: .asciiz \"hi\"",
	)

	assert.Equal([]uint32{
		0x2008_0005,
		0x0109_5020,
		0x1500_ffff,
		0x0810_0000,
		0x3c01_1001, 0x3424_0000,
		0x3c01_1001, 0x8c28_0000,
		0x0000_000c,
		0x7128_4020,
	}, codesOf(prog))

	assert.Equal(8, len(prog.Opcodes))
	la := prog.Opcodes[4]
	assert.Equal("<input>", la.File)
	assert.Equal(7, la.LineNo)
	assert.Equal("la $a0, msg", la.Line)
	assert.Equal(uint32(0x0040_0010), la.Address)
	assert.True(la.Pseudo)
	assert.Equal(2, len(la.Codes))
	assert.False(prog.Opcodes[0].Pseudo)

	addr, ok := prog.Symbols.Entry()
	assert.True(ok)
	assert.Equal(uint32(0x0040_0000), addr)

	sym, ok := prog.Symbols.Lookup("msg")
	assert.True(ok)
	assert.Equal(uint32(0x1001_0000), sym.Address)
	assert.True(sym.Data)

	sym, ok = prog.Symbols.Lookup("loop")
	assert.True(ok)
	assert.Equal(uint32(0x0040_0008), sym.Address)
	assert.False(sym.Data)
}

func TestAssembler_NoOperands(t *testing.T) {
	table := [](struct {
		line string
		code uint32
	}){
		{"syscall", 0x0000_000c},
		{"break", 0x0000_000d},
		{"eret", WORD_ERET},
	}

	for _, entry := range table {
		t.Run(entry.line, func(t *testing.T) {
			assert := assert.New(t)

			asm := &Assembler{}
			prog, err := asm.Assemble(Source{Name: "alone.s", Text: entry.line + "\n"})
			assert.NoError(err)
			if err != nil {
				return
			}
			assert.Equal([]uint32{entry.code}, codesOf(prog))
		})
	}
}

func TestAssembler_Idempotent(t *testing.T) {
	assert := assert.New(t)

	source := Source{Name: "twice.s", Text: strings.Join([]string{
		".data",
		"table: .word 1, 2, $(3 * 4)",
		"name: .asciiz \"twice\"",
		".text",
		".macro inc(%r)",
		"  addi %r, %r, 1",
		".end_macro",
		"main:",
		"  la $s0, table",
		"  li $t0, 0x12345678",
		"  inc($t0)",
		"  lw $t1, name",
		"  blt $t0, $t1, main",
		"  syscall",
	}, "\n")}

	first, err := (&Assembler{}).Assemble(source)
	assert.NoError(err)
	second, err := (&Assembler{}).Assemble(source)
	assert.NoError(err)
	if first == nil || second == nil {
		return
	}

	assert.NotEmpty(codesOf(first))
	assert.Equal(codesOf(first), codesOf(second))
	assert.Equal(first.Data, second.Data)
	assert.Equal(first.Symbols.Symbols(), second.Symbols.Symbols())
}

func TestAssembler_HighAdjust(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	prog := assemble(t, asm,
		"  lw $t0, val",
		"  la $t1, val",
		"  sw $t0, val+4($t2)",
		".data 0x10018000",
		"val: .word 1",
	)

	assert.Equal([]uint32{
		0x3c01_1002, 0x8c28_8000,
		0x3c01_1001, 0x3429_8000,
		0x3c01_1002, 0x002a_0821, 0xac28_8004,
	}, codesOf(prog))
}

func TestAssembler_Data(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	prog := assemble(t, asm,
		".data",
		"a: .byte 1, 2",
		"b: .word 0x11223344, a",
		"c: .half -1:2",
		"d: .ascii \"ab\"",
		"e: .space 3",
		"f: .align 2",
		"   .word 7",
		"g: .align 0",
		"   .byte 9",
		"   .half 0x55aa",
	)

	for _, entry := range [](struct {
		name string
		addr uint32
	}){
		{"a", 0x1001_0000},
		{"b", 0x1001_0004},
		{"c", 0x1001_000c},
		{"d", 0x1001_0010},
		{"e", 0x1001_0012},
		{"f", 0x1001_0018},
		{"g", 0x1001_001c},
	} {
		addr, ok := prog.Symbols.Address(entry.name)
		assert.True(ok, entry.name)
		assert.Equal(entry.addr, addr, entry.name)
	}

	mem, err := memory.NewMemory(memory.DefaultLayout())
	assert.NoError(err)
	assert.NoError(prog.Load(mem))

	for _, entry := range [](struct {
		addr  uint32
		value uint32
	}){
		{0x1001_0000, 0x0000_0201},
		{0x1001_0004, 0x1122_3344},
		{0x1001_0008, 0x1001_0000},
		{0x1001_000c, 0xffff_ffff},
		{0x1001_0010, 0x0000_6261},
		{0x1001_0018, 7},
		{0x1001_001c, 0x0055_aa09},
	} {
		value, err := mem.Word(entry.addr)
		assert.NoError(err)
		assert.Equal(entry.value, value, "0x%08x", entry.addr)
	}
}

func TestAssembler_Equates(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	asm.Predefine("SCALE", "3")
	prog := assemble(t, asm,
		".eqv COUNT 10",
		".eqv REG $t3",
		"main:",
		"  li REG, COUNT",
		"  li $t4, $(COUNT * 2 + DATA_BASE)",
		"  li $t5, $(LINENO)",
		"  li $t6, $(SCALE << 4)",
	)

	assert.Equal([]uint32{
		0x240b_000a,
		0x3c01_1001, 0x342c_0014,
		0x240d_0006,
		0x240e_0030,
	}, codesOf(prog))
}

func TestAssembler_Macro(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	prog := assemble(t, asm,
		".macro inc(%r)",
		"  addi %r, %r, 1",
		".end_macro",
		".macro spin(%n)",
		"  li $t0, %n",
		"wait:",
		"  addi $t0, $t0, -1",
		"  bnez $t0, wait",
		".end_macro",
		".macro spin",
		"  spin(1)",
		".end_macro",
		"main:",
		"  inc($s0)",
		"  spin(3)",
		"  spin",
	)

	assert.Equal([]uint32{
		0x2210_0001,
		0x2408_0003, 0x2108_ffff, 0x1500_fffe,
		0x2408_0001, 0x2108_ffff, 0x1500_fffe,
	}, codesOf(prog))

	first, ok := prog.Symbols.Address("wait_M2")
	assert.True(ok)
	assert.Equal(uint32(0x0040_0008), first)

	second, ok := prog.Symbols.Address("wait_M4")
	assert.True(ok)
	assert.Equal(uint32(0x0040_0014), second)
}

func TestAssembler_MacroErrors(t *testing.T) {
	table := [](struct {
		lines []string
		err   error
	}){
		{[]string{".macro a", ".macro b", ".end_macro"}, ErrMacroNesting},
		{[]string{".end_macro"}, ErrMacroLonelyEndm},
		{[]string{".macro a", "nop"}, ErrMacroLonely},
		{[]string{".macro a", ".end_macro", ".macro a", ".end_macro"}, ErrMacroDuplicate},
		{[]string{".macro a", "  a", ".end_macro", "  a"}, ErrMacroRecursion},
		{[]string{".macro a(%x)", "  li %y, 1", ".end_macro", "  a($t0)"}, ErrMacroSyntax},
	}

	for _, entry := range table {
		assert := assert.New(t)

		asm := &Assembler{}
		prog, err := asm.Parse(strings.NewReader(strings.Join(entry.lines, "\n")))
		assert.Nil(prog)
		assert.ErrorIs(err, entry.err, strings.Join(entry.lines, "; "))
	}
}

func TestAssembler_Units(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	prog, err := asm.Assemble(
		Source{Name: "a.s", Text: strings.Join([]string{
			".globl main",
			"main:",
			"  jal helper",
			"  li $v0, 10",
			"  syscall",
			"local:",
		}, "\n")},
		Source{Name: "b.s", Text: strings.Join([]string{
			".globl helper",
			"helper:",
			"  jr $ra",
			"local:",
			"  b local",
		}, "\n")},
	)
	assert.NoError(err)
	if err != nil {
		return
	}

	helper, ok := prog.Symbols.Global("helper")
	assert.True(ok)
	assert.Equal(uint32(0x0040_000c), helper.Address)
	assert.Equal("b.s", helper.File)

	a_local, ok := prog.Symbols.Resolve("a.s", "local")
	assert.True(ok)
	assert.Equal(uint32(0x0040_000c), a_local.Address)

	b_local, ok := prog.Symbols.Resolve("b.s", "local")
	assert.True(ok)
	assert.Equal(uint32(0x0040_0010), b_local.Address)

	entry, ok := prog.Symbols.Entry()
	assert.True(ok)
	assert.Equal(uint32(0x0040_0000), entry)

	assert.Equal([]uint32{0x0c10_0003, 0x2402_000a, 0x0000_000c, 0x03e0_0008, 0x0401_ffff}, codesOf(prog))

	// Locals of another unit are not visible.
	_, err = asm.Assemble(
		Source{Name: "a.s", Text: "main: j hidden"},
		Source{Name: "b.s", Text: "hidden: nop"},
	)
	assert.ErrorIs(err, ErrLabelMissing("hidden"))

	// .globl of an undefined label.
	_, err = asm.Assemble(Source{Name: "a.s", Text: ".globl nowhere"})
	assert.ErrorIs(err, ErrGlobalUndefined)
}

func TestAssembler_Errors(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader(strings.Join([]string{
		"main:",
		"  foo $t0",
		"  add $t0, $t1",
		"  lw $t0, missing",
		"  .word 5",
		"main:",
		"  j 0x10000000",
		"  li $t0, 'ab'",
		"  .bogus",
		"  nop",
	}, "\n")))
	assert.Nil(prog)

	var failure *ErrAssembly
	assert.True(errors.As(err, &failure))
	if failure == nil {
		return
	}

	var lines []int
	for _, msg := range failure.Errors() {
		assert.Equal("<input>", msg.File)
		if !slices.Contains(lines, msg.LineNo) {
			lines = append(lines, msg.LineNo)
		}
	}
	slices.Sort(lines)
	assert.Equal([]int{2, 3, 4, 5, 6, 7, 8, 9}, lines)

	assert.ErrorIs(err, ErrOpcodeUnknown)
	assert.ErrorIs(err, ErrOperandMismatch)
	assert.ErrorIs(err, ErrLabelMissing("missing"))
	assert.ErrorIs(err, ErrDirectiveSegment)
	assert.ErrorIs(err, ErrLabelDuplicate)
	assert.ErrorIs(err, ErrJumpRange)
	assert.ErrorIs(err, ErrDirectiveUnknown)
	assert.Contains(err.Error(), "<input>:2")
}

func TestAssembler_SegmentOverflow(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	_, err := asm.Parse(strings.NewReader(".text 0x0ffffffc\n nop\n nop\n"))
	assert.ErrorIs(err, ErrSegmentOverflow)

	_, err = asm.Parse(strings.NewReader(".data 0x0ffffff8\n .word 1\n"))
	assert.ErrorIs(err, ErrSegmentOverflow)

	_, err = asm.Parse(strings.NewReader(".data\n nop\n"))
	assert.ErrorIs(err, ErrInstructionSegment)
}

func TestAssembler_NoPseudo(t *testing.T) {
	assert := assert.New(t)

	source := "main:\n  li $t0, 1\n  nop\n  jalr $t0\n"

	asm := &Assembler{NoPseudo: true}
	prog, err := asm.Parse(strings.NewReader(source))
	assert.NoError(err)
	if assert.Equal(1, len(prog.Warnings)) {
		warning := prog.Warnings[0]
		assert.True(warning.Warning)
		assert.Equal(2, warning.LineNo)
		assert.ErrorIs(warning, ErrPseudoDisabled)
	}

	asm.WarningsAreErrors = true
	prog, err = asm.Parse(strings.NewReader(source))
	assert.Nil(prog)
	assert.ErrorIs(err, ErrPseudoDisabled)
}

func TestAssembler_Extern(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	prog := assemble(t, asm,
		".extern buffer 16",
		".extern other, 4",
		".extern buffer 16",
		"main:",
		"  la $t0, other",
	)

	buffer, ok := prog.Symbols.Global("buffer")
	assert.True(ok)
	assert.Equal(uint32(0x1000_0000), buffer.Address)
	assert.True(buffer.Data)

	other, ok := prog.Symbols.Global("other")
	assert.True(ok)
	assert.Equal(uint32(0x1000_0010), other.Address)

	assert.Equal([]uint32{0x3c01_1000, 0x3428_0010}, codesOf(prog))
}

func TestAssembler_DelayedBranching(t *testing.T) {
	assert := assert.New(t)

	source := "  div $t0, $t1, $t2\n"

	asm := &Assembler{}
	prog := assemble(t, asm, source)
	assert.Equal([]uint32{0x1540_0001, 0x0000_000d, 0x012a_001a, 0x0000_4012}, codesOf(prog))

	asm.DelayedBranching = true
	prog = assemble(t, asm, source)
	assert.Equal([]uint32{0x1540_0002, 0x0000_0000, 0x0000_000d, 0x012a_001a, 0x0000_4012}, codesOf(prog))

	_, err := asm.Parse(strings.NewReader("  div $t0, $t1, 0\n"))
	assert.ErrorIs(err, ErrDivideByZero)
}

func TestAssembler_Layout(t *testing.T) {
	assert := assert.New(t)

	layout, err := memory.LayoutByName("CompactTextAtZero")
	assert.NoError(err)

	asm := &Assembler{Layout: layout}
	prog := assemble(t, asm,
		"main: la $t0, val",
		"  j main",
		".data",
		"val: .word $(DATA_BASE)",
	)

	assert.Equal([]uint32{0x3c01_0000, 0x3428_2000, 0x0800_0000}, codesOf(prog))
	assert.Equal(uint32(0x2000), prog.Data[0].Address)
	assert.Equal(uint32(0x2000), prog.Data[0].Value)
}
