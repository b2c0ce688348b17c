package cpu

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncode(t *testing.T) {
	table := [](struct {
		inst Instruction
		word uint32
		text string
	}){
		{Instruction{Op: OP_SLL}, 0x0000_0000, "sll $zero,$zero,0"},
		{Instruction{Op: OP_ADDI, Rt: 8, Imm: 5}, 0x2008_0005, "addi $t0,$zero,5"},
		{Instruction{Op: OP_ADD, Rd: 10, Rs: 8, Rt: 9}, 0x0109_5020, "add $t2,$t0,$t1"},
		{Instruction{Op: OP_SYSCALL}, 0x0000_000c, "syscall"},
		{Instruction{Op: OP_LW, Rt: 8, Rs: 29, Imm: 4}, 0x8fa8_0004, "lw $t0,4($sp)"},
		{Instruction{Op: OP_J, Target: 0x0010_0000}, 0x0810_0000, "j 0x00400000"},
		{Instruction{Op: OP_JR, Rs: 31}, 0x03e0_0008, "jr $ra"},
		{Instruction{Op: OP_LUI, Rt: 1, Imm: 0x1001}, 0x3c01_1001, "lui $at,0x1001"},
		{Instruction{Op: OP_ORI, Rt: 8, Rs: 1, Imm: 4}, 0x3428_0004, "ori $t0,$at,0x0004"},
		{Instruction{Op: OP_MUL, Rd: 8, Rs: 9, Rt: 10}, 0x712a_4002, "mul $t0,$t1,$t2"},
		{Instruction{Op: OP_SRA, Rd: 8, Rt: 9, Shamt: 3}, 0x0009_40c3, "sra $t0,$t1,3"},
		{Instruction{Op: OP_BGEZ, Rs: 8, Imm: 0xffff}, 0x0501_ffff, "bgez $t0,-1"},
		{Instruction{Op: OP_MFC0, Rt: 26, Rd: 13}, 0x401a_6800, "mfc0 $k0,$13"},
		{Instruction{Op: OP_MTC0, Rt: 8, Rd: 12}, 0x4088_6000, "mtc0 $t0,$12"},
		{Instruction{Op: OP_ERET}, 0x4200_0018, "eret"},
	}

	for _, entry := range table {
		assert := assert.New(t)
		assert.Equal(entry.word, entry.inst.Encode(), entry.text)
		assert.Equal(entry.text, entry.inst.String())

		inst, err := Decode(entry.word)
		assert.NoError(err, entry.text)
		assert.Equal(entry.inst, inst, entry.text)
	}
}

func TestDecode_Reserved(t *testing.T) {
	table := []uint32{
		0xfc00_0000, // opcode 0x3f
		0x0000_0001, // SPECIAL funct 0x01
		0x0414_0000, // REGIMM rt 0x14
		0x4220_0000, // COP0 rs 0x11
		0x7000_003f, // SPECIAL2 funct 0x3f
	}

	for _, word := range table {
		assert := assert.New(t)
		_, err := Decode(word)
		assert.ErrorIs(err, ErrOpcode(0), fmt.Sprintf("0x%08x", word))
		assert.Equal(ErrOpcode(word), err)
	}
}

func TestOp_Lookup(t *testing.T) {
	assert := assert.New(t)

	for op := OP_INVALID + 1; op < OP_COUNT; op++ {
		found, ok := LookupOp(op.String())
		assert.True(ok, op.String())
		assert.Equal(op, found)
	}

	_, ok := LookupOp("li")
	assert.False(ok)

	assert.True(OP_BEQ.IsBranch())
	assert.True(OP_BLTZAL.IsBranch())
	assert.False(OP_J.IsBranch())
	assert.False(OP_ADD.IsBranch())
}

// Every basic instruction form survives an encode and decode.
func TestEncode_RoundTrip(t *testing.T) {
	for op := OP_INVALID + 1; op < OP_COUNT; op++ {
		assert := assert.New(t)

		inst := Instruction{Op: op}
		switch op.Class() {
		case CLASS_SPECIAL, CLASS_SPECIAL2:
			inst.Rs, inst.Rt, inst.Rd, inst.Shamt = 3, 5, 7, 11
		case CLASS_REGIMM:
			inst.Rs, inst.Imm = 9, 0x8123
		case CLASS_COP0:
			inst.Rt, inst.Rd = 4, 14
		case CLASS_I:
			inst.Rs, inst.Rt, inst.Imm = 17, 31, 0xfedc
		case CLASS_J:
			inst.Target = 0x0123_4567
		}

		decoded, err := Decode(inst.Encode())
		assert.NoError(err, op.String())
		assert.Equal(inst, decoded, op.String())
	}
}

func FuzzDecode(f *testing.F) {
	for _, word := range []uint32{0, 0x2008_0005, 0x0109_5020, 0x0000_000c, WORD_ERET, 0x0810_0000, 0xffff_ffff} {
		f.Add(word)
	}

	f.Fuzz(func(t *testing.T, word uint32) {
		assert := assert.New(t)

		inst, err := Decode(word)
		if err != nil {
			assert.Equal(ErrOpcode(word), err)
			assert.Equal(Instruction{}, inst)
			return
		}

		// Fields the class ignores are dropped, but the operation and
		// every meaningful field survive re-encoding.
		again, err := Decode(inst.Encode())
		assert.NoError(err)
		assert.Equal(inst, again, fmt.Sprintf("0x%08x", word))

		switch inst.Op.Class() {
		case CLASS_SPECIAL, CLASS_SPECIAL2, CLASS_ERET:
			assert.Equal(word, inst.Encode())
		case CLASS_REGIMM, CLASS_I, CLASS_J:
			assert.Equal(word, inst.Encode())
		}

		assert.NotEmpty(inst.String())
	})
}
