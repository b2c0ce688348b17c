// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"fmt"
	"strings"
)

const (
	INSTRUCTION_LENGTH = 4 // Bytes per instruction.
)

// Op is a basic (hardware) instruction.
type Op int

const (
	OP_INVALID = Op(iota)

	// SPECIAL
	OP_SLL
	OP_SRL
	OP_SRA
	OP_SLLV
	OP_SRLV
	OP_SRAV
	OP_JR
	OP_JALR
	OP_MOVZ
	OP_MOVN
	OP_SYSCALL
	OP_BREAK
	OP_MFHI
	OP_MTHI
	OP_MFLO
	OP_MTLO
	OP_MULT
	OP_MULTU
	OP_DIV
	OP_DIVU
	OP_ADD
	OP_ADDU
	OP_SUB
	OP_SUBU
	OP_AND
	OP_OR
	OP_XOR
	OP_NOR
	OP_SLT
	OP_SLTU
	OP_TGE
	OP_TGEU
	OP_TLT
	OP_TLTU
	OP_TEQ
	OP_TNE

	// SPECIAL2
	OP_MADD
	OP_MADDU
	OP_MUL
	OP_MSUB
	OP_MSUBU
	OP_CLZ
	OP_CLO

	// REGIMM
	OP_BLTZ
	OP_BGEZ
	OP_TGEI
	OP_TGEIU
	OP_TLTI
	OP_TLTIU
	OP_TEQI
	OP_TNEI
	OP_BLTZAL
	OP_BGEZAL

	// COP0
	OP_MFC0
	OP_MTC0
	OP_ERET

	// Primary opcodes
	OP_J
	OP_JAL
	OP_BEQ
	OP_BNE
	OP_BLEZ
	OP_BGTZ
	OP_ADDI
	OP_ADDIU
	OP_SLTI
	OP_SLTIU
	OP_ANDI
	OP_ORI
	OP_XORI
	OP_LUI
	OP_LB
	OP_LH
	OP_LWL
	OP_LW
	OP_LBU
	OP_LHU
	OP_LWR
	OP_SB
	OP_SH
	OP_SWL
	OP_SW
	OP_SWR
	OP_LL
	OP_SC

	OP_COUNT
)

// Class is the encoding family of an instruction.
type Class int

const (
	CLASS_SPECIAL  = Class(0) // opcode 0x00, selected by funct.
	CLASS_SPECIAL2 = Class(1) // opcode 0x1c, selected by funct.
	CLASS_REGIMM   = Class(2) // opcode 0x01, selected by rt.
	CLASS_COP0     = Class(3) // opcode 0x10, selected by rs.
	CLASS_ERET     = Class(4) // opcode 0x10, fixed word.
	CLASS_I        = Class(5) // selected by opcode, 16-bit immediate.
	CLASS_J        = Class(6) // selected by opcode, 26-bit target.
)

const (
	OPCODE_SPECIAL  = 0x00
	OPCODE_REGIMM   = 0x01
	OPCODE_COP0     = 0x10
	OPCODE_SPECIAL2 = 0x1c

	WORD_ERET = 0x4200_0018
)

// Operand syntax elements:
//
//	rd, rs, rt  general purpose register fields
//	sa          5-bit shift amount
//	simm        signed 16-bit immediate
//	uimm        unsigned 16-bit immediate
//	label       PC-relative branch target
//	target      26-bit jump target
//	off(rs)     signed 16-bit offset from base register
//	c0          coprocessor 0 register in the rd field
type opSpec struct {
	name   string
	syntax string
	class  Class
	code   uint32 // opcode, funct, rt or rs selector, per class.
}

var opTable = [OP_COUNT]opSpec{
	OP_INVALID: {"invalid", "", CLASS_SPECIAL, 0xff},

	OP_SLL:     {"sll", "rd,rt,sa", CLASS_SPECIAL, 0x00},
	OP_SRL:     {"srl", "rd,rt,sa", CLASS_SPECIAL, 0x02},
	OP_SRA:     {"sra", "rd,rt,sa", CLASS_SPECIAL, 0x03},
	OP_SLLV:    {"sllv", "rd,rt,rs", CLASS_SPECIAL, 0x04},
	OP_SRLV:    {"srlv", "rd,rt,rs", CLASS_SPECIAL, 0x06},
	OP_SRAV:    {"srav", "rd,rt,rs", CLASS_SPECIAL, 0x07},
	OP_JR:      {"jr", "rs", CLASS_SPECIAL, 0x08},
	OP_JALR:    {"jalr", "rd,rs", CLASS_SPECIAL, 0x09},
	OP_MOVZ:    {"movz", "rd,rs,rt", CLASS_SPECIAL, 0x0a},
	OP_MOVN:    {"movn", "rd,rs,rt", CLASS_SPECIAL, 0x0b},
	OP_SYSCALL: {"syscall", "", CLASS_SPECIAL, 0x0c},
	OP_BREAK:   {"break", "", CLASS_SPECIAL, 0x0d},
	OP_MFHI:    {"mfhi", "rd", CLASS_SPECIAL, 0x10},
	OP_MTHI:    {"mthi", "rs", CLASS_SPECIAL, 0x11},
	OP_MFLO:    {"mflo", "rd", CLASS_SPECIAL, 0x12},
	OP_MTLO:    {"mtlo", "rs", CLASS_SPECIAL, 0x13},
	OP_MULT:    {"mult", "rs,rt", CLASS_SPECIAL, 0x18},
	OP_MULTU:   {"multu", "rs,rt", CLASS_SPECIAL, 0x19},
	OP_DIV:     {"div", "rs,rt", CLASS_SPECIAL, 0x1a},
	OP_DIVU:    {"divu", "rs,rt", CLASS_SPECIAL, 0x1b},
	OP_ADD:     {"add", "rd,rs,rt", CLASS_SPECIAL, 0x20},
	OP_ADDU:    {"addu", "rd,rs,rt", CLASS_SPECIAL, 0x21},
	OP_SUB:     {"sub", "rd,rs,rt", CLASS_SPECIAL, 0x22},
	OP_SUBU:    {"subu", "rd,rs,rt", CLASS_SPECIAL, 0x23},
	OP_AND:     {"and", "rd,rs,rt", CLASS_SPECIAL, 0x24},
	OP_OR:      {"or", "rd,rs,rt", CLASS_SPECIAL, 0x25},
	OP_XOR:     {"xor", "rd,rs,rt", CLASS_SPECIAL, 0x26},
	OP_NOR:     {"nor", "rd,rs,rt", CLASS_SPECIAL, 0x27},
	OP_SLT:     {"slt", "rd,rs,rt", CLASS_SPECIAL, 0x2a},
	OP_SLTU:    {"sltu", "rd,rs,rt", CLASS_SPECIAL, 0x2b},
	OP_TGE:     {"tge", "rs,rt", CLASS_SPECIAL, 0x30},
	OP_TGEU:    {"tgeu", "rs,rt", CLASS_SPECIAL, 0x31},
	OP_TLT:     {"tlt", "rs,rt", CLASS_SPECIAL, 0x32},
	OP_TLTU:    {"tltu", "rs,rt", CLASS_SPECIAL, 0x33},
	OP_TEQ:     {"teq", "rs,rt", CLASS_SPECIAL, 0x34},
	OP_TNE:     {"tne", "rs,rt", CLASS_SPECIAL, 0x36},

	OP_MADD:  {"madd", "rs,rt", CLASS_SPECIAL2, 0x00},
	OP_MADDU: {"maddu", "rs,rt", CLASS_SPECIAL2, 0x01},
	OP_MUL:   {"mul", "rd,rs,rt", CLASS_SPECIAL2, 0x02},
	OP_MSUB:  {"msub", "rs,rt", CLASS_SPECIAL2, 0x04},
	OP_MSUBU: {"msubu", "rs,rt", CLASS_SPECIAL2, 0x05},
	OP_CLZ:   {"clz", "rd,rs", CLASS_SPECIAL2, 0x20},
	OP_CLO:   {"clo", "rd,rs", CLASS_SPECIAL2, 0x21},

	OP_BLTZ:   {"bltz", "rs,label", CLASS_REGIMM, 0x00},
	OP_BGEZ:   {"bgez", "rs,label", CLASS_REGIMM, 0x01},
	OP_TGEI:   {"tgei", "rs,simm", CLASS_REGIMM, 0x08},
	OP_TGEIU:  {"tgeiu", "rs,simm", CLASS_REGIMM, 0x09},
	OP_TLTI:   {"tlti", "rs,simm", CLASS_REGIMM, 0x0a},
	OP_TLTIU:  {"tltiu", "rs,simm", CLASS_REGIMM, 0x0b},
	OP_TEQI:   {"teqi", "rs,simm", CLASS_REGIMM, 0x0c},
	OP_TNEI:   {"tnei", "rs,simm", CLASS_REGIMM, 0x0e},
	OP_BLTZAL: {"bltzal", "rs,label", CLASS_REGIMM, 0x10},
	OP_BGEZAL: {"bgezal", "rs,label", CLASS_REGIMM, 0x11},

	OP_MFC0: {"mfc0", "rt,c0", CLASS_COP0, 0x00},
	OP_MTC0: {"mtc0", "rt,c0", CLASS_COP0, 0x04},
	OP_ERET: {"eret", "", CLASS_ERET, 0x10},

	OP_J:     {"j", "target", CLASS_J, 0x02},
	OP_JAL:   {"jal", "target", CLASS_J, 0x03},
	OP_BEQ:   {"beq", "rs,rt,label", CLASS_I, 0x04},
	OP_BNE:   {"bne", "rs,rt,label", CLASS_I, 0x05},
	OP_BLEZ:  {"blez", "rs,label", CLASS_I, 0x06},
	OP_BGTZ:  {"bgtz", "rs,label", CLASS_I, 0x07},
	OP_ADDI:  {"addi", "rt,rs,simm", CLASS_I, 0x08},
	OP_ADDIU: {"addiu", "rt,rs,simm", CLASS_I, 0x09},
	OP_SLTI:  {"slti", "rt,rs,simm", CLASS_I, 0x0a},
	OP_SLTIU: {"sltiu", "rt,rs,simm", CLASS_I, 0x0b},
	OP_ANDI:  {"andi", "rt,rs,uimm", CLASS_I, 0x0c},
	OP_ORI:   {"ori", "rt,rs,uimm", CLASS_I, 0x0d},
	OP_XORI:  {"xori", "rt,rs,uimm", CLASS_I, 0x0e},
	OP_LUI:   {"lui", "rt,uimm", CLASS_I, 0x0f},
	OP_LB:    {"lb", "rt,off(rs)", CLASS_I, 0x20},
	OP_LH:    {"lh", "rt,off(rs)", CLASS_I, 0x21},
	OP_LWL:   {"lwl", "rt,off(rs)", CLASS_I, 0x22},
	OP_LW:    {"lw", "rt,off(rs)", CLASS_I, 0x23},
	OP_LBU:   {"lbu", "rt,off(rs)", CLASS_I, 0x24},
	OP_LHU:   {"lhu", "rt,off(rs)", CLASS_I, 0x25},
	OP_LWR:   {"lwr", "rt,off(rs)", CLASS_I, 0x26},
	OP_SB:    {"sb", "rt,off(rs)", CLASS_I, 0x28},
	OP_SH:    {"sh", "rt,off(rs)", CLASS_I, 0x29},
	OP_SWL:   {"swl", "rt,off(rs)", CLASS_I, 0x2a},
	OP_SW:    {"sw", "rt,off(rs)", CLASS_I, 0x2b},
	OP_SWR:   {"swr", "rt,off(rs)", CLASS_I, 0x2e},
	OP_LL:    {"ll", "rt,off(rs)", CLASS_I, 0x30},
	OP_SC:    {"sc", "rt,off(rs)", CLASS_I, 0x38},
}

// decode lookup tables, by class selector.
var (
	decodeSpecial  = map[uint32]Op{}
	decodeSpecial2 = map[uint32]Op{}
	decodeRegimm   = map[uint32]Op{}
	decodeCop0     = map[uint32]Op{}
	decodeOpcode   = map[uint32]Op{}
	opByName       = map[string]Op{}
)

func init() {
	for n := OP_INVALID + 1; n < OP_COUNT; n++ {
		def := &opTable[n]
		opByName[def.name] = n
		switch def.class {
		case CLASS_SPECIAL:
			decodeSpecial[def.code] = n
		case CLASS_SPECIAL2:
			decodeSpecial2[def.code] = n
		case CLASS_REGIMM:
			decodeRegimm[def.code] = n
		case CLASS_COP0:
			decodeCop0[def.code] = n
		case CLASS_I, CLASS_J:
			decodeOpcode[def.code] = n
		}
	}
}

// String returns the mnemonic of the operation.
func (op Op) String() string {
	if op <= OP_INVALID || op >= OP_COUNT {
		return fmt.Sprintf("Op(%d)", int(op))
	}
	return opTable[op].name
}

// Syntax returns the operand syntax of the operation.
func (op Op) Syntax() string {
	if op <= OP_INVALID || op >= OP_COUNT {
		return ""
	}
	return opTable[op].syntax
}

// Class returns the encoding class of the operation.
func (op Op) Class() Class {
	return opTable[op].class
}

// IsBranch returns true for PC-relative control transfers.
func (op Op) IsBranch() bool {
	return strings.HasSuffix(op.Syntax(), "label")
}

// LookupOp finds a basic operation by mnemonic.
func LookupOp(name string) (op Op, ok bool) {
	op, ok = opByName[name]
	return
}

// Instruction is a decoded basic instruction.
type Instruction struct {
	Op     Op
	Rs     uint8
	Rt     uint8
	Rd     uint8
	Shamt  uint8
	Imm    uint16 // Raw 16-bit immediate, for CLASS_I and CLASS_REGIMM.
	Target uint32 // Raw 26-bit jump index, for CLASS_J.
}

// SignedImm returns the sign-extended immediate.
func (inst Instruction) SignedImm() uint32 {
	return uint32(int32(int16(inst.Imm)))
}

// Encode returns the machine word for an instruction.
func (inst Instruction) Encode() (word uint32) {
	def := &opTable[inst.Op]

	rs := uint32(inst.Rs&0x1f) << 21
	rt := uint32(inst.Rt&0x1f) << 16
	rd := uint32(inst.Rd&0x1f) << 11
	sa := uint32(inst.Shamt&0x1f) << 6

	switch def.class {
	case CLASS_SPECIAL:
		word = (OPCODE_SPECIAL << 26) | rs | rt | rd | sa | def.code
	case CLASS_SPECIAL2:
		word = (OPCODE_SPECIAL2 << 26) | rs | rt | rd | sa | def.code
	case CLASS_REGIMM:
		word = (OPCODE_REGIMM << 26) | rs | (def.code << 16) | uint32(inst.Imm)
	case CLASS_COP0:
		word = (OPCODE_COP0 << 26) | (def.code << 21) | rt | rd
	case CLASS_ERET:
		word = WORD_ERET
	case CLASS_I:
		word = (def.code << 26) | rs | rt | uint32(inst.Imm)
	case CLASS_J:
		word = (def.code << 26) | (inst.Target & 0x03ff_ffff)
	}

	return
}

// Decode returns the instruction for a machine word.
func Decode(word uint32) (inst Instruction, err error) {
	opcode := word >> 26

	inst = Instruction{
		Rs:    uint8((word >> 21) & 0x1f),
		Rt:    uint8((word >> 16) & 0x1f),
		Rd:    uint8((word >> 11) & 0x1f),
		Shamt: uint8((word >> 6) & 0x1f),
	}

	var ok bool
	switch opcode {
	case OPCODE_SPECIAL:
		inst.Op, ok = decodeSpecial[word&0x3f]
	case OPCODE_SPECIAL2:
		inst.Op, ok = decodeSpecial2[word&0x3f]
	case OPCODE_REGIMM:
		inst.Op, ok = decodeRegimm[uint32(inst.Rt)]
		inst.Rt = 0
		inst.Rd = 0
		inst.Shamt = 0
		inst.Imm = uint16(word)
	case OPCODE_COP0:
		if word == WORD_ERET {
			inst = Instruction{Op: OP_ERET}
			ok = true
		} else {
			inst.Op, ok = decodeCop0[uint32(inst.Rs)]
			inst.Rs = 0
			inst.Shamt = 0
		}
	default:
		inst.Op, ok = decodeOpcode[opcode]
		if inst.Op.Class() == CLASS_J {
			inst = Instruction{Op: inst.Op, Target: word & 0x03ff_ffff}
		} else {
			inst.Rd = 0
			inst.Shamt = 0
			inst.Imm = uint16(word)
		}
	}

	if !ok {
		err = ErrOpcode(word)
		inst = Instruction{}
	}

	return
}

// RegisterName returns the conventional name of a general purpose register.
func RegisterName(reg uint8) string {
	return registerNames[reg&0x1f]
}

// String returns the assembly language representation of the instruction.
func (inst Instruction) String() string {
	def := &opTable[inst.Op]
	if def.syntax == "" {
		return def.name
	}

	var args []string
	for _, field := range strings.Split(def.syntax, ",") {
		switch field {
		case "rd":
			args = append(args, RegisterName(inst.Rd))
		case "rs":
			args = append(args, RegisterName(inst.Rs))
		case "rt":
			args = append(args, RegisterName(inst.Rt))
		case "sa":
			args = append(args, fmt.Sprintf("%d", inst.Shamt))
		case "simm", "label":
			args = append(args, fmt.Sprintf("%d", int16(inst.Imm)))
		case "uimm":
			args = append(args, fmt.Sprintf("0x%04x", inst.Imm))
		case "target":
			args = append(args, fmt.Sprintf("0x%08x", inst.Target<<2))
		case "off(rs)":
			args = append(args, fmt.Sprintf("%d(%v)", int16(inst.Imm), RegisterName(inst.Rs)))
		case "c0":
			args = append(args, fmt.Sprintf("$%d", inst.Rd))
		}
	}

	return def.name + " " + strings.Join(args, ",")
}
