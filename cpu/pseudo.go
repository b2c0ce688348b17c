// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"math"
	"strings"
)

// Reloc selects how a statement immediate is computed from its symbol.
type Reloc int

const (
	RELOC_NONE    = Reloc(iota) // Immediate is used as-is.
	RELOC_HI                    // High half, for a zero-extended low half.
	RELOC_HI_ADJ                // High half, for a sign-extended low half.
	RELOC_LO                    // Low half.
	RELOC_BRANCH                // PC-relative word offset.
	RELOC_JUMP                  // 26-bit jump index.
)

// Stmt is a basic instruction whose immediate may still need symbol
// resolution.
type Stmt struct {
	Op    Op
	Rs    int
	Rt    int
	Rd    int
	Shamt int
	Imm   int64  // Immediate, or offset from Label.
	Label string // Symbol added to Imm in pass 2.
	Reloc Reloc
}

// Resolve computes the machine instruction of a statement placed at pc.
func (s Stmt) Resolve(pc uint32, lookup func(name string) (uint32, bool)) (inst Instruction, err error) {
	value := s.Imm
	if s.Label != "" {
		addr, ok := lookup(s.Label)
		if !ok {
			err = ErrLabelMissing(s.Label)
			return
		}
		value += int64(addr)
	}

	inst = Instruction{
		Op:    s.Op,
		Rs:    uint8(s.Rs),
		Rt:    uint8(s.Rt),
		Rd:    uint8(s.Rd),
		Shamt: uint8(s.Shamt),
	}

	u32 := uint32(value)

	switch s.Reloc {
	case RELOC_NONE:
		inst.Imm = uint16(value)
	case RELOC_HI:
		inst.Imm = uint16(u32 >> 16)
	case RELOC_HI_ADJ:
		inst.Imm = uint16((u32 + 0x8000) >> 16)
	case RELOC_LO:
		inst.Imm = uint16(u32)
	case RELOC_BRANCH:
		if u32%INSTRUCTION_LENGTH != 0 {
			err = ErrBranchAlign
			return
		}
		offset := (int64(u32) - int64(pc+INSTRUCTION_LENGTH)) / INSTRUCTION_LENGTH
		if offset < math.MinInt16 || offset > math.MaxInt16 {
			err = ErrBranchRange
			return
		}
		inst.Imm = uint16(offset)
	case RELOC_JUMP:
		if u32%INSTRUCTION_LENGTH != 0 {
			err = ErrBranchAlign
			return
		}
		if (pc+INSTRUCTION_LENGTH)&0xf000_0000 != u32&0xf000_0000 {
			err = ErrJumpRange
			return
		}
		inst.Target = (u32 >> 2) & 0x03ff_ffff
	}

	if s.Op == OP_CLZ || s.Op == OP_CLO {
		inst.Rt = inst.Rd
	}

	return
}

// FormKind selects between hardware and assembler-provided encodings.
type FormKind int

const (
	FORM_BASIC  = FormKind(0) // One machine instruction.
	FORM_PSEUDO = FormKind(1) // Expands to one or more machine instructions.
)

type expandFunc func(x *expander, o []Operand) ([]Stmt, error)

// Form is one accepted syntax of a mnemonic.
type Form struct {
	Kind   FormKind
	Op     Op     // Machine operation, for FORM_BASIC.
	Syntax string // Operand syntax, for FORM_PSEUDO.
	Native bool   // Pseudo form that is a plain alias, never warned about.
	expand expandFunc
}

// operandKinds returns the syntax elements of a form.
func (form *Form) operandKinds() []string {
	syntax := form.Syntax
	if form.Kind == FORM_BASIC {
		syntax = form.Op.Syntax()
	}
	if syntax == "" {
		return nil
	}
	return strings.Split(syntax, ",")
}

// matches returns true if the operands fit the form syntax.
func (form *Form) matches(ops []Operand) bool {
	kinds := form.operandKinds()
	if len(kinds) != len(ops) {
		return false
	}
	for n, kind := range kinds {
		if !ops[n].matches(kind) {
			return false
		}
	}
	return true
}

// basicStmt builds the statement for a matched basic form.
func basicStmt(op Op, ops []Operand) (s Stmt) {
	s.Op = op
	basic := &Form{Kind: FORM_BASIC, Op: op}
	for n, kind := range basic.operandKinds() {
		o := ops[n]
		switch kind {
		case "rd", "c0":
			s.Rd = o.Reg
		case "rs":
			s.Rs = o.Reg
		case "rt":
			s.Rt = o.Reg
		case "sa":
			s.Shamt = int(o.Value)
		case "simm", "uimm":
			s.Imm = o.Value
		case "label":
			s.Imm = o.Value
			s.Label = o.Label
			if o.Kind == OPERAND_LABEL {
				s.Reloc = RELOC_BRANCH
			}
		case "target":
			s.Imm = o.Value
			s.Label = o.Label
			s.Reloc = RELOC_JUMP
		case "off(rs)":
			s.Imm = o.Value
			s.Rs = o.Reg
		}
	}
	return
}

// expander carries the options that change expansions.
type expander struct {
	DelayedBranching bool
}

// Instruction table: every mnemonic and its forms, basic first.
var instructionTable = map[string][]Form{}

func buildInstructionTable() {
	for op := OP_INVALID + 1; op < OP_COUNT; op++ {
		name := op.String()
		instructionTable[name] = append(instructionTable[name], Form{Kind: FORM_BASIC, Op: op})
	}

	for _, p := range pseudoForms {
		name, syntax, _ := strings.Cut(p.template, " ")
		instructionTable[name] = append(instructionTable[name], Form{
			Kind:   FORM_PSEUDO,
			Syntax: syntax,
			Native: p.native,
			expand: p.expand,
		})
	}
}

// Forms returns the accepted forms of a mnemonic.
func Forms(name string) (forms []Form, ok bool) {
	forms, ok = instructionTable[strings.ToLower(name)]
	return
}

// Statement constructors.

func rtype(op Op, rd, rs, rt int) Stmt {
	return Stmt{Op: op, Rd: rd, Rs: rs, Rt: rt}
}

func itype(op Op, rt, rs int, imm int64) Stmt {
	return Stmt{Op: op, Rt: rt, Rs: rs, Imm: imm}
}

func shift(op Op, rd, rt int, sa int64) Stmt {
	return Stmt{Op: op, Rd: rd, Rt: rt, Shamt: int(sa & 31)}
}

func branch(op Op, rs, rt int, target Operand) Stmt {
	return Stmt{Op: op, Rs: rs, Rt: rt, Label: target.Label, Imm: target.Value, Reloc: RELOC_BRANCH}
}

func hiLo(reloc Reloc, op Operand) Stmt {
	return Stmt{Op: OP_LUI, Rt: REG_AT, Label: op.Label, Imm: op.Value, Reloc: reloc}
}

// loadImmediate loads a 32-bit constant into a register.
func loadImmediate(reg int, value int64) []Stmt {
	switch {
	case value >= math.MinInt16 && value <= math.MaxInt16:
		return []Stmt{itype(OP_ADDIU, reg, REG_ZERO, value)}
	case value >= 0 && value <= math.MaxUint16:
		return []Stmt{itype(OP_ORI, reg, REG_ZERO, value)}
	}

	u32 := uint32(value)
	return []Stmt{
		itype(OP_LUI, REG_AT, REG_ZERO, int64(u32>>16)),
		itype(OP_ORI, reg, REG_AT, int64(u32&0xffff)),
	}
}

// skipBreak emits a conditional branch over a `break`, filling the
// delay slot when delayed branching is on.
func (x *expander) skipBreak(op Op, rs, rt int) (stmts []Stmt) {
	skip := int64(1)
	stmts = append(stmts, Stmt{Op: op, Rs: rs, Rt: rt})
	if x.DelayedBranching {
		skip = 2
		stmts = append(stmts, shift(OP_SLL, REG_ZERO, REG_ZERO, 0))
	}
	stmts[0].Imm = skip
	stmts = append(stmts, Stmt{Op: OP_BREAK})
	return
}

type pseudoForm struct {
	template string // mnemonic and operand syntax
	native   bool
	expand   expandFunc
}

func one(s ...Stmt) ([]Stmt, error) {
	return s, nil
}

// threeImm expands `op rd, rs, imm` through $at.
func threeImm(rop Op) expandFunc {
	return func(x *expander, o []Operand) ([]Stmt, error) {
		return one(append(loadImmediate(REG_AT, o[2].Value), rtype(rop, o[0].Reg, o[1].Reg, REG_AT))...)
	}
}

// twoImm expands `op rd, imm` as `op rd, rd, imm` through $at.
func twoImm(rop Op) expandFunc {
	return func(x *expander, o []Operand) ([]Stmt, error) {
		return one(append(loadImmediate(REG_AT, o[1].Value), rtype(rop, o[0].Reg, o[0].Reg, REG_AT))...)
	}
}

// shortImm expands `op rd, rs, imm` to an immediate instruction.
func shortImm(iop Op) expandFunc {
	return func(x *expander, o []Operand) ([]Stmt, error) {
		return one(itype(iop, o[0].Reg, o[1].Reg, o[2].Value))
	}
}

// shortTwoImm expands `op rt, imm` to `iop rt, rt, imm`.
func shortTwoImm(iop Op) expandFunc {
	return func(x *expander, o []Operand) ([]Stmt, error) {
		return one(itype(iop, o[0].Reg, o[0].Reg, o[1].Value))
	}
}

// negImm expands subtraction of an immediate as addition.
func negImm(iop Op, rop Op) expandFunc {
	return func(x *expander, o []Operand) ([]Stmt, error) {
		neg := -o[2].Value
		if neg >= math.MinInt16 && neg <= math.MaxInt16 {
			return one(itype(iop, o[0].Reg, o[1].Reg, neg))
		}
		return one(append(loadImmediate(REG_AT, o[2].Value), rtype(rop, o[0].Reg, o[1].Reg, REG_AT))...)
	}
}

// compareBranch expands the two-operand conditional branches. The
// comparison sets $at; swap exchanges the compared operands.
func compareBranch(slt Op, slti Op, swap bool, taken Op) (reg, imm expandFunc) {
	reg = func(x *expander, o []Operand) ([]Stmt, error) {
		rs, rt := o[0].Reg, o[1].Reg
		if swap {
			rs, rt = rt, rs
		}
		return one(rtype(slt, REG_AT, rs, rt), branch(taken, REG_AT, REG_ZERO, o[2]))
	}
	imm = func(x *expander, o []Operand) ([]Stmt, error) {
		var stmts []Stmt
		switch {
		case !swap && o[1].isInt16():
			stmts = append(stmts, itype(slti, REG_AT, o[0].Reg, o[1].Value))
		case !swap:
			stmts = append(loadImmediate(REG_AT, o[1].Value), rtype(slt, REG_AT, o[0].Reg, REG_AT))
		default:
			stmts = append(loadImmediate(REG_AT, o[1].Value), rtype(slt, REG_AT, REG_AT, o[0].Reg))
		}
		return one(append(stmts, branch(taken, REG_AT, REG_ZERO, o[2]))...)
	}
	return
}

// setCompare expands a set-on-condition given the register form; the
// immediate form loads $at first, which the register form reads before
// it writes $at.
func setCompare(body func(rd, rs, rt int) []Stmt) (reg, imm expandFunc) {
	reg = func(x *expander, o []Operand) ([]Stmt, error) {
		return body(o[0].Reg, o[1].Reg, o[2].Reg), nil
	}
	imm = func(x *expander, o []Operand) ([]Stmt, error) {
		return append(loadImmediate(REG_AT, o[2].Value), body(o[0].Reg, o[1].Reg, REG_AT)...), nil
	}
	return
}

// divide expands three-operand division, guarding against a zero divisor.
func divide(op Op, result Op) (reg, imm expandFunc) {
	reg = func(x *expander, o []Operand) ([]Stmt, error) {
		stmts := x.skipBreak(OP_BNE, o[2].Reg, REG_ZERO)
		return append(stmts, rtype(op, 0, o[1].Reg, o[2].Reg), rtype(result, o[0].Reg, 0, 0)), nil
	}
	imm = func(x *expander, o []Operand) ([]Stmt, error) {
		if o[2].Value == 0 {
			return nil, ErrDivideByZero
		}
		stmts := loadImmediate(REG_AT, o[2].Value)
		return append(stmts, rtype(op, 0, o[1].Reg, REG_AT), rtype(result, o[0].Reg, 0, 0)), nil
	}
	return
}

// memory expands loads and stores with label or 32-bit addresses.
func memoryForms(name string, op Op) []pseudoForm {
	return []pseudoForm{
		{name + " r,i32", false, func(x *expander, o []Operand) ([]Stmt, error) {
			if o[1].isInt16() {
				return one(itype(op, o[0].Reg, REG_ZERO, o[1].Value))
			}
			return one(
				hiLo(RELOC_HI_ADJ, o[1]),
				Stmt{Op: op, Rt: o[0].Reg, Rs: REG_AT, Imm: o[1].Value, Reloc: RELOC_LO},
			)
		}},
		{name + " r,l", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(
				hiLo(RELOC_HI_ADJ, o[1]),
				Stmt{Op: op, Rt: o[0].Reg, Rs: REG_AT, Label: o[1].Label, Imm: o[1].Value, Reloc: RELOC_LO},
			)
		}},
		{name + " r,m32", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(
				hiLo(RELOC_HI_ADJ, o[1]),
				rtype(OP_ADDU, REG_AT, REG_AT, o[1].Reg),
				Stmt{Op: op, Rt: o[0].Reg, Rs: REG_AT, Imm: o[1].Value, Reloc: RELOC_LO},
			)
		}},
		{name + " r,ml", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(
				hiLo(RELOC_HI_ADJ, o[1]),
				rtype(OP_ADDU, REG_AT, REG_AT, o[1].Reg),
				Stmt{Op: op, Rt: o[0].Reg, Rs: REG_AT, Label: o[1].Label, Imm: o[1].Value, Reloc: RELOC_LO},
			)
		}},
	}
}

// loadAddress expands `la` forms.
var loadAddress = []pseudoForm{
	{"la r,l", false, func(x *expander, o []Operand) ([]Stmt, error) {
		return one(
			hiLo(RELOC_HI, o[1]),
			Stmt{Op: OP_ORI, Rt: o[0].Reg, Rs: REG_AT, Label: o[1].Label, Imm: o[1].Value, Reloc: RELOC_LO},
		)
	}},
	{"la r,i32", false, func(x *expander, o []Operand) ([]Stmt, error) {
		return loadImmediate(o[0].Reg, o[1].Value), nil
	}},
	{"la r,m16", false, func(x *expander, o []Operand) ([]Stmt, error) {
		return one(itype(OP_ADDI, o[0].Reg, o[1].Reg, o[1].Value))
	}},
	{"la r,m32", false, func(x *expander, o []Operand) ([]Stmt, error) {
		return one(
			hiLo(RELOC_HI, o[1]),
			Stmt{Op: OP_ORI, Rt: REG_AT, Rs: REG_AT, Imm: o[1].Value, Reloc: RELOC_LO},
			rtype(OP_ADD, o[0].Reg, o[1].Reg, REG_AT),
		)
	}},
	{"la r,ml", false, func(x *expander, o []Operand) ([]Stmt, error) {
		return one(
			hiLo(RELOC_HI, o[1]),
			Stmt{Op: OP_ORI, Rt: REG_AT, Rs: REG_AT, Label: o[1].Label, Imm: o[1].Value, Reloc: RELOC_LO},
			rtype(OP_ADD, o[0].Reg, o[1].Reg, REG_AT),
		)
	}},
}

var pseudoForms []pseudoForm

func init() {
	add := func(forms ...pseudoForm) {
		pseudoForms = append(pseudoForms, forms...)
	}

	add(
		pseudoForm{"nop", true, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(shift(OP_SLL, REG_ZERO, REG_ZERO, 0))
		}},
		pseudoForm{"jalr r", true, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(rtype(OP_JALR, REG_RA, o[0].Reg, 0))
		}},
		pseudoForm{"move r,r", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(rtype(OP_ADDU, o[0].Reg, REG_ZERO, o[1].Reg))
		}},
		pseudoForm{"not r,r", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(rtype(OP_NOR, o[0].Reg, o[1].Reg, REG_ZERO))
		}},
		pseudoForm{"neg r,r", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(rtype(OP_SUB, o[0].Reg, REG_ZERO, o[1].Reg))
		}},
		pseudoForm{"negu r,r", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(rtype(OP_SUBU, o[0].Reg, REG_ZERO, o[1].Reg))
		}},
		pseudoForm{"abs r,r", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(
				shift(OP_SRA, REG_AT, o[1].Reg, 31),
				rtype(OP_XOR, o[0].Reg, REG_AT, o[1].Reg),
				rtype(OP_SUBU, o[0].Reg, o[0].Reg, REG_AT),
			)
		}},
		pseudoForm{"li r,i32", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return loadImmediate(o[0].Reg, o[1].Value), nil
		}},
		pseudoForm{"b l", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(branch(OP_BGEZ, REG_ZERO, 0, o[0]))
		}},
		pseudoForm{"bal l", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(branch(OP_BGEZAL, REG_ZERO, 0, o[0]))
		}},
		pseudoForm{"beqz r,l", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(branch(OP_BEQ, o[0].Reg, REG_ZERO, o[1]))
		}},
		pseudoForm{"bnez r,l", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(branch(OP_BNE, o[0].Reg, REG_ZERO, o[1]))
		}},
		pseudoForm{"beq r,i32,l", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(append(loadImmediate(REG_AT, o[1].Value), branch(OP_BEQ, o[0].Reg, REG_AT, o[2]))...)
		}},
		pseudoForm{"bne r,i32,l", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(append(loadImmediate(REG_AT, o[1].Value), branch(OP_BNE, o[0].Reg, REG_AT, o[2]))...)
		}},
	)

	for _, cb := range []struct {
		name  string
		slt   Op
		slti  Op
		swap  bool
		taken Op
	}{
		{"blt", OP_SLT, OP_SLTI, false, OP_BNE},
		{"bge", OP_SLT, OP_SLTI, false, OP_BEQ},
		{"bgt", OP_SLT, OP_SLTI, true, OP_BNE},
		{"ble", OP_SLT, OP_SLTI, true, OP_BEQ},
		{"bltu", OP_SLTU, OP_SLTIU, false, OP_BNE},
		{"bgeu", OP_SLTU, OP_SLTIU, false, OP_BEQ},
		{"bgtu", OP_SLTU, OP_SLTIU, true, OP_BNE},
		{"bleu", OP_SLTU, OP_SLTIU, true, OP_BEQ},
	} {
		reg, imm := compareBranch(cb.slt, cb.slti, cb.swap, cb.taken)
		add(pseudoForm{cb.name + " r,r,l", false, reg}, pseudoForm{cb.name + " r,i32,l", false, imm})
	}

	// R-type arithmetic and logic with immediate operands.
	for _, ar := range []struct {
		name   string
		rop    Op
		iop    Op
		kind   string
		addSub bool
	}{
		{"add", OP_ADD, OP_ADDI, "i16", false},
		{"addu", OP_ADDU, OP_ADDIU, "i16", false},
		{"and", OP_AND, OP_ANDI, "u16", false},
		{"or", OP_OR, OP_ORI, "u16", false},
		{"xor", OP_XOR, OP_XORI, "u16", false},
		{"slt", OP_SLT, OP_SLTI, "i16", false},
		{"sltu", OP_SLTU, OP_SLTIU, "i16", false},
		{"sub", OP_SUB, OP_ADDI, "", true},
		{"subu", OP_SUBU, OP_ADDIU, "", true},
		{"subi", OP_SUB, OP_ADDI, "", true},
		{"subiu", OP_SUBU, OP_ADDIU, "", true},
	} {
		if ar.addSub {
			add(
				pseudoForm{ar.name + " r,r,i32", false, negImm(ar.iop, ar.rop)},
				pseudoForm{ar.name + " r,i32", false, func(x *expander, o []Operand) ([]Stmt, error) {
					return negImm(ar.iop, ar.rop)(x, []Operand{o[0], o[0], o[1]})
				}},
			)
			continue
		}
		add(
			pseudoForm{ar.name + " r,r," + ar.kind, false, shortImm(ar.iop)},
			pseudoForm{ar.name + " r,r,i32", false, threeImm(ar.rop)},
			pseudoForm{ar.name + " r," + ar.kind, false, shortTwoImm(ar.iop)},
			pseudoForm{ar.name + " r,i32", false, twoImm(ar.rop)},
		)
	}

	// Immediate instructions with 32-bit immediates.
	for _, ai := range []struct {
		name string
		rop  Op
		iop  Op
		kind string
	}{
		{"addi", OP_ADD, OP_ADDI, "i16"},
		{"addiu", OP_ADDU, OP_ADDIU, "i16"},
		{"andi", OP_AND, OP_ANDI, "u16"},
		{"ori", OP_OR, OP_ORI, "u16"},
		{"xori", OP_XOR, OP_XORI, "u16"},
		{"slti", OP_SLT, OP_SLTI, "i16"},
		{"sltiu", OP_SLTU, OP_SLTIU, "i16"},
	} {
		add(
			pseudoForm{ai.name + " r,r,i32", false, threeImm(ai.rop)},
			pseudoForm{ai.name + " r," + ai.kind, false, shortTwoImm(ai.iop)},
			pseudoForm{ai.name + " r,i32", false, twoImm(ai.rop)},
		)
	}

	add(
		pseudoForm{"nor r,r,i32", false, threeImm(OP_NOR)},
		pseudoForm{"mul r,r,i32", false, threeImm(OP_MUL)},
		pseudoForm{"mulu r,r,r", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(rtype(OP_MULTU, 0, o[1].Reg, o[2].Reg), rtype(OP_MFLO, o[0].Reg, 0, 0))
		}},
		pseudoForm{"mulu r,r,i32", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(append(loadImmediate(REG_AT, o[2].Value),
				rtype(OP_MULTU, 0, o[1].Reg, REG_AT), rtype(OP_MFLO, o[0].Reg, 0, 0))...)
		}},
		pseudoForm{"mulo r,r,r", false, func(x *expander, o []Operand) ([]Stmt, error) {
			stmts := []Stmt{
				rtype(OP_MULT, 0, o[1].Reg, o[2].Reg),
				rtype(OP_MFHI, REG_AT, 0, 0),
				rtype(OP_MFLO, o[0].Reg, 0, 0),
				shift(OP_SRA, o[0].Reg, o[0].Reg, 31),
			}
			stmts = append(stmts, x.skipBreak(OP_BEQ, REG_AT, o[0].Reg)...)
			return append(stmts, rtype(OP_MFLO, o[0].Reg, 0, 0)), nil
		}},
		pseudoForm{"mulou r,r,r", false, func(x *expander, o []Operand) ([]Stmt, error) {
			stmts := []Stmt{
				rtype(OP_MULTU, 0, o[1].Reg, o[2].Reg),
				rtype(OP_MFHI, REG_AT, 0, 0),
			}
			stmts = append(stmts, x.skipBreak(OP_BEQ, REG_AT, REG_ZERO)...)
			return append(stmts, rtype(OP_MFLO, o[0].Reg, 0, 0)), nil
		}},
	)

	for _, dv := range []struct {
		name   string
		op     Op
		result Op
	}{
		{"div", OP_DIV, OP_MFLO},
		{"divu", OP_DIVU, OP_MFLO},
		{"rem", OP_DIV, OP_MFHI},
		{"remu", OP_DIVU, OP_MFHI},
	} {
		reg, imm := divide(dv.op, dv.result)
		add(pseudoForm{dv.name + " r,r,r", false, reg}, pseudoForm{dv.name + " r,r,i32", false, imm})
	}

	for _, sc := range []struct {
		name string
		body func(rd, rs, rt int) []Stmt
	}{
		{"seq", func(rd, rs, rt int) []Stmt {
			return []Stmt{rtype(OP_SUBU, rd, rs, rt), itype(OP_ORI, REG_AT, REG_ZERO, 1), rtype(OP_SLTU, rd, rd, REG_AT)}
		}},
		{"sne", func(rd, rs, rt int) []Stmt {
			return []Stmt{rtype(OP_SUBU, rd, rs, rt), rtype(OP_SLTU, rd, REG_ZERO, rd)}
		}},
		{"sge", func(rd, rs, rt int) []Stmt {
			return []Stmt{rtype(OP_SLT, rd, rs, rt), itype(OP_ORI, REG_AT, REG_ZERO, 1), rtype(OP_SUBU, rd, REG_AT, rd)}
		}},
		{"sgeu", func(rd, rs, rt int) []Stmt {
			return []Stmt{rtype(OP_SLTU, rd, rs, rt), itype(OP_ORI, REG_AT, REG_ZERO, 1), rtype(OP_SUBU, rd, REG_AT, rd)}
		}},
		{"sgt", func(rd, rs, rt int) []Stmt {
			return []Stmt{rtype(OP_SLT, rd, rt, rs)}
		}},
		{"sgtu", func(rd, rs, rt int) []Stmt {
			return []Stmt{rtype(OP_SLTU, rd, rt, rs)}
		}},
		{"sle", func(rd, rs, rt int) []Stmt {
			return []Stmt{rtype(OP_SLT, rd, rt, rs), itype(OP_ORI, REG_AT, REG_ZERO, 1), rtype(OP_SUBU, rd, REG_AT, rd)}
		}},
		{"sleu", func(rd, rs, rt int) []Stmt {
			return []Stmt{rtype(OP_SLTU, rd, rt, rs), itype(OP_ORI, REG_AT, REG_ZERO, 1), rtype(OP_SUBU, rd, REG_AT, rd)}
		}},
	} {
		reg, imm := setCompare(sc.body)
		add(pseudoForm{sc.name + " r,r,r", false, reg}, pseudoForm{sc.name + " r,r,i32", false, imm})
	}

	add(
		pseudoForm{"rol r,r,r", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(
				rtype(OP_SUBU, REG_AT, REG_ZERO, o[2].Reg),
				rtype(OP_SRLV, REG_AT, REG_AT, o[1].Reg),
				rtype(OP_SLLV, o[0].Reg, o[2].Reg, o[1].Reg),
				rtype(OP_OR, o[0].Reg, o[0].Reg, REG_AT),
			)
		}},
		pseudoForm{"ror r,r,r", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(
				rtype(OP_SUBU, REG_AT, REG_ZERO, o[2].Reg),
				rtype(OP_SLLV, REG_AT, REG_AT, o[1].Reg),
				rtype(OP_SRLV, o[0].Reg, o[2].Reg, o[1].Reg),
				rtype(OP_OR, o[0].Reg, o[0].Reg, REG_AT),
			)
		}},
		pseudoForm{"rol r,r,sa", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(
				shift(OP_SRL, REG_AT, o[1].Reg, 32-o[2].Value),
				shift(OP_SLL, o[0].Reg, o[1].Reg, o[2].Value),
				rtype(OP_OR, o[0].Reg, o[0].Reg, REG_AT),
			)
		}},
		pseudoForm{"ror r,r,sa", false, func(x *expander, o []Operand) ([]Stmt, error) {
			return one(
				shift(OP_SLL, REG_AT, o[1].Reg, 32-o[2].Value),
				shift(OP_SRL, o[0].Reg, o[1].Reg, o[2].Value),
				rtype(OP_OR, o[0].Reg, o[0].Reg, REG_AT),
			)
		}},
	)

	add(loadAddress...)

	for _, op := range []Op{
		OP_LB, OP_LBU, OP_LH, OP_LHU, OP_LW, OP_LWL, OP_LWR, OP_LL,
		OP_SB, OP_SH, OP_SW, OP_SWL, OP_SWR, OP_SC,
	} {
		add(memoryForms(op.String(), op)...)
	}

	buildInstructionTable()
}
