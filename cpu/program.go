// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"iter"
	"sort"

	"github.com/ezrec/mipsim/memory"
)

// Opcode is one source statement assembled into text.
type Opcode struct {
	File    string
	LineNo  int
	Line    string   // Source text.
	Address uint32   // Address of the first instruction.
	Stmts   []Stmt   // Basic instructions, before symbol resolution.
	Codes   []uint32 // Encoded basic instructions.
	Pseudo  bool     // Expanded from a pseudo-instruction.
}

// Datum is one initialized data value.
type Datum struct {
	File    string
	LineNo  int
	Line    string
	Address uint32
	Size    uint32 // 1, 2 or 4 bytes.
	Value   uint32
	Label   string // Symbol to add to Offset in pass 2; Value holds the result.
	Offset  int64
}

// Program is the output of the assembler.
type Program struct {
	Opcodes  []Opcode
	Data     []Datum
	Symbols  *SymbolTable
	Warnings []*ErrSyntax
}

// Debug locates the source of an instruction.
type Debug struct {
	*Opcode
	Index int // Index of the basic instruction in the Opcode.
}

// Debug returns the source statement that assembled to an address.
func (prog *Program) Debug(addr uint32) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if addr >= op.Address && addr-op.Address < uint32(len(op.Codes))*INSTRUCTION_LENGTH {
			index := int(addr-op.Address) / INSTRUCTION_LENGTH
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  index,
			}
			break
		}
	}

	return
}

// Codes iterates over every encoded instruction and its address.
func (prog *Program) Codes() iter.Seq2[uint32, uint32] {
	return func(yield func(addr uint32, code uint32) bool) {
		for _, op := range prog.Opcodes {
			for n, code := range op.Codes {
				if !yield(op.Address+uint32(n)*INSTRUCTION_LENGTH, code) {
					return
				}
			}
		}
	}
}

// Lines iterates over the source lines, by address.
func (prog *Program) Lines() iter.Seq[*Opcode] {
	return func(yield func(op *Opcode) bool) {
		index := make([]int, len(prog.Opcodes))
		for n := range index {
			index[n] = n
		}
		sort.SliceStable(index, func(i, j int) bool {
			return prog.Opcodes[index[i]].Address < prog.Opcodes[index[j]].Address
		})
		for _, n := range index {
			if !yield(&prog.Opcodes[n]) {
				return
			}
		}
	}
}

// Load writes the program text and data into memory.
func (prog *Program) Load(mem *memory.Memory) (err error) {
	prior := mem.SetOrigin(memory.ORIGIN_TOOL)
	defer mem.SetOrigin(prior)

	for addr, code := range prog.Codes() {
		err = mem.Store(addr, code)
		if err != nil {
			return
		}
	}

	for _, datum := range prog.Data {
		switch {
		case datum.Size == 1:
			err = mem.SetByte(datum.Address, datum.Value)
		case datum.Address%datum.Size != 0:
			// Unaligned data, after `.align 0`.
			for n := range datum.Size {
				err = mem.SetByte(datum.Address+n, datum.Value>>(8*n))
				if err != nil {
					break
				}
			}
		case datum.Size == 2:
			err = mem.SetHalf(datum.Address, datum.Value)
		default:
			err = mem.SetWord(datum.Address, datum.Value)
		}
		if err != nil {
			return
		}
	}

	return
}
