// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"fmt"
	"math"
	"strings"

	"github.com/ezrec/mipsim/memory"
)

// directive processes an assembler directive.
func (asm *Assembler) directive(name string, args []Token) {
	switch name {
	case ".text":
		asm.switchSegment(memory.SEGMENT_TEXT, args)
	case ".ktext":
		asm.switchSegment(memory.SEGMENT_KERNEL_TEXT, args)
	case ".data":
		asm.switchSegment(memory.SEGMENT_STATIC_DATA, args)
	case ".kdata":
		asm.switchSegment(memory.SEGMENT_KERNEL_DATA, args)
	case ".word":
		asm.values(memory.WORD_LENGTH, args)
	case ".half":
		asm.values(memory.HALF_LENGTH, args)
	case ".byte":
		asm.values(1, args)
	case ".ascii":
		asm.ascii(args, false)
	case ".asciiz":
		asm.ascii(args, true)
	case ".space":
		asm.space(args)
	case ".align":
		asm.align(args)
	case ".globl", ".global":
		asm.global(args)
	case ".extern":
		asm.externDirective(args)
	case ".set":
		asm.report(ErrSetIgnored, true)
	case ".include":
		asm.report(ErrIncludeUnsupported, false)
	case ".macro", ".end_macro":
		asm.report(ErrMacroNesting, false)
	default:
		asm.report(fmt.Errorf("%v: %w", name, ErrDirectiveUnknown), false)
	}
}

// switchSegment handles `.text [addr]` and friends.
func (asm *Assembler) switchSegment(seg memory.Segment, args []Token) {
	asm.flushLabels()
	asm.segment = seg
	if !isText(seg) {
		asm.autoAlign = true
	}

	switch {
	case len(args) == 0:
	case len(args) == 1 && args[0].Kind == TOKEN_INTEGER:
		addr := uint32(args[0].Value)
		if isText(seg) && addr%INSTRUCTION_LENGTH != 0 {
			asm.report(ErrDirectiveSyntax, false)
			return
		}
		asm.cursor[seg] = addr
	default:
		asm.report(ErrDirectiveSyntax, false)
	}
}

// dataAddress checks that a datum lands in a data region.
func (asm *Assembler) dataAddress(addr uint32, size uint32) bool {
	seg := asm.layout.Segment(addr)
	if seg == memory.SEGMENT_NONE || isText(seg) {
		return false
	}
	return asm.layout.Segment(addr+size-1) == seg
}

func alignUp(addr uint32, size uint32) uint32 {
	return (addr + size - 1) &^ (size - 1)
}

// emit appends a datum at the data cursor.
func (asm *Assembler) emit(size uint32, value uint32, label string, offset int64) {
	addr := asm.cursor[asm.segment]
	if asm.autoAlign {
		addr = alignUp(addr, size)
		asm.cursor[asm.segment] = addr
	}
	asm.flushLabels()

	if !asm.dataAddress(addr, size) {
		asm.report(ErrSegmentOverflow, false)
	} else {
		asm.program.Data = append(asm.program.Data, Datum{
			File:    asm.file,
			LineNo:  asm.lineNo,
			Line:    strings.TrimSpace(asm.line),
			Address: addr,
			Size:    size,
			Value:   value,
			Label:   label,
			Offset:  offset,
		})
	}

	asm.cursor[asm.segment] = addr + size
}

// values handles `.word`, `.half`, and `.byte`. Each value may be
// followed by `:count` to repeat it.
func (asm *Assembler) values(size uint32, args []Token) {
	if isText(asm.segment) {
		asm.report(ErrDirectiveSegment, false)
		return
	}

	if len(args) == 0 {
		asm.report(ErrDirectiveSyntax, false)
		return
	}

	lo, hi := int64(math.MinInt32), int64(math.MaxUint32)
	switch size {
	case memory.HALF_LENGTH:
		lo, hi = math.MinInt16, math.MaxUint16
	case 1:
		lo, hi = math.MinInt8, math.MaxUint8
	}

	for _, arg := range splitArgs(args) {
		op, rest, err := parseValue(arg)
		if err != nil {
			asm.report(fmt.Errorf("%w: %w", ErrDirectiveSyntax, err), false)
			continue
		}

		count := int64(1)
		if len(rest) == 2 && rest[0].Kind == TOKEN_COLON && rest[1].Kind == TOKEN_INTEGER {
			count = rest[1].Value
			rest = rest[2:]
		}
		if len(rest) != 0 || count < 0 {
			asm.report(ErrDirectiveSyntax, false)
			continue
		}

		if op.Kind == OPERAND_LABEL {
			if size != memory.WORD_LENGTH {
				asm.report(ErrOperandMismatch, false)
				continue
			}
		} else if op.Value < lo || op.Value > hi {
			asm.report(fmt.Errorf("%v: %w", op.Value, ErrValueTruncated), true)
		}

		for range count {
			asm.emit(size, uint32(op.Value), op.Label, op.Value)
		}
	}
}

// ascii handles `.ascii` and `.asciiz`.
func (asm *Assembler) ascii(args []Token, terminate bool) {
	if isText(asm.segment) {
		asm.report(ErrDirectiveSegment, false)
		return
	}

	asm.flushLabels()

	for _, arg := range splitArgs(args) {
		if len(arg) != 1 || arg[0].Kind != TOKEN_STRING {
			asm.report(ErrStringSyntax, false)
			return
		}
		for _, c := range []byte(arg[0].Text) {
			asm.emit(1, uint32(c), "", 0)
		}
		if terminate {
			asm.emit(1, 0, "", 0)
		}
	}
}

// space handles `.space n`.
func (asm *Assembler) space(args []Token) {
	if isText(asm.segment) {
		asm.report(ErrDirectiveSegment, false)
		return
	}

	if len(args) != 1 || args[0].Kind != TOKEN_INTEGER || args[0].Value < 0 {
		asm.report(ErrDirectiveSyntax, false)
		return
	}

	asm.flushLabels()

	addr := asm.cursor[asm.segment]
	size := uint32(args[0].Value)
	if size > 0 && !asm.dataAddress(addr, size) {
		asm.report(ErrSegmentOverflow, false)
	}
	asm.cursor[asm.segment] = addr + size
}

// align handles `.align n`; zero disables automatic alignment until
// the next data segment directive.
func (asm *Assembler) align(args []Token) {
	if len(args) != 1 || args[0].Kind != TOKEN_INTEGER {
		asm.report(ErrDirectiveSyntax, false)
		return
	}

	n := args[0].Value
	if n < 0 || n > 3 {
		asm.report(ErrAlignRange, false)
		return
	}

	if n == 0 {
		asm.autoAlign = false
		return
	}

	asm.cursor[asm.segment] = alignUp(asm.cursor[asm.segment], 1<<n)
	asm.flushLabels()
}

// global handles `.globl name...`, resolved at the end of the unit.
func (asm *Assembler) global(args []Token) {
	if len(args) == 0 {
		asm.report(ErrDirectiveSyntax, false)
		return
	}

	for _, tok := range args {
		switch tok.Kind {
		case TOKEN_IDENT:
			asm.globls = append(asm.globls, globl{name: tok.Text, lineNo: asm.lineNo, line: asm.line})
		case TOKEN_COMMA:
		default:
			asm.report(ErrDirectiveSyntax, false)
			return
		}
	}
}

// externDirective handles `.extern name size`, allocating from the
// extern area.
func (asm *Assembler) externDirective(args []Token) {
	if len(args) == 3 && args[1].Kind == TOKEN_COMMA {
		args = []Token{args[0], args[2]}
	}

	if len(args) != 2 || args[0].Kind != TOKEN_IDENT || args[1].Kind != TOKEN_INTEGER || args[1].Value < 0 {
		asm.report(ErrDirectiveSyntax, false)
		return
	}

	size := uint32(args[1].Value)
	if size > 0 && !asm.dataAddress(asm.extern, size) {
		asm.report(ErrSegmentOverflow, false)
		return
	}

	defined, err := asm.symbols.DefineGlobal(args[0].Text, asm.extern, true)
	if err != nil {
		asm.report(err, false)
		return
	}

	if defined {
		asm.extern += size
	}
}
