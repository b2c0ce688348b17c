// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"math"
)

// OperandKind is the syntactic form of an instruction operand.
type OperandKind int

//go:generate go tool stringer -linecomment -type=OperandKind
const (
	OPERAND_REGISTER = OperandKind(0) // register
	OPERAND_INTEGER  = OperandKind(1) // integer
	OPERAND_LABEL    = OperandKind(2) // label
	OPERAND_MEMORY   = OperandKind(3) // memory
)

// Operand is a parsed instruction operand.
//
// A memory operand is `offset(base)`, where offset is an integer or a
// label with an optional integer offset.
type Operand struct {
	Kind  OperandKind
	Reg   int    // Register, or the base register of a memory operand.
	Value int64  // Integer value, or the offset from Label.
	Label string // Label name, for label and memory operands.
}

// isInt16 returns true if the operand is an integer in signed 16-bit range.
func (o Operand) isInt16() bool {
	return o.Value >= math.MinInt16 && o.Value <= math.MaxInt16
}

// isUint16 returns true if the operand is an integer in unsigned 16-bit range.
func (o Operand) isUint16() bool {
	return o.Value >= 0 && o.Value <= math.MaxUint16
}

// isInt32 returns true if the operand fits in 32 bits, signed or unsigned.
func (o Operand) isInt32() bool {
	return o.Value >= math.MinInt32 && o.Value <= math.MaxUint32
}

// matches checks an operand against a syntax element.
func (o Operand) matches(kind string) bool {
	switch kind {
	case "r", "rd", "rs", "rt", "c0":
		return o.Kind == OPERAND_REGISTER
	case "sa":
		return o.Kind == OPERAND_INTEGER && o.Value >= 0 && o.Value <= 31
	case "i16", "simm":
		return o.Kind == OPERAND_INTEGER && o.isInt16()
	case "u16", "uimm":
		return o.Kind == OPERAND_INTEGER && o.isUint16()
	case "i32":
		return o.Kind == OPERAND_INTEGER && o.isInt32()
	case "l":
		return o.Kind == OPERAND_LABEL
	case "label":
		return o.Kind == OPERAND_LABEL || (o.Kind == OPERAND_INTEGER && o.isInt16())
	case "target":
		return o.Kind == OPERAND_LABEL || (o.Kind == OPERAND_INTEGER && o.isInt32())
	case "m16", "off(rs)":
		return o.Kind == OPERAND_MEMORY && o.Label == "" && o.isInt16()
	case "m32":
		return o.Kind == OPERAND_MEMORY && o.Label == "" && o.isInt32()
	case "ml":
		return o.Kind == OPERAND_MEMORY && o.Label != ""
	}
	return false
}

// parseRegister resolves a register token.
func parseRegister(tok Token) (reg int, err error) {
	reg, ok := Lookup(tok.Text)
	if !ok || reg >= 32 {
		err = ErrRegisterInvalid
	}
	return
}

// parseValue parses `[+-]integer` or `label[(+|-)integer]` from the
// front of tokens.
func parseValue(tokens []Token) (op Operand, rest []Token, err error) {
	if len(tokens) == 0 {
		err = ErrOperandMismatch
		return
	}

	sign := int64(1)
	switch tokens[0].Kind {
	case TOKEN_MINUS:
		sign = -1
		tokens = tokens[1:]
	case TOKEN_PLUS:
		tokens = tokens[1:]
	}

	if len(tokens) == 0 {
		err = ErrOperandMismatch
		return
	}

	switch tokens[0].Kind {
	case TOKEN_INTEGER:
		op = Operand{Kind: OPERAND_INTEGER, Value: sign * tokens[0].Value}
		rest = tokens[1:]
	case TOKEN_IDENT:
		if sign < 0 {
			err = ErrOperandMismatch
			return
		}
		op = Operand{Kind: OPERAND_LABEL, Label: tokens[0].Text}
		rest = tokens[1:]
		if len(rest) >= 2 && (rest[0].Kind == TOKEN_PLUS || rest[0].Kind == TOKEN_MINUS) && rest[1].Kind == TOKEN_INTEGER {
			op.Value = rest[1].Value
			if rest[0].Kind == TOKEN_MINUS {
				op.Value = -op.Value
			}
			rest = rest[2:]
		}
	default:
		err = ErrOperandMismatch
	}

	return
}

// parseOperand parses one operand from the front of tokens.
func parseOperand(tokens []Token) (op Operand, rest []Token, err error) {
	if tokens[0].Kind == TOKEN_REGISTER {
		op.Kind = OPERAND_REGISTER
		op.Reg, err = parseRegister(tokens[0])
		rest = tokens[1:]
		return
	}

	if tokens[0].Kind != TOKEN_LPAREN {
		op, rest, err = parseValue(tokens)
		if err != nil {
			return
		}
	} else {
		op = Operand{Kind: OPERAND_INTEGER}
		rest = tokens
	}

	// Optional (base)
	if len(rest) > 0 && rest[0].Kind == TOKEN_LPAREN {
		if len(rest) < 3 || rest[1].Kind != TOKEN_REGISTER || rest[2].Kind != TOKEN_RPAREN {
			err = ErrOperandMismatch
			return
		}
		op.Kind = OPERAND_MEMORY
		op.Reg, err = parseRegister(rest[1])
		rest = rest[3:]
	}

	return
}

// parseOperands parses an operand list. Commas between operands are
// optional.
func parseOperands(tokens []Token) (ops []Operand, err error) {
	for len(tokens) > 0 {
		var op Operand
		op, tokens, err = parseOperand(tokens)
		if err != nil {
			return
		}
		ops = append(ops, op)

		if len(tokens) > 0 && tokens[0].Kind == TOKEN_COMMA {
			tokens = tokens[1:]
			if len(tokens) == 0 {
				err = ErrOperandMismatch
				return
			}
		}
	}

	return
}
