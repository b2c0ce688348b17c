// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"errors"
	"strings"

	"github.com/ezrec/mipsim/translate"
)

var f = translate.From

var (
	// Runtime errors
	ErrOverflow      = errors.New(f("arithmetic overflow"))
	ErrTrap          = errors.New(f("trap"))
	ErrBreak         = errors.New(f("break instruction executed"))
	ErrSyscallNumber = errors.New(f("invalid or unimplemented syscall service"))
	ErrSyscallArg    = errors.New(f("invalid syscall argument"))
	ErrFetch         = errors.New(f("instruction fetch outside of text segment"))
	ErrHalted        = errors.New(f("processor halted"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".eqv syntax"))
	ErrEquateDuplicate    = errors.New(f(".eqv duplicated"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrLabelSyntax        = errors.New(f("label syntax"))
	ErrMacroSyntax        = errors.New(f(".macro syntax"))
	ErrMacroNesting       = errors.New(f(".macro in .macro prohibited"))
	ErrMacroDuplicate     = errors.New(f(".macro duplicated"))
	ErrMacroLonely        = errors.New(f(".macro without .end_macro"))
	ErrMacroLonelyEndm    = errors.New(f(".end_macro without .macro"))
	ErrMacroRecursion     = errors.New(f("macro expansion too deep"))
	ErrDirectiveUnknown   = errors.New(f("directive unknown"))
	ErrDirectiveSyntax    = errors.New(f("directive syntax"))
	ErrDirectiveSegment   = errors.New(f("directive not allowed in this segment"))
	ErrInstructionSegment = errors.New(f("instruction not allowed in data segment"))
	ErrSegmentOverflow    = errors.New(f("address out of range for segment"))
	ErrStringSyntax       = errors.New(f("string syntax"))
	ErrOpcodeUnknown      = errors.New(f("opcode unknown"))
	ErrOperandMismatch    = errors.New(f("operands do not match any form"))
	ErrRegisterInvalid    = errors.New(f("register invalid"))
	ErrImmediateRange     = errors.New(f("immediate out of range"))
	ErrBranchRange        = errors.New(f("branch target out of range"))
	ErrBranchAlign        = errors.New(f("branch target not word aligned"))
	ErrJumpRange          = errors.New(f("jump target outside of 256MiB region"))
	ErrDivideByZero       = errors.New(f("division by zero"))
	ErrAlignRange         = errors.New(f(".align value must be 0 to 3"))
	ErrGlobalUndefined    = errors.New(f(".globl label not defined"))
	ErrIncludeUnsupported = errors.New(f(".include not supported"))

	// Assembler warnings
	ErrPseudoDisabled = errors.New(f("extended (pseudo) instruction used while disabled"))
	ErrValueTruncated = errors.New(f("value truncated to fit"))
	ErrSetIgnored     = errors.New(f(".set directive ignored"))
)

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

type ErrOpcode uint32

func (eo ErrOpcode) Error() string {
	return f("reserved instruction 0x%08x", uint32(eo))
}

func (eo ErrOpcode) Is(err error) (ok bool) {
	_, ok = err.(ErrOpcode)
	return
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

type ErrParseCharacter string

func (err ErrParseCharacter) Error() string {
	return f("'%v' is not a character", string(err))
}

type ErrMnemonic string

func (err ErrMnemonic) Error() string {
	return f("'%v' %v", string(err), ErrOpcodeUnknown)
}

func (err ErrMnemonic) Unwrap() error {
	return ErrOpcodeUnknown
}

// ErrSyntax is an assembler diagnostic, tied to a source line.
type ErrSyntax struct {
	File    string
	LineNo  int
	Line    string
	Err     error
	Warning bool // Set if the diagnostic does not prevent assembly.
}

func (err *ErrSyntax) Error() string {
	kind := f("error")
	if err.Warning {
		kind = f("warning")
	}
	return f("%v %v:%d '%v' %v", kind, err.File, err.LineNo, err.Line, err.Err)
}

func (err *ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrMacro struct {
	Macro string
	Line  int
	Err   error
}

func (err *ErrMacro) Error() string {
	return f("macro %v line %v %v", err.Macro, err.Line, err.Err.Error())
}

func (err *ErrMacro) Unwrap() error {
	return err.Err
}

// ErrAssembly collects every diagnostic of a failed assembly.
type ErrAssembly struct {
	Messages []*ErrSyntax
}

// Errors returns the diagnostics that are not warnings.
func (err *ErrAssembly) Errors() (errs []*ErrSyntax) {
	for _, msg := range err.Messages {
		if !msg.Warning {
			errs = append(errs, msg)
		}
	}
	return
}

func (err *ErrAssembly) Error() string {
	var lines []string
	for _, msg := range err.Messages {
		lines = append(lines, msg.Error())
	}
	return f("assembly failed with %d errors", len(err.Errors())) + "\n" + strings.Join(lines, "\n")
}

func (err *ErrAssembly) Unwrap() (errs []error) {
	for _, msg := range err.Errors() {
		errs = append(errs, msg)
	}
	return
}
