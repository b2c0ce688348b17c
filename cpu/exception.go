// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"fmt"
)

// Exception is the coprocessor 0 cause code of a runtime exception.
type Exception int

const (
	EXCEPTION_INTERRUPT      = Exception(0)  // interrupt
	EXCEPTION_ADDRESS_LOAD   = Exception(4)  // address error (load)
	EXCEPTION_ADDRESS_STORE  = Exception(5)  // address error (store)
	EXCEPTION_SYSCALL        = Exception(8)  // syscall
	EXCEPTION_BREAKPOINT     = Exception(9)  // breakpoint
	EXCEPTION_RESERVED       = Exception(10) // reserved instruction
	EXCEPTION_OVERFLOW       = Exception(12) // arithmetic overflow
	EXCEPTION_TRAP           = Exception(13) // trap
	EXCEPTION_DIVIDE_BY_ZERO = Exception(15) // divide by zero
)

var exceptionName = map[Exception]string{
	EXCEPTION_INTERRUPT:      "interrupt",
	EXCEPTION_ADDRESS_LOAD:   "address error (load)",
	EXCEPTION_ADDRESS_STORE:  "address error (store)",
	EXCEPTION_SYSCALL:        "syscall",
	EXCEPTION_BREAKPOINT:     "breakpoint",
	EXCEPTION_RESERVED:       "reserved instruction",
	EXCEPTION_OVERFLOW:       "arithmetic overflow",
	EXCEPTION_TRAP:           "trap",
	EXCEPTION_DIVIDE_BY_ZERO: "divide by zero",
}

func (e Exception) String() string {
	name, ok := exceptionName[e]
	if !ok {
		return fmt.Sprintf("Exception(%d)", int(e))
	}
	return name
}

// RuntimeFailure is an unhandled runtime exception. It ends the
// simulation at the faulting instruction.
type RuntimeFailure struct {
	PC      uint32    // Address of the faulting instruction.
	Address uint32    // Offending data address, for address errors.
	Class   Exception // Cause of the failure.
	Err     error
}

func (err *RuntimeFailure) Error() string {
	switch err.Class {
	case EXCEPTION_ADDRESS_LOAD, EXCEPTION_ADDRESS_STORE:
		return f("runtime exception at 0x%08x: %v 0x%08x: %v", err.PC, err.Class, err.Address, err.Err)
	default:
		return f("runtime exception at 0x%08x: %v: %v", err.PC, err.Class, err.Err)
	}
}

func (err *RuntimeFailure) Unwrap() error {
	return err.Err
}
