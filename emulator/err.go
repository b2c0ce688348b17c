// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"errors"

	"github.com/ezrec/mipsim/translate"
)

var f = translate.From

var (
	ErrNoProgram    = errors.New(f("no program assembled"))
	ErrArguments    = errors.New(f("program arguments do not fit on the stack"))
	ErrRadixUnknown = errors.New(f("unknown display radix"))
)

// ErrRuntime indicates the source location of a runtime error.
type ErrRuntime struct {
	File   string
	LineNo int
	Line   string
	Err    error
}

func (err *ErrRuntime) Error() string {
	if err.LineNo == 0 {
		return err.Err.Error()
	}
	return f("%v:%d: %v", err.File, err.LineNo, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}
