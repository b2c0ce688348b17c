// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package dump

import (
	"errors"

	"github.com/ezrec/mipsim/translate"
)

var f = translate.From

var (
	ErrSegmentUnknown = errors.New(f("unknown segment or address range"))
	ErrFormatUnknown  = errors.New(f("unknown dump format"))
	ErrRangeSyntax    = errors.New(f("address range syntax"))
	ErrRangeAlign     = errors.New(f("address range not word aligned"))
	ErrRangeOrder     = errors.New(f("address range low end above high end"))
	ErrRequestSyntax  = errors.New(f("dump request must be segment,format,file"))
	ErrNothingWritten = errors.New(f("nothing has been written to the range"))
)

// ErrDump reports a failed dump request.
type ErrDump struct {
	Request Request
	Err     error
}

func (err *ErrDump) Error() string {
	return f("dump %v to '%v': %v", err.Request.Segment, err.Request.File, err.Err)
}

func (err *ErrDump) Unwrap() error {
	return err.Err
}
