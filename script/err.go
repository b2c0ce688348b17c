// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package script

import (
	"errors"

	"github.com/ezrec/mipsim/translate"
)

var f = translate.From

var (
	ErrClosed = errors.New(f("script closed"))
)

// ErrScript reports a failure of a script, or of one of its observers.
type ErrScript struct {
	Name string
	Err  error
}

func (err *ErrScript) Error() string {
	return f("script '%v': %v", err.Name, err.Err)
}

func (err *ErrScript) Unwrap() error {
	return err.Err
}
