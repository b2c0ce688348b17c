package memory

import (
	"errors"

	"github.com/ezrec/mipsim/translate"
)

var f = translate.From

var (
	ErrAddressRange  = errors.New(f("address out of range"))
	ErrAddressAlign  = errors.New(f("address not aligned"))
	ErrTextWrite     = errors.New(f("write to text segment"))
	ErrLayoutUnknown = errors.New(f("unknown memory configuration"))
	ErrLayoutAlign   = errors.New(f("region not word aligned"))
	ErrLayoutOverlap = errors.New(f("regions overlap"))
)

// AddressError is raised at the point of an invalid memory access.
type AddressError struct {
	Address uint32
	Access  Access
	Err     error
}

func (err *AddressError) Error() string {
	return f("%v 0x%08x: %v", err.Access, err.Address, err.Err)
}

func (err *AddressError) Unwrap() error {
	return err.Err
}

// ErrConfiguration reports an invalid layout selection.
type ErrConfiguration struct {
	Name string
	Err  error
}

func (err *ErrConfiguration) Error() string {
	return f("configuration '%v': %v", err.Name, err.Err)
}

func (err *ErrConfiguration) Unwrap() error {
	return err.Err
}
