// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package io

import (
	"fmt"
	"io"
	"iter"

	"github.com/ezrec/mipsim/memory"
)

// Terminal register offsets from the MMIO base.
const (
	TERMINAL_RECEIVER_CONTROL    = 0x0
	TERMINAL_RECEIVER_DATA       = 0x4
	TERMINAL_TRANSMITTER_CONTROL = 0x8
	TERMINAL_TRANSMITTER_DATA    = 0xc
	TERMINAL_SIZE                = 0x10

	TERMINAL_READY = 1 // Ready bit of the control registers.
)

// Terminal is the memory-mapped keyboard and display.
//
// Keys typed by the host queue up until the program reads the receiver
// data register; each read delivers the next key. Program writes to the
// transmitter data register are sent to Output immediately.
type Terminal struct {
	Output  io.Writer
	Pending []byte // Keys typed, but not yet presented to the program.

	memory *memory.Memory
	base   uint32
	sub    memory.Subscription
}

// Attach maps the terminal at the base of the MMIO region.
func (term *Terminal) Attach(mem *memory.Memory) (err error) {
	if term.memory != nil {
		return ErrDeviceAttached
	}

	mmio := mem.Layout().MMIO()
	if mmio.Size < TERMINAL_SIZE {
		return ErrDeviceRange
	}

	term.memory = mem
	term.base = mmio.Base
	term.sub = mem.Subscribe(term.base, term.base+TERMINAL_SIZE, term.notice)
	term.Reset()

	return
}

// Detach unmaps the terminal.
func (term *Terminal) Detach() {
	if term.memory == nil {
		return
	}
	term.memory.Unsubscribe(term.sub)
	term.memory = nil
}

// Attached returns true if the terminal is mapped.
func (term *Terminal) Attached() bool {
	return term.memory != nil
}

// Defines returns the assembler equates for the register addresses of
// an attached terminal.
func (term *Terminal) Defines() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if term.memory == nil {
			return
		}
		defines := [](struct {
			name   string
			offset uint32
		}){
			{"RECEIVER_CONTROL", TERMINAL_RECEIVER_CONTROL},
			{"RECEIVER_DATA", TERMINAL_RECEIVER_DATA},
			{"TRANSMITTER_CONTROL", TERMINAL_TRANSMITTER_CONTROL},
			{"TRANSMITTER_DATA", TERMINAL_TRANSMITTER_DATA},
		}
		for _, def := range defines {
			if !yield(def.name, fmt.Sprintf("0x%08x", term.base+def.offset)) {
				return
			}
		}
	}
}

// Reset discards typed keys and resets the device registers.
func (term *Terminal) Reset() {
	term.Pending = nil
	if term.memory == nil {
		return
	}
	term.set(TERMINAL_RECEIVER_CONTROL, 0)
	term.set(TERMINAL_RECEIVER_DATA, 0)
	term.set(TERMINAL_TRANSMITTER_CONTROL, TERMINAL_READY)
	term.set(TERMINAL_TRANSMITTER_DATA, 0)
}

// Type queues a key for the program.
func (term *Terminal) Type(key byte) {
	term.Pending = append(term.Pending, key)
	term.deliver()
}

func (term *Terminal) set(offset uint32, value uint32) {
	prior := term.memory.SetOrigin(memory.ORIGIN_TOOL)
	defer term.memory.SetOrigin(prior)
	term.memory.SetWord(term.base+offset, value)
}

func (term *Terminal) get(offset uint32) uint32 {
	prior := term.memory.SetOrigin(memory.ORIGIN_TOOL)
	defer term.memory.SetOrigin(prior)
	value, _ := term.memory.Word(term.base + offset)
	return value
}

// deliver presents the next pending key, if the receiver is empty.
func (term *Terminal) deliver() {
	if term.memory == nil || len(term.Pending) == 0 {
		return
	}
	if term.get(TERMINAL_RECEIVER_CONTROL)&TERMINAL_READY != 0 {
		return
	}

	key := term.Pending[0]
	term.Pending = term.Pending[1:]
	term.set(TERMINAL_RECEIVER_DATA, uint32(key))
	term.set(TERMINAL_RECEIVER_CONTROL, TERMINAL_READY)
}

func (term *Terminal) notice(notice memory.Notice) {
	if !notice.FromProgram() {
		return
	}

	offset := (notice.Address - term.base) &^ 3
	switch {
	case offset == TERMINAL_RECEIVER_DATA && notice.Access == memory.ACCESS_READ:
		term.set(TERMINAL_RECEIVER_CONTROL, 0)
		term.deliver()
	case offset == TERMINAL_TRANSMITTER_DATA && notice.Access == memory.ACCESS_WRITE:
		if term.Output != nil {
			term.Output.Write([]byte{byte(notice.Value)})
		}
		term.set(TERMINAL_TRANSMITTER_CONTROL, TERMINAL_READY)
	}
}
