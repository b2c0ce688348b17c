// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"log"
	"slices"
	"strconv"
	"strings"

	"github.com/ezrec/mipsim/backstep"
	"github.com/ezrec/mipsim/memory"
)

const (
	REG_ZERO = 0
	REG_AT   = 1
	REG_V0   = 2
	REG_V1   = 3
	REG_A0   = 4
	REG_A1   = 5
	REG_A2   = 6
	REG_A3   = 7
	REG_T0   = 8
	REG_GP   = 28
	REG_SP   = 29
	REG_FP   = 30
	REG_RA   = 31
	REG_PC   = 32
	REG_HI   = 33
	REG_LO   = 34

	REGISTER_COUNT = 35
)

const (
	COP0_VADDR  = 8
	COP0_STATUS = 12
	COP0_CAUSE  = 13
	COP0_EPC    = 14

	COP0_STATUS_RESET = 0x0000_ff11
	COP0_STATUS_EXL   = 1 << 1
	COP0_CAUSE_BD     = 1 << 31
)

var registerNames = [REGISTER_COUNT]string{
	"$zero", "$at", "$v0", "$v1", "$a0", "$a1", "$a2", "$a3",
	"$t0", "$t1", "$t2", "$t3", "$t4", "$t5", "$t6", "$t7",
	"$s0", "$s1", "$s2", "$s3", "$s4", "$s5", "$s6", "$s7",
	"$t8", "$t9", "$k0", "$k1", "$gp", "$sp", "$fp", "$ra",
	"pc", "hi", "lo",
}

var cop0Names = map[int]string{
	COP0_VADDR:  "vaddr",
	COP0_STATUS: "status",
	COP0_CAUSE:  "cause",
	COP0_EPC:    "epc",
}

// Cop0Name returns the name of a coprocessor 0 register, or the
// empty string if it is not modeled.
func Cop0Name(reg int) string {
	return cop0Names[reg]
}

// Register is a single processor register.
type Register struct {
	Number int
	Name   string
	Value  uint32
	Reset  uint32 // Value after a reset.
}

// RegisterNotice describes one register write.
type RegisterNotice struct {
	Register int // Register number; REG_PC for the program counter.
	Name     string
	Value    uint32
	Origin   memory.Origin
}

// RegisterObserver receives register notices synchronously.
type RegisterObserver func(notice RegisterNotice)

type registerSubscriber struct {
	id int
	fn RegisterObserver
}

// Registers is the register file, including coprocessor 0.
type Registers struct {
	Verbose bool          // If set, logs every register write.
	Log     *backstep.Log // If set, records the prior value of every write.

	Register [REGISTER_COUNT]Register
	Cop0     [32]uint32

	layout    *memory.Layout
	origin    memory.Origin
	observers []registerSubscriber
	nextId    int
}

// NewRegisters creates a register file for a layout, in its reset state.
func NewRegisters(layout *memory.Layout) (rf *Registers) {
	rf = &Registers{}
	rf.Configure(layout)
	return
}

// Configure sets the reset values from a layout, and resets all registers.
func (rf *Registers) Configure(layout *memory.Layout) {
	rf.layout = layout
	for n := range rf.Register {
		rf.Register[n] = Register{Number: n, Name: registerNames[n]}
	}
	rf.Register[REG_GP].Reset = layout.GlobalPointer
	rf.Register[REG_SP].Reset = layout.StackPointer
	rf.Register[REG_PC].Reset = layout.Text().Base

	rf.ResetAll(false, nil)
}

// SetOrigin sets the origin reported for subsequent writes, and
// returns the prior origin.
func (rf *Registers) SetOrigin(origin memory.Origin) (prior memory.Origin) {
	prior = rf.origin
	rf.origin = origin
	return
}

// Lookup finds a register number by name. Accepted forms are `$t0`,
// `t0`, `$8`, `8`, `pc`, `hi`, and `lo`.
func Lookup(name string) (reg int, ok bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	bare := strings.TrimPrefix(name, "$")

	number, err := strconv.Atoi(bare)
	if err == nil {
		if number >= 0 && number < 32 {
			return number, true
		}
		return
	}

	if bare == "s8" {
		return REG_FP, true
	}

	for n, reg_name := range registerNames {
		if strings.TrimPrefix(reg_name, "$") == bare {
			return n, true
		}
	}

	return
}

// Get returns the value of a register.
func (rf *Registers) Get(reg int) uint32 {
	if reg <= REG_ZERO || reg >= REGISTER_COUNT {
		return 0
	}
	return rf.Register[reg].Value
}

// Set writes a register. Writes to $zero are ignored.
func (rf *Registers) Set(reg int, value uint32) {
	if reg == REG_PC {
		rf.SetProgramCounter(value)
		return
	}

	if reg <= REG_ZERO || reg >= REGISTER_COUNT {
		return
	}

	rf.write(backstep.KIND_REGISTER, reg, value)
}

func (rf *Registers) write(kind backstep.Kind, reg int, value uint32) {
	r := &rf.Register[reg]

	if rf.Log != nil {
		rf.Log.Push(backstep.Entry{Kind: kind, Register: reg, Value: r.Value})
	}

	if rf.Verbose {
		log.Printf("register: %v 0x%08x => 0x%08x", r.Name, r.Value, value)
	}

	r.Value = value
	rf.notify(reg, r.Name, value)
}

// GetByName returns the value of a named register.
func (rf *Registers) GetByName(name string) (value uint32, err error) {
	reg, ok := Lookup(name)
	if !ok {
		err = ErrRegisterInvalid
		return
	}

	value = rf.Get(reg)
	return
}

// SetByName writes a named register.
func (rf *Registers) SetByName(name string, value uint32) (err error) {
	reg, ok := Lookup(name)
	if !ok {
		err = ErrRegisterInvalid
		return
	}

	rf.Set(reg, value)
	return
}

// ProgramCounter returns the program counter.
func (rf *Registers) ProgramCounter() uint32 {
	return rf.Register[REG_PC].Value
}

// SetProgramCounter transfers control. The change is journaled and
// reported to observers.
func (rf *Registers) SetProgramCounter(value uint32) {
	rf.write(backstep.KIND_PC, REG_PC, value)
}

// IncrementProgramCounter advances past the current instruction,
// without journaling or notices. The backstep step boundary records
// the program counter instead.
func (rf *Registers) IncrementProgramCounter() {
	rf.Register[REG_PC].Value += INSTRUCTION_LENGTH
}

// GetCop0 returns a coprocessor 0 register.
func (rf *Registers) GetCop0(reg int) uint32 {
	return rf.Cop0[reg&0x1f]
}

// SetCop0 writes a coprocessor 0 register.
func (rf *Registers) SetCop0(reg int, value uint32) {
	reg &= 0x1f

	if rf.Log != nil {
		rf.Log.Push(backstep.Entry{Kind: backstep.KIND_COP0, Register: reg, Value: rf.Cop0[reg]})
	}

	rf.Cop0[reg] = value
}

// Restore replays a backstep entry, without journaling it.
func (rf *Registers) Restore(entry backstep.Entry) {
	switch entry.Kind {
	case backstep.KIND_REGISTER, backstep.KIND_PC:
		r := &rf.Register[entry.Register]
		r.Value = entry.Value
		rf.notify(r.Number, r.Name, r.Value)
	case backstep.KIND_COP0:
		rf.Cop0[entry.Register&0x1f] = entry.Value
	case backstep.KIND_STEP:
		rf.Register[REG_PC].Value = entry.Value
	}
}

// InitializeProgramCounter sets the program counter to the entry label,
// if requested and it resolves inside a text segment, or else to the
// reset address.
func (rf *Registers) InitializeProgramCounter(useEntry bool, symbols *SymbolTable) {
	pc := rf.Register[REG_PC].Reset

	if useEntry && symbols != nil {
		addr, ok := symbols.Entry()
		if ok && rf.layout.InText(addr) {
			pc = addr
		}
	}

	rf.Register[REG_PC].Value = pc
}

// ResetAll restores every register to its reset value, and initializes
// the program counter.
func (rf *Registers) ResetAll(useEntry bool, symbols *SymbolTable) {
	for n := range rf.Register {
		rf.Register[n].Value = rf.Register[n].Reset
	}
	clear(rf.Cop0[:])
	rf.Cop0[COP0_STATUS] = COP0_STATUS_RESET

	rf.InitializeProgramCounter(useEntry, symbols)
}

// Subscribe registers an observer for all register writes.
func (rf *Registers) Subscribe(observer RegisterObserver) int {
	rf.nextId++
	rf.observers = append(slices.Clip(rf.observers), registerSubscriber{id: rf.nextId, fn: observer})
	return rf.nextId
}

// Unsubscribe removes an observer registration.
func (rf *Registers) Unsubscribe(id int) {
	rf.observers = slices.DeleteFunc(slices.Clone(rf.observers), func(s registerSubscriber) bool {
		return s.id == id
	})
}

func (rf *Registers) notify(reg int, name string, value uint32) {
	for _, sub := range rf.observers {
		sub.fn(RegisterNotice{Register: reg, Name: name, Value: value, Origin: rf.origin})
	}
}
