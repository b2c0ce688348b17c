// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package script runs Lua tools that observe a simulation session.
//
// A script sees a global table `mips`:
//
//	mips.on_memory(lo, hi, fn)  fn(access, address, length, value) for accesses in [lo, hi)
//	mips.on_register(fn)        fn(name, number, value) for register writes
//	mips.word(addr)             read a word, without notices
//	mips.byte(addr)             read a byte, without notices
//	mips.set_word(addr, value)  write a word, as a tool
//	mips.register(name)         read a register
//	mips.ticks()                instructions executed since reset
//	mips.stop()                 pause the simulation
//	mips.READ, mips.WRITE       access kinds
//
// Observers run synchronously on the simulation goroutine. An observer
// error pauses the simulation, and is reported by Err.
package script

import (
	"fmt"
	"io"
	"log"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/ezrec/mipsim/cpu"
	"github.com/ezrec/mipsim/emulator"
	"github.com/ezrec/mipsim/memory"
)

// Script is a Lua tool attached to an emulator.
type Script struct {
	Verbose bool
	Output  io.Writer // Destination of print(); nil discards.

	name    string
	emu     *emulator.Emulator
	mem     *memory.Memory
	regs    *cpu.Registers
	state   *lua.LState
	memSubs []memory.Subscription
	regSubs []int
	err     error
}

// New creates a script environment for an emulator. Observers attach to
// the emulator's current memory and registers, so select the layout
// first.
func New(emu *emulator.Emulator) (s *Script) {
	s = &Script{
		emu:   emu,
		mem:   emu.Memory,
		regs:  emu.Registers,
		state: lua.NewState(),
	}

	L := s.state
	mips := L.NewTable()
	L.SetField(mips, "READ", lua.LNumber(memory.ACCESS_READ))
	L.SetField(mips, "WRITE", lua.LNumber(memory.ACCESS_WRITE))

	functions := map[string]lua.LGFunction{
		"on_memory":   s.onMemory,
		"on_register": s.onRegister,
		"word":        s.word,
		"byte":        s.byte,
		"set_word":    s.setWord,
		"register":    s.register,
		"ticks":       s.ticks,
		"stop":        s.stop,
	}
	for name, fn := range functions {
		L.SetField(mips, name, L.NewFunction(fn))
	}

	L.SetGlobal("mips", mips)
	L.SetGlobal("print", L.NewFunction(s.print))

	return
}

// Load runs a script's top level, which normally registers observers.
func (s *Script) Load(name string, source io.Reader) (err error) {
	if s.state == nil {
		return ErrClosed
	}

	s.name = name

	if s.Verbose {
		log.Printf("script: load %v", name)
	}

	L := s.state
	fn, err := L.Load(source, name)
	if err == nil {
		L.Push(fn)
		err = L.PCall(0, lua.MultRet, nil)
	}
	if err != nil {
		err = &ErrScript{Name: name, Err: err}
	}

	return
}

// Err returns the first observer failure.
func (s *Script) Err() error {
	return s.err
}

// Close detaches the observers, and releases the Lua state.
func (s *Script) Close() {
	if s.state == nil {
		return
	}

	for _, id := range s.memSubs {
		s.mem.Unsubscribe(id)
	}
	for _, id := range s.regSubs {
		s.regs.Unsubscribe(id)
	}
	s.memSubs = nil
	s.regSubs = nil

	s.state.Close()
	s.state = nil
}

// call runs an observer. The first failure stops the simulation.
func (s *Script) call(fn *lua.LFunction, args ...lua.LValue) {
	if s.err != nil {
		return
	}

	err := s.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
	if err != nil {
		s.err = &ErrScript{Name: s.name, Err: err}
		if s.Verbose {
			log.Printf("script: %v", s.err)
		}
		s.emu.Stop()
	}
}

func address(L *lua.LState, n int) uint32 {
	return uint32(L.CheckInt64(n))
}

func (s *Script) onMemory(L *lua.LState) int {
	lo := address(L, 1)
	hi := address(L, 2)
	fn := L.CheckFunction(3)

	id := s.mem.Subscribe(lo, hi, func(notice memory.Notice) {
		s.call(fn,
			lua.LNumber(notice.Access),
			lua.LNumber(notice.Address),
			lua.LNumber(notice.Length),
			lua.LNumber(notice.Value),
		)
	})
	s.memSubs = append(s.memSubs, id)

	L.Push(lua.LNumber(id))
	return 1
}

func (s *Script) onRegister(L *lua.LState) int {
	fn := L.CheckFunction(1)

	id := s.regs.Subscribe(func(notice cpu.RegisterNotice) {
		s.call(fn,
			lua.LString(notice.Name),
			lua.LNumber(notice.Register),
			lua.LNumber(notice.Value),
		)
	})
	s.regSubs = append(s.regSubs, id)

	L.Push(lua.LNumber(id))
	return 1
}

func (s *Script) word(L *lua.LState) int {
	value, _, err := s.mem.RawWord(address(L, 1))
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}

	L.Push(lua.LNumber(value))
	return 1
}

func (s *Script) byte(L *lua.LState) int {
	addr := address(L, 1)
	value, _, err := s.mem.RawWord(addr &^ 3)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}

	L.Push(lua.LNumber((value >> ((addr & 3) * 8)) & 0xff))
	return 1
}

func (s *Script) setWord(L *lua.LState) int {
	addr := address(L, 1)
	value := uint32(L.CheckInt64(2))

	defer s.mem.SetOrigin(s.mem.SetOrigin(memory.ORIGIN_TOOL))
	err := s.mem.SetWord(addr, value)
	if err != nil {
		L.RaiseError("%v", err)
	}

	return 0
}

func (s *Script) register(L *lua.LState) int {
	value, err := s.regs.GetByName(L.CheckString(1))
	if err != nil {
		L.RaiseError("%v: %v", L.CheckString(1), err)
		return 0
	}

	L.Push(lua.LNumber(value))
	return 1
}

func (s *Script) ticks(L *lua.LState) int {
	L.Push(lua.LNumber(s.emu.Cpu.Ticks))
	return 1
}

func (s *Script) stop(L *lua.LState) int {
	s.emu.Stop()
	return 0
}

func (s *Script) print(L *lua.LState) int {
	args := make([]string, L.GetTop())
	for n := range args {
		args[n] = L.ToStringMeta(L.Get(n + 1)).String()
	}

	if s.Output != nil {
		fmt.Fprintln(s.Output, strings.Join(args, "\t"))
	}

	return 0
}
