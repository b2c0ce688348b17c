// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package emulator is a simulation session: an address space, its
// register file and processor, the devices mapped into it, and the
// program loaded there.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"
	"sync"

	"github.com/ezrec/mipsim/backstep"
	"github.com/ezrec/mipsim/cpu"
	"github.com/ezrec/mipsim/dump"
	"github.com/ezrec/mipsim/internal"
	"github.com/ezrec/mipsim/io"
	"github.com/ezrec/mipsim/memory"
)

var _emulator_defines = map[string]string{
	"WORD_LENGTH": fmt.Sprintf("%v", memory.WORD_LENGTH),
	"HALF_LENGTH": fmt.Sprintf("%v", memory.HALF_LENGTH),
}

// Emulator state. Memory + registers + CPU + devices.
type Emulator struct {
	Verbose           bool     // If set, enables verbose logging.
	Interactive       bool     // If set, executed instructions can be stepped back.
	DelayedBranching  bool     // If set, the instruction after a taken branch is executed.
	SelfModifying     bool     // If set, the program may write its text.
	StartAtMain       bool     // If set, execution starts at the entry label.
	NoPseudo          bool     // If set, pseudo-instructions are warned about.
	WarningsAreErrors bool     // If set, assembler warnings fail the assembly.
	Arguments         []string // Program arguments, stored on the stack at reset.

	Layout    *memory.Layout
	Memory    *memory.Memory
	Registers *cpu.Registers
	Cpu       *cpu.Cpu
	Program   *cpu.Program // Currently loaded program.

	Log      backstep.Log
	Console  io.Console
	Files    io.Files
	Terminal io.Terminal

	mutex sync.Mutex
	count uint64
}

// NewEmulator creates a new emulator, with the default layout.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{}

	err := emu.configure(memory.DefaultLayout())
	if err != nil {
		panic(err)
	}

	return
}

// configure rebuilds the session for a layout. The loaded program is
// discarded.
func (emu *Emulator) configure(layout *memory.Layout) (err error) {
	mem, err := memory.NewMemory(layout)
	if err != nil {
		return
	}

	emu.Terminal.Detach()

	emu.Layout = layout
	emu.Memory = mem
	emu.Memory.Log = &emu.Log

	emu.Registers = cpu.NewRegisters(layout)
	emu.Registers.Log = &emu.Log

	emu.Files.Console = &emu.Console
	emu.Cpu = cpu.NewCpu(mem, emu.Registers)
	emu.Cpu.Log = &emu.Log
	emu.Cpu.Lock = &emu.mutex
	emu.Cpu.Console = &emu.Console
	emu.Cpu.Files = &emu.Files

	err = emu.Terminal.Attach(mem)
	if err != nil {
		return
	}

	text := layout.Text()
	mem.Subscribe(text.Base, text.Base+text.Size, emu.countInstruction)

	emu.Program = nil
	emu.count = 0
	emu.Log.Reset()

	return
}

// countInstruction counts the instruction fetches of the program.
func (emu *Emulator) countInstruction(notice memory.Notice) {
	if notice.FromProgram() && notice.Access == memory.ACCESS_READ {
		emu.count++
	}
}

// SelectLayout switches to a named address-space layout. The loaded
// program is discarded. On an unknown name the active layout is kept.
func (emu *Emulator) SelectLayout(name string) (err error) {
	layout, err := memory.LayoutByName(name)
	if err != nil {
		return
	}

	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	if emu.Verbose {
		log.Printf("emulator: layout %v", layout.Name)
	}

	return emu.configure(layout)
}

// Defines returns an iterator over all of the session defines.
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	handler := map[string]string{
		"EXCEPTION_HANDLER": fmt.Sprintf("0x%08x", emu.Layout.ExceptionHandler()),
	}
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		maps.All(handler),
		emu.Terminal.Defines(),
	)
}

// Assemble the sources, and load the program. On failure the session is
// left unchanged.
func (emu *Emulator) Assemble(sources ...cpu.Source) (prog *cpu.Program, err error) {
	asm := &cpu.Assembler{
		Verbose:           emu.Verbose,
		Layout:            emu.Layout,
		NoPseudo:          emu.NoPseudo,
		WarningsAreErrors: emu.WarningsAreErrors,
		DelayedBranching:  emu.DelayedBranching,
	}
	for name, value := range emu.Defines() {
		asm.Predefine(name, value)
	}

	prog, err = asm.Assemble(sources...)
	if err != nil {
		return
	}

	emu.Program = prog
	err = emu.Reset()

	return
}

// Reset reloads the program, and resets the processor, registers and
// devices. The backstep log is cleared.
func (emu *Emulator) Reset() (err error) {
	if emu.Program == nil {
		return ErrNoProgram
	}

	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	emu.Log.Enabled = false
	emu.Log.Reset()
	defer func() {
		emu.Log.Enabled = emu.Interactive && err == nil
	}()

	emu.Memory.Reset()
	emu.Memory.SelfModifying = emu.SelfModifying

	err = emu.Program.Load(emu.Memory)
	if err != nil {
		return
	}

	emu.Registers.ResetAll(emu.StartAtMain, emu.Program.Symbols)
	emu.Terminal.Reset()

	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.DelayedBranching = emu.DelayedBranching
	emu.Cpu.Reset()

	err = emu.storeArguments()
	if err != nil {
		return
	}

	emu.count = 0

	return
}

// storeArguments copies the program arguments to the top of the stack:
// the strings, then the NULL terminated argv array, then argc at $sp.
// $a0 is set to argc, and $a1 to argv.
func (emu *Emulator) storeArguments() (err error) {
	argc := uint32(len(emu.Arguments))
	if argc == 0 {
		return
	}

	stack := emu.Layout.Region[memory.SEGMENT_STACK]
	free := stack.Base + stack.Size // One past the highest free byte.

	argv := make([]uint32, argc)
	for n, arg := range emu.Arguments {
		length := uint32(len(arg)) + 1
		if free-stack.Base < length {
			return ErrArguments
		}
		free -= length
		argv[n] = free
		for i := range len(arg) {
			emu.Memory.SetByte(free+uint32(i), uint32(arg[i]))
		}
		emu.Memory.SetByte(free+length-1, 0)
	}

	top := free &^ 3
	words := (argc + 2) * memory.WORD_LENGTH
	if top-stack.Base < words {
		return ErrArguments
	}

	sp := top - words
	emu.Memory.SetWord(sp, argc)
	for n, addr := range argv {
		emu.Memory.SetWord(sp+uint32(n+1)*memory.WORD_LENGTH, addr)
	}
	emu.Memory.SetWord(top-memory.WORD_LENGTH, 0)

	emu.Registers.Set(cpu.REG_SP, sp)
	emu.Registers.Set(cpu.REG_A0, argc)
	emu.Registers.Set(cpu.REG_A1, sp+memory.WORD_LENGTH)

	return
}

// locate adds the source location to a runtime failure.
func (emu *Emulator) locate(err error) error {
	var failure *cpu.RuntimeFailure
	if !errors.As(err, &failure) {
		return err
	}

	dbg := emu.Program.Debug(failure.PC)
	if dbg.Opcode == nil {
		return err
	}

	return &ErrRuntime{File: dbg.File, LineNo: dbg.LineNo, Line: dbg.Line, Err: err}
}

// Simulate runs the program until it halts, fails, reaches maxSteps
// instructions or is stopped. A maxSteps of zero or less is unbounded.
// Returns true only on a normal halt.
func (emu *Emulator) Simulate(ctx context.Context, maxSteps int) (done bool, err error) {
	if emu.Program == nil {
		return false, ErrNoProgram
	}

	done, err = emu.Cpu.Simulate(ctx, maxSteps)
	err = emu.locate(err)

	return
}

// Step executes a single instruction.
func (emu *Emulator) Step() (done bool, err error) {
	if emu.Program == nil {
		return false, ErrNoProgram
	}

	done, err = emu.Cpu.Step()
	err = emu.locate(err)

	return
}

// StepBack undoes the most recent instruction. Returns false if there
// is nothing to undo, or the session is not interactive.
func (emu *Emulator) StepBack() (ok bool) {
	ok = emu.Cpu.StepBack()
	if ok {
		emu.mutex.Lock()
		if emu.count > 0 {
			emu.count--
		}
		emu.mutex.Unlock()
	}

	return
}

// Stop requests a running simulation to pause. Safe to call from any
// goroutine.
func (emu *Emulator) Stop() {
	emu.Cpu.Stop()
}

// InstructionCount returns the number of instructions fetched from the
// text segment since reset.
func (emu *Emulator) InstructionCount() uint64 {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	return emu.count
}

// Inject runs a function, such as a peripheral writing into memory,
// exclusive of the simulation.
func (emu *Emulator) Inject(fn func()) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	defer emu.Memory.SetOrigin(emu.Memory.SetOrigin(memory.ORIGIN_TOOL))
	fn()
}

// Type presses a key on the terminal keyboard.
func (emu *Emulator) Type(key byte) {
	emu.Inject(func() {
		emu.Terminal.Type(key)
	})
}

// Register returns the value of a register, by name or number.
func (emu *Emulator) Register(name string) (value uint32, err error) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	return emu.Registers.GetByName(name)
}

// Word returns an aligned memory word. Text words are read without
// notifying observers.
func (emu *Emulator) Word(addr uint32) (value uint32, err error) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	if emu.Layout.InText(addr) {
		value, _, err = emu.Memory.RawWord(addr)
		return
	}

	return emu.Memory.Word(addr)
}

// Byte returns a memory byte.
func (emu *Emulator) Byte(addr uint32) (value uint32, err error) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	return emu.Memory.Byte(addr)
}

// Dump writes a memory range to a file.
func (emu *Emulator) Dump(fs io.CreateFS, req dump.Request) (err error) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	dumper := &dump.Dumper{Verbose: emu.Verbose, Memory: emu.Memory, FS: fs}
	return dumper.Dump(req)
}

// Close the emulator, closing any open files.
func (emu *Emulator) Close() (err error) {
	emu.Files.CloseAll()
	emu.Terminal.Detach()

	return
}
