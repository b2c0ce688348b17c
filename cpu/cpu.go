// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/ezrec/mipsim/backstep"
	"github.com/ezrec/mipsim/io"
	"github.com/ezrec/mipsim/memory"
)

// State is the execution state of the processor.
type State int

//go:generate go tool stringer -linecomment -type=State
const (
	STATE_READY        = State(0) // ready
	STATE_RUNNING      = State(1) // running
	STATE_STEPPING     = State(2) // stepping
	STATE_PAUSED       = State(3) // paused
	STATE_HALTED       = State(4) // halted
	STATE_HALTED_ERROR = State(5) // halted (error)
	STATE_HALTED_LIMIT = State(6) // halted (step limit)
)

// Delayed branch states.
const (
	BRANCH_CLEAR      = 0 // No branch pending.
	BRANCH_REGISTERED = 1 // Branch executed; the delay slot is next.
	BRANCH_TRIGGERED  = 2 // Delay slot executing; target is applied after it.
)

// trap is a runtime exception raised by an instruction.
type trap struct {
	cause Exception
	vaddr uint32
	err   error
}

func (t *trap) Error() string {
	return fmt.Sprintf("%v: %v", t.cause, t.err)
}

func (t *trap) Unwrap() error {
	return t.err
}

// errExit ends the program normally.
var errExit = errors.New("exit")

// Cpu is the simulation context for the processor.
type Cpu struct {
	Verbose          bool // Set to enable verbose logging.
	DelayedBranching bool // Set to execute the instruction after a taken branch.

	Memory    *memory.Memory
	Registers *Registers
	Log       *backstep.Log // If set, and enabled, instructions can be undone.
	Console   *io.Console   // Console for the syscall services.
	Files     *io.Files     // File table for the syscall services.
	Lock      sync.Locker   // If set, held for each instruction.

	State    State
	Ticks    uint64 // Instructions executed.
	ExitCode int    // Exit code from the exit2 syscall.

	pending int
	target  uint32
	heap    uint32
	random  map[uint32]*randomStream
	stop    atomic.Bool
}

// NewCpu creates a processor over a memory and register file.
func NewCpu(mem *memory.Memory, regs *Registers) (cpu *Cpu) {
	cpu = &Cpu{
		Memory:    mem,
		Registers: regs,
		Console:   &io.Console{},
	}
	cpu.Files = &io.Files{Console: cpu.Console}
	cpu.Reset()

	return
}

// Reset the processor state. Memory and registers are left alone.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	cpu.State = STATE_READY
	cpu.Ticks = 0
	cpu.ExitCode = 0
	cpu.pending = BRANCH_CLEAR
	cpu.target = 0
	cpu.heap = cpu.Memory.Layout().Region[memory.SEGMENT_HEAP].Base
	cpu.random = nil
	cpu.stop.Store(false)

	if cpu.Files != nil {
		cpu.Files.CloseAll()
	}
}

// String returns the current register state as a string.
func (cpu *Cpu) String() (text string) {
	for n := range REGISTER_COUNT {
		r := &cpu.Registers.Register[n]
		text += fmt.Sprintf("% 5s: %04x_%04x\n", r.Name, r.Value>>16, r.Value&0xffff)
	}
	return
}

// Stop requests a running simulation to pause before the next instruction.
// A request made before Simulate starts pauses it before its first
// instruction. Safe to call from any goroutine.
func (cpu *Cpu) Stop() {
	cpu.stop.Store(true)
}

// Halted returns true if the program can not continue.
func (cpu *Cpu) Halted() bool {
	return cpu.State == STATE_HALTED || cpu.State == STATE_HALTED_ERROR
}

// Simulate runs until the program halts, an error occurs, the step
// limit is reached, or a stop is requested. A maxSteps of zero or less
// is unbounded. Returns true only on a normal halt.
func (cpu *Cpu) Simulate(ctx context.Context, maxSteps int) (done bool, err error) {
	if cpu.Halted() {
		done, err = cpu.Tick()
		if err != nil {
			done = false
		}
		return
	}

	cpu.State = STATE_RUNNING

	for steps := 0; maxSteps <= 0 || steps < maxSteps; steps++ {
		if cpu.stop.Swap(false) {
			cpu.State = STATE_PAUSED
			return
		}
		err = ctx.Err()
		if err != nil {
			cpu.State = STATE_PAUSED
			return
		}

		done, err = cpu.Tick()
		if err != nil {
			done = false
			return
		}
		if done {
			return
		}
	}

	cpu.State = STATE_HALTED_LIMIT
	return
}

// Step executes a single instruction.
func (cpu *Cpu) Step() (done bool, err error) {
	if cpu.Halted() {
		return cpu.Tick()
	}

	cpu.State = STATE_STEPPING
	done, err = cpu.Tick()
	if cpu.State == STATE_STEPPING {
		cpu.State = STATE_PAUSED
	}
	return
}

// Tick executes a single fetch-decode-execute cycle. It returns done when
// the program has halted, either normally or with an error.
func (cpu *Cpu) Tick() (done bool, err error) {
	if cpu.Lock != nil {
		cpu.Lock.Lock()
		defer cpu.Lock.Unlock()
	}

	switch cpu.State {
	case STATE_HALTED:
		return true, nil
	case STATE_HALTED_ERROR:
		return true, ErrHalted
	}

	mem := cpu.Memory
	regs := cpu.Registers

	defer mem.SetOrigin(mem.SetOrigin(memory.ORIGIN_PROGRAM))
	defer regs.SetOrigin(regs.SetOrigin(memory.ORIGIN_PROGRAM))

	pc := regs.ProgramCounter()

	_, written, err := mem.RawWord(pc)
	if err == nil && !mem.Layout().InText(pc) && !mem.SelfModifying {
		err = &memory.AddressError{Address: pc, Access: memory.ACCESS_READ, Err: ErrFetch}
	}
	if err != nil {
		cpu.begin(pc)
		return cpu.fault(pc, &trap{cause: EXCEPTION_ADDRESS_LOAD, vaddr: pc, err: err})
	}

	if !written {
		// Dropped off the bottom of the program.
		if cpu.Verbose {
			log.Printf("cpu: 0x%08x: end of program", pc)
		}
		cpu.State = STATE_HALTED
		return true, nil
	}

	word, err := mem.Word(pc)
	if err != nil {
		cpu.begin(pc)
		return cpu.fault(pc, &trap{cause: EXCEPTION_ADDRESS_LOAD, vaddr: pc, err: err})
	}

	cpu.begin(pc)

	inst, err := Decode(word)
	if err != nil {
		return cpu.fault(pc, &trap{cause: EXCEPTION_RESERVED, err: err})
	}

	if cpu.Verbose {
		log.Printf("cpu: 0x%08x: %08x %v", pc, word, inst)
	}

	regs.IncrementProgramCounter()

	err = cpu.execute(inst, pc)
	if errors.Is(err, errExit) {
		cpu.State = STATE_HALTED
		return true, nil
	}
	if err != nil {
		return cpu.fault(pc, err)
	}

	switch cpu.pending {
	case BRANCH_TRIGGERED:
		regs.SetProgramCounter(cpu.target)
		cpu.pending = BRANCH_CLEAR
	case BRANCH_REGISTERED:
		cpu.pending = BRANCH_TRIGGERED
	}

	return
}

// begin opens a backstep step for the instruction at pc.
func (cpu *Cpu) begin(pc uint32) {
	cpu.Ticks++
	if cpu.Log != nil {
		cpu.Log.Begin(pc, cpu.pending, cpu.target)
	}
}

// fault raises a runtime exception. If an exception handler is loaded,
// control transfers to it; otherwise the simulation halts with a
// RuntimeFailure.
func (cpu *Cpu) fault(pc uint32, err error) (done bool, failure error) {
	var t *trap
	if !errors.As(err, &t) {
		t = &trap{cause: EXCEPTION_RESERVED, err: err}
	}

	regs := cpu.Registers
	handler := cpu.Memory.Layout().ExceptionHandler()
	_, loaded, _ := cpu.Memory.RawWord(handler)
	nested := regs.GetCop0(COP0_STATUS)&COP0_STATUS_EXL != 0

	if loaded && !nested {
		if cpu.Verbose {
			log.Printf("cpu: 0x%08x: exception %v", pc, t)
		}
		cause := uint32(t.cause) << 2
		if cpu.pending == BRANCH_TRIGGERED {
			cause |= COP0_CAUSE_BD
		}
		regs.SetCop0(COP0_EPC, pc)
		regs.SetCop0(COP0_CAUSE, cause)
		if t.cause == EXCEPTION_ADDRESS_LOAD || t.cause == EXCEPTION_ADDRESS_STORE {
			regs.SetCop0(COP0_VADDR, t.vaddr)
		}
		regs.SetCop0(COP0_STATUS, regs.GetCop0(COP0_STATUS)|COP0_STATUS_EXL)
		cpu.pending = BRANCH_CLEAR
		regs.SetProgramCounter(handler)
		return
	}

	// The faulting instruction has no effect, not even on the PC.
	regs.Register[REG_PC].Value = pc
	cpu.State = STATE_HALTED_ERROR

	done = true
	failure = &RuntimeFailure{PC: pc, Address: t.vaddr, Class: t.cause, Err: t.err}
	return
}

// StepBack undoes the most recent instruction. Returns false if there
// is nothing to undo.
func (cpu *Cpu) StepBack() bool {
	if cpu.Lock != nil {
		cpu.Lock.Lock()
		defer cpu.Lock.Unlock()
	}

	if cpu.Log == nil || !cpu.Log.Enabled {
		return false
	}

	entries, ok := cpu.Log.PopStep()
	if !ok {
		return false
	}

	for _, entry := range entries {
		switch entry.Kind {
		case backstep.KIND_MEMORY:
			cpu.Memory.Restore(entry.Address, entry.Value, entry.Written)
		case backstep.KIND_STEP:
			cpu.Registers.Restore(entry)
			cpu.pending = entry.Pending
			cpu.target = entry.Target
		case backstep.KIND_HEAP:
			cpu.heap = entry.Value
		default:
			cpu.Registers.Restore(entry)
		}
	}

	if cpu.Ticks > 0 {
		cpu.Ticks--
	}
	cpu.State = STATE_PAUSED

	return true
}

// branch transfers control, honoring delayed branching.
func (cpu *Cpu) branch(target uint32) {
	if cpu.DelayedBranching {
		cpu.pending = BRANCH_REGISTERED
		cpu.target = target
		return
	}
	cpu.Registers.SetProgramCounter(target)
}

// link sets a return address register.
func (cpu *Cpu) link(reg int) {
	ret := cpu.Registers.ProgramCounter()
	if cpu.DelayedBranching {
		ret += INSTRUCTION_LENGTH
	}
	cpu.Registers.Set(reg, ret)
}

func loadTrap(addr uint32, err error) error {
	return &trap{cause: EXCEPTION_ADDRESS_LOAD, vaddr: addr, err: err}
}

func storeTrap(addr uint32, err error) error {
	return &trap{cause: EXCEPTION_ADDRESS_STORE, vaddr: addr, err: err}
}

func setByte(word uint32, index uint32, value uint32) uint32 {
	shift := index * 8
	return (word &^ (0xff << shift)) | ((value & 0xff) << shift)
}

func getByte(word uint32, index uint32) uint32 {
	return (word >> (index * 8)) & 0xff
}

// execute runs a decoded instruction. The PC has already been advanced.
func (cpu *Cpu) execute(inst Instruction, pc uint32) (err error) {
	regs := cpu.Registers
	mem := cpu.Memory

	rs := regs.Get(int(inst.Rs))
	rt := regs.Get(int(inst.Rt))
	rd := int(inst.Rd)
	imm := inst.SignedImm()
	uimm := uint32(inst.Imm)
	addr := rs + imm
	next := pc + INSTRUCTION_LENGTH

	switch inst.Op {
	case OP_SLL:
		regs.Set(rd, rt<<inst.Shamt)
	case OP_SRL:
		regs.Set(rd, rt>>inst.Shamt)
	case OP_SRA:
		regs.Set(rd, uint32(int32(rt)>>inst.Shamt))
	case OP_SLLV:
		regs.Set(rd, rt<<(rs&31))
	case OP_SRLV:
		regs.Set(rd, rt>>(rs&31))
	case OP_SRAV:
		regs.Set(rd, uint32(int32(rt)>>(rs&31)))
	case OP_JR:
		cpu.branch(rs)
	case OP_JALR:
		cpu.link(rd)
		cpu.branch(rs)
	case OP_MOVZ:
		if rt == 0 {
			regs.Set(rd, rs)
		}
	case OP_MOVN:
		if rt != 0 {
			regs.Set(rd, rs)
		}
	case OP_SYSCALL:
		err = cpu.syscall()
	case OP_BREAK:
		err = &trap{cause: EXCEPTION_BREAKPOINT, err: ErrBreak}
	case OP_MFHI:
		regs.Set(rd, regs.Get(REG_HI))
	case OP_MTHI:
		regs.Set(REG_HI, rs)
	case OP_MFLO:
		regs.Set(rd, regs.Get(REG_LO))
	case OP_MTLO:
		regs.Set(REG_LO, rs)
	case OP_MULT:
		cpu.setHiLo(uint64(int64(int32(rs)) * int64(int32(rt))))
	case OP_MULTU:
		cpu.setHiLo(uint64(rs) * uint64(rt))
	case OP_DIV:
		// Division by zero leaves hi and lo unchanged.
		if rt != 0 {
			regs.Set(REG_HI, uint32(int32(rs)%int32(rt)))
			regs.Set(REG_LO, uint32(int32(rs)/int32(rt)))
		}
	case OP_DIVU:
		if rt != 0 {
			regs.Set(REG_HI, rs%rt)
			regs.Set(REG_LO, rs/rt)
		}
	case OP_ADD:
		var sum uint32
		sum, err = addOverflow(rs, rt)
		if err == nil {
			regs.Set(rd, sum)
		}
	case OP_ADDU:
		regs.Set(rd, rs+rt)
	case OP_SUB:
		diff := rs - rt
		if (rs^rt)&(rs^diff)&0x8000_0000 != 0 {
			err = &trap{cause: EXCEPTION_OVERFLOW, err: ErrOverflow}
		} else {
			regs.Set(rd, diff)
		}
	case OP_SUBU:
		regs.Set(rd, rs-rt)
	case OP_AND:
		regs.Set(rd, rs&rt)
	case OP_OR:
		regs.Set(rd, rs|rt)
	case OP_XOR:
		regs.Set(rd, rs^rt)
	case OP_NOR:
		regs.Set(rd, ^(rs | rt))
	case OP_SLT:
		regs.Set(rd, boolWord(int32(rs) < int32(rt)))
	case OP_SLTU:
		regs.Set(rd, boolWord(rs < rt))
	case OP_TGE:
		err = cpu.trapIf(int32(rs) >= int32(rt))
	case OP_TGEU:
		err = cpu.trapIf(rs >= rt)
	case OP_TLT:
		err = cpu.trapIf(int32(rs) < int32(rt))
	case OP_TLTU:
		err = cpu.trapIf(rs < rt)
	case OP_TEQ:
		err = cpu.trapIf(rs == rt)
	case OP_TNE:
		err = cpu.trapIf(rs != rt)

	case OP_MADD:
		acc := cpu.hiLo() + uint64(int64(int32(rs))*int64(int32(rt)))
		cpu.setHiLo(acc)
	case OP_MADDU:
		cpu.setHiLo(cpu.hiLo() + uint64(rs)*uint64(rt))
	case OP_MUL:
		product := uint64(int64(int32(rs)) * int64(int32(rt)))
		cpu.setHiLo(product)
		regs.Set(rd, uint32(product))
	case OP_MSUB:
		acc := cpu.hiLo() - uint64(int64(int32(rs))*int64(int32(rt)))
		cpu.setHiLo(acc)
	case OP_MSUBU:
		cpu.setHiLo(cpu.hiLo() - uint64(rs)*uint64(rt))
	case OP_CLZ:
		regs.Set(rd, uint32(bits.LeadingZeros32(rs)))
	case OP_CLO:
		regs.Set(rd, uint32(bits.LeadingZeros32(^rs)))

	case OP_BLTZ:
		if int32(rs) < 0 {
			cpu.branch(next + imm<<2)
		}
	case OP_BGEZ:
		if int32(rs) >= 0 {
			cpu.branch(next + imm<<2)
		}
	case OP_BLTZAL:
		if int32(rs) < 0 {
			cpu.link(REG_RA)
			cpu.branch(next + imm<<2)
		}
	case OP_BGEZAL:
		if int32(rs) >= 0 {
			cpu.link(REG_RA)
			cpu.branch(next + imm<<2)
		}
	case OP_TGEI:
		err = cpu.trapIf(int32(rs) >= int32(imm))
	case OP_TGEIU:
		err = cpu.trapIf(rs >= imm)
	case OP_TLTI:
		err = cpu.trapIf(int32(rs) < int32(imm))
	case OP_TLTIU:
		err = cpu.trapIf(rs < imm)
	case OP_TEQI:
		err = cpu.trapIf(rs == imm)
	case OP_TNEI:
		err = cpu.trapIf(rs != imm)

	case OP_MFC0:
		regs.Set(int(inst.Rt), regs.GetCop0(rd))
	case OP_MTC0:
		regs.SetCop0(rd, rt)
	case OP_ERET:
		regs.SetCop0(COP0_STATUS, regs.GetCop0(COP0_STATUS)&^COP0_STATUS_EXL)
		regs.SetProgramCounter(regs.GetCop0(COP0_EPC))

	case OP_J:
		cpu.branch((next & 0xf000_0000) | (inst.Target << 2))
	case OP_JAL:
		cpu.link(REG_RA)
		cpu.branch((next & 0xf000_0000) | (inst.Target << 2))
	case OP_BEQ:
		if rs == rt {
			cpu.branch(next + imm<<2)
		}
	case OP_BNE:
		if rs != rt {
			cpu.branch(next + imm<<2)
		}
	case OP_BLEZ:
		if int32(rs) <= 0 {
			cpu.branch(next + imm<<2)
		}
	case OP_BGTZ:
		if int32(rs) > 0 {
			cpu.branch(next + imm<<2)
		}
	case OP_ADDI:
		var sum uint32
		sum, err = addOverflow(rs, imm)
		if err == nil {
			regs.Set(int(inst.Rt), sum)
		}
	case OP_ADDIU:
		regs.Set(int(inst.Rt), rs+imm)
	case OP_SLTI:
		regs.Set(int(inst.Rt), boolWord(int32(rs) < int32(imm)))
	case OP_SLTIU:
		regs.Set(int(inst.Rt), boolWord(rs < imm))
	case OP_ANDI:
		regs.Set(int(inst.Rt), rs&uimm)
	case OP_ORI:
		regs.Set(int(inst.Rt), rs|uimm)
	case OP_XORI:
		regs.Set(int(inst.Rt), rs^uimm)
	case OP_LUI:
		regs.Set(int(inst.Rt), uimm<<16)

	case OP_LB, OP_LBU:
		var value uint32
		value, err = mem.Byte(addr)
		if err != nil {
			return loadTrap(addr, err)
		}
		if inst.Op == OP_LB {
			value = uint32(int32(int8(value)))
		}
		regs.Set(int(inst.Rt), value)
	case OP_LH, OP_LHU:
		var value uint32
		value, err = mem.Half(addr)
		if err != nil {
			return loadTrap(addr, err)
		}
		if inst.Op == OP_LH {
			value = uint32(int32(int16(value)))
		}
		regs.Set(int(inst.Rt), value)
	case OP_LW, OP_LL:
		var value uint32
		value, err = mem.Word(addr)
		if err != nil {
			return loadTrap(addr, err)
		}
		regs.Set(int(inst.Rt), value)
	case OP_LWL:
		result := rt
		for n := uint32(0); n <= addr&3; n++ {
			var value uint32
			value, err = mem.Byte(addr - n)
			if err != nil {
				return loadTrap(addr-n, err)
			}
			result = setByte(result, 3-n, value)
		}
		regs.Set(int(inst.Rt), result)
	case OP_LWR:
		result := rt
		for n := uint32(0); n <= 3-(addr&3); n++ {
			var value uint32
			value, err = mem.Byte(addr + n)
			if err != nil {
				return loadTrap(addr+n, err)
			}
			result = setByte(result, n, value)
		}
		regs.Set(int(inst.Rt), result)
	case OP_SB:
		err = mem.SetByte(addr, rt)
		if err != nil {
			return storeTrap(addr, err)
		}
	case OP_SH:
		err = mem.SetHalf(addr, rt)
		if err != nil {
			return storeTrap(addr, err)
		}
	case OP_SW:
		err = mem.SetWord(addr, rt)
		if err != nil {
			return storeTrap(addr, err)
		}
	case OP_SC:
		err = mem.SetWord(addr, rt)
		if err != nil {
			return storeTrap(addr, err)
		}
		// Always succeeds; there is no other processor.
		regs.Set(int(inst.Rt), 1)
	case OP_SWL:
		for n := uint32(0); n <= addr&3; n++ {
			err = mem.SetByte(addr-n, getByte(rt, 3-n))
			if err != nil {
				return storeTrap(addr-n, err)
			}
		}
	case OP_SWR:
		for n := uint32(0); n <= 3-(addr&3); n++ {
			err = mem.SetByte(addr+n, getByte(rt, n))
			if err != nil {
				return storeTrap(addr+n, err)
			}
		}
	default:
		err = &trap{cause: EXCEPTION_RESERVED, err: ErrOpcode(inst.Encode())}
	}

	return
}

func boolWord(cond bool) uint32 {
	if cond {
		return 1
	}
	return 0
}

func addOverflow(a, b uint32) (sum uint32, err error) {
	sum = a + b
	if ^(a^b)&(a^sum)&0x8000_0000 != 0 {
		err = &trap{cause: EXCEPTION_OVERFLOW, err: ErrOverflow}
	}
	return
}

func (cpu *Cpu) trapIf(cond bool) error {
	if cond {
		return &trap{cause: EXCEPTION_TRAP, err: ErrTrap}
	}
	return nil
}

func (cpu *Cpu) hiLo() uint64 {
	return uint64(cpu.Registers.Get(REG_HI))<<32 | uint64(cpu.Registers.Get(REG_LO))
}

func (cpu *Cpu) setHiLo(value uint64) {
	cpu.Registers.Set(REG_HI, uint32(value>>32))
	cpu.Registers.Set(REG_LO, uint32(value))
}
