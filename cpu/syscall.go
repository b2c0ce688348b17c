// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/ezrec/mipsim/backstep"
	"github.com/ezrec/mipsim/memory"
)

// Syscall services, selected by $v0.
const (
	SYSCALL_PRINT_INT      = 1
	SYSCALL_PRINT_STRING   = 4
	SYSCALL_READ_INT       = 5
	SYSCALL_READ_STRING    = 8
	SYSCALL_SBRK           = 9
	SYSCALL_EXIT           = 10
	SYSCALL_PRINT_CHAR     = 11
	SYSCALL_READ_CHAR      = 12
	SYSCALL_OPEN           = 13
	SYSCALL_READ           = 14
	SYSCALL_WRITE          = 15
	SYSCALL_CLOSE          = 16
	SYSCALL_EXIT2          = 17
	SYSCALL_TIME           = 30
	SYSCALL_SLEEP          = 32
	SYSCALL_PRINT_HEX      = 34
	SYSCALL_PRINT_BINARY   = 35
	SYSCALL_PRINT_UNSIGNED = 36
	SYSCALL_SET_SEED       = 40
	SYSCALL_RANDOM_INT     = 41
	SYSCALL_RANDOM_RANGE   = 42
)

type randomStream = rand.Rand

func syscallTrap(err error) error {
	return &trap{cause: EXCEPTION_SYSCALL, err: err}
}

// stream returns the random stream with an id, creating it time-seeded
// on first use.
func (cpu *Cpu) stream(id uint32) *randomStream {
	if cpu.random == nil {
		cpu.random = make(map[uint32]*randomStream)
	}
	rs, ok := cpu.random[id]
	if !ok {
		seed := uint64(time.Now().UnixNano())
		rs = rand.New(rand.NewPCG(seed, uint64(id)))
		cpu.random[id] = rs
	}
	return rs
}

// readString reads a NUL-terminated string from memory.
func (cpu *Cpu) readString(addr uint32) (text string, err error) {
	var sb strings.Builder
	for {
		var c uint32
		c, err = cpu.Memory.Byte(addr)
		if err != nil {
			err = loadTrap(addr, err)
			return
		}
		if c == 0 {
			break
		}
		sb.WriteByte(byte(c))
		addr++
	}
	text = sb.String()
	return
}

func (cpu *Cpu) print(text string) {
	cpu.Console.WriteString(text)
}

// syscall performs the service selected by $v0.
func (cpu *Cpu) syscall() (err error) {
	regs := cpu.Registers

	service := regs.Get(REG_V0)
	a0 := regs.Get(REG_A0)
	a1 := regs.Get(REG_A1)
	a2 := regs.Get(REG_A2)

	if cpu.Verbose {
		log.Printf("cpu: syscall %d (0x%08x, 0x%08x, 0x%08x)", service, a0, a1, a2)
	}

	switch service {
	case SYSCALL_PRINT_INT:
		cpu.print(strconv.FormatInt(int64(int32(a0)), 10))
	case SYSCALL_PRINT_STRING:
		var text string
		text, err = cpu.readString(a0)
		if err != nil {
			return
		}
		cpu.print(text)
	case SYSCALL_READ_INT:
		var value int32
		value, err = cpu.Console.ReadInt()
		if err != nil {
			return syscallTrap(fmt.Errorf("%w: %w", ErrSyscallArg, err))
		}
		regs.Set(REG_V0, uint32(value))
	case SYSCALL_READ_STRING:
		err = cpu.readInput(a0, int32(a1))
	case SYSCALL_SBRK:
		var addr uint32
		addr, err = cpu.sbrk(int32(a0))
		if err != nil {
			return
		}
		regs.Set(REG_V0, addr)
	case SYSCALL_EXIT:
		return errExit
	case SYSCALL_PRINT_CHAR:
		cpu.print(string([]byte{byte(a0)}))
	case SYSCALL_READ_CHAR:
		var c byte
		c, err = cpu.Console.ReadChar()
		if err != nil {
			return syscallTrap(fmt.Errorf("%w: %w", ErrSyscallArg, err))
		}
		regs.Set(REG_V0, uint32(c))
	case SYSCALL_OPEN:
		var name string
		name, err = cpu.readString(a0)
		if err != nil {
			return
		}
		fd, ferr := cpu.Files.Open(name, int(a1))
		if ferr != nil {
			if cpu.Verbose {
				log.Printf("cpu: open %q: %v", name, ferr)
			}
			fd = -1
		}
		regs.Set(REG_V0, uint32(fd))
	case SYSCALL_READ:
		err = cpu.readFile(int(int32(a0)), a1, int32(a2))
	case SYSCALL_WRITE:
		err = cpu.writeFile(int(int32(a0)), a1, int32(a2))
	case SYSCALL_CLOSE:
		cpu.Files.Close(int(int32(a0)))
	case SYSCALL_EXIT2:
		cpu.ExitCode = int(int32(a0))
		return errExit
	case SYSCALL_TIME:
		now := uint64(time.Now().UnixMilli())
		regs.Set(REG_A0, uint32(now))
		regs.Set(REG_A1, uint32(now>>32))
	case SYSCALL_SLEEP:
		time.Sleep(time.Duration(int32(a0)) * time.Millisecond)
	case SYSCALL_PRINT_HEX:
		cpu.print(fmt.Sprintf("0x%08x", a0))
	case SYSCALL_PRINT_BINARY:
		cpu.print(fmt.Sprintf("%032b", a0))
	case SYSCALL_PRINT_UNSIGNED:
		cpu.print(strconv.FormatUint(uint64(a0), 10))
	case SYSCALL_SET_SEED:
		if cpu.random == nil {
			cpu.random = make(map[uint32]*randomStream)
		}
		cpu.random[a0] = rand.New(rand.NewPCG(uint64(a1), uint64(a0)))
	case SYSCALL_RANDOM_INT:
		regs.Set(REG_A0, cpu.stream(a0).Uint32())
	case SYSCALL_RANDOM_RANGE:
		if int32(a1) <= 0 {
			return syscallTrap(fmt.Errorf("%w: upper bound %d", ErrSyscallArg, int32(a1)))
		}
		regs.Set(REG_A0, uint32(cpu.stream(a0).Int32N(int32(a1))))
	default:
		return syscallTrap(fmt.Errorf("%w: %d", ErrSyscallNumber, service))
	}

	return
}

// readInput reads a console line into a buffer of maxLength bytes. The
// line is truncated to leave room for the terminating NUL, and keeps its
// newline if there is room for it.
func (cpu *Cpu) readInput(buf uint32, maxLength int32) (err error) {
	limit := int(maxLength) - 1
	terminate := true
	if limit < 0 {
		limit = 0
		terminate = false
	}

	line, lerr := cpu.Console.ReadLine()
	if lerr != nil {
		line = ""
	}
	if len(line) > limit {
		line = line[:limit]
	}
	if len(line) < limit {
		line += "\n"
	}

	for n := range len(line) {
		err = cpu.Memory.SetByte(buf+uint32(n), uint32(line[n]))
		if err != nil {
			return storeTrap(buf+uint32(n), err)
		}
	}

	if terminate {
		addr := buf + uint32(len(line))
		err = cpu.Memory.SetByte(addr, 0)
		if err != nil {
			return storeTrap(addr, err)
		}
	}

	return
}

// sbrk allocates heap, returning the address of the allocation.
func (cpu *Cpu) sbrk(size int32) (addr uint32, err error) {
	if size < 0 {
		err = syscallTrap(fmt.Errorf("%w: sbrk %d", ErrSyscallArg, size))
		return
	}

	heap := cpu.Memory.Layout().Region[memory.SEGMENT_HEAP]
	length := (uint32(size) + 3) &^ 3
	if cpu.heap-heap.Base+length > heap.Size {
		err = syscallTrap(fmt.Errorf("%w: sbrk %d: heap exhausted", ErrSyscallArg, size))
		return
	}

	if cpu.Log != nil {
		cpu.Log.Push(backstep.Entry{Kind: backstep.KIND_HEAP, Value: cpu.heap})
	}

	addr = cpu.heap
	cpu.heap += length
	return
}

// bufferLength clips a syscall buffer to the bytes left in the region
// holding it. An unmapped buffer keeps one byte, so that the access
// traps.
func (cpu *Cpu) bufferLength(buf uint32, length int32) int {
	layout := cpu.Memory.Layout()
	seg := layout.Segment(buf)
	if seg == memory.SEGMENT_NONE {
		return min(int(length), 1)
	}

	r := layout.Region[seg]
	left := uint64(r.Base) + uint64(r.Size) - uint64(buf)
	return int(min(uint64(length), left))
}

// readFile reads from a descriptor into memory. $v0 is the count read,
// 0 at end of file, or -1 on error.
func (cpu *Cpu) readFile(fd int, buf uint32, length int32) (err error) {
	if length < 0 {
		cpu.Registers.Set(REG_V0, ^uint32(0))
		return
	}

	data := make([]byte, cpu.bufferLength(buf, length))
	n, ferr := cpu.Files.Read(fd, data)
	if ferr != nil && n == 0 {
		if errors.Is(ferr, io.EOF) {
			cpu.Registers.Set(REG_V0, 0)
		} else {
			cpu.Registers.Set(REG_V0, ^uint32(0))
		}
		return
	}

	for index, c := range data[:n] {
		addr := buf + uint32(index)
		err = cpu.Memory.SetByte(addr, uint32(c))
		if err != nil {
			return storeTrap(addr, err)
		}
	}

	cpu.Registers.Set(REG_V0, uint32(n))
	return
}

// writeFile writes memory to a descriptor. $v0 is the count written, or
// -1 on error.
func (cpu *Cpu) writeFile(fd int, buf uint32, length int32) (err error) {
	if length < 0 {
		cpu.Registers.Set(REG_V0, ^uint32(0))
		return
	}

	data := make([]byte, cpu.bufferLength(buf, length))
	for index := range data {
		addr := buf + uint32(index)
		var c uint32
		c, err = cpu.Memory.Byte(addr)
		if err != nil {
			return loadTrap(addr, err)
		}
		data[index] = byte(c)
	}

	n, ferr := cpu.Files.Write(fd, data)
	if ferr != nil {
		cpu.Registers.Set(REG_V0, ^uint32(0))
		return
	}

	cpu.Registers.Set(REG_V0, uint32(n))
	return
}
