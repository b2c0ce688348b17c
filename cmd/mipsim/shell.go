// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/ezrec/mipsim/cpu"
	"github.com/ezrec/mipsim/dump"
	"github.com/ezrec/mipsim/emulator"
)

const SHELL_PROMPT = "(mipsim) "

const shellHelp = `Commands:
  step [n]        Execute n instructions (default 1)
  back [n]        Undo n instructions (default 1)
  run [n]         Run until done, or n instructions
  reg [name...]   Display registers (default all)
  mem lo-hi...    Display memory ranges
  key text        Type text on the MMIO keyboard
  radix name      Set the display radix: hex, dec or ascii
  reset           Reload the program
  help            This text
  quit            Leave the shell
`

// lineReader is the source of shell command lines.
type lineReader interface {
	ReadLine() (line string, err error)
}

// scanLines reads command lines from a non-terminal input.
type scanLines struct {
	scanner *bufio.Scanner
	prompt  io.Writer
}

func (sl *scanLines) ReadLine() (line string, err error) {
	fmt.Fprint(sl.prompt, SHELL_PROMPT)
	if !sl.scanner.Scan() {
		err = sl.scanner.Err()
		if err == nil {
			err = io.EOF
		}
		return
	}

	line = sl.scanner.Text()
	return
}

// consoleLines feeds the program console from the command line input,
// one line at a time.
type consoleLines struct {
	scanner *bufio.Scanner
	pending []byte
}

func (cl *consoleLines) Read(data []byte) (n int, err error) {
	if len(cl.pending) == 0 {
		if !cl.scanner.Scan() {
			err = cl.scanner.Err()
			if err == nil {
				err = io.EOF
			}
			return
		}
		cl.pending = []byte(cl.scanner.Text() + "\n")
	}

	n = copy(data, cl.pending)
	cl.pending = cl.pending[n:]
	return
}

// host is the controlling terminal, if any. The terminal is raw while
// reading commands, and cooked while the program runs so the program
// console and interrupts behave normally.
type host struct {
	fd    int
	state *term.State
}

func (h *host) raw() (err error) {
	if h.state != nil {
		return
	}
	h.state, err = term.MakeRaw(h.fd)
	return
}

func (h *host) cooked() {
	if h.state == nil {
		return
	}
	term.Restore(h.fd, h.state)
	h.state = nil
}

// session is an interactive shell over an emulator.
type session struct {
	emu      *emulator.Emulator
	radix    emulator.Radix
	out      io.Writer
	lines    lineReader
	terminal *host
}

// shell runs the interactive shell, and returns the process exit code.
func shell(emu *emulator.Emulator, opts *options) (code int) {
	sess := &session{
		emu:   emu,
		radix: opts.radix,
	}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		sess.terminal = &host{fd: fd}
		err := sess.terminal.raw()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer sess.terminal.cooked()

		screen := term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{os.Stdin, os.Stdout}, SHELL_PROMPT)
		sess.out = screen
		sess.lines = screen
	} else {
		// Commands and program input share the one input stream.
		scanner := bufio.NewScanner(os.Stdin)
		sess.out = os.Stdout
		sess.lines = &scanLines{scanner: scanner, prompt: os.Stdout}
		emu.Console.Input = &consoleLines{scanner: scanner}
	}

	sess.where()

	for {
		line, err := sess.lines.ReadLine()
		if err != nil {
			break
		}

		quit := sess.command(line)
		if quit {
			break
		}
	}

	code = emu.Cpu.ExitCode
	if emu.Cpu.State == cpu.STATE_HALTED_ERROR {
		code = opts.simulateExit
	}

	return
}

// execute runs a simulation with the terminal in cooked mode.
func (sess *session) execute(fn func() (bool, error)) (done bool, err error) {
	if sess.terminal != nil {
		sess.terminal.cooked()
		defer sess.terminal.raw()
	}

	return fn()
}

// command executes a shell command line. Returns true to leave the
// shell.
func (sess *session) command(line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	emu := sess.emu
	name, args := fields[0], fields[1:]

	count := func(def int) (n int, ok bool) {
		if len(args) == 0 {
			return def, true
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			fmt.Fprintf(sess.out, "%v: invalid count %q\n", name, args[0])
			return
		}
		return n, true
	}

	switch name {
	case "s", "step":
		n, ok := count(1)
		if !ok {
			return
		}
		done, err := sess.execute(func() (done bool, err error) {
			for range n {
				done, err = emu.Step()
				if done || err != nil {
					break
				}
			}
			return
		})
		sess.report(done, err)
		sess.where()
	case "b", "back":
		n, ok := count(1)
		if !ok {
			return
		}
		for range n {
			if !emu.StepBack() {
				fmt.Fprintln(sess.out, "Nothing to undo.")
				break
			}
		}
		sess.where()
	case "r", "run":
		n, ok := count(0)
		if !ok {
			return
		}
		done, err := sess.execute(func() (bool, error) {
			return simulate(emu, n, false)
		})
		sess.report(done, err)
		sess.where()
	case "reg":
		names := args
		if len(names) == 0 {
			for _, reg := range emu.Registers.Register {
				names = append(names, reg.Name)
			}
		}
		displayRegisters(sess.out, emu, names, sess.radix, true)
	case "mem":
		for _, arg := range args {
			lo, hi, err := dump.ParseRange(arg)
			if err != nil {
				fmt.Fprintf(sess.out, "mem: %v\n", err)
				continue
			}
			displayMemory(sess.out, emu, lo, hi, sess.radix, true)
		}
	case "key":
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), name))
		for _, key := range []byte(text + "\n") {
			emu.Type(key)
		}
	case "radix":
		if len(args) != 1 {
			fmt.Fprintln(sess.out, "radix: expected one of hex, dec or ascii")
			return
		}
		radix, err := emulator.ParseRadix(args[0])
		if err != nil {
			fmt.Fprintf(sess.out, "radix: %v\n", err)
			return
		}
		sess.radix = radix
	case "reset":
		err := emu.Reset()
		if err != nil {
			fmt.Fprintf(sess.out, "reset: %v\n", err)
		}
		sess.where()
	case "h", "help", "?":
		fmt.Fprint(sess.out, shellHelp)
	case "q", "quit", "exit":
		return true
	default:
		fmt.Fprintf(sess.out, "Unknown command %q; try 'help'.\n", name)
	}

	return
}

// report displays how a simulation ended.
func (sess *session) report(done bool, err error) {
	switch {
	case err != nil:
		fmt.Fprintf(sess.out, "Error in %v\n", err)
	case done:
		fmt.Fprintf(sess.out, "Program finished, exit code %d.\n", sess.emu.Cpu.ExitCode)
	case sess.emu.Cpu.State == cpu.STATE_HALTED_LIMIT:
		fmt.Fprintln(sess.out, "Step limit reached.")
	}
}

// where displays the program counter, and the source line there.
func (sess *session) where() {
	pc, _ := sess.emu.Register("pc")
	fmt.Fprintf(sess.out, "[%d] 0x%08x", sess.emu.InstructionCount(), pc)

	if sess.emu.Program != nil {
		dbg := sess.emu.Program.Debug(pc)
		if dbg.Opcode != nil {
			fmt.Fprintf(sess.out, "  %v:%d  %v", dbg.File, dbg.LineNo, dbg.Line)
		}
	}

	fmt.Fprintln(sess.out)
}
