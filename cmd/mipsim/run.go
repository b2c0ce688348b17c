// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/ezrec/mipsim/emulator"
	"github.com/ezrec/mipsim/script"
)

// simulate runs the program until it ends, or the user interrupts it.
// If keyboard is set, standard input is typed on the MMIO keyboard while
// the program runs.
func simulate(emu *emulator.Emulator, maxSteps int, keyboard bool) (done bool, err error) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if keyboard {
		go typeInput(emu, os.Stdin)
	}

	finished := make(chan struct{})
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() (err error) {
		defer close(finished)
		done, err = emu.Simulate(ctx, maxSteps)
		return
	})

	group.Go(func() error {
		select {
		case <-ctx.Done():
			select {
			case <-finished:
				// Ended on its own; a stale stop would pause the next run.
			default:
				emu.Stop()
			}
		case <-finished:
		}
		return nil
	})

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		// Interrupted; the program is paused, not failed.
		err = nil
	}

	return
}

// typeInput types every byte of a reader on the keyboard, until the
// reader is exhausted.
func typeInput(emu *emulator.Emulator, r io.Reader) {
	in := bufio.NewReader(r)
	for {
		key, err := in.ReadByte()
		if err != nil {
			return
		}
		emu.Type(key)
	}
}

// loadScript attaches a Lua observer script to the session.
func loadScript(emu *emulator.Emulator, name string) (observer *script.Script, err error) {
	inf, err := os.Open(name)
	if err != nil {
		return
	}
	defer inf.Close()

	observer = script.New(emu)
	observer.Output = os.Stderr

	err = observer.Load(name, inf)
	if err != nil {
		observer.Close()
		observer = nil
	}

	return
}

// postMortem displays the requested registers and memory, and the
// instruction count.
func postMortem(w io.Writer, emu *emulator.Emulator, opts *options) {
	if len(opts.registers) != 0 || len(opts.memory) != 0 || opts.count {
		fmt.Fprintln(w)
	}

	displayRegisters(w, emu, opts.registers, opts.radix, !opts.brief)

	for _, rng := range opts.memory {
		displayMemory(w, emu, rng.lo, rng.hi, opts.radix, !opts.brief)
	}

	if opts.count {
		fmt.Fprintln(w, emu.InstructionCount())
	}
}

// displayRegisters displays registers, one per line.
func displayRegisters(w io.Writer, emu *emulator.Emulator, names []string, radix emulator.Radix, verbose bool) {
	for _, name := range names {
		value, err := emu.Register(name)
		if err != nil {
			fmt.Fprintf(w, "%v: %v\n", name, err)
			continue
		}
		if verbose {
			fmt.Fprintf(w, "%v\t", name)
		}
		fmt.Fprintln(w, emulator.Format(value, radix))
	}
}

// DISPLAY_WORDS is the number of words on a line of a memory display.
const DISPLAY_WORDS = 4

// displayMemory displays the words of an inclusive address range.
func displayMemory(w io.Writer, emu *emulator.Emulator, lo, hi uint32, radix emulator.Radix, verbose bool) {
	column := 0
	for addr := uint64(lo); addr <= uint64(hi); addr += 4 {
		if column == 0 && verbose {
			fmt.Fprintf(w, "Mem[0x%08x]\t", addr)
		}

		value, err := emu.Word(uint32(addr))
		if err != nil {
			fmt.Fprintf(w, "Invalid address: 0x%08x\t", addr)
		} else {
			fmt.Fprintf(w, "%v\t", emulator.Format(value, radix))
		}

		column++
		if column == DISPLAY_WORDS {
			fmt.Fprintln(w)
			column = 0
		}
	}

	if column != 0 {
		fmt.Fprintln(w)
	}
}
