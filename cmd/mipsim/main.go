// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strings"

	"github.com/k0kubun/pp/v3"

	"github.com/ezrec/mipsim/cpu"
	"github.com/ezrec/mipsim/dump"
	"github.com/ezrec/mipsim/emulator"
	simio "github.com/ezrec/mipsim/io"
	"github.com/ezrec/mipsim/translate"
)

// ARGUMENTS_MARKER separates the source files from the program arguments.
const ARGUMENTS_MARKER = "pa"

type memoryRange struct {
	lo, hi uint32
}

// options are the command line settings.
type options struct {
	layout       string
	delayed      bool
	smc          bool
	startAtMain  bool
	noPseudo     bool
	warnErrors   bool
	count        bool
	brief        bool
	maxSteps     int
	radix        emulator.Radix
	registers    []string
	memory       []memoryRange
	dumps        []dump.Request
	assembleExit int
	simulateExit int
	script       string
	interactive  bool
	keyboard     bool
	assembleOnly bool
	debug        bool
	verbose      bool

	sources   []string
	arguments []string
}

func main() {
	opts := &options{}

	flag.StringVar(&opts.layout, "mc", "Default", "Memory configuration name")
	flag.BoolVar(&opts.delayed, "db", false, "Enable delayed branching")
	flag.BoolVar(&opts.smc, "smc", false, "Allow self-modifying code")
	flag.BoolVar(&opts.startAtMain, "sm", false, "Start execution at the 'main' label")
	flag.BoolVar(&opts.noPseudo, "np", false, "Warn on pseudo-instructions")
	flag.BoolVar(&opts.warnErrors, "we", false, "Assembler warnings are errors")
	flag.BoolVar(&opts.count, "ic", false, "Display the instruction count")
	flag.BoolVar(&opts.brief, "b", false, "Brief post-mortem display")
	flag.IntVar(&opts.maxSteps, "max", 0, "Maximum instructions to execute; 0 is unlimited")
	flag.Func("radix", "Post-mortem display radix: hex, dec or ascii", func(text string) (err error) {
		opts.radix, err = emulator.ParseRadix(text)
		return
	})
	flag.Func("reg", "Register to display after the run; may be repeated", func(name string) error {
		if _, ok := cpu.Lookup(name); !ok {
			return cpu.ErrRegisterInvalid
		}
		opts.registers = append(opts.registers, name)
		return nil
	})
	flag.Func("mem", "Memory range lo-hi to display after the run; may be repeated", func(text string) error {
		lo, hi, err := dump.ParseRange(text)
		if err != nil {
			return err
		}
		opts.memory = append(opts.memory, memoryRange{lo: lo, hi: hi})
		return nil
	})
	flag.Func("dump", "Dump segment,format,file after the run; may be repeated", func(text string) error {
		req, err := dump.ParseRequest(text)
		if err != nil {
			return err
		}
		opts.dumps = append(opts.dumps, req)
		return nil
	})
	flag.IntVar(&opts.assembleExit, "ae", 2, "Exit code on an assembly error")
	flag.IntVar(&opts.simulateExit, "se", 3, "Exit code on a simulation error")
	flag.StringVar(&opts.script, "script", "", ".lua file observing the run")
	flag.BoolVar(&opts.interactive, "i", false, "Interactive shell")
	flag.BoolVar(&opts.keyboard, "keyboard", false, "Standard input feeds the MMIO keyboard")
	flag.BoolVar(&opts.assembleOnly, "a", false, "Assemble only, do not simulate")
	flag.BoolVar(&opts.debug, "debug", false, "Display the assembled program")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose mode")
	flag.Func("lang", "Message language, as a BCP 47 tag", func(lang string) error {
		translate.Use(lang)
		return nil
	})

	flag.Parse()

	args := flag.Args()
	index := slices.Index(args, ARGUMENTS_MARKER)
	if index >= 0 {
		opts.sources = args[:index]
		opts.arguments = args[index+1:]
	} else {
		opts.sources = args
	}

	if len(opts.sources) == 0 {
		log.Fatalf("%v: No source files", os.Args[0])
	}

	os.Exit(run(opts))
}

// run assembles and simulates, and returns the process exit code.
func run(opts *options) (code int) {
	emu := emulator.NewEmulator()
	defer emu.Close()

	err := emu.SelectLayout(opts.layout)
	if err != nil {
		log.Printf("%v: %v", os.Args[0], err)
		return 1
	}

	emu.Verbose = opts.verbose
	emu.Interactive = opts.interactive
	emu.DelayedBranching = opts.delayed
	emu.SelfModifying = opts.smc
	emu.StartAtMain = opts.startAtMain
	emu.NoPseudo = opts.noPseudo
	emu.WarningsAreErrors = opts.warnErrors
	emu.Arguments = opts.arguments

	emu.Console.Input = os.Stdin
	emu.Console.Output = os.Stdout
	emu.Files.Stderr = os.Stderr
	emu.Files.FS = &simio.DirFS{Root: "."}
	emu.Terminal.Output = os.Stdout

	var sources []cpu.Source
	for _, name := range opts.sources {
		text, err := os.ReadFile(name)
		if err != nil {
			log.Printf("%v: %v", os.Args[0], err)
			return 1
		}
		sources = append(sources, cpu.Source{Name: name, Text: string(text)})
	}

	prog, err := emu.Assemble(sources...)
	var asm_err *cpu.ErrAssembly
	if errors.As(err, &asm_err) {
		for _, msg := range asm_err.Messages {
			fmt.Fprintln(os.Stderr, msg)
		}
		fmt.Fprintln(os.Stderr, "Processing terminated due to errors.")
		return opts.assembleExit
	}
	if err != nil {
		// Assembled, but the program could not be loaded.
		log.Printf("%v: %v", os.Args[0], err)
		return opts.simulateExit
	}
	for _, msg := range prog.Warnings {
		fmt.Fprintln(os.Stderr, msg)
	}

	if opts.debug {
		pp.Fprintln(os.Stderr, prog.Symbols.Symbols())
		for op := range prog.Lines() {
			pp.Fprintf(os.Stderr, "0x%08x %v:%d %v\n", op.Address, op.File, op.LineNo, op.Line)
		}
	}

	if opts.assembleOnly {
		return writeDumps(emu, opts)
	}

	if len(opts.script) != 0 {
		observer, err := loadScript(emu, opts.script)
		if err != nil {
			log.Printf("%v: %v", os.Args[0], err)
			return 1
		}
		defer func() {
			err := observer.Err()
			if err != nil {
				log.Printf("%v: %v", os.Args[0], err)
				code = opts.simulateExit
			}
			observer.Close()
		}()
	}

	if opts.interactive {
		return shell(emu, opts)
	}

	if opts.keyboard {
		emu.Console.Input = strings.NewReader("")
	}

	done, err := simulate(emu, opts.maxSteps, opts.keyboard)
	code = report(os.Stdout, emu, opts, done, err)

	postMortem(os.Stdout, emu, opts)

	if dump_code := writeDumps(emu, opts); dump_code != 0 && code == 0 {
		code = dump_code
	}

	return
}

// report displays how the simulation ended, and returns its exit code.
func report(w io.Writer, emu *emulator.Emulator, opts *options, done bool, err error) (code int) {
	switch {
	case err != nil:
		fmt.Fprintf(w, "\nError in %v\n", err)
		fmt.Fprintln(w, "Processing terminated due to errors.")
		return opts.simulateExit
	case done:
		return emu.Cpu.ExitCode
	case emu.Cpu.State == cpu.STATE_HALTED_LIMIT:
		fmt.Fprintf(w, "\nProgram terminated when maximum step limit %d reached.\n", opts.maxSteps)
	default:
		fmt.Fprintln(w, "\nProgram interrupted.")
	}

	return
}

// writeDumps writes the requested memory dumps to the working directory.
func writeDumps(emu *emulator.Emulator, opts *options) (code int) {
	fs := &simio.DirFS{Root: "."}
	for _, req := range opts.dumps {
		err := emu.Dump(fs, req)
		if err != nil {
			log.Printf("%v: %v", os.Args[0], err)
			code = 1
		}
	}

	return
}
