// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/mipsim/internal"
	"github.com/ezrec/mipsim/memory"
)

const (
	MACRO_DEPTH_LIMIT = 32 // Maximum nesting of macro expansions.
)

// Source is one unit of assembly source text.
type Source struct {
	Name string
	Text string
}

// Macro represents a macro definition in the assembly language.
type Macro struct {
	Name   string
	LineNo int      // Line number of the .macro directive.
	Args   []string // Argument names, with their '%' prefix.
	Lines  []string // Lines of macro text to expand.
}

func macroKey(name string, args int) string {
	return fmt.Sprintf("%v/%d", name, args)
}

type macroFrame struct {
	name   string
	lineNo int
}

type globl struct {
	name   string
	lineNo int
	line   string
}

// Assembler is a two pass macro assembler for MIPS32 assembly language.
type Assembler struct {
	Verbose           bool           // If set, verbosely logs the assembler actions.
	Layout            *memory.Layout // Address space; nil selects the default layout.
	NoPseudo          bool           // If set, pseudo-instructions are warned about.
	WarningsAreErrors bool           // If set, warnings fail the assembly.
	DelayedBranching  bool           // If set, expansions fill their branch delay slots.
	EntryLabel        string         // Program entry label; empty selects "main".

	predefine map[string]string // Predefines, visible in $(...) expressions.
	Equate    map[string][]Token
	Macro     map[string](*Macro)

	layout    *memory.Layout
	program   *Program
	symbols   *SymbolTable
	messages  []*ErrSyntax
	file      string
	lineNo    int
	line      string
	frames    []macroFrame
	expansion int

	segment   memory.Segment
	cursor    [memory.SEGMENT_NONE]uint32
	extern    uint32
	autoAlign bool
	pending   []string
	globls    []globl
}

// Predefine defines a new expression constant or redefines an existing one.
func (asm *Assembler) Predefine(name string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{name: value}
	} else {
		asm.predefine[name] = value
	}
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{
		"LINENO": starlark.MakeInt(asm.lineNo),
	}
	for key, str := range internal.IterSeq2Concat(asm.layout.Defines(), maps.All(asm.predefine)) {
		v64, err := parseInteger(str)
		if err != nil {
			continue
		}
		pred[key] = starlark.MakeInt64(v64)
	}
	for key, tokens := range asm.Equate {
		// Only integer equates are visible.
		op, rest, err := parseValue(tokens)
		if err != nil || len(rest) != 0 || op.Kind != OPERAND_INTEGER {
			continue
		}
		pred[key] = starlark.MakeInt64(op.Value)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = ErrParseExpression(expr)
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	return
}

// report records a diagnostic at the current source line.
func (asm *Assembler) report(err error, warning bool) {
	for n := len(asm.frames) - 1; n >= 0; n-- {
		err = &ErrMacro{Macro: asm.frames[n].name, Line: asm.frames[n].lineNo, Err: err}
	}
	asm.reportAt(asm.file, asm.lineNo, asm.line, err, warning)
}

func (asm *Assembler) reportAt(file string, lineNo int, line string, err error, warning bool) {
	msg := &ErrSyntax{File: file, LineNo: lineNo, Line: strings.TrimSpace(line), Err: err, Warning: warning}
	if asm.Verbose {
		log.Printf("%v", msg)
	}
	asm.messages = append(asm.messages, msg)
}

// Parse assembles a single source stream.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	text, err := io.ReadAll(input)
	if err != nil {
		return
	}

	return asm.Assemble(Source{Name: "<input>", Text: string(text)})
}

// Assemble assembles source units, in order, into a program. On any
// error, no program is returned, and the error is an *ErrAssembly with
// every diagnostic.
func (asm *Assembler) Assemble(sources ...Source) (prog *Program, err error) {
	asm.layout = asm.Layout
	if asm.layout == nil {
		asm.layout = memory.DefaultLayout()
	}

	asm.program = &Program{}
	asm.symbols = NewSymbolTable()
	asm.symbols.EntryLabel = asm.EntryLabel
	asm.messages = nil
	asm.expansion = 0

	clear(asm.cursor[:])
	asm.cursor[memory.SEGMENT_TEXT] = asm.layout.Text().Base
	asm.cursor[memory.SEGMENT_STATIC_DATA] = asm.layout.DataBase
	asm.cursor[memory.SEGMENT_KERNEL_TEXT] = asm.layout.KernelText().Base
	asm.cursor[memory.SEGMENT_KERNEL_DATA] = asm.layout.KernelData().Base
	asm.extern = asm.layout.ExternBase

	for _, src := range sources {
		asm.unit(src)
	}

	asm.link()

	failed := false
	for _, msg := range asm.messages {
		if asm.WarningsAreErrors {
			msg.Warning = false
		}
		if !msg.Warning {
			failed = true
		}
	}

	if failed {
		err = &ErrAssembly{Messages: asm.messages}
		return
	}

	asm.symbols.Freeze()
	prog = asm.program
	prog.Symbols = asm.symbols
	prog.Warnings = asm.messages

	return
}

// unit runs the first pass over one source unit.
func (asm *Assembler) unit(src Source) {
	asm.file = src.Name
	asm.symbols.Unit(src.Name)
	asm.Equate = map[string][]Token{}
	asm.Macro = map[string](*Macro){}
	asm.segment = memory.SEGMENT_TEXT
	asm.autoAlign = true
	asm.pending = nil
	asm.globls = nil
	asm.frames = nil
	asm.lineNo = 0

	var macro *Macro

	scanner := bufio.NewScanner(strings.NewReader(src.Text))
	scanner.Buffer(nil, 1<<20)
	for scanner.Scan() {
		asm.lineNo++
		asm.line = scanner.Text()

		if asm.Verbose {
			log.Printf("%v:%v: %v\n", asm.file, asm.lineNo, asm.line)
		}

		tokens, err := tokenize(asm.line)
		if err != nil {
			asm.report(err, false)
			continue
		}

		directive := ""
		if len(tokens) > 0 && tokens[0].Kind == TOKEN_DIRECTIVE {
			directive = tokens[0].Text
		}

		if macro != nil {
			switch directive {
			case ".end_macro":
				macro = nil
			case ".macro":
				asm.report(ErrMacroNesting, false)
			default:
				macro.Lines = append(macro.Lines, asm.line)
			}
			continue
		}

		switch directive {
		case ".macro":
			macro = asm.defineMacro(tokens[1:])
			continue
		case ".end_macro":
			asm.report(ErrMacroLonelyEndm, false)
			continue
		}

		asm.statement(tokens, 0)
	}

	if macro != nil {
		asm.reportAt(asm.file, macro.LineNo, ".macro "+macro.Name, ErrMacroLonely, false)
	}

	asm.flushLabels()

	for _, gl := range asm.globls {
		err := asm.symbols.Globalize(asm.file, gl.name)
		if err != nil {
			asm.reportAt(asm.file, gl.lineNo, gl.line, fmt.Errorf("%v: %w", gl.name, err), false)
		}
	}
}

// defineMacro parses `.macro name [(%arg, ...)]`.
func (asm *Assembler) defineMacro(tokens []Token) (macro *Macro) {
	macro = &Macro{LineNo: asm.lineNo}

	if len(tokens) == 0 || tokens[0].Kind != TOKEN_IDENT {
		asm.report(ErrMacroSyntax, false)
		return
	}
	macro.Name = tokens[0].Text

	for _, tok := range tokens[1:] {
		switch tok.Kind {
		case TOKEN_ARG:
			macro.Args = append(macro.Args, tok.Text)
		case TOKEN_LPAREN, TOKEN_RPAREN, TOKEN_COMMA:
		default:
			asm.report(ErrMacroSyntax, false)
			return
		}
	}

	key := macroKey(macro.Name, len(macro.Args))
	if _, ok := asm.Macro[key]; ok {
		asm.report(ErrMacroDuplicate, false)
		return
	}
	asm.Macro[key] = macro

	return
}

// macroArgs splits the arguments of a macro invocation.
func macroArgs(tokens []Token) (args [][]Token) {
	if len(tokens) >= 2 && tokens[0].Kind == TOKEN_LPAREN && tokens[len(tokens)-1].Kind == TOKEN_RPAREN {
		depth := 0
		enclosed := true
		for n, tok := range tokens {
			switch tok.Kind {
			case TOKEN_LPAREN:
				depth++
			case TOKEN_RPAREN:
				depth--
				if depth == 0 && n != len(tokens)-1 {
					enclosed = false
				}
			}
		}
		if enclosed {
			tokens = tokens[1 : len(tokens)-1]
		}
	}

	return splitArgs(tokens)
}

// expand assembles the body of a macro.
func (asm *Assembler) expand(macro *Macro, args [][]Token, depth int) {
	if depth >= MACRO_DEPTH_LIMIT {
		asm.report(ErrMacroRecursion, false)
		return
	}

	asm.expansion++
	suffix := fmt.Sprintf("_M%d", asm.expansion)

	// Labels defined in the body are unique to each expansion.
	labels := map[string]bool{}
	for _, line := range macro.Lines {
		tokens, _ := tokenize(line)
		for len(tokens) >= 2 && tokens[0].Kind == TOKEN_IDENT && tokens[1].Kind == TOKEN_COLON {
			labels[tokens[0].Text] = true
			tokens = tokens[2:]
		}
	}

	asm.frames = append(asm.frames, macroFrame{name: macro.Name})
	defer func() { asm.frames = asm.frames[:len(asm.frames)-1] }()

	for n, line := range macro.Lines {
		asm.frames[len(asm.frames)-1].lineNo = macro.LineNo + 1 + n

		tokens, err := tokenize(line)
		if err != nil {
			asm.report(err, false)
			continue
		}

		body, err := macroBody(tokens, macro.Args, args, labels, suffix)
		if err != nil {
			asm.report(err, false)
			continue
		}

		asm.statement(body, depth+1)
	}
}

// macroBody substitutes macro arguments and uniquifies local labels.
func macroBody(tokens []Token, names []string, args [][]Token, labels map[string]bool, suffix string) (body []Token, err error) {
	for _, tok := range tokens {
		switch {
		case tok.Kind == TOKEN_ARG:
			index := slices.Index(names, tok.Text)
			if index < 0 {
				err = fmt.Errorf("%v: %w", tok.Text, ErrMacroSyntax)
				return
			}
			body = append(body, args[index]...)
		case tok.Kind == TOKEN_IDENT && labels[tok.Text]:
			tok.Text += suffix
			body = append(body, tok)
		default:
			body = append(body, tok)
		}
	}
	return
}

// substitute replaces equates and evaluates $(...) expressions.
func (asm *Assembler) substitute(tokens []Token) (out []Token, err error) {
	out = make([]Token, 0, len(tokens))
	for _, tok := range tokens {
		switch tok.Kind {
		case TOKEN_IDENT:
			equ, ok := asm.Equate[tok.Text]
			if ok {
				out = append(out, equ...)
				continue
			}
		case TOKEN_EXPR:
			var value int64
			value, err = asm.parenEval(tok.Text)
			if err != nil {
				return
			}
			tok = Token{Kind: TOKEN_INTEGER, Text: strconv.FormatInt(value, 10), Value: value}
		}
		out = append(out, tok)
	}
	return
}

// statement assembles one line of tokens.
func (asm *Assembler) statement(tokens []Token, depth int) {
	if len(tokens) == 0 {
		return
	}

	if tokens[0].Kind == TOKEN_DIRECTIVE && tokens[0].Text == ".eqv" {
		asm.equate(tokens[1:])
		return
	}

	tokens, err := asm.substitute(tokens)
	if err != nil {
		asm.report(err, false)
		return
	}

	for len(tokens) >= 2 && tokens[0].Kind == TOKEN_IDENT && tokens[1].Kind == TOKEN_COLON {
		asm.label(tokens[0].Text)
		tokens = tokens[2:]
	}

	if len(tokens) == 0 {
		return
	}

	switch tokens[0].Kind {
	case TOKEN_DIRECTIVE:
		asm.directive(tokens[0].Text, tokens[1:])
	case TOKEN_IDENT:
		args := macroArgs(tokens[1:])
		macro, ok := asm.Macro[macroKey(tokens[0].Text, len(args))]
		if ok {
			asm.expand(macro, args, depth)
			return
		}
		asm.instruction(tokens)
	default:
		asm.report(ErrMnemonic(tokens[0].Text), false)
	}
}

// equate handles `.eqv NAME value...`.
func (asm *Assembler) equate(tokens []Token) {
	if len(tokens) < 2 || tokens[0].Kind != TOKEN_IDENT {
		asm.report(ErrEquateSyntax, false)
		return
	}

	name := tokens[0].Text
	if _, ok := asm.Equate[name]; ok {
		asm.report(ErrEquateDuplicate, false)
		return
	}

	value, err := asm.substitute(tokens[1:])
	if err != nil {
		asm.report(err, false)
		return
	}

	asm.Equate[name] = value
}

func isText(seg memory.Segment) bool {
	return seg == memory.SEGMENT_TEXT || seg == memory.SEGMENT_KERNEL_TEXT
}

// label binds a label. Labels in data segments bind to the next datum,
// after any automatic alignment.
func (asm *Assembler) label(name string) {
	if !isText(asm.segment) {
		asm.pending = append(asm.pending, name)
		return
	}

	asm.define(name, asm.cursor[asm.segment], false)
}

func (asm *Assembler) define(name string, addr uint32, data bool) {
	err := asm.symbols.Define(asm.file, name, addr, data)
	if err != nil {
		asm.report(fmt.Errorf("%v: %w", name, err), false)
	}
}

func (asm *Assembler) flushLabels() {
	for _, name := range asm.pending {
		asm.define(name, asm.cursor[asm.segment], true)
	}
	asm.pending = nil
}

// instruction matches a mnemonic and operands against the instruction
// table, and appends the result to the program.
func (asm *Assembler) instruction(tokens []Token) {
	name := strings.ToLower(tokens[0].Text)

	if !isText(asm.segment) {
		asm.report(ErrInstructionSegment, false)
		return
	}

	forms, ok := Forms(name)
	if !ok {
		asm.report(ErrMnemonic(name), false)
		return
	}

	ops, err := parseOperands(tokens[1:])
	if err != nil {
		asm.report(err, false)
		return
	}

	var stmts []Stmt
	pseudo := false
	matched := false
	for _, form := range forms {
		if !form.matches(ops) {
			continue
		}
		matched = true
		if form.Kind == FORM_BASIC {
			stmts = []Stmt{basicStmt(form.Op, ops)}
		} else {
			stmts, err = form.expand(&expander{DelayedBranching: asm.DelayedBranching}, ops)
			pseudo = !form.Native
		}
		break
	}

	if !matched {
		asm.report(fmt.Errorf("%v: %w", name, ErrOperandMismatch), false)
		return
	}

	if err != nil {
		asm.report(err, false)
		return
	}

	if pseudo && asm.NoPseudo {
		asm.report(fmt.Errorf("%v: %w", name, ErrPseudoDisabled), true)
	}

	addr := asm.cursor[asm.segment]
	size := uint32(len(stmts)) * INSTRUCTION_LENGTH
	seg := asm.layout.Segment(addr)
	if !isText(seg) || asm.layout.Segment(addr+size-1) != seg {
		asm.report(ErrSegmentOverflow, false)
		return
	}

	asm.program.Opcodes = append(asm.program.Opcodes, Opcode{
		File:    asm.file,
		LineNo:  asm.lineNo,
		Line:    strings.TrimSpace(asm.line),
		Address: addr,
		Stmts:   stmts,
		Pseudo:  pseudo,
	})
	asm.cursor[asm.segment] += size
}

// link runs the second pass: symbol resolution and encoding.
func (asm *Assembler) link() {
	for i := range asm.program.Opcodes {
		op := &asm.program.Opcodes[i]
		lookup := func(name string) (addr uint32, ok bool) {
			sym, ok := asm.symbols.Resolve(op.File, name)
			addr = sym.Address
			return
		}

		op.Codes = make([]uint32, len(op.Stmts))
		for n, stmt := range op.Stmts {
			inst, err := stmt.Resolve(op.Address+uint32(n)*INSTRUCTION_LENGTH, lookup)
			if err != nil {
				asm.reportAt(op.File, op.LineNo, op.Line, err, false)
				continue
			}
			op.Codes[n] = inst.Encode()
		}
	}

	for i := range asm.program.Data {
		datum := &asm.program.Data[i]
		if datum.Label == "" {
			continue
		}
		sym, ok := asm.symbols.Resolve(datum.File, datum.Label)
		if !ok {
			asm.reportAt(datum.File, datum.LineNo, datum.Line, ErrLabelMissing(datum.Label), false)
			continue
		}
		datum.Value = sym.Address + uint32(datum.Offset)
	}
}
