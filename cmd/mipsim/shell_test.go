package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/mipsim/cpu"
	"github.com/ezrec/mipsim/emulator"
)

func newSession(t *testing.T, lines ...string) (sess *session, out *bytes.Buffer) {
	t.Helper()

	emu := emulator.NewEmulator()
	emu.Interactive = true
	_, err := emu.Assemble(cpu.Source{Name: "shell.s", Text: strings.Join(lines, "\n")})
	if err != nil {
		t.Fatal(err)
	}

	out = &bytes.Buffer{}
	sess = &session{emu: emu, out: out}
	return
}

func TestSession_StepBack(t *testing.T) {
	assert := assert.New(t)

	sess, out := newSession(t,
		".text",
		"main:",
		"  li $t0, 5",
		"  addi $t0, $t0, 1",
	)

	assert.False(sess.command("step 2"))
	value, _ := sess.emu.Register("t0")
	assert.Equal(uint32(6), value)
	assert.Contains(out.String(), "[2] 0x00400008")

	out.Reset()
	assert.False(sess.command("back"))
	value, _ = sess.emu.Register("t0")
	assert.Equal(uint32(5), value)
	assert.Equal("[1] 0x00400004  shell.s:4  addi $t0, $t0, 1\n", out.String())

	out.Reset()
	sess.command("back 5")
	assert.Contains(out.String(), "Nothing to undo.")

	out.Reset()
	sess.command("reg $t0 pc")
	assert.Equal("$t0\t0x00000000\npc\t0x00400000\n", out.String())
}

func TestSession_Commands(t *testing.T) {
	assert := assert.New(t)

	sess, out := newSession(t,
		".data",
		"val: .word 1, 2, 3, 4, 5",
		".text",
		"main:",
		"  nop",
	)

	table := [](struct {
		line   string
		quit   bool
		output string
	}){
		{"", false, ""},
		{"radix dec", false, ""},
		{"mem 0x10010000-0x10010010", false, "Mem[0x10010000]\t1\t2\t3\t4\t\nMem[0x10010010]\t5\t\n"},
		{"mem 0x10010001-0x10010004", false, "mem: "},
		{"radix octal", false, "radix: "},
		{"step x", false, "step: invalid count \"x\"\n"},
		{"frobnicate", false, "Unknown command \"frobnicate\"; try 'help'.\n"},
		{"help", false, "Commands:\n"},
		{"quit", true, ""},
	}

	for _, entry := range table {
		out.Reset()
		assert.Equal(entry.quit, sess.command(entry.line), entry.line)
		if entry.output == "" {
			assert.Empty(out.String(), entry.line)
		} else {
			assert.True(strings.HasPrefix(out.String(), entry.output), "%v: %q", entry.line, out.String())
		}
	}
}

func TestSession_Run(t *testing.T) {
	assert := assert.New(t)

	sess, out := newSession(t,
		".text",
		"main:",
		"  li $a0, 7",
		"  li $v0, 17",
		"  syscall",
	)

	sess.command("run")
	assert.Contains(out.String(), "Program finished, exit code 7.")
	assert.Equal(7, sess.emu.Cpu.ExitCode)
}

func TestDisplayMemory_Invalid(t *testing.T) {
	assert := assert.New(t)

	emu := emulator.NewEmulator()
	out := &bytes.Buffer{}

	displayMemory(out, emu, 0x0, 0x4, emulator.RADIX_HEX, false)
	assert.Equal("Invalid address: 0x00000000\tInvalid address: 0x00000004\t\n", out.String())
}

func TestReport(t *testing.T) {
	assert := assert.New(t)

	emu := emulator.NewEmulator()
	opts := &options{simulateExit: 3, maxSteps: 10}

	out := &bytes.Buffer{}
	emu.Cpu.State = cpu.STATE_HALTED_LIMIT
	assert.Equal(0, report(out, emu, opts, false, nil))
	assert.Contains(out.String(), "maximum step limit 10 reached")

	out.Reset()
	assert.Equal(3, report(out, emu, opts, false, emulator.ErrNoProgram))
	assert.Contains(out.String(), "Processing terminated due to errors.")

	out.Reset()
	emu.Cpu.ExitCode = 4
	assert.Equal(4, report(out, emu, opts, true, nil))
	assert.Empty(out.String())
}
