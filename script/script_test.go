package script

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/mipsim/cpu"
	"github.com/ezrec/mipsim/emulator"
)

var counterProgram = []string{
	".data",
	"val: .word 0, 0",
	".text",
	"main:",
	"  la $s0, val",
	"  li $t1, 10",
	"loop:",
	"  addi $t0, $t0, 1",
	"  sw $t0, 0($s0)",
	"  lw $t2, 4($s0)",
	"  bne $t0, $t1, loop",
}

func newScript(t *testing.T, lua ...string) (s *Script, emu *emulator.Emulator, out *bytes.Buffer) {
	t.Helper()

	emu = emulator.NewEmulator()
	_, err := emu.Assemble(cpu.Source{Name: "test.s", Text: strings.Join(counterProgram, "\n")})
	if err != nil {
		t.Fatal(err)
	}

	out = &bytes.Buffer{}
	s = New(emu)
	s.Output = out
	err = s.Load("test.lua", strings.NewReader(strings.Join(lua, "\n")))
	if err != nil {
		t.Fatal(err)
	}

	return
}

func TestScript_Memory(t *testing.T) {
	assert := assert.New(t)

	s, emu, out := newScript(t,
		"writes = 0",
		"mips.on_memory(0x10010000, 0x10010004, function(access, addr, len, value)",
		"  if access == mips.WRITE then",
		"    writes = writes + 1",
		"    print('write', addr, len, value)",
		"  end",
		"end)",
	)
	defer s.Close()

	done, err := emu.Simulate(context.Background(), 0)
	assert.NoError(err)
	assert.True(done)
	assert.NoError(s.Err())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(lines, 10)
	assert.Equal("write\t268500992\t4\t1", lines[0])
	assert.Equal("write\t268500992\t4\t10", lines[9])

	out.Reset()
	err = s.Load("after.lua", strings.NewReader("print(writes, mips.word(0x10010000), mips.byte(0x10010000), mips.register('$t0'), mips.ticks())"))
	assert.NoError(err)
	assert.Equal("10\t10\t10\t10\t43\n", out.String())
}

func TestScript_Register(t *testing.T) {
	assert := assert.New(t)

	s, emu, _ := newScript(t,
		"mips.on_register(function(name, number, value)",
		"  if name == '$t0' and number == 8 and value == 5 then",
		"    mips.stop()",
		"  end",
		"end)",
	)
	defer s.Close()

	done, err := emu.Simulate(context.Background(), 0)
	assert.NoError(err)
	assert.False(done)
	assert.Equal(cpu.STATE_PAUSED, emu.Cpu.State)

	value, _ := emu.Register("t0")
	assert.Equal(uint32(5), value)
}

// A tool may write back into memory, like a peripheral.
func TestScript_SetWord(t *testing.T) {
	assert := assert.New(t)

	s, emu, _ := newScript(t,
		"mips.on_memory(0x10010000, 0x10010004, function(access, addr, len, value)",
		"  if access == mips.WRITE then",
		"    mips.set_word(addr + 4, value * 2)",
		"  end",
		"end)",
	)
	defer s.Close()

	done, err := emu.Simulate(context.Background(), 0)
	assert.NoError(err)
	assert.True(done)

	value, _ := emu.Register("t2")
	assert.Equal(uint32(20), value)
}

func TestScript_ObserverError(t *testing.T) {
	assert := assert.New(t)

	s, emu, _ := newScript(t,
		"mips.on_memory(0x10010000, 0x10010004, function(access, addr, len, value)",
		"  if value == 3 then error('boom') end",
		"end)",
	)
	defer s.Close()

	done, err := emu.Simulate(context.Background(), 0)
	assert.NoError(err)
	assert.False(done)

	var script_err *ErrScript
	assert.True(errors.As(s.Err(), &script_err))
	assert.Contains(s.Err().Error(), "boom")
	assert.Equal("test.lua", script_err.Name)
}

func TestScript_Load(t *testing.T) {
	assert := assert.New(t)

	emu := emulator.NewEmulator()
	observed := emu.Memory.Observed()

	s := New(emu)
	err := s.Load("bad.lua", strings.NewReader("this is not lua"))
	var script_err *ErrScript
	assert.True(errors.As(err, &script_err))

	err = s.Load("runtime.lua", strings.NewReader("mips.register('bogus')"))
	assert.Error(err)

	err = s.Load("ok.lua", strings.NewReader("mips.on_memory(0, 0, function() end)"))
	assert.NoError(err)
	assert.Equal(observed+1, emu.Memory.Observed())

	s.Close()
	assert.Equal(observed, emu.Memory.Observed())
	assert.ErrorIs(s.Load("late.lua", strings.NewReader("")), ErrClosed)
}
