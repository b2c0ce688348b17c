package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/mipsim/backstep"
	"github.com/ezrec/mipsim/memory"
)

func TestLookup(t *testing.T) {
	table := [](struct {
		name string
		reg  int
		ok   bool
	}){
		{"$zero", REG_ZERO, true},
		{"zero", REG_ZERO, true},
		{"$0", REG_ZERO, true},
		{"$t0", REG_T0, true},
		{"T0", REG_T0, true},
		{"8", REG_T0, true},
		{"$31", REG_RA, true},
		{"$s8", REG_FP, true},
		{"$fp", REG_FP, true},
		{"pc", REG_PC, true},
		{"hi", REG_HI, true},
		{"lo", REG_LO, true},
		{"$32", 0, false},
		{"$-1", 0, false},
		{"$t10", 0, false},
		{"", 0, false},
	}

	for _, entry := range table {
		assert := assert.New(t)
		reg, ok := Lookup(entry.name)
		assert.Equal(entry.ok, ok, entry.name)
		if entry.ok {
			assert.Equal(entry.reg, reg, entry.name)
		}
	}
}

func TestRegisters_Reset(t *testing.T) {
	assert := assert.New(t)

	layout := memory.DefaultLayout()
	rf := NewRegisters(layout)

	assert.Equal(uint32(0x1000_8000), rf.Get(REG_GP))
	assert.Equal(uint32(0x7fff_effc), rf.Get(REG_SP))
	assert.Equal(uint32(0x0040_0000), rf.ProgramCounter())
	assert.Equal(uint32(COP0_STATUS_RESET), rf.GetCop0(COP0_STATUS))

	rf.Set(REG_T0, 5)
	rf.Set(REG_ZERO, 5)
	rf.SetCop0(COP0_EPC, 0x1234)
	assert.Equal(uint32(5), rf.Get(REG_T0))
	assert.Equal(uint32(0), rf.Get(REG_ZERO))

	symbols := NewSymbolTable()
	assert.NoError(symbols.Define("a.s", "main", 0x0040_0010, false))

	rf.ResetAll(true, symbols)
	assert.Equal(uint32(0), rf.Get(REG_T0))
	assert.Equal(uint32(0), rf.GetCop0(COP0_EPC))
	assert.Equal(uint32(0x0040_0010), rf.ProgramCounter())

	rf.ResetAll(false, symbols)
	assert.Equal(uint32(0x0040_0000), rf.ProgramCounter())

	// An entry label outside of text is ignored.
	data := NewSymbolTable()
	assert.NoError(data.Define("a.s", "main", 0x1001_0000, true))
	rf.ResetAll(true, data)
	assert.Equal(uint32(0x0040_0000), rf.ProgramCounter())
}

func TestRegisters_ByName(t *testing.T) {
	assert := assert.New(t)

	rf := NewRegisters(memory.DefaultLayout())

	assert.NoError(rf.SetByName("$v0", 10))
	value, err := rf.GetByName("v0")
	assert.NoError(err)
	assert.Equal(uint32(10), value)

	assert.NoError(rf.SetByName("pc", 0x0040_0100))
	assert.Equal(uint32(0x0040_0100), rf.ProgramCounter())

	_, err = rf.GetByName("$bogus")
	assert.ErrorIs(err, ErrRegisterInvalid)
	assert.ErrorIs(rf.SetByName("$bogus", 1), ErrRegisterInvalid)
}

func TestRegisters_Observer(t *testing.T) {
	assert := assert.New(t)

	rf := NewRegisters(memory.DefaultLayout())

	var notices []RegisterNotice
	id := rf.Subscribe(func(notice RegisterNotice) {
		notices = append(notices, notice)
	})

	rf.Set(REG_A0, 1)
	prior := rf.SetOrigin(memory.ORIGIN_PROGRAM)
	assert.Equal(memory.ORIGIN_TOOL, prior)
	rf.Set(REG_A1, 2)
	rf.SetProgramCounter(0x0040_0008)
	rf.IncrementProgramCounter()
	rf.Set(REG_ZERO, 3)
	rf.SetOrigin(prior)

	assert.Equal([]RegisterNotice{
		{Register: REG_A0, Name: "$a0", Value: 1, Origin: memory.ORIGIN_TOOL},
		{Register: REG_A1, Name: "$a1", Value: 2, Origin: memory.ORIGIN_PROGRAM},
		{Register: REG_PC, Name: "pc", Value: 0x0040_0008, Origin: memory.ORIGIN_PROGRAM},
	}, notices)

	rf.Unsubscribe(id)
	rf.Set(REG_A0, 4)
	assert.Equal(3, len(notices))
}

func TestRegisters_Restore(t *testing.T) {
	assert := assert.New(t)

	undo := &backstep.Log{Enabled: true}
	rf := NewRegisters(memory.DefaultLayout())
	rf.Log = undo

	undo.Begin(rf.ProgramCounter(), BRANCH_CLEAR, 0)
	rf.Set(REG_T0, 1)
	rf.SetCop0(COP0_CAUSE, 0x30)
	rf.IncrementProgramCounter()

	undo.Begin(rf.ProgramCounter(), BRANCH_CLEAR, 0)
	rf.Set(REG_T0, 2)
	rf.SetProgramCounter(0x0040_1000)

	assert.Equal(2, undo.Steps())

	entries, ok := undo.PopStep()
	assert.True(ok)
	for _, entry := range entries {
		rf.Restore(entry)
	}
	assert.Equal(uint32(1), rf.Get(REG_T0))
	assert.Equal(uint32(0x0040_0004), rf.ProgramCounter())

	entries, ok = undo.PopStep()
	assert.True(ok)
	for _, entry := range entries {
		rf.Restore(entry)
	}
	assert.Equal(uint32(0), rf.Get(REG_T0))
	assert.Equal(uint32(0), rf.GetCop0(COP0_CAUSE))
	assert.Equal(uint32(0x0040_0000), rf.ProgramCounter())

	_, ok = undo.PopStep()
	assert.False(ok)
}

func TestRegisterName(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("$zero", RegisterName(0))
	assert.Equal("$ra", RegisterName(31))
	assert.Equal("$t0", RegisterName(8+32))
	assert.Equal("epc", Cop0Name(COP0_EPC))
	assert.Equal("", Cop0Name(3))
}
