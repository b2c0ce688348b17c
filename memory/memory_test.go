package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/mipsim/backstep"
)

func newMemory(t *testing.T) *Memory {
	m, err := NewMemory(DefaultLayout())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestMemory_WordHalfByte(t *testing.T) {
	assert := assert.New(t)

	m := newMemory(t)

	assert.NoError(m.SetWord(0x1001_0000, 0x000000ff))
	value, err := m.Word(0x1001_0000)
	assert.NoError(err)
	assert.Equal(uint32(255), value)

	assert.NoError(m.SetWord(0x1001_0004, 0x12345678))
	value, _ = m.Byte(0x1001_0004)
	assert.Equal(uint32(0x78), value)
	value, _ = m.Byte(0x1001_0007)
	assert.Equal(uint32(0x12), value)
	value, _ = m.Half(0x1001_0006)
	assert.Equal(uint32(0x1234), value)

	assert.NoError(m.SetByte(0x1001_0005, 0xaa))
	value, _ = m.Word(0x1001_0004)
	assert.Equal(uint32(0x1234aa78), value)

	assert.NoError(m.SetHalf(0x1001_0004, 0xbeef))
	value, _ = m.Word(0x1001_0004)
	assert.Equal(uint32(0x1234beef), value)
}

func TestMemory_Alignment(t *testing.T) {
	assert := assert.New(t)

	m := newMemory(t)

	for addr := uint32(0x1001_0000); addr < 0x1001_0010; addr++ {
		_, err := m.Word(addr)
		if addr%4 != 0 {
			assert.True(errors.Is(err, ErrAddressAlign), "0x%08x", addr)
			assert.True(errors.Is(m.SetWord(addr, 1), ErrAddressAlign), "0x%08x", addr)
		} else {
			assert.NoError(err)
		}

		_, err = m.Half(addr)
		if addr%2 != 0 {
			assert.True(errors.Is(err, ErrAddressAlign), "0x%08x", addr)
			assert.True(errors.Is(m.SetHalf(addr, 1), ErrAddressAlign), "0x%08x", addr)
		} else {
			assert.NoError(err)
		}

		_, err = m.Byte(addr)
		assert.NoError(err)
	}

	_, written, _ := m.RawWord(0x1001_0000)
	assert.False(written)
}

func TestMemory_Range(t *testing.T) {
	assert := assert.New(t)

	m := newMemory(t)

	_, err := m.Word(0x0000_0000)
	var aerr *AddressError
	assert.True(errors.As(err, &aerr))
	assert.Equal(uint32(0), aerr.Address)
	assert.Equal(ACCESS_READ, aerr.Access)
	assert.True(errors.Is(err, ErrAddressRange))

	err = m.SetByte(0x0000_0010, 1)
	assert.True(errors.Is(err, ErrAddressRange))
}

func TestMemory_TextProtection(t *testing.T) {
	assert := assert.New(t)

	m := newMemory(t)

	err := m.SetWord(0x0040_0000, 0x01095020)
	assert.True(errors.Is(err, ErrTextWrite))
	_, written, _ := m.RawWord(0x0040_0000)
	assert.False(written)

	assert.NoError(m.Store(0x0040_0000, 0x01095020))
	assert.False(m.SelfModifying)
	value, written, err := m.RawWord(0x0040_0000)
	assert.NoError(err)
	assert.True(written)
	assert.Equal(uint32(0x01095020), value)

	m.SelfModifying = true
	assert.NoError(m.SetWord(0x0040_0004, 0))
}

func TestMemory_Observers(t *testing.T) {
	assert := assert.New(t)

	m := newMemory(t)

	var data []Notice
	var all []Notice
	sub := m.Subscribe(0x1001_0000, 0x1001_0010, func(n Notice) { data = append(data, n) })
	m.Subscribe(0, 0, func(n Notice) { all = append(all, n) })
	assert.Equal(2, m.Observed())

	prior := m.SetOrigin(ORIGIN_PROGRAM)
	assert.Equal(ORIGIN_TOOL, prior)
	assert.NoError(m.SetWord(0x1001_0000, 7))
	m.SetOrigin(prior)
	_, _ = m.Word(0x1001_0000)
	_, _ = m.Byte(0x1001_0010)
	_ = m.SetWord(0x1001_0001, 1)

	assert.Equal(2, len(data))
	assert.Equal(ACCESS_WRITE, data[0].Access)
	assert.True(data[0].FromProgram())
	assert.Equal(uint32(7), data[0].Value)
	assert.Equal(ACCESS_READ, data[1].Access)
	assert.False(data[1].FromProgram())
	assert.Equal(3, len(all))

	m.Unsubscribe(sub)
	assert.Equal(1, m.Observed())
	_, _ = m.Word(0x1001_0000)
	assert.Equal(2, len(data))
}

func TestMemory_FirstUnwritten(t *testing.T) {
	assert := assert.New(t)

	m := newMemory(t)

	addr, err := m.FirstUnwritten(0x1001_0000, 0x1003_fffc)
	assert.NoError(err)
	assert.Equal(uint32(0x1001_0000), addr)

	for n := range uint32(5) {
		assert.NoError(m.SetWord(0x1001_0000+4*n, n))
	}
	assert.NoError(m.SetWord(0x1001_0020, 9))

	addr, err = m.FirstUnwritten(0x1001_0000, 0x1003_fffc)
	assert.NoError(err)
	assert.Equal(uint32(0x1001_0014), addr)

	addr, err = m.FirstUnwritten(0x1001_0000, 0x1001_0008)
	assert.NoError(err)
	assert.Equal(uint32(0x1001_000c), addr)

	_, err = m.FirstUnwritten(0x1001_0002, 0x1001_0008)
	assert.True(errors.Is(err, ErrAddressAlign))
}

func TestMemory_Journal(t *testing.T) {
	assert := assert.New(t)

	m := newMemory(t)
	m.Log = &backstep.Log{Enabled: true}

	m.Log.Begin(0x0040_0000, 0, 0)
	assert.NoError(m.SetWord(0x1001_0000, 0x11111111))
	assert.NoError(m.SetByte(0x1001_0000, 0x22))

	entries, ok := m.Log.PopStep()
	assert.True(ok)
	assert.Equal(3, len(entries))

	for _, entry := range entries {
		if entry.Kind == backstep.KIND_MEMORY {
			m.Restore(entry.Address, entry.Value, entry.Written)
		}
	}

	_, written, _ := m.RawWord(0x1001_0000)
	assert.False(written)
}

func TestMemory_Configure(t *testing.T) {
	assert := assert.New(t)

	m := newMemory(t)
	assert.NoError(m.SetWord(0x1001_0000, 1))

	compact, err := LayoutByName("CompactTextAtZero")
	assert.NoError(err)
	assert.NoError(m.Configure(compact))
	assert.Equal(compact, m.Layout())

	_, err = m.Word(0x1001_0000)
	assert.True(errors.Is(err, ErrAddressRange))
	_, written, err := m.RawWord(0x2000)
	assert.NoError(err)
	assert.False(written)
}
