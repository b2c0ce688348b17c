package memory

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayouts(t *testing.T) {
	assert := assert.New(t)

	names := slices.Collect(Layouts())
	assert.Equal([]string{"Default", "CompactDataAtZero", "CompactTextAtZero"}, names)

	for _, name := range names {
		layout, err := LayoutByName(name)
		assert.NoError(err, name)
		assert.NoError(layout.Validate(), name)
		assert.True(layout.KernelText().Contains(layout.ExceptionHandler()), name)
		assert.Equal(SEGMENT_STACK, layout.Segment(layout.StackPointer), name)
		assert.Equal(SEGMENT_STATIC_DATA, layout.Segment(layout.GlobalPointer), name)
		assert.Equal(SEGMENT_STATIC_DATA, layout.Segment(layout.DataBase), name)
	}
}

func TestLayoutByName_Unknown(t *testing.T) {
	assert := assert.New(t)

	layout, err := LayoutByName("NoSuchLayout")
	assert.Nil(layout)
	assert.True(errors.Is(err, ErrLayoutUnknown))

	var cfg *ErrConfiguration
	assert.True(errors.As(err, &cfg))
	assert.Equal("NoSuchLayout", cfg.Name)
}

func TestLayout_Segment(t *testing.T) {
	assert := assert.New(t)

	layout := DefaultLayout()

	table := [](struct {
		addr    uint32
		segment Segment
	}){
		{0x0000_0000, SEGMENT_NONE},
		{0x003f_fffc, SEGMENT_NONE},
		{0x0040_0000, SEGMENT_TEXT},
		{0x1001_0000, SEGMENT_STATIC_DATA},
		{0x1004_0000, SEGMENT_HEAP},
		{0x7fff_effc, SEGMENT_STACK},
		{0x8000_0180, SEGMENT_KERNEL_TEXT},
		{0x9000_0000, SEGMENT_KERNEL_DATA},
		{0xffff_0000, SEGMENT_MMIO},
		{0xffff_ffff, SEGMENT_MMIO},
	}

	for _, entry := range table {
		assert.Equal(entry.segment, layout.Segment(entry.addr), "0x%08x", entry.addr)
	}

	assert.True(layout.InText(0x8000_0000))
	assert.False(layout.InText(0x1001_0000))
}

func TestLayout_Validate(t *testing.T) {
	assert := assert.New(t)

	bad := *DefaultLayout()
	bad.Name = "Overlap"
	bad.Region[SEGMENT_HEAP] = span(0x1000_0000, 0x2000_0000)
	assert.True(errors.Is(bad.Validate(), ErrLayoutOverlap))

	bad = *DefaultLayout()
	bad.Name = "Unaligned"
	bad.Region[SEGMENT_TEXT] = Range{Base: 0x0040_0002, Size: 0x1000}
	assert.True(errors.Is(bad.Validate(), ErrLayoutAlign))
}

func TestLayout_Defines(t *testing.T) {
	assert := assert.New(t)

	defines := map[string]string{}
	for name, value := range DefaultLayout().Defines() {
		defines[name] = value
	}

	assert.Equal("0x00400000", defines["TEXT_BASE"])
	assert.Equal("0x10010000", defines["DATA_BASE"])
	assert.Equal("0xffff0000", defines["MMIO_BASE"])
}
