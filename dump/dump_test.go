package dump

import (
	"bytes"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/mipsim/io"
	"github.com/ezrec/mipsim/memory"
)

func newDumper(t *testing.T) (dm *Dumper, mfs *io.MemFS) {
	mem, err := memory.NewMemory(memory.DefaultLayout())
	assert.NoError(t, err)

	assert.NoError(t, mem.SetWord(0x1001_0000, 0x0000_00ff))
	assert.NoError(t, mem.SetWord(0x1001_0004, 0x4142_4344))

	mfs = io.NewMemFS()
	dm = &Dumper{Memory: mem, FS: mfs}
	return
}

func TestParseRange(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		text string
		lo   uint32
		hi   uint32
		err  error
	}){
		{"0x10010000-0x10010010", 0x1001_0000, 0x1001_0010, nil},
		{"0-0xfffffffc", 0, 0xffff_fffc, nil},
		{"16-16", 16, 16, nil},
		{"0x10010001-0x10010010", 0, 0, ErrRangeAlign},
		{"0x10010000-0x10010012", 0, 0, ErrRangeAlign},
		{"0x10-0x8", 0, 0, ErrRangeOrder},
		{"16", 0, 0, ErrRangeSyntax},
		{"x-4", 0, 0, ErrRangeSyntax},
		{"4-", 0, 0, ErrRangeSyntax},
		{"0-0x100000000", 0, 0, ErrRangeSyntax},
	}

	for _, entry := range table {
		lo, hi, err := ParseRange(entry.text)
		if entry.err != nil {
			assert.ErrorIs(err, entry.err, entry.text)
			continue
		}
		assert.NoError(err, entry.text)
		assert.Equal(entry.lo, lo, entry.text)
		assert.Equal(entry.hi, hi, entry.text)
	}
}

func TestBounds(t *testing.T) {
	assert := assert.New(t)

	compact, err := memory.LayoutByName("CompactDataAtZero")
	assert.NoError(err)

	table := [](struct {
		layout  *memory.Layout
		segment string
		lo      uint32
		hi      uint32
	}){
		{memory.DefaultLayout(), ".text", 0x0040_0000, 0x0fff_fffc},
		{memory.DefaultLayout(), ".data", 0x1001_0000, 0x1003_fffc},
		{memory.DefaultLayout(), ".extern", 0x1000_0000, 0x1000_fffc},
		{memory.DefaultLayout(), ".ktext", 0x8000_0000, 0x8fff_fffc},
		{memory.DefaultLayout(), ".mmio", 0xffff_0000, 0xffff_fffc},
		{memory.DefaultLayout(), "0x400000-0x400010", 0x0040_0000, 0x0040_0010},
		{compact, ".data", 0x0000, 0x1ffc},
		{compact, ".extern", 0x1000, 0x1ffc},
		{compact, ".stack", 0x2800, 0x2ffc},
	}

	for _, entry := range table {
		lo, hi, err := Bounds(entry.layout, entry.segment)
		assert.NoError(err, entry.segment)
		assert.Equal(entry.lo, lo, entry.segment)
		assert.Equal(entry.hi, hi, entry.segment)
	}

	_, _, err = Bounds(memory.DefaultLayout(), ".bogus")
	assert.ErrorIs(err, ErrSegmentUnknown)
	var config *memory.ErrConfiguration
	assert.True(errors.As(err, &config))
	assert.Equal(".bogus", config.Name)
}

func TestParseFormat(t *testing.T) {
	assert := assert.New(t)

	for _, format := range Formats {
		found, err := ParseFormat(format.String())
		assert.NoError(err)
		assert.Equal(format, found)
	}

	_, err := ParseFormat("hextext")
	assert.ErrorIs(err, ErrFormatUnknown)
}

func TestParseRequest(t *testing.T) {
	assert := assert.New(t)

	req, err := ParseRequest(".data,HexText,out/data,1.txt")
	assert.NoError(err)
	assert.Equal(Request{Segment: ".data", Format: "HexText", File: "out/data,1.txt"}, req)

	_, err = ParseRequest(".data,HexText")
	assert.ErrorIs(err, ErrRequestSyntax)
	_, err = ParseRequest(".data,,file")
	assert.ErrorIs(err, ErrRequestSyntax)
}

func TestEncode(t *testing.T) {
	assert := assert.New(t)

	words := []uint32{0x0000_00ff, 0x4142_4344}

	table := [](struct {
		format Format
		output string
	}){
		{FORMAT_BINARY, "\xff\x00\x00\x00DCBA"},
		{FORMAT_BINARY_TEXT, "00000000000000000000000011111111\n01000001010000100100001101000100\n"},
		{FORMAT_HEX_TEXT, "000000ff\n41424344\n"},
		{FORMAT_ASCII_TEXT, "....\nDCBA\n"},
		{FORMAT_INTEL_HEX, ":020000041001E9\n:04000000FF000000FD\n:0400040044434241EE\n:00000001FF\n"},
	}

	for _, entry := range table {
		var buf bytes.Buffer
		Encode(&buf, entry.format, 0x1001_0000, words)
		assert.Equal(entry.output, buf.String(), entry.format.String())
	}
}

func TestEncode_IntelHexUpper(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	Encode(&buf, FORMAT_INTEL_HEX, 0x0040_fffc, []uint32{0, 0})
	assert.Equal(":020000040040BA\n:04FFFC000000000001\n:020000040041B9\n:0400000000000000FC\n:00000001FF\n", buf.String())
}

func TestDump(t *testing.T) {
	assert := assert.New(t)

	dm, mfs := newDumper(t)

	err := dm.Dump(Request{Segment: ".data", Format: "HexText", File: "data.txt"})
	assert.NoError(err)
	assert.Equal("000000ff\n41424344\n", string(mfs.Files["data.txt"].Data))

	err = dm.Dump(Request{Segment: "0x10010004-0x10010010", Format: "Binary", File: "range.bin"})
	assert.NoError(err)
	assert.Equal("DCBA", string(mfs.Files["range.bin"].Data))

	assert.NoError(mfs.Mkdir("out", 0o755))
	err = dm.Dump(Request{Segment: ".data", Format: "AsciiText", File: "out/data.asc"})
	assert.NoError(err)
	assert.Equal("....\nDCBA\n", string(mfs.Files["out/data.asc"].Data))
}

func TestDump_Failures(t *testing.T) {
	assert := assert.New(t)

	dm, mfs := newDumper(t)

	table := [](struct {
		req Request
		err error
	}){
		{Request{Segment: ".kdata", Format: "Binary", File: "a.bin"}, ErrNothingWritten},
		{Request{Segment: ".bogus", Format: "Binary", File: "b.bin"}, ErrSegmentUnknown},
		{Request{Segment: ".data", Format: "Bogus", File: "c.bin"}, ErrFormatUnknown},
		{Request{Segment: ".data", Format: "Binary", File: "missing/d.bin"}, fs.ErrNotExist},
		{Request{Segment: "0x0-0x4", Format: "Binary", File: "e.bin"}, memory.ErrAddressRange},
		{Request{Segment: "0x10010002-0x10010004", Format: "Binary", File: "f.bin"}, ErrRangeAlign},
	}

	for _, entry := range table {
		err := dm.Dump(entry.req)
		assert.ErrorIs(err, entry.err, entry.req.File)
		var dump_err *ErrDump
		assert.True(errors.As(err, &dump_err))
		assert.Equal(entry.req, dump_err.Request)
	}

	assert.Empty(mfs.Files)
}
