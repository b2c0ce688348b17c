// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package dump writes the written contents of memory ranges to files.
package dump

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"path"
	"strconv"
	"strings"

	"github.com/ezrec/mipsim/io"
	"github.com/ezrec/mipsim/memory"
)

// Format is a dump file format.
type Format int

//go:generate go tool stringer -linecomment -type=Format
const (
	FORMAT_BINARY      = Format(0) // Binary
	FORMAT_BINARY_TEXT = Format(1) // BinaryText
	FORMAT_HEX_TEXT    = Format(2) // HexText
	FORMAT_ASCII_TEXT  = Format(3) // AsciiText
	FORMAT_INTEL_HEX   = Format(4) // HEX
)

const (
	EXTERN_SIZE = 0x1_0000 // Size of the .extern segment.
)

// Formats lists the dump formats.
var Formats = []Format{
	FORMAT_BINARY,
	FORMAT_BINARY_TEXT,
	FORMAT_HEX_TEXT,
	FORMAT_ASCII_TEXT,
	FORMAT_INTEL_HEX,
}

// Segments lists the names accepted by Bounds.
var Segments = []string{".text", ".data", ".extern", ".heap", ".stack", ".ktext", ".kdata", ".mmio"}

// ParseFormat finds a format by name.
func ParseFormat(name string) (format Format, err error) {
	for _, format = range Formats {
		if format.String() == name {
			return
		}
	}

	err = &memory.ErrConfiguration{Name: name, Err: ErrFormatUnknown}
	return
}

// ParseRange parses an inclusive word range "lo-hi". Both ends must be
// word aligned, and lo must not be above hi.
func ParseRange(text string) (lo uint32, hi uint32, err error) {
	lo_text, hi_text, ok := strings.Cut(text, "-")
	if !ok {
		err = fmt.Errorf("%v: %w", text, ErrRangeSyntax)
		return
	}

	var value uint64
	value, err = strconv.ParseUint(lo_text, 0, 32)
	if err != nil {
		err = fmt.Errorf("%v: %w", text, ErrRangeSyntax)
		return
	}
	lo = uint32(value)

	value, err = strconv.ParseUint(hi_text, 0, 32)
	if err != nil {
		err = fmt.Errorf("%v: %w", text, ErrRangeSyntax)
		return
	}
	hi = uint32(value)

	if lo%memory.WORD_LENGTH != 0 || hi%memory.WORD_LENGTH != 0 {
		err = fmt.Errorf("%v: %w", text, ErrRangeAlign)
		return
	}
	if lo > hi {
		err = fmt.Errorf("%v: %w", text, ErrRangeOrder)
		return
	}

	return
}

// Bounds returns the inclusive word range of a named segment, or of an
// address range.
func Bounds(layout *memory.Layout, segment string) (lo uint32, hi uint32, err error) {
	var r memory.Range

	switch segment {
	case ".text":
		r = layout.Text()
	case ".data":
		data := layout.Region[memory.SEGMENT_STATIC_DATA]
		r = memory.Range{Base: layout.DataBase, Size: data.Base + data.Size - layout.DataBase}
	case ".extern":
		end := layout.ExternBase + EXTERN_SIZE
		if layout.DataBase > layout.ExternBase && layout.DataBase < end {
			end = layout.DataBase
		}
		data := layout.Region[memory.SEGMENT_STATIC_DATA]
		end = min(end, data.Base+data.Size)
		r = memory.Range{Base: layout.ExternBase, Size: end - layout.ExternBase}
	case ".heap":
		r = layout.Region[memory.SEGMENT_HEAP]
	case ".stack":
		r = layout.Region[memory.SEGMENT_STACK]
	case ".ktext":
		r = layout.KernelText()
	case ".kdata":
		r = layout.KernelData()
	case ".mmio":
		r = layout.MMIO()
	default:
		lo, hi, err = ParseRange(segment)
		if err != nil {
			err = &memory.ErrConfiguration{Name: segment, Err: errors.Join(ErrSegmentUnknown, err)}
		}
		return
	}

	lo = r.Base
	hi = r.Last()
	return
}

// Request is one dump: a segment name or address range, a format name,
// and the file to write.
type Request struct {
	Segment string
	Format  string
	File    string
}

// ParseRequest parses "segment,format,file".
func ParseRequest(text string) (req Request, err error) {
	parts := strings.SplitN(text, ",", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		err = fmt.Errorf("%v: %w", text, ErrRequestSyntax)
		return
	}

	req = Request{Segment: parts[0], Format: parts[1], File: parts[2]}
	return
}

// Dumper writes memory ranges to files.
type Dumper struct {
	Verbose bool
	Memory  *memory.Memory
	FS      io.CreateFS
}

// Dump writes the words of a request's range, up to the first word
// never written, to the request's file. On any failure no file is
// created.
func (dm *Dumper) Dump(req Request) (err error) {
	defer func() {
		if err != nil {
			err = &ErrDump{Request: req, Err: err}
		}
	}()

	lo, hi, err := Bounds(dm.Memory.Layout(), req.Segment)
	if err != nil {
		return
	}

	format, err := ParseFormat(req.Format)
	if err != nil {
		return
	}

	end, err := dm.Memory.FirstUnwritten(lo, hi)
	if err != nil {
		return
	}
	if end == lo {
		err = ErrNothingWritten
		return
	}

	words := make([]uint32, 0, (end-lo)/memory.WORD_LENGTH)
	for addr := lo; addr != end; addr += memory.WORD_LENGTH {
		var word uint32
		word, _, err = dm.Memory.RawWord(addr)
		if err != nil {
			return
		}
		words = append(words, word)
	}

	var buf bytes.Buffer
	Encode(&buf, format, lo, words)

	fs := dm.FS
	dir, name := path.Split(req.File)
	if dir != "" {
		fs, err = fs.Sub(path.Clean(dir))
		if err != nil {
			return
		}
	}

	file, err := fs.Create(name)
	if err != nil {
		return
	}

	_, err = file.Write(buf.Bytes())
	close_err := file.Close()
	if err == nil {
		err = close_err
	}
	if err != nil {
		return
	}

	if dm.Verbose {
		log.Printf("dump: %v 0x%08x-0x%08x %v => %v", req.Segment, lo, end-memory.WORD_LENGTH, format, req.File)
	}

	return
}

// Encode appends words, starting at address base, to buf in a format.
func Encode(buf *bytes.Buffer, format Format, base uint32, words []uint32) {
	switch format {
	case FORMAT_BINARY:
		for _, word := range words {
			buf.Write(binary.LittleEndian.AppendUint32(nil, word))
		}
	case FORMAT_BINARY_TEXT:
		for _, word := range words {
			fmt.Fprintf(buf, "%032b\n", word)
		}
	case FORMAT_HEX_TEXT:
		for _, word := range words {
			fmt.Fprintf(buf, "%08x\n", word)
		}
	case FORMAT_ASCII_TEXT:
		for _, word := range words {
			for n := range memory.WORD_LENGTH {
				buf.WriteByte(printable(byte(word >> (n * 8))))
			}
			buf.WriteByte('\n')
		}
	case FORMAT_INTEL_HEX:
		encodeIntelHex(buf, base, words)
	}
}

func printable(c byte) byte {
	if c < ' ' || c > '~' {
		return '.'
	}
	return c
}

// hexRecord writes one Intel HEX record.
func hexRecord(buf *bytes.Buffer, kind byte, offset uint16, data []byte) {
	sum := byte(len(data)) + byte(offset>>8) + byte(offset) + kind
	fmt.Fprintf(buf, ":%02X%04X%02X", len(data), offset, kind)
	for _, b := range data {
		fmt.Fprintf(buf, "%02X", b)
		sum += b
	}
	fmt.Fprintf(buf, "%02X\n", -sum)
}

// encodeIntelHex writes one data record per word, with an extended
// linear address record whenever the upper address half changes.
func encodeIntelHex(buf *bytes.Buffer, base uint32, words []uint32) {
	upper := -1
	for n, word := range words {
		addr := base + uint32(n)*memory.WORD_LENGTH
		if int(addr>>16) != upper {
			upper = int(addr >> 16)
			hexRecord(buf, 0x04, 0, []byte{byte(upper >> 8), byte(upper)})
		}
		hexRecord(buf, 0x00, uint16(addr), binary.LittleEndian.AppendUint32(nil, word))
	}
	hexRecord(buf, 0x01, 0, nil)
}
