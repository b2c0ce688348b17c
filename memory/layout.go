// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package memory

import (
	"fmt"
	"iter"
	"slices"
)

const (
	WORD_LENGTH = 4 // Bytes per word.
	HALF_LENGTH = 2 // Bytes per halfword.

	EXCEPTION_OFFSET = 0x180 // Exception handler offset into kernel text.
)

// Range is a contiguous run of addresses.
type Range struct {
	Base uint32
	Size uint32
}

// Contains returns true if the address is inside the range.
func (r Range) Contains(addr uint32) bool {
	return addr-r.Base < r.Size
}

// Last returns the last addressable word of the range.
func (r Range) Last() uint32 {
	return r.Base + r.Size - WORD_LENGTH
}

// overlaps returns true if the two ranges share any address.
func (r Range) overlaps(o Range) bool {
	if r.Size == 0 || o.Size == 0 {
		return false
	}
	return r.Contains(o.Base) || o.Contains(r.Base)
}

// Segment names a region of a layout.
type Segment int

//go:generate go tool stringer -linecomment -type=Segment
const (
	SEGMENT_TEXT        = Segment(0) // .text
	SEGMENT_STATIC_DATA = Segment(1) // .data
	SEGMENT_HEAP        = Segment(2) // .heap
	SEGMENT_STACK       = Segment(3) // .stack
	SEGMENT_KERNEL_TEXT = Segment(4) // .ktext
	SEGMENT_KERNEL_DATA = Segment(5) // .kdata
	SEGMENT_MMIO        = Segment(6) // .mmio
	SEGMENT_NONE        = Segment(7) // none
)

// Layout is an address-space configuration.
type Layout struct {
	Name        string
	Description string

	Region [SEGMENT_NONE]Range // Region bounds, by segment.

	DataBase      uint32 // Initial .data assembly address.
	ExternBase    uint32 // Initial .extern assembly address.
	GlobalPointer uint32 // $gp reset value.
	StackPointer  uint32 // $sp reset value.
}

// Text returns the user text region.
func (l *Layout) Text() Range {
	return l.Region[SEGMENT_TEXT]
}

// KernelText returns the kernel text region.
func (l *Layout) KernelText() Range {
	return l.Region[SEGMENT_KERNEL_TEXT]
}

// KernelData returns the kernel data region.
func (l *Layout) KernelData() Range {
	return l.Region[SEGMENT_KERNEL_DATA]
}

// MMIO returns the memory-mapped I/O region.
func (l *Layout) MMIO() Range {
	return l.Region[SEGMENT_MMIO]
}

// ExceptionHandler returns the address of the kernel exception handler.
func (l *Layout) ExceptionHandler() uint32 {
	return l.Region[SEGMENT_KERNEL_TEXT].Base + EXCEPTION_OFFSET
}

// Segment returns the segment containing an address, or SEGMENT_NONE.
func (l *Layout) Segment(addr uint32) Segment {
	for seg, r := range l.Region {
		if r.Contains(addr) {
			return Segment(seg)
		}
	}
	return SEGMENT_NONE
}

// InText returns true if the address is in user or kernel text.
func (l *Layout) InText(addr uint32) bool {
	seg := l.Segment(addr)
	return seg == SEGMENT_TEXT || seg == SEGMENT_KERNEL_TEXT
}

// Defines returns the assembler equates describing the layout.
func (l *Layout) Defines() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		defines := [](struct {
			name  string
			value uint32
		}){
			{"TEXT_BASE", l.Region[SEGMENT_TEXT].Base},
			{"DATA_BASE", l.DataBase},
			{"EXTERN_BASE", l.ExternBase},
			{"HEAP_BASE", l.Region[SEGMENT_HEAP].Base},
			{"KTEXT_BASE", l.Region[SEGMENT_KERNEL_TEXT].Base},
			{"KDATA_BASE", l.Region[SEGMENT_KERNEL_DATA].Base},
			{"MMIO_BASE", l.Region[SEGMENT_MMIO].Base},
			{"GP_RESET", l.GlobalPointer},
			{"SP_RESET", l.StackPointer},
		}
		for _, def := range defines {
			if !yield(def.name, fmt.Sprintf("0x%08x", def.value)) {
				return
			}
		}
	}
}

// Validate checks the alignment and exclusivity of the regions.
func (l *Layout) Validate() (err error) {
	for seg, r := range l.Region {
		if r.Base%WORD_LENGTH != 0 || r.Size%WORD_LENGTH != 0 {
			return &ErrConfiguration{Name: l.Name, Err: fmt.Errorf("%v: %w", Segment(seg), ErrLayoutAlign)}
		}
		for other := seg + 1; other < len(l.Region); other++ {
			if r.overlaps(l.Region[other]) {
				return &ErrConfiguration{Name: l.Name, Err: fmt.Errorf("%v %v: %w", Segment(seg), Segment(other), ErrLayoutOverlap)}
			}
		}
	}

	return
}

// span returns the range [lo, hi) as a Range.
func span(lo, hi uint32) Range {
	return Range{Base: lo, Size: hi - lo}
}

var layouts = []*Layout{
	{
		Name:        "Default",
		Description: "Default 32-bit address space",
		Region: [SEGMENT_NONE]Range{
			SEGMENT_TEXT:        span(0x0040_0000, 0x1000_0000),
			SEGMENT_STATIC_DATA: span(0x1000_0000, 0x1004_0000),
			SEGMENT_HEAP:        span(0x1004_0000, 0x7000_0000),
			SEGMENT_STACK:       span(0x7000_0000, 0x8000_0000),
			SEGMENT_KERNEL_TEXT: span(0x8000_0000, 0x9000_0000),
			SEGMENT_KERNEL_DATA: span(0x9000_0000, 0xffff_0000),
			SEGMENT_MMIO:        {Base: 0xffff_0000, Size: 0x1_0000},
		},
		DataBase:      0x1001_0000,
		ExternBase:    0x1000_0000,
		GlobalPointer: 0x1000_8000,
		StackPointer:  0x7fff_effc,
	},
	{
		Name:        "CompactDataAtZero",
		Description: "Compact 32KB, data at address 0",
		Region: [SEGMENT_NONE]Range{
			SEGMENT_TEXT:        span(0x3000, 0x4000),
			SEGMENT_STATIC_DATA: span(0x0000, 0x2000),
			SEGMENT_HEAP:        span(0x2000, 0x2800),
			SEGMENT_STACK:       span(0x2800, 0x3000),
			SEGMENT_KERNEL_TEXT: span(0x4000, 0x5000),
			SEGMENT_KERNEL_DATA: span(0x5000, 0x7f00),
			SEGMENT_MMIO:        span(0x7f00, 0x8000),
		},
		DataBase:      0x0000,
		ExternBase:    0x1000,
		GlobalPointer: 0x1800,
		StackPointer:  0x2ffc,
	},
	{
		Name:        "CompactTextAtZero",
		Description: "Compact 32KB, text at address 0",
		Region: [SEGMENT_NONE]Range{
			SEGMENT_TEXT:        span(0x0000, 0x1000),
			SEGMENT_STATIC_DATA: span(0x1000, 0x3000),
			SEGMENT_HEAP:        span(0x3000, 0x3800),
			SEGMENT_STACK:       span(0x3800, 0x4000),
			SEGMENT_KERNEL_TEXT: span(0x4000, 0x5000),
			SEGMENT_KERNEL_DATA: span(0x5000, 0x7f00),
			SEGMENT_MMIO:        span(0x7f00, 0x8000),
		},
		DataBase:      0x2000,
		ExternBase:    0x1000,
		GlobalPointer: 0x1800,
		StackPointer:  0x3ffc,
	},
}

// DefaultLayout returns the default address-space layout.
func DefaultLayout() *Layout {
	return layouts[0]
}

// LayoutByName finds a built-in layout.
func LayoutByName(name string) (layout *Layout, err error) {
	idx := slices.IndexFunc(layouts, func(l *Layout) bool { return l.Name == name })
	if idx < 0 {
		err = &ErrConfiguration{Name: name, Err: ErrLayoutUnknown}
		return
	}

	layout = layouts[idx]
	return
}

// Layouts iterates over the names of the built-in layouts.
func Layouts() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, l := range layouts {
			if !yield(l.Name) {
				return
			}
		}
	}
}
