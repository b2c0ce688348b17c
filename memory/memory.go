// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package memory implements the segmented, byte-addressable, little-endian
// memory of the simulated machine.
//
// Storage is sparse: each region allocates 4KiB pages on first write, and
// every word tracks whether it has ever been written. Every access is
// checked against the region bounds and its natural alignment before any
// storage is touched, and each successful access is reported to the
// observers subscribed to its address.
package memory

import (
	"log"

	"github.com/ezrec/mipsim/backstep"
)

const (
	PAGE_WORDS = 1024 // Words per storage page.
	PAGE_SHIFT = 12   // Address bits covered by a page.
)

type page struct {
	data    [PAGE_WORDS]uint32
	written [PAGE_WORDS]bool
}

type region struct {
	Range
	pages map[uint32]*page
}

func (r *region) word(addr uint32) (value uint32, written bool) {
	pg, ok := r.pages[addr>>PAGE_SHIFT]
	if !ok {
		return
	}
	index := (addr >> 2) % PAGE_WORDS
	return pg.data[index], pg.written[index]
}

func (r *region) set(addr uint32, value uint32, written bool) {
	pg, ok := r.pages[addr>>PAGE_SHIFT]
	if !ok {
		if !written {
			return
		}
		pg = &page{}
		r.pages[addr>>PAGE_SHIFT] = pg
	}
	index := (addr >> 2) % PAGE_WORDS
	pg.data[index] = value
	pg.written[index] = written
}

// Memory is the storage for one simulation session.
type Memory struct {
	Verbose       bool          // If set, logs every write.
	SelfModifying bool          // If set, the text regions are writable.
	Log           *backstep.Log // If set, records the prior value of every mutation.

	layout    *Layout
	region    [SEGMENT_NONE]region
	origin    Origin
	observers []subscriber
	nextId    Subscription
}

// NewMemory creates an empty memory for a layout.
func NewMemory(layout *Layout) (m *Memory, err error) {
	m = &Memory{}
	err = m.Configure(layout)
	if err != nil {
		m = nil
	}
	return
}

// Configure rebuilds the memory for a new layout, discarding contents.
func (m *Memory) Configure(layout *Layout) (err error) {
	err = layout.Validate()
	if err != nil {
		return
	}

	m.layout = layout
	m.Reset()

	return
}

// Layout returns the active layout.
func (m *Memory) Layout() *Layout {
	return m.layout
}

// Reset discards all contents. Observers stay registered.
func (m *Memory) Reset() {
	for seg := range m.region {
		m.region[seg] = region{
			Range: m.layout.Region[seg],
			pages: make(map[uint32]*page),
		}
	}
}

// SetOrigin sets the origin reported for subsequent accesses, and
// returns the prior origin.
func (m *Memory) SetOrigin(origin Origin) (prior Origin) {
	prior = m.origin
	m.origin = origin
	return
}

// locate validates an access, and returns the region that holds it.
func (m *Memory) locate(addr uint32, size uint32, access Access) (r *region, err error) {
	if addr%size != 0 {
		err = &AddressError{Address: addr, Access: access, Err: ErrAddressAlign}
		return
	}

	seg := m.layout.Segment(addr)
	if seg == SEGMENT_NONE {
		err = &AddressError{Address: addr, Access: access, Err: ErrAddressRange}
		return
	}

	if access == ACCESS_WRITE && !m.SelfModifying && (seg == SEGMENT_TEXT || seg == SEGMENT_KERNEL_TEXT) {
		err = &AddressError{Address: addr, Access: access, Err: ErrTextWrite}
		return
	}

	r = &m.region[seg]
	return
}

// Word reads an aligned word.
func (m *Memory) Word(addr uint32) (value uint32, err error) {
	r, err := m.locate(addr, WORD_LENGTH, ACCESS_READ)
	if err != nil {
		return
	}

	value, _ = r.word(addr)
	m.notify(ACCESS_READ, addr, WORD_LENGTH, value)
	return
}

// Half reads an aligned, zero-extended halfword.
func (m *Memory) Half(addr uint32) (value uint32, err error) {
	r, err := m.locate(addr, HALF_LENGTH, ACCESS_READ)
	if err != nil {
		return
	}

	word, _ := r.word(addr &^ 3)
	value = (word >> ((addr & 3) * 8)) & 0xffff
	m.notify(ACCESS_READ, addr, HALF_LENGTH, value)
	return
}

// Byte reads a zero-extended byte.
func (m *Memory) Byte(addr uint32) (value uint32, err error) {
	r, err := m.locate(addr, 1, ACCESS_READ)
	if err != nil {
		return
	}

	word, _ := r.word(addr &^ 3)
	value = (word >> ((addr & 3) * 8)) & 0xff
	m.notify(ACCESS_READ, addr, 1, value)
	return
}

// RawWord reads an aligned word without notifying observers, and
// reports whether it was ever written.
func (m *Memory) RawWord(addr uint32) (value uint32, written bool, err error) {
	if addr%WORD_LENGTH != 0 {
		err = &AddressError{Address: addr, Access: ACCESS_READ, Err: ErrAddressAlign}
		return
	}

	seg := m.layout.Segment(addr)
	if seg == SEGMENT_NONE {
		err = &AddressError{Address: addr, Access: ACCESS_READ, Err: ErrAddressRange}
		return
	}

	value, written = m.region[seg].word(addr)
	return
}

// merge writes size bytes of value into the word containing addr.
func (m *Memory) merge(r *region, addr uint32, size uint32, value uint32) {
	word_addr := addr &^ 3
	prior, written := r.word(word_addr)

	if m.Log != nil {
		m.Log.Push(backstep.Entry{
			Kind:    backstep.KIND_MEMORY,
			Address: word_addr,
			Value:   prior,
			Written: written,
		})
	}

	var mask uint32
	switch size {
	case 1:
		mask = 0xff
	case 2:
		mask = 0xffff
	default:
		mask = 0xffffffff
	}
	shift := (addr & 3) * 8
	word := (prior &^ (mask << shift)) | ((value & mask) << shift)

	if m.Verbose {
		log.Printf("memory: [0x%08x] 0x%08x => 0x%08x", word_addr, prior, word)
	}

	r.set(word_addr, word, true)
}

func (m *Memory) write(addr uint32, size uint32, value uint32) (err error) {
	r, err := m.locate(addr, size, ACCESS_WRITE)
	if err != nil {
		return
	}

	m.merge(r, addr, size, value)
	m.notify(ACCESS_WRITE, addr, int(size), value&(0xffffffff>>(32-size*8)))
	return
}

// SetWord writes an aligned word.
func (m *Memory) SetWord(addr uint32, value uint32) error {
	return m.write(addr, WORD_LENGTH, value)
}

// SetHalf writes the low 16 bits of value to an aligned halfword.
func (m *Memory) SetHalf(addr uint32, value uint32) error {
	return m.write(addr, HALF_LENGTH, value)
}

// SetByte writes the low 8 bits of value.
func (m *Memory) SetByte(addr uint32, value uint32) error {
	return m.write(addr, 1, value)
}

// Store writes an aligned word, ignoring text write protection.
// Used to load assembled programs.
func (m *Memory) Store(addr uint32, value uint32) (err error) {
	smc := m.SelfModifying
	m.SelfModifying = true
	defer func() { m.SelfModifying = smc }()

	return m.write(addr, WORD_LENGTH, value)
}

// Restore sets a word and its written state directly. Used to replay
// backstep entries; never journaled.
func (m *Memory) Restore(addr uint32, value uint32, written bool) {
	seg := m.layout.Segment(addr)
	if seg == SEGMENT_NONE {
		return
	}

	m.region[seg].set(addr&^3, value, written)
	m.notify(ACCESS_WRITE, addr&^3, WORD_LENGTH, value)
}

// FirstUnwritten returns the address of the first never-written word in
// [lo, hi], or the word after hi if all were written.
func (m *Memory) FirstUnwritten(lo, hi uint32) (addr uint32, err error) {
	if lo%WORD_LENGTH != 0 || hi%WORD_LENGTH != 0 {
		err = &AddressError{Address: lo, Access: ACCESS_READ, Err: ErrAddressAlign}
		return
	}

	for addr = lo; addr >= lo && addr <= hi; addr += WORD_LENGTH {
		var written bool
		_, written, err = m.RawWord(addr)
		if err != nil {
			return
		}
		if !written {
			return
		}
	}

	return hi + WORD_LENGTH, nil
}
