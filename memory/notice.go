package memory

import (
	"slices"
)

// Access is the direction of a memory access.
type Access int

//go:generate go tool stringer -linecomment -type=Access
const (
	ACCESS_READ  = Access(0) // read
	ACCESS_WRITE = Access(1) // write
)

// Origin identifies who caused an access.
type Origin int

const (
	ORIGIN_TOOL    = Origin(0) // Tooling, loaders, peripherals.
	ORIGIN_PROGRAM = Origin(1) // The simulated program.
)

// Notice describes one memory access.
type Notice struct {
	Access  Access
	Address uint32 // Address of the access.
	Length  int    // Bytes accessed: 1, 2 or 4.
	Value   uint32 // Value read or written.
	Origin  Origin
}

// FromProgram returns true if the simulated program made the access.
func (n Notice) FromProgram() bool {
	return n.Origin == ORIGIN_PROGRAM
}

// Observer receives access notices synchronously.
type Observer func(notice Notice)

// Subscription identifies an observer registration.
type Subscription int

type subscriber struct {
	id    Subscription
	all   bool
	watch Range
	fn    Observer
}

// Subscribe registers an observer for accesses in [lo, hi).
// An hi of zero extends the range to the top of the address space, and
// lo == hi watches every address.
func (m *Memory) Subscribe(lo, hi uint32, observer Observer) Subscription {
	m.nextId++
	sub := subscriber{
		id:    m.nextId,
		all:   lo == hi,
		watch: Range{Base: lo, Size: hi - lo},
		fn:    observer,
	}

	// Copy on write, so that a callback may (un)subscribe.
	m.observers = append(slices.Clip(m.observers), sub)

	return sub.id
}

// Unsubscribe removes an observer registration.
func (m *Memory) Unsubscribe(id Subscription) {
	m.observers = slices.DeleteFunc(slices.Clone(m.observers), func(s subscriber) bool {
		return s.id == id
	})
}

// Observed returns the number of registered observers.
func (m *Memory) Observed() int {
	return len(m.observers)
}

func (m *Memory) notify(access Access, addr uint32, length int, value uint32) {
	for _, sub := range m.observers {
		if sub.all || sub.watch.Contains(addr) {
			sub.fn(Notice{
				Access:  access,
				Address: addr,
				Length:  length,
				Value:   value,
				Origin:  m.origin,
			})
		}
	}
}
