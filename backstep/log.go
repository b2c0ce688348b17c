// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package backstep records the prior machine state overwritten by each
// simulated instruction, so that execution can be rewound.
package backstep

const (
	DEFAULT_LIMIT = 1 << 16 // Default maximum number of retained entries.
)

// Kind is the restore operation carried by an Entry.
type Kind int

//go:generate go tool stringer -linecomment -type=Kind
const (
	KIND_STEP     = Kind(0) // step
	KIND_REGISTER = Kind(1) // register
	KIND_MEMORY   = Kind(2) // memory
	KIND_PC       = Kind(3) // pc
	KIND_COP0     = Kind(4) // cop0
	KIND_HEAP     = Kind(5) // heap
)

// Entry is a single restore operation.
//
// A KIND_STEP entry opens every instruction: Value is the PC the
// instruction was fetched from, and Pending/Target carry the delayed
// branch state at that moment.
type Entry struct {
	Kind     Kind
	Step     uint64 // Instruction sequence number.
	Address  uint32 // Memory word address for KIND_MEMORY.
	Register int    // Register number for KIND_REGISTER and KIND_COP0.
	Value    uint32 // Prior value; the heap break for KIND_HEAP.
	Written  bool   // Prior written state for KIND_MEMORY.
	Pending  int    // Prior delayed branch state for KIND_STEP.
	Target   uint32 // Prior delayed branch target for KIND_STEP.
}

// Log is a bounded stack of restore entries, most recent last.
type Log struct {
	Enabled bool // Entries are only recorded when enabled.
	Limit   int  // Maximum entries retained; zero selects DEFAULT_LIMIT.
	Data    []Entry

	step uint64
}

// Begin opens a new instruction step, recording the fetch PC and the
// delayed branch state.
func (l *Log) Begin(pc uint32, pending int, target uint32) {
	if !l.Enabled {
		return
	}

	l.step++
	l.push(Entry{Kind: KIND_STEP, Step: l.step, Value: pc, Pending: pending, Target: target})
}

// Push records a restore entry for the current step.
func (l *Log) Push(entry Entry) {
	if !l.Enabled {
		return
	}

	entry.Step = l.step
	l.push(entry)
}

func (l *Log) push(entry Entry) {
	limit := l.Limit
	if limit <= 0 {
		limit = DEFAULT_LIMIT
	}

	if len(l.Data) >= limit {
		l.trim()
	}

	l.Data = append(l.Data, entry)
}

// trim drops the oldest whole step, so the bottom of the log always
// starts on a step boundary.
func (l *Log) trim() {
	if len(l.Data) == 0 {
		return
	}

	n := 1
	for n < len(l.Data) && l.Data[n].Kind != KIND_STEP {
		n++
	}

	if n == len(l.Data) {
		// A single step larger than the limit cannot be kept intact.
		l.Data = l.Data[:0]
		return
	}

	l.Data = append(l.Data[:0], l.Data[n:]...)
}

// Pop removes and returns the most recent entry.
func (l *Log) Pop() (entry Entry, ok bool) {
	entry, ok = l.Peek()
	if ok {
		l.Data = l.Data[:len(l.Data)-1]
	}
	return
}

// Peek returns the most recent entry.
func (l *Log) Peek() (entry Entry, ok bool) {
	if l.Empty() {
		return
	}

	return l.Data[len(l.Data)-1], true
}

// PopStep removes the entries of the most recent instruction, newest
// first, ending with its KIND_STEP boundary.
func (l *Log) PopStep() (entries []Entry, ok bool) {
	for {
		entry, found := l.Pop()
		if !found {
			// Incomplete step; the boundary was trimmed away.
			return entries, false
		}
		entries = append(entries, entry)
		if entry.Kind == KIND_STEP {
			return entries, true
		}
	}
}

// Steps returns the number of complete steps that can be undone.
func (l *Log) Steps() (count int) {
	for _, entry := range l.Data {
		if entry.Kind == KIND_STEP {
			count++
		}
	}
	return
}

// Empty returns true when there is nothing to undo.
func (l *Log) Empty() bool {
	return len(l.Data) == 0
}

// Reset discards all entries.
func (l *Log) Reset() {
	if len(l.Data) > 0 {
		l.Data = l.Data[:0]
	}
	l.step = 0
}
