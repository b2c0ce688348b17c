// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"cmp"
	"errors"
	"slices"
)

const (
	DEFAULT_ENTRY_LABEL = "main"
)

var ErrSymbolsFrozen = errors.New(f("symbol table is frozen"))

// Symbol is a label bound to an address.
type Symbol struct {
	Name    string
	Address uint32
	Data    bool   // Defined in a data segment.
	File    string // Defining source unit; empty for .extern symbols.
	Global  bool
}

// SymbolTable holds the local symbols of each source unit, and the
// global symbols shared between them.
type SymbolTable struct {
	EntryLabel string // Program entry label; empty selects DEFAULT_ENTRY_LABEL.

	global map[string]Symbol
	local  map[string]map[string]Symbol
	units  []string
	frozen bool
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		global: map[string]Symbol{},
		local:  map[string]map[string]Symbol{},
	}
}

// Unit registers a source unit, so that entry label lookup knows the
// unit order.
func (st *SymbolTable) Unit(file string) {
	if _, ok := st.local[file]; ok {
		return
	}
	st.local[file] = map[string]Symbol{}
	st.units = append(st.units, file)
}

// Define binds a label local to a source unit.
func (st *SymbolTable) Define(file string, name string, addr uint32, data bool) (err error) {
	if st.frozen {
		return ErrSymbolsFrozen
	}

	st.Unit(file)
	table := st.local[file]
	if _, ok := table[name]; ok {
		return ErrLabelDuplicate
	}

	table[name] = Symbol{Name: name, Address: addr, Data: data, File: file}
	return
}

// DefineGlobal binds a global label directly, as done by .extern.
// Redefinition is silently ignored.
func (st *SymbolTable) DefineGlobal(name string, addr uint32, data bool) (defined bool, err error) {
	if st.frozen {
		err = ErrSymbolsFrozen
		return
	}

	if _, ok := st.global[name]; ok {
		return
	}

	st.global[name] = Symbol{Name: name, Address: addr, Data: data, Global: true}
	defined = true
	return
}

// Globalize moves a unit's local label into the global table.
func (st *SymbolTable) Globalize(file string, name string) (err error) {
	if st.frozen {
		return ErrSymbolsFrozen
	}

	sym, ok := st.local[file][name]
	if !ok {
		return ErrGlobalUndefined
	}

	if _, ok := st.global[name]; ok {
		return ErrLabelDuplicate
	}

	delete(st.local[file], name)
	sym.Global = true
	st.global[name] = sym
	return
}

// Resolve finds a label as seen from a source unit: locals first, then
// globals.
func (st *SymbolTable) Resolve(file string, name string) (sym Symbol, ok bool) {
	sym, ok = st.local[file][name]
	if ok {
		return
	}

	sym, ok = st.global[name]
	return
}

// Global finds a global label.
func (st *SymbolTable) Global(name string) (sym Symbol, ok bool) {
	sym, ok = st.global[name]
	return
}

// Lookup finds a label anywhere: globals first, then each unit in order.
func (st *SymbolTable) Lookup(name string) (sym Symbol, ok bool) {
	sym, ok = st.global[name]
	if ok {
		return
	}

	for _, unit := range st.units {
		sym, ok = st.local[unit][name]
		if ok {
			return
		}
	}

	return
}

// Address returns the address of a label, from Lookup.
func (st *SymbolTable) Address(name string) (addr uint32, ok bool) {
	sym, ok := st.Lookup(name)
	addr = sym.Address
	return
}

// Entry returns the address of the program entry label, searching the
// globals and then the first source unit.
func (st *SymbolTable) Entry() (addr uint32, ok bool) {
	name := st.EntryLabel
	if name == "" {
		name = DEFAULT_ENTRY_LABEL
	}

	sym, ok := st.global[name]
	if !ok && len(st.units) > 0 {
		sym, ok = st.local[st.units[0]][name]
	}

	addr = sym.Address
	return
}

// Freeze prevents further definitions.
func (st *SymbolTable) Freeze() {
	st.frozen = true
}

// Frozen returns true if the table is frozen.
func (st *SymbolTable) Frozen() bool {
	return st.frozen
}

// Symbols returns every symbol, sorted by address and then by name.
func (st *SymbolTable) Symbols() (syms []Symbol) {
	for _, sym := range st.global {
		syms = append(syms, sym)
	}
	for _, unit := range st.units {
		for _, sym := range st.local[unit] {
			syms = append(syms, sym)
		}
	}

	slices.SortFunc(syms, func(a, b Symbol) int {
		return cmp.Or(cmp.Compare(a.Address, b.Address), cmp.Compare(a.Name, b.Name), cmp.Compare(a.File, b.File))
	})

	return
}
