// Package cpu implements the processor and assembler for a 32-bit
// little-endian MIPS machine.
//
// The processor has 32 general-purpose registers, a program counter, the
// hi/lo multiply and divide accumulators, and the coprocessor 0 exception
// registers. It runs the integer MIPS32 instruction set, optionally with
// delayed branching, and can record every mutation to a backstep log so
// that execution can be rewound.
//
// The assembler is a two-pass macro assembler for the MIPS assembly
// language as accepted by MARS, with pseudo-instruction expansion, .eqv
// equates, and compile-time $(expr) evaluation.
package cpu
