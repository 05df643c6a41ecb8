package mips

import (
	"regexp"
	"strconv"
)

// Reg is a register name. Physical registers use the architecture's
// reserved "$" namespace; every other name is a virtual register produced
// by instruction selection.
type Reg string

// MIPS physical registers
const (
	Zero Reg = "$zero"
	AT   Reg = "$at"
	V0   Reg = "$v0"
	V1   Reg = "$v1"
	A0   Reg = "$a0"
	A1   Reg = "$a1"
	A2   Reg = "$a2"
	A3   Reg = "$a3"
	T0   Reg = "$t0"
	T1   Reg = "$t1"
	T2   Reg = "$t2"
	T3   Reg = "$t3"
	T4   Reg = "$t4"
	T5   Reg = "$t5"
	T6   Reg = "$t6"
	T7   Reg = "$t7"
	T8   Reg = "$t8"
	T9   Reg = "$t9"
	S0   Reg = "$s0"
	S1   Reg = "$s1"
	S2   Reg = "$s2"
	S3   Reg = "$s3"
	S4   Reg = "$s4"
	S5   Reg = "$s5"
	S6   Reg = "$s6"
	S7   Reg = "$s7"
	GP   Reg = "$gp"
	SP   Reg = "$sp"
	FP   Reg = "$fp"
	RA   Reg = "$ra"
)

// WordSize is the size in bytes of a register and of a stack slot.
const WordSize = 4

// NumArgRegs is the number of arguments passed in registers.
const NumArgRegs = 4

var (
	// ArgRegs carry the first NumArgRegs call arguments.
	ArgRegs = []Reg{A0, A1, A2, A3}
	// Temporaries are caller-visible working registers.
	Temporaries = []Reg{T0, T1, T2, T3, T4, T5, T6, T7, T8, T9}
	// SavedRegs must be preserved by a callee that writes them.
	SavedRegs = []Reg{S0, S1, S2, S3, S4, S5, S6, S7}
)

var physicalRE = regexp.MustCompile(`^\$(zero|at|v[01]|a[0-3]|t[0-9]|s[0-7]|k[01]|gp|sp|fp|ra|[0-9]|[12][0-9]|3[01])$`)

// IsPhysical reports whether r names a hardware register.
func (r Reg) IsPhysical() bool {
	return physicalRE.MatchString(string(r))
}

// IsVirtual reports whether r is a virtual register. The empty name is
// neither virtual nor physical.
func (r Reg) IsVirtual() bool {
	return r != "" && !r.IsPhysical()
}

// IsTemporary reports whether r is one of $t0-$t9.
func (r Reg) IsTemporary() bool {
	return indexOf(Temporaries, r) >= 0
}

// IsSaved reports whether r is one of the callee-saved $s0-$s7.
func (r Reg) IsSaved() bool {
	return indexOf(SavedRegs, r) >= 0
}

// ArgReg returns the register carrying argument i, or false when the
// argument is passed on the stack.
func ArgReg(i int) (Reg, bool) {
	if i < 0 || i >= NumArgRegs {
		return "", false
	}
	return ArgRegs[i], true
}

// TempReg returns $t<i>.
func TempReg(i int) Reg {
	return Reg("$t" + strconv.Itoa(i))
}

func indexOf(regs []Reg, r Reg) int {
	for i, x := range regs {
		if x == r {
			return i
		}
	}
	return -1
}
