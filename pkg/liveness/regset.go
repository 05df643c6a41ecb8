package liveness

import (
	"sort"

	"github.com/raymyers/ralph-mips/pkg/mips"
)

// RegSet represents a set of registers
type RegSet map[mips.Reg]struct{}

// NewRegSet creates a set holding regs
func NewRegSet(regs ...mips.Reg) RegSet {
	s := make(RegSet, len(regs))
	for _, r := range regs {
		s.Add(r)
	}
	return s
}

// Add adds a register to the set
func (s RegSet) Add(r mips.Reg) {
	s[r] = struct{}{}
}

// Remove removes a register from the set
func (s RegSet) Remove(r mips.Reg) {
	delete(s, r)
}

// Contains returns true if the register is in the set
func (s RegSet) Contains(r mips.Reg) bool {
	_, ok := s[r]
	return ok
}

// Copy creates a copy of the set
func (s RegSet) Copy() RegSet {
	c := make(RegSet, len(s))
	for r := range s {
		c[r] = struct{}{}
	}
	return c
}

// Union returns a new set with elements from both sets
func (s RegSet) Union(other RegSet) RegSet {
	result := s.Copy()
	for r := range other {
		result.Add(r)
	}
	return result
}

// Minus returns a new set with elements in s but not in other
func (s RegSet) Minus(other RegSet) RegSet {
	result := make(RegSet, len(s))
	for r := range s {
		if !other.Contains(r) {
			result.Add(r)
		}
	}
	return result
}

// Intersect returns a new set with elements in both sets
func (s RegSet) Intersect(other RegSet) RegSet {
	result := make(RegSet)
	for r := range s {
		if other.Contains(r) {
			result.Add(r)
		}
	}
	return result
}

// Equal returns true if both sets contain the same elements
func (s RegSet) Equal(other RegSet) bool {
	if len(s) != len(other) {
		return false
	}
	for r := range s {
		if !other.Contains(r) {
			return false
		}
	}
	return true
}

// Slice returns the members sorted by name
func (s RegSet) Slice() []mips.Reg {
	out := make([]mips.Reg, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
