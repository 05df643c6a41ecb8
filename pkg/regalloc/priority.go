package regalloc

import (
	"sort"

	"github.com/raymyers/ralph-mips/pkg/mips"
)

// RefCount returns the number of instructions that name r.
func RefCount(r mips.Reg, code []mips.Instr) int {
	n := 0
	for _, in := range code {
		if in.References(r) {
			n++
		}
	}
	return n
}

// Rank orders registers for first-fit assignment: most referenced first,
// ties broken by name so the result is deterministic.
func Rank(regs []mips.Reg, code []mips.Instr) []mips.Reg {
	counts := make(map[mips.Reg]int, len(regs))
	for _, r := range regs {
		counts[r] = RefCount(r, code)
	}

	out := append([]mips.Reg(nil), regs...)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := counts[out[i]], counts[out[j]]
		if ci != cj {
			return ci > cj
		}
		return out[i] < out[j]
	})
	return out
}
