package stacking

import (
	"sort"
	"strconv"

	"github.com/raymyers/ralph-mips/pkg/mips"
)

// A function saves every temporary its rewritten code writes, so values a
// caller keeps in $t registers survive the call, and every $s register it
// writes, as the calling convention requires.

// WrittenRegs returns the $t and $s registers defined anywhere in code or
// listed in extra, each sorted by register number.
func WrittenRegs(code []mips.Instr, extra ...mips.Reg) (working, saved []mips.Reg) {
	seen := make(map[mips.Reg]bool)
	add := func(r mips.Reg) {
		if seen[r] {
			return
		}
		seen[r] = true
		switch {
		case r.IsTemporary():
			working = append(working, r)
		case r.IsSaved():
			saved = append(saved, r)
		}
	}
	for _, in := range code {
		for _, r := range in.Defs() {
			add(r)
		}
	}
	for _, r := range extra {
		add(r)
	}
	sortRegs(working)
	sortRegs(saved)
	return working, saved
}

// sortRegs sorts $tN or $sN registers by N
func sortRegs(regs []mips.Reg) {
	sort.Slice(regs, func(i, j int) bool {
		return regNum(regs[i]) < regNum(regs[j])
	})
}

func regNum(r mips.Reg) int {
	n, err := strconv.Atoi(string(r[2:]))
	if err != nil {
		return -1
	}
	return n
}
