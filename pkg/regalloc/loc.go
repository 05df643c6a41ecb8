package regalloc

import (
	"fmt"
	"sort"

	"github.com/raymyers/ralph-mips/pkg/liveness"
	"github.com/raymyers/ralph-mips/pkg/mips"
)

// Loc is where a virtual register lives: a machine register or its stack
// home.
type Loc interface {
	implLoc()
	String() string
}

// R is a machine register location
type R struct {
	Reg mips.Reg
}

// Spill means the register lives in its frame slot and is shuttled
// through scratch registers around each use and def.
type Spill struct{}

func (R) implLoc()     {}
func (Spill) implLoc() {}

func (r R) String() string   { return string(r.Reg) }
func (Spill) String() string { return "spill" }

// RegMap assigns a location to every virtual register of an allocation
// unit.
type RegMap map[mips.Reg]Loc

// Phys returns the machine register r is mapped to.
func (m RegMap) Phys(r mips.Reg) (mips.Reg, bool) {
	if loc, ok := m[r].(R); ok {
		return loc.Reg, true
	}
	return "", false
}

// IsSpilled reports whether r lives in its frame slot.
func (m RegMap) IsSpilled(r mips.Reg) bool {
	_, ok := m[r].(Spill)
	return ok
}

// Spilled returns the spilled registers sorted by name.
func (m RegMap) Spilled() []mips.Reg {
	var out []mips.Reg
	for r, loc := range m {
		if _, ok := loc.(Spill); ok {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UsedRegs returns the machine registers the map assigns, sorted.
func (m RegMap) UsedRegs() []mips.Reg {
	seen := make(map[mips.Reg]bool)
	var out []mips.Reg
	for _, loc := range m {
		if r, ok := loc.(R); ok && !seen[r.Reg] {
			seen[r.Reg] = true
			out = append(out, r.Reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m RegMap) String() string {
	regs := make([]mips.Reg, 0, len(m))
	for r := range m {
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i] < regs[j] })
	var b []byte
	for _, r := range regs {
		b = fmt.Appendf(b, "%s -> %s\n", r, m[r])
	}
	return string(b)
}

// PinArgs pre-colors function arguments: argument i < 4 lives in $a<i>,
// later arguments live in their incoming stack slots. An argument whose
// register is in clobbered lives in its slot instead.
func PinArgs(args []mips.Reg, clobbered liveness.RegSet) RegMap {
	m := make(RegMap, len(args))
	for i, a := range args {
		if r, ok := mips.ArgReg(i); ok && !clobbered.Contains(r) {
			m[a] = R{Reg: r}
		} else {
			m[a] = Spill{}
		}
	}
	return m
}

// ClobberedArgRegs returns the argument registers body writes by name.
// A link instruction other than a call pseudo instruction clobbers all
// of them.
func ClobberedArgRegs(body []mips.Instr) liveness.RegSet {
	set := liveness.NewRegSet()
	for _, in := range body {
		if in.Op.IsLink() && !in.Op.IsPseudo() {
			return liveness.NewRegSet(mips.ArgRegs...)
		}
		for _, d := range in.Defs() {
			if argIndex(d) >= 0 {
				set.Add(d)
			}
		}
	}
	return set
}

func argIndex(r mips.Reg) int {
	for i, a := range mips.ArgRegs {
		if a == r {
			return i
		}
	}
	return -1
}
