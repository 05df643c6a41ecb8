// Package liveness computes which registers are live across the blocks of
// a control-flow graph and turns that into live ranges over program points.
package liveness

import (
	"github.com/raymyers/ralph-mips/pkg/cfg"
	"github.com/raymyers/ralph-mips/pkg/mips"
)

// Filter selects the registers liveness tracks.
type Filter func(mips.Reg) bool

// Virtual tracks virtual registers only.
func Virtual(r mips.Reg) bool { return r.IsVirtual() }

// Info holds per-block liveness, keyed by block leader.
type Info struct {
	LiveIn  map[int]RegSet
	LiveOut map[int]RegSet
}

// DefUse returns the tracked registers an instruction defines and uses.
func DefUse(in mips.Instr, filter Filter) (def, use RegSet) {
	def, use = NewRegSet(), NewRegSet()
	for _, r := range in.Defs() {
		if filter(r) {
			def.Add(r)
		}
	}
	for _, r := range in.Uses() {
		if filter(r) {
			use.Add(r)
		}
	}
	return def, use
}

// Defined returns the tracked registers a block writes.
func Defined(b *cfg.Block, filter Filter) RegSet {
	s := NewRegSet()
	for _, in := range b.Instrs {
		for _, r := range in.Defs() {
			if filter(r) {
				s.Add(r)
			}
		}
	}
	return s
}

// blockDefUse summarises a block: upward-exposed uses and all defs.
func blockDefUse(b *cfg.Block, filter Filter) (def, use RegSet) {
	def, use = NewRegSet(), NewRegSet()
	for _, in := range b.Instrs {
		d, u := DefUse(in, filter)
		for r := range u {
			if !def.Contains(r) {
				use.Add(r)
			}
		}
		for r := range d {
			def.Add(r)
		}
	}
	return def, use
}

// Analyze runs backward dataflow to a fixpoint:
//
//	LiveOut(b) = union of LiveIn(s) for successors s
//	LiveIn(b)  = Use(b) ∪ (LiveOut(b) − Def(b))
func Analyze(g *cfg.Graph, filter Filter) *Info {
	info := &Info{
		LiveIn:  make(map[int]RegSet, len(g.Blocks)),
		LiveOut: make(map[int]RegSet, len(g.Blocks)),
	}
	defs := make(map[int]RegSet, len(g.Blocks))
	uses := make(map[int]RegSet, len(g.Blocks))
	for _, b := range g.Blocks {
		defs[b.Leader], uses[b.Leader] = blockDefUse(b, filter)
		info.LiveIn[b.Leader] = NewRegSet()
		info.LiveOut[b.Leader] = NewRegSet()
	}

	for changed := true; changed; {
		changed = false
		// Reverse order converges faster for backward problems
		for i := len(g.Blocks) - 1; i >= 0; i-- {
			b := g.Blocks[i]
			out := NewRegSet()
			for _, s := range g.Succs[b.Leader] {
				for r := range info.LiveIn[s] {
					out.Add(r)
				}
			}
			in := uses[b.Leader].Union(out.Minus(defs[b.Leader]))

			if !in.Equal(info.LiveIn[b.Leader]) || !out.Equal(info.LiveOut[b.Leader]) {
				changed = true
				info.LiveIn[b.Leader] = in
				info.LiveOut[b.Leader] = out
			}
		}
	}

	return info
}

// UpwardExposed returns the tracked registers a block reads before writing
// them. These are the values a block expects to find on entry.
func UpwardExposed(b *cfg.Block, filter Filter) RegSet {
	_, use := blockDefUse(b, filter)
	return use
}
