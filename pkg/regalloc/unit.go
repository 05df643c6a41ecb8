package regalloc

import (
	"tlog.app/go/errors"

	"github.com/raymyers/ralph-mips/pkg/cfg"
	"github.com/raymyers/ralph-mips/pkg/liveness"
	"github.com/raymyers/ralph-mips/pkg/mips"
)

// State is the lifecycle position of an allocation unit.
type State int

const (
	StateReset State = iota
	StateRanked
	StateGraphed
	StateAssigned
	StateMaterialized
)

var stateNames = [...]string{"reset", "ranked", "graphed", "assigned", "materialized"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Unit is one allocation unit: a basic block for per-block strategies or
// the whole function. A unit is used once; each step may only follow the
// previous one.
type Unit struct {
	Block *cfg.Block // nil for a function unit

	Ranges liveness.Ranges
	Order  []mips.Reg
	Graph  *InterferenceGraph
	Map    RegMap

	// Per-block units only: registers the block reads on entry and the
	// registers it writes that later blocks read.
	EntryLive liveness.RegSet
	ExitLive  liveness.RegSet

	state State
}

// NewUnit returns a fresh unit for block b, or a function unit when b is
// nil.
func NewUnit(b *cfg.Block) *Unit {
	return &Unit{
		Block:     b,
		EntryLive: liveness.NewRegSet(),
		ExitLive:  liveness.NewRegSet(),
	}
}

func (u *Unit) State() State { return u.state }

func (u *Unit) advance(from, to State) error {
	if u.state != from {
		return errors.New("unit is %v, want %v before %v", u.state, from, to)
	}
	u.state = to
	return nil
}

// Rank orders the unit's registers by reference count in code.
func (u *Unit) Rank(code []mips.Instr) error {
	if err := u.advance(StateReset, StateRanked); err != nil {
		return err
	}
	regs := make([]mips.Reg, 0, len(u.Ranges))
	for r := range u.Ranges {
		regs = append(regs, r)
	}
	u.Order = Rank(regs, code)
	return nil
}

// BuildGraph builds the interference graph from the unit's ranges.
func (u *Unit) BuildGraph() error {
	if err := u.advance(StateRanked, StateGraphed); err != nil {
		return err
	}
	u.Graph = BuildInterference(u.Ranges)
	return nil
}

// Assign runs first-fit over the ranked registers. Pinned registers keep
// their locations and constrain their neighbours. Registers with an empty
// range and registers no pool register fits are spilled.
func (u *Unit) Assign(pool []mips.Reg, pinned RegMap) error {
	if err := u.advance(StateGraphed, StateAssigned); err != nil {
		return err
	}
	u.Map = make(RegMap, len(u.Order)+len(pinned))
	for r, loc := range pinned {
		u.Map[r] = loc
	}

	for _, r := range u.Order {
		if _, ok := pinned[r]; ok {
			continue
		}
		if u.Ranges[r].Empty() {
			u.Map[r] = Spill{}
			continue
		}

		taken := make(map[mips.Reg]bool)
		for n := range u.Graph.Edges[r] {
			if phys, ok := u.Map.Phys(n); ok {
				taken[phys] = true
			}
		}

		u.Map[r] = Spill{}
		for _, phys := range pool {
			if !taken[phys] {
				u.Map[r] = R{Reg: phys}
				break
			}
		}
	}
	return nil
}

// Verify checks that the map covers every register of the unit and that
// no two interfering registers share a machine register.
func (u *Unit) Verify() error {
	if u.state < StateAssigned {
		return errors.New("unit is %v, not assigned", u.state)
	}
	for r := range u.Ranges {
		if _, ok := u.Map[r]; !ok {
			return errors.New("register %v has no location", r)
		}
	}
	for r, edges := range u.Graph.Edges {
		p1, ok := u.Map.Phys(r)
		if !ok {
			continue
		}
		for n := range edges {
			if p2, ok := u.Map.Phys(n); ok && p1 == p2 {
				return errors.New("%v and %v interfere but share %v", r, n, p1)
			}
		}
	}
	return nil
}

// Materialize records that the unit's code has been rewritten.
func (u *Unit) Materialize() error {
	return u.advance(StateAssigned, StateMaterialized)
}

// Leader returns the unit's block leader, or -1 for a function unit.
func (u *Unit) Leader() int {
	if u.Block == nil {
		return -1
	}
	return u.Block.Leader
}
