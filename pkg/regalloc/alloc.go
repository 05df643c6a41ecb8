// Package regalloc maps virtual registers to machine registers or stack
// homes, one allocation unit (a block or a whole function) at a time.
package regalloc

import (
	"fmt"
	"strings"

	"tlog.app/go/errors"

	"github.com/raymyers/ralph-mips/pkg/cfg"
	"github.com/raymyers/ralph-mips/pkg/liveness"
	"github.com/raymyers/ralph-mips/pkg/mips"
)

// Strategy selects how registers are assigned.
type Strategy string

const (
	// Naive spills every virtual register.
	Naive Strategy = "naive"
	// Local runs ranked first-fit assignment per basic block.
	Local Strategy = "local"
	// Greedy is another name for Local.
	Greedy Strategy = "greedy"
	// Global runs ranked first-fit assignment over function-wide ranges.
	Global Strategy = "global"
)

// Strategies lists the accepted strategy names.
var Strategies = []Strategy{Naive, Local, Greedy, Global}

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	for _, st := range Strategies {
		if string(st) == strings.ToLower(s) {
			return st, nil
		}
	}
	return "", errors.New("unknown allocator %q", s)
}

// PerBlock reports whether the strategy allocates each block separately.
func (s Strategy) PerBlock() bool {
	return s != Global
}

// Pool is the set of machine registers available to the allocator.
type Pool struct {
	Regs    []mips.Reg // allocatable, in preference order
	Scratch []mips.Reg // reserved for shuttling spilled values
}

// DefaultPool is $t0-$t6 with $t7-$t9 as scratch, plus $s0-$s7 when saved
// registers are enabled.
func DefaultPool(useSaved bool) Pool {
	p := Pool{
		Regs:    append([]mips.Reg(nil), mips.Temporaries[:7]...),
		Scratch: append([]mips.Reg(nil), mips.Temporaries[7:]...),
	}
	if useSaved {
		p.Regs = append(p.Regs, mips.SavedRegs...)
	}
	return p
}

// AllocationError reports an allocation that cannot be realised.
type AllocationError struct {
	Func   string
	Block  int // leader of the failing unit, -1 for function units
	Reason string
}

func (e *AllocationError) Error() string {
	if e.Block >= 0 {
		return fmt.Sprintf("allocate %v block %d: %s", e.Func, e.Block, e.Reason)
	}
	return fmt.Sprintf("allocate %v: %s", e.Func, e.Reason)
}

// Allocator assigns locations with a fixed strategy and register pool.
type Allocator struct {
	Strategy Strategy
	Pool     Pool
}

// NewAllocator creates an allocator
func NewAllocator(s Strategy, pool Pool) *Allocator {
	return &Allocator{Strategy: s, Pool: pool}
}

// Result is the allocation of one function.
type Result struct {
	Func     string
	Strategy Strategy
	Graph    *cfg.Graph
	Info     *liveness.Info
	Pinned   RegMap
	Units    []*Unit // one per block in leader order, or a single function unit
}

// UnitFor returns the unit covering the block at leader.
func (r *Result) UnitFor(leader int) *Unit {
	if !r.Strategy.PerBlock() {
		return r.Units[0]
	}
	for _, u := range r.Units {
		if u.Block != nil && u.Block.Leader == leader {
			return u
		}
	}
	return nil
}

// MapFor returns the register map in effect in the block at leader.
func (r *Result) MapFor(leader int) RegMap {
	if u := r.UnitFor(leader); u != nil {
		return u.Map
	}
	return nil
}

// SpillCount returns the number of spilled registers summed over units.
func (r *Result) SpillCount() int {
	n := 0
	for _, u := range r.Units {
		n += len(u.Map.Spilled())
	}
	return n
}

// Allocate builds and assigns every allocation unit of f. g must be the
// control-flow graph of f.Body.
func (a *Allocator) Allocate(f *mips.Function, g *cfg.Graph) (*Result, error) {
	info := liveness.Analyze(g, liveness.Virtual)
	res := &Result{
		Func:     f.Name,
		Strategy: a.Strategy,
		Graph:    g,
		Info:     info,
		Pinned:   PinArgs(f.Args, ClobberedArgRegs(f.Body)),
	}
	var regs []mips.Reg
	if a.Strategy != Naive {
		regs = available(a.Pool.Regs, f)
	}

	if !a.Strategy.PerBlock() {
		u := NewUnit(nil)
		u.Ranges = liveness.FunctionRanges(g, info, liveness.Virtual)
		if err := run(u, g.Code(), regs, res.Pinned); err != nil {
			return nil, &AllocationError{Func: f.Name, Block: -1, Reason: err.Error()}
		}
		res.Units = []*Unit{u}
		return res, nil
	}

	for _, b := range g.Blocks {
		u := NewUnit(b)
		u.ExitLive = info.LiveOut[b.Leader].Intersect(liveness.Defined(b, liveness.Virtual))
		u.EntryLive = liveness.UpwardExposed(b, liveness.Virtual)
		u.Ranges = liveness.BlockRanges(b, u.ExitLive, liveness.Virtual)
		if err := run(u, b.Instrs, regs, res.Pinned); err != nil {
			return nil, &AllocationError{Func: f.Name, Block: b.Leader, Reason: err.Error()}
		}
		res.Units = append(res.Units, u)
	}

	return res, nil
}

// available drops the pool registers that f's body names explicitly.
func available(pool []mips.Reg, f *mips.Function) []mips.Reg {
	named := make(map[mips.Reg]bool)
	for _, in := range f.Body {
		for _, r := range in.Regs {
			if r.IsPhysical() {
				named[r] = true
			}
		}
	}
	out := make([]mips.Reg, 0, len(pool))
	for _, r := range pool {
		if !named[r] {
			out = append(out, r)
		}
	}
	return out
}

func run(u *Unit, code []mips.Instr, regs []mips.Reg, pinned RegMap) error {
	if err := u.Rank(code); err != nil {
		return err
	}
	if err := u.BuildGraph(); err != nil {
		return err
	}
	if err := u.Assign(regs, pinned); err != nil {
		return err
	}
	return u.Verify()
}

// String renders every unit's ranges and map for the --dregalloc dump.
func (r *Result) String() string {
	var b []byte
	b = fmt.Appendf(b, "func %s (%s)\n", r.Func, r.Strategy)
	for _, u := range r.Units {
		if u.Block != nil {
			b = fmt.Appendf(b, "block %d\n", u.Block.Leader)
		} else {
			b = fmt.Appendf(b, "function\n")
		}
		for _, reg := range u.Order {
			b = fmt.Appendf(b, "  %-8s %-10v %-8v deg %d", reg, u.Ranges[reg], u.Map[reg], u.Graph.Degree(reg))
			if n := u.Graph.Neighbors(reg); len(n) > 0 {
				b = fmt.Appendf(b, " %v", n.Slice())
			}
			b = append(b, '\n')
		}
	}
	return string(b)
}
