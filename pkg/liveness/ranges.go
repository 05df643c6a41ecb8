package liveness

import (
	"fmt"

	"github.com/raymyers/ralph-mips/pkg/cfg"
	"github.com/raymyers/ralph-mips/pkg/mips"
)

// Range is a closed interval of program points. Start > End means empty.
type Range struct {
	Start, End int
}

// EmptyRange contains no program point.
var EmptyRange = Range{Start: 0, End: -1}

// Point returns the range [p, p].
func Point(p int) Range { return Range{Start: p, End: p} }

func (r Range) Empty() bool { return r.Start > r.End }

// Contains reports whether p lies in the interval.
func (r Range) Contains(p int) bool {
	return !r.Empty() && r.Start <= p && p <= r.End
}

// Overlaps reports whether two closed intervals share a point. Empty
// ranges overlap nothing.
func (r Range) Overlaps(o Range) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.Start <= o.End && o.Start <= r.End
}

// Extend returns the hull of r and the point p.
func (r Range) Extend(p int) Range {
	if r.Empty() {
		return Point(p)
	}
	return Range{Start: min(r.Start, p), End: max(r.End, p)}
}

func (r Range) String() string {
	if r.Empty() {
		return "[]"
	}
	return fmt.Sprintf("[%d, %d]", r.Start, r.End)
}

// Ranges maps every register referenced by a unit to its live range.
type Ranges map[mips.Reg]Range

// collector gathers live points and def points for one allocation unit.
type collector struct {
	filter Filter
	ranges Ranges
	defs   map[mips.Reg][]int
}

func newCollector(filter Filter) *collector {
	return &collector{
		filter: filter,
		ranges: make(Ranges),
		defs:   make(map[mips.Reg][]int),
	}
}

// scan walks a block backward starting from the registers live at its
// exit. A register is live at point p when it is live into p, or when p
// defines it and it is live out of p.
func (c *collector) scan(b *cfg.Block, exitLive RegSet) {
	live := exitLive.Copy()
	for i := len(b.Instrs) - 1; i >= 0; i-- {
		p := b.Leader + i
		in := b.Instrs[i]
		for _, r := range in.Regs {
			if c.filter(r) {
				if _, ok := c.ranges[r]; !ok {
					c.ranges[r] = EmptyRange
				}
			}
		}

		def, use := DefUse(in, c.filter)
		for r := range def {
			c.defs[r] = append(c.defs[r], p)
			if live.Contains(r) {
				c.live(r, p)
			}
			live.Remove(r)
		}
		for r := range use {
			live.Add(r)
		}
		for r := range live {
			c.live(r, p)
		}
	}
}

func (c *collector) live(r mips.Reg, p int) {
	rg, ok := c.ranges[r]
	if !ok {
		rg = EmptyRange
	}
	c.ranges[r] = rg.Extend(p)
}

// finish folds def points into every non-empty range so a dead write can
// never land in a register another value is using.
func (c *collector) finish() Ranges {
	for r, points := range c.defs {
		rg := c.ranges[r]
		if rg.Empty() {
			continue
		}
		for _, p := range points {
			rg = rg.Extend(p)
		}
		c.ranges[r] = rg
	}
	return c.ranges
}

// BlockRanges computes ranges for a single block. exitLive holds the
// registers that must still be in place at the block's last point; a
// register used before any def is live from the block entry.
func BlockRanges(b *cfg.Block, exitLive RegSet, filter Filter) Ranges {
	c := newCollector(filter)
	c.scan(b, exitLive)
	return c.finish()
}

// FunctionRanges computes function-wide ranges: every block is scanned
// with its full live-out set and each register's live points are hulled
// over the whole function.
func FunctionRanges(g *cfg.Graph, info *Info, filter Filter) Ranges {
	c := newCollector(filter)
	for _, b := range g.Blocks {
		c.scan(b, info.LiveOut[b.Leader])
	}
	return c.finish()
}
