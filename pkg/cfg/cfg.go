// Package cfg partitions a function body into basic blocks and links them
// into a control-flow graph.
package cfg

import (
	"fmt"
	"sort"

	"tlog.app/go/errors"

	"github.com/raymyers/ralph-mips/pkg/mips"
)

// Block is a maximal run of instructions entered only at its first one.
type Block struct {
	Leader int // program point of the first instruction
	Instrs []mips.Instr
}

// End returns the program point of the block's last instruction.
func (b *Block) End() int {
	return b.Leader + len(b.Instrs) - 1
}

// Points returns the number of instructions in the block.
func (b *Block) Points() int {
	return len(b.Instrs)
}

// Terminator returns the last instruction when it transfers control.
func (b *Block) Terminator() (mips.Instr, bool) {
	last := b.Instrs[len(b.Instrs)-1]
	return last, last.Op.IsTerminator()
}

// Graph is the control-flow graph of one function body. Blocks are in
// leader order; adjacency is keyed by leader.
type Graph struct {
	Blocks []*Block
	Succs  map[int][]int
	Preds  map[int][]int

	byLeader map[int]*Block
	labels   map[string]int
}

// UnresolvedLabelError reports a branch or jump to a label that the
// function does not define.
type UnresolvedLabelError struct {
	Label string
	Point int
}

func (e *UnresolvedLabelError) Error() string {
	return fmt.Sprintf("unresolved label %q at point %d", e.Label, e.Point)
}

// Build constructs the graph for code.
func Build(code []mips.Instr) (*Graph, error) {
	labels := make(map[string]int)
	for i, in := range code {
		if err := in.Validate(); err != nil {
			return nil, errors.Wrap(err, "point %d", i)
		}
		if in.Op == mips.OpLabel {
			if prev, ok := labels[in.Target]; ok {
				return nil, errors.New("label %q defined at points %d and %d", in.Target, prev, i)
			}
			labels[in.Target] = i
		}
	}

	leaders := map[int]bool{}
	if len(code) > 0 {
		leaders[0] = true
	}
	for i, in := range code {
		switch {
		case in.Op == mips.OpLabel:
			leaders[i] = true
		case in.Op.ResolvesTarget():
			at, ok := labels[in.Target]
			if !ok {
				return nil, &UnresolvedLabelError{Label: in.Target, Point: i}
			}
			leaders[at] = true
		}
		if in.Op.IsTerminator() && i+1 < len(code) {
			leaders[i+1] = true
		}
	}

	starts := make([]int, 0, len(leaders))
	for p := range leaders {
		starts = append(starts, p)
	}
	sort.Ints(starts)

	g := &Graph{
		Succs:    make(map[int][]int, len(starts)),
		Preds:    make(map[int][]int, len(starts)),
		byLeader: make(map[int]*Block, len(starts)),
		labels:   labels,
	}
	for k, start := range starts {
		end := len(code)
		if k+1 < len(starts) {
			end = starts[k+1]
		}
		b := &Block{Leader: start, Instrs: code[start:end:end]}
		g.Blocks = append(g.Blocks, b)
		g.byLeader[start] = b
	}

	for k, b := range g.Blocks {
		next := -1
		if k+1 < len(g.Blocks) {
			next = g.Blocks[k+1].Leader
		}
		for _, s := range successors(b, next, labels) {
			g.addEdge(b.Leader, s)
		}
	}

	if err := g.checkPartition(len(code)); err != nil {
		return nil, err
	}

	return g, nil
}

func successors(b *Block, next int, labels map[string]int) []int {
	last, ok := b.Terminator()
	fall := func() []int {
		if next < 0 {
			return nil
		}
		return []int{next}
	}
	switch {
	case !ok:
		return fall()
	case last.Op.IsReturn():
		return nil
	case last.Op.IsJump():
		return []int{labels[last.Target]}
	case last.Op.IsBranch():
		return append([]int{labels[last.Target]}, fall()...)
	default:
		// calls return to the next instruction
		return fall()
	}
}

func (g *Graph) addEdge(from, to int) {
	for _, s := range g.Succs[from] {
		if s == to {
			return
		}
	}
	g.Succs[from] = append(g.Succs[from], to)
	g.Preds[to] = append(g.Preds[to], from)
}

// checkPartition verifies that the blocks cover every point exactly once.
func (g *Graph) checkPartition(n int) error {
	next := 0
	for _, b := range g.Blocks {
		if len(b.Instrs) == 0 {
			return errors.New("empty block at point %d", b.Leader)
		}
		if b.Leader != next {
			return errors.New("block at point %d does not follow point %d", b.Leader, next-1)
		}
		next = b.End() + 1
	}
	if next != n {
		return errors.New("blocks cover %d of %d points", next, n)
	}
	return nil
}

// Block returns the block whose leader is at point leader.
func (g *Graph) Block(leader int) *Block {
	return g.byLeader[leader]
}

// Label returns the program point of a label.
func (g *Graph) Label(name string) (int, bool) {
	p, ok := g.labels[name]
	return p, ok
}

// Len returns the number of program points in the function.
func (g *Graph) Len() int {
	if len(g.Blocks) == 0 {
		return 0
	}
	return g.Blocks[len(g.Blocks)-1].End() + 1
}

// Code returns the instructions of all blocks in order.
func (g *Graph) Code() []mips.Instr {
	code := make([]mips.Instr, 0, g.Len())
	for _, b := range g.Blocks {
		code = append(code, b.Instrs...)
	}
	return code
}

// String renders the graph for the --dcfg dump.
func (g *Graph) String() string {
	var s []byte
	for _, b := range g.Blocks {
		s = fmt.Appendf(s, "block %d [%d..%d] -> %v\n", b.Leader, b.Leader, b.End(), g.Succs[b.Leader])
		for i, in := range b.Instrs {
			s = fmt.Appendf(s, "  %3d: %s\n", b.Leader+i, in)
		}
	}
	return string(s)
}
