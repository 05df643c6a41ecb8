package regalloc

import (
	"github.com/raymyers/ralph-mips/pkg/liveness"
	"github.com/raymyers/ralph-mips/pkg/mips"
)

// InterferenceGraph represents the register interference graph.
// Two registers interfere if their live ranges share a program point.
type InterferenceGraph struct {
	// Nodes are virtual registers
	Nodes liveness.RegSet
	// Edges maps each register to its interfering neighbors
	Edges map[mips.Reg]liveness.RegSet
}

// NewInterferenceGraph creates an empty interference graph
func NewInterferenceGraph() *InterferenceGraph {
	return &InterferenceGraph{
		Nodes: liveness.NewRegSet(),
		Edges: make(map[mips.Reg]liveness.RegSet),
	}
}

// AddNode adds a register to the graph
func (g *InterferenceGraph) AddNode(r mips.Reg) {
	g.Nodes.Add(r)
	if g.Edges[r] == nil {
		g.Edges[r] = liveness.NewRegSet()
	}
}

// AddEdge adds an interference edge between two registers
func (g *InterferenceGraph) AddEdge(r1, r2 mips.Reg) {
	if r1 == r2 {
		return // No self-edges
	}
	g.AddNode(r1)
	g.AddNode(r2)
	g.Edges[r1].Add(r2)
	g.Edges[r2].Add(r1)
}

// HasEdge returns true if there is an interference edge
func (g *InterferenceGraph) HasEdge(r1, r2 mips.Reg) bool {
	if edges, ok := g.Edges[r1]; ok {
		return edges.Contains(r2)
	}
	return false
}

// Degree returns the number of neighbors for a register
func (g *InterferenceGraph) Degree(r mips.Reg) int {
	return len(g.Edges[r])
}

// Neighbors returns the interfering neighbors of a register
func (g *InterferenceGraph) Neighbors(r mips.Reg) liveness.RegSet {
	if edges, ok := g.Edges[r]; ok {
		return edges.Copy()
	}
	return liveness.NewRegSet()
}

// BuildInterference connects every pair of registers whose closed live
// intervals overlap. Registers with an empty range are nodes without
// edges.
func BuildInterference(ranges liveness.Ranges) *InterferenceGraph {
	g := NewInterferenceGraph()

	regs := make([]mips.Reg, 0, len(ranges))
	for r := range ranges {
		g.AddNode(r)
		regs = append(regs, r)
	}

	for i, r1 := range regs {
		for _, r2 := range regs[i+1:] {
			if ranges[r1].Overlaps(ranges[r2]) {
				g.AddEdge(r1, r2)
			}
		}
	}

	return g
}
