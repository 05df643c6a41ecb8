package liveness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-mips/pkg/cfg"
	"github.com/raymyers/ralph-mips/pkg/mips"
)

func TestRegSetOperations(t *testing.T) {
	s1 := NewRegSet("a", "b")
	s2 := NewRegSet("b", "c")

	assert.True(t, s1.Contains("a"))
	assert.False(t, s1.Contains("c"))
	assert.Equal(t, []mips.Reg{"a", "b", "c"}, s1.Union(s2).Slice())
	assert.Equal(t, []mips.Reg{"a"}, s1.Minus(s2).Slice())
	assert.Equal(t, []mips.Reg{"b"}, s1.Intersect(s2).Slice())
	assert.True(t, s1.Equal(NewRegSet("b", "a")))
	assert.False(t, s1.Equal(s2))

	c := s1.Copy()
	c.Add("z")
	assert.False(t, s1.Contains("z"))
}

func TestRange(t *testing.T) {
	assert.True(t, EmptyRange.Empty())
	assert.False(t, EmptyRange.Overlaps(Range{0, 100}))
	assert.True(t, Range{1, 3}.Overlaps(Range{3, 5}))
	assert.False(t, Range{1, 2}.Overlaps(Range{3, 5}))
	assert.True(t, Range{2, 2}.Contains(2))
	assert.Equal(t, Range{1, 7}, Range{3, 4}.Extend(7).Extend(1))
	assert.Equal(t, Point(4), EmptyRange.Extend(4))
	assert.Equal(t, "[1, 3]", Range{1, 3}.String())
	assert.Equal(t, "[]", EmptyRange.String())
}

func TestDefUseFiltersPhysical(t *testing.T) {
	def, use := DefUse(mips.New(mips.OpAdd, "x", mips.T0, "y"), Virtual)
	assert.Equal(t, []mips.Reg{"x"}, def.Slice())
	assert.Equal(t, []mips.Reg{"y"}, use.Slice())

	def, use = DefUse(mips.CallR("d", "f", "a", "b"), Virtual)
	assert.Equal(t, []mips.Reg{"d"}, def.Slice())
	assert.Equal(t, []mips.Reg{"a", "b"}, use.Slice())
}

func build(t *testing.T, code []mips.Instr) *cfg.Graph {
	t.Helper()
	g, err := cfg.Build(code)
	require.NoError(t, err)
	return g
}

// loop computes s = sum(0..n-1) and returns s.
var loop = []mips.Instr{
	mips.Li("s", 0),                             // 0
	mips.Li("i", 0),                             // 1
	mips.Label("top"),                           // 2
	mips.NewBranch(mips.OpBge, "out", "i", "n"), // 3
	mips.New(mips.OpAdd, "s", "s", "i"),         // 4
	mips.Addiu("i", "i", 1),                     // 5
	mips.J("top"),                               // 6
	mips.Label("out"),                           // 7
	mips.Return("s"),                            // 8
}

func TestAnalyzeLoop(t *testing.T) {
	g := build(t, loop)
	info := Analyze(g, Virtual)

	assert.Equal(t, []mips.Reg{"n"}, info.LiveIn[0].Slice())
	assert.Equal(t, []mips.Reg{"i", "n", "s"}, info.LiveOut[0].Slice())
	assert.Equal(t, []mips.Reg{"i", "n", "s"}, info.LiveIn[2].Slice())
	assert.Equal(t, []mips.Reg{"i", "n", "s"}, info.LiveOut[2].Slice())
	assert.Equal(t, []mips.Reg{"i", "n", "s"}, info.LiveOut[4].Slice())
	assert.Equal(t, []mips.Reg{"s"}, info.LiveIn[7].Slice())
	assert.Empty(t, info.LiveOut[7])
}

func TestFunctionRangesLoop(t *testing.T) {
	g := build(t, loop)
	rs := FunctionRanges(g, Analyze(g, Virtual), Virtual)

	assert.Equal(t, Range{0, 8}, rs["s"])
	assert.Equal(t, Range{1, 6}, rs["i"])
	assert.Equal(t, Range{0, 6}, rs["n"])
}

func TestBlockRangesLiveInAndOut(t *testing.T) {
	g := build(t, loop)
	info := Analyze(g, Virtual)

	// block 4 updates s and i; both are live out and defined here
	b := g.Block(4)
	exit := info.LiveOut[4].Intersect(Defined(b, Virtual))
	rs := BlockRanges(b, exit, Virtual)

	assert.Equal(t, Range{4, 6}, rs["s"])
	assert.Equal(t, Range{4, 6}, rs["i"])
	_, hasN := rs["n"]
	assert.False(t, hasN)
}

func TestBlockRangesDisjoint(t *testing.T) {
	code := []mips.Instr{
		mips.Li("a", 1),                     // 0
		mips.New(mips.OpAdd, "b", "a", "a"), // 1
		mips.New(mips.OpAdd, "c", "b", "b"), // 2
		mips.Move(mips.V0, "c"),             // 3
	}
	g := build(t, code)
	rs := BlockRanges(g.Blocks[0], NewRegSet(), Virtual)

	assert.Equal(t, Range{0, 1}, rs["a"])
	assert.Equal(t, Range{1, 2}, rs["b"])
	assert.Equal(t, Range{2, 3}, rs["c"])
}

func TestDeadDefinition(t *testing.T) {
	code := []mips.Instr{
		mips.Li("dead", 7),
		mips.Li("x", 1),
		mips.Move(mips.V0, "x"),
	}
	g := build(t, code)
	rs := BlockRanges(g.Blocks[0], NewRegSet(), Virtual)

	assert.True(t, rs["dead"].Empty())
	assert.Equal(t, Range{1, 2}, rs["x"])
}

func TestDefPointsFolded(t *testing.T) {
	// x is written twice; the first write is dead but must stay inside
	// x's range so x's register is not shared with y at point 1.
	code := []mips.Instr{
		mips.Li("x", 1),                     // 0: dead
		mips.Li("y", 2),                     // 1
		mips.Li("x", 3),                     // 2
		mips.New(mips.OpAdd, "z", "x", "y"), // 3
	}
	g := build(t, code)
	rs := BlockRanges(g.Blocks[0], NewRegSet(), Virtual)

	assert.Equal(t, Range{0, 3}, rs["x"])
	assert.True(t, rs["x"].Overlaps(rs["y"]))
}

func TestRangeSoundness(t *testing.T) {
	g := build(t, loop)
	info := Analyze(g, Virtual)
	rs := FunctionRanges(g, info, Virtual)

	// every use and every def of a register lies in its range
	for p, in := range g.Code() {
		def, use := DefUse(in, Virtual)
		for r := range def.Union(use) {
			assert.True(t, rs[r].Contains(p), "%s at %d outside %v", r, p, rs[r])
		}
	}
}
