package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-mips/pkg/mips"
)

func leaders(g *Graph) []int {
	var out []int
	for _, b := range g.Blocks {
		out = append(out, b.Leader)
	}
	return out
}

func TestBuildStraightLine(t *testing.T) {
	code := []mips.Instr{
		mips.Li("a", 1),
		mips.Li("b", 2),
		mips.New(mips.OpAdd, "c", "a", "b"),
	}
	g, err := Build(code)
	require.NoError(t, err)

	assert.Equal(t, []int{0}, leaders(g))
	assert.Equal(t, 2, g.Blocks[0].End())
	assert.Empty(t, g.Succs[0])
	assert.Equal(t, 3, g.Len())
}

func TestBuildLoop(t *testing.T) {
	code := []mips.Instr{
		mips.Li("i", 0),                              // 0
		mips.Label("loop"),                           // 1
		mips.NewBranch(mips.OpBge, "done", "i", "n"), // 2
		mips.Addiu("i", "i", 1),                      // 3
		mips.J("loop"),                               // 4
		mips.Label("done"),                           // 5
		mips.Return("i"),                             // 6
	}
	g, err := Build(code)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 3, 5}, leaders(g))
	assert.Equal(t, []int{1}, g.Succs[0])
	assert.Equal(t, []int{5, 3}, g.Succs[1])
	assert.Equal(t, []int{1}, g.Succs[3])
	assert.Empty(t, g.Succs[5])
	assert.ElementsMatch(t, []int{0, 3}, g.Preds[1])
	assert.Equal(t, []int{1}, g.Preds[5])

	p, ok := g.Label("done")
	assert.True(t, ok)
	assert.Equal(t, 5, p)
	assert.Equal(t, code, g.Code())
}

func TestCallsEndBlocks(t *testing.T) {
	code := []mips.Instr{
		mips.Li("x", 1),
		mips.CallR("y", "f", "x"),
		mips.Jal("g"),
		mips.NewBranch(mips.OpBgezal, "h", "y"),
		mips.Return("y"),
	}
	g, err := Build(code)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 3, 4}, leaders(g))
	assert.Equal(t, []int{2}, g.Succs[0])
	assert.Equal(t, []int{3}, g.Succs[2])
	assert.Equal(t, []int{4}, g.Succs[3])
	assert.Empty(t, g.Succs[4])
}

func TestJrHasNoSuccessors(t *testing.T) {
	code := []mips.Instr{
		mips.Jr(mips.RA),
		mips.Li("dead", 0),
	}
	g, err := Build(code)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, leaders(g))
	assert.Empty(t, g.Succs[0])
	assert.Empty(t, g.Preds[1])
}

func TestBranchToNextDeduplicated(t *testing.T) {
	code := []mips.Instr{
		mips.NewBranch(mips.OpBeqz, "next", "x"),
		mips.Label("next"),
		mips.Return(),
	}
	g, err := Build(code)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, g.Succs[0])
	assert.Equal(t, []int{0}, g.Preds[1])
}

func TestUnresolvedLabel(t *testing.T) {
	code := []mips.Instr{
		mips.NewBranch(mips.OpBeq, "nowhere", mips.T0, mips.T1),
	}
	_, err := Build(code)
	require.Error(t, err)

	var ul *UnresolvedLabelError
	require.ErrorAs(t, err, &ul)
	assert.Equal(t, "nowhere", ul.Label)
	assert.Equal(t, 0, ul.Point)
}

func TestCalleeIsNotResolved(t *testing.T) {
	_, err := Build([]mips.Instr{mips.Jal("printf"), mips.Call("external")})
	assert.NoError(t, err)
}

func TestDuplicateLabel(t *testing.T) {
	_, err := Build([]mips.Instr{mips.Label("a"), mips.Label("a")})
	assert.Error(t, err)
}

func TestMalformedInstruction(t *testing.T) {
	_, err := Build([]mips.Instr{mips.New(mips.OpAdd, "a")})
	var se *mips.StructuralError
	assert.ErrorAs(t, err, &se)
}

func TestEmptyBody(t *testing.T) {
	g, err := Build(nil)
	require.NoError(t, err)
	assert.Empty(t, g.Blocks)
	assert.Equal(t, 0, g.Len())
}

func TestPartitionProperty(t *testing.T) {
	code := []mips.Instr{
		mips.Label("top"),
		mips.NewBranch(mips.OpBnez, "mid", "a"),
		mips.Li("a", 1),
		mips.Label("mid"),
		mips.Call("f", "a"),
		mips.NewBranch(mips.OpBltz, "top", "a"),
		mips.J("end"),
		mips.Nop(),
		mips.Label("end"),
		mips.Return(),
	}
	g, err := Build(code)
	require.NoError(t, err)

	next := 0
	for _, b := range g.Blocks {
		require.NotEmpty(t, b.Instrs)
		assert.Equal(t, next, b.Leader)
		next = b.End() + 1
		for i, in := range b.Instrs[:len(b.Instrs)-1] {
			assert.False(t, in.Op.IsTerminator(), "terminator inside block %d at %d", b.Leader, i)
		}
		for _, in := range b.Instrs[1:] {
			assert.NotEqual(t, mips.OpLabel, in.Op)
		}
	}
	assert.Equal(t, len(code), next)
	assert.NotNil(t, g.Block(7))
	assert.Empty(t, g.Preds[7])
}
