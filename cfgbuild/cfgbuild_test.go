package cfgbuild_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvra/cast"
	"cvra/cfgbuild"
)

type fakeBlock struct {
	id       cast.BlockID
	stmts    []cast.Stmt
	termStmt cast.Stmt
	termKind cast.TerminatorKind
	preds    []*fakeBlock
	succs    []*fakeBlock
}

func (b *fakeBlock) ID() cast.BlockID                             { return b.id }
func (b *fakeBlock) Statements() []cast.Stmt                      { return b.stmts }
func (b *fakeBlock) Terminator() (cast.Stmt, cast.TerminatorKind) { return b.termStmt, b.termKind }

func (b *fakeBlock) Preds() []cast.Block {
	out := make([]cast.Block, len(b.preds))
	for i, p := range b.preds {
		out[i] = p
	}
	return out
}

func (b *fakeBlock) Succs() []cast.Block {
	out := make([]cast.Block, len(b.succs))
	for i, s := range b.succs {
		out[i] = s
	}
	return out
}

func link(src, dst *fakeBlock) {
	src.succs = append(src.succs, dst)
	dst.preds = append(dst.preds, src)
}

func blk(id int) *fakeBlock { return &fakeBlock{id: cast.BlockID(id)} }

func fn(entry *fakeBlock, all ...*fakeBlock) *cast.Func {
	blocks := make([]cast.Block, len(all))
	for i, b := range all {
		blocks[i] = b
	}
	return &cast.Func{Name: "f", Entry: entry, AllBlks: blocks}
}

func TestBuildLinearGraphHasNoBackEdges(t *testing.T) {
	t.Parallel()

	entry, b1, b2 := blk(0), blk(1), blk(2)
	link(entry, b1)
	link(b1, b2)

	g := cfgbuild.Build(fn(entry, entry, b1, b2))

	assert.Equal(t, []cast.BlockID{0, 1, 2}, g.Order)
	assert.Empty(t, g.Loops)
	for _, e := range g.OutEdges(0) {
		assert.False(t, e.IsBack)
	}
}

func TestMarkBackEdgeOnLoop(t *testing.T) {
	t.Parallel()

	entry, head, body, tail, exit := blk(0), blk(1), blk(2), blk(3), blk(4)
	head.termKind = cast.TermWhile
	link(entry, head)
	link(head, body) // then-branch (loop body)
	link(head, exit) // else-branch (loop exit)
	link(body, tail)
	link(tail, head) // back edge

	g := cfgbuild.Build(fn(entry, entry, head, body, tail, exit))

	var backEdges int
	for _, e := range g.InEdges(head.id) {
		if e.IsBack {
			backEdges++
			assert.Equal(t, tail.id, e.Src)
		}
	}
	assert.Equal(t, 1, backEdges)

	require.Len(t, g.Loops, 1)
	assert.Equal(t, head.id, g.Loops[0].Head)
	assert.Equal(t, tail.id, g.Loops[0].Tail)

	// The tail is visited exactly once in the traversal order (C6 rewinds rather than C5 splicing
	// the head again).
	count := 0
	for _, id := range g.Order {
		if id == tail.id {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestSCCsComputedForLoop(t *testing.T) {
	t.Parallel()

	entry, head, tail := blk(0), blk(1), blk(2)
	link(entry, head)
	link(head, tail)
	link(tail, head)

	g := cfgbuild.Build(fn(entry, entry, head, tail))

	foundLoopSCC := false
	for _, comp := range g.SCCs {
		if len(comp) == 2 {
			foundLoopSCC = true
		}
	}
	assert.True(t, foundLoopSCC, "head and tail must be reported in the same SCC")
}

func TestGotoBreakDeferredOntoEnclosingLoop(t *testing.T) {
	t.Parallel()

	entry, head, body, brk, tail, exit := blk(0), blk(1), blk(2), blk(3), blk(4), blk(5)
	head.termKind = cast.TermWhile
	brk.termKind = cast.TermGotoBreak
	link(entry, head)
	link(head, body)
	link(head, exit)
	link(body, brk)
	link(brk, exit) // goto-break target: the loop's exit block
	link(body, tail)
	link(tail, head)

	g := cfgbuild.Build(fn(entry, entry, head, body, brk, tail, exit))

	lr, ok := g.LoopAt(head.id)
	require.True(t, ok)
	assert.Contains(t, lr.PendingGotoBreaks, brk.id)
}
