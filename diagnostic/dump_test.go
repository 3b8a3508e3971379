package diagnostic_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvra/cast"
	"cvra/cfgbuild"
	"cvra/diagnostic"
	"cvra/domain"
	"cvra/domain/intervals"
	"cvra/store"
)

type fakeBlock struct {
	id       cast.BlockID
	termKind cast.TerminatorKind
	succs    []*fakeBlock
	preds    []*fakeBlock
}

func (b *fakeBlock) ID() cast.BlockID                             { return b.id }
func (b *fakeBlock) Statements() []cast.Stmt                      { return nil }
func (b *fakeBlock) Terminator() (cast.Stmt, cast.TerminatorKind) { return nil, b.termKind }

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

func buildTwoBlockGraph() *cfgbuild.Graph {
	a, b := &fakeBlock{id: 0}, &fakeBlock{id: 1}
	a.succs = append(a.succs, b)
	b.preds = append(b.preds, a)
	f := &cast.Func{Name: "f", Entry: a, AllBlks: []cast.Block{a, b}}
	return cfgbuild.Build(f)
}

func TestBuildReportWalksInVisitOrder(t *testing.T) {
	t.Parallel()

	g := buildTwoBlockGraph()
	s := store.New()
	backend := intervals.New()

	// Store block 1 before block 0 to confirm BuildReport follows visit order, not ID order.
	s.SetPost(cast.BlockID(1), backend.Assign(backend.Top(domain.Env{IntDims: []string{"x"}}), "x", domain.ConstInt{V: 2}))
	s.SetPost(cast.BlockID(0), backend.Top(domain.Env{IntDims: []string{"x"}}))

	fr := diagnostic.BuildReport("f", backend.Name(), g, s, backend)

	require.Len(t, fr.Blocks, 2)
	assert.Equal(t, cast.BlockID(1), fr.Blocks[0].ID)
	assert.Equal(t, cast.BlockID(0), fr.Blocks[1].ID)
	assert.NotEmpty(t, fr.Blocks[0].Post)
}

func TestBuildReportOmitsUnvisitedBlocks(t *testing.T) {
	t.Parallel()

	g := buildTwoBlockGraph()
	s := store.New()
	backend := intervals.New()
	s.SetPost(cast.BlockID(0), backend.Top(domain.Env{}))

	fr := diagnostic.BuildReport("f", backend.Name(), g, s, backend)
	require.Len(t, fr.Blocks, 1)
	assert.Equal(t, cast.BlockID(0), fr.Blocks[0].ID)
}

func TestWriteHumanIncludesNameAndBlocks(t *testing.T) {
	t.Parallel()

	fr := diagnostic.FunctionReport{
		Name: "myFunc", Backend: "intervals",
		Blocks: []diagnostic.BlockReport{{ID: 0, Terminator: cast.TermIf, Post: "x in [0,5]", CondAbs: "x>0", NegCondAbs: "x<=0"}},
	}
	var buf bytes.Buffer
	diagnostic.WriteHuman(&buf, fr)

	out := buf.String()
	assert.Contains(t, out, "myFunc")
	assert.Contains(t, out, "intervals")
	assert.Contains(t, out, "x in [0,5]")
	assert.Contains(t, out, "x>0")
}

func TestWriteDumpFileIsS2Decompressible(t *testing.T) {
	t.Parallel()

	fr := diagnostic.FunctionReport{
		Name: "myFunc", Backend: "intervals",
		Blocks: []diagnostic.BlockReport{{ID: 0, Terminator: cast.TermNone, Post: "x in [0,5]"}},
	}
	var buf bytes.Buffer
	require.NoError(t, diagnostic.WriteDumpFile(&buf, fr))

	r := s2.NewReader(&buf)
	plain, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(plain), "myFunc")
	assert.Contains(t, string(plain), "x in [0,5]")
}
