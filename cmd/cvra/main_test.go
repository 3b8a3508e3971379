package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cvra/cast"
	"cvra/frontend"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func captureFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "capture")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func readBack(t *testing.T, f *os.File) string {
	t.Helper()
	_, err := f.Seek(0, 0)
	require.NoError(t, err)
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return string(data)
}

func TestRunWithWrongArgCountPrintsUsage(t *testing.T) {
	stdout, stderr := captureFile(t), captureFile(t)

	code := run([]string{"only-one-arg"}, stdout, stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, readBack(t, stderr), "usage: cvra")
}

func TestRunWithInvalidHeaderSearchPathExitsOne(t *testing.T) {
	stdout, stderr := captureFile(t), captureFile(t)

	code := run([]string{"-header_search_path", "/usr/include::/opt", "in.c", filepath.Join(t.TempDir(), "dump")}, stdout, stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, readBack(t, stderr), "cvra:")
}

func TestRunWithUnknownDomainExitsOne(t *testing.T) {
	stdout, stderr := captureFile(t), captureFile(t)

	code := run([]string{"-domain", "ellipsoids", "in.c", filepath.Join(t.TempDir(), "dump")}, stdout, stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, readBack(t, stderr), "unrecognized domain")
}

func TestRunPropagatesFrontEndParseError(t *testing.T) {
	orig := frontend.Default()
	t.Cleanup(func() { frontend.SetDefault(orig) })
	frontend.SetDefault(frontend.Stub{})

	stdout, stderr := captureFile(t), captureFile(t)
	code := run([]string{"in.c", filepath.Join(t.TempDir(), "dump")}, stdout, stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, readBack(t, stderr), "no C front-end registered")
}

type oneBlock struct {
	id   cast.BlockID
	stmt cast.Stmt
}

func (b *oneBlock) ID() cast.BlockID                             { return b.id }
func (b *oneBlock) Statements() []cast.Stmt                      { return []cast.Stmt{b.stmt} }
func (b *oneBlock) Terminator() (cast.Stmt, cast.TerminatorKind) { return nil, cast.TermNone }
func (b *oneBlock) Preds() []cast.Block                          { return nil }
func (b *oneBlock) Succs() []cast.Block                          { return nil }

type fakeClassifier struct{}

func (fakeClassifier) Classify(cType string) cast.Kind {
	if cType == "int" {
		return cast.KindInt
	}
	return cast.KindUnknown
}

type allReachable struct{}

func (allReachable) IsReachable(_, _ cast.BlockID) bool { return true }

type oneFuncParser struct{}

func (oneFuncParser) ParseFile(string) ([]*cast.Func, cast.TypeClassifier, error) {
	entry := &oneBlock{id: 0, stmt: cast.Decl{Name: "x", CType: "int", Init: cast.IntLit{Value: 1}}}
	f := &cast.Func{Name: "f", Entry: entry, Reach: allReachable{}, AllBlks: []cast.Block{entry}}
	return []*cast.Func{f}, fakeClassifier{}, nil
}

func TestRunEndToEndWritesHumanOutputAndDumpFile(t *testing.T) {
	orig := frontend.Default()
	t.Cleanup(func() { frontend.SetDefault(orig) })
	frontend.SetDefault(oneFuncParser{})

	stdout, stderr := captureFile(t), captureFile(t)
	dumpPath := filepath.Join(t.TempDir(), "out.dump")

	code := run([]string{"in.c", dumpPath}, stdout, stderr)

	require.Equal(t, 0, code, "stderr: %s", readBack(t, stderr))
	assert.Contains(t, readBack(t, stdout), "f")

	dumpData, err := os.ReadFile(dumpPath)
	require.NoError(t, err)
	assert.NotEmpty(t, dumpData)

	plain, err := io.ReadAll(s2.NewReader(bytes.NewReader(dumpData)))
	require.NoError(t, err, "dump file must be s2-decompressible")
	assert.Contains(t, string(plain), "f")
}
