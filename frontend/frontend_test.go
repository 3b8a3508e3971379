package frontend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvra/cast"
	"cvra/frontend"
)

func TestStubParseFileReturnsErrNotImplemented(t *testing.T) {
	t.Parallel()

	funcs, tc, err := frontend.Stub{}.ParseFile("whatever.c")
	assert.Nil(t, funcs)
	assert.Nil(t, tc)
	require.ErrorIs(t, err, frontend.ErrNotImplemented)
}

func TestDefaultIsStubUntilOverridden(t *testing.T) {
	// Not t.Parallel(): mutates package-level state shared with TestSetDefaultRegistersParser.
	orig := frontend.Default()
	t.Cleanup(func() { frontend.SetDefault(orig) })

	_, _, err := frontend.Default().ParseFile("x.c")
	require.ErrorIs(t, err, frontend.ErrNotImplemented)
}

type fakeParser struct{ calledWith string }

func (f *fakeParser) ParseFile(path string) ([]*cast.Func, cast.TypeClassifier, error) {
	f.calledWith = path
	return nil, nil, nil
}

func TestSetDefaultRegistersParser(t *testing.T) {
	orig := frontend.Default()
	t.Cleanup(func() { frontend.SetDefault(orig) })

	fp := &fakeParser{}
	frontend.SetDefault(fp)

	_, _, err := frontend.Default().ParseFile("x.c")
	require.NoError(t, err)
	assert.Equal(t, "x.c", fp.calledWith)
}
