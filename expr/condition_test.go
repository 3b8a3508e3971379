package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvra/domain"
	"cvra/expr"
)

func TestBuildRelationalGtPair(t *testing.T) {
	t.Parallel()

	b, reg := newBuilder(t)
	require.NoError(t, reg.Declare("x", "int"))

	b.PushVariable("x")
	b.PushIntLiteral(0)
	b.PushBinary("-") // e = x - 0
	b.BuildRelational(expr.RelGt)

	pair := b.PopCondition()
	xRef := domain.Constraint{E: domain.VarRef{Name: "x", K: domain.IntKind}, Cmp: domain.Gt}
	assert.Equal(t, domain.Definitely, b.Backend.Satisfies(pair.Pos, xRef), "the true branch of x>0 must know x>0")
	assert.Equal(t, domain.Never, b.Backend.Satisfies(pair.Neg, xRef), "the false branch of x>0 must rule out x>0")
}

func TestPushLiteralConditionNonzero(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t)
	b.PushLiteralCondition(true)
	pair := b.PopCondition()

	assert.False(t, pair.Pos.IsBottom())
	assert.True(t, pair.Neg.IsBottom())
}

func TestPushLiteralConditionZero(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t)
	b.PushLiteralCondition(false)
	pair := b.PopCondition()

	assert.True(t, pair.Pos.IsBottom())
	assert.False(t, pair.Neg.IsBottom())
}

func TestSwapConditionFlipsPosNeg(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t)
	b.PushLiteralCondition(true)
	before := b.PopCondition()

	b.PushLiteralCondition(true)
	b.SwapCondition()
	after := b.PopCondition()

	assert.Equal(t, before.Pos.IsBottom(), after.Neg.IsBottom())
	assert.Equal(t, before.Neg.IsBottom(), after.Pos.IsBottom())
}

func TestPopConditionOnEmptyStackToleratesUnderflow(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t)
	pair := b.PopCondition()
	assert.False(t, pair.Pos.IsBottom())
	assert.False(t, pair.Neg.IsBottom())
}
