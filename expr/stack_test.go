package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvra/domain"
	"cvra/domain/intervals"
	"cvra/env"
	"cvra/expr"
)

func newBuilder(t *testing.T) (*expr.Builder, *env.Registry) {
	t.Helper()
	reg := env.NewRegistry()
	require.NoError(t, reg.Declare("x", "int"))
	b := expr.NewBuilder(reg, intervals.New(), nil)
	return b, reg
}

func TestPushIntLiteralThenPop(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t)
	b.PushIntLiteral(7)
	assert.Equal(t, domain.ConstInt{V: 7}, b.Pop())
}

func TestPushVariableFoldsPendingCounter(t *testing.T) {
	t.Parallel()

	b, reg := newBuilder(t)
	reg.SetPending("x", 2)
	b.PushVariable("x")

	want := domain.BinOp{Op: "+", L: domain.VarRef{Name: "x", K: domain.IntKind}, R: domain.ConstInt{V: 2}, K: domain.IntKind}
	assert.Equal(t, want, b.Pop())
}

func TestPushVariableNoPendingIsBareRef(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t)
	b.PushVariable("x")
	assert.Equal(t, domain.VarRef{Name: "x", K: domain.IntKind}, b.Pop())
}

func TestPopOnEmptyStackToleratesUnderflow(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t)
	assert.Equal(t, domain.ConstInt{V: 0}, b.Pop())
	assert.True(t, b.Empty())
}

func TestPushUnaryMinus(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t)
	b.PushIntLiteral(5)
	b.PushUnary("-")
	assert.Equal(t, domain.Neg{X: domain.ConstInt{V: 5}}, b.Pop())
}

func TestPushUnaryPlusIsIdentity(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t)
	b.PushIntLiteral(5)
	b.PushUnary("+")
	assert.Equal(t, domain.ConstInt{V: 5}, b.Pop())
}

func TestPushBinaryPopsInLIFOOrder(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t)
	b.PushIntLiteral(3) // lhs
	b.PushIntLiteral(4) // rhs
	b.PushBinary("-")

	got := b.Pop().(domain.BinOp)
	assert.Equal(t, domain.ConstInt{V: 3}, got.L)
	assert.Equal(t, domain.ConstInt{V: 4}, got.R)
}

func TestPushBinaryModuloOnRealOperandIsRejected(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t)
	b.PushRealLiteral(1.5)
	b.PushIntLiteral(2)
	b.PushBinary("%")

	assert.True(t, b.Empty(), "a rejected %% must push nothing")
}

func TestDropBitwiseDropsOperandsWithoutPushing(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t)
	b.PushIntLiteral(1)
	b.PushIntLiteral(2)
	b.DropBitwise(true)
	assert.True(t, b.Empty())
}
