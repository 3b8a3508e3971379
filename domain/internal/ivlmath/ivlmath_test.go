package ivlmath_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvra/domain"
	"cvra/domain/internal/ivlmath"
)

func lookup(vals map[string]ivlmath.Ivl) func(string) ivlmath.Ivl {
	return func(name string) ivlmath.Ivl {
		if iv, ok := vals[name]; ok {
			return iv
		}
		return ivlmath.Top()
	}
}

func single(n int64) ivlmath.Ivl { return ivlmath.Ivl{Lo: ivlmath.FinInt(n), Hi: ivlmath.FinInt(n)} }

func TestEvalArithmetic(t *testing.T) {
	t.Parallel()

	x := single(3)
	y := single(4)
	e := domain.BinOp{Op: "+", L: domain.VarRef{Name: "x"}, R: domain.VarRef{Name: "y"}}
	got := ivlmath.Eval(e, lookup(map[string]ivlmath.Ivl{"x": x, "y": y}))
	assert.Equal(t, single(7), got)

	e = domain.BinOp{Op: "*", L: domain.VarRef{Name: "x"}, R: domain.VarRef{Name: "y"}}
	got = ivlmath.Eval(e, lookup(map[string]ivlmath.Ivl{"x": x, "y": y}))
	assert.Equal(t, single(12), got)
}

func TestEvalDivisionSpanningZeroWidensToTop(t *testing.T) {
	t.Parallel()

	divisor := ivlmath.Ivl{Lo: ivlmath.FinInt(-1), Hi: ivlmath.FinInt(1)}
	e := domain.BinOp{Op: "/", L: domain.VarRef{Name: "x"}, R: domain.VarRef{Name: "y"}}
	got := ivlmath.Eval(e, lookup(map[string]ivlmath.Ivl{"x": single(10), "y": divisor}))
	assert.Equal(t, ivlmath.Top(), got)
}

func TestJoinMeet(t *testing.T) {
	t.Parallel()

	a := ivlmath.Ivl{Lo: ivlmath.FinInt(0), Hi: ivlmath.FinInt(5)}
	b := ivlmath.Ivl{Lo: ivlmath.FinInt(3), Hi: ivlmath.FinInt(10)}

	assert.Equal(t, ivlmath.Ivl{Lo: ivlmath.FinInt(0), Hi: ivlmath.FinInt(10)}, a.Join(b))
	assert.Equal(t, ivlmath.Ivl{Lo: ivlmath.FinInt(3), Hi: ivlmath.FinInt(5)}, a.Meet(b))

	disjoint := ivlmath.Ivl{Lo: ivlmath.FinInt(100), Hi: ivlmath.FinInt(200)}
	assert.True(t, a.Meet(disjoint).Empty())
}

func TestWidenSnapsOnlyMovedBoundsToInfinity(t *testing.T) {
	t.Parallel()

	old := ivlmath.Ivl{Lo: ivlmath.FinInt(0), Hi: ivlmath.FinInt(5)}
	stableHi := ivlmath.Ivl{Lo: ivlmath.FinInt(-1), Hi: ivlmath.FinInt(5)}

	got := ivlmath.Widen(old, stableHi)
	assert.True(t, got.Lo.IsNegInf(), "lower bound moved outward so it should widen to -inf")
	assert.Equal(t, ivlmath.FinInt(5), got.Hi, "upper bound was stable so it should stay finite")
}

func TestSingleVarLinear(t *testing.T) {
	t.Parallel()

	// 2*x + 3
	e := domain.BinOp{Op: "+",
		L: domain.BinOp{Op: "*", L: domain.ConstInt{V: 2}, R: domain.VarRef{Name: "x"}},
		R: domain.ConstInt{V: 3},
	}
	name, coef, rest, ok := ivlmath.SingleVarLinear(e)
	require.True(t, ok)
	assert.Equal(t, "x", name)
	assert.Equal(t, int64(2), coef)
	assert.Equal(t, big.NewRat(3, 1).RatString(), rest.RatString())

	// x + y is not single-variable.
	_, _, _, ok = ivlmath.SingleVarLinear(domain.BinOp{Op: "+", L: domain.VarRef{Name: "x"}, R: domain.VarRef{Name: "y"}})
	assert.False(t, ok)
}

func TestBoundFromConstraint(t *testing.T) {
	t.Parallel()

	five := big.NewRat(5, 1)

	// x > 5, isolating a positive coefficient: lower bound, integer-tightened to 6.
	got := ivlmath.BoundFromConstraint(domain.Gt, five, true)
	assert.Equal(t, ivlmath.FinInt(6), got.Lo)
	assert.True(t, got.Hi.IsPosInf())

	// x >= 5, lower bound, no tightening.
	got = ivlmath.BoundFromConstraint(domain.Ge, five, true)
	assert.Equal(t, ivlmath.FinInt(5), got.Lo)

	// x == 5 is a singleton regardless of direction.
	got = ivlmath.BoundFromConstraint(domain.Eq, five, true)
	assert.True(t, got.IsSingleton())
}
