// Package ivlmath is the interval-arithmetic core shared by the intervals, octagon, and
// polyhedra reference backends (they all bound each individual dimension with a [lo,hi] range;
// octagon and polyhedra add relational information on top). Keeping this arithmetic in one
// place means the three backends cannot silently disagree on how "+inf - inf" or "division by
// a range spanning zero" is rounded.
package ivlmath

import (
	"fmt"
	"math/big"

	"cvra/domain"
)

// Bound is one side of an interval: either a finite rational or an infinity.
type Bound struct {
	Finite bool
	Val    *big.Rat
	NegInf bool // meaningful only when !Finite
}

func NegInfB() Bound        { return Bound{NegInf: true} }
func PosInfB() Bound        { return Bound{NegInf: false} }
func Fin(v *big.Rat) Bound  { return Bound{Finite: true, Val: v} }
func FinInt(n int64) Bound  { return Fin(new(big.Rat).SetInt64(n)) }
func Zero() Bound           { return Fin(new(big.Rat)) }

func (b Bound) IsNegInf() bool { return !b.Finite && b.NegInf }
func (b Bound) IsPosInf() bool { return !b.Finite && !b.NegInf }

func (a Bound) Lt(b Bound) bool {
	if a.IsNegInf() {
		return !b.IsNegInf()
	}
	if b.IsPosInf() {
		return !a.IsPosInf()
	}
	if a.IsPosInf() || b.IsNegInf() {
		return false
	}
	return a.Val.Cmp(b.Val) < 0
}

func (a Bound) Gt(b Bound) bool { return b.Lt(a) }

func (a Bound) Min(b Bound) Bound {
	if a.Lt(b) {
		return a
	}
	return b
}

func (a Bound) Max(b Bound) Bound {
	if a.Gt(b) {
		return a
	}
	return b
}

func (a Bound) Neg() Bound {
	if !a.Finite {
		return Bound{Finite: false, NegInf: !a.NegInf}
	}
	return Fin(new(big.Rat).Neg(a.Val))
}

func (a Bound) Add(b Bound) Bound {
	if a.IsNegInf() || b.IsNegInf() {
		if a.IsPosInf() || b.IsPosInf() {
			return NegInfB()
		}
		return NegInfB()
	}
	if a.IsPosInf() || b.IsPosInf() {
		return PosInfB()
	}
	return Fin(new(big.Rat).Add(a.Val, b.Val))
}

func (a Bound) Sub(b Bound) Bound { return a.Add(b.Neg()) }

func (a Bound) String() string {
	switch {
	case a.IsNegInf():
		return "-inf"
	case a.IsPosInf():
		return "+inf"
	default:
		return a.Val.RatString()
	}
}

// Ivl is one variable's [lo, hi] range. lo > hi never exists standalone: callers collapse such
// a range to their domain's Bottom.
type Ivl struct{ Lo, Hi Bound }

func Top() Ivl { return Ivl{Lo: NegInfB(), Hi: PosInfB()} }

func (i Ivl) Empty() bool        { return i.Lo.Gt(i.Hi) }
func (i Ivl) Join(o Ivl) Ivl     { return Ivl{Lo: i.Lo.Min(o.Lo), Hi: i.Hi.Max(o.Hi)} }
func (i Ivl) Meet(o Ivl) Ivl     { return Ivl{Lo: i.Lo.Max(o.Lo), Hi: i.Hi.Min(o.Hi)} }
func (i Ivl) String() string     { return fmt.Sprintf("[%s,%s]", i.Lo, i.Hi) }
func (i Ivl) IsSingleton() bool  { return i.Lo.Finite && i.Hi.Finite && i.Lo.Val.Cmp(i.Hi.Val) == 0 }

// Eval reduces a domain.Expr to a range, given a lookup for variable ranges. Non-representable
// results (e.g. a divisor range spanning zero) widen to Top rather than failing, keeping the
// caller's Assign/Satisfies total (spec §4.1).
func Eval(e domain.Expr, lookup func(name string) Ivl) Ivl {
	switch n := e.(type) {
	case domain.ConstInt:
		return Ivl{Lo: FinInt(n.V), Hi: FinInt(n.V)}
	case domain.ConstReal:
		r := new(big.Rat).SetFloat64(n.V)
		if r == nil {
			return Top()
		}
		return Ivl{Lo: Fin(r), Hi: Fin(new(big.Rat).Set(r))}
	case domain.VarRef:
		return lookup(n.Name)
	case domain.Neg:
		x := Eval(n.X, lookup)
		return Ivl{Lo: x.Hi.Neg(), Hi: x.Lo.Neg()}
	case domain.BinOp:
		l, r := Eval(n.L, lookup), Eval(n.R, lookup)
		switch n.Op {
		case "+":
			return Ivl{Lo: l.Lo.Add(r.Lo), Hi: l.Hi.Add(r.Hi)}
		case "-":
			return Ivl{Lo: l.Lo.Sub(r.Hi), Hi: l.Hi.Sub(r.Lo)}
		case "*":
			return mulIvl(l, r)
		case "/":
			return divIvl(l, r)
		case "%":
			return modIvl(l, r)
		}
	}
	return Top()
}

func mulIvl(a, b Ivl) Ivl {
	if !a.Lo.Finite || !a.Hi.Finite || !b.Lo.Finite || !b.Hi.Finite {
		return Top()
	}
	corners := []Bound{mulB(a.Lo, b.Lo), mulB(a.Lo, b.Hi), mulB(a.Hi, b.Lo), mulB(a.Hi, b.Hi)}
	lo, hi := corners[0], corners[0]
	for _, c := range corners[1:] {
		lo = lo.Min(c)
		hi = hi.Max(c)
	}
	return Ivl{Lo: lo, Hi: hi}
}

func mulB(a, b Bound) Bound { return Fin(new(big.Rat).Mul(a.Val, b.Val)) }

func divIvl(a, b Ivl) Ivl {
	zero := new(big.Rat)
	if !b.Lo.Finite || !b.Hi.Finite {
		return Top()
	}
	if b.Lo.Val.Sign() <= 0 && b.Hi.Val.Sign() >= 0 {
		return Top() // divisor range spans zero
	}
	var corners []Bound
	for _, av := range []Bound{a.Lo, a.Hi} {
		for _, bv := range []Bound{b.Lo, b.Hi} {
			if av.Finite && bv.Val.Cmp(zero) != 0 {
				corners = append(corners, Fin(new(big.Rat).Quo(av.Val, bv.Val)))
			}
		}
	}
	if len(corners) == 0 {
		return Top()
	}
	lo, hi := corners[0], corners[0]
	for _, c := range corners[1:] {
		lo = lo.Min(c)
		hi = hi.Max(c)
	}
	return Ivl{Lo: lo, Hi: hi}
}

func modIvl(a, b Ivl) Ivl {
	if b.Lo.Finite && b.Hi.Finite && b.Lo.Val.Cmp(b.Hi.Val) == 0 && b.Lo.Val.Sign() != 0 {
		bnd := new(big.Rat).Abs(b.Lo.Val)
		bnd.Sub(bnd, big.NewRat(1, 1))
		if bnd.Sign() < 0 {
			bnd.SetInt64(0)
		}
		return Ivl{Lo: Fin(new(big.Rat).Neg(bnd)), Hi: Fin(bnd)}
	}
	return Top()
}

// Widen applies the standard per-dimension widening: a bound that moved outward from old to new
// snaps to infinity; a stable bound is kept (spec §4.1, "widen(old,new)").
func Widen(old, new Ivl) Ivl {
	lo := old.Lo
	if new.Lo.Lt(old.Lo) {
		lo = NegInfB()
	}
	hi := old.Hi
	if new.Hi.Gt(old.Hi) {
		hi = PosInfB()
	}
	return Ivl{Lo: lo, Hi: hi}
}

// SingleVarLinear recognizes coef*name + rest where rest is constant, for exactly one variable
// name. Anything else (more than one variable, a nonlinear term) returns ok=false.
func SingleVarLinear(e domain.Expr) (name string, coef int64, rest *big.Rat, ok bool) {
	terms, constant, ok := Linearize(e)
	if !ok || len(terms) != 1 {
		return "", 0, nil, false
	}
	for n, c := range terms {
		return n, c, constant, true
	}
	return "", 0, nil, false
}

// Linearize walks an expression tree and returns its coefficients per variable plus a constant
// term, or ok=false if the expression is not a linear combination of variables and constants.
func Linearize(e domain.Expr) (terms map[string]int64, constant *big.Rat, ok bool) {
	switch n := e.(type) {
	case domain.ConstInt:
		return map[string]int64{}, new(big.Rat).SetInt64(n.V), true
	case domain.ConstReal:
		r := new(big.Rat).SetFloat64(n.V)
		if r == nil {
			return nil, nil, false
		}
		return map[string]int64{}, r, true
	case domain.VarRef:
		return map[string]int64{n.Name: 1}, new(big.Rat), true
	case domain.Neg:
		terms, constant, ok = Linearize(n.X)
		if !ok {
			return nil, nil, false
		}
		neg := map[string]int64{}
		for k, v := range terms {
			neg[k] = -v
		}
		return neg, new(big.Rat).Neg(constant), true
	case domain.BinOp:
		lt, lc, lok := Linearize(n.L)
		rt, rc, rok := Linearize(n.R)
		if !lok || !rok {
			return nil, nil, false
		}
		switch n.Op {
		case "+":
			return mergeTerms(lt, rt, 1), new(big.Rat).Add(lc, rc), true
		case "-":
			return mergeTerms(lt, rt, -1), new(big.Rat).Sub(lc, rc), true
		case "*":
			if len(lt) == 0 && lc.IsInt() {
				return scaleTerms(rt, lc.Num().Int64()), new(big.Rat).Mul(lc, rc), true
			}
			if len(rt) == 0 && rc.IsInt() {
				return scaleTerms(lt, rc.Num().Int64()), new(big.Rat).Mul(lc, rc), true
			}
			return nil, nil, false
		default:
			return nil, nil, false
		}
	}
	return nil, nil, false
}

func scaleTerms(t map[string]int64, scale int64) map[string]int64 {
	out := map[string]int64{}
	for k, v := range t {
		out[k] = v * scale
	}
	return out
}

func mergeTerms(a, b map[string]int64, sign int64) map[string]int64 {
	out := map[string]int64{}
	for k, v := range a {
		out[k] += v
	}
	for k, v := range b {
		out[k] += sign * v
	}
	for k, v := range out {
		if v == 0 {
			delete(out, k)
		}
	}
	return out
}

// EpsilonAbove returns 1 for integer-valued bounds (sound tightening for strict integer
// inequalities) or 0 in the general rational case.
func EpsilonAbove(b *big.Rat) *big.Rat {
	if b.IsInt() {
		return big.NewRat(1, 1)
	}
	return new(big.Rat)
}

// BoundFromConstraint returns the Ivl that exactly represents `name cmp value` (cmp applying to
// the isolated variable), where lowerBound is true when isolating a positive-coefficient
// variable ("greater" constraints become a lower bound) and false when isolating a
// negative-coefficient one (direction flips to an upper bound).
func BoundFromConstraint(cmp domain.Comparator, value *big.Rat, lowerBound bool) Ivl {
	switch cmp {
	case domain.Gt:
		if lowerBound {
			return Ivl{Lo: Fin(new(big.Rat).Add(value, EpsilonAbove(value))), Hi: PosInfB()}
		}
		return Ivl{Lo: NegInfB(), Hi: Fin(new(big.Rat).Sub(value, EpsilonAbove(value)))}
	case domain.Ge:
		if lowerBound {
			return Ivl{Lo: Fin(value), Hi: PosInfB()}
		}
		return Ivl{Lo: NegInfB(), Hi: Fin(value)}
	case domain.Eq:
		return Ivl{Lo: Fin(value), Hi: Fin(new(big.Rat).Set(value))}
	default: // Ne: cannot express a hole in an interval; stay unconstrained
		return Top()
	}
}
