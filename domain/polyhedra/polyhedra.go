// Package polyhedra implements domain.Backend as octagon's relational tracking plus inequality
// difference bounds: where octagon only ever records an exact `a - b = k`, polyhedra additionally
// keeps one-sided `a - b <= k` / `a - b >= k` bounds learned from conditions (spec §4.5's K+/K-
// pair, once projected through assume). This is a deliberate simplification of full convex
// polyhedra (spec §2's third domain): no real constraint elimination / Chernikova-style
// vertex-and-ray generator pair is implemented, only a difference-bound matrix one octagon step
// short of closure. DESIGN.md records this as a resolved Open Question — the pack carries no
// Go polyhedra/LP library to ground a fuller construction on, and a documented DBM-plus is a
// sound, terminating stand-in that still distinguishes itself from both intervals and octagon in
// the end-to-end scenarios (spec §8).
package polyhedra

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/minio/highwayhash"

	"cvra/domain"
	"cvra/domain/internal/ivlmath"
)

var fingerprintKey = make([]byte, 32)

// diffBound is a one-sided bound on a-b: Hi, if set, means a-b<=Hi; Lo, if set, means a-b>=Lo.
type diffBound struct {
	hasLo, hasHi bool
	lo, hi       *big.Rat
}

type Value struct {
	env      domain.Env
	dims     map[string]ivlmath.Ivl
	diff     map[string]map[string]diffBound // diff[a][b] bounds a-b
	isBottom bool
}

func (v *Value) get(name string) ivlmath.Ivl {
	if iv, ok := v.dims[name]; ok {
		return iv
	}
	return ivlmath.Top()
}

func allNames(env domain.Env) []string {
	out := append([]string(nil), env.IntDims...)
	out = append(out, env.RealDims...)
	sort.Strings(out)
	return out
}

func (v *Value) Env() domain.Env { return v.env }
func (v *Value) IsBottom() bool  { return v.isBottom }

func (v *Value) String() string {
	if v.isBottom {
		return "_|_"
	}
	var sb strings.Builder
	names := allNames(v.env)
	for i, n := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s in %s", n, v.get(n))
	}
	for _, a := range names {
		for _, b := range names {
			if a == b {
				continue
			}
			if d, ok := v.diff[a][b]; ok {
				if d.hasLo {
					fmt.Fprintf(&sb, ", %s-%s>=%s", a, b, d.lo.RatString())
				}
				if d.hasHi {
					fmt.Fprintf(&sb, ", %s-%s<=%s", a, b, d.hi.RatString())
				}
			}
		}
	}
	return sb.String()
}

func (v *Value) setHi(a, b string, k *big.Rat) {
	if v.diff[a] == nil {
		v.diff[a] = map[string]diffBound{}
	}
	d := v.diff[a][b]
	d.hasHi, d.hi = true, k
	v.diff[a][b] = d
	if v.diff[b] == nil {
		v.diff[b] = map[string]diffBound{}
	}
	d2 := v.diff[b][a]
	d2.hasLo, d2.lo = true, new(big.Rat).Neg(k)
	v.diff[b][a] = d2
}

func (v *Value) setLo(a, b string, k *big.Rat) {
	if v.diff[a] == nil {
		v.diff[a] = map[string]diffBound{}
	}
	d := v.diff[a][b]
	d.hasLo, d.lo = true, k
	v.diff[a][b] = d
	v.setHi(b, a, new(big.Rat).Neg(k))
}

func (v *Value) forget(name string) {
	delete(v.diff, name)
	for _, m := range v.diff {
		delete(m, name)
	}
}

type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return "polyhedra" }

func (*Backend) Top(env domain.Env) domain.Value {
	dims := make(map[string]ivlmath.Ivl)
	for _, n := range allNames(env) {
		dims[n] = ivlmath.Top()
	}
	return &Value{env: env, dims: dims, diff: map[string]map[string]diffBound{}}
}

func (*Backend) Bottom(env domain.Env) domain.Value {
	return &Value{env: env, isBottom: true, diff: map[string]map[string]diffBound{}}
}

func (b *Backend) Copy(a domain.Value) domain.Value {
	av := a.(*Value)
	nd := make(map[string]ivlmath.Ivl, len(av.dims))
	for k, v := range av.dims {
		nd[k] = v
	}
	nf := make(map[string]map[string]diffBound, len(av.diff))
	for k, m := range av.diff {
		nm := make(map[string]diffBound, len(m))
		for k2, v2 := range m {
			nm[k2] = v2
		}
		nf[k] = nm
	}
	return &Value{env: av.env, dims: nd, diff: nf, isBottom: av.isBottom}
}

func (b *Backend) Equal(a, b2 domain.Value) bool {
	av, bv := a.(*Value), b2.(*Value)
	if av.isBottom != bv.isBottom {
		return false
	}
	if av.isBottom {
		return true
	}
	names := allNames(av.env)
	for _, n := range names {
		x, y := av.get(n), bv.get(n)
		if !boundEq(x.Lo, y.Lo) || !boundEq(x.Hi, y.Hi) {
			return false
		}
	}
	for _, n1 := range names {
		for _, n2 := range names {
			if n1 == n2 {
				continue
			}
			d1, d2 := av.diff[n1][n2], bv.diff[n1][n2]
			if d1.hasLo != d2.hasLo || d1.hasHi != d2.hasHi {
				return false
			}
			if d1.hasLo && d1.lo.Cmp(d2.lo) != 0 {
				return false
			}
			if d1.hasHi && d1.hi.Cmp(d2.hi) != 0 {
				return false
			}
		}
	}
	return true
}

func boundEq(a, b ivlmath.Bound) bool {
	if a.Finite != b.Finite {
		return false
	}
	if !a.Finite {
		return a.NegInf == b.NegInf
	}
	return a.Val.Cmp(b.Val) == 0
}

func (b *Backend) Join(a, b2 domain.Value) domain.Value {
	av, bv := a.(*Value), b2.(*Value)
	if av.isBottom {
		return b.Copy(bv)
	}
	if bv.isBottom {
		return b.Copy(av)
	}
	out := &Value{env: av.env, dims: map[string]ivlmath.Ivl{}, diff: map[string]map[string]diffBound{}}
	names := allNames(av.env)
	for _, n := range names {
		out.dims[n] = av.get(n).Join(bv.get(n))
	}
	for _, n1 := range names {
		for _, n2 := range names {
			if n1 == n2 {
				continue
			}
			d1, d2 := av.diff[n1][n2], bv.diff[n1][n2]
			// Join keeps the weaker bound that still holds for both operands: the larger upper
			// bound and the smaller lower bound.
			if d1.hasHi && d2.hasHi {
				out.setHi(n1, n2, maxRat(d1.hi, d2.hi))
			}
			if d1.hasLo && d2.hasLo {
				out.setLo(n1, n2, minRat(d1.lo, d2.lo))
			}
		}
	}
	return out
}

func maxRat(a, b *big.Rat) *big.Rat {
	if a.Cmp(b) >= 0 {
		return new(big.Rat).Set(a)
	}
	return new(big.Rat).Set(b)
}

func minRat(a, b *big.Rat) *big.Rat {
	if a.Cmp(b) <= 0 {
		return new(big.Rat).Set(a)
	}
	return new(big.Rat).Set(b)
}

func (b *Backend) Meet(a, b2 domain.Value) domain.Value {
	av, bv := a.(*Value), b2.(*Value)
	if av.isBottom || bv.isBottom {
		return b.Bottom(av.env)
	}
	out := &Value{env: av.env, dims: map[string]ivlmath.Ivl{}, diff: map[string]map[string]diffBound{}}
	names := allNames(av.env)
	anyEmpty := false
	for _, n := range names {
		iv := av.get(n).Meet(bv.get(n))
		if iv.Empty() {
			anyEmpty = true
		}
		out.dims[n] = iv
	}
	for _, n1 := range names {
		for _, n2 := range names {
			if n1 == n2 {
				continue
			}
			d1, d2 := av.diff[n1][n2], bv.diff[n1][n2]
			hi, hasHi := tighterHi(d1, d2)
			lo, hasLo := tighterLo(d1, d2)
			if hasHi {
				out.setHi(n1, n2, hi)
			}
			if hasLo {
				out.setLo(n1, n2, lo)
			}
			if hasHi && hasLo && lo.Cmp(hi) > 0 {
				anyEmpty = true
			}
		}
	}
	if anyEmpty {
		return b.Bottom(av.env)
	}
	return out
}

func tighterHi(a, b diffBound) (*big.Rat, bool) {
	switch {
	case a.hasHi && b.hasHi:
		return minRat(a.hi, b.hi), true
	case a.hasHi:
		return a.hi, true
	case b.hasHi:
		return b.hi, true
	}
	return nil, false
}

func tighterLo(a, b diffBound) (*big.Rat, bool) {
	switch {
	case a.hasLo && b.hasLo:
		return maxRat(a.lo, b.lo), true
	case a.hasLo:
		return a.lo, true
	case b.hasLo:
		return b.lo, true
	}
	return nil, false
}

func (b *Backend) Widen(old, new domain.Value) domain.Value {
	ov, nv := old.(*Value), new.(*Value)
	if ov.isBottom {
		return b.Copy(nv)
	}
	if nv.isBottom {
		return b.Copy(ov)
	}
	out := &Value{env: ov.env, dims: map[string]ivlmath.Ivl{}, diff: map[string]map[string]diffBound{}}
	names := allNames(ov.env)
	for _, n := range names {
		out.dims[n] = ivlmath.Widen(ov.get(n), nv.get(n))
	}
	for _, n1 := range names {
		for _, n2 := range names {
			if n1 == n2 {
				continue
			}
			od, nd := ov.diff[n1][n2], nv.diff[n1][n2]
			if od.hasHi && nd.hasHi && nd.hi.Cmp(od.hi) <= 0 {
				out.setHi(n1, n2, od.hi)
			}
			if od.hasLo && nd.hasLo && nd.lo.Cmp(od.lo) >= 0 {
				out.setLo(n1, n2, od.lo)
			}
		}
	}
	return out
}

func (b *Backend) Assign(a domain.Value, name string, e domain.Expr) domain.Value {
	av := a.(*Value)
	if av.isBottom {
		return b.Copy(av)
	}
	out := b.Copy(av).(*Value)
	out.dims[name] = ivlmath.Eval(e, av.get)
	oldDiff := out.diff[name]
	out.forget(name)
	terms, constant, ok := ivlmath.Linearize(e)
	if !ok || len(terms) != 1 {
		return out
	}
	for y, coef := range terms {
		if coef != 1 {
			return out
		}
		if y == name {
			for z, d := range oldDiff {
				if d.hasHi {
					out.setHi(name, z, new(big.Rat).Add(d.hi, constant))
				}
				if d.hasLo {
					out.setLo(name, z, new(big.Rat).Add(d.lo, constant))
				}
			}
			return out
		}
		out.setHi(name, y, new(big.Rat).Set(constant))
		out.setLo(name, y, new(big.Rat).Set(constant))
		return out
	}
	return out
}

func diffOf(e domain.Expr) (string, string, *big.Rat, bool) {
	terms, constant, ok := ivlmath.Linearize(e)
	if !ok || len(terms) != 2 {
		return "", "", nil, false
	}
	var pos, neg string
	for n, c := range terms {
		switch c {
		case 1:
			pos = n
		case -1:
			neg = n
		default:
			return "", "", nil, false
		}
	}
	if pos == "" || neg == "" {
		return "", "", nil, false
	}
	return pos, neg, constant, true
}

func (b *Backend) Satisfies(a domain.Value, k domain.Constraint) domain.Satisfaction {
	av := a.(*Value)
	if av.isBottom {
		return domain.Definitely
	}
	if n1, n2, c, ok := diffOf(k.E); ok {
		if d, known := av.diff[n1][n2]; known {
			var lo, hi *big.Rat
			if d.hasLo {
				lo = new(big.Rat).Add(d.lo, c)
			}
			if d.hasHi {
				hi = new(big.Rat).Add(d.hi, c)
			}
			if lo != nil || hi != nil {
				return classifyRange(k.Cmp, lo, hi)
			}
		}
	}
	r := ivlmath.Eval(k.E, av.get)
	zero := ivlmath.Zero()
	switch k.Cmp {
	case domain.Gt:
		if r.Lo.Gt(zero) {
			return domain.Definitely
		}
		if !r.Hi.Gt(zero) {
			return domain.Never
		}
		return domain.Possibly
	case domain.Ge:
		if !r.Lo.Lt(zero) {
			return domain.Definitely
		}
		if r.Hi.Lt(zero) {
			return domain.Never
		}
		return domain.Possibly
	case domain.Eq:
		if r.IsSingleton() && r.Lo.Val.Sign() == 0 {
			return domain.Definitely
		}
		if (r.Lo.Finite && r.Lo.Val.Sign() > 0) || (r.Hi.Finite && r.Hi.Val.Sign() < 0) {
			return domain.Never
		}
		return domain.Possibly
	default:
		if r.IsSingleton() && r.Lo.Val.Sign() == 0 {
			return domain.Never
		}
		if (r.Lo.Finite && r.Lo.Val.Sign() > 0) || (r.Hi.Finite && r.Hi.Val.Sign() < 0) {
			return domain.Definitely
		}
		return domain.Possibly
	}
}

// classifyRange decides whether every value in [lo,hi] (either bound possibly absent/unbounded)
// satisfies cmp against 0, never does, or it depends.
func classifyRange(cmp domain.Comparator, lo, hi *big.Rat) domain.Satisfaction {
	zero := new(big.Rat)
	switch cmp {
	case domain.Gt:
		if lo != nil && lo.Cmp(zero) > 0 {
			return domain.Definitely
		}
		if hi != nil && hi.Cmp(zero) <= 0 {
			return domain.Never
		}
		return domain.Possibly
	case domain.Ge:
		if lo != nil && lo.Cmp(zero) >= 0 {
			return domain.Definitely
		}
		if hi != nil && hi.Cmp(zero) < 0 {
			return domain.Never
		}
		return domain.Possibly
	case domain.Eq:
		if lo != nil && hi != nil && lo.Cmp(hi) == 0 && lo.Cmp(zero) == 0 {
			return domain.Definitely
		}
		if (lo != nil && lo.Cmp(zero) > 0) || (hi != nil && hi.Cmp(zero) < 0) {
			return domain.Never
		}
		return domain.Possibly
	default:
		if lo != nil && hi != nil && lo.Cmp(hi) == 0 && lo.Cmp(zero) == 0 {
			return domain.Never
		}
		if (lo != nil && lo.Cmp(zero) > 0) || (hi != nil && hi.Cmp(zero) < 0) {
			return domain.Definitely
		}
		return domain.Possibly
	}
}

func (b *Backend) OfConstraints(env domain.Env, ks []domain.Constraint) domain.Value {
	out := b.Top(env).(*Value)
	for _, k := range ks {
		if name, coef, rest, ok := ivlmath.SingleVarLinear(k.E); ok && coef != 0 {
			value := new(big.Rat).Quo(new(big.Rat).Neg(rest), big.NewRat(coef, 1))
			tight := ivlmath.BoundFromConstraint(k.Cmp, value, coef > 0)
			nw := out.get(name).Meet(tight)
			if nw.Empty() {
				return b.Bottom(env)
			}
			out.dims[name] = nw
			continue
		}
		if n1, n2, c, ok := diffOf(k.E); ok {
			// k.E = n1 - n2 + c compared to 0, i.e. n1-n2 cmp -c.
			neg := new(big.Rat).Neg(c)
			switch k.Cmp {
			case domain.Gt:
				out.setLo(n1, n2, new(big.Rat).Add(neg, ivlmath.EpsilonAbove(neg)))
			case domain.Ge:
				out.setLo(n1, n2, neg)
			case domain.Eq:
				out.setLo(n1, n2, neg)
				out.setHi(n1, n2, new(big.Rat).Set(neg))
			}
		}
	}
	return out
}

func (b *Backend) ChangeEnv(a domain.Value, newEnv domain.Env, project bool) domain.Value {
	av := a.(*Value)
	if av.isBottom {
		return &Value{env: newEnv, isBottom: true, diff: map[string]map[string]diffBound{}}
	}
	out := &Value{env: newEnv, dims: map[string]ivlmath.Ivl{}, diff: map[string]map[string]diffBound{}}
	keep := map[string]bool{}
	for _, n := range allNames(newEnv) {
		keep[n] = true
		if iv, ok := av.dims[n]; ok {
			out.dims[n] = iv
		} else if !project {
			out.dims[n] = ivlmath.Top()
		}
	}
	for n1, m := range av.diff {
		if !keep[n1] {
			continue
		}
		for n2, d := range m {
			if !keep[n2] {
				continue
			}
			if out.diff[n1] == nil {
				out.diff[n1] = map[string]diffBound{}
			}
			out.diff[n1][n2] = d
		}
	}
	return out
}

func (b *Backend) Print(a domain.Value) string { return a.String() }

func (b *Backend) Fingerprint(a domain.Value) [32]byte {
	av := a.(*Value)
	return highwayhash.Sum([]byte(av.String()), fingerprintKey)
}
