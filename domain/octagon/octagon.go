// Package octagon implements domain.Backend as intervals plus a lightweight relational layer:
// exact pairwise differences (`a - b = k`) learned from copy-with-offset assignments such as
// `y := x + 1` or `x := x + 1`. This is deliberately not a full difference-bound-matrix octagon
// with closure over inequalities (see DESIGN.md for why that full construction is left to a
// production Apron-style backend) — it is the smallest relational extension that demonstrably
// keeps the relation spec end-to-end scenario S6 asks for across a chain of assignments, while
// still being total, join/meet/widen-able, and straightforward to show terminates.
package octagon

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

// Value tracks an ivlmath.Ivl per dimension plus an exact-difference relation: rel[a][b] = k
// means "a - b = k" holds for every point abstracted. Both directions are always kept in sync
// (rel[a][b] = k iff rel[b][a] = -k).
type Value struct {
	env      domain.Env
	dims     map[string]ivlmath.Ivl
	rel      map[string]map[string]*big.Rat
	isBottom bool
}

func (v *Value) Env() domain.Env { return v.env }
func (v *Value) IsBottom() bool  { return v.isBottom }

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
			if a >= b {
				continue
			}
			if k, ok := v.rel[a][b]; ok {
				fmt.Fprintf(&sb, ", %s-%s=%s", a, b, k.RatString())
			}
		}
	}
	return sb.String()
}

// forget drops every relation entry that mentions name, returning the entries that existed
// from name's side before they were dropped (used by Assign to compute a self-shift).
func (v *Value) forget(name string) map[string]*big.Rat {
	old := v.rel[name]
	delete(v.rel, name)
	for _, m := range v.rel {
		delete(m, name)
	}
	return old
}

func (v *Value) setRel(a, b string, k *big.Rat) {
	if v.rel[a] == nil {
		v.rel[a] = map[string]*big.Rat{}
	}
	if v.rel[b] == nil {
		v.rel[b] = map[string]*big.Rat{}
	}
	v.rel[a][b] = k
	v.rel[b][a] = new(big.Rat).Neg(k)
}

type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return "octagons" }

func (*Backend) Top(env domain.Env) domain.Value {
	dims := make(map[string]ivlmath.Ivl)
	for _, n := range allNames(env) {
		dims[n] = ivlmath.Top()
	}
	return &Value{env: env, dims: dims, rel: map[string]map[string]*big.Rat{}}
}

func (*Backend) Bottom(env domain.Env) domain.Value {
	return &Value{env: env, isBottom: true, rel: map[string]map[string]*big.Rat{}}
}

func (b *Backend) Copy(a domain.Value) domain.Value {
	av := a.(*Value)
	nd := make(map[string]ivlmath.Ivl, len(av.dims))
	for k, v := range av.dims {
		nd[k] = v
	}
	nr := make(map[string]map[string]*big.Rat, len(av.rel))
	for k, m := range av.rel {
		nm := make(map[string]*big.Rat, len(m))
		for k2, v2 := range m {
			nm[k2] = new(big.Rat).Set(v2)
		}
		nr[k] = nm
	}
	return &Value{env: av.env, dims: nd, rel: nr, isBottom: av.isBottom}
}

func (b *Backend) Equal(a, b2 domain.Value) bool {
	av, bv := a.(*Value), b2.(*Value)
	if av.isBottom != bv.isBottom {
		return false
	}
	if av.isBottom {
		return true
	}
	for _, n := range allNames(av.env) {
		x, y := av.get(n), bv.get(n)
		if !boundEq(x.Lo, y.Lo) || !boundEq(x.Hi, y.Hi) {
			return false
		}
	}
	for _, a1 := range allNames(av.env) {
		for _, b1 := range allNames(av.env) {
			k1, ok1 := av.rel[a1][b1]
			k2, ok2 := bv.rel[a1][b1]
			if ok1 != ok2 {
				return false
			}
			if ok1 && k1.Cmp(k2) != 0 {
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
	out := &Value{env: av.env, dims: map[string]ivlmath.Ivl{}, rel: map[string]map[string]*big.Rat{}}
	names := allNames(av.env)
	for _, n := range names {
		out.dims[n] = av.get(n).Join(bv.get(n))
	}
	for _, a1 := range names {
		for _, b1 := range names {
			if a1 >= b1 {
				continue
			}
			k1, ok1 := av.rel[a1][b1]
			k2, ok2 := bv.rel[a1][b1]
			if ok1 && ok2 && k1.Cmp(k2) == 0 {
				out.setRel(a1, b1, new(big.Rat).Set(k1))
			}
		}
	}
	return out
}

func (b *Backend) Meet(a, b2 domain.Value) domain.Value {
	av, bv := a.(*Value), b2.(*Value)
	if av.isBottom || bv.isBottom {
		return b.Bottom(av.env)
	}
	out := &Value{env: av.env, dims: map[string]ivlmath.Ivl{}, rel: map[string]map[string]*big.Rat{}}
	names := allNames(av.env)
	anyEmpty := false
	for _, n := range names {
		iv := av.get(n).Meet(bv.get(n))
		if iv.Empty() {
			anyEmpty = true
		}
		out.dims[n] = iv
	}
	conflict := false
	for _, a1 := range names {
		for _, b1 := range names {
			if a1 >= b1 {
				continue
			}
			k1, ok1 := av.rel[a1][b1]
			k2, ok2 := bv.rel[a1][b1]
			switch {
			case ok1 && ok2 && k1.Cmp(k2) != 0:
				conflict = true // a-b can't equal two different constants at once
			case ok1:
				out.setRel(a1, b1, new(big.Rat).Set(k1))
			case ok2:
				out.setRel(a1, b1, new(big.Rat).Set(k2))
			}
		}
	}
	if anyEmpty || conflict {
		return b.Bottom(av.env)
	}
	return out
}

// Widen keeps only the relations present, with the same constant, in both old and new — any
// relation that changed or disappeared is dropped (widened away) so the chain stabilizes in
// finitely many steps, exactly as the per-dimension interval widening does.
func (b *Backend) Widen(old, new domain.Value) domain.Value {
	ov, nv := old.(*Value), new.(*Value)
	if ov.isBottom {
		return b.Copy(nv)
	}
	if nv.isBottom {
		return b.Copy(ov)
	}
	out := &Value{env: ov.env, dims: map[string]ivlmath.Ivl{}, rel: map[string]map[string]*big.Rat{}}
	names := allNames(ov.env)
	for _, n := range names {
		out.dims[n] = ivlmath.Widen(ov.get(n), nv.get(n))
	}
	for _, a1 := range names {
		for _, b1 := range names {
			if a1 >= b1 {
				continue
			}
			k1, ok1 := ov.rel[a1][b1]
			k2, ok2 := nv.rel[a1][b1]
			if ok1 && ok2 && k1.Cmp(k2) == 0 {
				out.setRel(a1, b1, new(big.Rat).Set(k1))
			}
		}
	}
	return out
}

// Assign updates name's range like the intervals backend, and additionally tries to learn an
// exact difference relation: `name := y + c` records name-y=c; `name := name + c` (the common
// loop-counter shape) shifts every existing relation involving name by c rather than dropping
// it, so a relation established before a loop survives the loop's increment statement.
func (b *Backend) Assign(a domain.Value, name string, e domain.Expr) domain.Value {
	av := a.(*Value)
	if av.isBottom {
		return b.Copy(av)
	}
	out := b.Copy(av).(*Value)
	out.dims[name] = ivlmath.Eval(e, av.get)

	oldRel := out.forget(name)
	terms, constant, ok := ivlmath.Linearize(e)
	if !ok || len(terms) != 1 {
		return out
	}
	for y, coef := range terms {
		if coef != 1 {
			return out
		}
		if y == name {
			for z, k := range oldRel {
				out.setRel(name, z, new(big.Rat).Add(k, constant))
			}
			return out
		}
		out.setRel(name, y, new(big.Rat).Set(constant))
		return out
	}
	return out
}

func (b *Backend) Satisfies(a domain.Value, k domain.Constraint) domain.Satisfaction {
	av := a.(*Value)
	if av.isBottom {
		return domain.Definitely
	}
	// Use the relation layer to tighten a two-variable difference expression exactly when
	// possible, then fall back to plain interval evaluation.
	if name1, name2, c, ok := diffOf(k.E); ok {
		if rel, known := av.rel[name1][name2]; known {
			// e = (name1 - name2) + c == rel + c exactly.
			val := new(big.Rat).Add(rel, c)
			return classify(k.Cmp, val, val)
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

func classify(cmp domain.Comparator, lo, hi *big.Rat) domain.Satisfaction {
	zero := new(big.Rat)
	switch cmp {
	case domain.Gt:
		if lo.Cmp(zero) > 0 {
			return domain.Definitely
		}
		return domain.Never
	case domain.Ge:
		if lo.Cmp(zero) >= 0 {
			return domain.Definitely
		}
		return domain.Never
	case domain.Eq:
		if lo.Cmp(zero) == 0 {
			return domain.Definitely
		}
		return domain.Never
	default:
		if lo.Cmp(zero) != 0 {
			return domain.Definitely
		}
		return domain.Never
	}
}

// diffOf recognizes `name1 - name2 + c` (or equivalent orderings) in a linear expression,
// returning the two variable names and the residual constant.
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
		if name1, name2, c, ok := diffOf(k.E); ok && k.Cmp == domain.Eq {
			out.setRel(name1, name2, new(big.Rat).Neg(c))
		}
	}
	return out
}

func (b *Backend) ChangeEnv(a domain.Value, newEnv domain.Env, project bool) domain.Value {
	av := a.(*Value)
	if av.isBottom {
		return &Value{env: newEnv, isBottom: true, rel: map[string]map[string]*big.Rat{}}
	}
	out := &Value{env: newEnv, dims: map[string]ivlmath.Ivl{}, rel: map[string]map[string]*big.Rat{}}
	names := allNames(newEnv)
	keep := map[string]bool{}
	for _, n := range names {
		keep[n] = true
		if iv, ok := av.dims[n]; ok {
			out.dims[n] = iv
		} else if !project {
			out.dims[n] = ivlmath.Top()
		}
	}
	for a1, m := range av.rel {
		if !keep[a1] {
			continue
		}
		for b1, k := range m {
			if !keep[b1] || a1 >= b1 {
				continue
			}
			out.setRel(a1, b1, new(big.Rat).Set(k))
		}
	}
	return out
}

func (b *Backend) Print(a domain.Value) string { return a.String() }

func (b *Backend) Fingerprint(a domain.Value) [32]byte {
	av := a.(*Value)
	return highwayhash.Sum([]byte(av.String()), fingerprintKey)
}
