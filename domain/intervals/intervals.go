// Package intervals implements domain.Backend as the classic non-relational interval lattice:
// each tracked variable gets an independent [lo, hi] range. It is cvra's default backend
// (spec §6; cvra's CLI flag defaults to intervals) because it is the cheapest to compute a
// fixpoint over, at the cost of losing any relation between two variables (spec end-to-end
// scenario S6 — see domain/octagon for a backend that keeps such relations).
package intervals

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/minio/highwayhash"

	"cvra/domain"
	"cvra/domain/internal/ivlmath"
)

// fingerprintKey is a fixed 32-byte key for the non-cryptographic content hash used to memoize
// equality probes (domain.Backend.Fingerprint); it need not be secret, only stable across a run.
var fingerprintKey = make([]byte, 32)

// Value is intervals' concrete domain.Value: one ivlmath.Ivl per tracked dimension.
type Value struct {
	env      domain.Env
	dims     map[string]ivlmath.Ivl
	isBottom bool
}

func (v *Value) Env() domain.Env { return v.env }
func (v *Value) IsBottom() bool  { return v.isBottom }

func (v *Value) String() string {
	if v.isBottom {
		return "_|_"
	}
	var sb strings.Builder
	for i, n := range allNames(v.env) {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s in %s", n, v.get(n))
	}
	return sb.String()
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

// Backend is the stateless intervals domain.Backend implementation.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return "intervals" }

func (*Backend) Top(env domain.Env) domain.Value {
	dims := make(map[string]ivlmath.Ivl, len(env.IntDims)+len(env.RealDims))
	for _, n := range allNames(env) {
		dims[n] = ivlmath.Top()
	}
	return &Value{env: env, dims: dims}
}

func (*Backend) Bottom(env domain.Env) domain.Value {
	return &Value{env: env, isBottom: true}
}

func (b *Backend) Copy(a domain.Value) domain.Value {
	av := a.(*Value)
	nd := make(map[string]ivlmath.Ivl, len(av.dims))
	for k, v := range av.dims {
		nd[k] = v
	}
	return &Value{env: av.env, dims: nd, isBottom: av.isBottom}
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
		if x.Lo != y.Lo || x.Hi != y.Hi {
			if !boundEq(x.Lo, y.Lo) || !boundEq(x.Hi, y.Hi) {
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
	out := &Value{env: av.env, dims: make(map[string]ivlmath.Ivl)}
	for _, n := range allNames(av.env) {
		out.dims[n] = av.get(n).Join(bv.get(n))
	}
	return out
}

func (b *Backend) Meet(a, b2 domain.Value) domain.Value {
	av, bv := a.(*Value), b2.(*Value)
	if av.isBottom || bv.isBottom {
		return b.Bottom(av.env)
	}
	out := &Value{env: av.env, dims: make(map[string]ivlmath.Ivl)}
	anyEmpty := false
	for _, n := range allNames(av.env) {
		iv := av.get(n).Meet(bv.get(n))
		if iv.Empty() {
			anyEmpty = true
		}
		out.dims[n] = iv
	}
	if anyEmpty {
		return b.Bottom(av.env)
	}
	return out
}

func (b *Backend) Widen(old, new domain.Value) domain.Value {
	ov, nv := old.(*Value), new.(*Value)
	if ov.isBottom {
		return b.Copy(nv)
	}
	if nv.isBottom {
		return b.Copy(ov)
	}
	out := &Value{env: ov.env, dims: make(map[string]ivlmath.Ivl)}
	for _, n := range allNames(ov.env) {
		out.dims[n] = ivlmath.Widen(ov.get(n), nv.get(n))
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
	return out
}

// Satisfies evaluates the constraint's expression over a's current ranges and classifies the
// result (spec §4.1, "satisfies(a,k): 3-valued").
func (b *Backend) Satisfies(a domain.Value, k domain.Constraint) domain.Satisfaction {
	av := a.(*Value)
	if av.isBottom {
		return domain.Definitely // bottom satisfies every constraint vacuously
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
	default: // Ne
		if r.IsSingleton() && r.Lo.Val.Sign() == 0 {
			return domain.Never
		}
		if (r.Lo.Finite && r.Lo.Val.Sign() > 0) || (r.Hi.Finite && r.Hi.Val.Sign() < 0) {
			return domain.Definitely
		}
		return domain.Possibly
	}
}

// OfConstraints builds the abstraction of every point satisfying ks, starting from Top(env) and
// tightening each single-variable constraint exactly; multi-variable (relational) constraints
// cannot be represented in a non-relational domain and are conservatively dropped (sound: they
// simply fail to add precision, as documented for S6 in spec §8).
func (b *Backend) OfConstraints(env domain.Env, ks []domain.Constraint) domain.Value {
	out := b.Top(env).(*Value)
	for _, k := range ks {
		name, coef, rest, ok := ivlmath.SingleVarLinear(k.E)
		if !ok || coef == 0 {
			continue
		}
		value := new(big.Rat).Quo(new(big.Rat).Neg(rest), big.NewRat(coef, 1))
		tight := ivlmath.BoundFromConstraint(k.Cmp, value, coef > 0)
		nw := out.get(name).Meet(tight)
		if nw.Empty() {
			return b.Bottom(env)
		}
		out.dims[name] = nw
	}
	return out
}

func (b *Backend) ChangeEnv(a domain.Value, newEnv domain.Env, project bool) domain.Value {
	av := a.(*Value)
	if av.isBottom {
		return &Value{env: newEnv, isBottom: true}
	}
	out := &Value{env: newEnv, dims: make(map[string]ivlmath.Ivl)}
	for _, n := range allNames(newEnv) {
		if iv, ok := av.dims[n]; ok {
			out.dims[n] = iv
		} else if !project {
			out.dims[n] = ivlmath.Top()
		}
	}
	return out
}

func (b *Backend) Print(a domain.Value) string { return a.String() }

func (b *Backend) Fingerprint(a domain.Value) [32]byte {
	av := a.(*Value)
	return highwayhash.Sum([]byte(av.String()), fingerprintKey)
}
