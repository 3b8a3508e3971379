// Package domain is the façade over the numerical abstract-domain backend (spec §4.1, "Domain
// adapter", component C1). It defines the Backend contract a lattice implementation (intervals,
// octagons, convex polyhedra, or an Apron-style external library) must satisfy, plus the
// env/expression/constraint vocabulary the rest of the engine builds against. cvra ships three
// reference backends (domain/intervals, domain/octagon, domain/polyhedra); a production
// deployment may swap in a binding to a real relational-domain library behind the same
// interface without touching any other package.
package domain

import "fmt"

// Kind is the numeric kind of a dimension or expression node: int or real (spec §3,
// "Variable kind"). It intentionally does not know about C types — that classification lives
// in package cast / env, one layer up.
type Kind int

const (
	IntKind Kind = iota
	RealKind
)

func (k Kind) String() string {
	if k == RealKind {
		return "real"
	}
	return "int"
}

// CombineKind implements the propagation rule of spec §3: "real if any operand is real, else
// int".
func CombineKind(a, b Kind) Kind {
	if a == RealKind || b == RealKind {
		return RealKind
	}
	return IntKind
}

// Env is the ordered partition of tracked dimensions (spec §3, "Environment"): a set of integer
// dimensions and a set of real dimensions. Dimensions are never removed except temporaries.
// Env values are immutable; every mutating method returns a new Env.
type Env struct {
	IntDims  []string
	RealDims []string
}

// Contains reports whether name is tracked by env, in either partition.
func (e Env) Contains(name string) bool {
	for _, n := range e.IntDims {
		if n == name {
			return true
		}
	}
	for _, n := range e.RealDims {
		if n == name {
			return true
		}
	}
	return false
}

// KindOf returns the kind of name and whether it is tracked at all.
func (e Env) KindOf(name string) (Kind, bool) {
	for _, n := range e.IntDims {
		if n == name {
			return IntKind, true
		}
	}
	for _, n := range e.RealDims {
		if n == name {
			return RealKind, true
		}
	}
	return 0, false
}

// WithVar returns a new Env with name added to the partition for kind, if not already present.
func (e Env) WithVar(name string, kind Kind) Env {
	if e.Contains(name) {
		return e
	}
	out := Env{IntDims: append([]string(nil), e.IntDims...), RealDims: append([]string(nil), e.RealDims...)}
	if kind == RealKind {
		out.RealDims = append(out.RealDims, name)
	} else {
		out.IntDims = append(out.IntDims, name)
	}
	return out
}

// WithoutPrefix returns a new Env with every dimension whose name begins with prefix removed —
// used to implement spec §4.3's remove_temporaries.
func (e Env) WithoutPrefix(prefix string) Env {
	out := Env{}
	for _, n := range e.IntDims {
		if !hasPrefix(n, prefix) {
			out.IntDims = append(out.IntDims, n)
		}
	}
	for _, n := range e.RealDims {
		if !hasPrefix(n, prefix) {
			out.RealDims = append(out.RealDims, n)
		}
	}
	return out
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// Equal reports whether e and o track the same dimensions with the same kinds (order
// insensitive within each partition — callers that care about order use the slices directly).
func (e Env) Equal(o Env) bool {
	return sameSet(e.IntDims, o.IntDims) && sameSet(e.RealDims, o.RealDims)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			return false
		}
	}
	return true
}

func (e Env) String() string {
	return fmt.Sprintf("int%v real%v", e.IntDims, e.RealDims)
}

// Expr is a numeric symbolic expression node (spec §3, "Symbolic expression"): a tree over
// {constant, variable, unary -/+, binary + - * / %}. It is the vocabulary Backend.Assign and
// Backend.OfConstraints accept; package expr (C3) builds these trees on its expression stack.
type Expr interface {
	Kind() Kind
	String() string
}

type ConstInt struct{ V int64 }

func (ConstInt) Kind() Kind        { return IntKind }
func (c ConstInt) String() string  { return fmt.Sprintf("%d", c.V) }

type ConstReal struct{ V float64 }

func (ConstReal) Kind() Kind       { return RealKind }
func (c ConstReal) String() string { return fmt.Sprintf("%g", c.V) }

// VarRef is a reference to a tracked dimension.
type VarRef struct {
	Name string
	K    Kind
}

func (v VarRef) Kind() Kind      { return v.K }
func (v VarRef) String() string  { return v.Name }

// Neg is unary minus; unary plus is not represented (spec §4.3: "+ is an identity push").
type Neg struct{ X Expr }

func (n Neg) Kind() Kind     { return n.X.Kind() }
func (n Neg) String() string { return "-(" + n.X.String() + ")" }

// BinOp is one of "+","-","*","/","%".
type BinOp struct {
	Op   string
	L, R Expr
	K    Kind
}

func (b BinOp) Kind() Kind     { return b.K }
func (b BinOp) String() string { return "(" + b.L.String() + " " + b.Op + " " + b.R.String() + ")" }

// Comparator is the relation in a constraint `e ⊳ 0` (spec §3, "Constraint").
type Comparator int

const (
	Gt Comparator = iota
	Ge
	Eq
	Ne
)

func (c Comparator) String() string {
	switch c {
	case Gt:
		return ">"
	case Ge:
		return ">="
	case Eq:
		return "=="
	default:
		return "!="
	}
}

// Constraint is `E ⊳ 0`.
type Constraint struct {
	E   Expr
	Cmp Comparator
}

func (c Constraint) String() string { return fmt.Sprintf("%s %s 0", c.E, c.Cmp) }

// Satisfaction is the 3-valued result of Backend.Satisfies (spec §4.1).
type Satisfaction int

const (
	Never Satisfaction = iota
	Possibly
	Definitely
)

func (s Satisfaction) String() string {
	switch s {
	case Definitely:
		return "definitely"
	case Possibly:
		return "possibly"
	default:
		return "never"
	}
}

// Value is an opaque handle into a Backend's lattice, always paired with the Env it lives in
// (spec §3, "Abstract value"). Backends define their own concrete Value type; callers only use
// the methods below and the Backend that produced the value.
type Value interface {
	Env() Env
	IsBottom() bool
	String() string
}

// Backend is the numerical domain adapter contract (spec §4.1). Every method must be total:
// backend failure is a fatal error for the analysis of the current function (spec §7).
type Backend interface {
	Name() string
	Top(env Env) Value
	Bottom(env Env) Value
	Copy(a Value) Value
	Equal(a, b Value) bool
	Join(a, b Value) Value
	Meet(a, b Value) Value
	// Widen returns an element >= new that, iterated with a stable old, stabilizes in finitely
	// many steps. Not commutative: Widen(old, new) != Widen(new, old) in general.
	Widen(old, new Value) Value
	Assign(a Value, name string, e Expr) Value
	Satisfies(a Value, k Constraint) Satisfaction
	OfConstraints(env Env, ks []Constraint) Value
	// ChangeEnv extends (project=false, new dims are unconstrained) or shrinks (project=true,
	// dropped dims are projected away) a's environment to newEnv.
	ChangeEnv(a Value, newEnv Env, project bool) Value
	Print(a Value) string
	// Fingerprint returns a content hash of a's canonical representation (spec §4.1
	// "fingerprint-print"). The fixpoint driver does not consult it; its back-edge check calls Equal.
	Fingerprint(a Value) [32]byte
}
