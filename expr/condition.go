package expr

import "cvra/domain"

// Relational is one of the six comparison operators recognized by the condition-pair builder.
type Relational int

const (
	RelGt Relational = iota
	RelGe
	RelLt
	RelLe
	RelEq
	RelNe
)

// BuildRelational implements spec §4.3's condition-pair construction: given `lhs R rhs` already
// reduced to e = lhs-rhs on the expression stack (push_binary with op="-"), form (K+, K-) per the
// table and push their reifications onto the condition-pair stack.
//
// The table's `==` row uses K- = (e != 0) rather than the source's literal (-e != 0) — these are
// mathematically identical, and the design notes call the source's asymmetry out for
// simplification in a reimplementation.
func (b *Builder) BuildRelational(r Relational) {
	e := b.Pop()
	var pos, neg domain.Constraint
	switch r {
	case RelGt:
		pos = domain.Constraint{E: e, Cmp: domain.Gt}
		neg = domain.Constraint{E: domain.Neg{X: e}, Cmp: domain.Ge}
	case RelGe:
		pos = domain.Constraint{E: e, Cmp: domain.Ge}
		neg = domain.Constraint{E: domain.Neg{X: e}, Cmp: domain.Gt}
	case RelLt:
		pos = domain.Constraint{E: domain.Neg{X: e}, Cmp: domain.Gt}
		neg = domain.Constraint{E: e, Cmp: domain.Ge}
	case RelLe:
		pos = domain.Constraint{E: domain.Neg{X: e}, Cmp: domain.Ge}
		neg = domain.Constraint{E: e, Cmp: domain.Gt}
	case RelEq:
		pos = domain.Constraint{E: e, Cmp: domain.Eq}
		neg = domain.Constraint{E: e, Cmp: domain.Ne}
	case RelNe:
		pos = domain.Constraint{E: e, Cmp: domain.Ne}
		neg = domain.Constraint{E: e, Cmp: domain.Eq}
	}
	env := b.Reg.Env()
	b.conds = append(b.conds, Pair{
		Pos: b.Backend.OfConstraints(env, []domain.Constraint{pos}),
		Neg: b.Backend.OfConstraints(env, []domain.Constraint{neg}),
	})
}

// PushLiteralCondition pushes (top,bottom) for a nonzero literal or (bottom,top) for zero directly — used when a terminator's
// condition is a constant (spec §4.4, "if the condition is an integer literal").
func (b *Builder) PushLiteralCondition(nonzero bool) {
	env := b.Reg.Env()
	if nonzero {
		b.conds = append(b.conds, Pair{Pos: b.Backend.Top(env), Neg: b.Backend.Bottom(env)})
		return
	}
	b.conds = append(b.conds, Pair{Pos: b.Backend.Bottom(env), Neg: b.Backend.Top(env)})
}

// PushUnknownCondition pushes (top,top) — used when a terminator's condition is a bare variable
// (spec §4.4: "no precision extracted — see Design Notes").
func (b *Builder) PushUnknownCondition() {
	env := b.Reg.Env()
	b.conds = append(b.conds, Pair{Pos: b.Backend.Top(env), Neg: b.Backend.Top(env)})
}

// SwapCondition implements logical `!`: swap the top of the condition-pair stack.
func (b *Builder) SwapCondition() {
	if len(b.conds) == 0 {
		b.warn("swap on empty condition-pair stack")
		return
	}
	n := len(b.conds) - 1
	b.conds[n].Pos, b.conds[n].Neg = b.conds[n].Neg, b.conds[n].Pos
}

// PopCondition removes and returns the top condition pair, or (top,top) on underflow.
func (b *Builder) PopCondition() Pair {
	if len(b.conds) == 0 {
		b.warn("pop on empty condition-pair stack")
		env := b.Reg.Env()
		return Pair{Pos: b.Backend.Top(env), Neg: b.Backend.Top(env)}
	}
	n := len(b.conds) - 1
	p := b.conds[n]
	b.conds = b.conds[:n]
	return p
}
