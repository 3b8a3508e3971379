// Package expr implements the expression builder (component C3): a per-statement LIFO
// expression stack, a per-statement condition-pair stack, and the push_* operations spec §4.3
// describes.
package expr

import (
	"fmt"

	"cvra/config"
	"cvra/domain"
	"cvra/env"
)

// ErrEmptyStack is the sentinel spec §7 calls for on an "empty stack pop": a defensive path not
// expected to be reached on well-formed input, but one callers must tolerate rather than panic
// on. Pop methods log via Builder.warn and return a zero expression instead of this error so
// evaluation can continue (spec §7, "Empty stack pop" row).
var ErrEmptyStack = fmt.Errorf("expression stack underflow")

// Pair is a condition abstraction pair (K+, K-) as reified abstract values (spec §3,
// "Constraint").
type Pair struct {
	Pos, Neg domain.Value
}

// Builder owns one function's expression stack and condition-pair stack, plus the registry and
// backend it drives assign/of_constraints calls through.
type Builder struct {
	Reg     *env.Registry
	Backend domain.Backend
	log     *config.Logger

	exprs []domain.Expr
	conds []Pair
}

func NewBuilder(reg *env.Registry, backend domain.Backend, log *config.Logger) *Builder {
	return &Builder{Reg: reg, Backend: backend, log: log}
}

func (b *Builder) warn(format string, args ...interface{}) {
	if b.log != nil {
		b.log.Printf("expr: "+format, args...)
	}
}

// PushIntLiteral implements push_int_literal.
func (b *Builder) PushIntLiteral(n int64) {
	b.exprs = append(b.exprs, domain.ConstInt{V: n})
}

// PushRealLiteral implements push_real_literal.
func (b *Builder) PushRealLiteral(f float64) {
	b.exprs = append(b.exprs, domain.ConstReal{V: f})
}

// PushVariable implements push_variable: if name has a nonzero pending-increment counter, pushes
// `name + k` instead of a bare variable node (spec §4.3).
func (b *Builder) PushVariable(name string) {
	k, ok := b.Reg.Kind(name)
	if !ok {
		b.warn("reference to undeclared variable %q", name)
		k = domain.IntKind
	}
	ref := domain.Expr(domain.VarRef{Name: name, K: k})
	if pend := b.Reg.Pending(name); pend != 0 {
		ref = domain.BinOp{Op: "+", L: domain.VarRef{Name: name, K: k}, R: domain.ConstInt{V: pend}, K: k}
	}
	b.exprs = append(b.exprs, ref)
}

// PushExpr pushes an already-built node (used by the statement evaluator for constants computed
// elsewhere, e.g. a synthesized temporary reference).
func (b *Builder) PushExpr(e domain.Expr) { b.exprs = append(b.exprs, e) }

// Pop removes and returns the top of the expression stack. On underflow it logs and returns a
// zero int literal so callers may proceed (spec §7).
func (b *Builder) Pop() domain.Expr {
	if len(b.exprs) == 0 {
		b.warn("pop on empty expression stack")
		return domain.ConstInt{V: 0}
	}
	n := len(b.exprs) - 1
	e := b.exprs[n]
	b.exprs = b.exprs[:n]
	return e
}

// Peek returns the top of the expression stack without popping it, or a zero literal if empty.
func (b *Builder) Peek() domain.Expr {
	if len(b.exprs) == 0 {
		return domain.ConstInt{V: 0}
	}
	return b.exprs[len(b.exprs)-1]
}

// Empty reports whether the expression stack is empty — true between top-level statements
// (spec §3).
func (b *Builder) Empty() bool { return len(b.exprs) == 0 }

// PushUnary implements push_unary: pop one, push op(e). "+" is still a pop/re-push for
// uniformity (spec §4.3); "-" pushes the negation. Any other operator ("!", or "++"/"--" on a
// non-variable operand) has no expression node and pushes a fresh unconstrained temporary.
func (b *Builder) PushUnary(op string) {
	e := b.Pop()
	switch op {
	case "+":
		b.exprs = append(b.exprs, e)
	case "-":
		b.exprs = append(b.exprs, domain.Neg{X: e})
	default:
		b.warn("unary %q not modeled; result left unconstrained", op)
		b.NewTempShiftResult(e.Kind(), true)
	}
}

// PushBinary implements push_binary: pop rhs then lhs (LIFO order matters), compute the combined
// kind, reject `%` on a real operand as a non-fatal diagnostic (nothing pushed), otherwise push
// op(lhs,rhs) (spec §4.3).
func (b *Builder) PushBinary(op string) {
	rhs := b.Pop()
	lhs := b.Pop()
	k := domain.CombineKind(lhs.Kind(), rhs.Kind())
	if op == "%" && k == domain.RealKind {
		b.warn("%% rejected: real operand in %s %% %s", lhs, rhs)
		return
	}
	b.exprs = append(b.exprs, domain.BinOp{Op: op, L: lhs, R: rhs, K: k})
}

// NewTempShiftResult synthesizes a fresh temporary for an unmodeled shift result (spec §4.3,
// "Shifts") and pushes a bare reference to it, if the enclosing context is an assignment.
func (b *Builder) NewTempShiftResult(k domain.Kind, push bool) string {
	name := b.Reg.NewTemp(k)
	if push {
		b.exprs = append(b.exprs, domain.VarRef{Name: name, K: k})
	}
	return name
}

// DropBitwise implements the "evaluate but produce no side effect" rule for `&`, `|`, `~` and
// their compound forms: pop the operand(s) that would have combined, push nothing.
func (b *Builder) DropBitwise(binary bool) {
	b.Pop()
	if binary {
		b.Pop()
	}
}
