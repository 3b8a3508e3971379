// Package eval implements the statement evaluator (component C4): per-AST-node dispatch that
// drives the expression builder (package expr) and commits updates to the abstract memory,
// walking a statement tree while threading the current abstract value A_cur through nested
// assignment depth.
package eval

import (
	"cvra/cast"
	"cvra/config"
	"cvra/domain"
	"cvra/env"
	"cvra/expr"
)

// Evaluator walks one function's statements, holding the isCascaded/assignDepth state spec
// §4.4 describes and the current abstract value.
type Evaluator struct {
	Reg     *env.Registry
	Backend domain.Backend
	Builder *expr.Builder
	log     *config.Logger

	assignDepth int
	isCascaded  bool

	// AssertNames lists call names recognized as assert-like narrowing points (SPEC_FULL §11):
	// after such a call, A is met with the first argument's positive condition abstraction. cvra
	// never verifies the assertion itself, only borrows the free precision.
	AssertNames []string

	// A is the current abstract value; statement/terminator evaluation mutates it in place by
	// replacing the field (values are immutable handles per spec §3).
	A domain.Value
}

func NewEvaluator(reg *env.Registry, backend domain.Backend, b *expr.Builder, log *config.Logger) *Evaluator {
	return &Evaluator{Reg: reg, Backend: backend, Builder: b, log: log}
}

func (ev *Evaluator) isAssertName(name string) bool {
	for _, n := range ev.AssertNames {
		if n == name {
			return true
		}
	}
	return false
}

func (ev *Evaluator) warn(format string, args ...interface{}) {
	if ev.log != nil {
		ev.log.Printf("eval: "+format, args...)
	}
}

// EvalStatement dispatches one non-terminator statement (spec §4.4) and, per §4.6 step 3,
// flushes pending increments afterward.
func (ev *Evaluator) EvalStatement(s cast.Stmt) {
	ev.evalStmt(s)
	ev.A = ev.Reg.FlushAllPending(ev.Backend, ev.A)
}

func (ev *Evaluator) evalStmt(s cast.Stmt) {
	switch n := s.(type) {
	case cast.Decl:
		ev.evalDecl(n)
	case cast.Assign:
		ev.evalAssign(n)
	case cast.CompoundAssign:
		ev.evalCompoundAssign(n)
	case cast.ExprStmt:
		if call, ok := n.X.(cast.Call); ok && ev.isAssertName(call.Func) && len(call.Args) > 0 {
			ev.narrowAssert(call.Args[0])
		} else {
			ev.evalExprForEffect(n.X)
		}
		ev.maybeRemoveTemporaries()
	case cast.Return:
		ev.evalReturn(n)
	default:
		ev.warn("unhandled statement class %T", s)
	}
}

func (ev *Evaluator) evalDecl(n cast.Decl) {
	if err := ev.Reg.Declare(n.Name, n.CType); err != nil {
		panic(err) // unknown C type is fatal (spec §7)
	}
	if n.Init == nil {
		return
	}
	ev.assignDepth++
	switch init := n.Init.(type) {
	case cast.IntLit:
		ev.A = ev.Backend.Assign(ev.A, n.Name, domain.ConstInt{V: init.Value})
	case cast.RealLit:
		ev.A = ev.Backend.Assign(ev.A, n.Name, domain.ConstReal{V: init.Value})
	case cast.Var:
		k, _ := ev.Reg.Kind(init.Name)
		ev.A = ev.Backend.Assign(ev.A, n.Name, domain.VarRef{Name: init.Name, K: k})
	default:
		ev.evalExpr(n.Init)
		ev.commitAssign(n.Name)
	}
	ev.assignDepth--
	ev.maybeRemoveTemporaries()
}

func (ev *Evaluator) evalAssign(n cast.Assign) {
	ev.assignDepth++
	switch rhs := n.RHS.(type) {
	case cast.IntLit:
		ev.A = ev.directAssign(n.LHS, domain.ConstInt{V: rhs.Value})
	case cast.RealLit:
		ev.A = ev.directAssign(n.LHS, domain.ConstReal{V: rhs.Value})
	case cast.Var:
		k, _ := ev.Reg.Kind(rhs.Name)
		ev.A = ev.directAssign(n.LHS, domain.VarRef{Name: rhs.Name, K: k})
	case cast.CascadeAssign:
		ev.isCascaded = true
		ev.evalExpr(rhs)
		ev.isCascaded = false
		ev.commitAssign(n.LHS)
	default:
		ev.evalExpr(n.RHS)
		ev.commitAssign(n.LHS)
	}
	ev.assignDepth--
	ev.maybeRemoveTemporaries()
}

// directAssign applies spec §4.4's commit rule inline for the literal/variable fast path: assign,
// then reset pending (resetting here matters even mid cascaded expression). It flushes nothing;
// EvalStatement flushes all pending counters after the statement.
func (ev *Evaluator) directAssign(name string, e domain.Expr) domain.Value {
	a := ev.Backend.Assign(ev.A, name, e)
	ev.Reg.ResetPending(name)
	return a
}

func (ev *Evaluator) evalCompoundAssign(n cast.CompoundAssign) {
	ev.assignDepth++
	ev.Builder.PushVariable(n.LHS)
	switch n.Op {
	case "<<", ">>":
		ev.evalExpr(n.RHS)
		ev.Builder.Pop() // discard RHS
		ev.Builder.Pop() // discard the LHS pushed above; shifts produce an unconstrained temp
		k, _ := ev.Reg.Kind(n.LHS)
		name := ev.Builder.NewTempShiftResult(k, false)
		ev.commitAssignFromTemp(n.LHS, name)
	case "&", "|":
		ev.evalExprForEffect(n.RHS)
		ev.Builder.Pop() // discard the pushed LHS (bitwise has no side effect, spec §4.3)
	default:
		ev.evalExpr(n.RHS)
		ev.Builder.PushBinary(n.Op)
		ev.commitAssign(n.LHS)
	}
	ev.assignDepth--
	ev.maybeRemoveTemporaries()
}

// commitAssignFromTemp assigns name := temp (a synthesized shift-result variable) without
// reusing commitAssign's cascaded re-push logic, since the stack's shape for shifts differs.
func (ev *Evaluator) commitAssignFromTemp(name, temp string) {
	k, _ := ev.Reg.Kind(temp)
	ev.A = ev.Backend.Assign(ev.A, name, domain.VarRef{Name: temp, K: k})
	ev.Reg.ResetPending(name)
}

// commitAssign implements spec §4.4's commit_assign(x): pop the top expression; if pending(x)!=0
// re-push x's variable node tagged with the popped expression's kind (cascaded-assignment
// propagation); assign; reset pending; the caller (EvalStatement) flushes all pending after.
func (ev *Evaluator) commitAssign(name string) {
	popped := ev.Builder.Pop()
	if ev.Reg.Pending(name) != 0 {
		ev.Builder.PushExpr(domain.VarRef{Name: name, K: popped.Kind()})
		popped = ev.Builder.Pop()
	}
	ev.A = ev.Backend.Assign(ev.A, name, popped)
	ev.Reg.ResetPending(name)
}

// evalExpr recurses into e, pushing its reduction onto the expression stack (used when e is not
// a literal/variable fast path).
func (ev *Evaluator) evalExpr(e cast.Expr) {
	switch n := e.(type) {
	case cast.IntLit:
		ev.Builder.PushIntLiteral(n.Value)
	case cast.RealLit:
		ev.Builder.PushRealLiteral(n.Value)
	case cast.Var:
		ev.Builder.PushVariable(n.Name)
	case cast.UnaryOp:
		ev.evalUnary(n)
	case cast.BinaryOp:
		ev.evalBinary(n)
	case cast.Bitwise:
		if n.Op == "~" {
			ev.evalExpr(n.Operand)
			ev.Builder.DropBitwise(false)
		} else {
			ev.evalExpr(n.Left)
			ev.evalExpr(n.Right)
			ev.Builder.DropBitwise(true)
		}
	case cast.ShiftOp:
		ev.evalExpr(n.Left)
		ev.evalExpr(n.Right)
		ev.Builder.Pop()
		k := ev.Builder.Peek().Kind()
		ev.Builder.Pop()
		ev.Builder.NewTempShiftResult(k, true)
	case cast.CascadeAssign:
		ev.evalExpr(n.RHS)
		ev.commitAssign(n.LHS)
		// A cascaded assignment's value, for the enclosing expression, is x's new value.
		k, _ := ev.Reg.Kind(n.LHS)
		ev.Builder.PushExpr(domain.VarRef{Name: n.LHS, K: k})
	case cast.Call:
		for _, arg := range n.Args {
			ev.evalExprForEffect(arg)
		}
		// unmodeled return value: an unconstrained temporary keeps the stack balanced
		ev.Builder.PushExpr(domain.VarRef{Name: ev.Reg.NewTemp(domain.IntKind), K: domain.IntKind})
	case cast.Ternary:
		ev.evalTernary(n)
	case cast.Unsupported:
		ev.warn("unsupported construct ignored: %s", n.Describe)
		// an unconstrained temporary keeps the stack balanced; A itself is untouched
		ev.Builder.PushExpr(domain.VarRef{Name: ev.Reg.NewTemp(domain.IntKind), K: domain.IntKind})
	default:
		ev.warn("unhandled expression class %T", e)
		ev.Builder.PushIntLiteral(0)
	}
}

// evalExprForEffect evaluates e for its side effects only (ExprStmt, dropped bitwise RHS), then
// discards whatever lands on the expression stack.
func (ev *Evaluator) evalExprForEffect(e cast.Expr) {
	switch n := e.(type) {
	case cast.UnaryOp:
		if n.Op == "++" || n.Op == "--" {
			ev.evalUnary(n)
			ev.Builder.Pop()
			return
		}
	}
	ev.evalExpr(e)
	if !ev.Builder.Empty() {
		ev.Builder.Pop()
	}
}

var relOps = map[string]expr.Relational{
	">": expr.RelGt, ">=": expr.RelGe, "<": expr.RelLt, "<=": expr.RelLe,
	"==": expr.RelEq, "!=": expr.RelNe,
}

func (ev *Evaluator) evalBinary(n cast.BinaryOp) {
	if rel, ok := relOps[n.Op]; ok {
		ev.evalExpr(n.Left)
		ev.evalExpr(n.Right)
		ev.Builder.PushBinary("-")
		ev.Builder.BuildRelational(rel)
		return
	}
	ev.evalExpr(n.Left)
	ev.evalExpr(n.Right)
	ev.Builder.PushBinary(n.Op)
}

// evalUnary implements spec §4.4's unary-operator rule: `++`/`--`/unary `+`/`-` on a pure
// variable adjust the pending-increment counter and push the corresponding bare-arithmetic
// expression directly; any other operand recurses, then push_unary.
func (ev *Evaluator) evalUnary(n cast.UnaryOp) {
	v, isVar := n.Operand.(cast.Var)
	switch n.Op {
	case "++", "--":
		delta := int64(1)
		if n.Op == "--" {
			delta = -1
		}
		if !isVar {
			ev.evalExpr(n.Operand)
			ev.Builder.PushUnary(n.Op)
			return
		}
		k, _ := ev.Reg.Kind(v.Name)
		old := ev.Reg.Pending(v.Name)
		ev.Reg.SetPending(v.Name, old+delta)
		shown := old + delta
		if !n.Prefix {
			shown = old // x++ exposes the pre-increment value
		}
		if shown == 0 {
			ev.Builder.PushExpr(domain.VarRef{Name: v.Name, K: k})
		} else {
			ev.Builder.PushExpr(domain.BinOp{
				Op: "+", K: k,
				L: domain.VarRef{Name: v.Name, K: k}, R: domain.ConstInt{V: shown},
			})
		}
	case "+", "-":
		if isVar {
			ev.Builder.PushVariable(v.Name)
			if n.Op == "-" {
				ev.Builder.PushUnary("-")
			}
			return
		}
		ev.evalExpr(n.Operand)
		ev.Builder.PushUnary(n.Op)
	default:
		ev.evalExpr(n.Operand)
		ev.Builder.PushUnary(n.Op)
	}
}

// evalTernary implements SPEC_FULL §11's ternary `?:`: build the same (K+, K-) pair a terminator
// condition builds, evaluate each branch under its own meet-narrowed sub-state, assign both into
// one fresh temporary, and join the two resulting abstract values. The join has to happen here
// rather than inside the expr stack, since Join/Meet operate on domain.Value abstract states and
// the expression stack only ever carries symbolic domain.Expr trees.
func (ev *Evaluator) evalTernary(n cast.Ternary) {
	pair := ev.EvalCondition(cast.Cond{X: n.Cond})

	posA, trueExpr := ev.evalExprIn(ev.Backend.Meet(ev.A, pair.Pos), n.True)
	negA, falseExpr := ev.evalExprIn(ev.Backend.Meet(ev.A, pair.Neg), n.False)

	k := domain.CombineKind(trueExpr.Kind(), falseExpr.Kind())
	tmp := ev.Reg.NewTemp(k)
	posA = ev.Backend.ChangeEnv(posA, ev.Reg.Env(), false)
	negA = ev.Backend.ChangeEnv(negA, ev.Reg.Env(), false)

	posA = ev.Backend.Assign(posA, tmp, trueExpr)
	negA = ev.Backend.Assign(negA, tmp, falseExpr)

	ev.A = ev.Backend.Join(posA, negA)
	ev.Builder.PushExpr(domain.VarRef{Name: tmp, K: k})
}

// evalExprIn evaluates e against a rather than ev.A, restoring ev.A to its prior value before
// returning; used to evaluate a ternary's branches under their own meet-narrowed sub-state
// without disturbing the enclosing evaluation's current value.
func (ev *Evaluator) evalExprIn(a domain.Value, e cast.Expr) (domain.Value, domain.Expr) {
	saved := ev.A
	ev.A = a
	ev.evalExpr(e)
	popped := ev.Builder.Pop()
	result := ev.A
	ev.A = saved
	return result, popped
}

// narrowAssert implements SPEC_FULL §11's assert-like narrowing: meet A with cond's positive
// abstraction, reusing the same condition-pair machinery a terminator condition goes through
// (spec §4.3). The call is never itself reported on; only A is narrowed.
func (ev *Evaluator) narrowAssert(cond cast.Expr) {
	pair := ev.EvalCondition(cast.Cond{X: cond})
	ev.A = ev.Backend.Meet(ev.A, pair.Pos)
}

func (ev *Evaluator) evalReturn(n cast.Return) {
	if n.X != nil {
		ev.evalExprForEffect(n.X)
	}
	ev.A = ev.Reg.FlushAllPending(ev.Backend, ev.A)
}

// EvalCondition dispatches a terminator's condition (if/while/do/for) per spec §4.4: a literal
// condition pushes (top,bottom)/(bottom,top) directly; a bare variable pushes (top,top); anything
// else recurses through the normal relational machinery, leaving a pair on the condition stack.
func (ev *Evaluator) EvalCondition(c cast.Cond) expr.Pair {
	switch n := c.X.(type) {
	case cast.IntLit:
		ev.Builder.PushLiteralCondition(n.Value != 0)
	case cast.Var:
		ev.Builder.PushUnknownCondition()
	case cast.UnaryOp:
		if n.Op == "!" {
			inner := ev.EvalCondition(cast.Cond{X: n.Operand})
			return expr.Pair{Pos: inner.Neg, Neg: inner.Pos}
		}
		ev.evalExpr(c.X)
		ev.Builder.PushBinary("-")
		ev.Builder.BuildRelational(expr.RelNe)
	case cast.BinaryOp:
		if _, ok := relOps[n.Op]; ok {
			// evalBinary already builds and pushes the condition pair for a relational op; doing
			// the generic "!= 0" wrap below too would double-push and return the wrong pair.
			ev.evalBinary(n)
		} else {
			ev.evalExpr(c.X)
			ev.Builder.PushBinary("-")
			ev.Builder.BuildRelational(expr.RelNe)
		}
	default:
		ev.evalExpr(c.X)
		// A non-relational, non-literal, non-variable condition (e.g. `if (x+1)`): treat as
		// "nonzero tests true", matching the relational != 0 rule.
		ev.Builder.PushBinary("-")
		ev.Builder.BuildRelational(expr.RelNe)
	}
	ev.A = ev.Reg.FlushAllPending(ev.Backend, ev.A)
	return ev.Builder.PopCondition()
}

// maybeRemoveTemporaries implements spec §4.4: temporaries are removed only when assignDepth
// returns to 0 (a non-cascaded assignment has just been committed).
func (ev *Evaluator) maybeRemoveTemporaries() {
	if ev.assignDepth == 0 {
		ev.A = ev.Reg.RemoveTemporaries(ev.Backend, ev.A)
	}
}
