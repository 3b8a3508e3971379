// Package fixpoint implements the fixpoint driver (component C6): iterates the CFG preprocessor's
// traversal order, joining/meeting predecessor states, evaluating each block's statements and
// terminator, and handling back edges with delayed widening until equality (spec §4.6). This is
// the engine's core, driving a single-function, single-pass worklist over each block's abstract
// state.
package fixpoint

import (
	"cvra/cast"
	"cvra/cfgbuild"
	"cvra/config"
	"cvra/domain"
	"cvra/env"
	"cvra/eval"
	"cvra/expr"
	"cvra/store"
)

// Driver runs C6 for one function.
type Driver struct {
	Backend domain.Backend
	Reg     *env.Registry
	Graph   *cfgbuild.Graph
	Store   *store.Store
	Eval    *eval.Evaluator
	Builder *expr.Builder

	unrollingDelay int
	log            *config.Logger
}

func New(backend domain.Backend, reg *env.Registry, g *cfgbuild.Graph, unrollingDelay int, assertNames []string, log *config.Logger) *Driver {
	b := expr.NewBuilder(reg, backend, log)
	ev := eval.NewEvaluator(reg, backend, b, log)
	ev.AssertNames = assertNames
	return &Driver{
		Backend:        backend,
		Reg:            reg,
		Graph:          g,
		Store:          store.New(),
		Eval:           ev,
		Builder:        b,
		unrollingDelay: unrollingDelay,
		log:            log,
	}
}

func (d *Driver) warn(format string, args ...interface{}) {
	if d.log != nil {
		d.log.Printf("fixpoint: "+format, args...)
	}
}

// Run walks fn's traversal order to a fixpoint (spec §4.6).
func (d *Driver) Run(fn *cast.Func, reach cast.Reachability) {
	order := d.Graph.Order
	i := 0
	for i < len(order) {
		id := order[i]
		if !reach.IsReachable(fn.Entry.ID(), id) {
			i++
			continue
		}
		rewound := d.visitBlock(fn, id)
		if rewound >= 0 {
			i = rewound
			continue
		}
		i++
	}
}

// visitBlock performs §4.6 steps 2-6 for block id. It returns the index to rewind to (>=0) if a
// back edge fired and did not yet reach a fixpoint, or -1 to advance normally.
func (d *Driver) visitBlock(fn *cast.Func, id cast.BlockID) int {
	b := d.Graph.Block(id)
	pre := d.computePreState(fn, id, b)
	d.Eval.A = pre

	terms, _ := b.Terminator()
	kind := d.Graph.Terminator(id)
	for _, s := range b.Statements() {
		d.Eval.EvalStatement(s)
	}

	var condAbs, negCondAbs domain.Value
	isBranching := kind == cast.TermIf || kind == cast.TermWhile || kind == cast.TermDoWhile || kind == cast.TermFor
	if isBranching && terms != nil {
		if c, ok := terms.(cast.Cond); ok {
			pair := d.Eval.EvalCondition(c)
			condAbs, negCondAbs = pair.Pos, pair.Neg
		}
	}

	d.Store.SetTerminator(id, kind)
	d.Store.SetPost(id, d.Backend.Copy(d.Eval.A))
	if isBranching {
		d.Store.SetConditionAbs(id, condAbs, negCondAbs)
	}

	return d.applyWideningIfTail(id)
}

// computePreState implements §4.6 step 2.
func (d *Driver) computePreState(fn *cast.Func, id cast.BlockID, b cast.Block) domain.Value {
	preds := b.Preds()
	env := d.Reg.Env()

	switch len(preds) {
	case 0:
		return d.Backend.Top(env)
	case 1:
		p := preds[0]
		post := d.Store.Post(p.ID())
		if post == nil {
			return d.Backend.Top(env)
		}
		pre0 := d.Backend.ChangeEnv(post, env, false)
		pkind := d.Graph.Terminator(p.ID())
		branching := pkind == cast.TermIf || pkind == cast.TermWhile || pkind == cast.TermDoWhile || pkind == cast.TermFor
		succs := p.Succs()
		if branching && len(succs) > 1 {
			rec := d.Store.Get(p.ID())
			if len(succs) > 0 && succs[0].ID() == id {
				return d.Backend.Meet(pre0, rec.CondAbs)
			}
			return d.Backend.Meet(pre0, rec.NegCondAbs)
		}
		return d.Backend.Copy(pre0)
	default:
		var pre domain.Value
		for _, p := range preds {
			e := d.findIncomingEdge(p.ID(), id)
			eligible := e == nil || !e.IsBack || e.Seen
			if e != nil {
				e.Seen = true // "every predecessor considered is marked visited-once"
			}
			if !eligible || !fn.Reach.IsReachable(fn.Entry.ID(), p.ID()) {
				continue
			}
			post := d.Store.Post(p.ID())
			if post == nil {
				continue
			}
			post = d.Backend.ChangeEnv(post, env, false)
			if pre == nil {
				pre = d.Backend.Copy(post)
			} else {
				pre = d.Backend.Join(pre, post)
			}
		}
		if pre == nil {
			return d.Backend.Bottom(env)
		}
		return pre
	}
}

func (d *Driver) findIncomingEdge(src, dst cast.BlockID) *cfgbuild.Edge {
	for _, e := range d.Graph.InEdges(dst) {
		if e.Src == src {
			return e
		}
	}
	return nil
}

// applyWideningIfTail implements §4.6 step 6. Returns the rewind index, or -1 if id is not a
// back-edge tail or the fixpoint has stabilized.
func (d *Driver) applyWideningIfTail(id cast.BlockID) int {
	var tailEdge *cfgbuild.Edge
	for _, lr := range d.Graph.Loops {
		if lr.Tail == id {
			for _, e := range d.Graph.OutEdges(id) {
				if e.IsBack && e.Dst == lr.Head {
					tailEdge = e
					break
				}
			}
			if tailEdge != nil {
				return d.widenAtTail(id, lr.Head, tailEdge)
			}
		}
	}
	return -1
}

func (d *Driver) widenAtTail(tail, head cast.BlockID, e *cfgbuild.Edge) int {
	old := d.Store.LoopExitPrev(tail)
	if old == nil {
		old = d.Backend.Bottom(d.Reg.Env())
	}
	cur := d.Store.Post(tail)

	e.VisitCount++
	delay := d.unrollingDelay
	if delay <= 0 {
		delay = config.UnrollingDelay
	}

	var next domain.Value
	if e.VisitCount%delay == 0 {
		next = d.Backend.Widen(old, cur)
	} else {
		next = d.Backend.Copy(cur)
	}

	if d.Backend.Equal(next, old) {
		e.VisitCount = 0
		return -1
	}

	d.Store.SetLoopExitPrev(tail, d.Backend.Copy(next))
	d.Store.SetPost(tail, d.Backend.Copy(next))

	return d.rewindIndexFor(head)
}

// rewindIndexFor returns head's position in the traversal order, so the driver's next step
// re-enters the loop at its head (spec §4.6 step 6: "rewind i to the position immediately
// before the back edge's destination so the next forward step re-enters the loop" — Run treats
// a non-negative return from visitBlock as "jump straight there", which is equivalent).
func (d *Driver) rewindIndexFor(head cast.BlockID) int {
	for i, id := range d.Graph.Order {
		if id == head {
			return i
		}
	}
	d.warn("rewind target block %d not found in traversal order", head)
	return 0
}
