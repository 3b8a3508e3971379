// Package cfgbuild implements the CFG preprocessor (component C5): block/edge table
// construction, back-edge marking via a 3-colored depth-first traversal, Tarjan's strongly
// connected components (reported, not scheduled — spec §4.5 step 4, §9), and the traversal-order
// construction that respects loop structure and goto-to-loop-exit labels, as a single pass ahead
// of the fixpoint driver's own dataflow pass.
package cfgbuild

import (
	"github.com/bits-and-blooms/bitset"

	"cvra/cast"
	"cvra/config"
)

// color is the 3-state DFS marker used for back-edge detection (spec §4.5 step 3).
type color int

const (
	white color = iota
	gray
	black
)

// Edge is one CFG edge, carrying the widening bookkeeping the fixpoint driver needs at a
// back-edge tail (spec §3, "Edge"). Seen and VisitCount serve two distinct purposes that must
// not share a counter: Seen latches the first time computePreState considers the edge (§4.6
// step 2's predecessor-eligibility gate), while VisitCount counts only widening passes at the
// tail (§4.6 step 6's cadence counter against unrolling_delay).
type Edge struct {
	Src, Dst cast.BlockID
	IsBack   bool
	// Seen is set true the first time this edge is considered as a predecessor in
	// computePreState; it never resets, unlike VisitCount which widenAtTail zeroes on
	// convergence.
	Seen       bool
	VisitCount int
}

// LoopRecord is populated per detected back edge (spec §3, "Loop record"). PendingGotoBreaks
// lists the goto-break blocks met while this loop was the innermost open loop of the traversal;
// each is emitted where it is met, and nothing re-schedules blocks from this list.
type LoopRecord struct {
	Head, Tail        cast.BlockID
	PendingGotoBreaks []cast.BlockID
	Completed         bool
}

// Graph is C5's output: the block table, edge table, loop records, SCCs, and traversal order for
// one function.
type Graph struct {
	blocks map[cast.BlockID]cast.Block
	term   map[cast.BlockID]cast.TerminatorKind

	edges    []*Edge
	outEdges map[cast.BlockID][]*Edge
	inEdges  map[cast.BlockID][]*Edge

	Loops []*LoopRecord
	loopByHead map[cast.BlockID]*LoopRecord

	SCCs [][]cast.BlockID

	Order []cast.BlockID
}

func (g *Graph) Block(id cast.BlockID) cast.Block          { return g.blocks[id] }
func (g *Graph) Terminator(id cast.BlockID) cast.TerminatorKind { return g.term[id] }
func (g *Graph) OutEdges(id cast.BlockID) []*Edge          { return g.outEdges[id] }
func (g *Graph) InEdges(id cast.BlockID) []*Edge           { return g.inEdges[id] }
func (g *Graph) LoopAt(head cast.BlockID) (*LoopRecord, bool) {
	l, ok := g.loopByHead[head]
	return l, ok
}

// Build runs all of spec §4.5's preprocessing steps for fn and returns the resulting Graph.
func Build(fn *cast.Func) *Graph {
	g := &Graph{
		blocks:     map[cast.BlockID]cast.Block{},
		term:       map[cast.BlockID]cast.TerminatorKind{},
		outEdges:   map[cast.BlockID][]*Edge{},
		inEdges:    map[cast.BlockID][]*Edge{},
		loopByHead: map[cast.BlockID]*LoopRecord{},
	}
	buildBlockTable(g, fn)
	buildEdgeTable(g)
	markBackEdges(g, fn.Entry.ID())
	g.SCCs = tarjanSCC(g)
	g.Order = buildTraversalOrder(g, fn.Entry.ID())
	return g
}

// buildBlockTable is spec §4.5 step 1: one record per block, taking each block's terminator kind
// (TermGotoBreak included) as the front-end reports it; no goto label is inspected here.
func buildBlockTable(g *Graph, fn *cast.Func) {
	for _, b := range fn.AllBlks {
		g.blocks[b.ID()] = b
		_, kind := b.Terminator()
		g.term[b.ID()] = kind
	}
}

// buildEdgeTable is spec §4.5 step 2.
func buildEdgeTable(g *Graph) {
	for id, b := range g.blocks {
		for _, succ := range b.Succs() {
			e := &Edge{Src: id, Dst: succ.ID()}
			g.edges = append(g.edges, e)
			g.outEdges[id] = append(g.outEdges[id], e)
			g.inEdges[succ.ID()] = append(g.inEdges[succ.ID()], e)
		}
	}
}

// markBackEdges is spec §4.5 step 3: a DFS from entry using a 3-coloring; an edge from a gray
// source to a gray destination is a back edge. gray/black are tracked as bitsets over block IDs
// (white is simply "set in neither").
func markBackEdges(g *Graph, entry cast.BlockID) {
	grayBits := bitset.New(uint(len(g.blocks) + 1))
	blackBits := bitset.New(uint(len(g.blocks) + 1))
	colorAt := func(id cast.BlockID) color {
		switch {
		case blackBits.Test(uint(id)):
			return black
		case grayBits.Test(uint(id)):
			return gray
		default:
			return white
		}
	}

	var visit func(id cast.BlockID)
	visit = func(id cast.BlockID) {
		grayBits.Set(uint(id))
		for _, e := range g.outEdges[id] {
			switch colorAt(e.Dst) {
			case white:
				visit(e.Dst)
			case gray:
				e.IsBack = true
				g.addLoopRecord(e.Dst, e.Src)
			case black:
				// forward/cross edge, not a back edge
			}
		}
		grayBits.Clear(uint(id))
		blackBits.Set(uint(id))
	}
	visit(entry)
}

func (g *Graph) addLoopRecord(head, tail cast.BlockID) {
	lr := &LoopRecord{Head: head, Tail: tail}
	g.Loops = append(g.Loops, lr)
	g.loopByHead[head] = lr
}

// tarjanSCC computes strongly connected components for diagnostic reporting only (spec §4.5
// step 4, §9: "computed but not used for scheduling").
func tarjanSCC(g *Graph) [][]cast.BlockID {
	index := 0
	indices := map[cast.BlockID]int{}
	lowlink := map[cast.BlockID]int{}
	onStack := map[cast.BlockID]bool{}
	var stack []cast.BlockID
	var out [][]cast.BlockID

	var strongconnect func(v cast.BlockID)
	strongconnect = func(v cast.BlockID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range g.outEdges[v] {
			w := e.Dst
			if _, ok := indices[w]; !ok {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var comp []cast.BlockID
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			out = append(out, comp)
		}
	}

	for id := range g.blocks {
		if _, ok := indices[id]; !ok {
			strongconnect(id)
		}
	}
	return out
}

// buildTraversalOrder is spec §4.5 step 5: a predecessors-first DFS from entry that emits each
// block exactly once. Loop tails and do-while heads are not re-scheduled (the fixpoint driver
// re-enters a loop by rewinding to its head). A goto-break block is emitted where it is met and
// recorded on the innermost open loop's PendingGotoBreaks; its successors are not visited from it.
func buildTraversalOrder(g *Graph, entry cast.BlockID) []cast.BlockID {
	var order []cast.BlockID
	visited := map[cast.BlockID]bool{}
	// loopStack tracks the loop records whose head has been emitted but whose tail has not, so a
	// goto-break encountered mid-body can be recorded on the innermost enclosing loop.
	var loopStack []*LoopRecord

	var visit func(id cast.BlockID)
	visit = func(id cast.BlockID) {
		if visited[id] {
			return
		}
		// Visit all non-back-edge predecessors before emitting this block.
		for _, e := range g.inEdges[id] {
			if !e.IsBack && !visited[e.Src] {
				visit(e.Src)
			}
		}
		if visited[id] {
			return
		}
		visited[id] = true

		kind := g.term[id]
		if kind == cast.TermGotoBreak && len(loopStack) > 0 {
			top := loopStack[len(loopStack)-1]
			top.PendingGotoBreaks = append(top.PendingGotoBreaks, id)
			order = append(order, id)
			return
		}

		order = append(order, id)

		if lr, ok := g.loopByHead[id]; ok {
			loopStack = append(loopStack, lr)
		}

		for _, succ := range orderedSuccs(g, id) {
			visit(succ)
		}

		// The back edge naturally points back at the head; C6 re-enters the loop by rewinding
		// its index rather than this function splicing the head a second time into order.
		if lr := popIfTail(loopStack, id); lr != nil {
			loopStack = loopStack[:len(loopStack)-1]
			lr.Completed = true
		}
	}

	visit(entry)

	// Append any entry-unreachable blocks so the driver can see (and skip) them dynamically
	// (spec §4.5 step 5, last bullet).
	for id := range g.blocks {
		if !visited[id] {
			order = append(order, id)
			visited[id] = true
		}
	}
	return order
}

func orderedSuccs(g *Graph, id cast.BlockID) []cast.BlockID {
	b := g.blocks[id]
	succs := b.Succs()
	out := make([]cast.BlockID, 0, len(succs))
	for _, s := range succs {
		out = append(out, s.ID())
	}
	return out
}

func popIfTail(stack []*LoopRecord, id cast.BlockID) *LoopRecord {
	if len(stack) == 0 {
		return nil
	}
	top := stack[len(stack)-1]
	if top.Tail == id {
		return top
	}
	return nil
}

// UnrollingDelay re-exports config.UnrollingDelay for callers that only import cfgbuild.
const UnrollingDelay = config.UnrollingDelay
