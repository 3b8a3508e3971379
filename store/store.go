// Package store implements the per-block result store (component C7): post-state, and — for
// branching blocks — the reified positive/negative condition abstractions; for loop-source
// (back-edge tail) blocks, the previous widened post-state used by delayed widening. A block's
// pre-state is not recorded. Keys small per-site result records by a stable block identifier.
package store

import (
	"cvra/cast"
	"cvra/domain"
	"cvra/util/orderedmap"
)

// Record is one block's C7 entry.
type Record struct {
	Terminator cast.TerminatorKind

	Post domain.Value

	// CondAbs/NegCondAbs hold (K+, K-) reified as abstract values, set when Terminator is a
	// branching kind (if/while/do-while/for).
	CondAbs, NegCondAbs domain.Value

	// LoopExitPrev is the previous widened post-state for a back-edge tail block, used by
	// C6 step 6; nil until the first widening pass.
	LoopExitPrev domain.Value
}

// Store holds every block's Record for one function, in the order each block was first visited
// (the orderedmap lets diagnostic.BuildReport recover visit order without re-sorting by ID).
type Store struct {
	records *orderedmap.OrderedMap[cast.BlockID, *Record]
}

func New() *Store { return &Store{records: orderedmap.New[cast.BlockID, *Record]()} }

func (s *Store) Get(id cast.BlockID) *Record {
	r, ok := s.records.Load(id)
	if !ok {
		r = &Record{}
		s.records.Store(id, r)
	}
	return r
}

// Post returns the post-state recorded for id, or nil if the block has not been evaluated yet.
func (s *Store) Post(id cast.BlockID) domain.Value {
	r, ok := s.records.Load(id)
	if !ok {
		return nil
	}
	return r.Post
}

func (s *Store) SetPost(id cast.BlockID, a domain.Value) { s.Get(id).Post = a }

func (s *Store) SetTerminator(id cast.BlockID, kind cast.TerminatorKind) {
	s.Get(id).Terminator = kind
}

func (s *Store) SetConditionAbs(id cast.BlockID, pos, neg domain.Value) {
	r := s.Get(id)
	r.CondAbs, r.NegCondAbs = pos, neg
}

func (s *Store) LoopExitPrev(id cast.BlockID) domain.Value { return s.Get(id).LoopExitPrev }

func (s *Store) SetLoopExitPrev(id cast.BlockID, a domain.Value) { s.Get(id).LoopExitPrev = a }

// VisitOrder returns every block ID that has a Record, in the order each was first visited.
func (s *Store) VisitOrder() []cast.BlockID {
	ids := make([]cast.BlockID, 0, len(s.records.Pairs))
	for _, p := range s.records.Pairs {
		ids = append(ids, p.Key)
	}
	return ids
}
