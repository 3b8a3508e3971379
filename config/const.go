package config

// This file hosts non-user-configurable parameters — development and testing constants.

// UnrollingDelay is the number of back-edge visits the fixpoint driver lets pass with a plain
// join before it applies widening (spec §4.6 step 6, "U = 5, the unrolling delay"). Setting it
// too low risks losing precision we could otherwise have kept; setting it too high delays
// termination without buying more precision once the domain's widening-chain height is reached.
const UnrollingDelay = 5

// GotoBreakLabelPrefix is the literal label prefix that marks a goto as a loop-exit break
// rather than a plain goto (spec §4.5 step 1, §9 "goto handling").
const GotoBreakLabelPrefix = "while_break"

// TempVarPrefix is the name prefix for compiler-introduced temporaries (spec §4.3
// "Temporaries"): shift-result placeholders, ternary results, and the unconstrained values of
// unmodeled calls, unsupported constructs and unmodeled unary operators.
const TempVarPrefix = "__tmp_"

// DefaultAssertFuncNames lists call names recognized as assert-like narrowing points (see
// SPEC_FULL.md §11, "assert-like calls recognized as narrowing, not verified").
var DefaultAssertFuncNames = []string{"assert"}
