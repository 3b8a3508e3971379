// Package env implements the environment & variable registry (component C2): variable
// declaration, kind classification from a C type string, and the pending-increment counters
// that model `++`/`--` lazily instead of flushing on every occurrence.
package env

import (
	"fmt"
	"strings"

	"cvra/config"
	"cvra/domain"
)

// cTypeKinds maps C type spellings to their domain.Kind; ClassifyKind strips a leading const or
// signed qualifier before looking a spelling up here. Unknown spellings are a fatal error (spec §4.2, "unknown C type → fatal").
var cTypeKinds = map[string]domain.Kind{
	"char": domain.IntKind, "signed char": domain.IntKind, "unsigned char": domain.IntKind,
	"short": domain.IntKind, "short int": domain.IntKind,
	"unsigned short": domain.IntKind, "unsigned short int": domain.IntKind,
	"int": domain.IntKind, "signed": domain.IntKind, "signed int": domain.IntKind,
	"unsigned": domain.IntKind, "unsigned int": domain.IntKind,
	"long": domain.IntKind, "long int": domain.IntKind,
	"unsigned long": domain.IntKind, "unsigned long int": domain.IntKind,
	"long long": domain.IntKind, "long long int": domain.IntKind,
	"unsigned long long": domain.IntKind, "unsigned long long int": domain.IntKind,
	"const int": domain.IntKind, "const unsigned int": domain.IntKind, "const char": domain.IntKind,
	"float": domain.RealKind, "double": domain.RealKind, "long double": domain.RealKind,
	"const float": domain.RealKind, "const double": domain.RealKind,
}

// ClassifyKind implements the §3 kind rule. A leading "const " and then a leading "signed " are
// stripped before the table lookup. The bool is false for a C type this analyzer does not
// recognize.
func ClassifyKind(cType string) (domain.Kind, bool) {
	t := strings.TrimPrefix(cType, "const ")
	t = strings.TrimPrefix(t, "signed ")
	k, ok := cTypeKinds[t]
	return k, ok
}

// UnknownTypeError is fatal per spec §4.2 / §7 ("unknown C type → fatal").
type UnknownTypeError struct {
	Name, CType string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("variable %q has unrecognized C type %q", e.Name, e.CType)
}

// Registry is C2: the live set of declared variables, their kinds, and their pending-increment
// counters, plus the domain.Env they project onto. One Registry per analyzed function.
type Registry struct {
	env     domain.Env
	kinds   map[string]domain.Kind
	pending map[string]int64
	tempSeq int
}

func NewRegistry() *Registry {
	return &Registry{kinds: map[string]domain.Kind{}, pending: map[string]int64{}}
}

// Env is the current environment, handed to the domain backend by C6/C4.
func (r *Registry) Env() domain.Env { return r.env }

// Declare classifies cType and extends the environment. Idempotent: redeclaring an
// already-tracked name is a no-op (spec §4.2).
func (r *Registry) Declare(name, cType string) error {
	if _, ok := r.kinds[name]; ok {
		return nil
	}
	k, ok := ClassifyKind(cType)
	if !ok {
		return &UnknownTypeError{Name: name, CType: cType}
	}
	r.kinds[name] = k
	r.pending[name] = 0
	r.env = r.env.WithVar(name, k)
	return nil
}

// Kind reports the kind of an already-declared name; ok is false if name is untracked.
func (r *Registry) Kind(name string) (domain.Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

func (r *Registry) Pending(name string) int64 { return r.pending[name] }

func (r *Registry) SetPending(name string, n int64) {
	if r.kinds[name] == domain.RealKind {
		return // invariant: counter is always 0 for real variables (spec §3)
	}
	r.pending[name] = n
}

func (r *Registry) ResetPending(name string) { r.pending[name] = 0 }

// FlushAllPending applies spec §4.2's flush_all_pending: every variable with a nonzero counter
// gets `name := name + counter` folded into a, then its counter zeroes. Order across names does
// not matter (each update commutes with the others).
func (r *Registry) FlushAllPending(backend domain.Backend, a domain.Value) domain.Value {
	for name, n := range r.pending {
		if n == 0 {
			continue
		}
		k := r.kinds[name]
		e := domain.BinOp{Op: "+", L: domain.VarRef{Name: name, K: k}, R: domain.ConstInt{V: n}, K: k}
		a = backend.Assign(a, name, e)
		r.pending[name] = 0
	}
	return a
}

// NewTemp allocates the next __tmp_<n> name for the current function and records its kind.
func (r *Registry) NewTemp(k domain.Kind) string {
	name := fmt.Sprintf("%s%d", config.TempVarPrefix, r.tempSeq)
	r.tempSeq++
	r.kinds[name] = k
	r.pending[name] = 0
	r.env = r.env.WithVar(name, k)
	return name
}

// RemoveTemporaries implements spec §4.3's remove_temporaries: drop every __tmp_ dimension from
// env (projecting a accordingly) and reset the temporary counter.
func (r *Registry) RemoveTemporaries(backend domain.Backend, a domain.Value) domain.Value {
	newEnv := r.env.WithoutPrefix(config.TempVarPrefix)
	if newEnv.Equal(r.env) {
		r.tempSeq = 0
		return a
	}
	for name := range r.kinds {
		if hasTempPrefix(name) {
			delete(r.kinds, name)
			delete(r.pending, name)
		}
	}
	r.env = newEnv
	r.tempSeq = 0
	return backend.ChangeEnv(a, newEnv, true)
}

func hasTempPrefix(s string) bool {
	return len(s) >= len(config.TempVarPrefix) && s[:len(config.TempVarPrefix)] == config.TempVarPrefix
}
