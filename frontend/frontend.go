// Package frontend is the seam where a real C lexer/parser/CFG-builder plugs in (spec §1,
// "C front-end... out of scope... specified only at its interfaces"). cvra ships no C parser:
// this package only defines how the CLI driver obtains a cast.Func per translation unit and
// reports the plumbing error if none is registered.
package frontend

import (
	"errors"

	"cvra/cast"
)

// ErrNotImplemented is returned by the zero-value Parser: cvra's analysis engine (C1-C7) is the
// specified subject of this module, not a C parser (spec §1's "out of scope" list names the
// front-end as an external collaborator this repository does not implement).
var ErrNotImplemented = errors.New("frontend: no C front-end registered; cvra analyzes an already-built AST+CFG, it does not parse C itself")

// Parser turns one C translation unit into the functions cvra can analyze.
type Parser interface {
	ParseFile(path string) ([]*cast.Func, cast.TypeClassifier, error)
}

// Stub is the default Parser: it always fails with ErrNotImplemented. A production deployment
// registers a real Parser (wrapping e.g. a cgo binding to Clang's AST, or a pure-Go C frontend)
// via SetDefault.
type Stub struct{}

func (Stub) ParseFile(string) ([]*cast.Func, cast.TypeClassifier, error) {
	return nil, nil, ErrNotImplemented
}

var defaultParser Parser = Stub{}

// SetDefault registers the Parser the CLI driver uses. Call this from a program's init (or
// main, before flag parsing is acted on) to wire in a real C front-end.
func SetDefault(p Parser) { defaultParser = p }

// Default returns the currently registered Parser.
func Default() Parser { return defaultParser }
