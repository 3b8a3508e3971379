// Package diagnostic renders one function's analysis results to the dump artifact spec §6
// describes: per block, the terminator kind, post-state, and — for branching blocks — the two
// condition abstractions; per function, the final per-block table. Facts are collected per site
// during the fixpoint pass and rendered once at the end, through a plain io.Writer rather than a
// host analysis.Pass sink.
package diagnostic

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/klauspost/compress/s2"

	"cvra/cast"
	"cvra/cfgbuild"
	"cvra/domain"
	"cvra/store"
)

// BlockReport is one block's rendered result.
type BlockReport struct {
	ID         cast.BlockID
	Terminator cast.TerminatorKind
	Post       string
	CondAbs    string
	NegCondAbs string
}

// FunctionReport is the full per-function table, in the order the fixpoint driver first visited
// each block (spec §6, "per function, the final per-block table").
type FunctionReport struct {
	Name    string
	Backend string
	Blocks  []BlockReport
}

func terminatorName(k cast.TerminatorKind) string {
	switch k {
	case cast.TermIf:
		return "if"
	case cast.TermWhile:
		return "while"
	case cast.TermDoWhile:
		return "do-while"
	case cast.TermFor:
		return "for"
	case cast.TermGoto:
		return "goto"
	case cast.TermGotoBreak:
		return "goto-break"
	default:
		return "none"
	}
}

// BuildReport walks every block s holds a Record for, in visit order (the order C6 first reached
// each block), and renders it through backend. Blocks fixpoint never visited (unreachable code)
// are omitted, matching the fixpoint driver's own reachability gate.
func BuildReport(funcName, backendName string, g *cfgbuild.Graph, s *store.Store, backend domain.Backend) FunctionReport {
	fr := FunctionReport{Name: funcName, Backend: backendName}
	for _, id := range s.VisitOrder() {
		rec := s.Get(id)
		br := BlockReport{ID: id, Terminator: g.Terminator(id)}
		if rec.Post != nil {
			br.Post = backend.Print(rec.Post)
		}
		if rec.CondAbs != nil {
			br.CondAbs = backend.Print(rec.CondAbs)
		}
		if rec.NegCondAbs != nil {
			br.NegCondAbs = backend.Print(rec.NegCondAbs)
		}
		fr.Blocks = append(fr.Blocks, br)
	}
	return fr
}

// WriteHuman renders fr to w for interactive/terminal consumption, using color to separate
// structural labels from abstract-value payloads (spec §6, "format... delegated to the backend").
func WriteHuman(w io.Writer, fr FunctionReport) {
	header := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgYellow)
	fmt.Fprintf(w, "%s (%s)\n", header.Sprint(fr.Name), fr.Backend)
	for _, b := range fr.Blocks {
		fmt.Fprintf(w, "  %s %d: %s %s\n", label.Sprint("block"), b.ID, terminatorName(b.Terminator), b.Post)
		if b.CondAbs != "" || b.NegCondAbs != "" {
			fmt.Fprintf(w, "    %s %s\n    %s %s\n",
				label.Sprint("K+:"), b.CondAbs, label.Sprint("K-:"), b.NegCondAbs)
		}
	}
}

// WriteDumpFile writes fr as s2-compressed text to w — the `<dump_file>` artifact the CLI
// surface (spec §6) writes. s2 (klauspost/compress) gives a fast, streaming-friendly frame
// format well suited to a write-once diagnostic dump, without pulling in gzip's slower balance
// of speed/ratio for a use case that is not size-sensitive.
func WriteDumpFile(w io.Writer, fr FunctionReport) error {
	sw := s2.NewWriter(w)
	defer sw.Close()
	fmt.Fprintf(sw, "function %s backend=%s\n", fr.Name, fr.Backend)
	for _, b := range fr.Blocks {
		fmt.Fprintf(sw, "block %d terminator=%s post=%s\n", b.ID, terminatorName(b.Terminator), b.Post)
		if b.CondAbs != "" || b.NegCondAbs != "" {
			fmt.Fprintf(sw, "  K+=%s K-=%s\n", b.CondAbs, b.NegCondAbs)
		}
	}
	return sw.Close()
}
