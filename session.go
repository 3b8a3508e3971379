// Package cvra is the top-level entry point: it wires the environment registry (C2), expression
// builder (C3), statement evaluator (C4), CFG preprocessor (C5), fixpoint driver (C6), and
// per-block store (C7) around a chosen domain.Backend (C1) to analyze one C function end to end,
// as a plain function call over a front-end-supplied cast.Func.
package cvra

import (
	"fmt"

	"cvra/cast"
	"cvra/cfgbuild"
	"cvra/config"
	"cvra/diagnostic"
	"cvra/domain"
	"cvra/domain/intervals"
	"cvra/domain/octagon"
	"cvra/domain/polyhedra"
	"cvra/env"
	"cvra/fixpoint"
)

// NewBackend resolves a config.Domain to its domain.Backend implementation (spec §6, "Domain
// backend selection").
func NewBackend(d config.Domain) (domain.Backend, error) {
	switch d {
	case config.Intervals:
		return intervals.New(), nil
	case config.Octagons:
		return octagon.New(), nil
	case config.Polyhedra:
		return polyhedra.New(), nil
	default:
		return nil, fmt.Errorf("cvra: unrecognized domain %q", d)
	}
}

// AnalyzeFunction runs the full C2-C7 pipeline over fn using the given backend and returns its
// rendered per-block report (spec §3 "Lifecycle", §4.6). It panics on a fatal condition (unknown
// C type, backend failure — spec §7); callers that analyze multiple functions should recover per
// function so one fatal function does not abort the whole translation unit.
func AnalyzeFunction(fn *cast.Func, classifier cast.TypeClassifier, backend domain.Backend, cfg *config.Config, log *config.Logger) diagnostic.FunctionReport {
	reg := env.NewRegistry()
	for _, p := range fn.Params {
		if err := reg.Declare(p.Name, p.Type); err != nil {
			panic(err)
		}
	}

	g := cfgbuild.Build(fn)
	driver := fixpoint.New(backend, reg, g, cfg.UnrollingDelay, cfg.AssertFuncNames, log)
	driver.Run(fn, fn.Reach)

	return diagnostic.BuildReport(fn.Name, backend.Name(), g, driver.Store, backend)
}
