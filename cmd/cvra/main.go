// Command cvra is the analyzer's CLI driver: `cvra <input.c> <dump_file>`. It parses flags,
// selects the numerical domain backend, reads the translation unit, runs the analysis engine per
// function, and writes the dump artifact.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/viant/afs"

	"cvra"
	"cvra/config"
	"cvra/diagnostic"
	"cvra/frontend"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("cvra", flag.ContinueOnError)
	fs.SetOutput(stderr)

	domainFlag := fs.String("domain", string(config.Intervals), "numerical domain: intervals, octagons, or polyhedra")
	unrollFlag := fs.Int("unrolling_delay", config.UnrollingDelay, "widen every Uth back-edge visit")
	headerPathFlag := fs.String("header_search_path", os.Getenv("CVRA_HEADER_SEARCH_PATH"), "colon-separated header search path passed to the C front-end")
	verboseFlag := fs.Bool("verbose", false, "log engine progress to stderr")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, "usage: cvra <input.c> <dump_file>")
		return 1
	}
	inputPath, dumpPath := fs.Arg(0), fs.Arg(1)

	cfg := config.Default()
	cfg.Domain = config.Domain(*domainFlag)
	cfg.UnrollingDelay = *unrollFlag
	cfg.HeaderSearchPath = *headerPathFlag
	cfg.Verbose = *verboseFlag

	if err := cfg.ValidateHeaderSearchPath(cfg.HeaderSearchPath); err != nil {
		fmt.Fprintf(stderr, "cvra: %v\n", err)
		return 1
	}

	log := config.NewLogger(stderr, cfg.Verbose)
	backend, err := cvra.NewBackend(cfg.Domain)
	if err != nil {
		fmt.Fprintf(stderr, "cvra: %v\n", err)
		return 1
	}

	funcs, classifier, err := frontend.Default().ParseFile(inputPath)
	if err != nil {
		fmt.Fprintf(stderr, "cvra: %v\n", err)
		return 1
	}

	var out bytes.Buffer
	for _, fn := range funcs {
		report := func() (r diagnostic.FunctionReport) {
			defer func() {
				if rec := recover(); rec != nil {
					fmt.Fprintf(stderr, "cvra: fatal error analyzing %s: %v\n", fn.Name, rec)
				}
			}()
			return cvra.AnalyzeFunction(fn, classifier, backend, &cfg, log)
		}()
		diagnostic.WriteHuman(stdout, report)
		if err := diagnostic.WriteDumpFile(&out, report); err != nil {
			fmt.Fprintf(stderr, "cvra: writing dump: %v\n", err)
			return 1
		}
	}

	fsvc := afs.New()
	if err := fsvc.Upload(context.Background(), dumpPath, 0644, bytes.NewReader(out.Bytes())); err != nil {
		fmt.Fprintf(stderr, "cvra: writing %s: %v\n", dumpPath, err)
		return 1
	}

	return 0
}
