package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Domain is the numerical abstract domain backend selected for a session (spec §6,
// "Domain backend selection"). Once chosen it is fixed for the session.
type Domain string

const (
	Intervals Domain = "intervals"
	Octagons  Domain = "octagons"
	Polyhedra Domain = "polyhedra"
)

// ParseDomain validates a domain name from a flag or config file.
func ParseDomain(s string) (Domain, error) {
	switch Domain(s) {
	case Intervals, Octagons, Polyhedra:
		return Domain(s), nil
	default:
		return "", fmt.Errorf("unknown domain %q: must be one of intervals, octagons, polyhedra", s)
	}
}

// Config is cvra's user-facing configuration (spec §6, "Configuration" table).
type Config struct {
	// Domain selects the lattice backend A lives in.
	Domain Domain `yaml:"domain"`
	// UnrollingDelay overrides the default widen-every-Uth-visit delay.
	UnrollingDelay int `yaml:"unrolling_delay"`
	// HeaderSearchPath is a ':'-separated list of directories passed verbatim to the C
	// front-end; cvra only validates that each entry is non-empty.
	HeaderSearchPath string `yaml:"header_search_path"`
	// AssertFuncNames are call names treated as narrowing assert-like calls (SPEC_FULL §11).
	AssertFuncNames []string `yaml:"assert_func_names"`
	// Verbose turns on config.Logger output.
	Verbose bool `yaml:"verbose"`
}

// Default returns the configuration cvra uses when neither a project file nor flags override
// a field.
func Default() Config {
	return Config{
		Domain:           Intervals,
		UnrollingDelay:   UnrollingDelay,
		HeaderSearchPath: os.Getenv("CVRA_HEADER_SEARCH_PATH"),
		AssertFuncNames:  append([]string(nil), DefaultAssertFuncNames...),
	}
}

// LoadYAML merges a YAML project file (e.g. ".cvra.yaml") on top of the receiver. Missing
// fields in the document keep the receiver's current values; an empty document leaves the
// receiver unchanged and is not an error. LoadYAML reads from r and never opens a file itself.
func (c *Config) LoadYAML(r io.Reader) error {
	var overlay Config
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&overlay); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode cvra config: %w", err)
	}
	if overlay.Domain != "" {
		c.Domain = overlay.Domain
	}
	if overlay.UnrollingDelay != 0 {
		c.UnrollingDelay = overlay.UnrollingDelay
	}
	if overlay.HeaderSearchPath != "" {
		c.HeaderSearchPath = overlay.HeaderSearchPath
	}
	if len(overlay.AssertFuncNames) > 0 {
		c.AssertFuncNames = overlay.AssertFuncNames
	}
	if overlay.Verbose {
		c.Verbose = true
	}
	return nil
}

// ValidateHeaderSearchPath checks that every ':'-separated entry is non-empty (spec §6 CLI
// surface, "invalid header_search_path -> exit code 1").
func (c Config) ValidateHeaderSearchPath(p string) error {
	if p == "" {
		return nil
	}
	for _, entry := range strings.Split(p, ":") {
		if strings.TrimSpace(entry) == "" {
			return fmt.Errorf("empty entry in header_search_path %q", p)
		}
	}
	return nil
}
