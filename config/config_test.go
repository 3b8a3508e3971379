package config_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvra/config"
)

func TestParseDomainAcceptsKnownNames(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"intervals", "octagons", "polyhedra"} {
		d, err := config.ParseDomain(name)
		require.NoError(t, err)
		assert.Equal(t, config.Domain(name), d)
	}
}

func TestParseDomainRejectsUnknownName(t *testing.T) {
	t.Parallel()

	_, err := config.ParseDomain("ellipsoids")
	assert.Error(t, err)
}

func TestDefaultConfigUsesIntervalsAndDefaultAssertNames(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	assert.Equal(t, config.Intervals, cfg.Domain)
	assert.Equal(t, config.UnrollingDelay, cfg.UnrollingDelay)
	assert.Equal(t, []string{"assert"}, cfg.AssertFuncNames)
}

func TestDefaultConfigAssertNamesAreIndependentSlice(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.AssertFuncNames[0] = "mutated"
	assert.Equal(t, []string{"assert"}, config.DefaultAssertFuncNames)
}

func TestLoadYAMLOverridesOnlySetFields(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.HeaderSearchPath = "/usr/include"

	yamlDoc := `
domain: octagons
verbose: true
`
	require.NoError(t, cfg.LoadYAML(strings.NewReader(yamlDoc)))

	assert.Equal(t, config.Octagons, cfg.Domain)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "/usr/include", cfg.HeaderSearchPath, "unset fields in the overlay must not clobber the receiver")
	assert.Equal(t, config.UnrollingDelay, cfg.UnrollingDelay)
}

func TestLoadYAMLEmptyDocumentIsNoOp(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	require.NoError(t, cfg.LoadYAML(strings.NewReader("")))
	assert.Equal(t, config.Default(), cfg)
}

func TestValidateHeaderSearchPathAcceptsEmpty(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	assert.NoError(t, cfg.ValidateHeaderSearchPath(""))
}

func TestValidateHeaderSearchPathRejectsEmptyEntry(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	assert.Error(t, cfg.ValidateHeaderSearchPath("/usr/include::/opt/include"))
}

func TestValidateHeaderSearchPathAcceptsColonSeparatedList(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	assert.NoError(t, cfg.ValidateHeaderSearchPath("/usr/include:/opt/include"))
}

func TestLoggerPrintfSilentWhenNotVerbose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := config.NewLogger(&buf, false)
	log.Printf("visited block %d", 3)

	assert.Empty(t, buf.String())
}

func TestLoggerPrintfWritesWhenVerbose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := config.NewLogger(&buf, true)
	log.Printf("visited block %d", 3)

	assert.Equal(t, "visited block 3\n", buf.String())
}

func TestLoggerPrintfNilReceiverIsNoOp(t *testing.T) {
	t.Parallel()

	var log *config.Logger
	assert.NotPanics(t, func() { log.Printf("hello") })
}
