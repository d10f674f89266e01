package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	d := Default("main")
	assert.NoError(t, d.Validate())
}

func TestValidateRejectsSequentialEngineUnderParallelConcurrency(t *testing.T) {
	d := Default("main")
	d.Engine = ToposortSeq
	d.Concurrency = ParallelConcurrent

	err := d.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot run under concurrency")
}

func TestValidateRejectsUnknownEngine(t *testing.T) {
	d := Default("main")
	d.Engine = "bogus"
	assert.Error(t, d.Validate())
}

func TestValidateRequiresName(t *testing.T) {
	d := Default("")
	assert.Error(t, d.Validate())
}

func TestLoadRoundTripsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "domain.yaml")

	contents := `
name: pricing
input_merging: true
transaction_mode: exclusive
engine: pulsecount
concurrency: parallel_concurrent
pool_concurrency: 4
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pricing", d.Name)
	assert.True(t, d.InputMerging)
	assert.Equal(t, Pulsecount, d.Engine)
	assert.Equal(t, ParallelConcurrent, d.Concurrency)
	assert.Equal(t, 4, d.PoolConcurrency)
}

func TestLoadRejectsInvalidCombination(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "domain.yaml")

	contents := `
name: bad
engine: toposort_seq
concurrency: parallel_concurrent
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/domain.yaml")
	assert.Error(t, err)
}
