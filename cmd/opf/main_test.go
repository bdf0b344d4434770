package main

import (
	"testing"

	"gotest.tools/assert"

	"github.com/ohowland/opf_core/internal/pkg/opf"
)

func TestReadRunConfig(t *testing.T) {
	cfg, err := readRunConfig("./opf_test_config.json")
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, cfg.CasePath, "../../config/case/ieee5.json")
	assert.Equal(t, cfg.Formulation, "dc")
	assert.Equal(t, cfg.Solver, "local")
	assert.Equal(t, cfg.NEOS.Email, "operator@example.com")
	assert.Equal(t, cfg.VerifyTol, 1e-6)
}

func TestBuildFormulation(t *testing.T) {
	f, err := buildFormulation(runConfig{Formulation: "ac"})
	assert.NilError(t, err)
	assert.Equal(t, f.Kind(), opf.KindAC)

	f, err = buildFormulation(runConfig{Formulation: "dc"})
	assert.NilError(t, err)
	assert.Equal(t, f.Kind(), opf.KindDC)

	_, err = buildFormulation(runConfig{Formulation: "newton"})
	assert.Assert(t, err != nil)
}

func TestBuildSolver(t *testing.T) {
	_, err := buildSolver(runConfig{Solver: "local"})
	assert.NilError(t, err)

	_, err = buildSolver(runConfig{Solver: "neos"})
	assert.NilError(t, err)

	_, err = buildSolver(runConfig{Solver: "cplex"})
	assert.Assert(t, err != nil)
}

func TestReference(t *testing.T) {
	assert.Equal(t, reference(runConfig{}), opf.DefaultReference())

	ref := opf.Reference{Bus: 0, Voltage: 1.06}
	assert.Equal(t, reference(runConfig{Reference: &ref}), ref)
}
