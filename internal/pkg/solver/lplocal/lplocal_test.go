package lplocal

import (
	"math"
	"testing"

	"gotest.tools/assert"

	"github.com/ohowland/opf_core/internal/pkg/busdata"
	"github.com/ohowland/opf_core/internal/pkg/opf"
	"github.com/ohowland/opf_core/internal/pkg/solver"
)

// ieee5Case is the IEEE 5-bus test system: three generators, 1.65 pu load.
func ieee5Case(t *testing.T) *busdata.Case {
	buses := []busdata.Bus{
		{VoltMax: 1.06, VoltMin: 1.06, AngleMax: math.Pi, AngleMin: -math.Pi,
			GenPMax: 2.0, GenQMax: 1.5, GenQMin: -1.5, CostB: 14.0},
		{VoltMax: 1.05, VoltMin: 0.95, AngleMax: math.Pi, AngleMin: -math.Pi,
			LoadP: 0.2, LoadQ: 0.1, GenPMax: 0.8, GenQMax: 0.6, GenQMin: -0.4,
			CostA: 15.0, CostB: 16.0, CostC: 10.0},
		{VoltMax: 1.05, VoltMin: 0.95, AngleMax: math.Pi, AngleMin: -math.Pi,
			LoadP: 0.45, LoadQ: 0.15, GenPMax: 0.5, GenQMax: 0.4, GenQMin: -0.3,
			CostA: 18.0, CostB: 20.0, CostC: 12.0},
		{VoltMax: 1.05, VoltMin: 0.95, AngleMax: math.Pi, AngleMin: -math.Pi,
			LoadP: 0.4, LoadQ: 0.05},
		{VoltMax: 1.05, VoltMin: 0.95, AngleMax: math.Pi, AngleMin: -math.Pi,
			LoadP: 0.6, LoadQ: 0.1},
	}
	g, b, err := busdata.AdmittanceFromLines(5, []busdata.Line{
		{From: 0, To: 1, R: 0.02, X: 0.06},
		{From: 0, To: 2, R: 0.08, X: 0.24},
		{From: 1, To: 2, R: 0.06, X: 0.18},
		{From: 1, To: 3, R: 0.06, X: 0.18},
		{From: 1, To: 4, R: 0.04, X: 0.12},
		{From: 2, To: 3, R: 0.01, X: 0.03},
		{From: 3, To: 4, R: 0.08, X: 0.24},
	})
	if err != nil {
		t.Fatal(err)
	}
	c, err := busdata.NewCase("ieee5", buses, g, b)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestDCSolveIEEE5(t *testing.T) {
	c := ieee5Case(t)
	m, err := opf.DCOPF{}.Build(c, opf.Reference{Bus: 0, Voltage: 1.06, Angle: 0.0})
	if err != nil {
		t.Fatal(err)
	}

	sol, err := New().Solve(m)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, sol.Status, solver.StatusOptimal)

	// The cheapest generator covers the whole 1.65 pu load: 14 * 1.65.
	assert.Assert(t, math.Abs(sol.Objective-23.10)/23.10 < 0.005)

	// Slack angle is held at the reference exactly.
	assert.Equal(t, sol.Theta[0], 0.0)

	// Lossless balance: total generation equals total load.
	var gen float64
	for _, pg := range sol.Pg {
		gen += pg
	}
	assert.Assert(t, math.Abs(gen-c.TotalLoad()) < 1e-6)

	// Generation stays inside its bounds, non-generator buses at zero.
	for i, pg := range sol.Pg {
		assert.Assert(t, pg >= c.Buses[i].GenPMin-1e-9)
		assert.Assert(t, pg <= c.Buses[i].GenPMax+1e-9)
	}
	assert.Equal(t, sol.Pg[3], 0.0)
	assert.Equal(t, sol.Pg[4], 0.0)

	// DC solutions carry no reactive power or voltage magnitude.
	assert.Assert(t, sol.Qg == nil)
	assert.Assert(t, sol.V == nil)

	assert.NilError(t, solver.Verify(m, sol, 1e-6))
}

func TestDCSolveInfeasible(t *testing.T) {
	c := ieee5Case(t)
	// Cap every generator below the system load.
	for i := range c.Buses {
		if c.Buses[i].IsGenerator() {
			c.Buses[i].GenPMax = 0.1
		}
	}

	m, err := opf.DCOPF{}.Build(c, opf.DefaultReference())
	if err != nil {
		t.Fatal(err)
	}

	sol, err := New().Solve(m)
	assert.NilError(t, err)
	assert.Equal(t, sol.Status, solver.StatusInfeasible)
}

func TestDCSolveUnboundedVariables(t *testing.T) {
	// Every free variable carries infinite bounds, so the assembled LP has
	// no inequality rows at all; the balance equalities still pin the
	// dispatch.
	buses := []busdata.Bus{
		{VoltMax: 1.05, VoltMin: 0.95, AngleMax: math.Inf(1), AngleMin: math.Inf(-1),
			GenPMax: math.Inf(1), GenPMin: math.Inf(-1), CostB: 14.0},
		{VoltMax: 1.05, VoltMin: 0.95, AngleMax: math.Inf(1), AngleMin: math.Inf(-1),
			LoadP: 0.5},
	}
	g, b, err := busdata.AdmittanceFromLines(2, []busdata.Line{
		{From: 0, To: 1, R: 0.02, X: 0.06},
	})
	if err != nil {
		t.Fatal(err)
	}
	c, err := busdata.NewCase("twobus", buses, g, b)
	if err != nil {
		t.Fatal(err)
	}

	m, err := opf.DCOPF{}.Build(c, opf.DefaultReference())
	if err != nil {
		t.Fatal(err)
	}

	sol, err := New().Solve(m)
	assert.NilError(t, err)
	assert.Equal(t, sol.Status, solver.StatusOptimal)
	assert.Assert(t, math.Abs(sol.Pg[0]-0.5) < 1e-9)
	assert.Assert(t, math.Abs(sol.Objective-7.0) < 1e-6)
	assert.NilError(t, solver.Verify(m, sol, 1e-6))
}

func TestRefusesNonlinearModel(t *testing.T) {
	c := ieee5Case(t)
	m, err := opf.ACOPF{}.Build(c, opf.Reference{Bus: 0, Voltage: 1.06})
	if err != nil {
		t.Fatal(err)
	}

	sol, err := New().Solve(m)
	assert.Assert(t, err != nil)
	assert.Equal(t, sol.Status, solver.StatusSolverError)
}
