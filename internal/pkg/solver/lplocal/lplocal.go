// Package lplocal solves linearized models in-process with gonum's simplex
// implementation. Nonlinear models are refused; they need a nonlinear
// backend such as the remote solve service.
package lplocal

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/ohowland/opf_core/internal/pkg/opf"
	"github.com/ohowland/opf_core/internal/pkg/solver"
)

const simplexTol = 1e-7

// Solver is the local linear backend.
type Solver struct{}

// New returns the local LP solver.
func New() *Solver {
	return &Solver{}
}

// Solve assembles the model into general-form LP data, converts to standard
// form and runs the simplex method. Blocks until the solve finishes.
func (s *Solver) Solve(m *opf.Model) (solver.Solution, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return solver.Solution{}, err
	}

	if m.Kind() != opf.KindDC {
		serr := &solver.SolveError{Backend: "lplocal", Msg: "nonlinear model requires a nonlinear solver"}
		return solver.Solution{RunID: pid, Status: solver.StatusSolverError, Log: serr.Msg}, serr
	}

	c, aeq, beq, gin, hin := assemble(m)

	// All bounds infinite leaves no inequality rows; Convert takes a nil G.
	var g mat.Matrix
	if gin != nil {
		g = gin
	}
	cStd, aStd, bStd := lp.Convert(c, g, hin, aeq, beq)
	_, xStd, err := lp.Simplex(cStd, aStd, bStd, simplexTol, nil)
	if err != nil {
		return failure(pid, err)
	}

	// Standard form splits each free variable into a positive pair.
	n := m.NumBus()
	x := make([]float64, 2*n)
	for i := range x {
		x[i] = xStd[i] - xStd[2*n+i]
	}

	sol := solver.Solution{
		RunID:  pid,
		Status: solver.StatusOptimal,
		Pg:     x[:n],
		Theta:  x[n : 2*n],
		Log:    "lplocal: simplex converged",
	}

	// Fixed variables are held exactly; simplex round-off must not leak
	// into the reported slack values.
	for i := 0; i < n; i++ {
		if m.Pg[i].Fixed {
			sol.Pg[i] = m.Pg[i].Value
		}
		if m.Theta[i].Fixed {
			sol.Theta[i] = m.Theta[i].Value
		}
	}

	sol.Objective = m.Cost(sol.Pg)
	return sol, nil
}

func failure(pid uuid.UUID, err error) (solver.Solution, error) {
	status := solver.StatusSolverError
	switch err {
	case lp.ErrInfeasible:
		status = solver.StatusInfeasible
	case lp.ErrUnbounded:
		status = solver.StatusUnbounded
	}
	sol := solver.Solution{
		RunID:  pid,
		Status: status,
		Log:    fmt.Sprintf("lplocal: %v", err),
	}
	if status != solver.StatusSolverError {
		// Infeasible and unbounded are reported conditions, not failures.
		return sol, nil
	}
	return sol, &solver.SolveError{Backend: "lplocal", Msg: err.Error()}
}

// assemble lays the model out as minimize c'x subject to Aeq x = beq and
// Gin x <= hin over x = [Pg; Theta], all variables free.
func assemble(m *opf.Model) (c []float64, aeq *mat.Dense, beq []float64, gin *mat.Dense, hin []float64) {
	n := m.NumBus()
	cs := m.Case()

	c = make([]float64, 2*n)
	for _, i := range cs.GeneratorBuses() {
		c[i] = cs.Buses[i].CostB
	}

	var eqRows, eqRHS []float64
	var inRows, inRHS []float64

	// Nodal balance: Pg_i - sum_k B_ik (theta_i - theta_k) = Pload_i.
	for i := 0; i < n; i++ {
		row := make([]float64, 2*n)
		row[i] = 1.0
		var rowSum float64
		for k := 0; k < n; k++ {
			rowSum += cs.B.At(i, k)
			if k != i {
				row[n+k] = cs.B.At(i, k)
			}
		}
		row[n+i] = cs.B.At(i, i) - rowSum
		eqRows = append(eqRows, row...)
		eqRHS = append(eqRHS, cs.Buses[i].LoadP)
	}

	// Variable fixes as equalities, bounds as inequality pairs.
	addVar := func(col int, v opf.Variable) {
		if v.Fixed {
			row := make([]float64, 2*n)
			row[col] = 1.0
			eqRows = append(eqRows, row...)
			eqRHS = append(eqRHS, v.Value)
			return
		}
		if !math.IsInf(v.Upper, 1) {
			row := make([]float64, 2*n)
			row[col] = 1.0
			inRows = append(inRows, row...)
			inRHS = append(inRHS, v.Upper)
		}
		if !math.IsInf(v.Lower, -1) {
			row := make([]float64, 2*n)
			row[col] = -1.0
			inRows = append(inRows, row...)
			inRHS = append(inRHS, -v.Lower)
		}
	}
	for i := 0; i < n; i++ {
		addVar(i, m.Pg[i])
	}
	for i := 0; i < n; i++ {
		addVar(n+i, m.Theta[i])
	}

	aeq = mat.NewDense(len(eqRHS), 2*n, eqRows)
	if len(inRHS) > 0 {
		gin = mat.NewDense(len(inRHS), 2*n, inRows)
	}
	return c, aeq, eqRHS, gin, inRHS
}
