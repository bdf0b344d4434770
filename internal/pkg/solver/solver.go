package solver

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/ohowland/opf_core/internal/pkg/opf"
)

// Status is the terminal condition reported by a solve.
type Status int

const (
	// StatusOptimal means the solver found and proved an optimum.
	StatusOptimal Status = iota
	// StatusInfeasible means no point satisfies the constraints.
	StatusInfeasible
	// StatusUnbounded means the objective can decrease without limit.
	StatusUnbounded
	// StatusSolverError means the solver failed internally or was unreachable.
	StatusSolverError
	// StatusTimeout means the solve did not finish within its deadline.
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusTimeout:
		return "timeout"
	default:
		return "solver-error"
	}
}

// ParseStatus maps a status string back to its value. Unknown strings map to
// StatusSolverError, matching how unrecognized remote termination conditions
// are treated.
func ParseStatus(s string) Status {
	switch s {
	case "optimal":
		return StatusOptimal
	case "infeasible":
		return StatusInfeasible
	case "unbounded":
		return StatusUnbounded
	case "timeout":
		return StatusTimeout
	default:
		return StatusSolverError
	}
}

// Solution is the outcome of one solve: per-bus values, the objective, the
// terminal status and whatever diagnostic text the solver produced. Qg and V
// are nil for DC solves.
type Solution struct {
	RunID     uuid.UUID
	Status    Status
	Objective float64
	Pg        []float64
	Qg        []float64
	V         []float64
	Theta     []float64
	Log       string
}

// Point converts the solution into a model evaluation point.
func (s Solution) Point() opf.Point {
	return opf.Point{Pg: s.Pg, Qg: s.Qg, V: s.V, Theta: s.Theta}
}

// Solver dispatches a built model to a backend and blocks until the backend
// returns a result or errors. A non-optimal Status is a reported condition,
// not a Go error; errors are reserved for transport and protocol failures.
// No backend retries automatically.
type Solver interface {
	Solve(m *opf.Model) (Solution, error)
}

// SolveError reports a failed solve with the solver's diagnostic text.
type SolveError struct {
	Backend string
	Msg     string
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("solver: %v: %v", e.Backend, e.Msg)
}

// Verify evaluates the model's balance residuals at the solved point and
// returns an error naming the worst violation beyond tol. Used to sanity
// check results returned by remote services.
func Verify(m *opf.Model, sol Solution, tol float64) error {
	if len(sol.Pg) != m.NumBus() || len(sol.Theta) != m.NumBus() {
		return &SolveError{Backend: "verify", Msg: "solution dimension does not match model"}
	}
	p := sol.Point()

	worst := 0.0
	worstBus := -1
	worstEq := ""
	for i := 0; i < m.NumBus(); i++ {
		if r := math.Abs(m.RealResidual(i, p)); r > worst {
			worst, worstBus, worstEq = r, i, "real"
		}
		if r := math.Abs(m.ReactiveResidual(i, p)); r > worst {
			worst, worstBus, worstEq = r, i, "reactive"
		}
	}
	if worst > tol {
		return &SolveError{
			Backend: "verify",
			Msg: fmt.Sprintf("%v balance residual %g at bus %d exceeds %g",
				worstEq, worst, worstBus, tol),
		}
	}
	return nil
}
