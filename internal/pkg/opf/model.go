package opf

import (
	"math"

	"github.com/ohowland/opf_core/internal/pkg/busdata"
)

// Kind tags the formulation a model was built with.
type Kind int

const (
	// KindAC is the full nonlinear formulation.
	KindAC Kind = iota
	// KindDC is the linearized real-power formulation.
	KindDC
)

func (k Kind) String() string {
	if k == KindAC {
		return "AC_OPF"
	}
	return "DC_OPF"
}

// Reference identifies the slack bus and the values its voltage and angle
// are held at. The fixes are hard equalities, not bounds.
type Reference struct {
	Bus     int     `json:"Bus"`
	Voltage float64 `json:"Voltage"`
	Angle   float64 `json:"Angle"`
}

// DefaultReference is bus 0 held at 1.0 p.u. and zero angle.
func DefaultReference() Reference {
	return Reference{Bus: 0, Voltage: 1.0, Angle: 0.0}
}

// Variable is one decision variable of the model. A Fixed variable is held
// at Value by the solver; otherwise Value is the solver start point.
type Variable struct {
	Lower float64
	Upper float64
	Fixed bool
	Value float64
}

// Point is a candidate assignment of the model's per-bus variables. Qg and V
// are nil for DC models.
type Point struct {
	Pg    []float64
	Qg    []float64
	V     []float64
	Theta []float64
}

// Model is a built optimization problem: per-bus decision variables with
// bounds and fixes, the generation cost objective, and the nodal balance
// constraints exposed as residual evaluators. Read-only once built.
type Model struct {
	kind Kind
	c    *busdata.Case
	ref  Reference

	// Per-bus variables. Qg and V are nil for DC models.
	Pg    []Variable
	Qg    []Variable
	V     []Variable
	Theta []Variable
}

// Kind returns the formulation tag.
func (m *Model) Kind() Kind {
	return m.kind
}

// Case returns the study case the model was built from.
func (m *Model) Case() *busdata.Case {
	return m.c
}

// Reference returns the slack bus configuration.
func (m *Model) Reference() Reference {
	return m.ref
}

// NumBus returns the bus count.
func (m *Model) NumBus() int {
	return m.c.NumBus()
}

// Cost evaluates the generation cost objective at the given per-bus real
// power output. The AC objective is the full quadratic a*Pg^2 + b*Pg + c per
// generator bus; the linearized DC formulation keeps only the b*Pg term.
func (m *Model) Cost(pg []float64) float64 {
	var total float64
	for _, i := range m.c.GeneratorBuses() {
		b := m.c.Buses[i]
		if m.kind == KindAC {
			total += b.CostA*pg[i]*pg[i] + b.CostB*pg[i] + b.CostC
		} else {
			total += b.CostB * pg[i]
		}
	}
	return total
}

// RealResidual evaluates the real power balance at bus i for the point p.
// Zero means the constraint is satisfied: injected power equals the power
// flowing into the network.
func (m *Model) RealResidual(i int, p Point) float64 {
	var flow float64
	n := m.NumBus()
	switch m.kind {
	case KindAC:
		for k := 0; k < n; k++ {
			d := p.Theta[i] - p.Theta[k]
			flow += p.V[i] * p.V[k] *
				(m.c.G.At(i, k)*math.Cos(d) + m.c.B.At(i, k)*math.Sin(d))
		}
	case KindDC:
		for k := 0; k < n; k++ {
			flow += m.c.B.At(i, k) * (p.Theta[i] - p.Theta[k])
		}
	}
	return p.Pg[i] - m.c.Buses[i].LoadP - flow
}

// ReactiveResidual evaluates the reactive power balance at bus i. DC models
// carry no reactive quantities and always report zero.
func (m *Model) ReactiveResidual(i int, p Point) float64 {
	if m.kind != KindAC {
		return 0
	}
	var flow float64
	for k := 0; k < m.NumBus(); k++ {
		d := p.Theta[i] - p.Theta[k]
		flow += p.V[i] * p.V[k] *
			(m.c.G.At(i, k)*math.Sin(d) - m.c.B.At(i, k)*math.Cos(d))
	}
	return p.Qg[i] - m.c.Buses[i].LoadQ - flow
}

// StartPoint returns the solver initialization point: fixed variables at
// their fixed values, free variables at their configured starts.
func (m *Model) StartPoint() Point {
	p := Point{
		Pg:    values(m.Pg),
		Theta: values(m.Theta),
	}
	if m.kind == KindAC {
		p.Qg = values(m.Qg)
		p.V = values(m.V)
	}
	return p
}

func values(vars []Variable) []float64 {
	vals := make([]float64, len(vars))
	for i, v := range vars {
		vals[i] = v.Value
	}
	return vals
}
