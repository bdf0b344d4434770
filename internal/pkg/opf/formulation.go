package opf

import (
	"github.com/pkg/errors"

	"github.com/ohowland/opf_core/internal/pkg/busdata"
)

// Formulation builds a solvable Model from a study case. The AC and DC
// variants declare different variable sets and balance constraints; there is
// no shared conditional constraint logic between them.
type Formulation interface {
	Kind() Kind
	Build(c *busdata.Case, ref Reference) (*Model, error)
}

// ACOPF is the full nonlinear formulation: per-bus real and reactive
// generation, voltage magnitude and voltage angle, with the trigonometric
// power flow equations as balance constraints.
type ACOPF struct{}

// Kind returns KindAC.
func (ACOPF) Kind() Kind {
	return KindAC
}

// Build constructs the AC model.
func (ACOPF) Build(c *busdata.Case, ref Reference) (*Model, error) {
	if err := checkCase(c, ref); err != nil {
		return nil, err
	}

	n := c.NumBus()
	m := &Model{
		kind:  KindAC,
		c:     c,
		ref:   ref,
		Pg:    make([]Variable, n),
		Qg:    make([]Variable, n),
		V:     make([]Variable, n),
		Theta: make([]Variable, n),
	}

	totalLoad := c.TotalLoad()
	for i, b := range c.Buses {
		m.Pg[i] = genVariable(b.GenPMin, b.GenPMax, b.IsGenerator())
		m.Qg[i] = genVariable(b.GenQMin, b.GenQMax, b.IsGenerator())
		m.V[i] = Variable{Lower: b.VoltMin, Upper: b.VoltMax, Value: 1.0}
		m.Theta[i] = Variable{Lower: b.AngleMin, Upper: b.AngleMax, Value: 0.0}

		// Warm start: slack carries the system load, other generators a
		// small output. Helps the nonlinear solver converge.
		if b.IsGenerator() {
			if i == ref.Bus {
				m.Pg[i].Value = totalLoad
			} else {
				m.Pg[i].Value = 0.1
			}
		}
	}

	// Slack fixes are hard equalities; the optimizer must not vary them.
	m.V[ref.Bus].Fixed = true
	m.V[ref.Bus].Value = ref.Voltage
	m.Theta[ref.Bus].Fixed = true
	m.Theta[ref.Bus].Value = ref.Angle

	return m, nil
}

// DCOPF is the linearized formulation: real generation and voltage angle
// only, flat 1.0 p.u. voltage profile, lossless linear balance constraints.
type DCOPF struct{}

// Kind returns KindDC.
func (DCOPF) Kind() Kind {
	return KindDC
}

// Build constructs the DC model.
func (DCOPF) Build(c *busdata.Case, ref Reference) (*Model, error) {
	if err := checkCase(c, ref); err != nil {
		return nil, err
	}

	n := c.NumBus()
	m := &Model{
		kind:  KindDC,
		c:     c,
		ref:   ref,
		Pg:    make([]Variable, n),
		Theta: make([]Variable, n),
	}

	for i, b := range c.Buses {
		m.Pg[i] = genVariable(b.GenPMin, b.GenPMax, b.IsGenerator())
		m.Theta[i] = Variable{Lower: b.AngleMin, Upper: b.AngleMax, Value: 0.0}
	}

	m.Theta[ref.Bus].Fixed = true
	m.Theta[ref.Bus].Value = ref.Angle

	return m, nil
}

// genVariable returns a generation variable bounded by the bus limits.
// Non-generator buses are fixed at zero output rather than merely bounded.
func genVariable(min, max float64, generator bool) Variable {
	if !generator {
		return Variable{Fixed: true, Value: 0.0}
	}
	return Variable{Lower: min, Upper: max, Value: 0.0}
}

// checkCase re-validates bound ordering before building. A max < min pair is
// a formulation failure, never something to hand to a solver.
func checkCase(c *busdata.Case, ref Reference) error {
	if ref.Bus < 0 || ref.Bus >= c.NumBus() {
		return errors.Errorf("opf: reference bus %d outside case with %d buses", ref.Bus, c.NumBus())
	}
	for i, b := range c.Buses {
		if err := busdata.CheckBounds(i, b); err != nil {
			return errors.Wrap(err, "opf: refusing to build model")
		}
	}
	return nil
}
