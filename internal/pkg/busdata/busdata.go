package busdata

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Bus holds the static parameters for a single network node. Field names
// track the source table columns (Vmax, PGmin, ...) so the wire format and
// the loader agree on column semantics.
type Bus struct {
	VoltMax  float64 `json:"Vmax"`
	VoltMin  float64 `json:"Vmin"`
	AngleMax float64 `json:"VAnglemax"`
	AngleMin float64 `json:"VAnglemin"`
	LoadP    float64 `json:"Pload"`
	LoadQ    float64 `json:"Qload"`
	GenPMax  float64 `json:"PGmax"`
	GenPMin  float64 `json:"PGmin"`
	GenQMax  float64 `json:"QGmax"`
	GenQMin  float64 `json:"QGmin"`
	CostA    float64 `json:"a"`
	CostB    float64 `json:"b"`
	CostC    float64 `json:"c"`
}

// IsGenerator reports whether the bus has real generation capacity.
func (b Bus) IsGenerator() bool {
	return b.GenPMax > 0
}

// Case is one loaded network study case: the bus table plus the real (G) and
// imaginary (B) parts of the admittance matrix. Immutable after load.
type Case struct {
	Name  string
	Buses []Bus
	G     *mat.Dense
	B     *mat.Dense
}

// symmetryTol flags admittance asymmetry worth warning about. Network
// matrices are expected symmetric but this is not enforced.
const symmetryTol = 1e-6

// connectTol is the smallest susceptance treated as a branch when checking
// network connectivity.
const connectTol = 1e-9

// NewCase assembles and validates a Case from raw row data. It is the single
// choke point for structural validation: matrix dimensions, bound ordering
// and connectivity are all checked here, before any model can be built.
func NewCase(name string, buses []Bus, g, b [][]float64) (*Case, error) {
	if len(buses) == 0 {
		return nil, &DataFormatError{Msg: "case has no buses"}
	}

	gm, err := denseSquare("RealAdmittanceMatrix", g, len(buses))
	if err != nil {
		return nil, err
	}
	bm, err := denseSquare("ImaginaryAdmittanceMatrix", b, len(buses))
	if err != nil {
		return nil, err
	}

	c := &Case{Name: name, Buses: buses, G: gm, B: bm}

	for i, bus := range c.Buses {
		if err := CheckBounds(i, bus); err != nil {
			return nil, err
		}
	}

	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	return c, nil
}

// CheckBounds verifies min <= max for every bound pair on the bus. A swapped
// column assignment in the source data shows up here as max < min and is
// rejected before a model is ever built.
func CheckBounds(i int, b Bus) error {
	pairs := []struct {
		field    string
		min, max float64
	}{
		{"V", b.VoltMin, b.VoltMax},
		{"VAngle", b.AngleMin, b.AngleMax},
		{"PG", b.GenPMin, b.GenPMax},
		{"QG", b.GenQMin, b.GenQMax},
	}
	for _, p := range pairs {
		if p.min > p.max {
			return &BoundsError{Bus: i, Field: p.field, Min: p.min, Max: p.max}
		}
	}
	return nil
}

// NumBus returns the bus count.
func (c *Case) NumBus() int {
	return len(c.Buses)
}

// TotalLoad returns the system real power load.
func (c *Case) TotalLoad() float64 {
	var total float64
	for _, b := range c.Buses {
		total += b.LoadP
	}
	return total
}

// GeneratorBuses returns the indices of buses with real generation capacity.
func (c *Case) GeneratorBuses() []int {
	gens := make([]int, 0)
	for i, b := range c.Buses {
		if b.IsGenerator() {
			gens = append(gens, i)
		}
	}
	return gens
}

// Symmetric reports whether both admittance matrices are symmetric within
// tolerance.
func (c *Case) Symmetric() bool {
	n := c.NumBus()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.Abs(c.G.At(i, j)-c.G.At(j, i)) > symmetryTol {
				return false
			}
			if math.Abs(c.B.At(i, j)-c.B.At(j, i)) > symmetryTol {
				return false
			}
		}
	}
	return true
}

func denseSquare(table string, rows [][]float64, n int) (*mat.Dense, error) {
	if len(rows) != n {
		return nil, &DataFormatError{
			Msg: table + " row count does not match bus count",
		}
	}
	m := mat.NewDense(n, n, nil)
	for i, row := range rows {
		if len(row) != n {
			return nil, &DataFormatError{
				Msg: table + " is not square",
			}
		}
		for j, v := range row {
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// checkConnected walks the branch structure implied by the off-diagonal
// susceptance entries. An unreachable bus makes every balance constraint on
// it unsatisfiable, so it is rejected at load.
func (c *Case) checkConnected() error {
	n := c.NumBus()
	visited := make([]bool, n)
	stack := []int{0}
	visited[0] = true
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for j := 0; j < n; j++ {
			if j == i || visited[j] {
				continue
			}
			if math.Abs(c.B.At(i, j)) > connectTol {
				visited[j] = true
				stack = append(stack, j)
			}
		}
	}
	for i, ok := range visited {
		if !ok {
			return &DataFormatError{Msg: fmt.Sprintf("bus %d is not connected to the network", i)}
		}
	}
	return nil
}
