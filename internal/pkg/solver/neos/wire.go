package neos

import (
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/ohowland/opf_core/internal/pkg/busdata"
	"github.com/ohowland/opf_core/internal/pkg/opf"
)

// ModelDocument is the serialized form of a built model, complete enough for
// the solve service to reconstruct the problem.
type ModelDocument struct {
	Kind  string        `json:"Kind"`
	Name  string        `json:"Name"`
	Nodes []busdata.Bus `json:"Nodes"`
	G     [][]float64   `json:"RealAdmittanceMatrix"`
	B     [][]float64   `json:"ImaginaryAdmittanceMatrix"`
	Ref   opf.Reference `json:"Reference"`
}

// Document serializes a model for submission.
func Document(m *opf.Model) ModelDocument {
	c := m.Case()
	return ModelDocument{
		Kind:  m.Kind().String(),
		Name:  c.Name,
		Nodes: c.Buses,
		G:     matrixRows(c.G),
		B:     matrixRows(c.B),
		Ref:   m.Reference(),
	}
}

// BuildModel reconstructs the optimization model on the receiving side.
func (d ModelDocument) BuildModel() (*opf.Model, error) {
	c, err := busdata.NewCase(d.Name, d.Nodes, d.G, d.B)
	if err != nil {
		return nil, err
	}
	var f opf.Formulation = opf.DCOPF{}
	if d.Kind == opf.KindAC.String() {
		f = opf.ACOPF{}
	}
	return f.Build(c, d.Ref)
}

// JobRequest is the body POSTed to the service's /jobs endpoint. The contact
// email is required by the service's terms of use.
type JobRequest struct {
	Email  string        `json:"Email"`
	Solver string        `json:"Solver"`
	Model  ModelDocument `json:"Model"`
}

// JobReceipt acknowledges a submitted job.
type JobReceipt struct {
	ID uuid.UUID `json:"ID"`
}

// JobResult is the terminal result of a job. Qg and V are omitted for
// linearized models.
type JobResult struct {
	Status    string    `json:"Status"`
	Objective float64   `json:"Objective"`
	Pg        []float64 `json:"Pg"`
	Qg        []float64 `json:"Qg,omitempty"`
	V         []float64 `json:"V,omitempty"`
	Theta     []float64 `json:"Theta"`
	Log       string    `json:"Log"`
}

func matrixRows(m *mat.Dense) [][]float64 {
	r, c := m.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		rows[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			rows[i][j] = m.At(i, j)
		}
	}
	return rows
}
