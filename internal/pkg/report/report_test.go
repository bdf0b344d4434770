package report

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gotest.tools/assert"

	"github.com/ohowland/opf_core/internal/pkg/busdata"
	"github.com/ohowland/opf_core/internal/pkg/opf"
	"github.com/ohowland/opf_core/internal/pkg/solver"
)

func twoBusCase(t *testing.T) *busdata.Case {
	buses := []busdata.Bus{
		{VoltMax: 1.05, VoltMin: 0.95, AngleMax: math.Pi, AngleMin: -math.Pi,
			GenPMax: 1.0, GenQMax: 0.5, GenQMin: -0.5, CostB: 10.0},
		{VoltMax: 1.05, VoltMin: 0.95, AngleMax: math.Pi, AngleMin: -math.Pi,
			LoadP: 0.5, LoadQ: 0.1},
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
	return c
}

func dcSolution() solver.Solution {
	return solver.Solution{
		RunID:     uuid.MustParse("f47ac10b-58cc-0372-8567-0e02b2c3d479"),
		Status:    solver.StatusOptimal,
		Objective: 5.0,
		Pg:        []float64{0.5, 0},
		Theta:     []float64{0, -0.033},
	}
}

func acSolution() solver.Solution {
	sol := dcSolution()
	sol.Qg = []float64{0.12, 0}
	sol.V = []float64{1.0, 0.99}
	return sol
}

func TestTableDCOmitsACColumns(t *testing.T) {
	c := twoBusCase(t)
	buf := bytes.Buffer{}
	assert.NilError(t, Table(&buf, c, dcSolution(), opf.KindDC))

	out := buf.String()
	assert.Assert(t, !strings.Contains(out, "|V|"))
	assert.Assert(t, !strings.Contains(out, "Qg"))
	assert.Assert(t, strings.Contains(out, "Total Generation Cost: 5.0000"))
	assert.Assert(t, strings.Contains(out, "optimal"))
}

func TestTableACColumns(t *testing.T) {
	c := twoBusCase(t)
	buf := bytes.Buffer{}
	assert.NilError(t, Table(&buf, c, acSolution(), opf.KindAC))

	out := buf.String()
	assert.Assert(t, strings.Contains(out, "|V| (pu)"))
	assert.Assert(t, strings.Contains(out, "Qg (pu)"))
}

func TestTableAngleInDegrees(t *testing.T) {
	c := twoBusCase(t)
	buf := bytes.Buffer{}
	sol := dcSolution()
	sol.Theta[1] = -math.Pi / 2
	assert.NilError(t, Table(&buf, c, sol, opf.KindDC))
	assert.Assert(t, strings.Contains(buf.String(), "-90.0000"))
}

func TestRecordDC(t *testing.T) {
	c := twoBusCase(t)
	rec := NewRecord(c, dcSolution(), opf.KindDC)

	assert.Equal(t, rec.ModelType, "DC_OPF")
	assert.Equal(t, rec.Status, "optimal")
	assert.Equal(t, len(rec.Nodes), 2)
	assert.Equal(t, rec.Nodes["node_1"].Power, 0.5)

	// DC records drop the AC-only fields from the encoding entirely.
	body, err := json.Marshal(rec)
	assert.NilError(t, err)
	assert.Assert(t, !strings.Contains(string(body), "voltage_magnitude"))
	assert.Assert(t, !strings.Contains(string(body), "reactive_power"))
}

func TestRecordAC(t *testing.T) {
	c := twoBusCase(t)
	rec := NewRecord(c, acSolution(), opf.KindAC)

	node := rec.Nodes["node_2"]
	assert.Assert(t, node.VoltageMagnitude != nil)
	assert.Equal(t, *node.VoltageMagnitude, 0.99)
	assert.Assert(t, node.ReactivePower != nil)
}

func TestWriteRecord(t *testing.T) {
	dir, err := ioutil.TempDir("", "report")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	c := twoBusCase(t)
	path := filepath.Join(dir, "twobus_DC_results.json")
	assert.NilError(t, WriteRecord(path, NewRecord(c, dcSolution(), opf.KindDC)))

	raw, err := ioutil.ReadFile(path)
	assert.NilError(t, err)

	got := Record{}
	assert.NilError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, got.RunName, "twobus")
	assert.Equal(t, got.TotalCost, 5.0)
}
