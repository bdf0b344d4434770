// Package report renders solved cases for humans (fixed-width table) and
// for downstream consumers (JSON record).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"math"

	"github.com/pkg/errors"

	"github.com/ohowland/opf_core/internal/pkg/busdata"
	"github.com/ohowland/opf_core/internal/pkg/opf"
	"github.com/ohowland/opf_core/internal/pkg/solver"
)

// Table writes the per-bus result table. DC solutions carry no voltage
// magnitude or reactive power, so those columns are omitted entirely rather
// than filled with placeholders. Bus numbering is 1-based for operators.
func Table(w io.Writer, c *busdata.Case, sol solver.Solution, kind opf.Kind) error {
	rule := "------------------------------------------------------------"
	if _, err := fmt.Fprintf(w, "%v\nRESULTS: %v (%v)\n%v\n", rule, c.Name, kind, rule); err != nil {
		return err
	}

	header := fmt.Sprintf("%-6v%-12v%-14v", "Bus", "Pg (pu)", "Theta (deg)")
	if kind == opf.KindAC {
		header += fmt.Sprintf("%-12v%-12v", "|V| (pu)", "Qg (pu)")
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, rule)

	for i := range c.Buses {
		line := fmt.Sprintf("%-6d%-12.4f%-14.4f", i+1, sol.Pg[i], degrees(sol.Theta[i]))
		if kind == opf.KindAC {
			line += fmt.Sprintf("%-12.4f%-12.4f", sol.V[i], sol.Qg[i])
		}
		fmt.Fprintln(w, line)
	}

	_, err := fmt.Fprintf(w, "\nSolver status: %v\nTotal Generation Cost: %.4f\n",
		sol.Status, sol.Objective)
	return err
}

// NodeRecord is the per-bus slice of the structured result. The AC-only
// fields are dropped from the encoding for DC runs.
type NodeRecord struct {
	VoltageAngle     float64  `json:"voltage_angle"`
	Power            float64  `json:"power"`
	VoltageMagnitude *float64 `json:"voltage_magnitude,omitempty"`
	ReactivePower    *float64 `json:"reactive_power,omitempty"`
}

// Record is the machine-readable result of one run.
type Record struct {
	RunName   string                `json:"run_name"`
	RunID     string                `json:"run_id"`
	ModelType string                `json:"model_type"`
	Status    string                `json:"status"`
	Nodes     map[string]NodeRecord `json:"nodes"`
	TotalCost float64               `json:"total_cost"`
}

// NewRecord builds the structured record for a solved case.
func NewRecord(c *busdata.Case, sol solver.Solution, kind opf.Kind) Record {
	rec := Record{
		RunName:   c.Name,
		RunID:     sol.RunID.String(),
		ModelType: kind.String(),
		Status:    sol.Status.String(),
		Nodes:     make(map[string]NodeRecord, len(c.Buses)),
		TotalCost: sol.Objective,
	}
	for i := range c.Buses {
		node := NodeRecord{
			VoltageAngle: sol.Theta[i],
			Power:        sol.Pg[i],
		}
		if kind == opf.KindAC {
			v := sol.V[i]
			q := sol.Qg[i]
			node.VoltageMagnitude = &v
			node.ReactivePower = &q
		}
		rec.Nodes[fmt.Sprintf("node_%d", i+1)] = node
	}
	return rec
}

// WriteRecord serializes the record to path.
func WriteRecord(path string, rec Record) error {
	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(err, "report: marshal record")
	}
	if err := ioutil.WriteFile(path, body, 0644); err != nil {
		return errors.Wrap(err, "report: write record")
	}
	return nil
}

func degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
