package busdata

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ReadCase loads a study case from path. A .json file holds the bus table
// and either explicit admittance matrices or a branch list; a directory is
// read as the three CSV sheets exported from the source workbook
// (NodeData, RealAdmittanceMatrix, ImaginaryAdmittanceMatrix).
func ReadCase(path string) (*Case, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "busdata: case source")
	}

	var c *Case
	if info.IsDir() {
		c, err = readCSVCase(path)
	} else {
		c, err = readJSONCase(path)
	}
	if err != nil {
		return nil, err
	}

	if !c.Symmetric() {
		log.Printf("[Loader] case %v: admittance matrix is not symmetric", c.Name)
	}
	return c, nil
}

// rawNode decodes one bus table row. Required columns are pointers so a
// missing column is distinguishable from a zero value; the angle columns are
// optional and default to a full +/- pi range.
type rawNode struct {
	VoltMax  *float64 `json:"Vmax"`
	VoltMin  *float64 `json:"Vmin"`
	AngleMax *float64 `json:"VAnglemax"`
	AngleMin *float64 `json:"VAnglemin"`
	LoadP    *float64 `json:"Pload"`
	LoadQ    *float64 `json:"Qload"`
	GenPMax  *float64 `json:"PGmax"`
	GenPMin  *float64 `json:"PGmin"`
	GenQMax  *float64 `json:"QGmax"`
	GenQMin  *float64 `json:"QGmin"`
	CostA    *float64 `json:"a"`
	CostB    *float64 `json:"b"`
	CostC    *float64 `json:"c"`
}

func (r rawNode) toBus(i int) (Bus, error) {
	required := map[string]*float64{
		"Vmax": r.VoltMax, "Vmin": r.VoltMin,
		"Pload": r.LoadP, "Qload": r.LoadQ,
		"PGmax": r.GenPMax, "PGmin": r.GenPMin,
		"QGmax": r.GenQMax, "QGmin": r.GenQMin,
		"a": r.CostA, "b": r.CostB, "c": r.CostC,
	}
	for col, v := range required {
		if v == nil {
			return Bus{}, &DataFormatError{
				Msg: fmt.Sprintf("node %d is missing required column %v", i, col),
			}
		}
	}

	b := Bus{
		VoltMax:  *r.VoltMax,
		VoltMin:  *r.VoltMin,
		AngleMax: math.Pi,
		AngleMin: -math.Pi,
		LoadP:    *r.LoadP,
		LoadQ:    *r.LoadQ,
		GenPMax:  *r.GenPMax,
		GenPMin:  *r.GenPMin,
		GenQMax:  *r.GenQMax,
		GenQMin:  *r.GenQMin,
		CostA:    *r.CostA,
		CostB:    *r.CostB,
		CostC:    *r.CostC,
	}
	if r.AngleMax != nil {
		b.AngleMax = *r.AngleMax
	}
	if r.AngleMin != nil {
		b.AngleMin = *r.AngleMin
	}
	return b, nil
}

type jsonCase struct {
	Name  string    `json:"Name"`
	Nodes []rawNode `json:"Nodes"`
	Lines []Line    `json:"Lines"`
	G     [][]float64 `json:"RealAdmittanceMatrix"`
	B     [][]float64 `json:"ImaginaryAdmittanceMatrix"`
}

func readJSONCase(path string) (*Case, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "busdata: read case file")
	}

	jc := jsonCase{}
	if err := json.Unmarshal(raw, &jc); err != nil {
		return nil, &DataFormatError{Msg: "malformed case file: " + err.Error()}
	}
	if len(jc.Nodes) == 0 {
		return nil, &DataFormatError{Msg: "case file has no Nodes table"}
	}

	buses := make([]Bus, len(jc.Nodes))
	for i, rn := range jc.Nodes {
		buses[i], err = rn.toBus(i)
		if err != nil {
			return nil, err
		}
	}

	g, b := jc.G, jc.B
	if len(jc.Lines) > 0 {
		if len(g) > 0 || len(b) > 0 {
			return nil, &DataFormatError{Msg: "case file declares both Lines and admittance matrices"}
		}
		g, b, err = AdmittanceFromLines(len(buses), jc.Lines)
		if err != nil {
			return nil, err
		}
	}
	if len(g) == 0 || len(b) == 0 {
		return nil, &DataFormatError{Msg: "case file is missing admittance data"}
	}

	name := jc.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return NewCase(name, buses, g, b)
}

const (
	nodeSheet = "NodeData.csv"
	realSheet = "RealAdmittanceMatrix.csv"
	imagSheet = "ImaginaryAdmittanceMatrix.csv"
)

func readCSVCase(dir string) (*Case, error) {
	buses, err := readNodeSheet(filepath.Join(dir, nodeSheet))
	if err != nil {
		return nil, err
	}
	g, err := readMatrixSheet(filepath.Join(dir, realSheet))
	if err != nil {
		return nil, err
	}
	b, err := readMatrixSheet(filepath.Join(dir, imagSheet))
	if err != nil {
		return nil, err
	}
	return NewCase(filepath.Base(dir), buses, g, b)
}

// readNodeSheet parses the bus table. Columns are matched by header name,
// never by position; the source workbook has carried ambiguous column
// orderings before.
func readNodeSheet(path string) ([]Bus, error) {
	rows, err := readSheet(path)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, &DataFormatError{Msg: nodeSheet + " has no data rows"}
	}

	header := rows[0]
	buses := make([]Bus, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, &DataFormatError{
				Msg: fmt.Sprintf("%v row %d has %d fields, header has %d",
					nodeSheet, i, len(row), len(header)),
			}
		}
		rn := rawNode{}
		for j, col := range header {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
			if err != nil {
				return nil, &DataFormatError{
					Msg: fmt.Sprintf("%v row %d column %v is not numeric: %v",
						nodeSheet, i, col, row[j]),
				}
			}
			setColumn(&rn, strings.TrimSpace(col), v)
		}
		bus, err := rn.toBus(i)
		if err != nil {
			return nil, err
		}
		buses = append(buses, bus)
	}
	return buses, nil
}

func setColumn(rn *rawNode, col string, v float64) {
	val := v
	switch col {
	case "Vmax":
		rn.VoltMax = &val
	case "Vmin":
		rn.VoltMin = &val
	case "VAnglemax":
		rn.AngleMax = &val
	case "VAnglemin":
		rn.AngleMin = &val
	case "Pload":
		rn.LoadP = &val
	case "Qload":
		rn.LoadQ = &val
	case "PGmax":
		rn.GenPMax = &val
	case "PGmin":
		rn.GenPMin = &val
	case "QGmax":
		rn.GenQMax = &val
	case "QGmin":
		rn.GenQMin = &val
	case "a":
		rn.CostA = &val
	case "b":
		rn.CostB = &val
	case "c":
		rn.CostC = &val
	}
}

func readMatrixSheet(path string) ([][]float64, error) {
	rows, err := readSheet(path)
	if err != nil {
		return nil, err
	}
	m := make([][]float64, len(rows))
	for i, row := range rows {
		m[i] = make([]float64, len(row))
		for j, field := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, &DataFormatError{
					Msg: fmt.Sprintf("%v[%d][%d] is not numeric: %v",
						filepath.Base(path), i, j, field),
				}
			}
			m[i][j] = v
		}
	}
	return m, nil
}

func readSheet(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DataFormatError{Msg: "missing sheet " + filepath.Base(path)}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &DataFormatError{Msg: filepath.Base(path) + ": " + err.Error()}
	}
	return rows, nil
}
