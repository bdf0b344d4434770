package main

import (
	"encoding/json"
	"flag"
	"io/ioutil"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/ohowland/opf_core/internal/pkg/busdata"
	"github.com/ohowland/opf_core/internal/pkg/opf"
	"github.com/ohowland/opf_core/internal/pkg/report"
	"github.com/ohowland/opf_core/internal/pkg/solver"
	"github.com/ohowland/opf_core/internal/pkg/solver/lplocal"
	"github.com/ohowland/opf_core/internal/pkg/solver/neos"
)

type runConfig struct {
	CasePath    string         `json:"CasePath"`
	Formulation string         `json:"Formulation"`
	Solver      string         `json:"Solver"`
	NEOS        neos.Config    `json:"NEOS"`
	Reference   *opf.Reference `json:"Reference"`
	RecordPath  string         `json:"RecordPath"`
	VerifyTol   float64        `json:"VerifyTol"`
}

func main() {
	configPath := flag.String("config", "./config/opf.json", "run configuration file")
	flag.Parse()

	log.Println("[Main] Starting OPF_Core v0.1.0")
	cfg, err := readRunConfig(*configPath)
	if err != nil {
		panic(err)
	}

	log.Println("[Main] Reading case data")
	c, err := busdata.ReadCase(cfg.CasePath)
	if err != nil {
		panic(err)
	}
	log.Printf("[Main] Case %v: %d buses, %d generators, %.3f pu load",
		c.Name, c.NumBus(), len(c.GeneratorBuses()), c.TotalLoad())

	log.Println("[Main] Building model")
	f, err := buildFormulation(cfg)
	if err != nil {
		panic(err)
	}
	m, err := f.Build(c, reference(cfg))
	if err != nil {
		panic(err)
	}

	log.Println("[Main] Dispatching solve")
	backend, err := buildSolver(cfg)
	if err != nil {
		panic(err)
	}
	sol, err := backend.Solve(m)
	if err != nil {
		log.Fatalf("[Main] Solve failed: %v", err)
	}

	log.Printf("[Main] Solver status: %v", sol.Status)
	if sol.Status != solver.StatusOptimal {
		log.Printf("[Main] %v", sol.Log)
		return
	}

	if cfg.VerifyTol > 0 {
		if err := solver.Verify(m, sol, cfg.VerifyTol); err != nil {
			log.Printf("[Main] Result verification: %v", err)
		}
	}

	if err := report.Table(os.Stdout, c, sol, m.Kind()); err != nil {
		panic(err)
	}
	if cfg.RecordPath != "" {
		rec := report.NewRecord(c, sol, m.Kind())
		if err := report.WriteRecord(cfg.RecordPath, rec); err != nil {
			panic(err)
		}
		log.Printf("[Main] Record written to %v", cfg.RecordPath)
	}
}

func readRunConfig(path string) (runConfig, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return runConfig{}, err
	}
	cfg := runConfig{}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return runConfig{}, err
	}

	// A .env file may carry the service contact email; it is read once here
	// and passed on as explicit configuration.
	if cfg.NEOS.Email == "" {
		_ = godotenv.Load()
		cfg.NEOS.Email = os.Getenv("OPF_NEOS_EMAIL")
	}
	return cfg, nil
}

func buildFormulation(cfg runConfig) (opf.Formulation, error) {
	switch cfg.Formulation {
	case "ac":
		return opf.ACOPF{}, nil
	case "dc":
		return opf.DCOPF{}, nil
	default:
		return nil, errors.Errorf("unknown formulation %q", cfg.Formulation)
	}
}

func buildSolver(cfg runConfig) (solver.Solver, error) {
	switch cfg.Solver {
	case "local":
		return lplocal.New(), nil
	case "neos":
		return neos.NewFromConfig(cfg.NEOS), nil
	default:
		return nil, errors.Errorf("unknown solver %q", cfg.Solver)
	}
}

func reference(cfg runConfig) opf.Reference {
	if cfg.Reference != nil {
		return *cfg.Reference
	}
	return opf.DefaultReference()
}
