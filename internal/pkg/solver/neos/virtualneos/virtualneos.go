// Package virtualneos is an in-process stand-in for the remote solve
// service, used by tests and local development. It speaks the same job
// protocol as the real service: linearized jobs are solved with the local
// simplex backend, nonlinear jobs are answered from configured canned
// results (the virtual device cannot run a nonlinear solver).
package virtualneos

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ohowland/opf_core/internal/pkg/opf"
	"github.com/ohowland/opf_core/internal/pkg/solver"
	"github.com/ohowland/opf_core/internal/pkg/solver/lplocal"
	"github.com/ohowland/opf_core/internal/pkg/solver/neos"
)

// Config for the virtual service. Canned maps a model kind ("AC_OPF",
// "DC_OPF") to the result served for jobs of that kind; PendingPolls is the
// number of result requests answered "still running" before the result is
// released, to exercise client polling.
type Config struct {
	Name         string                    `json:"Name"`
	PendingPolls int                       `json:"PendingPolls"`
	Canned       map[string]neos.JobResult `json:"Canned"`
}

type job struct {
	result  neos.JobResult
	pending int
}

// VirtualNEOS holds the jobs accepted by this service instance.
type VirtualNEOS struct {
	mux  *sync.Mutex
	pid  uuid.UUID
	cfg  Config
	jobs map[uuid.UUID]*job
}

// New returns a VirtualNEOS configured from a JSON file.
func New(configPath string) (*VirtualNEOS, error) {
	raw, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := Config{}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return NewFromConfig(cfg)
}

// NewFromConfig returns a VirtualNEOS for the given configuration.
func NewFromConfig(cfg Config) (*VirtualNEOS, error) {
	pid, err := uuid.NewUUID()
	return &VirtualNEOS{
		mux:  &sync.Mutex{},
		pid:  pid,
		cfg:  cfg,
		jobs: make(map[uuid.UUID]*job),
	}, err
}

// PID is a getter for the service PID.
func (v *VirtualNEOS) PID() uuid.UUID {
	return v.pid
}

// Router returns the service's HTTP routes.
func (v *VirtualNEOS) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/jobs", v.submitHandler).Methods("POST")
	r.HandleFunc("/jobs/{id}/result", v.resultHandler).Methods("GET")
	return r
}

func (v *VirtualNEOS) submitHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	req := neos.JobRequest{}
	if err := json.Unmarshal(body, &req); err != nil {
		log.Println("[VirtualNEOS] malformed job:", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"Error":"contact email required"}`))
		return
	}

	id, err := uuid.NewUUID()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	v.mux.Lock()
	v.jobs[id] = &job{result: v.run(req), pending: v.cfg.PendingPolls}
	v.mux.Unlock()

	w.WriteHeader(http.StatusAccepted)
	receipt, _ := json.Marshal(neos.JobReceipt{ID: id})
	_, _ = w.Write(receipt)
}

func (v *VirtualNEOS) resultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	v.mux.Lock()
	defer v.mux.Unlock()
	j, ok := v.jobs[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if j.pending > 0 {
		j.pending--
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.WriteHeader(http.StatusOK)
	body, _ := json.Marshal(j.result)
	_, _ = w.Write(body)
}

// run produces the job's terminal result. Canned results take precedence so
// tests can script any outcome; otherwise linearized jobs are solved for
// real and nonlinear jobs are refused.
func (v *VirtualNEOS) run(req neos.JobRequest) neos.JobResult {
	if canned, ok := v.cfg.Canned[req.Model.Kind]; ok {
		return canned
	}

	m, err := req.Model.BuildModel()
	if err != nil {
		return neos.JobResult{
			Status: solver.StatusSolverError.String(),
			Log:    "virtualneos: rejected model: " + err.Error(),
		}
	}
	if m.Kind() != opf.KindDC {
		return neos.JobResult{
			Status: solver.StatusSolverError.String(),
			Log:    "virtualneos: no canned result and no nonlinear backend",
		}
	}

	sol, err := lplocal.New().Solve(m)
	if err != nil {
		return neos.JobResult{Status: solver.StatusSolverError.String(), Log: sol.Log}
	}
	return neos.JobResult{
		Status:    sol.Status.String(),
		Objective: sol.Objective,
		Pg:        sol.Pg,
		Theta:     sol.Theta,
		Log:       sol.Log,
	}
}
