// Package neos is the client for a remote solve service speaking the job
// protocol: POST a serialized model, poll for the result. The service runs
// the actual optimization (e.g. ipopt for nonlinear models); this client
// only moves the problem and the answer.
package neos

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/ohowland/opf_core/internal/pkg/opf"
	"github.com/ohowland/opf_core/internal/pkg/solver"
)

// Config locates the solve service. Email is the contact identifier the
// service requires with every submission; it is explicit configuration, not
// ambient process state.
type Config struct {
	URL           string `json:"URL"`
	Solver        string `json:"Solver"`
	Email         string `json:"Email"`
	PollMillis    int    `json:"PollMillis"`
	TimeoutMillis int    `json:"TimeoutMillis"`
}

const (
	defaultPollMillis    = 500
	defaultTimeoutMillis = 120000
)

// Client submits models to the remote service and blocks until a terminal
// result.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a Client from a JSON config file.
func New(configPath string) (*Client, error) {
	raw, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "neos: read config")
	}
	cfg := Config{}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "neos: parse config")
	}
	return NewFromConfig(cfg), nil
}

// NewFromConfig returns a Client for the given service configuration.
func NewFromConfig(cfg Config) *Client {
	if cfg.PollMillis <= 0 {
		cfg.PollMillis = defaultPollMillis
	}
	if cfg.TimeoutMillis <= 0 {
		cfg.TimeoutMillis = defaultTimeoutMillis
	}
	return &Client{cfg: cfg, http: &http.Client{}}
}

// Solve submits the model and polls until the service reports a terminal
// status or the configured deadline passes. Synchronous from the caller's
// perspective; there is no automatic retry.
func (c *Client) Solve(m *opf.Model) (solver.Solution, error) {
	if c.cfg.Email == "" {
		serr := &solver.SolveError{Backend: "neos", Msg: "contact email required by remote service"}
		return solver.Solution{Status: solver.StatusSolverError, Log: serr.Msg}, serr
	}
	if c.cfg.URL == "" {
		serr := &solver.SolveError{Backend: "neos", Msg: "service URL not configured"}
		return solver.Solution{Status: solver.StatusSolverError, Log: serr.Msg}, serr
	}

	receipt, err := c.submit(m)
	if err != nil {
		return solver.Solution{Status: solver.StatusSolverError, Log: err.Error()}, err
	}

	deadline := time.Now().Add(time.Duration(c.cfg.TimeoutMillis) * time.Millisecond)
	for {
		result, done, err := c.poll(receipt)
		if err != nil {
			return solver.Solution{RunID: receipt.ID, Status: solver.StatusSolverError, Log: err.Error()}, err
		}
		if done {
			return solution(m, receipt, result)
		}
		if time.Now().After(deadline) {
			return solver.Solution{
				RunID:  receipt.ID,
				Status: solver.StatusTimeout,
				Log:    fmt.Sprintf("neos: job %v still pending after %dms", receipt.ID, c.cfg.TimeoutMillis),
			}, nil
		}
		time.Sleep(time.Duration(c.cfg.PollMillis) * time.Millisecond)
	}
}

func (c *Client) submit(m *opf.Model) (JobReceipt, error) {
	req := JobRequest{
		Email:  c.cfg.Email,
		Solver: c.cfg.Solver,
		Model:  Document(m),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return JobReceipt{}, errors.Wrap(err, "neos: marshal job")
	}

	resp, err := c.http.Post(c.cfg.URL+"/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		return JobReceipt{}, &solver.SolveError{Backend: "neos", Msg: "service unreachable: " + err.Error()}
	}
	defer resp.Body.Close()

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return JobReceipt{}, errors.Wrap(err, "neos: read receipt")
	}
	if resp.StatusCode != http.StatusAccepted {
		return JobReceipt{}, &solver.SolveError{
			Backend: "neos",
			Msg:     fmt.Sprintf("submission rejected (%d): %s", resp.StatusCode, raw),
		}
	}

	receipt := JobReceipt{}
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return JobReceipt{}, errors.Wrap(err, "neos: parse receipt")
	}
	return receipt, nil
}

func (c *Client) poll(receipt JobReceipt) (JobResult, bool, error) {
	resp, err := c.http.Get(fmt.Sprintf("%v/jobs/%v/result", c.cfg.URL, receipt.ID))
	if err != nil {
		return JobResult{}, false, &solver.SolveError{Backend: "neos", Msg: "service unreachable: " + err.Error()}
	}
	defer resp.Body.Close()

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return JobResult{}, false, errors.Wrap(err, "neos: read result")
	}

	switch resp.StatusCode {
	case http.StatusOK:
		result := JobResult{}
		if err := json.Unmarshal(raw, &result); err != nil {
			return JobResult{}, false, errors.Wrap(err, "neos: parse result")
		}
		return result, true, nil
	case http.StatusAccepted:
		return JobResult{}, false, nil
	default:
		return JobResult{}, false, &solver.SolveError{
			Backend: "neos",
			Msg:     fmt.Sprintf("result request failed (%d): %s", resp.StatusCode, raw),
		}
	}
}

func solution(m *opf.Model, receipt JobReceipt, result JobResult) (solver.Solution, error) {
	sol := solver.Solution{
		RunID:     receipt.ID,
		Status:    solver.ParseStatus(result.Status),
		Objective: result.Objective,
		Pg:        result.Pg,
		Qg:        result.Qg,
		V:         result.V,
		Theta:     result.Theta,
		Log:       result.Log,
	}
	if sol.Status != solver.StatusOptimal {
		return sol, nil
	}

	// An optimal result must carry one value per bus for every variable the
	// model declares. Anything else is a service fault, not a solution.
	n := m.NumBus()
	complete := len(sol.Pg) == n && len(sol.Theta) == n
	if m.Kind() == opf.KindAC {
		complete = complete && len(sol.Qg) == n && len(sol.V) == n
	}
	if !complete {
		serr := &solver.SolveError{
			Backend: "neos",
			Msg:     fmt.Sprintf("result does not cover the %d-bus model", n),
		}
		return solver.Solution{RunID: receipt.ID, Status: solver.StatusSolverError, Log: serr.Msg}, serr
	}

	// Fixed variables are held exactly; the service's round-off must not
	// leak into the reported slack values.
	pin := func(vals []float64, vars []opf.Variable) {
		for i, v := range vars {
			if v.Fixed {
				vals[i] = v.Value
			}
		}
	}
	pin(sol.Pg, m.Pg)
	pin(sol.Theta, m.Theta)
	if m.Kind() == opf.KindAC {
		pin(sol.Qg, m.Qg)
		pin(sol.V, m.V)
	}
	return sol, nil
}
