// Package solve runs a compiled problem against a solver backend: an
// in-process SAT encoding for all-binary integral problems, or an external
// LP solver process (HiGHS, CBC) for everything else.
package solve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/perdasilva/lippy/pkg/lippy"
)

// Failure sentinels. Backends wrap these so callers can branch with
// errors.Is regardless of which backend produced the outcome.
var (
	ErrInfeasible        = errors.New("problem is infeasible")
	ErrUnbounded         = errors.New("problem is unbounded")
	ErrSolverUnavailable = errors.New("no solver available")
)

// InfeasibleError carries the names of the constraints a backend identified
// as mutually unsatisfiable, when it can tell.
type InfeasibleError struct {
	Constraints []string
}

func (e *InfeasibleError) Error() string {
	if len(e.Constraints) == 0 {
		return ErrInfeasible.Error()
	}
	return fmt.Sprintf("%s: constraints %s cannot all hold",
		ErrInfeasible, strings.Join(e.Constraints, ", "))
}

func (e *InfeasibleError) Unwrap() error { return ErrInfeasible }

// Solution is a satisfying assignment: one value per variable id, plus the
// achieved objective value (zero when no objective was declared).
type Solution struct {
	Values    map[string]float64
	Objective float64
	Backend   string
}

// Value returns the assigned value of a variable, 0 for unknown ids.
func (s *Solution) Value(id string) float64 {
	return s.Values[id]
}

// Backend solves a normalized problem snapshot.
type Backend interface {
	Name() string
	// Available reports whether the backend can run right now; the error
	// wraps ErrSolverUnavailable when it cannot.
	Available(ctx context.Context) error
	Solve(ctx context.Context, in Input) (*Solution, error)
}

// Runner selects a backend for a problem and runs it.
type Runner struct {
	logger   *zap.Logger
	sat      *SATBackend
	drivers  []Backend
	override Backend
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger attaches a logger to the runner and its default backends.
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithBackend forces a specific backend, skipping auto-selection.
func WithBackend(b Backend) RunnerOption {
	return func(r *Runner) { r.override = b }
}

// New returns a runner with the default backend set: the in-process SAT
// backend for eligible problems, then HiGHS, then CBC.
func New(opts ...RunnerOption) *Runner {
	r := &Runner{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.sat = NewSATBackend(r.logger)
	r.drivers = []Backend{NewHiGHS(r.logger), NewCBC(r.logger)}
	return r
}

// Solve snapshots p and runs it on the selected backend.
func (r *Runner) Solve(ctx context.Context, p *lippy.Problem) (*Solution, error) {
	in, err := Snapshot(p)
	if err != nil {
		return nil, err
	}
	return r.SolveInput(ctx, in)
}

// SolveInput runs an already-normalized snapshot.
func (r *Runner) SolveInput(ctx context.Context, in Input) (*Solution, error) {
	backend, err := r.pick(ctx, in)
	if err != nil {
		return nil, err
	}
	r.logger.Info("solving",
		zap.String("problem", in.Name),
		zap.String("backend", backend.Name()),
		zap.Int("variables", len(in.Variables)),
		zap.Int("constraints", len(in.Constraints)),
	)
	sol, err := backend.Solve(ctx, in)
	if err != nil {
		r.logger.Info("solve failed",
			zap.String("problem", in.Name),
			zap.String("backend", backend.Name()),
			zap.Error(err),
		)
		return nil, err
	}
	r.logger.Info("solved",
		zap.String("problem", in.Name),
		zap.String("backend", backend.Name()),
		zap.Float64("objective", sol.Objective),
	)
	return sol, nil
}

func (r *Runner) pick(ctx context.Context, in Input) (Backend, error) {
	if r.override != nil {
		return r.override, nil
	}
	if r.sat.Eligible(in) {
		return r.sat, nil
	}
	var reasons []string
	for _, d := range r.drivers {
		if err := d.Available(ctx); err != nil {
			r.logger.Debug("backend unavailable",
				zap.String("backend", d.Name()),
				zap.Error(err),
			)
			reasons = append(reasons, fmt.Sprintf("%s: %v", d.Name(), err))
			continue
		}
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSolverUnavailable, strings.Join(reasons, "; "))
}
