package solve

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blang/semver/v4"
	"go.uber.org/zap"
)

// CBC drives the COIN-OR branch-and-cut solver over LP files.
type CBC struct {
	driver execDriver
}

// NewCBC returns the CBC backend.
func NewCBC(logger *zap.Logger) *CBC {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CBC{
		driver: execDriver{
			binary:      "cbc",
			versionArgs: []string{"exit"},
			minVersion:  semver.MustParse("2.9.0"),
			logger:      logger,
		},
	}
}

func (c *CBC) Name() string { return "cbc" }

func (c *CBC) Available(ctx context.Context) error {
	_, err := c.driver.locate(ctx)
	return err
}

func (c *CBC) Solve(ctx context.Context, in Input) (*Solution, error) {
	path, err := c.driver.locate(ctx)
	if err != nil {
		return nil, err
	}
	dir, lpPath, err := scratchInput(in, "lippy-cbc-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	solPath := filepath.Join(dir, "model.sol")
	out, err := c.driver.runSolver(ctx, path, lpPath, "solve", "solution", solPath)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	data, readErr := os.ReadFile(solPath)
	if readErr != nil {
		if err != nil {
			return nil, fmt.Errorf("cbc failed: %w: %s", err, strings.TrimSpace(out))
		}
		return nil, fmt.Errorf("cbc wrote no solution file: %w", readErr)
	}
	sol, err := parseCBCSolution(string(data))
	if err != nil {
		return nil, err
	}
	sol.Backend = c.Name()
	return sol, nil
}

// parseCBCSolution reads the CBC solution file: a status line such as
// "Optimal - objective value 20.5" followed by one row per nonzero variable,
// "index name value reducedCost".
func parseCBCSolution(data string) (*Solution, error) {
	scanner := bufio.NewScanner(strings.NewReader(data))
	if !scanner.Scan() {
		return nil, fmt.Errorf("empty solution file")
	}
	header := strings.TrimSpace(scanner.Text())
	switch {
	case strings.HasPrefix(header, "Infeasible"):
		return nil, &InfeasibleError{}
	case strings.HasPrefix(header, "Unbounded"):
		return nil, ErrUnbounded
	case strings.HasPrefix(header, "Optimal"):
	default:
		return nil, fmt.Errorf("unexpected solution status %q", header)
	}

	sol := &Solution{Values: map[string]float64{}}
	if fields := strings.Fields(header); len(fields) > 0 {
		if v, err := strconv.ParseFloat(fields[len(fields)-1], 64); err == nil {
			sol.Objective = v
		}
	}
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed solution line %q", strings.TrimSpace(scanner.Text()))
		}
		sol.Values[fields[1]] = v
	}
	return sol, nil
}
