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

// HiGHS drives the HiGHS command-line solver over LP files.
type HiGHS struct {
	driver execDriver
}

// NewHiGHS returns the HiGHS backend.
func NewHiGHS(logger *zap.Logger) *HiGHS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HiGHS{
		driver: execDriver{
			binary:      "highs",
			versionArgs: []string{"--version"},
			minVersion:  semver.MustParse("1.0.0"),
			logger:      logger,
		},
	}
}

func (h *HiGHS) Name() string { return "highs" }

func (h *HiGHS) Available(ctx context.Context) error {
	_, err := h.driver.locate(ctx)
	return err
}

func (h *HiGHS) Solve(ctx context.Context, in Input) (*Solution, error) {
	path, err := h.driver.locate(ctx)
	if err != nil {
		return nil, err
	}
	dir, lpPath, err := scratchInput(in, "lippy-highs-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	solPath := filepath.Join(dir, "model.sol")
	out, err := h.driver.runSolver(ctx, path, lpPath, "--solution_file", solPath)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	data, readErr := os.ReadFile(solPath)
	if readErr != nil {
		if err != nil {
			return nil, fmt.Errorf("highs failed: %w: %s", err, strings.TrimSpace(out))
		}
		return nil, fmt.Errorf("highs wrote no solution file: %w", readErr)
	}
	sol, err := parseHiGHSSolution(string(data))
	if err != nil {
		return nil, err
	}
	sol.Backend = h.Name()
	return sol, nil
}

// parseHiGHSSolution reads the HiGHS solution-file format: a "Model status"
// header, an "Objective" line and a "# Columns" section listing one
// "name value" pair per variable.
func parseHiGHSSolution(data string) (*Solution, error) {
	sol := &Solution{Values: map[string]float64{}}
	scanner := bufio.NewScanner(strings.NewReader(data))
	var status string
	inColumns := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "Model status":
			if scanner.Scan() {
				status = strings.TrimSpace(scanner.Text())
			}
		case strings.HasPrefix(line, "Objective"):
			fields := strings.Fields(line)
			if len(fields) == 2 {
				v, err := strconv.ParseFloat(fields[1], 64)
				if err == nil {
					sol.Objective = v
				}
			}
		case strings.HasPrefix(line, "# Columns"):
			inColumns = true
		case strings.HasPrefix(line, "#"):
			inColumns = false
		case inColumns:
			fields := strings.Fields(line)
			if len(fields) != 2 {
				continue
			}
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("malformed solution line %q", line)
			}
			sol.Values[fields[0]] = v
		}
	}
	switch status {
	case "Optimal":
		return sol, nil
	case "Infeasible":
		return nil, &InfeasibleError{}
	case "Unbounded":
		return nil, ErrUnbounded
	case "":
		return nil, fmt.Errorf("solution file missing model status")
	default:
		return nil, fmt.Errorf("unexpected model status %q", status)
	}
}
