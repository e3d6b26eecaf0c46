package solve

import (
	"context"
	"testing"

	"github.com/blang/semver/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseVersionOutput(t *testing.T) {
	type tc struct {
		Name string
		Out  string
		Want string
		Err  bool
	}

	for _, tt := range []tc{
		{
			Name: "highs banner",
			Out:  "HiGHS version 1.5.3 Githash ...",
			Want: "1.5.3",
		},
		{
			Name: "cbc banner",
			Out: `Welcome to the CBC MILP Solver
Version: 2.10.5
Build Date: Jan  1 2023`,
			Want: "2.10.5",
		},
		{
			Name: "two-component version tolerated",
			Out:  "solver 1.7",
			Want: "1.7.0",
		},
		{
			Name: "parenthesized version",
			Out:  "tool (3.2.1)",
			Want: "3.2.1",
		},
		{
			Name: "no version",
			Out:  "usage: solver [options] file",
			Err:  true,
		},
	} {
		t.Run(tt.Name, func(t *testing.T) {
			got, err := parseVersionOutput(tt.Out)
			if tt.Err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, semver.MustParse(tt.Want), got)
		})
	}
}

func TestLocateMissingBinary(t *testing.T) {
	d := &execDriver{
		binary:     "definitely-not-a-solver-binary",
		minVersion: semver.MustParse("1.0.0"),
		logger:     zap.NewNop(),
	}
	_, err := d.locate(context.Background())
	assert.ErrorIs(t, err, ErrSolverUnavailable)
}

func TestRunnerNoBackendAvailable(t *testing.T) {
	r := New()
	// Make the exec drivers unfindable regardless of the host.
	r.drivers = []Backend{
		NewHiGHS(nil),
		NewCBC(nil),
	}
	for _, b := range r.drivers {
		switch d := b.(type) {
		case *HiGHS:
			d.driver.binary = "lippy-test-missing-highs"
		case *CBC:
			d.driver.binary = "lippy-test-missing-cbc"
		}
	}

	in := Input{
		Name:      "continuous",
		Variables: []Variable{{ID: "x", Type: 0, Lower: 0, Upper: 1}},
	}
	_, err := r.SolveInput(context.Background(), in)
	assert.ErrorIs(t, err, ErrSolverUnavailable)
}
