package solve

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/blang/semver/v4"
	"go.uber.org/zap"
)

// execDriver is the shared plumbing of exec-based backends: locate the
// solver binary, check its reported version against a minimum, and run it
// against an LP file in a scratch directory. A binary that is missing or too
// old yields an error wrapping ErrSolverUnavailable.
type execDriver struct {
	binary      string
	versionArgs []string
	minVersion  semver.Version
	logger      *zap.Logger
}

// locate finds the binary on PATH and gates it on the minimum version.
func (d *execDriver) locate(ctx context.Context) (string, error) {
	path, err := exec.LookPath(d.binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found on PATH", ErrSolverUnavailable, d.binary)
	}
	out, err := exec.CommandContext(ctx, path, d.versionArgs...).CombinedOutput()
	if err != nil && len(out) == 0 {
		return "", fmt.Errorf("%w: %s version query failed: %v", ErrSolverUnavailable, d.binary, err)
	}
	version, err := parseVersionOutput(string(out))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrSolverUnavailable, d.binary, err)
	}
	if version.LT(d.minVersion) {
		return "", fmt.Errorf("%w: %s version %s is older than required %s",
			ErrSolverUnavailable, d.binary, version, d.minVersion)
	}
	d.logger.Debug("solver located",
		zap.String("binary", d.binary),
		zap.String("path", path),
		zap.String("version", version.String()),
	)
	return path, nil
}

// parseVersionOutput extracts the first semver-looking token from a solver's
// version banner.
func parseVersionOutput(out string) (semver.Version, error) {
	for _, field := range strings.Fields(out) {
		field = strings.Trim(field, "(),;:")
		if !strings.Contains(field, ".") {
			continue
		}
		if v, err := semver.ParseTolerant(field); err == nil {
			return v, nil
		}
	}
	return semver.Version{}, fmt.Errorf("no version found in output %q", strings.TrimSpace(out))
}

// scratchInput writes in as model.lp inside a fresh scratch directory. The
// caller owns cleanup of the returned directory.
func scratchInput(in Input, prefix string) (dir, lpPath string, err error) {
	dir, err = os.MkdirTemp("", prefix)
	if err != nil {
		return "", "", err
	}
	lpPath = filepath.Join(dir, "model.lp")
	f, err := os.Create(lpPath)
	if err != nil {
		os.RemoveAll(dir)
		return "", "", err
	}
	if err := WriteLP(f, in); err != nil {
		f.Close()
		os.RemoveAll(dir)
		return "", "", err
	}
	if err := f.Close(); err != nil {
		os.RemoveAll(dir)
		return "", "", err
	}
	return dir, lpPath, nil
}

// runSolver invokes the binary and returns its combined output. Context
// cancellation kills the process.
func (d *execDriver) runSolver(ctx context.Context, path string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return string(out), ctx.Err()
	}
	return string(out), err
}
