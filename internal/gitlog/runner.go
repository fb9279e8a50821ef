package gitlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultMaxOutput caps the stdout buffer of one git call (10 MiB).
const DefaultMaxOutput = 10 * 1024 * 1024

// Runner runs the git executable with args in dir and returns stdout.
// A missing executable must be reported as an error wrapping
// ErrToolUnavailable or exec.ErrNotFound.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// ExecRunner runs a real executable.
type ExecRunner struct {
	Binary    string
	MaxOutput int
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	bin := r.Binary
	if bin == "" {
		bin = "git"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}

	limit := r.MaxOutput
	if limit <= 0 {
		limit = DefaultMaxOutput
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	stdout := &limitedBuffer{max: limit}
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stdout.overflow {
			return nil, ErrOutputTooLarge
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("git %s: %w", args[0], ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("git %s: exit code %d: %s", strings.Join(args, " "), exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}
	return stdout.Bytes(), nil
}

// limitedBuffer fails writes once more than max bytes have been written.
type limitedBuffer struct {
	bytes.Buffer
	max      int
	overflow bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.Len()+len(p) > b.max {
		b.overflow = true
		return 0, ErrOutputTooLarge
	}
	return b.Buffer.Write(p)
}
