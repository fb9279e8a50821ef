package gitlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultTimeout bounds one git call.
const DefaultTimeout = 30 * time.Second

// Analyzer queries the history of one repository.
type Analyzer struct {
	dir     string
	runner  Runner
	timeout time.Duration
	logger  *log.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRunner replaces the subprocess runner.
func WithRunner(r Runner) Option {
	return func(a *Analyzer) { a.runner = r }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the logger that receives absorbed failures.
func WithLogger(l *log.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// NewAnalyzer creates an analyzer for the repository containing dir.
func NewAnalyzer(dir string, opts ...Option) *Analyzer {
	a := &Analyzer{
		dir:     dir,
		runner:  ExecRunner{Binary: "git", MaxOutput: DefaultMaxOutput},
		timeout: DefaultTimeout,
		logger:  log.NewWithOptions(io.Discard, log.Options{Prefix: "gitlog"}),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// outcome is the result of one git call: its stdout, or why it failed.
// It keeps "ran and printed nothing" apart from "could not run" until
// the public boundary decides what to surface.
type outcome struct {
	stdout string
	err    error
}

func (o outcome) unavailable() bool {
	return errors.Is(o.err, ErrToolUnavailable)
}

func (a *Analyzer) run(ctx context.Context, args ...string) outcome {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out, err := a.runner.Run(ctx, a.dir, args...)
	switch {
	case err == nil:
		return outcome{stdout: string(out)}
	case errors.Is(err, ErrToolUnavailable):
		return outcome{err: err}
	case errors.Is(err, exec.ErrNotFound):
		return outcome{err: fmt.Errorf("%w: %v", ErrToolUnavailable, err)}
	}
	return outcome{err: err}
}

// text runs git and returns stdout. Only ErrToolUnavailable is returned;
// every other failure is logged and reads as empty output.
func (a *Analyzer) text(ctx context.Context, args ...string) (string, error) {
	o := a.run(ctx, args...)
	switch {
	case o.err == nil:
		return o.stdout, nil
	case o.unavailable():
		return "", o.err
	}
	a.logger.Debug("git call failed", "args", strings.Join(args, " "), "err", o.err)
	return "", nil
}

// IsValidRepository reports whether the directory is inside a work tree.
// Any failure, including a missing git, reads as false.
func (a *Analyzer) IsValidRepository(ctx context.Context) bool {
	o := a.run(ctx, "rev-parse", "--is-inside-work-tree")
	return o.err == nil && strings.TrimSpace(o.stdout) == "true"
}

// RepositoryRoot returns the top-level directory of the work tree.
func (a *Analyzer) RepositoryRoot(ctx context.Context) (string, error) {
	out, err := a.text(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	root := strings.TrimSpace(out)
	if root == "" {
		return "", fmt.Errorf("%s: %w", a.dir, ErrNotARepository)
	}
	return root, nil
}

func logArgs(opts CommitOptions) []string {
	args := []string{"log", logFormat, "--numstat"}
	if opts.Since != "" {
		args = append(args, "--since="+opts.Since)
	}
	if opts.Until != "" {
		args = append(args, "--until="+opts.Until)
	}
	if opts.Author != "" {
		args = append(args, "--author="+opts.Author)
	}
	if opts.MaxCount > 0 {
		args = append(args, fmt.Sprintf("--max-count=%d", opts.MaxCount))
	}
	if !opts.IncludeMerges {
		args = append(args, "--no-merges")
	}
	if opts.Path != "" {
		args = append(args, "--", opts.Path)
	}
	return args
}

// Commits returns the commits matching opts, newest first.
func (a *Analyzer) Commits(ctx context.Context, opts CommitOptions) ([]Commit, error) {
	out, err := a.text(ctx, logArgs(opts)...)
	if err != nil {
		return nil, err
	}
	return ParseLog(out), nil
}

// FileHistory returns the commits that touched path.
func (a *Analyzer) FileHistory(ctx context.Context, path string, opts CommitOptions) ([]Commit, error) {
	opts.Path = path
	return a.Commits(ctx, opts)
}

func diffArgs(from, to string) []string {
	args := []string{"diff", "--numstat"}
	switch {
	case from != "" && to != "":
		args = append(args, from+".."+to)
	case from != "":
		args = append(args, from)
	}
	return args
}

// Diff returns per-file line counts between two revisions. An empty to
// compares from against the work tree; both empty compares the work tree
// against the index.
func (a *Analyzer) Diff(ctx context.Context, from, to string) (Diff, error) {
	out, err := a.text(ctx, diffArgs(from, to)...)
	if err != nil {
		return Diff{Files: []FileDiff{}}, err
	}
	return ParseNumstat(out), nil
}

// FileDiff returns the line counts of one file, or nil when the file did
// not change or is binary.
func (a *Analyzer) FileDiff(ctx context.Context, path, from, to string) (*FileDiff, error) {
	args := append(diffArgs(from, to), "--", path)
	out, err := a.text(ctx, args...)
	if err != nil {
		return nil, err
	}
	d := ParseNumstat(out)
	if len(d.Files) == 0 {
		return nil, nil
	}
	return &d.Files[0], nil
}

// Blame attributes every line of path to the commit that last changed it.
func (a *Analyzer) Blame(ctx context.Context, path string) ([]BlameLine, error) {
	out, err := a.text(ctx, "blame", "--line-porcelain", "--", path)
	if err != nil {
		return nil, err
	}
	return ParseBlame(out), nil
}

// Authors returns every contributor with their commit count, highest first.
func (a *Analyzer) Authors(ctx context.Context) ([]Author, error) {
	out, err := a.text(ctx, "shortlog", "-sne", "HEAD")
	if err != nil {
		return nil, err
	}
	return ParseShortlog(out), nil
}
