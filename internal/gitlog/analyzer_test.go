package gitlog

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// fakeRunner answers every call with a fixed output or error and records
// the arguments it saw.
type fakeRunner struct {
	out   string
	err   error
	calls [][]string
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, args)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.out), nil
}

func (f *fakeRunner) lastArgs() []string {
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func TestCommits_ParsesRunnerOutput(t *testing.T) {
	fr := &fakeRunner{out: twoCommits}
	a := NewAnalyzer(".", WithRunner(fr))

	commits, err := a.Commits(context.Background(), CommitOptions{Since: "2026-01-01", Author: "john", MaxCount: 5})
	if err != nil {
		t.Fatalf("Commits: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("len(commits) = %d, want 2", len(commits))
	}
	want := []string{"log", logFormat, "--numstat", "--since=2026-01-01", "--author=john", "--max-count=5", "--no-merges"}
	if !reflect.DeepEqual(fr.lastArgs(), want) {
		t.Errorf("args = %v, want %v", fr.lastArgs(), want)
	}
}

func TestFileHistory_AppendsPathAfterSeparator(t *testing.T) {
	fr := &fakeRunner{}
	a := NewAnalyzer(".", WithRunner(fr))
	if _, err := a.FileHistory(context.Background(), "TASKS/task-001-x.md", CommitOptions{IncludeMerges: true}); err != nil {
		t.Fatalf("FileHistory: %v", err)
	}
	args := fr.lastArgs()
	if n := len(args); n < 2 || args[n-2] != "--" || args[n-1] != "TASKS/task-001-x.md" {
		t.Errorf("args = %v", args)
	}
	for _, arg := range args {
		if arg == "--no-merges" {
			t.Error("--no-merges passed with IncludeMerges")
		}
	}
}

func TestDiffArgs(t *testing.T) {
	tests := []struct {
		from, to string
		want     []string
	}{
		{"", "", []string{"diff", "--numstat"}},
		{"HEAD~1", "", []string{"diff", "--numstat", "HEAD~1"}},
		{"v1", "v2", []string{"diff", "--numstat", "v1..v2"}},
	}
	for _, tt := range tests {
		if got := diffArgs(tt.from, tt.to); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("diffArgs(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestFileDiff(t *testing.T) {
	a := NewAnalyzer(".", WithRunner(&fakeRunner{out: "7\t2\tmain.go\n"}))
	fd, err := a.FileDiff(context.Background(), "main.go", "HEAD~1", "HEAD")
	if err != nil || fd == nil {
		t.Fatalf("FileDiff = %v, %v", fd, err)
	}
	if fd.LinesAdded != 7 || fd.LinesRemoved != 2 {
		t.Errorf("fd = %+v", fd)
	}

	bin := NewAnalyzer(".", WithRunner(&fakeRunner{out: "-\t-\tlogo.png\n"}))
	if fd, err := bin.FileDiff(context.Background(), "logo.png", "", ""); err != nil || fd != nil {
		t.Errorf("binary FileDiff = %v, %v, want nil, nil", fd, err)
	}
}

func TestAuthors(t *testing.T) {
	fr := &fakeRunner{out: "   123  John Doe <john@example.com>\n"}
	a := NewAnalyzer(".", WithRunner(fr))
	authors, err := a.Authors(context.Background())
	if err != nil {
		t.Fatalf("Authors: %v", err)
	}
	if len(authors) != 1 || authors[0].Commits != 123 {
		t.Errorf("authors = %+v", authors)
	}
	if want := []string{"shortlog", "-sne", "HEAD"}; !reflect.DeepEqual(fr.lastArgs(), want) {
		t.Errorf("args = %v", fr.lastArgs())
	}
}

func TestFailurePolicy_TransientErrorsReadAsEmpty(t *testing.T) {
	fr := &fakeRunner{err: errors.New("git log: exit code 128: fatal: bad revision")}
	a := NewAnalyzer(".", WithRunner(fr))
	ctx := context.Background()

	commits, err := a.Commits(ctx, CommitOptions{})
	if err != nil || len(commits) != 0 {
		t.Errorf("Commits = %v, %v, want empty, nil", commits, err)
	}
	d, err := a.Diff(ctx, "a", "b")
	if err != nil || len(d.Files) != 0 || d.NetChange != 0 {
		t.Errorf("Diff = %+v, %v", d, err)
	}
	if lines, err := a.Blame(ctx, "x.go"); err != nil || len(lines) != 0 {
		t.Errorf("Blame = %v, %v", lines, err)
	}
	if authors, err := a.Authors(ctx); err != nil || len(authors) != 0 {
		t.Errorf("Authors = %v, %v", authors, err)
	}
	if a.IsValidRepository(ctx) {
		t.Error("IsValidRepository = true on failure")
	}
}

func TestFailurePolicy_OversizedOutputReadsAsEmpty(t *testing.T) {
	a := NewAnalyzer(".", WithRunner(&fakeRunner{err: ErrOutputTooLarge}))
	commits, err := a.Commits(context.Background(), CommitOptions{})
	if err != nil || len(commits) != 0 {
		t.Errorf("Commits = %v, %v, want empty, nil", commits, err)
	}
}

func TestFailurePolicy_MissingToolIsReported(t *testing.T) {
	for _, runErr := range []error{
		ErrToolUnavailable,
		&exec.Error{Name: "git", Err: exec.ErrNotFound},
	} {
		a := NewAnalyzer(".", WithRunner(&fakeRunner{err: runErr}))
		ctx := context.Background()
		if _, err := a.Commits(ctx, CommitOptions{}); !errors.Is(err, ErrToolUnavailable) {
			t.Errorf("Commits err = %v, want ErrToolUnavailable", err)
		}
		if _, err := a.Authors(ctx); !errors.Is(err, ErrToolUnavailable) {
			t.Errorf("Authors err = %v, want ErrToolUnavailable", err)
		}
		if _, err := a.RepositoryRoot(ctx); !errors.Is(err, ErrToolUnavailable) {
			t.Errorf("RepositoryRoot err = %v, want ErrToolUnavailable", err)
		}
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := ExecRunner{Binary: "definitely-not-a-real-git-binary"}
	_, err := r.Run(context.Background(), t.TempDir(), "status")
	if !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("err = %v, want ErrToolUnavailable", err)
	}
}

func TestRepositoryRoot_NotARepository(t *testing.T) {
	a := NewAnalyzer(t.TempDir(), WithRunner(&fakeRunner{err: errors.New("fatal: not a git repository")}))
	if _, err := a.RepositoryRoot(context.Background()); !errors.Is(err, ErrNotARepository) {
		t.Errorf("err = %v, want ErrNotARepository", err)
	}
}

func TestLimitedBuffer(t *testing.T) {
	b := &limitedBuffer{max: 4}
	if _, err := b.Write([]byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := b.Write([]byte("de")); !errors.Is(err, ErrOutputTooLarge) {
		t.Errorf("err = %v, want ErrOutputTooLarge", err)
	}
	if !b.overflow || b.String() != "abc" {
		t.Errorf("buffer = %q overflow=%v", b.String(), b.overflow)
	}
}

// TestRealRepository runs against a throwaway repository when git exists.
func TestRealRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=John Doe", "GIT_AUTHOR_EMAIL=john@example.com",
			"GIT_COMMITTER_NAME=John Doe", "GIT_COMMITTER_EMAIL=john@example.com",
			"GIT_CONFIG_NOSYSTEM=1", "HOME="+dir,
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
		}
	}
	git("init", "-q")
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	git("add", "a.txt")
	git("commit", "-q", "-m", "feat: first", "-m", "Co-authored-by: Jane Roe <jane@example.com>")

	a := NewAnalyzer(dir, WithTimeout(10*time.Second))
	ctx := context.Background()
	if !a.IsValidRepository(ctx) {
		t.Fatal("IsValidRepository = false")
	}
	commits, err := a.Commits(ctx, CommitOptions{})
	if err != nil {
		t.Fatalf("Commits: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("len(commits) = %d, want 1", len(commits))
	}
	c := commits[0]
	if c.Author != "John Doe" || c.Message != "feat: first" || c.LinesAdded != 3 {
		t.Errorf("commit = %+v", c)
	}
	if !reflect.DeepEqual(c.CoAuthors, []string{"Jane Roe"}) {
		t.Errorf("CoAuthors = %v", c.CoAuthors)
	}
	blame, err := a.Blame(ctx, "a.txt")
	if err != nil || len(blame) != 3 || blame[2].Content != "three" {
		t.Errorf("Blame = %+v, %v", blame, err)
	}
}
