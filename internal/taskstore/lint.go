package taskstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opentask/taskin/internal/taskdoc"
)

// Lint validates every markdown file in the task directory. With fix set,
// each file is repaired before validation and rewritten only when the
// fixer reports a change. A file that cannot be read or written becomes an
// error issue; the pass always covers the whole directory.
func (fs *FileStore) Lint(ctx context.Context, fix bool) (taskdoc.LintResult, error) {
	result := taskdoc.NewLintResult(nil)

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return result, fmt.Errorf("reading task directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		path := filepath.Join(fs.dir, name)
		result.Files++

		data, err := os.ReadFile(path)
		if err != nil {
			result.Add(taskdoc.Issue{Source: path, Severity: taskdoc.SeverityError,
				Message: fmt.Sprintf("cannot read file: %v", err)})
			continue
		}
		content := string(data)

		if fix {
			if fixed, changed := fs.parser.Fix(content); changed {
				if err := writeFile(path, fixed); err != nil {
					result.Add(taskdoc.Issue{Source: path, Severity: taskdoc.SeverityError,
						Message: fmt.Sprintf("cannot write fixed file: %v", err)})
				} else {
					content = fixed
					result.Fixed++
					fs.logger.Info("fixed task document", "path", path)
				}
			}
		}

		result.Add(fs.parser.Validate(path, content, fs.policy)...)
	}
	return result, nil
}
