package gitlog

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// logFormat emits "hash|author|date|subject", a NUL byte, then the body.
// --numstat lines follow each commit.
const logFormat = "--pretty=format:%H|%an|%aI|%s%x00%b"

var (
	hexHash    = regexp.MustCompile(`^[0-9a-f]{6,40}$`)
	statLine   = regexp.MustCompile(`^(\d+|-)\t(\d+|-)\t(.+)$`)
	coAuthor   = regexp.MustCompile(`(?im)^\s*Co-authored-by:\s*(.+?)\s*<(.+?)>`)
	blameHead  = regexp.MustCompile(`^([0-9a-f]{40}) \d+ (\d+)`)
	authorLine = regexp.MustCompile(`^\s*(\d+)\s+(.+?)\s+<(.+?)>\s*$`)
	braceMove  = regexp.MustCompile(`^(.*)\{(.*) => (.*)\}(.*)$`)
)

// parseHeader recognizes a commit header: the "|" delimiter with a hex
// hash as first field. first is the text after the NUL byte, which is the
// first body line.
func parseHeader(line string) (c Commit, first string, ok bool) {
	head, rest, _ := strings.Cut(line, "\x00")
	parts := strings.SplitN(head, "|", 4)
	if len(parts) != 4 || !hexHash.MatchString(parts[0]) {
		return Commit{}, "", false
	}
	date, _ := time.Parse(time.RFC3339, parts[2])
	return Commit{
		Hash:    parts[0],
		Author:  parts[1],
		Date:    date,
		Message: parts[3],
	}, rest, true
}

// parseStat parses one "added\tremoved\tpath" line. binary is true for the
// "-\t-" form, which carries no line counts.
func parseStat(line string) (fd FileDiff, binary, ok bool) {
	m := statLine.FindStringSubmatch(line)
	if m == nil {
		return FileDiff{}, false, false
	}
	if m[1] == "-" || m[2] == "-" {
		return FileDiff{Path: m[3]}, true, true
	}
	added, _ := strconv.Atoi(m[1])
	removed, _ := strconv.Atoi(m[2])
	fd = FileDiff{Path: m[3], LinesAdded: added, LinesRemoved: removed, ChangeType: ChangeModified}
	if old, cur, renamed := splitRename(m[3]); renamed {
		fd.OldPath, fd.Path, fd.ChangeType = old, cur, ChangeRenamed
	}
	return fd, false, true
}

// splitRename expands "dir/{a => b}/f" and "a => b" rename notation.
func splitRename(path string) (old, cur string, ok bool) {
	if m := braceMove.FindStringSubmatch(path); m != nil {
		join := func(mid string) string {
			return strings.ReplaceAll(m[1]+mid+m[4], "//", "/")
		}
		return join(m[2]), join(m[3]), true
	}
	if o, n, found := strings.Cut(path, " => "); found {
		return o, n, true
	}
	return "", path, false
}

// ParseLog parses the output of git log with logFormat and --numstat.
//
// Body lines accumulate until the first stat line or the next header;
// stat lines accumulate until the next header. Binary stat lines are
// skipped from the totals.
func ParseLog(out string) []Commit {
	var (
		commits []Commit
		cur     *Commit
		body    []string
		inStats bool
	)
	flush := func() {
		if cur == nil {
			return
		}
		cur.Body = strings.TrimSpace(strings.Join(body, "\n"))
		cur.CoAuthors = coAuthors(cur.Body)
		commits = append(commits, *cur)
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")

		if c, first, ok := parseHeader(line); ok {
			flush()
			cur, body, inStats = &c, nil, false
			if first != "" {
				body = append(body, first)
			}
			continue
		}
		if cur == nil {
			continue
		}
		if fd, binary, ok := parseStat(line); ok {
			inStats = true
			if binary {
				continue
			}
			cur.FilesChanged++
			cur.LinesAdded += fd.LinesAdded
			cur.LinesRemoved += fd.LinesRemoved
			cur.Files = append(cur.Files, fd)
			continue
		}
		if inStats {
			continue
		}
		body = append(body, line)
	}
	flush()
	return commits
}

func coAuthors(text string) []string {
	var names []string
	for _, m := range coAuthor.FindAllStringSubmatch(text, -1) {
		names = append(names, strings.TrimSpace(m[1]))
	}
	return names
}

// ParseNumstat parses diff --numstat output. Binary files are excluded
// from both the file list and the totals.
func ParseNumstat(out string) Diff {
	d := Diff{Files: []FileDiff{}}
	for _, line := range strings.Split(out, "\n") {
		fd, binary, ok := parseStat(strings.TrimRight(line, "\r"))
		if !ok || binary {
			continue
		}
		d.Files = append(d.Files, fd)
		d.TotalLinesAdded += fd.LinesAdded
		d.TotalLinesRemoved += fd.LinesRemoved
	}
	d.NetChange = d.TotalLinesAdded - d.TotalLinesRemoved
	return d
}

// ParseBlame parses git blame --line-porcelain output into one record per
// content line.
func ParseBlame(out string) []BlameLine {
	var (
		lines []BlameLine
		cur   BlameLine
	)
	for _, line := range strings.Split(out, "\n") {
		if m := blameHead.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[2])
			cur = BlameLine{CommitHash: m[1], LineNumber: n}
			continue
		}
		switch {
		case strings.HasPrefix(line, "author "):
			cur.Author = strings.TrimPrefix(line, "author ")
		case strings.HasPrefix(line, "author-time "):
			if sec, err := strconv.ParseInt(strings.TrimPrefix(line, "author-time "), 10, 64); err == nil {
				cur.Date = time.Unix(sec, 0).UTC()
			}
		case strings.HasPrefix(line, "\t"):
			cur.Content = line[1:]
			lines = append(lines, cur)
		}
	}
	return lines
}

// ParseShortlog parses git shortlog -sne output.
func ParseShortlog(out string) []Author {
	var authors []Author
	for _, line := range strings.Split(out, "\n") {
		m := authorLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		authors = append(authors, Author{Name: m[2], Email: m[3], Commits: n})
	}
	return authors
}
