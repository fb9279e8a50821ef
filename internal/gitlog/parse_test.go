package gitlog

import (
	"reflect"
	"testing"
	"time"
)

const twoCommits = "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2|John Doe|2026-01-08T10:00:00+00:00|feat: add parser\x00Implements the parser.\n" +
	"\n" +
	"Co-authored-by: Jane Roe <jane@example.com>\n" +
	"co-authored-by: Max Mustermann <max@example.com>\n" +
	"\n" +
	"10\t5\tsrc/a.ts\n" +
	"3\t2\tsrc/b.ts\n" +
	"-\t-\tassets/logo.png\n" +
	"\n" +
	"0f0f0f0|Jane Roe|2026-01-09T14:30:00+02:00|fix: handle | in subject\x00\n" +
	"1\t1\tREADME.md\n"

func TestParseLog_TwoCommits(t *testing.T) {
	commits := ParseLog(twoCommits)
	if len(commits) != 2 {
		t.Fatalf("len(commits) = %d, want 2", len(commits))
	}

	first := commits[0]
	if first.Hash != "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2" || first.Author != "John Doe" {
		t.Errorf("first header = %s / %s", first.Hash, first.Author)
	}
	if first.Message != "feat: add parser" {
		t.Errorf("Message = %q", first.Message)
	}
	if first.LinesAdded != 13 || first.LinesRemoved != 7 || first.FilesChanged != 2 {
		t.Errorf("stats = +%d -%d files %d, want +13 -7 files 2", first.LinesAdded, first.LinesRemoved, first.FilesChanged)
	}
	wantCo := []string{"Jane Roe", "Max Mustermann"}
	if !reflect.DeepEqual(first.CoAuthors, wantCo) {
		t.Errorf("CoAuthors = %v, want %v", first.CoAuthors, wantCo)
	}
	if !first.Date.Equal(time.Date(2026, 1, 8, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v", first.Date)
	}
	if want := "Implements the parser.\n\nCo-authored-by: Jane Roe <jane@example.com>\nco-authored-by: Max Mustermann <max@example.com>"; first.Body != want {
		t.Errorf("Body = %q, want %q", first.Body, want)
	}

	second := commits[1]
	if second.Message != "fix: handle | in subject" {
		t.Errorf("subject with delimiter = %q", second.Message)
	}
	if second.LinesAdded != 1 || second.LinesRemoved != 1 || len(second.CoAuthors) != 0 {
		t.Errorf("second = %+v", second)
	}
	if got := second.Authors(); !reflect.DeepEqual(got, []string{"Jane Roe"}) {
		t.Errorf("Authors() = %v", got)
	}
}

func TestParseLog_BodyLinesThatLookLikeHeaders(t *testing.T) {
	out := "abcdef1|Ann|2026-02-01T09:00:00Z|chore: notes\x00table: a|b|c|d\n" +
		"xyz|not|a|header\n" +
		"\n" +
		"2\t0\tnotes.md\n"
	commits := ParseLog(out)
	if len(commits) != 1 {
		t.Fatalf("len(commits) = %d, want 1 (only hex hashes start a commit)", len(commits))
	}
	if commits[0].Body != "table: a|b|c|d\nxyz|not|a|header" {
		t.Errorf("Body = %q", commits[0].Body)
	}
	if commits[0].LinesAdded != 2 {
		t.Errorf("LinesAdded = %d, want 2", commits[0].LinesAdded)
	}
}

func TestParseLog_ShortHashBoundary(t *testing.T) {
	if got := ParseLog("abcde|A|2026-01-01T00:00:00Z|five\x00\n"); len(got) != 0 {
		t.Errorf("5-char hash accepted: %v", got)
	}
	if got := ParseLog("abcdef|A|2026-01-01T00:00:00Z|six\x00\n"); len(got) != 1 {
		t.Errorf("6-char hash rejected")
	}
}

func TestParseLog_Empty(t *testing.T) {
	if got := ParseLog(""); len(got) != 0 {
		t.Errorf("ParseLog(\"\") = %v", got)
	}
}

func TestParseNumstat(t *testing.T) {
	d := ParseNumstat("10\t5\tsrc/a.ts\n-\t-\tbinary.png\n3\t2\tsrc/b.ts\n")
	if len(d.Files) != 2 {
		t.Fatalf("len(Files) = %d, want 2 (binary excluded)", len(d.Files))
	}
	for _, f := range d.Files {
		if f.Path == "binary.png" {
			t.Error("binary file listed")
		}
	}
	if d.TotalLinesAdded != 13 || d.TotalLinesRemoved != 7 || d.NetChange != 6 {
		t.Errorf("totals = %d/%d/%d, want 13/7/6", d.TotalLinesAdded, d.TotalLinesRemoved, d.NetChange)
	}
}

func TestParseNumstat_Renames(t *testing.T) {
	d := ParseNumstat("4\t1\tsrc/{old => new}/file.go\n0\t0\ta.txt => b.txt\n")
	want := []FileDiff{
		{Path: "src/new/file.go", OldPath: "src/old/file.go", LinesAdded: 4, LinesRemoved: 1, ChangeType: ChangeRenamed},
		{Path: "b.txt", OldPath: "a.txt", ChangeType: ChangeRenamed},
	}
	if !reflect.DeepEqual(d.Files, want) {
		t.Errorf("Files = %+v, want %+v", d.Files, want)
	}
}

func TestParseShortlog(t *testing.T) {
	authors := ParseShortlog("   123\tJohn Doe <john@example.com>\n     4  Ana Maria Silva <ana@example.com>\ngarbage\n")
	want := []Author{
		{Name: "John Doe", Email: "john@example.com", Commits: 123},
		{Name: "Ana Maria Silva", Email: "ana@example.com", Commits: 4},
	}
	if !reflect.DeepEqual(authors, want) {
		t.Errorf("authors = %+v, want %+v", authors, want)
	}
}

func TestParseShortlog_PaddedCount(t *testing.T) {
	got := ParseShortlog("   123  John Doe <john@example.com>")
	if len(got) != 1 || got[0] != (Author{Name: "John Doe", Email: "john@example.com", Commits: 123}) {
		t.Errorf("got %+v", got)
	}
}

func TestParseBlame(t *testing.T) {
	out := "1111111111111111111111111111111111111111 1 1 2\n" +
		"author John Doe\n" +
		"author-mail <john@example.com>\n" +
		"author-time 1767866400\n" +
		"author-tz +0000\n" +
		"summary init\n" +
		"filename main.go\n" +
		"\tpackage main\n" +
		"1111111111111111111111111111111111111111 2 2\n" +
		"author John Doe\n" +
		"author-time 1767866400\n" +
		"filename main.go\n" +
		"\t\n" +
		"2222222222222222222222222222222222222222 5 3 1\n" +
		"author Jane Roe\n" +
		"author-time 1767952800\n" +
		"filename main.go\n" +
		"\tfunc main() {}\n"

	lines := ParseBlame(out)
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	if lines[0].Author != "John Doe" || lines[0].Content != "package main" || lines[0].LineNumber != 1 {
		t.Errorf("lines[0] = %+v", lines[0])
	}
	if lines[1].Content != "" {
		t.Errorf("empty source line = %q", lines[1].Content)
	}
	last := lines[2]
	if last.CommitHash != "2222222222222222222222222222222222222222" || last.LineNumber != 3 || last.Author != "Jane Roe" {
		t.Errorf("lines[2] = %+v", last)
	}
	if !last.Date.Equal(time.Unix(1767952800, 0)) {
		t.Errorf("Date = %v", last.Date)
	}
}
