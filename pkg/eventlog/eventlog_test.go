package eventlog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteAppendsDailyCSV(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer l.Close()
	l.now = func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }

	if err := l.Write("create_submission", "guest", map[string]string{"submission_id": "s1", "function": "sales"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Write("view_prompt", "u1", nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "2025-06-01.csv"))
	if err != nil {
		t.Fatalf("open day file: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "create_submission" || rows[0][2] != "guest" {
		t.Fatalf("unexpected first row: %v", rows[0])
	}
	// meta keys are sorted for stable output
	if rows[0][3] != "function=sales;submission_id=s1" {
		t.Fatalf("unexpected meta column: %q", rows[0][3])
	}
	if rows[1][3] != "" {
		t.Fatalf("expected empty meta, got %q", rows[1][3])
	}
}

func TestWriteRotatesOnSize(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, 64)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer l.Close()
	l.now = func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }

	for i := 0; i < 10; i++ {
		if err := l.Write("rate_prompt", "u1", map[string]string{"stars": "5"}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	l.Close()

	if _, err := os.Stat(filepath.Join(dir, "2025-06-01.csv")); err != nil {
		t.Fatalf("base day file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "2025-06-01_part2.csv")); err != nil {
		t.Fatalf("expected rotation into _part2: %v", err)
	}
}

func TestWriteRollsOverAtMidnight(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer l.Close()

	day := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	l.now = func() time.Time { return day }
	if err := l.Write("view_prompt", "u1", nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	day = day.Add(2 * time.Minute)
	if err := l.Write("view_prompt", "u1", nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	l.Close()

	for _, name := range []string{"2025-06-01.csv", "2025-06-02.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
}

func TestPurgeDropsOldDayFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"2025-01-01.csv", "2025-01-01_part2.csv", "2025-05-30.csv", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	l, err := New(dir, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer l.Close()
	l.now = func() time.Time { return time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC) }

	if err := l.Purge(90); err != nil {
		t.Fatalf("purge: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	got := strings.Join(left, ",")
	if strings.Contains(got, "2025-01-01") {
		t.Fatalf("old files survived purge: %v", left)
	}
	for _, want := range []string{"2025-05-30.csv", "notes.txt"} {
		if !strings.Contains(got, want) {
			t.Fatalf("%s should survive purge, left: %v", want, left)
		}
	}
}

func TestNilLogIsNoop(t *testing.T) {
	var l *Log
	if err := l.Write("view_prompt", "u1", nil); err != nil {
		t.Fatalf("nil write: %v", err)
	}
	if err := l.Purge(30); err != nil {
		t.Fatalf("nil purge: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
