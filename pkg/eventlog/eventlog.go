package eventlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"promptstudio/pkg/logger"
)

// dayLayout names one file per UTC day.
const dayLayout = "2006-01-02"

// Log appends usage events to CSV files, one file per UTC day, rotating to
// _partN files when a file exceeds maxBytes. A nil *Log is a no-op sink, so
// callers never need to guard the disabled case.
type Log struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
	now      func() time.Time

	f      *os.File
	w      *csv.Writer
	curDay string
	part   int
	size   int64
}

// New prepares an event log writing under dir. Files are created lazily on
// the first Write of each day.
func New(dir string, maxBytes int64) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("eventlog dir: %w", err)
	}
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &Log{dir: dir, maxBytes: maxBytes, now: time.Now}, nil
}

// Write appends one event row. Meta pairs are flattened into a single
// k=v;k=v column so the files stay greppable.
func (l *Log) Write(event, userKey string, meta map[string]string) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := l.now().UTC()
	if err := l.ensureFileLocked(ts); err != nil {
		return err
	}
	row := []string{ts.Format(time.RFC3339), event, userKey, flattenMeta(meta)}
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return err
	}
	for _, cell := range row {
		l.size += int64(len(cell)) + 1
	}
	return nil
}

// ensureFileLocked opens the file for ts's day, rolling the day or part as
// needed.
func (l *Log) ensureFileLocked(ts time.Time) error {
	day := ts.Format(dayLayout)
	if l.f != nil && day == l.curDay && l.size < l.maxBytes {
		return nil
	}
	if l.f != nil {
		l.w.Flush()
		l.f.Close()
		l.f = nil
	}
	if day != l.curDay {
		l.curDay = day
		l.part = lastPart(l.dir, day)
		l.size = 0
	}
	if l.size >= l.maxBytes {
		l.part++
	}
	name := day + ".csv"
	if l.part > 1 {
		name = fmt.Sprintf("%s_part%d.csv", day, l.part)
	}
	if l.part == 0 {
		l.part = 1
	}
	path := filepath.Join(l.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog open: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	l.f = f
	l.w = csv.NewWriter(f)
	l.size = info.Size()
	return nil
}

// Purge deletes day files older than retentionDays, judged by the date in
// the filename. Files that do not parse as day files are left alone.
func (l *Log) Purge(retentionDays int) error {
	if l == nil || retentionDays <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().UTC().AddDate(0, 0, -retentionDays)
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		day, ok := fileDay(e.Name())
		if !ok {
			continue
		}
		if day.Before(cutoff) {
			if err := os.Remove(filepath.Join(l.dir, e.Name())); err != nil {
				logger.Warn("eventlog_purge_failed", "file", e.Name(), "error", err.Error())
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		logger.Info("eventlog_purged", "removed", removed, "retention_days", retentionDays)
	}
	return nil
}

// Close flushes and closes the active file.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	l.w.Flush()
	err := l.f.Close()
	l.f = nil
	return err
}

// lastPart returns the highest existing part number for day, or 0 when no
// file for the day exists yet.
func lastPart(dir, day string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	max := 0
	for _, e := range entries {
		name := e.Name()
		if name == day+".csv" && max < 1 {
			max = 1
		}
		rest, ok := strings.CutPrefix(name, day+"_part")
		if !ok {
			continue
		}
		rest = strings.TrimSuffix(rest, ".csv")
		if n, err := strconv.Atoi(rest); err == nil && n > max {
			max = n
		}
	}
	return max
}

// fileDay extracts the UTC day a log file covers from its name.
func fileDay(name string) (time.Time, bool) {
	if !strings.HasSuffix(name, ".csv") {
		return time.Time{}, false
	}
	base := strings.TrimSuffix(name, ".csv")
	if i := strings.Index(base, "_part"); i >= 0 {
		base = base[:i]
	}
	t, err := time.Parse(dayLayout, base)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// flattenMeta renders meta pairs as k=v;k=v with stable key order.
func flattenMeta(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+meta[k])
	}
	return strings.Join(parts, ";")
}
