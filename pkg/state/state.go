package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the canonical runtime folder layout under the state dir.
type Paths struct {
	State     string
	EventLog  string
	Retention string
	Telemetry string
	Crash     string
}

// PathsVar is populated by Init and read by packages that persist runtime
// artifacts (event log, retention lock, telemetry, crash dumps).
var PathsVar Paths

// Init ensures the runtime folder layout exists under the provided state
// dir. It rejects symlinks and permissive modes, and verifies each path is
// writable by the process.
func Init(stateDir string) error {
	statePath := filepath.Join(stateDir, "state")
	p := Paths{
		State:     statePath,
		EventLog:  filepath.Join(statePath, "eventlog"),
		Retention: filepath.Join(statePath, "retention"),
		Telemetry: filepath.Join(statePath, "telemetry"),
		Crash:     filepath.Join(statePath, "crash"),
	}

	for _, dir := range []string{p.EventLog, p.Retention, p.Telemetry, p.Crash} {
		if err := ensureDir(dir); err != nil {
			return err
		}
	}
	PathsVar = p
	return nil
}

func ensureDir(p string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("cannot create parent for %s: %w", p, err)
	}

	// if path exists, reject symlinks and non-directories
	if fi, err := os.Lstat(p); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("path is a symlink: %s", p)
		}
		if !fi.IsDir() {
			return fmt.Errorf("path exists and is not a directory: %s", p)
		}
		if fi.Mode().Perm()&0o022 != 0 {
			return fmt.Errorf("path has permissive mode (group/other write): %s", p)
		}
	}

	if err := os.MkdirAll(p, 0o700); err != nil {
		return fmt.Errorf("cannot create path %s: %w", p, err)
	}

	// double-check no symlink raced in after creation
	if fi, err := os.Lstat(p); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("path is a symlink after creation: %s", p)
		}
	}

	// writability check: create and remove a temp file
	tmp, err := os.CreateTemp(p, ".validate-*")
	if err != nil {
		return fmt.Errorf("path not writable: %s: %w", p, err)
	}
	tmp.Close()
	_ = os.Remove(tmp.Name())
	return nil
}
