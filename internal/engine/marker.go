// pattern: Functional Core

package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"arbor/internal/config"
)

// Marker file names inside a git control directory. The merge marker
// lives in the main repository's common dir; the sync marker lives in
// the individual worktree's private git dir, so independent worktrees
// can each be mid-sync at once.
const (
	MergeMarkerName = "ARBOR_MERGE_STATE"
	SyncMarkerName  = "ARBOR_SYNC_STATE"
)

// MergeState is the durable merge-in-progress record. It captures the
// original request's intent so --continue finishes identically to an
// uncontested run, plus the branch the main checkout was on before the
// engine switched it, so --abort can put it back.
type MergeState struct {
	Branch      string          `yaml:"branch"`
	Strategy    config.Strategy `yaml:"strategy"`
	Into        string          `yaml:"into"`
	Keep        bool            `yaml:"keep"`
	SkipHooks   bool            `yaml:"skip_hooks,omitempty"`
	StartedFrom string          `yaml:"started_from,omitempty"`
}

// SyncState is the durable sync-in-progress record for one worktree.
type SyncState struct {
	Branch   string          `yaml:"branch"`
	Strategy config.Strategy `yaml:"strategy"`
	Trunk    string          `yaml:"trunk"`
}

// readMarker loads a marker document into dst. A missing marker returns
// (false, nil).
func readMarker(path string, dst any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading marker %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("parsing marker %s: %w", path, err)
	}
	return true, nil
}

// writeMarker persists a marker document atomically so a crash mid-write
// never leaves a half-written record.
func writeMarker(path string, state any) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding marker: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("creating temporary marker file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing marker %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing marker %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("placing marker %s: %w", path, err)
	}
	return nil
}

// removeMarker deletes a marker. Removing an absent marker is an error:
// the only legitimate callers are the --continue/--abort success paths,
// which have just read it.
func removeMarker(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing marker %s: %w", path, err)
	}
	return nil
}

func markerExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
