// pattern: Imperative Shell
package meta

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const fileSuffix = ".meta.yaml"

// Record is the persisted per-worktree metadata, stored as a sibling of
// the worktree checkout in the project's workspace directory.
type Record struct {
	CreatedAt   time.Time `yaml:"created_at"`
	BaseCommit  string    `yaml:"base_commit"`
	Trunk       string    `yaml:"trunk"`
	SnapCommand string    `yaml:"snap_command,omitempty"`
}

// NewRecord creates a Record stamped with the current time.
func NewRecord(baseCommit, trunk string) *Record {
	return &Record{
		CreatedAt:  time.Now().UTC(),
		BaseCommit: baseCommit,
		Trunk:      trunk,
	}
}

// CorruptError marks a record that exists on disk but cannot be parsed.
// It is attached to the single affected entry and never aborts a listing.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt metadata record %s: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Store reads and writes metadata records for one project's workspace
// directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at the project workspace directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the record path for a branch.
func (s *Store) Path(branch string) string {
	return filepath.Join(s.dir, branch+fileSuffix)
}

// Read loads the record for a branch. A missing record returns (nil, nil):
// the worktree exists in git but was not created by this tool. An
// unparseable record returns *CorruptError.
func (s *Store) Read(branch string) (*Record, error) {
	path := s.Path(branch)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading metadata for %q: %w", branch, err)
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	return &rec, nil
}

// Write persists the record for a branch atomically: the document is
// written to a temporary file in the same directory and renamed into
// place, so concurrent readers never observe a partial record.
func (s *Store) Write(branch string, rec *Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding metadata for %q: %w", branch, err)
	}

	path := s.Path(branch)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("creating temporary metadata file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing metadata for %q: %w", branch, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing metadata for %q: %w", branch, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing metadata for %q: %w", branch, err)
	}
	return nil
}

// Rename moves a branch's record to a new branch name.
func (s *Store) Rename(old, new string) error {
	if err := os.Rename(s.Path(old), s.Path(new)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil // foreign worktree, nothing to move
		}
		return fmt.Errorf("renaming metadata %q to %q: %w", old, new, err)
	}
	return nil
}

// Remove deletes a branch's record. Removing an absent record is not an
// error.
func (s *Store) Remove(branch string) error {
	if err := os.Remove(s.Path(branch)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing metadata for %q: %w", branch, err)
	}
	return nil
}
