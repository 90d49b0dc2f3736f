package meta

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReadMissingReturnsNil(t *testing.T) {
	s := NewStore(t.TempDir())
	rec, err := s.Read("no-such-branch")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec != nil {
		t.Errorf("Read = %+v, want nil for missing record", rec)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	rec := &Record{
		CreatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		BaseCommit:  "abc1234",
		Trunk:       "main",
		SnapCommand: "claude",
	}
	if err := s.Write("swift-fox", rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := s.Read("swift-fox")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got == nil {
		t.Fatal("Read = nil after Write")
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
	if got.BaseCommit != "abc1234" || got.Trunk != "main" || got.SnapCommand != "claude" {
		t.Errorf("record = %+v", got)
	}
}

func TestReadCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := os.WriteFile(s.Path("broken"), []byte("\t{{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := s.Read("broken")
	var corrupt *CorruptError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Read error = %v, want *CorruptError", err)
	}
	if corrupt.Path != s.Path("broken") {
		t.Errorf("corrupt path = %q", corrupt.Path)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.Write("tidy-owl", NewRecord("abc", "main")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != filepath.Base(s.Path("tidy-owl")) {
			t.Errorf("unexpected file left behind: %s", e.Name())
		}
	}
}

func TestRenameMovesRecord(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Write("old-name", NewRecord("abc", "main")); err != nil {
		t.Fatal(err)
	}
	if err := s.Rename("old-name", "new-name"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if rec, _ := s.Read("old-name"); rec != nil {
		t.Error("old record still present after Rename")
	}
	rec, err := s.Read("new-name")
	if err != nil || rec == nil {
		t.Errorf("new record missing after Rename: rec=%v err=%v", rec, err)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Write("gone", NewRecord("abc", "main")); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("gone"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove("gone"); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}
