package rotatelog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cr35drv.log")
	w, err := New(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file created: %v", err)
	}
}

func TestWrite_AppendsWithoutRotationBelowThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cr35drv.log")
	w, err := New(path, 1024)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("world\n")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\nworld\n" {
		t.Errorf("file contents = %q", data)
	}
	if _, err := os.Stat(backupPath(path)); err == nil {
		t.Error("did not expect a backup file below the size threshold")
	}
}

func TestWrite_RotatesPastMaxSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cr35drv.log")
	w, err := New(path, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("0123456789AB")); err != nil {
		t.Fatal(err)
	}
	// the next write lands in the fresh post-rotation file
	if _, err := w.Write([]byte("fresh\n")); err != nil {
		t.Fatal(err)
	}

	backup, err := os.ReadFile(backupPath(path))
	if err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
	if string(backup) != "0123456789AB" {
		t.Errorf("backup contents = %q", backup)
	}

	current, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(current) != "fresh\n" {
		t.Errorf("current file contents = %q", current)
	}
}

func TestWrite_RotationReplacesOldBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cr35drv.log")
	w, err := New(path, 5)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.Write([]byte("111111")) // exceeds maxSize, rotates: backup becomes "111111"
	w.Write([]byte("222222")) // exceeds maxSize again: backup should become "222222"

	backup, err := os.ReadFile(backupPath(path))
	if err != nil {
		t.Fatal(err)
	}
	if string(backup) != "222222" {
		t.Errorf("backup contents = %q, want %q (the most recent rotated-out file)", backup, "222222")
	}
}

func TestBackupPath_PreservesExtension(t *testing.T) {
	if got := backupPath("/var/log/cr35drv.log"); got != "/var/log/cr35drv.1.log" {
		t.Errorf("backupPath = %q", got)
	}
	if got := backupPath("/var/log/cr35drv"); got != "/var/log/cr35drv.1" {
		t.Errorf("backupPath = %q", got)
	}
}
