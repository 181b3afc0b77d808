package fileutil

import (
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestListFilesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.nc", "a.nc", ".partial.nc"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ListFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a.nc", "b.nc"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ListFiles = %v, want %v", got, want)
	}
}

func TestStat(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.nc"), []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, ok, err := Stat(dir, "a.nc")
	if err != nil || !ok || info.Size() != 3 {
		t.Fatalf("Stat(a.nc) = %v, %v, %v", info, ok, err)
	}
	if _, ok, err := Stat(dir, "missing.nc"); err != nil || ok {
		t.Fatalf("Stat(missing) = %v, %v", ok, err)
	}
}

func TestStampedName(t *testing.T) {
	at := time.Date(2024, 5, 1, 8, 0, 0, 250_000_000, time.FixedZone("CEST", 2*3600))
	if got := StampedName("dep42.nc", at, "1f2e3d4c"); got != "dep42_20240501T060000.250Z_1f2e3d4c.nc" {
		t.Fatalf("StampedName = %q", got)
	}
	if got := StampedName("noext", at, ""); got != "noext_20240501T060000.250Z" {
		t.Fatalf("StampedName = %q", got)
	}
	if StampedName("dep42.nc", at, "a") == StampedName("dep42.nc", at, "b") {
		t.Fatal("expected tags to distinguish names stamped at the same instant")
	}
}

func TestMoveRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "a.nc")
	dst := filepath.Join(dir, "archive", "a.nc")
	for _, p := range []string{src, dst} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(p), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := Move(src, dst); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source should be untouched: %v", err)
	}
}

func TestMoveCreatesTargetDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.nc")
	dst := filepath.Join(dir, "quarantine", "nested", "a.nc")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Move(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, got %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "payload" {
		t.Fatalf("target content = %q, %v", got, err)
	}
}

func TestCopyFileVerifiedKeepsModTime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.nc")
	dst := filepath.Join(dir, "dst.nc")
	if err := os.WriteFile(src, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Fatalf("mod time = %v, want %v", info.ModTime(), mtime)
	}
	if err := CopyFileVerified(src, dst); err == nil {
		t.Fatal("expected existing target to be rejected")
	}
}

func TestVerifyFileDetectsCorruptedCopy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "copy.nc")
	want := []byte("hello world")
	sum := sha256.Sum256(want)

	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := verifyFile(path, int64(len(want)), sum[:]); err != nil {
		t.Fatalf("intact copy rejected: %v", err)
	}

	// same length, one flipped byte
	if err := os.WriteFile(path, []byte("hello_world"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := verifyFile(path, int64(len(want)), sum[:]); err == nil {
		t.Fatal("expected hash mismatch for corrupted copy")
	}

	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := verifyFile(path, int64(len(want)), sum[:]); err == nil {
		t.Fatal("expected size mismatch for truncated copy")
	}
}
