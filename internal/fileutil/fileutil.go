// Package fileutil moves measurement files between the inbound, archive and
// quarantine directories without ever overwriting an existing file.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"
)

// ErrExists is returned when a move target is already taken.
var ErrExists = errors.New("target already exists")

// ListFiles returns the regular, non-hidden files in dir sorted by name.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Stat reports the file dir/name, or false when it does not exist.
func Stat(dir, name string) (os.FileInfo, bool, error) {
	info, err := os.Stat(filepath.Join(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return info, true, nil
}

// StampedName inserts a UTC timestamp with millisecond resolution and an
// optional tag before the extension: "dep42.nc" with tag "1f2e3d4c" becomes
// "dep42_20240501T080000.000Z_1f2e3d4c.nc".
func StampedName(name string, at time.Time, tag string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext) + "_" + at.UTC().Format("20060102T150405.000Z")
	if tag = strings.TrimSpace(tag); tag != "" {
		stem += "_" + tag
	}
	return stem + ext
}

// Move relocates src to dst. It refuses to replace dst, renames when both
// sides share a filesystem and otherwise copies with verification before
// removing src.
func Move(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("move %s: %w: %s", filepath.Base(src), ErrExists, dst)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat target: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("ensure target directory: %w", err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("rename %s: %w", filepath.Base(src), err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// CopyFileVerified streams src to dst, syncs it, then re-reads dst and
// compares its SHA256 and size with the source. It keeps the source
// modification time and removes dst on mismatch.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	if _, err := io.Copy(out, io.TeeReader(in, srcHasher)); err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("sync copy: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}

	if err := verifyFile(dst, srcInfo.Size(), srcHasher.Sum(nil)); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Chtimes(dst, srcInfo.ModTime(), srcInfo.ModTime())
}

// verifyFile reads path back from disk and checks its size and SHA256.
func verifyFile(path string, wantSize int64, wantSum []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reopen copy: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return fmt.Errorf("read back copy: %w", err)
	}
	if n != wantSize {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", wantSize, n)
	}
	if !bytes.Equal(h.Sum(nil), wantSum) {
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}
