package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSystemArchive stores exports under a local directory, mirroring the
// object key layout used in S3
type FileSystemArchive struct {
	rootDir string
}

// NewFileSystemArchive creates the root directory if needed
func NewFileSystemArchive(rootDir string) (*FileSystemArchive, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FileSystemArchive{rootDir: rootDir}, nil
}

// Put implements Archive.Put. The file is written to a temporary name and
// renamed so readers never see a partial export.
func (a *FileSystemArchive) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := a.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}

// Check implements Archive.Check
func (a *FileSystemArchive) Check(ctx context.Context) error {
	info, err := os.Stat(a.rootDir)
	if err != nil {
		return fmt.Errorf("archive directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root %s is not a directory", a.rootDir)
	}
	return nil
}

// path resolves key inside the root, rejecting keys that escape it
func (a *FileSystemArchive) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("invalid archive key %q", key)
	}
	return filepath.Join(a.rootDir, clean), nil
}
