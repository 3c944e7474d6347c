package storefs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-deck-export/export"
)

// Store writes artifacts to the local filesystem. Writes go to a temp file in the
// destination directory and are renamed into place, so readers see either the
// previous artifact or the complete new one.
type Store struct {
	// Root confines artifacts to a directory when set.
	Root string
	// Perm is applied to written artifacts.
	Perm os.FileMode
}

// NewStore creates a filesystem store that accepts any path.
func NewStore() *Store {
	return &Store{Perm: 0o644}
}

// NewRootedStore creates a store confined to root.
func NewRootedStore(root string) *Store {
	return &Store{Root: root, Perm: 0o644}
}

// Put atomically replaces the artifact at path with the contents of r.
func (s *Store) Put(ctx context.Context, path string, r io.Reader) (int64, error) {
	if s == nil {
		return 0, export.NewError(export.KindInternal, "store is nil", nil)
	}
	if r == nil {
		return 0, export.NewError(export.KindValidation, "artifact reader is required", nil)
	}

	pathOnDisk, err := s.resolvePath(path)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, export.NewError(export.KindCanceled, "artifact write canceled", err)
	}

	dir := filepath.Dir(pathOnDisk)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, export.NewError(export.KindCapture, fmt.Sprintf("create output directory %s", dir), err)
	}

	tmp, err := os.CreateTemp(dir, ".deck-export-*")
	if err != nil {
		return 0, export.NewError(export.KindCapture, fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return 0, export.NewError(export.KindCapture, "write artifact", err)
	}
	if err := tmp.Chmod(s.perm()); err != nil {
		return 0, export.NewError(export.KindCapture, "set artifact permissions", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, export.NewError(export.KindCapture, "sync artifact", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, export.NewError(export.KindCapture, "close artifact", err)
	}

	if err := os.Rename(tmp.Name(), pathOnDisk); err != nil {
		return 0, export.NewError(export.KindCapture, fmt.Sprintf("replace %s", pathOnDisk), err)
	}
	return size, nil
}

// Open reads an artifact from disk.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	_ = ctx
	if s == nil {
		return nil, export.NewError(export.KindInternal, "store is nil", nil)
	}
	pathOnDisk, err := s.resolvePath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(pathOnDisk)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, export.NewError(export.KindNotFound, fmt.Sprintf("artifact %q not found", path), err)
		}
		return nil, err
	}
	return file, nil
}

// Remove deletes an artifact. Missing artifacts are not an error.
func (s *Store) Remove(ctx context.Context, path string) error {
	_ = ctx
	if s == nil {
		return export.NewError(export.KindInternal, "store is nil", nil)
	}
	pathOnDisk, err := s.resolvePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(pathOnDisk); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", export.NewError(export.KindValidation, "artifact path is required", nil)
	}
	if s.Root == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", export.NewError(export.KindValidation, "invalid artifact path", err)
		}
		return abs, nil
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	target = filepath.Clean(target)
	if target == root || !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", export.NewError(export.KindValidation, "artifact path escapes root", nil)
	}
	return target, nil
}

func (s *Store) perm() os.FileMode {
	if s.Perm == 0 {
		return 0o644
	}
	return s.Perm
}
