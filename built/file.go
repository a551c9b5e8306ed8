package built

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/utkarsh5026/pkgiter/workspace"
)

// StateDir is the per-package directory holding pkgiter state.
const StateDir = ".pkgiter"

var (
	// ErrNoStore is returned when a label is given without a store to check it against.
	ErrNoStore = errors.New("built label given without a built-state store")
	// ErrInvalidLabel is returned for labels that cannot be used as a file name.
	ErrInvalidLabel = errors.New("invalid built label")
)

// ignoredDirs are never considered when checking a package for changes.
var ignoredDirs = map[string]bool{
	StateDir:       true,
	"node_modules": true,
	".git":         true,
}

type marker struct {
	Label   string    `json:"label"`
	Package string    `json:"package"`
	BuiltAt time.Time `json:"builtAt"`
}

// FileStore keeps one marker file per package and label under the package's
// own directory. A marker goes stale as soon as any file in the package is
// modified after it was written.
type FileStore struct {
	fs  afero.Fs
	now func() time.Time
}

// NewFileStore creates a FileStore on fsys. Pass afero.NewOsFs() for the real
// filesystem.
func NewFileStore(fsys afero.Fs) *FileStore {
	return &FileStore{fs: fsys, now: time.Now}
}

func (s *FileStore) markerPath(pkg workspace.Package, label string) (string, error) {
	if label == "" || label != filepath.Base(label) || label == "." || label == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return filepath.Join(pkg.Location, StateDir, "built", label+".json"), nil
}

// IsBuilt reports whether a marker for label exists and no file of the
// package changed since it was written.
func (s *FileStore) IsBuilt(ctx context.Context, pkg workspace.Package, label string) (bool, error) {
	path, err := s.markerPath(pkg, label)
	if err != nil {
		return false, err
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read marker: %w", err)
	}

	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		return false, fmt.Errorf("decode marker %s: %w", path, err)
	}

	changed, err := s.changedSince(ctx, pkg.Location, m.BuiltAt)
	if err != nil {
		return false, err
	}
	return !changed, nil
}

// MarkBuilt writes the marker for label. The write is atomic: data goes to a
// temporary file first and is then renamed into place.
func (s *FileStore) MarkBuilt(_ context.Context, pkg workspace.Package, label string) error {
	path, err := s.markerPath(pkg, label)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}

	unlock, err := lockDir(s.fs, filepath.Join(pkg.Location, StateDir))
	if err != nil {
		return err
	}
	defer unlock()

	data, err := json.MarshalIndent(marker{
		Label:   label,
		Package: pkg.Name,
		BuiltAt: s.now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal marker: %w", err)
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp marker: %w", err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename temp marker: %w", err)
	}
	return nil
}

// Clear removes the marker for label, if any.
func (s *FileStore) Clear(pkg workspace.Package, label string) error {
	path, err := s.markerPath(pkg, label)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove marker: %w", err)
	}
	return nil
}

// errChanged stops the walk at the first modified file.
var errChanged = errors.New("changed")

func (s *FileStore) changedSince(ctx context.Context, root string, since time.Time) (bool, error) {
	err := afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() {
			if path != root && ignoredDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if info.ModTime().After(since) {
			return errChanged
		}
		return nil
	})

	switch {
	case errors.Is(err, errChanged):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("scan %s: %w", root, err)
	default:
		return false, nil
	}
}
