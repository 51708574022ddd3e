// Package workspace manages the on-disk directories of a matching run:
// uploaded reference and target images and exported archives.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kozaktomas/me-in-moments/internal/facematch"
)

// DefaultExtensions are the image types accepted for matching.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png"}

// Workspace is a directory tree holding the files of one run.
type Workspace struct {
	Base         string
	ReferenceDir string
	TargetDir    string
	OutputDir    string

	extensions []string
}

// New prepares a workspace rooted at base and creates its directories.
func New(base string, extensions []string) (*Workspace, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	w := &Workspace{
		Base:         base,
		ReferenceDir: filepath.Join(base, "reference"),
		TargetDir:    filepath.Join(base, "targets"),
		OutputDir:    filepath.Join(base, "output"),
		extensions:   extensions,
	}
	if err := w.Create(); err != nil {
		return nil, err
	}
	return w, nil
}

// NewTemp creates a workspace in a fresh temporary directory under dir
// (os.TempDir when dir is empty).
func NewTemp(dir string, extensions []string) (*Workspace, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", facematch.ErrStorageFailure, dir, err)
		}
	}
	base, err := os.MkdirTemp(dir, "meinmoments-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp workspace: %v", facematch.ErrStorageFailure, err)
	}
	return New(base, extensions)
}

// Create makes all workspace directories. Existing directories are kept.
func (w *Workspace) Create() error {
	for _, dir := range []string{w.Base, w.ReferenceDir, w.TargetDir, w.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %v", facematch.ErrStorageFailure, dir, err)
		}
	}
	return nil
}

// Clear deletes everything in the workspace and recreates the empty layout.
func (w *Workspace) Clear() error {
	if err := os.RemoveAll(w.Base); err != nil {
		return fmt.Errorf("%w: clear %s: %v", facematch.ErrStorageFailure, w.Base, err)
	}
	return w.Create()
}

// Remove deletes the workspace directory tree.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.Base); err != nil {
		return fmt.Errorf("%w: remove %s: %v", facematch.ErrStorageFailure, w.Base, err)
	}
	return nil
}

// Extensions returns the accepted image extensions.
func (w *Workspace) Extensions() []string {
	return w.extensions
}

// SaveReference stores the reference image and returns its path.
func (w *Workspace) SaveReference(name string, r io.Reader) (string, error) {
	return w.saveFile(w.ReferenceDir, name, r)
}

// SaveTarget stores a target image and returns its path. Names that are
// already taken get a numeric suffix.
func (w *Workspace) SaveTarget(name string, r io.Reader) (string, error) {
	return w.saveFile(w.TargetDir, name, r)
}

func (w *Workspace) saveFile(dir, name string, r io.Reader) (string, error) {
	path := uniquePath(dir, SafeFileName(name))
	out, err := os.Create(path) //nolint:gosec // filename sanitized via SafeFileName
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %v", facematch.ErrStorageFailure, path, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return "", fmt.Errorf("%w: write %s: %v", facematch.ErrStorageFailure, path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s: %v", facematch.ErrStorageFailure, path, err)
	}
	return path, nil
}

// uniquePath returns dir/name, or dir/name-N.ext if that file already exists.
func uniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, stem+"-"+strconv.Itoa(i)+ext)
		if _, err := os.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
	}
}

// ListImages returns the image files directly inside dir, sorted by name.
func (w *Workspace) ListImages(dir string) ([]string, error) {
	return ListImages(dir, w.extensions)
}

// ListImages returns the files directly inside dir whose extension is one of
// exts, sorted by name.
func ListImages(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: folder %s", facematch.ErrInputNotFound, dir)
		}
		return nil, fmt.Errorf("%w: read %s: %v", facematch.ErrStorageFailure, dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !HasImageExtension(e.Name(), exts) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ExpandImagePaths resolves a mix of files and directories into image paths.
// Files are kept in argument order; each directory contributes its images in
// name order. Missing inputs and empty results are ErrInputNotFound.
func ExpandImagePaths(inputs []string, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	var paths []string
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", facematch.ErrInputNotFound, input)
			}
			return nil, fmt.Errorf("stat %s: %w", input, err)
		}
		if !info.IsDir() {
			paths = append(paths, input)
			continue
		}
		images, err := ListImages(input, exts)
		if err != nil {
			return nil, err
		}
		if len(images) == 0 {
			return nil, fmt.Errorf("%w: no valid images found in folder %s", facematch.ErrInputNotFound, input)
		}
		paths = append(paths, images...)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no target images given", facematch.ErrInputNotFound)
	}
	return paths, nil
}
