package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/kozaktomas/me-in-moments/internal/facematch"
)

// ArchiveName is the download name of an exported match set.
const ArchiveName = "matching_images.zip"

// WriteArchive writes a zip containing the image file of every record in set.
// Entries are named by the record's original base name; repeated names get a
// numeric suffix. Entries are stored without compression.
func WriteArchive(w io.Writer, set facematch.MatchSet) error {
	zw := zip.NewWriter(w)
	used := make(map[string]int, len(set))

	for _, r := range set {
		name := r.Name
		if name == "" {
			name = filepath.Base(r.ImagePath)
		}
		if err := addFile(zw, r.ImagePath, entryName(name, used)); err != nil {
			zw.Close()
			return facematch.NewImageError(facematch.StageExport, r.ImagePath, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: finish archive: %v", facematch.ErrStorageFailure, err)
	}
	return nil
}

// WriteArchiveFile writes the archive for set into path.
func WriteArchiveFile(path string, set facematch.MatchSet) error {
	out, err := os.Create(path) //nolint:gosec // path chosen by the caller
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", facematch.ErrStorageFailure, path, err)
	}
	if err := WriteArchive(out, set); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", facematch.ErrStorageFailure, path, err)
	}
	return nil
}

func entryName(name string, used map[string]int) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + " (" + strconv.Itoa(n+1) + ")" + ext
}

func addFile(zw *zip.Writer, path, name string) error {
	in, err := os.Open(path) //nolint:gosec // path comes from the match set
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %v", facematch.ErrInputNotFound, err)
		}
		return fmt.Errorf("%w: %v", facematch.ErrStorageFailure, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", facematch.ErrStorageFailure, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("%w: %v", facematch.ErrStorageFailure, err)
	}
	header.Name = name
	header.Method = zip.Store

	part, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("%w: %v", facematch.ErrStorageFailure, err)
	}
	if _, err := io.Copy(part, in); err != nil {
		return fmt.Errorf("%w: %v", facematch.ErrStorageFailure, err)
	}
	return nil
}
