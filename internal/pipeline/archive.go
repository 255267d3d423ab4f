package pipeline

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
)

// extractArchive expands the zip at src into destRoot. Entry names that
// would land outside destRoot, via an absolute path or a ".." element,
// reject the whole archive.
func extractArchive(src, destRoot string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		if err := extractEntry(entry, destRoot); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(entry *zip.File, destRoot string) error {
	name := entry.Name
	if filepath.IsAbs(name) || containsPathTraversal(name) {
		return fmt.Errorf("%w: entry %q escapes the archive root", ErrBadArchive, name)
	}
	target := filepath.Join(destRoot, filepath.FromSlash(name))

	if entry.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", name, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%w: entry %q: %v", ErrBadArchive, name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("%w: entry %q: %v", ErrBadArchive, name, err)
	}
	return out.Close()
}

// containsPathTraversal reports whether any element of the slash-separated
// name is "..".
func containsPathTraversal(name string) bool {
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// repackArchive builds a fresh deflate zip of everything under root and
// atomically renames it over target. target either keeps its previous bytes
// or becomes the complete new archive; there is no window where it holds a
// partial write. The temp file is synced to disk before the rename installs
// it.
func repackArchive(root, target string) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(target); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".repack-*")
	if err != nil {
		return fmt.Errorf("%w: create temp archive: %v", ErrRepack, err)
	}
	tmpPath := tmp.Name()

	// CreateTemp opens the file as 0600; the repacked archive keeps the
	// permissions the target had before.
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: set archive permissions: %v", ErrRepack, err)
	}

	if err := writeArchive(tmp, root); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: sync temp archive: %v", ErrRepack, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp archive: %v", ErrRepack, err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: replace archive: %v", ErrRepack, err)
	}
	return nil
}

// writeArchive streams every regular file under root into a zip written to
// w. Entry names are slash-separated paths relative to root; WalkDir's
// lexical order makes repacking the same tree twice produce the same entry
// order.
func writeArchive(w io.Writer, root string) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		return addArchiveFile(zw, root, path, d)
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("%w: %v", ErrRepack, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: finalize archive: %v", ErrRepack, err)
	}
	return nil
}

func addArchiveFile(zw *zip.Writer, root, path string, d fs.DirEntry) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return err
	}
	info, err := d.Info()
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(rel)
	hdr.Method = zip.Deflate

	entry, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(entry, f)
	return err
}
