package pipeline

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// writeTestArchive writes a zip at path with the given entries, names in
// sorted order.
func writeTestArchive(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create(%s) error = %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip Create(%s) error = %v", name, err)
		}
		if _, err := w.Write(entries[name]); err != nil {
			t.Fatalf("zip Write(%s) error = %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip Close() error = %v", err)
	}
}

// readArchive returns every entry of the zip at path keyed by entry name.
func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader(%s) error = %v", path, err)
	}
	defer zr.Close()

	out := make(map[string][]byte, len(zr.File))
	for _, entry := range zr.File {
		rc, err := entry.Open()
		if err != nil {
			t.Fatalf("entry Open(%s) error = %v", entry.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("entry ReadAll(%s) error = %v", entry.Name, err)
		}
		out[entry.Name] = data
	}
	return out
}

func TestExtractArchive_RejectsEscapingEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{"Parent traversal", "../evil.txt"},
		{"Nested traversal", "ppt/../../evil.txt"},
		{"Absolute path", "/evil.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "bad.zip")
			writeTestArchive(t, src, map[string][]byte{tt.entry: []byte("x")})

			root := filepath.Join(dir, "extracted")
			if err := os.MkdirAll(root, 0o755); err != nil {
				t.Fatalf("MkdirAll() error = %v", err)
			}

			err := extractArchive(src, root)
			if !errors.Is(err, ErrBadArchive) {
				t.Errorf("extractArchive() error = %v, want ErrBadArchive", err)
			}

			extracted, err := os.ReadDir(root)
			if err != nil {
				t.Fatalf("ReadDir() error = %v", err)
			}
			if len(extracted) != 0 {
				t.Errorf("extraction root has %d entries after rejection, want 0", len(extracted))
			}
		})
	}
}

func TestExtractArchive_NotAZip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "junk.pptx")
	if err := os.WriteFile(src, []byte("this is not a zip archive"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	err := extractArchive(src, filepath.Join(dir, "extracted"))
	if !errors.Is(err, ErrBadArchive) {
		t.Errorf("extractArchive() error = %v, want ErrBadArchive", err)
	}
}

func TestContainsPathTraversal(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"ppt/media/image1.png", false},
		{"docProps/app.xml", false},
		{"a..b/c.txt", false},
		{"a/..b.txt", false},
		{"..", true},
		{"../evil.txt", true},
		{"ppt/../../evil.txt", true},
		{"ppt/media/..", true},
	}

	for _, tt := range tests {
		if got := containsPathTraversal(tt.name); got != tt.want {
			t.Errorf("containsPathTraversal(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRepackRoundTrip(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "tree")
	files := map[string][]byte{
		"a.txt":              []byte("alpha"),
		"sub/b.bin":          {0x00, 0x01, 0x02, 0xff},
		"sub/deeper/c.empty": {},
	}
	for name, data := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	target := filepath.Join(dir, "out.zip")
	if err := repackArchive(root, target); err != nil {
		t.Fatalf("repackArchive() error = %v", err)
	}

	got := readArchive(t, target)
	if len(got) != len(files) {
		t.Fatalf("archive has %d entries, want %d", len(got), len(files))
	}
	for name, data := range files {
		if !bytes.Equal(got[name], data) {
			t.Errorf("entry %q = %v, want %v", name, got[name], data)
		}
	}

	// No temp file remains beside the target.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if e.Name() != "tree" && e.Name() != "out.zip" {
			t.Errorf("unexpected leftover %q beside repacked archive", e.Name())
		}
	}
}

func TestRepackDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "tree")
	for _, name := range []string{"z.txt", "a.txt", "m/inner.txt"} {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	order := func(target string) []string {
		t.Helper()
		if err := repackArchive(root, target); err != nil {
			t.Fatalf("repackArchive() error = %v", err)
		}
		zr, err := zip.OpenReader(target)
		if err != nil {
			t.Fatalf("OpenReader() error = %v", err)
		}
		defer zr.Close()
		names := make([]string, 0, len(zr.File))
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		return names
	}

	first := order(filepath.Join(dir, "first.zip"))
	second := order(filepath.Join(dir, "second.zip"))

	want := []string{"a.txt", "m/inner.txt", "z.txt"}
	if len(first) != len(want) {
		t.Fatalf("entry order = %v, want %v", first, want)
	}
	for i := range want {
		if first[i] != want[i] {
			t.Errorf("entry[%d] = %q, want %q", i, first[i], want[i])
		}
		if first[i] != second[i] {
			t.Errorf("entry order differs between repacks: %v vs %v", first, second)
		}
	}
}

func TestRepackFailureKeepsTarget(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}

	dir := t.TempDir()
	target := filepath.Join(dir, "deck.pptx")
	writeTestArchive(t, target, map[string][]byte{
		"[Content_Types].xml": []byte("<Types/>"),
		"ppt/media/a.png":     []byte("png bytes"),
	})
	before, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	root := filepath.Join(dir, "extracted")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := extractArchive(target, root); err != nil {
		t.Fatalf("extractArchive() error = %v", err)
	}

	// An unreadable file makes the repack fail after the first entry has
	// already been written to the temp archive.
	sealed := filepath.Join(root, "ppt", "media", "a.png")
	if err := os.Chmod(sealed, 0o000); err != nil {
		t.Fatalf("Chmod() error = %v", err)
	}

	err = repackArchive(root, target)
	if !errors.Is(err, ErrRepack) {
		t.Fatalf("repackArchive() error = %v, want ErrRepack", err)
	}

	after, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("failed repack modified the target archive")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".repack-") {
			t.Errorf("leftover temp file %q after failed repack", e.Name())
		}
	}
}

func TestRepackPreservesPermissions(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "tree")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	target := filepath.Join(dir, "deck.pptx")
	writeTestArchive(t, target, map[string][]byte{"old.txt": []byte("old")})
	if err := os.Chmod(target, 0o640); err != nil {
		t.Fatalf("Chmod() error = %v", err)
	}

	if err := repackArchive(root, target); err != nil {
		t.Fatalf("repackArchive() error = %v", err)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if got := info.Mode().Perm(); got != 0o640 {
		t.Errorf("repacked archive mode = %04o, want 0640", got)
	}

	// A target that does not exist yet gets the plain default instead of
	// CreateTemp's private 0600.
	fresh := filepath.Join(dir, "fresh.zip")
	if err := repackArchive(root, fresh); err != nil {
		t.Fatalf("repackArchive() to fresh target error = %v", err)
	}
	info, err = os.Stat(fresh)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if got := info.Mode().Perm(); got != 0o644 {
		t.Errorf("fresh archive mode = %04o, want 0644", got)
	}
}
