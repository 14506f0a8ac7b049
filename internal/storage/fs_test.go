package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestFS(t *testing.T) (*FS, string) {
	t.Helper()
	root := t.TempDir()
	fs, err := NewFS(root)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs, root
}

func TestNewFS_RootMustBeDirectory(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing root")
	}

	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFS(f); err == nil {
		t.Error("expected error for non-directory root")
	}
}

func TestWriteRead(t *testing.T) {
	fs, _ := newTestFS(t)

	content := []byte("# Hello\n")
	if err := fs.Write("notes/hello.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := fs.Read("notes/hello.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Read = %q, want %q", got, content)
	}
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	fs, root := newTestFS(t)

	if err := fs.Write("n.md", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	leftovers, err := filepath.Glob(filepath.Join(root, ".sowilo-tmp-*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestRead_MissingIsNotExist(t *testing.T) {
	fs, _ := newTestFS(t)
	_, err := fs.Read("nope.md")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read missing = %v, want os.ErrNotExist", err)
	}
}

func TestExists(t *testing.T) {
	fs, _ := newTestFS(t)
	if err := fs.Write("dir/f.md", []byte("x")); err != nil {
		t.Fatal(err)
	}

	info, err := fs.Exists("dir/f.md")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !info.Exists || info.IsDir {
		t.Errorf("Exists(file) = %+v", info)
	}

	info, err = fs.Exists("dir")
	if err != nil {
		t.Fatal(err)
	}
	if !info.Exists || !info.IsDir {
		t.Errorf("Exists(dir) = %+v", info)
	}

	info, err = fs.Exists("ghost")
	if err != nil {
		t.Fatal(err)
	}
	if info.Exists {
		t.Errorf("Exists(ghost) = %+v", info)
	}
}

func TestListDirectory(t *testing.T) {
	fs, _ := newTestFS(t)
	if err := fs.Write("a.md", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := fs.Write("sub/b.md", []byte("x")); err != nil {
		t.Fatal(err)
	}

	entries, err := fs.ListDirectory("")
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	byName := map[string]bool{}
	for _, e := range entries {
		byName[e.Name] = e.IsDir
	}
	if isDir, ok := byName["a.md"]; !ok || isDir {
		t.Errorf("a.md entry wrong: %v", byName)
	}
	if isDir, ok := byName["sub"]; !ok || !isDir {
		t.Errorf("sub entry wrong: %v", byName)
	}
}

func TestDelete(t *testing.T) {
	fs, _ := newTestFS(t)
	if err := fs.Write("f.md", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := fs.Delete("f.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	info, err := fs.Exists("f.md")
	if err != nil {
		t.Fatal(err)
	}
	if info.Exists {
		t.Error("file still exists after Delete")
	}
	if err := fs.Delete("f.md"); err == nil {
		t.Error("expected error deleting missing file")
	}
}

func TestMove(t *testing.T) {
	fs, _ := newTestFS(t)
	if err := fs.Write("old.md", []byte("content")); err != nil {
		t.Fatal(err)
	}
	if err := fs.Move("old.md", "deep/new.md"); err != nil {
		t.Fatalf("Move: %v", err)
	}

	if info, _ := fs.Exists("old.md"); info.Exists {
		t.Error("old path still exists after Move")
	}
	got, err := fs.Read("deep/new.md")
	if err != nil {
		t.Fatalf("Read moved: %v", err)
	}
	if !bytes.Equal(got, []byte("content")) {
		t.Errorf("moved content = %q", got)
	}
}

func TestSafePath_RejectsEscapes(t *testing.T) {
	fs, _ := newTestFS(t)

	for _, p := range []string{"../outside.md", "a/../../outside.md", "/etc/passwd"} {
		if _, err := fs.Read(p); err == nil {
			t.Errorf("Read(%q): expected traversal rejection", p)
		}
		if err := fs.Write(p, []byte("x")); err == nil {
			t.Errorf("Write(%q): expected traversal rejection", p)
		}
	}

	// Interior ".." that stays inside the root is fine after cleaning.
	if err := fs.Write("a/../b.md", []byte("x")); err != nil {
		t.Errorf("Write(a/../b.md): %v", err)
	}
	if info, _ := fs.Exists("b.md"); !info.Exists {
		t.Error("cleaned path not written to b.md")
	}
}
