package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSingleFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	it, err := New(f)
	if err != nil {
		t.Fatal(err)
	}
	got := All(it)
	if len(got) != 1 || got[0] != f {
		t.Fatalf("got %v, want [%s]", got, f)
	}
}

func TestDirectoryBFSOrder(t *testing.T) {
	root := t.TempDir()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0644))
	must(os.MkdirAll(filepath.Join(root, "d"), 0755))
	must(os.WriteFile(filepath.Join(root, "d", "b.txt"), []byte("b"), 0644))
	must(os.MkdirAll(filepath.Join(root, "d", "e"), 0755))
	must(os.WriteFile(filepath.Join(root, "d", "e", "c.txt"), []byte("c"), 0644))

	it, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	got := All(it)
	if len(got) != 3 {
		t.Fatalf("got %d files, want 3: %v", len(got), got)
	}

	want := map[string]bool{
		filepath.Join(root, "a.txt"):           true,
		filepath.Join(root, "d", "b.txt"):      true,
		filepath.Join(root, "d", "e", "c.txt"): true,
	}
	for _, p := range got {
		if !want[p] {
			t.Errorf("unexpected path %s", p)
		}
		delete(want, p)
	}
	if len(want) != 0 {
		t.Errorf("missing paths: %v", want)
	}

	// depth-0 file must precede the depth-1 file, which must precede depth-2.
	idx := map[string]int{}
	for i, p := range got {
		idx[p] = i
	}
	if idx[filepath.Join(root, "a.txt")] >= idx[filepath.Join(root, "d", "b.txt")] {
		t.Errorf("expected a.txt before d/b.txt in BFS order")
	}
	if idx[filepath.Join(root, "d", "b.txt")] >= idx[filepath.Join(root, "d", "e", "c.txt")] {
		t.Errorf("expected d/b.txt before d/e/c.txt in BFS order")
	}
}

func TestMissingRoot(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("expected error for missing root")
	}
}
