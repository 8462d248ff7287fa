package builder

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func setMtime(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestScanNewerFindsNewerFiles(t *testing.T) {
	root := t.TempDir()
	ref := time.Now().Truncate(time.Second)

	writeFile(t, filepath.Join(root, "src", "old.rs"), "old")
	setMtime(t, filepath.Join(root, "src", "old.rs"), ref.Add(-time.Hour))
	writeFile(t, filepath.Join(root, "src", "new.rs"), "new")
	setMtime(t, filepath.Join(root, "src", "new.rs"), ref.Add(time.Hour))

	newer, err := scanNewer(root, ref, defaultExcludes)
	if err != nil {
		t.Fatalf("scanNewer failed: %v", err)
	}
	if len(newer) != 1 {
		t.Fatalf("expected exactly one newer file, got %v", newer)
	}
	if newer[0] != filepath.Join(root, "src", "new.rs") {
		t.Errorf("wrong file reported: %s", newer[0])
	}
}

func TestScanNewerStrictComparison(t *testing.T) {
	root := t.TempDir()
	ref := time.Now().Truncate(time.Second)

	// a file whose mtime equals the reference is not newer
	writeFile(t, filepath.Join(root, "main.rs"), "")
	setMtime(t, filepath.Join(root, "main.rs"), ref)

	newer, err := scanNewer(root, ref, defaultExcludes)
	if err != nil {
		t.Fatalf("scanNewer failed: %v", err)
	}
	if len(newer) != 0 {
		t.Errorf("equal mtime must not count as newer, got %v", newer)
	}
}

func TestScanNewerExcludesBuildOutput(t *testing.T) {
	root := t.TempDir()
	ref := time.Now().Truncate(time.Second)

	writeFile(t, filepath.Join(root, "src", "main.rs"), "")
	setMtime(t, filepath.Join(root, "src", "main.rs"), ref.Add(-time.Hour))
	writeFile(t, filepath.Join(root, "target", "debug", "deps", "junk.o"), "junk")
	setMtime(t, filepath.Join(root, "target", "debug", "deps", "junk.o"), ref.Add(time.Hour))

	newer, err := scanNewer(root, ref, defaultExcludes)
	if err != nil {
		t.Fatalf("scanNewer failed: %v", err)
	}
	if len(newer) != 0 {
		t.Errorf("build output must be excluded from scanning, got %v", newer)
	}
}

func TestScanNewerCustomExcludes(t *testing.T) {
	root := t.TempDir()
	ref := time.Now().Truncate(time.Second)

	writeFile(t, filepath.Join(root, "docs", "notes.md"), "")
	setMtime(t, filepath.Join(root, "docs", "notes.md"), ref.Add(time.Hour))
	writeFile(t, filepath.Join(root, "src", "lib.rs"), "")
	setMtime(t, filepath.Join(root, "src", "lib.rs"), ref.Add(time.Hour))

	newer, err := scanNewer(root, ref, []string{"docs/**"})
	if err != nil {
		t.Fatalf("scanNewer failed: %v", err)
	}
	if len(newer) != 1 || newer[0] != filepath.Join(root, "src", "lib.rs") {
		t.Errorf("expected only src/lib.rs, got %v", newer)
	}
}

func TestScanNewerMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does-not-exist")
	if _, err := scanNewer(root, time.Now(), defaultExcludes); err == nil {
		t.Fatal("expected an error for a missing root")
	}
}
