package discover

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestFilesMatchesGlobAndSorts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "b.js", "var x = 1;")
	writeFile(t, dir, "a.js", "var y = 2;")
	writeFile(t, dir, "readme.txt", "hello")

	files, err := Files(dir, "*.js")
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2: %v", len(files), files)
	}
	if files[0] != "a.js" || files[1] != "b.js" {
		t.Errorf("files = %v, want sorted [a.js b.js]", files)
	}
}

func TestFilesSkipsDirsAndHonorsGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "main.js", "var x = 1;")
	writeFile(t, dir, "node_modules/pkg.js", "var x = 1;")
	writeFile(t, dir, ".hidden/secret.js", "var x = 1;")
	writeFile(t, dir, "ignored.js", "var x = 1;")
	writeFile(t, dir, ".gitignore", "ignored.js\n")

	files, err := Files(dir, "*.js")
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 1 || files[0] != "main.js" {
		t.Fatalf("files = %v, want [main.js]", files)
	}
}
