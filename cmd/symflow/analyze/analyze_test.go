package analyze

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	clean := filepath.Join(dir, "clean.go")
	src := `package app

func add(a int, b int) int {
	return a + b
}
`
	if err := os.WriteFile(clean, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}

	// Quiet the text report during the test.
	old := os.Stdout
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = devnull
	defer func() {
		os.Stdout = old
		devnull.Close()
	}()

	if code := Run([]string{clean}); code != 0 {
		t.Errorf("clean source: exit = %d, want 0", code)
	}
	if code := Run([]string{filepath.Join(dir, "missing.go")}); code != 2 {
		t.Errorf("missing input: exit = %d, want 2", code)
	}
}
