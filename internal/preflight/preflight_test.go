package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	result := CheckDirectoryAccess("Data directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir: %+v", result)
	}

	missing := CheckDirectoryAccess("Data directory", filepath.Join(dir, "nope"))
	if missing.Passed || !strings.Contains(missing.Detail, "does not exist") {
		t.Fatalf("expected missing-dir failure: %+v", missing)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	notDir := CheckDirectoryAccess("Data directory", file)
	if notDir.Passed || !strings.Contains(notDir.Detail, "not a directory") {
		t.Fatalf("expected not-a-directory failure: %+v", notDir)
	}
}

func TestCheckDirectoryAccessPermissions(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission checks")
	}

	dir := filepath.Join(t.TempDir(), "locked")
	if err := os.Mkdir(dir, 0o500); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	result := CheckDirectoryAccess("Data directory", dir)
	if result.Passed || !strings.Contains(result.Detail, "permissions") {
		t.Fatalf("expected permission failure: %+v", result)
	}
}

func TestRunAllCoversDirectoriesAndTools(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := RunAll(cfg)

	names := make(map[string]Result, len(results))
	for _, result := range results {
		names[result.Name] = result
	}
	for _, want := range []string{"Data directory", "Log directory", "Archive directory", "Tesseract", "PaddleOCR"} {
		if _, ok := names[want]; !ok {
			t.Errorf("missing check %q in %v", want, results)
		}
	}
	if !names["Data directory"].Passed {
		t.Errorf("data directory should pass: %+v", names["Data directory"])
	}
	// Paddle is not the selected engine, so its absence must not fail preflight.
	if !names["PaddleOCR"].Passed {
		t.Errorf("optional engine tool should pass: %+v", names["PaddleOCR"])
	}
}

func TestMandatoryFailures(t *testing.T) {
	failures := MandatoryFailures([]Result{
		{Name: "A", Passed: true},
		{Name: "B", Passed: false, Detail: "broken"},
	})
	if len(failures) != 1 || failures[0].Name != "B" {
		t.Fatalf("unexpected failures: %+v", failures)
	}
}
