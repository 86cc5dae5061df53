package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"vpo/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFileReadable_OK(t *testing.T) {
	f := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(f, []byte("name: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckFileReadable("test", f)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckFileReadable_Directory(t *testing.T) {
	result := CheckFileReadable("test", t.TempDir())
	if result.Passed {
		t.Fatal("expected failure for directory path")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ChecksConfiguredPaths(t *testing.T) {
	base := t.TempDir()
	library := filepath.Join(base, "library")
	if err := os.MkdirAll(library, 0o755); err != nil {
		t.Fatal(err)
	}
	policyPath := filepath.Join(base, "policy.yaml")
	if err := os.WriteFile(policyPath, []byte("name: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Paths.DBPath = filepath.Join(base, "vpo.db")
	cfg.Paths.PolicyPath = policyPath
	cfg.Paths.LibraryDirs = []string{library}

	results := RunAll(&cfg)
	// Database directory + policy file + one library directory.
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if failed := Failures(results); len(failed) != 0 {
		t.Fatalf("failures = %+v", failed)
	}
}

func TestRunAll_ReportsMissingLibrary(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DBPath = filepath.Join(base, "vpo.db")
	cfg.Paths.PolicyPath = ""
	cfg.Paths.LibraryDirs = []string{filepath.Join(base, "missing")}

	results := RunAll(&cfg)
	failed := Failures(results)
	if len(failed) != 1 || failed[0].Name != "Library directory" {
		t.Fatalf("failures = %+v", failed)
	}
}
