package preflight

import (
	"path/filepath"

	"vpo/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the filesystem checks a batch depends on. The database
// directory is always checked; the policy file and library directories
// only when configured.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Database directory", filepath.Dir(cfg.Paths.DBPath)))

	if cfg.Paths.PolicyPath != "" {
		results = append(results, CheckFileReadable("Policy file", cfg.Paths.PolicyPath))
	}

	for _, dir := range cfg.Paths.LibraryDirs {
		if dir == "" {
			continue
		}
		results = append(results, CheckDirectoryReadable("Library directory", dir))
	}

	return results
}

// Failures filters a result set down to the checks that did not pass.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
