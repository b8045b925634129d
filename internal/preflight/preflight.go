// Package preflight provides readiness checks for the directories and
// external tools the daemon depends on.
//
// The daemon runs RunAll once at startup and refuses to serve when a
// mandatory check fails; the CLI status command reuses the individual checks
// for display.
package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/config"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if cfg.Archive.Enabled {
		results = append(results, CheckDirectoryAccess("Archive directory", filepath.Dir(cfg.Archive.Path)))
	}
	results = append(results, CheckEngineTools(cfg)...)
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckEngineTools reports engine binary availability. Optional tools pass
// even when missing; their detail still names the gap.
func CheckEngineTools(cfg *config.Config) []Result {
	statuses := deps.Check(cfg)
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		result := Result{Name: status.Name}
		switch {
		case status.Available:
			result.Passed = true
			result.Detail = status.Command
		case status.Optional:
			result.Passed = true
			result.Detail = fmt.Sprintf("optional: %s", status.Detail)
		default:
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	return results
}

// MandatoryFailures filters results down to hard failures.
func MandatoryFailures(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
