// Package deps reports the availability of external binaries the configured
// recognition engines need. Both the daemon status snapshot and the CLI
// status command consume the same requirements list.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/config"
)

// Requirement defines an external tool a recognition engine relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements builds the tool list for the configured engine. The selected
// engine's tool is mandatory; the alternate engine stays listed as optional so
// status output shows what switching would need.
func Requirements(cfg *config.Config) []Requirement {
	selected := ""
	if cfg != nil {
		selected = cfg.Engine.Name
	}

	paddleBinary := "paddleocr"
	if cfg != nil {
		if fields := strings.Fields(cfg.Engine.PaddleCommand); len(fields) > 0 {
			paddleBinary = fields[0]
		}
	}

	return []Requirement{
		{
			Name:        "Tesseract",
			Command:     "tesseract",
			Description: "Required for local text recognition",
			Optional:    selected != "tesseract",
		},
		{
			Name:        "PaddleOCR",
			Command:     paddleBinary,
			Description: "Required for PaddleOCR-backed recognition",
			Optional:    selected != "paddle",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Check runs the configured engine's requirements in one call.
func Check(cfg *config.Config) []Status {
	return CheckBinaries(Requirements(cfg))
}
