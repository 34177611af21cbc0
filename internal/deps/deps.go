package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"hcpextract/internal/config"
)

// Requirement names an external command the pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a requirement resolved on PATH.
type Status struct {
	Requirement
	Available bool
	Path      string
	Detail    string
}

// Requirements lists the external commands cfg refers to. The scheduler is
// optional because extraction also runs on a single host.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "Converter",
			Command:     cfg.Extract.ConverterBinary,
			Description: "Converts contrast files to text",
		},
		{
			Name:        "Scheduler",
			Command:     cfg.Scheduler.SubmitBinary,
			Description: "Submits array jobs",
			Optional:    true,
		},
	}
}

// CheckBinaries resolves every requirement with exec.LookPath.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		st := Status{Requirement: req}
		switch path, err := exec.LookPath(req.Command); {
		case req.Command == "":
			st.Detail = "command not configured"
		case err != nil:
			st.Detail = fmt.Sprintf("binary %q not found", req.Command)
		default:
			st.Available = true
			st.Path = path
		}
		results = append(results, st)
	}
	return results
}

// Missing returns the required, unavailable entries of statuses.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, st := range statuses {
		if !st.Available && !st.Optional {
			out = append(out, st)
		}
	}
	return out
}
