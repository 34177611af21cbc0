package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hcpextract/internal/config"
	"hcpextract/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every check that applies to cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckReadableDirectory("Study directory", cfg.Paths.StudyDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
	}
	if cfg.Paths.ListDir != "" {
		results = append(results, CheckReadableDirectory("List directory", cfg.Paths.ListDir))
	}
	if err := ctx.Err(); err != nil {
		return results
	}
	for _, st := range deps.CheckBinaries(deps.Requirements(cfg)) {
		results = append(results, fromDependency(st))
	}
	return results
}

// Failed returns an error naming every failed, non-optional result.
func Failed(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return errors.New("preflight failed: " + strings.Join(failed, "; "))
}

func fromDependency(st deps.Status) Result {
	detail := st.Detail
	if st.Available {
		detail = st.Path
	}
	return Result{
		Name:     st.Name,
		Passed:   st.Available,
		Optional: st.Optional,
		Detail:   detail,
	}
}
