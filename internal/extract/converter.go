package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Converter turns one binary contrast file into its text form.
type Converter interface {
	Convert(ctx context.Context, src, dst string) error
}

// CommandConverter runs "<binary> -cifti-convert -to-text SRC DST".
type CommandConverter struct {
	Binary  string
	Timeout time.Duration
}

// maxOutputTail bounds how much command output is kept in errors.
const maxOutputTail = 512

// Convert runs the conversion command. A partially written destination is
// removed on failure so the status store never records it as built.
func (c CommandConverter) Convert(ctx context.Context, src, dst string) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	binary := c.Binary
	if binary == "" {
		binary = "wb_command"
	}

	cmd := exec.CommandContext(ctx, binary, "-cifti-convert", "-to-text", src, dst) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("%s -cifti-convert: %w: %s", binary, err, tail(strings.TrimSpace(string(output))))
	}
	if _, statErr := os.Stat(dst); statErr != nil {
		return fmt.Errorf("%s -cifti-convert: no output written: %w", binary, statErr)
	}
	return nil
}

func tail(s string) string {
	if len(s) <= maxOutputTail {
		return s
	}
	return "..." + s[len(s)-maxOutputTail:]
}
