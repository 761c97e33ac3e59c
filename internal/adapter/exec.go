package adapter

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// runTool executes the located binary and returns stdout. Scanners commonly
// exit 1 when they find issues; callers pass those codes in okExitCodes so
// output is still parsed.
func runTool(ctx context.Context, bin string, args []string, okExitCodes ...int) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			for _, code := range okExitCodes {
				if exitErr.ExitCode() == code {
					return out, nil
				}
			}
		}
		return out, err
	}
	return out, nil
}

// toolVersion runs "<bin> --version" and returns the first line of output.
func toolVersion(ctx context.Context, bin string) string {
	out, err := exec.CommandContext(ctx, bin, "--version").CombinedOutput()
	if err != nil {
		return ""
	}
	line := strings.TrimSpace(string(out))
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}
